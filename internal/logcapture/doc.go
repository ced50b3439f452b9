// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logcapture temporarily collects the output of a logger in memory.
//
// A capture attaches a sink to a named logger (or the root logger), lowers or raises
// that logger level to the requested minimum for the duration of the session, and
// returns the formatted records when stopped, restoring the previous level.
//
// The logger and its level are shared by the whole process: while a session is
// active, records emitted by any goroutine through the captured logger, or one of its
// descendants, end up in the same buffer. Appends are serialized so lines never
// interleave mid-record, but the output of unrelated goroutines is not filtered out.
// Captures keep everything in memory and are meant for tests and short diagnostic
// windows.
//
// Layout patterns follow the logback conversion syntax for the supported words:
//
//	%p %le %level       severity
//	%m %msg %message    message
//	%c %lo %logger      logger name, ROOT for the root logger
//	%d{layout} %date    timestamp, layout in Go time format
//	%kv                 key/value arguments
//	%n                  newline
//	%%                  literal percent
//
// Format modifiers such as %-5p, %10c, %.20m and %.-20m pad and truncate values.
package logcapture
