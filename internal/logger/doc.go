// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logger wraps the underlying logging stack behind a consistent interface.
// It centralizes configuration and makes loggers available through context helpers.
//
// Loggers form a tree keyed by absolute dotted names: WithName always returns the same
// shared logger for a given name, and a logger without an explicit level follows its
// nearest configured ancestor. Sinks registered on any logger observe the whole tree.
package logger
