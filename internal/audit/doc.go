// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package audit writes request/response audit entries on the logkit.audit logger.
//
// Around wraps a single operation, RESTMiddleware wraps every request served by a fiber
// app. Both count what they audit in the optional Metrics collector.
package audit
