// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package server contains the HTTP server of the logkit application.
// It sets up the Fiber app, installs the audit middleware on every non status route
// and exposes the health and prometheus endpoints.
package server
