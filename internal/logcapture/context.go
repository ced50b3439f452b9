// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logcapture

import (
	"context"
)

// WithContext returns a new context carrying capture.
func WithContext(ctx context.Context, capture *Capture) context.Context {
	return context.WithValue(ctx, contextKey, capture)
}

// FromContext retrieves the Capture stored in ctx, if any.
func FromContext(ctx context.Context) (*Capture, bool) {
	if ctx == nil {
		return nil, false
	}

	capture, ok := ctx.Value(contextKey).(*Capture)
	return capture, ok && capture != nil
}

// Unexported new type so that our context key never collides with another.
type contextKeyType struct{}

// contextKey is the key used for the context to store the capture.
var contextKey = contextKeyType{}
