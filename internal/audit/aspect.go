// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/mia-platform/logkit/internal/logger"
)

const (
	LoggerName = "logkit.audit"

	AuditMessage       = "audit"
	AuditFailedMessage = "audited operation failed"
)

// Auditor writes the audit entries of the operations wrapped with Around.
type Auditor struct {
	log     logger.Logger
	metrics *Metrics
}

// NewAuditor returns an Auditor writing on the audit logger of log. metrics may be nil.
func NewAuditor(log logger.Logger, metrics *Metrics) *Auditor {
	return &Auditor{
		log:     log.WithName(LoggerName),
		metrics: metrics,
	}
}

// Around calls fn with request and writes an audit entry with its outcome. The result
// of fn is returned unchanged; a panic is logged and propagated.
func Around[Req, Resp any](ctx context.Context, auditor *Auditor, meta Auditable, request Req, fn func(context.Context, Req) (Resp, error)) (response Resp, err error) {
	start := time.Now()

	defer func() {
		if recovered := recover(); recovered != nil {
			auditor.write(meta, request, nil, fmt.Errorf("panic: %v", recovered), time.Since(start))
			panic(recovered)
		}
	}()

	response, err = fn(ctx, request)
	auditor.write(meta, request, response, err, time.Since(start))
	return response, err
}

func (a *Auditor) write(meta Auditable, request, response any, err error, elapsed time.Duration) {
	a.metrics.observe(meta.Event, err != nil, elapsed)

	args := []any{
		"event", meta.Event.String(),
		"activity", meta.Activity,
		"duration", float64(elapsed.Milliseconds()),
	}

	payload := RequestResponse{Request: request}
	if err == nil {
		payload.Response = response
	}
	if data, marshalErr := json.Marshal(payload); marshalErr != nil {
		a.log.Warn("unable to serialize audit payload", "event", meta.Event.String(), "error", marshalErr)
	} else {
		args = append(args, "requestResponse", string(data))
	}

	if err != nil {
		a.log.Error(AuditFailedMessage, append(args, "error", err.Error())...)
		return
	}
	a.log.Info(AuditMessage, args...)
}
