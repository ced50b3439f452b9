// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/mia-platform/logkit/internal/audit"
	"github.com/mia-platform/logkit/internal/logger"
	"github.com/mia-platform/logkit/internal/security"
	"github.com/mia-platform/logkit/internal/server"
)

const serveLoggerName = "logkit.serve"

// options configures the security commands.
type options struct {
	cryptoConfig *security.CryptoConfig
	input        string
	stdin        io.Reader
	stdout       io.Writer
	serverGetter func(context.Context, *audit.Metrics) (server.Server, error)

	lock sync.Mutex
}

func (o *options) interceptor(ctx context.Context) *security.SignatureInterceptor {
	return security.NewSignatureInterceptor(o.cryptoConfig, logger.FromContext(ctx))
}

// executeSign signs the input envelope and writes it on stdout.
func (o *options) executeSign(ctx context.Context) error {
	envelope, err := readEnvelope(o.input, o.stdin)
	if err != nil {
		return err
	}

	auditor := audit.NewAuditor(logger.FromContext(ctx), nil)
	signed, err := audit.Around(ctx, auditor, auditMeta(signActivity), envelope, o.interceptor(ctx).SecureMessage)
	if err != nil {
		return err
	}

	_, err = o.stdout.Write(signed)
	return err
}

// executeValidate validates the signature of the input envelope.
func (o *options) executeValidate(ctx context.Context) error {
	envelope, err := readEnvelope(o.input, o.stdin)
	if err != nil {
		return err
	}

	auditor := audit.NewAuditor(logger.FromContext(ctx), nil)
	interceptor := o.interceptor(ctx)
	_, err = audit.Around(ctx, auditor, auditMeta(validateActivity), envelope, func(ctx context.Context, envelope []byte) (struct{}, error) {
		return struct{}{}, interceptor.ValidateMessage(ctx, envelope)
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(o.stdout, "signature valid")
	return err
}

// executeServe starts the HTTP service and blocks until ctx is done or a signal
// is received.
func (o *options) executeServe(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := audit.NewMetrics()
	srv, err := o.serverGetter(ctx, metrics)
	if err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	auditor := audit.NewAuditor(log, metrics)
	interceptor := o.interceptor(ctx)

	srv.AddRoute(http.MethodPost, signPath, func(ctx context.Context, _ http.Header, body []byte) ([]byte, error) {
		signed, err := audit.Around(ctx, auditor, auditMeta(signActivity), body, interceptor.SecureMessage)
		if errors.Is(err, security.ErrInvalidEnvelope) {
			return nil, fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return signed, err
	})
	srv.AddRoute(http.MethodPost, validatePath, func(ctx context.Context, _ http.Header, body []byte) ([]byte, error) {
		_, err := audit.Around(ctx, auditor, auditMeta(validateActivity), body, func(ctx context.Context, envelope []byte) (struct{}, error) {
			return struct{}{}, interceptor.ValidateMessage(ctx, envelope)
		})
		if errors.Is(err, security.ErrInvalidSignature) {
			return nil, fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return nil, err
	})

	errChan := srv.StartAsync(ctx)

	serveLog := log.WithName(serveLoggerName)
	serveLog.Info("service started", "sign", signPath, "validate", validatePath)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		serveLog.Info("stopping service")
		if err := srv.Stop(); err != nil {
			return err
		}
		return <-errChan
	}
}
