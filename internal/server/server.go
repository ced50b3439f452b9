// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mia-platform/logkit/internal/audit"
	"github.com/mia-platform/logkit/internal/info"
	"github.com/mia-platform/logkit/internal/logger"
)

const (
	loggerName = "logkit.server"

	statusPrefix = "/-/"
	healthzPath  = statusPrefix + "healthz"
	metricsPath  = statusPrefix + "metrics"
)

// Handler processes the body of a request and returns the body of the response. An
// empty response body is answered with 204 No Content.
type Handler func(ctx context.Context, headers http.Header, body []byte) ([]byte, error)

type Server interface {
	AddRoute(method string, path string, handler Handler)
	Start() error
	Stop() error
	// StartAsync starts the server in background. The returned channel receives the
	// result of Start once the server is no longer listening.
	StartAsync(ctx context.Context) <-chan error
}

type impServer struct {
	Config

	app *fiber.App
	log logger.Logger
}

var (
	ErrServerListen   = errors.New("server listen error")
	ErrServerShutdown = errors.New("server shutdown error")
)

// NewServer returns a Server configured from the environment. The audit middleware
// uses metrics, and /-/metrics exposes it together with the runtime collectors.
func NewServer(ctx context.Context, metrics *audit.Metrics) (Server, error) {
	return newServer(ctx, metrics)
}

func newServer(ctx context.Context, metrics *audit.Metrics) (*impServer, error) {
	cfg, err := LoadServerConfig()
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if metrics != nil {
		registry.MustRegister(metrics)
	}

	app := fiber.New(fiber.Config{
		AppName:               info.AppName,
		DisableStartupMessage: cfg.DisableStartupMessage,
		Immutable:             true, // request body and headers stay valid after the handler returns
	})
	log := logger.FromContext(ctx)
	app.Use(audit.RESTMiddleware(log, metrics, []string{statusPrefix}))

	statusRoutes(app, info.AppName, info.Version)
	app.Get(metricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return &impServer{
		Config: *cfg,
		app:    app,
		log:    log.WithName(loggerName),
	}, nil
}

func statusRoutes(app *fiber.App, name, version string) {
	app.Get(healthzPath, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "OK",
			"name":    name,
			"version": version,
		})
	})
}

func (s *impServer) AddRoute(method string, path string, handler Handler) {
	s.app.Add(method, path, func(ctx *fiber.Ctx) error {
		headers := make(http.Header)
		for key, values := range ctx.GetReqHeaders() {
			for _, value := range values {
				headers.Add(key, value)
			}
		}

		body, err := handler(ctx.UserContext(), headers, ctx.Body())
		if err != nil {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return fiberErr
			}

			s.log.Error("error processing request", "path", path, "error", err)
			return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"statusCode": http.StatusInternalServerError,
				"error":      http.StatusText(http.StatusInternalServerError),
				"message":    "error processing request",
			})
		}

		if len(body) == 0 {
			return ctx.SendStatus(http.StatusNoContent)
		}
		ctx.Set(fiber.HeaderContentType, fiber.MIMETextXMLCharsetUTF8)
		return ctx.Send(body)
	})
}

func (s *impServer) Start() error {
	if err := s.app.Listen(fmt.Sprintf("%s:%d", s.HTTPHost, s.HTTPPort)); err != nil {
		return fmt.Errorf("%w: %w", ErrServerListen, err)
	}
	return nil
}

func (s *impServer) Stop() error {
	if err := s.app.Shutdown(); err != nil {
		return fmt.Errorf("%w: %w", ErrServerShutdown, err)
	}
	return nil
}

func (s *impServer) StartAsync(ctx context.Context) <-chan error {
	log := logger.FromContext(ctx).WithName(loggerName)
	errChan := make(chan error, 1)
	go func() {
		err := s.Start()
		if err != nil {
			log.Error(err.Error())
		}
		errChan <- err
	}()
	return errChan
}
