// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package audit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/mia-platform/logkit/internal/logger"
)

const (
	forwardedHostHeaderKey = "x-forwarded-host"
	forwardedForHeaderKey  = "x-forwarded-for"
	requestIDHeaderName    = "x-request-id"

	IncomingRequestMessage  = "incoming request"
	RequestCompletedMessage = "request completed"

	maxAuditedBodySize = 1024
	truncatedSuffix    = "...(truncated)"
)

type fiberLoggingContext struct {
	c          *fiber.Ctx
	handlerErr error
}

type loggingContext interface {
	Request() requestLoggingContext
	Response() responseLoggingContext
}

type requestLoggingContext interface {
	GetHeader(string) string
	URI() string
	Host() string
	Method() string
	RequestBody() []byte
}

type responseLoggingContext interface {
	BodySize() int
	StatusCode() int
	ResponseBody() []byte
}

// http is the struct of the log formatter.
type http struct {
	Request  *request  `json:"request,omitempty"`
	Response *response `json:"response,omitempty"`
}

type userAgent struct {
	Original string `json:"original,omitempty"`
}

// request contains the items of request info log.
type request struct {
	Method    string    `json:"method,omitempty"`
	UserAgent userAgent `json:"userAgent"`
}

type responseBody struct {
	Bytes int `json:"bytes,omitempty"`
}

// response contains the items of response info log.
type response struct {
	StatusCode int          `json:"statusCode,omitempty"`
	Body       responseBody `json:"body"`
}

// host has the host information.
type host struct {
	Hostname      string `json:"hostname,omitempty"`
	ForwardedHost string `json:"forwardedHost,omitempty"`
	IP            string `json:"ip,omitempty"`
}

// url info
type url struct {
	Path string `json:"path,omitempty"`
}

func removePort(host string) string {
	return strings.Split(host, ":")[0]
}

func GetReqID(ctx loggingContext) string {
	if requestID := ctx.Request().GetHeader(requestIDHeaderName); requestID != "" {
		return requestID
	}
	// Generate a random uuid string. e.g. 16c9c1f2-c001-40d3-bbfe-48857367e7b5
	requestID, err := uuid.NewRandom()
	if err != nil {
		panic(fmt.Errorf("error generating request id: %w", err))
	}
	return requestID.String()
}

func truncateBody(body []byte) string {
	if len(body) <= maxAuditedBodySize {
		return string(body)
	}
	cut := maxAuditedBodySize
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return string(body[:cut]) + truncatedSuffix
}

func requestHTTP(ctx loggingContext) http {
	return http{
		Request: &request{
			Method: ctx.Request().Method(),
			UserAgent: userAgent{
				Original: ctx.Request().GetHeader("user-agent"),
			},
		},
	}
}

func requestHost(ctx loggingContext) host {
	return host{
		ForwardedHost: ctx.Request().GetHeader(forwardedHostHeaderKey),
		Hostname:      removePort(ctx.Request().Host()),
		IP:            ctx.Request().GetHeader(forwardedForHeaderKey),
	}
}

func logIncomingRequest(ctx loggingContext, log logger.Logger, requestID string) {
	log.Trace(IncomingRequestMessage,
		"requestId", requestID,
		"http", requestHTTP(ctx),
		"url", url{Path: ctx.Request().URI()},
		"host", requestHost(ctx),
	)
}

func logRequestCompleted(ctx loggingContext, log logger.Logger, requestID string, elapsed time.Duration) {
	completed := requestHTTP(ctx)
	completed.Response = &response{
		StatusCode: ctx.Response().StatusCode(),
		Body: responseBody{
			Bytes: ctx.Response().BodySize(),
		},
	}

	log.Info(RequestCompletedMessage,
		"requestId", requestID,
		"event", EventRESTRequestResponse.String(),
		"http", completed,
		"url", url{Path: ctx.Request().URI()},
		"host", requestHost(ctx),
		"responseTime", float64(elapsed.Milliseconds()),
		"requestResponse", RequestResponse{
			Request:  truncateBody(ctx.Request().RequestBody()),
			Response: truncateBody(ctx.Response().ResponseBody()),
		},
	)
}

func (flc *fiberLoggingContext) Request() requestLoggingContext {
	return flc
}

func (flc *fiberLoggingContext) Response() responseLoggingContext {
	return flc
}

func (flc *fiberLoggingContext) GetHeader(key string) string {
	return flc.c.Get(key, "")
}

func (flc *fiberLoggingContext) URI() string {
	return string(flc.c.Request().URI().RequestURI())
}

func (flc *fiberLoggingContext) Host() string {
	return string(flc.c.Request().Host())
}

func (flc *fiberLoggingContext) Method() string {
	return flc.c.Method()
}

func (flc *fiberLoggingContext) RequestBody() []byte {
	return flc.c.Body()
}

func (flc *fiberLoggingContext) getFiberError() *fiber.Error {
	var fiberErr *fiber.Error
	if errors.As(flc.handlerErr, &fiberErr) {
		return fiberErr
	}
	return nil
}

func (flc *fiberLoggingContext) setError(err error) {
	flc.handlerErr = err
}

func (flc *fiberLoggingContext) BodySize() int {
	if fiberErr := flc.getFiberError(); fiberErr != nil {
		return len(fiberErr.Error())
	}

	if content := flc.c.GetRespHeader("Content-Length"); content != "" {
		if length, err := strconv.Atoi(content); err == nil {
			return length
		}
	}
	return len(flc.c.Response().Body())
}

func (flc *fiberLoggingContext) StatusCode() int {
	if fiberErr := flc.getFiberError(); fiberErr != nil {
		return fiberErr.Code
	}
	if flc.handlerErr != nil {
		return fiber.StatusInternalServerError
	}

	return flc.c.Response().StatusCode()
}

func (flc *fiberLoggingContext) ResponseBody() []byte {
	if fiberErr := flc.getFiberError(); fiberErr != nil {
		return []byte(fiberErr.Message)
	}
	return flc.c.Response().Body()
}

// RESTMiddleware is a fiber middleware to audit all requests.
// It logs the incoming request and when request is completed, adding latency and the
// truncated request and response bodies.
func RESTMiddleware(log logger.Logger, metrics *Metrics, excludedPrefix []string) func(*fiber.Ctx) error {
	auditLog := log.WithName(LoggerName)

	return func(fiberCtx *fiber.Ctx) error {
		fiberLoggingContext := &fiberLoggingContext{c: fiberCtx}

		for _, prefix := range excludedPrefix {
			if strings.HasPrefix(fiberLoggingContext.Request().URI(), prefix) {
				return fiberCtx.Next()
			}
		}

		start := time.Now()

		requestID := GetReqID(fiberLoggingContext)
		fiberCtx.Set(requestIDHeaderName, requestID)
		fiberCtx.SetUserContext(logger.WithContext(fiberCtx.UserContext(), log))

		logIncomingRequest(fiberLoggingContext, auditLog, requestID)
		err := fiberCtx.Next()
		fiberLoggingContext.setError(err)

		elapsed := time.Since(start)
		logRequestCompleted(fiberLoggingContext, auditLog, requestID, elapsed)
		metrics.observe(EventRESTRequestResponse, fiberLoggingContext.StatusCode() >= fiber.StatusInternalServerError, elapsed)

		return err
	}
}
