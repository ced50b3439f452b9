// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logcapture

import (
	"errors"
	"sync"

	"github.com/mia-platform/logkit/internal/logger"
)

var (
	// ErrAlreadyCapturing is returned when starting a capture on an owner that already has one.
	ErrAlreadyCapturing = errors.New("log capture already started")
	// ErrNotCapturing is returned when stopping a capture that is not running.
	ErrNotCapturing = errors.New("log capture was not running")
	// ErrInvalidPattern is returned when the layout pattern cannot be parsed.
	ErrInvalidPattern = errors.New("invalid layout pattern")
)

// Option customizes a capture session.
type Option func(*options)

type options struct {
	loggerName string
	level      logger.Level
	pattern    string
}

func defaultOptions() *options {
	return &options{
		level:   logger.TRACE,
		pattern: DefaultPattern,
	}
}

// WithLogger binds the capture to the named logger and its descendants.
// An empty name binds the root logger.
func WithLogger(name string) Option {
	return func(o *options) {
		o.loggerName = name
	}
}

// WithLevel sets the minimum captured level. Without it every record is captured.
func WithLevel(level logger.Level) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithPattern sets the layout used for each captured record. An empty pattern keeps
// DefaultPattern.
func WithPattern(pattern string) Option {
	return func(o *options) {
		if pattern != "" {
			o.pattern = pattern
		}
	}
}

// Session is an active capture. Holding a Session is proof that the capture is running
// until Stop is called.
type Session struct {
	target  logger.Logger
	sink    *sink
	restore func()

	lock    sync.Mutex
	stopped bool
}

// Start attaches a new in-memory sink to the logger selected by the options, found in
// the tree of log, and sets that logger level to the capture level until Stop.
func Start(log logger.Logger, opts ...Option) (*Session, error) {
	config := defaultOptions()
	for _, opt := range opts {
		opt(config)
	}

	format, err := parseLayout(config.pattern)
	if err != nil {
		return nil, err
	}

	target := log.WithName(config.loggerName)
	sink := newSink(target.Name(), config.level, format)

	session := &Session{
		target:  target,
		sink:    sink,
		restore: target.SwapLevel(config.level),
	}
	target.RegisterSink(sink)

	return session, nil
}

// Stop detaches the sink, restores the logger level, and returns the captured text
// in the order the records were emitted.
func (s *Session) Stop() (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stopped {
		return "", ErrNotCapturing
	}
	s.stopped = true

	s.target.DeregisterSink(s.sink)
	s.restore()
	return s.sink.drain(), nil
}

// Capture owns at most one capture session at a time. It is the explicit replacement
// for per-thread capture state: each test or diagnostic scope creates its own Capture.
type Capture struct {
	log logger.Logger

	lock    sync.Mutex
	session *Session
}

// New returns an idle Capture working on the logger tree of log.
func New(log logger.Logger) *Capture {
	return &Capture{log: log}
}

// Start begins a capture session. It fails with ErrAlreadyCapturing when a session
// is already active on c.
func (c *Capture) Start(opts ...Option) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.session != nil {
		return ErrAlreadyCapturing
	}

	session, err := Start(c.log, opts...)
	if err != nil {
		return err
	}

	c.session = session
	return nil
}

// Stop ends the active session and returns the captured text. It fails with
// ErrNotCapturing when no session is active.
func (c *Capture) Stop() (string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.session == nil {
		return "", ErrNotCapturing
	}

	session := c.session
	c.session = nil
	return session.Stop()
}

// Active reports whether c currently holds a session.
func (c *Capture) Active() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.session != nil
}

// Run captures everything logged while fn runs. The session is stopped even if fn
// panics; the panic is then propagated.
func Run(log logger.Logger, fn func(), opts ...Option) (string, error) {
	session, err := Start(log, opts...)
	if err != nil {
		return "", err
	}

	stopped := false
	defer func() {
		if !stopped {
			_, _ = session.Stop()
		}
	}()

	fn()

	stopped = true
	return session.Stop()
}
