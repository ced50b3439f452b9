// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"io"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

// RootLoggerName is the display name of the root logger. Passing it, or the empty
// string, to WithName returns the root logger.
const RootLoggerName = "ROOT"

var (
	// nullLogger is a logger that discards all log messages.
	nullLogger = NewLogger(io.Discard)
)

//go:generate ${TOOLS_BIN}/stringer -type=Level
type Level int

func LevelFromString(level string) Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l Level) convertedLevel() hclog.Level {
	switch l {
	case TRACE:
		return hclog.Trace
	case DEBUG:
		return hclog.Debug
	case INFO:
		return hclog.Info
	case WARN:
		return hclog.Warn
	case ERROR:
		return hclog.Error
	default:
		return hclog.Info
	}
}

func levelFromHclog(level hclog.Level) Level {
	switch level {
	case hclog.Trace:
		return TRACE
	case hclog.Debug:
		return DEBUG
	case hclog.Warn:
		return WARN
	case hclog.Error:
		return ERROR
	default:
		return INFO
	}
}

// normalized maps unknown levels to INFO, the same fallback used when converting.
func (l Level) normalized() Level {
	if l < ERROR || l > TRACE {
		return INFO
	}
	return l
}

// Enables reports whether a record at level passes a threshold set to l.
func (l Level) Enables(level Level) bool {
	return level <= l
}

const (
	ERROR Level = iota
	WARN
	INFO
	DEBUG
	TRACE
)

// Sink receives every record emitted through a logger tree that the emitting logger
// level lets through. Implementations must be comparable values, typically pointers.
type Sink interface {
	Accept(name string, level Level, msg string, args ...any)
}

// Logger describes the interface that must be implemented by all loggers
type Logger interface {
	// Name returns the absolute name of the logger, empty for the root logger.
	Name() string

	// WithName returns the shared Logger registered under the absolute name.
	WithName(name string) Logger

	// SetLevel updates the logger level.
	SetLevel(level Level)

	// GetLevel returns the effective level of the logger.
	GetLevel() Level

	// SwapLevel sets an explicit level and returns a function restoring the previous setting.
	SwapLevel(level Level) (restore func())

	// RegisterSink attaches sink to the whole logger tree.
	RegisterSink(sink Sink)

	// DeregisterSink detaches a sink previously registered with RegisterSink.
	DeregisterSink(sink Sink)

	// Trace emit a message and key/value pairs at the TRACE level.
	Trace(msg string, args ...interface{})

	// Debug emit a message and key/value pairs at the DEBUG level.
	Debug(msg string, args ...interface{})

	// Info emit a message and key/value pairs at the INFO level.
	Info(msg string, args ...interface{})

	// Warn emit a message and key/value pairs at the WARN level.
	Warn(msg string, args ...interface{})

	// Error emit a message and key/value pairs at the ERROR level.
	Error(msg string, args ...interface{})
}

// Make sure that instance is a Logger.
var _ Logger = &instance{}

// instance is a Logger implementation.
type instance struct {
	name string
	log  hclog.InterceptLogger
	tree *hierarchy
}

// NewLogger creates a new root logger writing JSON lines to writer.
func NewLogger(writer io.Writer) Logger {
	root := hclog.NewInterceptLogger(&hclog.LoggerOptions{
		JSONFormat:        true,
		Output:            writer,
		TimeFn:            time.Now,
		Level:             INFO.convertedLevel(),
		IndependentLevels: true,
	})

	return &instance{
		log:  root,
		tree: newHierarchy(root, INFO),
	}
}

func (i *instance) Name() string {
	return i.name
}

func (i *instance) WithName(name string) Logger {
	if name == "" || name == RootLoggerName {
		return &instance{log: i.tree.root, tree: i.tree}
	}

	return &instance{
		name: name,
		log:  i.tree.named(name),
		tree: i.tree,
	}
}

func (i *instance) SetLevel(level Level) {
	i.tree.setLevel(i.name, level.normalized())
}

func (i *instance) GetLevel() Level {
	return i.tree.effectiveLevel(i.name)
}

func (i *instance) SwapLevel(level Level) func() {
	id := i.tree.swapLevel(i.name, level.normalized())
	return func() {
		i.tree.release(i.name, id)
	}
}

func (i *instance) RegisterSink(sink Sink) {
	i.tree.root.RegisterSink(sinkAdapter{sink: sink, tree: i.tree})
}

func (i *instance) DeregisterSink(sink Sink) {
	i.tree.root.DeregisterSink(sinkAdapter{sink: sink, tree: i.tree})
}

func (i *instance) Trace(msg string, args ...interface{}) {
	i.log.Trace(msg, args...)
}

func (i *instance) Debug(msg string, args ...interface{}) {
	i.log.Debug(msg, args...)
}

func (i *instance) Info(msg string, args ...interface{}) {
	i.log.Info(msg, args...)
}

func (i *instance) Warn(msg string, args ...interface{}) {
	i.log.Warn(msg, args...)
}

func (i *instance) Error(msg string, args ...interface{}) {
	i.log.Error(msg, args...)
}

// sinkAdapter bridges a Sink to the hclog sink interface. It is used as a map key
// by hclog, so it stays a comparable value type.
type sinkAdapter struct {
	sink Sink
	tree *hierarchy
}

// Accept forwards only what the emitting logger writes itself, hclog hands sinks
// every call.
func (a sinkAdapter) Accept(name string, level hclog.Level, msg string, args ...interface{}) {
	converted := levelFromHclog(level)
	if !a.tree.effectiveLevel(name).Enables(converted) {
		return
	}
	a.sink.Accept(name, converted, msg, args...)
}
