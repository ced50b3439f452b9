// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logcapture

import (
	"strings"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/mia-platform/logkit/internal/logger"
)

var _ logger.Sink = &sink{}

// sink accumulates the formatted records of one capture session. Appends are
// serialized, so records logged from several goroutines never interleave mid-line.
type sink struct {
	target   string
	minLevel logger.Level
	layout   layout
	now      func() time.Time

	lock   sync.Mutex
	buffer *bytebufferpool.ByteBuffer
}

func newSink(target string, minLevel logger.Level, format layout) *sink {
	return &sink{
		target:   target,
		minLevel: minLevel,
		layout:   format,
		now:      time.Now,
		buffer:   bytebufferpool.Get(),
	}
}

func (s *sink) Accept(name string, level logger.Level, msg string, args ...any) {
	if !s.minLevel.Enables(level) || !s.matches(name) {
		return
	}

	line := s.layout.format(&record{
		time:  s.now(),
		name:  name,
		level: level,
		msg:   msg,
		args:  args,
	})

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.buffer == nil {
		return
	}
	_, _ = s.buffer.WriteString(line)
}

// matches reports whether name is the target logger or one of its descendants.
func (s *sink) matches(name string) bool {
	if s.target == "" || name == s.target {
		return true
	}
	return strings.HasPrefix(name, s.target+".")
}

// drain returns the accumulated text and releases the buffer; later records are dropped.
func (s *sink) drain() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.buffer == nil {
		return ""
	}

	text := s.buffer.String()
	bytebufferpool.Put(s.buffer)
	s.buffer = nil
	return text
}
