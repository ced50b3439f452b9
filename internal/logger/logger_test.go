// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	logger := NewLogger(buffer)

	logger.SetLevel(TRACE)
	namedLogger := logger.WithName("test_logger")
	namedLogger.Info("new log line for INFO level")
	logger.Trace("new log line for TRACE level")
	logger.SetLevel(DEBUG)
	logger.Debug("new log line for DEBUG level")
	namedLogger.Warn("new log line for WARN level")

	logger.SetLevel(ERROR)
	namedLogger.Warn("silenced log line for WARN level")
	logger.SetLevel(WARN)
	logger.Error("new log line for ERROR level")
	logger.Debug("silenced log line for TRACE level")

	logger.SetLevel(999) // invalid level; should default to INFO
	logger.Info("new log line for INFO level after invalid level set")
	namedLogger.Debug("silenced log line for DEBUG level after invalid level set")

	lines := strings.Split(buffer.String(), "\n")
	t.Logf("%v", lines)
	assert.Len(t, lines, 7) // 6 log lines plus 1 trailing empty line
	assert.Equal(t, INFO, logger.GetLevel())
}

func TestLevelStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TRACE", TRACE.String())
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "INFO", INFO.String())
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "Level(999)", Level(999).String())

	assert.Equal(t, TRACE, LevelFromString("TRACE"))
	assert.Equal(t, DEBUG, LevelFromString("DEBUG"))
	assert.Equal(t, INFO, LevelFromString("INFO"))
	assert.Equal(t, WARN, LevelFromString("WARN"))
	assert.Equal(t, ERROR, LevelFromString("ERROR"))
	assert.Equal(t, INFO, LevelFromString("INVALID"))
}

func TestLevelEnables(t *testing.T) {
	t.Parallel()

	assert.True(t, TRACE.Enables(ERROR))
	assert.True(t, WARN.Enables(WARN))
	assert.True(t, WARN.Enables(ERROR))
	assert.False(t, WARN.Enables(INFO))
	assert.False(t, ERROR.Enables(TRACE))
}

func TestWithNameReturnsSharedLogger(t *testing.T) {
	t.Parallel()

	logger := NewLogger(new(bytes.Buffer))

	first := logger.WithName("com.example")
	second := logger.WithName("com.example")
	first.SetLevel(ERROR)

	assert.Equal(t, "com.example", second.Name())
	assert.Equal(t, ERROR, second.GetLevel())
	assert.Empty(t, logger.WithName("").Name())
	assert.Empty(t, logger.WithName(RootLoggerName).Name())
}

func TestLevelInheritance(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		setup    func(root Logger)
		name     string
		expected Level
	}{
		"named logger follows root": {
			setup:    func(root Logger) { root.SetLevel(DEBUG) },
			name:     "a.b",
			expected: DEBUG,
		},
		"named logger follows configured ancestor": {
			setup: func(root Logger) {
				root.SetLevel(ERROR)
				root.WithName("a").SetLevel(TRACE)
			},
			name:     "a.b.c",
			expected: TRACE,
		},
		"explicit level wins over ancestors": {
			setup: func(root Logger) {
				root.WithName("a").SetLevel(TRACE)
				root.WithName("a.b").SetLevel(WARN)
			},
			name:     "a.b",
			expected: WARN,
		},
		"sibling configuration is ignored": {
			setup: func(root Logger) {
				root.WithName("a.x").SetLevel(TRACE)
			},
			name:     "a.b",
			expected: INFO,
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			root := NewLogger(new(bytes.Buffer))
			named := root.WithName(test.name)
			test.setup(root)
			assert.Equal(t, test.expected, named.GetLevel())
		})
	}
}

func TestSwapLevel(t *testing.T) {
	t.Parallel()

	t.Run("restores root level", func(t *testing.T) {
		t.Parallel()

		root := NewLogger(new(bytes.Buffer))
		root.SetLevel(WARN)

		restore := root.SwapLevel(TRACE)
		assert.Equal(t, TRACE, root.GetLevel())
		restore()
		assert.Equal(t, WARN, root.GetLevel())
	})

	t.Run("restores inheritance of named logger", func(t *testing.T) {
		t.Parallel()

		root := NewLogger(new(bytes.Buffer))
		named := root.WithName("a.b")

		restore := named.SwapLevel(ERROR)
		assert.Equal(t, ERROR, named.GetLevel())
		restore()

		root.SetLevel(DEBUG)
		assert.Equal(t, DEBUG, named.GetLevel())
	})

	t.Run("descendants follow swapped level until restore", func(t *testing.T) {
		t.Parallel()

		root := NewLogger(new(bytes.Buffer))
		child := root.WithName("a.b")

		restore := root.WithName("a").SwapLevel(TRACE)
		assert.Equal(t, TRACE, child.GetLevel())
		restore()
		assert.Equal(t, INFO, child.GetLevel())
	})

	t.Run("restores in any order", func(t *testing.T) {
		t.Parallel()

		root := NewLogger(new(bytes.Buffer))

		restoreFirst := root.SwapLevel(TRACE)
		restoreSecond := root.SwapLevel(ERROR)
		assert.Equal(t, ERROR, root.GetLevel())

		restoreFirst()
		assert.Equal(t, ERROR, root.GetLevel())
		restoreSecond()
		assert.Equal(t, INFO, root.GetLevel())

		restoreSecond()
		assert.Equal(t, INFO, root.GetLevel())
	})

	t.Run("configured level returns after swaps", func(t *testing.T) {
		t.Parallel()

		root := NewLogger(new(bytes.Buffer))
		named := root.WithName("svc")

		restore := named.SwapLevel(TRACE)
		named.SetLevel(WARN)
		assert.Equal(t, TRACE, named.GetLevel())
		restore()
		assert.Equal(t, WARN, named.GetLevel())
	})
}

type recordingSink struct {
	lock    sync.Mutex
	records []string
}

func (s *recordingSink) Accept(name string, level Level, msg string, _ ...any) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.records = append(s.records, name+"|"+level.String()+"|"+msg)
}

func TestSinks(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	root := NewLogger(buffer)
	sink := &recordingSink{}

	root.WithName("a").RegisterSink(sink)
	root.Info("from root")
	root.WithName("a.b").Warn("from child")

	root.DeregisterSink(sink)
	root.Info("after deregister")

	require.Len(t, sink.records, 2)
	assert.Equal(t, []string{
		"|INFO|from root",
		"a.b|WARN|from child",
	}, sink.records)

	lines := strings.Split(buffer.String(), "\n")
	assert.Len(t, lines, 4) // 3 log lines plus 1 trailing empty line
}

func TestSinksFollowEmittingLevel(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	root := NewLogger(buffer)
	root.SetLevel(TRACE)
	child := root.WithName("app.db")
	child.SetLevel(ERROR)

	sink := &recordingSink{}
	root.RegisterSink(sink)
	child.Debug("suppressed by child level")
	child.Error("kept")
	root.WithName("app").Debug("inherits root level")
	root.DeregisterSink(sink)

	assert.Equal(t, []string{
		"app.db|ERROR|kept",
		"app|DEBUG|inherits root level",
	}, sink.records)
	assert.NotContains(t, buffer.String(), "suppressed by child level")
}
