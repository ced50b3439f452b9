// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logcapture

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/logkit/internal/logger"
)

func TestCaptureDefaults(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger(new(bytes.Buffer))
	capture := New(log)

	require.NoError(t, capture.Start())
	log.Info("hello")
	logs, err := capture.Stop()
	require.NoError(t, err)

	assert.Equal(t, "[INFO] hello\n", logs)
}

func TestCaptureNamedLoggerWithLevelAndPattern(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger(new(bytes.Buffer))
	capture := New(log)

	require.NoError(t, capture.Start(
		WithLogger("com.example.Foo"),
		WithLevel(logger.WARN),
		WithPattern("%m%n"),
	))

	foo := log.WithName("com.example.Foo")
	foo.Info("ignored")
	foo.Warn("kept")

	logs, err := capture.Stop()
	require.NoError(t, err)
	assert.Equal(t, "kept\n", logs)
}

func TestCaptureEmpty(t *testing.T) {
	t.Parallel()

	testCases := map[string][]Option{
		"defaults":          nil,
		"named logger":      {WithLogger("svc")},
		"level and pattern": {WithLevel(logger.ERROR), WithPattern("%d %c %m%n")},
		"empty pattern":     {WithPattern("")},
	}

	for testName, opts := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			capture := New(logger.NewLogger(new(bytes.Buffer)))
			require.NoError(t, capture.Start(opts...))
			logs, err := capture.Stop()
			require.NoError(t, err)
			assert.Empty(t, logs)
		})
	}
}

func TestCaptureOrderAndThreshold(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger(new(bytes.Buffer))
	capture := New(log)

	require.NoError(t, capture.Start(WithLevel(logger.INFO)))
	log.Debug("skipped debug")
	log.Info("first")
	log.Trace("skipped trace")
	log.Error("second")
	log.Warn("third")
	logs, err := capture.Stop()
	require.NoError(t, err)

	assert.Equal(t, "[INFO] first\n[ERROR] second\n[WARN] third\n", logs)
}

func TestCaptureLoggerScope(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger(new(bytes.Buffer))
	capture := New(log)

	require.NoError(t, capture.Start(WithLogger("app.db"), WithPattern("%c:%m%n")))
	log.WithName("app.db").Info("query")
	log.WithName("app.db.pool").Info("acquired")
	log.WithName("app.dbx").Info("sibling with common prefix")
	log.WithName("app").Info("parent")
	log.Info("root")
	logs, err := capture.Stop()
	require.NoError(t, err)

	assert.Equal(t, "app.db:query\napp.db.pool:acquired\n", logs)
}

func TestCaptureStateErrors(t *testing.T) {
	t.Parallel()

	t.Run("start twice fails", func(t *testing.T) {
		t.Parallel()

		capture := New(logger.NewLogger(new(bytes.Buffer)))
		require.NoError(t, capture.Start())
		assert.ErrorIs(t, capture.Start(), ErrAlreadyCapturing)
		assert.True(t, capture.Active())

		_, err := capture.Stop()
		require.NoError(t, err)
	})

	t.Run("stop without start fails", func(t *testing.T) {
		t.Parallel()

		capture := New(logger.NewLogger(new(bytes.Buffer)))
		logs, err := capture.Stop()
		assert.ErrorIs(t, err, ErrNotCapturing)
		assert.Empty(t, logs)
	})

	t.Run("double stop fails", func(t *testing.T) {
		t.Parallel()

		capture := New(logger.NewLogger(new(bytes.Buffer)))
		require.NoError(t, capture.Start())
		_, err := capture.Stop()
		require.NoError(t, err)

		_, err = capture.Stop()
		assert.ErrorIs(t, err, ErrNotCapturing)
		assert.False(t, capture.Active())
	})

	t.Run("invalid pattern leaves capture idle", func(t *testing.T) {
		t.Parallel()

		log := logger.NewLogger(new(bytes.Buffer))
		capture := New(log)
		err := capture.Start(WithPattern("%unknown"), WithLevel(logger.TRACE))
		require.ErrorIs(t, err, ErrInvalidPattern)
		assert.False(t, capture.Active())
		assert.Equal(t, logger.INFO, log.GetLevel())
	})
}

func TestCaptureRestartsIndependently(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger(new(bytes.Buffer))
	capture := New(log)

	require.NoError(t, capture.Start())
	log.Info("first session")
	first, err := capture.Stop()
	require.NoError(t, err)

	log.Info("between sessions")

	require.NoError(t, capture.Start(WithPattern("%p|%m%n")))
	log.Warn("second session")
	second, err := capture.Stop()
	require.NoError(t, err)

	assert.Equal(t, "[INFO] first session\n", first)
	assert.Equal(t, "WARN|second session\n", second)
}

func TestCaptureRestoresLevel(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	log := logger.NewLogger(buffer)
	log.SetLevel(logger.WARN)
	named := log.WithName("svc")

	capture := New(log)
	require.NoError(t, capture.Start(WithLogger("svc"), WithLevel(logger.DEBUG)))
	assert.Equal(t, logger.DEBUG, named.GetLevel())
	assert.Equal(t, logger.WARN, log.GetLevel())

	named.Debug("visible while capturing")
	logs, err := capture.Stop()
	require.NoError(t, err)
	assert.Equal(t, "[DEBUG] visible while capturing\n", logs)

	assert.Equal(t, logger.WARN, named.GetLevel())
	log.SetLevel(logger.ERROR)
	assert.Equal(t, logger.ERROR, named.GetLevel(), "named logger inherits again after restore")
}

func TestCaptureSkipsRecordsSuppressedByChild(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	log := logger.NewLogger(buffer)
	child := log.WithName("app.db")
	child.SetLevel(logger.ERROR)

	logs, err := Run(log, func() {
		child.Debug("suppressed by child level")
		child.Error("failed query")
		log.WithName("app").Debug("connected")
	}, WithLogger("app"))
	require.NoError(t, err)

	assert.Equal(t, "[ERROR] failed query\n[DEBUG] connected\n", logs)
	assert.NotContains(t, buffer.String(), "suppressed by child level")
}

func TestOverlappingSessionsRestoreLevel(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger(new(bytes.Buffer))
	require.Equal(t, logger.INFO, log.GetLevel())

	first, err := Start(log, WithLevel(logger.TRACE))
	require.NoError(t, err)
	second, err := Start(log, WithLevel(logger.ERROR))
	require.NoError(t, err)

	_, err = first.Stop()
	require.NoError(t, err)
	assert.Equal(t, logger.ERROR, log.GetLevel())

	_, err = second.Stop()
	require.NoError(t, err)
	assert.Equal(t, logger.INFO, log.GetLevel())
}

func TestSessionHandle(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger(new(bytes.Buffer))

	session, err := Start(log, WithPattern("%-5p|%m%n"))
	require.NoError(t, err)
	log.Info("aligned")

	logs, err := session.Stop()
	require.NoError(t, err)
	assert.Equal(t, "INFO |aligned\n", logs)

	_, err = session.Stop()
	require.ErrorIs(t, err, ErrNotCapturing)

	log.Info("after stop")
	_, err = Start(log, WithPattern("%"))
	require.ErrorIs(t, err, ErrInvalidPattern)
}

func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("returns logs of fn", func(t *testing.T) {
		t.Parallel()

		log := logger.NewLogger(new(bytes.Buffer))
		logs, err := Run(log, func() {
			log.WithName("worker").Info("working", "job", 42)
		}, WithLogger("worker"), WithPattern("%m %kv%n"))
		require.NoError(t, err)
		assert.Equal(t, "working job=42\n", logs)
	})

	t.Run("stops on panic", func(t *testing.T) {
		t.Parallel()

		log := logger.NewLogger(new(bytes.Buffer))
		log.SetLevel(logger.ERROR)

		assert.PanicsWithValue(t, "boom", func() {
			_, _ = Run(log, func() { panic("boom") })
		})
		assert.Equal(t, logger.ERROR, log.GetLevel())

		logs, err := Run(log, func() { log.Error("after panic") })
		require.NoError(t, err)
		assert.Equal(t, "[ERROR] after panic\n", logs)
	})
}

func TestCaptureConcurrentWriters(t *testing.T) {
	t.Parallel()

	log := logger.NewLogger(new(bytes.Buffer))
	capture := New(log)
	require.NoError(t, capture.Start(WithPattern("%m%n")))

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				log.Info("line")
			}
		}()
	}
	wg.Wait()

	logs, err := capture.Stop()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(logs, "\n"), "\n")
	assert.Len(t, lines, writers*perWriter)
	for _, line := range lines {
		assert.Equal(t, "line", line)
	}
}

func TestCaptureInContext(t *testing.T) {
	t.Parallel()

	_, ok := FromContext(t.Context())
	assert.False(t, ok)

	capture := New(logger.NewLogger(new(bytes.Buffer)))
	ctx := WithContext(t.Context(), capture)

	fromCtx, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, capture, fromCtx)
}
