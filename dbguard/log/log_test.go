//go:build unit

package log

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	NopLogger
	enabled bool
	entries []recordedEntry
}

type recordedEntry struct {
	level  Level
	msg    string
	fields []Field
}

func (r *recordingLogger) Log(_ context.Context, level Level, msg string, fields ...Field) {
	r.entries = append(r.entries, recordedEntry{level: level, msg: msg, fields: fields})
}

func (r *recordingLogger) Enabled(Level) bool { return r.enabled }

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input       string
		expected    Level
		expectError bool
	}{
		{input: "debug", expected: LevelDebug},
		{input: "INFO", expected: LevelInfo},
		{input: "warning", expected: LevelWarn},
		{input: " warn ", expected: LevelWarn},
		{input: "error", expected: LevelError},
		{input: "fatal", expectError: true},
		{input: "Debug", expected: LevelDebug},
		{input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			level, err := ParseLevel(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "unknown", Level(42).String())
}

func TestFieldConstructors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	assert.Equal(t, Field{Key: "k", Value: "v"}, String("k", "v"))
	assert.Equal(t, Field{Key: "n", Value: 3}, Int("n", 3))
	assert.Equal(t, Field{Key: "n", Value: int64(3)}, Int64("n", 3))
	assert.Equal(t, Field{Key: "b", Value: true}, Bool("b", true))
	assert.Equal(t, Field{Key: "d", Value: time.Second}, Duration("d", time.Second))
	assert.Equal(t, Field{Key: "error", Value: boom}, Err(boom))
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	logger := NewNop()

	assert.False(t, logger.Enabled(LevelError))
	assert.Same(t, logger, logger.With(String("a", "b")))
	assert.Same(t, logger, logger.WithGroup("g"))
	assert.NoError(t, logger.Sync(context.Background()))
	assert.NotPanics(t, func() { logger.Log(context.Background(), LevelInfo, "dropped") })
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	assert.IsType(t, &NopLogger{}, OrNop(nil))

	custom := &recordingLogger{}
	assert.Same(t, custom, OrNop(custom))
}

func TestSafeError(t *testing.T) {
	t.Parallel()

	err := errors.New("password=secret rejected")

	t.Run("development logs the error", func(t *testing.T) {
		t.Parallel()

		logger := &recordingLogger{enabled: true}
		SafeError(logger, context.Background(), "query failed", err, false)

		require.Len(t, logger.entries, 1)
		assert.Equal(t, LevelError, logger.entries[0].level)
		assert.Equal(t, Err(err), logger.entries[0].fields[0])
	})

	t.Run("production logs only the type", func(t *testing.T) {
		t.Parallel()

		logger := &recordingLogger{enabled: true}
		SafeError(logger, context.Background(), "query failed", err, true)

		require.Len(t, logger.entries, 1)
		assert.Equal(t, String("error_type", "*errors.errorString"), logger.entries[0].fields[0])
	})

	t.Run("disabled level and nil inputs are ignored", func(t *testing.T) {
		t.Parallel()

		logger := &recordingLogger{enabled: false}
		SafeError(logger, context.Background(), "query failed", err, false)
		SafeError(nil, context.Background(), "query failed", err, false)
		SafeError(&recordingLogger{enabled: true}, context.Background(), "query failed", nil, false)

		assert.Empty(t, logger.entries)
	})
}
