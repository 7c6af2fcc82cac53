package zap

import (
	"context"
	"time"

	logpkg "github.com/salespulse/lib-dbguard/dbguard/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger adapts a *zap.Logger to log.Logger. The zero value and a nil
// pointer both behave as a no-op logger.
type Logger struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

var _ logpkg.Logger = (*Logger)(nil)

var zapLevels = [...]zapcore.Level{
	logpkg.LevelError: zapcore.ErrorLevel,
	logpkg.LevelWarn:  zapcore.WarnLevel,
	logpkg.LevelInfo:  zapcore.InfoLevel,
	logpkg.LevelDebug: zapcore.DebugLevel,
}

func toZapLevel(level logpkg.Level) zapcore.Level {
	if int(level) < len(zapLevels) {
		return zapLevels[level]
	}

	return zapcore.InfoLevel
}

func (l *Logger) core() *zap.Logger {
	if l == nil || l.base == nil {
		return zap.NewNop()
	}

	return l.base
}

func (l *Logger) derive(base *zap.Logger) *Logger {
	if l == nil {
		return &Logger{base: base}
	}

	return &Logger{base: base, level: l.level}
}

// Log writes one entry. Entries logged inside a db.execute span carry its
// trace_id and span_id.
func (l *Logger) Log(ctx context.Context, level logpkg.Level, msg string, fields ...logpkg.Field) {
	ce := l.core().Check(toZapLevel(level), sanitizeString(msg))
	if ce == nil {
		return
	}

	ce.Write(append(logFieldsToZap(fields), traceFields(ctx)...)...)
}

func traceFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}

	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

//nolint:ireturn
func (l *Logger) With(fields ...logpkg.Field) logpkg.Logger {
	return l.derive(l.core().With(logFieldsToZap(fields)...))
}

// WithGroup nests the fields of later entries under name.
//
//nolint:ireturn
func (l *Logger) WithGroup(name string) logpkg.Logger {
	return l.derive(l.core().With(zap.Namespace(name)))
}

func (l *Logger) Enabled(level logpkg.Level) bool {
	return l.core().Core().Enabled(toZapLevel(level))
}

// Sync flushes buffered entries. It gives up when ctx ends; the flush itself
// keeps running in the background.
func (l *Logger) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	base := l.core()
	flushed := make(chan error, 1)

	go func() { flushed <- base.Sync() }()

	select {
	case err := <-flushed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Level is the handle for changing the level at runtime.
func (l *Logger) Level() zap.AtomicLevel {
	return l.level
}

// logFieldsToZap maps fields to typed zap fields. String and error values
// pass through redactCredentials so a DSN never reaches the log sink.
func logFieldsToZap(fields []logpkg.Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))

	for i, f := range fields {
		switch v := f.Value.(type) {
		case string:
			zapFields[i] = zap.String(f.Key, redactCredentials(v))
		case error:
			zapFields[i] = zap.String(f.Key, redactCredentials(v.Error()))
		case int:
			zapFields[i] = zap.Int(f.Key, v)
		case int64:
			zapFields[i] = zap.Int64(f.Key, v)
		case bool:
			zapFields[i] = zap.Bool(f.Key, v)
		case time.Duration:
			zapFields[i] = zap.Duration(f.Key, v)
		default:
			zapFields[i] = zap.Any(f.Key, v)
		}
	}

	return zapFields
}
