package log

import "context"

// NopLogger discards everything. Components fall back to it when no logger is injected.
type NopLogger struct{}

//nolint:ireturn
func NewNop() Logger { return &NopLogger{} }

func (l *NopLogger) Log(context.Context, Level, string, ...Field) {}

//nolint:ireturn
func (l *NopLogger) With(...Field) Logger { return l }

//nolint:ireturn
func (l *NopLogger) WithGroup(string) Logger { return l }

func (l *NopLogger) Enabled(Level) bool { return false }

func (l *NopLogger) Sync(context.Context) error { return nil }

// OrNop returns logger, or a NopLogger when logger is nil.
//
//nolint:ireturn
func OrNop(logger Logger) Logger {
	if logger == nil {
		return &NopLogger{}
	}

	return logger
}
