package log

import (
	"context"
	"fmt"
	"strings"
)

// Logger is implemented by every log backend the pool, breaker and executor
// can be handed. Implementations must be safe for concurrent use.
type Logger interface {
	Log(ctx context.Context, level Level, msg string, fields ...Field)
	With(fields ...Field) Logger
	WithGroup(name string) Logger
	Enabled(level Level) bool
	Sync(ctx context.Context) error
}

// Level orders entries by severity; smaller is more severe, so a logger at
// LevelWarn drops LevelInfo and LevelDebug.
type Level uint8

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var levelNames = [...]string{
	LevelError: "error",
	LevelWarn:  "warn",
	LevelInfo:  "info",
	LevelDebug: "debug",
}

func (level Level) String() string {
	if int(level) < len(levelNames) {
		return levelNames[level]
	}

	return "unknown"
}

// ParseLevel accepts the LOG_LEVEL spellings: debug, info, warn or warning,
// and error, in any case.
func ParseLevel(lvl string) (Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(lvl))
	if normalized == "warning" {
		normalized = "warn"
	}

	for i, name := range levelNames {
		if name == normalized {
			return Level(i), nil
		}
	}

	return LevelInfo, fmt.Errorf("not a valid Level: %q", lvl)
}
