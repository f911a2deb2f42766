package logger

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
)

// Printf adapts printf-style callbacks onto a structured logger.
func Printf(l *slog.Logger, level slog.Level) func(string, ...any) {
	return func(format string, args ...any) {
		if l == nil {
			return
		}
		msg := strings.TrimSpace(fmt.Sprintf(format, args...))
		l.Log(context.Background(), level, msg)
	}
}

// Std returns a stdlib logger that writes through l at the given level.
func Std(l *slog.Logger, level slog.Level) *log.Logger {
	return slog.NewLogLogger(l.Handler(), level)
}
