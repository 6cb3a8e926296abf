package logger_i

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/akolanti/docchat/internal/config"
)

type Logger struct {
	inner *slog.Logger
}

func Init() {
	InitWithLevel("")
}

// InitWithLevel installs the default handler. An empty level keeps debug in
// dev and config.LOG_LEVEL_PROD in prod.
func InitWithLevel(level string) {
	install(os.Stdout, level)
}

func install(w io.Writer, level string) {
	options := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}

	var handler slog.Handler
	if config.IS_PROD {
		options.Level = config.LOG_LEVEL_PROD
		if level != "" {
			options.Level = parseLevel(level)
		}
		handler = slog.NewJSONHandler(w, options)
	} else {
		if level != "" {
			options.Level = parseLevel(level)
		}
		handler = slog.NewTextHandler(w, options)
	}
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLogger(section string) *Logger {
	return &Logger{
		inner: slog.Default().With("component", section),
	}
}

func (l *Logger) Info(msg string, args ...any) {
	l.inner.Info(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if !l.inner.Enabled(context.Background(), level) {
		return
	}
	l.inner.Log(context.Background(), level, msg, args...)
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		inner: l.inner.With(args...),
	}
}

// WithTrace tags the logger with the trace id carried by ctx, if any.
func (l *Logger) WithTrace(ctx context.Context) *Logger {
	if trace := config.TraceID(ctx); trace != "" {
		return l.With("traceId", trace)
	}
	return l
}
