package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey struct{}

func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps LOG_LEVEL values onto slog levels; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request logger, tagged with the span id when the
// caller is inside a sampled span (order workflows, store calls).
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if v, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && v != nil {
		l = v
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsSampled() && sc.HasSpanID() {
		l = l.With("span_id", sc.SpanID().String())
	}
	return l
}
