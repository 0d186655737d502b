package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Key constants for structured log fields.
const (
	KeyComponent  = "component"
	KeyDurationMs = "durationMs"
	KeyError      = "error"
	KeyRequestID  = "requestId"
	KeyScanCount  = "scanCount"
	KeySendCount  = "sendCount"
	KeyCollector  = "collector"
)

type contextKey struct{}

// rootHandler forwards to whichever handler Init installed last, so loggers
// built at package init time follow later reconfiguration.
type rootHandler struct {
	current *atomic.Pointer[slog.Handler]
	attrs   []slog.Attr
	groups  []string
}

func (h *rootHandler) resolve() slog.Handler {
	handler := *h.current.Load()
	for _, g := range h.groups {
		handler = handler.WithGroup(g)
	}
	if len(h.attrs) > 0 {
		handler = handler.WithAttrs(h.attrs)
	}
	return handler
}

func (h *rootHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.resolve().Enabled(ctx, level)
}

func (h *rootHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.resolve().Handle(ctx, record)
}

func (h *rootHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &rootHandler{current: h.current, groups: append([]string(nil), h.groups...)}
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	next.attrs = append(next.attrs, attrs...)
	return next
}

func (h *rootHandler) WithGroup(name string) slog.Handler {
	next := &rootHandler{current: h.current, attrs: append([]slog.Attr(nil), h.attrs...)}
	next.groups = make([]string, 0, len(h.groups)+1)
	next.groups = append(next.groups, h.groups...)
	next.groups = append(next.groups, name)
	return next
}

var (
	active        atomic.Pointer[slog.Handler]
	root          = &rootHandler{current: &active}
	defaultLogger = slog.New(root)
)

func init() {
	var h slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	active.Store(&h)
	slog.SetDefault(defaultLogger)
}

// Init installs the process-wide handler. format is "json" or "text",
// level one of debug/info/warn/error. A nil output means stdout.
func Init(format, level string, output io.Writer) {
	if output == nil {
		output = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = slog.NewTextHandler(output, opts)
	}
	active.Store(&h)
	slog.SetDefault(defaultLogger)
}

// Setup wires Init to an optional rotating log file. When file is empty logs
// go to stdout only; otherwise they are tee'd to stdout and the file. The
// returned closer must be called on shutdown.
func Setup(format, level, file string, maxSizeMB, maxBackups int) (io.Closer, error) {
	if file == "" {
		Init(format, level, os.Stdout)
		return nopCloser{}, nil
	}
	rw, err := NewRotatingWriter(file, maxSizeMB, maxBackups)
	if err != nil {
		Init(format, level, os.Stdout)
		return nopCloser{}, err
	}
	Init(format, level, TeeWriter(os.Stdout, rw))
	return rw, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// L returns a logger tagged with the given component name.
func L(component string) *slog.Logger {
	return defaultLogger.With(slog.String(KeyComponent, component))
}

// WithRequest attaches a delivery correlation id.
func WithRequest(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With(slog.String(KeyRequestID, requestID))
}

// NewContext returns a new context carrying the given logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger from context, falling back to the default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
