package monitor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

type queryIDKey struct{}

// WithQueryID tags ctx with the round-trip ID printed by CustomHandler.
func WithQueryID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, queryIDKey{}, id)
}

// QueryID returns the round-trip ID carried by ctx, if any.
func QueryID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(queryIDKey{}).(string)
	return id
}

// CustomHandler implements slog.Handler with a
// [TIME] [LEVEL] [QUERY_ID] message k=v format.
type CustomHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	prefix string
}

func NewCustomHandler(w io.Writer, opts slog.HandlerOptions) *CustomHandler {
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	return &CustomHandler{
		mu:   &sync.Mutex{},
		w:    w,
		opts: opts,
	}
}

func (h *CustomHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *CustomHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := bytes.NewBuffer(nil)

	fmt.Fprintf(buf, "[%s] [%s]", r.Time.Format("2006-01-02 15:04:05"), r.Level)
	if id := QueryID(ctx); id != "" {
		fmt.Fprintf(buf, " [%s]", id)
	}
	fmt.Fprintf(buf, " %s", r.Message)

	for _, a := range h.attrs {
		h.appendAttr(buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(buf, h.prefix, a)
		return true
	})
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *CustomHandler) appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	val := a.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		for _, ga := range val.Group() {
			h.appendAttr(buf, prefix+a.Key+".", ga)
		}
		return
	}

	buf.WriteString(" ")
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteString("=")

	switch val.Kind() {
	case slog.KindString:
		fmt.Fprintf(buf, "%q", val.String())
	case slog.KindTime:
		buf.WriteString(val.Time().Format(time.RFC3339))
	case slog.KindDuration:
		buf.WriteString(val.Duration().String())
	default:
		fmt.Fprintf(buf, "%v", val.Any())
	}
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	scoped := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	scoped = append(scoped, h.attrs...)
	for _, a := range attrs {
		scoped = append(scoped, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &CustomHandler{mu: h.mu, w: h.w, opts: h.opts, attrs: scoped, prefix: h.prefix}
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &CustomHandler{mu: h.mu, w: h.w, opts: h.opts, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
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

// SetupSlog installs CustomHandler on stderr as the default logger.
func SetupSlog(levelStr string) {
	handler := NewCustomHandler(os.Stderr, slog.HandlerOptions{
		Level: ParseLevel(levelStr),
	})
	slog.SetDefault(slog.New(handler))
}

// PrintBanner prints the startup banner
func PrintBanner(w io.Writer) {
	banner := `
  ___  ____  ____ ___ _____
 / _ \|  _ \| __ )_ _|_   _|
| | | | |_) |  _ \| |  | |
| |_| |  _ <| |_) | |  | |
 \___/|_| \_\____/___| |_|
`
	fmt.Fprintln(w, banner)
}
