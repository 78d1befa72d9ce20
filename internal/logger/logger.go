package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/oggyb/muzz-matchmaker/internal/config"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Options controls how the global logger renders records.
type Options struct {
	Level      string
	Format     Format
	Component  string
	WithSource bool
}

var defaultOptions = Options{Level: "info", Format: FormatText}

var (
	mu     sync.RWMutex
	global *slog.Logger
	out    io.Writer = os.Stdout
)

// InitFromConfig builds the global logger from the log section of the app config.
func InitFromConfig(c *config.Config) {
	if c == nil {
		Init(nil)
		return
	}
	Init(&Options{
		Level:      c.Log.Level,
		Format:     Format(strings.ToLower(c.Log.Format)),
		Component:  c.Log.Component,
		WithSource: c.Log.Source,
	})
}

// Init replaces the global logger. nil means defaults. Safe to call multiple times.
func Init(o *Options) {
	opts := defaultOptions
	if o != nil {
		opts = *o
	}

	mu.Lock()
	defer mu.Unlock()

	l := slog.New(&contextHandler{Handler: newHandler(out, opts)})
	if opts.Component != "" {
		l = l.With("component", opts.Component)
	}
	global = l
}

// SetOutput redirects the global logger. Takes effect on the next Init.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// L returns the global logger, initialising it with defaults on first use.
func L() *slog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	Init(nil)

	mu.RLock()
	defer mu.RUnlock()
	return global
}

func newHandler(w io.Writer, opts Options) slog.Handler {
	ho := &slog.HandlerOptions{
		Level:     parseLevel(opts.Level),
		AddSource: opts.WithSource,
	}
	if opts.Format == FormatJSON {
		return slog.NewJSONHandler(w, ho)
	}
	// text output is for humans; drop the sub-second noise
	ho.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey && len(groups) == 0 {
			return slog.String(slog.TimeKey, a.Value.Time().Format(time.DateTime))
		}
		return a
	}
	return slog.NewTextHandler(w, ho)
}

// contextHandler stamps the correlation id carried by the record's context,
// so InfoContext(ctx, ...) calls are traceable without going through For.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := CorrelationID(ctx); id != "" {
		r.AddAttrs(slog.String(correlationAttr, id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLevel(s string) slog.Leveler {
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
