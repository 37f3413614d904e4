package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

// Logger writes one JSON object per line through a slog JSON handler. Every
// entry carries a "ts" field formatted in the configured location and a
// lowercase "level" field.
type Logger struct {
	h         slog.Handler
	loc       *time.Location
	component string
}

// New returns a Logger writing to stdout.
func New(loc *time.Location) *Logger {
	return NewWithWriter(os.Stdout, loc)
}

// NewWithWriter returns a Logger writing to w.
func NewWithWriter(w io.Writer, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceAttr(loc),
	})
	return &Logger{h: h, loc: loc}
}

func replaceAttr(loc *time.Location) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}
		switch a.Key {
		case slog.TimeKey:
			return slog.String("ts", a.Value.Time().In(loc).Format(time.RFC3339Nano))
		case slog.LevelKey:
			if lvl, ok := a.Value.Any().(slog.Level); ok {
				return slog.String(slog.LevelKey, strings.ToLower(lvl.String()))
			}
		}
		return a
	}
}

// Component returns a logger that stamps every entry with the given component name.
// The returned logger shares the handler, and so the writer lock, of its parent.
func (l *Logger) Component(name string) *Logger {
	return &Logger{h: l.h, loc: l.loc, component: name}
}

// Location returns the time zone used for timestamps.
func (l *Logger) Location() *time.Location {
	return l.loc
}

// Info logs msg at info level.
func (l *Logger) Info(msg string, fields map[string]any) {
	l.emit(slog.LevelInfo, msg, fields)
}

// Warn logs msg at warn level.
func (l *Logger) Warn(msg string, fields map[string]any) {
	l.emit(slog.LevelWarn, msg, fields)
}

// Error logs msg at error level with the error message under "error".
func (l *Logger) Error(msg string, err error, fields map[string]any) {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if err != nil {
		out["error"] = err.Error()
	}
	l.emit(slog.LevelError, msg, out)
}

// Log writes a pre-built entry. An explicit "level" wins; otherwise the level
// is error when status is "error" and info otherwise. The message is taken
// from "msg", falling back to "event".
func (l *Logger) Log(data map[string]any) {
	fields := make(map[string]any, len(data))
	for k, v := range data {
		fields[k] = v
	}

	level := slog.LevelInfo
	if s, ok := fields["level"].(string); ok {
		level = parseLevel(s)
	} else if fields["status"] == "error" {
		level = slog.LevelError
	}
	delete(fields, "level")

	msg, _ := fields["msg"].(string)
	delete(fields, "msg")
	if msg == "" {
		msg, _ = fields["event"].(string)
	}
	l.emit(level, msg, fields)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func (l *Logger) emit(level slog.Level, msg string, fields map[string]any) {
	r := slog.NewRecord(time.Now(), level, msg, 0)
	if _, ok := fields["component"]; !ok && l.component != "" {
		r.AddAttrs(slog.String("component", l.component))
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.AddAttrs(slog.Any(k, fields[k]))
	}
	_ = l.h.Handle(context.Background(), r)
}

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
