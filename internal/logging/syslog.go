package logging

import (
	"context"
	"io"
	"log/slog"
)

// priorityLogger is the part of *syslog.Writer used here: one method per
// syslog priority.
type priorityLogger interface {
	Debug(m string) error
	Info(m string) error
	Warning(m string) error
	Err(m string) error
}

// priorityWriter sends every write at one fixed priority.
type priorityWriter func(string) error

func (p priorityWriter) Write(b []byte) (int, error) {
	if err := p(string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

// syslogHandler sends each record at the syslog priority matching its
// level. Records are also copied to tee.
type syslogHandler struct {
	debug, info, warn, err slog.Handler
}

func newSyslogHandler(w priorityLogger, tee io.Writer, newHandler func(io.Writer) slog.Handler) *syslogHandler {
	at := func(write func(string) error) slog.Handler {
		return newHandler(io.MultiWriter(priorityWriter(write), tee))
	}
	return &syslogHandler{
		debug: at(w.Debug),
		info:  at(w.Info),
		warn:  at(w.Warning),
		err:   at(w.Err),
	}
}

func (h *syslogHandler) pick(level slog.Level) slog.Handler {
	switch {
	case level >= slog.LevelError:
		return h.err
	case level >= slog.LevelWarn:
		return h.warn
	case level >= slog.LevelInfo:
		return h.info
	default:
		return h.debug
	}
}

func (h *syslogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.pick(level).Enabled(ctx, level)
}

func (h *syslogHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.pick(r.Level).Handle(ctx, r)
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(inner slog.Handler) slog.Handler { return inner.WithAttrs(attrs) })
}

func (h *syslogHandler) WithGroup(name string) slog.Handler {
	return h.each(func(inner slog.Handler) slog.Handler { return inner.WithGroup(name) })
}

func (h *syslogHandler) each(f func(slog.Handler) slog.Handler) *syslogHandler {
	return &syslogHandler{debug: f(h.debug), info: f(h.info), warn: f(h.warn), err: f(h.err)}
}
