package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultConsoleTimeFormat = "15:04:05.0000"

/*
zerologHandler is slog.Handler which renders records using zerolog, meant
to be used with zerolog.ConsoleWriter for human readable output.
*/
type zerologHandler struct {
	log        zerolog.Logger
	opt        slog.HandlerOptions
	timeFormat string
	attrs      []groupedAttr
	groups     []string
}

type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

func newZerologHandler(out io.Writer, timeFormat string, opt *slog.HandlerOptions) *zerologHandler {
	if timeFormat == "" {
		timeFormat = defaultConsoleTimeFormat
	}
	h := &zerologHandler{log: zerolog.New(out), timeFormat: timeFormat}
	if opt != nil {
		h.opt = *opt
	}
	return h
}

func (h *zerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opt.Level != nil {
		minLevel = h.opt.Level.Level()
	}
	return level >= minLevel
}

func (h *zerologHandler) Handle(_ context.Context, r slog.Record) error {
	ev := h.log.WithLevel(zerologLevel(r.Level))
	if ev == nil {
		return nil
	}
	// time is formatted here, console writer prints strings it can't parse as is
	if h.timeFormat != "none" && !r.Time.IsZero() {
		ev.Str(zerolog.TimestampFieldName, r.Time.Format(h.timeFormat))
	}
	if h.opt.AddSource && r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		src := &slog.Source{Function: f.Function, File: f.File, Line: f.Line}
		trimSource(src)
		ev.Str(zerolog.CallerFieldName, fmt.Sprintf("%s:%d", src.Function, src.Line))
	}
	for _, ga := range h.attrs {
		h.addAttr(ev, ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.addAttr(ev, h.groups, a)
		return true
	})
	ev.Msg(r.Message)
	return nil
}

func (h *zerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := h.clone()
	for _, a := range attrs {
		c.attrs = append(c.attrs, groupedAttr{groups: h.groups, attr: a})
	}
	return c
}

func (h *zerologHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

func (h *zerologHandler) clone() *zerologHandler {
	c := *h
	c.attrs = append([]groupedAttr(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)
	return &c
}

func (h *zerologHandler) addAttr(ev *zerolog.Event, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if h.opt.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = h.opt.ReplaceAttr(groups, a)
		a.Value = a.Value.Resolve()
	}
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		sub := groups
		if a.Key != "" {
			sub = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			h.addAttr(ev, sub, ga)
		}
	case slog.KindString:
		ev.Str(key, a.Value.String())
	case slog.KindInt64:
		ev.Int64(key, a.Value.Int64())
	case slog.KindUint64:
		ev.Uint64(key, a.Value.Uint64())
	case slog.KindFloat64:
		ev.Float64(key, a.Value.Float64())
	case slog.KindBool:
		ev.Bool(key, a.Value.Bool())
	case slog.KindDuration:
		ev.Dur(key, a.Value.Duration())
	case slog.KindTime:
		ev.Str(key, a.Value.Time().Format(time.RFC3339Nano))
	default:
		switch v := a.Value.Any().(type) {
		case error:
			ev.AnErr(key, v)
		case fmt.Stringer:
			ev.Stringer(key, v)
		default:
			ev.Interface(key, v)
		}
	}
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l >= slog.LevelError:
		return zerolog.ErrorLevel
	case l >= slog.LevelWarn:
		return zerolog.WarnLevel
	case l >= slog.LevelInfo:
		return zerolog.InfoLevel
	case l >= slog.LevelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}
