// Package logx provides a log/slog handler that writes one JSON object per
// record, sending error records to a separate writer when one is set.
package logx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"sync"
)

type jsonhandler struct {
	Out    io.Writer
	Err    io.Writer
	Option *slog.HandlerOptions
	mu     *sync.Mutex
	groups []string
	attrs  map[string]any
}

var _ slog.Handler = &jsonhandler{}

type Option func(*jsonhandler)

func WithErrorWriter(w io.Writer) Option {
	return func(h *jsonhandler) {
		h.Err = w
	}
}

func WithLevel(level slog.Leveler) Option {
	return func(h *jsonhandler) {
		h.Option.Level = level
	}
}

func WithAddSource(add bool) Option {
	return func(h *jsonhandler) {
		h.Option.AddSource = add
	}
}

func WithReplaceAttr(fn func(groups []string, a slog.Attr) slog.Attr) Option {
	return func(h *jsonhandler) {
		h.Option.ReplaceAttr = fn
	}
}

func New(o io.Writer, opts ...Option) *jsonhandler {
	if o == nil {
		o = io.Discard
	}
	var s jsonhandler
	s.Option = &slog.HandlerOptions{}
	s.Out = o
	s.mu = &sync.Mutex{}
	s.attrs = map[string]any{}
	for _, v := range opts {
		v(&s)
	}
	if s.Err == nil {
		s.Err = s.Out
	}
	return &s
}

// NewLogger wraps New in a *slog.Logger.
func NewLogger(o io.Writer, opts ...Option) *slog.Logger {
	return slog.New(New(o, opts...))
}

// Nop returns a logger that drops every record.
func Nop() *slog.Logger {
	return slog.New(New(io.Discard, WithLevel(slog.Level(127))))
}

func (s *jsonhandler) clone() *jsonhandler {
	return &jsonhandler{
		Out:    s.Out,
		Err:    s.Err,
		Option: s.Option,
		mu:     s.mu,
		groups: append([]string(nil), s.groups...),
		attrs:  cloneMap(s.attrs),
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = cloneMap(sub)
		}
		out[k] = v
	}
	return out
}

func (s *jsonhandler) Enabled(ctx context.Context, l slog.Level) bool {
	min := slog.LevelInfo
	if s.Option.Level != nil {
		min = s.Option.Level.Level()
	}
	return l >= min
}

// target returns the map that attributes of the innermost open group go to.
func (s *jsonhandler) target(root map[string]any) map[string]any {
	m := root
	for _, g := range s.groups {
		sub, ok := m[g].(map[string]any)
		if !ok {
			sub = map[string]any{}
			m[g] = sub
		}
		m = sub
	}
	return m
}

func (s *jsonhandler) put(m map[string]any, groups []string, a slog.Attr) {
	if s.Option.ReplaceAttr != nil && a.Value.Kind() != slog.KindGroup {
		a = s.Option.ReplaceAttr(groups, a)
	}
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		if len(attrs) == 0 {
			return
		}
		sub := m
		if a.Key != "" {
			sub = map[string]any{}
			m[a.Key] = sub
			groups = append(groups, a.Key)
		}
		for _, v := range attrs {
			s.put(sub, groups, v)
		}
		return
	}
	m[a.Key] = a.Value.Any()
}

func (s *jsonhandler) Handle(ctx context.Context, r slog.Record) (e error) {
	if !s.Enabled(ctx, r.Level) {
		return
	}
	var msg = cloneMap(s.attrs)
	builtin := []slog.Attr{
		slog.String(slog.MessageKey, r.Message),
		slog.String(slog.TimeKey, r.Time.String()),
		slog.String(slog.LevelKey, r.Level.String()),
	}
	if s.Option.AddSource && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		builtin = append(builtin, slog.Any(slog.SourceKey, &slog.Source{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		}))
	}
	for _, v := range builtin {
		s.put(msg, nil, v)
	}

	target := s.target(msg)
	r.Attrs(func(v slog.Attr) bool {
		s.put(target, s.groups, v)
		return true
	})

	w := s.Out
	if r.Level >= slog.LevelError && s.Err != nil {
		w = s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	e = enc.Encode(msg)
	return
}

func (s *jsonhandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	a := s.clone()
	target := a.target(a.attrs)
	for _, v := range attrs {
		a.put(target, a.groups, v)
	}
	return a
}

func (s *jsonhandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	a := s.clone()
	a.groups = append(a.groups, name)
	return a
}
