// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package colorlog provides a terminal slog.Handler for the earth CLI.
package colorlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// Handler writes one colored line per record.
type Handler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewHandler returns a Handler writing records at or above level to w.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(Gray.Render(r.Time.Format(time.TimeOnly)))
	b.WriteByte(' ')

	switch {
	case r.Level >= slog.LevelError:
		b.WriteString(ErrorBadge.Render("✗ ERROR") + " " + Fail.Render(r.Message))
	case r.Level >= slog.LevelWarn:
		b.WriteString(WarningBadge.Render("WARNING") + " " + Warning.Render(r.Message))
	case r.Level >= slog.LevelInfo:
		b.WriteString(Default.Render(r.Message))
	default:
		b.WriteString(Muted.Render(r.Message))
	}

	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix, ga)
		}
		return
	}
	b.WriteString(" " + Muted.Render(prefix+a.Key) + "=" + fmt.Sprintf("%v", a.Value.Any()))
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(h.groups) > 0 {
		attrs = []slog.Attr{{Key: strings.Join(h.groups, "."), Value: slog.GroupValue(attrs...)}}
	}
	return &Handler{
		mu:     h.mu,
		w:      h.w,
		level:  h.level,
		attrs:  append(slices.Clone(h.attrs), attrs...),
		groups: h.groups,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{
		mu:     h.mu,
		w:      h.w,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(slices.Clone(h.groups), name),
	}
}

// Println renders text in style on its own line, for CLI status lines outside the log stream.
func Println(w io.Writer, style interface{ Render(...string) string }, text string) {
	fmt.Fprintln(w, style.Render(text))
}
