package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
)

// DBLogHandler is a slog.Handler that writes records to the job's log table.
// Attributes become the record's metadata; groups are flattened into dotted keys.
type DBLogHandler struct {
	writer LogWriter
	jobID  uuid.UUID
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
	mirror slog.Handler
}

func NewDBLogHandler(writer LogWriter, jobID uuid.UUID) *DBLogHandler {
	return &DBLogHandler{
		writer: writer,
		jobID:  jobID,
		level:  slog.LevelInfo,
	}
}

// WithMirror also forwards every record to h, typically the console handler.
func (h *DBLogHandler) WithMirror(next slog.Handler) *DBLogHandler {
	c := h.clone()
	c.mirror = next
	return c
}

func (h *DBLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= h.level.Level() {
		return true
	}
	return h.mirror != nil && h.mirror.Enabled(ctx, level)
}

func (h *DBLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.mirror != nil && h.mirror.Enabled(ctx, r.Level) {
		_ = h.mirror.Handle(ctx, r.Clone())
	}
	if r.Level < h.level.Level() {
		return nil
	}

	meta := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		flatten(meta, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(meta, h.prefix, a)
		return true
	})

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		metaJSON = []byte("{}")
	}

	// Logs must persist even after the job's context is cancelled.
	return h.writer.AppendLog(context.Background(), h.jobID, r.Time, r.Level.String(), r.Message, metaJSON)
}

func (h *DBLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		c.attrs = append(c.attrs, a)
	}
	if h.mirror != nil {
		c.mirror = h.mirror.WithAttrs(attrs)
	}
	return c
}

func (h *DBLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	if h.mirror != nil {
		c.mirror = h.mirror.WithGroup(name)
	}
	return c
}

func (h *DBLogHandler) clone() *DBLogHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

func flatten(dst map[string]interface{}, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			flatten(dst, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}

	switch val := v.Any().(type) {
	case error:
		dst[prefix+a.Key] = val.Error()
	default:
		dst[prefix+a.Key] = val
	}
}
