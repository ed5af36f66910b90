package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBLogHandler(t *testing.T) {
	store := newMemoryStore()
	jobID := uuid.New()

	logger := slog.New(NewDBLogHandler(store, jobID)).
		With("job", "abc").
		WithGroup("branch").
		With("depth", 2)

	logger.Info("Branch failed", "query", "q1", "error", errors.New("timeout"), slog.Group("gate", "held", 1))
	logger.Debug("dropped")

	logs, err := store.GetJobLogs(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "INFO", logs[0].Level)
	assert.Equal(t, "Branch failed", logs[0].Message)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(logs[0].Metadata, &meta))
	assert.Equal(t, map[string]interface{}{
		"job":              "abc",
		"branch.depth":     float64(2),
		"branch.query":     "q1",
		"branch.error":     "timeout",
		"branch.gate.held": float64(1),
	}, meta)
}

func TestDBLogHandler_Mirror(t *testing.T) {
	store := newMemoryStore()
	mirror := &countingHandler{}
	logger := slog.New(NewDBLogHandler(store, uuid.New()).WithMirror(mirror))

	logger.Debug("console only")
	logger.Warn("both")

	assert.Equal(t, 2, mirror.n)
	total := 0
	for _, entries := range store.logs {
		total += len(entries)
	}
	assert.Equal(t, 1, total)
}

type countingHandler struct{ n int }

func (h *countingHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h *countingHandler) Handle(context.Context, slog.Record) error { h.n++; return nil }
func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h *countingHandler) WithGroup(string) slog.Handler             { return h }
