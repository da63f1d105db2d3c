package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var row map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &row))
		out = append(out, row)
	}
	require.NoError(t, sc.Err())
	return out
}

func events(ids ...string) []domain.EnrichedEvent {
	out := make([]domain.EnrichedEvent, len(ids))
	for i, id := range ids {
		out[i] = domain.EnrichedEvent{Event: domain.Event{ID: id, State: "CA"}, MatchSource: domain.MatchNone}
	}
	return out
}

func TestWriter_AppendsBatchesWithinRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	w := NewWriter(path, slog.Default())
	ctx := context.Background()

	require.NoError(t, w.LoadBatch(ctx, "run-1", events("1", "2")))
	require.NoError(t, w.LoadBatch(ctx, "run-1", events("3")))
	require.NoError(t, w.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 3)
	assert.Equal(t, "1", lines[0]["id"])
	assert.Equal(t, "3", lines[2]["id"])
	assert.Nil(t, lines[0]["fips"])
	assert.Equal(t, "none", lines[0]["match_source"])
}

func TestWriter_NewRunTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w := NewWriter(path, slog.Default())
	ctx := context.Background()

	require.NoError(t, w.LoadBatch(ctx, "run-1", events("1", "2")))
	require.NoError(t, w.LoadBatch(ctx, "run-2", events("9")))
	require.NoError(t, w.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "9", lines[0]["id"])
}

func TestWriter_CancelledContext(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "events.jsonl"), slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.LoadBatch(ctx, "run-1", events("1"))
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, w.Close())
}

func TestWriter_FailedBatchLeavesNoPartialLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w := NewWriter(path, slog.Default())
	ctx := context.Background()

	bad := events("1", "2")
	nan := math.NaN()
	bad[1].Income = &nan

	err := w.LoadBatch(ctx, "run-1", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode event 2")

	// A retry of the corrected batch writes each event once.
	require.NoError(t, w.LoadBatch(ctx, "run-1", events("1", "2")))
	require.NoError(t, w.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "1", lines[0]["id"])
	assert.Equal(t, "2", lines[1]["id"])
}
