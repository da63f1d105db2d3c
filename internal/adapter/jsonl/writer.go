// Package jsonl writes enriched events as JSON Lines, one object per event.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

// Writer appends enriched events to a file. The file is truncated when the
// first batch of a new run arrives. It implements pipeline.BatchLoader.
type Writer struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	file  *os.File
	buf   *bufio.Writer
	runID string
}

// NewWriter returns a writer for path. The file is created lazily.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "jsonl" }

// LoadBatch writes one line per event and flushes before returning. The batch
// is encoded in full before anything reaches the file, so a failed batch
// leaves no partial lines behind.
func (w *Writer) LoadBatch(ctx context.Context, runID string, events []domain.EnrichedEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if runID != w.runID || w.file == nil {
		if err := w.reopen(runID); err != nil {
			return err
		}
	}

	var batch bytes.Buffer
	enc := json.NewEncoder(&batch)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("encode event %s: %w", events[i].ID, err)
		}
	}
	if _, err := w.buf.Write(batch.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", w.path, err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) reopen(runID string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	w.file = f
	w.buf = bufio.NewWriter(f)
	w.runID = runID
	w.logger.Debug("jsonl output opened", "path", w.path, "run_id", runID)
	return nil
}

func (w *Writer) closeLocked() error {
	if w.file == nil {
		return nil
	}
	flushErr := w.buf.Flush()
	closeErr := w.file.Close()
	w.file, w.buf = nil, nil
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", w.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", w.path, closeErr)
	}
	return nil
}
