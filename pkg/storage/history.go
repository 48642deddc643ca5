// Package storage appends enriched tick records to a JSON-lines history log.
package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/srodi/os-atlas/pkg/types"
)

const (
	DefaultDir  = "os_storage"
	HistoryFile = "snapshot_history.jsonl"
)

// Sink durably records one tick.
type Sink interface {
	Append(rec types.Record) error
}

// HistoryWriter appends one JSON object per line. Lines are never rewritten.
type HistoryWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenHistory creates dir if needed and opens the history file for appending.
func OpenHistory(dir string) (*HistoryWriter, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history dir: %w", err)
	}
	path := filepath.Join(dir, HistoryFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening history file: %w", err)
	}
	return &HistoryWriter{path: path, f: f}, nil
}

// Path is the location of the history file.
func (w *HistoryWriter) Path() string { return w.path }

// Append writes rec as a single line with one write call.
func (w *HistoryWriter) Append(rec types.Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return errors.New("history writer is closed")
	}
	if _, err := w.f.Write(line); err != nil {
		return fmt.Errorf("appending record: %w", err)
	}
	return nil
}

// Close releases the file handle.
func (w *HistoryWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// ErrNoHistory is returned by LoadLatest when the log holds no records.
var ErrNoHistory = errors.New("no snapshot history found")

// LoadLatest returns the newest record of the history file at path. Lines
// that do not decode, such as a record still being appended, are skipped and
// the previous good record wins. An error is returned only when no line decodes.
func LoadLatest(path string, logger zerolog.Logger) (*types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoHistory
		}
		return nil, err
	}
	defer f.Close()

	var (
		latest  *types.Record
		lastErr error
		lines   int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		lines++
		var rec types.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Debug().Err(err).Int("line", lines).Str("path", path).Msg("skipping undecodable history line")
			lastErr = err
			continue
		}
		latest = &rec
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	if latest != nil {
		return latest, nil
	}
	if lines == 0 {
		return nil, ErrNoHistory
	}
	return nil, fmt.Errorf("decoding history: no readable record in %d lines: %w", lines, lastErr)
}
