// Package history keeps a JSON record of every snapshot, audit and check run
// so earlier outcomes can be listed and inspected.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"

	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("history entry not found")

// DefaultDir returns $XDG_DATA_HOME/changeguard/history.
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "changeguard", "history")
}

// Entry is one recorded run.
type Entry struct {
	ID           string          `json:"id"`
	RunID        string          `json:"run_id,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Operation    types.Operation `json:"operation"`
	Root         string          `json:"root"`
	ManifestPath string          `json:"manifest_path,omitempty"`
	Method       string          `json:"method,omitempty"`
	Passed       bool            `json:"passed"`
	Summary      Summary         `json:"summary"`
	Failures     []FailureRecord `json:"failures"`
}

// Summary holds the counts of a run.
type Summary struct {
	Files    int           `json:"files"`
	Ignored  int           `json:"ignored"`
	Failures int           `json:"failures"`
	Delta    int           `json:"delta,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// FailureRecord is the persisted form of a types.Failure.
type FailureRecord struct {
	Kind   types.FailureKind `json:"kind"`
	Path   string            `json:"path,omitempty"`
	Detail string            `json:"detail"`
}

// History stores entries as one JSON file each in a directory.
type History struct {
	dir string
	mu  sync.Mutex
}

// New returns a History rooted at dir. The directory is created on the first
// Record.
func New(dir string) (*History, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &History{dir: dir}, nil
}

// Dir returns the directory entries are stored in.
func (h *History) Dir() string {
	return h.dir
}

// Record persists s and returns the new entry.
func (h *History) Record(s *types.Summary) (*Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry := &Entry{
		ID:           generateID(s.Operation),
		RunID:        s.RunID,
		Timestamp:    time.Now().UTC(),
		Operation:    s.Operation,
		Root:         s.Root,
		ManifestPath: s.Manifest,
		Method:       s.Method,
		Passed:       s.Passed(),
		Summary: Summary{
			Files:    s.Files,
			Ignored:  s.Ignored,
			Failures: len(s.Failures),
			Delta:    len(s.Delta),
			Elapsed:  s.Elapsed,
		},
		Failures: make([]FailureRecord, 0, len(s.Failures)),
	}
	for _, f := range s.Failures {
		entry.Failures = append(entry.Failures, FailureRecord{Kind: f.Kind, Path: f.Path, Detail: f.Message()})
	}

	if err := h.write(entry); err != nil {
		return nil, fmt.Errorf("failed to write history entry: %w", err)
	}
	return entry, nil
}

func (h *History) write(entry *Entry) error {
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(h.dir, "."+entry.ID+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(h.dir, entry.ID+".json")); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// List returns entries newest first. limit <= 0 returns all of them.
// Unreadable files are skipped.
func (h *History) List(limit int) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readAll()
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry with the given ID. A unique ID prefix is accepted.
func (h *History) Get(id string) (*Entry, error) {
	if id == "" {
		return nil, errors.New("entry ID cannot be empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readAll()
	if err != nil {
		return nil, err
	}

	var matches []Entry
	for _, e := range entries {
		if e.ID == id {
			return &e, nil
		}
		if strings.HasPrefix(e.ID, id) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous history ID %q matches %d entries", id, len(matches))
	}
}

// Cleanup removes entries recorded more than retentionDays ago and returns
// how many were removed. retentionDays <= 0 keeps everything.
func (h *History) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.readAll()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, e := range entries {
		if !e.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(h.dir, e.ID+".json")); err != nil && !os.IsNotExist(err) {
			continue
		}
		removed++
	}
	return removed, nil
}

func (h *History) readAll() ([]Entry, error) {
	files, err := os.ReadDir(h.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	entries := []Entry{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(h.dir, f.Name()))
		if err != nil {
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil || e.ID == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// generateID returns an ID like "audit-2026-06-15T10-30-00-1b9d6bcd".
func generateID(op types.Operation) string {
	ts := time.Now().UTC().Format("2006-01-02T15-04-05")
	return fmt.Sprintf("%s-%s-%s", op, ts, uuid.NewString()[:8])
}
