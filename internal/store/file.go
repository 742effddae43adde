package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileHistory keeps prediction history in a single JSON document, one
// newest-first list per task.
type FileHistory struct {
	path       string
	maxEntries int

	mu      sync.Mutex
	nextID  uint
	entries map[string][]HistoryEntry
}

// OpenFile loads or creates the history file at path.
func OpenFile(path string, maxEntries int) (*FileHistory, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultHistoryCap
	}
	h := &FileHistory{path: path, maxEntries: maxEntries, nextID: 1, entries: map[string][]HistoryEntry{}}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return h, nil
	case err != nil:
		return nil, fmt.Errorf("read history file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return h, nil
	}
	if err := json.Unmarshal(data, &h.entries); err != nil {
		return nil, fmt.Errorf("decode history file: %w", err)
	}
	for task, list := range h.entries {
		if len(list) > maxEntries {
			h.entries[task] = list[:maxEntries]
		}
		for _, e := range list {
			if e.ID >= h.nextID {
				h.nextID = e.ID + 1
			}
		}
	}
	return h, nil
}

// Append records an entry at the head of its task's list and trims the tail.
func (h *FileHistory) Append(entry *HistoryEntry) error {
	if entry == nil {
		return errors.New("history entry is nil")
	}
	if err := prepareEntry(entry); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	entry.ID = h.nextID
	list := append([]HistoryEntry{*entry}, h.entries[entry.Task]...)
	if len(list) > h.maxEntries {
		list = list[:h.maxEntries]
	}
	next := h.withTask(entry.Task, list)
	if err := h.flush(next); err != nil {
		entry.ID = 0
		return err
	}
	h.entries = next
	h.nextID++
	return nil
}

// List returns up to limit entries for task, newest first.
func (h *FileHistory) List(task string, limit int) ([]HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.entries[strings.TrimSpace(task)]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}
	return append([]HistoryEntry(nil), list[:limit]...), nil
}

// Clear removes every entry for task.
func (h *FileHistory) Clear(task string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.withTask(strings.TrimSpace(task), nil)
	if err := h.flush(next); err != nil {
		return err
	}
	h.entries = next
	return nil
}

// Close is a no-op; every mutation is already on disk.
func (h *FileHistory) Close() error {
	return nil
}

// withTask returns a copy of the task map with task's list replaced. An empty
// list removes the task.
func (h *FileHistory) withTask(task string, list []HistoryEntry) map[string][]HistoryEntry {
	next := make(map[string][]HistoryEntry, len(h.entries)+1)
	for k, v := range h.entries {
		next[k] = v
	}
	if len(list) == 0 {
		delete(next, task)
	} else {
		next[task] = list
	}
	return next
}

// flush writes entries through a temp file so readers never see a partial
// document. The in-memory state is swapped only after it succeeds.
func (h *FileHistory) flush(entries map[string][]HistoryEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}
