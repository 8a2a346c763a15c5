package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// QueueEntry is one persisted delivery attempt (spec §3 "Queue entry").
type QueueEntry struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	LastTriedAt time.Time         `json:"last_tried_at,omitempty"`
	Attempts    uint32            `json:"attempts"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Payload     json.RawMessage   `json:"payload"`
	LastError   string            `json:"last_error,omitempty"`
}

// Queue is a persistent FIFO of QueueEntry, stored as a single pretty-printed
// JSON array file with atomic write-then-rename persistence (spec §6
// "Persistent queue file"), grounded in the teacher's state.SaveDevices
// write-to-.tmp-then-os.Rename pattern.
type Queue struct {
	mu      sync.Mutex
	path    string
	entries []QueueEntry
}

// OpenQueue loads path, treating a missing, empty, or malformed file as an
// empty queue (spec §6: "a missing, empty, or malformed file is treated as
// an empty queue, and rewritten on first persist").
func OpenQueue(path string) (*Queue, error) {
	q := &Queue{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return q, nil
		}
		return nil, fmt.Errorf("open queue file %s: %w", path, err)
	}
	if len(data) == 0 {
		return q, nil
	}
	var entries []QueueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return q, nil // malformed file: start empty, overwritten on first persist
	}
	q.entries = entries
	return q, nil
}

// Enqueue appends entry to the tail and persists synchronously.
func (q *Queue) Enqueue(method, url string, headers map[string]string, payload json.RawMessage, lastErr string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := QueueEntry{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Method:    method,
		URL:       url,
		Headers:   headers,
		Payload:   payload,
		LastError: lastErr,
	}
	q.entries = append(q.entries, entry)
	return q.persistLocked()
}

// Len reports the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Head returns a copy of the head entry, or ok=false if the queue is empty.
func (q *Queue) Head() (QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return QueueEntry{}, false
	}
	return q.entries[0], true
}

// PopHead removes and persists the head entry after a successful replay.
func (q *Queue) PopHead() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	q.entries = q.entries[1:]
	return q.persistLocked()
}

// MarkHeadFailed records a failed replay attempt against the head entry
// (increments Attempts, sets LastTriedAt/LastError) and persists.
func (q *Queue) MarkHeadFailed(lastErr string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	q.entries[0].Attempts++
	q.entries[0].LastTriedAt = time.Now().UTC()
	q.entries[0].LastError = lastErr
	return q.persistLocked()
}

// persistLocked writes the full entry slice to a temp file in the same
// directory and renames it over path, matching the teacher's atomic
// write-then-rename pattern (internal/state/state.go SaveDevices).
func (q *Queue) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0o755); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}
	entries := q.entries
	if entries == nil {
		entries = []QueueEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	data = append(data, '\n')

	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp queue file: %w", err)
	}
	if err := os.Rename(tmp, q.path); err != nil {
		return fmt.Errorf("rename temp queue file: %w", err)
	}
	return nil
}
