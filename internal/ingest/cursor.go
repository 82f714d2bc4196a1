// cursor.go provides crash-safe persistence for the processing cursor.
//
// The cursor is stored as a single JSON file. Writes use atomic file
// replacement (write to .tmp, then rename) so a crash mid-save can never
// leave a corrupt checkpoint: on restart the bot resumes from the last
// fully-written cursor and re-delivers anything after it (at-least-once).
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cursor is the persisted resumption point: the id of the last mention that
// was fully handled, and when it was checkpointed.
type Cursor struct {
	LastSeenID string    `json:"last_seen_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CursorStore persists the cursor in a designated directory.
type CursorStore struct {
	dir string
	mu  sync.Mutex
}

// OpenCursorStore creates a store backed by the given directory.
func OpenCursorStore(dir string) (*CursorStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cursor dir: %w", err)
	}
	return &CursorStore{dir: dir}, nil
}

// Save atomically persists the cursor.
func (s *CursorStore) Save(c Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	path := filepath.Join(s.dir, "cursor.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores the cursor from disk.
// Returns nil, nil if no checkpoint exists yet (fresh start).
func (s *CursorStore) Load() (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, "cursor.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cursor: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cursor: %w", err)
	}
	return &c, nil
}
