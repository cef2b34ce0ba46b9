package agent

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/spuff-dev/spuff/internal/schema"
)

// StatusStore holds the agent-wide ProjectStatus singleton: one writer
// (the setup executor), many HTTP readers, a reader-writer lock so readers
// never block each other. Every mutation is
// persisted to disk with the same write-to-temp-then-rename discipline as
// internal/store and internal/volume, so a restarted agent still reports a
// step it had already recorded before the process died.
type StatusStore struct {
	mu   sync.RWMutex
	path string
	cur  schema.ProjectStatus
}

// OpenStatusStore loads path if present, otherwise starts from a zero
// ProjectStatus.
func OpenStatusStore(path string) (*StatusStore, error) {
	s := &StatusStore{path: path}
	data, err := os.ReadFile(path)
	if err == nil && len(data) > 0 {
		if uerr := json.Unmarshal(data, &s.cur); uerr != nil {
			return nil, uerr
		}
	} else if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

// Get returns a copy of the current status.
func (s *StatusStore) Get() schema.ProjectStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update runs fn against a copy of the current status and persists the
// result atomically. fn mutates the copy in place.
func (s *StatusStore) Update(fn func(*schema.ProjectStatus)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	fn(&next)
	if err := s.write(next); err != nil {
		return err
	}
	s.cur = next
	return nil
}

func (s *StatusStore) write(status schema.ProjectStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// RequestDestroy flips the request-destroy bit the idle watchdog sets.
// The controller's `spuff watch` loop observes it through /status and
// tears the instance down locally.
func (s *StatusStore) RequestDestroy() error {
	return s.Update(func(p *schema.ProjectStatus) { p.DestroyRequested = true })
}
