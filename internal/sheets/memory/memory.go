package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"intentdash/internal/store"
)

// Store keeps exported records in memory. It backs local development and tests.
type Store struct {
	mu    sync.Mutex
	items []store.Record
	seen  map[string]int
	fail  error
}

func New() *Store {
	return &Store{seen: map[string]int{}}
}

// Export stores the record and returns a synthetic row reference. Exporting
// the same communication twice returns the original reference.
func (s *Store) Export(_ context.Context, rec store.Record) (string, error) {
	if rec.Communication.ID == "" {
		return "", errors.New("record has no communication id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	if row, ok := s.seen[rec.Communication.ID]; ok {
		return fmt.Sprintf("mem:%d", row), nil
	}
	s.items = append(s.items, rec)
	s.seen[rec.Communication.ID] = len(s.items)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// FailWith makes every following Export return err. A nil err clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Records returns the exported records in export order.
func (s *Store) Records() []store.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Record(nil), s.items...)
}
