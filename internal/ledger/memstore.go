package ledger

import (
	"context"
	"fmt"
	"sync"
)

// MemStore is an in-memory append-only log. It backs tests and
// deployments where the durable ledger store is provisioned
// externally; like the real store, it only ever inserts.
type MemStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Tail returns a copy of the highest-sequence entry, or nil when empty.
func (s *MemStore) Tail(_ context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	tail := s.entries[len(s.entries)-1]
	return &tail, nil
}

// Append inserts a new entry. Duplicate sequence numbers are rejected,
// mirroring the unique constraint of the durable store.
func (s *MemStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.entries); n > 0 && entry.SequenceNumber <= s.entries[n-1].SequenceNumber {
		return fmt.Errorf("sequence %d already allocated", entry.SequenceNumber)
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Entries returns a copy of all entries in sequence order.
func (s *MemStore) Entries(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}
