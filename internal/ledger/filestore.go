package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
)

// FileStore persists ledger entries as one JSON document per line in
// an append-only file. Suitable for single-process deployments and for
// the offline verification CLI; a database-backed store replaces it
// where storage-level immutability triggers are available.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store over the given JSONL file. The file is
// created on first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Tail returns the highest-sequence entry, or nil for a missing or
// empty file.
func (s *FileStore) Tail(ctx context.Context) (*Entry, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	tail := entries[len(entries)-1]
	return &tail, nil
}

// Append writes the entry as one line, fsyncing before returning so a
// reported success is actually durable.
func (s *FileStore) Append(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write ledger entry: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger file: %w", err)
	}
	return nil
}

// Entries reads every line of the ledger file in sequence order. A
// missing file is an empty ledger.
func (s *FileStore) Entries(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("decode ledger entry line: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger file: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].SequenceNumber < entries[j].SequenceNumber
	})
	return entries, nil
}
