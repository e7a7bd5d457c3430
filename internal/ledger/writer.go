package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Store is the append-only persistence boundary of the ledger. The
// storage layer itself must reject updates and deletes of existing
// rows; the core only ever inserts and reads.
type Store interface {
	// Tail returns the entry with the highest sequence number, or nil
	// when the ledger is empty.
	Tail(ctx context.Context) (*Entry, error)

	// Append inserts a new entry. Must fail rather than overwrite.
	Append(ctx context.Context, entry Entry) error

	// Entries returns all entries ordered by sequence number ascending.
	Entries(ctx context.Context) ([]Entry, error)
}

// Writer appends hash-chained entries to a Store. All appends are
// serialized by a writer-level mutex so two concurrent callers can
// never allocate the same sequence number.
type Writer struct {
	mu     sync.Mutex
	store  Store
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewWriter creates a Writer over the given store.
func NewWriter(store Store, clock clockwork.Clock, logger *slog.Logger) *Writer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{store: store, clock: clock, logger: logger}
}

// Append computes the next chain link and inserts it. A storage failure
// propagates to the caller: a silently-lost ledger write would break
// the integrity guarantee the ledger exists to provide, so it must
// never be swallowed or retried behind the caller's back.
func (w *Writer) Append(ctx context.Context, eventType, eventID string, eventData any) (Entry, error) {
	canonical, err := canonicalize(eventData)
	if err != nil {
		return Entry{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	tail, err := w.store.Tail(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("read ledger tail: %w", err)
	}

	prevHash := GenesisHash
	var sequence int64 = 1
	if tail != nil {
		prevHash = tail.EntryHash
		sequence = tail.SequenceNumber + 1
	}

	entry := Entry{
		ID:             uuid.NewString(),
		SequenceNumber: sequence,
		EventType:      eventType,
		EventID:        eventID,
		EventData:      canonical,
		PrevHash:       prevHash,
		EntryHash:      computeHash(canonical, prevHash),
		CreatedAt:      w.clock.Now().UTC(),
	}

	if err := w.store.Append(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("append ledger entry seq %d: %w", sequence, err)
	}

	w.logger.Info("ledger entry appended",
		"sequence", entry.SequenceNumber,
		"event_type", entry.EventType,
		"event_id", entry.EventID,
		"entry_hash", entry.EntryHash[:16],
	)
	return entry, nil
}
