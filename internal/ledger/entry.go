// Package ledger implements the tamper-evident audit trail: an
// append-only, hash-chained record of every compliance decision, with a
// verifier that can re-check the whole chain on demand.
//
// Each entry's hash covers the canonical JSON of its payload plus the
// previous entry's hash:
//
//	entry_hash = SHA256(canonical_json(event_data) || prev_hash)
//
// Canonical JSON follows RFC 8785, so the same logical payload hashes
// identically regardless of field insertion order or whitespace. The
// genesis entry chains from a fixed all-zero sentinel.
//
// The writer and verifier are storage-engine-agnostic: they operate
// over the [Store] interface, and the external store is the actual
// enforcement point for "no update, no delete".
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// GenesisHash is the prev_hash sentinel of the first chain entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is one immutable, hash-linked audit record. Never mutated or
// deleted after creation; sequence numbers start at 1 and are
// contiguous with no gaps.
type Entry struct {
	ID             string          `json:"id"`
	SequenceNumber int64           `json:"sequence_number"`
	EventType      string          `json:"event_type"`
	EventID        string          `json:"event_id"`
	EventData      json.RawMessage `json:"event_data"`
	PrevHash       string          `json:"prev_hash"`
	EntryHash      string          `json:"entry_hash"`
	CreatedAt      time.Time       `json:"created_at"`
}

// canonicalize marshals a payload and transforms it into RFC 8785
// canonical form: deterministic key ordering, no incidental whitespace.
func canonicalize(eventData any) ([]byte, error) {
	raw, err := json.Marshal(eventData)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize event data: %w", err)
	}
	return canonical, nil
}

// computeHash derives the chain hash for a canonical payload and the
// preceding entry's hash.
func computeHash(canonical []byte, prevHash string) string {
	h := sha256.New()
	h.Write(canonical)
	h.Write([]byte(prevHash))
	return hex.EncodeToString(h.Sum(nil))
}
