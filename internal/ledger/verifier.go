package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gowebpki/jcs"
)

// BreakCause distinguishes the ways a chain can fail verification. An
// operator must be able to tell a broken chain apart from a tampered
// entry apart from a sequence gap.
type BreakCause string

const (
	CauseSequenceGap   BreakCause = "SEQUENCE_GAP"
	CauseBrokenChain   BreakCause = "BROKEN_CHAIN"
	CauseTamperedEntry BreakCause = "TAMPERED_ENTRY"
)

// VerificationResult is the outcome of a full chain verification.
type VerificationResult struct {
	IsValid          bool       `json:"is_valid"`
	TotalEntries     int        `json:"total_entries"`
	BrokenAtSequence int64      `json:"broken_at_sequence,omitempty"`
	Cause            BreakCause `json:"cause,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// Verifier re-checks the entire hash chain from storage. Independent
// reader: it shares nothing with the writer but the Store.
type Verifier struct {
	store  Store
	logger *slog.Logger
}

// NewVerifier creates a Verifier over the given store.
func NewVerifier(store Store, logger *slog.Logger) *Verifier {
	return &Verifier{store: store, logger: logger}
}

// VerifyChain walks every entry in sequence order and checks sequence
// contiguity, prev-hash linkage, and each entry's recomputed hash.
// Verification halts at the first failure; it never attempts repair.
// An empty ledger is trivially valid. The returned error covers only
// storage access, never chain state.
func (v *Verifier) VerifyChain(ctx context.Context) (VerificationResult, error) {
	entries, err := v.store.Entries(ctx)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("read ledger entries: %w", err)
	}

	if len(entries) == 0 {
		v.logger.Info("audit ledger is empty, chain trivially valid")
		return VerificationResult{IsValid: true}, nil
	}

	expectedPrevHash := GenesisHash
	expectedSequence := entries[0].SequenceNumber

	for _, entry := range entries {
		if entry.SequenceNumber != expectedSequence {
			return v.broken(entry.SequenceNumber, CauseSequenceGap,
				fmt.Sprintf("sequence gap: expected %d, got %d", expectedSequence, entry.SequenceNumber)), nil
		}

		if entry.PrevHash != expectedPrevHash {
			return v.broken(entry.SequenceNumber, CauseBrokenChain,
				fmt.Sprintf("prev_hash mismatch at seq %d: expected %.16s..., got %.16s...",
					entry.SequenceNumber, expectedPrevHash, entry.PrevHash)), nil
		}

		// Normalize the stored payload before recomputing: the store
		// may have reformatted whitespace or key order.
		canonical, err := jcs.Transform(entry.EventData)
		if err != nil {
			return v.broken(entry.SequenceNumber, CauseTamperedEntry,
				fmt.Sprintf("event_data at seq %d is not valid JSON: %v", entry.SequenceNumber, err)), nil
		}
		computed := computeHash(canonical, entry.PrevHash)
		if computed != entry.EntryHash {
			return v.broken(entry.SequenceNumber, CauseTamperedEntry,
				fmt.Sprintf("entry_hash mismatch at seq %d: computed %.16s..., stored %.16s...",
					entry.SequenceNumber, computed, entry.EntryHash)), nil
		}

		expectedPrevHash = entry.EntryHash
		expectedSequence++
	}

	v.logger.Info("audit ledger chain verified", "entries", len(entries))
	return VerificationResult{IsValid: true, TotalEntries: len(entries)}, nil
}

func (v *Verifier) broken(sequence int64, cause BreakCause, msg string) VerificationResult {
	v.logger.Error("chain integrity violation", "cause", cause, "sequence", sequence, "detail", msg)
	return VerificationResult{
		IsValid:          false,
		TotalEntries:     int(sequence),
		BrokenAtSequence: sequence,
		Cause:            cause,
		ErrorMessage:     msg,
	}
}
