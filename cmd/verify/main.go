// Command verify re-checks the integrity of an audit ledger file and
// reports the first break, distinguishing sequence gaps, broken chain
// links, and tampered entries.
//
// Usage:
//
//	verify -ledger /var/lib/greenpulse/ledger.jsonl
//
// Exits 0 when the chain is intact, 1 when it is not, 2 on I/O errors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/ledger"
)

func main() {
	ledgerPath := flag.String("ledger", "", "path to the ledger JSONL file (required)")
	quiet := flag.Bool("q", false, "suppress log output, print only the verdict")
	flag.Parse()

	if *ledgerPath == "" {
		fmt.Fprintln(os.Stderr, "error: -ledger is required")
		flag.Usage()
		os.Exit(2)
	}

	logWriter := os.Stderr
	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: level}))

	store := ledger.NewFileStore(*ledgerPath)
	verifier := ledger.NewVerifier(store, logger)

	result, err := verifier.VerifyChain(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	if result.IsValid {
		fmt.Printf("OK: %d entries, chain intact\n", result.TotalEntries)
		return
	}

	fmt.Printf("FAILED: %s at sequence %d: %s\n", result.Cause, result.BrokenAtSequence, result.ErrorMessage)
	os.Exit(1)
}
