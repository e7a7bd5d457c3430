package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/classify"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/ledger"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/observability"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/rules"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/window"
)

var pipelineTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const pipelineTableYAML = `
version: "NAAQS-2009"
legal_reference: "CPCB National Ambient Air Quality Standards, 2009"
pollutants:
  pm25:
    24hr: 60
    annual: 40
  o3:
    1hr: 180
    8hr: 100
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureSink records published events; fail makes every publish error.
type captureSink struct {
	mu     sync.Mutex
	events []classify.Event
	fail   bool
}

func (s *captureSink) Publish(_ context.Context, events []classify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("broker unreachable")
	}
	s.events = append(s.events, events...)
	return nil
}

func (s *captureSink) published() []classify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]classify.Event, len(s.events))
	copy(out, s.events)
	return out
}

type processorFixture struct {
	processor *Processor
	sink      *captureSink
	store     *ledger.MemStore
	clock     *clockwork.FakeClock
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	table, err := rules.Parse([]byte(pipelineTableYAML))
	require.NoError(t, err)

	logger := discardLogger()
	clock := clockwork.NewFakeClockAt(pipelineTime)
	sink := &captureSink{}
	store := ledger.NewMemStore()
	writer := ledger.NewWriter(store, clock, logger)
	classifier := classify.New(table, classify.DefaultZones(), logger)

	return &processorFixture{
		processor: NewProcessor(classifier, sink, writer, clock, logger, observability.NewMetricsForTesting()),
		sink:      sink,
		store:     store,
		clock:     clock,
	}
}

// violation24h builds window results whose 24hr average breaches the
// pm25 limit at the fixture clock's current time.
func violation24h(clock clockwork.Clock, avg float64) map[domain.Pollutant][]window.Result {
	now := clock.Now().UTC()
	return map[domain.Pollutant][]window.Result{
		domain.PM25: {{
			StationID:    "@2554",
			Pollutant:    domain.PM25,
			WindowHours:  24,
			AverageValue: avg,
			ReadingCount: 20,
			WindowStart:  now.Add(-24 * time.Hour),
			WindowEnd:    now,
		}},
	}
}

func TestProcessor_EmitsAndLedgers(t *testing.T) {
	fx := newProcessorFixture(t)

	err := fx.processor.Process(context.Background(), "@2554", "residential", violation24h(fx.clock, 90))
	require.NoError(t, err)

	events := fx.sink.published()
	require.Len(t, events, 1)
	assert.Equal(t, classify.TierViolation, events[0].Tier)

	entries, err := fx.store.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "COMPLIANCE_EVENT", entries[0].EventType)
	assert.Equal(t, events[0].EventID, entries[0].EventID)
	assert.Contains(t, string(entries[0].EventData), `"station_id":"@2554"`)
}

func TestProcessor_CompliantResultsEmitNothing(t *testing.T) {
	fx := newProcessorFixture(t)

	err := fx.processor.Process(context.Background(), "@2554", "residential", violation24h(fx.clock, 40))
	require.NoError(t, err)

	assert.Empty(t, fx.sink.published())
	entries, err := fx.store.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProcessor_Deduplication(t *testing.T) {
	fx := newProcessorFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.processor.Process(ctx, "@2554", "residential", violation24h(fx.clock, 90)))
	require.Len(t, fx.sink.published(), 1)

	t.Run("same breach minutes later is suppressed", func(t *testing.T) {
		fx.clock.Advance(5 * time.Minute)
		require.NoError(t, fx.processor.Process(ctx, "@2554", "residential", violation24h(fx.clock, 91)))
		assert.Len(t, fx.sink.published(), 1)
	})

	t.Run("another station is not suppressed", func(t *testing.T) {
		results := violation24h(fx.clock, 90)
		results[domain.PM25][0].StationID = "@2556"
		require.NoError(t, fx.processor.Process(ctx, "@2556", "residential", results))
		assert.Len(t, fx.sink.published(), 2)
	})

	t.Run("same breach after the dedup horizon re-emits", func(t *testing.T) {
		fx.clock.Advance(3 * time.Hour)
		require.NoError(t, fx.processor.Process(ctx, "@2554", "residential", violation24h(fx.clock, 92)))
		assert.Len(t, fx.sink.published(), 3)
	})
}

func TestProcessor_SinkFailureAbortsCycle(t *testing.T) {
	fx := newProcessorFixture(t)
	fx.sink.fail = true

	err := fx.processor.Process(context.Background(), "@2554", "residential", violation24h(fx.clock, 90))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish classification events")

	// Nothing may reach the ledger when publication failed.
	entries, lerr := fx.store.Entries(context.Background())
	require.NoError(t, lerr)
	assert.Empty(t, entries)
}

func TestProcessor_SinkFailureDoesNotSuppressRetry(t *testing.T) {
	fx := newProcessorFixture(t)
	ctx := context.Background()

	fx.sink.fail = true
	require.Error(t, fx.processor.Process(ctx, "@2554", "residential", violation24h(fx.clock, 90)))

	// Broker recovers; the next cycle re-evaluates the same breach and
	// must emit it, not treat the failed attempt as already delivered.
	fx.sink.fail = false
	fx.clock.Advance(5 * time.Minute)
	require.NoError(t, fx.processor.Process(ctx, "@2554", "residential", violation24h(fx.clock, 90)))

	require.Len(t, fx.sink.published(), 1)
	entries, err := fx.store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// flakyStore wraps MemStore and fails the first append, then recovers.
type flakyStore struct {
	*ledger.MemStore
	failed bool
}

func (s *flakyStore) Append(ctx context.Context, entry ledger.Entry) error {
	if !s.failed {
		s.failed = true
		return fmt.Errorf("storage briefly unavailable")
	}
	return s.MemStore.Append(ctx, entry)
}

func TestProcessor_LedgerFailureDoesNotSuppressRetry(t *testing.T) {
	table, err := rules.Parse([]byte(pipelineTableYAML))
	require.NoError(t, err)
	logger := discardLogger()
	clock := clockwork.NewFakeClockAt(pipelineTime)
	store := &flakyStore{MemStore: ledger.NewMemStore()}
	writer := ledger.NewWriter(store, clock, logger)
	classifier := classify.New(table, classify.DefaultZones(), logger)
	sink := &captureSink{}
	processor := NewProcessor(classifier, sink, writer, clock, logger, observability.NewMetricsForTesting())
	ctx := context.Background()

	require.Error(t, processor.Process(ctx, "@2554", "residential", violation24h(clock, 90)))

	clock.Advance(5 * time.Minute)
	require.NoError(t, processor.Process(ctx, "@2554", "residential", violation24h(clock, 90)))

	// The retry lands in the audit ledger exactly once.
	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestProcessor_LedgerFailurePropagates(t *testing.T) {
	table, err := rules.Parse([]byte(pipelineTableYAML))
	require.NoError(t, err)
	logger := discardLogger()
	clock := clockwork.NewFakeClockAt(pipelineTime)
	writer := ledger.NewWriter(brokenStore{}, clock, logger)
	classifier := classify.New(table, classify.DefaultZones(), logger)
	processor := NewProcessor(classifier, &captureSink{}, writer, clock, logger, observability.NewMetricsForTesting())

	err = processor.Process(context.Background(), "@2554", "residential", violation24h(clock, 90))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit ledger append")
}

type brokenStore struct{}

func (brokenStore) Tail(context.Context) (*ledger.Entry, error)    { return nil, nil }
func (brokenStore) Append(context.Context, ledger.Entry) error     { return fmt.Errorf("constraint violated") }
func (brokenStore) Entries(context.Context) ([]ledger.Entry, error) { return nil, nil }

func TestProcessor_ConsecutiveDayBreach(t *testing.T) {
	fx := newProcessorFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.processor.Process(ctx, "@2554", "residential", violation24h(fx.clock, 90)))
	first := fx.sink.published()
	require.Len(t, first, 1)
	assert.False(t, first[0].IsConsecutiveDayBreach)

	// A day later the prior violation sits inside the probe lookback.
	fx.clock.Advance(25 * time.Hour)
	require.NoError(t, fx.processor.Process(ctx, "@2554", "residential", violation24h(fx.clock, 95)))
	all := fx.sink.published()
	require.Len(t, all, 2)
	assert.True(t, all[1].IsConsecutiveDayBreach)

	// Beyond the 48h lookback the streak is broken.
	fx.clock.Advance(49 * time.Hour)
	require.NoError(t, fx.processor.Process(ctx, "@2554", "residential", violation24h(fx.clock, 88)))
	all = fx.sink.published()
	require.Len(t, all, 3)
	assert.False(t, all[2].IsConsecutiveDayBreach)
}

func TestProcessor_ProbeExcludesFreshEmissions(t *testing.T) {
	fx := newProcessorFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.processor.Process(ctx, "@2554", "residential", violation24h(fx.clock, 90)))

	// Emitted 5 minutes ago: inside the exclusion hour, not a prior day.
	fx.clock.Advance(5 * time.Minute)
	assert.False(t, fx.processor.HadRecentViolation("@2554", domain.PM25))

	fx.clock.Advance(2 * time.Hour)
	assert.True(t, fx.processor.HadRecentViolation("@2554", domain.PM25))
	assert.False(t, fx.processor.HadRecentViolation("@2554", domain.NO2))
	assert.False(t, fx.processor.HadRecentViolation("@2556", domain.PM25))
}

func TestProcessor_Readiness(t *testing.T) {
	fx := newProcessorFixture(t)

	require.Error(t, fx.processor.CheckReadiness(context.Background()))

	require.NoError(t, fx.processor.Process(context.Background(), "@2554", "residential", violation24h(fx.clock, 40)))
	assert.NoError(t, fx.processor.CheckReadiness(context.Background()))
}
