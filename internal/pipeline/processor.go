// Package pipeline orchestrates the two execution contexts of the
// compliance pipeline: the authoritative polling context and the
// advisory streaming context. Both feed the single [Processor], whose
// deduplication makes concurrent classification of the same station
// and pollutant idempotent.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/classify"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/ledger"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/observability"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/window"
)

// EventSink receives classification events for external persistence.
type EventSink interface {
	Publish(ctx context.Context, events []classify.Event) error
}

// dedupHorizon is how long an emitted event suppresses further events
// for the same (station, pollutant, tier) with overlapping windows.
const dedupHorizon = 2 * time.Hour

// breachLookback bounds the consecutive-day-breach probe: a prior 24h
// violation inside [now−48h, now−1h) marks escalation. The most recent
// hour is excluded to avoid self-overlap.
const (
	breachLookback  = 48 * time.Hour
	breachExclusion = time.Hour
)

// recordedEvent is the retained footprint of an emitted event, used
// for deduplication and the consecutive-breach probe.
type recordedEvent struct {
	stationID   string
	pollutant   domain.Pollutant
	tier        classify.Tier
	windowHours int
	windowEnd   time.Time
	emittedAt   time.Time
}

// Processor is the single classification entry point. It classifies
// window results, deduplicates, publishes surviving events to the sink,
// and appends one audit ledger entry per event. Safe for concurrent use
// by both execution contexts.
type Processor struct {
	classifier *classify.Classifier
	sink       EventSink
	ledger     *ledger.Writer
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu     sync.Mutex
	recent []recordedEvent

	processed atomic.Bool
}

// NewProcessor creates a Processor.
func NewProcessor(classifier *classify.Classifier, sink EventSink, ledgerWriter *ledger.Writer, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Processor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Processor{
		classifier: classifier,
		sink:       sink,
		ledger:     ledgerWriter,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
	}
}

// Process classifies the window results for one station and emits the
// surviving events. A ledger append failure aborts with an error: a
// lost audit record must never be swallowed. Sink failures are also
// fatal to the cycle so the caller can retry the whole evaluation.
// The dedup footprint is recorded per event only once its publish and
// ledger append have both succeeded; a failed cycle must never
// suppress its own retry.
func (p *Processor) Process(ctx context.Context, stationID, zone string, results map[domain.Pollutant][]window.Result) error {
	now := p.clock.Now().UTC()
	classification := p.classifier.ClassifyAllPollutants(stationID, results, zone, p, now)

	p.processed.Store(true)
	if len(classification.Events) == 0 {
		return nil
	}

	emit := p.filterDuplicates(classification.Events, now)
	if len(emit) == 0 {
		return nil
	}

	if err := p.sink.Publish(ctx, emit); err != nil {
		return fmt.Errorf("publish classification events for %s: %w", stationID, err)
	}

	for _, event := range emit {
		if _, err := p.ledger.Append(ctx, "COMPLIANCE_EVENT", event.EventID, ledgerPayload(event)); err != nil {
			p.metrics.LedgerAppendFailures.Inc()
			return fmt.Errorf("audit ledger append for event %s: %w", event.EventID, err)
		}
		p.metrics.LedgerAppends.Inc()
		p.metrics.ClassificationEvents.WithLabelValues(string(event.Tier)).Inc()
		p.record(event, now)
	}
	return nil
}

// filterDuplicates drops events for which an unresolved event with the
// same (station, pollutant, tier) and an overlapping window was already
// emitted inside the dedup horizon. Survivors are not recorded here:
// only a fully persisted emission may suppress future ones.
func (p *Processor) filterDuplicates(events []classify.Event, now time.Time) []classify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pruneLocked(now)

	emit := make([]classify.Event, 0, len(events))
	for _, event := range events {
		if p.isDuplicateLocked(event, now) {
			p.metrics.EventsDeduplicated.Inc()
			p.logger.Debug("duplicate classification suppressed",
				"station_id", event.StationID, "pollutant", event.Pollutant, "tier", event.Tier)
			continue
		}
		emit = append(emit, event)
	}
	return emit
}

// record retains the footprint of one persisted emission for
// deduplication and the consecutive-breach probe.
func (p *Processor) record(event classify.Event, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recent = append(p.recent, recordedEvent{
		stationID:   event.StationID,
		pollutant:   event.Pollutant,
		tier:        event.Tier,
		windowHours: event.WindowHours,
		windowEnd:   event.WindowEnd,
		emittedAt:   now,
	})
}

func (p *Processor) isDuplicateLocked(event classify.Event, now time.Time) bool {
	for _, r := range p.recent {
		if r.stationID == event.StationID && r.pollutant == event.Pollutant && r.tier == event.Tier &&
			r.windowEnd.After(now.Add(-dedupHorizon)) {
			return true
		}
	}
	return false
}

// pruneLocked discards records older than the breach lookback; nothing
// needs them after that.
func (p *Processor) pruneLocked(now time.Time) {
	cutoff := now.Add(-breachLookback)
	kept := p.recent[:0]
	for _, r := range p.recent {
		if r.emittedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	p.recent = kept
}

// HadRecentViolation implements classify.BreachProbe over the
// processor's own emission record.
func (p *Processor) HadRecentViolation(stationID string, pollutant domain.Pollutant) bool {
	now := p.clock.Now().UTC()
	from := now.Add(-breachLookback)
	until := now.Add(-breachExclusion)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.recent {
		if r.stationID == stationID && r.pollutant == pollutant &&
			r.tier == classify.TierViolation && r.windowHours == 24 &&
			r.emittedAt.After(from) && r.emittedAt.Before(until) {
			return true
		}
	}
	return false
}

// CheckReadiness returns nil once at least one evaluation has run.
func (p *Processor) CheckReadiness(_ context.Context) error {
	if !p.processed.Load() {
		return errors.New("pipeline has not completed an evaluation cycle yet")
	}
	return nil
}

// ledgerPayload builds the structured audit payload for one event.
func ledgerPayload(event classify.Event) map[string]any {
	return map[string]any{
		"station_id":                event.StationID,
		"pollutant":                 string(event.Pollutant),
		"tier":                      string(event.Tier),
		"status":                    string(event.Status),
		"observed_value":            event.Rule.ObservedValue,
		"limit_value":               event.Rule.LimitValue,
		"exceedance_percent":        event.Rule.ExceedancePercent,
		"averaging_period":          string(event.Rule.AveragingPeriod),
		"rule_name":                 event.Rule.RuleName,
		"legal_reference":           event.Rule.LegalReference,
		"rule_version":              event.Rule.RuleVersion,
		"window_start":              event.WindowStart.UTC().Format(time.RFC3339),
		"window_end":                event.WindowEnd.UTC().Format(time.RFC3339),
		"is_consecutive_day_breach": event.IsConsecutiveDayBreach,
	}
}
