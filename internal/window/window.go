// Package window maintains rolling time-windowed aggregates per station
// and pollutant at three horizons (1h, 8h, 24h).
//
// Two execution strategies share the same window semantics: an
// incremental [Engine] driven by a continuous reading stream, and a
// point-in-time [Recompute] over a durable [History] of readings. Both
// derive results from the same horizon math, so they agree on every
// average for the same underlying readings.
package window

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
)

// Horizon is one averaging window.
type Horizon struct {
	Hours    int
	Label    string
	Duration time.Duration
}

// Horizons lists the three averaging windows, longest first. A reading
// contributes to all three simultaneously; they are independent views
// over the same buffer, not nested.
var Horizons = []Horizon{
	{Hours: 24, Label: "24hr", Duration: 24 * time.Hour},
	{Hours: 8, Label: "8hr", Duration: 8 * time.Hour},
	{Hours: 1, Label: "1hr", Duration: time.Hour},
}

// maxHorizon bounds buffer retention; entries older than this can never
// contribute to any window again.
const maxHorizon = 24 * time.Hour

// Result is one windowed aggregate. Recomputed, never mutated;
// ephemeral (not persisted directly).
type Result struct {
	StationID    string
	Pollutant    domain.Pollutant
	WindowHours  int
	WindowLabel  string
	AverageValue float64
	ReadingCount int
	WindowStart  time.Time
	WindowEnd    time.Time
	Met          domain.MetContext
}

// sample is one pollutant observation inside a buffer.
type sample struct {
	value     float64
	timestamp time.Time
	met       domain.MetContext
}

// computeHorizons derives one Result per horizon with at least one
// in-window sample. Samples must be sorted by timestamp ascending.
// Shared by the incremental engine and point-in-time recomputation so
// the two strategies cannot drift apart.
func computeHorizons(stationID string, pollutant domain.Pollutant, samples []sample, asOf time.Time) []Result {
	results := make([]Result, 0, len(Horizons))
	for _, h := range Horizons {
		cutoff := asOf.Add(-h.Duration)

		var (
			sum   float64
			count int
			met   domain.MetContext
		)
		for _, s := range samples {
			if !s.timestamp.After(cutoff) || s.timestamp.After(asOf) {
				continue
			}
			sum += s.value
			count++
			met = s.met // samples are sorted, so this ends up the latest
		}
		if count == 0 {
			continue
		}

		results = append(results, Result{
			StationID:    stationID,
			Pollutant:    pollutant,
			WindowHours:  h.Hours,
			WindowLabel:  h.Label,
			AverageValue: math.Round(sum/float64(count)*10000) / 10000,
			ReadingCount: count,
			WindowStart:  cutoff,
			WindowEnd:    asOf,
			Met:          met,
		})
	}
	return results
}

// key identifies one (station, pollutant) buffer.
type key struct {
	stationID string
	pollutant domain.Pollutant
}

// buffer holds the samples for one station/pollutant pair. Access is
// serialized by its own mutex so the streaming and polling contexts
// cannot interleave eviction with insertion.
type buffer struct {
	mu      sync.Mutex
	samples []sample
}

// insert adds a sample keeping timestamp order, then evicts samples
// that can no longer contribute to any horizon.
func (b *buffer) insert(s sample, asOf time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, s)
	// Readings normally arrive in order; sort only on the rare
	// out-of-order arrival.
	n := len(b.samples)
	if n > 1 && b.samples[n-2].timestamp.After(s.timestamp) {
		sort.Slice(b.samples, func(i, j int) bool {
			return b.samples[i].timestamp.Before(b.samples[j].timestamp)
		})
	}
	b.evictLocked(asOf)
}

func (b *buffer) evictLocked(asOf time.Time) {
	cutoff := asOf.Add(-maxHorizon)
	idx := 0
	for idx < len(b.samples) && !b.samples[idx].timestamp.After(cutoff) {
		idx++
	}
	if idx > 0 {
		b.samples = append(b.samples[:0], b.samples[idx:]...)
	}
}

// snapshot returns the in-retention samples as of the given time.
func (b *buffer) snapshot(asOf time.Time) []sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.evictLocked(asOf)
	out := make([]sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Engine is the incremental execution strategy: per-(station,
// pollutant) buffers updated as readings arrive. Safe for concurrent
// use; each buffer carries its own lock.
type Engine struct {
	mu      sync.Mutex
	buffers map[key]*buffer
	clock   clockwork.Clock
}

// NewEngine creates an Engine using the given time source.
func NewEngine(clock clockwork.Clock) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Engine{
		buffers: make(map[key]*buffer),
		clock:   clock,
	}
}

// Update ingests one reading into the buffers of every pollutant it
// carries. Stale entries are evicted as part of the update.
func (e *Engine) Update(reading domain.Reading) {
	asOf := e.clock.Now()
	for pollutant, value := range reading.Pollutants {
		b := e.bufferFor(key{reading.StationID, pollutant})
		b.insert(sample{
			value:     value,
			timestamp: reading.Timestamp.UTC(),
			met:       reading.Met,
		}, asOf)
	}
}

// CurrentAverages returns one Result per horizon that has at least one
// reading as of the given evaluation time. Entries older than a
// horizon are excluded from that horizon's average; partial windows
// still produce a valid result.
func (e *Engine) CurrentAverages(stationID string, pollutant domain.Pollutant, asOf time.Time) []Result {
	e.mu.Lock()
	b, ok := e.buffers[key{stationID, pollutant}]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	return computeHorizons(stationID, pollutant, b.snapshot(asOf), asOf)
}

// AllCurrentAverages fans CurrentAverages out across every pollutant
// buffered for the station.
func (e *Engine) AllCurrentAverages(stationID string, asOf time.Time) map[domain.Pollutant][]Result {
	e.mu.Lock()
	pollutants := make([]domain.Pollutant, 0, len(e.buffers))
	for k := range e.buffers {
		if k.stationID == stationID {
			pollutants = append(pollutants, k.pollutant)
		}
	}
	e.mu.Unlock()

	out := make(map[domain.Pollutant][]Result, len(pollutants))
	for _, p := range pollutants {
		if results := e.CurrentAverages(stationID, p, asOf); len(results) > 0 {
			out[p] = results
		}
	}
	return out
}

func (e *Engine) bufferFor(k key) *buffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.buffers[k]
	if !ok {
		b = &buffer{}
		e.buffers[k] = b
	}
	return b
}
