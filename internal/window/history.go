package window

import (
	"sort"
	"sync"
	"time"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
)

// History is the durable reading record behind the point-in-time
// execution strategy. The polling context appends fetched readings and
// recomputes windows from scratch each cycle, independent of the
// streaming engine's buffers.
type History struct {
	mu       sync.RWMutex
	readings map[key][]sample
}

// NewHistory creates an empty reading history.
func NewHistory() *History {
	return &History{readings: make(map[key][]sample)}
}

// Append records one reading's pollutant values.
func (h *History) Append(reading domain.Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for pollutant, value := range reading.Pollutants {
		k := key{reading.StationID, pollutant}
		s := sample{
			value:     value,
			timestamp: reading.Timestamp.UTC(),
			met:       reading.Met,
		}
		samples := append(h.readings[k], s)
		n := len(samples)
		if n > 1 && samples[n-2].timestamp.After(s.timestamp) {
			sort.Slice(samples, func(i, j int) bool {
				return samples[i].timestamp.Before(samples[j].timestamp)
			})
		}
		h.readings[k] = samples
	}
}

// Pollutants returns the pollutants with recorded history for a station.
func (h *History) Pollutants(stationID string) []domain.Pollutant {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []domain.Pollutant
	for _, p := range domain.Pollutants {
		if len(h.readings[key{stationID, p}]) > 0 {
			out = append(out, p)
		}
	}
	return out
}

// Prune discards samples older than the retention horizon relative to
// the given time. Offline stations keep their history until entries
// age out naturally.
func (h *History) Prune(asOf time.Time) {
	cutoff := asOf.Add(-maxHorizon)
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, samples := range h.readings {
		idx := 0
		for idx < len(samples) && !samples[idx].timestamp.After(cutoff) {
			idx++
		}
		if idx == len(samples) {
			delete(h.readings, k)
		} else if idx > 0 {
			h.readings[k] = append([]sample(nil), samples[idx:]...)
		}
	}
}

// Recompute derives the window results for one station/pollutant from
// the full reading history at a point in time. Behaviorally equivalent
// to Engine.CurrentAverages over the same readings: both run the same
// horizon math.
func (h *History) Recompute(stationID string, pollutant domain.Pollutant, asOf time.Time) []Result {
	h.mu.RLock()
	samples := h.readings[key{stationID, pollutant}]
	snapshot := make([]sample, len(samples))
	copy(snapshot, samples)
	h.mu.RUnlock()

	if len(snapshot) == 0 {
		return nil
	}
	return computeHorizons(stationID, pollutant, snapshot, asOf)
}

// RecomputeAll recomputes every pollutant with history for the station.
func (h *History) RecomputeAll(stationID string, asOf time.Time) map[domain.Pollutant][]Result {
	out := make(map[domain.Pollutant][]Result)
	for _, p := range h.Pollutants(stationID) {
		if results := h.Recompute(stationID, p, asOf); len(results) > 0 {
			out[p] = results
		}
	}
	return out
}
