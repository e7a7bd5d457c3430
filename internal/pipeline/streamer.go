package pipeline

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/config"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/window"
)

// Streamer is the advisory execution context: pushed readings update
// the incremental window engine reactively, and every update invokes
// the shared Processor. The polling path remains authoritative; the
// Processor's deduplication keeps the two from double-classifying.
type Streamer struct {
	engine    *window.Engine
	processor *Processor
	zones     map[string]string // station id → zone
	readings  chan domain.Reading
	clock     clockwork.Clock
	logger    *slog.Logger
}

// NewStreamer creates the streaming context.
func NewStreamer(engine *window.Engine, processor *Processor, stations []config.Station, clock clockwork.Clock, logger *slog.Logger) *Streamer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	zones := make(map[string]string, len(stations))
	for _, s := range stations {
		zones[s.ID] = s.Zone
	}
	return &Streamer{
		engine:    engine,
		processor: processor,
		zones:     zones,
		readings:  make(chan domain.Reading, 256),
		clock:     clock,
		logger:    logger,
	}
}

// Push hands a validated reading to the streaming context. Non-blocking:
// when the buffer is full the reading is dropped, since the
// authoritative polling path will cover it from durable history.
func (s *Streamer) Push(reading domain.Reading) bool {
	select {
	case s.readings <- reading:
		return true
	default:
		s.logger.Warn("streaming buffer full, reading dropped",
			"station_id", reading.StationID)
		return false
	}
}

// Run consumes pushed readings until the context is cancelled.
func (s *Streamer) Run(ctx context.Context) error {
	s.logger.Info("streaming pipeline started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("streaming pipeline stopping", "reason", ctx.Err())
			return nil
		case reading := <-s.readings:
			s.handle(ctx, reading)
		}
	}
}

// handle updates the incremental windows for one reading and runs
// classification over the refreshed aggregates.
func (s *Streamer) handle(ctx context.Context, reading domain.Reading) {
	if result := domain.Validate(reading); !result.IsValid {
		s.logger.Warn("streamed reading failed validation",
			"station_id", reading.StationID, "reasons", result.Reasons)
		return
	}

	s.engine.Update(reading)

	asOf := s.clock.Now().UTC()
	results := make(map[domain.Pollutant][]window.Result, len(reading.Pollutants))
	for pollutant := range reading.Pollutants {
		if windowResults := s.engine.CurrentAverages(reading.StationID, pollutant, asOf); len(windowResults) > 0 {
			results[pollutant] = windowResults
		}
	}
	if len(results) == 0 {
		return
	}

	if err := s.processor.Process(ctx, reading.StationID, s.zones[reading.StationID], results); err != nil {
		s.logger.Error("streaming classification failed",
			"station_id", reading.StationID, "error", err)
	}
}
