package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/config"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/observability"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/window"
)

// ReadingFetcher is the ingestion connector boundary.
type ReadingFetcher interface {
	FetchReading(ctx context.Context, stationID string) (domain.Reading, error)
}

// WeatherFetcher is the meteorology connector boundary.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, lat, lon float64) (domain.WeatherContext, error)
}

// ReadingPusher accepts screened readings for the advisory streaming
// context. Push must not block.
type ReadingPusher interface {
	Push(reading domain.Reading) bool
}

// Poller is the authoritative execution context. Each cycle it fetches
// every station's latest reading, validates, cross-validates against
// the cycle's neighbor readings, records surviving values into the
// reading history, recomputes windows point-in-time, and hands the
// results to the Processor.
type Poller struct {
	stations  []config.Station
	fetcher   ReadingFetcher
	weather   WeatherFetcher // nil when the weather connector is disabled
	stream    ReadingPusher  // nil when no streaming context is wired
	history   *window.History
	processor *Processor
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewPoller creates the polling context. A non-nil stream receives
// every screened reading, keeping the advisory incremental windows
// warm between poll cycles.
func NewPoller(stations []config.Station, fetcher ReadingFetcher, weather WeatherFetcher, stream ReadingPusher, history *window.History, processor *Processor, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Poller{
		stations:  stations,
		fetcher:   fetcher,
		weather:   weather,
		stream:    stream,
		history:   history,
		processor: processor,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run executes poll cycles until the context is cancelled. Shutdown is
// cooperative: the in-flight cycle finishes before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("polling pipeline started", "interval", p.interval, "stations", len(p.stations))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("polling pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			p.cycle(ctx)
		}
	}
}

// cycle runs one fetch-validate-score-classify pass over all stations.
// Connector failures skip the affected station only.
func (p *Poller) cycle(ctx context.Context) {
	start := p.clock.Now()

	readings := p.fetchAll(ctx)
	if len(readings) > 0 {
		p.annotateWeather(ctx)
	}

	for _, station := range p.stations {
		reading, ok := readings[station.ID]
		if !ok {
			continue
		}

		accepted := p.screen(station.ID, reading, readings)
		if len(accepted.Pollutants) == 0 {
			continue
		}

		p.history.Append(accepted)
		p.metrics.WindowUpdates.Inc()

		// The streaming context gets the same screened reading; the
		// Processor's dedup keeps the two paths from double-emitting.
		if p.stream != nil {
			p.stream.Push(accepted)
		}

		asOf := p.clock.Now().UTC()
		p.history.Prune(asOf)
		results := p.history.RecomputeAll(station.ID, asOf)
		if len(results) == 0 {
			continue
		}

		if err := p.processor.Process(ctx, station.ID, station.Zone, results); err != nil {
			// Classification persistence is transactional per station;
			// the next cycle re-evaluates from durable history.
			p.logger.Error("classification cycle failed", "station_id", station.ID, "error", err)
		}
	}

	p.metrics.PollCycleDuration.Observe(p.clock.Since(start).Seconds())
}

// fetchAll collects the latest valid reading per station. Invalid and
// unreachable readings are dropped here, before any aggregation.
func (p *Poller) fetchAll(ctx context.Context) map[string]domain.Reading {
	readings := make(map[string]domain.Reading, len(p.stations))
	for _, station := range p.stations {
		if ctx.Err() != nil {
			return readings
		}

		reading, err := p.fetcher.FetchReading(ctx, station.ID)
		if err != nil {
			p.metrics.FetchErrors.Inc()
			p.logger.Warn("no reading this cycle", "station_id", station.ID, "error", err)
			continue
		}
		p.metrics.ReadingsFetched.Inc()

		if result := domain.Validate(reading); !result.IsValid {
			p.metrics.ValidationFailures.Inc()
			p.logger.Warn("reading failed validation",
				"station_id", station.ID, "reasons", result.Reasons)
			continue
		}
		readings[station.ID] = reading
	}
	return readings
}

// screen cross-validates each pollutant of a reading against the
// cycle's neighbor readings and strips quarantined values.
func (p *Poller) screen(stationID string, reading domain.Reading, all map[string]domain.Reading) domain.Reading {
	neighbors := make([]domain.Reading, 0, len(all)-1)
	for id, r := range all {
		if id != stationID {
			neighbors = append(neighbors, r)
		}
	}

	scores := domain.ScoreAllPollutants(stationID, reading, neighbors)

	accepted := reading
	accepted.Pollutants = make(map[domain.Pollutant]float64, len(reading.Pollutants))
	for pollutant, value := range reading.Pollutants {
		if score, ok := scores[pollutant]; ok && score.IsQuarantined {
			p.metrics.ReadingsQuarantined.WithLabelValues(string(pollutant)).Inc()
			p.logger.Warn("reading quarantined",
				"station_id", stationID,
				"pollutant", pollutant,
				"score", score.Score,
				"reason", score.Reason,
			)
			continue
		}
		accepted.Pollutants[pollutant] = value
	}
	return accepted
}

// annotateWeather logs inversion conditions per station as operational
// context. Weather never enters classification.
func (p *Poller) annotateWeather(ctx context.Context) {
	if p.weather == nil {
		return
	}
	for _, station := range p.stations {
		if ctx.Err() != nil {
			return
		}
		wctx, err := p.weather.FetchWeather(ctx, station.Latitude, station.Longitude)
		if err != nil {
			p.logger.Debug("weather unavailable", "station_id", station.ID, "error", err)
			continue
		}
		if wctx.InversionLikely {
			p.metrics.InversionFlags.Inc()
			p.logger.Info("temperature inversion likely",
				"station_id", station.ID,
				"wind_speed", wctx.WindSpeed,
				"humidity", wctx.Humidity,
			)
		}
	}
}
