// Package classify turns window aggregates into tiered compliance
// events by consulting the regulatory rule engine.
//
// Tiers escalate with the averaging horizon: a 1hr breach is MONITOR,
// an 8hr breach is FLAG, and a 24hr breach is VIOLATION (which enters
// officer review). The horizons are evaluated independently, so all
// three tiers can fire simultaneously for the same pollutant.
package classify

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/rules"
	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/window"
)

// Tier is the severity classification of a compliance breach.
type Tier string

const (
	TierMonitor   Tier = "MONITOR"   // 1hr breach
	TierFlag      Tier = "FLAG"      // 8hr breach
	TierViolation Tier = "VIOLATION" // 24hr breach
)

// Status is the lifecycle state a new event starts in. Violations go
// to officer review; lower tiers carry their tier name as status.
type Status string

const (
	StatusMonitor              Status = "MONITOR"
	StatusFlag                 Status = "FLAG"
	StatusPendingOfficerReview Status = "PENDING_OFFICER_REVIEW"
)

// Event is one tier classification for one pollutant at one station.
type Event struct {
	EventID                string           `json:"event_id"`
	StationID              string           `json:"station_id"`
	Pollutant              domain.Pollutant `json:"pollutant"`
	Tier                   Tier             `json:"tier"`
	Status                 Status           `json:"status"`
	Rule                   rules.RuleResult `json:"rule"`
	WindowHours            int              `json:"window_hours"`
	WindowStart            time.Time        `json:"window_start"`
	WindowEnd              time.Time        `json:"window_end"`
	Met                    domain.MetContext `json:"met,omitempty"`
	IsConsecutiveDayBreach bool             `json:"is_consecutive_day_breach"`
}

// Result aggregates the events produced for one station in one
// evaluation cycle.
type Result struct {
	StationID string
	Events    []Event
	Timestamp time.Time
}

// HasViolation reports whether any event reached the VIOLATION tier.
func (r Result) HasViolation() bool {
	for _, e := range r.Events {
		if e.Tier == TierViolation {
			return true
		}
	}
	return false
}

// HasFlag reports whether any event reached the FLAG tier.
func (r Result) HasFlag() bool {
	for _, e := range r.Events {
		if e.Tier == TierFlag {
			return true
		}
	}
	return false
}

// BreachProbe answers whether the station had a prior 24hr VIOLATION
// for the pollutant inside the 24–48 hour lookback (excluding the most
// recent hour, to avoid self-overlap with the event being classified).
type BreachProbe interface {
	HadRecentViolation(stationID string, pollutant domain.Pollutant) bool
}

// tierForHorizon maps window hours to the tier and initial status that
// a breach at that horizon produces.
var tierForHorizon = map[int]struct {
	period rules.Period
	tier   Tier
	status Status
}{
	24: {rules.Period24h, TierViolation, StatusPendingOfficerReview},
	8:  {rules.Period8h, TierFlag, StatusFlag},
	1:  {rules.Period1h, TierMonitor, StatusMonitor},
}

// Classifier combines window results with rule-engine lookups and
// zone-based threshold adjustment. Stateless apart from its read-only
// tables; safe for concurrent use.
type Classifier struct {
	rules  *rules.Table
	zones  *ZoneTable
	logger *slog.Logger
}

// New creates a Classifier over the given rule and zone tables.
func New(table *rules.Table, zones *ZoneTable, logger *slog.Logger) *Classifier {
	if zones == nil {
		zones = DefaultZones()
	}
	return &Classifier{rules: table, zones: zones, logger: logger}
}

// Classify evaluates the window results for one pollutant at one
// station and returns zero or more events. Horizons are checked 24h
// first, then 8h, then 1h; the order affects only log ordering, never
// suppression. Horizons without a configured rule are skipped silently.
func (c *Classifier) Classify(stationID string, pollutant domain.Pollutant, windowResults []window.Result, zone string, probe BreachProbe) []Event {
	factor := c.zones.Factor(zone)

	byHours := make(map[int]window.Result, len(windowResults))
	for _, wr := range windowResults {
		byHours[wr.WindowHours] = wr
	}

	var events []Event
	for _, hours := range []int{24, 8, 1} {
		wr, ok := byHours[hours]
		if !ok {
			continue
		}
		mapping := tierForHorizon[hours]

		// Factors below 1.0 inflate the adjusted value, tightening the
		// effective limit for stricter zones.
		adjusted := wr.AverageValue / factor

		rule, err := c.rules.Evaluate(pollutant, mapping.period, adjusted)
		if err != nil {
			if !errors.Is(err, rules.ErrNotConfigured) {
				c.logger.Warn("rule evaluation failed",
					"station_id", stationID, "pollutant", pollutant, "period", mapping.period, "error", err)
			}
			continue
		}
		if rule.WithinLimit {
			continue
		}

		event := Event{
			EventID:     uuid.NewString(),
			StationID:   stationID,
			Pollutant:   pollutant,
			Tier:        mapping.tier,
			Status:      mapping.status,
			Rule:        rule,
			WindowHours: hours,
			WindowStart: wr.WindowStart,
			WindowEnd:   wr.WindowEnd,
			Met:         wr.Met,
		}
		if mapping.tier == TierViolation && probe != nil {
			event.IsConsecutiveDayBreach = probe.HadRecentViolation(stationID, pollutant)
		}

		c.logger.Info("tier breach classified",
			"tier", mapping.tier,
			"station_id", stationID,
			"pollutant", pollutant,
			"observed", rule.ObservedValue,
			"limit", rule.LimitValue,
			"exceedance_percent", rule.ExceedancePercent,
			"consecutive_day_breach", event.IsConsecutiveDayBreach,
		)
		events = append(events, event)
	}
	return events
}

// ClassifyAllPollutants fans Classify out across every pollutant with
// window results for the station.
func (c *Classifier) ClassifyAllPollutants(stationID string, allResults map[domain.Pollutant][]window.Result, zone string, probe BreachProbe, now time.Time) Result {
	result := Result{StationID: stationID, Timestamp: now}
	for _, pollutant := range domain.Pollutants {
		windowResults, ok := allResults[pollutant]
		if !ok {
			continue
		}
		result.Events = append(result.Events, c.Classify(stationID, pollutant, windowResults, zone, probe)...)
	}
	if len(result.Events) > 0 {
		counts := map[Tier]int{}
		for _, e := range result.Events {
			counts[e.Tier]++
		}
		c.logger.Info("classification complete",
			"station_id", stationID,
			"events", len(result.Events),
			"violations", counts[TierViolation],
			"flags", counts[TierFlag],
			"monitors", counts[TierMonitor],
		)
	}
	return result
}
