package domain

import (
	"fmt"
	"math"
)

const (
	// QuarantineThreshold is the score below which a reading must not
	// feed compliance decisions.
	QuarantineThreshold = 60.0

	// maxDeviationFactor scales the penalty for readings far above the
	// neighbor average.
	maxDeviationFactor = 3.0

	// minNeighbors is the minimum peer count for cross-validation.
	minNeighbors = 1

	// neutralScore is assigned when no peers are available. Above the
	// quarantine threshold: an unverifiable reading is not an anomalous one.
	neutralScore = 70.0
)

// ConfidenceResult is the outcome of cross-validating one pollutant value
// against concurrent neighbor-station values.
type ConfidenceResult struct {
	StationID       string
	Pollutant       Pollutant
	ObservedValue   float64
	NeighborAverage *float64 // nil when no valid neighbors
	DeviationRatio  *float64 // nil when no valid neighbors
	Score           float64  // 0–100
	IsQuarantined   bool
	Reason          string // set only when quarantined
}

func (r ConfidenceResult) String() string {
	status := "OK"
	if r.IsQuarantined {
		status = "QUARANTINED"
	}
	return fmt.Sprintf("[%s] station=%s pollutant=%s value=%.1f score=%.1f",
		status, r.StationID, r.Pollutant, r.ObservedValue, r.Score)
}

// Score cross-validates an observed value against neighbor-station values
// for the same pollutant. Deviation ratios within [0.5, 2.0] of the
// neighbor average score 100; beyond that the score decays linearly.
// Pure function: no shared state is touched.
func Score(stationID string, pollutant Pollutant, observed float64, neighborValues []float64) ConfidenceResult {
	if math.IsNaN(observed) || math.IsInf(observed, 0) {
		return ConfidenceResult{
			StationID:     stationID,
			Pollutant:     pollutant,
			Score:         0,
			IsQuarantined: true,
			Reason:        "observed value is not a valid number",
		}
	}

	valid := make([]float64, 0, len(neighborValues))
	for _, v := range neighborValues {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		valid = append(valid, v)
	}

	score, neighborAvg, ratio := computeScore(observed, valid)

	result := ConfidenceResult{
		StationID:       stationID,
		Pollutant:       pollutant,
		ObservedValue:   observed,
		NeighborAverage: neighborAvg,
		DeviationRatio:  ratio,
		Score:           score,
	}
	if score < QuarantineThreshold {
		result.IsQuarantined = true
		if len(valid) < minNeighbors {
			result.Reason = "insufficient neighbors for cross-validation"
		} else {
			result.Reason = fmt.Sprintf("deviation ratio %.4f indicates anomalous reading", deref(ratio))
		}
	}
	return result
}

// computeScore returns (score 0–100, neighbor average, deviation ratio).
func computeScore(observed float64, neighbors []float64) (float64, *float64, *float64) {
	if len(neighbors) == 0 {
		return neutralScore, nil, nil
	}

	sum := 0.0
	for _, v := range neighbors {
		sum += v
	}
	avg := sum / float64(len(neighbors))

	if avg == 0 {
		ratio := math.Inf(1)
		if observed == 0 {
			ratio = 1.0
			return 100, &avg, &ratio
		}
		// Every neighbor reads zero but this station does not.
		return 20, &avg, &ratio
	}

	ratio := observed / avg

	var score float64
	switch {
	case ratio >= 0.5 && ratio <= 2.0:
		score = 100
	case ratio > 2.0:
		excess := ratio - 2.0
		score = math.Max(0, 100-(excess/maxDeviationFactor)*80)
	default:
		// Below 0.5x the neighbor average the instrument reads too low.
		deficit := 0.5 - ratio
		score = math.Max(0, 100-(deficit/0.5)*60)
	}

	score = math.Round(score*100) / 100
	avg = math.Round(avg*10000) / 10000
	ratio = math.Round(ratio*10000) / 10000
	return score, &avg, &ratio
}

// ScoreAllPollutants scores every pollutant present in the reading
// against the corresponding values from neighbor readings.
func ScoreAllPollutants(stationID string, reading Reading, neighbors []Reading) map[Pollutant]ConfidenceResult {
	results := make(map[Pollutant]ConfidenceResult)
	for _, p := range Pollutants {
		value, ok := reading.Value(p)
		if !ok {
			continue
		}
		var neighborValues []float64
		for _, nr := range neighbors {
			if v, ok := nr.Value(p); ok {
				neighborValues = append(neighborValues, v)
			}
		}
		results[p] = Score(stationID, p, value, neighborValues)
	}
	return results
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
