package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// bound is an inclusive physical plausibility range. Values exactly at a
// bound are valid; one unit beyond is not.
type bound struct {
	min, max float64
}

// pollutantBounds holds the physical plausibility range per pollutant.
var pollutantBounds = map[Pollutant]bound{
	PM25: {0, 1000}, // µg/m³
	PM10: {0, 2000}, // µg/m³
	NO2:  {0, 2000}, // µg/m³
	SO2:  {0, 2000}, // µg/m³
	CO:   {0, 100},  // mg/m³
	O3:   {0, 1000}, // µg/m³
}

// metBounds holds the physical plausibility range per meteorological field.
var metBounds = map[string]bound{
	"temperature": {-50, 60},  // °C
	"humidity":    {0, 100},   // %
	"wind_speed":  {0, 100},   // m/s
	"pressure":    {800, 1100}, // hPa
}

const (
	// maxReadingAge is how old a reading may be before it is stale.
	maxReadingAge = 2 * time.Hour
	// futureTolerance allows small clock skew between station and pipeline.
	futureTolerance = 5 * time.Minute
)

// ValidationResult reports whether a reading may enter aggregation and,
// when it may not, every reason it was rejected.
type ValidationResult struct {
	IsValid bool
	Reasons []string
}

func (r *ValidationResult) addError(msg string) {
	r.Reasons = append(r.Reasons, msg)
	r.IsValid = false
}

func (r ValidationResult) String() string {
	if r.IsValid {
		return "valid"
	}
	return "invalid: " + strings.Join(r.Reasons, "; ")
}

// Validate checks a reading for structural completeness, physical
// plausibility, and timestamp recency. All violations accumulate into
// Reasons; callers drop invalid readings but the check itself has no
// side effects.
func Validate(reading Reading) ValidationResult {
	result := ValidationResult{IsValid: true}

	if reading.StationID == "" {
		result.addError("missing required field: station_id")
	}
	if reading.Timestamp.IsZero() {
		result.addError("missing required field: timestamp")
	}

	if len(reading.Pollutants) == 0 {
		result.addError("no pollutant values present in reading")
	}

	if !reading.Timestamp.IsZero() {
		age := clock.Now().Sub(reading.Timestamp.UTC())
		if age > maxReadingAge {
			result.addError(fmt.Sprintf("timestamp too old: %s (max %s)", age, maxReadingAge))
		}
		if age < -futureTolerance {
			result.addError(fmt.Sprintf("timestamp is in the future: %s", reading.Timestamp.Format(time.RFC3339)))
		}
	}

	for _, p := range Pollutants {
		value, ok := reading.Pollutants[p]
		if !ok {
			continue
		}
		checkBound(&result, string(p), value, pollutantBounds[p])
	}

	met := reading.Met
	for _, f := range []struct {
		name  string
		value *float64
	}{
		{"temperature", met.Temperature},
		{"humidity", met.Humidity},
		{"wind_speed", met.WindSpeed},
		{"pressure", met.Pressure},
	} {
		if f.value == nil {
			continue
		}
		checkBound(&result, f.name, *f.value, metBounds[f.name])
	}

	return result
}

func checkBound(result *ValidationResult, name string, value float64, b bound) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		result.addError(fmt.Sprintf("%s must be a finite number, got %v", name, value))
		return
	}
	if value < b.min {
		result.addError(fmt.Sprintf("%s=%v below physical minimum %v", name, value, b.min))
	}
	if value > b.max {
		result.addError(fmt.Sprintf("%s=%v exceeds physical maximum %v", name, value, b.max))
	}
}
