package domain

import "time"

// Pollutant identifies one of the six monitored pollutants.
type Pollutant string

const (
	PM25 Pollutant = "pm25" // µg/m³
	PM10 Pollutant = "pm10" // µg/m³
	NO2  Pollutant = "no2"  // µg/m³
	SO2  Pollutant = "so2"  // µg/m³
	CO   Pollutant = "co"   // mg/m³
	O3   Pollutant = "o3"   // µg/m³
)

// Pollutants lists every monitored pollutant in canonical order.
var Pollutants = []Pollutant{PM25, PM10, NO2, SO2, CO, O3}

// Unit returns the measurement unit for the pollutant.
func (p Pollutant) Unit() string {
	if p == CO {
		return "mg/m³"
	}
	return "µg/m³"
}

// MetContext carries meteorological context attached to a reading.
// All fields are optional; nil means the station did not report it.
type MetContext struct {
	Temperature   *float64 `json:"temperature,omitempty"`    // °C
	Humidity      *float64 `json:"humidity,omitempty"`       // %
	WindSpeed     *float64 `json:"wind_speed,omitempty"`     // m/s
	WindDirection *float64 `json:"wind_direction,omitempty"` // degrees
	Pressure      *float64 `json:"pressure,omitempty"`       // hPa
	DewPoint      *float64 `json:"dew_point,omitempty"`      // °C
}

// IsZero reports whether no meteorological field is present.
func (m MetContext) IsZero() bool {
	return m.Temperature == nil && m.Humidity == nil && m.WindSpeed == nil &&
		m.WindDirection == nil && m.Pressure == nil && m.DewPoint == nil
}

// Reading is a single observation from one station: zero or more
// pollutant values plus meteorological context. Immutable once created;
// produced by the ingestion connector.
type Reading struct {
	StationID   string                `json:"station_id"`
	StationName string                `json:"station_name,omitempty"`
	Timestamp   time.Time             `json:"timestamp"`
	Pollutants  map[Pollutant]float64 `json:"pollutants"`
	Met         MetContext            `json:"met,omitempty"`

	// Source metadata.
	AQI       *int   `json:"aqi,omitempty"`
	SourceURL string `json:"source_url,omitempty"`
}

// Value returns the reading's value for a pollutant, if present.
func (r Reading) Value(p Pollutant) (float64, bool) {
	v, ok := r.Pollutants[p]
	return v, ok
}

// WeatherContext is the meteorology snapshot returned by the weather
// connector. Contextual annotation only, never a classification input.
type WeatherContext struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`

	Temperature   *float64 `json:"temperature,omitempty"` // °C
	FeelsLike     *float64 `json:"feels_like,omitempty"`  // °C
	Humidity      *float64 `json:"humidity,omitempty"`    // %
	Pressure      *float64 `json:"pressure,omitempty"`    // hPa
	WindSpeed     *float64 `json:"wind_speed,omitempty"`  // m/s
	WindDirection *float64 `json:"wind_direction,omitempty"`
	WindGust      *float64 `json:"wind_gust,omitempty"`
	Visibility    *float64 `json:"visibility,omitempty"` // metres
	CloudCover    *int     `json:"cloud_cover,omitempty"`
	Description   string   `json:"description,omitempty"`

	// Stagnant, humid air traps pollutants near ground level.
	InversionLikely bool `json:"inversion_likely"`
}
