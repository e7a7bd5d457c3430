// Package weather implements the meteorology connector against the
// OpenWeatherMap current-weather API. Its output annotates readings and
// logs; it is never a classification input.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
)

// Client fetches current weather for a coordinate pair.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		logger:  logger,
	}
}

// FetchWeather retrieves current conditions for the coordinates and
// applies the temperature-inversion heuristic.
func (c *Client) FetchWeather(ctx context.Context, lat, lon float64) (domain.WeatherContext, error) {
	params := url.Values{
		"lat":   {fmt.Sprintf("%.4f", lat)},
		"lon":   {fmt.Sprintf("%.4f", lon)},
		"appid": {c.apiKey},
		"units": {"metric"}, // Celsius, m/s
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.WeatherContext{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherContext{}, fmt.Errorf("weather request for %.4f,%.4f: %w", lat, lon, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.WeatherContext{}, fmt.Errorf("openweathermap API error: status %d: %s", resp.StatusCode, body)
	}

	var owm owmResponse
	if err := json.NewDecoder(resp.Body).Decode(&owm); err != nil {
		return domain.WeatherContext{}, fmt.Errorf("decode weather response: %w", err)
	}

	wctx := domain.WeatherContext{
		Latitude:      lat,
		Longitude:     lon,
		Timestamp:     time.Unix(owm.Dt, 0).UTC(),
		Temperature:   owm.Main.Temp,
		FeelsLike:     owm.Main.FeelsLike,
		Humidity:      owm.Main.Humidity,
		Pressure:      owm.Main.Pressure,
		WindSpeed:     owm.Wind.Speed,
		WindDirection: owm.Wind.Deg,
		WindGust:      owm.Wind.Gust,
		Visibility:    owm.Visibility,
		CloudCover:    owm.Clouds.All,
	}
	if len(owm.Weather) > 0 {
		wctx.Description = owm.Weather[0].Description
	}
	wctx.InversionLikely = InversionLikely(wctx.Temperature, wctx.Humidity, wctx.WindSpeed)
	return wctx, nil
}

// InversionLikely applies the temperature-inversion heuristic: calm
// wind (< 2 m/s) combined with high humidity (> 80%) traps pollutants
// near ground level. Any missing input means no determination.
func InversionLikely(temp, humidity, windSpeed *float64) bool {
	if temp == nil || humidity == nil || windSpeed == nil {
		return false
	}
	return *windSpeed < 2.0 && *humidity > 80.0
}

// OpenWeatherMap API response types.

type owmResponse struct {
	Dt         int64        `json:"dt"`
	Main       owmMain      `json:"main"`
	Wind       owmWind      `json:"wind"`
	Clouds     owmClouds    `json:"clouds"`
	Visibility *float64     `json:"visibility"`
	Weather    []owmWeather `json:"weather"`
}

type owmMain struct {
	Temp      *float64 `json:"temp"`
	FeelsLike *float64 `json:"feels_like"`
	Humidity  *float64 `json:"humidity"`
	Pressure  *float64 `json:"pressure"`
}

type owmWind struct {
	Speed *float64 `json:"speed"`
	Deg   *float64 `json:"deg"`
	Gust  *float64 `json:"gust"`
}

type owmClouds struct {
	All *int `json:"all"`
}

type owmWeather struct {
	Description string `json:"description"`
}
