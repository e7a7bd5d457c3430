// Package waqi implements the ingestion connector against the World
// Air Quality Index feed API.
package waqi

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

// Client fetches station readings from the WAQI feed API. All failure
// modes (network, timeout, upstream error, malformed payload) surface
// as an error the caller treats as "no reading this cycle".
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a WAQI feed client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.waqi.info/feed",
		logger:  logger,
	}
}

// FetchReading retrieves the latest observation for a station.
func (c *Client) FetchReading(ctx context.Context, stationID string) (domain.Reading, error) {
	u := fmt.Sprintf("%s/%s/?token=%s", c.baseURL, url.PathEscape(stationID), url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("waqi request for %s: %w", stationID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Reading{}, fmt.Errorf("waqi API error: status %d: %s", resp.StatusCode, body)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return domain.Reading{}, fmt.Errorf("decode waqi response: %w", err)
	}
	if feed.Status != "ok" {
		return domain.Reading{}, fmt.Errorf("waqi upstream error for %s: status %q", stationID, feed.Status)
	}

	return mapReading(stationID, feed.Data)
}

// mapReading converts a WAQI feed payload into a domain Reading.
func mapReading(stationID string, data feedData) (domain.Reading, error) {
	ts, err := parseFeedTime(data.Time)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("waqi timestamp for %s: %w", stationID, err)
	}

	reading := domain.Reading{
		StationID:   stationID,
		StationName: data.City.Name,
		Timestamp:   ts,
		Pollutants:  make(map[domain.Pollutant]float64),
		SourceURL:   data.City.URL,
	}
	if data.AQI != nil {
		aqi := int(*data.AQI)
		reading.AQI = &aqi
	}

	for _, p := range domain.Pollutants {
		if m, ok := data.IAQI[string(p)]; ok {
			reading.Pollutants[p] = m.V
		}
	}

	reading.Met = domain.MetContext{
		Temperature:   iaqiValue(data.IAQI, "t"),
		Humidity:      iaqiValue(data.IAQI, "h"),
		WindSpeed:     iaqiValue(data.IAQI, "w"),
		WindDirection: iaqiValue(data.IAQI, "wd"),
		Pressure:      iaqiValue(data.IAQI, "p"),
		DewPoint:      iaqiValue(data.IAQI, "dew"),
	}

	return reading, nil
}

// parseFeedTime parses the feed's ISO timestamp. Timestamps without a
// zone are treated as UTC.
func parseFeedTime(t feedTime) (time.Time, error) {
	if t.ISO == "" {
		return time.Time{}, fmt.Errorf("missing observation time")
	}
	if ts, err := time.Parse(time.RFC3339, t.ISO); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02T15:04:05", t.ISO)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable observation time %q", t.ISO)
	}
	return ts.UTC(), nil
}

func iaqiValue(iaqi map[string]measurement, key string) *float64 {
	if m, ok := iaqi[key]; ok {
		v := m.V
		return &v
	}
	return nil
}

// WAQI feed API response types.

type feedResponse struct {
	Status string   `json:"status"`
	Data   feedData `json:"data"`
}

type feedData struct {
	AQI  *float64               `json:"aqi"`
	IAQI map[string]measurement `json:"iaqi"`
	Time feedTime               `json:"time"`
	City feedCity               `json:"city"`
}

type measurement struct {
	V float64 `json:"v"`
}

type feedTime struct {
	ISO string `json:"iso"`
}

type feedCity struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
