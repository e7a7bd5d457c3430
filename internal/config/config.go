package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Station is one entry of the monitoring station roster.
type Station struct {
	ID        string  `yaml:"id"`
	Name      string  `yaml:"name"`
	Zone      string  `yaml:"zone"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Config holds all service settings, populated from environment
// variables plus the YAML station roster. Immutable after Load;
// components receive it by reference at construction.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	PollInterval time.Duration

	KafkaBrokers   []string
	KafkaSinkTopic string

	// WAQI ingestion connector.
	WAQIToken   string
	WAQITimeout time.Duration

	// OpenWeatherMap connector (feature-flagged via the API key).
	WeatherKey     string
	WeatherEnabled bool
	WeatherTimeout time.Duration

	// Static configuration tables.
	LimitsPath   string
	ZonesPath    string
	StationsPath string

	// Ledger JSONL path; empty selects the in-memory store.
	LedgerPath string

	Stations []Station
}

// Load reads configuration from environment variables, applying
// defaults where unset, and loads the station roster.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	waqiTimeout, err := parseDuration("WAQI_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	weatherTimeout, err := parseDuration("OPENWEATHERMAP_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	weatherKey := os.Getenv("OPENWEATHERMAP_KEY")
	weatherEnabled := weatherKey != ""
	if v := os.Getenv("OPENWEATHERMAP_ENABLED"); v != "" {
		weatherEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		PollInterval:    pollInterval,
		KafkaBrokers:    parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic:  envOrDefault("KAFKA_SINK_TOPIC", "compliance-events"),
		WAQIToken:       os.Getenv("WAQI_TOKEN"),
		WAQITimeout:     waqiTimeout,
		WeatherKey:      weatherKey,
		WeatherEnabled:  weatherEnabled,
		WeatherTimeout:  weatherTimeout,
		LimitsPath:      envOrDefault("LIMITS_PATH", "config/naaqs.yaml"),
		ZonesPath:       envOrDefault("ZONES_PATH", "config/zones.yaml"),
		StationsPath:    envOrDefault("STATIONS_PATH", "config/stations.yaml"),
		LedgerPath:      os.Getenv("LEDGER_PATH"),
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.PollInterval < time.Second {
		return nil, errors.New("POLL_INTERVAL must be at least 1s")
	}
	if cfg.WeatherEnabled && cfg.WeatherKey == "" {
		return nil, errors.New("OPENWEATHERMAP_ENABLED is true but OPENWEATHERMAP_KEY is not set")
	}

	stations, err := LoadStations(cfg.StationsPath)
	if err != nil {
		return nil, err
	}
	cfg.Stations = stations

	return cfg, nil
}

// LoadStations reads the station roster from a YAML file.
func LoadStations(path string) ([]Station, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read station roster: %w", err)
	}
	var file struct {
		Stations []Station `yaml:"stations"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse station roster: %w", err)
	}
	if len(file.Stations) == 0 {
		return nil, errors.New("station roster is empty")
	}
	for i, s := range file.Stations {
		if s.ID == "" {
			return nil, fmt.Errorf("station %d has no id", i)
		}
	}
	return file.Stations, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
