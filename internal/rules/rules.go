// Package rules evaluates pollutant averages against the regulatory
// limits table (CPCB National Ambient Air Quality Standards). The table
// is loaded once at startup; evaluation is pure and safe for concurrent
// use without locking.
package rules

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GOKUL-2024-HASH/Green-Pulse-v2/internal/domain"
)

// Period labels the averaging horizon a limit applies to.
type Period string

const (
	Period1h     Period = "1hr"
	Period8h     Period = "8hr"
	Period24h    Period = "24hr"
	PeriodAnnual Period = "annual"
)

// ErrNotConfigured reports an expected lookup miss: no limit exists for
// the pollutant/period pair (e.g. ozone has no 24hr standard). Callers
// must treat this as "no tier triggers from this horizon", not as a
// failure.
var ErrNotConfigured = errors.New("no limit configured")

// RuleResult is the outcome of evaluating one observed average against
// one regulatory limit. Pure value, no identity or lifecycle.
type RuleResult struct {
	Pollutant         domain.Pollutant `json:"pollutant"`
	AveragingPeriod   Period           `json:"averaging_period"`
	ObservedValue     float64          `json:"observed_value"`
	LimitValue        float64          `json:"limit_value"`
	WithinLimit       bool             `json:"within_limit"`
	ExceedanceValue   float64          `json:"exceedance_value"`
	ExceedancePercent float64          `json:"exceedance_percent"`
	RuleName          string           `json:"rule_name"`
	LegalReference    string           `json:"legal_reference"`
	RuleVersion       string           `json:"rule_version"`
}

func (r RuleResult) String() string {
	status := "OK"
	if !r.WithinLimit {
		status = "EXCEEDED"
	}
	return fmt.Sprintf("[%s] %s %s: %.4g / %.4g %s",
		status, r.Pollutant, r.AveragingPeriod, r.ObservedValue, r.LimitValue, r.Pollutant.Unit())
}

// tableFile is the on-disk YAML shape of the limits table.
type tableFile struct {
	Version        string                       `yaml:"version"`
	LegalReference string                       `yaml:"legal_reference"`
	Pollutants     map[string]map[string]float64 `yaml:"pollutants"`
}

// Table is the loaded regulatory limits table. Read-only after Load.
type Table struct {
	version        string
	legalReference string
	limits         map[domain.Pollutant]map[Period]float64
}

// Load reads the limits table from a YAML file. A missing or malformed
// file is a fatal configuration error: the classifier cannot run
// without regulatory limits.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("regulatory limits table is required: %w", err)
	}
	return Parse(data)
}

// Parse builds a Table from YAML bytes.
func Parse(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse regulatory limits table: %w", err)
	}
	if len(file.Pollutants) == 0 {
		return nil, errors.New("regulatory limits table defines no pollutants")
	}

	t := &Table{
		version:        file.Version,
		legalReference: file.LegalReference,
		limits:         make(map[domain.Pollutant]map[Period]float64, len(file.Pollutants)),
	}
	for name, periods := range file.Pollutants {
		p := domain.Pollutant(name)
		t.limits[p] = make(map[Period]float64, len(periods))
		for label, limit := range periods {
			if limit <= 0 {
				return nil, fmt.Errorf("limit for %s %s must be positive, got %v", name, label, limit)
			}
			t.limits[p][Period(label)] = limit
		}
	}
	return t, nil
}

// Version returns the rule-set version label.
func (t *Table) Version() string { return t.version }

// Limit returns the regulatory limit for the pollutant and averaging
// period, and whether one is configured.
func (t *Table) Limit(pollutant domain.Pollutant, period Period) (float64, bool) {
	periods, ok := t.limits[pollutant]
	if !ok {
		return 0, false
	}
	limit, ok := periods[period]
	return limit, ok
}

// Evaluate compares an observed average against the configured limit.
// The limit value itself is compliant. Returns ErrNotConfigured when no
// limit exists for the pollutant/period pair.
func (t *Table) Evaluate(pollutant domain.Pollutant, period Period, observed float64) (RuleResult, error) {
	limit, ok := t.Limit(pollutant, period)
	if !ok {
		return RuleResult{}, fmt.Errorf("%w for pollutant=%s period=%s", ErrNotConfigured, pollutant, period)
	}

	withinLimit := observed <= limit
	exceedanceValue := 0.0
	exceedancePercent := 0.0
	if !withinLimit {
		exceedanceValue = math.Round((observed-limit)*10000) / 10000
		exceedancePercent = math.Round((observed/limit-1)*100*100) / 100
	}

	return RuleResult{
		Pollutant:         pollutant,
		AveragingPeriod:   period,
		ObservedValue:     observed,
		LimitValue:        limit,
		WithinLimit:       withinLimit,
		ExceedanceValue:   exceedanceValue,
		ExceedancePercent: exceedancePercent,
		RuleName:          fmt.Sprintf("NAAQS %s %s limit (%g %s)", pollutant, period, limit, pollutant.Unit()),
		LegalReference:    t.legalReference,
		RuleVersion:       t.version,
	}, nil
}
