package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ZoneTable maps zone names to threshold adjustment factors. Read-only
// after load; unknown zones fall back to 1.0.
type ZoneTable struct {
	factors map[string]float64
}

type zonesFile struct {
	Zones map[string]struct {
		ThresholdAdjustment float64 `yaml:"threshold_adjustment"`
	} `yaml:"zones"`
}

// LoadZones reads the zone factor table from a YAML file.
func LoadZones(path string) (*ZoneTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zones table: %w", err)
	}
	return ParseZones(data)
}

// ParseZones builds a ZoneTable from YAML bytes.
func ParseZones(data []byte) (*ZoneTable, error) {
	var file zonesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse zones table: %w", err)
	}
	t := &ZoneTable{factors: make(map[string]float64, len(file.Zones))}
	for name, z := range file.Zones {
		if z.ThresholdAdjustment <= 0 {
			return nil, fmt.Errorf("zone %q threshold_adjustment must be positive, got %v", name, z.ThresholdAdjustment)
		}
		t.factors[name] = z.ThresholdAdjustment
	}
	return t, nil
}

// DefaultZones returns a table where every zone resolves to factor 1.0.
func DefaultZones() *ZoneTable {
	return &ZoneTable{factors: map[string]float64{}}
}

// Factor returns the threshold adjustment factor for a zone,
// defaulting to 1.0 for absent or unknown zones.
func (t *ZoneTable) Factor(zone string) float64 {
	if t == nil {
		return 1.0
	}
	if f, ok := t.factors[zone]; ok {
		return f
	}
	return 1.0
}
