package core

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/vessel-systems/model"
)

// Tuning holds the physical constants of the atmosphere model and a few
// bookkeeping knobs. Zero fields are filled by ApplyDefaults.
type Tuning struct {
	// PressureEpsilon is how close a room must get to its target before
	// the target is cleared.
	PressureEpsilon float64 `yaml:"pressure_epsilon"`
	// Default room speeds, in bar per second, when the room data leaves
	// them at zero.
	PressurizeSpeed   float64 `yaml:"pressurize_speed"`
	DepressurizeSpeed float64 `yaml:"depressurize_speed"`
	VentSpeed         float64 `yaml:"vent_speed"`
	// FireMinOxygen is the minimum quality*pressure product a fire needs.
	FireMinOxygen float64 `yaml:"fire_min_oxygen"`
	// DoorPairingTolerance is the default distance, in metres, within
	// which two docking doors pair.
	DoorPairingTolerance float64 `yaml:"door_pairing_tolerance"`
	// CartridgeReportPeriod forces a machinery part report at least this
	// often, in seconds, while the part wears.
	CartridgeReportPeriod float64 `yaml:"cartridge_report_period"`
	// AirConsumerRates is in m³ per second, keyed by consumer type then
	// severity.
	AirConsumerRates map[model.AirConsumerType]map[model.Severity]float64 `yaml:"air_consumer_rates"`
	// RequirementTagMultipliers scale every resource requirement of a
	// vessel carrying the tag, e.g. {"efficient": 0.8}.
	RequirementTagMultipliers map[string]float64 `yaml:"requirement_tag_multipliers"`
}

// DefaultTuning returns the stock constants.
func DefaultTuning() *Tuning {
	t := &Tuning{}
	t.ApplyDefaults()
	return t
}

// ApplyDefaults fills every zero field with its stock value.
func (t *Tuning) ApplyDefaults() {
	if t.PressureEpsilon <= 0 {
		t.PressureEpsilon = 0.001
	}
	if t.PressurizeSpeed <= 0 {
		t.PressurizeSpeed = 0.05
	}
	if t.DepressurizeSpeed <= 0 {
		t.DepressurizeSpeed = 0.05
	}
	if t.VentSpeed <= 0 {
		t.VentSpeed = 0.1
	}
	if t.FireMinOxygen <= 0 {
		t.FireMinOxygen = 0.25
	}
	if t.DoorPairingTolerance <= 0 {
		t.DoorPairingTolerance = 0.5
	}
	if t.CartridgeReportPeriod <= 0 {
		t.CartridgeReportPeriod = 10
	}
	defaults := map[model.AirConsumerType]map[model.Severity]float64{
		model.AirConsumerFire:              {model.SeveritySmall: 0.02, model.SeverityLarge: 0.08},
		model.AirConsumerBreach:            {model.SeveritySmall: 0.5, model.SeverityLarge: 2.0},
		model.AirConsumerRepairPointDamage: {model.SeveritySmall: 0.05, model.SeverityLarge: 0.2},
	}
	if t.AirConsumerRates == nil {
		t.AirConsumerRates = make(map[model.AirConsumerType]map[model.Severity]float64)
	}
	for kind, bySeverity := range defaults {
		if t.AirConsumerRates[kind] == nil {
			t.AirConsumerRates[kind] = make(map[model.Severity]float64)
		}
		for sev, rate := range bySeverity {
			if t.AirConsumerRates[kind][sev] <= 0 {
				t.AirConsumerRates[kind][sev] = rate
			}
		}
	}
}

// AirConsumerRate looks up the rate for a consumer type and severity.
func (t *Tuning) AirConsumerRate(kind model.AirConsumerType, sev model.Severity) float64 {
	return t.AirConsumerRates[kind][sev]
}

// RequirementMultiplier is the product of the multipliers of every tag.
func (t *Tuning) RequirementMultiplier(tags []string) float64 {
	m := 1.0
	for _, tag := range tags {
		if v, ok := t.RequirementTagMultipliers[tag]; ok && v > 0 {
			m *= v
		}
	}
	return m
}

// DecodeTuning reads YAML tuning from r and applies defaults.
func DecodeTuning(r io.Reader) (*Tuning, error) {
	t := &Tuning{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(t); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode tuning: %w", err)
	}
	t.ApplyDefaults()
	return t, nil
}

// LoadTuningFile reads tuning from a YAML file. An empty path yields the
// defaults.
func LoadTuningFile(path string) (*Tuning, error) {
	if path == "" {
		return DefaultTuning(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tuning: %w", err)
	}
	defer f.Close()
	return DecodeTuning(f)
}
