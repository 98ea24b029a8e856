package model

import (
	"fmt"
	"strings"
)

// ResourceType identifies a distributable resource.
type ResourceType int

const (
	ResourceNone ResourceType = iota
	ResourcePower
	ResourceAir
	ResourceScrubbedAir
	ResourceHydrogen
	ResourceDeuterium
	ResourceNitro
)

var resourceTypeNames = []string{"none", "power", "air", "scrubbed_air", "hydrogen", "deuterium", "nitro"}

// ResourceTypes lists every real resource in declaration order.
func ResourceTypes() []ResourceType {
	return []ResourceType{ResourcePower, ResourceAir, ResourceScrubbedAir, ResourceHydrogen, ResourceDeuterium, ResourceNitro}
}

func (t ResourceType) String() string               { return enumString(resourceTypeNames, int(t)) }
func (t ResourceType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
func (t *ResourceType) UnmarshalText(b []byte) error {
	return parseEnumInto(resourceTypeNames, "resource type", b, (*int)(t))
}

// ParseResourceType maps a name such as "power" onto a ResourceType.
func ParseResourceType(s string) (ResourceType, error) {
	var t ResourceType
	err := t.UnmarshalText([]byte(s))
	return t, err
}

// SystemStatus is the primary lifecycle state of a vessel component.
type SystemStatus int

const (
	StatusOffLine SystemStatus = iota
	StatusPowerUp
	StatusOnLine
	StatusCoolDown
)

var systemStatusNames = []string{"offline", "power_up", "online", "cool_down"}

func (s SystemStatus) String() string               { return enumString(systemStatusNames, int(s)) }
func (s SystemStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (s *SystemStatus) UnmarshalText(b []byte) error {
	return parseEnumInto(systemStatusNames, "system status", b, (*int)(s))
}

// SecondaryStatus qualifies the primary status.
type SecondaryStatus int

const (
	SecondaryNone SecondaryStatus = iota
	SecondaryIdle
	SecondaryMalfunction
	SecondaryDefective
)

var secondaryStatusNames = []string{"none", "idle", "malfunction", "defective"}

func (s SecondaryStatus) String() string               { return enumString(secondaryStatusNames, int(s)) }
func (s SecondaryStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (s *SecondaryStatus) UnmarshalText(b []byte) error {
	return parseEnumInto(secondaryStatusNames, "secondary status", b, (*int)(s))
}

// GeneratorType selects the generator variant.
type GeneratorType int

const (
	GeneratorPower GeneratorType = iota
	GeneratorSolar
	GeneratorCapacitor
	GeneratorScrubber
	GeneratorAir
)

var generatorTypeNames = []string{"power", "solar", "capacitor", "scrubber", "air"}

func (g GeneratorType) String() string               { return enumString(generatorTypeNames, int(g)) }
func (g GeneratorType) MarshalText() ([]byte, error) { return []byte(g.String()), nil }
func (g *GeneratorType) UnmarshalText(b []byte) error {
	return parseEnumInto(generatorTypeNames, "generator type", b, (*int)(g))
}

// OutputResource is the resource a generator of this type produces.
func (g GeneratorType) OutputResource() ResourceType {
	switch g {
	case GeneratorScrubber:
		return ResourceScrubbedAir
	case GeneratorAir:
		return ResourceAir
	default:
		return ResourcePower
	}
}

// SubSystemType selects the subsystem variant.
type SubSystemType int

const (
	SubSystemBasePower SubSystemType = iota
	SubSystemLights
	SubSystemRCS
	SubSystemEngine
	SubSystemFTL
	SubSystemRefinery
	SubSystemFabricator
	SubSystemRadar
)

var subSystemTypeNames = []string{"base_power", "lights", "rcs", "engine", "ftl", "refinery", "fabricator", "radar"}

func (s SubSystemType) String() string               { return enumString(subSystemTypeNames, int(s)) }
func (s SubSystemType) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (s *SubSystemType) UnmarshalText(b []byte) error {
	return parseEnumInto(subSystemTypeNames, "subsystem type", b, (*int)(s))
}

// MachineryPartType names a pluggable machinery part.
type MachineryPartType int

const (
	PartNone MachineryPartType = iota
	PartFusionCellCore
	PartServoMotor
	PartResourceInjector
	PartEMFieldController
	PartPlasmaAccelerator
	PartWarpCell
	PartCarbonFiberReinforcement
	PartScrubberCartridge
	PartSolarPanelFilm
)

var machineryPartTypeNames = []string{
	"none", "fusion_cell_core", "servo_motor", "resource_injector", "em_field_controller",
	"plasma_accelerator", "warp_cell", "carbon_fiber_reinforcement", "scrubber_cartridge", "solar_panel_film",
}

func (p MachineryPartType) String() string               { return enumString(machineryPartTypeNames, int(p)) }
func (p MachineryPartType) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
func (p *MachineryPartType) UnmarshalText(b []byte) error {
	return parseEnumInto(machineryPartTypeNames, "machinery part type", b, (*int)(p))
}

// MachineryPartSlotScope is the effect category a slot contributes to.
type MachineryPartSlotScope int

const (
	ScopeNone MachineryPartSlotScope = iota
	ScopeOutput
	ScopeResourcesConsumption
	ScopePowerConsumption
	ScopePowerUpTime
	ScopeCoolDownTime
	ScopeArmor
)

var slotScopeNames = []string{"none", "output", "resources_consumption", "power_consumption", "power_up_time", "cool_down_time", "armor"}

func (s MachineryPartSlotScope) String() string               { return enumString(slotScopeNames, int(s)) }
func (s MachineryPartSlotScope) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (s *MachineryPartSlotScope) UnmarshalText(b []byte) error {
	return parseEnumInto(slotScopeNames, "machinery slot scope", b, (*int)(s))
}

// AirConsumerType classifies things that eat room air.
type AirConsumerType int

const (
	AirConsumerFire AirConsumerType = iota
	AirConsumerBreach
	AirConsumerRepairPointDamage
)

var airConsumerTypeNames = []string{"fire", "breach", "repair_point_damage"}

func (a AirConsumerType) String() string               { return enumString(airConsumerTypeNames, int(a)) }
func (a AirConsumerType) MarshalText() ([]byte, error) { return []byte(a.String()), nil }
func (a *AirConsumerType) UnmarshalText(b []byte) error {
	return parseEnumInto(airConsumerTypeNames, "air consumer type", b, (*int)(a))
}

// Severity grades an air consumer.
type Severity int

const (
	SeveritySmall Severity = iota
	SeverityLarge
)

var severityNames = []string{"small", "large"}

func (s Severity) String() string               { return enumString(severityNames, int(s)) }
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
func (s *Severity) UnmarshalText(b []byte) error {
	return parseEnumInto(severityNames, "severity", b, (*int)(s))
}

func enumString(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("unknown(%d)", v)
	}
	return names[v]
}

func parseEnumInto(names []string, kind string, b []byte, out *int) error {
	v := strings.ToLower(strings.TrimSpace(string(b)))
	for i, name := range names {
		if name == v {
			*out = i
			return nil
		}
	}
	return fmt.Errorf("unknown %s %q", kind, string(b))
}
