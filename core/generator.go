package core

import (
	"math"

	"github.com/signalsfoundry/vessel-systems/model"
)

// Generator is a resource producer: reactor, solar array, capacitor,
// scrubber or air generator.
type Generator struct {
	VesselComponent

	kind          model.GeneratorType
	nominalOutput float64
	output        float64

	// capacitor
	capacity    float64
	charge      float64
	chargeRate  float64
	chargeInput float64

	// solar
	efficiency float64

	// scrubber
	cartridgeConsumption float64
}

// NewGenerator instantiates a generator from its definition on vessel v.
func NewGenerator(v *Vessel, data model.GeneratorData) *Generator {
	g := &Generator{
		VesselComponent: newVesselComponent(v, data.ComponentData),
		kind:            data.Type,
		nominalOutput:   data.NominalOutput,
		efficiency:      1,
	}
	if data.Capacitor != nil {
		g.capacity = data.Capacitor.Capacity
		g.charge = math.Min(data.Capacitor.Charge, data.Capacitor.Capacity)
		g.chargeRate = data.Capacitor.ChargeRate
	}
	if data.Solar != nil && data.Solar.Efficiency > 0 {
		g.efficiency = data.Solar.Efficiency
	}
	if data.Scrubber != nil {
		g.cartridgeConsumption = data.Scrubber.CartridgeConsumption
	}
	return g
}

func (g *Generator) Type() model.GeneratorType          { return g.kind }
func (g *Generator) OutputResource() model.ResourceType { return g.kind.OutputResource() }
func (g *Generator) Output() float64                    { return g.output }
func (g *Generator) Capacity() float64                  { return g.capacity }
func (g *Generator) Charge() float64                    { return g.charge }
func (g *Generator) ChargeRate() float64                { return g.chargeRate }

// IsCapacitor reports whether the generator stores rather than produces.
func (g *Generator) IsCapacitor() bool { return g.kind == model.GeneratorCapacitor }

// FillRatio is charge over capacity for capacitors.
func (g *Generator) FillRatio() float64 {
	if g.capacity <= 0 {
		return 1
	}
	return g.charge / g.capacity
}

// PeakOutput is the output at full throttle given fitted parts and, for
// solar arrays, the current sun exposure.
func (g *Generator) PeakOutput() float64 {
	peak := g.nominalOutput * g.OutputFactor()
	if g.kind == model.GeneratorSolar {
		peak *= g.vessel.SunExposure() * g.efficiency
	}
	return peak
}

// MaxOutput is what the generator can hand out right now.
func (g *Generator) MaxOutput() float64 {
	if g.status != model.StatusOnLine {
		return 0
	}
	return g.PeakOutput() * g.operationRate
}

// InputResources adds the charging input of capacitors to the
// requirement-driven inputs.
func (g *Generator) InputResources() []model.ResourceType {
	in := g.VesselComponent.InputResources()
	if g.IsCapacitor() && !g.Requires(model.ResourcePower) {
		in = append(in, model.ResourcePower)
	}
	return in
}

// acceptsProvider filters candidate providers: capacitors never charge
// from other capacitors and nothing feeds itself.
func (g *Generator) acceptsProvider(p Provider) bool {
	if p.Kind != ProviderContainer && p.Generator == g {
		return false
	}
	if g.IsCapacitor() && p.Resource() == model.ResourcePower && p.Kind == ProviderCapacitor {
		return false
	}
	return true
}

// setOutput commits the reserved rate for this update.
func (g *Generator) setOutput(rate float64) {
	if math.Abs(rate-g.output) > reserveEpsilon {
		g.changed = true
	}
	g.output = rate
	if peak := g.PeakOutput(); peak > 0 && g.status == model.StatusOnLine {
		g.workRate = math.Min(1, rate/peak)
	} else {
		g.workRate = 0
	}
}

// updateCharge integrates the capacitor over duration seconds.
func (g *Generator) updateCharge(duration float64) {
	if !g.IsCapacitor() {
		return
	}
	before := g.charge
	g.charge += (g.chargeInput - g.output) * duration
	g.charge = math.Max(0, math.Min(g.capacity, g.charge))
	if math.Abs(before-g.charge) > reserveEpsilon {
		g.changed = true
	}
	if g.IsPowered() {
		// Charging counts as work for wear purposes.
		g.workRate = math.Max(g.workRate, math.Min(1, g.chargeInput/math.Max(g.chargeRate, reserveEpsilon)))
	}
}

// chargeWant is the rate the capacitor would like to take this update.
func (g *Generator) chargeWant(duration float64) float64 {
	if !g.IsCapacitor() || g.status != model.StatusOnLine {
		return 0
	}
	free := (g.capacity - g.charge) / effectiveDuration(duration)
	return math.Max(0, math.Min(g.chargeRate*g.operationRate, free))
}

// cartridge returns the scrubber cartridge in an output slot, if any.
func (g *Generator) cartridge() *MachineryPartSlot {
	for _, s := range g.slots {
		if s.Scope == model.ScopeOutput && s.Part != nil && s.Part.Type() == model.PartScrubberCartridge {
			return s
		}
	}
	return nil
}

// consumeCartridge wears the cartridge for scrubbed m³ of air.
func (g *Generator) consumeCartridge(scrubbed float64) {
	s := g.cartridge()
	if s == nil || g.cartridgeConsumption <= 0 {
		return
	}
	s.Part.Wear(scrubbed * g.cartridgeConsumption)
	s.noteWear(0, g.vessel.Tuning().CartridgeReportPeriod)
	g.refreshFactors()
	g.shutDownIfDefective()
}

// Details projects the generator for the network layer.
func (g *Generator) Details() model.GeneratorDetails {
	return model.GeneratorDetails{
		ID:               g.id,
		Type:             g.kind,
		Status:           g.status,
		SecondaryStatus:  g.secondary,
		AutoReactivate:   g.autoReactivate,
		OperationRate:    g.operationRate,
		Output:           g.output,
		MaxOutput:        g.MaxOutput(),
		InputFactor:      g.ResourceInputFactor(),
		PowerInputFactor: g.PowerInputFactor(),
		Capacity:         g.capacity,
		Charge:           g.charge,
	}
}

func (g *Generator) Snapshot() model.ComponentSnapshot {
	snap := g.snapshotBase()
	if g.IsCapacitor() {
		snap.Capacitor = &model.CapacitorState{Charge: g.charge}
	}
	return snap
}

func (g *Generator) Restore(snap model.ComponentSnapshot) {
	g.restoreBase(snap)
	if g.IsCapacitor() && snap.Capacitor != nil {
		g.charge = math.Max(0, math.Min(g.capacity, snap.Capacitor.Charge))
	}
}
