package core

import (
	"math"
	"slices"

	"github.com/signalsfoundry/vessel-systems/model"
)

// MachineryPart is a fitted plug-in modifier. It works on its own deep
// copy of the definition.
type MachineryPart struct {
	data *model.MachineryPartData
}

func newMachineryPart(data *model.MachineryPartData) *MachineryPart {
	if data == nil {
		return nil
	}
	return &MachineryPart{data: data.Clone()}
}

func (p *MachineryPart) Type() model.MachineryPartType { return p.data.Type }
func (p *MachineryPart) Tier() int                     { return p.data.Tier }
func (p *MachineryPart) Health() float64               { return p.data.Health }
func (p *MachineryPart) MaxHealth() float64            { return p.data.MaxHealth }

// Working reports whether the part still has health left.
func (p *MachineryPart) Working() bool { return p.data.Health > 0 }

// Multiplier is the tier multiplier weighted by health: a worn part pulls
// its effect back towards 1.
func (p *MachineryPart) Multiplier() float64 {
	m := 1.0
	if t := p.data.Tier; t >= 1 && t <= len(p.data.TierMultipliers) {
		m = p.data.TierMultipliers[t-1]
	}
	if p.data.MaxHealth <= 0 {
		return m
	}
	return 1 + (m-1)*p.data.Health/p.data.MaxHealth
}

// Wear removes amount of health and returns what was actually removed.
func (p *MachineryPart) Wear(amount float64) float64 {
	if amount <= 0 || p.data.Health <= 0 {
		return 0
	}
	taken := math.Min(amount, p.data.Health)
	p.data.Health -= taken
	return taken
}

// Data returns a deep copy of the part definition.
func (p *MachineryPart) Data() *model.MachineryPartData {
	return p.data.Clone()
}

// MachineryPartSlot holds at most one part and applies it to one scope.
type MachineryPartSlot struct {
	ID       int
	Scope    model.MachineryPartSlotScope
	Required bool
	Allowed  []model.MachineryPartType
	Part     *MachineryPart

	reportedHealth int
	sinceReport    float64
	changed        bool
}

func newMachineryPartSlot(data model.MachineryPartSlotData) *MachineryPartSlot {
	s := &MachineryPartSlot{
		ID:       data.SlotID,
		Scope:    data.Scope,
		Required: data.Required,
		Allowed:  slices.Clone(data.Allowed),
		Part:     newMachineryPart(data.Part),
	}
	s.markReported()
	return s
}

// Accepts reports whether a part of type t may be fitted.
func (s *MachineryPartSlot) Accepts(t model.MachineryPartType) bool {
	return len(s.Allowed) == 0 || slices.Contains(s.Allowed, t)
}

// Blocking reports whether the slot makes its component defective.
func (s *MachineryPartSlot) Blocking() bool {
	return s.Required && (s.Part == nil || !s.Part.Working())
}

// noteWear accumulates elapsed time and flags the slot for a report when
// the rounded health moved or the report period ran out.
func (s *MachineryPartSlot) noteWear(duration, period float64) {
	if s.Part == nil {
		return
	}
	s.sinceReport += duration
	if int(math.Round(s.Part.Health())) != s.reportedHealth || s.sinceReport >= period {
		s.changed = true
		s.markReported()
	}
}

func (s *MachineryPartSlot) markReported() {
	s.sinceReport = 0
	if s.Part != nil {
		s.reportedHealth = int(math.Round(s.Part.Health()))
	}
}

// scopeFactors is the product of working part multipliers per scope.
type scopeFactors map[model.MachineryPartSlotScope]float64

func (f scopeFactors) get(scope model.MachineryPartSlotScope) float64 {
	if v, ok := f[scope]; ok {
		return v
	}
	return 1
}

func computeScopeFactors(slots []*MachineryPartSlot) (scopeFactors, bool) {
	factors := make(scopeFactors)
	defective := false
	for _, s := range slots {
		if s.Blocking() {
			defective = true
		}
		if s.Part == nil || !s.Part.Working() {
			continue
		}
		factors[s.Scope] = factors.get(s.Scope) * s.Part.Multiplier()
	}
	return factors, defective
}
