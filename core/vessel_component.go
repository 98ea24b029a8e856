package core

import (
	"fmt"
	"math"
	"slices"

	"github.com/signalsfoundry/vessel-systems/model"
)

// consumerLinks is the provider list a consumer may draw each resource
// from. UpdateConnections rebuilds it.
type consumerLinks struct {
	connected map[model.ResourceType][]Provider
}

// ConnectedProviders returns the sorted providers for r.
func (l *consumerLinks) ConnectedProviders(r model.ResourceType) []Provider {
	return l.connected[r]
}

func (l *consumerLinks) resetConnections() {
	l.connected = make(map[model.ResourceType][]Provider)
}

func (l *consumerLinks) connect(r model.ResourceType, p Provider) {
	if l.connected == nil {
		l.connected = make(map[model.ResourceType][]Provider)
	}
	l.connected[r] = append(l.connected[r], p)
}

func (l *consumerLinks) links() *consumerLinks { return l }

// VesselComponent is the lifecycle shared by generators and subsystems:
// OffLine, PowerUp, OnLine, CoolDown, with a secondary status on the side.
type VesselComponent struct {
	consumerLinks

	id     model.VesselObjectID
	vessel *Vessel
	roomID int

	powerUpTime    float64
	coolDownTime   float64
	canAutoRestart bool
	requirements   []model.ResourceRequirement
	preferred      []int
	slots          []*MachineryPartSlot

	status         model.SystemStatus
	secondary      model.SecondaryStatus
	countdown      float64
	autoReactivate bool
	pendingOnline  bool
	defective      bool
	operationRate  float64
	workRate       float64
	idle           bool
	factors        scopeFactors

	changed bool
}

func newVesselComponent(v *Vessel, data model.ComponentData) VesselComponent {
	data = data.Clone()
	c := VesselComponent{
		id:             model.NewVesselObjectID(v.ID(), data.InSceneID),
		vessel:         v,
		roomID:         data.RoomID,
		powerUpTime:    data.PowerUpTime,
		coolDownTime:   data.CoolDownTime,
		canAutoRestart: data.AutoRestart,
		preferred:      data.Containers,
		operationRate:  1,
		factors:        make(scopeFactors),
		changed:        true,
	}
	if data.OperationRate > 0 {
		c.operationRate = clamp01(data.OperationRate)
	}
	scale := v.Tuning().RequirementMultiplier(v.Tags())
	for _, req := range data.Requirements {
		req.Nominal *= scale
		req.Standby *= scale
		c.requirements = append(c.requirements, req)
	}
	slices.SortFunc(c.requirements, func(a, b model.ResourceRequirement) int {
		return int(a.Resource) - int(b.Resource)
	})
	for _, s := range data.Slots {
		c.slots = append(c.slots, newMachineryPartSlot(s))
	}
	c.refreshFactors()
	if data.StartOnline && !c.defective {
		c.status = model.StatusOnLine
	}
	return c
}

func (c *VesselComponent) ID() model.VesselObjectID               { return c.id }
func (c *VesselComponent) ConsumerID() model.VesselObjectID       { return c.id }
func (c *VesselComponent) Vessel() *Vessel                        { return c.vessel }
func (c *VesselComponent) RoomID() int                            { return c.roomID }
func (c *VesselComponent) Status() model.SystemStatus             { return c.status }
func (c *VesselComponent) SecondaryStatus() model.SecondaryStatus { return c.secondary }
func (c *VesselComponent) AutoReactivate() bool                   { return c.autoReactivate }
func (c *VesselComponent) OperationRate() float64                 { return c.operationRate }
func (c *VesselComponent) IsIdle() bool                           { return c.idle }
func (c *VesselComponent) Slots() []*MachineryPartSlot            { return c.slots }

// Defective reports whether the fitted machinery keeps the component from
// running.
func (c *VesselComponent) Defective() bool { return c.defective }

// IsPowered is true while powering up or online.
func (c *VesselComponent) IsPowered() bool {
	return c.status == model.StatusOnLine || c.status == model.StatusPowerUp
}

// Requirements returns the scaled per-resource requirements.
func (c *VesselComponent) Requirements() []model.ResourceRequirement {
	return slices.Clone(c.requirements)
}

// Requires reports whether r is one of the component's inputs.
func (c *VesselComponent) Requires(r model.ResourceType) bool {
	for _, req := range c.requirements {
		if req.Resource == r {
			return true
		}
	}
	return false
}

func (c *VesselComponent) InputResources() []model.ResourceType {
	out := make([]model.ResourceType, 0, len(c.requirements))
	for _, req := range c.requirements {
		out = append(out, req.Resource)
	}
	return out
}

// PreferredContainers lists the in-scene ids of containers this component
// draws from exclusively.
func (c *VesselComponent) PreferredContainers() []int { return c.preferred }

func (c *VesselComponent) OutputFactor() float64 {
	return c.factors.get(model.ScopeOutput)
}

func (c *VesselComponent) ResourceInputFactor() float64 {
	return c.factors.get(model.ScopeResourcesConsumption)
}

func (c *VesselComponent) PowerInputFactor() float64 {
	return c.factors.get(model.ScopePowerConsumption)
}

func (c *VesselComponent) inputFactor(r model.ResourceType) float64 {
	if r == model.ResourcePower {
		return c.PowerInputFactor()
	}
	return c.ResourceInputFactor()
}

// SetOperationRate sets the throttle, clamped to [0,1].
func (c *VesselComponent) SetOperationRate(rate float64) {
	rate = clamp01(rate)
	if rate != c.operationRate {
		c.operationRate = rate
		c.changed = true
	}
}

// RequestOnline asks the next distribution update to bring the component
// online with that update's reservations.
func (c *VesselComponent) RequestOnline() {
	c.pendingOnline = true
}

func (c *VesselComponent) wantsOnline() bool {
	return c.status == model.StatusOffLine && (c.pendingOnline || c.autoReactivate)
}

// CheckAvailableResources reserves factor times every requirement from the
// connected providers. On any shortfall the ledger is rolled back, a note
// goes to trail and the result is false.
func (c *VesselComponent) CheckAvailableResources(factor, duration float64, standby bool, res *Reservations, trail *[]string) bool {
	if !res.enter(c.id) {
		appendTrail(trail, "%s: supply loop", c.id)
		return false
	}
	defer res.leave(c.id)

	backup := res.Clone()
	for _, req := range c.requirements {
		need := req.Rate(standby) * factor * c.inputFactor(req.Resource)
		if need <= 0 {
			continue
		}
		got := reserveFrom(c.ConnectedProviders(req.Resource), need, duration, res, trail, nil)
		if got+reserveEpsilon < need {
			res.restore(backup)
			appendTrail(trail, "%s: %s short by %.3f of %.3f", c.id, req.Resource, need-got, need)
			return false
		}
	}
	return true
}

// GoOnLine reserves the nominal draw at the configured rate and starts the
// component. Already running components are left alone.
func (c *VesselComponent) GoOnLine(res *Reservations, duration float64, trail *[]string) bool {
	if c.IsPowered() {
		return true
	}
	c.pendingOnline = false
	c.refreshFactors()
	if c.defective {
		c.secondary = model.SecondaryDefective
		c.autoReactivate = false
		c.changed = true
		appendTrail(trail, "%s: required machinery missing or broken", c.id)
		return false
	}
	if !c.CheckAvailableResources(c.operationRate, duration, false, res, trail) {
		if c.canAutoRestart {
			c.secondary = model.SecondaryMalfunction
			c.autoReactivate = true
		} else {
			c.secondary = model.SecondaryDefective
			c.autoReactivate = false
		}
		c.changed = true
		return false
	}
	c.secondary = model.SecondaryNone
	c.autoReactivate = false
	c.idle = false
	if t := c.powerUpTime * c.factors.get(model.ScopePowerUpTime); t > 0 {
		c.status = model.StatusPowerUp
		c.countdown = t
	} else {
		c.status = model.StatusOnLine
		c.countdown = 0
	}
	c.changed = true
	return true
}

// GoOffLine stops the component, through CoolDown when it has one.
func (c *VesselComponent) GoOffLine(autoRestart, malfunction bool) {
	c.autoReactivate = autoRestart
	c.pendingOnline = false
	if malfunction {
		c.secondary = model.SecondaryMalfunction
	} else {
		c.secondary = model.SecondaryNone
	}
	c.workRate = 0
	c.idle = false
	c.changed = true
	if !c.IsPowered() {
		return
	}
	if t := c.coolDownTime * c.factors.get(model.ScopeCoolDownTime); t > 0 {
		c.status = model.StatusCoolDown
		c.countdown = t
	} else {
		c.status = model.StatusOffLine
		c.countdown = 0
	}
}

// Update advances timers by duration seconds, wears machinery and refreshes
// the part-driven factors.
func (c *VesselComponent) Update(duration float64) {
	if c.IsPowered() && c.workRate > 0 {
		period := c.vessel.Tuning().CartridgeReportPeriod
		for _, s := range c.slots {
			if s.Part == nil || !s.Part.Working() {
				continue
			}
			s.Part.Wear(s.Part.data.WearMultiplier * c.workRate * duration)
			s.noteWear(duration, period)
		}
	}
	c.refreshFactors()

	switch c.status {
	case model.StatusPowerUp:
		c.countdown -= duration
		if c.countdown <= 0 {
			c.countdown = 0
			c.status = model.StatusOnLine
			c.changed = true
		}
	case model.StatusCoolDown:
		c.countdown -= duration
		if c.countdown <= 0 {
			c.countdown = 0
			c.status = model.StatusOffLine
			c.changed = true
		}
	}

	c.shutDownIfDefective()
}

// shutDownIfDefective takes a powered component offline once a required
// part is missing or broken.
func (c *VesselComponent) shutDownIfDefective() {
	if c.defective && c.IsPowered() {
		c.GoOffLine(false, false)
		c.secondary = model.SecondaryDefective
	}
}

func (c *VesselComponent) refreshFactors() {
	factors, defective := computeScopeFactors(c.slots)
	if defective != c.defective {
		c.changed = true
	}
	c.factors = factors
	c.defective = defective
}

func (c *VesselComponent) setIdle(idle bool) {
	if idle != c.idle {
		c.idle = idle
		c.changed = true
	}
	switch {
	case idle && c.status == model.StatusOnLine && c.secondary == model.SecondaryNone:
		c.secondary = model.SecondaryIdle
	case !idle && c.secondary == model.SecondaryIdle:
		c.secondary = model.SecondaryNone
	}
}

// FitPart puts a copy of part into slotID, replacing what was there.
func (c *VesselComponent) FitPart(slotID int, part *model.MachineryPartData) error {
	s := c.slot(slotID)
	if s == nil {
		return fmt.Errorf("%w: slot %d on %s", ErrComponentNotFound, slotID, c.id)
	}
	if part != nil && !s.Accepts(part.Type) {
		return fmt.Errorf("%w: %s does not fit slot %d", ErrInvalidStructure, part.Type, slotID)
	}
	s.Part = newMachineryPart(part)
	s.markReported()
	s.changed = true
	c.refreshFactors()
	c.shutDownIfDefective()
	c.changed = true
	return nil
}

func (c *VesselComponent) slot(id int) *MachineryPartSlot {
	for _, s := range c.slots {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (c *VesselComponent) snapshotBase() model.ComponentSnapshot {
	snap := model.ComponentSnapshot{
		ID:              c.id,
		Status:          c.status,
		SecondaryStatus: c.secondary,
		StatusCountdown: c.countdown,
		AutoReactivate:  c.autoReactivate,
		Defective:       c.defective,
		OperationRate:   c.operationRate,
	}
	if len(c.slots) > 0 {
		snap.MachineryPartSlots = make(map[int]*model.MachineryPartData, len(c.slots))
		for _, s := range c.slots {
			var part *model.MachineryPartData
			if s.Part != nil {
				part = s.Part.Data()
			}
			snap.MachineryPartSlots[s.ID] = part
		}
	}
	return snap
}

func (c *VesselComponent) restoreBase(snap model.ComponentSnapshot) {
	c.status = snap.Status
	c.secondary = snap.SecondaryStatus
	c.countdown = snap.StatusCountdown
	c.autoReactivate = snap.AutoReactivate
	c.operationRate = clamp01(snap.OperationRate)
	for id, part := range snap.MachineryPartSlots {
		if s := c.slot(id); s != nil {
			s.Part = newMachineryPart(part)
			s.markReported()
		}
	}
	c.refreshFactors()
	if c.defective && c.IsPowered() {
		c.status = model.StatusOffLine
		c.secondary = model.SecondaryDefective
	}
	c.changed = true
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
