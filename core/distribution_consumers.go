package core

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

// powerPriority ranks subsystem types in the active power pass; unlisted
// types follow in id order.
var powerPriority = map[model.SubSystemType]int{
	model.SubSystemBasePower: 0,
	model.SubSystemRefinery:  1,
	model.SubSystemFTL:       2,
	model.SubSystemEngine:    3,
}

// consumerPass carries the per-update state shared by the passes.
type consumerPass struct {
	m        *DistributionManager
	ctx      context.Context
	duration float64
	res      *Reservations
	trail    []string
	failures int
	// ran holds the rate each subsystem works at this update.
	ran map[*SubSystem]float64
}

// UpdateConsumers runs the ordered reservation passes and commits the
// result: provider outputs, container debits and credits, capacitor
// charge, idle flags and subsystem work.
func (m *DistributionManager) UpdateConsumers(ctx context.Context, duration float64, res *Reservations) {
	p := &consumerPass{m: m, ctx: ctx, duration: duration, res: res, ran: make(map[*SubSystem]float64)}
	subs := m.subsystemsByPriority()

	// 1. Standby of running generators, base power, idle subsystems.
	for _, g := range m.generators {
		if g.IsPowered() && !g.idle {
			p.standby(&g.VesselComponent)
		}
	}
	for _, s := range subs {
		if s.kind == model.SubSystemBasePower {
			p.runSubSystem(s)
		}
	}
	for _, s := range subs {
		if s.kind == model.SubSystemBasePower {
			continue
		}
		if s.status == model.StatusPowerUp || (s.status == model.StatusOnLine && !s.IsActive()) {
			p.standby(&s.VesselComponent)
		}
	}

	// 2. Active power consumers by priority.
	for _, s := range subs {
		if s.kind != model.SubSystemBasePower && s.UsesPower() {
			p.runSubSystem(s)
		}
	}

	// 3. Idle power generators.
	for _, g := range m.generators {
		if g.OutputResource() == model.ResourcePower && !g.IsCapacitor() {
			p.idleGenerator(g)
		}
	}

	// 4. Capacitors, emptiest first.
	p.chargeCapacitors()

	// 5. Remaining subsystems.
	for _, s := range subs {
		if s.kind != model.SubSystemBasePower && !s.UsesPower() {
			p.runSubSystem(s)
		}
	}

	// 6. Refuelling containers.
	for _, c := range m.containers {
		if c.NominalInput() <= 0 {
			continue
		}
		want := math.Min(c.NominalInput(), res.FreeSpace(c)/effectiveDuration(duration))
		got := reserveFrom(c.ConnectedProviders(c.Resource()), want, duration, res, &p.trail, nil)
		res.Input[c] += got * effectiveDuration(duration)
	}

	// 7. Room atmosphere.
	m.updateAtmosphere(ctx, duration, res, &p.trail)

	// 8. Idle non-power generators.
	for _, g := range m.generators {
		if g.OutputResource() != model.ResourcePower {
			p.idleGenerator(g)
		}
	}

	p.commit()
}

func (m *DistributionManager) subsystemsByPriority() []*SubSystem {
	subs := slices.Clone(m.subsystems)
	slices.SortStableFunc(subs, func(a, b *SubSystem) int {
		return cmp.Compare(rank(a.kind), rank(b.kind))
	})
	return subs
}

func rank(t model.SubSystemType) int {
	if r, ok := powerPriority[t]; ok {
		return r
	}
	return len(powerPriority)
}

// fail takes a component offline after a shortfall and keeps it trying.
func (p *consumerPass) fail(c *VesselComponent) {
	p.failures++
	c.GoOffLine(c.canAutoRestart, true)
	p.m.vessel.log.Debug(p.ctx, "component lost its supply",
		logging.String("component", c.id.String()),
		logging.Bool("auto_reactivate", c.autoReactivate))
}

func (p *consumerPass) standby(c *VesselComponent) {
	if !c.CheckAvailableResources(1, p.duration, true, p.res, &p.trail) {
		p.fail(c)
	}
}

// runSubSystem reserves one subsystem at its demanded rate, bringing it
// online first when asked to.
func (p *consumerPass) runSubSystem(s *SubSystem) {
	if s.wantsOnline() {
		if !s.GoOnLine(p.res, p.duration, &p.trail) {
			p.failures++
			return
		}
		if s.status == model.StatusOnLine && s.IsActive() {
			p.ran[s] = s.operationRate
		}
		return
	}
	if s.status != model.StatusOnLine || !s.IsActive() {
		return
	}
	var rate float64
	if s.autoTune {
		rate = s.AutoTuneOperationRate(p.duration, p.res)
		if rate <= 0 {
			p.standby(&s.VesselComponent)
			return
		}
	} else {
		rate = s.TargetRate()
	}
	if !s.CheckAvailableResources(rate, p.duration, false, p.res, &p.trail) {
		p.fail(&s.VesselComponent)
		return
	}
	p.ran[s] = rate
}

// idleGenerator reserves standby for an idle generator and retries offline
// ones that want to come back.
func (p *consumerPass) idleGenerator(g *Generator) {
	switch {
	case g.wantsOnline():
		if !g.GoOnLine(p.res, p.duration, &p.trail) {
			p.failures++
		}
	case g.status == model.StatusOnLine && g.idle:
		p.standby(&g.VesselComponent)
	}
}

func (p *consumerPass) chargeCapacitors() {
	var caps []*Generator
	for _, g := range p.m.generators {
		if g.IsCapacitor() {
			caps = append(caps, g)
		}
	}
	slices.SortFunc(caps, func(a, b *Generator) int {
		if c := cmp.Compare(a.FillRatio(), b.FillRatio()); c != 0 {
			return c
		}
		return a.id.Compare(b.id)
	})
	for _, g := range caps {
		if g.wantsOnline() && !g.GoOnLine(p.res, p.duration, &p.trail) {
			p.failures++
		}
		g.chargeInput = 0
		want := g.chargeWant(p.duration)
		if want <= 0 {
			continue
		}
		var sources []Provider
		for _, src := range g.ConnectedProviders(model.ResourcePower) {
			if src.Kind != ProviderCapacitor {
				sources = append(sources, src)
			}
		}
		g.chargeInput = reserveFrom(sources, want, p.duration, p.res, &p.trail, nil)
	}
}

func (p *consumerPass) commit() {
	m, res, dt := p.m, p.res, p.duration

	for _, g := range m.generators {
		g.setOutput(res.Capacity[generatorProvider(g)])
		g.updateCharge(dt)
		if !g.IsCapacitor() {
			g.setIdle(g.status == model.StatusOnLine && g.output <= reserveEpsilon)
		}
	}
	for _, c := range m.containers {
		c.commit(res.Quantity[c], res.Input[c], dt)
	}
	for _, s := range m.subsystems {
		rate, ok := p.ran[s]
		if s.status == model.StatusOnLine {
			s.setIdle(!ok)
		} else {
			s.setIdle(false)
		}
		s.work(rate, dt)
	}

	m.unusedCapacity = make(map[model.ResourceType]float64)
	m.unusedQuantity = make(map[model.ResourceType]float64)
	for _, g := range m.generators {
		if g.status == model.StatusOnLine {
			m.unusedCapacity[g.OutputResource()] += math.Max(0, g.MaxOutput()-res.Capacity[generatorProvider(g)])
		}
	}
	for _, c := range m.containers {
		m.unusedQuantity[c.Resource()] += c.Quantity()
	}
	for _, d := range m.doors {
		d.updateFlow()
	}

	m.failures = p.failures
	m.lastTrail = p.trail
	if p.failures > 0 {
		m.vessel.log.Debug(p.ctx, "distribution shortfalls",
			logging.Int("failures", p.failures),
			logging.Any("trail", p.trail))
	}
}
