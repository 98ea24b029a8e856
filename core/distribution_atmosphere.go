package core

import (
	"context"
	"math"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

// updateAtmosphere runs the room pass: air consumers, leaks through open
// external doors, pressure targets and scrubbing, per compound room.
func (m *DistributionManager) updateAtmosphere(ctx context.Context, duration float64, res *Reservations, trail *[]string) {
	if duration <= 0 {
		return
	}
	for _, cr := range m.compounds {
		cr.merge()
		if cr.volume <= 0 {
			continue
		}
		m.applyAirConsumers(ctx, cr, duration)
		m.applyLeaks(cr, duration)
		m.applyTargets(cr, duration, res, trail)
		m.applyScrubbing(cr, duration, res, trail)
		cr.setAir(cr.pressure, cr.quality)
	}
}

func (m *DistributionManager) applyAirConsumers(ctx context.Context, cr *CompoundRoom, dt float64) {
	t := m.vessel.tuning
	for _, r := range cr.Rooms {
		r.consumers = slices.DeleteFunc(r.consumers, func(ac *AirConsumer) bool {
			if !ac.Active {
				return false
			}
			rate := t.AirConsumerRate(ac.Type, ac.Severity) * dt / cr.volume
			if !ac.consumesQuality() {
				cr.pressure = math.Max(0, cr.pressure-rate)
				return false
			}
			if cr.quality*cr.pressure < t.FireMinOxygen {
				if ac.Persistent {
					return false
				}
				ac.Active = false
				r.changed = true
				m.vessel.log.Debug(ctx, "air consumer starved",
					logging.String("room", r.id.String()),
					logging.Int("consumer", ac.ID),
					logging.String("type", ac.Type.String()))
				return true
			}
			cr.quality = math.Max(0, cr.quality-rate)
			return false
		})
	}
}

func (m *DistributionManager) applyLeaks(cr *CompoundRoom, dt float64) {
	seen := mapset.New[*Door]()
	for _, r := range cr.Rooms {
		for _, d := range r.doors {
			if seen.Has(d) || !d.leaking() || d.room1.compound != cr {
				continue
			}
			seen.Put(d)
			flow := AirFlowRate(d.PassageArea(), cr.pressure)
			cr.pressure = math.Max(0, cr.pressure-flow*dt*cr.pressure/cr.volume)
		}
	}
}

// applyTargets moves the compound towards the first member target found.
func (m *DistributionManager) applyTargets(cr *CompoundRoom, dt float64, res *Reservations, trail *[]string) {
	eps := m.vessel.tuning.PressureEpsilon
	for _, r := range cr.Rooms {
		switch {
		case r.venting:
			cr.pressure = math.Max(0, cr.pressure-r.ventSpeed()*dt)
			if cr.pressure <= eps {
				cr.pressure = 0
				r.ClearTargets()
			}
			return
		case r.equalizeWith != nil:
			m.equalize(cr, r, dt)
			return
		case r.targetPressure != nil:
			target := *r.targetPressure
			switch {
			case cr.pressure < target-eps:
				m.pressurize(cr, math.Min(target-cr.pressure, r.pressurizeSpeed()*dt), dt, res, trail)
			case cr.pressure > target+eps:
				m.depressurize(cr, math.Min(cr.pressure-target, r.depressurizeSpeed()*dt), res)
			}
			if math.Abs(cr.pressure-target) <= eps {
				r.ClearTargets()
			}
			return
		}
	}
}

// pressurize raises the compound by up to delta bar with air drawn from
// connected air tanks.
func (m *DistributionManager) pressurize(cr *CompoundRoom, delta, dt float64, res *Reservations, trail *[]string) {
	need := delta * cr.volume / dt
	air := cr.AirQuantity()
	mixed := air * cr.quality
	got := reserveFrom(cr.providers(model.ResourceAir), need, dt, res, trail, func(p Provider, take float64) {
		mixed += take * dt * p.Container.AirQuality()
	})
	if got <= 0 {
		return
	}
	air += got * dt
	cr.pressure = air / cr.volume
	cr.quality = mixed / air
}

// depressurize pushes up to delta bar of the compound's air into the free
// space of connected air tanks.
func (m *DistributionManager) depressurize(cr *CompoundRoom, delta float64, res *Reservations) {
	left := delta * cr.volume
	for _, p := range cr.providers(model.ResourceAir) {
		if left <= reserveEpsilon {
			break
		}
		stored := p.Container.Add(math.Min(left, res.FreeSpace(p.Container)), cr.quality)
		left -= stored
		cr.pressure = math.Max(0, cr.pressure-stored/cr.volume)
	}
}

// equalize moves air between cr and the compound of r's partner room,
// conserving the total.
func (m *DistributionManager) equalize(cr *CompoundRoom, r *Room, dt float64) {
	other := r.equalizeWith.compound
	eps := m.vessel.tuning.PressureEpsilon
	if other == nil || other == cr || other.volume <= 0 {
		r.ClearTargets()
		return
	}
	other.merge()
	total := cr.AirQuantity() + other.AirQuantity()
	balanced := total / (cr.volume + other.volume)
	move := math.Min(math.Abs(cr.pressure-balanced), r.pressurizeSpeed()*dt) * cr.volume
	if cr.pressure > balanced {
		otherAir := other.AirQuantity()
		other.quality = mixQuality(otherAir, other.quality, move, cr.quality)
		other.pressure = (otherAir + move) / other.volume
		cr.pressure -= move / cr.volume
	} else {
		air := cr.AirQuantity()
		cr.quality = mixQuality(air, cr.quality, move, other.quality)
		cr.pressure = (air + move) / cr.volume
		other.pressure -= move / other.volume
	}
	other.setAir(other.pressure, other.quality)
	if math.Abs(cr.pressure-other.pressure) <= eps {
		r.ClearTargets()
	}
}

// applyScrubbing cleans dirty air with connected scrubbers, wearing their
// cartridges by the volume scrubbed.
func (m *DistributionManager) applyScrubbing(cr *CompoundRoom, dt float64, res *Reservations, trail *[]string) {
	filtering := false
	for _, r := range cr.Rooms {
		filtering = filtering || r.airFiltering
	}
	air := cr.AirQuantity()
	if !filtering || cr.quality >= 1 || air <= 0 {
		return
	}
	dirty := (1 - cr.quality) * air
	got := reserveFrom(cr.providers(model.ResourceScrubbedAir), dirty/dt, dt, res, trail, func(p Provider, take float64) {
		p.Generator.consumeCartridge(take * dt)
	})
	cr.quality = math.Min(1, cr.quality+got*dt/air)
}
