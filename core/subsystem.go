package core

import (
	"maps"
	"math"
	"slices"

	"github.com/signalsfoundry/vessel-systems/model"
)

// SubSystem is a consuming machine: base power, lights, thrusters, drives,
// refinery, fabricator or radar.
type SubSystem struct {
	VesselComponent

	kind     model.SubSystemType
	autoTune bool
	data     model.SubSystemData

	// commanded state
	thrust   float64
	maneuver Vec3
	warping  bool

	cargo     map[string]float64
	queue     []model.FabricatorJob
	completed []string

	outputContainers []*ResourceContainer
	effect           float64
}

// NewSubSystem instantiates a subsystem from its definition on vessel v.
func NewSubSystem(v *Vessel, data model.SubSystemData) *SubSystem {
	data = data.Clone()
	s := &SubSystem{
		VesselComponent: newVesselComponent(v, data.ComponentData),
		kind:            data.Type,
		autoTune:        data.AutoTune,
		data:            data,
		cargo:           make(map[string]float64),
	}
	switch {
	case data.Refinery != nil:
		maps.Copy(s.cargo, data.Refinery.Cargo)
	case data.Fabricator != nil:
		maps.Copy(s.cargo, data.Fabricator.Cargo)
	}
	return s
}

func (s *SubSystem) Type() model.SubSystemType { return s.kind }
func (s *SubSystem) Effect() float64           { return s.effect }
func (s *SubSystem) AutoTune() bool            { return s.autoTune }

// UsesPower reports whether the subsystem belongs to the power passes.
func (s *SubSystem) UsesPower() bool { return s.Requires(model.ResourcePower) }

func (s *SubSystem) acceptsProvider(p Provider) bool { return true }

// IsActive reports whether the subsystem has work to do this update.
func (s *SubSystem) IsActive() bool {
	switch s.kind {
	case model.SubSystemRCS:
		return s.maneuver.Norm() > 0
	case model.SubSystemEngine:
		return s.thrust != 0
	case model.SubSystemFTL:
		return s.warping
	case model.SubSystemRefinery:
		return s.cargoTotal() > 0
	case model.SubSystemFabricator:
		return len(s.queue) > 0
	default:
		return true
	}
}

// TargetRate is the operation rate the subsystem asks for when it is not
// auto-tuned.
func (s *SubSystem) TargetRate() float64 {
	switch s.kind {
	case model.SubSystemRCS:
		limit := 1.0
		if s.data.RCS != nil && s.data.RCS.MaxOperationRate > 0 {
			limit = s.data.RCS.MaxOperationRate
		}
		return math.Min(s.maneuver.Norm(), limit) * s.operationRate
	case model.SubSystemEngine:
		return math.Abs(s.thrust) * s.operationRate
	default:
		return s.operationRate
	}
}

// AutoTuneOperationRate finds the highest rate up to 1 the connected
// providers can sustain by five rounds of step halving. Trials run on
// copies of res; nothing is reserved.
func (s *SubSystem) AutoTuneOperationRate(duration float64, res *Reservations) float64 {
	rate, best := 1.0, 0.0
	step := 1.0
	for n := 1; n <= 5; n++ {
		step /= 2
		if s.CheckAvailableResources(rate*s.operationRate, duration, false, res.Clone(), nil) {
			best = rate
			if rate >= 1 {
				break
			}
			rate += step
		} else {
			rate -= step
		}
	}
	return best * s.operationRate
}

// SetThrust commands an engine, in [-1,1].
func (s *SubSystem) SetThrust(thrust float64) {
	s.thrust = math.Max(-1, math.Min(1, thrust))
	s.changed = true
}

// SetManeuver commands RCS; the vector magnitude is the demanded rate.
func (s *SubSystem) SetManeuver(v Vec3) {
	s.maneuver = v
	s.changed = true
}

// SetWarp starts or stops the FTL drive.
func (s *SubSystem) SetWarp(on bool) {
	s.warping = on
	s.changed = true
}

// QueueJob appends a fabrication job.
func (s *SubSystem) QueueJob(item string, duration float64) bool {
	if s.kind != model.SubSystemFabricator || item == "" || duration <= 0 {
		return false
	}
	s.queue = append(s.queue, model.FabricatorJob{Item: item, Duration: duration, TimeLeft: duration})
	s.changed = true
	return true
}

// LoadCargo adds material to a refinery or fabricator hold and returns the
// amount that fit.
func (s *SubSystem) LoadCargo(material string, amount float64) float64 {
	limit := s.cargoCapacity()
	if limit <= 0 || amount <= 0 {
		return 0
	}
	fit := math.Min(amount, math.Max(0, limit-s.cargoTotal()))
	if fit > 0 {
		s.cargo[material] += fit
		s.changed = true
	}
	return fit
}

func (s *SubSystem) cargoCapacity() float64 {
	switch {
	case s.data.Refinery != nil:
		return s.data.Refinery.CargoCapacity
	case s.data.Fabricator != nil:
		return s.data.Fabricator.CargoCapacity
	}
	return 0
}

func (s *SubSystem) cargoTotal() float64 {
	total := 0.0
	for _, v := range s.cargo {
		total += v
	}
	return total
}

// Cargo returns a copy of the hold.
func (s *SubSystem) Cargo() map[string]float64 { return maps.Clone(s.cargo) }

// Queue returns a copy of the fabrication queue.
func (s *SubSystem) Queue() []model.FabricatorJob { return slices.Clone(s.queue) }

// DecayDamageMultiplier scales hull decay damage; the base power system
// slows decay while it runs.
func (s *SubSystem) DecayDamageMultiplier() float64 {
	if s.kind != model.SubSystemBasePower || s.data.BasePower == nil || s.status != model.StatusOnLine {
		return 1
	}
	return s.data.BasePower.OnlineDecayMultiplier
}

// Armor is the hull armor the base power system provides.
func (s *SubSystem) Armor() float64 {
	if s.kind != model.SubSystemBasePower || s.data.BasePower == nil {
		return 0
	}
	return s.data.BasePower.Armor * s.factors.get(model.ScopeArmor)
}

// work applies one update of effect at the reserved rate.
func (s *SubSystem) work(rate, duration float64) {
	s.workRate = rate
	before := s.effect
	out := rate * s.OutputFactor()
	switch s.kind {
	case model.SubSystemBasePower:
		s.effect = s.Armor()
	case model.SubSystemEngine:
		s.effect = 0
		if e := s.data.Engine; e != nil && s.thrust != 0 {
			acc := e.Acceleration
			if s.thrust < 0 {
				acc = -e.ReverseAcceleration
			}
			s.effect = acc * out
		}
	case model.SubSystemRCS:
		s.effect = 0
		if s.data.RCS != nil && s.IsActive() {
			s.effect = s.data.RCS.Acceleration * out
		}
	case model.SubSystemFTL:
		s.effect = 0
		if s.data.FTL != nil && s.warping {
			s.effect = s.data.FTL.WarpSpeed * out
		}
	case model.SubSystemRefinery:
		s.effect = s.refine(out, duration)
	case model.SubSystemFabricator:
		s.fabricate(out, duration)
		s.effect = out
	case model.SubSystemRadar:
		s.effect = 0
		if r := s.data.Radar; r != nil {
			s.effect = r.PassiveScanRange
			if s.status == model.StatusOnLine {
				s.effect = math.Max(r.PassiveScanRange, r.ActiveScanRange*s.OutputFactor())
			}
		}
	default:
		s.effect = out
	}
	if math.Abs(before-s.effect) > reserveEpsilon {
		s.changed = true
	}
}

// refine turns ore into resources, only as much as the output containers
// can take. It returns the ore processed per second.
func (s *SubSystem) refine(out, duration float64) float64 {
	r := s.data.Refinery
	if r == nil || out <= 0 || duration <= 0 {
		return 0
	}
	budget := r.ProcessingRate * out * duration
	processed := 0.0
	for _, ore := range slices.Sorted(maps.Keys(s.cargo)) {
		if budget <= 0 {
			break
		}
		recipe, ok := s.recipe(ore)
		if !ok || recipe.Ratio <= 0 {
			continue
		}
		amount := math.Min(budget, s.cargo[ore])
		produced := 0.0
		for _, c := range s.outputContainers {
			if c.Resource() != recipe.Resource {
				continue
			}
			produced += c.Add(amount*recipe.Ratio-produced, 1)
		}
		used := produced / recipe.Ratio
		if used <= 0 {
			continue
		}
		s.cargo[ore] -= used
		if s.cargo[ore] <= reserveEpsilon {
			delete(s.cargo, ore)
		}
		budget -= used
		processed += used
		s.changed = true
	}
	return processed / duration
}

func (s *SubSystem) recipe(ore string) (model.RefiningRecipe, bool) {
	for _, r := range s.data.Refinery.Recipes {
		if r.Ore == ore {
			return r, true
		}
	}
	return model.RefiningRecipe{}, false
}

func (s *SubSystem) fabricate(out, duration float64) {
	progress := out * duration
	for progress > 0 && len(s.queue) > 0 {
		job := &s.queue[0]
		step := math.Min(progress, job.TimeLeft)
		job.TimeLeft -= step
		progress -= step
		if job.TimeLeft <= reserveEpsilon {
			s.completed = append(s.completed, job.Item)
			s.queue = s.queue[1:]
		}
		s.changed = true
	}
}

// Details projects the subsystem for the network layer.
func (s *SubSystem) Details() model.SubSystemDetails {
	d := model.SubSystemDetails{
		ID:              s.id,
		Type:            s.kind,
		Status:          s.status,
		SecondaryStatus: s.secondary,
		AutoReactivate:  s.autoReactivate,
		OperationRate:   s.operationRate,
		Effect:          s.effect,
		Active:          s.IsActive(),
	}
	if len(s.cargo) > 0 {
		d.Cargo = maps.Clone(s.cargo)
	}
	d.Queue = slices.Clone(s.queue)
	d.Completed = slices.Clone(s.completed)
	return d
}

func (s *SubSystem) Snapshot() model.ComponentSnapshot {
	snap := s.snapshotBase()
	switch s.kind {
	case model.SubSystemFabricator:
		snap.Fabricator = &model.FabricatorState{
			Queue:     slices.Clone(s.queue),
			Cargo:     maps.Clone(s.cargo),
			Completed: slices.Clone(s.completed),
		}
	case model.SubSystemRefinery:
		snap.Refinery = &model.RefineryState{Cargo: maps.Clone(s.cargo)}
	}
	return snap
}

func (s *SubSystem) Restore(snap model.ComponentSnapshot) {
	s.restoreBase(snap)
	switch {
	case s.kind == model.SubSystemFabricator && snap.Fabricator != nil:
		s.queue = slices.Clone(snap.Fabricator.Queue)
		s.cargo = maps.Clone(snap.Fabricator.Cargo)
		s.completed = slices.Clone(snap.Fabricator.Completed)
	case s.kind == model.SubSystemRefinery && snap.Refinery != nil:
		s.cargo = maps.Clone(snap.Refinery.Cargo)
	}
	if s.cargo == nil {
		s.cargo = make(map[string]float64)
	}
}
