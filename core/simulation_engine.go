package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/signalsfoundry/vessel-systems/model"
)

// SimulationEngine owns the spawned vessels and ticks every root
// distribution manager once per step. It is single-threaded; callers that
// share it across goroutines must serialise access.
type SimulationEngine struct {
	Catalog *StructureCatalog

	opts          []VesselOption
	vessels       map[int64]*Vessel
	tick          uint64
	tickListeners []func(uint64)
}

// NewSimulationEngine creates an engine that spawns from catalog. opts are
// applied to every spawned vessel.
func NewSimulationEngine(catalog *StructureCatalog, opts ...VesselOption) *SimulationEngine {
	if catalog == nil {
		catalog = NewStructureCatalog()
	}
	return &SimulationEngine{
		Catalog: catalog,
		opts:    opts,
		vessels: make(map[int64]*Vessel),
	}
}

func (se *SimulationEngine) RegisterTickListener(fn func(uint64)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Spawn instantiates a vessel of def.Class and docks it when def.DockedTo
// is set.
func (se *SimulationEngine) Spawn(def *model.VesselDefinition) (*Vessel, error) {
	if def == nil || def.ID == 0 {
		return nil, fmt.Errorf("%w: missing vessel id", ErrInvalidStructure)
	}
	if _, exists := se.vessels[def.ID]; exists {
		return nil, fmt.Errorf("%w: %d", ErrVesselExists, def.ID)
	}
	structure, err := se.Catalog.Get(def.Class)
	if err != nil {
		return nil, err
	}
	opts := append(append([]VesselOption{}, se.opts...), WithSunExposure(def.SunExposure))
	v, err := NewVessel(def.ID, def.Name, structure, opts...)
	if err != nil {
		return nil, err
	}
	se.vessels[def.ID] = v
	if link := def.DockedTo; link != nil {
		if err := se.Dock(link.ParentID, link.ParentPort, def.ID, link.ChildPort); err != nil {
			delete(se.vessels, def.ID)
			return nil, err
		}
	}
	return v, nil
}

// Vessel returns the vessel with id, or nil.
func (se *SimulationEngine) Vessel(id int64) *Vessel { return se.vessels[id] }

// Vessels returns every vessel ordered by id.
func (se *SimulationEngine) Vessels() []*Vessel {
	out := make([]*Vessel, 0, len(se.vessels))
	for _, v := range se.vessels {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Remove undocks a vessel from everything and drops it.
func (se *SimulationEngine) Remove(id int64) error {
	v := se.vessels[id]
	if v == nil {
		return fmt.Errorf("%w: %d", ErrVesselNotFound, id)
	}
	for _, p := range v.Ports() {
		if p.dockedTo != nil {
			if err := Undock(p); err != nil {
				return err
			}
		}
	}
	delete(se.vessels, id)
	return nil
}

// Dock attaches child's port under parent's port.
func (se *SimulationEngine) Dock(parentID int64, parentPort int, childID int64, childPort int) error {
	parent, child := se.vessels[parentID], se.vessels[childID]
	if parent == nil {
		return fmt.Errorf("%w: %d", ErrVesselNotFound, parentID)
	}
	if child == nil {
		return fmt.Errorf("%w: %d", ErrVesselNotFound, childID)
	}
	pp, cp := parent.Port(parentPort), child.Port(childPort)
	if pp == nil || cp == nil {
		return fmt.Errorf("%w: %d:%d or %d:%d", ErrPortNotFound, parentID, parentPort, childID, childPort)
	}
	return Dock(pp, cp)
}

// Undock separates the vessel's port from whatever it is docked to.
func (se *SimulationEngine) Undock(vesselID int64, port int) error {
	v := se.vessels[vesselID]
	if v == nil {
		return fmt.Errorf("%w: %d", ErrVesselNotFound, vesselID)
	}
	p := v.Port(port)
	if p == nil {
		return fmt.Errorf("%w: %d:%d", ErrPortNotFound, vesselID, port)
	}
	return Undock(p)
}

// UpdateVesselMotion records a new sun exposure; position is not used by
// the systems simulation. It lets a MotionRegistry drive the engine.
func (se *SimulationEngine) UpdateVesselMotion(id int64, _ model.Motion, sunExposure float64) error {
	v := se.vessels[id]
	if v == nil {
		return fmt.Errorf("%w: %d", ErrVesselNotFound, id)
	}
	v.SetSunExposure(sunExposure)
	return nil
}

// Step runs one update of duration seconds on every root vessel.
func (se *SimulationEngine) Step(ctx context.Context, duration float64) {
	for _, v := range se.Vessels() {
		if v.IsMain() {
			v.manager.UpdateSystems(ctx, duration)
		}
	}
	se.tick++
	for _, fn := range se.tickListeners {
		fn(se.tick)
	}
}

// Run executes ticks steps of duration seconds.
func (se *SimulationEngine) Run(ctx context.Context, ticks int, duration float64) {
	for i := 0; i < ticks; i++ {
		if ctx.Err() != nil {
			return
		}
		se.Step(ctx, duration)
	}
}

// Tick is the number of steps run.
func (se *SimulationEngine) Tick() uint64 { return se.tick }
