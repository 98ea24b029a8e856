package core

import (
	"context"
	"fmt"
	"slices"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

// Vessel is the runtime context every component of one ship hangs off:
// identity, tuning, logger, sun exposure and docking ports. It owns one
// DistributionManager.
type Vessel struct {
	id        int64
	name      string
	structure *model.VesselStructure
	tuning    *Tuning
	log       logging.Logger

	sunExposure float64

	ports      map[int]*DockingPort
	parentPort *DockingPort
	manager    *DistributionManager
}

// VesselOption configures NewVessel.
type VesselOption func(*Vessel, *managerConfig)

// WithTuning overrides the default tuning.
func WithTuning(t *Tuning) VesselOption {
	return func(v *Vessel, _ *managerConfig) {
		if t != nil {
			v.tuning = t
		}
	}
}

// WithLogger sets the base logger; the vessel id is added to it.
func WithLogger(l logging.Logger) VesselOption {
	return func(v *Vessel, _ *managerConfig) {
		if l != nil {
			v.log = l
		}
	}
}

// WithSunExposure sets the initial sun exposure.
func WithSunExposure(exposure float64) VesselOption {
	return func(v *Vessel, _ *managerConfig) { v.sunExposure = clamp01(exposure) }
}

// WithTickRecorder reports every distribution update to r.
func WithTickRecorder(r TickRecorder) VesselOption {
	return func(_ *Vessel, cfg *managerConfig) { cfg.recorder = r }
}

// NewVessel instantiates a vessel of the given structure. The structure is
// deep-copied; the catalog's template is never touched.
func NewVessel(id int64, name string, structure *model.VesselStructure, opts ...VesselOption) (*Vessel, error) {
	if structure == nil {
		return nil, fmt.Errorf("%w: nil structure", ErrInvalidStructure)
	}
	v := &Vessel{
		id:          id,
		name:        name,
		structure:   structure.Clone(),
		tuning:      DefaultTuning(),
		log:         logging.Noop(),
		sunExposure: 1,
		ports:       make(map[int]*DockingPort),
	}
	cfg := &managerConfig{}
	for _, opt := range opts {
		opt(v, cfg)
	}
	v.log = logging.WithVesselLogger(v.log, id)
	for _, pd := range v.structure.DockingPorts {
		v.ports[pd.InSceneID] = &DockingPort{
			id:     model.NewVesselObjectID(id, pd.InSceneID),
			vessel: v,
			data:   pd,
		}
	}
	m, err := AddShipDataStructure(v, cfg)
	if err != nil {
		return nil, err
	}
	v.manager = m
	return v, nil
}

func (v *Vessel) ID() int64                     { return v.id }
func (v *Vessel) Name() string                  { return v.name }
func (v *Vessel) Class() string                 { return v.structure.Class }
func (v *Vessel) Tags() []string                { return v.structure.Tags }
func (v *Vessel) Tuning() *Tuning               { return v.tuning }
func (v *Vessel) Logger() logging.Logger        { return v.log }
func (v *Vessel) Manager() *DistributionManager { return v.manager }
func (v *Vessel) SunExposure() float64          { return v.sunExposure }

// SetSunExposure updates the exposure solar generators see.
func (v *Vessel) SetSunExposure(exposure float64) {
	v.sunExposure = clamp01(exposure)
}

// Port returns a docking port by in-scene id, or nil.
func (v *Vessel) Port(id int) *DockingPort { return v.ports[id] }

// Ports returns the docking ports ordered by id.
func (v *Vessel) Ports() []*DockingPort {
	out := make([]*DockingPort, 0, len(v.ports))
	for _, p := range v.ports {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *DockingPort) int { return a.id.Compare(b.id) })
	return out
}

// Parent returns the vessel this one is docked under, or nil.
func (v *Vessel) Parent() *Vessel {
	if v.parentPort == nil || v.parentPort.dockedTo == nil {
		return nil
	}
	return v.parentPort.dockedTo.vessel
}

// Root returns the undocked vessel at the top of the docking tree.
func (v *Vessel) Root() *Vessel {
	root := v
	for p := root.Parent(); p != nil; p = root.Parent() {
		root = p
	}
	return root
}

// IsMain reports whether the vessel is not docked under another.
func (v *Vessel) IsMain() bool { return v.Parent() == nil }

// Children returns the vessels docked directly under v.
func (v *Vessel) Children() []*Vessel {
	var out []*Vessel
	for _, p := range v.Ports() {
		if p.dockedTo != nil && p.dockedTo.vessel.parentPort == p.dockedTo {
			out = append(out, p.dockedTo.vessel)
		}
	}
	return out
}

// DockingTree returns v and every vessel docked below it, depth first.
func (v *Vessel) DockingTree() []*Vessel {
	out := []*Vessel{v}
	for _, c := range v.Children() {
		out = append(out, c.DockingTree()...)
	}
	return out
}

// DockingPort is an attachment point. Doors listing the port pair with the
// docked port's doors.
type DockingPort struct {
	id       model.VesselObjectID
	vessel   *Vessel
	data     model.DockingPortData
	dockedTo *DockingPort
	doors    []*Door
}

func (p *DockingPort) ID() model.VesselObjectID { return p.id }
func (p *DockingPort) Vessel() *Vessel          { return p.vessel }
func (p *DockingPort) DockedTo() *DockingPort   { return p.dockedTo }
func (p *DockingPort) Doors() []*Door           { return p.doors }

func (p *DockingPort) pairingTolerance() float64 {
	if p.data.PairingTolerance > 0 {
		return p.data.PairingTolerance
	}
	return p.vessel.tuning.DoorPairingTolerance
}

// Dock attaches child under parent. The child's manager goes dormant and
// the root manager of the combined tree takes over its components.
func Dock(parentPort, childPort *DockingPort) error {
	if parentPort == nil || childPort == nil {
		return ErrPortNotFound
	}
	parent, child := parentPort.vessel, childPort.vessel
	switch {
	case parentPort.dockedTo != nil || childPort.dockedTo != nil:
		return fmt.Errorf("%w: port busy", ErrAlreadyDocked)
	case child.parentPort != nil:
		return fmt.Errorf("%w: vessel %d already has a parent", ErrAlreadyDocked, child.id)
	case parent.Root() == child || parent == child:
		return fmt.Errorf("%w: docking %d under %d would form a loop", ErrInvalidStructure, child.id, parent.id)
	}
	parentPort.dockedTo = childPort
	childPort.dockedTo = parentPort
	child.parentPort = childPort

	root := parent.Root()
	root.manager.LinkDockedVessels()
	child.log.Info(context.Background(), "vessel docked",
		logging.Int64("parent_id", parent.id),
		logging.Int("parent_port", parentPort.id.InSceneID),
		logging.Int("child_port", childPort.id.InSceneID))
	return nil
}

// Undock separates the two sides of port. Both resulting trees rebuild
// their graphs on the next update.
func Undock(port *DockingPort) error {
	if port == nil {
		return ErrPortNotFound
	}
	other := port.dockedTo
	if other == nil {
		return ErrNotDocked
	}
	childPort, parentPort := port, other
	if other.vessel.parentPort == other {
		childPort, parentPort = other, port
	}
	unpairDoors(parentPort, childPort)
	parentPort.vessel.manager.node.unlink(childPort.vessel.manager.node)
	parentPort.dockedTo = nil
	childPort.dockedTo = nil
	childPort.vessel.parentPort = nil

	parentPort.vessel.Root().manager.LinkDockedVessels()
	childPort.vessel.manager.LinkDockedVessels()
	childPort.vessel.log.Info(context.Background(), "vessel undocked", logging.Int64("parent_id", parentPort.vessel.id))
	return nil
}

// pairDoors matches each unpaired door of a against the nearest unpaired
// door of b, mirroring X since the ports face each other.
func pairDoors(a, b *DockingPort) int {
	tolerance := a.pairingTolerance()
	paired := 0
	for _, da := range a.doors {
		if da.paired != nil {
			continue
		}
		pos := localPosition(da.data.PortLocalPosition).MirrorX()
		var best *Door
		bestDist := tolerance
		for _, db := range b.doors {
			if db.paired != nil {
				continue
			}
			if d := pos.DistanceTo(localPosition(db.data.PortLocalPosition)); d <= bestDist {
				best, bestDist = db, d
			}
		}
		if best == nil {
			continue
		}
		da.paired, best.paired = best, da
		da.changed, best.changed = true, true
		for _, port := range []*DockingPort{a, b} {
			if port.data.UnlockDoorsOnDock {
				da.SetLocked(false)
				best.SetLocked(false)
			}
			if port.data.EnableGravityOnDock {
				for _, d := range []*Door{da, best} {
					if d.room1 != nil {
						d.room1.SetGravity(true)
					}
				}
			}
		}
		paired++
	}
	return paired
}

func unpairDoors(a, b *DockingPort) {
	for _, d := range a.doors {
		if d.paired != nil && d.paired.port == b {
			d.paired.paired = nil
			d.paired.changed = true
			d.paired = nil
			d.changed = true
		}
	}
}

func localPosition(p model.LocalPosition) Vec3 {
	return Vec3{X: p.X, Y: p.Y, Z: p.Z}
}
