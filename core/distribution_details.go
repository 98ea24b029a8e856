package core

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

// Details projections over the docking tree. vesselID 0 selects every
// vessel; changedOnly skips entities without pending changes. Projections
// are reads: only DrainChanged clears changed flags.

type detailsMode int

const (
	detailsAll detailsMode = iota
	detailsChanged
	detailsDrain
)

func modeFor(changedOnly bool) detailsMode {
	if changedOnly {
		return detailsChanged
	}
	return detailsAll
}

// take reports whether an entity with the given flag is projected, and
// clears the flag when draining.
func (mode detailsMode) take(changed *bool) bool {
	if mode != detailsAll && !*changed {
		return false
	}
	if mode == detailsDrain {
		*changed = false
	}
	return true
}

func (m *DistributionManager) RoomDetails(changedOnly bool, vesselID int64) []model.RoomDetails {
	return m.roomDetails(modeFor(changedOnly), vesselID)
}

func (m *DistributionManager) roomDetails(mode detailsMode, vesselID int64) []model.RoomDetails {
	var out []model.RoomDetails
	for _, r := range m.root().rooms {
		if selected(r.id, vesselID) && mode.take(&r.changed) {
			out = append(out, r.Details())
		}
	}
	return out
}

func (m *DistributionManager) DoorDetails(changedOnly bool, vesselID int64) []model.DoorDetails {
	return m.doorDetails(modeFor(changedOnly), vesselID)
}

func (m *DistributionManager) doorDetails(mode detailsMode, vesselID int64) []model.DoorDetails {
	var out []model.DoorDetails
	for _, d := range m.root().doors {
		if selected(d.id, vesselID) && mode.take(&d.changed) {
			out = append(out, d.Details())
		}
	}
	return out
}

func (m *DistributionManager) GeneratorDetails(changedOnly bool, vesselID int64) []model.GeneratorDetails {
	return m.generatorDetails(modeFor(changedOnly), vesselID)
}

func (m *DistributionManager) generatorDetails(mode detailsMode, vesselID int64) []model.GeneratorDetails {
	var out []model.GeneratorDetails
	for _, g := range m.root().generators {
		if selected(g.id, vesselID) && mode.take(&g.changed) {
			out = append(out, g.Details())
		}
	}
	return out
}

func (m *DistributionManager) SubSystemDetails(changedOnly bool, vesselID int64) []model.SubSystemDetails {
	return m.subSystemDetails(modeFor(changedOnly), vesselID)
}

func (m *DistributionManager) subSystemDetails(mode detailsMode, vesselID int64) []model.SubSystemDetails {
	var out []model.SubSystemDetails
	for _, s := range m.root().subsystems {
		if selected(s.id, vesselID) && mode.take(&s.changed) {
			out = append(out, s.Details())
		}
	}
	return out
}

func (m *DistributionManager) ContainerDetails(changedOnly bool, vesselID int64) []model.ResourceContainerDetails {
	return m.containerDetails(modeFor(changedOnly), vesselID)
}

func (m *DistributionManager) containerDetails(mode detailsMode, vesselID int64) []model.ResourceContainerDetails {
	var out []model.ResourceContainerDetails
	for _, c := range m.root().containers {
		if selected(c.id, vesselID) && mode.take(&c.changed) {
			out = append(out, c.Details())
		}
	}
	return out
}

// MachineryPartDetails reports fitted parts. With changedOnly, a slot is
// reported only after its rounded health moved or its report period ran
// out.
func (m *DistributionManager) MachineryPartDetails(changedOnly bool, vesselID int64) []model.MachineryPartDetails {
	return m.machineryPartDetails(modeFor(changedOnly), vesselID)
}

func (m *DistributionManager) machineryPartDetails(mode detailsMode, vesselID int64) []model.MachineryPartDetails {
	var out []model.MachineryPartDetails
	for _, c := range m.root().components() {
		if !selected(c.id, vesselID) {
			continue
		}
		for _, s := range c.slots {
			if s.Part == nil || !mode.take(&s.changed) {
				continue
			}
			out = append(out, model.MachineryPartDetails{
				Component: c.id,
				SlotID:    s.ID,
				Type:      s.Part.Type(),
				Tier:      s.Part.Tier(),
				Health:    s.Part.Health(),
				MaxHealth: s.Part.MaxHealth(),
			})
		}
	}
	return out
}

// Details bundles every projection without touching changed flags.
func (m *DistributionManager) Details(changedOnly bool, vesselID int64) model.VesselDetails {
	return m.details(modeFor(changedOnly), vesselID)
}

// DrainChanged returns the changed projections and clears their flags. It
// is the resend path: each change is handed out exactly once.
func (m *DistributionManager) DrainChanged(vesselID int64) model.VesselDetails {
	return m.details(detailsDrain, vesselID)
}

func (m *DistributionManager) details(mode detailsMode, vesselID int64) model.VesselDetails {
	return model.VesselDetails{
		Rooms:          m.roomDetails(mode, vesselID),
		Doors:          m.doorDetails(mode, vesselID),
		Generators:     m.generatorDetails(mode, vesselID),
		SubSystems:     m.subSystemDetails(mode, vesselID),
		Containers:     m.containerDetails(mode, vesselID),
		MachineryParts: m.machineryPartDetails(mode, vesselID),
	}
}

func selected(id model.VesselObjectID, vesselID int64) bool {
	return vesselID == 0 || id.VesselID == vesselID
}

func (m *DistributionManager) components() []*VesselComponent {
	out := make([]*VesselComponent, 0, len(m.generators)+len(m.subsystems))
	for _, g := range m.generators {
		out = append(out, &g.VesselComponent)
	}
	for _, s := range m.subsystems {
		out = append(out, &s.VesselComponent)
	}
	return out
}

// Commands. Each resolves its target through the docking tree and takes
// effect on the next update.

// SetDoorOpen opens or closes a door. Opening a locked door fails.
func (m *DistributionManager) SetDoorOpen(id model.VesselObjectID, open bool) error {
	d := m.Door(id)
	if d == nil {
		return fmt.Errorf("%w: %s", ErrDoorNotFound, id)
	}
	if !d.SetOpen(open) {
		return fmt.Errorf("%w: door %s is locked", ErrDoorLocked, id)
	}
	return nil
}

// SetDoorLocked locks or unlocks a door.
func (m *DistributionManager) SetDoorLocked(id model.VesselObjectID, locked bool) error {
	d := m.Door(id)
	if d == nil {
		return fmt.Errorf("%w: %s", ErrDoorNotFound, id)
	}
	d.SetLocked(locked)
	return nil
}

// SetComponentOnline requests a generator or subsystem to come online or
// shuts it down.
func (m *DistributionManager) SetComponentOnline(id model.VesselObjectID, online bool) error {
	c := m.Component(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}
	if online {
		c.RequestOnline()
	} else {
		c.GoOffLine(false, false)
	}
	return nil
}

func (m *DistributionManager) SetOperationRate(id model.VesselObjectID, rate float64) error {
	c := m.Component(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}
	c.SetOperationRate(rate)
	return nil
}

func (m *DistributionManager) SetRoomTargetPressure(id model.VesselObjectID, pressure float64) error {
	r := m.Room(id)
	if r == nil {
		return fmt.Errorf("%w: room %s", ErrComponentNotFound, id)
	}
	r.SetTargetPressure(pressure)
	return nil
}

// EqualizeRooms makes id move towards the pressure of other.
func (m *DistributionManager) EqualizeRooms(id, other model.VesselObjectID) error {
	r, o := m.Room(id), m.Room(other)
	if r == nil || o == nil {
		return fmt.Errorf("%w: room %s or %s", ErrComponentNotFound, id, other)
	}
	r.EqualizeWith(o)
	return nil
}

func (m *DistributionManager) VentRoom(id model.VesselObjectID) error {
	r := m.Room(id)
	if r == nil {
		return fmt.Errorf("%w: room %s", ErrComponentNotFound, id)
	}
	r.Vent()
	return nil
}

func (m *DistributionManager) ClearRoomTargets(id model.VesselObjectID) error {
	r := m.Room(id)
	if r == nil {
		return fmt.Errorf("%w: room %s", ErrComponentNotFound, id)
	}
	r.ClearTargets()
	return nil
}

func (m *DistributionManager) SetRoomAirFiltering(id model.VesselObjectID, on bool) error {
	r := m.Room(id)
	if r == nil {
		return fmt.Errorf("%w: room %s", ErrComponentNotFound, id)
	}
	r.SetAirFiltering(on)
	return nil
}

// AddAirConsumer starts a fire, breach or damage effect in a room and
// returns its id within the room.
func (m *DistributionManager) AddAirConsumer(room model.VesselObjectID, kind model.AirConsumerType, sev model.Severity, persistent bool) (int, error) {
	r := m.Room(room)
	if r == nil {
		return 0, fmt.Errorf("%w: room %s", ErrComponentNotFound, room)
	}
	return r.AddAirConsumer(kind, sev, persistent).ID, nil
}

func (m *DistributionManager) RemoveAirConsumer(room model.VesselObjectID, consumerID int) error {
	r := m.Room(room)
	if r == nil || !r.RemoveAirConsumer(consumerID) {
		return fmt.Errorf("%w: air consumer %d in room %s", ErrComponentNotFound, consumerID, room)
	}
	return nil
}

func (m *DistributionManager) subsystemOf(id model.VesselObjectID, kind model.SubSystemType) (*SubSystem, error) {
	s := m.SubSystem(id)
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}
	if s.kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", ErrInvalidCommand, id, s.kind, kind)
	}
	return s, nil
}

func (m *DistributionManager) SetEngineThrust(id model.VesselObjectID, thrust float64) error {
	s, err := m.subsystemOf(id, model.SubSystemEngine)
	if err != nil {
		return err
	}
	s.SetThrust(thrust)
	return nil
}

func (m *DistributionManager) SetRCSManeuver(id model.VesselObjectID, maneuver Vec3) error {
	s, err := m.subsystemOf(id, model.SubSystemRCS)
	if err != nil {
		return err
	}
	s.SetManeuver(maneuver)
	return nil
}

func (m *DistributionManager) SetFTLWarp(id model.VesselObjectID, on bool) error {
	s, err := m.subsystemOf(id, model.SubSystemFTL)
	if err != nil {
		return err
	}
	s.SetWarp(on)
	return nil
}

func (m *DistributionManager) QueueFabrication(id model.VesselObjectID, item string, duration float64) error {
	s, err := m.subsystemOf(id, model.SubSystemFabricator)
	if err != nil {
		return err
	}
	if !s.QueueJob(item, duration) {
		return fmt.Errorf("%w: fabrication job %q", ErrInvalidCommand, item)
	}
	return nil
}

// LoadCargo puts material into a refinery or fabricator and returns what
// fit.
func (m *DistributionManager) LoadCargo(id model.VesselObjectID, material string, amount float64) (float64, error) {
	s := m.SubSystem(id)
	if s == nil {
		return 0, fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}
	if s.kind != model.SubSystemRefinery && s.kind != model.SubSystemFabricator {
		return 0, fmt.Errorf("%w: %s has no cargo hold", ErrInvalidCommand, id)
	}
	return s.LoadCargo(material, amount), nil
}

func (m *DistributionManager) FitMachineryPart(id model.VesselObjectID, slotID int, part *model.MachineryPartData) error {
	c := m.Component(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrComponentNotFound, id)
	}
	return c.FitPart(slotID, part)
}

// Snapshot flattens the state of this vessel's own components.
func (m *DistributionManager) Snapshot() model.VesselSnapshot {
	n := m.node
	snap := model.VesselSnapshot{
		VesselID: m.vessel.id,
		Class:    m.vessel.Class(),
		Tick:     m.root().tick,
		SavedAt:  time.Now().UTC(),
	}
	for _, r := range n.Rooms {
		snap.Rooms = append(snap.Rooms, r.Snapshot())
	}
	for _, d := range n.Doors {
		snap.Doors = append(snap.Doors, d.Snapshot())
	}
	for _, g := range n.Generators {
		snap.Generators = append(snap.Generators, g.Snapshot())
	}
	for _, s := range n.SubSystems {
		snap.SubSystems = append(snap.SubSystems, s.Snapshot())
	}
	for _, c := range n.Containers {
		snap.Containers = append(snap.Containers, c.Snapshot())
	}
	return snap
}

// Restore applies a snapshot to this vessel's components. Entries that do
// not match a component are logged and skipped; the component keeps its
// current state. It returns the number of entries applied.
func (m *DistributionManager) Restore(ctx context.Context, snap model.VesselSnapshot) int {
	log := m.vessel.log
	if snap.VesselID != m.vessel.id {
		log.Warn(ctx, "snapshot belongs to another vessel", logging.Int64("snapshot_vessel_id", snap.VesselID))
		return 0
	}
	if snap.Class != "" && snap.Class != m.vessel.Class() {
		log.Warn(ctx, "snapshot class mismatch", logging.String("snapshot_class", snap.Class))
	}
	n := m.node
	rooms := indexBy(n.Rooms, (*Room).ID)
	doors := indexBy(n.Doors, (*Door).ID)
	gens := indexBy(n.Generators, (*Generator).ID)
	subs := indexBy(n.SubSystems, (*SubSystem).ID)
	containers := indexBy(n.Containers, (*ResourceContainer).ID)

	skip := func(kind string, id model.VesselObjectID) {
		log.Warn(ctx, "snapshot entry skipped", logging.String("kind", kind), logging.String("id", id.String()))
	}
	applied := 0
	for _, rs := range snap.Rooms {
		if r := rooms[rs.ID]; r != nil {
			r.Restore(rs)
			applied++
		} else {
			skip("room", rs.ID)
		}
	}
	for _, ds := range snap.Doors {
		if d := doors[ds.ID]; d != nil {
			d.Restore(ds)
			applied++
		} else {
			skip("door", ds.ID)
		}
	}
	for _, cs := range snap.Generators {
		g := gens[cs.ID]
		if g == nil || (cs.Capacitor != nil && !g.IsCapacitor()) {
			skip("generator", cs.ID)
			continue
		}
		g.Restore(cs)
		applied++
	}
	for _, cs := range snap.SubSystems {
		s := subs[cs.ID]
		if s == nil || (cs.Fabricator != nil && s.kind != model.SubSystemFabricator) ||
			(cs.Refinery != nil && s.kind != model.SubSystemRefinery) {
			skip("subsystem", cs.ID)
			continue
		}
		s.Restore(cs)
		applied++
	}
	for _, cs := range snap.Containers {
		if c := containers[cs.ID]; c != nil {
			c.Restore(cs)
			applied++
		} else {
			skip("container", cs.ID)
		}
	}
	m.MarkCompoundRoomsChanged()
	m.MarkConnectionsChanged()
	log.Info(ctx, "snapshot restored", logging.Int("applied", applied), logging.Uint64("tick", snap.Tick))
	return applied
}
