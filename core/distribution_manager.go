package core

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

const tracerName = "github.com/signalsfoundry/vessel-systems/core"

// TickStats summarises one distribution update.
type TickStats struct {
	VesselID            int64
	Tick                uint64
	Duration            time.Duration
	ComponentsOnline    int
	CompoundRooms       int
	ReservationFailures int
	UnusedCapacity      map[model.ResourceType]float64
	UnusedQuantity      map[model.ResourceType]float64
}

// TickRecorder receives TickStats after every update. The observability
// collector implements it.
type TickRecorder interface {
	ObserveTick(stats TickStats)
}

type managerConfig struct {
	recorder TickRecorder
}

// DistributionManager runs resource distribution for one vessel. While the
// vessel is docked under another, the manager is dormant and the root
// vessel's manager drives its components as part of the docking tree.
type DistributionManager struct {
	vessel   *Vessel
	node     *DistributionNode
	recorder TickRecorder
	tracer   trace.Tracer

	// Cluster view over every node reachable from node.
	nodes      []*DistributionNode
	rooms      []*Room
	doors      []*Door
	generators []*Generator
	subsystems []*SubSystem
	containers []*ResourceContainer
	compounds  []*CompoundRoom

	roomIndex      map[model.VesselObjectID]*Room
	doorIndex      map[model.VesselObjectID]*Door
	generatorIndex map[model.VesselObjectID]*Generator
	subsystemIndex map[model.VesselObjectID]*SubSystem
	containerIndex map[model.VesselObjectID]*ResourceContainer

	connectionsChanged   bool
	compoundRoomsChanged bool

	tick           uint64
	failures       int
	unusedCapacity map[model.ResourceType]float64
	unusedQuantity map[model.ResourceType]float64
	lastTrail      []string
}

// AddShipDataStructure instantiates every room, door, container, generator
// and subsystem of v's structure into one DistributionNode and returns the
// vessel's manager.
func AddShipDataStructure(v *Vessel, cfg *managerConfig) (*DistributionManager, error) {
	if cfg == nil {
		cfg = &managerConfig{}
	}
	s := v.structure
	node := newDistributionNode(v.id)

	rooms := make(map[int]*Room, len(s.Rooms))
	for _, rd := range s.Rooms {
		if _, dup := rooms[rd.InSceneID]; dup || rd.InSceneID == 0 {
			return nil, fmt.Errorf("%w: room id %d", ErrInvalidStructure, rd.InSceneID)
		}
		r := NewRoom(v, rd)
		rooms[rd.InSceneID] = r
		node.Rooms = append(node.Rooms, r)
	}
	for _, rd := range s.Rooms {
		for _, linked := range rd.LinkedRooms {
			if rooms[linked] == nil {
				return nil, fmt.Errorf("%w: room %d links unknown room %d", ErrInvalidStructure, rd.InSceneID, linked)
			}
		}
	}

	seenDoors := make(map[int]bool, len(s.Doors))
	for _, dd := range s.Doors {
		if seenDoors[dd.InSceneID] {
			return nil, fmt.Errorf("%w: duplicate door id %d", ErrInvalidStructure, dd.InSceneID)
		}
		seenDoors[dd.InSceneID] = true
		r1 := rooms[dd.Room1]
		if r1 == nil {
			return nil, fmt.Errorf("%w: door %d references unknown room %d", ErrInvalidStructure, dd.InSceneID, dd.Room1)
		}
		var r2 *Room
		if dd.Room2 != 0 {
			if r2 = rooms[dd.Room2]; r2 == nil {
				return nil, fmt.Errorf("%w: door %d references unknown room %d", ErrInvalidStructure, dd.InSceneID, dd.Room2)
			}
		}
		d := NewDoor(v, dd, r1, r2)
		if dd.DockingPort != 0 {
			port := v.ports[dd.DockingPort]
			if port == nil {
				return nil, fmt.Errorf("%w: door %d references unknown docking port %d", ErrInvalidStructure, dd.InSceneID, dd.DockingPort)
			}
			d.port = port
			port.doors = append(port.doors, d)
		}
		node.Doors = append(node.Doors, d)
	}

	containers := make(map[int]*ResourceContainer, len(s.Containers))
	for _, cd := range s.Containers {
		if _, dup := containers[cd.InSceneID]; dup {
			return nil, fmt.Errorf("%w: duplicate container id %d", ErrInvalidStructure, cd.InSceneID)
		}
		c := NewResourceContainer(v, cd)
		containers[cd.InSceneID] = c
		node.Containers = append(node.Containers, c)
	}

	components := make(map[int]*VesselComponent)
	for _, gd := range s.Generators {
		g := NewGenerator(v, gd)
		if _, dup := components[gd.InSceneID]; dup {
			return nil, fmt.Errorf("%w: duplicate component id %d", ErrInvalidStructure, gd.InSceneID)
		}
		components[gd.InSceneID] = &g.VesselComponent
		node.Generators = append(node.Generators, g)
	}
	for _, sd := range s.SubSystems {
		sub := NewSubSystem(v, sd)
		if _, dup := components[sd.InSceneID]; dup {
			return nil, fmt.Errorf("%w: duplicate component id %d", ErrInvalidStructure, sd.InSceneID)
		}
		components[sd.InSceneID] = &sub.VesselComponent
		if sd.Refinery != nil {
			for _, id := range sd.Refinery.OutputContainers {
				c := containers[id]
				if c == nil {
					return nil, fmt.Errorf("%w: refinery %d outputs to unknown container %d", ErrInvalidStructure, sd.InSceneID, id)
				}
				sub.outputContainers = append(sub.outputContainers, c)
			}
		}
		node.SubSystems = append(node.SubSystems, sub)
	}

	for id, c := range components {
		for _, cid := range c.preferred {
			if containers[cid] == nil {
				return nil, fmt.Errorf("%w: component %d lists unknown container %d", ErrInvalidStructure, id, cid)
			}
		}
	}
	for _, c := range node.Containers {
		if !c.Bound() {
			continue
		}
		owner := components[c.Owner()]
		if owner == nil {
			return nil, fmt.Errorf("%w: container %d bound to unknown component %d", ErrInvalidStructure, c.id.InSceneID, c.Owner())
		}
		if !slices.Contains(owner.preferred, c.id.InSceneID) {
			owner.preferred = append(owner.preferred, c.id.InSceneID)
		}
	}

	m := &DistributionManager{
		vessel:   v,
		node:     node,
		recorder: cfg.recorder,
		tracer:   otel.Tracer(tracerName),
	}
	m.rebuildCluster()
	return m, nil
}

// Vessel returns the owning vessel.
func (m *DistributionManager) Vessel() *Vessel { return m.vessel }

// Node returns the vessel's own distribution node.
func (m *DistributionManager) Node() *DistributionNode { return m.node }

// Active reports whether the manager drives updates, i.e. its vessel is
// not docked under another.
func (m *DistributionManager) Active() bool { return m.vessel.IsMain() }

// root is the manager that currently owns this vessel's components.
func (m *DistributionManager) root() *DistributionManager {
	return m.vessel.Root().manager
}

// LinkDockedVessels links the nodes of the whole docking tree below this
// vessel, pairs the doors of every docked port pair and rebuilds the
// cluster view. It is a no-op for a docked (dormant) manager.
func (m *DistributionManager) LinkDockedVessels() {
	if !m.Active() {
		return
	}
	for _, v := range m.vessel.DockingTree() {
		for _, child := range v.Children() {
			v.manager.node.link(child.manager.node)
			childPort := child.parentPort
			pairDoors(childPort.dockedTo, childPort)
		}
	}
	m.rebuildCluster()
}

func (m *DistributionManager) rebuildCluster() {
	m.nodes = m.node.Reachable()
	m.rooms, m.doors, m.generators, m.subsystems, m.containers = nil, nil, nil, nil, nil
	for _, n := range m.nodes {
		m.rooms = append(m.rooms, n.Rooms...)
		m.doors = append(m.doors, n.Doors...)
		m.generators = append(m.generators, n.Generators...)
		m.subsystems = append(m.subsystems, n.SubSystems...)
		m.containers = append(m.containers, n.Containers...)
	}
	slices.SortFunc(m.rooms, func(a, b *Room) int { return a.id.Compare(b.id) })
	slices.SortFunc(m.doors, func(a, b *Door) int { return a.id.Compare(b.id) })
	slices.SortFunc(m.generators, func(a, b *Generator) int { return a.id.Compare(b.id) })
	slices.SortFunc(m.subsystems, func(a, b *SubSystem) int { return a.id.Compare(b.id) })
	slices.SortFunc(m.containers, func(a, b *ResourceContainer) int { return a.id.Compare(b.id) })

	m.roomIndex = indexBy(m.rooms, (*Room).ID)
	m.doorIndex = indexBy(m.doors, (*Door).ID)
	m.generatorIndex = indexBy(m.generators, (*Generator).ID)
	m.subsystemIndex = indexBy(m.subsystems, (*SubSystem).ID)
	m.containerIndex = indexBy(m.containers, (*ResourceContainer).ID)
	m.compounds = nil
	m.connectionsChanged = true
	m.compoundRoomsChanged = true
}

func indexBy[T any](items []T, key func(T) model.VesselObjectID) map[model.VesselObjectID]T {
	out := make(map[model.VesselObjectID]T, len(items))
	for _, it := range items {
		out[key(it)] = it
	}
	return out
}

// MarkConnectionsChanged forces a provider/consumer rebuild on the next
// update.
func (m *DistributionManager) MarkConnectionsChanged() { m.root().connectionsChanged = true }

// MarkCompoundRoomsChanged forces a compound room rebuild on the next
// update.
func (m *DistributionManager) MarkCompoundRoomsChanged() { m.root().compoundRoomsChanged = true }

// UpdateSystems runs one distribution update of duration seconds over the
// whole docking tree. Dormant managers return at once.
func (m *DistributionManager) UpdateSystems(ctx context.Context, duration float64) {
	if !m.Active() {
		return
	}
	start := time.Now()
	ctx, tickID := logging.EnsureTickID(ctx)
	ctx, span := m.tracer.Start(ctx, "DistributionManager.UpdateSystems",
		trace.WithAttributes(
			attribute.Int64("vessel.id", m.vessel.id),
			attribute.String("tick.id", tickID),
			attribute.Float64("tick.duration_s", duration),
		))
	defer span.End()

	if m.compoundRoomsChanged {
		m.compounds = CreateCompoundRooms(m.rooms)
		m.compoundRoomsChanged = false
		m.vessel.log.Debug(ctx, "compound rooms rebuilt", logging.Int("compound_rooms", len(m.compounds)))
	}
	if m.connectionsChanged {
		m.UpdateConnections()
		m.connectionsChanged = false
	}

	for _, g := range m.generators {
		g.Update(duration)
	}
	for _, s := range m.subsystems {
		s.Update(duration)
	}

	m.UpdateConsumers(ctx, duration, NewReservations())
	m.tick++

	span.SetAttributes(
		attribute.Int("compound_rooms", len(m.compounds)),
		attribute.Int("reservation_failures", m.failures),
	)
	if m.recorder != nil {
		m.recorder.ObserveTick(m.stats(time.Since(start)))
	}
}

func (m *DistributionManager) stats(elapsed time.Duration) TickStats {
	online := 0
	for _, g := range m.generators {
		if g.status == model.StatusOnLine {
			online++
		}
	}
	for _, s := range m.subsystems {
		if s.status == model.StatusOnLine {
			online++
		}
	}
	return TickStats{
		VesselID:            m.vessel.id,
		Tick:                m.tick,
		Duration:            elapsed,
		ComponentsOnline:    online,
		CompoundRooms:       len(m.compounds),
		ReservationFailures: m.failures,
		UnusedCapacity:      m.unusedCapacity,
		UnusedQuantity:      m.unusedQuantity,
	}
}

// Tick is the number of updates this manager has run.
func (m *DistributionManager) Tick() uint64 { return m.tick }

// CompoundRooms returns the current partition.
func (m *DistributionManager) CompoundRooms() []*CompoundRoom { return m.root().compounds }

// UnusedCapacity is the spare provider rate per resource after the last
// update.
func (m *DistributionManager) UnusedCapacity(r model.ResourceType) float64 {
	return m.root().unusedCapacity[r]
}

// UnusedQuantity is the stored amount per resource after the last update.
func (m *DistributionManager) UnusedQuantity(r model.ResourceType) float64 {
	return m.root().unusedQuantity[r]
}

// LastTrail returns the shortfall notes of the last update.
func (m *DistributionManager) LastTrail() []string { return slices.Clone(m.root().lastTrail) }

// Lookups across the docking tree; nil when nothing matches.

func (m *DistributionManager) Room(id model.VesselObjectID) *Room { return m.root().roomIndex[id] }
func (m *DistributionManager) Door(id model.VesselObjectID) *Door { return m.root().doorIndex[id] }
func (m *DistributionManager) Generator(id model.VesselObjectID) *Generator {
	return m.root().generatorIndex[id]
}
func (m *DistributionManager) SubSystem(id model.VesselObjectID) *SubSystem {
	return m.root().subsystemIndex[id]
}
func (m *DistributionManager) Container(id model.VesselObjectID) *ResourceContainer {
	return m.root().containerIndex[id]
}

// Component returns the generator or subsystem with id.
func (m *DistributionManager) Component(id model.VesselObjectID) *VesselComponent {
	if g := m.Generator(id); g != nil {
		return &g.VesselComponent
	}
	if s := m.SubSystem(id); s != nil {
		return &s.VesselComponent
	}
	return nil
}

func (m *DistributionManager) Rooms() []*Room                   { return m.root().rooms }
func (m *DistributionManager) Doors() []*Door                   { return m.root().doors }
func (m *DistributionManager) Generators() []*Generator         { return m.root().generators }
func (m *DistributionManager) SubSystems() []*SubSystem         { return m.root().subsystems }
func (m *DistributionManager) Containers() []*ResourceContainer { return m.root().containers }
