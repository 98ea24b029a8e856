// Package state owns the running scenario: the vessel registry, the
// structure catalog and the simulation engine, behind one coarse lock.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/kb"
	"github.com/signalsfoundry/vessel-systems/model"
)

// Re-export the sentinels callers are expected to match on so they can
// depend on state.* alone.
var (
	ErrVesselExists      = core.ErrVesselExists
	ErrVesselNotFound    = core.ErrVesselNotFound
	ErrStructureNotFound = core.ErrStructureNotFound
	ErrPortNotFound      = core.ErrPortNotFound
	ErrAlreadyDocked     = core.ErrAlreadyDocked
	ErrNotDocked         = core.ErrNotDocked
	// ErrVesselDocked is returned when removing a vessel that still has
	// children docked under it.
	ErrVesselDocked = errors.New("vessel has docked children")
)

// ScenarioState coordinates the vessel registry and the simulation
// engine. The engine is single-threaded; every path into it goes through
// mu.
type ScenarioState struct {
	// mu is the coarse scenario lock. Take it before the registry's own
	// lock; the order is ScenarioState -> KnowledgeBase.
	mu sync.RWMutex

	vessels *kb.KnowledgeBase
	engine  *core.SimulationEngine
	motion  *core.MotionRegistry

	telemetry *TelemetryState
	forget    []func(vesselID int64)

	log     logging.Logger
	metrics ScenarioMetricsRecorder
}

// ScenarioMetricsRecorder receives entity counts after every mutation.
type ScenarioMetricsRecorder interface {
	SetScenarioCounts(vessels, docked, classes int)
}

// ScenarioStateOption customises ScenarioState construction.
type ScenarioStateOption func(*ScenarioState)

// WithMetricsRecorder attaches a recorder for scenario gauges.
func WithMetricsRecorder(m ScenarioMetricsRecorder) ScenarioStateOption {
	return func(s *ScenarioState) {
		s.metrics = m
	}
}

// WithTelemetry attaches the store that the engine's tick recorder feeds,
// so removed vessels are dropped from it.
func WithTelemetry(t *TelemetryState) ScenarioStateOption {
	return func(s *ScenarioState) {
		s.telemetry = t
		s.forget = append(s.forget, t.Forget)
	}
}

// WithVesselForgetter registers a callback run after a vessel is removed,
// such as observability.SystemsCollector.ForgetVessel.
func WithVesselForgetter(fn func(vesselID int64)) ScenarioStateOption {
	return func(s *ScenarioState) {
		if fn != nil {
			s.forget = append(s.forget, fn)
		}
	}
}

// NewScenarioState wires the registry to the engine. Positions propagated
// by the motion registry are pushed into both.
func NewScenarioState(vessels *kb.KnowledgeBase, engine *core.SimulationEngine, log logging.Logger, opts ...ScenarioStateOption) *ScenarioState {
	if log == nil {
		log = logging.Noop()
	}
	if vessels == nil {
		vessels = kb.NewKnowledgeBase()
	}
	if engine == nil {
		engine = core.NewSimulationEngine(nil)
	}
	s := &ScenarioState{
		vessels: vessels,
		engine:  engine,
		log:     log,
	}
	s.motion = core.NewMotionRegistry(motionFanout{engine, vessels})
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.updateMetricsLocked()
	return s
}

type motionFanout []core.MotionUpdater

func (f motionFanout) UpdateVesselMotion(id int64, pos model.Motion, sunExposure float64) error {
	for _, u := range f {
		if err := u.UpdateVesselMotion(id, pos, sunExposure); err != nil {
			return err
		}
	}
	return nil
}

// KnowledgeBase exposes the vessel registry. It is safe for concurrent
// reads and subscriptions.
func (s *ScenarioState) KnowledgeBase() *kb.KnowledgeBase { return s.vessels }

// Catalog exposes the structure catalog.
func (s *ScenarioState) Catalog() *core.StructureCatalog { return s.engine.Catalog }

// Telemetry returns the attached telemetry store, or nil.
func (s *ScenarioState) Telemetry() *TelemetryState { return s.telemetry }

// LoadScenario spawns sc's vessels in order. core.LoadScenario has
// already put the structures into the catalog. It stops at the first
// error.
func (s *ScenarioState) LoadScenario(sc *core.Scenario) error {
	if sc == nil {
		return errors.New("scenario is nil")
	}
	for _, spawn := range sc.Vessels {
		if err := s.SpawnVessel(spawn.Definition()); err != nil {
			return fmt.Errorf("spawn vessel %d: %w", spawn.ID, err)
		}
	}
	return nil
}

// SpawnVessel instantiates def.Class and registers the vessel. When
// def.DockedTo is set the vessel is docked before it is registered.
func (s *ScenarioState) SpawnVessel(def *model.VesselDefinition) error {
	if def == nil {
		return errors.New("vessel is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.engine.Spawn(def); err != nil {
		return err
	}
	if err := s.vessels.AddVessel(def); err != nil {
		_ = s.engine.Remove(def.ID)
		return err
	}
	if err := s.motion.AddVessel(def); err != nil {
		_ = s.vessels.RemoveVessel(def.ID)
		_ = s.engine.Remove(def.ID)
		return err
	}
	if def.DockedTo != nil {
		s.log.Info(context.Background(), "vessel spawned docked",
			logging.Int64("vessel_id", def.ID),
			logging.Int64("parent_id", def.DockedTo.ParentID),
		)
	}
	s.updateMetricsLocked()
	return nil
}

// GetVessel returns the registry record of a vessel.
func (s *ScenarioState) GetVessel(id int64) (*model.VesselDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.vessels.GetVessel(id)
	if v == nil {
		return nil, fmt.Errorf("%w: %d", ErrVesselNotFound, id)
	}
	return v, nil
}

// ListVessels returns every registry record ordered by id.
func (s *ScenarioState) ListVessels() []*model.VesselDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vessels.ListVessels()
}

// RemoveVessel undocks a vessel from its parent and drops it. Vessels
// with children docked under them are refused.
func (s *ScenarioState) RemoveVessel(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.engine.Vessel(id)
	if v == nil {
		return fmt.Errorf("%w: %d", ErrVesselNotFound, id)
	}
	if len(v.Children()) > 0 {
		return fmt.Errorf("%w: %d", ErrVesselDocked, id)
	}
	if err := s.engine.Remove(id); err != nil {
		return err
	}
	if err := s.vessels.RemoveVessel(id); err != nil && !errors.Is(err, kb.ErrVesselNotFound) {
		return err
	}
	if err := s.motion.RemoveVessel(id); err != nil && !errors.Is(err, core.ErrVesselNotFound) {
		return err
	}
	for _, fn := range s.forget {
		fn(id)
	}
	s.updateMetricsLocked()
	return nil
}

// Dock attaches child's port under parent's port and records the link.
func (s *ScenarioState) Dock(ctx context.Context, parentID int64, parentPort int, childID int64, childPort int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Dock(parentID, parentPort, childID, childPort); err != nil {
		return err
	}
	link := &model.DockingLink{ParentID: parentID, ParentPort: parentPort, ChildPort: childPort}
	if err := s.vessels.SetDocking(childID, link); err != nil {
		return err
	}
	s.log.Info(ctx, "vessels docked",
		logging.Int64("parent_id", parentID),
		logging.Int("parent_port", parentPort),
		logging.Int64("child_id", childID),
		logging.Int("child_port", childPort),
	)
	s.updateMetricsLocked()
	return nil
}

// Undock separates the vessel's port from whatever it is docked to. The
// port may be on either side of the link.
func (s *ScenarioState) Undock(ctx context.Context, vesselID int64, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.engine.Vessel(vesselID)
	if v == nil {
		return fmt.Errorf("%w: %d", ErrVesselNotFound, vesselID)
	}
	p := v.Port(port)
	if p == nil {
		return fmt.Errorf("%w: %d:%d", ErrPortNotFound, vesselID, port)
	}
	other := p.DockedTo()
	if other == nil {
		return fmt.Errorf("%w: %d:%d", ErrNotDocked, vesselID, port)
	}
	child := v
	if v.Parent() != other.Vessel() {
		child = other.Vessel()
	}
	if err := s.engine.Undock(vesselID, port); err != nil {
		return err
	}
	if err := s.vessels.SetDocking(child.ID(), nil); err != nil {
		return err
	}
	s.log.Info(ctx, "vessels undocked",
		logging.Int64("vessel_id", vesselID),
		logging.Int("port", port),
		logging.Int64("child_id", child.ID()),
	)
	s.updateMetricsLocked()
	return nil
}

// Tick propagates motion to simTime and runs one distribution update of
// dt on every root vessel. It returns the engine's tick count.
func (s *ScenarioState) Tick(ctx context.Context, simTime time.Time, dt time.Duration) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.motion.UpdatePositions(simTime); err != nil {
		return s.engine.Tick(), fmt.Errorf("update positions: %w", err)
	}
	s.engine.Step(ctx, dt.Seconds())
	return s.engine.Tick(), nil
}

// TickCount is the number of ticks run.
func (s *ScenarioState) TickCount() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Tick()
}

// Details returns the projections of one vessel's components. With
// changedOnly set, only entries with pending changes are returned. Pending
// changes stay pending for ChangedDetails.
func (s *ScenarioState) Details(vesselID int64, changedOnly bool) (model.VesselDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.engine.Vessel(vesselID)
	if v == nil {
		return model.VesselDetails{}, fmt.Errorf("%w: %d", ErrVesselNotFound, vesselID)
	}
	return v.Manager().Details(changedOnly, vesselID), nil
}

// ChangedDetails drains changed projections for every vessel, omitting
// vessels with nothing to send.
func (s *ScenarioState) ChangedDetails() map[int64]model.VesselDetails {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int64]model.VesselDetails)
	for _, v := range s.engine.Vessels() {
		if d := v.Manager().DrainChanged(v.ID()); !d.Empty() {
			out[v.ID()] = d
		}
	}
	return out
}

// WithManager runs fn against the distribution manager of a vessel under
// the write lock. Commands resolve their targets through the docking tree
// and take effect on the next tick.
func (s *ScenarioState) WithManager(vesselID int64, fn func(*core.DistributionManager) error) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.engine.Vessel(vesselID)
	if v == nil {
		return fmt.Errorf("%w: %d", ErrVesselNotFound, vesselID)
	}
	return fn(v.Manager())
}

// WithReadLock executes fn while holding the read lock. fn must not call
// back into ScenarioState.
func (s *ScenarioState) WithReadLock(fn func() error) error {
	if fn == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// Snapshot flattens one vessel's component state.
func (s *ScenarioState) Snapshot(vesselID int64) (model.VesselSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.engine.Vessel(vesselID)
	if v == nil {
		return model.VesselSnapshot{}, fmt.Errorf("%w: %d", ErrVesselNotFound, vesselID)
	}
	return v.Manager().Snapshot(), nil
}

// SnapshotAll flattens every vessel, ordered by id.
func (s *ScenarioState) SnapshotAll() []model.VesselSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vessels := s.engine.Vessels()
	out := make([]model.VesselSnapshot, 0, len(vessels))
	for _, v := range vessels {
		out = append(out, v.Manager().Snapshot())
	}
	return out
}

// Restore applies snapshots to the matching vessels and returns the
// number of entries applied. Snapshots of unknown vessels are logged and
// skipped.
func (s *ScenarioState) Restore(ctx context.Context, snaps ...model.VesselSnapshot) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, snap := range snaps {
		v := s.engine.Vessel(snap.VesselID)
		if v == nil {
			s.log.Warn(ctx, "snapshot for unknown vessel skipped", logging.Int64("vessel_id", snap.VesselID))
			continue
		}
		applied += v.Manager().Restore(ctx, snap)
	}
	return applied
}

// ClearScenario removes every vessel, children first. The catalog is
// left intact.
func (s *ScenarioState) ClearScenario(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vessels := s.engine.Vessels()
	for len(vessels) > 0 {
		progressed := false
		for _, v := range vessels {
			if len(v.Children()) > 0 {
				continue
			}
			id := v.ID()
			if err := s.engine.Remove(id); err != nil {
				return err
			}
			_ = s.vessels.RemoveVessel(id)
			_ = s.motion.RemoveVessel(id)
			for _, fn := range s.forget {
				fn(id)
			}
			progressed = true
		}
		if !progressed {
			return errors.New("clear scenario: docking cycle")
		}
		vessels = s.engine.Vessels()
	}
	s.log.Info(ctx, "scenario cleared")
	s.updateMetricsLocked()
	return nil
}

// updateMetricsLocked pushes the current counts. Caller must hold s.mu.
func (s *ScenarioState) updateMetricsLocked() {
	if s.metrics == nil {
		return
	}
	vessels := s.engine.Vessels()
	docked := 0
	for _, v := range vessels {
		if !v.IsMain() {
			docked++
		}
	}
	s.metrics.SetScenarioCounts(len(vessels), docked, len(s.engine.Catalog.Classes()))
}
