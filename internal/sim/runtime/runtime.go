// Package runtime drives a ScenarioState from a TimeController and fans
// each tick's results out to subscribers and the snapshot store.
package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/internal/persistence"
	sim "github.com/signalsfoundry/vessel-systems/internal/sim/state"
	"github.com/signalsfoundry/vessel-systems/model"
	"github.com/signalsfoundry/vessel-systems/timectrl"
)

// Publisher receives the details that changed during one tick.
type Publisher interface {
	Publish(ctx context.Context, tick uint64, details map[int64]model.VesselDetails)
}

// SnapshotSaver persists the scenario's component state.
type SnapshotSaver interface {
	Save(ctx context.Context, tick uint64, label string, snaps []model.VesselSnapshot) (persistence.Record, error)
}

// VesselRuntime owns the tick loop of a running scenario.
type VesselRuntime struct {
	State *sim.ScenarioState
	Clock *timectrl.TimeController

	publisher     Publisher
	store         SnapshotSaver
	snapshotEvery uint64

	log logging.Logger

	tickErrors atomic.Uint64
	saves      atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   <-chan struct{}
}

// Option customises a VesselRuntime.
type Option func(*VesselRuntime)

// WithPublisher forwards changed details after every tick.
func WithPublisher(p Publisher) Option {
	return func(r *VesselRuntime) { r.publisher = p }
}

// WithSnapshots saves a snapshot every n ticks and once more on Close.
// n of 0 only saves on Close.
func WithSnapshots(store SnapshotSaver, every uint64) Option {
	return func(r *VesselRuntime) {
		r.store = store
		r.snapshotEvery = every
	}
}

// NewVesselRuntime wires state to clock. The tick listener is registered
// immediately, so the clock must not have been started yet.
func NewVesselRuntime(state *sim.ScenarioState, clock *timectrl.TimeController, log logging.Logger, opts ...Option) (*VesselRuntime, error) {
	if state == nil {
		return nil, fmt.Errorf("state is nil")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is nil")
	}
	if log == nil {
		log = logging.Noop()
	}
	r := &VesselRuntime{State: state, Clock: clock, log: log}
	for _, opt := range opts {
		opt(r)
	}
	clock.AddListener(r.onTick)
	return r, nil
}

// TickErrors counts ticks the engine rejected.
func (r *VesselRuntime) TickErrors() uint64 { return r.tickErrors.Load() }

// Saves counts snapshots written.
func (r *VesselRuntime) Saves() uint64 { return r.saves.Load() }

func (r *VesselRuntime) onTick(simTime time.Time, dt time.Duration) {
	ctx, _ := logging.EnsureTickID(context.Background())
	tick, err := r.State.Tick(ctx, simTime, dt)
	if err != nil {
		r.tickErrors.Add(1)
		r.log.Warn(ctx, "tick failed", logging.String("error", err.Error()))
		return
	}
	if r.publisher != nil {
		r.publisher.Publish(ctx, tick, r.State.ChangedDetails())
	}
	if r.store != nil && r.snapshotEvery > 0 && tick%r.snapshotEvery == 0 {
		r.save(ctx, tick, "periodic")
	}
}

func (r *VesselRuntime) save(ctx context.Context, tick uint64, label string) {
	rec, err := r.store.Save(ctx, tick, label, r.State.SnapshotAll())
	if err != nil {
		r.log.Warn(ctx, "snapshot save failed", logging.Uint64("tick", tick), logging.String("error", err.Error()))
		return
	}
	r.saves.Add(1)
	r.log.Debug(ctx, "snapshot saved",
		logging.String("snapshot_id", rec.ID),
		logging.Uint64("tick", tick),
		logging.String("label", label),
	)
}

// Start runs the clock for duration of simulation time, or until Stop
// when duration is 0.
func (r *VesselRuntime) Start(ctx context.Context, duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return fmt.Errorf("runtime already started")
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = r.Clock.Start(ctx, duration)
	r.log.Info(ctx, "simulation started",
		logging.String("mode", r.Clock.Mode.String()),
		logging.String("tick", r.Clock.Tick.String()),
	)
	return nil
}

// Wait blocks until the clock finishes.
func (r *VesselRuntime) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stop halts the clock and waits for the in-flight tick.
func (r *VesselRuntime) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.Wait()
}

// Close stops the loop and writes a final snapshot when a store is set.
func (r *VesselRuntime) Close(ctx context.Context) error {
	r.Stop()
	if r.store != nil {
		r.save(ctx, r.State.TickCount(), "shutdown")
	}
	return nil
}
