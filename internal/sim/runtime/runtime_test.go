package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/vessel-systems/core"
	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/internal/persistence"
	sim "github.com/signalsfoundry/vessel-systems/internal/sim/state"
	"github.com/signalsfoundry/vessel-systems/kb"
	"github.com/signalsfoundry/vessel-systems/model"
	"github.com/signalsfoundry/vessel-systems/timectrl"
)

const runtimeScenario = `
structures:
  - class: tug
    rooms:
      - {id: 1, volume: 10, air_pressure: 1, air_quality: 1}
    generators:
      - id: 2
        type: power
        nominal_output: 5
        start_online: true
    subsystems:
      - id: 3
        type: lights
        start_online: true
        auto_restart: true
        requirements:
          - {resource: power, nominal: 2}
vessels:
  - {id: 1, name: Tug, class: tug}
`

type recordingPublisher struct {
	mu    sync.Mutex
	ticks []uint64
	first map[int64]model.VesselDetails
}

func (p *recordingPublisher) Publish(_ context.Context, tick uint64, details map[int64]model.VesselDetails) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.first == nil {
		p.first = details
	}
	p.ticks = append(p.ticks, tick)
}

func newRuntimeState(t *testing.T) *sim.ScenarioState {
	t.Helper()
	catalog := core.NewStructureCatalog()
	sc, err := core.LoadScenario(catalog, strings.NewReader(runtimeScenario))
	if err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	state := sim.NewScenarioState(kb.NewKnowledgeBase(), core.NewSimulationEngine(catalog), logging.Noop())
	if err := state.LoadScenario(sc); err != nil {
		t.Fatalf("state.LoadScenario: %v", err)
	}
	return state
}

func TestRuntimeTicksPublishesAndSaves(t *testing.T) {
	state := newRuntimeState(t)
	store, err := persistence.Open(t.TempDir(), logging.Noop())
	if err != nil {
		t.Fatalf("persistence.Open: %v", err)
	}
	defer store.Close()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := timectrl.NewTimeController(start, time.Second, timectrl.Accelerated)
	pub := &recordingPublisher{}
	rt, err := NewVesselRuntime(state, clock, logging.Noop(), WithPublisher(pub), WithSnapshots(store, 2))
	if err != nil {
		t.Fatalf("NewVesselRuntime: %v", err)
	}

	ctx := context.Background()
	if err := rt.Start(ctx, 5*time.Second); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := rt.Start(ctx, time.Second); err == nil {
		t.Fatalf("second Start succeeded")
	}
	rt.Wait()

	if got := state.TickCount(); got != 5 {
		t.Fatalf("TickCount = %d, want 5", got)
	}
	if len(pub.ticks) != 5 || pub.ticks[0] != 1 || pub.ticks[4] != 5 {
		t.Fatalf("published ticks = %v, want 1..5", pub.ticks)
	}
	if d := pub.first[1]; len(d.Rooms) != 1 || len(d.SubSystems) != 1 {
		t.Fatalf("first publish = %+v, want the full vessel", pub.first)
	}
	if rt.Saves() != 2 {
		t.Fatalf("Saves = %d, want 2 (ticks 2 and 4)", rt.Saves())
	}

	if err := rt.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	rec, _, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if rec.Label != "shutdown" || rec.Tick != 5 {
		t.Fatalf("latest record = %+v, want shutdown at tick 5", rec)
	}
	if rt.TickErrors() != 0 {
		t.Fatalf("TickErrors = %d", rt.TickErrors())
	}
}

func TestRuntimeStopEndsOpenEndedRun(t *testing.T) {
	state := newRuntimeState(t)
	clock := timectrl.NewTimeController(time.Now(), 10*time.Millisecond, timectrl.RealTime)
	rt, err := NewVesselRuntime(state, clock, nil)
	if err != nil {
		t.Fatalf("NewVesselRuntime: %v", err)
	}
	if err := rt.Start(context.Background(), 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	rt.Stop()

	ticks := state.TickCount()
	if ticks == 0 {
		t.Fatalf("no ticks before Stop")
	}
	time.Sleep(30 * time.Millisecond)
	if state.TickCount() != ticks {
		t.Fatalf("ticks advanced after Stop")
	}
}

func TestNewVesselRuntimeValidates(t *testing.T) {
	if _, err := NewVesselRuntime(nil, timectrl.NewTimeController(time.Now(), time.Second, timectrl.Accelerated), nil); err == nil {
		t.Fatalf("nil state accepted")
	}
	if _, err := NewVesselRuntime(newRuntimeState(t), nil, nil); err == nil {
		t.Fatalf("nil clock accepted")
	}
}
