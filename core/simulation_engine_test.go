package core

import (
	"context"
	"errors"
	"testing"

	"github.com/signalsfoundry/vessel-systems/model"
)

type recordedTicks struct{ stats []TickStats }

func (r *recordedTicks) ObserveTick(s TickStats) { r.stats = append(r.stats, s) }

func newTestEngine(t *testing.T, opts ...VesselOption) *SimulationEngine {
	t.Helper()
	catalog := NewStructureCatalog()
	hub := &model.VesselStructure{
		Class:        "hub",
		Rooms:        []model.RoomData{room(1, 10, 1, 1)},
		DockingPorts: []model.DockingPortData{{InSceneID: 1}},
		Generators: []model.GeneratorData{{
			ComponentData: model.ComponentData{InSceneID: 2, StartOnline: true},
			Type:          model.GeneratorSolar,
			NominalOutput: 10,
		}},
	}
	pod := &model.VesselStructure{
		Class:        "pod",
		Rooms:        []model.RoomData{room(1, 2, 1, 1)},
		DockingPorts: []model.DockingPortData{{InSceneID: 1}},
		SubSystems:   []model.SubSystemData{lights(2, power(4, 0))},
	}
	for _, s := range []*model.VesselStructure{hub, pod} {
		if err := catalog.Add(s); err != nil {
			t.Fatalf("Add(%s): %v", s.Class, err)
		}
	}
	return NewSimulationEngine(catalog, opts...)
}

func TestSimulationEngine_SpawnAndLookup(t *testing.T) {
	se := newTestEngine(t)
	if _, err := se.Spawn(&model.VesselDefinition{ID: 1, Name: "alpha", Class: "hub", SunExposure: 1}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if _, err := se.Spawn(&model.VesselDefinition{ID: 1, Class: "hub"}); !errors.Is(err, ErrVesselExists) {
		t.Fatalf("duplicate spawn: %v", err)
	}
	if _, err := se.Spawn(&model.VesselDefinition{ID: 2, Class: "cruiser"}); !errors.Is(err, ErrStructureNotFound) {
		t.Fatalf("unknown class: %v", err)
	}
	if _, err := se.Spawn(&model.VesselDefinition{Class: "hub"}); !errors.Is(err, ErrInvalidStructure) {
		t.Fatalf("missing id: %v", err)
	}
	if v := se.Vessel(1); v == nil || v.Name() != "alpha" || v.Class() != "hub" {
		t.Fatalf("Vessel(1) = %+v", v)
	}
	if err := se.Remove(3); !errors.Is(err, ErrVesselNotFound) {
		t.Fatalf("Remove unknown: %v", err)
	}
}

func TestSimulationEngine_StepTicksRootsOnly(t *testing.T) {
	rec := &recordedTicks{}
	se := newTestEngine(t, WithTickRecorder(rec))
	if _, err := se.Spawn(&model.VesselDefinition{ID: 1, Class: "hub", SunExposure: 1}); err != nil {
		t.Fatalf("Spawn hub: %v", err)
	}
	pod, err := se.Spawn(&model.VesselDefinition{
		ID: 2, Class: "pod", SunExposure: 1,
		DockedTo: &model.DockingLink{ParentID: 1, ParentPort: 1, ChildPort: 1},
	})
	if err != nil {
		t.Fatalf("Spawn pod: %v", err)
	}
	if pod.IsMain() {
		t.Fatalf("pod not docked")
	}

	var seen []uint64
	se.RegisterTickListener(func(n uint64) { seen = append(seen, n) })
	se.Run(context.Background(), 3, 1)

	if se.Tick() != 3 || len(seen) != 3 || seen[2] != 3 {
		t.Fatalf("tick=%d listener=%v", se.Tick(), seen)
	}
	if len(rec.stats) != 3 {
		t.Fatalf("recorded %d updates, want 3 (hub only)", len(rec.stats))
	}
	for _, s := range rec.stats {
		if s.VesselID != 1 {
			t.Fatalf("update recorded for vessel %d", s.VesselID)
		}
	}
	if pod.Manager().Tick() != 0 {
		t.Fatalf("docked pod ran its own manager")
	}
}

func TestSimulationEngine_SunExposureDrivesSolar(t *testing.T) {
	se := newTestEngine(t)
	if _, err := se.Spawn(&model.VesselDefinition{ID: 1, Class: "hub", SunExposure: 1}); err != nil {
		t.Fatalf("Spawn hub: %v", err)
	}
	l := se.Vessel(1).Manager().Generator(oid(1, 2))
	if got := l.MaxOutput(); got != 10 {
		t.Fatalf("full sun output = %v", got)
	}
	if err := se.UpdateVesselMotion(1, model.Motion{}, 0.25); err != nil {
		t.Fatalf("UpdateVesselMotion: %v", err)
	}
	if got := l.MaxOutput(); !approxEqual(got, 2.5, floatTol) {
		t.Fatalf("quarter sun output = %v", got)
	}
	if err := se.UpdateVesselMotion(9, model.Motion{}, 1); !errors.Is(err, ErrVesselNotFound) {
		t.Fatalf("unknown vessel: %v", err)
	}
}

func TestSimulationEngine_RemoveUndocks(t *testing.T) {
	se := newTestEngine(t)
	_, _ = se.Spawn(&model.VesselDefinition{ID: 1, Class: "hub", SunExposure: 1})
	pod, _ := se.Spawn(&model.VesselDefinition{ID: 2, Class: "pod", SunExposure: 1})
	if err := se.Dock(1, 1, 2, 1); err != nil {
		t.Fatalf("Dock: %v", err)
	}
	if err := se.Dock(1, 1, 3, 1); !errors.Is(err, ErrVesselNotFound) {
		t.Fatalf("dock unknown child: %v", err)
	}
	if err := se.Remove(1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !pod.IsMain() || !pod.Manager().Active() {
		t.Fatalf("pod still docked to removed hub")
	}
	if vs := se.Vessels(); len(vs) != 1 || vs[0] != pod {
		t.Fatalf("vessels = %v", vs)
	}
	if err := se.Undock(2, 1); !errors.Is(err, ErrNotDocked) {
		t.Fatalf("undock free port: %v", err)
	}
}
