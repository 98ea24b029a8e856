package core

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/signalsfoundry/vessel-systems/internal/logging"
	"github.com/signalsfoundry/vessel-systems/model"
)

func airTank(id int, capacity, quantity float64) model.ResourceContainerData {
	c := tank(id, model.ResourceAir, capacity, quantity)
	c.IsAirTank = true
	c.AirQuality = 1
	return c
}

func TestPressurize_MonotonicUntilTargetCleared(t *testing.T) {
	v := newTestVessel(t, 1, &model.VesselStructure{
		Rooms:      []model.RoomData{room(1, 10, 0.5, 1)},
		Containers: []model.ResourceContainerData{airTank(1, 100, 50)},
	})
	m := v.Manager()
	if err := m.SetRoomTargetPressure(oid(1, 1), 1); err != nil {
		t.Fatalf("SetRoomTargetPressure: %v", err)
	}
	r := m.Room(oid(1, 1))
	eps := v.Tuning().PressureEpsilon

	prev := r.AirPressure()
	cleared := false
	for i := 0; i < 30; i++ {
		tick(t, v, 1, 1)
		_, hasTarget := r.TargetPressure()
		if !hasTarget {
			cleared = true
			break
		}
		if r.AirPressure() <= prev {
			t.Fatalf("tick %d: pressure %v did not rise above %v", i, r.AirPressure(), prev)
		}
		prev = r.AirPressure()
	}
	if !cleared {
		t.Fatalf("target never cleared, pressure %v", r.AirPressure())
	}
	if !approxEqual(r.AirPressure(), 1, eps) {
		t.Fatalf("final pressure = %v, want 1", r.AirPressure())
	}
	// Five cubic metres of air came out of the tank.
	if got := m.Container(oid(1, 1)).Quantity(); !approxEqual(got, 45, 0.01) {
		t.Fatalf("tank quantity = %v, want ~45", got)
	}
}

func TestPressurize_WithoutAirSourceStalls(t *testing.T) {
	v := newTestVessel(t, 1, &model.VesselStructure{Rooms: []model.RoomData{room(1, 10, 0.5, 1)}})
	m := v.Manager()
	_ = m.SetRoomTargetPressure(oid(1, 1), 1)
	tick(t, v, 5, 1)

	r := m.Room(oid(1, 1))
	if r.AirPressure() != 0.5 {
		t.Fatalf("pressure moved to %v without a source", r.AirPressure())
	}
	if _, ok := r.TargetPressure(); !ok {
		t.Fatalf("unreached target was cleared")
	}
}

func TestDepressurize_PushesAirIntoTanks(t *testing.T) {
	v := newTestVessel(t, 1, &model.VesselStructure{
		Rooms:      []model.RoomData{room(1, 10, 1, 1)},
		Containers: []model.ResourceContainerData{airTank(1, 100, 0)},
	})
	m := v.Manager()
	_ = m.SetRoomTargetPressure(oid(1, 1), 0.5)
	tick(t, v, 1, 1)

	if got := m.Room(oid(1, 1)).AirPressure(); !approxEqual(got, 0.95, floatTol) {
		t.Fatalf("pressure = %v, want 0.95", got)
	}
	if got := m.Container(oid(1, 1)).Quantity(); !approxEqual(got, 0.5, floatTol) {
		t.Fatalf("tank = %v, want 0.5", got)
	}
}

func TestVent_EmptiesRoomAndClears(t *testing.T) {
	v := newTestVessel(t, 1, &model.VesselStructure{Rooms: []model.RoomData{room(1, 10, 1, 1)}})
	m := v.Manager()
	if err := m.VentRoom(oid(1, 1)); err != nil {
		t.Fatalf("VentRoom: %v", err)
	}
	tick(t, v, 1, 1)
	r := m.Room(oid(1, 1))
	if !approxEqual(r.AirPressure(), 0.9, floatTol) || !r.Venting() {
		t.Fatalf("after 1s: p=%v venting=%v", r.AirPressure(), r.Venting())
	}
	tick(t, v, 12, 1)
	if r.AirPressure() != 0 || r.Venting() {
		t.Fatalf("after venting: p=%v venting=%v", r.AirPressure(), r.Venting())
	}
}

func TestEqualize_ConservesAirAcrossSealedRooms(t *testing.T) {
	s := twoRoomStructure(false)
	s.Rooms[1].AirPressure = 0
	v := newTestVessel(t, 1, s)
	m := v.Manager()
	if err := m.EqualizeRooms(oid(1, 1), oid(1, 2)); err != nil {
		t.Fatalf("EqualizeRooms: %v", err)
	}
	r1, r2 := m.Room(oid(1, 1)), m.Room(oid(1, 2))

	tick(t, v, 1, 1)
	if !approxEqual(r1.AirPressure(), 0.95, floatTol) || !approxEqual(r2.AirPressure(), 0.05, floatTol) {
		t.Fatalf("after 1s: p1=%v p2=%v", r1.AirPressure(), r2.AirPressure())
	}
	tick(t, v, 15, 1)
	total := r1.AirPressure()*r1.Volume() + r2.AirPressure()*r2.Volume()
	if !approxEqual(total, 10, 1e-6) {
		t.Fatalf("air total = %v, want 10", total)
	}
	if !approxEqual(r1.AirPressure(), r2.AirPressure(), v.Tuning().PressureEpsilon) {
		t.Fatalf("not equalized: p1=%v p2=%v", r1.AirPressure(), r2.AirPressure())
	}
	if d := r1.Details(); d.EquilizePressureRoom != nil {
		t.Fatalf("equalize target not cleared")
	}
}

func TestScrubbing_CleansAirAndWearsCartridge(t *testing.T) {
	r := room(1, 10, 1, 0.5)
	r.AirFiltering = true
	v := newTestVessel(t, 1, &model.VesselStructure{
		Rooms: []model.RoomData{r},
		Generators: []model.GeneratorData{{
			ComponentData: model.ComponentData{
				InSceneID: 2, StartOnline: true,
				Slots: []model.MachineryPartSlotData{{
					SlotID: 1, Scope: model.ScopeOutput,
					Part: &model.MachineryPartData{Type: model.PartScrubberCartridge, Tier: 1, Health: 100, MaxHealth: 100},
				}},
			},
			Type:          model.GeneratorScrubber,
			NominalOutput: 2,
			Scrubber:      &model.ScrubberData{CartridgeConsumption: 1},
		}},
	})
	m := v.Manager()
	_ = m.DrainChanged(0)

	tick(t, v, 1, 1)
	if got := m.Room(oid(1, 1)).AirQuality(); !approxEqual(got, 0.7, floatTol) {
		t.Fatalf("quality = %v, want 0.7", got)
	}
	if got := m.Generator(oid(1, 2)).Output(); !approxEqual(got, 2, floatTol) {
		t.Fatalf("scrubber output = %v, want 2", got)
	}
	parts := m.DrainChanged(0).MachineryParts
	if len(parts) != 1 || !approxEqual(parts[0].Health, 98, floatTol) {
		t.Fatalf("cartridge details = %+v, want health 98", parts)
	}
	if again := m.DrainChanged(0).MachineryParts; len(again) != 0 {
		t.Fatalf("unchanged cartridge reported again: %+v", again)
	}

	// Without filtering the scrubber idles.
	_ = m.SetRoomAirFiltering(oid(1, 1), false)
	tick(t, v, 1, 1)
	if got := m.Generator(oid(1, 2)).Output(); got != 0 {
		t.Fatalf("scrubber output without filtering = %v", got)
	}
}

func TestAirConsumers_FireAndBreach(t *testing.T) {
	v := newTestVessel(t, 1, &model.VesselStructure{
		Rooms: []model.RoomData{room(1, 10, 1, 1), room(2, 10, 1, 1)},
	})
	m := v.Manager()
	fireID, err := m.AddAirConsumer(oid(1, 1), model.AirConsumerFire, model.SeverityLarge, false)
	if err != nil {
		t.Fatalf("AddAirConsumer: %v", err)
	}
	if _, err := m.AddAirConsumer(oid(1, 2), model.AirConsumerBreach, model.SeverityLarge, false); err != nil {
		t.Fatalf("AddAirConsumer: %v", err)
	}
	tick(t, v, 1, 1)

	r1, r2 := m.Room(oid(1, 1)), m.Room(oid(1, 2))
	if !approxEqual(r1.AirQuality(), 0.992, floatTol) || r1.AirPressure() != 1 {
		t.Fatalf("fire room: q=%v p=%v", r1.AirQuality(), r1.AirPressure())
	}
	if !approxEqual(r2.AirPressure(), 0.8, floatTol) || r2.AirQuality() != 1 {
		t.Fatalf("breach room: q=%v p=%v", r2.AirQuality(), r2.AirPressure())
	}

	// Starved of oxygen the fire goes out.
	r1.SetAirQuality(0.2)
	tick(t, v, 1, 1)
	if r1.HasFire() {
		t.Fatalf("fire still burning at quality 0.2")
	}
	if err := m.RemoveAirConsumer(oid(1, 1), fireID); err == nil {
		t.Fatalf("removing an extinguished fire should fail")
	}
}

func TestAirConsumers_LogsStarvedConsumerOnly(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Level: "debug", Format: "json", Output: &buf})
	v := newTestVessel(t, 1, &model.VesselStructure{Rooms: []model.RoomData{room(1, 10, 1, 0.2)}}, WithLogger(log))
	m := v.Manager()
	if _, err := m.AddAirConsumer(oid(1, 1), model.AirConsumerBreach, model.SeveritySmall, false); err != nil {
		t.Fatalf("AddAirConsumer: %v", err)
	}
	fireID, err := m.AddAirConsumer(oid(1, 1), model.AirConsumerFire, model.SeveritySmall, false)
	if err != nil {
		t.Fatalf("AddAirConsumer: %v", err)
	}
	tick(t, v, 1, 1)

	var starved []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode log: %v", err)
		}
		if rec["msg"] == "air consumer starved" {
			starved = append(starved, rec)
		}
	}
	if len(starved) != 1 {
		t.Fatalf("starved records = %d, want 1", len(starved))
	}
	if starved[0]["type"] != "fire" || starved[0]["consumer"] != float64(fireID) {
		t.Fatalf("starved record = %v, want fire %d", starved[0], fireID)
	}
	if m.Room(oid(1, 1)).HasFire() {
		t.Fatalf("fire still burning at quality 0.2")
	}
}

func TestAirConsumers_PersistentFireSurvivesButStopsBurning(t *testing.T) {
	v := newTestVessel(t, 1, &model.VesselStructure{Rooms: []model.RoomData{room(1, 10, 1, 0.2)}})
	m := v.Manager()
	_, _ = m.AddAirConsumer(oid(1, 1), model.AirConsumerFire, model.SeveritySmall, true)
	tick(t, v, 3, 1)

	r := m.Room(oid(1, 1))
	if !r.HasFire() {
		t.Fatalf("persistent fire was extinguished")
	}
	if r.AirQuality() != 0.2 || r.FireCanBurn() {
		t.Fatalf("starved fire consumed air: q=%v", r.AirQuality())
	}
}

func TestExternalDoor_LeaksAndReportsDecompression(t *testing.T) {
	v := newTestVessel(t, 1, &model.VesselStructure{
		Rooms: []model.RoomData{room(1, 10, 1, 1)},
		Doors: []model.DoorData{{
			InSceneID: 1, Room1: 1, IsSealable: true, IsOpen: true, IsExternal: true, PassageArea: 0.001,
		}},
	})
	m := v.Manager()
	tick(t, v, 1, 1)

	p := m.Room(oid(1, 1)).AirPressure()
	if p <= 0.97 || p >= 0.98 {
		t.Fatalf("pressure after leak = %v, want ~0.975", p)
	}
	d := m.DoorDetails(false, 0)
	if len(d) != 1 || !d[0].Decompressing || d[0].AirFlowRate <= 0 || d[0].PressureEquilizationTime <= 0 {
		t.Fatalf("door details = %+v", d)
	}

	_ = m.SetDoorOpen(oid(1, 1), false)
	tick(t, v, 1, 1)
	if got := m.Room(oid(1, 1)).AirPressure(); got != p {
		t.Fatalf("sealed room still leaking: %v -> %v", p, got)
	}
	if d := m.DoorDetails(false, 0); d[0].Decompressing {
		t.Fatalf("sealed door still decompressing")
	}
}

func TestAirFlowRate_OrificeFormula(t *testing.T) {
	if got := AirFlowRate(1, 0); got != 0 {
		t.Fatalf("zero delta flow = %v", got)
	}
	// 0.61 * 2 * sqrt(2 * 0.5 * 100000 / 1.225)
	want := 1.22 * 285.7142857142857
	if got := AirFlowRate(2, 0.5); !approxEqual(got, want, 1e-3) {
		t.Fatalf("flow = %v, want %v", got, want)
	}
}
