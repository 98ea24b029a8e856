package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/vessel-systems/model"
)

func twoRoomStructure(doorOpen bool) *model.VesselStructure {
	return &model.VesselStructure{
		Rooms: []model.RoomData{room(1, 10, 1.0, 1.0), room(2, 10, 0.5, 0.5)},
		Doors: []model.DoorData{{
			InSceneID: 1, Room1: 1, Room2: 2,
			IsSealable: true, IsOpen: doorOpen, PassageArea: 1,
		}},
	}
}

func TestCompoundRoom_OpenDoorMergesAndSealingSplits(t *testing.T) {
	v := newTestVessel(t, 1, twoRoomStructure(true))
	m := v.Manager()
	tick(t, v, 1, 0)

	crs := m.CompoundRooms()
	if len(crs) != 1 {
		t.Fatalf("expected 1 compound room, got %d", len(crs))
	}
	cr := crs[0]
	if cr.Volume() != 20 {
		t.Fatalf("compound volume = %v, want 20", cr.Volume())
	}
	if !approxEqual(cr.AirPressure(), 0.75, floatTol) {
		t.Fatalf("compound pressure = %v, want 0.75", cr.AirPressure())
	}
	// Quality is weighted by held air: (10*1 + 5*0.5) / 15.
	wantQ := 12.5 / 15
	if !approxEqual(cr.AirQuality(), wantQ, floatTol) {
		t.Fatalf("compound quality = %v, want %v", cr.AirQuality(), wantQ)
	}

	if err := m.SetDoorOpen(oid(1, 1), false); err != nil {
		t.Fatalf("SetDoorOpen: %v", err)
	}
	tick(t, v, 1, 0)

	crs = m.CompoundRooms()
	if len(crs) != 2 {
		t.Fatalf("expected 2 compound rooms after sealing, got %d", len(crs))
	}
	for _, cr := range crs {
		if len(cr.Rooms) != 1 || cr.Volume() != 10 {
			t.Fatalf("compound %s: rooms=%d volume=%v", cr.ID, len(cr.Rooms), cr.Volume())
		}
		if !approxEqual(cr.AirPressure(), 0.75, floatTol) || !approxEqual(cr.AirQuality(), wantQ, floatTol) {
			t.Fatalf("compound %s kept p=%v q=%v, want p=0.75 q=%v", cr.ID, cr.AirPressure(), cr.AirQuality(), wantQ)
		}
	}
}

func TestDoor_DirectToggleRebuildsCompounds(t *testing.T) {
	v := newTestVessel(t, 1, twoRoomStructure(true))
	m := v.Manager()
	tick(t, v, 1, 0)
	if n := len(m.CompoundRooms()); n != 1 {
		t.Fatalf("expected 1 compound, got %d", n)
	}

	door := m.Room(oid(1, 1)).Doors()[0]
	if !door.SetOpen(false) {
		t.Fatalf("SetOpen refused on an unlocked door")
	}
	tick(t, v, 1, 0)
	if n := len(m.CompoundRooms()); n != 2 {
		t.Fatalf("closing through the door left %d compounds, want 2", n)
	}

	door.Restore(model.DoorSnapshot{ID: door.ID(), IsOpen: true})
	tick(t, v, 1, 0)
	if n := len(m.CompoundRooms()); n != 1 {
		t.Fatalf("restoring an open door left %d compounds, want 1", n)
	}
}

func TestCompoundRoom_UnsealableClosedDoorStillJoins(t *testing.T) {
	s := twoRoomStructure(false)
	s.Doors[0].IsSealable = false
	v := newTestVessel(t, 1, s)
	tick(t, v, 1, 0)

	if n := len(v.Manager().CompoundRooms()); n != 1 {
		t.Fatalf("expected a non-sealable door to keep rooms joined, got %d compounds", n)
	}
}

func TestCompoundRoom_LinkedRoomsWithoutDoor(t *testing.T) {
	s := &model.VesselStructure{
		Rooms: []model.RoomData{room(1, 5, 1, 1), room(2, 5, 0, 1), room(3, 5, 1, 1)},
	}
	s.Rooms[0].LinkedRooms = []int{2}
	v := newTestVessel(t, 1, s)
	tick(t, v, 1, 0)

	crs := v.Manager().CompoundRooms()
	if len(crs) != 2 {
		t.Fatalf("expected 2 compounds, got %d", len(crs))
	}
	if crs[0].ID != oid(1, 1) || len(crs[0].Rooms) != 2 {
		t.Fatalf("first compound = %s with %d rooms", crs[0].ID, len(crs[0].Rooms))
	}
	if !approxEqual(crs[0].AirPressure(), 0.5, floatTol) {
		t.Fatalf("linked pressure = %v, want 0.5", crs[0].AirPressure())
	}
}

func TestCompoundRoom_LinkListedOnHigherRoomOnly(t *testing.T) {
	s := &model.VesselStructure{
		Rooms: []model.RoomData{room(1, 10, 1, 1), room(2, 10, 0, 1)},
	}
	s.Rooms[1].LinkedRooms = []int{1}
	v := newTestVessel(t, 1, s)
	tick(t, v, 1, 0)

	crs := v.Manager().CompoundRooms()
	if len(crs) != 1 {
		t.Fatalf("one-sided link split rooms into %d compounds", len(crs))
	}
	if len(crs[0].Rooms) != 2 || crs[0].Volume() != 20 {
		t.Fatalf("compound rooms=%d volume=%v, want 2 rooms volume 20", len(crs[0].Rooms), crs[0].Volume())
	}
}

func TestCreateCompoundRooms_Idempotent(t *testing.T) {
	s := &model.VesselStructure{
		Rooms: []model.RoomData{room(1, 10, 1, 1), room(2, 10, 0.2, 0.9), room(3, 4, 0.6, 0.3), room(4, 8, 0.1, 0.1)},
		Doors: []model.DoorData{
			{InSceneID: 1, Room1: 1, Room2: 2, IsSealable: true, IsOpen: true, PassageArea: 1},
			{InSceneID: 2, Room1: 2, Room2: 3, IsSealable: true, IsOpen: false, PassageArea: 1},
			{InSceneID: 3, Room1: 3, Room2: 4, IsSealable: true, IsOpen: true, PassageArea: 1},
		},
	}
	v := newTestVessel(t, 1, s)
	rooms := v.Manager().Rooms()

	first := CreateCompoundRooms(rooms)
	partition := func(crs []*CompoundRoom) map[model.VesselObjectID]model.VesselObjectID {
		out := make(map[model.VesselObjectID]model.VesselObjectID)
		for _, cr := range crs {
			for _, r := range cr.Rooms {
				out[r.ID()] = cr.ID
			}
		}
		return out
	}
	p1 := partition(first)
	pressures := make(map[model.VesselObjectID]float64)
	for _, cr := range first {
		pressures[cr.ID] = cr.AirPressure()
	}

	second := CreateCompoundRooms(rooms)
	p2 := partition(second)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2 compounds twice, got %d and %d", len(first), len(second))
	}
	for id, cid := range p1 {
		if p2[id] != cid {
			t.Fatalf("room %s moved from %s to %s", id, cid, p2[id])
		}
	}
	for _, cr := range second {
		if !approxEqual(cr.AirPressure(), pressures[cr.ID], floatTol) {
			t.Fatalf("compound %s pressure changed: %v -> %v", cr.ID, pressures[cr.ID], cr.AirPressure())
		}
	}
	for _, r := range rooms {
		if r.CompoundRoom() == nil {
			t.Fatalf("room %s has no compound", r.ID())
		}
	}
}

func TestRoom_ClampsPressureAndQuality(t *testing.T) {
	v := newTestVessel(t, 1, &model.VesselStructure{Rooms: []model.RoomData{room(1, 10, 1, 1)}})
	r := v.Manager().Room(oid(1, 1))
	if r == nil {
		t.Fatalf("room not found")
	}
	r.SetAirPressure(math.NaN())
	if r.AirPressure() != 0 {
		t.Fatalf("NaN pressure stored as %v, want 0", r.AirPressure())
	}
	r.SetAirPressure(3)
	r.SetAirQuality(-1)
	if r.AirPressure() != 1 || r.AirQuality() != 0 {
		t.Fatalf("clamp failed: p=%v q=%v", r.AirPressure(), r.AirQuality())
	}
}
