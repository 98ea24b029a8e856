package core

import (
	"math"

	"github.com/signalsfoundry/vessel-systems/model"
)

// Orifice flow constants: discharge coefficient, bar to pascal and the
// density of air in kg/m³.
const (
	dischargeCoefficient = 0.61
	pascalPerBar         = 100000.0
	airDensity           = 1.225
)

// AirFlowRate is the orifice-flow approximation of air escaping through a
// passage of area m² under pressureDelta bar, in m³ per second.
func AirFlowRate(area, pressureDelta float64) float64 {
	if area <= 0 || pressureDelta <= 0 {
		return 0
	}
	return dischargeCoefficient * area * math.Sqrt(2*pressureDelta*pascalPerBar/airDensity)
}

// Door joins two rooms, or a room and vacuum. External doors on a docking
// port pair with a door on the docked vessel.
type Door struct {
	id     model.VesselObjectID
	vessel *Vessel
	data   model.DoorData

	room1, room2 *Room
	isOpen       bool
	isLocked     bool

	port   *DockingPort
	paired *Door

	pressureDelta float64
	airFlow       float64
	equalizeTime  float64
	decompressing bool

	changed bool
}

// NewDoor instantiates a door; rooms are resolved by the caller.
func NewDoor(v *Vessel, data model.DoorData, room1, room2 *Room) *Door {
	d := &Door{
		id:       model.NewVesselObjectID(v.ID(), data.InSceneID),
		vessel:   v,
		data:     data,
		room1:    room1,
		room2:    room2,
		isOpen:   data.IsOpen,
		isLocked: data.IsLocked,
		changed:  true,
	}
	if room1 != nil {
		room1.doors = append(room1.doors, d)
	}
	if room2 != nil {
		room2.doors = append(room2.doors, d)
	}
	return d
}

func (d *Door) ID() model.VesselObjectID { return d.id }
func (d *Door) Room1() *Room             { return d.room1 }
func (d *Door) Room2() *Room             { return d.room2 }
func (d *Door) IsOpen() bool             { return d.isOpen }
func (d *Door) IsLocked() bool           { return d.isLocked }
func (d *Door) PairedDoor() *Door        { return d.paired }
func (d *Door) PassageArea() float64     { return d.data.PassageArea }

// IsSealed is true for a sealable door that is not open.
func (d *Door) IsSealed() bool { return d.data.IsSealable && !d.isOpen }

// IsExternal reports whether the door opens onto vacuum when unpaired.
func (d *Door) IsExternal() bool { return d.data.IsExternal || d.room2 == nil }

// SetOpen opens or closes the door. A locked door cannot be opened.
func (d *Door) SetOpen(open bool) bool {
	if open && d.isLocked {
		return false
	}
	d.setOpen(open)
	return true
}

func (d *Door) setOpen(open bool) {
	if open == d.isOpen {
		return
	}
	d.isOpen = open
	d.changed = true
	if d.data.IsSealable && d.vessel != nil && d.vessel.manager != nil {
		d.vessel.manager.MarkCompoundRoomsChanged()
	}
}

// SetLocked locks or unlocks the door.
func (d *Door) SetLocked(locked bool) {
	if locked != d.isLocked {
		d.isLocked = locked
		d.changed = true
	}
}

// separates reports whether the door blocks air between its sides.
func (d *Door) separates() bool {
	if d.paired != nil {
		return d.IsSealed() || d.paired.IsSealed()
	}
	return d.IsSealed()
}

// otherSide returns the room across the door from r, through the paired
// door when docked, or nil for vacuum.
func (d *Door) otherSide(r *Room) *Room {
	switch r {
	case d.room1:
		if d.room2 != nil {
			return d.room2
		}
		if d.paired != nil {
			return d.paired.room1
		}
	case d.room2:
		return d.room1
	}
	return nil
}

// leaking reports whether the door vents its room to space.
func (d *Door) leaking() bool {
	return d.IsExternal() && d.paired == nil && !d.IsSealed() && d.room1 != nil
}

// updateFlow recomputes the airflow projection from the rooms' current
// state.
func (d *Door) updateFlow() {
	var delta, flow, eqTime float64
	decompressing := false
	if d.room1 != nil {
		p1, v1 := d.room1.pressure, d.room1.compoundVolume()
		other := d.otherSide(d.room1)
		switch {
		case other != nil:
			p2, v2 := other.pressure, other.compoundVolume()
			delta = math.Abs(p1 - p2)
			if !d.separates() && delta > 0 {
				flow = AirFlowRate(d.data.PassageArea, delta)
				if flow > 0 && v1+v2 > 0 {
					eqTime = delta * v1 * v2 / (v1 + v2) / flow
				}
			}
		case d.IsExternal():
			delta = p1
			if !d.separates() && delta > 0 {
				flow = AirFlowRate(d.data.PassageArea, delta)
				if flow > 0 {
					eqTime = p1 * v1 / flow
				}
				decompressing = delta > d.vessel.Tuning().PressureEpsilon
			}
		}
	}
	if math.Abs(delta-d.pressureDelta) > reserveEpsilon || math.Abs(flow-d.airFlow) > reserveEpsilon ||
		decompressing != d.decompressing {
		d.changed = true
	}
	d.pressureDelta, d.airFlow, d.equalizeTime, d.decompressing = delta, flow, eqTime, decompressing
}

func (d *Door) Details() model.DoorDetails {
	det := model.DoorDetails{
		ID:                       d.id,
		IsOpen:                   d.isOpen,
		IsLocked:                 d.isLocked,
		IsSealed:                 d.IsSealed(),
		PressureDelta:            d.pressureDelta,
		AirFlowRate:              d.airFlow,
		PressureEquilizationTime: d.equalizeTime,
		Decompressing:            d.decompressing,
	}
	if d.paired != nil {
		id := d.paired.id
		det.PairedDoor = &id
	}
	return det
}

func (d *Door) Snapshot() model.DoorSnapshot {
	return model.DoorSnapshot{ID: d.id, IsOpen: d.isOpen, IsLocked: d.isLocked}
}

func (d *Door) Restore(snap model.DoorSnapshot) {
	d.setOpen(snap.IsOpen)
	d.isLocked = snap.IsLocked
	d.changed = true
}
