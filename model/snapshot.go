package model

import "time"

// FabricatorJob is one queued fabrication.
type FabricatorJob struct {
	Item     string  `json:"item"`
	Duration float64 `json:"duration"`
	TimeLeft float64 `json:"time_left"`
}

type CapacitorState struct {
	Charge float64 `json:"charge"`
}

type FabricatorState struct {
	Queue     []FabricatorJob    `json:"queue,omitempty"`
	Cargo     map[string]float64 `json:"cargo,omitempty"`
	Completed []string           `json:"completed,omitempty"`
}

type RefineryState struct {
	Cargo map[string]float64 `json:"cargo,omitempty"`
}

// ComponentSnapshot is the persisted state of a generator or subsystem.
// At most one of the auxiliary payloads is set, matching the component
// variant.
type ComponentSnapshot struct {
	ID              VesselObjectID  `json:"id"`
	Status          SystemStatus    `json:"status"`
	SecondaryStatus SecondaryStatus `json:"secondary_status"`
	StatusCountdown float64         `json:"status_countdown"`
	AutoReactivate  bool            `json:"auto_reactivate"`
	Defective       bool            `json:"defective"`
	OperationRate   float64         `json:"operation_rate"`

	// MachineryPartSlots maps slot id to the fitted part; nil for empty.
	MachineryPartSlots map[int]*MachineryPartData `json:"machinery_part_slots,omitempty"`

	Capacitor  *CapacitorState  `json:"capacitor,omitempty"`
	Fabricator *FabricatorState `json:"fabricator,omitempty"`
	Refinery   *RefineryState   `json:"refinery,omitempty"`
}

type RoomSnapshot struct {
	ID           VesselObjectID `json:"id"`
	AirPressure  float64        `json:"air_pressure"`
	AirQuality   float64        `json:"air_quality"`
	Temperature  float64        `json:"temperature"`
	UseGravity   bool           `json:"use_gravity"`
	AirFiltering bool           `json:"air_filtering"`
}

type DoorSnapshot struct {
	ID       VesselObjectID `json:"id"`
	IsOpen   bool           `json:"is_open"`
	IsLocked bool           `json:"is_locked"`
}

type ContainerSnapshot struct {
	ID         VesselObjectID `json:"id"`
	Quantity   float64        `json:"quantity"`
	AirQuality float64        `json:"air_quality,omitempty"`
}

// VesselSnapshot is the flattened state of one vessel's components.
type VesselSnapshot struct {
	VesselID   int64               `json:"vessel_id"`
	Class      string              `json:"class"`
	Tick       uint64              `json:"tick"`
	SavedAt    time.Time           `json:"saved_at"`
	Rooms      []RoomSnapshot      `json:"rooms"`
	Doors      []DoorSnapshot      `json:"doors"`
	Generators []ComponentSnapshot `json:"generators"`
	SubSystems []ComponentSnapshot `json:"subsystems"`
	Containers []ContainerSnapshot `json:"containers"`
}
