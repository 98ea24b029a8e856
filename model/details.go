package model

// Details are the outbound projections handed to the network layer. Each
// is a flat, JSON-friendly copy of the live component state.

type RoomDetails struct {
	ID                   VesselObjectID  `json:"id"`
	CompoundRoomID       VesselObjectID  `json:"compound_room_id"`
	AirPressure          float64         `json:"air_pressure"`
	AirQuality           float64         `json:"air_quality"`
	Temperature          float64         `json:"temperature"`
	UseGravity           bool            `json:"use_gravity"`
	AirFiltering         bool            `json:"air_filtering"`
	Fire                 bool            `json:"fire"`
	Breach               bool            `json:"breach"`
	FireCanBurn          bool            `json:"fire_can_burn"`
	TargetPressure       *float64        `json:"target_pressure,omitempty"`
	EquilizePressureRoom *VesselObjectID `json:"equilize_pressure_room,omitempty"`
	Venting              bool            `json:"venting"`
}

type DoorDetails struct {
	ID                       VesselObjectID  `json:"id"`
	IsOpen                   bool            `json:"is_open"`
	IsLocked                 bool            `json:"is_locked"`
	IsSealed                 bool            `json:"is_sealed"`
	PairedDoor               *VesselObjectID `json:"paired_door,omitempty"`
	PressureDelta            float64         `json:"pressure_delta"`
	AirFlowRate              float64         `json:"air_flow_rate"`
	PressureEquilizationTime float64         `json:"pressure_equilization_time"`
	Decompressing            bool            `json:"decompressing"`
}

type GeneratorDetails struct {
	ID               VesselObjectID  `json:"id"`
	Type             GeneratorType   `json:"type"`
	Status           SystemStatus    `json:"status"`
	SecondaryStatus  SecondaryStatus `json:"secondary_status"`
	AutoReactivate   bool            `json:"auto_reactivate"`
	OperationRate    float64         `json:"operation_rate"`
	Output           float64         `json:"output"`
	MaxOutput        float64         `json:"max_output"`
	InputFactor      float64         `json:"input_factor"`
	PowerInputFactor float64         `json:"power_input_factor"`
	Capacity         float64         `json:"capacity,omitempty"`
	Charge           float64         `json:"charge,omitempty"`
}

type SubSystemDetails struct {
	ID              VesselObjectID  `json:"id"`
	Type            SubSystemType   `json:"type"`
	Status          SystemStatus    `json:"status"`
	SecondaryStatus SecondaryStatus `json:"secondary_status"`
	AutoReactivate  bool            `json:"auto_reactivate"`
	OperationRate   float64         `json:"operation_rate"`
	// Effect is the type-specific headline value: thrust for engines and
	// RCS, scan range for radar, armor for the base power system.
	Effect    float64            `json:"effect,omitempty"`
	Active    bool               `json:"active"`
	Cargo     map[string]float64 `json:"cargo,omitempty"`
	Queue     []FabricatorJob    `json:"queue,omitempty"`
	Completed []string           `json:"completed,omitempty"`
}

type ResourceContainerDetails struct {
	ID         VesselObjectID `json:"id"`
	Resource   ResourceType   `json:"resource"`
	Quantity   float64        `json:"quantity"`
	Capacity   float64        `json:"capacity"`
	Output     float64        `json:"output"`
	Input      float64        `json:"input"`
	AirQuality float64        `json:"air_quality,omitempty"`
}

type MachineryPartDetails struct {
	Component VesselObjectID    `json:"component"`
	SlotID    int               `json:"slot"`
	Type      MachineryPartType `json:"type"`
	Tier      int               `json:"tier"`
	Health    float64           `json:"health"`
	MaxHealth float64           `json:"max_health"`
}

// VesselDetails bundles every projection of one update.
type VesselDetails struct {
	Rooms          []RoomDetails              `json:"rooms,omitempty"`
	Doors          []DoorDetails              `json:"doors,omitempty"`
	Generators     []GeneratorDetails         `json:"generators,omitempty"`
	SubSystems     []SubSystemDetails         `json:"subsystems,omitempty"`
	Containers     []ResourceContainerDetails `json:"containers,omitempty"`
	MachineryParts []MachineryPartDetails     `json:"machinery_parts,omitempty"`
}

// Empty reports whether there is nothing to send.
func (d VesselDetails) Empty() bool {
	return len(d.Rooms) == 0 && len(d.Doors) == 0 && len(d.Generators) == 0 &&
		len(d.SubSystems) == 0 && len(d.Containers) == 0 && len(d.MachineryParts) == 0
}
