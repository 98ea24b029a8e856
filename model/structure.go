package model

import "slices"

// VesselStructure is the static definition of a vessel class: the layout
// of rooms, doors, machinery and storage looked up by in-scene id when a
// vessel is instantiated. Definitions are shared templates; components
// always work on a Clone.
type VesselStructure struct {
	Class        string                  `json:"class" yaml:"class"`
	Tags         []string                `json:"tags,omitempty" yaml:"tags,omitempty"`
	Rooms        []RoomData              `json:"rooms" yaml:"rooms"`
	Doors        []DoorData              `json:"doors,omitempty" yaml:"doors,omitempty"`
	Generators   []GeneratorData         `json:"generators,omitempty" yaml:"generators,omitempty"`
	SubSystems   []SubSystemData         `json:"subsystems,omitempty" yaml:"subsystems,omitempty"`
	Containers   []ResourceContainerData `json:"containers,omitempty" yaml:"containers,omitempty"`
	DockingPorts []DockingPortData       `json:"docking_ports,omitempty" yaml:"docking_ports,omitempty"`
}

// LocalPosition is a position in some local frame, in metres.
type LocalPosition struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

type RoomData struct {
	InSceneID         int     `json:"id" yaml:"id"`
	Name              string  `json:"name,omitempty" yaml:"name,omitempty"`
	Volume            float64 `json:"volume" yaml:"volume"`
	AirPressure       float64 `json:"air_pressure" yaml:"air_pressure"`
	AirQuality        float64 `json:"air_quality" yaml:"air_quality"`
	Temperature       float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	UseGravity        bool    `json:"use_gravity,omitempty" yaml:"use_gravity,omitempty"`
	AirFiltering      bool    `json:"air_filtering,omitempty" yaml:"air_filtering,omitempty"`
	PressurizeSpeed   float64 `json:"pressurize_speed,omitempty" yaml:"pressurize_speed,omitempty"`
	DepressurizeSpeed float64 `json:"depressurize_speed,omitempty" yaml:"depressurize_speed,omitempty"`
	VentSpeed         float64 `json:"vent_speed,omitempty" yaml:"vent_speed,omitempty"`
	// LinkedRooms are rooms joined by an open passage with no door.
	LinkedRooms []int `json:"linked_rooms,omitempty" yaml:"linked_rooms,omitempty"`
}

type DoorData struct {
	InSceneID   int     `json:"id" yaml:"id"`
	Room1       int     `json:"room1" yaml:"room1"`
	Room2       int     `json:"room2,omitempty" yaml:"room2,omitempty"` // 0 is vacuum
	IsSealable  bool    `json:"is_sealable" yaml:"is_sealable"`
	IsOpen      bool    `json:"is_open,omitempty" yaml:"is_open,omitempty"`
	IsLocked    bool    `json:"is_locked,omitempty" yaml:"is_locked,omitempty"`
	IsExternal  bool    `json:"is_external,omitempty" yaml:"is_external,omitempty"`
	PassageArea float64 `json:"passage_area" yaml:"passage_area"`
	// DockingPort and PortLocalPosition are set on external doors that
	// can pair with a door on another vessel.
	DockingPort       int           `json:"docking_port,omitempty" yaml:"docking_port,omitempty"`
	PortLocalPosition LocalPosition `json:"port_local_position,omitempty" yaml:"port_local_position,omitempty"`
}

type DockingPortData struct {
	InSceneID           int     `json:"id" yaml:"id"`
	Name                string  `json:"name,omitempty" yaml:"name,omitempty"`
	UnlockDoorsOnDock   bool    `json:"unlock_doors_on_dock,omitempty" yaml:"unlock_doors_on_dock,omitempty"`
	EnableGravityOnDock bool    `json:"enable_gravity_on_dock,omitempty" yaml:"enable_gravity_on_dock,omitempty"`
	PairingTolerance    float64 `json:"pairing_tolerance,omitempty" yaml:"pairing_tolerance,omitempty"`
}

// ComponentData is the part of the definition shared by generators and
// subsystems.
type ComponentData struct {
	InSceneID     int                     `json:"id" yaml:"id"`
	RoomID        int                     `json:"room,omitempty" yaml:"room,omitempty"`
	PowerUpTime   float64                 `json:"power_up_time,omitempty" yaml:"power_up_time,omitempty"`
	CoolDownTime  float64                 `json:"cool_down_time,omitempty" yaml:"cool_down_time,omitempty"`
	AutoRestart   bool                    `json:"auto_restart,omitempty" yaml:"auto_restart,omitempty"`
	StartOnline   bool                    `json:"start_online,omitempty" yaml:"start_online,omitempty"`
	OperationRate float64                 `json:"operation_rate,omitempty" yaml:"operation_rate,omitempty"`
	Requirements  []ResourceRequirement   `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Containers    []int                   `json:"containers,omitempty" yaml:"containers,omitempty"`
	Slots         []MachineryPartSlotData `json:"machinery_slots,omitempty" yaml:"machinery_slots,omitempty"`
}

type GeneratorData struct {
	ComponentData `yaml:",inline"`
	Type          GeneratorType  `json:"type" yaml:"type"`
	NominalOutput float64        `json:"nominal_output" yaml:"nominal_output"`
	Capacitor     *CapacitorData `json:"capacitor,omitempty" yaml:"capacitor,omitempty"`
	Solar         *SolarData     `json:"solar,omitempty" yaml:"solar,omitempty"`
	Scrubber      *ScrubberData  `json:"scrubber,omitempty" yaml:"scrubber,omitempty"`
}

type CapacitorData struct {
	Capacity   float64 `json:"capacity" yaml:"capacity"`
	Charge     float64 `json:"charge" yaml:"charge"`
	ChargeRate float64 `json:"charge_rate" yaml:"charge_rate"`
}

type SolarData struct {
	Efficiency float64 `json:"efficiency" yaml:"efficiency"`
}

type ScrubberData struct {
	// CartridgeConsumption is cartridge health lost per m³ of air scrubbed.
	CartridgeConsumption float64 `json:"cartridge_consumption" yaml:"cartridge_consumption"`
}

type SubSystemData struct {
	ComponentData `yaml:",inline"`
	Type          SubSystemType   `json:"type" yaml:"type"`
	AutoTune      bool            `json:"auto_tune,omitempty" yaml:"auto_tune,omitempty"`
	BasePower     *BasePowerData  `json:"base_power,omitempty" yaml:"base_power,omitempty"`
	Engine        *EngineData     `json:"engine,omitempty" yaml:"engine,omitempty"`
	RCS           *RCSData        `json:"rcs,omitempty" yaml:"rcs,omitempty"`
	FTL           *FTLData        `json:"ftl,omitempty" yaml:"ftl,omitempty"`
	Refinery      *RefineryData   `json:"refinery,omitempty" yaml:"refinery,omitempty"`
	Fabricator    *FabricatorData `json:"fabricator,omitempty" yaml:"fabricator,omitempty"`
	Radar         *RadarData      `json:"radar,omitempty" yaml:"radar,omitempty"`
}

type BasePowerData struct {
	Armor                 float64 `json:"armor" yaml:"armor"`
	OnlineDecayMultiplier float64 `json:"online_decay_multiplier" yaml:"online_decay_multiplier"`
}

type EngineData struct {
	Acceleration        float64 `json:"acceleration" yaml:"acceleration"`
	ReverseAcceleration float64 `json:"reverse_acceleration" yaml:"reverse_acceleration"`
}

type RCSData struct {
	Acceleration     float64 `json:"acceleration" yaml:"acceleration"`
	MaxOperationRate float64 `json:"max_operation_rate" yaml:"max_operation_rate"`
}

type FTLData struct {
	WarpSpeed float64 `json:"warp_speed" yaml:"warp_speed"`
}

// RefiningRecipe converts one unit of an ore into Ratio units of Resource.
type RefiningRecipe struct {
	Ore      string       `json:"ore" yaml:"ore"`
	Resource ResourceType `json:"resource" yaml:"resource"`
	Ratio    float64      `json:"ratio" yaml:"ratio"`
}

type RefineryData struct {
	ProcessingRate   float64            `json:"processing_rate" yaml:"processing_rate"`
	CargoCapacity    float64            `json:"cargo_capacity" yaml:"cargo_capacity"`
	Recipes          []RefiningRecipe   `json:"recipes" yaml:"recipes"`
	OutputContainers []int              `json:"output_containers" yaml:"output_containers"`
	Cargo            map[string]float64 `json:"cargo,omitempty" yaml:"cargo,omitempty"`
}

type FabricatorData struct {
	CargoCapacity float64            `json:"cargo_capacity" yaml:"cargo_capacity"`
	Cargo         map[string]float64 `json:"cargo,omitempty" yaml:"cargo,omitempty"`
}

type RadarData struct {
	ActiveScanRange  float64 `json:"active_scan_range" yaml:"active_scan_range"`
	PassiveScanRange float64 `json:"passive_scan_range" yaml:"passive_scan_range"`
}

type ResourceContainerData struct {
	InSceneID     int          `json:"id" yaml:"id"`
	Resource      ResourceType `json:"resource" yaml:"resource"`
	Capacity      float64      `json:"capacity" yaml:"capacity"`
	Quantity      float64      `json:"quantity" yaml:"quantity"`
	NominalInput  float64      `json:"nominal_input,omitempty" yaml:"nominal_input,omitempty"`
	NominalOutput float64      `json:"nominal_output,omitempty" yaml:"nominal_output,omitempty"`
	IsAirTank     bool         `json:"is_air_tank,omitempty" yaml:"is_air_tank,omitempty"`
	AirQuality    float64      `json:"air_quality,omitempty" yaml:"air_quality,omitempty"`
	// Owner is the in-scene id of the component this container is bound
	// to; 0 leaves it available to any compatible consumer.
	Owner int `json:"owner,omitempty" yaml:"owner,omitempty"`
}

type MachineryPartSlotData struct {
	SlotID   int                    `json:"slot" yaml:"slot"`
	Scope    MachineryPartSlotScope `json:"scope" yaml:"scope"`
	Required bool                   `json:"required,omitempty" yaml:"required,omitempty"`
	Allowed  []MachineryPartType    `json:"allowed,omitempty" yaml:"allowed,omitempty"`
	Part     *MachineryPartData     `json:"part,omitempty" yaml:"part,omitempty"`
}

type MachineryPartData struct {
	Type            MachineryPartType `json:"type" yaml:"type"`
	Tier            int               `json:"tier" yaml:"tier"`
	Health          float64           `json:"health" yaml:"health"`
	MaxHealth       float64           `json:"max_health" yaml:"max_health"`
	WearMultiplier  float64           `json:"wear_multiplier,omitempty" yaml:"wear_multiplier,omitempty"`
	TierMultipliers []float64         `json:"tier_multipliers,omitempty" yaml:"tier_multipliers,omitempty"`
}

// Clone returns a deep copy of the structure.
func (s *VesselStructure) Clone() *VesselStructure {
	if s == nil {
		return nil
	}
	out := &VesselStructure{
		Class:        s.Class,
		Tags:         slices.Clone(s.Tags),
		Rooms:        make([]RoomData, len(s.Rooms)),
		Doors:        slices.Clone(s.Doors),
		Generators:   make([]GeneratorData, len(s.Generators)),
		SubSystems:   make([]SubSystemData, len(s.SubSystems)),
		Containers:   slices.Clone(s.Containers),
		DockingPorts: slices.Clone(s.DockingPorts),
	}
	for i, r := range s.Rooms {
		out.Rooms[i] = r.Clone()
	}
	for i := range s.Generators {
		out.Generators[i] = s.Generators[i].Clone()
	}
	for i := range s.SubSystems {
		out.SubSystems[i] = s.SubSystems[i].Clone()
	}
	return out
}

func (r RoomData) Clone() RoomData {
	r.LinkedRooms = slices.Clone(r.LinkedRooms)
	return r
}

func (c ComponentData) Clone() ComponentData {
	c.Requirements = slices.Clone(c.Requirements)
	c.Containers = slices.Clone(c.Containers)
	if c.Slots != nil {
		slots := make([]MachineryPartSlotData, len(c.Slots))
		for i, s := range c.Slots {
			slots[i] = s.Clone()
		}
		c.Slots = slots
	}
	return c
}

func (g GeneratorData) Clone() GeneratorData {
	g.ComponentData = g.ComponentData.Clone()
	g.Capacitor = clonePtr(g.Capacitor)
	g.Solar = clonePtr(g.Solar)
	g.Scrubber = clonePtr(g.Scrubber)
	return g
}

func (s SubSystemData) Clone() SubSystemData {
	s.ComponentData = s.ComponentData.Clone()
	s.BasePower = clonePtr(s.BasePower)
	s.Engine = clonePtr(s.Engine)
	s.RCS = clonePtr(s.RCS)
	s.FTL = clonePtr(s.FTL)
	s.Radar = clonePtr(s.Radar)
	if s.Refinery != nil {
		r := *s.Refinery
		r.Recipes = slices.Clone(r.Recipes)
		r.OutputContainers = slices.Clone(r.OutputContainers)
		r.Cargo = cloneMap(r.Cargo)
		s.Refinery = &r
	}
	if s.Fabricator != nil {
		f := *s.Fabricator
		f.Cargo = cloneMap(f.Cargo)
		s.Fabricator = &f
	}
	return s
}

func (s MachineryPartSlotData) Clone() MachineryPartSlotData {
	s.Allowed = slices.Clone(s.Allowed)
	s.Part = s.Part.Clone()
	return s
}

func (p *MachineryPartData) Clone() *MachineryPartData {
	if p == nil {
		return nil
	}
	out := *p
	out.TierMultipliers = slices.Clone(p.TierMultipliers)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
