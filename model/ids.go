package model

import "fmt"

// VesselObjectID is the composite key of every component: the owning
// vessel plus the in-scene identifier from the vessel's structure
// definition. It does not change when vessels dock or undock.
type VesselObjectID struct {
	VesselID  int64 `json:"vessel_id" yaml:"vessel_id"`
	InSceneID int   `json:"in_scene_id" yaml:"in_scene_id"`
}

// NewVesselObjectID builds an id for the given vessel and in-scene id.
func NewVesselObjectID(vesselID int64, inSceneID int) VesselObjectID {
	return VesselObjectID{VesselID: vesselID, InSceneID: inSceneID}
}

func (id VesselObjectID) String() string {
	return fmt.Sprintf("%d:%d", id.VesselID, id.InSceneID)
}

// Less orders ids by vessel, then in-scene id.
func (id VesselObjectID) Less(other VesselObjectID) bool {
	if id.VesselID != other.VesselID {
		return id.VesselID < other.VesselID
	}
	return id.InSceneID < other.InSceneID
}

// Compare returns -1, 0 or 1 following Less.
func (id VesselObjectID) Compare(other VesselObjectID) int {
	switch {
	case id.Less(other):
		return -1
	case other.Less(id):
		return 1
	default:
		return 0
	}
}

// ResourceRequirement is the per-resource consumption of a component, in
// units per second. Nominal applies while the component is working,
// Standby while it is powered but idle.
type ResourceRequirement struct {
	Resource ResourceType `json:"resource" yaml:"resource"`
	Nominal  float64      `json:"nominal" yaml:"nominal"`
	Standby  float64      `json:"standby" yaml:"standby"`
}

// Rate returns the standby or nominal rate.
func (r ResourceRequirement) Rate(standby bool) float64 {
	if standby {
		return r.Standby
	}
	return r.Nominal
}
