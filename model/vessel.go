package model

// MotionSource indicates how a vessel's position and sun exposure are
// determined.
type MotionSource int

const (
	MotionSourceStatic MotionSource = iota // fixed position, constant exposure
	MotionSourceTLE                        // SGP4 propagation from a TLE pair
)

// Motion represents a position in ECEF metres.
type Motion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// DockingLink records that a vessel is docked under a parent vessel.
type DockingLink struct {
	ParentID   int64 `json:"parent_id"`
	ParentPort int   `json:"parent_port"`
	ChildPort  int   `json:"child_port"`
}

// VesselDefinition is the registry record of a spawned vessel. The
// structure itself lives in the catalog under Class; this record carries
// identity, orbit and docking relations.
type VesselDefinition struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Class string `json:"class"`

	Coordinates  Motion       `json:"coordinates"`
	MotionSource MotionSource `json:"motion_source,omitempty"`
	TLE1         string       `json:"tle1,omitempty"`
	TLE2         string       `json:"tle2,omitempty"`

	// SunExposure is the fraction of sunlight reaching the hull, in [0,1].
	SunExposure float64 `json:"sun_exposure"`

	DockedTo *DockingLink `json:"docked_to,omitempty"`
}

// Clone returns a copy safe to hand out of the registry.
func (v *VesselDefinition) Clone() *VesselDefinition {
	if v == nil {
		return nil
	}
	out := *v
	out.DockedTo = clonePtr(v.DockedTo)
	return &out
}
