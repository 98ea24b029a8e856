package core

import (
	"fmt"
	"math"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/vessel-systems/model"
)

// sunRayKm is how far the shadow test looks along the sun direction.
const sunRayKm = 1e6

// MotionModel updates a vessel's position and sun exposure for a given
// simulation time.
type MotionModel interface {
	Update(simTime time.Time, v *model.VesselDefinition)
}

// StaticMotionModel leaves the position unchanged and reports a constant
// exposure.
type StaticMotionModel struct {
	Exposure float64
}

func (m *StaticMotionModel) Update(simTime time.Time, v *model.VesselDefinition) {
	v.SunExposure = clamp01(m.Exposure)
}

// OrbitalSGP4MotionModel uses a TLE and SGP4 to update position; exposure
// is 1 in sunlight and 0 in Earth's shadow.
type OrbitalSGP4MotionModel struct {
	sat satellite.Satellite
}

// NewOrbitalModelFromTLE constructs an orbital model from TLE lines.
func NewOrbitalModelFromTLE(line1, line2 string) *OrbitalSGP4MotionModel {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	return &OrbitalSGP4MotionModel{sat: sat}
}

// Update propagates the orbit to simTime. go-satellite works in
// kilometres; the registry stores metres.
func (m *OrbitalSGP4MotionModel) Update(simTime time.Time, v *model.VesselDefinition) {
	year, month, day := simTime.Date()
	hour, min, sec := simTime.Clock()

	posECI, _ := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)
	sunECEF := satellite.ECIToECEF(sunDirectionECI(jd), gmst)

	const kmToM = 1000.0
	v.Coordinates = model.Motion{
		X: posECEF.X * kmToM,
		Y: posECEF.Y * kmToM,
		Z: posECEF.Z * kmToM,
	}
	pos := Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
	sun := Vec3{X: sunECEF.X, Y: sunECEF.Y, Z: sunECEF.Z}
	v.SunExposure = SunExposureAt(pos, sun)
}

// SunExposureAt returns 1 when the sun is visible from pos (ECEF km) along
// the unit direction sunDir, and 0 when the Earth is in the way.
func SunExposureAt(pos, sunDir Vec3) float64 {
	if hasLineOfSight(pos, pos.Add(sunDir.Scale(sunRayKm))) {
		return 1
	}
	return 0
}

// sunDirectionECI is the low-precision solar position from the
// Astronomical Almanac, good to about 0.01 degrees.
func sunDirectionECI(jd float64) satellite.Vector3 {
	const deg = math.Pi / 180
	n := jd - 2451545.0
	l := 280.460 + 0.9856474*n
	g := (357.528 + 0.9856003*n) * deg
	lambda := (l + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)) * deg
	eps := (23.439 - 0.0000004*n) * deg
	return satellite.Vector3{
		X: math.Cos(lambda),
		Y: math.Cos(eps) * math.Sin(lambda),
		Z: math.Sin(eps) * math.Sin(lambda),
	}
}

// NewMotionModelFor chooses an appropriate MotionModel for the vessel.
func NewMotionModelFor(v *model.VesselDefinition) MotionModel {
	if v.MotionSource == model.MotionSourceTLE && v.TLE1 != "" && v.TLE2 != "" {
		return NewOrbitalModelFromTLE(v.TLE1, v.TLE2)
	}
	return &StaticMotionModel{Exposure: v.SunExposure}
}

// MotionUpdater receives propagated motion. kb.KnowledgeBase and
// SimulationEngine implement it.
type MotionUpdater interface {
	UpdateVesselMotion(id int64, pos model.Motion, sunExposure float64) error
}

// MotionRegistry propagates every registered vessel and pushes the
// results to a MotionUpdater.
type MotionRegistry struct {
	mu      sync.Mutex
	models  map[int64]MotionModel
	vessels map[int64]*model.VesselDefinition
	updater MotionUpdater
}

// NewMotionRegistry builds an empty registry writing to updater.
func NewMotionRegistry(updater MotionUpdater) *MotionRegistry {
	return &MotionRegistry{
		models:  make(map[int64]MotionModel),
		vessels: make(map[int64]*model.VesselDefinition),
		updater: updater,
	}
}

// AddVessel registers a vessel. The registry keeps its own copy.
func (r *MotionRegistry) AddVessel(v *model.VesselDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vessels[v.ID]; ok {
		return fmt.Errorf("%w: %d", ErrVesselExists, v.ID)
	}
	cp := v.Clone()
	r.vessels[v.ID] = cp
	r.models[v.ID] = NewMotionModelFor(cp)
	return nil
}

// RemoveVessel drops a vessel from propagation.
func (r *MotionRegistry) RemoveVessel(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.vessels[id]; !ok {
		return fmt.Errorf("%w: %d", ErrVesselNotFound, id)
	}
	delete(r.vessels, id)
	delete(r.models, id)
	return nil
}

// UpdatePositions propagates all vessels to simTime.
func (r *MotionRegistry) UpdatePositions(simTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.models {
		v := r.vessels[id]
		m.Update(simTime, v)
		if r.updater == nil {
			continue
		}
		if err := r.updater.UpdateVesselMotion(id, v.Coordinates, v.SunExposure); err != nil {
			return err
		}
	}
	return nil
}
