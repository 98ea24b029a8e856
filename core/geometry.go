package core

import "math"

// EarthRadiusKm is the mean Earth radius used for shadow tests (kilometres).
const EarthRadiusKm = 6371.0

// Vec3 is a cartesian vector. Orbit code uses ECEF kilometres; docking
// code uses port-local metres.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// MirrorX flips the X axis. Two docking ports face each other, so a door
// on the left of one port lines up with a door on the right of the other.
func (v Vec3) MirrorX() Vec3 {
	return Vec3{X: -v.X, Y: v.Y, Z: v.Z}
}

// hasLineOfSight checks whether the straight segment between p1 and p2
// intersects the Earth sphere. If it does, the Earth blocks the line-of-sight
// and the function returns false.
//
// All positions are ECEF in kilometres.
func hasLineOfSight(p1, p2 Vec3) bool {
	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		return p1.Dot(p1) > EarthRadiusKm*EarthRadiusKm
	}

	// t* minimises |p1 + t v|^2 over the segment.
	t := -p1.Dot(v) / a
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := p1.Add(v.Scale(t))
	return closest.Dot(closest) > EarthRadiusKm*EarthRadiusKm
}
