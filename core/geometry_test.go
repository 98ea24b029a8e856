package core

import "testing"

func TestHasLineOfSight_NoObstruction(t *testing.T) {
	// Segment stays at x ≈ 8000 km, well outside Earth.
	posA := Vec3{X: 8000, Y: 0, Z: 0}
	posB := Vec3{X: 8000, Y: 1000, Z: 0}

	if !hasLineOfSight(posA, posB) {
		t.Errorf("expected LoS between two points on same side of Earth")
	}
}

func TestHasLineOfSight_Obstructed(t *testing.T) {
	posA := Vec3{X: 7000, Y: 0, Z: 0}
	posB := Vec3{X: -7000, Y: 0, Z: 0}

	if hasLineOfSight(posA, posB) {
		t.Errorf("expected LoS to be blocked by Earth")
	}
}

func TestVec3_MirrorAndDistance(t *testing.T) {
	a := Vec3{X: 1.5, Y: 2, Z: 0}
	b := Vec3{X: -1.5, Y: 2, Z: 0}
	if d := a.MirrorX().DistanceTo(b); d != 0 {
		t.Fatalf("mirrored distance = %v, want 0", d)
	}
	if d := a.DistanceTo(b); d != 3 {
		t.Fatalf("distance = %v, want 3", d)
	}
}
