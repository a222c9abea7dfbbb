package model

import (
	"math"
	"testing"
)

func TestECEFOperations(t *testing.T) {
	a := ECEF{X: 3, Y: 4, Z: 0}
	b := ECEF{X: 0, Y: 4, Z: 12}

	if got := a.Norm(); got != 5 {
		t.Fatalf("Norm = %v, want 5", got)
	}
	if got := a.Sub(b); got != (ECEF{X: 3, Y: 0, Z: -12}) {
		t.Fatalf("Sub = %+v", got)
	}
	if got := a.DistanceTo(b); math.Abs(got-math.Sqrt(153)) > 1e-12 {
		t.Fatalf("DistanceTo = %v", got)
	}
	if got := a.Dot(b); got != 16 {
		t.Fatalf("Dot = %v, want 16", got)
	}
	if got := a.DistanceTo(a); got != 0 {
		t.Fatalf("distance to self = %v", got)
	}
}
