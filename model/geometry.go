package model

import "math"

// ECEF is an Earth-Centered, Earth-Fixed position in metres.
type ECEF struct {
	X, Y, Z float64
}

// Sub returns p - other.
func (p ECEF) Sub(other ECEF) ECEF {
	return ECEF{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

// Norm returns the Euclidean norm of the position vector.
func (p ECEF) Norm() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// DistanceTo returns the straight-line distance between two points.
func (p ECEF) DistanceTo(other ECEF) float64 {
	return p.Sub(other).Norm()
}

// Dot returns the dot product of two position vectors.
func (p ECEF) Dot(other ECEF) float64 {
	return p.X*other.X + p.Y*other.Y + p.Z*other.Z
}
