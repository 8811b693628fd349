package vmath

import (
	"math"
)

// Vec3F is a float64 3D vector for physics-heavy calculations
type Vec3F struct {
	X, Y, Z float64
}

func V3FAdd(a, b Vec3F) Vec3F {
	return Vec3F{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func V3FSub(a, b Vec3F) Vec3F {
	return Vec3F{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func V3FScale(v Vec3F, s float64) Vec3F {
	return Vec3F{v.X * s, v.Y * s, v.Z * s}
}

func V3FDot(a, b Vec3F) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// V3FCross returns a × b
func V3FCross(a, b Vec3F) Vec3F {
	return Vec3F{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func V3FMagSq(v Vec3F) float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func V3FMag(v Vec3F) float64 {
	return math.Sqrt(V3FMagSq(v))
}

// V3FDist returns Euclidean distance between a and b
func V3FDist(a, b Vec3F) float64 {
	return V3FMag(V3FSub(b, a))
}

// V3FLerp returns t*a + (1-t)*b
// Convex blend used by the integrator, t is the weight of a
func V3FLerp(a, b Vec3F, t float64) Vec3F {
	return Vec3F{
		t*a.X + (1-t)*b.X,
		t*a.Y + (1-t)*b.Y,
		t*a.Z + (1-t)*b.Z,
	}
}

// V3FClampEach clamps every component to [lo, hi], non-finite components become 0
func V3FClampEach(v Vec3F, lo, hi float64) Vec3F {
	return Vec3F{
		ClampFinite(v.X, lo, hi),
		ClampFinite(v.Y, lo, hi),
		ClampFinite(v.Z, lo, hi),
	}
}

// V3FArray returns the components as a fixed array for serialization
func V3FArray(v Vec3F) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Component returns the i-th component (0=X, 1=Y, 2=Z)
func (v Vec3F) Component(i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
