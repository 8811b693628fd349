package vmath

import (
	"math"
)

const TwoPi = 2 * math.Pi

// IsFinite reports whether f is neither NaN nor ±Inf
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Clamp limits f to [lo, hi]
func Clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// ClampFinite clamps f to [lo, hi], returning 0 for NaN or ±Inf
func ClampFinite(f, lo, hi float64) float64 {
	if !IsFinite(f) {
		return 0
	}
	return Clamp(f, lo, hi)
}

// WrapAngle maps theta into [0, 2π), non-finite input maps to 0
func WrapAngle(theta float64) float64 {
	if !IsFinite(theta) {
		return 0
	}
	theta = math.Mod(theta, TwoPi)
	if theta < 0 {
		theta += TwoPi
	}
	// Tiny negatives round up to exactly 2π after the add
	if theta >= TwoPi {
		theta = 0
	}
	return theta
}
