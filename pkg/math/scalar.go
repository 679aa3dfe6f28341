// Package math provides the small vector types used by the terrain engine.
package math

// Lerp interpolates between a (t=0) and b (t=1).
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
