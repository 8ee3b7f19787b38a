package core

import "math"

// denormalFloor is the magnitude below which filter state is snapped to zero.
const denormalFloor = 1e-30

// FlushDenormals returns 0 for values too small to matter and x otherwise.
// Filters call it on their state so decaying tails do not hit the slow
// subnormal path.
func FlushDenormals(x float64) float64 {
	if x > -denormalFloor && x < denormalFloor {
		return 0
	}
	return x
}

// IsFinite reports whether x is neither NaN nor an infinity.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// FirstNonFinite returns the index of the first NaN or Inf sample in buf,
// or -1 when every sample is finite.
func FirstNonFinite(buf []float64) int {
	for i, x := range buf {
		if !IsFinite(x) {
			return i
		}
	}
	return -1
}
