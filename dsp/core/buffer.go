package core

// Float32To64 converts device samples into the float64 processing domain.
// Both slices must have the same length.
func Float32To64(dst []float64, src []float32) {
	if len(src) == 0 {
		return
	}
	_ = dst[len(src)-1]
	for i, x := range src {
		dst[i] = float64(x)
	}
}

// Float64To32 converts processed samples back to device samples, clipping
// to [-1, 1].
func Float64To32(dst []float32, src []float64) {
	if len(src) == 0 {
		return
	}
	_ = dst[len(src)-1]
	for i, x := range src {
		switch {
		case x > 1:
			x = 1
		case x < -1:
			x = -1
		}
		dst[i] = float32(x)
	}
}
