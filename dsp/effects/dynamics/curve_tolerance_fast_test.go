//go:build fastmath

package dynamics

// curveToleranceDB bounds static-curve errors with the approximated
// log2/exp2, which are off by up to about 1e-4 dB.
const curveToleranceDB = 1e-3
