//go:build !fastmath

package dynamics

// curveToleranceDB bounds static-curve errors with exact log2/exp2.
const curveToleranceDB = 1e-6
