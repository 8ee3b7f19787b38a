// Package design derives biquad coefficients from filter type, corner
// frequency and Q using the RBJ audio-EQ cookbook equations.
//
// The plain designers (Lowpass, Highpass, Bandpass, Notch) return zero
// coefficients for unusable input. [Design] is the validating entry point
// used when a filter bank is built: out-of-range configuration is reported
// as an error and never clamped.
package design
