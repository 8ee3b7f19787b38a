// Package biquad runs second-order IIR sections.
//
// A [Section] filters in Direct Form II Transposed with two delay
// registers as its only memory; a [Chain] runs sections in a fixed order.
// Coefficients come from dsp/filter/design. Block processing flushes
// denormal state so long stretches of silence stay cheap.
package biquad
