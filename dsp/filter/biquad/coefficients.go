package biquad

import (
	"math"

	"github.com/cwbudde/voicegate/dsp/core"
)

// Coefficients of one normalized section (a0 = 1):
//
//	H(z) = (B0 + B1 z^-1 + B2 z^-2) / (1 + A1 z^-1 + A2 z^-2)
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Finite reports whether every coefficient is finite.
func (c Coefficients) Finite() bool {
	return core.IsFinite(c.B0) && core.IsFinite(c.B1) && core.IsFinite(c.B2) &&
		core.IsFinite(c.A1) && core.IsFinite(c.A2)
}

// Stable reports whether both poles lie strictly inside the unit circle,
// using the stability triangle |A2| < 1, |A1| < 1 + A2.
func (c Coefficients) Stable() bool {
	return c.Finite() && math.Abs(c.A2) < 1 && math.Abs(c.A1) < 1+c.A2
}

// MagnitudeSquared returns |H|^2 at freqHz.
func (c Coefficients) MagnitudeSquared(freqHz, sampleRate float64) float64 {
	w := 2 * math.Pi * freqHz / sampleRate
	cos1, cos2 := math.Cos(w), math.Cos(2*w)

	num := c.B0*c.B0 + c.B1*c.B1 + c.B2*c.B2 +
		2*(c.B0*c.B1+c.B1*c.B2)*cos1 + 2*c.B0*c.B2*cos2
	den := 1 + c.A1*c.A1 + c.A2*c.A2 +
		2*(c.A1+c.A1*c.A2)*cos1 + 2*c.A2*cos2
	return num / den
}

// MagnitudeDB returns the response at freqHz in dB.
func (c Coefficients) MagnitudeDB(freqHz, sampleRate float64) float64 {
	return 10 * math.Log10(c.MagnitudeSquared(freqHz, sampleRate))
}
