package biquad

import "github.com/cwbudde/voicegate/dsp/core"

// Section is one biquad with its delay registers.
type Section struct {
	Coefficients

	z1, z2 float64
}

// NewSection returns a section with zero state.
func NewSection(c Coefficients) *Section {
	return &Section{Coefficients: c}
}

// ProcessSample filters one sample.
func (s *Section) ProcessSample(x float64) float64 {
	y := s.B0*x + s.z1
	s.z1 = s.B1*x - s.A1*y + s.z2
	s.z2 = s.B2*x - s.A2*y
	return y
}

// ProcessBlock filters buf in place. It does not allocate.
func (s *Section) ProcessBlock(buf []float64) {
	c := s.Coefficients
	z1, z2 := s.z1, s.z2
	for i, x := range buf {
		y := c.B0*x + z1
		z1 = c.B1*x - c.A1*y + z2
		z2 = c.B2*x - c.A2*y
		buf[i] = y
	}
	s.z1, s.z2 = core.FlushDenormals(z1), core.FlushDenormals(z2)
}

// Reset zeroes the delay registers.
func (s *Section) Reset() { s.z1, s.z2 = 0, 0 }

// State returns the delay registers.
func (s *Section) State() [2]float64 { return [2]float64{s.z1, s.z2} }
