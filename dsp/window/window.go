// Package window provides the cosine-sum windows used by the spectrum
// analyzer.
package window

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Type selects a window shape.
type Type int

const (
	TypeRectangular Type = iota
	TypeHann
	TypeBlackman
)

var errZeroSum = errors.New("window: coefficients sum to zero")

// Metadata holds the spectral properties of a window shape.
type Metadata struct {
	Name            string
	ENBW            float64 // equivalent noise bandwidth in bins
	HighestSidelobe float64 // dB
	CoherentGain    float64
}

// shape is a cosine sum a0 - a1 cos(2πx) + a2 cos(4πx).
type shape struct {
	Metadata
	terms [3]float64
}

var shapes = map[Type]shape{
	TypeRectangular: {Metadata{"Rectangular", 1, -13.3, 1}, [3]float64{1, 0, 0}},
	TypeHann:        {Metadata{"Hann", 1.5, -31.5, 0.5}, [3]float64{0.5, 0.5, 0}},
	TypeBlackman:    {Metadata{"Blackman", 1.73, -58.1, 0.42}, [3]float64{0.42, 0.5, 0.08}},
}

func (t Type) String() string {
	if s, ok := shapes[t]; ok {
		return s.Name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Info returns the metadata of t. Unknown types yield the zero value.
func Info(t Type) Metadata { return shapes[t].Metadata }

// Option configures Generate.
type Option func(*bool)

// WithPeriodic generates the periodic form used for FFT framing: the
// window repeats every length samples instead of ending on a zero.
func WithPeriodic() Option {
	return func(periodic *bool) { *periodic = true }
}

// Generate returns length window coefficients. Unknown types are treated as
// rectangular.
func Generate(t Type, length int, opts ...Option) []float64 {
	if length <= 0 {
		return nil
	}
	var periodic bool
	for _, opt := range opts {
		opt(&periodic)
	}

	terms := shapes[TypeRectangular].terms
	if s, ok := shapes[t]; ok {
		terms = s.terms
	}

	span := float64(length - 1)
	if periodic || length == 1 {
		span = float64(length)
	}

	out := make([]float64, length)
	for n := range out {
		phase := 2 * math.Pi * float64(n) / span
		out[n] = terms[0] - terms[1]*math.Cos(phase) + terms[2]*math.Cos(2*phase)
	}
	return out
}

// CoherentGain returns the mean coefficient: the amplitude a windowed
// sinusoid keeps at its bin center.
func CoherentGain(w []float64) (float64, error) {
	sum := vecmath.Sum(w)
	if sum == 0 {
		return 0, errZeroSum
	}
	return sum / float64(len(w)), nil
}

// EquivalentNoiseBandwidth returns the noise bandwidth of w in bins.
func EquivalentNoiseBandwidth(w []float64) (float64, error) {
	sum := vecmath.Sum(w)
	if sum == 0 {
		return 0, errZeroSum
	}
	return float64(len(w)) * vecmath.DotProduct(w, w) / (sum * sum), nil
}
