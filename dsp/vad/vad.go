// Package vad reduces a spectrum frame to a vocal-band level and decides
// whether a voice is present.
//
// [Detect] is the baseline: the level is the mean normalized magnitude of
// the bins whose center frequency lies inside the band, and the decision is
// active exactly when that level is strictly above the sensitivity. A
// [Detector] adds optional hysteresis and hold time on top of it.
package vad

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
	"github.com/cwbudde/voicegate/dsp/spectrum"
)

const (
	MinSensitivity     = 0.05
	MaxSensitivity     = 0.5
	DefaultSensitivity = 0.1
)

// ErrSensitivity is returned for sensitivities outside [MinSensitivity, MaxSensitivity].
var ErrSensitivity = errors.New("vad: sensitivity out of range")

// ValidateSensitivity reports whether s is an accepted threshold.
func ValidateSensitivity(s float64) error {
	if math.IsNaN(s) || s < MinSensitivity || s > MaxSensitivity {
		return fmt.Errorf("%w: %v (want %v..%v)", ErrSensitivity, s, MinSensitivity, MaxSensitivity)
	}
	return nil
}

// Band is a frequency range in Hz, inclusive at both ends.
type Band struct {
	LowHz  float64
	HighHz float64
}

var (
	// SpeechBand is the telephone speech band.
	SpeechBand = Band{LowHz: 300, HighHz: 3400}
	// CoreBand is a narrower band around the speech formants.
	CoreBand = Band{LowHz: 500, HighHz: 2500}
)

// Validate checks that the band is non-empty and positive.
func (b Band) Validate() error {
	if !(b.LowHz >= 0 && b.HighHz > b.LowHz) || math.IsInf(b.HighHz, 0) {
		return fmt.Errorf("vad: invalid band %v..%v Hz", b.LowHz, b.HighHz)
	}
	return nil
}

func (b Band) String() string { return fmt.Sprintf("%g-%g Hz", b.LowHz, b.HighHz) }

// bins returns the half-open bin index range [lo, hi) covered by the band.
func (b Band) bins(f spectrum.Frame) (lo, hi int) {
	if f.BinWidth <= 0 || len(f.Bins) == 0 {
		return 0, 0
	}
	lo = int(math.Ceil(b.LowHz / f.BinWidth))
	hi = int(math.Floor(b.HighHz/f.BinWidth)) + 1
	lo = max(lo, 0)
	hi = min(hi, len(f.Bins))
	if lo >= hi {
		return 0, 0
	}
	return lo, hi
}

// Decision is the outcome of one detection.
type Decision struct {
	Level       float64 // mean normalized band level in [0, 1]
	Active      bool
	Sensitivity float64
}

// Level returns the mean of the frame bins inside band, or 0 when the band
// covers no bin.
func Level(f spectrum.Frame, band Band) float64 {
	lo, hi := band.bins(f)
	if lo == hi {
		return 0
	}
	level := vecmath.Sum(f.Bins[lo:hi]) / float64(hi-lo)
	return math.Max(0, math.Min(1, level))
}

// Detect computes the band level and compares it with sensitivity.
// Active == (Level > Sensitivity) always holds for the result.
func Detect(f spectrum.Frame, band Band, sensitivity float64) Decision {
	level := Level(f, band)
	return Decision{Level: level, Active: level > sensitivity, Sensitivity: sensitivity}
}
