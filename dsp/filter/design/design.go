package design

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/voicegate/dsp/filter/biquad"
)

// MaxQ is the largest quality factor accepted by [Design].
const MaxQ = 30.0

// DefaultQ is the Butterworth quality factor 1/sqrt(2).
const DefaultQ = 1 / math.Sqrt2

var (
	// ErrInvalidSampleRate is returned for non-positive or non-finite sample rates.
	ErrInvalidSampleRate = errors.New("design: invalid sample rate")
	// ErrInvalidFrequency is returned for corner frequencies outside (0, Nyquist).
	ErrInvalidFrequency = errors.New("design: frequency out of range")
	// ErrInvalidQ is returned for Q outside (0, MaxQ].
	ErrInvalidQ = errors.New("design: Q out of range")
	// ErrUnknownKind is returned for an unsupported filter kind.
	ErrUnknownKind = errors.New("design: unknown filter kind")
)

// Kind selects the biquad response type.
type Kind int

const (
	KindHighpass Kind = iota
	KindLowpass
	KindBandpass
	KindNotch
)

var kindNames = [...]string{"highpass", "lowpass", "bandpass", "notch"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a case-insensitive name ("highpass", "hp", ...) to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "highpass", "hp":
		return KindHighpass, nil
	case "lowpass", "lp":
		return KindLowpass, nil
	case "bandpass", "bp":
		return KindBandpass, nil
	case "notch":
		return KindNotch, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Design validates its arguments and returns the cookbook coefficients for
// kind. The result is always stable for accepted input.
func Design(kind Kind, freq, q, sampleRate float64) (biquad.Coefficients, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return biquad.Coefficients{}, fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	if _, ok := normalizedW0(freq, sampleRate); !ok {
		return biquad.Coefficients{}, fmt.Errorf("%w: %v Hz (nyquist %v Hz)", ErrInvalidFrequency, freq, sampleRate/2)
	}
	if !(q > 0 && q <= MaxQ) {
		return biquad.Coefficients{}, fmt.Errorf("%w: %v (want 0 < q <= %v)", ErrInvalidQ, q, MaxQ)
	}

	var c biquad.Coefficients
	switch kind {
	case KindHighpass:
		c = Highpass(freq, q, sampleRate)
	case KindLowpass:
		c = Lowpass(freq, q, sampleRate)
	case KindBandpass:
		c = Bandpass(freq, q, sampleRate)
	case KindNotch:
		c = Notch(freq, q, sampleRate)
	default:
		return biquad.Coefficients{}, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	return c, nil
}

// Lowpass designs a lowpass biquad at freq (Hz) with quality factor q.
func Lowpass(freq, q, sampleRate float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * normalizedQ(q))

	b1 := 1 - cw
	b0 := b1 / 2

	return normalizeBiquad(b0, b1, b0, 1+alpha, -2*cw, 1-alpha)
}

// Highpass designs a highpass biquad at freq (Hz) with quality factor q.
func Highpass(freq, q, sampleRate float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * normalizedQ(q))

	b0 := (1 + cw) / 2
	b1 := -(1 + cw)

	return normalizeBiquad(b0, b1, b0, 1+alpha, -2*cw, 1-alpha)
}

// Bandpass designs a bandpass biquad with 0 dB gain at the center
// frequency.
func Bandpass(freq, q, sampleRate float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * normalizedQ(q))

	return normalizeBiquad(alpha, 0, -alpha, 1+alpha, -2*cw, 1-alpha)
}

// Notch designs a notch biquad centered at freq (Hz).
func Notch(freq, q, sampleRate float64) biquad.Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return biquad.Coefficients{}
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * normalizedQ(q))

	return normalizeBiquad(1, -2*cw, 1, 1+alpha, -2*cw, 1-alpha)
}

func normalizedW0(freq, sampleRate float64) (float64, bool) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return 0, false
	}

	nyquist := sampleRate / 2
	if freq <= 0 || freq >= nyquist || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, false
	}

	return 2 * math.Pi * freq / sampleRate, true
}

func normalizedQ(q float64) float64 {
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return DefaultQ
	}

	return q
}

func normalizeBiquad(b0, b1, b2, a0, a1, a2 float64) biquad.Coefficients {
	if a0 == 0 || math.IsNaN(a0) || math.IsInf(a0, 0) {
		return biquad.Coefficients{}
	}

	return biquad.Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}
