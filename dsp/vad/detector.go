package vad

import (
	"fmt"

	"github.com/cwbudde/voicegate/dsp/spectrum"
)

// Option configures a Detector.
type Option func(*Detector)

// WithHysteresis keeps an active decision active until the level drops to
// sensitivity-h or below. Zero disables hysteresis.
func WithHysteresis(h float64) Option {
	return func(d *Detector) {
		if h >= 0 {
			d.hysteresis = h
		}
	}
}

// WithHold keeps the decision active for n further ticks after the level
// falls below the release point.
func WithHold(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.hold = n
		}
	}
}

// Detector is a stateful VAD. Without options it behaves exactly like
// Detect and may flip on every tick.
type Detector struct {
	band       Band
	hysteresis float64
	hold       int

	active    bool
	remaining int
}

// NewDetector returns a detector for band.
func NewDetector(band Band, opts ...Option) (*Detector, error) {
	if err := band.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{band: band}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Band returns the detection band.
func (d *Detector) Band() Band { return d.band }

// Stateless reports whether the detector has neither hysteresis nor hold.
func (d *Detector) Stateless() bool { return d.hysteresis == 0 && d.hold == 0 }

// Decide evaluates one frame.
func (d *Detector) Decide(f spectrum.Frame, sensitivity float64) Decision {
	dec := Detect(f, d.band, sensitivity)
	if d.Stateless() {
		d.active = dec.Active
		return dec
	}

	switch {
	case dec.Active:
		d.active = true
		d.remaining = d.hold
	case d.active && d.hysteresis > 0 && dec.Level > sensitivity-d.hysteresis:
		d.remaining = d.hold
	case d.remaining > 0:
		d.remaining--
	default:
		d.active = false
	}
	dec.Active = d.active
	return dec
}

// Reset returns the detector to the inactive state.
func (d *Detector) Reset() {
	d.active = false
	d.remaining = 0
}

func (d *Detector) String() string {
	return fmt.Sprintf("vad(%v hysteresis=%g hold=%d)", d.band, d.hysteresis, d.hold)
}
