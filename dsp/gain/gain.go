// Package gain maps the user volume and mute state to a bounded output
// gain.
//
// The effective gain is volume*safetyFactor, zero when muted. The safety
// factor depends on the pipeline shape and keeps the loudest setting below
// the raw volume so that speaker-to-microphone coupling has headroom
// before it turns into howl-round.
package gain

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"
)

const (
	MinVolume     = 0.0
	MaxVolume     = 2.0
	DefaultVolume = 1.0

	// SafetyQuality is the factor of the full filter chain.
	SafetyQuality = 0.7
	// SafetyLowLatency is the factor of the single-bandpass chain.
	SafetyLowLatency = 0.8
)

var (
	ErrVolume       = errors.New("gain: volume out of range")
	ErrSafetyFactor = errors.New("gain: safety factor out of range")
)

// ValidateVolume reports whether v lies in [MinVolume, MaxVolume].
func ValidateVolume(v float64) error {
	if math.IsNaN(v) || v < MinVolume || v > MaxVolume {
		return fmt.Errorf("%w: %v (want %v..%v)", ErrVolume, v, MinVolume, MaxVolume)
	}
	return nil
}

// Profile is the user-facing gain state.
type Profile struct {
	UserVolume   float64
	Muted        bool
	SafetyFactor float64
}

// Validate checks volume and safety factor ranges.
func (p Profile) Validate() error {
	if err := ValidateVolume(p.UserVolume); err != nil {
		return err
	}
	if math.IsNaN(p.SafetyFactor) || p.SafetyFactor <= 0 || p.SafetyFactor > 1 {
		return fmt.Errorf("%w: %v (want 0 < f <= 1)", ErrSafetyFactor, p.SafetyFactor)
	}
	return nil
}

// Ceiling returns the largest gain the profile can produce.
func (p Profile) Ceiling() float64 { return MaxVolume * p.SafetyFactor }

// EffectiveGain returns 0 when muted and volume*safetyFactor otherwise,
// limited to [0, Ceiling].
func EffectiveGain(p Profile) float64 {
	if p.Muted || math.IsNaN(p.UserVolume) || math.IsNaN(p.SafetyFactor) {
		return 0
	}
	g := p.UserVolume * p.SafetyFactor
	return math.Max(0, math.Min(g, p.Ceiling()))
}

// Governor owns a Profile and publishes its effective gain to the audio
// goroutine. Setters may be called from any goroutine; Gain and
// ProcessBlock never block.
type Governor struct {
	mu      sync.Mutex
	profile Profile

	gain atomic.Uint64 // float64 bits
}

// NewGovernor validates p and returns a governor for it.
func NewGovernor(p Profile) (*Governor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	g := &Governor{profile: p}
	g.publish()
	return g, nil
}

// Profile returns the current profile.
func (g *Governor) Profile() Profile {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.profile
}

// SetVolume updates the user volume. Out-of-range values are rejected and
// leave the profile unchanged. The muted flag is kept, so unmuting
// restores the remembered volume.
func (g *Governor) SetVolume(v float64) error {
	if err := ValidateVolume(v); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profile.UserVolume = v
	g.publish()
	return nil
}

// SetMuted updates the mute flag.
func (g *Governor) SetMuted(m bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.profile.Muted = m
	g.publish()
}

// Gain returns the published effective gain.
func (g *Governor) Gain() float64 {
	return math.Float64frombits(g.gain.Load())
}

// ProcessBlock scales buf in place by the published gain.
func (g *Governor) ProcessBlock(buf []float64) {
	switch k := g.Gain(); k {
	case 1:
	case 0:
		clear(buf)
	default:
		vecmath.ScaleBlockInPlace(buf, k)
	}
}

func (g *Governor) publish() {
	g.gain.Store(math.Float64bits(EffectiveGain(g.profile)))
}
