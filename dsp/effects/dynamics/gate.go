package dynamics

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"
)

// GateMode selects how the gate moves between gains.
type GateMode int

const (
	// GateHard applies the target gain to the whole block at once.
	GateHard GateMode = iota
	// GateSmooth ramps linearly towards the target over the ramp time.
	GateSmooth
)

// DefaultGateRampMs is the ramp time used by GateSmooth.
const DefaultGateRampMs = 5.0

const maxGateRampMs = 100.0

func (m GateMode) String() string {
	switch m {
	case GateHard:
		return "hard"
	case GateSmooth:
		return "smooth"
	}
	return fmt.Sprintf("GateMode(%d)", int(m))
}

// ParseGateMode accepts "hard" and "smooth".
func ParseGateMode(s string) (GateMode, error) {
	switch s {
	case "hard", "":
		return GateHard, nil
	case "smooth":
		return GateSmooth, nil
	}
	return 0, fmt.Errorf("unknown gate mode %q", s)
}

// Gate is a noise gate driven by an external decision.
//
// SetTarget is called from the control goroutine and ProcessBlock from the
// audio goroutine. The target travels through an atomic word, so the audio
// side never blocks. The gate starts closed.
type Gate struct {
	mode     GateMode
	rampStep float64

	target atomic.Uint64 // float64 bits

	// Owned by the audio goroutine; published for meters.
	current float64
	applied atomic.Uint64
}

// ErrInvalidGateRamp is returned for ramp times outside (0, 100] ms.
var ErrInvalidGateRamp = errors.New("dynamics: invalid gate ramp")

// ValidateGateRamp checks a GateSmooth ramp time.
func ValidateGateRamp(rampMs float64) error {
	if !(rampMs > 0 && rampMs <= maxGateRampMs) {
		return fmt.Errorf("%w: must be in (0, %g] ms: %g", ErrInvalidGateRamp, maxGateRampMs, rampMs)
	}
	return nil
}

// NewGate creates a hard gate.
func NewGate() *Gate {
	return &Gate{mode: GateHard}
}

// NewSmoothGate creates a gate that ramps over rampMs milliseconds.
func NewSmoothGate(sampleRate, rampMs float64) (*Gate, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("gate sample rate must be positive and finite: %f", sampleRate)
	}
	if err := ValidateGateRamp(rampMs); err != nil {
		return nil, err
	}
	return &Gate{
		mode:     GateSmooth,
		rampStep: 1 / (rampMs * 0.001 * sampleRate),
	}, nil
}

// Mode returns the gate mode.
func (g *Gate) Mode() GateMode { return g.mode }

// SetOpen sets the target gain to 1 when open and 0 otherwise.
func (g *Gate) SetOpen(open bool) {
	if open {
		g.SetTarget(1)
		return
	}
	g.SetTarget(0)
}

// SetTarget publishes a target gain in [0, 1].
func (g *Gate) SetTarget(gain float64) {
	if math.IsNaN(gain) {
		gain = 0
	}
	gain = math.Max(0, math.Min(1, gain))
	g.target.Store(math.Float64bits(gain))
}

// Target returns the most recently published target gain.
func (g *Gate) Target() float64 {
	return math.Float64frombits(g.target.Load())
}

// Gain returns the gain applied at the end of the last processed block.
func (g *Gate) Gain() float64 {
	return math.Float64frombits(g.applied.Load())
}

// ProcessBlock applies the gate to buf in place. The target is read once
// per block.
func (g *Gate) ProcessBlock(buf []float64) {
	target := g.Target()

	if g.mode == GateHard || g.current == target {
		g.current = target
		g.scale(buf, target)
		g.applied.Store(math.Float64bits(target))
		return
	}

	i := 0
	for ; i < len(buf) && g.current != target; i++ {
		if g.current < target {
			g.current = math.Min(target, g.current+g.rampStep)
		} else {
			g.current = math.Max(target, g.current-g.rampStep)
		}
		buf[i] *= g.current
	}
	g.scale(buf[i:], g.current)
	g.applied.Store(math.Float64bits(g.current))
}

func (g *Gate) scale(buf []float64, gain float64) {
	switch gain {
	case 1:
	case 0:
		clear(buf)
	default:
		vecmath.ScaleBlockInPlace(buf, gain)
	}
}

// Reset closes the gate immediately.
func (g *Gate) Reset() {
	g.current = 0
	g.target.Store(0)
	g.applied.Store(0)
}
