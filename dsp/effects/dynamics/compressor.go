package dynamics

import (
	"fmt"
	"math"
)

const (
	// Voice-path defaults.
	DefaultCompressorThresholdDB = -24.0
	DefaultCompressorKneeDB      = 30.0
	DefaultCompressorRatio       = 12.0
	DefaultCompressorAttackMs    = 3.0
	DefaultCompressorReleaseMs   = 250.0

	minCompressorRatio     = 1.0
	maxCompressorRatio     = 20.0
	minCompressorAttackMs  = 0.0
	maxCompressorAttackMs  = 1000.0
	minCompressorReleaseMs = 1.0
	maxCompressorReleaseMs = 5000.0
	minCompressorKneeDB    = 0.0
	maxCompressorKneeDB    = 40.0
	minCompressorThreshold = -100.0
	maxCompressorThreshold = 0.0

	// log2Of10Div20 converts dB to the log2 domain: log2(10) / 20.
	log2Of10Div20 = 0.166096404744
)

// CompressorParams holds the user-facing compressor settings.
type CompressorParams struct {
	ThresholdDB float64
	KneeDB      float64
	Ratio       float64
	AttackMs    float64
	ReleaseMs   float64
}

// DefaultCompressorParams returns the voice-path defaults.
func DefaultCompressorParams() CompressorParams {
	return CompressorParams{
		ThresholdDB: DefaultCompressorThresholdDB,
		KneeDB:      DefaultCompressorKneeDB,
		Ratio:       DefaultCompressorRatio,
		AttackMs:    DefaultCompressorAttackMs,
		ReleaseMs:   DefaultCompressorReleaseMs,
	}
}

// Validate reports the first parameter outside its accepted range.
func (p CompressorParams) Validate() error {
	switch {
	case !inRange(p.ThresholdDB, minCompressorThreshold, maxCompressorThreshold):
		return fmt.Errorf("compressor threshold must be in [%g, %g] dB: %g",
			minCompressorThreshold, maxCompressorThreshold, p.ThresholdDB)
	case !inRange(p.KneeDB, minCompressorKneeDB, maxCompressorKneeDB):
		return fmt.Errorf("compressor knee must be in [%g, %g] dB: %g",
			minCompressorKneeDB, maxCompressorKneeDB, p.KneeDB)
	case !inRange(p.Ratio, minCompressorRatio, maxCompressorRatio):
		return fmt.Errorf("compressor ratio must be in [%g, %g]: %g",
			minCompressorRatio, maxCompressorRatio, p.Ratio)
	case !inRange(p.AttackMs, minCompressorAttackMs, maxCompressorAttackMs):
		return fmt.Errorf("compressor attack must be in [%g, %g] ms: %g",
			minCompressorAttackMs, maxCompressorAttackMs, p.AttackMs)
	case !inRange(p.ReleaseMs, minCompressorReleaseMs, maxCompressorReleaseMs):
		return fmt.Errorf("compressor release must be in [%g, %g] ms: %g",
			minCompressorReleaseMs, maxCompressorReleaseMs, p.ReleaseMs)
	}
	return nil
}

// CompressorState is a snapshot of the compressor parameters together with
// the running envelope.
type CompressorState struct {
	CompressorParams
	Envelope float64
}

// Compressor is a mono feed-forward soft-knee compressor.
//
// The envelope follower tracks the absolute sample level with separate
// attack and release time constants. Above the knee the gain follows the
// ratio slope; inside the knee the overshoot is smoothed quadratically in
// the log2 domain. There is no lookahead.
//
// Not safe for concurrent use. The envelope persists across blocks until
// Reset is called.
type Compressor struct {
	params     CompressorParams
	sampleRate float64

	envelope float64

	attackCoeff      float64
	releaseCoeff     float64
	thresholdLog2    float64
	kneeWidthLog2    float64
	invKneeWidthLog2 float64
	slope            float64
}

// NewCompressor creates a compressor with the voice-path defaults.
func NewCompressor(sampleRate float64) (*Compressor, error) {
	return NewCompressorWithParams(sampleRate, DefaultCompressorParams())
}

// NewCompressorWithParams creates a compressor with explicit settings.
func NewCompressorWithParams(sampleRate float64, p CompressorParams) (*Compressor, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("compressor sample rate must be positive and finite: %f", sampleRate)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c := &Compressor{params: p, sampleRate: sampleRate}
	c.updateCoefficients()
	return c, nil
}

// SetParams replaces all settings. The envelope is kept.
func (c *Compressor) SetParams(p CompressorParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.params = p
	c.updateCoefficients()
	return nil
}

// Params returns the current settings.
func (c *Compressor) Params() CompressorParams { return c.params }

// SampleRate returns the sample rate in Hz.
func (c *Compressor) SampleRate() float64 { return c.sampleRate }

// State returns the settings and the current envelope value.
func (c *Compressor) State() CompressorState {
	return CompressorState{CompressorParams: c.params, Envelope: c.envelope}
}

// ProcessSample processes one sample.
func (c *Compressor) ProcessSample(input float64) float64 {
	level := math.Abs(input)
	if level > c.envelope {
		c.envelope += (level - c.envelope) * c.attackCoeff
	} else {
		c.envelope = level + (c.envelope-level)*c.releaseCoeff
	}

	return input * c.gainForLevel(c.envelope)
}

// ProcessBlock compresses buf in place.
func (c *Compressor) ProcessBlock(buf []float64) {
	for i, x := range buf {
		buf[i] = c.ProcessSample(x)
	}
}

// OutputLevel returns the steady-state output magnitude for a constant
// input magnitude.
func (c *Compressor) OutputLevel(inputMagnitude float64) float64 {
	inputMagnitude = math.Abs(inputMagnitude)
	return inputMagnitude * c.gainForLevel(inputMagnitude)
}

// Reset clears the envelope.
func (c *Compressor) Reset() { c.envelope = 0 }

func (c *Compressor) updateCoefficients() {
	p := c.params
	c.thresholdLog2 = p.ThresholdDB * log2Of10Div20
	c.kneeWidthLog2 = p.KneeDB * log2Of10Div20
	c.invKneeWidthLog2 = 0
	if p.KneeDB > 0 {
		c.invKneeWidthLog2 = 1 / c.kneeWidthLog2
	}
	c.slope = 1 - 1/p.Ratio

	// Attack: 1 - exp(-ln2 / (attack_sec * sample_rate)); zero attack
	// follows the input instantly.
	c.attackCoeff = 1
	if p.AttackMs > 0 {
		c.attackCoeff = 1 - math.Exp(-math.Ln2/(p.AttackMs*0.001*c.sampleRate))
	}
	c.releaseCoeff = math.Exp(-math.Ln2 / (p.ReleaseMs * 0.001 * c.sampleRate))
}

func (c *Compressor) gainForLevel(level float64) float64 {
	if level <= 0 {
		return 1
	}

	overshoot := mathLog2(level) - c.thresholdLog2

	if c.kneeWidthLog2 <= 0 {
		if overshoot <= 0 {
			return 1
		}
		return mathPower2(-overshoot * c.slope)
	}

	halfWidth := c.kneeWidthLog2 * 0.5
	if overshoot < -halfWidth {
		return 1
	}
	if overshoot <= halfWidth {
		// (overshoot + w/2)^2 / (2w)
		scratch := overshoot + halfWidth
		overshoot = scratch * scratch * 0.5 * c.invKneeWidthLog2
	}

	return mathPower2(-overshoot * c.slope)
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
