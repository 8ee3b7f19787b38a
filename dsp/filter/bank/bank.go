package bank

import (
	"errors"
	"fmt"

	"github.com/cwbudde/voicegate/dsp/filter/biquad"
	"github.com/cwbudde/voicegate/dsp/filter/design"
)

// ErrNoStages is returned by New when called without stages.
var ErrNoStages = errors.New("bank: no stages")

// Stage describes one biquad in the bank.
type Stage struct {
	Kind design.Kind
	Freq float64 // corner or center frequency in Hz
	Q    float64
}

func (s Stage) String() string {
	return fmt.Sprintf("%s %.0f Hz Q %.3g", s.Kind, s.Freq, s.Q)
}

// Bank applies its stages in construction order.
type Bank struct {
	stages     []Stage
	chain      *biquad.Chain
	sampleRate float64
}

// New validates every stage and derives its coefficients. The first invalid
// stage aborts construction; the error names its index.
func New(sampleRate float64, stages ...Stage) (*Bank, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}

	coeffs := make([]biquad.Coefficients, len(stages))
	for i, st := range stages {
		c, err := design.Design(st.Kind, st.Freq, st.Q, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("bank: stage %d (%s): %w", i, st.Kind, err)
		}
		coeffs[i] = c
	}

	return &Bank{
		stages:     append([]Stage(nil), stages...),
		chain:      biquad.NewChain(coeffs),
		sampleRate: sampleRate,
	}, nil
}

// ProcessSample filters one sample through all stages.
func (b *Bank) ProcessSample(x float64) float64 {
	return b.chain.ProcessSample(x)
}

// ProcessBlock filters buf in place. Block length is preserved and no
// memory is allocated.
func (b *Bank) ProcessBlock(buf []float64) {
	b.chain.ProcessBlock(buf)
}

// Reset clears the delay memory of every stage.
func (b *Bank) Reset() { b.chain.Reset() }

// Stages returns a copy of the stage list in processing order.
func (b *Bank) Stages() []Stage { return append([]Stage(nil), b.stages...) }

// NumStages returns the number of stages.
func (b *Bank) NumStages() int { return len(b.stages) }

// SampleRate returns the sample rate the bank was built for.
func (b *Bank) SampleRate() float64 { return b.sampleRate }

// Coefficients returns a copy of the per-stage coefficients.
func (b *Bank) Coefficients() []biquad.Coefficients { return b.chain.Coefficients() }

// State returns the delay memory of every stage.
func (b *Bank) State() [][2]float64 { return b.chain.State() }

// MagnitudeDB returns the combined response of all stages at freqHz.
func (b *Bank) MagnitudeDB(freqHz float64) float64 {
	return b.chain.MagnitudeDB(freqHz, b.sampleRate)
}
