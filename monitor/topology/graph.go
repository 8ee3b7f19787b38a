package topology

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"
	"github.com/cwbudde/voicegate/dsp/core"
	"github.com/cwbudde/voicegate/dsp/effects/dynamics"
	"github.com/cwbudde/voicegate/dsp/filter/bank"
	"github.com/cwbudde/voicegate/dsp/filter/biquad"
	"github.com/cwbudde/voicegate/dsp/gain"
	"github.com/cwbudde/voicegate/dsp/spectrum"
	"github.com/cwbudde/voicegate/dsp/vad"
)

// ErrNonFinite reports a NaN or Inf produced inside the graph.
var ErrNonFinite = errors.New("topology: non-finite sample")

// Levels carries the user volume and mute state into a new graph.
type Levels struct {
	Volume float64
	Muted  bool
}

// Graph owns every stage of one built topology.
//
// Render belongs to the audio goroutine and Analyze to the control
// goroutine; they may run concurrently with each other. The only values
// shared between them are the tap ring, the gate target and the published
// decision, all of which are lock-free. Volume and mute changes go through
// the governor from any goroutine.
type Graph struct {
	recipe Recipe
	opts   Options

	// render side
	bank *bank.Bank
	comp *dynamics.Compressor

	// shared
	tap      *spectrum.Tap
	gate     *dynamics.Gate
	governor *gain.Governor
	decision atomic.Pointer[vad.Decision]
	peak     atomic.Uint64

	// control side
	analyzer *spectrum.Analyzer
	detector *vad.Detector
	recent   []float64
}

func newGraph(r Recipe, opts Options, lv Levels) (*Graph, error) {
	b, err := bank.New(opts.SampleRate, r.Stages...)
	if err != nil {
		return nil, err
	}

	comp, err := dynamics.NewCompressorWithParams(opts.SampleRate, r.Compressor)
	if err != nil {
		return nil, err
	}

	an, err := spectrum.NewAnalyzer(opts.SampleRate, r.Analyzer)
	if err != nil {
		return nil, err
	}

	var vadOpts []vad.Option
	if opts.Hysteresis > 0 {
		vadOpts = append(vadOpts, vad.WithHysteresis(opts.Hysteresis))
	}
	if opts.HoldTicks > 0 {
		vadOpts = append(vadOpts, vad.WithHold(opts.HoldTicks))
	}
	det, err := vad.NewDetector(r.Band, vadOpts...)
	if err != nil {
		return nil, err
	}

	gate := dynamics.NewGate()
	if opts.Gate == dynamics.GateSmooth {
		gate, err = dynamics.NewSmoothGate(opts.SampleRate, opts.GateRampMs)
		if err != nil {
			return nil, err
		}
	}

	gov, err := gain.NewGovernor(gain.Profile{
		UserVolume:   lv.Volume,
		Muted:        lv.Muted,
		SafetyFactor: r.SafetyFactor,
	})
	if err != nil {
		return nil, err
	}

	return &Graph{
		recipe:   r,
		opts:     opts,
		bank:     b,
		comp:     comp,
		tap:      spectrum.NewTap(2 * max(r.Analyzer.FFTSize, opts.BlockSize)),
		gate:     gate,
		governor: gov,
		analyzer: an,
		detector: det,
		recent:   make([]float64, r.Analyzer.FFTSize),
	}, nil
}

// Mode returns the mode the graph was built for.
func (g *Graph) Mode() Mode { return g.recipe.Mode }

// Recipe returns the recipe the graph was built from.
func (g *Graph) Recipe() Recipe {
	r := g.recipe
	r.Stages = append([]bank.Stage(nil), r.Stages...)
	return r
}

// Coefficients returns the filter bank coefficients in stage order.
func (g *Graph) Coefficients() []biquad.Coefficients { return g.bank.Coefficients() }

// Governor returns the gain governor of this graph.
func (g *Graph) Governor() *gain.Governor { return g.governor }

// GateGain returns the gain the gate applied to the last rendered block.
func (g *Graph) GateGain() float64 { return g.gate.Gain() }

// Peak returns the absolute peak of the last rendered output block.
func (g *Graph) Peak() float64 { return math.Float64frombits(g.peak.Load()) }

// Decision returns the most recent voice decision. Before the first
// Analyze it is inactive with zero level.
func (g *Graph) Decision() vad.Decision {
	if d := g.decision.Load(); d != nil {
		return *d
	}
	return vad.Decision{}
}

// Render processes one block in place: filter bank, compressor, gate and
// governor, with the analyzer tap taken from the source or after the
// compressor depending on the recipe. It does not allocate or block.
//
// A non-finite sample anywhere before the gate aborts the block with
// ErrNonFinite; the block is zeroed so nothing corrupt reaches the sink.
func (g *Graph) Render(block []float64) error {
	if g.recipe.Tap == TapSource {
		g.tap.Write(block)
	}

	g.bank.ProcessBlock(block)
	g.comp.ProcessBlock(block)

	if !core.IsFinite(vecmath.Sum(block)) {
		idx := core.FirstNonFinite(block)
		clear(block)
		if idx < 0 {
			return fmt.Errorf("%w: block sum overflow", ErrNonFinite)
		}
		return fmt.Errorf("%w at sample %d", ErrNonFinite, idx)
	}

	if g.recipe.Tap == TapProcessed {
		g.tap.Write(block)
	}

	g.gate.ProcessBlock(block)
	g.governor.ProcessBlock(block)
	g.peak.Store(math.Float64bits(vecmath.MaxAbs(block)))

	return nil
}

// Analyze runs one control tick: it snapshots the tap, updates the
// spectrum, decides voice activity at sensitivity and publishes the gate
// target.
func (g *Graph) Analyze(sensitivity float64) (vad.Decision, error) {
	g.tap.Snapshot(g.recent)

	frame, err := g.analyzer.Analyze(g.recent)
	if err != nil {
		g.gate.SetOpen(false)
		return vad.Decision{}, fmt.Errorf("%w: %w", ErrNonFinite, err)
	}

	dec := g.detector.Decide(frame, sensitivity)
	g.gate.SetOpen(dec.Active)
	g.decision.Store(&dec)

	return dec, nil
}
