package topology

import (
	"errors"
	"fmt"

	"github.com/cwbudde/voicegate/dsp/core"
	"github.com/cwbudde/voicegate/dsp/effects/dynamics"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownMode  = errors.New("unknown mode")
	ErrNotBuilt     = errors.New("topology: not built")
	ErrAlreadyBuilt = errors.New("topology: already built")
)

// State is the controller lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateBuilt
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilt:
		return "built"
	case StateTornDown:
		return "torn-down"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options holds the settings shared by every mode.
type Options struct {
	SampleRate float64
	BlockSize  int
	Gate       dynamics.GateMode
	GateRampMs float64 // used by dynamics.GateSmooth
	Hysteresis float64 // optional VAD hysteresis, 0 disables
	HoldTicks  int     // optional VAD hold, 0 disables
}

// DefaultOptions returns 44.1 kHz, 256-sample blocks and a hard gate.
func DefaultOptions() Options {
	pc := core.DefaultProcessorConfig()
	return Options{
		SampleRate: pc.SampleRate,
		BlockSize:  pc.BlockSize,
		Gate:       dynamics.GateHard,
		GateRampMs: dynamics.DefaultGateRampMs,
	}
}

// Validate checks the shared settings.
func (o Options) Validate() error {
	pc := core.ProcessorConfig{SampleRate: o.SampleRate, BlockSize: o.BlockSize}
	if err := pc.Validate(); err != nil {
		return fmt.Errorf("topology: %w", err)
	}
	if o.Hysteresis < 0 || o.HoldTicks < 0 {
		return errors.New("topology: hysteresis and hold must be >= 0")
	}
	if o.Gate == dynamics.GateSmooth {
		if err := dynamics.ValidateGateRamp(o.GateRampMs); err != nil {
			return fmt.Errorf("topology: %w", err)
		}
	}
	return nil
}

// Controller builds, rebuilds and tears down graphs. It is the sole owner
// of the stages of the current graph. Not safe for concurrent use.
type Controller struct {
	opts  Options
	state State
	graph *Graph
}

// NewController validates opts.
func NewController(opts Options) (*Controller, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Controller{opts: opts}, nil
}

// Options returns the controller settings.
func (c *Controller) Options() Options { return c.opts }

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// Graph returns the current graph, or nil unless built.
func (c *Controller) Graph() *Graph { return c.graph }

// Build constructs the graph for mode. It is valid from the uninitialized
// and torn-down states. On error the state is unchanged.
func (c *Controller) Build(mode Mode, lv Levels) (*Graph, error) {
	if c.state == StateBuilt {
		return nil, ErrAlreadyBuilt
	}
	return c.build(mode, lv)
}

// Rebuild discards every stage of the current graph and builds mode from
// scratch, keeping only the volume and mute levels. It is only valid while
// built; the caller must not render through the old graph afterwards. If
// construction fails the controller ends up torn down.
func (c *Controller) Rebuild(mode Mode) (*Graph, error) {
	if c.state != StateBuilt {
		return nil, ErrNotBuilt
	}
	p := c.graph.governor.Profile()
	c.Teardown()
	return c.build(mode, Levels{Volume: p.UserVolume, Muted: p.Muted})
}

// Teardown releases the current graph. Idempotent.
func (c *Controller) Teardown() {
	if c.state != StateBuilt {
		return
	}
	logrus.WithFields(logrus.Fields{
		"component": "topology",
		"mode":      c.graph.Mode().String(),
	}).Debug("Tearing down graph")
	c.graph = nil
	c.state = StateTornDown
}

func (c *Controller) build(mode Mode, lv Levels) (*Graph, error) {
	r, err := RecipeFor(mode)
	if err != nil {
		return nil, err
	}

	g, err := newGraph(r, c.opts, lv)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "topology",
			"mode":      mode.String(),
			"error":     err.Error(),
		}).Error("Graph construction failed")
		return nil, fmt.Errorf("topology: build %s: %w", mode, err)
	}

	c.graph = g
	c.state = StateBuilt

	logrus.WithFields(logrus.Fields{
		"component":   "topology",
		"mode":        mode.String(),
		"stages":      len(r.Stages),
		"fft_size":    r.Analyzer.FFTSize,
		"band":        r.Band.String(),
		"safety":      r.SafetyFactor,
		"sample_rate": c.opts.SampleRate,
	}).Info("Graph built")

	return g, nil
}
