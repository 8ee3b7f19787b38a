package spectrum

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"github.com/cwbudde/voicegate/dsp/window"
)

const (
	DefaultFFTSize   = 2048
	DefaultSmoothing = 0.8
	DefaultMinDB     = -100.0
	DefaultMaxDB     = -30.0

	MinFFTSize = 256
	MaxFFTSize = 8192

	eps = 1e-12
)

// Config describes an analyzer.
type Config struct {
	FFTSize   int         // power of two in [MinFFTSize, MaxFFTSize]
	Window    window.Type // defaults to Blackman
	Smoothing float64     // one-pole constant in [0, 1); 0 disables smoothing
	MinDB     float64     // level mapped to 0
	MaxDB     float64     // level mapped to 1
}

// DefaultConfig returns a 2048-point Blackman analyzer with 0.8 smoothing
// over a -100..-30 dB range.
func DefaultConfig() Config {
	return Config{
		FFTSize:   DefaultFFTSize,
		Window:    window.TypeBlackman,
		Smoothing: DefaultSmoothing,
		MinDB:     DefaultMinDB,
		MaxDB:     DefaultMaxDB,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.FFTSize < MinFFTSize || c.FFTSize > MaxFFTSize || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("spectrum: fft size must be a power of two in [%d, %d]: %d",
			MinFFTSize, MaxFFTSize, c.FFTSize)
	}
	if math.IsNaN(c.Smoothing) || c.Smoothing < 0 || c.Smoothing >= 1 {
		return fmt.Errorf("spectrum: smoothing must be in [0, 1): %g", c.Smoothing)
	}
	if !(c.MaxDB > c.MinDB) || math.IsInf(c.MinDB, 0) || math.IsInf(c.MaxDB, 0) {
		return fmt.Errorf("spectrum: invalid dB range [%g, %g]", c.MinDB, c.MaxDB)
	}
	return nil
}

// Frame is the latest analyzed spectrum. Bins holds FFTSize/2+1 normalized
// magnitudes in [0, 1]; bin k is centered at k*BinWidth Hz.
//
// Bins is owned by the analyzer and is overwritten by the next Analyze call.
type Frame struct {
	Bins       []float64
	BinWidth   float64
	SampleRate float64
}

// BinFrequency returns the center frequency of bin k in Hz.
func (f Frame) BinFrequency(k int) float64 { return float64(k) * f.BinWidth }

// Analyzer computes smoothed magnitude spectra. Not safe for concurrent use.
type Analyzer struct {
	cfg        Config
	sampleRate float64

	plan   *algofft.Plan[complex128]
	win    []float64
	norm   float64
	in     []complex128
	out    []complex128
	re, im []float64
	raw    []float64
	mag    []float64 // smoothed linear magnitudes
	bins   []float64
	primed bool
}

// NewAnalyzer allocates an analyzer and its FFT plan.
func NewAnalyzer(sampleRate float64, cfg Config) (*Analyzer, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("spectrum: sample rate must be positive and finite: %f", sampleRate)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	win := window.Generate(cfg.Window, cfg.FFTSize, window.WithPeriodic())
	gain, err := window.CoherentGain(win)
	if err != nil {
		return nil, fmt.Errorf("spectrum: %w", err)
	}

	plan, err := algofft.NewPlan64(cfg.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("spectrum init fft plan: %w", err)
	}

	half := cfg.FFTSize/2 + 1

	return &Analyzer{
		cfg:        cfg,
		sampleRate: sampleRate,
		plan:       plan,
		win:        win,
		norm:       float64(cfg.FFTSize) * math.Max(gain, eps),
		in:         make([]complex128, cfg.FFTSize),
		out:        make([]complex128, cfg.FFTSize),
		re:         make([]float64, half),
		im:         make([]float64, half),
		raw:        make([]float64, half),
		mag:        make([]float64, half),
		bins:       make([]float64, half),
	}, nil
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// FFTSize returns the transform length.
func (a *Analyzer) FFTSize() int { return a.cfg.FFTSize }

// BinWidth returns the bin spacing in Hz.
func (a *Analyzer) BinWidth() float64 { return a.sampleRate / float64(a.cfg.FFTSize) }

// Analyze transforms the most recent FFTSize samples of recent. Shorter
// input is zero-padded at the front. It does not allocate.
func (a *Analyzer) Analyze(recent []float64) (Frame, error) {
	n := a.cfg.FFTSize
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	pad := n - len(recent)
	for i := 0; i < pad; i++ {
		a.in[i] = 0
	}
	for i, s := range recent {
		a.in[pad+i] = complex(s*a.win[pad+i], 0)
	}

	if err := a.plan.Forward(a.out, a.in); err != nil {
		return Frame{}, fmt.Errorf("spectrum forward fft: %w", err)
	}

	for k := range a.re {
		a.re[k] = real(a.out[k])
		a.im[k] = imag(a.out[k])
	}
	vecmath.Magnitude(a.raw, a.re, a.im)

	last := len(a.raw) - 1
	smooth := a.cfg.Smoothing
	span := a.cfg.MaxDB - a.cfg.MinDB
	for k, m := range a.raw {
		m /= a.norm
		if k > 0 && k < last {
			m *= 2
		}
		if a.primed {
			m = smooth*a.mag[k] + (1-smooth)*m
		}
		if math.IsNaN(m) || math.IsInf(m, 0) {
			return Frame{}, fmt.Errorf("spectrum: non-finite magnitude in bin %d", k)
		}
		a.mag[k] = m

		db := 20 * math.Log10(math.Max(eps, m))
		a.bins[k] = math.Max(0, math.Min(1, (db-a.cfg.MinDB)/span))
	}
	a.primed = true

	return a.Frame(), nil
}

// Frame returns the most recent result without recomputing it.
func (a *Analyzer) Frame() Frame {
	return Frame{Bins: a.bins, BinWidth: a.BinWidth(), SampleRate: a.sampleRate}
}

// Reset discards the smoothing history.
func (a *Analyzer) Reset() {
	clear(a.mag)
	clear(a.bins)
	a.primed = false
}
