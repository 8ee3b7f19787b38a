package topology

import (
	"fmt"
	"strings"

	"github.com/cwbudde/voicegate/dsp/effects/dynamics"
	"github.com/cwbudde/voicegate/dsp/filter/bank"
	"github.com/cwbudde/voicegate/dsp/filter/design"
	"github.com/cwbudde/voicegate/dsp/gain"
	"github.com/cwbudde/voicegate/dsp/spectrum"
	"github.com/cwbudde/voicegate/dsp/vad"
	"github.com/cwbudde/voicegate/dsp/window"
)

// Mode selects one of the fixed pipeline shapes.
type Mode int

const (
	// ModeQuality runs highpass, lowpass and notch stages before the
	// compressor and analyzes the processed signal.
	ModeQuality Mode = iota
	// ModeLowLatency runs a single bandpass stage and analyzes the raw input
	// with a shorter transform.
	ModeLowLatency
)

func (m Mode) String() string {
	switch m {
	case ModeQuality:
		return "quality"
	case ModeLowLatency:
		return "low-latency"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeQuality || m == ModeLowLatency }

// ParseMode accepts "quality", "low-latency", "lowlatency" and
// "ultra-low-latency", ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quality", "":
		return ModeQuality, nil
	case "low-latency", "lowlatency", "low_latency", "ultra-low-latency":
		return ModeLowLatency, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// TapPoint selects where the analyzer reads the signal.
type TapPoint int

const (
	// TapProcessed reads after the compressor.
	TapProcessed TapPoint = iota
	// TapSource reads the raw input in parallel to the filter chain.
	TapSource
)

func (t TapPoint) String() string {
	switch t {
	case TapProcessed:
		return "processed"
	case TapSource:
		return "source"
	}
	return fmt.Sprintf("TapPoint(%d)", int(t))
}

// Recipe is the complete, fixed description of one mode's graph.
type Recipe struct {
	Mode         Mode
	Stages       []bank.Stage
	Compressor   dynamics.CompressorParams
	Tap          TapPoint
	Analyzer     spectrum.Config
	Band         vad.Band
	SafetyFactor float64
}

// RecipeFor returns the recipe of m. Each call returns fresh slices.
func RecipeFor(m Mode) (Recipe, error) {
	switch m {
	case ModeQuality:
		return Recipe{
			Mode: ModeQuality,
			Stages: []bank.Stage{
				{Kind: design.KindHighpass, Freq: 80, Q: design.DefaultQ},
				{Kind: design.KindLowpass, Freq: 8000, Q: design.DefaultQ},
				{Kind: design.KindNotch, Freq: 4000, Q: 10},
			},
			Compressor: dynamics.DefaultCompressorParams(),
			Tap:        TapProcessed,
			Analyzer: spectrum.Config{
				FFTSize:   2048,
				Window:    window.TypeBlackman,
				Smoothing: 0.8,
				MinDB:     spectrum.DefaultMinDB,
				MaxDB:     spectrum.DefaultMaxDB,
			},
			Band:         vad.SpeechBand,
			SafetyFactor: gain.SafetyQuality,
		}, nil
	case ModeLowLatency:
		return Recipe{
			Mode: ModeLowLatency,
			Stages: []bank.Stage{
				// Geometric center of 300-3400 Hz, about 3.5 octaves wide.
				{Kind: design.KindBandpass, Freq: 1010, Q: 0.33},
			},
			Compressor: dynamics.DefaultCompressorParams(),
			Tap:        TapSource,
			Analyzer: spectrum.Config{
				FFTSize:   512,
				Window:    window.TypeBlackman,
				Smoothing: 0.5,
				MinDB:     spectrum.DefaultMinDB,
				MaxDB:     spectrum.DefaultMaxDB,
			},
			Band:         vad.CoreBand,
			SafetyFactor: gain.SafetyLowLatency,
		}, nil
	}
	return Recipe{}, fmt.Errorf("topology: %w: %d", ErrUnknownMode, int(m))
}
