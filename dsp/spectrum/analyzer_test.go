package spectrum

import (
	"math"
	"testing"

	"github.com/cwbudde/voicegate/dsp/window"
	"github.com/cwbudde/voicegate/internal/testutil"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"512", func(c *Config) { c.FFTSize = 512 }, false},
		{"not power of two", func(c *Config) { c.FFTSize = 1000 }, true},
		{"too small", func(c *Config) { c.FFTSize = 128 }, true},
		{"too large", func(c *Config) { c.FFTSize = 16384 }, true},
		{"smoothing 1", func(c *Config) { c.Smoothing = 1 }, true},
		{"negative smoothing", func(c *Config) { c.Smoothing = -0.1 }, true},
		{"inverted range", func(c *Config) { c.MinDB, c.MaxDB = -30, -100 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
	if _, err := NewAnalyzer(0, DefaultConfig()); err == nil {
		t.Fatal("accepted zero sample rate")
	}
}

func TestAnalyzerBinCenteredSine(t *testing.T) {
	const sr = 44100.0
	cfg := DefaultConfig()
	cfg.Smoothing = 0
	a, err := NewAnalyzer(sr, cfg)
	if err != nil {
		t.Fatal(err)
	}

	const bin = 50
	freq := bin * a.BinWidth()
	in := testutil.DeterministicSine(freq, sr, 0.001, cfg.FFTSize) // -60 dBFS
	f, err := a.Analyze(in)
	if err != nil {
		t.Fatal(err)
	}

	if len(f.Bins) != cfg.FFTSize/2+1 {
		t.Fatalf("len(Bins) = %d", len(f.Bins))
	}
	if math.Abs(f.BinFrequency(bin)-freq) > 1e-9 {
		t.Fatalf("BinFrequency = %v, want %v", f.BinFrequency(bin), freq)
	}

	want := (-60 - cfg.MinDB) / (cfg.MaxDB - cfg.MinDB)
	if math.Abs(f.Bins[bin]-want) > 0.01 {
		t.Fatalf("bin %d = %v, want %v", bin, f.Bins[bin], want)
	}
	for k, v := range f.Bins {
		if v < 0 || v > 1 {
			t.Fatalf("bin %d = %v outside [0,1]", k, v)
		}
		if k < bin-10 || k > bin+10 {
			if v > 0.05 {
				t.Fatalf("leakage at bin %d: %v", k, v)
			}
		}
	}
}

func TestAnalyzerSilenceIsZero(t *testing.T) {
	a, _ := NewAnalyzer(44100, DefaultConfig())
	f, err := a.Analyze(make([]float64, 2048))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range f.Bins {
		if v != 0 {
			t.Fatalf("bin %d = %v on silence", k, v)
		}
	}
}

func TestAnalyzerSmoothing(t *testing.T) {
	const sr = 48000.0
	cfg := DefaultConfig()
	cfg.FFTSize = 512
	cfg.Smoothing = 0.5
	cfg.Window = window.TypeHann
	a, _ := NewAnalyzer(sr, cfg)

	const bin = 20
	tone := testutil.DeterministicSine(bin*a.BinWidth(), sr, 0.01, 512)
	first, _ := a.Analyze(tone)
	before := first.Bins[bin]

	second, _ := a.Analyze(make([]float64, 512))
	after := second.Bins[bin]

	// Half the linear magnitude is -6.02 dB.
	drop := (before - after) * (cfg.MaxDB - cfg.MinDB)
	if math.Abs(drop-20*math.Log10(2)) > 0.05 {
		t.Fatalf("smoothed drop = %v dB, want 6.02", drop)
	}

	a.Reset()
	third, _ := a.Analyze(make([]float64, 512))
	if third.Bins[bin] != 0 {
		t.Fatalf("Reset kept history: %v", third.Bins[bin])
	}
}

func TestAnalyzerShortInputIsPadded(t *testing.T) {
	a, _ := NewAnalyzer(44100, DefaultConfig())
	if _, err := a.Analyze(make([]float64, 10)); err != nil {
		t.Fatal(err)
	}
	long := testutil.DeterministicNoise(1, 0.1, 5000)
	if _, err := a.Analyze(long); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzerFrameReusesStorage(t *testing.T) {
	a, _ := NewAnalyzer(44100, DefaultConfig())
	f1, _ := a.Analyze(testutil.DeterministicNoise(2, 0.5, 2048))
	f2 := a.Frame()
	if &f1.Bins[0] != &f2.Bins[0] {
		t.Fatal("Frame() should expose the analyzer's bin storage")
	}
}
