package core

import (
	"math"
	"testing"
)

func TestIsFinite(t *testing.T) {
	tests := []struct {
		in   float64
		want bool
	}{
		{0.5, true},
		{-math.MaxFloat64, true},
		{math.NaN(), false},
		{math.Inf(1), false},
		{math.Inf(-1), false},
	}
	for _, tt := range tests {
		if got := IsFinite(tt.in); got != tt.want {
			t.Fatalf("IsFinite(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if got := FirstNonFinite([]float64{0, 1, -1}); got != -1 {
		t.Fatalf("FirstNonFinite(finite) = %d, want -1", got)
	}
	if got := FirstNonFinite([]float64{0, 1, math.NaN(), math.Inf(1)}); got != 2 {
		t.Fatalf("FirstNonFinite() = %d, want 2", got)
	}
	if got := FirstNonFinite(nil); got != -1 {
		t.Fatalf("FirstNonFinite(nil) = %d, want -1", got)
	}
}

func TestFlushDenormals(t *testing.T) {
	for _, x := range []float64{1e-40, -1e-35, 0} {
		if FlushDenormals(x) != 0 {
			t.Fatalf("FlushDenormals(%v) did not flush", x)
		}
	}
	for _, x := range []float64{1e-3, -1e-20} {
		if FlushDenormals(x) != x {
			t.Fatalf("FlushDenormals(%v) changed a normal value", x)
		}
	}
}

func TestProcessorConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProcessorConfig
		wantErr bool
	}{
		{name: "default", cfg: DefaultProcessorConfig()},
		{name: "zero rate", cfg: ProcessorConfig{SampleRate: 0, BlockSize: 256}, wantErr: true},
		{name: "nan rate", cfg: ProcessorConfig{SampleRate: math.NaN(), BlockSize: 256}, wantErr: true},
		{name: "zero block", cfg: ProcessorConfig{SampleRate: 44100, BlockSize: 0}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	cfg := DefaultProcessorConfig()
	if got := cfg.Nyquist(); got != 22050 {
		t.Fatalf("Nyquist() = %v, want 22050", got)
	}
	if got := cfg.BlockDuration(); math.Abs(got-256.0/44100) > 1e-15 {
		t.Fatalf("BlockDuration() = %v", got)
	}
}
