package core

import "fmt"

// ProcessorConfig is the sample rate and block size a processing graph is
// built for.
type ProcessorConfig struct {
	SampleRate float64
	BlockSize  int
}

// DefaultProcessorConfig returns the live monitoring defaults: 44.1 kHz mono
// with 256-sample blocks (~5.8 ms).
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{SampleRate: 44100, BlockSize: 256}
}

// Validate reports whether the configuration can drive a processing graph.
func (cfg ProcessorConfig) Validate() error {
	if cfg.SampleRate <= 0 || !IsFinite(cfg.SampleRate) {
		return fmt.Errorf("sample rate must be positive and finite: %f", cfg.SampleRate)
	}
	if cfg.BlockSize <= 0 {
		return fmt.Errorf("block size must be > 0: %d", cfg.BlockSize)
	}
	return nil
}

// Nyquist returns half the sample rate.
func (cfg ProcessorConfig) Nyquist() float64 {
	return cfg.SampleRate / 2
}

// BlockDuration returns the length of one block in seconds.
func (cfg ProcessorConfig) BlockDuration() float64 {
	return float64(cfg.BlockSize) / cfg.SampleRate
}
