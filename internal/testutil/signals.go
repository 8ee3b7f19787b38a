// Package testutil holds deterministic test signals and tolerance helpers
// shared by the DSP and engine tests.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// MultiTone sums equal-amplitude sines at freqs. The peak never exceeds
// amplitude.
func MultiTone(freqs []float64, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	if len(freqs) == 0 {
		return out
	}
	per := amplitude / float64(len(freqs))
	for _, f := range freqs {
		step := 2 * math.Pi * f / sampleRate
		for i := range out {
			out[i] += per * math.Sin(step*float64(i))
		}
	}
	return out
}

// VocalTones returns tone frequencies spread across the 500-2500 Hz core of
// the vocal band.
func VocalTones() []float64 {
	return []float64{600, 900, 1200, 1500, 1800, 2100, 2400}
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// ToFloat32 converts a test signal to device samples.
func ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
