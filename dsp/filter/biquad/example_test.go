package biquad_test

import (
	"fmt"

	"github.com/cwbudde/voicegate/dsp/filter/biquad"
)

func ExampleChain_MagnitudeDB() {
	// Two identical one-pole-ish smoothing sections.
	smooth := biquad.Coefficients{B0: 0.5, B1: 0.5}
	c := biquad.NewChain([]biquad.Coefficients{smooth, smooth})

	fmt.Printf("DC: %.1f dB\n", c.MagnitudeDB(0, 48000))
	fmt.Printf("12 kHz: %.1f dB\n", c.MagnitudeDB(12000, 48000))

	// Output:
	// DC: 0.0 dB
	// 12 kHz: -6.0 dB
}
