package spectrum_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/voicegate/dsp/spectrum"
)

func ExampleAnalyzer() {
	cfg := spectrum.DefaultConfig()
	cfg.FFTSize = 512
	cfg.Smoothing = 0
	a, err := spectrum.NewAnalyzer(48000, cfg)
	if err != nil {
		fmt.Println(err)
		return
	}

	// -30 dBFS tone centered on bin 32 (3000 Hz).
	in := make([]float64, 512)
	for i := range in {
		in[i] = 0.0316227766 * math.Sin(2*math.Pi*3000*float64(i)/48000)
	}
	f, _ := a.Analyze(in)
	fmt.Printf("bin width %.1f Hz, level %.2f\n", f.BinWidth, f.Bins[32])
	// Output:
	// bin width 93.8 Hz, level 1.00
}
