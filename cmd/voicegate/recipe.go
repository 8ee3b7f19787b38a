package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/voicegate/dsp/core"
	"github.com/cwbudde/voicegate/dsp/filter/bank"
	"github.com/cwbudde/voicegate/dsp/window"
	"github.com/cwbudde/voicegate/monitor/topology"
)

// probeFreqs are the frequencies at which the filter response is listed.
var probeFreqs = []float64{50, 100, 300, 1000, 3400, 4000, 8000}

// RecipeCmd prints the fixed processing graph of each mode.
type RecipeCmd struct {
	Modes      []string `arg:"" optional:"" help:"Modes to print (default: all)"`
	SampleRate float64  `default:"44100" help:"Sample rate for the filter responses"`
	BlockSize  int      `default:"256" help:"Render block size in samples"`
}

// Run implements the recipe command.
func (c *RecipeCmd) Run(_ *Globals) error {
	modes := []topology.Mode{topology.ModeQuality, topology.ModeLowLatency}
	if len(c.Modes) > 0 {
		modes = modes[:0]
		for _, name := range c.Modes {
			m, err := topology.ParseMode(name)
			if err != nil {
				return err
			}
			modes = append(modes, m)
		}
	}
	pc := core.ProcessorConfig{SampleRate: c.SampleRate, BlockSize: c.BlockSize}
	if err := pc.Validate(); err != nil {
		return err
	}
	for i, m := range modes {
		if i > 0 {
			fmt.Println()
		}
		if err := printRecipe(os.Stdout, m, pc); err != nil {
			return err
		}
	}
	return nil
}

func printRecipe(w io.Writer, m topology.Mode, pc core.ProcessorConfig) error {
	sampleRate := pc.SampleRate
	r, err := topology.RecipeFor(m)
	if err != nil {
		return err
	}
	b, err := bank.New(sampleRate, r.Stages...)
	if err != nil {
		return fmt.Errorf("%s at %g Hz: %w", m, sampleRate, err)
	}

	fmt.Fprintln(w, titleStyle.Render("mode "+m.String()))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Stage\tKind\tFreq [Hz]\tQ\n")
	fmt.Fprintf(tw, "-----\t----\t---------\t-\n")
	for i, s := range r.Stages {
		fmt.Fprintf(tw, "%d\t%s\t%g\t%.4g\n", i+1, s.Kind, s.Freq, s.Q)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(tw, "Freq [Hz]\tResponse [dB]\n")
	fmt.Fprintf(tw, "---------\t-------------\n")
	for _, f := range probeFreqs {
		if f >= pc.Nyquist() {
			continue
		}
		fmt.Fprintf(tw, "%g\t%.2f\n", f, b.MagnitudeDB(f))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	an := r.Analyzer
	win := window.Info(an.Window)
	cp := r.Compressor
	fmt.Fprintln(w)
	rows := [][2]string{
		{"block", fmt.Sprintf("%d (%.2f ms)", pc.BlockSize, 1000*pc.BlockDuration())},
		{"compressor", fmt.Sprintf("%.0f dB, knee %.0f dB, %.0f:1, %.0f/%.0f ms", cp.ThresholdDB, cp.KneeDB, cp.Ratio, cp.AttackMs, cp.ReleaseMs)},
		{"analyzer tap", r.Tap.String()},
		{"fft size", fmt.Sprintf("%d (%.1f ms, %.2f Hz/bin)", an.FFTSize, 1000*float64(an.FFTSize)/sampleRate, sampleRate/float64(an.FFTSize))},
		{"window", fmt.Sprintf("%s (ENBW %.2f bins, sidelobe %.1f dB)", win.Name, win.ENBW, win.HighestSidelobe)},
		{"smoothing", fmt.Sprintf("%.2f", an.Smoothing)},
		{"range", fmt.Sprintf("%.0f..%.0f dB", an.MinDB, an.MaxDB)},
		{"voice band", r.Band.String()},
		{"safety", fmt.Sprintf("%.2f (max gain %.2f)", r.SafetyFactor, 2*r.SafetyFactor)},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", keyStyle.Render(row[0]), row[1])
	}
	return tw.Flush()
}
