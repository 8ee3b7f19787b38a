package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cwbudde/voicegate/device"
	"github.com/cwbudde/voicegate/device/portaudio"
)

// DevicesCmd lists the audio devices PortAudio can open.
type DevicesCmd struct {
	Simulate bool `help:"List the simulated device instead of audio hardware"`
}

// Run implements the devices command.
func (d *DevicesCmd) Run(g *Globals) error {
	if _, err := g.load(); err != nil {
		return err
	}

	var en device.Enumerator
	if d.Simulate {
		en = device.NewLoopback()
	} else {
		pa, err := portaudio.New()
		if err != nil {
			return err
		}
		defer pa.Close()
		en = pa
	}

	infos, err := en.Devices()
	if err != nil {
		return err
	}
	return printDevices(os.Stdout, infos)
}

func printDevices(w io.Writer, infos []device.Info) error {
	if len(infos) == 0 {
		_, err := fmt.Fprintln(w, errorStyle.Render("no audio devices found"))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tName\tIn\tOut\tRate [Hz]\tDefault\n")
	fmt.Fprintf(tw, "--\t----\t--\t---\t---------\t-------\n")
	for _, info := range infos {
		def := ""
		switch {
		case info.DefaultInput && info.DefaultOutput:
			def = "in/out"
		case info.DefaultInput:
			def = "in"
		case info.DefaultOutput:
			def = "out"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.0f\t%s\n",
			info.ID, info.Name, info.MaxInputChannels, info.MaxOutputChannels, info.DefaultSampleRate, def)
	}
	return tw.Flush()
}
