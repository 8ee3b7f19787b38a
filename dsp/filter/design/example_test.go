package design_test

import (
	"fmt"

	"github.com/cwbudde/voicegate/dsp/filter/biquad"
	"github.com/cwbudde/voicegate/dsp/filter/design"
)

func ExampleDesign() {
	c, err := design.Design(design.KindNotch, 4000, 10, 44100)
	if err != nil {
		fmt.Println(err)
		return
	}
	s := biquad.NewSection(c)
	fmt.Printf("stable=%v\n", c.Stable())
	fmt.Printf("rejects 4000 Hz: %v\n", s.MagnitudeDB(4000, 44100) < -60)

	_, err = design.Design(design.KindLowpass, 30000, 0.7, 44100)
	fmt.Println(err)
	// Output:
	// stable=true
	// rejects 4000 Hz: true
	// design: frequency out of range: 30000 Hz (nyquist 22050 Hz)
}
