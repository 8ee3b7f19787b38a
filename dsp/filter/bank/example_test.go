package bank_test

import (
	"fmt"

	"github.com/cwbudde/voicegate/dsp/filter/bank"
	"github.com/cwbudde/voicegate/dsp/filter/design"
)

func ExampleNew() {
	b, err := bank.New(44100,
		bank.Stage{Kind: design.KindHighpass, Freq: 80, Q: design.DefaultQ},
		bank.Stage{Kind: design.KindLowpass, Freq: 8000, Q: design.DefaultQ},
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, st := range b.Stages() {
		fmt.Println(st)
	}

	_, err = bank.New(44100, bank.Stage{Kind: design.KindNotch, Freq: 4000, Q: 45})
	fmt.Println(err)
	// Output:
	// highpass 80 Hz Q 0.707
	// lowpass 8000 Hz Q 0.707
	// bank: stage 0 (notch): design: Q out of range: 45 (want 0 < q <= 30)
}
