// Package bank provides the ordered biquad filter bank used on the voice
// path.
//
// A bank is a fixed sequence of cookbook stages (highpass, lowpass,
// bandpass, notch). Coefficients are derived once by [New] from the sample
// rate and each stage's corner frequency and Q; the order never changes
// afterwards. Invalid stages are rejected at construction time.
//
// Basic usage:
//
//	b, err := bank.New(44100,
//	    bank.Stage{Kind: design.KindHighpass, Freq: 80, Q: design.DefaultQ},
//	    bank.Stage{Kind: design.KindLowpass, Freq: 8000, Q: design.DefaultQ},
//	)
//	if err != nil {
//	    return err
//	}
//	b.ProcessBlock(block)
package bank
