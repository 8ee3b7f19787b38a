// Package spectrum provides the real-time magnitude analyzer that feeds
// voice activity detection.
//
// An [Analyzer] windows the most recent FFTSize samples, transforms them
// with algo-fft, smooths successive magnitude spectra with a one-pole
// filter and maps each bin from the [MinDB, MaxDB] range onto [0, 1]. A
// [Tap] carries samples from the audio goroutine to the goroutine that runs
// the analyzer without locks.
package spectrum
