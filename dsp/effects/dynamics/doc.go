// Package dynamics provides the dynamics processors of the voice path.
//
// Included processors:
//   - Compressor: feed-forward soft-knee compressor with log2-domain gain
//     computation and a peak envelope follower.
//   - Gate: control-rate noise gate. A control goroutine publishes the
//     target gain; the audio goroutine applies it to whole blocks, either
//     instantly or with a short linear ramp.
package dynamics
