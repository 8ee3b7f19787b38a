// Package device defines the audio I/O boundary of the monitor: a Device
// opens a mono duplex Stream that is read and written one block at a time.
//
// Implementations map their native failures onto the sentinel errors of
// this package so callers can classify them with errors.Is.
package device

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable reports that no usable input or output device exists.
	ErrDeviceUnavailable = errors.New("device: unavailable")
	// ErrPermissionDenied reports that access to the microphone was refused.
	ErrPermissionDenied = errors.New("device: permission denied")
	// ErrUnsupportedConfig reports a sample rate, block size or channel
	// layout the device cannot honor.
	ErrUnsupportedConfig = errors.New("device: unsupported configuration")
	// ErrDeviceLost reports a device that disappeared while streaming.
	ErrDeviceLost = errors.New("device: lost")
	// ErrClosed is returned by Read and Write after Close.
	ErrClosed = errors.New("device: stream closed")
)

// DefaultDevice selects the system default input or output.
const DefaultDevice = -1

// Config describes the stream to open. Channels are always mono.
type Config struct {
	SampleRate   float64
	BlockSize    int
	InputDevice  int
	OutputDevice int
}

// DefaultConfig returns 44.1 kHz, 256-sample blocks on the default devices.
func DefaultConfig() Config {
	return Config{
		SampleRate:   44100,
		BlockSize:    256,
		InputDevice:  DefaultDevice,
		OutputDevice: DefaultDevice,
	}
}

// ConfigError names the parameter a device rejected. It unwraps to
// ErrUnsupportedConfig.
type ConfigError struct {
	Param string
	Value any
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("device: unsupported %s: %v", e.Param, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrUnsupportedConfig }

// Validate checks the parts of the configuration every device needs.
func (c Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return &ConfigError{Param: "sample_rate", Value: c.SampleRate}
	}
	if c.BlockSize < 16 || c.BlockSize > 8192 {
		return &ConfigError{Param: "block_size", Value: c.BlockSize}
	}
	if c.InputDevice < DefaultDevice {
		return &ConfigError{Param: "input_device", Value: c.InputDevice}
	}
	if c.OutputDevice < DefaultDevice {
		return &ConfigError{Param: "output_device", Value: c.OutputDevice}
	}
	return nil
}

// Device opens streams. Open may block while the platform acquires the
// hardware or asks the user for permission; it honors ctx cancellation
// where the platform allows it.
type Device interface {
	Open(ctx context.Context, cfg Config) (Stream, error)
}

// Stream is an open mono duplex stream. Read fills buf with the next
// captured block and Write plays buf; both block until the device is
// ready and take len(buf) == Config.BlockSize. Close unblocks pending
// calls and is idempotent. Read and Write may be called from one
// goroutine while Close is called from another.
type Stream interface {
	Read(buf []float32) error
	Write(buf []float32) error
	Close() error
}

// Info describes an enumerated device.
type Info struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	DefaultInput      bool
	DefaultOutput     bool
}

// Enumerator lists available devices.
type Enumerator interface {
	Devices() ([]Info, error)
}
