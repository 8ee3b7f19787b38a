// Package portaudio implements device.Device on top of a blocking duplex
// PortAudio stream.
//
// PortAudio has no notion of microphone permission: a platform that
// denies access typically delivers silence instead of failing, so this
// adapter never reports device.ErrPermissionDenied.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cwbudde/voicegate/device"
	pa "github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// paStream abstracts a PortAudio stream for testing.
type paStream interface {
	Start() error
	Stop() error
	Close() error
	Read() error
	Write() error
}

// backend is the slice of the PortAudio API the adapter uses.
type backend struct {
	devices       func() ([]*pa.DeviceInfo, error)
	defaultInput  func() (*pa.DeviceInfo, error)
	defaultOutput func() (*pa.DeviceInfo, error)
	openStream    func(p pa.StreamParameters, in, out []float32) (paStream, error)
}

func nativeBackend() backend {
	return backend{
		devices:       pa.Devices,
		defaultInput:  pa.DefaultInputDevice,
		defaultOutput: pa.DefaultOutputDevice,
		openStream: func(p pa.StreamParameters, in, out []float32) (paStream, error) {
			return pa.OpenStream(p, in, out)
		},
	}
}

// Device opens mono duplex streams on PortAudio devices.
type Device struct {
	be        backend
	terminate func() error
	once      sync.Once
}

// New initializes PortAudio. Call Close when done with the device.
func New() (*Device, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", mapOpenError(err))
	}
	return &Device{be: nativeBackend(), terminate: pa.Terminate}, nil
}

// Close terminates PortAudio. Streams must be closed first.
func (d *Device) Close() error {
	var err error
	d.once.Do(func() {
		if d.terminate != nil {
			err = d.terminate()
		}
	})
	return err
}

// Open implements device.Device. ctx is only checked before acquisition
// because PortAudio cannot abort an open in progress.
func (d *Device) Open(ctx context.Context, cfg device.Config) (device.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	devices, err := d.be.devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", mapOpenError(err))
	}

	inputDev, err := resolveDevice(devices, cfg.InputDevice, d.be.defaultInput)
	if err != nil {
		return nil, fmt.Errorf("portaudio: input: %w", mapOpenError(err))
	}
	if inputDev.MaxInputChannels < 1 {
		return nil, fmt.Errorf("%w: %q has no input channels", device.ErrDeviceUnavailable, inputDev.Name)
	}

	outputDev, err := resolveDevice(devices, cfg.OutputDevice, d.be.defaultOutput)
	if err != nil {
		return nil, fmt.Errorf("portaudio: output: %w", mapOpenError(err))
	}
	if outputDev.MaxOutputChannels < 1 {
		return nil, fmt.Errorf("%w: %q has no output channels", device.ErrDeviceUnavailable, outputDev.Name)
	}

	in := make([]float32, cfg.BlockSize)
	out := make([]float32, cfg.BlockSize)
	params := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   inputDev,
			Channels: 1,
			Latency:  inputDev.DefaultLowInputLatency,
		},
		Output: pa.StreamDeviceParameters{
			Device:   outputDev,
			Channels: 1,
			Latency:  outputDev.DefaultLowOutputLatency,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.BlockSize,
	}

	ps, err := d.be.openStream(params, in, out)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open stream: %w", mapConfigError(err, cfg))
	}
	if err := ps.Start(); err != nil {
		ps.Close()
		return nil, fmt.Errorf("portaudio: start stream: %w", mapOpenError(err))
	}

	logrus.WithFields(logrus.Fields{
		"component":   "portaudio",
		"input":       inputDev.Name,
		"output":      outputDev.Name,
		"sample_rate": cfg.SampleRate,
		"block_size":  cfg.BlockSize,
	}).Info("Stream started")

	return &stream{ps: ps, in: in, out: out}, nil
}

// Devices implements device.Enumerator.
func (d *Device) Devices() ([]device.Info, error) {
	devices, err := d.be.devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", mapOpenError(err))
	}
	defIn, _ := d.be.defaultInput()
	defOut, _ := d.be.defaultOutput()
	return listDevices(devices, defIn, defOut), nil
}

func listDevices(devices []*pa.DeviceInfo, defIn, defOut *pa.DeviceInfo) []device.Info {
	infos := make([]device.Info, 0, len(devices))
	for i, d := range devices {
		if d.MaxInputChannels < 1 && d.MaxOutputChannels < 1 {
			continue
		}
		infos = append(infos, device.Info{
			ID:                i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			MaxOutputChannels: d.MaxOutputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			DefaultInput:      d == defIn,
			DefaultOutput:     d == defOut,
		})
	}
	return infos
}

// resolveDevice returns the device at idx if valid, otherwise calls fallback.
func resolveDevice(devices []*pa.DeviceInfo, idx int, fallback func() (*pa.DeviceInfo, error)) (*pa.DeviceInfo, error) {
	if idx >= 0 {
		if idx < len(devices) {
			return devices[idx], nil
		}
		return nil, fmt.Errorf("%w: no device with index %d", device.ErrDeviceUnavailable, idx)
	}
	return fallback()
}

// mapOpenError classifies failures while acquiring a device.
func mapOpenError(err error) error {
	var pe pa.Error
	if !errors.As(err, &pe) {
		return err
	}
	switch pe {
	case pa.NoDefaultInputDevice, pa.NoDefaultOutputDevice,
		pa.DeviceUnavailable, pa.InvalidDevice, pa.HostApiNotFound:
		return fmt.Errorf("%w: %w", device.ErrDeviceUnavailable, err)
	}
	return err
}

// mapConfigError classifies stream open failures, naming the parameter
// PortAudio rejected where it is known.
func mapConfigError(err error, cfg device.Config) error {
	var pe pa.Error
	if !errors.As(err, &pe) {
		return err
	}
	var ce *device.ConfigError
	switch pe {
	case pa.InvalidSampleRate:
		ce = &device.ConfigError{Param: "sample_rate", Value: cfg.SampleRate}
	case pa.BufferTooBig, pa.BufferTooSmall:
		ce = &device.ConfigError{Param: "block_size", Value: cfg.BlockSize}
	case pa.InvalidChannelCount:
		ce = &device.ConfigError{Param: "channels", Value: 1}
	case pa.SampleFormatNotSupported:
		ce = &device.ConfigError{Param: "sample_format", Value: "float32"}
	case pa.BadIODeviceCombination:
		ce = &device.ConfigError{Param: "device_combination", Value: fmt.Sprintf("%d/%d", cfg.InputDevice, cfg.OutputDevice)}
	default:
		return mapOpenError(err)
	}
	return fmt.Errorf("%w (%w)", ce, err)
}

// mapStreamError classifies failures of a running stream. Overflow and
// underflow only cost a block and are not reported.
func mapStreamError(err error) error {
	var pe pa.Error
	if errors.As(err, &pe) {
		switch pe {
		case pa.InputOverflowed, pa.OutputUnderflowed:
			return nil
		case pa.StreamIsStopped:
			return device.ErrClosed
		}
	}
	return fmt.Errorf("%w: %w", device.ErrDeviceLost, err)
}

// stream adapts a blocking paStream to device.Stream.
//
// Stop is thread-safe and makes a blocked Read or Write return, so Close
// stops first and then waits for the I/O lock before freeing the native
// stream.
type stream struct {
	ps  paStream
	in  []float32
	out []float32

	io     sync.Mutex
	mu     sync.Mutex
	closed bool
}

func (s *stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stream) Read(buf []float32) error {
	if len(buf) != len(s.in) {
		return fmt.Errorf("portaudio: block of %d samples, stream block size %d", len(buf), len(s.in))
	}
	s.io.Lock()
	defer s.io.Unlock()
	if s.isClosed() {
		return device.ErrClosed
	}
	if err := s.ps.Read(); err != nil {
		if s.isClosed() {
			return device.ErrClosed
		}
		if err := mapStreamError(err); err != nil {
			return err
		}
	}
	copy(buf, s.in)
	return nil
}

func (s *stream) Write(buf []float32) error {
	if len(buf) != len(s.out) {
		return fmt.Errorf("portaudio: block of %d samples, stream block size %d", len(buf), len(s.out))
	}
	s.io.Lock()
	defer s.io.Unlock()
	if s.isClosed() {
		return device.ErrClosed
	}
	copy(s.out, buf)
	if err := s.ps.Write(); err != nil {
		if s.isClosed() {
			return device.ErrClosed
		}
		return mapStreamError(err)
	}
	return nil
}

func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	stopErr := s.ps.Stop()

	s.io.Lock()
	defer s.io.Unlock()
	closeErr := s.ps.Close()

	logrus.WithField("component", "portaudio").Info("Stream closed")
	return errors.Join(stopErr, closeErr)
}
