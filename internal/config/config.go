// Package config loads the voicegate YAML configuration.
package config

import (
	"time"

	"github.com/cwbudde/voicegate/device"
	"github.com/cwbudde/voicegate/dsp/effects/dynamics"
	"github.com/cwbudde/voicegate/dsp/gain"
	"github.com/cwbudde/voicegate/dsp/vad"
	"github.com/cwbudde/voicegate/monitor"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root of the configuration file.
type Config struct {
	LogLevel  LogLevel      `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	Audio     AudioConfig   `yaml:"audio"`
	Engine    EngineConfig  `yaml:"engine"`
	Metrics   MetricsConfig `yaml:"metrics"`
}

// AudioConfig selects the devices and stream format.
type AudioConfig struct {
	SampleRate   float64 `yaml:"sample_rate"`
	BlockSize    int     `yaml:"block_size"`
	InputDevice  int     `yaml:"input_device"`
	OutputDevice int     `yaml:"output_device"`
}

// EngineConfig holds the initial command state and the gate settings.
type EngineConfig struct {
	Mode            string        `yaml:"mode"`
	Volume          float64       `yaml:"volume"`
	Muted           bool          `yaml:"muted"`
	Sensitivity     float64       `yaml:"sensitivity"`
	ControlInterval time.Duration `yaml:"control_interval"`
	Gate            string        `yaml:"gate"`
	GateRamp        time.Duration `yaml:"gate_ramp"`
	Hysteresis      float64       `yaml:"hysteresis"`
	Hold            int           `yaml:"hold"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	dc := device.DefaultConfig()
	return &Config{
		LogLevel:  LogInfo,
		LogFormat: "text",
		Audio: AudioConfig{
			SampleRate:   dc.SampleRate,
			BlockSize:    dc.BlockSize,
			InputDevice:  dc.InputDevice,
			OutputDevice: dc.OutputDevice,
		},
		Engine: EngineConfig{
			Mode:            "quality",
			Volume:          gain.DefaultVolume,
			Sensitivity:     vad.DefaultSensitivity,
			ControlInterval: monitor.DefaultControlInterval,
			Gate:            dynamics.GateHard.String(),
			GateRamp:        time.Duration(dynamics.DefaultGateRampMs * float64(time.Millisecond)),
		},
	}
}

// DeviceConfig returns the stream configuration.
func (c *Config) DeviceConfig() device.Config {
	return device.Config{
		SampleRate:   c.Audio.SampleRate,
		BlockSize:    c.Audio.BlockSize,
		InputDevice:  c.Audio.InputDevice,
		OutputDevice: c.Audio.OutputDevice,
	}
}
