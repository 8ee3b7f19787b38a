package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cwbudde/voicegate/device"
	"github.com/cwbudde/voicegate/dsp/effects/dynamics"
	"github.com/cwbudde/voicegate/dsp/gain"
	"github.com/cwbudde/voicegate/dsp/vad"
	"github.com/cwbudde/voicegate/internal/logging"
	"github.com/cwbudde/voicegate/monitor"
	"github.com/cwbudde/voicegate/monitor/topology"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path on top of [Default] and validates it.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of [Default]. Unknown keys
// are rejected. An empty document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent. It returns a joined error listing
// every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if cfg.LogFormat != logging.FormatText && cfg.LogFormat != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log_format %q is invalid; valid values: text, json", cfg.LogFormat))
	}

	if err := cfg.DeviceConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}

	e := cfg.Engine
	if _, err := topology.ParseMode(e.Mode); err != nil {
		errs = append(errs, fmt.Errorf("engine.mode: %w", err))
	}
	if err := gain.ValidateVolume(e.Volume); err != nil {
		errs = append(errs, fmt.Errorf("engine.volume: %w", err))
	}
	if err := vad.ValidateSensitivity(e.Sensitivity); err != nil {
		errs = append(errs, fmt.Errorf("engine.sensitivity: %w", err))
	}
	if e.ControlInterval <= 0 || e.ControlInterval > time.Second {
		errs = append(errs, fmt.Errorf("engine.control_interval %v out of range (0, 1s]", e.ControlInterval))
	}
	if _, err := dynamics.ParseGateMode(e.Gate); err != nil {
		errs = append(errs, fmt.Errorf("engine.gate: %w", err))
	}
	if e.GateRamp <= 0 || e.GateRamp > 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("engine.gate_ramp %v out of range (0, 100ms]", e.GateRamp))
	}
	if e.Hysteresis < 0 || e.Hysteresis >= vad.MaxSensitivity {
		errs = append(errs, fmt.Errorf("engine.hysteresis %v out of range [0, %v)", e.Hysteresis, vad.MaxSensitivity))
	}
	if e.Hold < 0 {
		errs = append(errs, fmt.Errorf("engine.hold %d must be >= 0", e.Hold))
	}

	return errors.Join(errs...)
}

// EngineOptions maps a validated cfg onto engine options for dev.
func (c *Config) EngineOptions(dev device.Device) (monitor.Options, error) {
	mode, err := topology.ParseMode(c.Engine.Mode)
	if err != nil {
		return monitor.Options{}, err
	}
	gate, err := dynamics.ParseGateMode(c.Engine.Gate)
	if err != nil {
		return monitor.Options{}, err
	}

	opts := monitor.DefaultOptions(dev)
	opts.Audio = c.DeviceConfig()
	opts.Mode = mode
	opts.Volume = c.Engine.Volume
	opts.Muted = c.Engine.Muted
	opts.Sensitivity = c.Engine.Sensitivity
	opts.ControlInterval = c.Engine.ControlInterval
	opts.Gate = gate
	opts.GateRampMs = float64(c.Engine.GateRamp) / float64(time.Millisecond)
	opts.Hysteresis = c.Engine.Hysteresis
	opts.HoldTicks = c.Engine.Hold
	return opts, nil
}
