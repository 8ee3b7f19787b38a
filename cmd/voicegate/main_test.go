package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/voicegate/device"
	"github.com/cwbudde/voicegate/dsp/core"
	"github.com/cwbudde/voicegate/dsp/vad"
	"github.com/cwbudde/voicegate/internal/config"
	"github.com/cwbudde/voicegate/monitor"
	"github.com/cwbudde/voicegate/monitor/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	calls  []string
	status monitor.Status
	err    error
}

func (f *fakeEngine) Start(_ context.Context, m topology.Mode) error {
	f.calls = append(f.calls, "start "+m.String())
	return f.err
}
func (f *fakeEngine) Stop() error { f.calls = append(f.calls, "stop"); return nil }
func (f *fakeEngine) Restart(context.Context) error {
	f.calls = append(f.calls, "restart")
	return nil
}
func (f *fakeEngine) RetryPermission(context.Context) error {
	f.calls = append(f.calls, "retry")
	return nil
}
func (f *fakeEngine) SetMode(m topology.Mode) error {
	f.calls = append(f.calls, "mode "+m.String())
	f.status.PendingMode = m
	return nil
}
func (f *fakeEngine) SetVolume(v float64) error {
	if v > 2 {
		return monitor.ErrInvalidArgument
	}
	f.status.Volume = v
	return nil
}
func (f *fakeEngine) SetMuted(m bool) { f.status.Muted = m }
func (f *fakeEngine) SetSensitivity(s float64) error {
	f.status.Sensitivity = s
	return nil
}
func (f *fakeEngine) Status() monitor.Status { return f.status }

func TestExecute(t *testing.T) {
	f := &fakeEngine{status: monitor.Status{PendingMode: topology.ModeLowLatency}}
	ctx := context.Background()
	var out bytes.Buffer

	for _, line := range []string{
		"start", "start quality", "stop", "mode low-latency", "restart", "retry",
		"volume 1.25", "mute", "sens 0.2", "", "   ",
	} {
		require.NoError(t, execute(ctx, f, line, &out), line)
	}
	assert.Equal(t, []string{
		"start low-latency", "start quality", "stop", "mode low-latency", "restart", "retry",
	}, f.calls)
	assert.Equal(t, 1.25, f.status.Volume)
	assert.True(t, f.status.Muted)
	assert.Equal(t, 0.2, f.status.Sensitivity)

	require.NoError(t, execute(ctx, f, "unmute", &out))
	assert.False(t, f.status.Muted)

	assert.ErrorIs(t, execute(ctx, f, "volume 3", &out), monitor.ErrInvalidArgument)
	assert.Error(t, execute(ctx, f, "volume loud", &out))
	assert.Error(t, execute(ctx, f, "volume", &out))
	assert.Error(t, execute(ctx, f, "mode turbo", &out))
	assert.Error(t, execute(ctx, f, "dance", &out))
	assert.ErrorIs(t, execute(ctx, f, "quit", &out), errQuit)

	out.Reset()
	require.NoError(t, execute(ctx, f, "help", &out))
	assert.Contains(t, out.String(), "sensitivity")

	out.Reset()
	require.NoError(t, execute(ctx, f, "status", &out))
	assert.Contains(t, out.String(), "low-latency")
}

func TestReadCommands(t *testing.T) {
	f := &fakeEngine{err: errors.New("no mic")}
	var out bytes.Buffer

	quit := readCommands(context.Background(), f, strings.NewReader("start\nbogus\nquit\nstop\n"), &out)
	assert.True(t, quit)
	assert.Equal(t, []string{"start quality"}, f.calls)
	assert.Contains(t, out.String(), "no mic")
	assert.Contains(t, out.String(), "unknown command")

	f.calls = nil
	quit = readCommands(context.Background(), f, strings.NewReader("stop\n"), &out)
	assert.False(t, quit, "EOF is not quit")
	assert.Equal(t, []string{"stop"}, f.calls)
}

func TestRenderEvent(t *testing.T) {
	now := time.Now()
	conn := renderEvent(monitor.Event{Kind: monitor.EventConnection, Connection: monitor.Connected, Mode: topology.ModeQuality, Time: now}, 0.1)
	assert.Contains(t, conn, "connected")
	assert.Contains(t, conn, "quality")

	errLine := renderEvent(monitor.Event{
		Kind: monitor.EventError,
		Time: now,
		Err:  &monitor.Error{Kind: monitor.KindPermissionDenied},
	}, 0.1)
	assert.Contains(t, errLine, "permission-denied")
	assert.Contains(t, errLine, "retry")

	voice := renderEvent(monitor.Event{Kind: monitor.EventVoice, Time: now, Voice: vad.Decision{Level: 0.4, Active: true}}, 0.1)
	assert.Contains(t, voice, "voice")
	assert.Contains(t, voice, "0.400")
}

func TestRenderMeterBounds(t *testing.T) {
	for _, level := range []float64{-1, 0, 0.5, 1, 3} {
		m := renderMeter(level, 0.1, false)
		assert.Contains(t, m, "idle")
	}
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	infos, err := device.NewLoopback().Devices()
	require.NoError(t, err)
	require.NoError(t, printDevices(&buf, infos))
	assert.Contains(t, buf.String(), "loopback")
	assert.Contains(t, buf.String(), "in/out")

	buf.Reset()
	require.NoError(t, printDevices(&buf, nil))
	assert.Contains(t, buf.String(), "no audio devices")
}

func TestPrintRecipe(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRecipe(&buf, topology.ModeQuality, core.DefaultProcessorConfig()))
	out := buf.String()
	assert.Contains(t, out, "5.80 ms")
	assert.Contains(t, out, "highpass")
	assert.Contains(t, out, "notch")
	assert.Contains(t, out, "2048")
	assert.Contains(t, out, "300-3400 Hz")

	buf.Reset()
	require.NoError(t, printRecipe(&buf, topology.ModeLowLatency, core.DefaultProcessorConfig()))
	assert.Contains(t, buf.String(), "bandpass")
	assert.Contains(t, buf.String(), "source")

	assert.Error(t, printRecipe(&buf, topology.ModeQuality, core.ProcessorConfig{SampleRate: 8000, BlockSize: 256}))
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	vol, sens, in := 1.5, 0.25, 3
	r := &RunCmd{Mode: "low-latency", Volume: &vol, Sensitivity: &sens, Input: &in, Muted: true, Metrics: ":0"}
	cfg := config.Default()
	require.NoError(t, r.apply(cfg))
	assert.Equal(t, "low-latency", cfg.Engine.Mode)
	assert.Equal(t, 1.5, cfg.Engine.Volume)
	assert.Equal(t, 0.25, cfg.Engine.Sensitivity)
	assert.Equal(t, 3, cfg.Audio.InputDevice)
	assert.True(t, cfg.Engine.Muted)
	assert.Equal(t, ":0", cfg.Metrics.Listen)

	bad := 9.0
	r = &RunCmd{Volume: &bad}
	assert.Error(t, r.apply(config.Default()))
}
