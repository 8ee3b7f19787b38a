package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/voicegate/device"
	"github.com/cwbudde/voicegate/dsp/effects/dynamics"
	"github.com/cwbudde/voicegate/dsp/filter/design"
	"github.com/cwbudde/voicegate/internal/observe"
	"github.com/cwbudde/voicegate/internal/testutil"
	"github.com/cwbudde/voicegate/monitor/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const waitFor = 3 * time.Second

func testOptions(dev device.Device) Options {
	opts := DefaultOptions(dev)
	opts.ControlInterval = 2 * time.Millisecond
	return opts
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func voice(amp float64) device.Source {
	return device.Tones(amp, testutil.VocalTones()...)
}

// waitEvent consumes events until match accepts one.
func waitEvent(t *testing.T, e *Engine, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case ev, ok := <-e.Events():
			require.True(t, ok, "event channel closed")
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func isConnection(c ConnectionState) func(Event) bool {
	return func(ev Event) bool { return ev.Kind == EventConnection && ev.Connection == c }
}

func isError(k ErrorKind) func(Event) bool {
	return func(ev Event) bool { return ev.Kind == EventError && ev.Err != nil && ev.Err.Kind == k }
}

// drain returns the events currently buffered.
func drain(e *Engine) []Event {
	var evs []Event
	for {
		select {
		case ev, ok := <-e.Events():
			if !ok {
				return evs
			}
			evs = append(evs, ev)
		default:
			return evs
		}
	}
}

func TestStartWithoutMicrophone(t *testing.T) {
	dev := device.NewLoopback(device.WithOpenError(device.ErrDeviceUnavailable))
	e := newEngine(t, testOptions(dev))

	err := e.Start(context.Background(), topology.ModeQuality)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)

	var me *Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, KindDeviceUnavailable, me.Kind)
	assert.False(t, me.Retryable())

	st := e.Status()
	assert.Equal(t, Disconnected, st.Connection)
	require.NotNil(t, st.LastError)
	assert.Equal(t, KindDeviceUnavailable, st.LastError.Kind)

	assert.NoError(t, e.Stop())
	assert.NoError(t, e.Stop())
	assert.Equal(t, 0, dev.Live())

	evs := drain(e)
	require.Len(t, evs, 1)
	assert.Equal(t, EventError, evs[0].Kind)
	assert.Equal(t, "no microphone found on this device", evs[0].Err.Message())
}

func TestStartStop(t *testing.T) {
	dev := device.NewLoopback(device.WithRealtime())
	e := newEngine(t, testOptions(dev))

	require.NoError(t, e.Start(context.Background(), topology.ModeQuality))
	ev := waitEvent(t, e, isConnection(Connected))
	assert.Equal(t, topology.ModeQuality, ev.Mode)
	assert.Equal(t, Connected, e.Status().Connection)
	assert.Equal(t, 1, dev.Live())

	require.NoError(t, e.Stop())
	waitEvent(t, e, isConnection(Disconnected))
	assert.Equal(t, Disconnected, e.Status().Connection)
	assert.Equal(t, 0, dev.Live())
	assert.Nil(t, e.Status().LastError)

	require.NoError(t, e.Stop())
	for _, ev := range drain(e) {
		assert.NotEqual(t, EventConnection, ev.Kind, "second stop must not report")
	}
}

func TestStartReplacesLiveSession(t *testing.T) {
	dev := device.NewLoopback(device.WithRealtime())
	e := newEngine(t, testOptions(dev))

	require.NoError(t, e.Start(context.Background(), topology.ModeQuality))
	require.NoError(t, e.Start(context.Background(), topology.ModeLowLatency))

	waitEvent(t, e, isConnection(Connected))
	waitEvent(t, e, isConnection(Disconnected))
	ev := waitEvent(t, e, isConnection(Connected))
	assert.Equal(t, topology.ModeLowLatency, ev.Mode)

	assert.Equal(t, 2, dev.Opened())
	assert.Equal(t, 1, dev.Live())
	assert.Equal(t, topology.ModeLowLatency, e.Status().Mode)
}

func TestVoiceOpensGate(t *testing.T) {
	dev := device.NewLoopback(
		device.WithSource(voice(0.5)),
		device.WithRealtime(),
		device.WithCaptureLimit(4),
	)
	e := newEngine(t, testOptions(dev))
	require.NoError(t, e.Start(context.Background(), topology.ModeLowLatency))

	require.Eventually(t, func() bool {
		st := e.Status()
		return st.Voice.Active && st.Peak > 0
	}, waitFor, 5*time.Millisecond)

	st := e.Status()
	assert.Greater(t, st.Voice.Level, st.Sensitivity)
	assert.Equal(t, 1.0, st.GateGain)
	assert.InDelta(t, 0.8, st.EffectiveGain, 1e-12)

	waitEvent(t, e, func(ev Event) bool { return ev.Kind == EventVoice && ev.Voice.Active })

	t.Run("mute silences output", func(t *testing.T) {
		e.SetMuted(true)
		assert.Equal(t, 0.0, e.Status().EffectiveGain)

		start := dev.Blocks()
		require.Eventually(t, func() bool { return dev.Blocks() > start+8 }, waitFor, 5*time.Millisecond)
		for _, blk := range dev.Written() {
			for _, v := range blk {
				require.Zero(t, v)
			}
		}
	})

	t.Run("unmute restores volume", func(t *testing.T) {
		e.SetMuted(false)
		st := e.Status()
		assert.Equal(t, 1.0, st.Volume)
		assert.InDelta(t, 0.8, st.EffectiveGain, 1e-12)

		start := dev.Blocks()
		require.Eventually(t, func() bool { return dev.Blocks() > start+8 }, waitFor, 5*time.Millisecond)
		nonZero := false
		for _, blk := range dev.Written() {
			for _, v := range blk {
				nonZero = nonZero || v != 0
			}
		}
		assert.True(t, nonZero)
	})
}

func TestQuietInputStaysGated(t *testing.T) {
	dev := device.NewLoopback(
		device.WithSource(voice(1e-5)),
		device.WithRealtime(),
		device.WithCaptureLimit(8),
	)
	e := newEngine(t, testOptions(dev))
	require.NoError(t, e.Start(context.Background(), topology.ModeLowLatency))

	require.Eventually(t, func() bool { return dev.Blocks() > 16 }, waitFor, 5*time.Millisecond)

	st := e.Status()
	assert.False(t, st.Voice.Active)
	assert.Less(t, st.Voice.Level, st.Sensitivity)
	for _, blk := range dev.Written() {
		for _, v := range blk {
			require.Zero(t, v)
		}
	}
}

func TestSetModeRequiresRestart(t *testing.T) {
	dev := device.NewLoopback(device.WithRealtime())
	e := newEngine(t, testOptions(dev))
	require.NoError(t, e.Start(context.Background(), topology.ModeQuality))

	require.NoError(t, e.SetMode(topology.ModeLowLatency))
	st := e.Status()
	assert.Equal(t, Connected, st.Connection)
	assert.Equal(t, topology.ModeQuality, st.Mode)
	assert.Equal(t, topology.ModeLowLatency, st.PendingMode)
	assert.InDelta(t, 0.7, st.EffectiveGain, 1e-12, "quality governor still active")
	assert.Equal(t, 1, dev.Opened())

	require.NoError(t, e.Restart(context.Background()))
	st = e.Status()
	assert.Equal(t, topology.ModeLowLatency, st.Mode)
	assert.InDelta(t, 0.8, st.EffectiveGain, 1e-12)
	assert.Equal(t, 2, dev.Opened())
	assert.Equal(t, 1, dev.Live())
}

func TestDeviceLost(t *testing.T) {
	dev := device.NewLoopback(device.WithFailAfter(3, device.ErrDeviceLost))
	e := newEngine(t, testOptions(dev))
	require.NoError(t, e.Start(context.Background(), topology.ModeQuality))

	ev := waitEvent(t, e, isError(KindDeviceLost))
	assert.ErrorIs(t, ev.Err, ErrDeviceLost)
	waitEvent(t, e, isConnection(Disconnected))

	require.Eventually(t, func() bool { return e.Status().Connection == Disconnected }, waitFor, time.Millisecond)
	assert.Equal(t, 0, dev.Live())
	assert.Equal(t, 3, dev.Blocks())
	assert.NoError(t, e.Stop())
}

func TestProcessingFault(t *testing.T) {
	good := make([]float32, 256)
	bad := make([]float32, 256)
	bad[10] = float32(math.NaN())

	dev := device.NewLoopback(device.WithSource(device.Script(good, good, bad)))
	e := newEngine(t, testOptions(dev))
	require.NoError(t, e.Start(context.Background(), topology.ModeQuality))

	ev := waitEvent(t, e, isError(KindProcessingFault))
	assert.ErrorIs(t, ev.Err, ErrProcessingFault)
	assert.ErrorIs(t, ev.Err, topology.ErrNonFinite)
	waitEvent(t, e, isConnection(Disconnected))

	assert.Equal(t, 2, dev.Blocks(), "faulted block never reaches the sink")
	assert.Equal(t, 0, dev.Live())
}

// flakyDevice fails the first opens with the queued errors.
type flakyDevice struct {
	mu   sync.Mutex
	errs []error
	dev  device.Device
}

func (f *flakyDevice) Open(ctx context.Context, cfg device.Config) (device.Stream, error) {
	f.mu.Lock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()
	return f.dev.Open(ctx, cfg)
}

func TestPermissionDeniedRetry(t *testing.T) {
	lb := device.NewLoopback(device.WithRealtime())
	dev := &flakyDevice{errs: []error{device.ErrPermissionDenied}, dev: lb}
	e := newEngine(t, testOptions(dev))

	assert.ErrorIs(t, e.RetryPermission(context.Background()), ErrNothingToRetry)

	err := e.Start(context.Background(), topology.ModeLowLatency)
	require.ErrorIs(t, err, ErrPermissionDenied)
	var me *Error
	require.True(t, errors.As(err, &me))
	assert.True(t, me.Retryable())
	waitEvent(t, e, isError(KindPermissionDenied))

	require.NoError(t, e.RetryPermission(context.Background()))
	ev := waitEvent(t, e, isConnection(Connected))
	assert.Equal(t, topology.ModeLowLatency, ev.Mode)

	assert.ErrorIs(t, e.RetryPermission(context.Background()), ErrNothingToRetry)
}

func TestUnsupportedConfiguration(t *testing.T) {
	t.Run("graph rejects sample rate", func(t *testing.T) {
		dev := device.NewLoopback()
		opts := testOptions(dev)
		opts.Audio.SampleRate = 8000
		e := newEngine(t, opts)

		err := e.Start(context.Background(), topology.ModeQuality)
		require.ErrorIs(t, err, ErrUnsupportedConfiguration)
		var me *Error
		require.True(t, errors.As(err, &me))
		assert.Equal(t, "sample_rate", me.Param)
		assert.Equal(t, 0, dev.Opened(), "device untouched when the graph fails")
	})

	t.Run("device rejects parameter", func(t *testing.T) {
		dev := device.NewLoopback(device.WithOpenError(&device.ConfigError{Param: "channels", Value: 1}))
		e := newEngine(t, testOptions(dev))

		err := e.Start(context.Background(), topology.ModeQuality)
		require.ErrorIs(t, err, ErrUnsupportedConfiguration)
		var me *Error
		require.True(t, errors.As(err, &me))
		assert.Equal(t, "channels", me.Param)
		assert.Contains(t, me.Error(), "(channels)")
	})
}

func TestSmoothGateRampValidatedUpFront(t *testing.T) {
	opts := testOptions(device.NewLoopback())
	opts.Gate = dynamics.GateSmooth
	opts.GateRampMs = 0

	_, err := New(opts)
	require.ErrorIs(t, err, dynamics.ErrInvalidGateRamp)

	// The ramp is irrelevant to a hard gate.
	opts.Gate = dynamics.GateHard
	_, err = New(opts)
	require.NoError(t, err)
}

func TestBuildParam(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("topology: build quality: bank: stage 1: %w", design.ErrInvalidFrequency), "sample_rate"},
		{fmt.Errorf("wrapped: %w", design.ErrInvalidSampleRate), "sample_rate"},
		{fmt.Errorf("topology: %w", dynamics.ErrInvalidGateRamp), "gate_ramp"},
		{fmt.Errorf("bank: stage 0: %w", design.ErrInvalidQ), "audio"},
		{errors.New("anything else"), "audio"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, buildParam(tt.err), tt.err.Error())
	}
}

func TestStartCanceled(t *testing.T) {
	dev := device.NewLoopback()
	e := newEngine(t, testOptions(dev))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Start(ctx, topology.ModeQuality)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Disconnected, e.Status().Connection)
	assert.Empty(t, drain(e))
}

func TestCommandValidation(t *testing.T) {
	e := newEngine(t, testOptions(device.NewLoopback()))

	for _, v := range []float64{-0.1, 2.01, math.NaN()} {
		assert.ErrorIs(t, e.SetVolume(v), ErrInvalidArgument, "volume %v", v)
	}
	for _, s := range []float64{0.01, 0.51, math.NaN()} {
		assert.ErrorIs(t, e.SetSensitivity(s), ErrInvalidArgument, "sensitivity %v", s)
	}
	assert.ErrorIs(t, e.SetMode(topology.Mode(9)), ErrInvalidArgument)
	assert.ErrorIs(t, e.Start(context.Background(), topology.Mode(9)), ErrInvalidArgument)

	require.NoError(t, e.SetVolume(2))
	require.NoError(t, e.SetSensitivity(0.3))
	e.SetMuted(true)

	st := e.Status()
	assert.Equal(t, 2.0, st.Volume)
	assert.Equal(t, 0.3, st.Sensitivity)
	assert.True(t, st.Muted)
	assert.Equal(t, 0.0, st.EffectiveGain)
}

func TestVolumeCeiling(t *testing.T) {
	dev := device.NewLoopback(device.WithRealtime())
	e := newEngine(t, testOptions(dev))
	require.NoError(t, e.Start(context.Background(), topology.ModeLowLatency))

	for _, v := range []float64{0, 0.5, 1, 1.5, 2} {
		require.NoError(t, e.SetVolume(v))
		g := e.Status().EffectiveGain
		assert.InDelta(t, v*0.8, g, 1e-12)
		assert.LessOrEqual(t, g, 2*0.8)
	}
}

func TestLevelsCarryIntoNextSession(t *testing.T) {
	dev := device.NewLoopback(device.WithRealtime())
	e := newEngine(t, testOptions(dev))

	require.NoError(t, e.SetVolume(1.5))
	e.SetMuted(true)
	require.NoError(t, e.Start(context.Background(), topology.ModeQuality))
	assert.Equal(t, 0.0, e.Status().EffectiveGain)

	e.SetMuted(false)
	assert.InDelta(t, 1.5*0.7, e.Status().EffectiveGain, 1e-12)
}

func TestCloseClosesEvents(t *testing.T) {
	dev := device.NewLoopback(device.WithRealtime())
	e, err := New(testOptions(dev))
	require.NoError(t, err)
	require.NoError(t, e.Start(context.Background(), topology.ModeQuality))

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.Equal(t, 0, dev.Live())

	var last Event
	for ev := range e.Events() {
		last = ev
	}
	assert.Equal(t, EventConnection, last.Kind)
	assert.Equal(t, Disconnected, last.Connection)

	assert.ErrorIs(t, e.Start(context.Background(), topology.ModeQuality), ErrClosed)
	assert.NoError(t, e.Stop())
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions(device.NewLoopback()).Validate())

	opts := DefaultOptions(nil)
	opts.ControlInterval = 0
	opts.Volume = 3
	opts.Sensitivity = 1
	opts.Mode = topology.Mode(5)
	err := opts.Validate()
	require.Error(t, err)
	for _, want := range []string{"device is required", "control interval", "volume", "sensitivity", "unknown mode"} {
		assert.Contains(t, err.Error(), want)
	}

	_, err = New(opts)
	assert.Error(t, err)
}

func TestMetricsRecorded(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	dev := device.NewLoopback(device.WithSource(voice(0.5)), device.WithRealtime())
	opts := testOptions(dev)
	opts.Metrics = m
	e := newEngine(t, opts)

	require.NoError(t, e.Start(context.Background(), topology.ModeLowLatency))
	require.Eventually(t, func() bool { return e.Status().Voice.Active }, waitFor, 5*time.Millisecond)
	require.NoError(t, e.Stop())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if s, ok := md.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range s.DataPoints {
					sums[md.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), sums["voicegate.sessions.started"])
	assert.Equal(t, int64(0), sums["voicegate.sessions.active"])
	assert.Positive(t, sums["voicegate.control.ticks"])
	assert.Positive(t, sums["voicegate.render.blocks"])
	assert.GreaterOrEqual(t, sums["voicegate.gate.transitions"], int64(1))
}
