// Package monitor runs the live voice monitor: it binds a device stream to
// a topology graph, drives the render and control loops, and exposes the
// command and status surface used by a host application.
//
// At most one session is live at a time. Commands are serialized; volume,
// mute and sensitivity changes reach a running session immediately, while
// a mode change only applies to the next Start or Restart.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/voicegate/device"
	"github.com/cwbudde/voicegate/dsp/effects/dynamics"
	"github.com/cwbudde/voicegate/dsp/filter/design"
	"github.com/cwbudde/voicegate/dsp/gain"
	"github.com/cwbudde/voicegate/dsp/vad"
	"github.com/cwbudde/voicegate/internal/observe"
	"github.com/cwbudde/voicegate/monitor/topology"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultControlInterval is the cadence of the analysis loop.
	DefaultControlInterval = 16 * time.Millisecond
	// DefaultEventBuffer is the capacity of the event channel.
	DefaultEventBuffer = 64
)

// Options configures an Engine.
type Options struct {
	Device device.Device
	Audio  device.Config

	Gate       dynamics.GateMode
	GateRampMs float64
	Hysteresis float64
	HoldTicks  int

	ControlInterval time.Duration

	// Initial command state.
	Mode        topology.Mode
	Volume      float64
	Muted       bool
	Sensitivity float64

	EventBuffer int
	// Metrics defaults to observe.Discard.
	Metrics *observe.Metrics
}

// DefaultOptions returns the defaults for dev.
func DefaultOptions(dev device.Device) Options {
	return Options{
		Device:          dev,
		Audio:           device.DefaultConfig(),
		Gate:            dynamics.GateHard,
		GateRampMs:      dynamics.DefaultGateRampMs,
		ControlInterval: DefaultControlInterval,
		Mode:            topology.ModeQuality,
		Volume:          gain.DefaultVolume,
		Sensitivity:     vad.DefaultSensitivity,
		EventBuffer:     DefaultEventBuffer,
	}
}

// Validate checks every option and reports all problems at once.
func (o Options) Validate() error {
	var errs []error
	if o.Device == nil {
		errs = append(errs, errors.New("device is required"))
	}
	if o.ControlInterval <= 0 || o.ControlInterval > time.Second {
		errs = append(errs, fmt.Errorf("control interval %v out of range (0, 1s]", o.ControlInterval))
	}
	if !o.Mode.Valid() {
		errs = append(errs, fmt.Errorf("%w: %v", topology.ErrUnknownMode, o.Mode))
	}
	if err := gain.ValidateVolume(o.Volume); err != nil {
		errs = append(errs, err)
	}
	if err := vad.ValidateSensitivity(o.Sensitivity); err != nil {
		errs = append(errs, err)
	}
	if o.EventBuffer < 4 {
		errs = append(errs, fmt.Errorf("event buffer %d too small", o.EventBuffer))
	}
	if err := o.topology().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (o Options) topology() topology.Options {
	return topology.Options{
		SampleRate: o.Audio.SampleRate,
		BlockSize:  o.Audio.BlockSize,
		Gate:       o.Gate,
		GateRampMs: o.GateRampMs,
		Hysteresis: o.Hysteresis,
		HoldTicks:  o.HoldTicks,
	}
}

// Engine owns the session lifecycle and the command state.
type Engine struct {
	opts    Options
	metrics *observe.Metrics
	log     *logrus.Entry
	events  chan Event

	sensitivity atomic.Uint64 // float64 bits, read by the control loop

	mu               sync.Mutex
	closed           bool
	sess             *session
	nextID           uint64
	mode             topology.Mode // of the live or last session
	pending          topology.Mode
	lastStart        topology.Mode
	permissionFailed bool
	volume           float64
	muted            bool
	lastErr          *Error
	lastDecision     vad.Decision
}

// New validates opts and returns an idle engine.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}
	m := opts.Metrics
	if m == nil {
		m = observe.Discard()
	}

	e := &Engine{
		opts:    opts,
		metrics: m,
		log:     logrus.WithField("component", "engine"),
		events:  make(chan Event, opts.EventBuffer),
		mode:    opts.Mode,
		pending: opts.Mode,
		volume:  opts.Volume,
		muted:   opts.Muted,
	}
	e.sensitivity.Store(math.Float64bits(opts.Sensitivity))
	return e, nil
}

// Events delivers status events. Connection and error events are kept in
// a reserved part of the buffer; voice events are dropped while the
// consumer lags. The channel is closed by Close.
func (e *Engine) Events() <-chan Event { return e.events }

// Start opens a session in mode, tearing down any live session first.
// ctx bounds device acquisition only. Failures are returned as *Error
// and leave no session or device binding behind.
func (e *Engine) Start(ctx context.Context, mode topology.Mode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(ctx, mode)
}

// Restart tears down the live session, if any, and starts the pending
// mode. A mode switch drops the audio between the last block of the old
// session and the first block of the new one.
//
// Restart does not use Controller.Rebuild: the old session is stopped and
// its controller torn down before the new device is opened, and each
// session owns its own controller.
func (e *Engine) Restart(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(ctx, e.pending)
}

// RetryPermission repeats the last Start after it failed with
// KindPermissionDenied.
func (e *Engine) RetryPermission(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.permissionFailed {
		return ErrNothingToRetry
	}
	e.log.WithField("mode", e.lastStart.String()).Info("Retrying microphone access")
	return e.startLocked(ctx, e.lastStart)
}

func (e *Engine) startLocked(ctx context.Context, mode topology.Mode) error {
	if e.closed {
		return ErrClosed
	}
	if !mode.Valid() {
		return invalidArgument("mode", mode, topology.ErrUnknownMode)
	}
	if e.sess != nil {
		e.stopLocked()
	}
	e.lastStart = mode
	e.pending = mode
	e.permissionFailed = false

	s, err := e.open(ctx, mode)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return err
		}
		merr := classify(err)
		e.permissionFailed = merr.Kind == KindPermissionDenied
		e.fail(merr)
		return merr
	}

	e.sess = s
	e.mode = mode
	e.lastErr = nil
	e.lastDecision = vad.Decision{}
	s.start()
	go e.watch(s)

	e.metrics.RecordSessionStart(context.Background(), mode.String())
	e.log.WithFields(logrus.Fields{
		"session":     s.id,
		"mode":        mode.String(),
		"sample_rate": e.opts.Audio.SampleRate,
		"block_size":  e.opts.Audio.BlockSize,
	}).Info("Session started")
	e.emit(Event{Kind: EventConnection, Connection: Connected, Mode: mode})
	return nil
}

// buildParam names the setting a graph construction error points at.
func buildParam(err error) string {
	switch {
	case errors.Is(err, design.ErrInvalidSampleRate), errors.Is(err, design.ErrInvalidFrequency):
		return "sample_rate"
	case errors.Is(err, dynamics.ErrInvalidGateRamp):
		return "gate_ramp"
	}
	return "audio"
}

// open builds the graph before touching the device so that a graph
// failure never holds a device binding.
func (e *Engine) open(ctx context.Context, mode topology.Mode) (*session, error) {
	ctrl, err := topology.NewController(e.opts.topology())
	if err != nil {
		return nil, &Error{Kind: KindUnsupportedConfiguration, Param: "audio", Err: err}
	}
	g, err := ctrl.Build(mode, topology.Levels{Volume: e.volume, Muted: e.muted})
	if err != nil {
		return nil, &Error{Kind: KindUnsupportedConfiguration, Param: buildParam(err), Err: err}
	}

	stream, err := e.opts.Device.Open(ctx, e.opts.Audio)
	if err != nil {
		ctrl.Teardown()
		return nil, err
	}

	e.nextID++
	return &session{
		id:       e.nextID,
		mode:     mode,
		ctrl:     ctrl,
		graph:    g,
		stream:   stream,
		interval: e.opts.ControlInterval,
		metrics:  e.metrics,
		hooks: tickHooks{
			sensitivity: e.Sensitivity,
			decision: func(d vad.Decision) {
				e.emit(Event{Kind: EventVoice, Mode: mode, Voice: d})
			},
		},
	}, nil
}

// Stop tears down the live session. It is a no-op without one.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.stopLocked()
	return nil
}

func (e *Engine) stopLocked() {
	s := e.sess
	if s == nil {
		return
	}
	e.sess = nil
	s.stop()
	e.finish(s)
}

// watch waits for a session to end on its own and reports why.
func (e *Engine) watch(s *session) {
	<-s.done
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess != s {
		return // stopped by a command, already reported
	}
	e.sess = nil
	e.finish(s)
}

// finish reports the end of s. Called with mu held.
func (e *Engine) finish(s *session) {
	e.lastDecision = s.graph.Decision()
	e.metrics.RecordSessionEnd(context.Background())

	entry := e.log.WithFields(logrus.Fields{
		"session": s.id,
		"mode":    s.mode.String(),
		"blocks":  s.blocks.Load(),
	})
	if s.err != nil {
		merr := classify(s.err)
		entry.WithField("error", s.err.Error()).Error("Session failed")
		e.fail(merr)
	} else {
		entry.Info("Session stopped")
	}
	e.emit(Event{Kind: EventConnection, Connection: Disconnected, Mode: s.mode})
}

// fail records and reports merr. Called with mu held.
func (e *Engine) fail(merr *Error) {
	e.lastErr = merr
	e.metrics.RecordError(context.Background(), merr.Kind.String())
	e.log.WithFields(logrus.Fields{
		"kind":  merr.Kind.String(),
		"param": merr.Param,
	}).Warn(merr.Message())
	e.emit(Event{Kind: EventError, Err: merr})
}

// emit never blocks. The last quarter of the buffer is reserved for
// connection and error events.
func (e *Engine) emit(ev Event) {
	ev.Time = time.Now()
	if ev.Kind == EventVoice && len(e.events) >= cap(e.events)-cap(e.events)/4 {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.log.WithField("event", ev.Kind.String()).Debug("Event dropped")
	}
}

// SetVolume sets the user volume in [0, 2]. A live session applies it
// from the next block on.
func (e *Engine) SetVolume(v float64) error {
	if err := gain.ValidateVolume(v); err != nil {
		return invalidArgument("volume", v, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
	if e.sess != nil {
		return e.sess.graph.Governor().SetVolume(v)
	}
	return nil
}

// SetMuted mutes or unmutes the output. The volume is kept.
func (e *Engine) SetMuted(m bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = m
	if e.sess != nil {
		e.sess.graph.Governor().SetMuted(m)
	}
}

// SetSensitivity sets the voice threshold in [0.05, 0.5]. The control
// loop picks it up on its next tick.
func (e *Engine) SetSensitivity(s float64) error {
	if err := vad.ValidateSensitivity(s); err != nil {
		return invalidArgument("sensitivity", s, err)
	}
	e.sensitivity.Store(math.Float64bits(s))
	return nil
}

// Sensitivity returns the current voice threshold.
func (e *Engine) Sensitivity() float64 {
	return math.Float64frombits(e.sensitivity.Load())
}

// SetMode selects the mode of the next Restart. A live session keeps
// running in its current mode.
func (e *Engine) SetMode(mode topology.Mode) error {
	if !mode.Valid() {
		return invalidArgument("mode", mode, topology.ErrUnknownMode)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = mode
	if e.sess != nil && e.sess.mode != mode {
		e.log.WithFields(logrus.Fields{
			"active":  e.sess.mode.String(),
			"pending": mode.String(),
		}).Info("Mode change takes effect on restart")
	}
	return nil
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Connection:  Disconnected,
		Mode:        e.mode,
		PendingMode: e.pending,
		Volume:      e.volume,
		Muted:       e.muted,
		Sensitivity: e.Sensitivity(),
		Voice:       e.lastDecision,
		LastError:   e.lastErr,
	}
	if s := e.sess; s != nil {
		st.Connection = Connected
		st.Voice = s.graph.Decision()
		st.GateGain = s.graph.GateGain()
		st.Peak = s.graph.Peak()
		st.EffectiveGain = s.graph.Governor().Gain()
	} else {
		r, err := topology.RecipeFor(e.mode)
		if err == nil {
			st.EffectiveGain = gain.EffectiveGain(gain.Profile{
				UserVolume:   e.volume,
				Muted:        e.muted,
				SafetyFactor: r.SafetyFactor,
			})
		}
	}
	return st
}

// Close stops the live session and closes the event channel. Further
// commands return ErrClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.stopLocked()
	e.closed = true
	close(e.events)
	return nil
}
