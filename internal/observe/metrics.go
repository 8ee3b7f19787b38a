// Package observe holds the OpenTelemetry metric instruments of the
// monitor and the Prometheus bridge used to scrape them.
//
// The engine records through a [Metrics] value. Tests should use
// [NewMetrics] with a ManualReader-backed provider to inspect what was
// recorded; code that does not care passes [Discard].
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for all voicegate metrics.
const meterName = "github.com/cwbudde/voicegate"

// Metrics holds all instruments. Safe for concurrent use.
type Metrics struct {
	// SessionsStarted counts sessions that reached the connected state.
	// Attribute: mode.
	SessionsStarted metric.Int64Counter

	// ActiveSessions is 1 while a session is live.
	ActiveSessions metric.Int64UpDownCounter

	// Errors counts reported failures. Attribute: kind.
	Errors metric.Int64Counter

	// GateTransitions counts gate open/close changes. Attribute: state.
	GateTransitions metric.Int64Counter

	// VoiceLevel records the normalized vocal-band level per control tick.
	VoiceLevel metric.Float64Histogram

	// RenderBlocks counts audio blocks rendered.
	RenderBlocks metric.Int64Counter

	// ControlTicks counts control loop iterations.
	ControlTicks metric.Int64Counter
}

// levelBuckets spans the normalized [0,1] level range, denser around the
// sensitivity range.
var levelBuckets = []float64{
	0.01, 0.025, 0.05, 0.075, 0.1, 0.15, 0.2, 0.3, 0.4, 0.5, 0.75, 1,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.SessionsStarted, err = m.Int64Counter("voicegate.sessions.started",
		metric.WithDescription("Sessions that reached the connected state, by mode."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("voicegate.sessions.active",
		metric.WithDescription("Number of live sessions."),
	); err != nil {
		return nil, err
	}
	if met.Errors, err = m.Int64Counter("voicegate.errors",
		metric.WithDescription("Reported failures by kind."),
	); err != nil {
		return nil, err
	}
	if met.GateTransitions, err = m.Int64Counter("voicegate.gate.transitions",
		metric.WithDescription("Gate open/close changes by resulting state."),
	); err != nil {
		return nil, err
	}
	if met.VoiceLevel, err = m.Float64Histogram("voicegate.vad.level",
		metric.WithDescription("Normalized vocal-band level per control tick."),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(levelBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RenderBlocks, err = m.Int64Counter("voicegate.render.blocks",
		metric.WithDescription("Audio blocks rendered."),
	); err != nil {
		return nil, err
	}
	if met.ControlTicks, err = m.Int64Counter("voicegate.control.ticks",
		metric.WithDescription("Control loop iterations."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns instruments that record nothing.
func Discard() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// RecordSessionStart marks a session of mode as live.
func (m *Metrics) RecordSessionStart(ctx context.Context, mode string) {
	m.SessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	m.ActiveSessions.Add(ctx, 1)
}

// RecordSessionEnd marks the live session as gone.
func (m *Metrics) RecordSessionEnd(ctx context.Context) {
	m.ActiveSessions.Add(ctx, -1)
}

// RecordError counts a failure of kind.
func (m *Metrics) RecordError(ctx context.Context, kind string) {
	m.Errors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordGate counts a gate transition.
func (m *Metrics) RecordGate(ctx context.Context, open bool) {
	state := "closed"
	if open {
		state = "open"
	}
	m.GateTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}

// RecordTick records one control tick with its voice level and the
// number of blocks rendered since the previous tick.
func (m *Metrics) RecordTick(ctx context.Context, level float64, blocks int64) {
	m.ControlTicks.Add(ctx, 1)
	m.VoiceLevel.Record(ctx, level)
	if blocks > 0 {
		m.RenderBlocks.Add(ctx, blocks)
	}
}
