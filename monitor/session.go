package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cwbudde/voicegate/device"
	"github.com/cwbudde/voicegate/dsp/core"
	"github.com/cwbudde/voicegate/dsp/vad"
	"github.com/cwbudde/voicegate/internal/observe"
	"github.com/cwbudde/voicegate/monitor/topology"
	"golang.org/x/sync/errgroup"
)

// tickHooks connect the control loop to its engine.
type tickHooks struct {
	sensitivity func() float64
	decision    func(vad.Decision)
}

// session is one live device binding with its graph. The render and
// control goroutines run under an errgroup; the first failure cancels
// both and closes the stream.
type session struct {
	id       uint64
	mode     topology.Mode
	ctrl     *topology.Controller
	graph    *topology.Graph
	stream   device.Stream
	interval time.Duration
	metrics  *observe.Metrics
	hooks    tickHooks

	cancel context.CancelFunc
	done   chan struct{}
	err    error // valid after done is closed

	blocks atomic.Int64
}

func (s *session) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.renderLoop(gctx) })
	g.Go(func() error { return s.controlLoop(gctx) })
	g.Go(func() error {
		// Closing unblocks a Read or Write in progress.
		<-gctx.Done()
		s.stream.Close()
		return nil
	})

	go func() {
		s.err = g.Wait()
		cancel()
		s.ctrl.Teardown()
		close(s.done)
	}()
}

// stop cancels both loops and waits until the stream is closed.
func (s *session) stop() {
	s.cancel()
	<-s.done
}

// renderLoop moves one block at a time from the stream through the graph
// and back out. It neither allocates nor logs per block.
func (s *session) renderLoop(ctx context.Context) error {
	bs := s.ctrl.Options().BlockSize
	pcm := make([]float32, bs)
	work := make([]float64, bs)

	for ctx.Err() == nil {
		if err := s.stream.Read(pcm); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return streamError(err)
		}

		core.Float32To64(work, pcm)
		if err := s.graph.Render(work); err != nil {
			return &Error{Kind: KindProcessingFault, Err: err}
		}
		core.Float64To32(pcm, work)

		if err := s.stream.Write(pcm); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return streamError(err)
		}
		s.blocks.Add(1)
	}
	return nil
}

// controlLoop runs the analyzer and detector every interval and publishes
// the gate target for the render loop.
func (s *session) controlLoop(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	var (
		open   bool
		blocks int64
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}

		dec, err := s.graph.Analyze(s.hooks.sensitivity())
		if err != nil {
			return &Error{Kind: KindProcessingFault, Err: err}
		}

		n := s.blocks.Load()
		s.metrics.RecordTick(ctx, dec.Level, n-blocks)
		blocks = n
		if dec.Active != open {
			open = dec.Active
			s.metrics.RecordGate(ctx, open)
		}
		s.hooks.decision(dec)
	}
}

// streamError classifies a failed Read or Write of a running stream.
// Anything but a closed stream means the device went away.
func streamError(err error) *Error {
	if errors.Is(err, device.ErrDeviceLost) {
		return &Error{Kind: KindDeviceLost, Err: err}
	}
	return &Error{Kind: KindDeviceLost, Err: fmt.Errorf("%w: %w", device.ErrDeviceLost, err)}
}
