package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwbudde/voicegate/device"
	"github.com/cwbudde/voicegate/device/portaudio"
	"github.com/cwbudde/voicegate/internal/config"
	"github.com/cwbudde/voicegate/internal/observe"
	"github.com/cwbudde/voicegate/monitor"
	"github.com/sirupsen/logrus"
)

// RunCmd runs the engine until interrupted.
type RunCmd struct {
	Mode        string        `short:"m" help:"Processing mode (quality, low-latency)"`
	Volume      *float64      `help:"Initial volume in [0,2]"`
	Muted       bool          `help:"Start muted"`
	Sensitivity *float64      `short:"s" help:"Voice threshold in [0.05,0.5]"`
	Input       *int          `help:"Input device index (see devices)"`
	Output      *int          `help:"Output device index (see devices)"`
	Simulate    bool          `help:"Use a synthetic voice source instead of audio hardware"`
	Metrics     string        `placeholder:"ADDR" help:"Serve Prometheus metrics on ADDR, e.g. :9464"`
	Duration    time.Duration `help:"Stop after this long (0 runs until interrupted)"`
	Quiet       bool          `short:"q" help:"Do not print the live voice meter"`
}

// apply overlays the flags on cfg.
func (r *RunCmd) apply(cfg *config.Config) error {
	if r.Mode != "" {
		cfg.Engine.Mode = r.Mode
	}
	if r.Volume != nil {
		cfg.Engine.Volume = *r.Volume
	}
	if r.Muted {
		cfg.Engine.Muted = true
	}
	if r.Sensitivity != nil {
		cfg.Engine.Sensitivity = *r.Sensitivity
	}
	if r.Input != nil {
		cfg.Audio.InputDevice = *r.Input
	}
	if r.Output != nil {
		cfg.Audio.OutputDevice = *r.Output
	}
	if r.Metrics != "" {
		cfg.Metrics.Listen = r.Metrics
	}
	return config.Validate(cfg)
}

// Run implements the run command.
func (r *RunCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if err := r.apply(cfg); err != nil {
		return err
	}
	log := logrus.WithField("component", "cli")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if r.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Duration)
		defer cancel()
	}

	dev, closeDev, err := openDevice(r.Simulate)
	if err != nil {
		return err
	}
	defer closeDev()

	metrics, shutdownMetrics, err := serveMetrics(cfg.Metrics.Listen, log)
	if err != nil {
		return err
	}
	defer shutdownMetrics()

	opts, err := cfg.EngineOptions(dev)
	if err != nil {
		return err
	}
	opts.Metrics = metrics

	engine, err := monitor.New(opts)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Println(titleStyle.Render("voicegate " + version))
	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(engine, r.Quiet)
	}()

	if err := engine.Start(ctx, opts.Mode); err != nil {
		log.WithError(err).Warn("Start failed; type 'retry' or 'start' to try again")
	}

	cmdCtx, cancelCmds := context.WithCancel(ctx)
	defer cancelCmds()
	quit := make(chan struct{})
	go func() {
		if readCommands(cmdCtx, engine, os.Stdin, os.Stdout) {
			close(quit)
		}
	}()

	select {
	case <-ctx.Done():
	case <-quit:
	}
	cancelCmds()

	if err := engine.Close(); err != nil {
		return err
	}
	<-done
	return nil
}

func openDevice(simulate bool) (device.Device, func(), error) {
	if simulate {
		src := device.Tones(0.3, 300, 650, 1000, 1400, 2200)
		return device.NewLoopback(device.WithSource(src), device.WithRealtime(), device.WithCaptureLimit(0)), func() {}, nil
	}
	pa, err := portaudio.New()
	if err != nil {
		return nil, nil, err
	}
	return pa, func() { _ = pa.Close() }, nil
}

// serveMetrics starts the Prometheus endpoint when addr is set. Without
// it the engine records into discarded instruments.
func serveMetrics(addr string, log *logrus.Entry) (*observe.Metrics, func(), error) {
	if addr == "" {
		return observe.Discard(), func() {}, nil
	}

	mp, handler, err := observe.PrometheusProvider()
	if err != nil {
		return nil, nil, err
	}
	m, err := observe.NewMetrics(mp)
	if err != nil {
		return nil, nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	log.WithField("addr", ln.Addr().String()).Info("Serving metrics")

	return m, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
	}, nil
}

// printEvents renders engine events until the channel closes. Voice
// events are thinned to about ten lines per second.
func printEvents(e *monitor.Engine, quiet bool) {
	var lastVoice time.Time
	for ev := range e.Events() {
		if ev.Kind == monitor.EventVoice {
			if quiet || ev.Time.Sub(lastVoice) < 100*time.Millisecond {
				continue
			}
			lastVoice = ev.Time
		}
		fmt.Println(renderEvent(ev, e.Sensitivity()))
	}
}

var _ engineCommands = (*monitor.Engine)(nil)
