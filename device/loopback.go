package device

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Source fills buf with the captured samples that start at sample offset.
type Source func(buf []float32, offset int64, sampleRate float64)

// Silence is a Source that captures nothing but zeros.
func Silence() Source {
	return func(buf []float32, _ int64, _ float64) { clear(buf) }
}

// Sine is a Source producing a continuous tone.
func Sine(freq, amp float64) Source { return Tones(amp, freq) }

// Tones is a Source summing equal-amplitude sines at freqs. The peak
// never exceeds amp.
func Tones(amp float64, freqs ...float64) Source {
	return func(buf []float32, offset int64, sr float64) {
		clear(buf)
		if len(freqs) == 0 {
			return
		}
		per := amp / float64(len(freqs))
		for _, f := range freqs {
			w := 2 * math.Pi * f / sr
			for i := range buf {
				buf[i] += float32(per * math.Sin(w*float64(offset+int64(i))))
			}
		}
	}
}

// Script is a Source that replays blocks in order and repeats the last
// one when exhausted. Blocks shorter than the read are zero padded.
func Script(blocks ...[]float32) Source {
	var (
		mu sync.Mutex
		n  int
	)
	return func(buf []float32, _ int64, _ float64) {
		mu.Lock()
		defer mu.Unlock()
		clear(buf)
		if len(blocks) == 0 {
			return
		}
		copy(buf, blocks[min(n, len(blocks)-1)])
		n++
	}
}

// LoopbackOption configures a Loopback.
type LoopbackOption func(*Loopback)

// WithSource sets the captured signal. The default is Silence.
func WithSource(src Source) LoopbackOption {
	return func(l *Loopback) { l.source = src }
}

// WithOpenError makes every Open fail with err.
func WithOpenError(err error) LoopbackOption {
	return func(l *Loopback) { l.openErr = err }
}

// WithFailAfter makes Read return err once n blocks have been read.
func WithFailAfter(n int, err error) LoopbackOption {
	return func(l *Loopback) {
		l.failAfter = n
		l.failErr = err
	}
}

// WithRealtime paces Read at the block duration of the stream so the
// loopback behaves like a clocked device.
func WithRealtime() LoopbackOption {
	return func(l *Loopback) { l.realtime = true }
}

// WithCaptureLimit keeps only the last n written blocks. The default is 1024.
func WithCaptureLimit(n int) LoopbackOption {
	return func(l *Loopback) { l.captureLimit = max(n, 0) }
}

// Loopback is an in-memory Device. It captures from a Source and records
// every block written to it. Safe for concurrent use.
type Loopback struct {
	source       Source
	openErr      error
	failAfter    int
	failErr      error
	realtime     bool
	captureLimit int

	mu      sync.Mutex
	opened  int
	live    int
	written [][]float32
	blocks  int
}

// NewLoopback returns a loopback device configured by opts.
func NewLoopback(opts ...LoopbackOption) *Loopback {
	l := &Loopback{
		source:       Silence(),
		captureLimit: 1024,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open implements Device.
func (l *Loopback) Open(ctx context.Context, cfg Config) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.openErr != nil {
		return nil, l.openErr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.opened++
	l.live++
	l.mu.Unlock()

	return &loopbackStream{
		dev:    l,
		cfg:    cfg,
		period: time.Duration(float64(time.Second) * float64(cfg.BlockSize) / cfg.SampleRate),
		done:   make(chan struct{}),
	}, nil
}

// Devices implements Enumerator with a single duplex device.
func (l *Loopback) Devices() ([]Info, error) {
	return []Info{{
		ID:                0,
		Name:              "loopback",
		MaxInputChannels:  1,
		MaxOutputChannels: 1,
		DefaultSampleRate: 44100,
		DefaultInput:      true,
		DefaultOutput:     true,
	}}, nil
}

// Opened returns how many streams were opened successfully.
func (l *Loopback) Opened() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opened
}

// Live returns how many opened streams are not yet closed.
func (l *Loopback) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live
}

// Blocks returns the total number of blocks written.
func (l *Loopback) Blocks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blocks
}

// Written returns copies of the retained written blocks, oldest first.
func (l *Loopback) Written() [][]float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]float32, len(l.written))
	for i, b := range l.written {
		out[i] = append([]float32(nil), b...)
	}
	return out
}

func (l *Loopback) record(buf []float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocks++
	if l.captureLimit == 0 {
		return
	}
	if len(l.written) == l.captureLimit {
		copy(l.written, l.written[1:])
		l.written = l.written[:len(l.written)-1]
	}
	l.written = append(l.written, append([]float32(nil), buf...))
}

type loopbackStream struct {
	dev    *Loopback
	cfg    Config
	period time.Duration

	done chan struct{}
	once sync.Once

	// owned by the reading goroutine
	offset int64
	reads  int
	next   time.Time
}

func (s *loopbackStream) Read(buf []float32) error {
	if err := s.check(buf); err != nil {
		return err
	}
	if s.dev.failErr != nil && s.reads >= s.dev.failAfter {
		return s.dev.failErr
	}

	if s.dev.realtime {
		now := time.Now()
		if s.next.IsZero() {
			s.next = now
		}
		s.next = s.next.Add(s.period)
		if wait := s.next.Sub(now); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-s.done:
				t.Stop()
				return ErrClosed
			}
		}
	}

	s.dev.source(buf, s.offset, s.cfg.SampleRate)
	s.offset += int64(len(buf))
	s.reads++
	return nil
}

func (s *loopbackStream) Write(buf []float32) error {
	if err := s.check(buf); err != nil {
		return err
	}
	s.dev.record(buf)
	return nil
}

func (s *loopbackStream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.dev.mu.Lock()
		s.dev.live--
		s.dev.mu.Unlock()
	})
	return nil
}

func (s *loopbackStream) check(buf []float32) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if len(buf) != s.cfg.BlockSize {
		return fmt.Errorf("device: block of %d samples, stream block size %d", len(buf), s.cfg.BlockSize)
	}
	return nil
}
