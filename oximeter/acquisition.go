package oximeter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/oxitrack/oxitrack/internal/transport"
)

// RecordOptions configures one acquisition run.
type RecordOptions struct {
	// Duration is the optional cutoff; zero means the run continues until
	// disconnect or cooperative stop.
	Duration time.Duration

	// IdleSleep is how long the loop sleeps when the peripheral had no new
	// sample this tick. The peripheral notifies at its own cadence, so this
	// only bounds the busy-poll rate; it is also the cancellation latency
	// unit.
	IdleSleep time.Duration `default:"5ms"`
}

// DefaultRecordOptions returns options with struct-tag defaults applied.
func DefaultRecordOptions() *RecordOptions {
	opts := &RecordOptions{}
	defaults.SetDefaults(opts)
	return opts
}

// Handle controls a background acquisition run. The loop cannot fail once
// started (a transport drop is absorbed by a clean disconnect), so Wait
// returns the run alone.
type Handle struct {
	run    *Run
	cancel context.CancelFunc
	done   chan struct{}
}

// Run returns the live run. While the loop is active the view is a
// convenience only; it is authoritative once the run is finalized.
func (h *Handle) Run() *Run { return h.run }

// Stop requests cooperative cancellation. The loop observes it within one
// poll-and-read cycle; there is no hard preemption. Safe to call repeatedly.
func (h *Handle) Stop() { h.cancel() }

// Wait blocks until the loop exits and returns the finalized run.
func (h *Handle) Wait() *Run {
	<-h.done
	return h.run
}

// Record executes one synchronous acquisition run: it blocks the caller for
// the entire run, ending only on disconnect, duration expiry, or context
// cancellation. Requires a connected session.
func (s *Session) Record(ctx context.Context, opts *RecordOptions) (*Run, error) {
	p, err := s.beginRun()
	if err != nil {
		return nil, err
	}

	run := newRun()
	s.runLoop(ctx, p, opts, run)
	s.finishRun(p)
	return run, nil
}

// Start launches the acquisition loop on a dedicated goroutine and returns a
// handle whose Stop is the only supported cancellation mechanism. Requires a
// connected session; the precondition is checked synchronously.
func (s *Session) Start(opts *RecordOptions) (*Handle, error) {
	p, err := s.beginRun()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		run:    newRun(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		defer cancel()
		s.runLoop(ctx, p, opts, h.run)
		s.finishRun(p)
	}()

	return h, nil
}

// Acquire is the combined operation: identity read followed by a synchronous
// recording run. A transport drop mid-stream is absorbed by a clean
// disconnect inside the run, never propagated.
func (s *Session) Acquire(ctx context.Context, opts *RecordOptions) (*Run, error) {
	if !s.IsConnected() {
		return nil, fmt.Errorf("cannot acquire: %w", transport.ErrNotConnected)
	}
	s.notify("Reading device information...")
	_, _ = s.ReadIdentity()
	return s.Record(ctx, opts)
}

// beginRun validates the precondition and transitions Connected -> Streaming.
func (s *Session) beginRun() (transport.Peripheral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected || s.peripheral == nil {
		return nil, fmt.Errorf("cannot start acquisition: %w", transport.ErrNotConnected)
	}
	if !s.peripheral.IsConnected() {
		return nil, fmt.Errorf("cannot start acquisition: %w", transport.ErrNotConnected)
	}
	s.state = StateStreaming
	return s.peripheral, nil
}

// runLoop is the streaming read cycle: poll the latest sample, gate it
// through the validity conjunction, timestamp it relative to run start and
// accumulate. Exactly one goroutine executes it per run; samples are appended
// strictly in validation order.
func (s *Session) runLoop(ctx context.Context, p transport.Peripheral, opts *RecordOptions, run *Run) {
	if opts == nil {
		opts = DefaultRecordOptions()
	} else {
		defaults.SetDefaults(opts)
	}

	s.notify("--- Acquisition started ---")
	s.logger.WithFields(logrus.Fields{
		"duration": opts.Duration,
	}).Info("Acquisition loop started")

	t0 := time.Now()
	for p.IsConnected() && ctx.Err() == nil {
		sample, ok := p.LatestSample()
		if ok {
			t := roundElapsed(time.Since(t0))
			run.logRaw(t, sample)
			if sample.Usable() {
				run.appendValid(t, sample)
				if s.cfg.Verbose {
					s.notify("Pulse: %d, SpO2: %d", sample.PulseRate, sample.SpO2)
				}
			}
		}

		if opts.Duration > 0 && time.Since(t0) > opts.Duration {
			s.notify("Time limit reached (%s).", opts.Duration)
			break
		}

		if !ok {
			time.Sleep(opts.IdleSleep)
		}
	}

	run.finalize()
	s.notify("--- Acquisition finished ---")
	s.logger.WithFields(logrus.Fields{
		"samples": run.Len(),
		"raw":     len(run.RawLog()),
		"elapsed": time.Since(t0).Truncate(time.Millisecond),
	}).Info("Acquisition loop finished")
}

// finishRun restores the lifecycle state. A transport that dropped mid-run is
// resolved by a clean disconnect and a notice; the condition is absorbed, not
// propagated.
func (s *Session) finishRun(p transport.Peripheral) {
	if !p.IsConnected() {
		s.notify("=> Device disconnected")
		_ = s.Disconnect()
		return
	}
	s.setState(StateConnected)
}

// roundElapsed converts to seconds rounded to two decimals, the resolution of
// the exported timestamp column.
func roundElapsed(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
