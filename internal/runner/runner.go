// Package runner drives the pipeline from a frame source at a fixed pace and
// hands mode transitions to action consumers.
package runner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ironsheep/desk-mode-mcp/internal/mode"
	"github.com/ironsheep/desk-mode-mcp/internal/pipeline"
	"github.com/ironsheep/desk-mode-mcp/internal/sensors"
)

// DefaultInterval is the pause between frames.
const DefaultInterval = 500 * time.Millisecond

// FrameSource supplies frames. Next blocks until a frame is available and
// returns io.EOF when the source is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
}

// SensorSource supplies the latest environment readings.
type SensorSource interface {
	Readings() sensors.Readings
}

// ActionConsumer performs the side effects of a mode transition.
type ActionConsumer interface {
	OnTransition(ctx context.Context, t mode.Transition) error
}

// ConsumerFunc adapts a function to ActionConsumer.
type ConsumerFunc func(ctx context.Context, t mode.Transition) error

// OnTransition calls f.
func (f ConsumerFunc) OnTransition(ctx context.Context, t mode.Transition) error {
	return f(ctx, t)
}

// Status is a snapshot of the runner.
type Status struct {
	Running   bool                  `json:"running"`
	StartedAt time.Time             `json:"started_at,omitempty"`
	Interval  string                `json:"interval"`
	Last      *pipeline.FrameResult `json:"last,omitempty"`
	Pipeline  pipeline.Status       `json:"pipeline"`
	LastError string                `json:"last_error,omitempty"`
}

// Runner owns a pipeline and feeds it from a frame source.
//
// The pipeline is only touched with mu held, so Status and Reset may be
// called from other goroutines while Run is active.
type Runner struct {
	source    FrameSource
	sensors   SensorSource
	consumers []ActionConsumer
	interval  time.Duration
	logger    *slog.Logger

	mu        sync.Mutex
	pipe      *pipeline.Pipeline
	running   bool
	startedAt time.Time
	last      *pipeline.FrameResult
	lastErr   error
}

// Option configures a Runner.
type Option func(*Runner)

// WithSensors sets the sensor source. Without one every frame is processed
// with empty readings.
func WithSensors(s SensorSource) Option {
	return func(r *Runner) { r.sensors = s }
}

// WithConsumers adds action consumers, called in order for each transition.
func WithConsumers(c ...ActionConsumer) Option {
	return func(r *Runner) { r.consumers = append(r.consumers, c...) }
}

// WithInterval sets the pause between frames. Zero disables pacing and a
// negative value keeps DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a runner.
func New(p *pipeline.Pipeline, source FrameSource, opts ...Option) *Runner {
	r := &Runner{
		pipe:     p,
		source:   source,
		interval: DefaultInterval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes frames until the source is exhausted (returns nil), the
// source fails, or ctx is cancelled (returns ctx.Err()). Consumer errors are
// logged and never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return errors.New("runner already running")
	}
	r.running = true
	r.startedAt = time.Now()
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.logger.Info("runner started", "interval", r.interval.String())

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		frame, err := r.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			r.logger.Info("frame source exhausted")
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.setError(err)
			return fmt.Errorf("reading frame: %w", err)
		}

		if t := r.Step(frame); t != nil {
			r.dispatch(ctx, *t)
		}

		if r.interval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		if timer == nil {
			timer = time.NewTimer(r.interval)
		} else {
			timer.Reset(r.interval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Step processes one frame and returns the transition it caused, if any.
func (r *Runner) Step(frame image.Image) *mode.Transition {
	var readings sensors.Readings
	if r.sensors != nil {
		readings = r.sensors.Readings()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.pipe.Process(frame, readings)
	res.Combined = nil
	r.last = res
	return res.Transition
}

func (r *Runner) dispatch(ctx context.Context, t mode.Transition) {
	for _, c := range r.consumers {
		if err := c.OnTransition(ctx, t); err != nil {
			r.setError(err)
			r.logger.Warn("action consumer failed",
				"transition", t.ID.String(),
				"error", err,
			)
		}
	}
}

func (r *Runner) setError(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// Status returns a snapshot of the runner and its pipeline.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		Running:   r.running,
		StartedAt: r.startedAt,
		Interval:  r.interval.String(),
		Last:      r.last,
		Pipeline:  r.pipe.Status(),
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

// Reset clears the pipeline state and the last result.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipe.Reset()
	r.last = nil
	r.lastErr = nil
}
