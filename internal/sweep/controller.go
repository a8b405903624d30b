package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultSettleTime is the time the generator output is given to stabilise after a frequency change
const DefaultSettleTime = 2 * time.Second

// ErrEmptyPlan is returned when a sweep is started without frequencies
var ErrEmptyPlan = errors.New("empty sweep plan")

// FrequencySetter tunes the signal source
type FrequencySetter interface {
	SetFrequency(ctx context.Context, kHz float64) error
}

// WaveformSource captures the signal
type WaveformSource interface {
	Curve(ctx context.Context) ([]int8, error)
	VerticalScale(ctx context.Context) (float64, error)
}

// Plotter is notified every time an amplitude has been stored
type Plotter interface {
	Update(ctx context.Context, res *Result, index int) error
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(*Controller) {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithSettleTime sets the delay between a frequency change and the capture
func WithSettleTime(d time.Duration) func(*Controller) {
	return func(c *Controller) {
		c.settle = d
	}
}

// WithPlotter sets the live plot updated after every step
func WithPlotter(p Plotter) func(*Controller) {
	return func(c *Controller) {
		c.plotter = p
	}
}

// WithStartTime sets the run start time recorded in the result, defaults to the time Run is called
func WithStartTime(t time.Time) func(*Controller) {
	return func(c *Controller) {
		c.started = t
	}
}

// Controller runs a sweep, one step per planned frequency:
// tune, settle, capture, scale, measure, store, plot.
type Controller struct {
	generator FrequencySetter
	scope     WaveformSource
	plotter   Plotter

	settle  time.Duration
	started time.Time

	logger *slog.Logger
}

// NewController creates a new Controller
func NewController(generator FrequencySetter, scope WaveformSource, options ...func(*Controller)) *Controller {
	c := Controller{
		generator: generator,
		scope:     scope,
		settle:    DefaultSettleTime,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Run sweeps the plan. The first failing step aborts the sweep, no further
// commands are sent and no result is returned.
func (c *Controller) Run(ctx context.Context, plan Plan) (*Result, error) {
	if plan.Len() == 0 {
		return nil, ErrEmptyPlan
	}

	started := c.started
	if started.IsZero() {
		started = time.Now()
	}

	res := NewResult(plan, started)
	c.logger.Info("sweep started",
		slog.String("runID", res.RunID.String()),
		slog.Int("points", res.Len()),
		slog.String("start", HumanHz(plan.Start())),
		slog.String("stop", HumanHz(plan.Stop())))

	for i := range res.Len() {
		if err := c.step(ctx, res, i); err != nil {
			return nil, fmt.Errorf("sweep step %d at %g kHz: %w", i, res.Frequencies[i], err)
		}
	}

	c.logger.Info("sweep finished", slog.Duration("elapsed", time.Since(started)))
	return res, nil
}

func (c *Controller) step(ctx context.Context, res *Result, i int) error {
	kHz := res.Frequencies[i]

	if err := c.generator.SetFrequency(ctx, kHz); err != nil {
		return err
	}

	if err := Wait(ctx, c.settle); err != nil {
		return err
	}

	raw, err := c.scope.Curve(ctx)
	if err != nil {
		return err
	}

	scale, err := c.scope.VerticalScale(ctx)
	if err != nil {
		return err
	}

	vpp := PeakToPeak(raw, scale)
	res.Amplitudes[i] = vpp

	c.logger.Info(fmt.Sprintf("%d kHz : %.2f", int64(kHz), vpp),
		slog.Int("index", i),
		slog.Float64("frequency", kHz),
		slog.Float64("vpp", vpp),
		slog.Float64("scale", scale),
		slog.Int("samples", len(raw)))

	if c.plotter != nil {
		if err = c.plotter.Update(ctx, res, i); err != nil {
			c.logger.Warn(fmt.Sprintf("updating plot: %s", err.Error()), slog.Int("index", i))
		}
	}

	return nil
}

// Wait blocks for d or until the context is done
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
