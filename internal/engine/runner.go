package engine

import (
	"context"
	"time"
)

const (
	DefaultTickInterval     = time.Second
	DefaultRolloverInterval = time.Minute
)

// Runner drives the engine's periodic work: countdown ticks at least
// once per second and rollover checks at least once per minute. The
// cadence is best-effort, not hard real-time; the engine derives all
// timing from wall-clock instants, not tick counts.
type Runner struct {
	engine           *Engine
	TickInterval     time.Duration
	RolloverInterval time.Duration
}

func NewRunner(e *Engine) *Runner {
	return &Runner{
		engine:           e,
		TickInterval:     DefaultTickInterval,
		RolloverInterval: DefaultRolloverInterval,
	}
}

// Run blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	tick := time.NewTicker(r.TickInterval)
	defer tick.Stop()

	rollover := time.NewTicker(r.RolloverInterval)
	defer rollover.Stop()

	r.engine.CheckRollover(r.engine.now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-tick.C:
			r.engine.Tick(now)
		case now := <-rollover.C:
			r.engine.CheckRollover(now)
		}
	}
}
