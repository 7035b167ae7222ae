package sampler

import (
	"context"

	"github.com/pkg/errors"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/buffer"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
)

// ErrRunIncomplete reports a run that stopped before its schedule finished.
// An incomplete run returns no draws at all: a short draw set would be
// indistinguishable from a finished one downstream.
var ErrRunIncomplete = errors.New("Run incomplete - chain stopped before the schedule finished")

// Progress is a point-in-time report handed to a chain's OnProgress callback.
type Progress struct {
	Sweep        int     // Sweeps completed so far
	TotalSweeps  int     // Sweeps the schedule calls for
	BurnedIn     bool    // True once burn-in is behind us
	SavedDraws   int     // Draws recorded so far
	ClusterCount int     // Occupied clusters right now
	BasePrec     float64 // Current base precision
	LogLike      float64 // Current log likelihood
	TraceOlder   float64 // Mean cluster count over the older half of the trace window
	TraceNewer   float64 // Mean cluster count over the newer half
	TraceReady   bool    // True once the trace window has filled
}

// traceWindow is the size of the cluster-count window kept for progress
// reporting.
const traceWindow = 100

// Chain drives one sampler through a burn-in/thinning schedule and collects
// the saved draws. Cancellation is honored at sweep boundaries only: a sweep
// always finishes once started, so the state is never seen mid-update.
type Chain struct {
	Sampler    Sweeper
	Plan       model.Schedule
	Draws      []*Draw
	SweepCount int
	OnProgress func(p Progress)

	window *buffer.CircularInt
}

// NewChain returns a chain ready to run.
func NewChain(samp Sweeper, plan model.Schedule) (*Chain, error) {
	if samp == nil {
		return nil, errors.New("No sampler supplied")
	}

	err := plan.Check()
	if err != nil {
		return nil, errors.Wrap(err, "Chain schedule is not valid")
	}

	return &Chain{
		Sampler: samp,
		Plan:    plan,
		window:  buffer.NewCircularInt(traceWindow),
	}, nil
}

// Run executes the full schedule: Plan.BurnIn discarded sweeps, then
// Plan.SaveCount draws recorded every Plan.Thinning sweeps. A chain runs
// exactly once. On cancellation Run stops at the next sweep boundary, drops
// everything recorded so far, and returns ErrRunIncomplete.
func (c *Chain) Run(ctx context.Context) error {
	if c.SweepCount != 0 {
		return errors.New("Chain has already been run")
	}

	total := c.Plan.TotalSweeps()

	for c.SweepCount < total {
		select {
		case <-ctx.Done():
			c.Draws = nil
			return errors.Wrapf(ErrRunIncomplete, "Stopped after %d of %d sweeps (%v)", c.SweepCount, total, ctx.Err())
		default:
		}

		err := c.Sampler.Sweep()
		if err != nil {
			c.Draws = nil
			return errors.Wrapf(err, "Failure on sweep %d", c.SweepCount+1)
		}
		c.SweepCount++

		state := c.Sampler.State()
		c.window.Add(state.ClusterCount())

		burnedIn := c.SweepCount > c.Plan.BurnIn
		if burnedIn && (c.SweepCount-c.Plan.BurnIn)%c.Plan.Thinning == 0 {
			c.Draws = append(c.Draws, state.Snapshot(len(c.Draws), c.SweepCount))
		}

		if c.OnProgress != nil && c.Plan.DisplayInterval > 0 && c.SweepCount%c.Plan.DisplayInterval == 0 {
			older, newer, ready := c.window.HalfMeans()
			c.OnProgress(Progress{
				Sweep:        c.SweepCount,
				TotalSweeps:  total,
				BurnedIn:     burnedIn,
				SavedDraws:   len(c.Draws),
				ClusterCount: state.ClusterCount(),
				BasePrec:     state.BasePrec(),
				LogLike:      state.LogLikelihood(),
				TraceOlder:   older,
				TraceNewer:   newer,
				TraceReady:   ready,
			})
		}
	}

	return nil
}
