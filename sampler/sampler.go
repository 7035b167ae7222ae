// Package sampler implements Dirichlet process mixture samplers over study
// effects and the chain machinery that drives them. Everything here is
// deterministic given a seed: studies are visited in index order, clusters
// are iterated in ascending arena id, and freed ids are reused LIFO, so a
// run never depends on map iteration or scheduling order.
package sampler

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/rand"
)

// A Sweeper advances a Markov chain by one full Gibbs sweep over all
// studies. State returns the live chain state that Sweep mutates.
type Sweeper interface {
	Sweep() error
	State() *State
}

// New creates a named sampler over the dataset. Valid names are model.GIBBS
// and model.COLLAPSED.
func New(name string, gen *rand.Generator, ds *model.Dataset, h model.Hyperparameters, rule InitRule) (Sweeper, error) {
	switch name {
	case model.GIBBS:
		return NewGibbs(gen, ds, h, rule)
	case model.COLLAPSED:
		return NewCollapsedGibbs(gen, ds, h, rule)
	}

	return nil, errors.Errorf("Unknown sampler %s", name)
}

// ErrNumericalInstability reports that the conditional weights for a reseat
// degenerated in floating point, so no categorical draw could be made.
var ErrNumericalInstability = errors.New("Conditional weights degenerate - numerical instability")

// drawCategorical selects an index in proportion to the given log weights.
// Weights are normalized via LogSumExp, so only their differences matter and
// a shared scale can never underflow the draw.
func drawCategorical(gen *rand.Generator, logw []float64) (int, error) {
	if len(logw) < 1 {
		return -1, errors.Wrap(ErrNumericalInstability, "No weights at all")
	}

	lse := floats.LogSumExp(logw)
	if math.IsNaN(lse) || math.IsInf(lse, 0) {
		return -1, errors.Wrapf(ErrNumericalInstability, "LogSumExp=%f over %d weights", lse, len(logw))
	}

	u := gen.Float64()
	cum := 0.0
	for k, lw := range logw {
		cum += math.Exp(lw - lse)
		if u < cum {
			return k, nil
		}
	}

	// Rounding can leave cum just shy of 1.0
	return len(logw) - 1, nil
}
