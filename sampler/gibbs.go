package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/prior"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/rand"
)

// Gibbs is the explicit-locations sampler: every occupied cluster carries a
// sampled location theta, studies are reseated against those locations, and
// the locations and base precision are refreshed from their closed-form
// conditionals at the end of every sweep.
type Gibbs struct {
	state *State
	gen   *rand.Generator

	// scratch reused across sweeps
	ids   []int
	logw  []float64
	means []float64
}

// NewGibbs creates a new explicit-locations sampler.
func NewGibbs(gen *rand.Generator, ds *model.Dataset, h model.Hyperparameters, rule InitRule) (*Gibbs, error) {
	if gen == nil {
		return nil, errors.New("No PRNG supplied")
	}

	state, err := NewState(ds, h, rule)
	if err != nil {
		return nil, errors.Wrap(err, "Sampler state could not be created")
	}

	return &Gibbs{
		state: state,
		gen:   gen,
	}, nil
}

// State returns the live chain state.
func (g *Gibbs) State() *State {
	return g.state
}

// Sweep reseats every study once, in ascending index order, then refreshes
// the cluster locations and the base precision. The traversal order is
// fixed: order affects mixing only, never the stationary distribution, and
// a fixed order keeps runs bit-identical for a given seed.
func (g *Gibbs) Sweep() error {
	for i := range g.state.ds.Studies {
		err := g.reseat(i)
		if err != nil {
			return errors.Wrapf(err, "Reseat failed on study %d", i)
		}
	}

	g.refreshMeans()
	g.refreshBasePrec()

	return nil
}

// reseat removes study i and draws its new cluster from the conditional:
// each occupied cluster in proportion to size * N(y; theta, v), a brand-new
// cluster in proportion to alpha * N(y; mu0, 1/lambda0 + v).
func (g *Gibbs) reseat(i int) error {
	s := g.state
	st := s.ds.Studies[i]

	err := s.RemoveStudy(i)
	if err != nil {
		return err
	}

	g.ids = g.ids[:0]
	g.logw = g.logw[:0]
	for id := range s.clusters {
		c := &s.clusters[id]
		if !c.used {
			continue
		}
		g.ids = append(g.ids, id)
		g.logw = append(g.logw, math.Log(float64(c.size))+prior.LogNormPDF(st.Effect, c.mean, st.Variance))
	}
	g.logw = append(g.logw, math.Log(s.hyper.Alpha)+s.base.LogPredictive(s.basePrec, st.Effect, st.Variance))

	k, err := drawCategorical(g.gen, g.logw)
	if err != nil {
		return err
	}

	if k < len(g.ids) {
		return s.AssignStudy(i, g.ids[k])
	}

	// New cluster: location drawn from its single-member conditional
	mean, prec := s.base.MeanPosterior(s.basePrec, s.prec[i], s.obsPrec[i])
	_, err = s.AssignNew(i, prior.DrawMean(mean, prec, g.gen))
	return err
}

// refreshMeans redraws every cluster location from its conditional given the
// current members.
func (g *Gibbs) refreshMeans() {
	s := g.state
	for id := range s.clusters {
		c := &s.clusters[id]
		if !c.used {
			continue
		}
		mean, prec := s.base.MeanPosterior(s.basePrec, c.sumPrec, c.sumObsPrec)
		c.mean = prior.DrawMean(mean, prec, g.gen)
	}
}

// refreshBasePrec redraws the base precision from its Gamma conditional
// given the current cluster locations.
func (g *Gibbs) refreshBasePrec() {
	s := g.state

	g.means = g.means[:0]
	for id := range s.clusters {
		c := &s.clusters[id]
		if c.used {
			g.means = append(g.means, c.mean)
		}
	}

	shape, rate := s.base.PrecPosterior(g.means)
	s.basePrec = prior.DrawPrec(shape, rate, g.gen)
}
