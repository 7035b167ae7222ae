package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/prior"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/rand"
)

// CollapsedGibbs reseats studies with the cluster locations integrated out:
// an occupied cluster is weighed by the posterior predictive density of its
// remaining members instead of its sampled location. Mixing improves because
// a study can move to where a cluster's members are, not just to where the
// cluster's location happened to land. It is a smart wrapper around the
// explicit sampler, which still provides the end-of-sweep refresh passes -
// the locations play no part in reseating but are kept current for
// snapshots and likelihood reporting.
type CollapsedGibbs struct {
	baseSampler *Gibbs
}

// NewCollapsedGibbs creates a new collapsed-locations sampler.
func NewCollapsedGibbs(gen *rand.Generator, ds *model.Dataset, h model.Hyperparameters, rule InitRule) (*CollapsedGibbs, error) {
	base, err := NewGibbs(gen, ds, h, rule)
	if err != nil {
		return nil, errors.Wrap(err, "Base explicit sampler could not be created")
	}

	return &CollapsedGibbs{
		baseSampler: base,
	}, nil
}

// State returns the live chain state.
func (g *CollapsedGibbs) State() *State {
	return g.baseSampler.state
}

// Sweep reseats every study once, in ascending index order, using predictive
// weights, then refreshes locations and base precision exactly like the
// explicit sampler.
func (g *CollapsedGibbs) Sweep() error {
	for i := range g.baseSampler.state.ds.Studies {
		err := g.reseat(i)
		if err != nil {
			return errors.Wrapf(err, "Reseat failed on study %d", i)
		}
	}

	g.baseSampler.refreshMeans()
	g.baseSampler.refreshBasePrec()

	return nil
}

// reseat removes study i and draws its new cluster from the collapsed
// conditional: an occupied cluster weighs size * N(y; m, 1/p + v), where
// Normal(m, 1/p) is the location posterior under the cluster's remaining
// members. The brand-new-cluster weight is the same as the explicit
// sampler's (it is already a predictive density).
func (g *CollapsedGibbs) reseat(i int) error {
	base := g.baseSampler
	s := base.state
	st := s.ds.Studies[i]

	err := s.RemoveStudy(i)
	if err != nil {
		return err
	}

	base.ids = base.ids[:0]
	base.logw = base.logw[:0]
	for id := range s.clusters {
		c := &s.clusters[id]
		if !c.used {
			continue
		}
		mean, prec := s.base.MeanPosterior(s.basePrec, c.sumPrec, c.sumObsPrec)
		base.ids = append(base.ids, id)
		base.logw = append(base.logw, math.Log(float64(c.size))+prior.LogNormPDF(st.Effect, mean, 1.0/prec+st.Variance))
	}
	base.logw = append(base.logw, math.Log(s.hyper.Alpha)+s.base.LogPredictive(s.basePrec, st.Effect, st.Variance))

	k, err := drawCategorical(base.gen, base.logw)
	if err != nil {
		return err
	}

	if k < len(base.ids) {
		return s.AssignStudy(i, base.ids[k])
	}

	mean, prec := s.base.MeanPosterior(s.basePrec, s.prec[i], s.obsPrec[i])
	_, err = s.AssignNew(i, prior.DrawMean(mean, prec, base.gen))
	return err
}
