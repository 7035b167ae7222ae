package sampler

import (
	"math"

	"github.com/pkg/errors"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/prior"
)

// cluster is one arena slot. Sufficient statistics are maintained
// incrementally: sumPrec is the summed member precision (1/v_j) and
// sumObsPrec the precision-weighted effect sum (y_j/v_j).
type cluster struct {
	used       bool
	size       int
	sumPrec    float64
	sumObsPrec float64
	mean       float64
}

// InitRule selects the starting clustering for a new chain.
type InitRule int

const (
	// InitShared starts every study in a single cluster located at the
	// cluster's posterior mean. This is the default.
	InitShared InitRule = iota
	// InitSingleton starts every study in its own cluster, each located at
	// its single-member posterior mean.
	InitSingleton
)

// State is one point in the Markov chain: the cluster arena, the per-study
// assignments, and the current base precision. Cluster ids index the arena.
// Retired ids are recycled LIFO, and all iteration over clusters is in
// ascending id order, so the entire trajectory is a deterministic function
// of the PRNG stream. Initialization itself consumes no randomness.
type State struct {
	ds    *model.Dataset
	hyper model.Hyperparameters
	base  prior.NormalGamma

	basePrec float64
	assign   []int
	clusters []cluster
	free     []int
	live     int

	prec    []float64 // cached study precisions 1/v_i
	obsPrec []float64 // cached precision-weighted effects y_i/v_i
}

// NewState validates the inputs and builds the starting chain state. The
// base precision starts at its prior mean Tau1/Tau2.
func NewState(ds *model.Dataset, h model.Hyperparameters, rule InitRule) (*State, error) {
	if ds == nil {
		return nil, errors.New("No dataset supplied")
	}

	err := ds.Check()
	if err != nil {
		return nil, errors.Wrap(err, "Dataset is not valid")
	}

	err = h.Check()
	if err != nil {
		return nil, errors.Wrap(err, "Hyperparameters are not valid")
	}

	n := ds.Len()
	s := &State{
		ds:      ds,
		hyper:   h,
		base:    prior.NormalGamma{Mu0: h.Mu0, Tau1: h.Tau1, Tau2: h.Tau2},
		assign:  make([]int, n),
		prec:    make([]float64, n),
		obsPrec: make([]float64, n),
	}

	s.basePrec = s.base.PriorPrecMean()

	for i, st := range ds.Studies {
		s.prec[i] = st.Prec()
		s.obsPrec[i] = st.Effect * s.prec[i]
	}

	switch rule {
	case InitShared:
		c := cluster{used: true, size: n}
		for i := range ds.Studies {
			c.sumPrec += s.prec[i]
			c.sumObsPrec += s.obsPrec[i]
			s.assign[i] = 0
		}
		c.mean, _ = s.base.MeanPosterior(s.basePrec, c.sumPrec, c.sumObsPrec)
		s.clusters = []cluster{c}
		s.live = 1

	case InitSingleton:
		s.clusters = make([]cluster, n)
		for i := range ds.Studies {
			mean, _ := s.base.MeanPosterior(s.basePrec, s.prec[i], s.obsPrec[i])
			s.clusters[i] = cluster{
				used:       true,
				size:       1,
				sumPrec:    s.prec[i],
				sumObsPrec: s.obsPrec[i],
				mean:       mean,
			}
			s.assign[i] = i
		}
		s.live = n

	default:
		return nil, errors.Errorf("Unknown init rule %d", rule)
	}

	return s, nil
}

// ClusterCount returns the number of occupied clusters.
func (s *State) ClusterCount() int {
	return s.live
}

// BasePrec returns the current base precision lambda0.
func (s *State) BasePrec() float64 {
	return s.basePrec
}

// RemoveStudy takes study i out of its cluster, updating the cluster's
// sufficient statistics. A cluster emptied by the removal is retired and its
// id pushed on the free list.
func (s *State) RemoveStudy(i int) error {
	if i < 0 || i >= len(s.assign) {
		return errors.Errorf("Invalid study index %d", i)
	}

	id := s.assign[i]
	if id < 0 {
		return errors.Errorf("Study %d is not assigned to a cluster", i)
	}

	c := &s.clusters[id]
	c.size--
	c.sumPrec -= s.prec[i]
	c.sumObsPrec -= s.obsPrec[i]
	s.assign[i] = -1

	if c.size == 0 {
		// Zero the slot so float residue never leaks into its next tenant
		*c = cluster{}
		s.free = append(s.free, id)
		s.live--
	}

	return nil
}

// AssignStudy places a previously removed study into an occupied cluster.
func (s *State) AssignStudy(i int, id int) error {
	if i < 0 || i >= len(s.assign) {
		return errors.Errorf("Invalid study index %d", i)
	}
	if s.assign[i] >= 0 {
		return errors.Errorf("Study %d is already assigned to cluster %d", i, s.assign[i])
	}
	if id < 0 || id >= len(s.clusters) || !s.clusters[id].used {
		return errors.Errorf("Invalid cluster id %d for study %d", id, i)
	}

	c := &s.clusters[id]
	c.size++
	c.sumPrec += s.prec[i]
	c.sumObsPrec += s.obsPrec[i]
	s.assign[i] = id

	return nil
}

// AssignNew places a previously removed study into a brand-new cluster with
// the given location, reusing the most recently freed id if one is
// available. The new cluster's id is returned.
func (s *State) AssignNew(i int, mean float64) (int, error) {
	if i < 0 || i >= len(s.assign) {
		return -1, errors.Errorf("Invalid study index %d", i)
	}
	if s.assign[i] >= 0 {
		return -1, errors.Errorf("Study %d is already assigned to cluster %d", i, s.assign[i])
	}

	var id int
	if len(s.free) > 0 {
		id = s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
	} else {
		s.clusters = append(s.clusters, cluster{})
		id = len(s.clusters) - 1
	}

	s.clusters[id] = cluster{
		used:       true,
		size:       1,
		sumPrec:    s.prec[i],
		sumObsPrec: s.obsPrec[i],
		mean:       mean,
	}
	s.assign[i] = id
	s.live++

	return id, nil
}

// Check returns an error if any internal invariant is broken: every study
// must sit in an occupied cluster, cluster sizes and sufficient statistics
// must match a recount of their members, and the free list must hold only
// retired ids.
func (s *State) Check() error {
	if math.IsNaN(s.basePrec) || math.IsInf(s.basePrec, 0) || s.basePrec <= 0.0 {
		return errors.Errorf("Invalid base precision %f", s.basePrec)
	}

	sizes := make([]int, len(s.clusters))
	sumPrec := make([]float64, len(s.clusters))
	sumObsPrec := make([]float64, len(s.clusters))

	for i, id := range s.assign {
		if id < 0 || id >= len(s.clusters) {
			return errors.Errorf("Study %d has invalid cluster id %d", i, id)
		}
		if !s.clusters[id].used {
			return errors.Errorf("Study %d is assigned to retired cluster %d", i, id)
		}
		sizes[id]++
		sumPrec[id] += s.prec[i]
		sumObsPrec[id] += s.obsPrec[i]
	}

	const EPS = 1e-6

	live := 0
	for id := range s.clusters {
		c := &s.clusters[id]
		if !c.used {
			if sizes[id] != 0 {
				return errors.Errorf("Retired cluster %d has %d members", id, sizes[id])
			}
			continue
		}

		live++
		if c.size < 1 {
			return errors.Errorf("Cluster %d is occupied but empty", id)
		}
		if c.size != sizes[id] {
			return errors.Errorf("Cluster %d claims size %d but has %d members", id, c.size, sizes[id])
		}
		if math.Abs(c.sumPrec-sumPrec[id]) > EPS*sumPrec[id] {
			return errors.Errorf("Cluster %d precision sum %f != recount %f", id, c.sumPrec, sumPrec[id])
		}
		if math.Abs(c.sumObsPrec-sumObsPrec[id]) > EPS*(math.Abs(sumObsPrec[id])+1.0) {
			return errors.Errorf("Cluster %d effect sum %f != recount %f", id, c.sumObsPrec, sumObsPrec[id])
		}
		if math.IsNaN(c.mean) || math.IsInf(c.mean, 0) {
			return errors.Errorf("Cluster %d has non-finite location %f", id, c.mean)
		}
	}

	if live != s.live {
		return errors.Errorf("Live cluster count %d != recount %d", s.live, live)
	}

	seen := make(map[int]bool, len(s.free))
	for _, id := range s.free {
		if id < 0 || id >= len(s.clusters) {
			return errors.Errorf("Free list holds invalid id %d", id)
		}
		if s.clusters[id].used {
			return errors.Errorf("Free list holds occupied cluster %d", id)
		}
		if seen[id] {
			return errors.Errorf("Free list holds id %d twice", id)
		}
		seen[id] = true
	}

	return nil
}

// LogLikelihood returns the log likelihood of the study effects given the
// current assignments and cluster locations.
func (s *State) LogLikelihood() float64 {
	ll := 0.0
	for i, st := range s.ds.Studies {
		c := &s.clusters[s.assign[i]]
		ll += prior.LogNormPDF(st.Effect, c.mean, st.Variance)
	}
	return ll
}

// Draw is one recorded snapshot of the chain. Cluster labels are compacted
// in order of first appearance over the study index, so two states that
// cluster the studies identically yield identical label vectors no matter
// which arena ids they happen to occupy.
type Draw struct {
	Index        int       // Saved-draw ordinal within the run (0-based)
	Sweep        int       // Global sweep count when the draw was taken
	Assignments  []int     // Study index -> compact cluster label
	ClusterMeans []float64 // Location per compact label
	ClusterSizes []int     // Member count per compact label
	ClusterCount int       // Number of occupied clusters
	BasePrec     float64   // Base precision lambda0 at draw time
	Effects      []float64 // Latent effect implied per study (its cluster's location)
	LogLike      float64   // Log likelihood at draw time
}

// Snapshot records the current state as a draw.
func (s *State) Snapshot(index int, sweep int) *Draw {
	n := len(s.assign)
	d := &Draw{
		Index:        index,
		Sweep:        sweep,
		Assignments:  make([]int, n),
		ClusterMeans: make([]float64, 0, s.live),
		ClusterSizes: make([]int, 0, s.live),
		ClusterCount: s.live,
		BasePrec:     s.basePrec,
		Effects:      make([]float64, n),
		LogLike:      s.LogLikelihood(),
	}

	compact := make(map[int]int, s.live)
	for i, id := range s.assign {
		lbl, ok := compact[id]
		if !ok {
			lbl = len(compact)
			compact[id] = lbl
			c := &s.clusters[id]
			d.ClusterMeans = append(d.ClusterMeans, c.mean)
			d.ClusterSizes = append(d.ClusterSizes, c.size)
		}
		d.Assignments[i] = lbl
		d.Effects[i] = s.clusters[id].mean
	}

	return d
}
