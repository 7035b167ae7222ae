// Package posterior reduces a saved draw sequence to the summaries callers
// actually read. Cluster labels carry no meaning across draws (the mixture
// components are exchangeable), so everything here is either label-invariant
// (co-clustering probabilities, cluster-count distribution) or computed after
// a deterministic canonical relabeling by ascending cluster location.
package posterior

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/prior"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/sampler"
)

// Summary is the reduction of one draw sequence. CoCluster[i][j] is the
// posterior probability that studies i and j share a cluster. Labels holds
// the modal canonical label per study (ties resolved toward the smaller
// label). Means/Lower/Upper describe each study's latent effect: the
// posterior mean and the central credible interval holding Level mass.
type Summary struct {
	N         int
	DrawCount int
	Level     float64

	CoCluster [][]float64
	Labels    []int
	Means     []float64
	Lower     []float64
	Upper     []float64

	KDist map[int]float64
	MeanK float64
}

// Summarize reduces the draws to a Summary with central credible intervals
// holding the given posterior mass.
func Summarize(draws []*sampler.Draw, level float64) (*Summary, error) {
	if len(draws) < 1 {
		return nil, errors.New("No draws to summarize")
	}
	if level <= 0.0 || level >= 1.0 {
		return nil, errors.Errorf("Invalid interval mass %f - must be in (0, 1)", level)
	}

	n := len(draws[0].Assignments)
	for _, d := range draws {
		if len(d.Assignments) != n {
			return nil, errors.Errorf("Draw %d covers %d studies, expected %d", d.Index, len(d.Assignments), n)
		}
		if len(d.ClusterMeans) != d.ClusterCount || len(d.ClusterSizes) != d.ClusterCount {
			return nil, errors.Errorf("Draw %d cluster table is inconsistent", d.Index)
		}
		for i, lbl := range d.Assignments {
			if lbl < 0 || lbl >= d.ClusterCount {
				return nil, errors.Errorf("Draw %d assigns study %d to invalid label %d", d.Index, i, lbl)
			}
		}
	}

	s := &Summary{
		N:         n,
		DrawCount: len(draws),
		Level:     level,
		CoCluster: make([][]float64, n),
		Labels:    make([]int, n),
		Means:     make([]float64, n),
		Lower:     make([]float64, n),
		Upper:     make([]float64, n),
		KDist:     make(map[int]float64),
	}
	for i := range s.CoCluster {
		s.CoCluster[i] = make([]float64, n)
	}

	// labelCounts[i] tallies study i's canonical label across draws
	labelCounts := make([]map[int]int, n)
	for i := range labelCounts {
		labelCounts[i] = make(map[int]int)
	}

	// thetas[i] is study i's latent effect trajectory (its cluster's
	// location in each draw)
	thetas := make([][]float64, n)
	for i := range thetas {
		thetas[i] = make([]float64, 0, len(draws))
	}

	for _, d := range draws {
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if d.Assignments[i] == d.Assignments[j] {
					s.CoCluster[i][j]++
				}
			}
			thetas[i] = append(thetas[i], d.ClusterMeans[d.Assignments[i]])
		}

		canon := canonicalLabels(d)
		for i, lbl := range d.Assignments {
			labelCounts[i][canon[lbl]]++
		}

		s.KDist[d.ClusterCount]++
		s.MeanK += float64(d.ClusterCount)
	}

	dc := float64(len(draws))
	s.MeanK /= dc
	for k := range s.KDist {
		s.KDist[k] /= dc
	}

	for i := 0; i < n; i++ {
		s.CoCluster[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			p := s.CoCluster[i][j] / dc
			s.CoCluster[i][j] = p
			s.CoCluster[j][i] = p
		}
	}

	lowP := (1.0 - level) / 2.0
	for i := 0; i < n; i++ {
		s.Labels[i] = modalLabel(labelCounts[i])
		s.Means[i] = stat.Mean(thetas[i], nil)

		sort.Float64s(thetas[i])
		s.Lower[i] = stat.Quantile(lowP, stat.Empirical, thetas[i], nil)
		s.Upper[i] = stat.Quantile(1.0-lowP, stat.Empirical, thetas[i], nil)
	}

	return s, nil
}

// canonicalLabels maps a draw's compact labels to canonical ones: the
// cluster with the smallest location becomes 0, the next smallest 1, and so
// on. Two draws that partition the studies identically around the same
// locations get identical canonical labels no matter how the sampler
// happened to number them.
func canonicalLabels(d *sampler.Draw) []int {
	order := make([]int, len(d.ClusterMeans))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return d.ClusterMeans[order[a]] < d.ClusterMeans[order[b]]
	})

	canon := make([]int, len(order))
	for rank, lbl := range order {
		canon[lbl] = rank
	}
	return canon
}

// modalLabel returns the most frequent label, preferring the smaller label
// on ties so the result never depends on map iteration order.
func modalLabel(counts map[int]int) int {
	best, bestCount := -1, -1
	for lbl, ct := range counts {
		if ct > bestCount || (ct == bestCount && lbl < best) {
			best, bestCount = lbl, ct
		}
	}
	return best
}

// PredictiveDensity returns the posterior predictive density at effect y for
// an unseen study with sampling variance v: the average over draws of each
// draw's mixture density plus the new-cluster component weighted by alpha.
func PredictiveDensity(draws []*sampler.Draw, h model.Hyperparameters, y float64, v float64) (float64, error) {
	if len(draws) < 1 {
		return 0.0, errors.New("No draws to average over")
	}
	if v <= 0.0 {
		return 0.0, errors.Errorf("Invalid sampling variance %f - must be > 0", v)
	}
	err := h.Check()
	if err != nil {
		return 0.0, errors.Wrap(err, "Hyperparameters are not valid")
	}

	ng := prior.NormalGamma{Mu0: h.Mu0, Tau1: h.Tau1, Tau2: h.Tau2}

	total := 0.0
	for _, d := range draws {
		denom := float64(len(d.Assignments)) + h.Alpha

		dens := 0.0
		for c, mean := range d.ClusterMeans {
			w := float64(d.ClusterSizes[c]) / denom
			dens += w * math.Exp(prior.LogNormPDF(y, mean, v))
		}
		dens += h.Alpha / denom * math.Exp(ng.LogPredictive(d.BasePrec, y, v))

		total += dens
	}

	return total / float64(len(draws)), nil
}

// RandIndex returns the Rand index between two partitions given as label
// vectors: the fraction of study pairs on which the partitions agree (both
// together or both apart). Labels only matter up to renaming.
func RandIndex(a []int, b []int) (float64, error) {
	if len(a) != len(b) {
		return 0.0, errors.Errorf("Partition length mismatch %d != %d", len(a), len(b))
	}
	if len(a) < 2 {
		return 0.0, errors.Errorf("Need at least 2 studies to compare partitions, have %d", len(a))
	}

	agree, pairs := 0, 0
	for i := 0; i < len(a); i++ {
		for j := i + 1; j < len(a); j++ {
			pairs++
			if (a[i] == a[j]) == (b[i] == b[j]) {
				agree++
			}
		}
	}

	return float64(agree) / float64(pairs), nil
}
