package posterior

import (
	"math"
)

// AlignPMFs puts two cluster-count pmfs on a shared support so the
// divergence functions can compare them cell by cell. The support runs from
// count 1 up to the largest count either pmf mentions; counts a pmf never
// saw get probability zero.
func AlignPMFs(a map[int]float64, b map[int]float64) ([]float64, []float64) {
	maxK := 1
	for k := range a {
		if k > maxK {
			maxK = k
		}
	}
	for k := range b {
		if k > maxK {
			maxK = k
		}
	}

	p := make([]float64, maxK)
	q := make([]float64, maxK)
	for k, v := range a {
		if k >= 1 {
			p[k-1] = v
		}
	}
	for k, v := range b {
		if k >= 1 {
			q[k-1] = v
		}
	}

	return p, q
}

// Hellinger returns the Hellinger distance between two discrete
// distributions over the same support:
// sqrt(sum((sqrt(p) - sqrt(q))**2)) / sqrt(2)
// The inputs need not be normalized (but must be non-negative); both slices
// must have the same length.
func Hellinger(p []float64, q []float64) float64 {
	// get totals for normalizing
	tot1, tot2 := float64(0.0), float64(0.0)
	const eps = 1e-12

	for c := range p {
		tot1 += p[c]
		tot2 += q[c]
	}
	if tot1 < eps {
		tot1 = eps
	}
	if tot2 < eps {
		tot2 = eps
	}

	errSum := float64(0.0)
	for c := range p {
		adjVal1 := math.Sqrt(p[c] / tot1)
		adjVal2 := math.Sqrt(q[c] / tot2)
		err := math.Pow(adjVal1-adjVal2, 2) // squared, so always positive
		errSum += err
	}

	return math.Sqrt(errSum) / math.Sqrt2
}

// klDivergence returns the Kullback-Leibler divergence, which is
// non-symmetric! This is strictly a subroutine for JS Divergence, so there
// is no error checking and the arrays are assumed normalized (so
// sum(p1) == sum(p2) == 1.0).
// klDivergence(P, Q) <==> D_{KL}(P || Q)
func klDivergence(v1 []float64, v2 []float64) float64 {
	diverge := float64(0.0)
	for i, p1 := range v1 {
		if p1 <= 0.0 {
			continue // zero cells contribute nothing
		}
		diverge += p1 * math.Log2(p1/v2[i])
	}

	return diverge
}

// JSDivergence returns the Jensen-Shannon divergence, which is a symmetric
// generalization of the KL divergence. The inputs need not be normalized;
// both slices must have the same length.
func JSDivergence(p []float64, q []float64) float64 {
	const eps = float64(1e-12)

	// get totals for normalizing
	tot1, tot2 := float64(0.0), float64(0.0)
	for c := range p {
		tot1 += p[c]
		tot2 += q[c]
	}
	if tot1 < eps {
		tot1 = eps
	}
	if tot2 < eps {
		tot2 = eps
	}

	p1Norm := make([]float64, len(p))
	p2Norm := make([]float64, len(p))
	mid := make([]float64, len(p))
	for i, p1 := range p {
		p2 := q[i]
		p1Norm[i] = p1 / tot1
		p2Norm[i] = p2 / tot2
		mid[i] = (p1Norm[i] + p2Norm[i]) * 0.5
	}

	return 0.5 * (klDivergence(p1Norm, mid) + klDivergence(p2Norm, mid))
}
