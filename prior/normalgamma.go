// Package prior holds the conjugate math for the sampler's base measure.
// Every study arrives with a known sampling variance, so all the
// conditionals here have closed forms: nothing in this package needs
// numerical integration or optimization.
package prior

import (
	"math"

	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NormalGamma is the base measure machinery: cluster locations are drawn
// from Normal(Mu0, 1/lambda0), and the base precision lambda0 itself carries
// a Gamma(Tau1, Tau2) prior (shape/rate). Callers are expected to have
// validated the parameters (model.Hyperparameters.Check).
type NormalGamma struct {
	Mu0  float64 // Base measure mean
	Tau1 float64 // Gamma shape for the base precision
	Tau2 float64 // Gamma rate for the base precision
}

// PriorPrecMean returns the prior mean Tau1/Tau2 of the base precision.
// Samplers use it as the deterministic starting value for lambda0.
func (ng NormalGamma) PriorPrecMean() float64 {
	return ng.Tau1 / ng.Tau2
}

// MeanPosterior returns the Normal conditional over a cluster location given
// the cluster's current members as Normal(mean, 1/prec). sumPrec is the
// summed precision (1/v_j) over members and sumObsPrec the precision-weighted
// effect sum (y_j/v_j); both are zero for an empty cluster, which recovers
// the base measure itself.
func (ng NormalGamma) MeanPosterior(basePrec, sumPrec, sumObsPrec float64) (mean float64, prec float64) {
	prec = basePrec + sumPrec
	mean = (basePrec*ng.Mu0 + sumObsPrec) / prec
	return mean, prec
}

// LogPredictive returns the log density of a single effect y with sampling
// variance v under a brand-new cluster with the location integrated out:
// Normal(y; Mu0, 1/basePrec + v).
func (ng NormalGamma) LogPredictive(basePrec, y, v float64) float64 {
	return LogNormPDF(y, ng.Mu0, 1.0/basePrec+v)
}

// PrecPosterior returns the Gamma(shape, rate) conditional for the base
// precision given the current cluster locations.
func (ng NormalGamma) PrecPosterior(means []float64) (shape float64, rate float64) {
	shape = ng.Tau1 + float64(len(means))/2.0
	rate = ng.Tau2
	for _, m := range means {
		d := m - ng.Mu0
		rate += 0.5 * d * d
	}
	return shape, rate
}

// LogNormPDF returns the log density of y under Normal(mean, variance).
func LogNormPDF(y, mean, variance float64) float64 {
	d := y - mean
	return -0.5 * (math.Log(2.0*math.Pi*variance) + d*d/variance)
}

// DrawMean samples a cluster location from Normal(mean, 1/prec).
func DrawMean(mean, prec float64, src exprand.Source) float64 {
	dist := distuv.Normal{
		Mu:    mean,
		Sigma: math.Sqrt(1.0 / prec),
		Src:   src,
	}
	return dist.Rand()
}

// DrawPrec samples a base precision from Gamma(shape, rate).
func DrawPrec(shape, rate float64, src exprand.Source) float64 {
	dist := distuv.Gamma{
		Alpha: shape,
		Beta:  rate,
		Src:   src,
	}
	return dist.Rand()
}
