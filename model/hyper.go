package model

import (
	"math"

	"github.com/pkg/errors"
)

// Hyperparameters collects the fixed inputs to a single sampler run. Alpha
// is the Dirichlet process concentration. Cluster locations are drawn from
// the base measure Normal(Mu0, 1/lambda0), where the base precision lambda0
// carries a Gamma(Tau1, Tau2) prior (shape/rate parameterization) and is
// refreshed by the sampler once per sweep.
type Hyperparameters struct {
	Alpha float64 `yaml:"alpha"`
	Mu0   float64 `yaml:"mu0"`
	Tau1  float64 `yaml:"tau1"`
	Tau2  float64 `yaml:"tau2"`
}

// DefaultHyper returns the hyperparameters used when a run spec does not say
// otherwise: unit concentration and a vague zero-centered base measure.
func DefaultHyper() Hyperparameters {
	return Hyperparameters{
		Alpha: 1.0,
		Mu0:   0.0,
		Tau1:  2.0,
		Tau2:  2.0,
	}
}

// Check returns an error if any problem is found
func (h Hyperparameters) Check() error {
	if math.IsNaN(h.Alpha) || math.IsInf(h.Alpha, 0) || h.Alpha <= 0.0 {
		return errors.Errorf("Invalid concentration alpha=%f - must be finite and > 0", h.Alpha)
	}

	if math.IsNaN(h.Mu0) || math.IsInf(h.Mu0, 0) {
		return errors.Errorf("Invalid base mean mu0=%f", h.Mu0)
	}

	if math.IsNaN(h.Tau1) || math.IsInf(h.Tau1, 0) || h.Tau1 <= 0.0 {
		return errors.Errorf("Invalid precision shape tau1=%f - must be finite and > 0", h.Tau1)
	}

	if math.IsNaN(h.Tau2) || math.IsInf(h.Tau2, 0) || h.Tau2 <= 0.0 {
		return errors.Errorf("Invalid precision rate tau2=%f - must be finite and > 0", h.Tau2)
	}

	return nil
}

// Schedule fixes the sweep plan for one chain: BurnIn discarded sweeps
// followed by SaveCount recorded draws taken every Thinning sweeps. If
// DisplayInterval is > 0 the chain reports progress every that many sweeps.
type Schedule struct {
	BurnIn          int `yaml:"burnin"`
	SaveCount       int `yaml:"draws"`
	Thinning        int `yaml:"thinning"`
	DisplayInterval int `yaml:"display,omitempty"`
}

// DefaultSchedule returns the sweep plan used when a run spec does not say
// otherwise.
func DefaultSchedule() Schedule {
	return Schedule{
		BurnIn:    1000,
		SaveCount: 500,
		Thinning:  5,
	}
}

// Check returns an error if any problem is found
func (s Schedule) Check() error {
	if s.BurnIn < 0 {
		return errors.Errorf("Invalid burn-in %d - must be >= 0", s.BurnIn)
	}

	if s.SaveCount < 1 {
		return errors.Errorf("Invalid draw count %d - must be >= 1", s.SaveCount)
	}

	if s.Thinning < 1 {
		return errors.Errorf("Invalid thinning %d - must be >= 1", s.Thinning)
	}

	if s.DisplayInterval < 0 {
		return errors.Errorf("Invalid display interval %d - must be >= 0", s.DisplayInterval)
	}

	return nil
}

// TotalSweeps returns the number of sweeps a complete run performs.
func (s Schedule) TotalSweeps() int {
	return s.BurnIn + s.SaveCount*s.Thinning
}
