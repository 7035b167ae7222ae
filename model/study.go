package model

import (
	"math"

	"github.com/pkg/errors"
)

// Study is a single estimate included in a meta-analysis: an effect on the
// analysis scale (for prevalence work, usually a logit- or double-arcsine
// transformed proportion) and its sampling variance. The variance is treated
// as a known constant of the study and is never re-estimated.
type Study struct {
	ID       string  // Label used in reports (often author-year or site)
	Effect   float64 // Point estimate on the analysis scale
	Variance float64 // Known sampling variance of Effect
}

// Clone returns a copy of the study.
func (s *Study) Clone() *Study {
	return &Study{
		ID:       s.ID,
		Effect:   s.Effect,
		Variance: s.Variance,
	}
}

// Check returns an error if any problem is found
func (s *Study) Check() error {
	if len(s.ID) < 1 {
		return errors.Errorf("Study has an empty ID")
	}

	if math.IsNaN(s.Effect) || math.IsInf(s.Effect, 0) {
		return errors.Errorf("Study %s has non-finite effect %f", s.ID, s.Effect)
	}

	// A zero variance would give the study infinite precision and break
	// every conditional the sampler computes, so it is rejected up front.
	if math.IsNaN(s.Variance) || math.IsInf(s.Variance, 0) || s.Variance <= 0.0 {
		return errors.Errorf("Study %s has invalid variance %f - must be finite and > 0", s.ID, s.Variance)
	}

	return nil
}

// Prec returns the precision (inverse variance) of the study estimate.
func (s *Study) Prec() float64 {
	return 1.0 / s.Variance
}

// Dataset is the ordered collection of studies for one analysis. Order
// matters: samplers visit studies by index and draw snapshots are aligned to
// this ordering.
type Dataset struct {
	Name    string   // Dataset name
	Studies []*Study // Studies in report order
}

// NewDataset builds a dataset directly from parallel effect/variance arrays.
// Studies are given generated IDs (A, B, C, ...).
func NewDataset(name string, effects []float64, variances []float64) (*Dataset, error) {
	if len(effects) != len(variances) {
		return nil, errors.Errorf("Mismatched arrays: %d effects but %d variances", len(effects), len(variances))
	}

	ds := &Dataset{
		Name:    name,
		Studies: make([]*Study, len(effects)),
	}

	for i := range effects {
		ds.Studies[i] = &Study{
			ID:       letter26(i),
			Effect:   effects[i],
			Variance: variances[i],
		}
	}

	err := ds.Check()
	if err != nil {
		return nil, errors.Wrapf(err, "Could not create dataset %s", name)
	}

	return ds, nil
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	cp := &Dataset{
		Name:    d.Name,
		Studies: make([]*Study, len(d.Studies)),
	}

	for i, s := range d.Studies {
		cp.Studies[i] = s.Clone()
	}

	return cp
}

// Len returns the number of studies in the dataset.
func (d *Dataset) Len() int {
	return len(d.Studies)
}

// IDs returns the study labels in dataset order.
func (d *Dataset) IDs() []string {
	ids := make([]string, len(d.Studies))
	for i, s := range d.Studies {
		ids[i] = s.ID
	}
	return ids
}

// Check returns an error if there is a problem with the dataset
func (d *Dataset) Check() error {
	if len(d.Studies) < 1 {
		return errors.Errorf("Dataset %s has no studies", d.Name)
	}

	ids := make(map[string]bool)
	for _, s := range d.Studies {
		e := s.Check()
		if e != nil {
			return errors.Wrapf(e, "Dataset %s has an invalid study", d.Name)
		}

		_, ok := ids[s.ID]
		if ok {
			return errors.Errorf("Duplicate ID %s in dataset %s", s.ID, d.Name)
		}
		ids[s.ID] = true
	}

	return nil
}

func divmod(numerator, denominator int) (quotient, remainder int) {
	quotient = numerator / denominator // integer division, decimals are truncated
	remainder = numerator % denominator
	return
}

// letter26 is sort of base-26 with only letters, but A=0 *and* the start digit (so 0=A, 1=B, and ZZ+1=AAA)
func letter26(n int) string {
	// Easy for n==0
	if n == 0 {
		return "A"
	}
	// Need to bump up one
	n++

	const LETTERS = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits := make([]byte, 0, 8)
	var remain int
	for n > 0 {
		n, remain = divmod(n-1, 26)
		digits = append(digits, LETTERS[remain])
	}

	//reverse
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	return string(digits)
}
