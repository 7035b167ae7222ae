package model

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Sampler name constants - accepted in run specs and on the command line
const (
	GIBBS     = "gibbs"
	COLLAPSED = "collapsed"
)

// RunSpec is the YAML description of a complete sampler run. Fields omitted
// from the YAML stay at their defaults, so a minimal spec can set nothing
// but a seed.
type RunSpec struct {
	Seed    int64           `yaml:"seed"`
	Sampler string          `yaml:"sampler"`
	Hyper   Hyperparameters `yaml:"hyperparameters"`
	MCMC    Schedule        `yaml:"mcmc"`
}

// DefaultRunSpec returns a run spec populated with our defaults. It is valid
// as-is.
func DefaultRunSpec() *RunSpec {
	return &RunSpec{
		Seed:    1,
		Sampler: GIBBS,
		Hyper:   DefaultHyper(),
		MCMC:    DefaultSchedule(),
	}
}

// NewRunSpecFromFile reads and validates a YAML run spec.
func NewRunSpecFromFile(filename string) (*RunSpec, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ run spec from %s", filename)
	}

	return NewRunSpecFromBuffer(data)
}

// NewRunSpecFromBuffer parses and validates a YAML run spec from pre-read data.
func NewRunSpecFromBuffer(data []byte) (*RunSpec, error) {
	rs := DefaultRunSpec()

	err := yaml.Unmarshal(data, rs)
	if err != nil {
		return nil, errors.Wrap(err, "Could not PARSE run spec")
	}

	err = rs.Check()
	if err != nil {
		return nil, errors.Wrap(err, "Parsed run spec is not valid")
	}

	return rs, nil
}

// Check returns an error if any problem is found
func (rs *RunSpec) Check() error {
	if rs.Sampler != GIBBS && rs.Sampler != COLLAPSED {
		return errors.Errorf("Unknown sampler %s", rs.Sampler)
	}

	err := rs.Hyper.Check()
	if err != nil {
		return errors.Wrap(err, "Run spec has invalid hyperparameters")
	}

	err = rs.MCMC.Check()
	if err != nil {
		return errors.Wrap(err, "Run spec has an invalid MCMC schedule")
	}

	return nil
}
