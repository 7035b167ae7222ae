package sampler

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/rand"
)

// Result is the pooled outcome for one concentration value in a sensitivity
// sweep. Draws are concatenated across replicate chains in replicate order.
type Result struct {
	Alpha            float64
	Draws            []*Draw
	MeanClusterCount float64
}

// RunSensitivity reruns the same dataset and schedule across several
// concentration values with replicate chains per value. Chains run in
// parallel, and each gets its own generator (seeded deterministically from
// baseSeed), its own copy of the dataset, and its own state, so no memory is
// shared and the outcome never depends on goroutine scheduling. Results come
// back in the order of the alphas argument; the first chain failure fails
// the whole sweep.
func RunSensitivity(ctx context.Context, samplerName string, ds *model.Dataset, h model.Hyperparameters, plan model.Schedule, alphas []float64, replicates int, baseSeed int64) ([]*Result, error) {
	if ds == nil {
		return nil, errors.New("No dataset supplied")
	}
	if len(alphas) < 1 {
		return nil, errors.New("No concentration values supplied")
	}
	if replicates < 1 {
		return nil, errors.Errorf("Invalid replicate count %d - must be >= 1", replicates)
	}

	// One slot per chain so the goroutines never touch shared memory
	type slot struct {
		draws []*Draw
		err   error
	}
	slots := make([]slot, len(alphas)*replicates)

	var wg sync.WaitGroup
	for ai, alpha := range alphas {
		for r := 0; r < replicates; r++ {
			idx := ai*replicates + r
			hyper := h
			hyper.Alpha = alpha

			wg.Add(1)
			go func(idx int, hyper model.Hyperparameters, seed int64) {
				defer wg.Done()

				gen, err := rand.NewGenerator(seed)
				if err != nil {
					slots[idx].err = err
					return
				}

				samp, err := New(samplerName, gen, ds.Clone(), hyper, InitShared)
				if err != nil {
					slots[idx].err = err
					return
				}

				chain, err := NewChain(samp, plan)
				if err != nil {
					slots[idx].err = err
					return
				}

				err = chain.Run(ctx)
				if err != nil {
					slots[idx].err = err
					return
				}

				slots[idx].draws = chain.Draws
			}(idx, hyper, baseSeed+int64(idx))
		}
	}
	wg.Wait()

	results := make([]*Result, len(alphas))
	for ai, alpha := range alphas {
		res := &Result{Alpha: alpha}

		for r := 0; r < replicates; r++ {
			sl := &slots[ai*replicates+r]
			if sl.err != nil {
				return nil, errors.Wrapf(sl.err, "Chain failed (alpha=%f, replicate=%d)", alpha, r)
			}
			res.Draws = append(res.Draws, sl.draws...)
		}

		for _, d := range res.Draws {
			res.MeanClusterCount += float64(d.ClusterCount)
		}
		res.MeanClusterCount /= float64(len(res.Draws))

		results[ai] = res
	}

	return results, nil
}
