package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/model"
	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/rand"
)

func TestNewSamplerFactory(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(42)
	assert.NoError(err)

	samp, err := New(model.GIBBS, gen, twoGroupDataset(), twoGroupHyper(), InitShared)
	assert.NoError(err)
	assert.IsType(&Gibbs{}, samp)

	samp, err = New(model.COLLAPSED, gen, twoGroupDataset(), twoGroupHyper(), InitShared)
	assert.NoError(err)
	assert.IsType(&CollapsedGibbs{}, samp)

	samp, err = New("rejection", gen, twoGroupDataset(), twoGroupHyper(), InitShared)
	assert.Error(err)
	assert.Nil(samp)

	samp, err = New(model.GIBBS, nil, twoGroupDataset(), twoGroupHyper(), InitShared)
	assert.Error(err)
	assert.Nil(samp)
}

func TestDrawCategorical(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(42)
	assert.NoError(err)

	// Single weight: no choice to make
	k, err := drawCategorical(gen, []float64{math.Log(1.0)})
	assert.NoError(err)
	assert.Equal(0, k)

	// An overwhelming weight always wins
	for i := 0; i < 100; i++ {
		k, err = drawCategorical(gen, []float64{-1000.0, 0.0, -1000.0})
		assert.NoError(err)
		assert.Equal(1, k)
	}

	// -Inf entries are fine as long as one weight survives
	for i := 0; i < 100; i++ {
		k, err = drawCategorical(gen, []float64{math.Inf(-1), 0.0})
		assert.NoError(err)
		assert.Equal(1, k)
	}

	// A shared scale cancels, even one that would overflow exp directly
	counts := [2]int{}
	for i := 0; i < 1000; i++ {
		k, err = drawCategorical(gen, []float64{800.0, 800.0 + math.Log(3.0)})
		assert.NoError(err)
		counts[k]++
	}
	assert.True(counts[0] > 0)
	assert.True(counts[1] > counts[0])

	// Fully degenerate weights are an explicit error
	_, err = drawCategorical(gen, []float64{math.Inf(-1), math.Inf(-1)})
	assert.ErrorIs(err, ErrNumericalInstability)

	_, err = drawCategorical(gen, []float64{math.NaN(), 0.0})
	assert.ErrorIs(err, ErrNumericalInstability)

	_, err = drawCategorical(gen, nil)
	assert.ErrorIs(err, ErrNumericalInstability)
}

func TestGibbsSweepInvariants(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(42)
	assert.NoError(err)

	samp, err := NewGibbs(gen, twoGroupDataset(), twoGroupHyper(), InitShared)
	assert.NoError(err)

	for i := 0; i < 200; i++ {
		assert.NoError(samp.Sweep())

		s := samp.State()
		assert.NoError(s.Check())
		assert.True(s.ClusterCount() >= 1 && s.ClusterCount() <= 5)

		ll := s.LogLikelihood()
		assert.False(math.IsNaN(ll) || math.IsInf(ll, 0))
	}
}

func TestGibbsFindsGroups(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(42)
	assert.NoError(err)

	samp, err := NewGibbs(gen, twoGroupDataset(), twoGroupHyper(), InitShared)
	assert.NoError(err)

	const total, keep = 400, 200
	within, across := 0, 0
	for i := 0; i < total; i++ {
		assert.NoError(samp.Sweep())
		if i >= total-keep {
			d := samp.State().Snapshot(0, i)
			if d.Assignments[0] == d.Assignments[1] {
				within++
			}
			if d.Assignments[0] == d.Assignments[3] {
				across++
			}
		}
	}

	// The groups are separated by ~25 standard errors, so these are loose
	assert.True(within > keep/2, "within-group co-clustering too rare: %d of %d", within, keep)
	assert.True(across < keep/2, "cross-group co-clustering too common: %d of %d", across, keep)
}

func TestGibbsReproducible(t *testing.T) {
	assert := assert.New(t)

	run := func(seed int64) []*Draw {
		gen, err := rand.NewGenerator(seed)
		assert.NoError(err)

		samp, err := NewGibbs(gen, twoGroupDataset(), twoGroupHyper(), InitShared)
		assert.NoError(err)

		draws := []*Draw{}
		for i := 1; i <= 100; i++ {
			assert.NoError(samp.Sweep())
			if i%20 == 0 {
				draws = append(draws, samp.State().Snapshot(len(draws), i))
			}
		}
		return draws
	}

	// Same seed must be bit-identical; a different seed must not be
	assert.Equal(run(42), run(42))
	assert.NotEqual(run(42), run(43))
}

var sweepIts int

func benchDataset(b *testing.B, n int) *model.Dataset {
	groups := []float64{-2.0, -1.0, 1.0, 2.0}
	effects := make([]float64, n)
	variances := make([]float64, n)
	for i := range effects {
		effects[i] = groups[i%len(groups)] + float64(i%7)*0.01
		variances[i] = 0.01
	}

	ds, err := model.NewDataset("bench", effects, variances)
	if err != nil {
		b.Fatalf("Could not build benchmark dataset %v", err)
	}
	return ds
}

func BenchmarkGibbsSweep(b *testing.B) {
	gen, err := rand.NewGenerator(42)
	if err != nil {
		b.Fatalf("Could not init PRNG %v", err)
	}

	samp, err := NewGibbs(gen, benchDataset(b, 40), twoGroupHyper(), InitShared)
	if err != nil {
		b.Fatalf("Could not create sampler %v", err)
	}

	b.ResetTimer()

	it := 0
	for i := 0; i < b.N; i++ {
		err = samp.Sweep()
		if err != nil {
			b.Fatalf("Failure on sweep %d %v", i, err)
		}
		it++
	}
	sweepIts = it
}
