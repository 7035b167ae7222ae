package sampler

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AbigailYuHaixin/Bayesian-Nonparametric-and-Meta-Analyses-of-COVID19-Studies/rand"
)

func TestCollapsedSweepInvariants(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(42)
	assert.NoError(err)

	// Singleton start: the collapsed sampler has to merge its way down
	samp, err := NewCollapsedGibbs(gen, twoGroupDataset(), twoGroupHyper(), InitSingleton)
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

func TestCollapsedFindsGroups(t *testing.T) {
	assert := assert.New(t)

	gen, err := rand.NewGenerator(42)
	assert.NoError(err)

	samp, err := NewCollapsedGibbs(gen, twoGroupDataset(), twoGroupHyper(), InitShared)
	assert.NoError(err)

	const total, keep = 400, 200
	within, across := 0, 0
	for i := 0; i < total; i++ {
		assert.NoError(samp.Sweep())
		if i >= total-keep {
			d := samp.State().Snapshot(0, i)
			if d.Assignments[1] == d.Assignments[2] {
				within++
			}
			if d.Assignments[2] == d.Assignments[4] {
				across++
			}
		}
	}

	assert.True(within > keep/2, "within-group co-clustering too rare: %d of %d", within, keep)
	assert.True(across < keep/2, "cross-group co-clustering too common: %d of %d", across, keep)
}

func TestCollapsedReproducible(t *testing.T) {
	assert := assert.New(t)

	run := func(seed int64) []*Draw {
		gen, err := rand.NewGenerator(seed)
		assert.NoError(err)

		samp, err := NewCollapsedGibbs(gen, twoGroupDataset(), twoGroupHyper(), InitShared)
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

	assert.Equal(run(42), run(42))

	// The two samplers share a state but not a conditional: their
	// trajectories must differ even on the same seed
	gen1, err := rand.NewGenerator(42)
	assert.NoError(err)
	gen2, err := rand.NewGenerator(42)
	assert.NoError(err)

	explicit, err := NewGibbs(gen1, twoGroupDataset(), twoGroupHyper(), InitSingleton)
	assert.NoError(err)
	collapsed, err := NewCollapsedGibbs(gen2, twoGroupDataset(), twoGroupHyper(), InitSingleton)
	assert.NoError(err)

	for i := 0; i < 20; i++ {
		assert.NoError(explicit.Sweep())
		assert.NoError(collapsed.Sweep())
	}
	assert.NotEqual(explicit.State().Snapshot(0, 20), collapsed.State().Snapshot(0, 20))
}

var colSweepIts int

func BenchmarkCollapsedSweep(b *testing.B) {
	gen, err := rand.NewGenerator(42)
	if err != nil {
		b.Fatalf("Could not init PRNG %v", err)
	}

	samp, err := NewCollapsedGibbs(gen, benchDataset(b, 40), twoGroupHyper(), InitShared)
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
	colSweepIts = it
}
