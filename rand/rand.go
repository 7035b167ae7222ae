package rand

import (
	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
	exprand "golang.org/x/exp/rand"
)

// A Generator is a seedable Mersenne Twister PRNG. Each sampling chain owns
// exactly one Generator: draws within a chain are sequential, so a Generator
// is not safe for concurrent use and does not need to be.
type Generator struct {
	mt *mt19937.MT19937
}

// Generator satisfies the Source interface used by gonum's distributions.
var _ exprand.Source = (*Generator)(nil)

// NewGenerator returns a new PRNG seeded with the given value.
func NewGenerator(seed int64) (*Generator, error) {
	r := mt19937.New()
	r.Seed(seed)
	return &Generator{mt: r}, nil
}

// NewGeneratorSlice returns a new PRNG seeded from a key slice using the
// canonical MT19937 array seeding.
func NewGeneratorSlice(key []uint64) (*Generator, error) {
	if len(key) < 1 {
		return nil, errors.New("PRNG key slice may not be empty")
	}

	r := mt19937.New()
	r.SeedFromSlice(key)
	return &Generator{mt: r}, nil
}

// Seed re-seeds the generator. It is part of the gonum Source interface.
func (g *Generator) Seed(seed uint64) {
	g.mt.Seed(int64(seed))
}

// Uint64 returns the next raw 64-bit value from the twister.
func (g *Generator) Uint64() uint64 {
	return g.mt.Uint64()
}

// Int63 provides the same interface as Go's math/rand.
func (g *Generator) Int63() int64 {
	return int64(g.mt.Uint64() & 0x7fffffffffffffff)
}

// Int63n is a copy of the current Go code
func (g *Generator) Int63n(n int64) int64 {
	if n <= 0 {
		panic("invalid argument to Int63n")
	}

	if n&(n-1) == 0 { // n is power of two, can mask
		return g.Int63() & (n - 1)
	}

	max := int64((1 << 63) - 1 - (1<<63)%uint64(n))
	v := g.Int63()
	for v > max {
		v = g.Int63()
	}

	return v % n
}

// Float64 uses the commented, simpler implmentation since we don't have the
// same support requirements for users
func (g *Generator) Float64() float64 {
	// See the Go lang comments for Rand Float64 implementation for details
	return float64(g.Int63n(1<<53)) / (1 << 53)
}
