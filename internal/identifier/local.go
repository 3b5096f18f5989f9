package identifier

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/jonboulle/clockwork"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// LocalPrefix starts every locally generated identifier.
const LocalPrefix = "local-"

const (
	nanoidLength = 12
	counterSpace = 1_000_000_000
)

// LocalGenerator builds degraded identifiers in-process. Each value combines
// a PCG stream seeded from the clock with an independently seeded nanoid.
type LocalGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLocalGenerator seeds a generator from clock.
func NewLocalGenerator(clock clockwork.Clock) *LocalGenerator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	seed := uint64(clock.Now().UnixNano())
	return &LocalGenerator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Generate returns one degraded identifier.
func (g *LocalGenerator) Generate() (string, error) {
	g.mu.Lock()
	n := g.rng.Uint64N(counterSpace)
	g.mu.Unlock()

	suffix, err := gonanoid.New(nanoidLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate local identifier: %w", err)
	}

	return fmt.Sprintf("%s%09d-%s", LocalPrefix, n, suffix), nil
}

// Issue implements Issuer.
func (g *LocalGenerator) Issue(_ context.Context, count int) ([]string, error) {
	if count < 1 {
		return nil, ErrInvalidCount
	}

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id, err := g.Generate()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
