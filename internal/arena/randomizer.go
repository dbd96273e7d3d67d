package arena

import (
	"math/rand/v2"
	"sync"

	"github.com/ahrav/go-arena/internal/domain"
)

// Randomizer assigns left/right presentation independently per unit.
// It owns an explicitly seeded generator so runs can be reproduced.
type Randomizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomizer returns a randomizer whose draws are fully determined by seed.
func NewRandomizer(seed uint64) *Randomizer {
	return &Randomizer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomizerFromSource wraps an arbitrary source.
func NewRandomizerFromSource(src rand.Source) *Randomizer {
	return &Randomizer{rng: rand.New(src)}
}

// Randomize returns a copy of units in which each unit's answers are swapped
// with probability one half. A swapped unit has LeftIsBackendA false. Units
// are read in canonical A-left order; the input slice is not modified.
func (r *Randomizer) Randomize(units []domain.ComparisonUnit) []domain.ComparisonUnit {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.ComparisonUnit, len(units))
	for i, u := range units {
		a, b := u.AnswerFromA(), u.AnswerFromB()
		if r.rng.IntN(2) == 1 {
			out[i] = domain.ComparisonUnit{
				Question:       u.Question,
				AnswerLeft:     b,
				AnswerRight:    a,
				LeftIsBackendA: false,
				Judgment:       u.Judgment,
			}
			continue
		}
		out[i] = domain.ComparisonUnit{
			Question:       u.Question,
			AnswerLeft:     a,
			AnswerRight:    b,
			LeftIsBackendA: true,
			Judgment:       u.Judgment,
		}
	}
	return out
}
