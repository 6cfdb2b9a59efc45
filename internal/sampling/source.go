package sampling

import "math/rand/v2"

// Source produces uniform draws in [0, 1). Every random decision made by the
// sampler and the sequence builder goes through a single Source so that a
// session can be replayed from its seed.
type Source interface {
	Float64() float64
}

type pcgSource struct {
	r *rand.Rand
}

func (s *pcgSource) Float64() float64 { return s.r.Float64() }

// NewSeededSource returns a deterministic PCG-backed Source.
func NewSeededSource(seed uint64) Source {
	return &pcgSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// RandomSeed returns a fresh non-zero seed. Zero is reserved to mean
// "pick one for me" in configuration.
func RandomSeed() uint64 {
	for {
		if s := rand.Uint64(); s != 0 {
			return s
		}
	}
}
