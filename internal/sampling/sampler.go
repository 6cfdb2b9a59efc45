// Package sampling provides the random primitives used to generate trial
// stimuli: uniform angle draws on a discrete grid, Box-Muller Gaussian
// offsets, and bounded rejection sampling of (near, far) comparison pairs.
package sampling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/nvandessel/triad-choice/internal/constants"
	"github.com/nvandessel/triad-choice/internal/logging"
)

// ErrSamplingExhausted is returned by TrySampleNearFar when no valid pair was
// found within Params.MaxAttempts draws.
var ErrSamplingExhausted = errors.New("near/far sampling exhausted")

// DefaultMaxAttempts bounds the near/far rejection loop when Params.MaxAttempts is unset.
const DefaultMaxAttempts = constants.MaxSamplingAttempts

// maxZeroDraws bounds the re-draws of an exact zero in the Box-Muller input.
const maxZeroDraws = 64

// Params holds the sampling constants for one task variant. Degree trials and
// rotation-index trials share the algorithm and differ only in these values.
type Params struct {
	// AngleStep is the grid spacing of valid angles (5 for degrees, 1 for indices).
	AngleStep int `json:"angle_step" yaml:"angle_step" validate:"gte=1"`

	// MaxAngle is the largest valid angle. Must be a multiple of AngleStep.
	MaxAngle int `json:"max_angle" yaml:"max_angle" validate:"gte=1"`

	// SDNear is the standard deviation of the near comparison around the reference.
	SDNear float64 `json:"sd_near" yaml:"sd_near" validate:"gt=0"`

	// SDFar is the standard deviation of the far comparison around the reference.
	SDFar float64 `json:"sd_far" yaml:"sd_far" validate:"gt=0"`

	// MinSeparation is the minimum |far - near| for generated trials.
	MinSeparation int `json:"min_separation" yaml:"min_separation" validate:"gte=0"`

	// MaxAttempts bounds the rejection loop before falling back. 0 means DefaultMaxAttempts.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty" validate:"gte=0"`
}

// GridSize returns the number of valid angles, MaxAngle/AngleStep + 1.
func (p Params) GridSize() int {
	return p.MaxAngle/p.AngleStep + 1
}

// OnGrid reports whether angle is within [0, MaxAngle] and a multiple of AngleStep.
func (p Params) OnGrid(angle int) bool {
	return angle >= 0 && angle <= p.MaxAngle && angle%p.AngleStep == 0
}

// StepSeparation is MinSeparation (at least 1) rounded up to the angle grid.
// It is the smallest on-grid distance that satisfies the separation rule.
func (p Params) StepSeparation() int {
	sep := max(p.MinSeparation, 1)
	return ((sep + p.AngleStep - 1) / p.AngleStep) * p.AngleStep
}

func (p Params) maxAttempts() int {
	if p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return DefaultMaxAttempts
}

// NearFar is a sampled pair of comparison angles.
type NearFar struct {
	Near int `json:"near"`
	Far  int `json:"far"`
}

// Sampler draws trial angles from a Source. It is not safe for concurrent use.
type Sampler struct {
	params    Params
	src       Source
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// NewSampler creates a sampler. p is assumed to be validated.
func NewSampler(p Params, src Source) *Sampler {
	return &Sampler{params: p, src: src}
}

// SetLogger sets the structured logger and decision logger for observability.
func (s *Sampler) SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger) {
	s.logger = logger
	s.decisions = decisions
}

// Params returns the sampler's parameters.
func (s *Sampler) Params() Params {
	return s.params
}

// IntN returns a uniform integer in [0, n).
func (s *Sampler) IntN(n int) int {
	if n <= 1 {
		return 0
	}
	v := int(s.src.Float64() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// SampleUniformAngle draws one of the GridSize() angles with equal probability.
func (s *Sampler) SampleUniformAngle() int {
	return s.IntN(s.params.GridSize()) * s.params.AngleStep
}

// SampleGaussianOffset returns round(N(0, sd)) using the Box-Muller transform.
func (s *Sampler) SampleGaussianOffset(sd float64) int {
	u := s.nonZero()
	v := s.nonZero()
	z := math.Sqrt(-2.0*math.Log(u)) * math.Cos(2.0*math.Pi*v)
	return int(math.Round(z * sd))
}

// nonZero draws from (0, 1). A source stuck on zero yields 1, which makes the
// Box-Muller radius collapse to 0 instead of diverging.
func (s *Sampler) nonZero() float64 {
	for range maxZeroDraws {
		if u := s.src.Float64(); u != 0 {
			return u
		}
	}
	return 1
}

// Clamp limits angle to [0, MaxAngle].
func (s *Sampler) Clamp(angle int) int {
	return min(max(angle, 0), s.params.MaxAngle)
}

// Snap clamps angle and rounds it to the nearest grid value.
func (s *Sampler) Snap(angle int) int {
	step := s.params.AngleStep
	a := s.Clamp(angle)
	snapped := int(math.Round(float64(a)/float64(step))) * step
	if snapped > s.params.MaxAngle {
		snapped -= step
	}
	return snapped
}

// ValidPair reports whether near and far satisfy the separation rule.
func (s *Sampler) ValidPair(near, far int) bool {
	d := far - near
	if d < 0 {
		d = -d
	}
	return near != far && d >= s.params.MinSeparation && far <= s.params.MaxAngle
}

// TrySampleNearFar runs the rejection loop around ref. It returns the number
// of attempts used and ErrSamplingExhausted, along with the last candidate,
// when the attempt budget runs out.
func (s *Sampler) TrySampleNearFar(ref int) (NearFar, int, error) {
	limit := s.params.maxAttempts()
	var nf NearFar
	for attempt := 1; attempt <= limit; attempt++ {
		nf.Near = s.Snap(ref + s.SampleGaussianOffset(s.params.SDNear))
		nf.Far = s.Snap(ref + s.SampleGaussianOffset(s.params.SDFar))
		if s.ValidPair(nf.Near, nf.Far) {
			return nf, attempt, nil
		}
	}
	return nf, limit, fmt.Errorf("ref %d after %d attempts: %w", ref, limit, ErrSamplingExhausted)
}

// SampleNearFar returns a valid (near, far) pair around ref. If the rejection
// loop is exhausted the last near candidate is kept and far is placed
// deterministically StepSeparation() away from it.
func (s *Sampler) SampleNearFar(ref int) NearFar {
	nf, attempts, err := s.TrySampleNearFar(ref)
	if err == nil {
		if s.logger != nil {
			s.logger.Log(context.Background(), logging.LevelTrace, "near/far accepted", "ref", ref, "near", nf.Near, "far", nf.Far, "attempts", attempts)
		}
		if s.decisions != nil {
			s.decisions.Log(map[string]any{
				"event":    "near_far_sampled",
				"ref":      ref,
				"near":     nf.Near,
				"far":      nf.Far,
				"attempts": attempts,
			})
		}
		return nf
	}

	fallback := s.Fallback(nf.Near)
	if s.logger != nil {
		s.logger.Warn("near/far sampling fell back", "ref", ref, "near", fallback.Near, "far", fallback.Far, "error", err)
	}
	if s.decisions != nil {
		s.decisions.Log(map[string]any{
			"event":    "near_far_fallback",
			"ref":      ref,
			"near":     fallback.Near,
			"far":      fallback.Far,
			"attempts": attempts,
		})
	}
	return fallback
}

// Fallback pushes far to near + StepSeparation(). When that leaves the valid
// range far goes below near instead, and when neither side fits the pair is
// anchored at 0.
func (s *Sampler) Fallback(near int) NearFar {
	sep := s.params.StepSeparation()
	switch {
	case near+sep <= s.params.MaxAngle:
		return NearFar{Near: near, Far: near + sep}
	case near-sep >= 0:
		return NearFar{Near: near, Far: near - sep}
	default:
		return NearFar{Near: 0, Far: sep}
	}
}
