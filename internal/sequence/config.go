package sequence

import (
	"errors"
	"fmt"

	"github.com/nvandessel/triad-choice/internal/models"
	"github.com/nvandessel/triad-choice/internal/sampling"
)

// ErrInvalidConfig matches every *InvalidConfigError via errors.Is.
var ErrInvalidConfig = errors.New("invalid config")

// InvalidConfigError reports a session configuration that cannot produce a
// valid sequence.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidConfig) match.
func (e *InvalidConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func invalid(field, format string, args ...any) error {
	return &InvalidConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Config describes one session's sequence.
type Config struct {
	// TotalTrials is the sequence length, catch trials included.
	TotalTrials int

	// ObjectCount is the number of distinct stimulus objects (ids 1..ObjectCount).
	ObjectCount int

	// Sampling holds the angle grid and near/far sampling constants.
	Sampling sampling.Params

	// CatchTrials is consumed in table order, one entry per catch position.
	CatchTrials []models.CatchTrial
}

// NormalTrials is the number of non-catch positions.
func (c Config) NormalTrials() int {
	return c.TotalTrials - len(c.CatchTrials)
}

// Validate returns an *InvalidConfigError describing the first problem found.
func (c Config) Validate() error {
	p := c.Sampling
	switch {
	case c.TotalTrials < 1:
		return invalid("total_trials", "must be positive, got %d", c.TotalTrials)
	case c.ObjectCount < 1:
		return invalid("object_count", "must be at least 1, got %d", c.ObjectCount)
	case p.AngleStep < 1:
		return invalid("angle_step", "must be positive, got %d", p.AngleStep)
	case p.MaxAngle < 1:
		return invalid("max_angle", "must be positive, got %d", p.MaxAngle)
	case p.MaxAngle%p.AngleStep != 0:
		return invalid("max_angle", "%d is not a multiple of angle_step %d", p.MaxAngle, p.AngleStep)
	case p.SDNear <= 0:
		return invalid("sd_near", "must be positive, got %g", p.SDNear)
	case p.SDFar <= 0:
		return invalid("sd_far", "must be positive, got %g", p.SDFar)
	case p.MinSeparation < 0:
		return invalid("min_separation", "must not be negative, got %d", p.MinSeparation)
	case p.StepSeparation() > p.MaxAngle:
		return invalid("min_separation", "%d cannot be reached within [0, %d]", p.MinSeparation, p.MaxAngle)
	case p.MaxAttempts < 0:
		return invalid("max_attempts", "must not be negative, got %d", p.MaxAttempts)
	case len(c.CatchTrials) > c.TotalTrials:
		return invalid("catch_trials", "%d entries exceed total_trials %d", len(c.CatchTrials), c.TotalTrials)
	}

	for i, ct := range c.CatchTrials {
		field := fmt.Sprintf("catch_trials[%d]", i)
		if ct.ObjectID < 1 || ct.ObjectID > c.ObjectCount {
			return invalid(field, "object_id %d outside [1, %d]", ct.ObjectID, c.ObjectCount)
		}
		for _, a := range []int{ct.RefAngle, ct.NearAngle, ct.FarAngle} {
			if !p.OnGrid(a) {
				return invalid(field, "angle %d is not a multiple of %d in [0, %d]", a, p.AngleStep, p.MaxAngle)
			}
		}
		if ct.NearAngle == ct.FarAngle {
			return invalid(field, "near and far angles are both %d", ct.NearAngle)
		}
		if !ct.CorrectOption.Valid() {
			return invalid(field, "correct_option must be 1 or 2, got %d", ct.CorrectOption)
		}
	}

	return nil
}
