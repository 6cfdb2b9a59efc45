package models

import (
	"fmt"
	"strconv"
)

// Option identifies one of the two comparison images offered on a trial.
type Option int

const (
	OptionNone Option = 0 // no answer; used as CorrectOption on normal trials
	OptionNear Option = 1 // first comparison, rendered left
	OptionFar  Option = 2 // second comparison, rendered right
)

// Valid reports whether o is a choosable option (1 or 2).
func (o Option) Valid() bool {
	return o == OptionNear || o == OptionFar
}

// String renders the option the way it appears in exported data.
func (o Option) String() string {
	if o == OptionNone {
		return ""
	}
	return strconv.Itoa(int(o))
}

// ParseOption converts "1" or "2" into an Option.
func ParseOption(s string) (Option, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return OptionNone, fmt.Errorf("invalid option %q: %w", s, err)
	}
	o := Option(n)
	if !o.Valid() {
		return OptionNone, fmt.Errorf("invalid option %q: must be 1 or 2", s)
	}
	return o, nil
}

// CatchTrial is one entry of the static catch-trial table. Its answer is
// known in advance and is used to check participant attentiveness.
type CatchTrial struct {
	ObjectID      int    `json:"object_id" yaml:"object_id" validate:"gte=1"`
	RefAngle      int    `json:"ref_angle" yaml:"ref_angle" validate:"gte=0"`
	NearAngle     int    `json:"near_angle" yaml:"near_angle" validate:"gte=0"`
	FarAngle      int    `json:"far_angle" yaml:"far_angle" validate:"gte=0"`
	CorrectOption Option `json:"correct_option" yaml:"correct_option" validate:"oneof=1 2"`
}

// TrialSpec fully describes a single trial. It is generated once by the
// sequence builder and never modified afterwards.
type TrialSpec struct {
	TrialIndex    int    `json:"trial_index"` // 1-based position in the sequence
	ObjectID      int    `json:"object_id"`
	RefAngle      int    `json:"ref_angle"`
	NearAngle     int    `json:"near_angle"`
	FarAngle      int    `json:"far_angle"`
	IsCatch       bool   `json:"is_catch"`
	CorrectOption Option `json:"correct_option,omitempty"` // OptionNone unless IsCatch
}

// RefKey returns the stimulus key of the reference image.
func (t TrialSpec) RefKey() string { return StimulusKey(t.ObjectID, t.RefAngle) }

// NearKey returns the stimulus key of comparison option 1.
func (t TrialSpec) NearKey() string { return StimulusKey(t.ObjectID, t.NearAngle) }

// FarKey returns the stimulus key of comparison option 2.
func (t TrialSpec) FarKey() string { return StimulusKey(t.ObjectID, t.FarAngle) }

// StimulusKey builds the opaque identifier "{objectId}_rot_{angle}" that a
// renderer resolves to an image resource.
func StimulusKey(objectID, angle int) string {
	return fmt.Sprintf("%d_rot_%d", objectID, angle)
}

// TrialView is what the rendering collaborator needs to show one trial.
type TrialView struct {
	TrialIndex      int     `json:"trial_index"`
	TotalTrials     int     `json:"total_trials"`
	Progress        float64 `json:"progress"` // fraction of trials answered before this one
	StimulusRefKey  string  `json:"stimulus_ref_key"`
	StimulusNearKey string  `json:"stimulus_near_key"`
	StimulusFarKey  string  `json:"stimulus_far_key"`
}

// NewTrialView builds the rendering view of spec within a sequence of total trials.
func NewTrialView(spec TrialSpec, total int) TrialView {
	var progress float64
	if total > 0 {
		progress = float64(spec.TrialIndex-1) / float64(total)
	}
	return TrialView{
		TrialIndex:      spec.TrialIndex,
		TotalTrials:     total,
		Progress:        progress,
		StimulusRefKey:  spec.RefKey(),
		StimulusNearKey: spec.NearKey(),
		StimulusFarKey:  spec.FarKey(),
	}
}
