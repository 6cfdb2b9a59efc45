package models

import "time"

// ResponseRecord is the participant's answer to one completed trial.
// Records are created once and never mutated.
type ResponseRecord struct {
	TrialIndex   int       `json:"trial"`
	ObjectID     int       `json:"object_id"`
	RefAngle     int       `json:"ref_angle"`
	NearAngle    int       `json:"near_angle"`
	FarAngle     int       `json:"far_angle"`
	ChosenOption Option    `json:"chosen_option"`
	IsCatch      bool      `json:"is_catch"`
	IsCorrect    *bool     `json:"is_correct"` // nil for non-catch trials
	Timestamp    time.Time `json:"timestamp"`
}

// NewResponseRecord derives the record for answering spec with chosen at ts.
// IsCorrect is set only for catch trials.
func NewResponseRecord(spec TrialSpec, chosen Option, ts time.Time) ResponseRecord {
	rec := ResponseRecord{
		TrialIndex:   spec.TrialIndex,
		ObjectID:     spec.ObjectID,
		RefAngle:     spec.RefAngle,
		NearAngle:    spec.NearAngle,
		FarAngle:     spec.FarAngle,
		ChosenOption: chosen,
		IsCatch:      spec.IsCatch,
		Timestamp:    ts,
	}
	if spec.IsCatch {
		correct := chosen == spec.CorrectOption
		rec.IsCorrect = &correct
	}
	return rec
}

// Clone returns a copy of r that shares no memory with it.
func (r ResponseRecord) Clone() ResponseRecord {
	if r.IsCorrect != nil {
		correct := *r.IsCorrect
		r.IsCorrect = &correct
	}
	return r
}
