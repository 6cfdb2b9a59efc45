// Package responses holds the append-only log of participant answers.
//
// All public methods are safe for concurrent use.
package responses

import (
	"fmt"
	"sync"
	"time"

	"github.com/nvandessel/triad-choice/internal/models"
)

// Log is an ordered, append-only collection of response records.
type Log struct {
	mu      sync.RWMutex
	records []models.ResponseRecord
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Record builds the response for answering spec with chosen at ts, appends
// it and returns it. Catch trials are scored against their correct option.
func (l *Log) Record(spec models.TrialSpec, chosen models.Option, ts time.Time) (models.ResponseRecord, error) {
	if !chosen.Valid() {
		return models.ResponseRecord{}, fmt.Errorf("trial %d: chosen option must be 1 or 2, got %d", spec.TrialIndex, chosen)
	}

	rec := models.NewResponseRecord(spec, chosen, ts)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, rec)
	return rec.Clone(), nil
}

// All returns a deep copy of the records in completion order.
func (l *Log) All() []models.ResponseRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.ResponseRecord, len(l.records))
	for i, r := range l.records {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of recorded responses.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.records)
}

// Summary aggregates a log for the end-of-session screen.
type Summary struct {
	Trials       int     `json:"trials"`
	CatchTrials  int     `json:"catch_trials"`
	CatchCorrect int     `json:"catch_correct"`
	CatchAcc     float64 `json:"catch_accuracy"` // 0 when there were no catch trials
	ChoseNear    int     `json:"chose_near"`
	ChoseFar     int     `json:"chose_far"`
}

// Summary computes counts over the current records.
func (l *Log) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return Summarize(l.records)
}

// Summarize computes a Summary over records.
func Summarize(records []models.ResponseRecord) Summary {
	var s Summary
	s.Trials = len(records)
	for _, r := range records {
		switch r.ChosenOption {
		case models.OptionNear:
			s.ChoseNear++
		case models.OptionFar:
			s.ChoseFar++
		}
		if !r.IsCatch {
			continue
		}
		s.CatchTrials++
		if r.IsCorrect != nil && *r.IsCorrect {
			s.CatchCorrect++
		}
	}
	if s.CatchTrials > 0 {
		s.CatchAcc = float64(s.CatchCorrect) / float64(s.CatchTrials)
	}
	return s
}
