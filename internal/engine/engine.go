// Package engine drives a 2AFC session: it owns the trial sequence, the
// current position and the response log, and moves strictly forward one
// trial per answer.
//
// All public methods are safe for concurrent use; Advance calls are
// serialized so each observes a consistent position.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/triad-choice/internal/export"
	"github.com/nvandessel/triad-choice/internal/logging"
	"github.com/nvandessel/triad-choice/internal/models"
	"github.com/nvandessel/triad-choice/internal/responses"
	"github.com/nvandessel/triad-choice/internal/sampling"
	"github.com/nvandessel/triad-choice/internal/sequence"
)

// ErrOutOfSequence is returned when an operation is not valid in the
// engine's current state.
var ErrOutOfSequence = errors.New("out of sequence")

// State is the engine lifecycle state.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// session is the state of one run: its sequence, position and answers.
// It is owned by the Engine and only touched under its mutex.
type session struct {
	ID           string
	StartedAt    time.Time
	Config       sequence.Config
	Sequence     sequence.Sequence
	CurrentIndex int // number of answered trials
	Log          *responses.Log
}

// Engine is the trial state machine: NotStarted -> Running -> Completed,
// with Running -> Aborted on external cancellation.
type Engine struct {
	mu        sync.Mutex
	src       sampling.Source
	state     State
	session   *session
	done      chan struct{}
	nowFunc   func() time.Time
	logger    *slog.Logger
	decisions *logging.DecisionLogger
}

// New creates an engine that draws all randomness from src.
func New(src sampling.Source) *Engine {
	return &Engine{
		src:     src,
		done:    make(chan struct{}),
		nowFunc: time.Now,
	}
}

// SetLogger sets the structured logger and decision logger for observability.
func (e *Engine) SetLogger(logger *slog.Logger, decisions *logging.DecisionLogger) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger = logger
	e.decisions = decisions
}

// SetClock replaces the timestamp source used for response records.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nowFunc = now
}

// now reads the clock at the precision exported timestamps carry, so a
// record and its CSV row hold the same instant.
func (e *Engine) now() time.Time {
	return e.nowFunc().UTC().Truncate(time.Millisecond)
}

// Start validates cfg, builds the sequence and enters Running.
// It fails with a *sequence.InvalidConfigError for unusable configs and
// ErrOutOfSequence if the engine was already started.
func (e *Engine) Start(cfg sequence.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateNotStarted {
		return fmt.Errorf("start in state %s: %w", e.state, ErrOutOfSequence)
	}

	builder, err := sequence.NewBuilder(cfg, e.src)
	if err != nil {
		return err
	}
	builder.SetLogger(e.logger, e.decisions)

	id := uuid.NewString()
	e.decisions.SetSession(id)

	e.session = &session{
		ID:        id,
		StartedAt: e.now(),
		Config:    cfg,
		Sequence:  builder.Build(),
		Log:       responses.NewLog(),
	}
	e.state = StateRunning

	if e.logger != nil {
		e.logger.Info("session started", "session_id", id, "trials", cfg.TotalTrials, "catch_trials", len(cfg.CatchTrials))
	}
	return nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// SessionID returns the ID assigned at Start, or "" before.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return ""
	}
	return e.session.ID
}

// SessionInfo describes a started session. It is a snapshot and does not
// change as the session advances.
type SessionInfo struct {
	ID          string
	StartedAt   time.Time
	TotalTrials int
}

// Info returns the started session's identity, or false before Start.
func (e *Engine) Info() (SessionInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return SessionInfo{}, false
	}
	return SessionInfo{
		ID:          e.session.ID,
		StartedAt:   e.session.StartedAt,
		TotalTrials: len(e.session.Sequence),
	}, true
}

// CurrentTrial returns the trial about to be answered. Repeated calls
// without an intervening Advance return the same trial.
func (e *Engine) CurrentTrial() (models.TrialSpec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.currentLocked()
}

func (e *Engine) currentLocked() (models.TrialSpec, error) {
	if e.state != StateRunning {
		return models.TrialSpec{}, fmt.Errorf("current trial in state %s: %w", e.state, ErrOutOfSequence)
	}
	spec, ok := e.session.Sequence.At(e.session.CurrentIndex + 1)
	if !ok {
		return models.TrialSpec{}, fmt.Errorf("no trial at position %d: %w", e.session.CurrentIndex+1, ErrOutOfSequence)
	}
	return spec, nil
}

// View returns the rendering data for the current trial.
func (e *Engine) View() (models.TrialView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	spec, err := e.currentLocked()
	if err != nil {
		return models.TrialView{}, err
	}
	return models.NewTrialView(spec, len(e.session.Sequence)), nil
}

// Advance records chosen as the answer to the current trial and moves to the
// next one. Answering the last trial completes the session.
func (e *Engine) Advance(chosen models.Option) (models.ResponseRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	spec, err := e.currentLocked()
	if err != nil {
		return models.ResponseRecord{}, fmt.Errorf("advance: %w", err)
	}

	rec, err := e.session.Log.Record(spec, chosen, e.now())
	if err != nil {
		return models.ResponseRecord{}, fmt.Errorf("advance: %w", err)
	}
	e.session.CurrentIndex++

	if e.logger != nil {
		e.logger.Debug("trial answered", "trial", spec.TrialIndex, "chosen", int(chosen), "catch", spec.IsCatch)
	}

	if e.session.CurrentIndex == len(e.session.Sequence) {
		e.finishLocked(StateCompleted)
	}
	return rec, nil
}

// Abort ends a running session early. Recorded answers stay exportable.
func (e *Engine) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateRunning {
		return fmt.Errorf("abort in state %s: %w", e.state, ErrOutOfSequence)
	}
	e.finishLocked(StateAborted)
	return nil
}

func (e *Engine) finishLocked(s State) {
	e.state = s
	close(e.done)
	if e.logger != nil {
		summary := e.session.Log.Summary()
		e.logger.Info("session finished", "session_id", e.session.ID, "state", s.String(),
			"answered", summary.Trials, "catch_correct", summary.CatchCorrect, "catch_trials", summary.CatchTrials)
	}
}

// IsComplete reports whether every trial has been answered.
func (e *Engine) IsComplete() bool {
	return e.State() == StateCompleted
}

// Done is closed when the session completes or is aborted.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Progress returns the number of answered trials and the sequence length.
func (e *Engine) Progress() (answered, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return 0, 0
	}
	return e.session.CurrentIndex, len(e.session.Sequence)
}

// Records returns the answers recorded so far, in trial order.
func (e *Engine) Records() []models.ResponseRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	return e.session.Log.All()
}

// Summary aggregates the answers recorded so far.
func (e *Engine) Summary() responses.Summary {
	return responses.Summarize(e.Records())
}

// ExportCSV renders the recorded answers. It works for partial sessions and
// returns export.ErrEmptyLog when nothing has been answered yet.
func (e *Engine) ExportCSV() (string, error) {
	records := e.Records()
	if len(records) == 0 {
		return "", fmt.Errorf("export session: %w", export.ErrEmptyLog)
	}
	return export.ToCSV(records), nil
}
