package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nvandessel/triad-choice/internal/config"
	"github.com/nvandessel/triad-choice/internal/engine"
	"github.com/nvandessel/triad-choice/internal/export"
	"github.com/nvandessel/triad-choice/internal/logging"
	"github.com/nvandessel/triad-choice/internal/models"
	"github.com/nvandessel/triad-choice/internal/responses"
	"github.com/nvandessel/triad-choice/internal/sampling"
	"github.com/nvandessel/triad-choice/internal/store"
)

// chooser supplies the participant's answer for the trial on screen.
type chooser interface {
	Choose(ctx context.Context) (models.Option, error)
}

// sessionRun wires an engine to a chooser, the archive and CSV export.
type sessionRun struct {
	cfg       *config.TriadConfig
	seed      uint64
	store     store.SessionStore
	chooser   chooser
	onTrial   func(models.TrialView) // optional
	logger    *slog.Logger
	decisions *logging.DecisionLogger
	now       func() time.Time // optional
}

// runResult is what a finished run reports.
type runResult struct {
	SessionID string            `json:"session_id"`
	Task      string            `json:"task"`
	Seed      uint64            `json:"seed"`
	Status    string            `json:"status"`
	CSVPath   string            `json:"csv_path,omitempty"`
	Summary   responses.Summary `json:"summary"`
}

// execute runs one session until every trial is answered, ctx is cancelled
// or the chooser's input ends. Cancellation aborts the session; answers given
// so far are still archived and exported.
func (r *sessionRun) execute(ctx context.Context) (*runResult, error) {
	eng := engine.New(sampling.NewSeededSource(r.seed))
	eng.SetLogger(r.logger, r.decisions)
	if r.now != nil {
		eng.SetClock(r.now)
	}

	if err := eng.Start(r.cfg.SequenceConfig()); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	sess, _ := eng.Info()

	meta := store.SessionMeta{
		ID:          sess.ID,
		Task:        r.cfg.Task.String(),
		Seed:        r.seed,
		TotalTrials: sess.TotalTrials,
		StartedAt:   sess.StartedAt,
	}
	if err := r.store.CreateSession(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to archive session: %w", err)
	}
	r.logger.Info("session started", "session_id", sess.ID, "task", meta.Task, "seed", r.seed, "trials", meta.TotalTrials)

	for eng.State() == engine.StateRunning {
		view, err := eng.View()
		if err != nil {
			return nil, err
		}
		if r.onTrial != nil {
			r.onTrial(view)
		}

		chosen, err := r.chooser.Choose(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				r.logger.Warn("session interrupted", "session_id", sess.ID, "trial", view.TrialIndex, "reason", err)
			} else {
				r.logger.Error("reading choice failed", "session_id", sess.ID, "error", err)
			}
			if abortErr := eng.Abort(); abortErr != nil {
				return nil, abortErr
			}
			break
		}

		rec, err := eng.Advance(chosen)
		if err != nil {
			return nil, err
		}
		if err := r.store.AppendResponse(ctx, sess.ID, rec); err != nil {
			r.logger.Warn("failed to archive response", "session_id", sess.ID, "trial", rec.TrialIndex, "error", err)
		}
	}

	return r.finish(ctx, eng)
}

func (r *sessionRun) finish(ctx context.Context, eng *engine.Engine) (*runResult, error) {
	sess, _ := eng.Info()
	complete := eng.IsComplete()
	status := store.StatusCompleted
	if !complete {
		status = store.StatusAborted
	}

	// The archive update must land even after Ctrl-C cancelled ctx.
	ctx = context.WithoutCancel(ctx)
	if err := r.store.FinishSession(ctx, sess.ID, status, time.Now()); err != nil {
		r.logger.Warn("failed to finalize archived session", "session_id", sess.ID, "error", err)
	}

	result := &runResult{
		SessionID: sess.ID,
		Task:      r.cfg.Task.String(),
		Seed:      r.seed,
		Status:    status,
		Summary:   eng.Summary(),
	}

	csvText, err := eng.ExportCSV()
	if errors.Is(err, export.ErrEmptyLog) {
		r.logger.Info("no responses recorded, skipping export", "session_id", sess.ID)
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	path := filepath.Join(r.cfg.Output.Dir, export.FileName(sess.ID, complete))
	if err := export.WriteFile(path, []byte(csvText)); err != nil {
		return nil, fmt.Errorf("failed to write responses: %w", err)
	}
	result.CSVPath = path
	r.logger.Info("responses exported", "session_id", sess.ID, "path", path, "rows", result.Summary.Trials)
	return result, nil
}

// sessionSeed returns the configured seed, or a fresh one when it is 0.
func sessionSeed(configured uint64) uint64 {
	if configured != 0 {
		return configured
	}
	return sampling.RandomSeed()
}
