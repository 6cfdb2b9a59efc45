package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/triad-choice/internal/constants"
	"github.com/nvandessel/triad-choice/internal/models"
	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout keeps sub-second precision so exported timestamps survive a
// round trip through the archive.
const timeLayout = time.RFC3339Nano

// SQLiteSessionStore implements SessionStore using SQLite for persistence.
type SQLiteSessionStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteSessionStore opens (creating if needed) dataDir/sessions.db.
func NewSQLiteSessionStore(dataDir string) (*SQLiteSessionStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, constants.DatabaseFileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteSessionStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteSessionStore) Path() string {
	return s.dbPath
}

// CreateSession registers a new session.
func (s *SQLiteSessionStore) CreateSession(ctx context.Context, meta SessionMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meta.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if meta.Status == "" {
		meta.Status = StatusRunning
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, task, seed, total_trials, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Task, strconv.FormatUint(meta.Seed, 10), meta.TotalTrials, meta.Status,
		meta.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", meta.ID, err)
	}
	return nil
}

// AppendResponse archives one answered trial.
func (s *SQLiteSessionStore) AppendResponse(ctx context.Context, sessionID string, rec models.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var correct sql.NullBool
	if rec.IsCorrect != nil {
		correct = sql.NullBool{Bool: *rec.IsCorrect, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO responses (session_id, trial, object_id, ref_angle, near_angle, far_angle,
			chosen_option, is_catch, is_correct, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.TrialIndex, rec.ObjectID, rec.RefAngle, rec.NearAngle, rec.FarAngle,
		int(rec.ChosenOption), rec.IsCatch, correct, rec.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert response for trial %d: %w", rec.TrialIndex, err)
	}
	return nil
}

// FinishSession sets the final status and end time.
func (s *SQLiteSessionStore) FinishSession(ctx context.Context, sessionID, status string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
		status, endedAt.UTC().Format(timeLayout), sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of session %s: %w", sessionID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish session: %w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

const sessionColumns = `s.id, s.task, s.seed, s.total_trials, s.status, s.started_at, s.ended_at,
	(SELECT COUNT(*) FROM responses r WHERE r.session_id = s.id)`

// GetSession returns the session's metadata.
func (s *SQLiteSessionStore) GetSession(ctx context.Context, sessionID string) (*SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, sessionID)
	meta, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session: %w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// ListSessions returns all sessions, most recent first.
func (s *SQLiteSessionStore) ListSessions(ctx context.Context) ([]SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionMeta
	for rows.Next() {
		meta, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*SessionMeta, error) {
	var (
		meta          SessionMeta
		seed, started string
		ended         sql.NullString
	)
	if err := row.Scan(&meta.ID, &meta.Task, &seed, &meta.TotalTrials, &meta.Status, &started, &ended, &meta.Answered); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	var err error
	if meta.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("session %s: bad seed %q: %w", meta.ID, seed, err)
	}
	if meta.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("session %s: bad started_at: %w", meta.ID, err)
	}
	if ended.Valid {
		t, err := time.Parse(timeLayout, ended.String)
		if err != nil {
			return nil, fmt.Errorf("session %s: bad ended_at: %w", meta.ID, err)
		}
		meta.EndedAt = &t
	}
	return &meta, nil
}

// Responses returns a session's answers in trial order.
func (s *SQLiteSessionStore) Responses(ctx context.Context, sessionID string) ([]models.ResponseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("responses: %w: %s", ErrSessionNotFound, sessionID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT trial, object_id, ref_angle, near_angle, far_angle, chosen_option, is_catch, is_correct, timestamp
		FROM responses WHERE session_id = ? ORDER BY trial`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var out []models.ResponseRecord
	for rows.Next() {
		var (
			rec     models.ResponseRecord
			chosen  int
			correct sql.NullBool
			ts      string
		)
		if err := rows.Scan(&rec.TrialIndex, &rec.ObjectID, &rec.RefAngle, &rec.NearAngle, &rec.FarAngle,
			&chosen, &rec.IsCatch, &correct, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		rec.ChosenOption = models.Option(chosen)
		if correct.Valid {
			c := correct.Bool
			rec.IsCorrect = &c
		}
		if rec.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("trial %d: bad timestamp: %w", rec.TrialIndex, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responses: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteSessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
