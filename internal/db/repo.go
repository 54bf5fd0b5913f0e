package db

import (
	"context"
	"database/sql"
	"time"

	"triage-sim/pkg"
)

// Repository wraps the Postgres turn archive.  Live session state never
// touches the database; the archive is a write-mostly audit trail the
// instructor endpoints read from.
type Repository struct {
	DB *sql.DB
}

// NewRepository constructs a Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB) *Repository { return &Repository{DB: db} }

// RecordSession stores the metadata of a newly started session.
func (r *Repository) RecordSession(ctx context.Context, sessionID string, profile *pkg.CaseProfile, startedAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO triage_sessions (id, case_id, patient_name, esi_goal, started_at)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (id) DO NOTHING`,
		sessionID, profile.ID, profile.Name, profile.ESILevel, startedAt,
	)
	return err
}

// RecordTurn appends one exchange and its score movement to the archive.
func (r *Repository) RecordTurn(ctx context.Context, t pkg.ArchivedTurn) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO triage_turns (session_id, student_text, patient_text, score_delta, score_after, feedback)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		t.SessionID, t.StudentText, t.PatientText, t.ScoreDelta, t.ScoreAfter, t.Feedback,
	)
	return err
}

// GetSessionTurns returns all archived turns of a session in order.
func (r *Repository) GetSessionTurns(ctx context.Context, sessionID string) ([]pkg.ArchivedTurn, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, session_id, student_text, patient_text, score_delta, score_after, feedback, created_at
         FROM triage_turns
         WHERE session_id = $1
         ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var turns []pkg.ArchivedTurn
	for rows.Next() {
		var t pkg.ArchivedTurn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.StudentText, &t.PatientText, &t.ScoreDelta, &t.ScoreAfter, &t.Feedback, &t.CreatedAt); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ListRecentSessions returns the most recently started sessions with their
// latest archived score, newest first.
func (r *Repository) ListRecentSessions(ctx context.Context, limit int) ([]pkg.SessionPreview, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT s.id, s.case_id, s.patient_name, s.esi_goal, s.started_at,
                COALESCE(t.score_after, 0), t.created_at
         FROM triage_sessions s
         LEFT JOIN LATERAL (
             SELECT score_after, created_at
             FROM triage_turns
             WHERE session_id = s.id
             ORDER BY created_at DESC
             LIMIT 1
         ) t ON TRUE
         ORDER BY s.started_at DESC
         LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var previews []pkg.SessionPreview
	for rows.Next() {
		var (
			p        pkg.SessionPreview
			lastTurn sql.NullTime
		)
		if err := rows.Scan(&p.SessionID, &p.CaseID, &p.PatientName, &p.ESIGoal, &p.StartedAt, &p.Score, &lastTurn); err != nil {
			return nil, err
		}
		if lastTurn.Valid {
			t := lastTurn.Time
			p.LastTurnAt = &t
		}
		previews = append(previews, p)
	}
	return previews, rows.Err()
}
