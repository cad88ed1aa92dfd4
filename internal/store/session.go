package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Session is one bounded run of gesture recognition for a user.
// It moves from active to ended exactly once.
type Session struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	IsActive        bool       `json:"is_active"`
	GestureCount    int        `json:"total_gestures_detected"`
	DurationSeconds *float64   `json:"duration_seconds"`
}

// SessionStore persists sessions.
type SessionStore interface {
	// Create inserts an active session with a zero gesture count.
	Create(ctx context.Context, s *Session) error

	// Get returns the session with the given id.
	Get(ctx context.Context, id string) (*Session, error)

	// ListByUser returns a user's sessions newest first, and the total count.
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*Session, int, error)

	// Increment atomically adds one to the gesture count of an active session
	// and returns the new count.
	Increment(ctx context.Context, id string) (int, error)

	// End marks an active session ended at the given time.
	End(ctx context.Context, id string, at time.Time) (*Session, error)

	// Delete removes a session owned by userID.
	Delete(ctx context.Context, id, userID string) error

	// Counts returns the number of sessions and how many are still active.
	Counts(ctx context.Context) (total, active int, err error)
}

// SessionRepository is the SQLite SessionStore.
type SessionRepository struct {
	db *sql.DB
}

const sessionColumns = `id, user_id, start_time, end_time, is_active, gesture_count, duration_seconds`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	s := &Session{}
	var start int64
	var end sql.NullInt64
	var duration sql.NullFloat64

	if err := row.Scan(&s.ID, &s.UserID, &start, &end, &s.IsActive, &s.GestureCount, &duration); err != nil {
		return nil, err
	}

	s.StartTime = fromNanos(start)
	if end.Valid {
		t := fromNanos(end.Int64)
		s.EndTime = &t
	}
	if duration.Valid {
		d := duration.Float64
		s.DurationSeconds = &d
	}
	return s, nil
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *Session) error {
	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}
	s.StartTime = s.StartTime.UTC()
	s.IsActive = true
	s.GestureCount = 0
	s.EndTime = nil
	s.DurationSeconds = nil

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, start_time, is_active, gesture_count)
		 VALUES (?, ?, ?, 1, 0)`,
		s.ID, s.UserID, toNanos(s.StartTime),
	)
	return err
}

// Get retrieves a session by its ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListByUser returns a page of the user's sessions.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*Session, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ?
		 ORDER BY start_time DESC, seq ASC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sessions := []*Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

// Increment bumps the gesture counter in a single UPDATE.
func (r *SessionRepository) Increment(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`UPDATE sessions SET gesture_count = gesture_count + 1
		 WHERE id = ? AND is_active = 1
		 RETURNING gesture_count`,
		id,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, r.inactiveReason(ctx, id)
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// End closes the session. The duration is computed from the stored start time
// in the same statement.
func (r *SessionRepository) End(ctx context.Context, id string, at time.Time) (*Session, error) {
	end := toNanos(at)
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET is_active = 0, end_time = ?, duration_seconds = (? - start_time) / 1e9
		 WHERE id = ? AND is_active = 1`,
		end, end, id,
	)
	if err != nil {
		return nil, err
	}
	if err := affected(res); err != nil {
		return nil, r.inactiveReason(ctx, id)
	}
	return r.Get(ctx, id)
}

// inactiveReason tells a missing session apart from an ended one after a
// conditional update matched no rows.
func (r *SessionRepository) inactiveReason(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrSessionEnded
}

// Delete removes a session owned by userID. Prediction log entries that
// reference it are kept.
func (r *SessionRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return affected(res)
}

// Counts returns total and active session counts.
func (r *SessionRepository) Counts(ctx context.Context) (int, int, error) {
	var total, active int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_active), 0) FROM sessions`,
	).Scan(&total, &active)
	return total, active, err
}
