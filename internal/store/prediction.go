package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Prediction is an append-only log entry for one classification.
type Prediction struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	SessionID  string          `json:"session_id,omitempty"`
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	ClassID    *int            `json:"class_id"`
	Degraded   bool            `json:"degraded"`
	Timestamp  time.Time       `json:"timestamp"`
	Landmarks  json.RawMessage `json:"landmarks,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// PredictionStore persists the prediction log.
type PredictionStore interface {
	// Create appends an entry.
	Create(ctx context.Context, p *Prediction) error

	// Get returns an entry owned by userID.
	Get(ctx context.Context, id, userID string) (*Prediction, error)

	// ListByUser returns a user's entries, newest first with ties in
	// insertion order, and the total count.
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]*Prediction, int, error)

	// Delete removes an entry owned by userID.
	Delete(ctx context.Context, id, userID string) error

	// Count returns the total number of entries.
	Count(ctx context.Context) (int, error)

	// Recent returns the newest entries across all users.
	Recent(ctx context.Context, limit int) ([]*Prediction, error)

	// Scan calls fn for every entry in insertion order. Landmarks are not
	// loaded. Returning an error from fn stops the scan. fn must not call
	// back into the store.
	Scan(ctx context.Context, fn func(*Prediction) error) error
}

// PredictionRepository is the SQLite PredictionStore.
type PredictionRepository struct {
	db *sql.DB
}

const predictionColumns = `id, user_id, session_id, label, confidence, class_id, degraded, timestamp, landmarks, metadata`

func scanPrediction(row rowScanner) (*Prediction, error) {
	p := &Prediction{}
	var ts int64
	var classID sql.NullInt64
	var landmarks, metadata sql.NullString

	if err := row.Scan(&p.ID, &p.UserID, &p.SessionID, &p.Label, &p.Confidence,
		&classID, &p.Degraded, &ts, &landmarks, &metadata); err != nil {
		return nil, err
	}

	p.Timestamp = fromNanos(ts)
	if classID.Valid {
		id := int(classID.Int64)
		p.ClassID = &id
	}
	if landmarks.Valid && landmarks.String != "" {
		p.Landmarks = json.RawMessage(landmarks.String)
	}
	if metadata.Valid && metadata.String != "" {
		p.Metadata = json.RawMessage(metadata.String)
	}
	return p, nil
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

// Create inserts a new prediction.
func (r *PredictionRepository) Create(ctx context.Context, p *Prediction) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	p.Timestamp = p.Timestamp.UTC()

	var classID sql.NullInt64
	if p.ClassID != nil {
		classID = sql.NullInt64{Int64: int64(*p.ClassID), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO predictions (`+predictionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.SessionID, p.Label, p.Confidence, classID, p.Degraded,
		toNanos(p.Timestamp), nullJSON(p.Landmarks), nullJSON(p.Metadata),
	)
	return err
}

// Get retrieves a prediction owned by userID.
func (r *PredictionRepository) Get(ctx context.Context, id, userID string) (*Prediction, error) {
	p, err := scanPrediction(r.db.QueryRowContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListByUser returns a page of the user's predictions.
func (r *PredictionRepository) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*Prediction, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM predictions WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE user_id = ?
		 ORDER BY timestamp DESC, seq ASC LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectPredictions(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Delete removes a prediction owned by userID.
func (r *PredictionRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM predictions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return affected(res)
}

// Count returns the number of predictions.
func (r *PredictionRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, err
}

// Recent returns the newest predictions.
func (r *PredictionRepository) Recent(ctx context.Context, limit int) ([]*Prediction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions
		 ORDER BY timestamp DESC, seq ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPredictions(rows)
}

// Scan streams every prediction in insertion order.
func (r *PredictionRepository) Scan(ctx context.Context, fn func(*Prediction) error) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, session_id, label, confidence, class_id, degraded, timestamp, NULL, metadata
		 FROM predictions ORDER BY seq ASC`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return rows.Err()
}

func collectPredictions(rows *sql.Rows) ([]*Prediction, error) {
	items := []*Prediction{}
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
