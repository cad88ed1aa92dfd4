// Package pgstore implements store.Backend on PostgreSQL through GORM.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/ayusman/mudra/internal/store"
)

// Store is a PostgreSQL backed store.Backend.
type Store struct {
	db *gorm.DB
}

var _ store.Backend = (*Store)(nil)

// New connects to dsn and applies migrations.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(16)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := runMigrations(db); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Sessions implements store.Backend.
func (s *Store) Sessions() store.SessionStore { return &sessions{db: s.db} }

// Predictions implements store.Backend.
func (s *Store) Predictions() store.PredictionStore { return &predictions{db: s.db} }

// Users implements store.Backend.
func (s *Store) Users() store.UserStore { return &users{db: s.db} }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

type sessions struct {
	db *gorm.DB
}

func (r *sessions) Create(ctx context.Context, s *store.Session) error {
	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}
	s.StartTime = s.StartTime.UTC()
	s.IsActive = true
	s.GestureCount = 0
	s.EndTime = nil
	s.DurationSeconds = nil

	m := &sessionModel{ID: s.ID, UserID: s.UserID, StartTime: s.StartTime, IsActive: true}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *sessions) Get(ctx context.Context, id string) (*store.Session, error) {
	var m sessionModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.toSession(), nil
}

func (r *sessions) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*store.Session, int, error) {
	db := r.db.WithContext(ctx).Model(&sessionModel{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []sessionModel
	if err := db.Order("start_time DESC, seq ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*store.Session, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toSession())
	}
	return out, int(total), nil
}

func (r *sessions) Increment(ctx context.Context, id string) (int, error) {
	var m sessionModel
	res := r.db.WithContext(ctx).Model(&m).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "gesture_count"}}}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumn("gesture_count", gorm.Expr("gesture_count + 1"))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, r.inactiveReason(ctx, id)
	}
	return m.GestureCount, nil
}

func (r *sessions) End(ctx context.Context, id string, at time.Time) (*store.Session, error) {
	var out *store.Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m sessionModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&m).Error; err != nil {
			return notFound(err)
		}
		if !m.IsActive {
			return store.ErrSessionEnded
		}

		end := at.UTC()
		duration := end.Sub(m.StartTime).Seconds()
		err := tx.Model(&m).Updates(map[string]any{
			"is_active":        false,
			"end_time":         end,
			"duration_seconds": duration,
		}).Error
		if err != nil {
			return err
		}

		m.IsActive = false
		m.EndTime = &end
		m.DurationSeconds = &duration
		out = m.toSession()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessions) inactiveReason(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return store.ErrSessionEnded
}

func (r *sessions) Delete(ctx context.Context, id, userID string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&sessionModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *sessions) Counts(ctx context.Context) (int, int, error) {
	var total, active int64
	if err := r.db.WithContext(ctx).Model(&sessionModel{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&sessionModel{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, err
	}
	return int(total), int(active), nil
}

type predictions struct {
	db *gorm.DB
}

func (r *predictions) Create(ctx context.Context, p *store.Prediction) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	p.Timestamp = p.Timestamp.UTC()
	return r.db.WithContext(ctx).Create(fromPrediction(p)).Error
}

func (r *predictions) Get(ctx context.Context, id, userID string) (*store.Prediction, error) {
	var m predictionModel
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.toPrediction(), nil
}

func (r *predictions) ListByUser(ctx context.Context, userID string, offset, limit int) ([]*store.Prediction, int, error) {
	db := r.db.WithContext(ctx).Model(&predictionModel{}).Where("user_id = ?", userID).Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []predictionModel
	if err := db.Order("timestamp DESC, seq ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toPredictions(rows), int(total), nil
}

func (r *predictions) Delete(ctx context.Context, id, userID string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&predictionModel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *predictions) Count(ctx context.Context) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&predictionModel{}).Count(&n).Error
	return int(n), err
}

func (r *predictions) Recent(ctx context.Context, limit int) ([]*store.Prediction, error) {
	var rows []predictionModel
	if err := r.db.WithContext(ctx).Order("timestamp DESC, seq ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toPredictions(rows), nil
}

func (r *predictions) Scan(ctx context.Context, fn func(*store.Prediction) error) error {
	db := r.db.WithContext(ctx)
	rows, err := db.Model(&predictionModel{}).
		Omit("landmarks").
		Order("seq ASC").
		Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m predictionModel
		if err := db.ScanRows(rows, &m); err != nil {
			return err
		}
		if err := fn(m.toPrediction()); err != nil {
			return err
		}
	}
	return rows.Err()
}

func toPredictions(rows []predictionModel) []*store.Prediction {
	out := make([]*store.Prediction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toPrediction())
	}
	return out
}

type users struct {
	db *gorm.DB
}

func (r *users) Ensure(ctx context.Context, u *store.User) (*store.User, error) {
	role := u.Role
	if role == "" {
		role = store.RoleUser
	}
	m := &userModel{ID: u.ID, Email: u.Email, Name: u.Name, Role: role}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, u.ID)
}

func (r *users) Get(ctx context.Context, id string) (*store.User, error) {
	var m userModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return m.toUser(), nil
}

func (r *users) List(ctx context.Context, offset, limit int) ([]*store.User, int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&userModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []userModel
	if err := r.db.WithContext(ctx).Order("created_at DESC, id ASC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	out := make([]*store.User, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toUser())
	}
	return out, int(total), nil
}

func (r *users) Update(ctx context.Context, u *store.User) error {
	u.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&userModel{}).Where("id = ?", u.ID).Updates(map[string]any{
		"email":      u.Email,
		"name":       u.Name,
		"role":       u.Role,
		"updated_at": u.UpdatedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *users) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&userModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		if err := tx.Where("user_id = ?", id).Delete(&predictionModel{}).Error; err != nil {
			return fmt.Errorf("delete predictions: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&sessionModel{}).Error; err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		return nil
	})
}

func (r *users) Count(ctx context.Context) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&userModel{}).Count(&n).Error
	return int(n), err
}
