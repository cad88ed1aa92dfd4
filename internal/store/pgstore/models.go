package pgstore

import (
	"encoding/json"
	"time"

	"github.com/ayusman/mudra/internal/store"
)

type userModel struct {
	ID        string `gorm:"primaryKey;size:128"`
	Email     string `gorm:"size:320;not null;default:''"`
	Name      string `gorm:"size:256;not null;default:''"`
	Role      string `gorm:"size:32;not null;default:'user'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userModel) TableName() string { return "users" }

func (m *userModel) toUser() *store.User {
	return &store.User{
		ID:        m.ID,
		Email:     m.Email,
		Name:      m.Name,
		Role:      m.Role,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type sessionModel struct {
	Seq             int64      `gorm:"primaryKey;autoIncrement"`
	ID              string     `gorm:"uniqueIndex;size:64;not null"`
	UserID          string     `gorm:"index:idx_sessions_user;size:128;not null"`
	StartTime       time.Time  `gorm:"index:idx_sessions_user;not null"`
	EndTime         *time.Time
	IsActive        bool       `gorm:"not null"`
	GestureCount    int        `gorm:"not null;default:0"`
	DurationSeconds *float64
}

func (sessionModel) TableName() string { return "sessions" }

func (m *sessionModel) toSession() *store.Session {
	s := &store.Session{
		ID:              m.ID,
		UserID:          m.UserID,
		StartTime:       m.StartTime.UTC(),
		IsActive:        m.IsActive,
		GestureCount:    m.GestureCount,
		DurationSeconds: m.DurationSeconds,
	}
	if m.EndTime != nil {
		t := m.EndTime.UTC()
		s.EndTime = &t
	}
	return s
}

type predictionModel struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement"`
	ID         string    `gorm:"uniqueIndex;size:64;not null"`
	UserID     string    `gorm:"index:idx_predictions_user;size:128;not null"`
	SessionID  string    `gorm:"size:64;not null;default:''"`
	Label      string    `gorm:"size:128;not null"`
	Confidence float64   `gorm:"not null"`
	ClassID    *int
	Degraded   bool      `gorm:"not null;default:false"`
	Timestamp  time.Time `gorm:"index:idx_predictions_user;index;not null"`
	Landmarks  *string   `gorm:"type:text"`
	Metadata   *string   `gorm:"type:text"`
}

func (predictionModel) TableName() string { return "predictions" }

func fromPrediction(p *store.Prediction) *predictionModel {
	return &predictionModel{
		ID:         p.ID,
		UserID:     p.UserID,
		SessionID:  p.SessionID,
		Label:      p.Label,
		Confidence: p.Confidence,
		ClassID:    p.ClassID,
		Degraded:   p.Degraded,
		Timestamp:  p.Timestamp,
		Landmarks:  rawToText(p.Landmarks),
		Metadata:   rawToText(p.Metadata),
	}
}

func (m *predictionModel) toPrediction() *store.Prediction {
	return &store.Prediction{
		ID:         m.ID,
		UserID:     m.UserID,
		SessionID:  m.SessionID,
		Label:      m.Label,
		Confidence: m.Confidence,
		ClassID:    m.ClassID,
		Degraded:   m.Degraded,
		Timestamp:  m.Timestamp.UTC(),
		Landmarks:  textToRaw(m.Landmarks),
		Metadata:   textToRaw(m.Metadata),
	}
}

func rawToText(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	s := string(raw)
	return &s
}

func textToRaw(s *string) json.RawMessage {
	if s == nil || *s == "" {
		return nil
	}
	return json.RawMessage(*s)
}
