// Package session tracks recognition sessions from start to end.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/mudra/internal/paging"
	"github.com/ayusman/mudra/internal/store"
)

// EventKind names a session change pushed to subscribers.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventGesture EventKind = "gesture"
	EventEnded   EventKind = "ended"
)

// Event describes a change to one session.
type Event struct {
	Kind         EventKind      `json:"type"`
	SessionID    string         `json:"session_id"`
	GestureCount int            `json:"total_gestures_detected"`
	Label        string         `json:"label,omitempty"`
	Session      *store.Session `json:"session,omitempty"`
}

// Notifier receives session events. Notify must not block.
type Notifier interface {
	Notify(Event)
}

// Manager runs the session state machine over a SessionStore.
type Manager struct {
	sessions store.SessionStore
	notifier Notifier
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sends session events to n.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager.
func NewManager(sessions store.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		sessions: sessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a new active session for userID.
func (m *Manager) Start(ctx context.Context, userID string) (*store.Session, error) {
	s := &store.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartTime: m.now(),
	}
	if err := m.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	log.Info().Str("session_id", s.ID).Str("user_id", userID).Msg("session started")
	m.notify(Event{Kind: EventStarted, SessionID: s.ID, Session: s})
	return s, nil
}

// LogGesture adds one recognized gesture to an active session and returns the
// new count. It fails with store.ErrNotFound for unknown sessions and
// store.ErrSessionEnded for ended ones.
func (m *Manager) LogGesture(ctx context.Context, sessionID string) (int, error) {
	return m.LogLabel(ctx, sessionID, "")
}

// LogLabel is LogGesture with the recognized label attached to the event.
func (m *Manager) LogLabel(ctx context.Context, sessionID, label string) (int, error) {
	n, err := m.sessions.Increment(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	m.notify(Event{Kind: EventGesture, SessionID: sessionID, GestureCount: n, Label: label})
	return n, nil
}

// End moves an active session to ended, recording its end time and duration.
func (m *Manager) End(ctx context.Context, sessionID string) (*store.Session, error) {
	s, err := m.sessions.End(ctx, sessionID, m.now())
	if err != nil {
		return nil, err
	}

	ev := log.Info().Str("session_id", s.ID).Int("gestures", s.GestureCount)
	if s.DurationSeconds != nil {
		ev = ev.Float64("duration_seconds", *s.DurationSeconds)
	}
	ev.Msg("session ended")

	m.notify(Event{Kind: EventEnded, SessionID: s.ID, GestureCount: s.GestureCount, Session: s})
	return s, nil
}

// EndOwned ends a session only if userID owns it.
func (m *Manager) EndOwned(ctx context.Context, sessionID, userID string) (*store.Session, error) {
	if _, err := m.GetOwned(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	return m.End(ctx, sessionID)
}

// Get returns a session by id.
func (m *Manager) Get(ctx context.Context, sessionID string) (*store.Session, error) {
	return m.sessions.Get(ctx, sessionID)
}

// GetOwned returns the session if userID owns it. Foreign sessions are
// reported as store.ErrNotFound.
func (m *Manager) GetOwned(ctx context.Context, sessionID, userID string) (*store.Session, error) {
	s, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.UserID != userID {
		return nil, store.ErrNotFound
	}
	return s, nil
}

// ListForUser returns a page of userID's sessions, newest first.
func (m *Manager) ListForUser(ctx context.Context, userID string, p paging.Params) (paging.Page[*store.Session], error) {
	p, err := p.Validate(paging.MaxPerPage)
	if err != nil {
		return paging.Page[*store.Session]{}, err
	}

	items, total, err := m.sessions.ListByUser(ctx, userID, p.Offset(), p.PerPage)
	if err != nil {
		return paging.Page[*store.Session]{}, fmt.Errorf("list sessions: %w", err)
	}
	return paging.NewPage(p, items, total), nil
}

// Delete removes a session owned by userID. Its prediction log entries are
// kept.
func (m *Manager) Delete(ctx context.Context, sessionID, userID string) error {
	return m.sessions.Delete(ctx, sessionID, userID)
}

func (m *Manager) notify(e Event) {
	if m.notifier != nil {
		m.notifier.Notify(e)
	}
}
