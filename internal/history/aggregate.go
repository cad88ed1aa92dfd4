package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/mudra/internal/store"
)

// TopK is the length of every ranking.
const TopK = 10

// Dashboard window and recent list size.
const (
	dashboardDays = 7
	recentLimit   = 5
)

// GestureCount is one row of the top gestures ranking.
type GestureCount struct {
	Label         string  `json:"label"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// UserActivity is one row of the most active users ranking.
type UserActivity struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// DayCount is the number of predictions made on one UTC day.
type DayCount struct {
	Date          string  `json:"date"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
}

// Totals are the dashboard headline numbers.
type Totals struct {
	Users            int `json:"total_users"`
	Sessions         int `json:"total_sessions"`
	ActiveSessions   int `json:"active_sessions"`
	Predictions      int `json:"total_predictions"`
	DegradedLastWeek int `json:"degraded_last_week"`
}

// Dashboard is the admin overview.
type Dashboard struct {
	Totals            Totals              `json:"stats"`
	RecentPredictions []*store.Prediction `json:"recent_predictions"`
	PredictionsByDay  []DayCount          `json:"predictions_by_day"`
	TopGestures       []GestureCount      `json:"top_gestures"`
	MostActiveUsers   []UserActivity      `json:"most_active_users"`
	// MeanConfidence is the mean confidence over the dashboard window.
	MeanConfidence float64 `json:"mean_confidence"`
}

// tally counts keys in first-seen order.
type tally[K comparable] struct {
	order  []K
	counts map[K]int
	sums   map[K]float64
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{counts: make(map[K]int), sums: make(map[K]float64)}
}

func (t *tally[K]) add(key K, value float64) {
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.counts[key]++
	t.sums[key] += value
}

func (t *tally[K]) mean(key K) float64 {
	if t.counts[key] == 0 {
		return 0
	}
	return t.sums[key] / float64(t.counts[key])
}

// top returns up to k keys by descending count. The sort is stable over
// first-seen order, so equal counts keep the order they were first met.
func (t *tally[K]) top(k int) []K {
	keys := slices.Clone(t.order)
	slices.SortStableFunc(keys, func(a, b K) int {
		return t.counts[b] - t.counts[a]
	})
	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}

type aggregates struct {
	labels   *tally[string]
	users    *tally[string]
	days     *tally[string]
	degraded int
}

// scan walks the whole log once in insertion order.
func (s *Service) scan(ctx context.Context, since time.Time) (*aggregates, error) {
	agg := &aggregates{
		labels: newTally[string](),
		users:  newTally[string](),
		days:   newTally[string](),
	}
	err := s.backend.Predictions().Scan(ctx, func(p *store.Prediction) error {
		agg.labels.add(p.Label, p.Confidence)
		agg.users.add(p.UserID, 0)
		if !p.Timestamp.Before(since) {
			agg.days.add(p.Timestamp.UTC().Format(time.DateOnly), p.Confidence)
			if p.Degraded {
				agg.degraded++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan predictions: %w", err)
	}
	return agg, nil
}

func (a *aggregates) topGestures(k int) []GestureCount {
	out := []GestureCount{}
	for _, label := range a.labels.top(k) {
		out = append(out, GestureCount{
			Label:         label,
			Count:         a.labels.counts[label],
			AvgConfidence: scalar.Round(a.labels.mean(label), 2),
		})
	}
	return out
}

func (s *Service) mostActive(ctx context.Context, a *aggregates, k int) ([]UserActivity, error) {
	out := []UserActivity{}
	for _, id := range a.users.top(k) {
		row := UserActivity{UserID: id, Count: a.users.counts[id]}
		u, err := s.backend.Users().Get(ctx, id)
		switch {
		case err == nil:
			row.Email = u.Email
			row.Name = u.Name
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("load user %s: %w", id, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// TopGestures ranks labels by how often they were predicted.
func (s *Service) TopGestures(ctx context.Context) ([]GestureCount, error) {
	agg, err := s.scan(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return agg.topGestures(TopK), nil
}

// MostActiveUsers ranks users by prediction count. The ranking is exact.
func (s *Service) MostActiveUsers(ctx context.Context) ([]UserActivity, error) {
	agg, err := s.scan(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return s.mostActive(ctx, agg, TopK)
}

// Dashboard collects the admin overview.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	var err error

	if d.Totals.Users, err = s.backend.Users().Count(ctx); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	if d.Totals.Sessions, d.Totals.ActiveSessions, err = s.backend.Sessions().Counts(ctx); err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	if d.Totals.Predictions, err = s.backend.Predictions().Count(ctx); err != nil {
		return nil, fmt.Errorf("count predictions: %w", err)
	}
	if d.RecentPredictions, err = s.backend.Predictions().Recent(ctx, recentLimit); err != nil {
		return nil, fmt.Errorf("recent predictions: %w", err)
	}

	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(dashboardDays - 1))

	agg, err := s.scan(ctx, since)
	if err != nil {
		return nil, err
	}
	d.Totals.DegradedLastWeek = agg.degraded
	d.TopGestures = agg.topGestures(TopK)
	if d.MostActiveUsers, err = s.mostActive(ctx, agg, TopK); err != nil {
		return nil, err
	}

	means := make([]float64, 0, dashboardDays)
	weights := make([]float64, 0, dashboardDays)
	for i := 0; i < dashboardDays; i++ {
		day := since.AddDate(0, 0, i).Format(time.DateOnly)
		mean := agg.days.mean(day)
		d.PredictionsByDay = append(d.PredictionsByDay, DayCount{
			Date:          day,
			Count:         agg.days.counts[day],
			AvgConfidence: scalar.Round(mean, 2),
		})
		means = append(means, mean)
		weights = append(weights, float64(agg.days.counts[day]))
	}
	if floats.Sum(weights) > 0 {
		d.MeanConfidence = scalar.Round(stat.Mean(means, weights), 2)
	}

	return &d, nil
}
