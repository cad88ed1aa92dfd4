// Package history serves the prediction log: paginated listings, owner-scoped
// lookups and the aggregates behind the admin dashboard.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/ayusman/mudra/internal/paging"
	"github.com/ayusman/mudra/internal/store"
)

// ErrInvalidPage is returned for out of range pagination parameters.
var ErrInvalidPage = paging.ErrInvalidPage

// ErrInvalidCount is returned when AddSamples is asked for a negative count.
var ErrInvalidCount = errors.New("invalid sample count")

// Sample insertion limits.
const (
	DefaultSampleCount = 5
	MaxSampleCount     = 50
)

// SampleGestures are the labels used for generated sample predictions.
var SampleGestures = []string{
	"Hello", "Thank You", "Yes", "No", "Please",
	"Sorry", "Help", "Good", "Bad", "Love",
}

// Options configures a Service.
type Options struct {
	// MaxPerPage caps page sizes. Zero means paging.MaxPerPage.
	MaxPerPage int

	// Seed seeds sample generation. Zero picks a time based seed.
	Seed uint64

	// Now overrides the clock.
	Now func() time.Time
}

// Service reads and aggregates the prediction log.
type Service struct {
	backend    store.Backend
	maxPerPage int
	now        func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService creates a Service over backend.
func NewService(backend store.Backend, opts Options) *Service {
	maxPerPage := opts.MaxPerPage
	if maxPerPage <= 0 {
		maxPerPage = paging.MaxPerPage
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Service{
		backend:    backend,
		maxPerPage: maxPerPage,
		now:        now,
		rng:        rand.New(rand.NewPCG(seed, ^seed)),
	}
}

// ListPredictions returns one page of userID's predictions, newest first.
func (s *Service) ListPredictions(ctx context.Context, userID string, p paging.Params) (paging.Page[*store.Prediction], error) {
	p, err := p.Validate(s.maxPerPage)
	if err != nil {
		return paging.Page[*store.Prediction]{}, err
	}

	items, total, err := s.backend.Predictions().ListByUser(ctx, userID, p.Offset(), p.PerPage)
	if err != nil {
		return paging.Page[*store.Prediction]{}, fmt.Errorf("list predictions: %w", err)
	}
	return paging.NewPage(p, items, total), nil
}

// GetPrediction returns a prediction owned by userID.
func (s *Service) GetPrediction(ctx context.Context, id, userID string) (*store.Prediction, error) {
	return s.backend.Predictions().Get(ctx, id, userID)
}

// DeletePrediction removes a prediction owned by userID. Missing and foreign
// ids both yield store.ErrNotFound.
func (s *Service) DeletePrediction(ctx context.Context, id, userID string) error {
	return s.backend.Predictions().Delete(ctx, id, userID)
}

// AddSamples inserts generated predictions for userID, one day apart going
// back from now. A count of zero means DefaultSampleCount; counts above
// MaxSampleCount are capped.
func (s *Service) AddSamples(ctx context.Context, userID string, count int) ([]*store.Prediction, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	if count == 0 {
		count = DefaultSampleCount
	}
	if count > MaxSampleCount {
		count = MaxSampleCount
	}

	meta, err := json.Marshal(map[string]any{"sample": true})
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]*store.Prediction, 0, count)
	for i := 0; i < count; i++ {
		s.mu.Lock()
		label := SampleGestures[s.rng.IntN(len(SampleGestures))]
		confidence := 50 + s.rng.Float64()*50
		s.mu.Unlock()

		p := &store.Prediction{
			ID:         uuid.NewString(),
			UserID:     userID,
			Label:      label,
			Confidence: scalar.Round(confidence, 2),
			Timestamp:  now.AddDate(0, 0, -i),
			Metadata:   meta,
		}
		if err := s.backend.Predictions().Create(ctx, p); err != nil {
			return out, fmt.Errorf("insert sample %d: %w", i, err)
		}
		out = append(out, p)
	}

	log.Info().Str("user_id", userID).Int("count", len(out)).Msg("sample predictions added")
	return out, nil
}
