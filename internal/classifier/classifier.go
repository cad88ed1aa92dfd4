// Package classifier wraps an external gesture model behind a narrow interface
// and substitutes a clearly marked degraded result whenever the model cannot
// answer.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/ayusman/mudra/internal/features"
)

// DefaultLabels are the sign words the bundled model was trained on, indexed
// by class id.
var DefaultLabels = []string{
	"Hello", "Thank you", "Yes", "No", "Please",
	"Sorry", "Love", "Good", "Bad", "Okay",
	"Help", "Want", "Need", "More", "Stop",
	"Food", "Water", "Friend", "Family", "Work",
}

// Degraded confidence band, in percent.
const (
	degradedMinConfidence = 60.0
	degradedMaxConfidence = 95.0
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 2 * time.Second

// ErrInputSize is returned by New when the model expects a vector of a
// different length than features.Length.
var ErrInputSize = errors.New("model input size mismatch")

// Model is the external classifier. Implementations may also implement
// io.Closer; Adapter.Close will call it.
type Model interface {
	// Predict returns the winning class index and the per-class scores.
	Predict(ctx context.Context, v features.Vector) (classIndex int, scores []float64, err error)

	// InputSize is the feature vector length the model was built for.
	InputSize() int
}

// Result is a single classification outcome.
type Result struct {
	Label          string    `json:"label"`
	Confidence     float64   `json:"confidence"`
	ClassID        *int      `json:"class_id"`
	Timestamp      time.Time `json:"timestamp"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
}

// Options configures an Adapter.
type Options struct {
	// Labels maps class ids to names. Defaults to DefaultLabels.
	Labels []string

	// Timeout bounds one model call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Seed seeds the degraded-mode sampler. Zero picks a time based seed.
	Seed uint64
}

// Adapter turns feature vectors into Results using a Model.
// It is safe for concurrent use.
type Adapter struct {
	model   Model
	labels  []string
	timeout time.Duration

	mu  sync.Mutex
	rng *rand.Rand

	now func() time.Time
}

// New creates an Adapter. A nil model is allowed and puts the adapter
// permanently in degraded mode.
func New(model Model, opts Options) (*Adapter, error) {
	if model != nil && model.InputSize() != features.Length {
		return nil, fmt.Errorf("%w: model expects %d, features have %d", ErrInputSize, model.InputSize(), features.Length)
	}

	labels := opts.Labels
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Adapter{
		model:   model,
		labels:  append([]string(nil), labels...),
		timeout: timeout,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:     time.Now,
	}, nil
}

// Available reports whether a model is loaded.
func (a *Adapter) Available() bool {
	return a.model != nil
}

// Labels returns a copy of the class names.
func (a *Adapter) Labels() []string {
	return append([]string(nil), a.labels...)
}

// LabelFor returns the class name for id, or "Class N" for ids past the end
// of the label list.
func (a *Adapter) LabelFor(id int) string {
	if id >= 0 && id < len(a.labels) {
		return a.labels[id]
	}
	return fmt.Sprintf("Class %d", id)
}

// Classify runs the model on v. It never fails: if the model is missing,
// errors, panics, times out or returns unusable scores, a degraded Result is
// returned instead.
func (a *Adapter) Classify(ctx context.Context, v features.Vector) Result {
	if a.model == nil {
		return a.degraded("model not loaded")
	}

	scores, err := a.predict(ctx, v)
	if err != nil {
		log.Warn().Err(err).Msg("classifier unavailable, using degraded result")
		return a.degraded(err.Error())
	}

	id := floats.MaxIdx(scores)
	confidence := scalar.Round(100*scores[id], 2)
	confidence = math.Max(0, math.Min(100, confidence))

	return Result{
		Label:      a.LabelFor(id),
		Confidence: confidence,
		ClassID:    &id,
		Timestamp:  a.now().UTC(),
	}
}

type prediction struct {
	scores []float64
	err    error
}

func (a *Adapter) predict(ctx context.Context, v features.Vector) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	done := make(chan prediction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- prediction{err: fmt.Errorf("model panicked: %v", r)}
			}
		}()
		_, scores, err := a.model.Predict(ctx, v)
		done <- prediction{scores: scores, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("model call: %w", ctx.Err())
	case p := <-done:
		if p.err != nil {
			return nil, fmt.Errorf("model call: %w", p.err)
		}
		if len(p.scores) == 0 {
			return nil, errors.New("model returned no scores")
		}
		if floats.HasNaN(p.scores) {
			return nil, errors.New("model returned NaN scores")
		}
		return p.scores, nil
	}
}

func (a *Adapter) degraded(reason string) Result {
	a.mu.Lock()
	idx := a.rng.IntN(len(a.labels))
	confidence := degradedMinConfidence + a.rng.Float64()*(degradedMaxConfidence-degradedMinConfidence)
	a.mu.Unlock()

	return Result{
		Label:          a.labels[idx],
		Confidence:     scalar.Round(confidence, 2),
		Timestamp:      a.now().UTC(),
		Degraded:       true,
		DegradedReason: reason,
	}
}

// Close releases the model if it holds resources.
func (a *Adapter) Close() error {
	if c, ok := a.model.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
