// Package recognizer runs the prediction pipeline: landmarks or an image in,
// a classified (and optionally persisted) gesture out.
package recognizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/consensus"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/store"
)

// DefaultBulkConcurrency bounds parallel frame classification in a burst.
const DefaultBulkConcurrency = 4

// NoHandsMessage accompanies results for frames without any hand.
const NoHandsMessage = "No hands detected"

// ErrInvalidInput is returned for requests that carry neither landmarks nor an
// image, or carry something that cannot be parsed.
var ErrInvalidInput = errors.New("invalid input")

// ErrNoDetector is returned for image input when no hand detector is
// configured.
var ErrNoDetector = errors.New("image input requires a hand detector")

// PersistenceError reports a failed write. The computed result that came with
// it is still valid.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Classifier turns a feature vector into a result. *classifier.Adapter
// implements it.
type Classifier interface {
	Classify(ctx context.Context, v features.Vector) classifier.Result
}

// SessionLogger is the part of the session manager the pipeline needs.
type SessionLogger interface {
	GetOwned(ctx context.Context, sessionID, userID string) (*store.Session, error)
	LogLabel(ctx context.Context, sessionID, label string) (int, error)
}

// Options configures a Recognizer.
type Options struct {
	// Detector extracts landmarks from images. Nil disables image input.
	Detector detector.Detector

	// BulkConcurrency bounds parallel classification. Zero means
	// DefaultBulkConcurrency.
	BulkConcurrency int
}

// Recognizer wires detection, normalization, classification, consensus and
// persistence together.
type Recognizer struct {
	classifier  Classifier
	detector    detector.Detector
	sessions    SessionLogger
	predictions store.PredictionStore
	concurrency int
	now         func() time.Time
}

// New creates a Recognizer.
func New(c Classifier, sessions SessionLogger, predictions store.PredictionStore, opts Options) *Recognizer {
	concurrency := opts.BulkConcurrency
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}
	return &Recognizer{
		classifier:  c,
		detector:    opts.Detector,
		sessions:    sessions,
		predictions: predictions,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Input is a single prediction request.
type Input struct {
	UserID    string
	SessionID string

	// Landmarks is a JSON list of [x, y] pairs (or a string holding one).
	Landmarks json.RawMessage

	// Image is a base64 encoded image, optionally a data URL.
	Image string

	SaveResult bool
}

// Outcome is the result of Predict.
type Outcome struct {
	Result       classifier.Result
	Message      string
	PredictionID string
	GestureCount int

	// SaveErr is set when SaveResult was requested and the write failed.
	SaveErr error
}

// Predict classifies one frame. Errors are limited to invalid input; storage
// failures are reported in Outcome.SaveErr next to the computed result.
func (r *Recognizer) Predict(ctx context.Context, in Input) (Outcome, error) {
	landmarks, raw, err := r.extract(in.Landmarks, in.Image)
	if err != nil {
		return Outcome{}, err
	}

	if len(landmarks) == 0 {
		return Outcome{Result: r.unknown(), Message: NoHandsMessage}, nil
	}

	out := Outcome{Result: r.classifier.Classify(ctx, features.Normalize(landmarks))}
	if in.SaveResult {
		out.PredictionID, out.GestureCount, out.SaveErr = r.save(ctx, in.UserID, in.SessionID, out.Result, raw, nil)
	}
	return out, nil
}

// extract resolves landmarks from either input form. raw is the landmark JSON
// to keep with a saved prediction.
func (r *Recognizer) extract(rawLandmarks json.RawMessage, image string) ([]detector.Landmark, json.RawMessage, error) {
	switch {
	case len(rawLandmarks) > 0 && string(rawLandmarks) != "null":
		lms, err := detector.ParseLandmarks(rawLandmarks)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		raw, err := json.Marshal(lms)
		if err != nil {
			return nil, nil, err
		}
		return lms, raw, nil

	case image != "":
		lms, err := r.detect(image)
		if err != nil {
			return nil, nil, err
		}
		raw, err := json.Marshal(lms)
		if err != nil {
			return nil, nil, err
		}
		return lms, raw, nil

	default:
		return nil, nil, fmt.Errorf("%w: landmarks or image required", ErrInvalidInput)
	}
}

func (r *Recognizer) detect(image string) ([]detector.Landmark, error) {
	if r.detector == nil {
		return nil, ErrNoDetector
	}

	mat, err := detector.DecodeImage(image)
	defer mat.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hands, err := r.detector.Detect(&mat)
	if err != nil {
		return nil, fmt.Errorf("detect hands: %w", err)
	}
	return detector.Flatten(hands), nil
}

func (r *Recognizer) unknown() classifier.Result {
	return classifier.Result{
		Label:     consensus.LabelUnknown,
		Timestamp: r.now().UTC(),
	}
}

// save appends the prediction and, for a session, bumps its counter.
func (r *Recognizer) save(ctx context.Context, userID, sessionID string, res classifier.Result, landmarks json.RawMessage, meta map[string]any) (string, int, error) {
	if sessionID != "" {
		s, err := r.sessions.GetOwned(ctx, sessionID, userID)
		if err != nil {
			return "", 0, &PersistenceError{Op: "session lookup", Err: err}
		}
		if !s.IsActive {
			return "", 0, &PersistenceError{Op: "session lookup", Err: store.ErrSessionEnded}
		}
	}

	if res.Degraded {
		if meta == nil {
			meta = map[string]any{}
		}
		meta["degraded_reason"] = res.DegradedReason
	}
	var metadata json.RawMessage
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return "", 0, &PersistenceError{Op: "encode metadata", Err: err}
		}
		metadata = b
	}

	p := &store.Prediction{
		ID:         uuid.NewString(),
		UserID:     userID,
		SessionID:  sessionID,
		Label:      res.Label,
		Confidence: res.Confidence,
		ClassID:    res.ClassID,
		Degraded:   res.Degraded,
		Timestamp:  res.Timestamp,
		Landmarks:  landmarks,
		Metadata:   metadata,
	}
	if err := r.predictions.Create(ctx, p); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to save prediction")
		return "", 0, &PersistenceError{Op: "prediction", Err: err}
	}

	if sessionID == "" {
		return p.ID, 0, nil
	}
	n, err := r.sessions.LogLabel(ctx, sessionID, res.Label)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to log gesture")
		return p.ID, 0, &PersistenceError{Op: "session counter", Err: err}
	}
	return p.ID, n, nil
}
