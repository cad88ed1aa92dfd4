package recognizer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/consensus"
	"github.com/ayusman/mudra/internal/features"
)

// BurstInput is a sequence of frames to classify and reduce.
type BurstInput struct {
	UserID    string
	SessionID string

	// Either Landmarks or Images is used; Landmarks wins when both are set.
	Landmarks []json.RawMessage
	Images    []string

	GetMajority bool
	SaveResult  bool
}

// BurstOutcome is the result of PredictBurst.
type BurstOutcome struct {
	Results      []classifier.Result
	Majority     *consensus.Result
	PredictionID string
	GestureCount int
	SaveErr      error
}

// PredictBurst classifies every frame and, if asked, reduces them to a
// majority decision. Frames run in parallel; results keep submission order.
// Frames that cannot be read become "Error" placeholders and never fail the
// burst.
func (r *Recognizer) PredictBurst(ctx context.Context, in BurstInput) (BurstOutcome, error) {
	n := len(in.Landmarks)
	useImages := n == 0
	if useImages {
		n = len(in.Images)
	}
	if n == 0 {
		return BurstOutcome{}, fmt.Errorf("%w: no frames", ErrInvalidInput)
	}

	results := make([]classifier.Result, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if useImages {
				results[i] = r.classifyFrame(gctx, nil, in.Images[i])
			} else {
				results[i] = r.classifyFrame(gctx, in.Landmarks[i], "")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BurstOutcome{}, err
	}

	out := BurstOutcome{Results: results}
	if !in.GetMajority {
		return out, nil
	}

	majority := consensus.Reduce(results)
	out.Majority = &majority

	if in.SaveResult && !consensus.IsPlaceholder(majority.Label) {
		res := classifier.Result{
			Label:      majority.Label,
			Confidence: majority.ConfidencePct,
			Timestamp:  r.now().UTC(),
		}
		meta := map[string]any{
			"count":        majority.SupportingCount,
			"total_frames": majority.TotalFrames,
		}
		out.PredictionID, out.GestureCount, out.SaveErr = r.save(ctx, in.UserID, in.SessionID, res, nil, meta)
	}
	return out, nil
}

func (r *Recognizer) classifyFrame(ctx context.Context, raw json.RawMessage, image string) classifier.Result {
	landmarks, _, err := r.extract(raw, image)
	if err != nil {
		log.Debug().Err(err).Msg("burst frame rejected")
		return classifier.Result{Label: consensus.LabelError, Timestamp: r.now().UTC()}
	}
	if len(landmarks) == 0 {
		return r.unknown()
	}
	return r.classifier.Classify(ctx, features.Normalize(landmarks))
}
