// Package consensus reduces a burst of per-frame predictions to a single
// majority decision.
package consensus

import (
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/ayusman/mudra/internal/classifier"
)

// Placeholder labels never take part in the vote.
const (
	LabelUnknown = "Unknown"
	LabelError   = "Error"
)

// Result is the session-level verdict for a burst of frames.
type Result struct {
	Label           string              `json:"label"`
	ConfidencePct   float64             `json:"confidence"`
	SupportingCount int                 `json:"count"`
	TotalFrames     int                 `json:"total_frames"`
	PerFrame        []classifier.Result `json:"results"`
}

// IsPlaceholder reports whether label marks a frame without a real prediction.
func IsPlaceholder(label string) bool {
	return label == LabelUnknown || label == LabelError
}

// Reduce picks the most frequent non-placeholder label. Ties go to the label
// seen first in frames. If every frame is a placeholder the label is Unknown
// with zero support.
func Reduce(frames []classifier.Result) Result {
	counts := make(map[string]int)
	var order []string
	for _, f := range frames {
		if IsPlaceholder(f.Label) {
			continue
		}
		if _, seen := counts[f.Label]; !seen {
			order = append(order, f.Label)
		}
		counts[f.Label]++
	}

	res := Result{
		Label:       LabelUnknown,
		TotalFrames: len(frames),
		PerFrame:    frames,
	}
	// Strict > keeps the earliest label among equal counts.
	for _, label := range order {
		if counts[label] > res.SupportingCount {
			res.Label = label
			res.SupportingCount = counts[label]
		}
	}
	if res.TotalFrames > 0 {
		res.ConfidencePct = scalar.Round(100*float64(res.SupportingCount)/float64(res.TotalFrames), 2)
	}
	if res.PerFrame == nil {
		res.PerFrame = []classifier.Result{}
	}
	return res
}
