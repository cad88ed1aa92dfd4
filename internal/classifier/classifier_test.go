package classifier

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/features"
)

type stubModel struct {
	scores []float64
	err    error
	panic  bool
	delay  time.Duration
	size   int
	closed bool
}

func (m *stubModel) Predict(ctx context.Context, _ features.Vector) (int, []float64, error) {
	if m.panic {
		panic("boom")
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		}
	}
	if m.err != nil {
		return 0, nil, m.err
	}
	return 0, m.scores, nil
}

func (m *stubModel) InputSize() int {
	if m.size != 0 {
		return m.size
	}
	return features.Length
}

func (m *stubModel) Close() error {
	m.closed = true
	return nil
}

func assertDegraded(t *testing.T, a *Adapter, r Result) {
	t.Helper()
	assert.True(t, r.Degraded)
	assert.NotEmpty(t, r.DegradedReason)
	assert.Nil(t, r.ClassID)
	assert.GreaterOrEqual(t, r.Confidence, 60.0)
	assert.LessOrEqual(t, r.Confidence, 95.0)
	assert.Contains(t, a.Labels(), r.Label)
	assert.InDelta(t, math.Round(r.Confidence*100)/100, r.Confidence, 1e-9)
}

func TestClassify_NormalPath(t *testing.T) {
	model := &stubModel{scores: []float64{0.1, 0.2, 0.61234, 0.08}}
	a, err := New(model, Options{Seed: 1})
	require.NoError(t, err)

	r := a.Classify(context.Background(), features.Vector{})

	assert.False(t, r.Degraded)
	assert.Equal(t, "Yes", r.Label)
	assert.Equal(t, 61.23, r.Confidence)
	require.NotNil(t, r.ClassID)
	assert.Equal(t, 2, *r.ClassID)
	assert.False(t, r.Timestamp.IsZero())
}

func TestClassify_TieTakesFirstIndex(t *testing.T) {
	a, err := New(&stubModel{scores: []float64{0.4, 0.4, 0.2}}, Options{Seed: 1})
	require.NoError(t, err)

	r := a.Classify(context.Background(), features.Vector{})
	require.NotNil(t, r.ClassID)
	assert.Equal(t, 0, *r.ClassID)
	assert.Equal(t, "Hello", r.Label)
}

func TestClassify_IndexPastLabels(t *testing.T) {
	a, err := New(&stubModel{scores: []float64{0.1, 0.1, 0.8}}, Options{Labels: []string{"A", "B"}, Seed: 1})
	require.NoError(t, err)

	r := a.Classify(context.Background(), features.Vector{})
	assert.Equal(t, "Class 2", r.Label)
}

func TestClassify_ConfidenceClamped(t *testing.T) {
	a, err := New(&stubModel{scores: []float64{3.5}}, Options{Seed: 1})
	require.NoError(t, err)

	r := a.Classify(context.Background(), features.Vector{})
	assert.Equal(t, 100.0, r.Confidence)
}

func TestClassify_Degraded(t *testing.T) {
	tests := []struct {
		name  string
		model Model
	}{
		{"no model", nil},
		{"model error", &stubModel{err: errors.New("tensor failure")}},
		{"model panic", &stubModel{panic: true}},
		{"no scores", &stubModel{scores: []float64{}}},
		{"nan scores", &stubModel{scores: []float64{0.2, math.NaN()}}},
		{"timeout", &stubModel{scores: []float64{1}, delay: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(tt.model, Options{Seed: 7, Timeout: 20 * time.Millisecond})
			require.NoError(t, err)

			for i := 0; i < 50; i++ {
				assertDegraded(t, a, a.Classify(context.Background(), features.Vector{}))
			}
		})
	}
}

func TestClassify_DegradedIsSeeded(t *testing.T) {
	a1, _ := New(nil, Options{Seed: 42})
	a2, _ := New(nil, Options{Seed: 42})

	for i := 0; i < 10; i++ {
		r1 := a1.Classify(context.Background(), features.Vector{})
		r2 := a2.Classify(context.Background(), features.Vector{})
		assert.Equal(t, r1.Label, r2.Label)
		assert.Equal(t, r1.Confidence, r2.Confidence)
	}
}

func TestClassify_CancelledContext(t *testing.T) {
	a, err := New(&stubModel{scores: []float64{1}, delay: time.Second}, Options{Seed: 3})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := a.Classify(ctx, features.Vector{})
	assertDegraded(t, a, r)
}

func TestNew_InputSizeMismatch(t *testing.T) {
	_, err := New(&stubModel{size: 63}, Options{})
	assert.ErrorIs(t, err, ErrInputSize)
}

func TestAdapter_Close(t *testing.T) {
	model := &stubModel{scores: []float64{1}}
	a, err := New(model, Options{})
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.True(t, model.closed)

	empty, err := New(nil, Options{})
	require.NoError(t, err)
	assert.NoError(t, empty.Close())
	assert.False(t, empty.Available())
}

func TestLabelFor(t *testing.T) {
	a, err := New(nil, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Hello", a.LabelFor(0))
	assert.Equal(t, "Work", a.LabelFor(19))
	assert.Equal(t, "Class 20", a.LabelFor(20))
	assert.Equal(t, "Class -1", a.LabelFor(-1))
}

func TestLoadONNX_MissingFile(t *testing.T) {
	_, err := LoadONNX(filepath.Join(t.TempDir(), "absent.onnx"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
