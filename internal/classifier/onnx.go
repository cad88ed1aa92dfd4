package classifier

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/features"
)

// ONNXModel runs an exported gesture network through OpenCV's DNN module.
// The network takes a 1xN float32 row and yields one score per class.
type ONNXModel struct {
	mu        sync.Mutex
	net       gocv.Net
	inputSize int
}

// LoadONNX reads the network at path. inputSize is the vector length the
// network was exported with; zero means features.Length.
func LoadONNX(path string, inputSize int) (*ONNXModel, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("load onnx model: %w", err)
	}
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("load onnx model %s: empty network", path)
	}
	if inputSize <= 0 {
		inputSize = features.Length
	}
	return &ONNXModel{net: net, inputSize: inputSize}, nil
}

// InputSize implements Model.
func (m *ONNXModel) InputSize() int {
	return m.inputSize
}

// Predict implements Model.
func (m *ONNXModel) Predict(ctx context.Context, v features.Vector) (int, []float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	blob := gocv.NewMatWithSize(1, features.Length, gocv.MatTypeCV32F)
	defer blob.Close()
	for i, f := range v.Slice() {
		blob.SetFloatAt(0, i, f)
	}

	m.mu.Lock()
	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	m.mu.Unlock()
	defer out.Close()

	if out.Empty() {
		return 0, nil, fmt.Errorf("onnx forward: empty output")
	}

	n := out.Total()
	scores := make([]float64, n)
	best := 0
	for i := 0; i < n; i++ {
		scores[i] = float64(out.GetFloatAt(0, i))
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best, scores, nil
}

// Close releases the network.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}
