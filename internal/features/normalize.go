// Package features turns hand landmarks into the fixed-length vector the
// classifier consumes.
package features

import "github.com/ayusman/mudra/internal/detector"

// Length is the size of a feature vector: two hands of 21 joints, x and y each.
const Length = detector.MaxHands * detector.NumLandmarks * 2

// Vector is a flattened, zero-padded landmark list.
type Vector [Length]float64

// Normalize flattens landmarks into x0, y0, x1, y1, ... in input order.
// Short inputs are padded with zeros and anything past Length is dropped.
func Normalize(landmarks []detector.Landmark) Vector {
	var v Vector
	for i, lm := range landmarks {
		if 2*i+1 >= Length {
			break
		}
		v[2*i] = lm.X
		v[2*i+1] = lm.Y
	}
	return v
}

// Slice returns the vector as a float32 slice, the element type model
// runtimes expect.
func (v Vector) Slice() []float32 {
	out := make([]float32, Length)
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
