// Package detector provides hand detection interfaces and landmark types for gesture recognition.
package detector

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21

	// MaxHands is the number of hands that contribute to a feature vector.
	MaxHands = 2
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Landmark is a 2D hand joint position in normalized [0,1] image coordinates.
//
// It decodes from either a two-element array ([x, y], as sent by the browser
// client) or an object ({"x": .., "y": ..}) and always encodes as an array.
type Landmark struct {
	X float64
	Y float64
}

// MarshalJSON encodes the landmark as [x, y].
func (l Landmark) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{l.X, l.Y})
}

// UnmarshalJSON accepts [x, y], [x, y, z] or {"x": x, "y": y}.
func (l *Landmark) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var coords []float64
		if err := json.Unmarshal(data, &coords); err != nil {
			return err
		}
		if len(coords) < 2 {
			return fmt.Errorf("landmark needs at least 2 coordinates, got %d", len(coords))
		}
		l.X, l.Y = coords[0], coords[1]
		return nil
	}

	var obj struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.X == nil || obj.Y == nil {
		return fmt.Errorf("landmark object requires x and y")
	}
	l.X, l.Y = *obj.X, *obj.Y
	return nil
}

// Flatten converts detected hands into the ordered landmark list used for
// feature extraction. Hands keep their detection order, at most MaxHands are
// used, and the z coordinate is dropped.
func Flatten(hands []HandLandmarks) []Landmark {
	if len(hands) > MaxHands {
		hands = hands[:MaxHands]
	}

	out := make([]Landmark, 0, len(hands)*NumLandmarks)
	for _, h := range hands {
		for _, p := range h.Points {
			out = append(out, Landmark{X: p.X, Y: p.Y})
		}
	}
	return out
}

// ParseLandmarks decodes a landmark list from raw JSON. The payload may be the
// list itself or a JSON string containing the list, which older clients send.
func ParseLandmarks(raw json.RawMessage) ([]Landmark, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("landmarks are empty")
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode landmarks string: %w", err)
		}
		raw = json.RawMessage(inner)
	}

	var landmarks []Landmark
	if err := json.Unmarshal(raw, &landmarks); err != nil {
		return nil, fmt.Errorf("decode landmarks: %w", err)
	}
	return landmarks, nil
}
