// Package testdata provides request fixtures shared by end-to-end tests.
package testdata

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
)

// Frame returns a blank BGR frame. The caller must Close it.
func Frame(width, height int) gocv.Mat {
	return gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
}

// EncodeFrame encodes mat as a JPEG data URL, the form browsers upload.
func EncodeFrame(mat gocv.Mat) (string, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.GetBytes()), nil
}

// FrameDataURL is a blank width x height JPEG data URL.
func FrameDataURL(width, height int) (string, error) {
	mat := Frame(width, height)
	defer mat.Close()
	return EncodeFrame(mat)
}

// LandmarksJSON returns hands flattened to the [[x, y], ...] request form.
func LandmarksJSON(hands ...detector.HandLandmarks) (json.RawMessage, error) {
	return json.Marshal(detector.Flatten(hands))
}
