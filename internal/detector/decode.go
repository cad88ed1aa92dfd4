package detector

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

// ErrInvalidImage is returned when an uploaded image cannot be decoded.
var ErrInvalidImage = errors.New("invalid image data")

// DecodeBase64 strips an optional data-URL prefix ("data:image/jpeg;base64,")
// and decodes the payload.
func DecodeBase64(encoded string) ([]byte, error) {
	if i := strings.IndexByte(encoded, ','); i >= 0 {
		encoded = encoded[i+1:]
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return data, nil
}

// DecodeImage turns a base64 encoded image into a BGR Mat.
// The caller owns the returned Mat and must Close it.
func DecodeImage(encoded string) (gocv.Mat, error) {
	data, err := DecodeBase64(encoded)
	if err != nil {
		return gocv.NewMat(), err
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return mat, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if mat.Empty() {
		return mat, fmt.Errorf("%w: could not decode image", ErrInvalidImage)
	}
	return mat, nil
}
