package validation

import (
	"encoding/base64"
	"errors"
	"strings"
)

// MaxReferenceImageSize bounds the decoded size of an uploaded reference
// image. Payloads travel as base64 data URLs inside JSON bodies, so the cap
// keeps request sizes sane.
const MaxReferenceImageSize = 10 << 20 // 10MB

var allowedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ValidateImageDataURL checks that a reference image payload is a well-formed
// base64 data URL of an allowed image type and within the size cap.
func ValidateImageDataURL(data string) error {
	if data == "" {
		return errors.New("image data is required")
	}

	rest, ok := strings.CutPrefix(data, "data:")
	if !ok {
		return errors.New("image data must be a data URL")
	}

	mime, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return errors.New("image data must be base64 encoded")
	}

	if !allowedImageMimeTypes[mime] {
		return errors.New("unsupported image type, use JPEG, PNG or WebP")
	}

	// Estimate decoded size before decoding anything.
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxReferenceImageSize {
		return errors.New("image exceeds the 10MB size limit")
	}

	_, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return errors.New("image data is not valid base64")
	}

	return nil
}
