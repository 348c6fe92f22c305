package ocr

import (
	"context"
	"errors"
	"fmt"
)

// Recognizer is the contract with the on-device text-recognition
// collaborator: request/response only, no shared state. Given a stored
// image artifact it returns the extracted text or a typed error.
type Recognizer interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// Typed failure classes reported by recognition providers.
var (
	ErrInvalidArgs = errors.New("ocr: invalid arguments")
	ErrImageError  = errors.New("ocr: image could not be decoded")
	ErrOCRError    = errors.New("ocr: recognition failed")
)

// CodeError wraps a provider error code and message in the matching
// sentinel so callers can branch with errors.Is.
func CodeError(code, message string) error {
	var base error
	switch code {
	case "INVALID_ARGS":
		base = ErrInvalidArgs
	case "IMAGE_ERROR":
		base = ErrImageError
	default:
		base = ErrOCRError
	}
	if message == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, message)
}
