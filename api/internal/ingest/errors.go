package ingest

import "errors"

// Validation failures. All of them are caused by the caller's input.
var (
	ErrAmbiguousInput    = errors.New("provide exactly one of file or image_url")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrPayloadTooLarge   = errors.New("image is too large")
	ErrCorruptImage      = errors.New("invalid image file")
	ErrDownloadFailed    = errors.New("could not download image")
)

// IsValidationError reports whether err is one of the ingestion failures.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrAmbiguousInput) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrPayloadTooLarge) ||
		errors.Is(err, ErrCorruptImage) ||
		errors.Is(err, ErrDownloadFailed)
}
