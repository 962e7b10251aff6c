package handle

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"docai-gateway/api/internal/auth"
	"docai-gateway/api/internal/ingest"
	"docai-gateway/api/internal/ocr"
	"docai-gateway/api/internal/ocr/types"
)

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errOCRDisabled      = errors.New("text extraction is not configured")
	errBadJSON          = errors.New("request body must be valid JSON")
	errBadForm          = errors.New("malformed form data")
)

// statusFor maps an error to its HTTP status and the detail shown to the
// caller. Unknown errors never leak their text.
func statusFor(err error) (int, string) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return http.StatusBadRequest, ingest.ErrPayloadTooLarge.Error()
	case ingest.IsValidationError(err),
		errors.Is(err, types.ErrInvalidChatRequest),
		errors.Is(err, errBadJSON),
		errors.Is(err, errBadForm):
		return http.StatusBadRequest, err.Error()
	case auth.IsClientError(err):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrKeyFetch):
		return http.StatusInternalServerError, auth.ErrKeyFetch.Error()
	case errors.Is(err, auth.ErrVerifierInternal):
		return http.StatusInternalServerError, auth.ErrVerifierInternal.Error()
	case errors.Is(err, ocr.ErrModel):
		return http.StatusInternalServerError, ocr.ErrModel.Error()
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed, err.Error()
	case errors.Is(err, errOCRDisabled):
		return http.StatusNotImplemented, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, detail := statusFor(err)
	ev := zerolog.Ctx(r.Context()).Warn()
	if code >= 500 {
		ev = zerolog.Ctx(r.Context()).Error()
	}
	ev.Err(err).Int("status", code).Msg("request failed")

	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, code, ErrorResponse{Detail: detail})
}
