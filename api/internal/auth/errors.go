package auth

import (
	"errors"
	"fmt"
)

// Client-caused verification failures. Callers answer these with 401.
var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrMalformedToken   = errors.New("invalid token header")
	ErrUnknownKey       = errors.New("unable to find appropriate key")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not valid yet")
	ErrInvalidAudience  = errors.New("invalid claims, please check the audience")
	ErrInvalidIssuer    = errors.New("invalid claims, please check the issuer")
)

// Verifier infrastructure failures. Callers answer these with 500.
var (
	ErrKeyFetch         = errors.New("unable to fetch signing keys")
	ErrVerifierInternal = errors.New("token verification failed")
)

// KeyFetchError carries the cause of a failed key set fetch.
type KeyFetchError struct {
	URL   string
	Cause error
}

func (e *KeyFetchError) Error() string {
	return fmt.Sprintf("%s from %s: %v", ErrKeyFetch, e.URL, e.Cause)
}

func (e *KeyFetchError) Unwrap() error { return e.Cause }

func (e *KeyFetchError) Is(target error) bool { return target == ErrKeyFetch }

// IsClientError reports whether err is a verification failure caused by the
// presented token rather than by the verifier itself.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrMissingToken,
		ErrMalformedToken,
		ErrUnknownKey,
		ErrInvalidSignature,
		ErrTokenExpired,
		ErrTokenNotYetValid,
		ErrInvalidAudience,
		ErrInvalidIssuer,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Reason is a short label of the verification outcome, used for metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingToken):
		return "missing"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrUnknownKey):
		return "unknown_key"
	case errors.Is(err, ErrInvalidSignature):
		return "bad_signature"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenNotYetValid):
		return "not_yet_valid"
	case errors.Is(err, ErrInvalidAudience):
		return "bad_audience"
	case errors.Is(err, ErrInvalidIssuer):
		return "bad_issuer"
	case errors.Is(err, ErrKeyFetch):
		return "key_fetch"
	default:
		return "internal"
	}
}
