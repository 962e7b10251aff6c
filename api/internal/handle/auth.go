package handle

import (
	"net/http"

	"github.com/rs/zerolog"

	"docai-gateway/api/internal/auth"
)

// RequireAuth rejects requests without a valid bearer token and exposes the
// verified claims to next through the request context.
func (h *Handle) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.BearerToken(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		claims, err := h.verifier.Verify(r.Context(), raw)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := auth.WithClaims(r.Context(), claims)
		logger := zerolog.Ctx(ctx).With().Str("sub", claims.Subject()).Logger()
		next(w, r.WithContext(logger.WithContext(ctx)))
	}
}
