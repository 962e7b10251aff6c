package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	ModelStatus string `json:"model_status"`
}

func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "unavailable"
	if h.models != nil {
		ok, err := h.models.Available(ctx)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("model availability check failed")
		}
		if ok {
			status = "available"
		}
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: h.version, ModelStatus: status})
}

// Root describes the service.
func (h *Handle) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Detail: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": h.appName,
		"version": h.version,
		"status":  "running",
	})
}
