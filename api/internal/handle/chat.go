package handle

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"docai-gateway/api/internal/ocr/types"
)

func (h *Handle) Chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, errMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req types.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, errBadJSON)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Debug().Int("history", len(req.ConversationHistory)).Msg("chat request")

	answer, err := h.chat.Chat(r.Context(), req.ConversationHistory, req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ChatResponse{Answer: answer})
}
