package handle

import (
	"fmt"
	"net/http"
)

type OCRResponse struct {
	Text   string `json:"text"`
	Engine string `json:"engine"`
}

// OCR returns the plain text of a document image without interpreting it.
func (h *Handle) OCR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, errMethodNotAllowed)
		return
	}
	if h.ocr == nil {
		writeError(w, r, errOCRDisabled)
		return
	}
	src, err := h.readSource(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.ingestor.Ingest(r.Context(), src)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := p.OCRData()
	if err != nil {
		writeError(w, r, err)
		return
	}
	txt, err := h.ocr.Extract(r.Context(), data)
	if err != nil {
		writeError(w, r, fmt.Errorf("%s: %w", h.ocr.Name(), err))
		return
	}
	writeJSON(w, http.StatusOK, OCRResponse{Text: txt, Engine: h.ocr.Name()})
}
