package handle

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"docai-gateway/api/internal/ingest"
)

// multipart overhead allowed on top of the image limit
const formOverhead = 1 << 20

// Analyze accepts multipart/form-data or a urlencoded form with exactly one
// of the "file" and "image_url" fields.
func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, errMethodNotAllowed)
		return
	}
	src, err := h.readSource(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.analyzer.Run(r.Context(), src)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handle) readSource(w http.ResponseWriter, r *http.Request) (ingest.Source, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+formOverhead)

	var src ingest.Source
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return src, formError(err)
		}
		f, err := h.readFile(r)
		if err != nil {
			return src, err
		}
		src.File = f
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return src, formError(err)
		}
	default:
		return src, ingest.ErrAmbiguousInput
	}
	src.URL = strings.TrimSpace(r.PostFormValue("image_url"))
	return src, nil
}

func (h *Handle) readFile(r *http.Request) (*ingest.File, error) {
	f, fh, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, formError(err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return nil, formError(err)
	}
	return &ingest.File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func formError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return err
	}
	return fmt.Errorf("%w: %v", errBadForm, err)
}
