package handle

import (
	"context"
	"encoding/json"
	"net/http"

	"docai-gateway/api/internal/auth"
	"docai-gateway/api/internal/ingest"
	"docai-gateway/api/internal/ocr"
	"docai-gateway/api/internal/ocr/types"
)

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (auth.Claims, error)
}

type Analyzer interface {
	Run(ctx context.Context, src ingest.Source) (types.AnalysisResult, error)
}

type Ingestor interface {
	Ingest(ctx context.Context, src ingest.Source) (*ingest.Payload, error)
}

// Deps are the collaborators of the HTTP handlers. OCR may be nil.
type Deps struct {
	Verifier  TokenVerifier
	Analyzer  Analyzer
	Ingestor  Ingestor
	Chat      ocr.ChatEngine
	OCR       ocr.TextExtractor
	Models    ocr.ModelChecker
	MaxUpload int64
	AppName   string
	Version   string
}

type Handle struct {
	verifier  TokenVerifier
	analyzer  Analyzer
	ingestor  Ingestor
	chat      ocr.ChatEngine
	ocr       ocr.TextExtractor
	models    ocr.ModelChecker
	maxUpload int64
	appName   string
	version   string
}

func New(d Deps) *Handle {
	if d.MaxUpload <= 0 {
		d.MaxUpload = ingest.DefaultMaxBytes
	}
	return &Handle{
		verifier:  d.Verifier,
		analyzer:  d.Analyzer,
		ingestor:  d.Ingestor,
		chat:      d.Chat,
		ocr:       d.OCR,
		models:    d.Models,
		maxUpload: d.MaxUpload,
		appName:   d.AppName,
		version:   d.Version,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
