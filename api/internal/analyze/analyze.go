// Package analyze runs the document analysis pipeline: ingest the image, ask
// the vision model, parse its answer.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"docai-gateway/api/internal/ingest"
	"docai-gateway/api/internal/metrics"
	"docai-gateway/api/internal/ocr"
	"docai-gateway/api/internal/ocr/types"
)

const (
	StageIngest = "ingest"
	StageModel  = "model"
)

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

type Ingestor interface {
	Ingest(ctx context.Context, src ingest.Source) (*ingest.Payload, error)
}

type Orchestrator struct {
	ingestor Ingestor
	engine   ocr.VisionEngine
	metrics  *metrics.Metrics
}

func New(in Ingestor, eng ocr.VisionEngine, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{ingestor: in, engine: eng, metrics: m}
}

// Run executes the stages in order and stops at the first failure. Nothing
// is retried.
func (o *Orchestrator) Run(ctx context.Context, src ingest.Source) (types.AnalysisResult, error) {
	return o.RunWith(ctx, o.engine, src)
}

// RunWith is Run with a different vision engine.
func (o *Orchestrator) RunWith(ctx context.Context, eng ocr.VisionEngine, src ingest.Source) (types.AnalysisResult, error) {
	logger := zerolog.Ctx(ctx)
	kind := src.Kind()
	if kind == "" {
		kind = "invalid"
	}

	p, err := o.ingestor.Ingest(ctx, src)
	if err != nil {
		o.metrics.RecordAnalysis(kind, "ingest_error")
		return types.AnalysisResult{}, &StageError{Stage: StageIngest, Err: err}
	}

	start := time.Now()
	raw, err := eng.Analyze(ctx, p.Data, p.ContentType)
	if err != nil {
		o.metrics.RecordAnalysis(kind, "model_error")
		return types.AnalysisResult{}, &StageError{Stage: StageModel, Err: ocr.Wrap(eng.Name(), err)}
	}

	res := types.ParseAnalysis(raw)
	o.metrics.RecordAnalysis(kind, "ok")
	logger.Info().
		Str("source", kind).
		Str("engine", eng.Name()).
		Str("model", eng.GetModel()).
		Int("fields", len(res.Fields())).
		Dur("model_time", time.Since(start)).
		Msg("document analyzed")
	return res, nil
}

// FailedStage returns the stage a Run error came from, or "".
func FailedStage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
