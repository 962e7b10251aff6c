package ocr

import (
	"context"
	"time"

	"docai-gateway/api/internal/metrics"
	"docai-gateway/api/internal/ocr/types"
)

type guarded struct {
	Engine
	timeout time.Duration
	metrics *metrics.Metrics
}

// Guard bounds every model call of e by timeout, records its latency and
// reports failures as ModelError. A zero timeout leaves calls unbounded.
func Guard(e Engine, timeout time.Duration, m *metrics.Metrics) Engine {
	return &guarded{Engine: e, timeout: timeout, metrics: m}
}

func (g *guarded) Analyze(ctx context.Context, img []byte, mime string) (string, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	start := time.Now()
	out, err := g.Engine.Analyze(ctx, img, mime)
	if err == nil {
		err = ctx.Err()
	}
	g.metrics.ObserveModelCall(g.Name(), "vision", err, time.Since(start))
	if err != nil {
		return "", Wrap(g.Name(), err)
	}
	return out, nil
}

func (g *guarded) Chat(ctx context.Context, history []types.Message, question string) (string, error) {
	ctx, cancel := g.bound(ctx)
	defer cancel()

	start := time.Now()
	out, err := g.Engine.Chat(ctx, history, question)
	if err == nil {
		err = ctx.Err()
	}
	g.metrics.ObserveModelCall(g.Name(), "chat", err, time.Since(start))
	if err != nil {
		return "", Wrap(g.Name(), err)
	}
	return out, nil
}

func (g *guarded) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}
