package analyze

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docai-gateway/api/internal/ingest"
	"docai-gateway/api/internal/metrics"
	"docai-gateway/api/internal/ocr"
)

type fakeVision struct {
	reply string
	err   error
	calls int
	mime  string
}

func (f *fakeVision) Name() string     { return "fake" }
func (f *fakeVision) GetModel() string { return "fake-vl" }

func (f *fakeVision) Analyze(_ context.Context, img []byte, mime string) (string, error) {
	f.calls++
	f.mime = mime
	return f.reply, f.err
}

func pngFile(t *testing.T) *ingest.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2))))
	return &ingest.File{Name: "fis.png", ContentType: "image/png", Data: buf.Bytes()}
}

func TestRunParsesModelAnswer(t *testing.T) {
	eng := &fakeVision{reply: "Tarih: 15/11/2024\nFirma: Migros\nÜcret: 125.50 TL\nVergi Miktarı: bulunamadı"}
	m := metrics.New()
	o := New(ingest.New(ingest.Options{}), eng, m)

	res, err := o.Run(context.Background(), ingest.Source{File: pngFile(t)})
	require.NoError(t, err)
	require.NotNil(t, res.Firma)
	assert.Equal(t, "Migros", *res.Firma)
	assert.Nil(t, res.VergiMiktari)
	assert.Equal(t, eng.reply, res.RawResponse)
	assert.Equal(t, "image/png", eng.mime)

	n, err := testutil.GatherAndCount(m.Registry(), "gateway_analyses_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunStopsAtIngest(t *testing.T) {
	eng := &fakeVision{reply: "Firma: X"}
	o := New(ingest.New(ingest.Options{}), eng, nil)

	_, err := o.Run(context.Background(), ingest.Source{})
	assert.ErrorIs(t, err, ingest.ErrAmbiguousInput)
	assert.Equal(t, StageIngest, FailedStage(err))
	assert.Zero(t, eng.calls, "model is never called after an ingest failure")
}

func TestRunModelFailureIsModelError(t *testing.T) {
	cause := errors.New("connection refused")
	o := New(ingest.New(ingest.Options{}), &fakeVision{err: cause}, nil)

	_, err := o.Run(context.Background(), ingest.Source{File: pngFile(t)})
	assert.ErrorIs(t, err, ocr.ErrModel)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, StageModel, FailedStage(err))
}

func TestRunWithOverridesEngine(t *testing.T) {
	def, other := &fakeVision{reply: "Firma: A"}, &fakeVision{reply: "Firma: B"}
	o := New(ingest.New(ingest.Options{}), def, nil)

	res, err := o.RunWith(context.Background(), other, ingest.Source{File: pngFile(t)})
	require.NoError(t, err)
	assert.Equal(t, "B", *res.Firma)
	assert.Zero(t, def.calls)
}

func TestUnparseableAnswerStillSucceeds(t *testing.T) {
	o := New(ingest.New(ingest.Options{}), &fakeVision{reply: "Bu görseli okuyamıyorum."}, nil)
	res, err := o.Run(context.Background(), ingest.Source{File: pngFile(t)})
	require.NoError(t, err)
	assert.Empty(t, res.Fields())
	assert.Equal(t, "Bu görseli okuyamıyorum.", res.RawResponse)
	assert.Equal(t, "", FailedStage(nil))
}
