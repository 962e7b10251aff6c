package yandex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloud struct {
	*httptest.Server
	iamCalls    atomic.Int32
	rejectFirst atomic.Bool
	lastReq     request
}

func newFakeCloud(t *testing.T, annotation string) *fakeCloud {
	t.Helper()
	fc := &fakeCloud{}
	fc.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/iam":
			n := fc.iamCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"iamToken":  "iam-" + string(rune('0'+n)),
				"expiresAt": time.Now().Add(12 * time.Hour).Format(time.RFC3339),
			})
		case "/ocr":
			if r.Header.Get("x-folder-id") != "folder-1" {
				http.Error(w, "no folder", http.StatusBadRequest)
				return
			}
			if fc.rejectFirst.CompareAndSwap(true, false) {
				http.Error(w, "expired", http.StatusUnauthorized)
				return
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&fc.lastReq))
			_, _ = w.Write([]byte(annotation))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fc.Close)
	return fc
}

func (fc *fakeCloud) engine() *Engine {
	return New("oauth", "folder-1").withEndpoints(fc.URL+"/iam", fc.URL+"/ocr")
}

func TestExtractFullText(t *testing.T) {
	fc := newFakeCloud(t, `{"result":{"textAnnotation":{"fullText":" MIGROS\nTOPLAM 125,50 "}}}`)
	e := fc.engine()

	txt, err := e.Extract(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0})
	require.NoError(t, err)
	assert.Equal(t, "MIGROS\nTOPLAM 125,50", txt)
	assert.Equal(t, "JPEG", fc.lastReq.MimeType)
	assert.Equal(t, []string{"tr", "en"}, fc.lastReq.LanguageCodes)

	_, err = e.Extract(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fc.iamCalls.Load(), "IAM token is cached")
}

func TestExtractFallsBackToLines(t *testing.T) {
	fc := newFakeCloud(t, `{"result":{"textAnnotation":{"blocks":[{"lines":[{"text":"BIM"},{"text":" "},{"text":"KDV 1,80"}]}]}}}`)
	txt, err := fc.engine().Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "BIM\nKDV 1,80", txt)
}

func TestExtractRetriesOnceOnUnauthorized(t *testing.T) {
	fc := newFakeCloud(t, `{"result":{"textAnnotation":{"fullText":"ok"}}}`)
	fc.rejectFirst.Store(true)

	txt, err := fc.engine().Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "ok", txt)
	assert.Equal(t, int32(2), fc.iamCalls.Load())
}

func TestExtractEmptyResult(t *testing.T) {
	fc := newFakeCloud(t, `{}`)
	txt, err := fc.engine().Extract(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "", txt)
}
