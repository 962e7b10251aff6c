package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docai-gateway/api/internal/ocr/types"
)

type captured struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string   `json:"role"`
		Content string   `json:"content"`
		Images  []string `json:"images"`
	} `json:"messages"`
	Options map[string]float64 `json:"options"`
}

func fakeOllama(t *testing.T, reply string, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"model":   got.Model,
				"message": map[string]string{"role": "assistant", "content": reply},
				"done":    true,
			})
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"qwen3-vl:4b","model":"qwen3-vl:4b"},{"name":"llava:latest","model":"llava:latest"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeRequestShape(t *testing.T) {
	var got captured
	srv := fakeOllama(t, "  Tarih: 15/11/2024\nFirma: Migros \n", &got)
	e := New(srv.URL+"/", "qwen3-vl:4b", "qwen3:4b")

	img := []byte{0x89, 'P', 'N', 'G'}
	out, err := e.Analyze(context.Background(), img, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "Tarih: 15/11/2024\nFirma: Migros", out)

	assert.Equal(t, "qwen3-vl:4b", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, types.AnalysisPrompt, got.Messages[0].Content)
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString(img)}, got.Messages[0].Images)
	assert.InDelta(t, 0.1, got.Options["temperature"], 1e-9)
	assert.InDelta(t, 0.9, got.Options["top_p"], 1e-9)
}

func TestChatUsesPairedModel(t *testing.T) {
	var got captured
	srv := fakeOllama(t, "<think>planning</think>\nDüzenli sayım yapın.", &got)
	e := New(srv.URL, "qwen3-vl:4b", "qwen3:4b")

	history := []types.Message{{Role: "user", Content: "merhaba"}, {Role: "assistant", Content: "Merhaba!"}}
	out, err := e.Chat(context.Background(), history, "Stoğumu nasıl yönetirim?")
	require.NoError(t, err)
	assert.Equal(t, "Düzenli sayım yapın.", out)

	assert.Equal(t, "qwen3:4b", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, types.AssistantPrompt, got.Messages[0].Content)
	assert.Equal(t, "merhaba", got.Messages[1].Content)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, "Stoğumu nasıl yönetirim?", got.Messages[3].Content)
	assert.InDelta(t, 0.7, got.Options["temperature"], 1e-9)
	assert.InDelta(t, 500, got.Options["num_predict"], 1e-9)
}

func TestChatModelDefaultsToVisionModel(t *testing.T) {
	e := New("http://localhost:11434", "llama3.2-vision", "")
	assert.Equal(t, "llama3.2-vision", e.ChatModel)
}

func TestAnalyzeFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model \"nope\" not found, try pulling it first"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "nope", "").Analyze(context.Background(), []byte{1}, "image/png")
	var se api.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.ErrorMessage, "not found")

	srv.Close()
	_, err = New(srv.URL, "nope", "").Analyze(context.Background(), []byte{1}, "image/png")
	assert.Error(t, err)
}

func TestInvalidBaseURL(t *testing.T) {
	e := New("localhost-no-scheme", "qwen3-vl:4b", "")
	_, err := e.Analyze(context.Background(), []byte{1}, "image/png")
	assert.ErrorContains(t, err, "invalid base url")
	_, err = e.Available(context.Background())
	assert.Error(t, err)
}

func TestAvailable(t *testing.T) {
	srv := fakeOllama(t, "", &captured{})

	ok, err := New(srv.URL, "qwen3-vl:4b", "").Available(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = New(srv.URL, "llava", "").Available(context.Background())
	require.NoError(t, err)
	assert.True(t, ok, "untagged names match :latest")

	ok, err = New(srv.URL, "qwen3-vl:2b", "").Available(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
