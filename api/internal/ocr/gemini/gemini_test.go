package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingKeyFailsFast(t *testing.T) {
	e := New("  ", "gemini-2.5-flash")

	_, err := e.Analyze(context.Background(), []byte{1}, "image/png")
	require.ErrorContains(t, err, "GEMINI_API_KEY")

	_, err = e.Chat(context.Background(), nil, "merhaba")
	require.ErrorContains(t, err, "GEMINI_API_KEY")

	ok, err := e.Available(context.Background())
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestFirstText(t *testing.T) {
	assert.Equal(t, "", firstText(nil))
	assert.Equal(t, "", firstText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{
			genai.Blob{MIMEType: "image/png"},
			genai.Text("  Firma: Migros\n"),
		}}},
	}}
	assert.Equal(t, "Firma: Migros", firstText(resp))
}

func TestIdentity(t *testing.T) {
	e := New("key", " gemini-2.5-flash ")
	assert.Equal(t, "gemini", e.Name())
	assert.Equal(t, "gemini-2.5-flash", e.GetModel())
}
