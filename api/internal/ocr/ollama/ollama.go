package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"docai-gateway/api/internal/ocr/types"
	"docai-gateway/api/internal/util"
)

// Engine talks to an Ollama server through its Go API client.
type Engine struct {
	BaseURL   string
	Model     string
	ChatModel string
	client    *api.Client
	err       error
}

// New builds an engine for model. chatModel is used for text-only chat and
// defaults to model.
func New(baseURL, model, chatModel string) *Engine {
	if chatModel == "" {
		chatModel = model
	}
	e := &Engine{
		BaseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Model:     strings.TrimSpace(model),
		ChatModel: strings.TrimSpace(chatModel),
	}
	u, err := url.Parse(e.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		e.err = fmt.Errorf("ollama: invalid base url %q", baseURL)
		return e
	}
	// Deadlines come from the caller's context.
	e.client = api.NewClient(u, &http.Client{})
	return e
}

func (e *Engine) Name() string     { return "ollama" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Analyze(ctx context.Context, img []byte, mime string) (string, error) {
	out, err := e.chat(ctx, &api.ChatRequest{
		Model: e.Model,
		Messages: []api.Message{{
			Role:    "user",
			Content: types.AnalysisPrompt,
			Images:  []api.ImageData{img},
		}},
		Options: map[string]any{
			"temperature": 0.1,
			"top_p":       0.9,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama analyze: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (e *Engine) Chat(ctx context.Context, history []types.Message, question string) (string, error) {
	msgs := make([]api.Message, 0, len(history)+2)
	msgs = append(msgs, api.Message{Role: "system", Content: types.AssistantPrompt})
	for _, m := range history {
		msgs = append(msgs, api.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: question})

	out, err := e.chat(ctx, &api.ChatRequest{
		Model:    e.ChatModel,
		Messages: msgs,
		Options: map[string]any{
			"temperature": 0.7,
			"top_p":       0.9,
			"num_predict": 500,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return util.StripReasoning(out), nil
}

// chat sends a non-streaming request and returns the assistant's content.
func (e *Engine) chat(ctx context.Context, req *api.ChatRequest) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	stream := false
	req.Stream = &stream

	var b strings.Builder
	err := e.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		b.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Available reports whether the vision model is pulled on the server.
func (e *Engine) Available(ctx context.Context) (bool, error) {
	if e.err != nil {
		return false, e.err
	}
	list, err := e.client.List(ctx)
	if err != nil {
		return false, fmt.Errorf("ollama tags: %w", err)
	}
	for _, m := range list.Models {
		if sameModel(m.Name, e.Model) || sameModel(m.Model, e.Model) {
			return true, nil
		}
	}
	return false, nil
}

// sameModel treats an untagged name as the :latest tag, as Ollama does.
func sameModel(a, b string) bool {
	return withTag(a) == withTag(b)
}

func withTag(name string) string {
	if name == "" || strings.Contains(name, ":") {
		return name
	}
	return name + ":latest"
}
