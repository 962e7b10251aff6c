package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"docai-gateway/api/internal/ocr/types"
	"docai-gateway/api/internal/util"
)

// Engine speaks the OpenAI chat completions protocol. Any compatible server
// (vLLM, LM Studio, OpenAI itself) works.
type Engine struct {
	BaseURL   string
	APIKey    string
	Model     string
	ChatModel string
	httpc     *http.Client
}

func New(baseURL, key, model, chatModel string) *Engine {
	if chatModel == "" {
		chatModel = model
	}
	return &Engine{
		BaseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:    strings.TrimSpace(key),
		Model:     strings.TrimSpace(model),
		ChatModel: strings.TrimSpace(chatModel),
		httpc:     &http.Client{},
	}
}

func (e *Engine) Name() string { return "openai" }

func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) Analyze(ctx context.Context, img []byte, mime string) (string, error) {
	if mime == "" {
		mime = util.SniffMIME(img)
	}
	body := map[string]any{
		"model": e.Model,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": types.AnalysisPrompt},
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": util.MakeDataURL(mime, img), "detail": "high"}},
				},
			},
		},
		"temperature": 0.1,
		"top_p":       0.9,
	}
	out, err := e.complete(ctx, body)
	if err != nil {
		return "", fmt.Errorf("openai analyze: %w", err)
	}
	return util.StripCodeFences(out), nil
}

func (e *Engine) Chat(ctx context.Context, history []types.Message, question string) (string, error) {
	msgs := []any{map[string]any{"role": "system", "content": types.AssistantPrompt}}
	for _, m := range history {
		msgs = append(msgs, map[string]any{"role": m.Role, "content": m.Content})
	}
	msgs = append(msgs, map[string]any{"role": "user", "content": question})

	body := map[string]any{
		"model":       e.ChatModel,
		"messages":    msgs,
		"temperature": 0.7,
		"top_p":       0.9,
		"max_tokens":  500,
	}
	out, err := e.complete(ctx, body)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	return util.StripReasoning(out), nil
}

func (e *Engine) complete(ctx context.Context, body map[string]any) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("OPENAI_API_KEY is empty")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("%d: %s", resp.StatusCode, strings.TrimSpace(string(x)))
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	if len(raw.Choices) == 0 {
		return "", errors.New("empty response")
	}
	return strings.TrimSpace(raw.Choices[0].Message.Content), nil
}

// Available looks the model up in GET /models.
func (e *Engine) Available(ctx context.Context) (bool, error) {
	if e.APIKey == "" {
		return false, errors.New("OPENAI_API_KEY is empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.BaseURL+"/models", nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	resp, err := e.httpc.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("openai models %d", resp.StatusCode)
	}
	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	for _, m := range out.Data {
		if m.ID == e.Model {
			return true, nil
		}
	}
	return false, nil
}
