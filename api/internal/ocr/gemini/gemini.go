package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"docai-gateway/api/internal/ocr/types"
	"docai-gateway/api/internal/util"
)

type Engine struct {
	APIKey string
	Model  string
	// opts are appended to the client options; tests point the client at a
	// local endpoint with them.
	opts []option.ClientOption
}

func New(apiKey, model string, opts ...option.ClientOption) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		opts:   opts,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) client(ctx context.Context) (*genai.Client, error) {
	if e.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	return genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)...)
}

func (e *Engine) Analyze(ctx context.Context, img []byte, mime string) (string, error) {
	cl, err := e.client(ctx)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(0.1),
		TopP:        ptrFloat32(0.9),
	}
	if mime == "" {
		mime = util.SniffMIME(img)
	}

	resp, err := m.GenerateContent(ctx,
		genai.Text(types.AnalysisPrompt),
		genai.Blob{MIMEType: mime, Data: img},
	)
	if err != nil {
		return "", fmt.Errorf("gemini analyze: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("gemini analyze: empty response")
	}
	return util.StripCodeFences(txt), nil
}

func (e *Engine) Chat(ctx context.Context, history []types.Message, question string) (string, error) {
	cl, err := e.client(ctx)
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptrFloat32(0.7),
		TopP:            ptrFloat32(0.9),
		MaxOutputTokens: ptrInt32(500),
	}

	system := []genai.Part{genai.Text(types.AssistantPrompt)}
	cs := m.StartChat()
	for _, h := range history {
		switch h.Role {
		case "system":
			system = append(system, genai.Text(h.Content))
		case "assistant":
			cs.History = append(cs.History, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(h.Content)}})
		default:
			cs.History = append(cs.History, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(h.Content)}})
		}
	}
	m.SystemInstruction = &genai.Content{Parts: system}

	resp, err := cs.SendMessage(ctx, genai.Text(question))
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("gemini chat: empty response")
	}
	return strings.TrimSpace(txt), nil
}

// Available asks the API for the model's metadata.
func (e *Engine) Available(ctx context.Context) (bool, error) {
	cl, err := e.client(ctx)
	if err != nil {
		return false, err
	}
	defer cl.Close()

	if _, err := cl.GenerativeModel(e.Model).Info(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return strings.TrimSpace(string(t))
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }
func ptrInt32(v int32) *int32       { return &v }
