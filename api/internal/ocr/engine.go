package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"docai-gateway/api/internal/ocr/types"
)

// ErrModel marks any failure talking to a model: transport, model-side or
// timeout.
var ErrModel = errors.New("model request failed")

// ModelError carries the underlying cause of a failed model call.
type ModelError struct {
	Engine string
	Err    error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrModel, e.Engine, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

func (e *ModelError) Is(target error) bool { return target == ErrModel }

// Wrap turns err into a ModelError unless it already is one.
func Wrap(engine string, err error) error {
	if err == nil || errors.Is(err, ErrModel) {
		return err
	}
	return &ModelError{Engine: engine, Err: err}
}

// VisionEngine reads a document image and returns the model's raw answer to
// types.AnalysisPrompt.
type VisionEngine interface {
	Name() string
	GetModel() string
	Analyze(ctx context.Context, img []byte, mime string) (string, error)
}

// ChatEngine answers business questions as the assistant persona.
type ChatEngine interface {
	Chat(ctx context.Context, history []types.Message, question string) (string, error)
}

type ModelChecker interface {
	Available(ctx context.Context) (bool, error)
}

type Engine interface {
	VisionEngine
	ChatEngine
	ModelChecker
}

// TextExtractor is plain OCR without interpretation.
type TextExtractor interface {
	Name() string
	Extract(ctx context.Context, img []byte) (string, error)
}

type Engines struct {
	Ollama Engine
	Gemini Engine
	OpenAI Engine
}

func (e *Engines) GetEngine(name string) (Engine, error) {
	var eng Engine
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ollama", "qwen":
		eng = e.Ollama
	case "gemini", "google":
		eng = e.Gemini
	case "openai", "gpt":
		eng = e.OpenAI
	default:
		return nil, fmt.Errorf("unknown engine %q; use ollama, gemini or openai", name)
	}
	if eng == nil {
		return nil, fmt.Errorf("engine %q is not configured", name)
	}
	return eng, nil
}

// Names lists the configured engines.
func (e *Engines) Names() []string {
	var out []string
	for _, c := range []struct {
		name string
		eng  Engine
	}{{"ollama", e.Ollama}, {"gemini", e.Gemini}, {"openai", e.OpenAI}} {
		if c.eng != nil {
			out = append(out, c.name)
		}
	}
	return out
}

// Manager keeps a per-chat engine choice on top of a default.
type Manager struct {
	def Engine
	m   sync.Map // chatID -> Engine
}

func NewManager(defaultEngine Engine) *Manager {
	return &Manager{def: defaultEngine}
}

func (m *Manager) Get(chatID int64) Engine {
	if v, ok := m.m.Load(chatID); ok {
		return v.(Engine)
	}
	return m.def
}

func (m *Manager) Set(chatID int64, e Engine) {
	m.m.Store(chatID, e)
}
