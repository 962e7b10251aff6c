package types

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

const MaxQuestionLength = 1000

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Question            string    `json:"question"`
	ConversationHistory []Message `json:"conversation_history,omitempty"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

var ErrInvalidChatRequest = errors.New("invalid chat request")

func (req *ChatRequest) Validate() error {
	n := utf8.RuneCountInString(req.Question)
	if n < 1 || n > MaxQuestionLength {
		return fmt.Errorf("%w: question must be 1..%d characters", ErrInvalidChatRequest, MaxQuestionLength)
	}
	for i, m := range req.ConversationHistory {
		switch m.Role {
		case "user", "assistant", "system":
		default:
			return fmt.Errorf("%w: conversation_history[%d]: unknown role %q", ErrInvalidChatRequest, i, m.Role)
		}
	}
	return nil
}
