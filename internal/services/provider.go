package services

import (
	"context"

	"skald/internal/models"
)

// Completion is the result of one model invocation: the generated text plus
// the token counts the cost calculation runs on.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// CompletionProvider is the model-invocation collaborator. Implementations
// wrap transport failures (authentication, quota, malformed input) in
// models.ErrInvocationFailure and pass the caller's context through
// unchanged so deadlines and cancellation propagate to the API call.
type CompletionProvider interface {
	Complete(ctx context.Context, messages []models.ChatMessage, model string) (*Completion, error)
	Name() string
}

// DocumentParser turns a binary document payload (PDF, DOCX, image, audio)
// into text for prompting. Parsing is an external collaborator; when none is
// configured, binary inputs are unsupported.
type DocumentParser interface {
	Parse(data []byte, contentType string) (string, error)
}
