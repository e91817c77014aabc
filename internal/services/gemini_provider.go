package services

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"skald/internal/models"
	"skald/internal/tokenizer"
)

// GeminiProvider implements CompletionProvider using the Google Gemini API.
type GeminiProvider struct {
	client  *genai.Client
	counter tokenizer.Counter
}

// NewGeminiProvider creates the provider. Falls back to the GEMINI_API_KEY
// environment variable when no key is configured. counter is used when the
// API response carries no usage metadata.
func NewGeminiProvider(ctx context.Context, apiKey string, counter tokenizer.Counter) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key not provided")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Info("Gemini completion provider initialized")
	return &GeminiProvider{client: client, counter: counter}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// Close releases the underlying gRPC connection.
func (p *GeminiProvider) Close() error { return p.client.Close() }

func (p *GeminiProvider) Complete(ctx context.Context, messages []models.ChatMessage, model string) (*Completion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages to send", models.ErrValidation)
	}

	gm := p.client.GenerativeModel(model)

	var history []*genai.Content
	for _, m := range messages[:len(messages)-1] {
		switch m.Role {
		case models.ChatRoleSystem:
			gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(m.Text)}}
		case models.ChatRoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Text)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Text)}})
		}
	}
	last := messages[len(messages)-1]

	cs := gm.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last.Text))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini completion: %v", models.ErrInvocationFailure, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: gemini returned no candidates", models.ErrInvocationFailure)
	}

	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return nil, fmt.Errorf("%w: gemini returned no text content", models.ErrInvocationFailure)
	}

	inTokens, outTokens := 0, 0
	if resp.UsageMetadata != nil {
		inTokens = int(resp.UsageMetadata.PromptTokenCount)
		outTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	} else if p.counter != nil {
		// Estimate locally so the call is still priced rather than recorded
		// as free.
		for _, m := range messages {
			inTokens += p.counter.Count(m.Text)
		}
		outTokens = p.counter.Count(text)
		log.Debug("Gemini response carried no usage metadata, using local token estimate")
	}

	return &Completion{
		Text:         text,
		Model:        model,
		InputTokens:  inTokens,
		OutputTokens: outTokens,
	}, nil
}
