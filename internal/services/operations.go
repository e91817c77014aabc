package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"skald/internal/models"
	"skald/internal/wrapper"
)

// Operations builds the wrapper-compatible domain operations on top of a
// completion provider. Each method returns a wrapper.Operation value; the
// wrapping itself (telemetry, cost, error translation) happens in the
// wrapper package.
type Operations struct {
	provider     CompletionProvider
	parser       DocumentParser // nil when no document parsing is configured
	defaultModel string
	chunkWords   int
	chunkOverlap int
}

func NewOperations(provider CompletionProvider, parser DocumentParser, defaultModel string, chunkWords, chunkOverlap int) *Operations {
	return &Operations{
		provider:     provider,
		parser:       parser,
		defaultModel: defaultModel,
		chunkWords:   chunkWords,
		chunkOverlap: chunkOverlap,
	}
}

// textOf extracts prompt-ready text from a resolved input, delegating binary
// documents to the parser collaborator.
func (o *Operations) textOf(in *models.ResolvedInput) (string, error) {
	if in.Text != "" {
		return in.Text, nil
	}
	if len(in.Data) > 0 {
		if o.parser == nil {
			return "", fmt.Errorf("%w: no document parser configured for %q", models.ErrUnsupportedContentType, in.ContentType)
		}
		text, err := o.parser.Parse(in.Data, in.ContentType)
		if err != nil {
			return "", fmt.Errorf("%w: parse %q document: %v", models.ErrUnsupportedContentType, in.ContentType, err)
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: input text cannot be empty", models.ErrValidation)
}

func (o *Operations) model(opts wrapper.Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return o.defaultModel
}

// complete runs one system+user exchange against the provider.
func (o *Operations) complete(ctx context.Context, system, user, model string) (*Completion, error) {
	messages := []models.ChatMessage{
		{Role: models.ChatRoleSystem, Text: system, Timestamp: time.Now().UTC()},
		{Role: models.ChatRoleUser, Text: user, Timestamp: time.Now().UTC()},
	}
	return o.provider.Complete(ctx, messages, model)
}

// Summarize condenses the input. Long inputs are chunked and summarized
// map-reduce style: each chunk separately, then a summary of the summaries.
func (o *Operations) Summarize() wrapper.Operation {
	return func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		text, err := o.textOf(in)
		if err != nil {
			return nil, err
		}
		system := opts.Prompt
		if system == "" {
			system = "You are an expert summarizer. Produce a concise, faithful summary of the provided text."
		}
		model := o.model(opts)

		chunks := ContentAwareChunk(text, o.chunkWords, o.chunkOverlap)
		if len(chunks) <= 1 {
			comp, err := o.complete(ctx, system, "Please summarize the following text:\n\n"+text, model)
			if err != nil {
				return nil, err
			}
			return resultOf(comp), nil
		}

		log.Debugf("Summarizing %d chunks for %q", len(chunks), in.Reference.Raw)
		var partials []string
		totalIn, totalOut := 0, 0
		for _, chunk := range chunks {
			comp, err := o.complete(ctx, system, "Please summarize the following text:\n\n"+chunk, model)
			if err != nil {
				return nil, err
			}
			partials = append(partials, comp.Text)
			totalIn += comp.InputTokens
			totalOut += comp.OutputTokens
		}

		comp, err := o.complete(ctx, system,
			"Combine the following partial summaries into one coherent summary:\n\n"+strings.Join(partials, "\n\n"), model)
		if err != nil {
			return nil, err
		}
		return &wrapper.Result{
			Text:         comp.Text,
			Model:        model,
			InputTokens:  totalIn + comp.InputTokens,
			OutputTokens: totalOut + comp.OutputTokens,
		}, nil
	}
}

// ExtractEntities pulls structured data out of free text. The payload is the
// parsed JSON object when the model returns one.
func (o *Operations) ExtractEntities() wrapper.Operation {
	return func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		text, err := o.textOf(in)
		if err != nil {
			return nil, err
		}
		system := opts.Prompt
		if system == "" {
			system = "Extract the entities (people, organizations, places, dates, amounts) from the provided text. " +
				"Respond with a single JSON object mapping entity categories to arrays of strings. No prose."
		}

		comp, err := o.complete(ctx, system, text, o.model(opts))
		if err != nil {
			return nil, err
		}

		res := resultOf(comp)
		if payload, ok := parseJSONObject(comp.Text); ok {
			res.Payload = payload
		}
		return res, nil
	}
}

// MaskData replaces personally identifiable information with placeholders.
func (o *Operations) MaskData() wrapper.Operation {
	return func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		text, err := o.textOf(in)
		if err != nil {
			return nil, err
		}
		system := opts.Prompt
		if system == "" {
			system = "Mask all personally identifiable information in the provided text. Replace names, addresses, " +
				"phone numbers, emails and identification numbers with bracketed placeholders like [NAME]. " +
				"Return the masked text only, preserving the original formatting."
		}

		comp, err := o.complete(ctx, system, text, o.model(opts))
		if err != nil {
			return nil, err
		}
		return resultOf(comp), nil
	}
}

// GenerateText produces marketing-style copy (product descriptions and the
// like) from a short brief.
func (o *Operations) GenerateText() wrapper.Operation {
	return func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		brief, err := o.textOf(in)
		if err != nil {
			return nil, err
		}
		system := opts.Prompt
		if system == "" {
			system = "You are a skilled copywriter. Write a compelling product description based on the provided " +
				"product details and keywords."
		}

		comp, err := o.complete(ctx, system, brief, o.model(opts))
		if err != nil {
			return nil, err
		}
		return resultOf(comp), nil
	}
}

// CorrectGrammar fixes grammar and spelling while preserving meaning.
func (o *Operations) CorrectGrammar() wrapper.Operation {
	return func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		text, err := o.textOf(in)
		if err != nil {
			return nil, err
		}
		system := opts.Prompt
		if system == "" {
			system = "Correct the grammar, spelling and punctuation of the provided text. Keep the meaning and " +
				"tone unchanged. Return the corrected text only."
		}

		comp, err := o.complete(ctx, system, text, o.model(opts))
		if err != nil {
			return nil, err
		}
		return resultOf(comp), nil
	}
}

// ChatTurn is the conversational operation used by chat sessions. When the
// options carry a history it is sent verbatim; otherwise the resolved input
// becomes a single user message, which makes the operation usable standalone
// behind an exposed endpoint.
func (o *Operations) ChatTurn() wrapper.Operation {
	return func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		messages := opts.History
		if len(messages) == 0 {
			text, err := o.textOf(in)
			if err != nil {
				return nil, err
			}
			messages = []models.ChatMessage{{Role: models.ChatRoleUser, Text: text, Timestamp: time.Now().UTC()}}
		}

		comp, err := o.provider.Complete(ctx, messages, o.model(opts))
		if err != nil {
			return nil, err
		}
		return resultOf(comp), nil
	}
}

func resultOf(comp *Completion) *wrapper.Result {
	return &wrapper.Result{
		Text:         comp.Text,
		Model:        comp.Model,
		InputTokens:  comp.InputTokens,
		OutputTokens: comp.OutputTokens,
	}
}

// parseJSONObject extracts the first JSON object from a model reply, which
// may be wrapped in prose or a code fence.
func parseJSONObject(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, false
	}
	return payload, true
}
