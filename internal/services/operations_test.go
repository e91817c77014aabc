package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skald/internal/models"
	"skald/internal/services"
	"skald/internal/wrapper"
)

// fakeProvider replies with a canned script: each call pops the next reply.
// When the script is empty it echoes the last user message.
type fakeProvider struct {
	replies []string
	calls   [][]models.ChatMessage
	err     error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, messages []models.ChatMessage, model string) (*services.Completion, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return nil, f.err
	}
	text := "echo: " + messages[len(messages)-1].Text
	if len(f.replies) > 0 {
		text = f.replies[0]
		f.replies = f.replies[1:]
	}
	return &services.Completion{Text: text, Model: model, InputTokens: 7, OutputTokens: 3}, nil
}

func inlineInput(text string) *models.ResolvedInput {
	return &models.ResolvedInput{
		Reference:   models.ContentReference{Raw: text, Kind: models.SourceInlineText},
		ContentType: "text/plain; charset=utf-8",
		Text:        text,
	}
}

func newOps(p services.CompletionProvider) *services.Operations {
	return services.NewOperations(p, nil, "test-model", 3000, 2)
}

func TestSummarizeShortInputSingleCall(t *testing.T) {
	p := &fakeProvider{replies: []string{"a short summary"}}
	op := newOps(p).Summarize()

	res, err := op(context.Background(), inlineInput("some text to summarize"), wrapper.Options{})
	require.NoError(t, err)
	assert.Equal(t, "a short summary", res.Text)
	assert.Equal(t, "test-model", res.Model)
	assert.Equal(t, 7, res.InputTokens)
	assert.Len(t, p.calls, 1)
}

func TestSummarizeLongInputMapReduce(t *testing.T) {
	p := &fakeProvider{}
	ops := services.NewOperations(p, nil, "test-model", 5, 1) // tiny chunks
	op := ops.Summarize()

	long := strings.Repeat("word ", 40) + "end."
	res, err := op(context.Background(), inlineInput(long), wrapper.Options{})
	require.NoError(t, err)

	require.Greater(t, len(p.calls), 2, "chunked input needs per-chunk calls plus a combine call")
	lastUser := p.calls[len(p.calls)-1][1].Text
	assert.Contains(t, lastUser, "Combine the following partial summaries")
	// Token counts accumulate across all calls.
	assert.Equal(t, 7*len(p.calls), res.InputTokens)
	assert.Equal(t, 3*len(p.calls), res.OutputTokens)
}

func TestSummarizeEmptyInputIsValidationError(t *testing.T) {
	op := newOps(&fakeProvider{}).Summarize()

	_, err := op(context.Background(), inlineInput(""), wrapper.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestBinaryInputWithoutParserIsUnsupported(t *testing.T) {
	op := newOps(&fakeProvider{}).Summarize()

	in := &models.ResolvedInput{
		Reference:   models.ContentReference{Raw: "report.pdf", Kind: models.SourceLocalPath},
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4"),
	}
	_, err := op(context.Background(), in, wrapper.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnsupportedContentType))
}

func TestExtractEntitiesParsesJSONPayload(t *testing.T) {
	p := &fakeProvider{replies: []string{"Here you go:\n{\"people\": [\"Ada\"], \"places\": [\"London\"]}"}}
	op := newOps(p).ExtractEntities()

	res, err := op(context.Background(), inlineInput("Ada visited London."), wrapper.Options{})
	require.NoError(t, err)
	payload, ok := res.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"Ada"}, payload["people"])
}

func TestExtractEntitiesNonJSONKeepsTextOnly(t *testing.T) {
	p := &fakeProvider{replies: []string{"no entities found"}}
	op := newOps(p).ExtractEntities()

	res, err := op(context.Background(), inlineInput("nothing here"), wrapper.Options{})
	require.NoError(t, err)
	assert.Nil(t, res.Payload)
	assert.Equal(t, "no entities found", res.Text)
}

func TestChatTurnSendsHistoryVerbatim(t *testing.T) {
	p := &fakeProvider{replies: []string{"assistant reply"}}
	op := newOps(p).ChatTurn()

	history := []models.ChatMessage{
		{Role: models.ChatRoleSystem, Text: "be brief"},
		{Role: models.ChatRoleUser, Text: "hello"},
	}
	res, err := op(context.Background(), inlineInput("hello"), wrapper.Options{History: history})
	require.NoError(t, err)
	assert.Equal(t, "assistant reply", res.Text)
	require.Len(t, p.calls, 1)
	assert.Len(t, p.calls[0], 2)
	assert.Equal(t, models.ChatRoleSystem, p.calls[0][0].Role)
}

func TestProviderFailureSurfacesTyped(t *testing.T) {
	p := &fakeProvider{err: errors.New("boom")}
	op := newOps(p).MaskData()

	_, err := op(context.Background(), inlineInput("text"), wrapper.Options{})
	require.Error(t, err)
}

func TestModelOverride(t *testing.T) {
	p := &fakeProvider{}
	op := newOps(p).CorrectGrammar()

	res, err := op(context.Background(), inlineInput("their is a error"), wrapper.Options{Model: "other-model"})
	require.NoError(t, err)
	assert.Equal(t, "other-model", res.Model)
}
