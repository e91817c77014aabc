// Package chat implements a bounded multi-turn conversation over a wrapped
// conversational operation. A Session is NOT safe for concurrent use from
// multiple goroutines: conversational turns are inherently ordered, so
// callers must serialize access to one session themselves.
package chat

import (
	"context"
	"fmt"
	"time"

	"skald/internal/models"
	"skald/internal/tokenizer"
)

// TurnFunc invokes the wrapped conversational operation. The history already
// includes the new user message as its final element.
type TurnFunc func(ctx context.Context, userInput string, history []models.ChatMessage) models.ResultEnvelope

// Session threads a growing message history through repeated wrapped calls.
// States: Uninitialized -> Active (via InitializeSystem). History is capped
// at maxTurns user/assistant pairs; the system message is exempt from
// eviction.
type Session struct {
	turn          TurnFunc
	maxTurns      int
	maxMessageLen int
	counter       tokenizer.Counter

	systemPrompt string
	history      []models.ChatMessage
	active       bool
}

// NewSession builds an Uninitialized session. counter may be nil; it is only
// used for token estimation.
func NewSession(turn TurnFunc, maxTurns, maxMessageLen int, counter tokenizer.Counter) *Session {
	return &Session{
		turn:          turn,
		maxTurns:      maxTurns,
		maxMessageLen: maxMessageLen,
		counter:       counter,
	}
}

// InitializeSystem moves the session to Active, seeding the history with an
// optional system message. An empty prompt activates the session without
// one.
func (s *Session) InitializeSystem(prompt string) {
	s.systemPrompt = truncate(prompt, s.maxMessageLen)
	s.history = nil
	if s.systemPrompt != "" {
		s.history = []models.ChatMessage{{
			Role:      models.ChatRoleSystem,
			Text:      s.systemPrompt,
			Timestamp: time.Now().UTC(),
		}}
	}
	s.active = true
}

// Active reports whether InitializeSystem has been called.
func (s *Session) Active() bool { return s.active }

// Chat appends the user's message, runs the wrapped conversational operation
// with the full current history, and appends the assistant's reply on
// success. A failed turn keeps the user message (it was said) but adds no
// assistant message; the session stays Active and usable.
func (s *Session) Chat(ctx context.Context, userInput string) (models.ResultEnvelope, error) {
	if !s.active {
		return models.ResultEnvelope{}, fmt.Errorf("%w: session not initialized, call InitializeSystem first", models.ErrValidation)
	}
	if userInput == "" {
		return models.ResultEnvelope{}, fmt.Errorf("%w: user input cannot be empty", models.ErrValidation)
	}

	userInput = truncate(userInput, s.maxMessageLen)
	s.history = append(s.history, models.ChatMessage{
		Role:      models.ChatRoleUser,
		Text:      userInput,
		Timestamp: time.Now().UTC(),
	})

	env := s.turn(ctx, userInput, s.History())
	if env.OK {
		s.history = append(s.history, models.ChatMessage{
			Role:      models.ChatRoleAssistant,
			Text:      env.Text,
			Timestamp: time.Now().UTC(),
		})
	}
	// Evict on failed turns too: their unpaired user messages still count
	// against the cap, or a failure streak would grow the history unbounded.
	s.evict()
	return env, nil
}

// ClearHistory resets the history to empty, or to just the system message if
// one was set. The session remains Active.
func (s *Session) ClearHistory() {
	s.history = nil
	if s.systemPrompt != "" {
		s.history = []models.ChatMessage{{
			Role:      models.ChatRoleSystem,
			Text:      s.systemPrompt,
			Timestamp: time.Now().UTC(),
		}}
	}
}

// History returns a copy of the ordered message sequence. Mutating the
// returned slice never changes session state.
func (s *Session) History() []models.ChatMessage {
	out := make([]models.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// EstimatedTokens reports the local token estimate for the current history,
// or 0 when no counter is configured.
func (s *Session) EstimatedTokens() int {
	if s.counter == nil {
		return 0
	}
	total := 0
	for _, m := range s.history {
		total += s.counter.Count(m.Text)
	}
	return total
}

// evict drops the oldest non-system messages once the history exceeds
// maxTurns user/assistant pairs.
func (s *Session) evict() {
	limit := s.maxTurns * 2
	start := 0
	if len(s.history) > 0 && s.history[0].Role == models.ChatRoleSystem {
		start = 1
	}
	excess := len(s.history) - start - limit
	if excess <= 0 {
		return
	}
	kept := make([]models.ChatMessage, 0, start+limit)
	kept = append(kept, s.history[:start]...)
	kept = append(kept, s.history[start+excess:]...)
	s.history = kept
}

func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
