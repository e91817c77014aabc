package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceKind classifies where a content reference points. Exactly one kind
// is assigned per reference; classification is deterministic and total.
type SourceKind int

const (
	// SourceInlineText means the reference string is itself the content.
	SourceInlineText SourceKind = iota
	// SourceLocalPath means the reference names a readable file on disk.
	SourceLocalPath
	// SourceObjectStorage means the reference is an s3://bucket/key URI.
	SourceObjectStorage
)

func (k SourceKind) String() string {
	switch k {
	case SourceLocalPath:
		return "local_path"
	case SourceObjectStorage:
		return "object_storage"
	default:
		return "inline_text"
	}
}

// ContentReference is a caller-supplied string naming where input data
// lives, plus its resolved kind.
type ContentReference struct {
	Raw  string
	Kind SourceKind
}

// ResolvedInput is the materialized content for a single invocation. It is
// owned transiently by that invocation and never cached across calls.
type ResolvedInput struct {
	Reference   ContentReference
	ContentType string
	// Text is set for text-bearing content; Data holds the raw payload for
	// binary documents (PDF, images, audio).
	Text string
	Data []byte
}

// Outcome is the terminal state of one tracked invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// InvocationRecord is one immutable telemetry entry per tracked call,
// appended as a single JSONL line. Field order is fixed by this struct and
// must not change: downstream parsers rely on it.
type InvocationRecord struct {
	Timestamp    time.Time       `json:"timestamp"`
	Operation    string          `json:"operation"`
	DurationMS   int64           `json:"duration_ms"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	Cost         decimal.Decimal `json:"cost"`
	Outcome      Outcome         `json:"outcome"`
	ErrorKind    string          `json:"error_kind,omitempty"`
}

// ResultEnvelope is the uniform return value of every wrapped operation.
// On failure only OK and Error are meaningful.
type ResultEnvelope struct {
	OK           bool            `json:"ok"`
	Text         string          `json:"text,omitempty"`
	Payload      any             `json:"payload,omitempty"`
	Model        string          `json:"model,omitempty"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	Cost         decimal.Decimal `json:"cost"`
	DurationMS   int64           `json:"duration_ms"`
	Error        string          `json:"error,omitempty"`
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single message in a conversation history.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
