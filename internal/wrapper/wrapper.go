// Package wrapper decorates domain operations with input resolution, cost
// accounting, telemetry capture and uniform failure translation. It is the
// single boundary where typed failures become short user-facing messages:
// callers of a wrapped operation never see raw errors, only a populated
// ResultEnvelope or a friendly failure string inside one.
package wrapper

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"skald/internal/models"
	"skald/internal/pricing"
	"skald/internal/resolver"
	"skald/internal/telemetry"
)

// Options carries the caller-tunable knobs of one invocation.
type Options struct {
	// Prompt overrides the operation's default instruction.
	Prompt string
	// Model overrides the operation's default model.
	Model string
	// History is the conversation context for conversational operations.
	History []models.ChatMessage
	// Params holds operation-specific string options (e.g. db_uri).
	Params map[string]string
}

// Result is what a raw operation returns before wrapping.
type Result struct {
	Text         string
	Payload      any
	Model        string
	InputTokens  int
	OutputTokens int
}

// Operation is a domain operation over a resolved input. Implementations
// surface typed failures from the models error taxonomy; translation to
// user-facing text happens here, not in the operation.
type Operation func(ctx context.Context, in *models.ResolvedInput, opts Options) (*Result, error)

// Wrapper binds one named operation to the shared middleware.
type Wrapper struct {
	name     string
	op       Operation
	resolver resolver.Resolver
	calc     *pricing.Calculator
	recorder *telemetry.Recorder
}

func New(name string, op Operation, res resolver.Resolver, calc *pricing.Calculator, rec *telemetry.Recorder) *Wrapper {
	return &Wrapper{name: name, op: op, resolver: res, calc: calc, recorder: rec}
}

// Name returns the operation name used in telemetry and routing.
func (w *Wrapper) Name() string { return w.name }

// Call resolves the reference, runs the operation, prices the usage and
// records exactly one InvocationRecord. The caller's context is passed
// through unchanged; deadlines are enforced by the collaborators, and an
// elapsed deadline is recorded as a Timeout failure.
func (w *Wrapper) Call(ctx context.Context, reference string, opts Options) models.ResultEnvelope {
	start := time.Now()

	in, err := w.resolver.Resolve(ctx, reference)
	if err != nil {
		return w.fail(ctx, start, err)
	}

	res, err := w.op(ctx, in, opts)
	if err != nil {
		return w.fail(ctx, start, err)
	}

	cost, err := w.calc.Cost(res.Model, res.InputTokens, res.OutputTokens)
	if err != nil {
		return w.fail(ctx, start, err)
	}

	duration := time.Since(start)
	w.record(models.InvocationRecord{
		Timestamp:    start.UTC(),
		Operation:    w.name,
		DurationMS:   duration.Milliseconds(),
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Cost:         cost,
		Outcome:      models.OutcomeSuccess,
	})

	log.Debugf("Operation %s succeeded: model=%s in=%d out=%d cost=%s duration=%s",
		w.name, res.Model, res.InputTokens, res.OutputTokens, cost, duration)

	return models.ResultEnvelope{
		OK:           true,
		Text:         res.Text,
		Payload:      res.Payload,
		Model:        res.Model,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Cost:         cost,
		DurationMS:   duration.Milliseconds(),
	}
}

// fail records the failure and translates it into the uniform envelope.
// Deadline expiry and caller cancellation both count as Timeout: in either
// case the caller's time budget ran out before the operation completed.
func (w *Wrapper) fail(ctx context.Context, start time.Time, err error) models.ResultEnvelope {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		ctx.Err() != nil {
		err = models.ErrTimeout
	}
	kind := models.ErrorKind(err)
	duration := time.Since(start)

	w.record(models.InvocationRecord{
		Timestamp:  start.UTC(),
		Operation:  w.name,
		DurationMS: duration.Milliseconds(),
		Cost:       decimal.Zero,
		Outcome:    models.OutcomeFailure,
		ErrorKind:  kind,
	})

	log.Warnf("Operation %s failed (%s): %v", w.name, kind, err)

	return models.ResultEnvelope{
		OK:         false,
		DurationMS: duration.Milliseconds(),
		Cost:       decimal.Zero,
		Error:      friendlyMessage(kind),
	}
}

// record submits the telemetry entry. Persistence failures are reported in
// the log only; they never change the operation's outcome.
func (w *Wrapper) record(rec models.InvocationRecord) {
	if err := w.recorder.Record(rec); err != nil {
		log.Warnf("Telemetry write failed for operation %s: %v", w.name, err)
	}
}

// friendlyMessage maps an error kind to a short user-readable message. No
// internal detail leaks past this point.
func friendlyMessage(kind string) string {
	switch kind {
	case "Validation":
		return "The request was invalid. Check the input and options and try again."
	case "UnresolvableInput":
		return "The referenced content could not be read."
	case "UnsupportedContentType":
		return "The content format is not supported."
	case "UnknownModel":
		return "The requested model has no configured pricing."
	case "Timeout":
		return "The operation timed out before completing."
	default:
		return "The AI service could not complete the request. Please try again."
	}
}
