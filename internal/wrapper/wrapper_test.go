package wrapper_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skald/internal/config"
	"skald/internal/models"
	"skald/internal/pricing"
	"skald/internal/resolver"
	"skald/internal/telemetry"
	"skald/internal/wrapper"
)

const testModel = "test-model"

func newTestDeps(t *testing.T) (*pricing.Calculator, *telemetry.Recorder) {
	t.Helper()
	table, err := pricing.NewPriceTable(map[string]config.PricingInfo{
		testModel: {InputPerToken: "0.000001", OutputPerToken: "0.000002"},
	})
	require.NoError(t, err)

	rec, err := telemetry.NewRecorder(filepath.Join(t.TempDir(), "metrics.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	return pricing.NewCalculator(table), rec
}

func echoOperation(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
	return &wrapper.Result{
		Text:         "echo: " + in.Text,
		Model:        testModel,
		InputTokens:  10,
		OutputTokens: 5,
	}, nil
}

func TestCallSuccessProducesEnvelopeAndOneRecord(t *testing.T) {
	calc, rec := newTestDeps(t)
	w := wrapper.New("echo", echoOperation, resolver.New(nil), calc, rec)

	env := w.Call(context.Background(), "hello", wrapper.Options{})

	require.True(t, env.OK, "error: %s", env.Error)
	assert.Equal(t, "echo: hello", env.Text)
	assert.Equal(t, 10, env.InputTokens)
	assert.Equal(t, 5, env.OutputTokens)
	// 10*0.000001 + 5*0.000002 = 0.00002
	assert.Equal(t, "0.00002", env.Cost.String())
	assert.Empty(t, env.Error)

	snap := rec.Snapshot()
	assert.Equal(t, int64(1), snap["echo"].Calls)
	assert.Equal(t, int64(0), snap["echo"].Failures)
}

func TestCallOperationFailureIsTranslated(t *testing.T) {
	calc, rec := newTestDeps(t)
	failing := func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		return nil, fmt.Errorf("%w: upstream said no", models.ErrInvocationFailure)
	}
	w := wrapper.New("failing", failing, resolver.New(nil), calc, rec)

	env := w.Call(context.Background(), "anything", wrapper.Options{})

	assert.False(t, env.OK)
	assert.NotEmpty(t, env.Error)
	assert.NotContains(t, env.Error, "upstream said no", "internal detail must not leak")

	snap := rec.Snapshot()
	assert.Equal(t, int64(1), snap["failing"].Calls)
	assert.Equal(t, int64(1), snap["failing"].Failures)
}

func TestCallUnknownModelFails(t *testing.T) {
	calc, rec := newTestDeps(t)
	op := func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		return &wrapper.Result{Text: "x", Model: "unpriced-model", InputTokens: 1, OutputTokens: 1}, nil
	}
	w := wrapper.New("unpriced", op, resolver.New(nil), calc, rec)

	env := w.Call(context.Background(), "text", wrapper.Options{})

	assert.False(t, env.OK)
	assert.Equal(t, "The requested model has no configured pricing.", env.Error)
	assert.Equal(t, int64(1), rec.Snapshot()["unpriced"].Failures)
}

func TestCallTimeoutIsRecordedAsTimeout(t *testing.T) {
	calc, rec := newTestDeps(t)
	op := func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	w := wrapper.New("slow", op, resolver.New(nil), calc, rec)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	env := w.Call(ctx, "text", wrapper.Options{})

	assert.False(t, env.OK)
	assert.Equal(t, "The operation timed out before completing.", env.Error)
}

func TestCallCancellationIsRecordedAsTimeout(t *testing.T) {
	calc, rec := newTestDeps(t)
	op := func(ctx context.Context, in *models.ResolvedInput, opts wrapper.Options) (*wrapper.Result, error) {
		return nil, ctx.Err()
	}
	w := wrapper.New("canceled", op, resolver.New(nil), calc, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env := w.Call(ctx, "text", wrapper.Options{})

	assert.False(t, env.OK)
	assert.Equal(t, "The operation timed out before completing.", env.Error)
	assert.Equal(t, int64(1), rec.Snapshot()["canceled"].Failures)
}

func TestCallResolutionFailureIsTranslated(t *testing.T) {
	calc, rec := newTestDeps(t)
	w := wrapper.New("echo", echoOperation, resolver.New(nil), calc, rec)

	// Object URI with no object store configured.
	env := w.Call(context.Background(), "s3://bucket/key.txt", wrapper.Options{})

	assert.False(t, env.OK)
	assert.Equal(t, "The referenced content could not be read.", env.Error)
	assert.Equal(t, int64(1), rec.Snapshot()["echo"].Failures)
}

func TestEndpointCreateIsIdempotent(t *testing.T) {
	calc, rec := newTestDeps(t)
	w := wrapper.New("echo", echoOperation, resolver.New(nil), calc, rec)
	registry := wrapper.NewRegistry()
	t.Cleanup(func() { registry.CloseAll() })

	addr1, err := registry.Create(w)
	require.NoError(t, err)
	addr2, err := registry.Create(w)
	require.NoError(t, err)
	assert.Equal(t, addr1, addr2, "second create must return the existing address")

	got, ok := registry.Address("echo")
	assert.True(t, ok)
	assert.Equal(t, addr1, got)
}

func TestEndpointCreateLeavesGinModeAlone(t *testing.T) {
	calc, rec := newTestDeps(t)
	w := wrapper.New("echo", echoOperation, resolver.New(nil), calc, rec)
	registry := wrapper.NewRegistry()
	t.Cleanup(func() { registry.CloseAll() })

	gin.SetMode(gin.TestMode)
	_, err := registry.Create(w)
	require.NoError(t, err)
	assert.Equal(t, gin.TestMode, gin.Mode(), "creating an endpoint must not flip the process-global gin mode")
}

func TestEndpointServesWrappedOperation(t *testing.T) {
	calc, rec := newTestDeps(t)
	w := wrapper.New("echo", echoOperation, resolver.New(nil), calc, rec)
	registry := wrapper.NewRegistry()
	t.Cleanup(func() { registry.CloseAll() })

	addr, err := registry.Create(w)
	require.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"reference": "over the wire"})
	resp, err := http.Post(addr+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env models.ResultEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.OK)
	assert.Equal(t, "echo: over the wire", env.Text)
}

func TestEndpointCloseReleasesListener(t *testing.T) {
	calc, rec := newTestDeps(t)
	w := wrapper.New("echo", echoOperation, resolver.New(nil), calc, rec)
	registry := wrapper.NewRegistry()

	addr, err := registry.Create(w)
	require.NoError(t, err)
	require.NoError(t, registry.Close("echo"))

	_, ok := registry.Address("echo")
	assert.False(t, ok)

	// The connection must be refused once the endpoint is gone.
	client := &http.Client{Timeout: time.Second}
	_, err = client.Get(addr + "/healthz")
	assert.Error(t, err)

	// Closing again is a no-op, and a fresh create works.
	require.NoError(t, registry.Close("echo"))
	addr2, err := registry.Create(w)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr2, "http://127.0.0.1:"))
	require.NoError(t, registry.CloseAll())
}
