package apihandlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skald/internal/apihandlers"
	"skald/internal/app"
	"skald/internal/config"
	"skald/internal/models"
	"skald/internal/services"
)

type echoProvider struct{}

func (echoProvider) Name() string { return "echo" }

func (echoProvider) Complete(_ context.Context, messages []models.ChatMessage, model string) (*services.Completion, error) {
	return &services.Completion{
		Text:         "echo: " + messages[len(messages)-1].Text,
		Model:        model,
		InputTokens:  10,
		OutputTokens: 5,
	}, nil
}

type wordCounter struct{}

func (wordCounter) Count(s string) int { return len(s) / 4 }

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Provider.Name = "openai"
	cfg.Provider.DefaultModel = "test-model"
	cfg.Pricing = map[string]config.PricingInfo{
		"test-model": {InputPerToken: "0.000001", OutputPerToken: "0.000002"},
	}
	cfg.Telemetry.LogFile = filepath.Join(t.TempDir(), "metrics.jsonl")
	cfg.Chat.MaxTurns = 10
	cfg.Chat.MaxMessageLength = 4000
	cfg.Chunking.MaxTokens = 3000
	cfg.Chunking.Overlap = 2

	a, err := app.NewAppWithProvider(cfg, echoProvider{}, wordCounter{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	r := gin.New()
	apihandlers.NewAPIHandler(a).RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestInvokeOperationSuccess(t *testing.T) {
	r := testRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/summarize", gin.H{"input": "some text"})
	require.Equal(t, http.StatusOK, rec.Code)

	var env models.ResultEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.OK)
	assert.Contains(t, env.Text, "echo:")
	assert.Equal(t, 10, env.InputTokens)
	assert.Equal(t, "0.00002", env.Cost.String())
}

func TestInvokeOperationMissingInput(t *testing.T) {
	r := testRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/summarize", gin.H{"prompt": "no input"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvokeOperationUnknownModel(t *testing.T) {
	r := testRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/mask", gin.H{"input": "text", "model": "unpriced-model"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var env models.ResultEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.OK)
	assert.Equal(t, "The requested model has no configured pricing.", env.Error)
}

func TestChatSessionLifecycle(t *testing.T) {
	r := testRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/chat/sessions", gin.H{"system_prompt": "be brief"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.SessionID)

	base := "/api/v1/chat/sessions/" + created.SessionID
	rec = doJSON(t, r, http.MethodPost, base+"/messages", gin.H{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, r, http.MethodGet, base+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hist struct {
		Messages        []models.ChatMessage `json:"messages"`
		EstimatedTokens int                  `json:"estimated_tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	require.Len(t, hist.Messages, 3) // system, user, assistant
	assert.Equal(t, models.ChatRoleSystem, hist.Messages[0].Role)
	assert.Greater(t, hist.EstimatedTokens, 0)

	rec = doJSON(t, r, http.MethodDelete, base+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, r, http.MethodGet, base+"/history", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Len(t, hist.Messages, 1) // system prompt survives a clear

	rec = doJSON(t, r, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, r, http.MethodPost, base+"/messages", gin.H{"message": "still there?"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSessionUnknownID(t *testing.T) {
	r := testRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/chat/sessions/nope/messages", gin.H{"message": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsageReportsInvocations(t *testing.T) {
	r := testRouter(t)

	doJSON(t, r, http.MethodPost, "/api/v1/grammar", gin.H{"input": "their is a error"})

	rec := doJSON(t, r, http.MethodGet, "/api/v1/usage", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var usage struct {
		Operations map[string]struct {
			Calls int64 `json:"calls"`
		} `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.EqualValues(t, 1, usage.Operations["grammar"].Calls)
}

func TestMetricsExposition(t *testing.T) {
	r := testRouter(t)

	doJSON(t, r, http.MethodPost, "/api/v1/summarize", gin.H{"input": "text"})

	rec := doJSON(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skald_requests_total")
	assert.Contains(t, rec.Body.String(), `operation="summarize"`)
}

func TestHealth(t *testing.T) {
	r := testRouter(t)

	rec := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"echo"`)
}

func TestEndpointLifecycle(t *testing.T) {
	r := testRouter(t)

	rec := doJSON(t, r, http.MethodPost, "/api/v1/endpoints/summarize", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Contains(t, created.Address, "http://127.0.0.1:")

	// Creating again reuses the same listener.
	rec = doJSON(t, r, http.MethodPost, "/api/v1/endpoints/summarize", nil)
	var again struct {
		Address string `json:"address"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, created.Address, again.Address)

	rec = doJSON(t, r, http.MethodDelete, "/api/v1/endpoints/summarize", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, r, http.MethodDelete, "/api/v1/endpoints/summarize", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodPost, "/api/v1/endpoints/unknown-op", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
