package apihandlers

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"skald/internal/app"
	"skald/internal/chat"
	"skald/internal/wrapper"
)

// APIHandler serves the operation, chat-session, telemetry and endpoint
// routes. Chat sessions are held in memory for the lifetime of the process;
// each one carries its own lock because a Session is not concurrency-safe.
type APIHandler struct {
	App *app.App

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *chat.Session
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{App: a, sessions: make(map[string]*sessionEntry)}
}

// RegisterRoutes mounts every API route on the engine.
func (h *APIHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthHandler)
	r.GET("/metrics", h.MetricsHandler)

	v1 := r.Group("/api/v1")
	for _, name := range h.App.OperationNames() {
		v1.POST("/"+name, h.InvokeHandler(name))
	}
	v1.GET("/usage", h.UsageHandler)

	v1.POST("/chat/sessions", h.CreateSessionHandler)
	v1.POST("/chat/sessions/:id/messages", h.SessionMessageHandler)
	v1.GET("/chat/sessions/:id/history", h.SessionHistoryHandler)
	v1.DELETE("/chat/sessions/:id/history", h.SessionClearHandler)
	v1.DELETE("/chat/sessions/:id", h.DeleteSessionHandler)

	v1.POST("/endpoints/:operation", h.CreateEndpointHandler)
	v1.DELETE("/endpoints/:operation", h.DeleteEndpointHandler)
}

// InvokeRequest is the JSON body shared by all operation routes.
type InvokeRequest struct {
	Input  string            `json:"input" binding:"required"`
	Prompt string            `json:"prompt"`
	Model  string            `json:"model"`
	Params map[string]string `json:"params"`
}

// InvokeHandler runs one wrapped operation. The envelope is returned as-is:
// a failed invocation is a valid, fully-formed response, not a 5xx.
func (h *APIHandler) InvokeHandler(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		w, ok := h.App.Wrapper(name)
		if !ok {
			NotFound(c, fmt.Sprintf("Unknown operation: %s", name))
			return
		}

		var req InvokeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "Invalid request body: "+err.Error())
			return
		}

		env := w.Call(c.Request.Context(), req.Input, wrapper.Options{
			Prompt: req.Prompt,
			Model:  req.Model,
			Params: req.Params,
		})
		status := http.StatusOK
		if !env.OK {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, env)
	}
}

// UsageHandler reports the aggregated per-operation counters.
func (h *APIHandler) UsageHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operations": h.App.Recorder.Snapshot()})
}

// MetricsHandler serves the counters in Prometheus text exposition format.
func (h *APIHandler) MetricsHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8",
		[]byte(h.App.Recorder.Scrape()))
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "provider": h.App.Provider.Name()})
}

// CreateSessionHandler starts a chat session, optionally seeded with a system
// prompt, and returns its ID.
func (h *APIHandler) CreateSessionHandler(c *gin.Context) {
	var req struct {
		SystemPrompt string `json:"system_prompt"`
	}
	// The body is optional; an empty POST starts a session with no system prompt.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	}

	session := h.App.NewChatSession()
	session.InitializeSystem(req.SystemPrompt)

	id := uuid.NewString()
	h.mu.Lock()
	h.sessions[id] = &sessionEntry{session: session}
	h.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

func (h *APIHandler) lookupSession(c *gin.Context) (*sessionEntry, bool) {
	id := c.Param("id")
	h.mu.Lock()
	entry, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		NotFound(c, fmt.Sprintf("Chat session not found: %s", id))
		return nil, false
	}
	return entry, true
}

// SessionMessageHandler runs one conversational turn.
func (h *APIHandler) SessionMessageHandler(c *gin.Context) {
	entry, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	entry.mu.Lock()
	env, err := entry.session.Chat(c.Request.Context(), req.Message)
	entry.mu.Unlock()
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	status := http.StatusOK
	if !env.OK {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, env)
}

func (h *APIHandler) SessionHistoryHandler(c *gin.Context) {
	entry, ok := h.lookupSession(c)
	if !ok {
		return
	}
	entry.mu.Lock()
	history := entry.session.History()
	tokens := entry.session.EstimatedTokens()
	entry.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"messages":         history,
		"estimated_tokens": tokens,
	})
}

func (h *APIHandler) SessionClearHandler(c *gin.Context) {
	entry, ok := h.lookupSession(c)
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.session.ClearHistory()
	entry.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (h *APIHandler) DeleteSessionHandler(c *gin.Context) {
	id := c.Param("id")
	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		NotFound(c, fmt.Sprintf("Chat session not found: %s", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CreateEndpointHandler spins up (or reuses) a standalone endpoint for one
// operation and returns its address.
func (h *APIHandler) CreateEndpointHandler(c *gin.Context) {
	name := c.Param("operation")
	w, ok := h.App.Wrapper(name)
	if !ok {
		NotFound(c, fmt.Sprintf("Unknown operation: %s", name))
		return
	}
	addr, err := h.App.Registry.Create(w)
	if err != nil {
		Internal(c, fmt.Sprintf("Failed to create endpoint for %s: %v", name, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"operation": name, "address": addr})
}

func (h *APIHandler) DeleteEndpointHandler(c *gin.Context) {
	name := c.Param("operation")
	if _, ok := h.App.Registry.Address(name); !ok {
		NotFound(c, fmt.Sprintf("No endpoint exposed for operation: %s", name))
		return
	}
	if err := h.App.Registry.Close(name); err != nil {
		Internal(c, fmt.Sprintf("Failed to close endpoint for %s: %v", name, err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"operation": name, "closed": true})
}
