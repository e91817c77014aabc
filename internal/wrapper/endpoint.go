package wrapper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// invokeRequest is the wire shape accepted by an exposed endpoint.
type invokeRequest struct {
	Reference string            `json:"reference" binding:"required"`
	Prompt    string            `json:"prompt"`
	Model     string            `json:"model"`
	Params    map[string]string `json:"params"`
}

type endpoint struct {
	addr     string
	server   *http.Server
	listener net.Listener
}

// Registry manages exposed endpoints: at most one per wrapped operation per
// process. Endpoints perform no authentication; restricting exposure in
// sensitive environments is the caller's responsibility.
type Registry struct {
	mu        sync.Mutex
	endpoints map[string]*endpoint
}

func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]*endpoint)}
}

// Create binds the wrapped operation to a network listener and returns its
// address. Creating an endpoint that already exists is a no-op returning the
// existing address; no second listener is opened.
func (r *Registry) Create(w *Wrapper) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ep, ok := r.endpoints[w.Name()]; ok {
		return ep.addr, nil
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("listen for endpoint %s: %w", w.Name(), err)
	}

	// gin.New without touching gin's process-global mode: an endpoint may be
	// created while the main API server is running under its own mode.
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "operation": w.Name()})
	})
	router.POST("/", func(c *gin.Context) {
		var req invokeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid request body: " + err.Error()})
			return
		}
		env := w.Call(c.Request.Context(), req.Reference, Options{
			Prompt: req.Prompt,
			Model:  req.Model,
			Params: req.Params,
		})
		status := http.StatusOK
		if !env.OK {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, env)
	})

	srv := &http.Server{Handler: router}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Endpoint %s stopped unexpectedly: %v", w.Name(), err)
		}
	}()

	addr := "http://" + ln.Addr().String()
	r.endpoints[w.Name()] = &endpoint{addr: addr, server: srv, listener: ln}
	log.Infof("Exposed operation %s at %s", w.Name(), addr)
	return addr, nil
}

// Address returns the endpoint address for an operation, if one exists.
func (r *Registry) Address(operation string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ep, ok := r.endpoints[operation]
	if !ok {
		return "", false
	}
	return ep.addr, true
}

// Close tears down the endpoint for the named operation, releasing its port.
// Closing an operation with no endpoint is a no-op.
func (r *Registry) Close(operation string) error {
	r.mu.Lock()
	ep, ok := r.endpoints[operation]
	delete(r.endpoints, operation)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return shutdown(ep)
}

// CloseAll tears down every endpoint. Used at process exit so no listener
// leaks across create/close cycles.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	eps := make([]*endpoint, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		eps = append(eps, ep)
	}
	r.endpoints = make(map[string]*endpoint)
	r.mu.Unlock()

	var g errgroup.Group
	for _, ep := range eps {
		ep := ep
		g.Go(func() error { return shutdown(ep) })
	}
	return g.Wait()
}

func shutdown(ep *endpoint) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ep.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown endpoint %s: %w", ep.addr, err)
	}
	return nil
}
