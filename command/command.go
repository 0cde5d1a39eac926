// Package command is the typed message surface of cashpeek. External
// callers (popup UI, other processes) address the page coordinator
// through command envelopes; handlers are registered per command type
// and dispatched in-process.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Command types the coordinator serves.
const (
	TypeDetectionResult  = "GET_DETECTION_RESULT"
	TypeTriggerSearch    = "TRIGGER_SEARCH"
	TypeShowNotification = "SHOW_NOTIFICATION"
	TypeReDetect         = "RE_DETECT"
)

// Request is one inbound command envelope.
type Request struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the reply envelope. An unknown command type or a handler
// error produces OK=false with Error set; the transport itself still
// succeeds.
type Response struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler serves one command type: payload in, result out. The result
// is JSON-encoded into Response.Data.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Router dispatches requests to registered handlers.
// Thread-safe: reads use RLock, registration uses full Lock.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets a custom logger for the router.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router with no handlers.
func New(opts ...Option) *Router {
	r := &Router{
		handlers: make(map[string]Handler),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register installs a handler for a command type, replacing any
// previous one.
func (r *Router) Register(typ string, h Handler) {
	r.mu.Lock()
	r.handlers[typ] = h
	r.mu.Unlock()
}

// Dispatch resolves and runs the handler for req.Type. Failures are
// reported inside the Response so the caller can always decode a reply.
func (r *Router) Dispatch(ctx context.Context, req Request) Response {
	r.mu.RLock()
	h, ok := r.handlers[req.Type]
	r.mu.RUnlock()

	if !ok {
		r.logger.DebugContext(ctx, "command: unknown type", "type", req.Type)
		return Response{OK: false, Error: fmt.Sprintf("unknown command type: %s", req.Type)}
	}

	result, err := h(ctx, req.Payload)
	if err != nil {
		r.logger.WarnContext(ctx, "command: handler failed", "type", req.Type, "error", err)
		return Response{OK: false, Error: err.Error()}
	}

	data, err := json.Marshal(result)
	if err != nil {
		r.logger.ErrorContext(ctx, "command: encode result", "type", req.Type, "error", err)
		return Response{OK: false, Error: fmt.Sprintf("encode result: %v", err)}
	}
	return Response{OK: true, Data: data}
}
