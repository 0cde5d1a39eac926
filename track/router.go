package track

import (
	"context"
	"log/slog"
	"time"

	"github.com/cashpeek/cashpeek/idgen"
)

// Router fans out events to all configured sinks. One sink error does
// not block the others — errors are logged and the first encountered
// is returned.
type Router struct {
	sinks  []Sink
	newID  idgen.Generator
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, newID: idgen.Prefixed("evt_"), logger: logger}
}

// Emit stamps the event with an ID and timestamp when missing, then
// delivers it to every sink.
func (r *Router) Emit(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = r.newID()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, ev); err != nil {
			r.logger.Warn("track: send failed", "kind", ev.Kind, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Send implements Sink, so a Router can itself be nested.
func (r *Router) Send(ctx context.Context, ev Event) error {
	return r.Emit(ctx, ev)
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
