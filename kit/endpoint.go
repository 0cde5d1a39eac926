// Package kit holds the transport-agnostic plumbing shared by the
// command and MCP surfaces: the Endpoint abstraction, middleware
// chaining, and request-scoped context accessors.
package kit

import "context"

// Endpoint is a transport-agnostic handler: typed request in, typed
// response out. HTTP handlers, MCP tools, and in-process callers all
// reduce to this signature.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behaviour.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first argument runs outermost.
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}
