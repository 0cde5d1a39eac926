package kit

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestChainRunsFirstMiddlewareOutermost(t *testing.T) {
	var trace strings.Builder

	tag := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				trace.WriteString(name)
				return next(ctx, req)
			}
		}
	}

	endpoint := Chain(tag("a"), tag("b"), tag("c"))(func(context.Context, any) (any, error) {
		trace.WriteString("!")
		return 42, nil
	})

	resp, err := endpoint(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != 42 {
		t.Fatalf("resp = %v", resp)
	}
	if got := trace.String(); got != "abc!" {
		t.Fatalf("execution order %q, want %q", got, "abc!")
	}
}

func TestChainPropagatesEndpointError(t *testing.T) {
	sentinel := errors.New("boom")
	endpoint := Chain(func(next Endpoint) Endpoint { return next })(
		func(context.Context, any) (any, error) { return nil, sentinel })

	if _, err := endpoint(context.Background(), nil); !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want %v", err, sentinel)
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()

	if got := GetTransport(ctx); got != "http" {
		t.Errorf("default transport = %q, want http", got)
	}
	if got := GetRequestID(ctx); got != "" {
		t.Errorf("default request id = %q, want empty", got)
	}

	ctx = WithTransport(ctx, "mcp")
	ctx = WithRequestID(ctx, "evt_req")

	if got := GetTransport(ctx); got != "mcp" {
		t.Errorf("transport = %q", got)
	}
	if got := GetRequestID(ctx); got != "evt_req" {
		t.Errorf("request id = %q", got)
	}
}
