package pagewatch

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cashpeek/cashpeek/kit"
)

// RegisterMCP registers cashpeek tools on an MCP server, so agent
// clients can query the current verdict or force a pass.
func (c *Coordinator) RegisterMCP(srv *mcp.Server) {
	c.registerVerdictTool(srv)
	c.registerDetectTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// logCalls logs every tool invocation with its transport and request ID.
func (c *Coordinator) logCalls(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			c.logger.Debug("pagewatch: tool call",
				"tool", name,
				"transport", kit.GetTransport(ctx),
				"request_id", kit.GetRequestID(ctx))
			return next(ctx, req)
		}
	}
}

func (c *Coordinator) registerVerdictTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cashpeek_verdict",
		Description: "Return the current page's detection verdict: qualifying flag, confidence score, winning brand.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := kit.Chain(c.logCalls(tool.Name))(func(ctx context.Context, _ any) (any, error) {
		return c.handleDetectionResult(ctx, nil)
	})

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSONArgs[struct{}]())
}

type detectToolRequest struct {
	Fresh bool `json:"fresh,omitempty"`
}

func (c *Coordinator) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "cashpeek_detect",
		Description: "Run detection on the current page. With fresh=true a new snapshot pass runs; otherwise the cached verdict is returned.",
		InputSchema: inputSchema(map[string]any{
			"fresh": map[string]any{"type": "boolean", "description": "Force a fresh detection pass"},
		}, nil),
	}

	endpoint := kit.Chain(c.logCalls(tool.Name))(func(ctx context.Context, req any) (any, error) {
		r := req.(*detectToolRequest)
		if r.Fresh {
			if _, err := c.handleReDetect(ctx, nil); err != nil {
				return nil, err
			}
		}
		return c.handleDetectionResult(ctx, nil)
	})

	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeJSONArgs[detectToolRequest]())
}
