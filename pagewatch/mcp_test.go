package pagewatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var testImpl = &mcp.Implementation{Name: "cashpeek-test", Version: "0.1.0"}

// mcpSession starts a coordinator watching a product page, registers
// the MCP tools, and returns a connected client session.
func mcpSession(t *testing.T) (*harness, *mcp.ClientSession) {
	t.Helper()
	h := newHarness(t, productHTML, "https://shop.example/p/1", enabledPrefs())
	h.start(t)
	waitFor(t, func() bool { return h.coord.Verdict() != nil }, "no verdict")

	srv := mcp.NewServer(testImpl, nil)
	h.coord.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return h, session
}

// callTool invokes a tool and returns the JSON text from the first
// TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func TestMCP_Verdict(t *testing.T) {
	_, session := mcpSession(t)

	text := callTool(t, session, "cashpeek_verdict", map[string]any{})

	var res DetectionResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !res.Ready || !res.IsQualifying {
		t.Errorf("result = %+v", res)
	}
	if res.Brand != "nike" || res.CashbackPercent != 5 {
		t.Errorf("brand = %q/%d", res.Brand, res.CashbackPercent)
	}
}

func TestMCP_DetectFresh(t *testing.T) {
	h, session := mcpSession(t)
	before := h.page.snapshots.Load()

	text := callTool(t, session, "cashpeek_detect", map[string]any{"fresh": true})

	var res DetectionResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !res.IsQualifying {
		t.Errorf("result = %+v", res)
	}
	if got := h.page.snapshots.Load(); got != before+1 {
		t.Errorf("snapshots = %d, want %d (one fresh pass)", got, before+1)
	}
}

func TestMCP_DetectCached(t *testing.T) {
	h, session := mcpSession(t)
	before := h.page.snapshots.Load()

	callTool(t, session, "cashpeek_detect", map[string]any{})

	if got := h.page.snapshots.Load(); got != before {
		t.Errorf("snapshots = %d, want unchanged %d", got, before)
	}
}
