package mcpfacade

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dicklesworthstone/dcg/internal/catalog"
	"github.com/dicklesworthstone/dcg/internal/engine"
)

func testServer() *Server {
	return New(engine.Dependencies{Catalog: catalog.DefaultCatalog()}, engine.DefaultOptions())
}

func callToolRequest(t *testing.T, args map[string]any) mcp.CallToolRequest {
	t.Helper()
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      "evaluate_command",
			Arguments: args,
		},
	}
}

func decodeResult(t *testing.T, res *mcp.CallToolResult) evaluateResult {
	t.Helper()
	if res.IsError {
		t.Fatalf("unexpected tool error result")
	}
	if len(res.Content) != 1 {
		t.Fatalf("expected 1 content block, got %d", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	var out evaluateResult
	if err := json.Unmarshal([]byte(tc.Text), &out); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return out
}

func TestHandleEvaluate_Deny(t *testing.T) {
	s := testServer()
	req := callToolRequest(t, map[string]any{"command": "rm -rf /"})
	res, err := s.handleEvaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("handleEvaluate: %v", err)
	}
	out := decodeResult(t, res)
	if out.Decision != "deny" {
		t.Fatalf("expected deny, got %q", out.Decision)
	}
	if out.RuleID == "" {
		t.Fatalf("expected a populated rule_id")
	}
	if out.CorrelationID == "" {
		t.Fatalf("expected a populated correlation_id")
	}
}

func TestHandleEvaluate_Allow(t *testing.T) {
	s := testServer()
	req := callToolRequest(t, map[string]any{"command": "git status"})
	res, err := s.handleEvaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("handleEvaluate: %v", err)
	}
	out := decodeResult(t, res)
	if out.Decision != "allow" {
		t.Fatalf("expected allow, got %q", out.Decision)
	}
}

func TestHandleEvaluate_MissingCommand(t *testing.T) {
	s := testServer()
	req := callToolRequest(t, map[string]any{})
	res, err := s.handleEvaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("handleEvaluate: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected an error result for missing command")
	}
}
