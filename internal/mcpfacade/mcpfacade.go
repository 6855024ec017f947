// Package mcpfacade adapts the decision engine to a Model Context
// Protocol tool, so an MCP-speaking agent runtime can ask "would this
// command be allowed?" without shelling out to the hook binary and
// parsing its exit code. spec.md §1 lists the MCP server facade among
// the out-of-scope "thin caller" collaborators — only the interface the
// engine exposes to it is specified there — but the facade itself is a
// legitimate small adapter package, grounded on mark3labs/mcp-go's
// stdio server idiom (the same library the teacher's MCP *client* code
// in the rest of the example pack uses from the other side).
package mcpfacade

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dicklesworthstone/dcg/internal/engine"
)

// Name and Version identify this facade to MCP clients during the
// initialize handshake.
const (
	Name    = "dcg"
	Version = "0.1.0"
)

// Server wraps the decision engine's dependencies behind an MCP tool
// surface. It holds no session/allowlist state of its own — every call
// re-evaluates from the Dependencies/Options it was built with, same as
// internal/gitscan's Scanner.
type Server struct {
	deps engine.Dependencies
	opts engine.Options
	mcp  *server.MCPServer
}

// New builds a Server ready to Serve, registering the evaluate_command
// tool against deps/opts.
func New(deps engine.Dependencies, opts engine.Options) *Server {
	s := &Server{deps: deps, opts: opts}
	s.mcp = server.NewMCPServer(Name, Version)
	s.mcp.AddTool(evaluateTool(), s.handleEvaluate)
	return s
}

func evaluateTool() mcp.Tool {
	return mcp.NewTool("evaluate_command",
		mcp.WithDescription("Classify a shell command as allow, warn, or deny before it runs, per the destructive command guard's pattern catalog and graduated response policy."),
		mcp.WithString("command", mcp.Required(), mcp.Description("The raw shell command to evaluate.")),
		mcp.WithString("cwd", mcp.Description("Working directory the command would run in, for allowlist/pending-exception scoping.")),
		mcp.WithString("session_id", mcp.Description("Caller-supplied session identity for occurrence tracking; a random one is used if omitted.")),
	)
}

// evaluateResult is the JSON payload returned from the evaluate_command
// tool call — a flattened view of engine.Decision's sealed variants,
// since MCP tool results are plain JSON with no sum-type support.
type evaluateResult struct {
	CorrelationID string `json:"correlation_id"`
	Decision      string `json:"decision"` // allow | warn | deny
	RuleID        string `json:"rule_id,omitempty"`
	PackID        string `json:"pack_id,omitempty"`
	Severity      string `json:"severity,omitempty"`
	ResponseLevel string `json:"response_level,omitempty"`
	Reason        string `json:"reason,omitempty"`
	AllowOnceCode string `json:"allow_once_code,omitempty"`
}

func (s *Server) handleEvaluate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cwd := req.GetString("cwd", "")
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	creq := engine.CommandRequest{
		RawCommand: command,
		Cwd:        cwd,
		SessionID:  sessionID,
		Now:        time.Now(),
	}
	decision := engine.Evaluate(creq, s.deps, s.opts, nil)

	result := evaluateResult{CorrelationID: uuid.NewString()}
	switch d := decision.(type) {
	case engine.Allow:
		result.Decision = "allow"
		result.Reason = d.Reason
	case engine.Warn:
		result.Decision = "warn"
		result.RuleID = d.RuleID
		result.Reason = d.Reason
		result.ResponseLevel = string(d.ResponseLevel)
	case engine.Deny:
		result.Decision = "deny"
		result.RuleID = d.RuleID
		result.PackID = d.PackID
		result.Severity = string(d.Severity)
		result.ResponseLevel = string(d.ResponseLevel)
		result.Reason = d.Reason
		result.AllowOnceCode = d.AllowOnceCode
	default:
		return mcp.NewToolResultError(fmt.Sprintf("mcpfacade: unrecognized decision type %T", decision)), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// Serve blocks, serving the MCP protocol over stdio until the transport
// closes; ctx is not consulted. This is the only transport wired up: agent
// runtimes that speak MCP to local tools overwhelmingly launch them as a
// stdio subprocess rather than dialing a network port.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}
