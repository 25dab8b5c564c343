// Package mcp implements the MCP dispatcher and the fixed tool catalog that
// drive the singleton browser session.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"pagelens-mcp-server/internal/config"
	"pagelens-mcp-server/internal/jsonrpc"

	"github.com/charmbracelet/log"
)

const protocolVersion = "2024-11-05"

// Session is the long-lived browsing context the tools drive. It is an
// interface so the dispatcher and tools are testable with a substitute.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitSettled(ctx context.Context, timeout time.Duration)
	Evaluate(ctx context.Context, script string) (string, error)
	Links(ctx context.Context) ([]string, error)
	Outline(ctx context.Context, w io.Writer) error
	HTML(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
}

// Tool describes the contract for tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]any
	Call(ctx context.Context, args json.RawMessage) (*Result, error)
}

// Result is a tool outcome at the application level. Exactly one of Text and
// Stream is set. IsError marks an application-level failure that is still a
// protocol-level success; callers must check the flag.
type Result struct {
	Text    string
	Stream  jsonrpc.TextStream
	IsError bool
}

// CallError carries a JSON-RPC error code out of a tool.
type CallError struct {
	Code    int
	Message string
}

func (e *CallError) Error() string { return e.Message }

// invalidParams is the fixed per-tool argument failure, naming the tool.
func invalidParams(tool string) *CallError {
	return &CallError{
		Code:    jsonrpc.CodeInvalidParams,
		Message: fmt.Sprintf("invalid params for tool %q", tool),
	}
}

// Server routes parsed requests to methods and tools, and writes exactly one
// response per addressable request.
type Server struct {
	cfg       config.Config
	session   Session
	writer    *jsonrpc.Writer
	logger    *log.Logger
	tools     map[string]Tool
	toolOrder []string
	resources *resourceSet
}

// NewServer wires the dispatcher and registers the fixed catalog.
func NewServer(cfg config.Config, session Session, writer *jsonrpc.Writer, logger *log.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		session:   session,
		writer:    writer,
		logger:    logger,
		tools:     make(map[string]Tool),
		resources: newResourceSet(cfg),
	}
	for _, tool := range newToolset(cfg.Browser, session, logger) {
		s.registerTool(tool)
	}
	return s
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool
	s.toolOrder = append(s.toolOrder, tool.Name())
}

// HandleRecord processes one framed record. Unparseable records are dropped:
// without a reliable id there is nothing to address a response to.
func (s *Server) HandleRecord(ctx context.Context, record []byte) {
	var req jsonrpc.Request
	if err := json.Unmarshal(record, &req); err != nil {
		s.logger.Warn("dropping unparseable record", "err", err)
		return
	}

	if req.IsNotification() {
		s.handleNotification(&req)
		return
	}

	switch req.Method {
	case "initialize":
		s.respond(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools":     map[string]any{},
				"resources": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    s.cfg.Server.Name,
				"version": s.cfg.Server.Version,
			},
		})
	case "resources/list":
		s.respond(req.ID, s.resources.list())
	case "resources/read":
		s.handleResourceRead(&req)
	case "tools/list":
		s.respond(req.ID, s.listTools())
	case "tools/call":
		s.handleToolCall(ctx, &req)
	default:
		s.respondError(req.ID, jsonrpc.CodeMethodNotFound, "method not found: "+req.Method)
	}
}

// handleNotification inspects id-less requests for the small set of known
// notification methods and ignores everything else. Notifications never
// produce a response, whatever happens.
func (s *Server) handleNotification(req *jsonrpc.Request) {
	switch req.Method {
	case "notifications/initialized":
		s.logger.Debug("client completed initialization")
	default:
		s.logger.Debug("ignoring notification", "method", req.Method)
	}
}

func (s *Server) listTools() map[string]any {
	tools := make([]map[string]any, 0, len(s.toolOrder))
	for _, name := range s.toolOrder {
		tool := s.tools[name]
		tools = append(tools, map[string]any{
			"name":        tool.Name(),
			"description": tool.Description(),
			"inputSchema": tool.InputSchema(),
		})
	}
	return map[string]any{"tools": tools}
}

func (s *Server) handleToolCall(ctx context.Context, req *jsonrpc.Request) {
	if len(req.Params) == 0 || string(req.Params) == "null" {
		s.respondError(req.ID, jsonrpc.CodeInvalidParams, "tools/call requires params")
		return
	}

	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		// The raw offending value is echoed back so callers can see what
		// the server actually received.
		s.respondError(req.ID, jsonrpc.CodeInvalidParams, fmt.Sprintf("invalid params: %s", req.Params))
		return
	}

	tool, ok := s.tools[params.Name]
	if !ok {
		s.respondError(req.ID, jsonrpc.CodeMethodNotFound, "tool not found: "+params.Name)
		return
	}

	result, err := tool.Call(ctx, params.Arguments)
	if err != nil {
		var callErr *CallError
		if errors.As(err, &callErr) {
			s.respondError(req.ID, callErr.Code, callErr.Message)
		} else {
			s.respondError(req.ID, jsonrpc.CodeInternalError, err.Error())
		}
		return
	}

	s.writeToolResult(req.ID, result)
}

func (s *Server) writeToolResult(id json.RawMessage, result *Result) {
	if result.Stream != nil {
		prefix := `{"content":[{"type":"text","text":`
		suffix := fmt.Sprintf(`}],"isError":%t}`, result.IsError)
		if err := s.writer.WriteStreamedResult(id, prefix, suffix, result.Stream); err != nil {
			s.logger.Error("failed to write streamed response", "err", err)
		}
		return
	}

	payload := map[string]any{
		"content": []map[string]any{{"type": "text", "text": result.Text}},
		"isError": result.IsError,
	}
	s.respond(id, payload)
}

func (s *Server) respond(id json.RawMessage, result any) {
	if err := s.writer.WriteResult(id, result); err != nil {
		s.logger.Error("failed to write response", "err", err)
	}
}

func (s *Server) respondError(id json.RawMessage, code int, message string) {
	if err := s.writer.WriteError(id, code, message); err != nil {
		s.logger.Error("failed to write error response", "err", err)
	}
}
