// Package mcpserver serves mapped tool definitions over MCP in preview mode:
// calling a tool returns the HTTP request it would issue instead of sending
// it.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mark3labs/openapi2mcp/internal/mapper"
)

// Server wraps the MCP server with the registered preview tools.
type Server struct {
	server  *mcp.Server
	baseURL string
	log     io.Writer
}

// Option configures a Server.
type Option func(*Server)

// WithLog sends call diagnostics to w. Never pass stdout when serving over
// stdio.
func WithLog(w io.Writer) Option { return func(s *Server) { s.log = w } }

// New creates a server named name/version and registers one tool per
// definition. Every input schema must be an object schema.
func New(name, version, baseURL string, tools []mapper.ToolDefinition, opts ...Option) (*Server, error) {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    name,
			Version: version,
		}, nil),
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, t := range tools {
		if t.InputSchema["type"] != "object" {
			return nil, fmt.Errorf("mcpserver: tool %s: input schema type must be object", t.Name)
		}
		s.server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, s.handler(t))
	}
	return s, nil
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		fmt.Fprintf(s.log, "[INFO] "+format+"\n", args...)
	}
}

func (s *Server) handler(tool mapper.ToolDefinition) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if req.Params != nil && len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
		}
		preview, err := BuildRequest(s.baseURL, tool, args)
		if err != nil {
			return errorResult(err.Error()), nil
		}
		s.logf("%s -> %s %s", tool.Name, preview.Method, preview.URL)
		data, err := json.MarshalIndent(preview, "", "  ")
		if err != nil {
			return errorResult(err.Error()), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: message}},
		IsError: true,
	}
}

// Connect serves one session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// Run serves over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
