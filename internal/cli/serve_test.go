package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mark3labs/openapi2mcp/internal/mcpserver"
)

func TestServeConfigFromFlags(t *testing.T) {
	var captured *ServeConfig
	serveRunner = func(ctx context.Context, cfg *ServeConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { serveRunner = runServe })

	if _, _, err := execute(t, "-v", "serve", "-s", " spec.yaml ", "--base-url", "http://localhost:9000", "--exclude-tags", "admin"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}
	if captured.Spec != "spec.yaml" || captured.BaseURL != "http://localhost:9000" || !captured.Verbose {
		t.Fatalf("unexpected config: %+v", captured)
	}
	if !equalStringSlices(captured.ExcludeTags, []string{"admin"}) {
		t.Fatalf("exclude tags mismatch: %v", captured.ExcludeTags)
	}
}

func TestPreviewServer(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	e, err := loadEnvironment()
	if err != nil {
		t.Fatalf("environment: %v", err)
	}
	ctx := context.Background()
	s, err := previewServer(ctx, &ServeConfig{
		Spec:        writeSpec(t),
		ExcludeTags: []string{"admin"},
		Verbose:     true,
		Env:         e,
		Stderr:      &logs,
	})
	if err != nil {
		t.Fatalf("previewServer: %v", err)
	}

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverTransport)
	if err != nil {
		t.Fatalf("connect server: %v", err)
	}
	defer ss.Close()
	cs, err := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil).Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer cs.Close()

	listed, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(listed.Tools) != 1 || listed.Tools[0].Name != "say_hello" {
		t.Fatalf("unexpected tools: %+v", listed.Tools)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "say_hello", Arguments: map[string]any{"who": "gopher"}})
	if err != nil || res.IsError {
		t.Fatalf("call tool: %v %+v", err, res)
	}
	var req mcpserver.Request
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &req); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if req.URL != "https://api.example.com/v1/hello?who=gopher" {
		t.Fatalf("unexpected URL: %s", req.URL)
	}
	if !bytes.Contains(logs.Bytes(), []byte("[INFO] serving 1 tools for https://api.example.com/v1")) {
		t.Fatalf("unexpected logs: %s", logs.String())
	}
}
