package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
	"github.com/mark3labs/openapi2mcp/internal/mcpserver"
	"github.com/mark3labs/openapi2mcp/internal/naming"
	"github.com/mark3labs/openapi2mcp/internal/pipeline"
	"github.com/mark3labs/openapi2mcp/internal/spec"
	"github.com/mark3labs/openapi2mcp/internal/version"
)

// ServeConfig captures the options for the serve command.
type ServeConfig struct {
	Spec        string
	BaseURL     string
	IncludeTags []string
	ExcludeTags []string
	Verbose     bool
	Env         Environment

	// Stderr receives all diagnostics; stdout belongs to the protocol.
	Stderr io.Writer
}

var serveRunner = runServe

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools of an OpenAPI document over MCP stdio in preview mode",
		Long: "Map an OpenAPI document to MCP tools and serve them over stdio. " +
			"Calling a tool returns the HTTP request it would issue instead of sending it.",
		Example: "  openapi2mcp serve --spec petstore.yaml --base-url http://localhost:8080",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &ServeConfig{Stderr: cmd.ErrOrStderr()}
			flags := cmd.Flags()
			var err error
			if cfg.Spec, err = flags.GetString("spec"); err != nil {
				return err
			}
			if cfg.BaseURL, err = flags.GetString("base-url"); err != nil {
				return err
			}
			include, err := flags.GetStringSlice("include-tags")
			if err != nil {
				return err
			}
			exclude, err := flags.GetStringSlice("exclude-tags")
			if err != nil {
				return err
			}
			if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
				return err
			}
			cfg.Spec = strings.TrimSpace(cfg.Spec)
			cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
			cfg.IncludeTags = sanitizeTags(include)
			cfg.ExcludeTags = sanitizeTags(exclude)
			if cfg.Spec == "" {
				return newUsageError("serve: --spec is required")
			}
			if cfg.Env, err = loadEnvironment(); err != nil {
				return err
			}
			return serveRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("spec", "s", "", "OpenAPI spec file path or URL")
	flags.String("base-url", "", "Base URL of the API (defaults to the first server in the spec)")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")

	return cmd
}

// previewServer loads the document and builds the server without starting
// it.
func previewServer(ctx context.Context, cfg *ServeConfig) (*mcpserver.Server, error) {
	doc, err := spec.Load(ctx, cfg.Spec, spec.WithHTTPTimeout(cfg.Env.HTTPTimeout))
	if err != nil {
		return nil, specUsageError(err)
	}
	idx, err := spec.BuildOperationIndex(ctx, doc,
		spec.WithIncludeTags(cfg.IncludeTags),
		spec.WithExcludeTags(cfg.ExcludeTags),
	)
	if err != nil {
		return nil, fmt.Errorf("serve: %w", err)
	}

	a := analyzer.FromSpec(idx, "")
	tools, res := pipeline.DefaultTools{}.Tools(mcpconfig.Synthesize(a), a)
	for _, w := range res.Warnings {
		fmt.Fprintf(cfg.Stderr, "[WARN] %s\n", w)
	}
	if !res.Success {
		return nil, fmt.Errorf("serve: %s", strings.Join(res.Errors, "; "))
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = a.BaseURL
	}
	if baseURL == "" {
		baseURL = "http://localhost"
		fmt.Fprintf(cfg.Stderr, "[WARN] no server URL in the spec, using %s\n", baseURL)
	}

	name := naming.Sanitize(doc.Title(), "openapi2mcp", "api_")
	opts := []mcpserver.Option{}
	if cfg.Verbose {
		opts = append(opts, mcpserver.WithLog(cfg.Stderr))
	}
	s, err := mcpserver.New(name, version.Get().Version, baseURL, tools, opts...)
	if err != nil {
		return nil, fmt.Errorf("serve: %w", err)
	}
	if cfg.Verbose {
		fmt.Fprintf(cfg.Stderr, "[INFO] serving %d tools for %s\n", len(tools), baseURL)
	}
	return s, nil
}

func runServe(ctx context.Context, cfg *ServeConfig) error {
	s, err := previewServer(ctx, cfg)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}
