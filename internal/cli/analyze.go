package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
	"github.com/mark3labs/openapi2mcp/internal/spec"
)

// AnalyzeConfig captures the options for the analyze command.
type AnalyzeConfig struct {
	Spec   string
	Format string
	Output string
	Env    Environment

	Stdout io.Writer
}

var analyzeRunner = runAnalyze

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze an OpenAPI document and show the MCP generation plan",
		Long: "Analyze an OpenAPI document without generating anything: endpoints, " +
			"models, tool count, complexity, authentication schemes and potential issues.",
		Example: "  openapi2mcp analyze --spec ./api-spec.yaml --format yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &AnalyzeConfig{Stdout: cmd.OutOrStdout()}
			var err error
			if cfg.Spec, err = cmd.Flags().GetString("spec"); err != nil {
				return err
			}
			if cfg.Format, err = cmd.Flags().GetString("format"); err != nil {
				return err
			}
			if cfg.Output, err = cmd.Flags().GetString("output"); err != nil {
				return err
			}
			cfg.Spec = strings.TrimSpace(cfg.Spec)
			cfg.Format = strings.ToLower(strings.TrimSpace(cfg.Format))
			if cfg.Spec == "" {
				return newUsageError("analyze: --spec is required")
			}
			if cfg.Format != "json" && cfg.Format != "yaml" {
				return newUsageError(fmt.Sprintf("analyze: unsupported --format %q (allowed: json, yaml)", cfg.Format))
			}
			if cfg.Env, err = loadEnvironment(); err != nil {
				return err
			}
			return analyzeRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("spec", "s", "", "OpenAPI spec file path or URL")
	flags.StringP("output", "o", "", "Output file (default: stdout)")
	flags.String("format", "json", "Output format (json|yaml)")

	return cmd
}

func runAnalyze(ctx context.Context, cfg *AnalyzeConfig) error {
	doc, err := spec.Load(ctx, cfg.Spec, spec.WithHTTPTimeout(cfg.Env.HTTPTimeout))
	if err != nil {
		return specUsageError(err)
	}
	idx, err := spec.BuildOperationIndex(ctx, doc)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	data, err := encodeAnalysis(mcpconfig.AnalyzeSpec(idx), cfg.Format)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if cfg.Output == "" {
		_, err = cfg.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0o755); err != nil {
		return newUsageError(fmt.Sprintf("analyze: cannot create parent directory: %v", err))
	}
	if err := os.WriteFile(cfg.Output, data, 0o644); err != nil {
		return newUsageError(fmt.Sprintf("analyze: write %s: %v", cfg.Output, err))
	}
	fmt.Fprintf(cfg.Stdout, "Analysis saved to: %s\n", cfg.Output)
	return nil
}

// encodeAnalysis renders the analysis with its JSON field names in either
// format.
func encodeAnalysis(a mcpconfig.SpecAnalysis, format string) ([]byte, error) {
	if format == "yaml" {
		return yaml.Marshal(a)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// specUsageError turns a load failure into a message naming where it
// happened.
func specUsageError(err error) error {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("spec: %s", se.Message)
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return newUsageError(msg)
}
