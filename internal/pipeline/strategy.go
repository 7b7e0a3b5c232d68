package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/clientgen"
	"github.com/mark3labs/openapi2mcp/internal/mapper"
	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
	"github.com/mark3labs/openapi2mcp/internal/spec"
)

// Engine names accepted by --generator-engine.
const (
	EngineBasic    = "basic"
	EngineEnhanced = "enhanced"
)

const clientFailed = "API client generation failed - cannot proceed"

// ClientInput is what a client strategy works from.
type ClientInput struct {
	Document *spec.Document
	Index    *spec.OperationIndex
	Config   clientgen.Config
	// WorkDir is a scratch directory owned by the run.
	WorkDir string
}

// ClientOutput is the analyzed client. Dir is the generated package root,
// empty when no client was generated.
type ClientOutput struct {
	Analysis    *analyzer.ClientAnalysis
	Dir         string
	ToolVersion string
}

// ClientStrategy produces the client analysis the tools are mapped from.
type ClientStrategy interface {
	Name() string
	Client(ctx context.Context, in ClientInput) (*ClientOutput, Result)
}

// EnhancedClient runs the external client generator, validates the
// generated package and analyzes it against the document.
type EnhancedClient struct {
	Invoker  *clientgen.Invoker
	Importer analyzer.Importer
}

func (EnhancedClient) Name() string { return EngineEnhanced }

func (e EnhancedClient) Client(ctx context.Context, in ClientInput) (*ClientOutput, Result) {
	const phase = "client"
	specPath, err := in.Document.LocalPath(in.WorkDir)
	if err != nil {
		return nil, Failed(phase, fmt.Sprintf("prepare specification: %v", err), clientFailed)
	}
	outDir := filepath.Join(in.WorkDir, "client")
	out, err := e.Invoker.Generate(ctx, specPath, outDir, in.Config)
	if err != nil {
		return nil, Failed(phase, describeGeneratorError(err), clientFailed)
	}

	opts := []analyzer.Option{
		analyzer.WithPackageName(in.Config.Package()),
		analyzer.WithSpecIndex(in.Index),
	}
	if e.Importer != nil {
		opts = append(opts, analyzer.WithImporter(e.Importer))
	}
	check := analyzer.Validate(ctx, outDir, opts...)
	if !check.IsValid {
		errs := append(append([]string{}, check.Errors...), clientFailed)
		r := Failed(phase, errs...)
		r.Warnings = append(r.Warnings, check.Warnings...)
		return nil, r
	}
	a, err := analyzer.Parse(outDir, opts...)
	if err != nil {
		return nil, Failed(phase, fmt.Sprintf("analyze generated client: %v", err), clientFailed)
	}

	warnings := append(append([]string{}, check.Warnings...), a.Warnings...)
	return &ClientOutput{
		Analysis:    a,
		Dir:         filepath.Join(outDir, a.ClientPackageName),
		ToolVersion: out.ToolVersion,
	}, OK(phase, nil, warnings...)
}

func describeGeneratorError(err error) string {
	var ce *clientgen.Error
	if !errors.As(err, &ce) {
		return err.Error()
	}
	switch ce.Kind {
	case clientgen.ToolNotFound:
		return "openapi-generator not available: " + ce.Error()
	case clientgen.Timeout:
		return "client generation timed out: " + ce.Error()
	}
	return ce.Error()
}

// BasicClient builds the analysis straight from the document.
type BasicClient struct{}

func (BasicClient) Name() string { return EngineBasic }

func (BasicClient) Client(_ context.Context, in ClientInput) (*ClientOutput, Result) {
	if in.Index == nil {
		return nil, Failed("client", "no operations loaded", clientFailed)
	}
	return &ClientOutput{Analysis: analyzer.FromSpec(in.Index, in.Config.Package())}, OK("client", nil)
}

// ToolStrategy turns the analysis into the final tool list.
type ToolStrategy interface {
	Tools(cfg mcpconfig.IntegrationConfig, a *analyzer.ClientAnalysis) ([]mapper.ToolDefinition, Result)
}

// DefaultTools filters operations, maps them, makes names unique and checks
// every schema.
type DefaultTools struct{}

func (DefaultTools) Tools(cfg mcpconfig.IntegrationConfig, a *analyzer.ClientAnalysis) ([]mapper.ToolDefinition, Result) {
	const phase = "tools"
	var warnings []string

	included := 0
	for _, op := range a.Operations {
		if cfg.ShouldInclude(op) {
			included++
		}
	}
	if included > cfg.MaxTools {
		warnings = append(warnings, fmt.Sprintf("API has %d operations, limiting to %d", included, cfg.MaxTools))
	}
	if skipped := len(a.Operations) - included; skipped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d operations excluded from tools", skipped))
	}

	ops := cfg.Filter(a.Operations)
	tools := mapper.MapOperations(ops, mapper.WithNamingConvention(cfg.ToolNamingConvention))
	unique := mapper.Disambiguate(tools)
	for i := range tools {
		if tools[i].Name != unique[i].Name {
			warnings = append(warnings, fmt.Sprintf("Tool name %q already used, renamed to %q", tools[i].Name, unique[i].Name))
		}
	}
	if err := mapper.CheckSchemas(unique); err != nil {
		return nil, Failed(phase, splitErrors(err)...)
	}
	if len(unique) == 0 {
		warnings = append(warnings, "No operations became tools")
	}
	return unique, OK(phase, nil, warnings...)
}

func splitErrors(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
