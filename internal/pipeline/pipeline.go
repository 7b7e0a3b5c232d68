package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/mapper"
	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
	"github.com/mark3labs/openapi2mcp/internal/naming"
	"github.com/mark3labs/openapi2mcp/internal/spec"
	"github.com/mark3labs/openapi2mcp/internal/validate"
)

// Project is everything the assembler needs to write one project.
type Project struct {
	Config       mcpconfig.ProjectConfig
	Document     *spec.Document
	Index        *spec.OperationIndex
	Analysis     *analyzer.ClientAnalysis
	SpecAnalysis *mcpconfig.SpecAnalysis
	Tools        []mapper.ToolDefinition
	// ClientDir is the generated client package, empty for the basic engine.
	ClientDir string
	DryRun    bool
	Force     bool
}

// Dir is the project directory: output dir joined with the project name.
func (p *Project) Dir() string {
	return filepath.Join(p.Config.OutputDir, p.Config.ProjectName)
}

// Assembler writes the generated project. Every method reports the files it
// created (or would create in a dry run).
type Assembler interface {
	Structure(ctx context.Context, p *Project) Result
	OpenAPI(ctx context.Context, p *Project) Result
	Config(ctx context.Context, p *Project) Result
	Tests(ctx context.Context, p *Project) Result
	Docker(ctx context.Context, p *Project) Result
	Examples(ctx context.Context, p *Project) Result
}

// Request is one from-openapi run.
type Request struct {
	Spec           string
	LoadOptions    []spec.Option
	IndexOptions   []spec.BuildOption
	SkipValidation bool
	ValidateOnly   bool
	// Project.ProjectName, when set, overrides the name derived from the
	// document.
	Project         mcpconfig.ProjectOptions
	IncludeExamples bool
	DryRun          bool
	Force           bool
}

// Report is the aggregated outcome of a run.
type Report struct {
	Result
	Phases     []Result
	Validation *validate.Result
	Project    *Project
}

// Pipeline composes the client and tool strategies with an assembler.
type Pipeline struct {
	Client    ClientStrategy
	Tools     ToolStrategy
	Assembler Assembler
	// Log receives progress lines; nil discards them.
	Log     io.Writer
	Verbose bool
}

func (p *Pipeline) infof(format string, args ...any) {
	if p.Log != nil && p.Verbose {
		fmt.Fprintf(p.Log, "[INFO] "+format+"\n", args...)
	}
}

func (p *Pipeline) warnf(format string, args ...any) {
	if p.Log != nil {
		fmt.Fprintf(p.Log, "[WARN] "+format+"\n", args...)
	}
}

// run executes one phase, turning a panic into a failed result.
func (p *Pipeline) run(name string, critical bool, fn func() Result) (r Result) {
	defer func() {
		if v := recover(); v != nil {
			r = Failed(name, fmt.Sprintf("%s: unexpected error: %v", name, v))
			r.Critical = critical
		}
	}()
	p.infof("phase %s", name)
	r = fn()
	if r.Phase == "" {
		r.Phase = name
	}
	r.Critical = critical
	for _, w := range r.Warnings {
		p.warnf("%s: %s", name, w)
	}
	return r
}

// ValidateOnly loads and validates the document without generating anything.
func (p *Pipeline) ValidateOnly(ctx context.Context, input string, opts ...spec.Option) Report {
	return p.Run(ctx, Request{Spec: input, LoadOptions: opts, ValidateOnly: true})
}

// Run executes the phases in order. A failed critical phase stops the run;
// a failed optional phase is reported as a warning.
func (p *Pipeline) Run(ctx context.Context, req Request) Report {
	var (
		rep    Report
		doc    *spec.Document
		idx    *spec.OperationIndex
		client *ClientOutput
		tools  []mapper.ToolDefinition
	)
	finish := func() Report {
		rep.Result = Combine(rep.Phases...)
		return rep
	}
	step := func(name string, critical bool, fn func() Result) bool {
		r := p.run(name, critical, fn)
		rep.Phases = append(rep.Phases, r)
		return r.Success || !critical
	}

	if !step("load", true, func() Result {
		var err error
		doc, err = spec.Load(ctx, req.Spec, req.LoadOptions...)
		if err != nil {
			return Failed("load", describeLoadError(err))
		}
		var warnings []string
		if doc.TypedErr != nil {
			warnings = append(warnings, fmt.Sprintf("Document did not load as valid OpenAPI: %v", doc.TypedErr))
		}
		return OK("load", nil, warnings...)
	}) {
		return finish()
	}

	if !req.SkipValidation || req.ValidateOnly {
		if !step("validate", true, func() Result {
			v := validate.OpenAPI(doc.Raw)
			rep.Validation = &v
			r := OK("validate", nil, v.Warnings...)
			if !v.IsValid {
				r = Failed("validate", v.Errors...).WithWarnings(v.Warnings...)
			}
			return r
		}) || req.ValidateOnly {
			return finish()
		}
	}

	if err := ctx.Err(); err != nil {
		rep.Phases = append(rep.Phases, Failed("client", err.Error()))
		return finish()
	}

	var work string
	if !step("client", true, func() Result {
		var err error
		idx, err = spec.BuildOperationIndex(ctx, doc, req.IndexOptions...)
		if err != nil {
			return Failed("client", err.Error(), clientFailed)
		}
		work, err = os.MkdirTemp("", "openapi2mcp-*")
		if err != nil {
			return Failed("client", err.Error(), clientFailed)
		}
		out, r := p.Client.Client(ctx, ClientInput{
			Document: doc,
			Index:    idx,
			Config:   req.Project.Client,
			WorkDir:  work,
		})
		if out == nil && r.Success {
			return Failed("client", "no client analysis produced", clientFailed)
		}
		client = out
		return r
	}) {
		cleanup(work)
		return finish()
	}
	defer cleanup(work)

	project := &Project{
		Document:  doc,
		Index:     idx,
		Analysis:  client.Analysis,
		ClientDir: client.Dir,
		DryRun:    req.DryRun,
		Force:     req.Force,
	}
	rep.Project = project

	if !step("tools", true, func() Result {
		opts := req.Project
		opts.ProjectName = projectName(opts.ProjectName, doc)
		if opts.Description == "" {
			opts.Description = doc.Description()
		}
		if opts.OpenAPISpec == "" {
			opts.OpenAPISpec = req.Spec
		}
		project.Config = mcpconfig.SynthesizeProject(client.Analysis, opts)
		if err := project.Config.Integration.Validate(); err != nil {
			return Failed("tools", err.Error())
		}
		analysis := mcpconfig.AnalyzeSpec(idx)
		project.SpecAnalysis = &analysis
		var r Result
		tools, r = p.Tools.Tools(project.Config.Integration, client.Analysis)
		project.Tools = tools
		return r
	}) {
		return finish()
	}

	phases := []struct {
		name     string
		critical bool
		enabled  bool
		fn       func(context.Context, *Project) Result
	}{
		{"structure", true, true, p.Assembler.Structure},
		{"openapi", true, true, p.Assembler.OpenAPI},
		{"config", true, true, p.Assembler.Config},
		{"tests", true, true, p.Assembler.Tests},
		{"docker", false, project.Config.IncludeDocker, p.Assembler.Docker},
		{"examples", false, req.IncludeExamples, p.Assembler.Examples},
	}
	for _, ph := range phases {
		if !ph.enabled {
			continue
		}
		fn := ph.fn
		if !step(ph.name, ph.critical, func() Result { return fn(ctx, project) }) {
			break
		}
	}
	return finish()
}

const defaultProjectName = "mcp-api-server"

// projectName prefers an explicit name, then the document title, then the
// first label of the first server host, then a fixed default.
func projectName(explicit string, doc *spec.Document) string {
	candidates := []string{explicit, doc.Title()}
	for _, u := range doc.ServerURLs() {
		if parsed, err := url.Parse(u); err == nil && parsed.Hostname() != "" {
			candidates = append(candidates, strings.Split(parsed.Hostname(), ".")[0])
			break
		}
	}
	for _, c := range candidates {
		if name, err := naming.ProjectName(c); err == nil {
			return name
		}
	}
	return defaultProjectName
}

func describeLoadError(err error) string {
	var se *spec.SpecError
	if errors.As(err, &se) {
		msg := fmt.Sprintf("Failed to load specification (%s): %s", se.Code, se.Message)
		if se.Location != "" {
			msg += " at " + se.Location
		}
		return msg
	}
	return "Failed to load specification: " + err.Error()
}

func cleanup(dir string) {
	if dir != "" {
		_ = os.RemoveAll(dir)
	}
}
