package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/assembler"
	"github.com/mark3labs/openapi2mcp/internal/clientgen"
	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
	"github.com/mark3labs/openapi2mcp/internal/pipeline"
	"github.com/mark3labs/openapi2mcp/internal/spec"
	"github.com/mark3labs/openapi2mcp/internal/validate"
	"github.com/mark3labs/openapi2mcp/internal/version"
)

const importTimeout = 60 * time.Second

// FromOpenAPIConfig captures all inputs of the from-openapi command after
// merging defaults, environment, config file values and CLI overrides.
type FromOpenAPIConfig struct {
	Spec            string
	Name            string
	OutputDir       string
	Author          string
	Engine          string
	AsyncClient     bool
	IncludeAuth     *bool
	ClientConfig    string
	ValidateOnly    bool
	IncludeExamples bool
	MaxTools        *int
	IncludeTags     []string
	ExcludeTags     []string
	DryRun          bool
	Force           bool
	Verbose         bool
	ConfigPath      string
	Env             Environment

	Stdout io.Writer
	Stderr io.Writer
}

func defaultFromOpenAPIConfig() FromOpenAPIConfig {
	return FromOpenAPIConfig{
		OutputDir:   ".",
		Author:      "Developer",
		Engine:      pipeline.EngineEnhanced,
		AsyncClient: true,
	}
}

var fromOpenAPIRunner = runFromOpenAPI

func newFromOpenAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "from-openapi",
		Short: "Generate an MCP server project from an OpenAPI document",
		Long: "Generate a Python MCP server project from an OpenAPI/Swagger document. " +
			"The enhanced engine generates a typed client with openapi-generator first; " +
			"the basic engine maps the document directly.",
		Example: strings.TrimSpace(`  openapi2mcp from-openapi --spec petstore.yaml --output-dir ./out
  openapi2mcp from-openapi -s https://example.com/openapi.json --generator-engine basic --dry-run
  openapi2mcp --config openapi2mcp.yaml from-openapi --validate-only`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveFromOpenAPIConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Stdout = cmd.OutOrStdout()
			cfg.Stderr = cmd.ErrOrStderr()
			return fromOpenAPIRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("spec", "s", "", "OpenAPI spec file path or URL")
	flags.StringP("name", "n", "", "Project name (derived from the spec when omitted)")
	flags.StringP("output-dir", "o", ".", "Output directory")
	flags.StringP("author", "a", "Developer", "Author name")
	flags.String("generator-engine", pipeline.EngineEnhanced, "Client generation engine (basic|enhanced)")
	flags.Bool("async-client", true, "Generate an asyncio API client")
	flags.Bool("include-auth", false, "Include authentication tools (defaults to true when the spec declares security schemes)")
	flags.String("client-config", "", "YAML file with openapi-generator overrides")
	flags.Bool("validate-only", false, "Only validate the OpenAPI spec")
	flags.Bool("include-examples", false, "Generate usage examples")
	flags.Int("max-tools", 0, "Maximum number of tools to generate (defaults to the number of operations, at least 10)")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite a non-empty project directory")

	return cmd
}

func resolveFromOpenAPIConfig(cmd *cobra.Command) (*FromOpenAPIConfig, error) {
	cfg := defaultFromOpenAPIConfig()

	e, err := loadEnvironment()
	if err != nil {
		return nil, err
	}
	cfg.Env = e

	path, err := configPath(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.ConfigPath = path
		if err := applyConfigFile(path, cfg.setters()); err != nil {
			return nil, err
		}
	}

	if err := applyFromOpenAPIFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *FromOpenAPIConfig) setters() map[string]configSetter {
	return map[string]configSetter{
		"spec":            setString(&c.Spec),
		"name":            setString(&c.Name),
		"outputdir":       setString(&c.OutputDir),
		"author":          setString(&c.Author),
		"generatorengine": setString(&c.Engine),
		"asyncclient":     setBool(&c.AsyncClient),
		"includeauth":     setBoolPtr(&c.IncludeAuth),
		"clientconfig":    setString(&c.ClientConfig),
		"validateonly":    setBool(&c.ValidateOnly),
		"includeexamples": setBool(&c.IncludeExamples),
		"maxtools":        setInt(&c.MaxTools),
		"includetags":     setTags(&c.IncludeTags),
		"excludetags":     setTags(&c.ExcludeTags),
		"dryrun":          setBool(&c.DryRun),
		"force":           setBool(&c.Force),
		"verbose":         setBool(&c.Verbose),
	}
}

func applyFromOpenAPIFlagOverrides(flags *pflag.FlagSet, cfg *FromOpenAPIConfig) error {
	strs := map[string]*string{
		"spec":             &cfg.Spec,
		"name":             &cfg.Name,
		"output-dir":       &cfg.OutputDir,
		"author":           &cfg.Author,
		"generator-engine": &cfg.Engine,
		"client-config":    &cfg.ClientConfig,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	bools := map[string]*bool{
		"async-client":     &cfg.AsyncClient,
		"validate-only":    &cfg.ValidateOnly,
		"include-examples": &cfg.IncludeExamples,
		"dry-run":          &cfg.DryRun,
		"force":            &cfg.Force,
		"verbose":          &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("include-auth") {
		value, err := flags.GetBool("include-auth")
		if err != nil {
			return err
		}
		cfg.IncludeAuth = &value
	}
	if flags.Changed("max-tools") {
		value, err := flags.GetInt("max-tools")
		if err != nil {
			return err
		}
		cfg.MaxTools = &value
	}
	if flags.Changed("include-tags") {
		value, err := flags.GetStringSlice("include-tags")
		if err != nil {
			return err
		}
		cfg.IncludeTags = sanitizeTags(value)
	}
	if flags.Changed("exclude-tags") {
		value, err := flags.GetStringSlice("exclude-tags")
		if err != nil {
			return err
		}
		cfg.ExcludeTags = sanitizeTags(value)
	}
	return nil
}

func (c *FromOpenAPIConfig) normalize() {
	c.Spec = strings.TrimSpace(c.Spec)
	c.Name = strings.TrimSpace(c.Name)
	c.OutputDir = strings.TrimSpace(c.OutputDir)
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	if c.Engine == "" {
		c.Engine = pipeline.EngineEnhanced
	}
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
}

func (c *FromOpenAPIConfig) validate() error {
	if c.Spec == "" {
		return newUsageError("from-openapi: --spec is required (set via flag or config file)")
	}
	switch c.Engine {
	case pipeline.EngineBasic, pipeline.EngineEnhanced:
	default:
		return newUsageError(fmt.Sprintf("from-openapi: unsupported --generator-engine %q (allowed: basic, enhanced)", c.Engine))
	}
	if c.MaxTools != nil && *c.MaxTools < 1 {
		return newUsageError(fmt.Sprintf("from-openapi: --max-tools must be at least 1, got %d", *c.MaxTools))
	}
	if overlap := intersect(c.IncludeTags, c.ExcludeTags); len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("from-openapi: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	return nil
}

// request builds the pipeline request, reading the client-config file if
// one was given.
func (c *FromOpenAPIConfig) request() (pipeline.Request, error) {
	client := clientgen.ForSyncClient("")
	if c.AsyncClient {
		client = clientgen.ForAsyncClient("")
	}
	if c.ClientConfig != "" {
		var err error
		client, err = clientgen.LoadConfigFile(c.ClientConfig, client)
		if err != nil {
			return pipeline.Request{}, newUsageError(fmt.Sprintf("from-openapi: %v", err))
		}
	}

	return pipeline.Request{
		Spec:         c.Spec,
		LoadOptions:  []spec.Option{spec.WithHTTPTimeout(c.Env.HTTPTimeout)},
		IndexOptions: []spec.BuildOption{spec.WithIncludeTags(c.IncludeTags), spec.WithExcludeTags(c.ExcludeTags)},
		ValidateOnly: c.ValidateOnly,
		Project: mcpconfig.ProjectOptions{
			ProjectName:   c.Name,
			Author:        c.Author,
			IncludeDocker: true,
			OutputDir:     c.OutputDir,
			Client:        client,
			Overrides: mcpconfig.Overrides{
				MaxTools:         c.MaxTools,
				IncludeAuthTools: c.IncludeAuth,
			},
		},
		IncludeExamples: c.IncludeExamples,
		DryRun:          c.DryRun,
		Force:           c.Force,
	}, nil
}

func (c *FromOpenAPIConfig) pipeline() (*pipeline.Pipeline, error) {
	asm, err := assembler.New(assembler.Config{GeneratorVersion: version.Get().Version})
	if err != nil {
		return nil, err
	}
	p := &pipeline.Pipeline{
		Client:    pipeline.BasicClient{},
		Tools:     pipeline.DefaultTools{},
		Assembler: asm,
		Log:       c.Stderr,
		Verbose:   c.Verbose,
	}
	if c.Engine == pipeline.EngineEnhanced {
		p.Client = pipeline.EnhancedClient{
			Invoker:  clientgen.New(c.Env.Generator),
			Importer: analyzer.PythonImporter{Bin: c.Env.PythonBin, Timeout: importTimeout},
		}
	}
	return p, nil
}

func runFromOpenAPI(ctx context.Context, cfg *FromOpenAPIConfig) error {
	req, err := cfg.request()
	if err != nil {
		return err
	}
	p, err := cfg.pipeline()
	if err != nil {
		return err
	}

	if cfg.ValidateOnly {
		fmt.Fprintf(cfg.Stdout, "Validating OpenAPI specification: %s\n", cfg.Spec)
		rep := p.ValidateOnly(ctx, cfg.Spec, req.LoadOptions...)
		if rep.Validation != nil {
			printValidation(cfg.Stdout, "Specification", *rep.Validation)
		}
		return reportFailure(cfg.Stderr, rep.Result, "from-openapi: specification is not valid")
	}

	fmt.Fprintf(cfg.Stdout, "Generating MCP server from %s (engine: %s)\n", cfg.Spec, cfg.Engine)
	rep := p.Run(ctx, req)
	if err := reportFailure(cfg.Stderr, rep.Result, "from-openapi: generation failed"); err != nil {
		return err
	}

	dir := rep.Project.Dir()
	if cfg.DryRun {
		printPlan(cfg.Stdout, dir, rep.FilesCreated)
		return nil
	}
	fmt.Fprintf(cfg.Stdout, "Project created successfully at: %s\n", dir)
	fmt.Fprintf(cfg.Stdout, "  tools:    %d\n", len(rep.Project.Tools))
	fmt.Fprintf(cfg.Stdout, "  files:    %d\n", len(rep.FilesCreated))
	if n := len(rep.Warnings); n > 0 {
		fmt.Fprintf(cfg.Stdout, "  warnings: %d\n", n)
	}
	printNextSteps(cfg.Stdout, rep.Project.Config.ProjectName)
	return nil
}

// reportFailure prints the errors of a failed result and returns an error
// carrying msg; it returns nil for a successful result.
func reportFailure(w io.Writer, r pipeline.Result, msg string) error {
	if r.Success {
		return nil
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "[ERROR] %s\n", e)
	}
	return fmt.Errorf("%s: %s", msg, strings.Join(r.Errors, "; "))
}

func printValidation(w io.Writer, what string, v validate.Result) {
	if v.IsValid {
		fmt.Fprintf(w, "%s validation passed\n", what)
	} else {
		fmt.Fprintf(w, "%s validation failed:\n", what)
		for _, e := range v.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	for _, warn := range v.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	for _, s := range v.Suggestions {
		fmt.Fprintf(w, "  suggestion: %s\n", s)
	}
}

func printPlan(w io.Writer, outDir string, paths []string) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(paths))
	for _, p := range paths {
		if rel, err := filepath.Rel(outDir, p); err == nil {
			p = filepath.ToSlash(rel)
		}
		fmt.Fprintf(w, "- %s\n", p)
	}
}

func printNextSteps(w io.Writer, project string) {
	fmt.Fprintln(w, "\nNext steps:")
	fmt.Fprintf(w, "  cd %s\n", project)
	fmt.Fprintln(w, "  python -m pip install -r requirements-dev.txt")
	fmt.Fprintln(w, "  python -m pytest tests/")
}
