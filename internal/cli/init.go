package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/assembler"
	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
	"github.com/mark3labs/openapi2mcp/internal/naming"
	"github.com/mark3labs/openapi2mcp/internal/pipeline"
	"github.com/mark3labs/openapi2mcp/internal/version"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	Name          string
	Description   string
	Author        string
	OutputDir     string
	PythonVersion string
	NoDocker      bool
	NoCI          bool
	TestFramework string
	DryRun        bool
	Force         bool
	Verbose       bool
	ConfigPath    string

	Stdout io.Writer
	Stderr io.Writer
}

func defaultInitConfig() InitConfig {
	return InitConfig{
		Author:        "Developer",
		OutputDir:     ".",
		PythonVersion: "3.11",
		TestFramework: "pytest",
	}
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new MCP server project",
		Long: "Scaffold a Python MCP server project with source skeleton, configuration, " +
			"tests and optional Docker and CI setup.",
		Example: strings.TrimSpace(`  openapi2mcp init --name weather-server --description "Weather tools"
  openapi2mcp init -n my-server -o ./projects --no-docker --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveInitConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Stdout = cmd.OutOrStdout()
			cfg.Stderr = cmd.ErrOrStderr()
			return initRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("name", "n", "", "Project name")
	flags.StringP("description", "d", "", "Project description")
	flags.StringP("author", "a", "Developer", "Author name")
	flags.StringP("output-dir", "o", ".", "Output directory")
	flags.String("python-version", "3.11", "Python version")
	flags.Bool("no-docker", false, "Skip Docker setup")
	flags.Bool("no-ci", false, "Skip CI/CD setup")
	flags.String("test-framework", "pytest", "Testing framework")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite a non-empty project directory")

	return cmd
}

func resolveInitConfig(cmd *cobra.Command) (*InitConfig, error) {
	cfg := defaultInitConfig()

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

	if err := applyInitFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *InitConfig) setters() map[string]configSetter {
	return map[string]configSetter{
		"name":          setString(&c.Name),
		"description":   setString(&c.Description),
		"author":        setString(&c.Author),
		"outputdir":     setString(&c.OutputDir),
		"pythonversion": setString(&c.PythonVersion),
		"nodocker":      setBool(&c.NoDocker),
		"noci":          setBool(&c.NoCI),
		"testframework": setString(&c.TestFramework),
		"dryrun":        setBool(&c.DryRun),
		"force":         setBool(&c.Force),
		"verbose":       setBool(&c.Verbose),
	}
}

func applyInitFlagOverrides(flags *pflag.FlagSet, cfg *InitConfig) error {
	strs := map[string]*string{
		"name":           &cfg.Name,
		"description":    &cfg.Description,
		"author":         &cfg.Author,
		"output-dir":     &cfg.OutputDir,
		"python-version": &cfg.PythonVersion,
		"test-framework": &cfg.TestFramework,
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
		"no-docker": &cfg.NoDocker,
		"no-ci":     &cfg.NoCI,
		"dry-run":   &cfg.DryRun,
		"force":     &cfg.Force,
		"verbose":   &cfg.Verbose,
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
	return nil
}

func (c *InitConfig) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	c.OutputDir = strings.TrimSpace(c.OutputDir)
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	c.TestFramework = strings.ToLower(strings.TrimSpace(c.TestFramework))
}

func (c *InitConfig) validate() error {
	if c.Name == "" {
		return newUsageError("init: --name is required (set via flag or config file)")
	}
	name, err := naming.ProjectName(c.Name)
	if err != nil {
		return newUsageError(fmt.Sprintf("init: invalid project name %q: %v", c.Name, err))
	}
	c.Name = name
	return nil
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	asm, err := assembler.New(assembler.Config{GeneratorVersion: version.Get().Version})
	if err != nil {
		return err
	}

	description := cfg.Description
	if description == "" {
		description = "MCP server for " + cfg.Name
	}
	project := &pipeline.Project{
		Config: mcpconfig.SynthesizeProject(&analyzer.ClientAnalysis{}, mcpconfig.ProjectOptions{
			ProjectName:   cfg.Name,
			Description:   description,
			Author:        cfg.Author,
			PythonVersion: cfg.PythonVersion,
			IncludeDocker: !cfg.NoDocker,
			IncludeCI:     !cfg.NoCI,
			TestFramework: cfg.TestFramework,
			OutputDir:     cfg.OutputDir,
		}),
		DryRun: cfg.DryRun,
		Force:  cfg.Force,
	}

	fmt.Fprintf(cfg.Stdout, "Initializing MCP server project: %s\n", project.Config.ProjectName)
	phases := []pipeline.Result{asm.Structure(ctx, project)}
	if phases[0].Success {
		phases = append(phases, asm.Config(ctx, project), asm.Tests(ctx, project))
		if project.Config.IncludeDocker {
			phases = append(phases, asm.Docker(ctx, project))
		}
	}
	for _, r := range phases {
		for _, w := range r.Warnings {
			fmt.Fprintf(cfg.Stderr, "[WARN] %s: %s\n", r.Phase, w)
		}
		if cfg.Verbose {
			fmt.Fprintf(cfg.Stderr, "[INFO] phase %s: %d files\n", r.Phase, len(r.FilesCreated))
		}
	}

	res := pipeline.Combine(phases...)
	if err := reportFailure(cfg.Stderr, res, "init: project generation failed"); err != nil {
		if strings.Contains(err.Error(), "not empty") {
			return newUsageError(err.Error() + "\nHint: choose a different --output-dir or use --force.")
		}
		return err
	}

	dir := project.Dir()
	if cfg.DryRun {
		printPlan(cfg.Stdout, dir, res.FilesCreated)
		return nil
	}
	fmt.Fprintf(cfg.Stdout, "Project created successfully at: %s\n", dir)
	printNextSteps(cfg.Stdout, project.Config.ProjectName)
	return nil
}
