// Package assembler writes the generated MCP server project: source
// skeleton, configuration, tests, Docker assets and the OpenAPI-derived tool
// modules.
package assembler

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/google/uuid"

	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
	"github.com/mark3labs/openapi2mcp/internal/naming"
	"github.com/mark3labs/openapi2mcp/internal/pipeline"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	defaultGenerator = "openapi2mcp"
	defaultBaseURL   = "http://localhost:8000"
	manifestFile     = ".openapi2mcp.json"
)

// projectNamespace seeds the name-based project ids.
var projectNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/mark3labs/openapi2mcp"))

// standardDirs exist in every project, even when nothing is written to them.
var standardDirs = []string{
	"tests/unit",
	"tests/integration",
	"tests/fixtures",
	"config",
	"scripts",
	"docs",
	"docker",
}

// Config is fixed for one run and shared by every generator call.
type Config struct {
	// Generator and GeneratorVersion are recorded in file headers and the
	// project manifest.
	Generator        string
	GeneratorVersion string
}

// Assembler renders projects from the embedded templates. It has no mutable
// state and implements pipeline.Assembler.
type Assembler struct {
	cfg  Config
	tmpl *template.Template
}

var _ pipeline.Assembler = (*Assembler)(nil)

// New parses the template set once for the run.
func New(cfg Config) (*Assembler, error) {
	if cfg.Generator == "" {
		cfg.Generator = defaultGenerator
	}
	if cfg.GeneratorVersion == "" {
		cfg.GeneratorVersion = "dev"
	}
	tmpl, err := template.New("assembler").
		Option("missingkey=error").
		Funcs(funcMap()).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("assembler: parse templates: %w", err)
	}
	return &Assembler{cfg: cfg, tmpl: tmpl}, nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"snake":     naming.Snake,
		"kebab":     naming.Kebab,
		"pascal":    naming.Pascal,
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"join":      strings.Join,
		"quote":     strconv.Quote,
		"pylist":    pyList,
		"pybool":    pyBool,
		"pytag":     func(v string) string { return strings.ReplaceAll(v, ".", "") },
		"pydoc":     pyDocstring.Replace,
		"mdcell":    mdCell.Replace,
		"toolNames": toolNames,
	}
}

var (
	pyDocstring = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	mdCell      = strings.NewReplacer("|", `\|`, "\n", " ")
)

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func toolNames(tools []toolView) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

// pyList renders a list of strings as a Python list literal.
func pyList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func (a *Assembler) render(name string, v *view) ([]byte, error) {
	var b strings.Builder
	if err := a.tmpl.ExecuteTemplate(&b, name, v); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return []byte(b.String()), nil
}

// renderAll renders each template into its destination path.
func (a *Assembler) renderAll(files fileSet, v *view, targets map[string]string) error {
	for rel, name := range targets {
		content, err := a.render(name, v)
		if err != nil {
			return err
		}
		files.add(rel, content)
	}
	return nil
}

// write emits files into the project directory and turns the outcome into a
// phase result. failure prefixes any error.
func (a *Assembler) write(p *pipeline.Project, phase, failure string, files fileSet, warnings ...string) pipeline.Result {
	created, err := emit(p.Dir(), files, p.DryRun)
	if err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	return pipeline.OK(phase, created, warnings...)
}

// ProjectID is the deterministic identifier recorded in the manifest.
func ProjectID(c mcpconfig.ProjectConfig) string {
	return uuid.NewSHA1(projectNamespace, []byte(c.ProjectName+"/"+c.ServiceName+"/"+c.Version)).String()
}

type manifest struct {
	ProjectID        string `json:"project_id"`
	ProjectName      string `json:"project_name"`
	ServiceName      string `json:"service_name"`
	Version          string `json:"version"`
	Generator        string `json:"generator"`
	GeneratorVersion string `json:"generator_version"`
	OpenAPISpec      string `json:"openapi_spec,omitempty"`
	ToolsCount       int    `json:"tools_count"`
}

// Structure creates the directory layout and the core package, packaging
// and documentation files. It refuses a non-empty project directory unless
// the project is forced.
func (a *Assembler) Structure(ctx context.Context, p *pipeline.Project) pipeline.Result {
	const phase, failure = "structure", "Failed to generate project structure"
	if err := ctx.Err(); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	if p.Config.ProjectName == "" {
		return pipeline.Failed(phase, failure+": project name is required")
	}
	if err := validateOutputDirectory(p.Dir(), p.Force); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}

	v := a.newView(p)
	files := fileSet{}
	pkg := path.Join("src", v.Package)
	targets := map[string]string{
		path.Join(pkg, "__init__.py"): "package_init.py.tmpl",
		path.Join(pkg, "config.py"):   "config.py.tmpl",
		"requirements.txt":            "requirements.txt.tmpl",
		"requirements-dev.txt":        "requirements-dev.txt.tmpl",
		"pyproject.toml":              "pyproject.toml.tmpl",
		".env.example":                "env.example.tmpl",
		".gitignore":                  "gitignore.tmpl",
		"Makefile":                    "Makefile.tmpl",
		"README.md":                   "README.md.tmpl",
	}
	if p.Document == nil {
		targets[path.Join(pkg, "server.py")] = "server.py.tmpl"
		targets[path.Join(pkg, "models.py")] = "models.py.tmpl"
		targets[path.Join(pkg, "client.py")] = "client.py.tmpl"
		targets[path.Join(pkg, "tools.py")] = "tools.py.tmpl"
	}
	if p.Config.IncludeCI {
		targets[".github/workflows/ci.yml"] = "ci.yml.tmpl"
	}
	if err := a.renderAll(files, v, targets); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}

	m, err := json.MarshalIndent(manifest{
		ProjectID:        v.ProjectID,
		ProjectName:      p.Config.ProjectName,
		ServiceName:      p.Config.ServiceName,
		Version:          p.Config.Version,
		Generator:        a.cfg.Generator,
		GeneratorVersion: a.cfg.GeneratorVersion,
		OpenAPISpec:      p.Config.OpenAPISpec,
		ToolsCount:       len(p.Tools),
	}, "", "  ")
	if err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	files.add(manifestFile, append(m, '\n'))

	if !p.DryRun {
		abs, err := filepath.Abs(p.Dir())
		if err == nil {
			err = createDirectoryStructure(abs, nil, append([]string{path.Join("src", v.Package)}, standardDirs...)...)
		}
		if err != nil {
			return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
		}
	}
	return a.write(p, phase, failure, files)
}

// OpenAPI writes the modules derived from the document: models, HTTP client,
// tool routing, the MCP server, the tool definitions and the API
// configuration. A generated client package is copied next to the service
// package.
func (a *Assembler) OpenAPI(ctx context.Context, p *pipeline.Project) pipeline.Result {
	const phase, failure = "openapi", "Failed to generate OpenAPI components"
	if err := ctx.Err(); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	if p.Document == nil {
		return pipeline.Failed(phase, failure+": no OpenAPI document loaded")
	}

	v := a.newView(p)
	files := fileSet{}
	pkg := path.Join("src", v.Package)
	targets := map[string]string{
		path.Join(pkg, "models.py"): "openapi_models.py.tmpl",
		path.Join(pkg, "client.py"): "openapi_client.py.tmpl",
		path.Join(pkg, "tools.py"):  "openapi_tools.py.tmpl",
		path.Join(pkg, "server.py"): "openapi_server.py.tmpl",
		"config/api_config.yaml":    "api_config.yaml.tmpl",
	}
	if err := a.renderAll(files, v, targets); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}

	defs, err := json.MarshalIndent(p.Tools, "", "  ")
	if err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	files.add(path.Join(pkg, "tool_definitions.json"), append(defs, '\n'))

	cfg, err := p.Config.ToYAML()
	if err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	files.add("config/mcp_config.yaml", cfg)
	files.add(v.API.SpecFile, p.Document.Bytes)

	var warnings []string
	if len(p.Tools) == 0 {
		warnings = append(warnings, "No tools generated; server.py will expose an empty tool list")
	}
	if p.ClientDir != "" {
		client, err := readTree(p.ClientDir, path.Join("src", v.ClientPackage))
		if err != nil {
			return pipeline.Failed(phase, fmt.Sprintf("%s: copy generated client: %v", failure, err))
		}
		for rel, content := range client {
			files[rel] = content
		}
	}
	return a.write(p, phase, failure, files, warnings...)
}

// Config writes the runtime configuration files and the startup script.
func (a *Assembler) Config(ctx context.Context, p *pipeline.Project) pipeline.Result {
	const phase, failure = "config", "Failed to generate configuration"
	if err := ctx.Err(); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	files := fileSet{}
	if err := a.renderAll(files, a.newView(p), map[string]string{
		"config/server_config.yaml": "server_config.yaml.tmpl",
		"config/logging.yaml":       "logging.yaml.tmpl",
		"scripts/run_server.py":     "run_server.py.tmpl",
	}); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	return a.write(p, phase, failure, files)
}

// Tests writes the pytest suite. Tool tests are added when the project has
// tools.
func (a *Assembler) Tests(ctx context.Context, p *pipeline.Project) pipeline.Result {
	const phase, failure = "tests", "Failed to generate tests"
	if err := ctx.Err(); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	var warnings []string
	if fw := p.Config.TestFramework; fw != "" && fw != "pytest" {
		warnings = append(warnings, fmt.Sprintf("Test framework %q is not supported, generating pytest tests", fw))
	}

	files := fileSet{}
	for _, init := range []string{"tests/__init__.py", "tests/unit/__init__.py", "tests/integration/__init__.py", "tests/fixtures/__init__.py"} {
		files.add(init, nil)
	}
	targets := map[string]string{
		"tests/conftest.py":           "conftest.py.tmpl",
		"pytest.ini":                  "pytest.ini.tmpl",
		"tests/fixtures/test_data.py": "test_data.py.tmpl",
		"tests/unit/test_server.py":   "test_server.py.tmpl",
		"tests/unit/test_config.py":   "test_config.py.tmpl",
	}
	if len(p.Tools) > 0 {
		targets["tests/unit/test_tools.py"] = "test_tools.py.tmpl"
		targets["tests/integration/test_api_integration.py"] = "test_api_integration.py.tmpl"
	}
	if err := a.renderAll(files, a.newView(p), targets); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err))
	}
	return a.write(p, phase, failure, files, warnings...)
}

// Docker writes the container build and compose files.
func (a *Assembler) Docker(ctx context.Context, p *pipeline.Project) pipeline.Result {
	const phase, failure = "docker", "Failed to generate Docker configuration"
	if err := ctx.Err(); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err)).Optional()
	}
	files := fileSet{}
	if err := a.renderAll(files, a.newView(p), map[string]string{
		"docker/Dockerfile":         "Dockerfile.tmpl",
		"docker/docker-compose.yml": "docker-compose.yml.tmpl",
		"docker/entrypoint.sh":      "entrypoint.sh.tmpl",
		".dockerignore":             "dockerignore.tmpl",
	}); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err)).Optional()
	}
	return a.write(p, phase, failure, files).Optional()
}

// Examples writes a usage script and document for the generated tools.
func (a *Assembler) Examples(ctx context.Context, p *pipeline.Project) pipeline.Result {
	const phase, failure = "examples", "Failed to generate examples"
	if err := ctx.Err(); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err)).Optional()
	}
	if len(p.Tools) == 0 {
		return pipeline.OK(phase, nil, "No tools to write examples for").Optional()
	}
	files := fileSet{}
	if err := a.renderAll(files, a.newView(p), map[string]string{
		"examples/usage_examples.py": "usage_examples.py.tmpl",
		"docs/USAGE_EXAMPLES.md":     "USAGE_EXAMPLES.md.tmpl",
	}); err != nil {
		return pipeline.Failed(phase, fmt.Sprintf("%s: %v", failure, err)).Optional()
	}
	return a.write(p, phase, failure, files).Optional()
}
