// Package mcpconfig derives the MCP integration settings for a project from
// an analyzed API client and decides which operations become tools.
package mcpconfig

import (
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/clientgen"
	"github.com/mark3labs/openapi2mcp/internal/naming"
)

// Tool naming conventions.
const (
	NamingOperationID = "operation_id"
	NamingPathMethod  = "path_method"
)

const (
	minMaxTools             = 10
	defaultMaxParamsPerTool = 20
	defaultProjectVersion   = "1.0.0"
	defaultPythonVersion    = "3.11"
	defaultTestFramework    = "pytest"
)

var paginationParams = map[string]bool{"limit": true, "offset": true, "page": true, "per_page": true}

// IntegrationConfig controls how operations become MCP tools.
type IntegrationConfig struct {
	MaxTools                  int      `json:"max_tools"`
	ToolNamingConvention      string   `json:"tool_naming_convention"`
	IncludeAuthTools          bool     `json:"include_auth_tools"`
	GeneratePaginationHelpers bool     `json:"generate_pagination_helpers"`
	IncludeFileUploadTools    bool     `json:"include_file_upload_tools"`
	ExcludedMethodPatterns    []string `json:"excluded_method_patterns"`
	MaxParamsPerTool          int      `json:"max_params_per_tool"`
}

// DefaultIntegration is the configuration used before anything is known
// about the API.
func DefaultIntegration() IntegrationConfig {
	return IntegrationConfig{
		MaxTools:                  50,
		ToolNamingConvention:      NamingOperationID,
		IncludeAuthTools:          true,
		GeneratePaginationHelpers: true,
		IncludeFileUploadTools:    true,
		ExcludedMethodPatterns:    []string{"HEAD", "OPTIONS", "TRACE"},
		MaxParamsPerTool:          defaultMaxParamsPerTool,
	}
}

// Synthesize derives the integration settings from what the analysis found.
func Synthesize(a *analyzer.ClientAnalysis) IntegrationConfig {
	c := DefaultIntegration()
	c.MaxTools = max(len(a.Operations), minMaxTools)
	c.IncludeAuthTools = len(a.AuthSchemes) > 0
	c.IncludeFileUploadTools = false
	c.GeneratePaginationHelpers = false
	for _, op := range a.Operations {
		if strings.Contains(strings.ToLower(op.RequestBodyType), "file") {
			c.IncludeFileUploadTools = true
		}
		for _, p := range op.Parameters {
			if paginationParams[strings.ToLower(p.Name)] {
				c.GeneratePaginationHelpers = true
			}
		}
	}
	return c
}

// Overrides are user-supplied integration settings. Nil fields keep the
// synthesized value.
type Overrides struct {
	MaxTools                  *int
	ToolNamingConvention      *string
	IncludeAuthTools          *bool
	GeneratePaginationHelpers *bool
	IncludeFileUploadTools    *bool
	ExcludedMethodPatterns    []string
	MaxParamsPerTool          *int
}

// Apply returns c with every set override applied.
func (o Overrides) Apply(c IntegrationConfig) IntegrationConfig {
	if o.MaxTools != nil {
		c.MaxTools = *o.MaxTools
	}
	if o.ToolNamingConvention != nil {
		c.ToolNamingConvention = *o.ToolNamingConvention
	}
	if o.IncludeAuthTools != nil {
		c.IncludeAuthTools = *o.IncludeAuthTools
	}
	if o.GeneratePaginationHelpers != nil {
		c.GeneratePaginationHelpers = *o.GeneratePaginationHelpers
	}
	if o.IncludeFileUploadTools != nil {
		c.IncludeFileUploadTools = *o.IncludeFileUploadTools
	}
	if o.ExcludedMethodPatterns != nil {
		c.ExcludedMethodPatterns = append([]string{}, o.ExcludedMethodPatterns...)
	}
	if o.MaxParamsPerTool != nil {
		c.MaxParamsPerTool = *o.MaxParamsPerTool
	}
	return c
}

// Validate reports settings the filter cannot work with.
func (c IntegrationConfig) Validate() error {
	if c.MaxTools < 0 {
		return fmt.Errorf("max_tools must not be negative, got %d", c.MaxTools)
	}
	switch c.ToolNamingConvention {
	case NamingOperationID, NamingPathMethod:
	default:
		return fmt.Errorf("tool_naming_convention must be %q or %q, got %q", NamingOperationID, NamingPathMethod, c.ToolNamingConvention)
	}
	return nil
}

// ProjectConfig is the full configuration of one generated project.
type ProjectConfig struct {
	ProjectName     string            `json:"project_name"`
	ServiceName     string            `json:"service_name"`
	Description     string            `json:"description"`
	Author          string            `json:"author"`
	Version         string            `json:"version"`
	PythonVersion   string            `json:"python_version"`
	IncludeDocker   bool              `json:"include_docker"`
	IncludeCI       bool              `json:"include_ci"`
	TestFramework   string            `json:"test_framework"`
	OpenAPISpec     string            `json:"openapi_spec,omitempty"`
	OutputDir       string            `json:"output_dir"`
	ClientGenerator clientgen.Config  `json:"client_generator"`
	Integration     IntegrationConfig `json:"mcp_integration"`
}

// ProjectOptions carries the project metadata SynthesizeProject wraps around
// the integration settings.
type ProjectOptions struct {
	ProjectName   string
	Description   string
	Author        string
	Version       string
	PythonVersion string
	IncludeDocker bool
	IncludeCI     bool
	TestFramework string
	OpenAPISpec   string
	OutputDir     string
	Client        clientgen.Config
	Overrides     Overrides
}

// SynthesizeProject builds the project configuration. Overrides win over
// the synthesized integration settings.
func SynthesizeProject(a *analyzer.ClientAnalysis, opts ProjectOptions) ProjectConfig {
	pc := ProjectConfig{
		ProjectName:     opts.ProjectName,
		ServiceName:     SanitizeServiceName(opts.ProjectName),
		Description:     opts.Description,
		Author:          opts.Author,
		Version:         opts.Version,
		PythonVersion:   opts.PythonVersion,
		IncludeDocker:   opts.IncludeDocker,
		IncludeCI:       opts.IncludeCI,
		TestFramework:   opts.TestFramework,
		OpenAPISpec:     opts.OpenAPISpec,
		OutputDir:       opts.OutputDir,
		ClientGenerator: opts.Client,
		Integration:     opts.Overrides.Apply(Synthesize(a)),
	}
	if pc.Version == "" {
		pc.Version = defaultProjectVersion
	}
	if pc.PythonVersion == "" {
		pc.PythonVersion = defaultPythonVersion
	}
	if pc.TestFramework == "" {
		pc.TestFramework = defaultTestFramework
	}
	if pc.OutputDir == "" {
		pc.OutputDir = "."
	}
	if pc.ClientGenerator.GeneratorType == "" {
		pc.ClientGenerator = clientgen.DefaultConfig()
	}
	return pc
}

// ToYAML renders the configuration with its snake_case keys.
func (c ProjectConfig) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// FromYAML parses a configuration written by ToYAML. Unknown keys are errors.
func FromYAML(data []byte) (ProjectConfig, error) {
	var c ProjectConfig
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return ProjectConfig{}, fmt.Errorf("mcpconfig: %w", err)
	}
	return c, nil
}

// SanitizeServiceName turns a name into a Python package identifier.
func SanitizeServiceName(name string) string {
	return naming.Sanitize(name, "api_service", "service_")
}

// SanitizeToolName turns a name into a tool identifier.
func SanitizeToolName(name string) string {
	return naming.Sanitize(name, "unnamed_tool", "tool_")
}

// ToolName names op under the given convention: operation_id gives the
// normalized operation name, path_method gives "{method}_{path}". Operations
// without a usable name fall back to "{method}_{path}"; path_method falls
// back to the operation name when the method is unknown.
func ToolName(op analyzer.Operation, convention string) string {
	name := op.Name
	if convention == NamingPathMethod && op.HTTPMethod != "" || naming.Normalize(name) == "" {
		name = op.HTTPMethod + "_" + op.Path
	}
	return SanitizeToolName(name)
}
