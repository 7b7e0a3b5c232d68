package assembler

import (
	"sort"
	"strings"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/mapper"
	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
	"github.com/mark3labs/openapi2mcp/internal/naming"
	"github.com/mark3labs/openapi2mcp/internal/pipeline"
)

// view is the data every template renders from.
type view struct {
	Project          mcpconfig.ProjectConfig
	ProjectID        string
	Package          string
	ClassName        string
	EnvPrefix        string
	Generator        string
	GeneratorVersion string
	FromOpenAPI      bool
	ClientPackage    string
	API              apiView
	Tools            []toolView
	Models           []modelView
}

type apiView struct {
	Title       string
	Version     string
	Description string
	BaseURL     string
	AuthSchemes []string
	SpecFile    string
}

type toolView struct {
	Name         string
	Description  string
	Method       string
	Path         string
	APIClass     string
	PathParams   []string
	QueryParams  []string
	HeaderParams []string
	HasBody      bool
	Required     []string
}

type modelView struct {
	Name   string
	Fields []fieldView
}

type fieldView struct {
	Name     string
	Alias    string
	Required bool
}

func (a *Assembler) newView(p *pipeline.Project) *view {
	c := p.Config
	v := &view{
		Project:          c,
		ProjectID:        ProjectID(c),
		Package:          "mcp_" + c.ServiceName,
		ClassName:        naming.Pascal(c.ServiceName),
		EnvPrefix:        strings.ToUpper(c.ServiceName),
		Generator:        a.cfg.Generator,
		GeneratorVersion: a.cfg.GeneratorVersion,
		FromOpenAPI:      p.Document != nil,
		API: apiView{
			Title:       c.ProjectName,
			Version:     c.Version,
			Description: c.Description,
			BaseURL:     defaultBaseURL,
			AuthSchemes: []string{},
			SpecFile:    "config/openapi.yaml",
		},
		Tools:  []toolView{},
		Models: []modelView{},
	}
	if v.ClassName == "" {
		v.ClassName = "Service"
	}

	if p.Document != nil {
		if t := p.Document.Title(); t != "" {
			v.API.Title = t
		}
		if p.Document.Format == "json" {
			v.API.SpecFile = "config/openapi.json"
		}
	}
	if p.Index != nil {
		if p.Index.Version != "" {
			v.API.Version = p.Index.Version
		}
		if len(p.Index.Servers) > 0 {
			v.API.BaseURL = p.Index.Servers[0]
		}
		v.API.AuthSchemes = append(v.API.AuthSchemes, p.Index.SecuritySchemes...)
		for _, m := range p.Index.Models {
			v.Models = append(v.Models, newModelView(m.Name, m.Properties, m.Required))
		}
	}
	if p.Analysis != nil {
		if p.Analysis.BaseURL != "" {
			v.API.BaseURL = p.Analysis.BaseURL
		}
		if len(p.Analysis.AuthSchemes) > 0 {
			v.API.AuthSchemes = append([]string{}, p.Analysis.AuthSchemes...)
		}
		if len(v.Models) == 0 {
			for _, m := range p.Analysis.Models {
				v.Models = append(v.Models, newModelView(m.Name, m.Properties, m.RequiredFields))
			}
		}
		if p.ClientDir != "" {
			v.ClientPackage = p.Analysis.ClientPackageName
		}
	}
	for _, t := range p.Tools {
		v.Tools = append(v.Tools, newToolView(t))
	}
	return v
}

var pythonKeywords = map[string]bool{
	"and": true, "as": true, "assert": true, "async": true, "await": true,
	"break": true, "class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true, "for": true,
	"from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true,
	"pass": true, "raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
}

func newModelView(name string, props, required []string) modelView {
	need := make(map[string]bool, len(required))
	for _, r := range required {
		need[r] = true
	}
	m := modelView{Name: naming.Pascal(name), Fields: []fieldView{}}
	if m.Name == "" {
		m.Name = "Model"
	}
	for _, p := range props {
		f := fieldView{Name: naming.Sanitize(p, "field", "field_"), Required: need[p]}
		if pythonKeywords[f.Name] {
			f.Name += "_"
		}
		if f.Name != p {
			f.Alias = p
		}
		m.Fields = append(m.Fields, f)
	}
	// Python requires fields without defaults to come first.
	sort.SliceStable(m.Fields, func(i, j int) bool { return m.Fields[i].Required && !m.Fields[j].Required })
	return m
}

func newToolView(t mapper.ToolDefinition) toolView {
	tv := toolView{
		Name:         t.Name,
		Description:  t.Description,
		PathParams:   []string{},
		QueryParams:  []string{},
		HeaderParams: []string{},
		Required:     []string{},
	}
	if req, ok := t.InputSchema["required"].([]string); ok {
		tv.Required = append(tv.Required, req...)
	}
	op := t.Operation
	if op == nil {
		return tv
	}
	tv.Method = strings.ToUpper(op.HTTPMethod)
	tv.Path = op.Path
	tv.APIClass = op.APIClass
	tv.HasBody = op.RequestBodyType != ""
	for _, p := range op.Parameters {
		switch p.Location {
		case analyzer.InPath:
			tv.PathParams = append(tv.PathParams, p.Name)
		case analyzer.InHeader:
			tv.HeaderParams = append(tv.HeaderParams, p.Name)
		case analyzer.InQuery, "":
			tv.QueryParams = append(tv.QueryParams, p.Name)
		}
	}
	return tv
}
