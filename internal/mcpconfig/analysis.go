package mcpconfig

import (
	"fmt"

	"github.com/mark3labs/openapi2mcp/internal/spec"
)

// Complexity levels.
const (
	Simple      = "Simple"
	Medium      = "Medium"
	Complex     = "Complex"
	VeryComplex = "Very Complex"
)

// EstimateComplexity scores an API as ops + models/2 + 2*auth schemes. The
// level is advisory only.
func EstimateComplexity(ops, models, authSchemes int) (float64, string) {
	score := float64(ops) + 0.5*float64(models) + 2*float64(authSchemes)
	switch {
	case score < 10:
		return score, Simple
	case score < 30:
		return score, Medium
	case score < 100:
		return score, Complex
	}
	return score, VeryComplex
}

// SpecAnalysis is the summary printed by the analyze command.
type SpecAnalysis struct {
	Summary         AnalysisSummary `json:"summary"`
	Endpoints       []Endpoint      `json:"endpoints"`
	Models          []ModelSummary  `json:"models"`
	PotentialIssues []string        `json:"potential_issues"`
}

type AnalysisSummary struct {
	Title                 string   `json:"title,omitempty"`
	Version               string   `json:"version,omitempty"`
	ToolsCount            int      `json:"tools_count"`
	ResourcesCount        int      `json:"resources_count"`
	ComplexityScore       float64  `json:"complexity_score"`
	EstimatedComplexity   string   `json:"estimated_complexity"`
	AuthenticationSchemes []string `json:"authentication_schemes"`
}

type Endpoint struct {
	Path            string `json:"path"`
	Method          string `json:"method"`
	OperationID     string `json:"operation_id"`
	Summary         string `json:"summary"`
	Description     string `json:"description"`
	ParametersCount int    `json:"parameters_count"`
}

type ModelSummary struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	PropertiesCount int    `json:"properties_count"`
}

const largeModelProperties = 20

// AnalyzeSpec summarizes the operations and models of a document.
func AnalyzeSpec(idx *spec.OperationIndex) SpecAnalysis {
	a := SpecAnalysis{
		Endpoints:       []Endpoint{},
		Models:          []ModelSummary{},
		PotentialIssues: []string{},
	}
	a.Summary.Title = idx.Title
	a.Summary.Version = idx.Version
	a.Summary.AuthenticationSchemes = append([]string{}, idx.SecuritySchemes...)

	missingIDs, uploads := 0, false
	for _, op := range idx.Operations {
		if !toolMethods[op.Method] {
			continue
		}
		a.Endpoints = append(a.Endpoints, Endpoint{
			Path:            op.Path,
			Method:          op.Method,
			OperationID:     op.OperationID,
			Summary:         op.Summary,
			Description:     op.Description,
			ParametersCount: len(op.Parameters),
		})
		if op.OperationID == "" {
			missingIDs++
		}
		if op.RequestBody != nil {
			for _, ct := range op.RequestBody.ContentTypes {
				if ct == multipartForm {
					uploads = true
				}
			}
		}
	}

	large := 0
	for _, m := range idx.Models {
		a.Models = append(a.Models, ModelSummary{Name: m.Name, Type: m.Type, PropertiesCount: len(m.Properties)})
		if len(m.Properties) > largeModelProperties {
			large++
		}
	}

	a.Summary.ToolsCount = len(a.Endpoints)
	a.Summary.ResourcesCount = len(a.Models)
	a.Summary.ComplexityScore, a.Summary.EstimatedComplexity = EstimateComplexity(len(a.Endpoints), len(a.Models), len(idx.SecuritySchemes))

	if missingIDs > 0 {
		a.PotentialIssues = append(a.PotentialIssues, fmt.Sprintf("%d endpoints missing operationId", missingIDs))
	}
	if len(idx.SecuritySchemes) > 2 {
		a.PotentialIssues = append(a.PotentialIssues, "Multiple authentication schemes may complicate implementation")
	}
	if uploads {
		a.PotentialIssues = append(a.PotentialIssues, "File upload endpoints require special handling")
	}
	if large > 0 {
		a.PotentialIssues = append(a.PotentialIssues, fmt.Sprintf("%d models with >%d properties", large, largeModelProperties))
	}
	return a
}
