package analyzer

import (
	"github.com/mark3labs/openapi2mcp/internal/naming"
	"github.com/mark3labs/openapi2mcp/internal/spec"
)

const defaultAPIClass = "DefaultApi"

// FromSpec builds a ClientAnalysis straight from the OpenAPI operations,
// without generating a client. Operations are grouped into API classes by
// their first tag the way the generator would group them.
func FromSpec(idx *spec.OperationIndex, packageName string) *ClientAnalysis {
	a := &ClientAnalysis{
		ClientPackageName: packageName,
		APIClasses:        []APIClass{},
		Operations:        []Operation{},
		Models:            []Model{},
		AuthSchemes:       append([]string{}, idx.SecuritySchemes...),
	}
	if len(idx.Servers) > 0 {
		a.BaseURL = idx.Servers[0]
	}

	classIdx := make(map[string]int)
	for _, s := range idx.Operations {
		class := defaultAPIClass
		if len(s.Tags) > 0 {
			if n := naming.Pascal(s.Tags[0]); n != "" {
				class = n + "Api"
			}
		}
		i, ok := classIdx[class]
		if !ok {
			i = len(a.APIClasses)
			classIdx[class] = i
			a.APIClasses = append(a.APIClasses, APIClass{
				Name:           class,
				Module:         packageName + ".api." + naming.Snake(class),
				Methods:        []string{},
				SourceLocation: idx.Title,
			})
		}

		op := Operation{Name: s.OperationID, APIClass: class}
		fillFromSpec(&op, s)
		a.Operations = append(a.Operations, op)
		a.APIClasses[i].Methods = append(a.APIClasses[i].Methods, methodName(s))
	}

	for _, m := range idx.Models {
		a.Models = append(a.Models, Model{
			Name:           m.Name,
			Properties:     append([]string{}, m.Properties...),
			RequiredFields: append([]string{}, m.Required...),
		})
	}
	return a
}

func methodName(s spec.OperationSpec) string {
	if s.OperationID != "" {
		return naming.Normalize(s.OperationID)
	}
	return naming.Normalize(s.Path + "_" + s.Method)
}
