package analyzer

import (
	"strings"

	"github.com/mark3labs/openapi2mcp/internal/naming"
	"github.com/mark3labs/openapi2mcp/internal/spec"
)

// correlator matches generated method names back to OpenAPI operations.
// Generated method names are the snake_case form of the operationId, or of
// "<path>_<method>" when the operation has none. OperationIds are indexed in
// both the plain and the acronym-splitting snake_case form.
type correlator struct {
	byName map[string]spec.OperationSpec
}

func newCorrelator(idx *spec.OperationIndex) *correlator {
	c := &correlator{byName: make(map[string]spec.OperationSpec)}
	if idx == nil {
		return c
	}
	for _, op := range idx.Operations {
		keys := []string{
			naming.Normalize(op.Path + "_" + op.Method),
			naming.Normalize(op.Method + "_" + op.Path),
		}
		if op.OperationID != "" {
			keys = append([]string{naming.Normalize(op.OperationID), naming.Underscore(op.OperationID)}, keys...)
		}
		for _, k := range keys {
			if _, taken := c.byName[k]; !taken && k != "" {
				c.byName[k] = op
			}
		}
	}
	return c
}

func (c *correlator) operation(class, method string) Operation {
	op := Operation{
		Name:       method,
		APIClass:   class,
		Parameters: []Parameter{},
	}
	match, ok := c.byName[naming.Normalize(method)]
	if !ok {
		op.Summary = method
		op.Description = "Call " + class + "." + method
		return op
	}
	fillFromSpec(&op, match)
	return op
}

// fillFromSpec copies what the OpenAPI document knows about an operation.
func fillFromSpec(op *Operation, s spec.OperationSpec) {
	op.OperationID = s.OperationID
	op.HTTPMethod = strings.ToUpper(s.Method)
	op.Path = s.Path
	op.Summary = s.Summary
	op.Description = s.Description
	op.ResponseType = s.ResponseType
	op.AuthRequired = len(s.Security) > 0
	op.Deprecated = s.Deprecated
	op.Tags = append([]string(nil), s.Tags...)
	op.Resolved = true
	op.Parameters = make([]Parameter, 0, len(s.Parameters))
	for _, p := range s.Parameters {
		op.Parameters = append(op.Parameters, Parameter{
			Name:        p.Name,
			Type:        p.Type,
			Description: p.Description,
			Required:    p.Required || p.In == InPath,
			Location:    p.In,
		})
	}
	if s.RequestBody != nil {
		op.RequestBodyType = s.RequestBody.TypeName
		op.RequestContentTypes = append([]string(nil), s.RequestBody.ContentTypes...)
	}
}
