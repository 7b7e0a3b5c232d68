// Package mapper turns analyzed API operations into MCP tool definitions.
package mapper

import (
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
)

// Tool naming conventions.
const (
	ConventionOperationID = mcpconfig.NamingOperationID
	ConventionPathMethod  = mcpconfig.NamingPathMethod
)

const maxSentenceLength = 200

// ToolDefinition is one MCP tool: a name, a description and a JSON Schema for
// its arguments.
type ToolDefinition struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	InputSchema map[string]any      `json:"input_schema"`
	Operation   *analyzer.Operation `json:"-"`
}

// Option configures Map.
type Option func(*options)

type options struct {
	convention string
}

// WithNamingConvention selects operation_id (default) or path_method names.
func WithNamingConvention(c string) Option { return func(o *options) { o.convention = c } }

// Map converts every operation of the analysis, in order. Names are not
// deduplicated; see Disambiguate.
func Map(a *analyzer.ClientAnalysis, opts ...Option) []ToolDefinition {
	if a == nil {
		return []ToolDefinition{}
	}
	return MapOperations(a.Operations, opts...)
}

// MapOperations converts ops, in order.
func MapOperations(ops []analyzer.Operation, opts ...Option) []ToolDefinition {
	o := options{convention: ConventionOperationID}
	for _, opt := range opts {
		opt(&o)
	}
	tools := make([]ToolDefinition, 0, len(ops))
	for i := range ops {
		op := ops[i]
		name := Name(op)
		if o.convention == ConventionPathMethod {
			name = PathMethodName(op)
		}
		tools = append(tools, ToolDefinition{
			Name:        name,
			Description: Description(op),
			InputSchema: InputSchema(op),
			Operation:   &op,
		})
	}
	return tools
}

// Name derives the tool name from the operation name, falling back to the
// method and path, then to "unnamed_tool".
func Name(op analyzer.Operation) string {
	return mcpconfig.ToolName(op, ConventionOperationID)
}

// PathMethodName renders "{method}_{path}", e.g. get_pets_pet_id. Operations
// without a known method fall back to Name.
func PathMethodName(op analyzer.Operation) string {
	return mcpconfig.ToolName(op, ConventionPathMethod)
}

// Description picks the summary, then the first sentence of the description,
// then a phrase built from the method and the last path segment.
func Description(op analyzer.Operation) string {
	if s := strings.TrimSpace(op.Summary); s != "" {
		return s
	}
	if d := strings.TrimSpace(op.Description); d != "" {
		sentence, _, found := strings.Cut(d, ".")
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < maxSentenceLength {
			if found {
				return sentence + "."
			}
			return sentence
		}
		return truncate(d, maxSentenceLength) + "..."
	}

	method := strings.ToUpper(op.HTTPMethod)
	verb, ok := methodVerbs[method]
	if !ok {
		verb = method
	}
	subject := op.Path
	if seg := lastLiteralSegment(op.Path); seg != "" {
		subject = strings.NewReplacer("_", " ", "-", " ").Replace(seg)
	}
	if phrase := strings.TrimSpace(verb + " " + subject); phrase != "" {
		return phrase
	}
	return Name(op)
}

func lastLiteralSegment(p string) string {
	segs := strings.Split(p, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		s := segs[i]
		if s != "" && !strings.HasPrefix(s, "{") {
			return s
		}
	}
	return ""
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// bodyMethods are the methods whose request body is required.
var bodyMethods = map[string]bool{"POST": true, "PUT": true, "PATCH": true}

// InputSchema synthesizes the argument schema. Path parameters are always
// required; body is required for POST, PUT and PATCH. An operation with no
// inputs gets a closed empty object schema.
func InputSchema(op analyzer.Operation) map[string]any {
	props := make(map[string]any)
	required := []string{}
	seen := make(map[string]bool)
	need := func(name string) {
		if !seen[name] {
			seen[name] = true
			required = append(required, name)
		}
	}

	for _, p := range op.Parameters {
		props[p.Name] = map[string]any{
			"type":        jsonType(p.Type),
			"description": p.Description,
		}
		if p.IsRequired() {
			need(p.Name)
		}
	}
	if op.RequestBodyType != "" {
		props["body"] = map[string]any{
			"type":                 "object",
			"additionalProperties": true,
			"description":          "Request body of type " + op.RequestBodyType,
		}
		if bodyMethods[strings.ToUpper(op.HTTPMethod)] {
			need("body")
		}
	}

	if len(props) == 0 {
		return map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// jsonType maps OpenAPI and generated-client type names onto JSON Schema
// types. file and anything unrecognized become string.
func jsonType(t string) string {
	t = strings.TrimSpace(t)
	switch strings.ToLower(t) {
	case "string", "integer", "number", "boolean", "array", "object":
		return strings.ToLower(t)
	case "int", "strictint":
		return "integer"
	case "float", "strictfloat":
		return "number"
	case "bool", "strictbool":
		return "boolean"
	case "dict":
		return "object"
	case "list":
		return "array"
	}
	switch {
	case strings.HasPrefix(t, "List["), strings.HasPrefix(t, "list["):
		return "array"
	case strings.HasPrefix(t, "Dict["), strings.HasPrefix(t, "dict["):
		return "object"
	}
	return "string"
}
