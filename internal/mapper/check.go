package mapper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mark3labs/openapi2mcp/internal/naming"
)

// Disambiguate returns a copy of tools with unique names. The first tool
// with a name keeps it; later ones get the normalized API class appended,
// then a numeric suffix starting at 2.
func Disambiguate(tools []ToolDefinition) []ToolDefinition {
	out := make([]ToolDefinition, len(tools))
	taken := make(map[string]bool, len(tools))
	for i, t := range tools {
		if taken[t.Name] {
			t.Name = nextFreeName(t, taken)
		}
		taken[t.Name] = true
		out[i] = t
	}
	return out
}

func nextFreeName(t ToolDefinition, taken map[string]bool) string {
	if t.Operation != nil {
		if class := naming.Normalize(t.Operation.APIClass); class != "" {
			if candidate := t.Name + "_" + class; !taken[candidate] {
				return candidate
			}
		}
	}
	for n := 2; ; n++ {
		if candidate := t.Name + "_" + strconv.Itoa(n); !taken[candidate] {
			return candidate
		}
	}
}

// ToolError describes one tool that cannot be handed to the assembler.
type ToolError struct {
	Tool   string
	Reason string
	Cause  error
}

func (e *ToolError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tool %q: %s: %v", e.Tool, e.Reason, e.Cause)
	}
	return fmt.Sprintf("tool %q: %s", e.Tool, e.Reason)
}

func (e *ToolError) Unwrap() error { return e.Cause }

// CheckSchemas verifies every tool has a non-empty unique name and an input
// schema that is a valid draft-7 object schema. All problems are joined.
func CheckSchemas(tools []ToolDefinition) error {
	var errs []error
	seen := make(map[string]bool, len(tools))
	for i, t := range tools {
		label := t.Name
		if label == "" {
			label = "#" + strconv.Itoa(i)
			errs = append(errs, &ToolError{Tool: label, Reason: "empty name"})
		} else if seen[t.Name] {
			errs = append(errs, &ToolError{Tool: label, Reason: "duplicate name"})
		}
		seen[t.Name] = true

		if t.InputSchema == nil {
			errs = append(errs, &ToolError{Tool: label, Reason: "missing input schema"})
			continue
		}
		if typ, _ := t.InputSchema["type"].(string); typ != "object" {
			errs = append(errs, &ToolError{Tool: label, Reason: "input schema type must be object"})
		}
		if err := compileSchema(i, t.InputSchema); err != nil {
			errs = append(errs, &ToolError{Tool: label, Reason: "invalid input schema", Cause: err})
		}
	}
	return errors.Join(errs...)
}

func compileSchema(i int, schema map[string]any) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	url := "mem://tools/" + strconv.Itoa(i) + ".json"
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return err
	}
	_, err = compiler.Compile(url)
	return err
}
