package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAPI_EmptyInfoAndPaths(t *testing.T) {
	t.Parallel()
	res := OpenAPI(map[string]any{"openapi": "3.0.0", "info": map[string]any{}, "paths": map[string]any{}})
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{
		"Missing required info field: title",
		"Missing required info field: version",
		"No paths defined in specification",
	}, res.Errors)
}

func TestOpenAPI_AccumulatesAcrossSections(t *testing.T) {
	t.Parallel()
	doc := map[string]any{
		"openapi": "3.0.0",
		"info":    map[string]any{"title": "T"},
		"paths": map[string]any{
			"/a": map[string]any{"get": map[string]any{"operationId": "dup", "summary": "a", "responses": map[string]any{"200": map[string]any{}}}},
			"/b": map[string]any{"get": map[string]any{"operationId": "dup", "summary": "b", "responses": map[string]any{"200": map[string]any{}}}},
		},
		"servers": []any{map[string]any{"description": "no url"}},
	}
	res := OpenAPI(doc)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "Missing required info field: version")
	assert.Contains(t, res.Errors, "Duplicate operationId: dup")
	assert.Contains(t, res.Errors, "Server 0 missing URL")
}

func TestOpenAPI_VersionRules(t *testing.T) {
	t.Parallel()
	res := OpenAPI(map[string]any{"info": map[string]any{"title": "t", "version": "1"}, "paths": map[string]any{}})
	assert.Contains(t, res.Errors, "Missing required root field: openapi")
	assert.Contains(t, res.Errors, "OpenAPI version is required")

	res = OpenAPI(map[string]any{"openapi": "3.1.1", "info": map[string]any{}, "paths": map[string]any{}})
	assert.Contains(t, res.Warnings, "OpenAPI version 3.1.1 may not be fully supported")
}

func TestOpenAPI_OperationWarnings(t *testing.T) {
	t.Parallel()
	doc := map[string]any{
		"openapi": "3.0.3",
		"info":    map[string]any{"title": "t", "version": "1", "description": "d"},
		"paths": map[string]any{
			"items": map[string]any{
				"get": map[string]any{
					"parameters": []any{
						map[string]any{"name": "q", "in": "query"},
						map[string]any{"name": "q", "in": "query", "schema": map[string]any{"type": "string"}},
						map[string]any{"in": "query"},
					},
					"responses": map[string]any{"404": map[string]any{"description": "nope"}},
				},
				"post": map[string]any{"operationId": "create", "description": "d"},
			},
		},
	}
	res := OpenAPI(doc)
	assert.True(t, res.IsValid, "warnings only: %v", res.Errors)
	for _, w := range []string{
		"Path should start with '/': items",
		"Missing operationId for GET items",
		"No summary or description for GET items",
		"Parameter 'q' missing schema in GET items",
		"Duplicate parameter 'q' in GET items",
		"Parameter missing name in GET items",
		"No success response (2xx) defined for GET items",
		"No responses defined for POST items",
	} {
		assert.Contains(t, res.Warnings, w)
	}
}

func TestOpenAPI_Components(t *testing.T) {
	t.Parallel()
	doc := map[string]any{
		"openapi": "3.0.0",
		"info":    map[string]any{"title": "t", "version": "1"},
		"paths":   map[string]any{"/x": map[string]any{}},
		"components": map[string]any{
			"schemas": map[string]any{
				"Node": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"children": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/components/schemas/Node"}},
					},
				},
				"A":       map[string]any{"type": "object", "properties": map[string]any{"b": map[string]any{"$ref": "#/components/schemas/B"}}},
				"B":       map[string]any{"type": "object", "properties": map[string]any{"a": map[string]any{"$ref": "#/components/schemas/A"}}},
				"Leaf":    map[string]any{"type": "string"},
				"Untyped": map[string]any{"description": "?"},
				"Tree":    map[string]any{"type": "object", "properties": map[string]any{"x": map[string]any{"$ref": "#/components/schemas/Leaf"}, "y": map[string]any{"$ref": "#/components/schemas/Leaf"}}},
			},
			"securitySchemes": map[string]any{"key": map[string]any{"type": "apiKey"}},
		},
	}
	res := OpenAPI(doc)
	assert.Contains(t, res.Warnings, "Potential circular reference in schema 'Node'")
	assert.Contains(t, res.Warnings, "Potential circular reference in schema 'A'")
	assert.Contains(t, res.Warnings, "Potential circular reference in schema 'B'")
	assert.NotContains(t, res.Warnings, "Potential circular reference in schema 'Tree'")
	assert.Contains(t, res.Warnings, "Schema 'Untyped' missing type definition")
	assert.NotContains(t, res.Suggestions, "Consider adding authentication schemes for production APIs")
}

func TestOpenAPI_WideReferenceGraph(t *testing.T) {
	t.Parallel()
	// Si references S(i+1), S(i+2) and, through allOf, the last schema.
	const n = 60
	schemas := map[string]any{}
	for i := 0; i < n; i++ {
		props := map[string]any{}
		for _, j := range []int{i + 1, i + 2} {
			if j < n {
				props[fmt.Sprintf("p%d", j)] = map[string]any{"$ref": fmt.Sprintf("#/components/schemas/S%d", j)}
			}
		}
		def := map[string]any{"type": "object", "properties": props}
		if i < n-1 {
			def["allOf"] = []any{map[string]any{"$ref": fmt.Sprintf("#/components/schemas/S%d", n-1)}}
		}
		schemas[fmt.Sprintf("S%d", i)] = def
	}
	schemas["Loop"] = map[string]any{"type": "object", "properties": map[string]any{
		"next": map[string]any{"$ref": "#/components/schemas/S0"},
		"self": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/components/schemas/Loop"}},
	}}
	doc := map[string]any{
		"openapi":    "3.0.0",
		"info":       map[string]any{"title": "t", "version": "1"},
		"paths":      map[string]any{"/x": map[string]any{}},
		"components": map[string]any{"schemas": schemas},
	}
	res := OpenAPI(doc)
	for i := 0; i < n; i++ {
		assert.NotContains(t, res.Warnings, fmt.Sprintf("Potential circular reference in schema 'S%d'", i))
	}
	assert.Contains(t, res.Warnings, "Potential circular reference in schema 'Loop'")
}

func TestOpenAPI_Recommendations(t *testing.T) {
	t.Parallel()
	paths := map[string]any{}
	for i := 0; i < 101; i++ {
		paths[fmt.Sprintf("/r%d", i)] = map[string]any{"get": map[string]any{
			"operationId": fmt.Sprintf("op%d", i),
			"summary":     "s",
			"responses": map[string]any{"200": map[string]any{
				"headers": map[string]any{"X-RateLimit-Limit": map[string]any{"schema": map[string]any{"type": "integer"}}},
			}},
		}}
	}
	res := OpenAPI(map[string]any{"openapi": "3.0.0", "info": map[string]any{"title": "t", "version": "1"}, "paths": paths, "servers": []any{}})
	assert.Contains(t, res.Suggestions, "Consider splitting large APIs into multiple MCP servers")
	assert.Contains(t, res.Suggestions, "Consider adding authentication schemes for production APIs")
	assert.NotContains(t, res.Suggestions, "Consider documenting rate limiting in API responses")
	assert.Contains(t, res.Warnings, "No servers defined - using default server")
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestProject_Complete(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", "[build-system]\nrequires = [\"hatchling\"]\n\n[project]\nname = \"demo\"\nversion = \"0.1.0\"\ndescription = \"Demo\"\n")
	writeFile(t, dir, "requirements.txt", "# runtime\nmcp>=1.0.0\npydantic>=2.0\nhttpx[http2]>=0.27\n")
	writeFile(t, dir, "README.md", "# Demo\n## Installation\n## Usage\n## Configuration\n")
	writeFile(t, dir, "config/server_config.yaml", "server: {}\n")
	for _, mod := range recommendedModules {
		writeFile(t, dir, "src/mcp_demo/"+mod, "\"\"\"Module.\"\"\"\n\nimport os\n")
	}
	writeFile(t, dir, "tests/conftest.py", "import pytest\n")
	writeFile(t, dir, "tests/unit/test_server.py", "")
	writeFile(t, dir, "tests/unit/test_config.py", "")
	writeFile(t, dir, "tests/integration/test_api.py", "")
	writeFile(t, dir, "docs/USAGE.md", "")

	res := Project(dir)
	assert.True(t, res.IsValid, "errors: %v", res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Empty(t, res.Suggestions)
}

func TestProject_Missing(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", "[tool.black]\nline-length = 100\n")
	writeFile(t, dir, "requirements.txt", "mcp\n")
	writeFile(t, dir, "src/mcp_demo/server.py", "def main():\n    pass\n")
	writeFile(t, dir, "src/mcp_demo/tools.py", "def broken(:\n")

	res := Project(dir)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "Missing required file/directory: README.md")
	assert.Contains(t, res.Errors, "pyproject.toml missing [project] section")
	assert.Contains(t, res.Errors, "Tests directory missing")
	assert.Contains(t, res.Warnings, "Missing recommended package in requirements.txt: httpx")
	assert.Contains(t, res.Warnings, "Missing module docstring: server.py")
	assert.Contains(t, res.Warnings, "No imports found in server.py - may be incomplete")
	assert.Contains(t, res.Warnings, "Missing recommended file: mcp_demo/client.py")
	assert.Contains(t, res.Suggestions, "Consider adding docs/ directory for detailed documentation")

	var syntax bool
	for _, e := range res.Errors {
		if len(e) > 24 && e[:24] == "Syntax error in tools.py" {
			syntax = true
		}
	}
	assert.True(t, syntax, "errors: %v", res.Errors)
}

func TestProject_NoDirectory(t *testing.T) {
	t.Parallel()
	res := Project(filepath.Join(t.TempDir(), "missing"))
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
}
