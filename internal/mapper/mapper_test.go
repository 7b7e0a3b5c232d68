package mapper

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/naming"
)

func TestMap_ListPets(t *testing.T) {
	t.Parallel()
	// The analyzer derives the summary from the method name for operations it
	// has no documentation for.
	op := analyzer.Operation{
		Name: "listPets", Summary: "listPets", HTTPMethod: "GET", Path: "/pets",
		Parameters: []analyzer.Parameter{{Name: "limit", Type: "integer", Location: analyzer.InQuery}},
	}
	tools := Map(&analyzer.ClientAnalysis{Operations: []analyzer.Operation{op}})
	require.Len(t, tools, 1)

	tool := tools[0]
	assert.Equal(t, "list_pets", tool.Name)
	assert.Equal(t, "listPets", tool.Description)
	props := tool.InputSchema["properties"].(map[string]any)
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, []string{}, tool.InputSchema["required"])
	require.NotNil(t, tool.Operation)
	assert.Equal(t, "/pets", tool.Operation.Path)
}

func TestInputSchema_PathParameterAlwaysRequired(t *testing.T) {
	t.Parallel()
	op := analyzer.Operation{
		Name: "getPetById", HTTPMethod: "GET", Path: "/pets/{petId}",
		Parameters: []analyzer.Parameter{{Name: "petId", Type: "string", Required: false, Location: analyzer.InPath}},
	}
	assert.Equal(t, []string{"petId"}, InputSchema(op)["required"])
}

func TestInputSchema_BodyRequirednessFollowsMethod(t *testing.T) {
	t.Parallel()
	for method, want := range map[string]bool{
		"POST": true, "PUT": true, "PATCH": true,
		"GET": false, "DELETE": false, "HEAD": false, "": false,
	} {
		op := analyzer.Operation{Name: "createPet", HTTPMethod: method, RequestBodyType: "Pet"}
		schema := InputSchema(op)
		body := schema["properties"].(map[string]any)["body"].(map[string]any)
		assert.Equal(t, "object", body["type"])
		assert.Equal(t, true, body["additionalProperties"])
		assert.Equal(t, "Request body of type Pet", body["description"])
		assert.Equal(t, want, contains(schema["required"].([]string), "body"), method)
	}

	create := InputSchema(analyzer.Operation{Name: "createPet", HTTPMethod: "POST", RequestBodyType: "Pet"})
	assert.Equal(t, []string{"body"}, create["required"])
}

func TestInputSchema_NoInputsIsClosed(t *testing.T) {
	t.Parallel()
	schema := InputSchema(analyzer.Operation{Name: "ping", HTTPMethod: "GET", Path: "/ping"})
	assert.Equal(t, map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": false,
	}, schema)
}

func TestInputSchema_TypeMapping(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"integer":   "integer",
		"file":      "string",
		"":          "string",
		"uuid":      "string",
		"List[Pet]": "array",
		"int":       "integer",
		"bool":      "boolean",
		"object":    "object",
	}
	for in, want := range cases {
		op := analyzer.Operation{Parameters: []analyzer.Parameter{{Name: "p", Type: in, Location: analyzer.InQuery}}}
		prop := InputSchema(op)["properties"].(map[string]any)["p"].(map[string]any)
		assert.Equal(t, want, prop["type"], "type %q", in)
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		op   analyzer.Operation
		want string
	}{
		{"camel", analyzer.Operation{Name: "listPets"}, "list_pets"},
		{"punctuation", analyzer.Operation{Name: "get-user@by#id!"}, "get_user_by_id"},
		{"method and path", analyzer.Operation{HTTPMethod: "GET", Path: "/pets/{petId}"}, "get_pets_pet_id"},
		{"symbols only", analyzer.Operation{Name: "@@@", HTTPMethod: "DELETE", Path: "/pets"}, "delete_pets"},
		{"nothing", analyzer.Operation{}, "unnamed_tool"},
		{"digit", analyzer.Operation{Name: "123go"}, "tool_123go"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Name(tc.op))
		})
	}
}

func TestPathMethodConvention(t *testing.T) {
	t.Parallel()
	ops := []analyzer.Operation{
		{Name: "listPets", HTTPMethod: "GET", Path: "/pets"},
		{Name: "legacy_helper"},
	}
	tools := MapOperations(ops, WithNamingConvention(ConventionPathMethod))
	assert.Equal(t, "get_pets", tools[0].Name)
	assert.Equal(t, "legacy_helper", tools[1].Name)
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"listPets", "get-user@by#id!", "HTTPServer", "  spaced  out ", "__x__", "a1B2c3", "Über Name", "/pets/{petId}_GET"} {
		once := naming.Normalize(in)
		assert.Equal(t, once, naming.Normalize(once), in)
	}
}

func TestDescription(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("word ", 50)
	tests := []struct {
		name string
		op   analyzer.Operation
		want string
	}{
		{"summary", analyzer.Operation{Summary: " List pets ", Description: "ignored"}, "List pets"},
		{"first sentence", analyzer.Operation{Description: "Returns all pets. Paged."}, "Returns all pets."},
		{"no period", analyzer.Operation{Description: "Returns all pets"}, "Returns all pets"},
		{"long", analyzer.Operation{Description: long}, long[:200] + "..."},
		{"get", analyzer.Operation{HTTPMethod: "GET", Path: "/pets/{petId}"}, "Retrieve pets"},
		{"post", analyzer.Operation{HTTPMethod: "POST", Path: "/user-accounts"}, "Create user accounts"},
		{"put", analyzer.Operation{HTTPMethod: "PUT", Path: "/pet_tags"}, "Update pet tags"},
		{"delete", analyzer.Operation{HTTPMethod: "DELETE", Path: "/pets"}, "Delete pets"},
		{"patch", analyzer.Operation{HTTPMethod: "PATCH", Path: "/pets"}, "Partially update pets"},
		{"other", analyzer.Operation{HTTPMethod: "HEAD", Path: "/pets"}, "HEAD pets"},
		{"raw path", analyzer.Operation{HTTPMethod: "GET", Path: "/{id}"}, "Retrieve /{id}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Description(tc.op))
		})
	}
}

func TestDescription_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()
	d := strings.Repeat("a", 199) + "é…" + strings.Repeat("ü", 20)
	got := Description(analyzer.Operation{Description: d})
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 199)+"...", got)

	d = strings.Repeat("ü", 150)
	got = Description(analyzer.Operation{Description: d})
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("ü", 100)+"...", got)
}

func TestDisambiguate(t *testing.T) {
	t.Parallel()
	ops := []analyzer.Operation{
		{Name: "list", APIClass: "PetApi"},
		{Name: "list", APIClass: "StoreApi"},
		{Name: "list", APIClass: "StoreApi"},
		{Name: "list_store_api"},
		{Name: "list"},
	}
	tools := Disambiguate(MapOperations(ops))

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	assert.Equal(t, []string{"list", "list_store_api", "list_2", "list_store_api_2", "list_3"}, names)
	require.NoError(t, CheckSchemas(tools))

	again := Disambiguate(MapOperations(ops))
	for i := range tools {
		assert.Equal(t, tools[i].Name, again[i].Name)
	}
}

func TestCheckSchemas(t *testing.T) {
	t.Parallel()
	tools := []ToolDefinition{
		{Name: "ok", InputSchema: InputSchema(analyzer.Operation{})},
		{Name: "ok", InputSchema: InputSchema(analyzer.Operation{})},
		{Name: "", InputSchema: InputSchema(analyzer.Operation{})},
		{Name: "bad_type", InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"x": map[string]any{"type": "strin"}},
		}},
		{Name: "not_object", InputSchema: map[string]any{"type": "string"}},
		{Name: "nil"},
	}
	err := CheckSchemas(tools)
	require.Error(t, err)

	var reasons []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var te *ToolError
		require.True(t, errors.As(e, &te))
		reasons = append(reasons, te.Tool+": "+te.Reason)
	}
	assert.Equal(t, []string{
		"ok: duplicate name",
		"#2: empty name",
		"bad_type: invalid input schema",
		"not_object: input schema type must be object",
		"nil: missing input schema",
	}, reasons)
}

func TestToolCountFollowsOperations(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Map(nil))
	assert.Empty(t, Map(&analyzer.ClientAnalysis{}))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
