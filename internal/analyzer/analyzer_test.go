package analyzer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/openapi2mcp/internal/spec"
)

const fixtureDir = "testdata/client"

func petstoreIndex() *spec.OperationIndex {
	return &spec.OperationIndex{
		Title:           "Petstore",
		Servers:         []string{"https://fallback.example.com"},
		SecuritySchemes: []string{"apiKey", "oauth"},
		Operations: []spec.OperationSpec{
			{
				ID: "GET /pets", OperationID: "listPets", Method: "GET", Path: "/pets",
				Summary: "List all pets", Tags: []string{"pets"},
				Parameters:   []spec.ParameterSpec{{Name: "limit", In: "query", Type: "integer", Description: "How many items"}},
				ResponseType: "List[Pet]",
			},
			{
				ID: "POST /pets", OperationID: "createPet", Method: "POST", Path: "/pets",
				Tags:        []string{"pets"},
				RequestBody: &spec.RequestBodySpec{Required: true, ContentTypes: []string{"application/json"}, TypeName: "Pet"},
				Security:    []string{"apiKey"},
			},
			{
				ID: "GET /pets/{petId}", OperationID: "getPetById", Method: "GET", Path: "/pets/{petId}",
				Tags:       []string{"pets"},
				Parameters: []spec.ParameterSpec{{Name: "petId", In: "path", Type: "string"}},
				Deprecated: true,
			},
			{
				ID: "POST /store/order", Method: "POST", Path: "/store/order",
				RequestBody: &spec.RequestBodySpec{ContentTypes: []string{"multipart/form-data"}, TypeName: "file"},
			},
		},
	}
}

func TestParse_FixtureClient(t *testing.T) {
	t.Parallel()
	a, err := Parse(fixtureDir)
	require.NoError(t, err)

	assert.Equal(t, "petstore", a.ClientPackageName)
	assert.Equal(t, "https://petstore.example.com/v1", a.BaseURL)
	assert.Equal(t, []string{"apiKey", "bearerAuth"}, a.AuthSchemes)

	require.Len(t, a.APIClasses, 2)
	pet := a.APIClasses[0]
	assert.Equal(t, "PetApi", pet.Name)
	assert.Equal(t, "petstore.api.pet_api", pet.Module)
	assert.Equal(t, []string{"list_pets", "create_pet", "get_pet_by_id", "legacy_helper"}, pet.Methods)
	assert.Contains(t, pet.SourceLocation, "api/pet_api.py:")
	assert.Equal(t, "StoreApi", a.APIClasses[1].Name)
	assert.Equal(t, []string{"place_order"}, a.APIClasses[1].Methods)

	require.Len(t, a.Models, 2)
	assert.Equal(t, Model{Name: "Order", Properties: []string{"id", "pet_id", "quantity"}, RequiredFields: []string{"id"}}, a.Models[0])
	assert.Equal(t, Model{Name: "Pet", Properties: []string{"id", "name", "tag"}, RequiredFields: []string{"id", "name"}}, a.Models[1])

	require.Len(t, a.Operations, 5)
	first := a.Operations[0]
	assert.Equal(t, "list_pets", first.Name)
	assert.Equal(t, "list_pets", first.Summary)
	assert.Equal(t, "Call PetApi.list_pets", first.Description)
	assert.Empty(t, first.HTTPMethod)
	assert.False(t, first.Resolved)
	assert.Empty(t, a.Warnings)
}

func TestParse_WithSpecIndex(t *testing.T) {
	t.Parallel()
	a, err := Parse(fixtureDir, WithSpecIndex(petstoreIndex()), WithPackageName("petstore"))
	require.NoError(t, err)

	byName := make(map[string]Operation)
	for _, op := range a.Operations {
		byName[op.Name] = op
	}

	list := byName["list_pets"]
	assert.True(t, list.Resolved)
	assert.Equal(t, "GET", list.HTTPMethod)
	assert.Equal(t, "/pets", list.Path)
	assert.Equal(t, "List all pets", list.Summary)
	assert.Equal(t, "List[Pet]", list.ResponseType)
	require.Len(t, list.Parameters, 1)
	assert.Equal(t, Parameter{Name: "limit", Type: "integer", Description: "How many items", Location: InQuery}, list.Parameters[0])

	create := byName["create_pet"]
	assert.Equal(t, "POST", create.HTTPMethod)
	assert.Equal(t, "Pet", create.RequestBodyType)
	assert.True(t, create.AuthRequired)

	get := byName["get_pet_by_id"]
	assert.True(t, get.Deprecated)
	require.Len(t, get.Parameters, 1)
	assert.True(t, get.Parameters[0].Required)
	assert.True(t, get.Parameters[0].IsRequired())

	order := byName["place_order"]
	assert.False(t, order.Resolved, "no operationId and no matching path name")

	legacy := byName["legacy_helper"]
	assert.False(t, legacy.Resolved)
	assert.Contains(t, a.Warnings, "Could not match PetApi.legacy_helper to an OpenAPI operation; HTTP method and path unknown")

	assert.Equal(t, []string{"apiKey", "bearerAuth", "oauth"}, a.AuthSchemes)
	assert.Equal(t, "https://petstore.example.com/v1", a.BaseURL)
}

func TestParse_PathMethodFallbackName(t *testing.T) {
	t.Parallel()
	c := newCorrelator(petstoreIndex())
	op := c.operation("StoreApi", "store_order_post")
	assert.True(t, op.Resolved)
	assert.Equal(t, "/store/order", op.Path)
	assert.Equal(t, []string{"multipart/form-data"}, op.RequestContentTypes)

	op = c.operation("StoreApi", "post_store_order")
	assert.True(t, op.Resolved)
}

func TestParse_AcronymOperationIDs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	apiPath := filepath.Join(dir, "statusclient", "api")
	require.NoError(t, os.MkdirAll(apiPath, 0o755))
	src := "class StatusApi:\n" +
		"    def get_http_status(self):\n" +
		"        pass\n\n" +
		"    def list_api_keys(self, limit: int = None):\n" +
		"        pass\n"
	require.NoError(t, os.WriteFile(filepath.Join(apiPath, "status_api.py"), []byte(src), 0o644))

	idx := &spec.OperationIndex{Operations: []spec.OperationSpec{
		{ID: "GET /status", OperationID: "getHTTPStatus", Method: "GET", Path: "/status"},
		{ID: "GET /keys", OperationID: "listAPIKeys", Method: "GET", Path: "/keys"},
	}}
	a, err := Parse(dir, WithSpecIndex(idx))
	require.NoError(t, err)

	require.Len(t, a.Operations, 2)
	assert.Equal(t, "get_http_status", a.Operations[0].Name)
	assert.True(t, a.Operations[0].Resolved)
	assert.Equal(t, "GET", a.Operations[0].HTTPMethod)
	assert.Equal(t, "/status", a.Operations[0].Path)
	assert.True(t, a.Operations[1].Resolved)
	assert.Equal(t, "/keys", a.Operations[1].Path)
	assert.Empty(t, a.Warnings)
}

func TestParse_NoAPIDirectory(t *testing.T) {
	t.Parallel()
	_, err := Parse(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAPIDirectory))
}

type fakeImporter struct {
	err   error
	calls []string
}

func (f *fakeImporter) Import(_ context.Context, dir, pkg string) error {
	f.calls = append(f.calls, dir+"|"+pkg)
	return f.err
}

func TestValidate_FixtureClient(t *testing.T) {
	t.Parallel()
	imp := &fakeImporter{}
	res := Validate(context.Background(), fixtureDir, WithImporter(imp))

	assert.True(t, res.IsValid, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{fixtureDir + "|petstore"}, imp.calls)
}

func TestValidate_ImportOutcomes(t *testing.T) {
	t.Parallel()

	unavailable := &fakeImporter{err: ErrInterpreterUnavailable}
	res := Validate(context.Background(), fixtureDir, WithImporter(unavailable))
	assert.True(t, res.IsValid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Skipping import check")

	broken := &fakeImporter{err: errors.New("exit status 1\nModuleNotFoundError: No module named 'pydantic'")}
	res = Validate(context.Background(), fixtureDir, WithImporter(broken))
	assert.False(t, res.IsValid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Generated client failed to import")
	assert.Contains(t, res.Errors[0], "No module named 'pydantic'")
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestValidate_MissingFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg", "api"), 0o755))

	imp := &fakeImporter{}
	res := Validate(context.Background(), dir, WithImporter(imp))
	assert.False(t, res.IsValid)
	assert.Equal(t, []string{
		"Missing required file: __init__.py",
		"Missing required file: api_client.py",
		"Missing required file: configuration.py",
	}, res.Errors)
	assert.Equal(t, []string{"Missing models directory: models/"}, res.Warnings)
	assert.Empty(t, imp.calls, "import is not attempted for an incomplete package")
}

func TestValidate_NoAPIDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res := Validate(context.Background(), dir, WithImporter(&fakeImporter{}))
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Errors, "Missing API directory: api/")
	assert.Contains(t, res.Errors, "Missing required file: api_client.py")
}

func TestValidate_ImportCycle(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, f := range []string{"pkg/__init__.py", "pkg/api_client.py", "pkg/configuration.py", "pkg/api/__init__.py", "pkg/models/__init__.py"} {
		writeFile(t, dir, f, "")
	}
	writeFile(t, dir, "pkg/mod_a.py", "from .mod_b import thing\n")
	writeFile(t, dir, "pkg/mod_b.py", "from pkg.mod_a import other\n")

	res := Validate(context.Background(), dir, WithImporter(&fakeImporter{}))
	assert.True(t, res.IsValid)
	assert.Equal(t, []string{"Potential circular import: pkg.mod_a -> pkg.mod_b -> pkg.mod_a"}, res.Warnings)
}

func TestPythonImporter_MissingInterpreter(t *testing.T) {
	t.Parallel()
	err := PythonImporter{Bin: "openapi2mcp-no-such-python"}.Import(context.Background(), t.TempDir(), "pkg")
	assert.ErrorIs(t, err, ErrInterpreterUnavailable)
}

func TestFromSpec_GroupsByTag(t *testing.T) {
	t.Parallel()
	idx := petstoreIndex()
	idx.Models = []spec.ModelSpec{{Name: "Pet", Properties: []string{"id", "name"}, Required: []string{"name"}}}

	a := FromSpec(idx, "petstore_client")
	assert.Equal(t, "petstore_client", a.ClientPackageName)
	assert.Equal(t, "https://fallback.example.com", a.BaseURL)
	assert.Equal(t, []string{"apiKey", "oauth"}, a.AuthSchemes)

	require.Len(t, a.APIClasses, 2)
	assert.Equal(t, "PetsApi", a.APIClasses[0].Name)
	assert.Equal(t, "petstore_client.api.pets_api", a.APIClasses[0].Module)
	assert.Equal(t, []string{"list_pets", "create_pet", "get_pet_by_id"}, a.APIClasses[0].Methods)
	assert.Equal(t, "DefaultApi", a.APIClasses[1].Name)
	assert.Equal(t, []string{"store_order_post"}, a.APIClasses[1].Methods)

	require.Len(t, a.Operations, 4)
	assert.Equal(t, "listPets", a.Operations[0].Name)
	assert.Empty(t, a.Operations[3].Name)
	assert.Equal(t, "POST", a.Operations[3].HTTPMethod)
	for _, op := range a.Operations {
		assert.True(t, op.Resolved)
	}
	assert.Equal(t, []Model{{Name: "Pet", Properties: []string{"id", "name"}, RequiredFields: []string{"name"}}}, a.Models)
}
