package assembler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/clientgen"
	"github.com/mark3labs/openapi2mcp/internal/mcpconfig"
	"github.com/mark3labs/openapi2mcp/internal/pipeline"
	"github.com/mark3labs/openapi2mcp/internal/spec"
	"github.com/mark3labs/openapi2mcp/internal/validate"
)

const petstoreSpec = `openapi: 3.0.0
info:
  title: Swagger Petstore
  version: 1.0.0
servers:
  - url: https://petstore.example.com/v1
paths:
  /pets:
    get:
      operationId: listPets
      summary: List all pets
      tags: [pets]
      parameters:
        - name: limit
          in: query
          schema:
            type: integer
      responses:
        "200":
          description: ok
    post:
      operationId: createPet
      summary: Create a pet
      tags: [pets]
      requestBody:
        required: true
        content:
          application/json:
            schema:
              $ref: '#/components/schemas/Pet'
      responses:
        "201":
          description: created
  /pets/{petId}:
    get:
      operationId: getPetById
      description: Info for a specific pet. Returns 404 when missing.
      tags: [pets]
      parameters:
        - name: petId
          in: path
          required: true
          schema:
            type: string
      responses:
        "200":
          description: ok
components:
  schemas:
    Pet:
      type: object
      required: [name]
      properties:
        id:
          type: integer
        name:
          type: string
        class:
          type: string
`

func newAssembler(t *testing.T) *Assembler {
	t.Helper()
	a, err := New(Config{GeneratorVersion: "test"})
	require.NoError(t, err)
	return a
}

func writeSpec(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "petstore.yaml")
	require.NoError(t, os.WriteFile(p, []byte(petstoreSpec), 0o644))
	return p
}

// petstoreProject builds the project the pipeline would hand over for the
// basic engine.
func petstoreProject(t *testing.T, outDir string) *pipeline.Project {
	t.Helper()
	ctx := context.Background()
	doc, err := spec.Load(ctx, writeSpec(t))
	require.NoError(t, err)
	idx, err := spec.BuildOperationIndex(ctx, doc)
	require.NoError(t, err)
	a := analyzer.FromSpec(idx, "petstore_client")
	cfg := mcpconfig.SynthesizeProject(a, mcpconfig.ProjectOptions{
		ProjectName:   "petstore",
		Author:        "Dev",
		IncludeDocker: true,
		OpenAPISpec:   "petstore.yaml",
		OutputDir:     outDir,
		Client:        clientgen.ForAsyncClient("petstore_client"),
	})
	tools, r := pipeline.DefaultTools{}.Tools(cfg.Integration, a)
	require.True(t, r.Success, "%v", r.Errors)
	return &pipeline.Project{Config: cfg, Document: doc, Index: idx, Analysis: a, Tools: tools}
}

func assemble(t *testing.T, a *Assembler, p *pipeline.Project) pipeline.Result {
	t.Helper()
	ctx := context.Background()
	return pipeline.Combine(
		a.Structure(ctx, p),
		a.OpenAPI(ctx, p),
		a.Config(ctx, p),
		a.Tests(ctx, p),
		a.Docker(ctx, p),
		a.Examples(ctx, p),
	)
}

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}

func TestNew_ParsesAllTemplates(t *testing.T) {
	t.Parallel()
	a := newAssembler(t)
	entries, err := templateFS.ReadDir("templates")
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotNil(t, a.tmpl.Lookup(e.Name()), e.Name())
	}
}

func TestAssemble_OpenAPIProject(t *testing.T) {
	t.Parallel()
	p := petstoreProject(t, t.TempDir())
	res := assemble(t, newAssembler(t), p)
	require.True(t, res.Success, "%v", res.Errors)
	assert.Empty(t, res.Warnings)

	dir := p.Dir()
	for _, rel := range []string{
		".openapi2mcp.json",
		"README.md",
		"pyproject.toml",
		"requirements.txt",
		"src/mcp_petstore/__init__.py",
		"src/mcp_petstore/server.py",
		"src/mcp_petstore/tools.py",
		"src/mcp_petstore/models.py",
		"src/mcp_petstore/client.py",
		"src/mcp_petstore/config.py",
		"src/mcp_petstore/tool_definitions.json",
		"config/api_config.yaml",
		"config/mcp_config.yaml",
		"config/openapi.yaml",
		"config/server_config.yaml",
		"tests/unit/test_tools.py",
		"tests/integration/test_api_integration.py",
		"docker/Dockerfile",
		".dockerignore",
		"examples/usage_examples.py",
		"docs/USAGE_EXAMPLES.md",
	} {
		assert.FileExists(t, filepath.Join(dir, rel))
		assert.Contains(t, res.FilesCreated, filepath.Join(dir, rel))
	}
	assert.NoFileExists(t, filepath.Join(dir, ".github/workflows/ci.yml"))

	var defs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, "src/mcp_petstore/tool_definitions.json"))), &defs))
	require.Len(t, defs, 3)
	assert.Equal(t, "list_pets", defs[0]["name"])
	assert.Equal(t, "Info for a specific pet.", defs[2]["description"])

	tools := readFile(t, filepath.Join(dir, "src/mcp_petstore/tools.py"))
	assert.Contains(t, tools, `"get_pet_by_id": {`)
	assert.Contains(t, tools, `"path_params": ["petId"],`)
	assert.Contains(t, tools, `"has_body": True,`)

	models := readFile(t, filepath.Join(dir, "src/mcp_petstore/models.py"))
	assert.Contains(t, models, "class Pet(BaseModel):")
	assert.Contains(t, models, "    name: Any\n")
	assert.Contains(t, models, `    class_: Optional[Any] = Field(None, alias="class")`)

	cfg, err := mcpconfig.FromYAML([]byte(readFile(t, filepath.Join(dir, "config/mcp_config.yaml"))))
	require.NoError(t, err)
	assert.Equal(t, p.Config, cfg)

	assert.Contains(t, readFile(t, filepath.Join(dir, "pyproject.toml")), `target-version = "py311"`)
	assert.Equal(t, petstoreSpec, readFile(t, filepath.Join(dir, "config/openapi.yaml")))

	check := validate.Project(dir)
	assert.True(t, check.IsValid, "%v", check.Errors)
	assert.Empty(t, check.Warnings)
}

func TestAssemble_ExecutableBits(t *testing.T) {
	t.Parallel()
	p := petstoreProject(t, t.TempDir())
	require.True(t, assemble(t, newAssembler(t), p).Success)

	for rel, want := range map[string]os.FileMode{
		"Makefile":              0o755,
		"scripts/run_server.py": 0o755,
		"docker/entrypoint.sh":  0o755,
		"README.md":             0o644,
		"tests/conftest.py":     0o644,
	} {
		st, err := os.Stat(filepath.Join(p.Dir(), rel))
		require.NoError(t, err)
		assert.Equal(t, want, st.Mode().Perm(), rel)
	}
}

func TestStructure_RefusesNonEmptyDirectory(t *testing.T) {
	t.Parallel()
	a := newAssembler(t)
	p := petstoreProject(t, t.TempDir())
	require.NoError(t, os.MkdirAll(p.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(p.Dir(), "keep.txt"), []byte("x"), 0o644))

	res := a.Structure(context.Background(), p)
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "is not empty (use --force to overwrite)")

	p.DryRun = true
	assert.False(t, a.Structure(context.Background(), p).Success, "dry run still checks the directory")

	p.DryRun, p.Force = false, true
	res = a.Structure(context.Background(), p)
	assert.True(t, res.Success, "%v", res.Errors)
	assert.FileExists(t, filepath.Join(p.Dir(), "keep.txt"))
	assert.DirExists(t, filepath.Join(p.Dir(), "tests", "integration"))
}

func TestAssemble_DryRunWritesNothing(t *testing.T) {
	t.Parallel()
	p := petstoreProject(t, t.TempDir())
	p.DryRun = true
	res := assemble(t, newAssembler(t), p)
	require.True(t, res.Success, "%v", res.Errors)
	assert.Contains(t, res.FilesCreated, filepath.Join(p.Dir(), "src", "mcp_petstore", "server.py"))
	_, err := os.Stat(p.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestAssemble_Deterministic(t *testing.T) {
	t.Parallel()
	a := newAssembler(t)
	p := petstoreProject(t, t.TempDir())
	p.Force = true

	require.True(t, assemble(t, a, p).Success)
	first, err := readTree(p.Dir(), "")
	require.NoError(t, err)
	require.True(t, assemble(t, a, p).Success)
	second, err := readTree(p.Dir(), "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for rel := range first {
		assert.False(t, strings.Contains(rel, ".tmp-openapi2mcp-"), "leftover temp file %s", rel)
	}
}

func TestAssemble_StandardProject(t *testing.T) {
	t.Parallel()
	a := newAssembler(t)
	cfg := mcpconfig.SynthesizeProject(&analyzer.ClientAnalysis{}, mcpconfig.ProjectOptions{
		ProjectName: "my-server",
		Description: `Says "hello"`,
		Author:      "Dev",
		IncludeCI:   true,
		OutputDir:   t.TempDir(),
	})
	p := &pipeline.Project{Config: cfg}
	ctx := context.Background()

	res := pipeline.Combine(a.Structure(ctx, p), a.Config(ctx, p), a.Tests(ctx, p))
	require.True(t, res.Success, "%v", res.Errors)

	dir := p.Dir()
	assert.Contains(t, readFile(t, filepath.Join(dir, "src/mcp_my_server/server.py")), "FastMCP(settings.server_name)")
	assert.Contains(t, readFile(t, filepath.Join(dir, "src/mcp_my_server/__init__.py")), `Says \"hello\"`)
	assert.FileExists(t, filepath.Join(dir, ".github/workflows/ci.yml"))
	assert.NoFileExists(t, filepath.Join(dir, "src/mcp_my_server/tool_definitions.json"))
	assert.NoFileExists(t, filepath.Join(dir, "tests/unit/test_tools.py"))

	check := validate.Project(dir)
	assert.True(t, check.IsValid, "%v", check.Errors)

	openapi := a.OpenAPI(ctx, p)
	assert.False(t, openapi.Success)
	assert.Equal(t, []string{"Failed to generate OpenAPI components: no OpenAPI document loaded"}, openapi.Errors)

	ex := a.Examples(ctx, p)
	assert.True(t, ex.Success)
	assert.False(t, ex.Critical)
}

func TestTests_UnsupportedFrameworkWarns(t *testing.T) {
	t.Parallel()
	p := petstoreProject(t, t.TempDir())
	p.Config.TestFramework = "unittest"
	p.DryRun = true
	res := newAssembler(t).Tests(context.Background(), p)
	assert.True(t, res.Success)
	assert.Equal(t, []string{`Test framework "unittest" is not supported, generating pytest tests`}, res.Warnings)
}

func TestOpenAPI_CopiesGeneratedClient(t *testing.T) {
	t.Parallel()
	p := petstoreProject(t, t.TempDir())
	p.ClientDir = filepath.Join("..", "analyzer", "testdata", "client", "petstore")
	p.Analysis.ClientPackageName = "petstore"
	p.DryRun = true

	res := newAssembler(t).OpenAPI(context.Background(), p)
	require.True(t, res.Success, "%v", res.Errors)
	assert.Contains(t, res.FilesCreated, filepath.Join(p.Dir(), "src", "petstore", "api", "pet_api.py"))
	assert.Contains(t, res.FilesCreated, filepath.Join(p.Dir(), "src", "petstore", "configuration.py"))
}

func TestOpenAPI_NoTools(t *testing.T) {
	t.Parallel()
	p := petstoreProject(t, t.TempDir())
	p.Tools = nil
	p.DryRun = true
	res := newAssembler(t).OpenAPI(context.Background(), p)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"No tools generated; server.py will expose an empty tool list"}, res.Warnings)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := petstoreProject(t, t.TempDir())
	res := newAssembler(t).Structure(ctx, p)
	assert.False(t, res.Success)
	_, err := os.Stat(p.Dir())
	assert.True(t, os.IsNotExist(err))
}

func TestIsExecutable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rel  string
		want bool
	}{
		{"Makefile", true},
		{"sub/makefile", true},
		{"docker/entrypoint.sh", true},
		{"tools/build.bash", true},
		{"scripts/run_server.py", true},
		{"src/mcp_x/server.py", false},
		{"README.md", false},
		{"scripts/README.md", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, isExecutable(tc.rel), tc.rel)
	}
}

func TestProjectID(t *testing.T) {
	t.Parallel()
	c := mcpconfig.ProjectConfig{ProjectName: "petstore", ServiceName: "petstore", Version: "1.0.0"}
	id := ProjectID(c)
	assert.Equal(t, id, ProjectID(c))
	assert.Len(t, id, 36)
	c.Version = "1.0.1"
	assert.NotEqual(t, id, ProjectID(c))
}

func TestNewModelView(t *testing.T) {
	t.Parallel()
	m := newModelView("order_item", []string{"id", "petId", "from", "2nd"}, []string{"petId"})
	assert.Equal(t, "OrderItem", m.Name)
	assert.Equal(t, []fieldView{
		{Name: "pet_id", Alias: "petId", Required: true},
		{Name: "id"},
		{Name: "from_", Alias: "from"},
		{Name: "field_2nd", Alias: "2nd"},
	}, m.Fields)
}
