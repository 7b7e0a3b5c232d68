package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/openapi2mcp/internal/validate"
)

func TestInit_GeneratesProject(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	stdout, stderr, err := execute(t, "init", "--name", "Weather Server", "-d", "Weather tools", "-o", out, "--no-ci")
	if err != nil {
		t.Fatalf("init: %v\n%s", err, stderr)
	}
	project := filepath.Join(out, "weather-server")
	if !strings.Contains(stdout, "Project created successfully at: "+project) {
		t.Fatalf("unexpected output:\n%s", stdout)
	}

	for _, rel := range []string{
		"src/mcp_weather_server/server.py",
		"src/mcp_weather_server/tools.py",
		"tests/conftest.py",
		"Dockerfile",
		"pyproject.toml",
	} {
		if _, err := os.Stat(filepath.Join(project, rel)); err != nil {
			t.Errorf("expected %s: %v", rel, err)
		}
	}
	if _, err := os.Stat(filepath.Join(project, ".github", "workflows", "ci.yml")); !os.IsNotExist(err) {
		t.Errorf("--no-ci should skip the workflow, stat err=%v", err)
	}
	readme, err := os.ReadFile(filepath.Join(project, "README.md"))
	if err != nil || !strings.Contains(string(readme), "Weather tools") {
		t.Errorf("README missing description: %v", err)
	}
	if res := validate.Project(project); !res.IsValid {
		t.Fatalf("generated project is invalid: %v", res.Errors)
	}
}

func TestInit_DryRun(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	stdout, _, err := execute(t, "init", "-n", "demo", "-o", out, "--no-docker", "--dry-run")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(stdout, "Planned writes to") || !strings.Contains(stdout, "- .github/workflows/ci.yml") {
		t.Fatalf("unexpected plan:\n%s", stdout)
	}
	if strings.Contains(stdout, "Dockerfile") {
		t.Fatalf("--no-docker should skip Docker files:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(out, "demo")); !os.IsNotExist(err) {
		t.Fatalf("dry-run wrote the project, stat err=%v", err)
	}
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	out := t.TempDir()
	if err := os.MkdirAll(filepath.Join(out, "demo"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(out, "demo", "keep.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	_, _, err := execute(t, "init", "-n", "demo", "-o", out)
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "--force") {
		t.Fatalf("error should suggest --force: %v", err)
	}

	if _, _, err := execute(t, "init", "-n", "demo", "-o", out, "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestInit_RequiresName(t *testing.T) {
	t.Parallel()
	for _, args := range [][]string{
		{"init"},
		{"init", "--name", "!!!"},
	} {
		_, _, err := execute(t, args...)
		if !errors.Is(err, ErrUsage) {
			t.Fatalf("%v: expected usage error, got %v", args, err)
		}
	}
}

func TestInitConfig_FromFile(t *testing.T) {
	var captured *InitConfig
	initRunner = func(ctx context.Context, cfg *InitConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { initRunner = runInit })

	cfgPath := writeFile(t, "openapi2mcp.yaml", strings.Join([]string{
		"name: From File",
		"python_version: '3.12'",
		"no-docker: yes",
		"testFramework: Unittest",
		"spec: ignored-by-init.yaml",
	}, "\n"))
	if _, _, err := execute(t, "-c", cfgPath, "init", "--author", "Grace"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}
	if captured.Name != "from-file" {
		t.Errorf("name mismatch: %q", captured.Name)
	}
	if captured.PythonVersion != "3.12" || !captured.NoDocker || captured.TestFramework != "unittest" {
		t.Errorf("file values not applied: %+v", captured)
	}
	if captured.Author != "Grace" {
		t.Errorf("flag should override: %q", captured.Author)
	}
	if captured.NoCI {
		t.Errorf("no-ci should default to false")
	}
}
