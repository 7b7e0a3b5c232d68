package validate

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/openapi2mcp/internal/pysrc"
)

var (
	requiredProjectEntries = []string{"pyproject.toml", "requirements.txt", "README.md", "src/", "tests/", "config/"}
	recommendedModules     = []string{"server.py", "config.py", "models.py", "client.py", "tools.py"}
	recommendedPackages    = []string{"mcp", "pydantic", "httpx"}
	projectTableFields     = []string{"name", "version", "description"}
	readmeSections         = []string{"installation", "usage", "configuration"}
)

const minTestFiles = 3

// Project validates the structure and basic quality of a generated MCP
// server project rooted at dir.
func Project(dir string) Result {
	c := &collector{}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		c.errorf("Project directory does not exist: %s", dir)
		return c.result()
	}
	for _, entry := range requiredProjectEntries {
		if !exists(filepath.Join(dir, entry)) {
			c.errorf("Missing required file/directory: %s", entry)
		}
	}
	checkPyproject(filepath.Join(dir, "pyproject.toml"), c)
	checkRequirements(filepath.Join(dir, "requirements.txt"), c)
	checkSources(dir, c)
	checkTests(filepath.Join(dir, "tests"), c)
	checkDocs(dir, c)
	return c.result()
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// checkPyproject looks for the [project] table and its core keys. Only the
// table headers and top-level keys are read; values are not interpreted.
func checkPyproject(p string, c *collector) {
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		c.errorf("Invalid pyproject.toml: %v", err)
		return
	}
	defer f.Close()

	var (
		table     string
		inProject bool
		keys      = make(map[string]bool)
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				c.errorf("Invalid pyproject.toml: malformed table header %q", line)
				return
			}
			table = strings.Trim(line, "[] ")
			if table == "project" {
				inProject = true
			}
			continue
		}
		if table != "project" {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			keys[strings.TrimSpace(line[:i])] = true
		}
	}
	if err := sc.Err(); err != nil {
		c.errorf("Invalid pyproject.toml: %v", err)
		return
	}
	if !inProject {
		c.errorf("pyproject.toml missing [project] section")
		return
	}
	for _, field := range projectTableFields {
		if !keys[field] {
			c.warnf("pyproject.toml missing project.%s", field)
		}
	}
}

func checkRequirements(p string, c *collector) {
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		c.warnf("Cannot validate requirements.txt: %v", err)
		return
	}
	found := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := line
		for _, sep := range []string{"==", ">=", "<=", "~=", "[", ";", " "} {
			if i := strings.Index(name, sep); i >= 0 {
				name = name[:i]
			}
		}
		found[strings.ToLower(strings.TrimSpace(name))] = true
	}
	for _, pkg := range recommendedPackages {
		if !found[pkg] {
			c.warnf("Missing recommended package in requirements.txt: %s", pkg)
		}
	}
}

func checkSources(dir string, c *collector) {
	matches, _ := filepath.Glob(filepath.Join(dir, "src", "mcp_*"))
	sort.Strings(matches)
	var serviceDirs []string
	for _, m := range matches {
		if st, err := os.Stat(m); err == nil && st.IsDir() {
			serviceDirs = append(serviceDirs, m)
		}
	}
	if len(serviceDirs) == 0 {
		c.errorf("No MCP service directory found in src/")
		return
	}
	for _, svc := range serviceDirs {
		for _, name := range recommendedModules {
			p := filepath.Join(svc, name)
			if !exists(p) {
				c.warnf("Missing recommended file: %s/%s", filepath.Base(svc), name)
				continue
			}
			checkPythonModule(p, c)
		}
	}
}

func checkPythonModule(p string, c *collector) {
	name := filepath.Base(p)
	data, err := os.ReadFile(p)
	if err != nil {
		c.warnf("Cannot validate %s: %v", name, err)
		return
	}
	f, err := pysrc.Scan(string(data))
	if err != nil {
		c.errorf("Syntax error in %s: %v", name, err)
		return
	}
	if f.Docstring == "" {
		c.warnf("Missing module docstring: %s", name)
	}
	if len(f.Imports) == 0 && name != "__init__.py" {
		c.warnf("No imports found in %s - may be incomplete", name)
	}
}

func checkTests(testsDir string, c *collector) {
	if !exists(testsDir) {
		c.errorf("Tests directory missing")
		return
	}
	if !exists(filepath.Join(testsDir, "unit")) {
		c.warnf("Unit tests directory missing")
	}
	if !exists(filepath.Join(testsDir, "integration")) {
		c.warnf("Integration tests directory missing")
	}
	if !exists(filepath.Join(testsDir, "conftest.py")) {
		c.suggest("Consider adding conftest.py for shared test fixtures")
	}
	count := 0
	_ = filepath.WalkDir(testsDir, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasPrefix(d.Name(), "test_") && strings.HasSuffix(d.Name(), ".py") {
			count++
		}
		return nil
	})
	if count < minTestFiles {
		c.suggest("Consider adding more comprehensive test coverage")
	}
}

func checkDocs(dir string, c *collector) {
	data, err := os.ReadFile(filepath.Join(dir, "README.md"))
	switch {
	case err == nil:
		readme := strings.ToLower(string(data))
		for _, section := range readmeSections {
			if !strings.Contains(readme, section) {
				c.suggest(fmt.Sprintf("Consider adding %s section to README.md", section))
			}
		}
	case !errors.Is(err, os.ErrNotExist):
		c.warnf("Cannot validate README.md: %v", err)
	}
	if !exists(filepath.Join(dir, "docs")) {
		c.suggest("Consider adding docs/ directory for detailed documentation")
	}
}
