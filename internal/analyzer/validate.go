package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/openapi2mcp/internal/pysrc"
	"github.com/mark3labs/openapi2mcp/internal/validate"
)

var requiredClientFiles = []string{"__init__.py", "api_client.py", configFile}

// ErrInterpreterUnavailable is returned by an Importer that cannot run the
// interpreter at all. Validate reports it as a warning, not an error.
var ErrInterpreterUnavailable = errors.New("python interpreter unavailable")

// Importer checks that a generated package can be imported.
type Importer interface {
	Import(ctx context.Context, dir, pkg string) error
}

// PythonImporter runs `<Bin> -c "import <pkg>"` inside dir.
type PythonImporter struct {
	Bin     string
	Timeout time.Duration
}

func (p PythonImporter) Import(ctx context.Context, dir, pkg string) error {
	bin := p.Bin
	if bin == "" {
		bin = "python3"
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("%w: %v", ErrInterpreterUnavailable, err)
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, bin, "-c", "import "+pkg)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("%w\n%s", err, msg)
		}
		return err
	}
	return nil
}

// Validate checks that the generated client under clientDir is complete:
// required files, api/ and models/ directories, importability and relative
// import cycles.
func Validate(ctx context.Context, clientDir string, opts ...Option) validate.Result {
	o := buildOptions(opts)
	res := validate.Result{Errors: []string{}, Warnings: []string{}, Suggestions: []string{}}

	root, pkg, err := packageRoot(clientDir, o.packageName)
	if err != nil {
		res.Errors = append(res.Errors, "Missing API directory: api/")
		if o.packageName != "" {
			root, pkg = filepath.Join(clientDir, o.packageName), o.packageName
		} else {
			root, pkg = clientDir, filepath.Base(clientDir)
		}
	}
	for _, f := range requiredClientFiles {
		if _, err := os.Stat(filepath.Join(root, f)); err != nil {
			res.Errors = append(res.Errors, "Missing required file: "+f)
		}
	}
	if !isDir(filepath.Join(root, modelsDir)) {
		res.Warnings = append(res.Warnings, "Missing models directory: models/")
	}

	if len(res.Errors) == 0 {
		imp := o.importer
		if imp == nil {
			imp = PythonImporter{Timeout: 30 * time.Second}
		}
		if err := imp.Import(ctx, filepath.Dir(root), pkg); err != nil {
			if errors.Is(err, ErrInterpreterUnavailable) {
				res.Warnings = append(res.Warnings, "Skipping import check: "+err.Error())
			} else {
				res.Errors = append(res.Errors, fmt.Sprintf("Generated client failed to import: %v", err))
			}
		}
	}

	cycles, err := importCycles(root, pkg)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Could not analyze imports: %v", err))
	}
	for _, c := range cycles {
		res.Warnings = append(res.Warnings, "Potential circular import: "+strings.Join(c, " -> "))
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

// importCycles builds the graph of imports between modules of the package
// and returns each elementary cycle found by depth-first search once,
// rotated to start at its smallest module.
func importCycles(root, pkg string) ([][]string, error) {
	graph, err := importGraph(root, pkg)
	if err != nil {
		return nil, err
	}
	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(nodes))
	var (
		stack  []string
		cycles [][]string
		seen   = make(map[string]bool)
	)
	var visit func(n string)
	visit = func(n string) {
		color[n] = grey
		stack = append(stack, n)
		for _, next := range graph[n] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				i := len(stack) - 1
				for stack[i] != next {
					i--
				}
				cycle := rotate(stack[i:])
				key := strings.Join(cycle, ">")
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, append(cycle, cycle[0]))
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}
	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles, nil
}

func rotate(cycle []string) []string {
	min := 0
	for i, n := range cycle {
		if n < cycle[min] {
			min = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[min:]...)
	return append(out, cycle[:min]...)
}

// importGraph maps each module of the package (dotted name) to the sorted
// package modules it imports.
func importGraph(root, pkg string) (map[string][]string, error) {
	files := make(map[string]*pysrc.File)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".py" {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		f, err := pysrc.Scan(string(src))
		if err != nil {
			return nil
		}
		files[moduleName(pkg, rel)] = f
		return nil
	})
	if err != nil {
		return nil, err
	}

	graph := make(map[string][]string, len(files))
	for mod, f := range files {
		targets := make(map[string]bool)
		for _, imp := range f.Imports {
			for _, t := range resolveImport(mod, isPackageModule(mod, files), imp, files) {
				if t != mod {
					targets[t] = true
				}
			}
		}
		edges := make([]string, 0, len(targets))
		for t := range targets {
			edges = append(edges, t)
		}
		sort.Strings(edges)
		graph[mod] = edges
	}
	return graph, nil
}

// moduleName turns "api/pet_api.py" into "pkg.api.pet_api" and
// "api/__init__.py" into "pkg.api".
func moduleName(pkg, rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")
	rel = strings.TrimSuffix(strings.TrimSuffix(rel, "__init__"), "/")
	if rel == "" {
		return pkg
	}
	return pkg + "." + strings.ReplaceAll(rel, "/", ".")
}

// isPackageModule reports whether mod came from an __init__.py, which
// changes the base of its relative imports.
func isPackageModule(mod string, files map[string]*pysrc.File) bool {
	for other := range files {
		if strings.HasPrefix(other, mod+".") {
			return true
		}
	}
	return !strings.Contains(mod, ".")
}

func resolveImport(mod string, isPkg bool, imp pysrc.Import, files map[string]*pysrc.File) []string {
	var base string
	if imp.Level > 0 {
		parts := strings.Split(mod, ".")
		if !isPkg {
			parts = parts[:len(parts)-1]
		}
		up := imp.Level - 1
		if up > len(parts) {
			return nil
		}
		parts = parts[:len(parts)-up]
		base = strings.Join(parts, ".")
		if imp.Module != "" {
			if base != "" {
				base += "."
			}
			base += imp.Module
		}
	} else {
		base = imp.Module
	}
	var out []string
	for _, name := range imp.Names {
		if _, ok := files[base+"."+name]; ok {
			out = append(out, base+"."+name)
		}
	}
	if len(out) == 0 {
		if _, ok := files[base]; ok {
			out = append(out, base)
		}
	}
	return out
}
