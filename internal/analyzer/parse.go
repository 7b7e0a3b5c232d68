package analyzer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mark3labs/openapi2mcp/internal/pysrc"
	"github.com/mark3labs/openapi2mcp/internal/spec"
)

const (
	apiDir         = "api"
	modelsDir      = "models"
	apiFileSuffix  = "_api.py"
	apiClassSuffix = "Api"
	configFile     = "configuration.py"
)

// transport variants generated next to every API method
var variantSuffixes = []string{"_with_http_info", "_without_preload_content"}

// ErrNoAPIDirectory is returned when no package with an api/ directory can be
// found under the client directory.
var ErrNoAPIDirectory = errors.New("no api/ directory found")

// Option configures Parse and Validate.
type Option func(*options)

type options struct {
	packageName string
	index       *spec.OperationIndex
	importer    Importer
}

// WithPackageName names the generated package inside the client directory.
func WithPackageName(name string) Option { return func(o *options) { o.packageName = name } }

// WithSpecIndex supplies the OpenAPI operations the client was generated
// from, so HTTP methods, paths and parameters can be recovered.
func WithSpecIndex(idx *spec.OperationIndex) Option { return func(o *options) { o.index = idx } }

// WithImporter replaces the importability check used by Validate.
func WithImporter(imp Importer) Option { return func(o *options) { o.importer = imp } }

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// packageRoot finds the directory holding the generated package: dir/<name>
// when it has an api/ directory, dir itself when it does, otherwise the
// first subdirectory (by name) that does.
func packageRoot(dir, name string) (root, pkg string, err error) {
	if name != "" && isDir(filepath.Join(dir, name, apiDir)) {
		return filepath.Join(dir, name), name, nil
	}
	if isDir(filepath.Join(dir, apiDir)) {
		abs, _ := filepath.Abs(dir)
		return dir, filepath.Base(abs), nil
	}
	entries, rerr := os.ReadDir(dir)
	if rerr != nil {
		return "", "", fmt.Errorf("analyzer: read %s: %w", dir, rerr)
	}
	for _, e := range entries {
		if e.IsDir() && isDir(filepath.Join(dir, e.Name(), apiDir)) {
			return filepath.Join(dir, e.Name()), e.Name(), nil
		}
	}
	return "", "", fmt.Errorf("analyzer: %s: %w", dir, ErrNoAPIDirectory)
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

// Parse scans the generated client under clientDir.
func Parse(clientDir string, opts ...Option) (*ClientAnalysis, error) {
	o := buildOptions(opts)
	root, pkg, err := packageRoot(clientDir, o.packageName)
	if err != nil {
		return nil, err
	}
	a := &ClientAnalysis{ClientPackageName: pkg}

	classes, err := scanAPIClasses(root, pkg)
	if err != nil {
		return nil, err
	}
	a.APIClasses = classes

	models, err := scanModels(root)
	if err != nil {
		return nil, err
	}
	a.Models = models

	if data, err := os.ReadFile(filepath.Join(root, configFile)); err == nil {
		a.BaseURL = extractBaseURL(string(data))
		a.AuthSchemes = extractAuthSchemes(string(data))
	}

	c := newCorrelator(o.index)
	for _, cls := range a.APIClasses {
		for _, m := range cls.Methods {
			op := c.operation(cls.Name, m)
			if !op.Resolved && o.index != nil {
				a.Warnings = append(a.Warnings, fmt.Sprintf("Could not match %s.%s to an OpenAPI operation; HTTP method and path unknown", cls.Name, m))
			}
			a.Operations = append(a.Operations, op)
		}
	}
	if o.index != nil {
		a.AuthSchemes = union(a.AuthSchemes, o.index.SecuritySchemes)
		if a.BaseURL == "" && len(o.index.Servers) > 0 {
			a.BaseURL = o.index.Servers[0]
		}
	}
	if a.AuthSchemes == nil {
		a.AuthSchemes = []string{}
	}
	return a, nil
}

func scanAPIClasses(root, pkg string) ([]APIClass, error) {
	files, err := filepath.Glob(filepath.Join(root, apiDir, "*"+apiFileSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	var out []APIClass
	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("analyzer: read %s: %w", f, err)
		}
		scanned, err := pysrc.Scan(string(src))
		if err != nil {
			return nil, fmt.Errorf("analyzer: scan %s: %w", f, err)
		}
		module := pkg + "." + apiDir + "." + strings.TrimSuffix(filepath.Base(f), ".py")
		rel := filepath.ToSlash(filepath.Join(apiDir, filepath.Base(f)))
		for _, cls := range scanned.Classes {
			if strings.HasPrefix(cls.Name, "_") || !strings.HasSuffix(cls.Name, apiClassSuffix) {
				continue
			}
			out = append(out, APIClass{
				Name:           cls.Name,
				Module:         module,
				Methods:        publicMethods(cls),
				SourceLocation: fmt.Sprintf("%s:%d", rel, cls.Line),
			})
		}
	}
	return out, nil
}

// publicMethods lists non-underscore methods in declaration order, dropping
// transport variants whose base method is present.
func publicMethods(cls pysrc.Class) []string {
	present := make(map[string]bool, len(cls.Methods))
	for _, m := range cls.Methods {
		present[m.Name] = true
	}
	methods := []string{}
	seen := make(map[string]bool)
	for _, m := range cls.Methods {
		if strings.HasPrefix(m.Name, "_") || seen[m.Name] {
			continue
		}
		if base, ok := variantBase(m.Name); ok && present[base] {
			continue
		}
		seen[m.Name] = true
		methods = append(methods, m.Name)
	}
	return methods
}

func variantBase(name string) (string, bool) {
	for _, suffix := range variantSuffixes {
		if base, ok := strings.CutSuffix(name, suffix); ok && base != "" {
			return base, true
		}
	}
	return "", false
}

func scanModels(root string) ([]Model, error) {
	files, err := filepath.Glob(filepath.Join(root, modelsDir, "*.py"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	models := []Model{}
	for _, f := range files {
		if filepath.Base(f) == "__init__.py" {
			continue
		}
		src, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("analyzer: read %s: %w", f, err)
		}
		scanned, err := pysrc.Scan(string(src))
		if err != nil {
			return nil, fmt.Errorf("analyzer: scan %s: %w", f, err)
		}
		for _, cls := range scanned.Classes {
			if strings.HasPrefix(cls.Name, "_") {
				continue
			}
			models = append(models, modelOf(cls))
		}
	}
	return models, nil
}

// modelOf takes properties from the constructor when there is one, and from
// annotated class fields (pydantic output) otherwise.
func modelOf(cls pysrc.Class) Model {
	m := Model{Name: cls.Name, Properties: []string{}, RequiredFields: []string{}}
	if ctor, ok := cls.Method("__init__"); ok {
		for i, p := range ctor.Params {
			if (i == 0 && p.Name == "self") || p.Star > 0 {
				continue
			}
			m.Properties = append(m.Properties, p.Name)
			if !p.HasDefault {
				m.RequiredFields = append(m.RequiredFields, p.Name)
			}
		}
		return m
	}
	for _, f := range cls.Fields {
		if strings.HasPrefix(f.Name, "_") || strings.HasPrefix(f.Annotation, "ClassVar") {
			continue
		}
		m.Properties = append(m.Properties, f.Name)
		if fieldRequired(f) {
			m.RequiredFields = append(m.RequiredFields, f.Name)
		}
	}
	return m
}

func fieldRequired(f pysrc.Field) bool {
	if strings.HasPrefix(f.Annotation, "Optional[") || strings.HasSuffix(f.Annotation, "| None") {
		return false
	}
	if !f.HasDefault {
		return true
	}
	// Field(...) and Field(description=...) declare no default value.
	if args, ok := strings.CutPrefix(f.Default, "Field("); ok {
		args = strings.TrimSpace(args)
		return strings.HasPrefix(args, "...") || (!strings.Contains(args, "default") && !strings.HasPrefix(args, "None"))
	}
	return false
}

var (
	hostRe     = regexp.MustCompile(`self\.(?:host|_base_path)\s*=\s*["']([^"']+)["']`)
	authKeyRe  = regexp.MustCompile(`^\s*auth\[['"]([^'"]+)['"]\]\s*=`)
	authDictRe = regexp.MustCompile(`^\s*['"]([^'"]+)['"]\s*:\s*(?:\{|$)`)
)

func extractBaseURL(src string) string {
	if m := hostRe.FindStringSubmatch(src); m != nil {
		return m[1]
	}
	return ""
}

// extractAuthSchemes reads the scheme names defined inside the
// auth_settings method of the generated configuration.
func extractAuthSchemes(src string) []string {
	lines := strings.Split(src, "\n")
	start := -1
	for i, l := range lines {
		if strings.Contains(l, "def auth_settings(") {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	defIndent := len(lines[start]) - len(strings.TrimLeft(lines[start], " \t"))
	set := make(map[string]bool)
	for _, l := range lines[start+1:] {
		trimmed := strings.TrimSpace(l)
		if trimmed != "" && len(l)-len(strings.TrimLeft(l, " \t")) <= defIndent {
			break
		}
		if m := authKeyRe.FindStringSubmatch(l); m != nil {
			set[m[1]] = true
		} else if m := authDictRe.FindStringSubmatch(l); m != nil {
			set[m[1]] = true
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func union(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
