package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// Document is a loaded OpenAPI document. Raw is the parsed mapping and the
// source of truth for structural validation; Typed is the kin-openapi view
// and is nil when the document could not be loaded as OpenAPI 3.
type Document struct {
	Source    string
	Format    string
	Version   int
	Converted bool // Swagger 2.0 input converted to OpenAPI 3
	Raw       map[string]any
	Typed     *openapi3.T
	TypedErr  error
	Bytes     []byte
	Order     keyOrder
}

// keyOrder remembers the declaration order of paths and their methods, which
// Go maps lose.
type keyOrder struct {
	Paths   []string
	Methods map[string][]string
}

func readKeyOrder(data []byte) keyOrder {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil || len(root.Content) == 0 {
		return keyOrder{}
	}
	paths := mappingValue(root.Content[0], "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return keyOrder{}
	}
	order := keyOrder{Methods: make(map[string][]string)}
	for i := 0; i+1 < len(paths.Content); i += 2 {
		p := paths.Content[i].Value
		order.Paths = append(order.Paths, p)
		item := paths.Content[i+1]
		if item.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			order.Methods[p] = append(order.Methods[p], strings.ToLower(item.Content[j].Value))
		}
	}
	return order
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// Title returns info.title or an empty string.
func (d *Document) Title() string {
	info, _ := d.Raw["info"].(map[string]any)
	s, _ := info["title"].(string)
	return strings.TrimSpace(s)
}

// Description returns info.description or an empty string.
func (d *Document) Description() string {
	info, _ := d.Raw["info"].(map[string]any)
	s, _ := info["description"].(string)
	return strings.TrimSpace(s)
}

// ServerURLs lists servers[].url in declaration order.
func (d *Document) ServerURLs() []string {
	list, _ := d.Raw["servers"].([]any)
	var out []string
	for _, item := range list {
		m, _ := item.(map[string]any)
		if s, ok := m["url"].(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// SecuritySchemeNames lists components.securitySchemes keys, sorted.
func (d *Document) SecuritySchemeNames() []string {
	comps, _ := d.Raw["components"].(map[string]any)
	schemes, _ := comps["securitySchemes"].(map[string]any)
	out := make([]string, 0, len(schemes))
	for name := range schemes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LocalPath returns a filesystem path holding the document in OpenAPI 3 form,
// writing it into dir when the original is remote or was converted.
func (d *Document) LocalPath(dir string) (string, error) {
	if !d.Converted && d.Source != "" && !strings.Contains(d.Source, "://") {
		if _, err := os.Stat(d.Source); err == nil {
			return d.Source, nil
		}
	}
	name := "openapi.yaml"
	if d.Format == formatJSON {
		name = "openapi.json"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("spec: create %s: %w", dir, err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, d.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("spec: write %s: %w", p, err)
	}
	return p, nil
}
