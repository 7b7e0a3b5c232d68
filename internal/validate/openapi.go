package validate

import (
	"fmt"
	"sort"
	"strings"
)

var (
	requiredRootFields = []string{"openapi", "info", "paths"}
	requiredInfoFields = []string{"title", "version"}
	supportedVersions  = map[string]bool{
		"3.0.0": true, "3.0.1": true, "3.0.2": true, "3.0.3": true, "3.1.0": true,
	}
	httpMethods = map[string]bool{
		"get": true, "post": true, "put": true, "delete": true,
		"patch": true, "head": true, "options": true, "trace": true,
	}
)

const largeAPIOperations = 100

// OpenAPI validates a raw OpenAPI mapping for MCP server generation.
//
// Sections run in a fixed order (root, version, info, paths, components,
// servers, advisory) and every section runs regardless of earlier findings.
func OpenAPI(doc map[string]any) Result {
	c := &collector{}
	checkRoot(doc, c)
	checkVersion(doc, c)
	checkInfo(doc, c)
	checkPaths(doc, c)
	if comps, ok := doc["components"]; ok {
		checkComponents(asMap(comps), c)
	}
	if servers, ok := doc["servers"]; ok {
		checkServers(servers, c)
	}
	checkRecommendations(doc, c)
	return c.result()
}

func checkRoot(doc map[string]any, c *collector) {
	for _, field := range requiredRootFields {
		if _, ok := doc[field]; !ok {
			c.errorf("Missing required root field: %s", field)
		}
	}
}

func checkVersion(doc map[string]any, c *collector) {
	v, ok := doc["openapi"]
	version := ""
	if ok && v != nil {
		version = fmt.Sprint(v)
	}
	if supportedVersions[version] {
		return
	}
	if version != "" {
		c.warnf("OpenAPI version %s may not be fully supported", version)
		return
	}
	c.errorf("OpenAPI version is required")
}

func checkInfo(doc map[string]any, c *collector) {
	info := asMap(doc["info"])
	for _, field := range requiredInfoFields {
		if _, ok := info[field]; !ok {
			c.errorf("Missing required info field: %s", field)
		}
	}
	if _, ok := info["description"]; !ok {
		c.warnf("Info section missing description - recommended for MCP servers")
	}
}

func checkPaths(doc map[string]any, c *collector) {
	paths := asMap(doc["paths"])
	if len(paths) == 0 {
		c.errorf("No paths defined in specification")
		return
	}
	seen := make(map[string]bool)
	for _, p := range sortedKeys(paths) {
		if !strings.HasPrefix(p, "/") {
			c.warnf("Path should start with '/': %s", p)
		}
		item := asMap(paths[p])
		for _, method := range sortedKeys(item) {
			if !httpMethods[strings.ToLower(method)] {
				continue
			}
			op := asMap(item[method])
			label := strings.ToUpper(method) + " " + p

			switch id := asString(op["operationId"]); {
			case id == "":
				c.warnf("Missing operationId for %s", label)
			case seen[id]:
				c.errorf("Duplicate operationId: %s", id)
			default:
				seen[id] = true
			}
			if asString(op["summary"]) == "" && asString(op["description"]) == "" {
				c.warnf("No summary or description for %s", label)
			}
			checkParameters(asSlice(op["parameters"]), label, c)
			checkResponses(asMap(op["responses"]), label, c)
		}
	}
}

func checkParameters(params []any, label string, c *collector) {
	names := make(map[string]bool)
	for _, raw := range params {
		param := asMap(raw)
		name := asString(param["name"])
		if name == "" {
			c.warnf("Parameter missing name in %s", label)
			continue
		}
		if names[name] {
			c.warnf("Duplicate parameter '%s' in %s", name, label)
		}
		names[name] = true
		_, hasSchema := param["schema"]
		_, hasContent := param["content"]
		if !hasSchema && !hasContent {
			c.warnf("Parameter '%s' missing schema in %s", name, label)
		}
	}
}

func checkResponses(responses map[string]any, label string, c *collector) {
	if len(responses) == 0 {
		c.warnf("No responses defined for %s", label)
		return
	}
	for code := range responses {
		if strings.HasPrefix(code, "2") {
			return
		}
	}
	c.warnf("No success response (2xx) defined for %s", label)
}

func checkComponents(comps map[string]any, c *collector) {
	schemas := asMap(comps["schemas"])
	refs := newRefGraph(schemas)
	for _, name := range sortedKeys(schemas) {
		def := asMap(schemas[name])
		_, hasType := def["type"]
		_, hasRef := def["$ref"]
		if !hasType && !hasRef {
			c.warnf("Schema '%s' missing type definition", name)
		}
		if refs.reachesCycle(name) {
			c.warnf("Potential circular reference in schema '%s'", name)
		}
	}
}

const (
	unvisited = iota
	onChain
	acyclic
	cyclic
)

// refGraph walks local schema references. Each schema is expanded once per
// document; the outcome is remembered for later lookups.
type refGraph struct {
	schemas map[string]any
	state   map[string]int
}

func newRefGraph(schemas map[string]any) *refGraph {
	return &refGraph{schemas: schemas, state: make(map[string]int, len(schemas))}
}

// reachesCycle reports whether a reference cycle is reachable from name.
func (g *refGraph) reachesCycle(name string) bool {
	switch g.state[name] {
	case onChain, cyclic:
		return true
	case acyclic:
		return false
	}
	target, ok := g.schemas[name]
	if !ok {
		g.state[name] = acyclic
		return false
	}
	g.state[name] = onChain
	for _, ref := range schemaRefs(asMap(target)) {
		next, ok := strings.CutPrefix(ref, "#/components/schemas/")
		if !ok {
			continue
		}
		if g.reachesCycle(next) {
			g.state[name] = cyclic
			return true
		}
	}
	g.state[name] = acyclic
	return false
}

// schemaRefs lists the $ref targets one level below def: properties, array
// items, additionalProperties and composition members.
func schemaRefs(def map[string]any) []string {
	var refs []string
	add := func(v any) {
		m := asMap(v)
		if ref := asString(m["$ref"]); ref != "" {
			refs = append(refs, ref)
			return
		}
		if ref := asString(asMap(m["items"])["$ref"]); ref != "" {
			refs = append(refs, ref)
		}
	}
	props := asMap(def["properties"])
	for _, name := range sortedKeys(props) {
		add(props[name])
	}
	add(def["items"])
	add(def["additionalProperties"])
	for _, key := range []string{"allOf", "oneOf", "anyOf"} {
		for _, member := range asSlice(def[key]) {
			add(member)
		}
	}
	return refs
}

func checkServers(raw any, c *collector) {
	servers := asSlice(raw)
	if len(servers) == 0 {
		c.warnf("No servers defined - using default server")
		return
	}
	for i, s := range servers {
		server := asMap(s)
		u, ok := server["url"]
		if !ok {
			c.errorf("Server %d missing URL", i)
			continue
		}
		url := fmt.Sprint(u)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "/") {
			c.warnf("Server URL may be invalid: %s", url)
		}
	}
}

func checkRecommendations(doc map[string]any, c *collector) {
	paths := asMap(doc["paths"])
	total := 0
	rateLimited := false
	for _, item := range paths {
		for method, op := range asMap(item) {
			if httpMethods[strings.ToLower(method)] {
				total++
			}
			for _, resp := range asMap(asMap(op)["responses"]) {
				if mentions(resp, "x-ratelimit") {
					rateLimited = true
				}
			}
		}
	}
	if total > largeAPIOperations {
		c.suggest("Consider splitting large APIs into multiple MCP servers")
	}
	if len(asMap(asMap(doc["components"])["securitySchemes"])) == 0 {
		c.suggest("Consider adding authentication schemes for production APIs")
	}
	if !rateLimited {
		c.suggest("Consider documenting rate limiting in API responses")
	}
}

// mentions reports whether needle occurs, case-insensitively, in any key or
// string value nested under v.
func mentions(v any, needle string) bool {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			if strings.Contains(strings.ToLower(k), needle) || mentions(item, needle) {
				return true
			}
		}
	case []any:
		for _, item := range val {
			if mentions(item, needle) {
				return true
			}
		}
	case string:
		return strings.Contains(strings.ToLower(val), needle)
	}
	return false
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
