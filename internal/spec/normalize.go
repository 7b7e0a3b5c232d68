package spec

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// BuildOption configures how the OperationIndex is built from a document.
type BuildOption func(*buildConfig)

type buildConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		for _, t := range tags {
			if t = strings.TrimSpace(t); t == "" {
				continue
			}
			if c.includeTags == nil {
				c.includeTags = make(map[string]struct{}, len(tags))
			}
			c.includeTags[t] = struct{}{}
		}
	}
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) BuildOption {
	return func(c *buildConfig) {
		for _, t := range tags {
			if t = strings.TrimSpace(t); t == "" {
				continue
			}
			if c.excludeTags == nil {
				c.excludeTags = make(map[string]struct{}, len(tags))
			}
			c.excludeTags[t] = struct{}{}
		}
	}
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) BuildOption {
	return func(c *buildConfig) {
		for _, m := range methods {
			if c.methods == nil {
				c.methods = make(map[HttpMethod]struct{}, len(methods))
			}
			c.methods[HttpMethod(strings.ToLower(string(m)))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the regular expressions. An invalid pattern matches nothing.
func WithPathPatterns(patterns []string) BuildOption {
	return func(c *buildConfig) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				re = regexp.MustCompile("a^$")
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// BuildOperationIndex flattens the document's operations in declaration order
// (sorted order when the source order is unknown) and applies the filters.
func BuildOperationIndex(ctx context.Context, doc *Document, opts ...BuildOption) (*OperationIndex, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	if doc.Typed == nil {
		msg := "spec: document is not a loadable OpenAPI 3 document"
		if doc.TypedErr != nil {
			msg = fmt.Sprintf("%s: %v", msg, doc.TypedErr)
		}
		return nil, &SpecError{Code: ValidationError, Message: msg, Location: doc.Source, Cause: doc.TypedErr}
	}

	cfg := &buildConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	t := doc.Typed
	idx := &OperationIndex{
		Servers:         doc.ServerURLs(),
		SecuritySchemes: doc.SecuritySchemeNames(),
		Models:          rawModels(doc.Raw),
	}
	if t.Info != nil {
		idx.Title = safeStr(t.Info.Title)
		idx.Version = safeStr(t.Info.Version)
		idx.Description = safeStr(t.Info.Description)
	}
	defaultSecurity := securityNames(t.Security)

	for _, p := range orderedPaths(t.Paths, doc.Order) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item := t.Paths[p]
		if item == nil || !allowByPath(p, cfg) {
			continue
		}
		for _, m := range orderedMethods(p, doc.Order) {
			op := item.GetOperation(strings.ToUpper(string(m)))
			if op == nil {
				continue
			}
			if len(cfg.methods) > 0 {
				if _, ok := cfg.methods[m]; !ok {
					continue
				}
			}
			tags := make([]string, 0, len(op.Tags))
			for _, tag := range op.Tags {
				if tag = strings.TrimSpace(tag); tag != "" {
					tags = append(tags, tag)
				}
			}
			if !allowByTags(tags, cfg) {
				continue
			}

			security := defaultSecurity
			if op.Security != nil {
				security = securityNames(*op.Security)
			}
			method := strings.ToUpper(string(m))
			idx.Operations = append(idx.Operations, OperationSpec{
				ID:           method + " " + p,
				OperationID:  safeStr(op.OperationID),
				Method:       method,
				Path:         p,
				Summary:      safeStr(op.Summary),
				Description:  safeStr(op.Description),
				Tags:         tags,
				Deprecated:   op.Deprecated,
				Parameters:   mergeParameters(item.Parameters, op.Parameters),
				RequestBody:  toRequestBody(op.RequestBody),
				ResponseType: successResponseType(op.Responses),
				Security:     security,
			})
		}
	}
	return idx, nil
}

func orderedPaths(paths openapi3.Paths, order keyOrder) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range order.Paths {
		if _, ok := paths[p]; ok {
			if _, dup := seen[p]; !dup {
				seen[p] = struct{}{}
				out = append(out, p)
			}
		}
	}
	rest := make([]string, 0, len(paths))
	for p := range paths {
		if _, ok := seen[p]; !ok {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func orderedMethods(p string, order keyOrder) []HttpMethod {
	seen := make(map[HttpMethod]struct{}, len(methodOrder))
	out := make([]HttpMethod, 0, len(methodOrder))
	for _, key := range order.Methods[p] {
		if !IsHTTPMethod(key) {
			continue
		}
		m := HttpMethod(key)
		if _, dup := seen[m]; !dup {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	for _, m := range methodOrder {
		if _, ok := seen[m]; !ok {
			out = append(out, m)
		}
	}
	return out
}

func allowByPath(p string, cfg *buildConfig) bool {
	if len(cfg.pathRes) == 0 {
		return true
	}
	for _, re := range cfg.pathRes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

func allowByTags(tags []string, cfg *buildConfig) bool {
	if len(cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

// mergeParameters keeps declaration order: path-level parameters first,
// replaced in place by operation-level ones with the same location and name.
func mergeParameters(pathLevel, opLevel openapi3.Parameters) []ParameterSpec {
	var out []ParameterSpec
	pos := make(map[string]int)
	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			pm, ok := toParameter(ref)
			if !ok {
				continue
			}
			key := pm.In + ":" + pm.Name
			if i, exists := pos[key]; exists {
				out[i] = pm
				continue
			}
			pos[key] = len(out)
			out = append(out, pm)
		}
	}
	add(pathLevel)
	add(opLevel)
	return out
}

func toParameter(ref *openapi3.ParameterRef) (ParameterSpec, bool) {
	if ref == nil || ref.Value == nil {
		return ParameterSpec{}, false
	}
	p := ref.Value
	pm := ParameterSpec{
		Name:        safeStr(p.Name),
		In:          safeStr(p.In),
		Description: safeStr(p.Description),
		Required:    p.Required || p.In == openapi3.ParameterInPath,
	}
	switch {
	case p.Schema != nil && p.Schema.Value != nil:
		pm.Type = jsonType(p.Schema.Value)
	case len(p.Content) > 0:
		pm.Type = "object"
	}
	if pm.Type == "" {
		pm.Type = "string"
	}
	return pm, pm.Name != ""
}

func jsonType(s *openapi3.Schema) string {
	if s.Type != "" {
		return s.Type
	}
	if len(s.Properties) > 0 {
		return "object"
	}
	return ""
}

func toRequestBody(ref *openapi3.RequestBodyRef) *RequestBodySpec {
	if ref == nil || ref.Value == nil {
		return nil
	}
	rb := &RequestBodySpec{Required: ref.Value.Required}
	for ct := range ref.Value.Content {
		rb.ContentTypes = append(rb.ContentTypes, ct)
	}
	sort.Strings(rb.ContentTypes)
	mt := preferredMedia(ref.Value.Content, rb.ContentTypes)
	if mt == nil {
		rb.TypeName = "object"
		return rb
	}
	if isUploadContent(rb.ContentTypes) && hasBinary(mt.Schema, 0) {
		rb.TypeName = "file"
		return rb
	}
	rb.TypeName = schemaTypeName(mt.Schema)
	if rb.TypeName == "" {
		rb.TypeName = "object"
	}
	return rb
}

func preferredMedia(content openapi3.Content, sorted []string) *openapi3.MediaType {
	if mt := content["application/json"]; mt != nil {
		return mt
	}
	for _, ct := range sorted {
		if mt := content[ct]; mt != nil {
			return mt
		}
	}
	return nil
}

func isUploadContent(types []string) bool {
	for _, ct := range types {
		if ct == "multipart/form-data" || ct == "application/octet-stream" {
			return true
		}
	}
	return false
}

func hasBinary(ref *openapi3.SchemaRef, depth int) bool {
	if ref == nil || ref.Value == nil || depth > 4 {
		return false
	}
	v := ref.Value
	if v.Type == "string" && (v.Format == "binary" || v.Format == "base64") {
		return true
	}
	if hasBinary(v.Items, depth+1) {
		return true
	}
	for _, prop := range v.Properties {
		if hasBinary(prop, depth+1) {
			return true
		}
	}
	return false
}

// schemaTypeName renders a schema as the type name a generated client would
// use: component names for refs, List[X] for arrays, the JSON type otherwise.
func schemaTypeName(ref *openapi3.SchemaRef) string {
	if ref == nil {
		return ""
	}
	if ref.Ref != "" {
		return refName(ref.Ref)
	}
	if ref.Value == nil {
		return ""
	}
	v := ref.Value
	if v.Type == "array" {
		if inner := schemaTypeName(v.Items); inner != "" {
			return "List[" + inner + "]"
		}
	}
	return jsonType(v)
}

func refName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

func successResponseType(responses openapi3.Responses) string {
	codes := make([]string, 0, len(responses))
	for code := range responses {
		if strings.HasPrefix(code, "2") {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	for _, code := range codes {
		ref := responses[code]
		if ref == nil || ref.Value == nil || len(ref.Value.Content) == 0 {
			continue
		}
		keys := make([]string, 0, len(ref.Value.Content))
		for ct := range ref.Value.Content {
			keys = append(keys, ct)
		}
		sort.Strings(keys)
		if mt := preferredMedia(ref.Value.Content, keys); mt != nil {
			if name := schemaTypeName(mt.Schema); name != "" {
				return name
			}
		}
	}
	return ""
}

func securityNames(reqs openapi3.SecurityRequirements) []string {
	set := make(map[string]struct{})
	for _, req := range reqs {
		for name := range req {
			set[name] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func rawModels(raw map[string]any) []ModelSpec {
	comps, _ := raw["components"].(map[string]any)
	schemas, _ := comps["schemas"].(map[string]any)
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	models := make([]ModelSpec, 0, len(names))
	for _, name := range names {
		def, _ := schemas[name].(map[string]any)
		m := ModelSpec{Name: name}
		m.Type, _ = def["type"].(string)
		props, _ := def["properties"].(map[string]any)
		for prop := range props {
			m.Properties = append(m.Properties, prop)
		}
		sort.Strings(m.Properties)
		if req, ok := def["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					m.Required = append(m.Required, s)
				}
			}
		}
		models = append(models, m)
	}
	return models
}

func safeStr(s string) string { return strings.TrimSpace(s) }
