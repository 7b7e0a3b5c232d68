package spec

import "strings"

// fixV2BodyParameters rewrites Swagger 2.0 operations that openapi2conv
// rejects, in place, and reports whether anything changed.
//
// Several body parameters on one operation are merged into a single body
// whose schema is an object with one property per original parameter. When
// body and formData parameters are mixed, the body parameters become formData
// fields and the operation consumes multipart/form-data.
func fixV2BodyParameters(root map[string]any) bool {
	paths, _ := root["paths"].(map[string]any)
	changed := false
	for _, rawItem := range paths {
		item, _ := rawItem.(map[string]any)
		for method, rawOp := range item {
			if !IsHTTPMethod(strings.ToLower(method)) {
				continue
			}
			op, _ := rawOp.(map[string]any)
			if op == nil {
				continue
			}
			params, _ := op["parameters"].([]any)
			bodies, hasForm := countBodyParams(params)
			switch {
			case bodies == 0:
			case hasForm:
				op["parameters"] = bodiesToFormData(params)
				consumes, _ := op["consumes"].([]any)
				if !containsString(consumes, "multipart/form-data") {
					op["consumes"] = append(consumes, "multipart/form-data")
				}
				changed = true
			case bodies > 1:
				op["parameters"] = mergeBodies(params)
				changed = true
			}
		}
	}
	return changed
}

func countBodyParams(params []any) (bodies int, hasForm bool) {
	for _, p := range params {
		pm, _ := p.(map[string]any)
		switch in := asString(pm["in"]); {
		case strings.EqualFold(in, "body"):
			bodies++
		case strings.EqualFold(in, "formData"):
			hasForm = true
		}
	}
	return bodies, hasForm
}

func isBodyParam(pm map[string]any) bool {
	return strings.EqualFold(asString(pm["in"]), "body")
}

func mergeBodies(params []any) []any {
	props := map[string]any{}
	var required []any
	rest := make([]any, 0, len(params))
	for _, p := range params {
		pm, _ := p.(map[string]any)
		if pm == nil {
			continue
		}
		if !isBodyParam(pm) {
			rest = append(rest, pm)
			continue
		}
		name := paramName(pm)
		schema := schemaOfParam(pm)
		if schema == nil {
			schema = map[string]any{"type": "string"}
		}
		props[name] = schema
		if req, _ := pm["required"].(bool); req {
			required = append(required, name)
		}
	}
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	merged := map[string]any{"in": "body", "name": "body", "schema": schema}
	return append([]any{merged}, rest...)
}

func bodiesToFormData(params []any) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		pm, _ := p.(map[string]any)
		if pm == nil {
			continue
		}
		if isBodyParam(pm) {
			out = append(out, formField(pm))
			continue
		}
		out = append(out, pm)
	}
	return out
}

// formField derives a formData parameter from a body parameter. Referenced
// schemas cannot be expressed as form fields and degrade to strings.
func formField(pm map[string]any) map[string]any {
	field := map[string]any{"in": "formData", "name": paramName(pm)}
	if desc := asString(pm["description"]); desc != "" {
		field["description"] = desc
	}
	if req, ok := pm["required"].(bool); ok {
		field["required"] = req
	}
	src := pm
	if sch, ok := pm["schema"].(map[string]any); ok {
		src = sch
	}
	typ := asString(src["type"])
	if typ == "" && src["$ref"] != nil {
		typ = "string"
	}
	if typ == "" {
		typ = asString(pm["type"])
	}
	if typ == "" {
		typ = "string"
	}
	field["type"] = typ
	if items, ok := src["items"].(map[string]any); ok {
		field["items"] = items
	}
	if f := asString(src["format"]); f != "" {
		field["format"] = f
	}
	return field
}

func schemaOfParam(pm map[string]any) map[string]any {
	if sch, ok := pm["schema"].(map[string]any); ok {
		return sch
	}
	typ := asString(pm["type"])
	if typ == "" {
		return nil
	}
	sch := map[string]any{"type": typ}
	if items, ok := pm["items"].(map[string]any); ok {
		sch["items"] = items
	}
	if f := asString(pm["format"]); f != "" {
		sch["format"] = f
	}
	return sch
}

func paramName(pm map[string]any) string {
	if name := asString(pm["name"]); name != "" {
		return name
	}
	return "field"
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func containsString(list []any, want string) bool {
	for _, v := range list {
		if s, ok := v.(string); ok && s == want {
			return true
		}
	}
	return false
}
