package mcpconfig

import (
	"fmt"
	"path"
	"strings"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
)

var toolMethods = map[string]bool{"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true}

const multipartForm = "multipart/form-data"

// ExclusionReason explains why op does not become a tool, or returns "" when
// it does.
func (c IntegrationConfig) ExclusionReason(op analyzer.Operation) string {
	method := strings.ToUpper(op.HTTPMethod)
	switch {
	case op.Deprecated:
		return "deprecated"
	case method == "":
		return "HTTP method unknown"
	case !toolMethods[method]:
		return "method " + method + " not supported"
	case c.matchesExcluded(op):
		return "excluded by pattern"
	case c.MaxParamsPerTool > 0 && len(op.Parameters) > c.MaxParamsPerTool:
		return fmt.Sprintf("%d parameters exceed the limit of %d", len(op.Parameters), c.MaxParamsPerTool)
	case !c.IncludeFileUploadTools && hasContentType(op, multipartForm):
		return "file uploads disabled"
	}
	return ""
}

// ShouldInclude reports whether op becomes a tool.
func (c IntegrationConfig) ShouldInclude(op analyzer.Operation) bool {
	return c.ExclusionReason(op) == ""
}

// Filter keeps the includable operations in document order and stops once
// MaxTools have been kept.
func (c IntegrationConfig) Filter(ops []analyzer.Operation) []analyzer.Operation {
	kept := []analyzer.Operation{}
	for _, op := range ops {
		if len(kept) >= c.MaxTools {
			break
		}
		if c.ShouldInclude(op) {
			kept = append(kept, op)
		}
	}
	return kept
}

// matchesExcluded compares each pattern, case-insensitively, with the HTTP
// method and with the operation name as a glob.
func (c IntegrationConfig) matchesExcluded(op analyzer.Operation) bool {
	name := strings.ToLower(op.Name)
	for _, p := range c.ExcludedMethodPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if p == strings.ToLower(op.HTTPMethod) {
			return true
		}
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

func hasContentType(op analyzer.Operation, want string) bool {
	for _, ct := range op.RequestContentTypes {
		if strings.EqualFold(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]), want) {
			return true
		}
	}
	return false
}
