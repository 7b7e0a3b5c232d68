package mcpserver

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/mark3labs/openapi2mcp/internal/analyzer"
	"github.com/mark3labs/openapi2mcp/internal/mapper"
)

// Request is the HTTP request a tool call would issue.
type Request struct {
	Tool    string            `json:"tool"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Query   map[string]string `json:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    any               `json:"body,omitempty"`
}

// ErrMissingArguments is returned when a call leaves out required arguments.
var ErrMissingArguments = errors.New("missing required arguments")

// BuildRequest resolves a call of tool with args against baseURL. Path
// parameters are substituted and escaped, query parameters are encoded into
// the URL and the body argument is passed through.
func BuildRequest(baseURL string, tool mapper.ToolDefinition, args map[string]any) (Request, error) {
	var missing []string
	for _, name := range requiredArgs(tool.InputSchema) {
		if v, ok := args[name]; !ok || v == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Request{}, fmt.Errorf("%w for %s: %s", ErrMissingArguments, tool.Name, strings.Join(missing, ", "))
	}

	req := Request{Tool: tool.Name}
	op := tool.Operation
	if op == nil {
		return req, fmt.Errorf("tool %s has no HTTP operation", tool.Name)
	}
	req.Method = strings.ToUpper(op.HTTPMethod)

	p := op.Path
	query := url.Values{}
	for _, param := range op.Parameters {
		v, ok := args[param.Name]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprint(v)
		switch param.Location {
		case analyzer.InPath:
			p = strings.ReplaceAll(p, "{"+param.Name+"}", url.PathEscape(s))
		case analyzer.InHeader:
			if req.Headers == nil {
				req.Headers = make(map[string]string)
			}
			req.Headers[param.Name] = s
		case analyzer.InCookie:
			if req.Headers == nil {
				req.Headers = make(map[string]string)
			}
			req.Headers["Cookie"] = joinCookie(req.Headers["Cookie"], param.Name+"="+s)
		default:
			query.Set(param.Name, s)
		}
	}
	if len(query) > 0 {
		req.Query = make(map[string]string, len(query))
		for k := range query {
			req.Query[k] = query.Get(k)
		}
	}
	if op.RequestBodyType != "" {
		req.Body = args["body"]
	}

	req.URL = strings.TrimRight(baseURL, "/") + p
	if len(query) > 0 {
		req.URL += "?" + query.Encode()
	}
	return req, nil
}

func joinCookie(prev, next string) string {
	if prev == "" {
		return next
	}
	return prev + "; " + next
}

func requiredArgs(schema map[string]any) []string {
	var out []string
	switch req := schema["required"].(type) {
	case []string:
		out = append(out, req...)
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}
