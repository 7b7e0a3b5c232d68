// Package analyzer recovers API classes, operations and models from a
// generated Python client by scanning its source, and checks that the
// generated package is structurally complete.
package analyzer

// APIClass is one generated API grouping class.
type APIClass struct {
	Name           string   `json:"name"`
	Module         string   `json:"module"`
	Methods        []string `json:"methods"`
	SourceLocation string   `json:"source_location"`
}

// Parameter locations.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InCookie = "cookie"
)

// Parameter is one operation input. Path parameters are always required,
// whatever Required says.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Location    string `json:"location"`
}

// IsRequired reports whether callers must supply the parameter.
func (p Parameter) IsRequired() bool { return p.Required || p.Location == InPath }

// Operation is one callable API method. HTTPMethod is uppercase and empty
// when the method could not be correlated with the OpenAPI document.
type Operation struct {
	Name                string      `json:"name"`
	OperationID         string      `json:"operation_id,omitempty"`
	APIClass            string      `json:"api_class"`
	HTTPMethod          string      `json:"http_method"`
	Path                string      `json:"path"`
	Parameters          []Parameter `json:"parameters"`
	Summary             string      `json:"summary,omitempty"`
	Description         string      `json:"description,omitempty"`
	RequestBodyType     string      `json:"request_body_type,omitempty"`
	RequestContentTypes []string    `json:"request_content_types,omitempty"`
	ResponseType        string      `json:"response_type,omitempty"`
	AuthRequired        bool        `json:"auth_required"`
	Deprecated          bool        `json:"deprecated,omitempty"`
	Tags                []string    `json:"tags,omitempty"`
	Resolved            bool        `json:"resolved"`
}

// Model is one generated model class.
type Model struct {
	Name           string   `json:"name"`
	Properties     []string `json:"properties"`
	RequiredFields []string `json:"required_fields"`
}

// ClientAnalysis is everything recovered from one generated client.
type ClientAnalysis struct {
	APIClasses        []APIClass  `json:"api_classes"`
	Operations        []Operation `json:"operations"`
	Models            []Model     `json:"models"`
	ClientPackageName string      `json:"client_package_name"`
	BaseURL           string      `json:"base_url,omitempty"`
	AuthSchemes       []string    `json:"auth_schemes"`
	Warnings          []string    `json:"warnings,omitempty"`
}
