package spec

// HttpMethod is a lowercase OpenAPI operation key.
type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// methodOrder is the stable order used when declaration order is unknown.
var methodOrder = []HttpMethod{GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, TRACE}

// IsHTTPMethod reports whether key names an operation inside a path item.
func IsHTTPMethod(key string) bool {
	for _, m := range methodOrder {
		if string(m) == key {
			return true
		}
	}
	return false
}

// OperationIndex is the flattened view of a document used by the analyzer,
// the basic generation engine and the analyze command.
type OperationIndex struct {
	Title           string
	Version         string
	Description     string
	Servers         []string
	SecuritySchemes []string
	Models          []ModelSpec
	Operations      []OperationSpec
}

// OperationSpec is one method+path pair.
type OperationSpec struct {
	ID           string // "GET /pets"
	OperationID  string
	Method       string // uppercase
	Path         string
	Summary      string
	Description  string
	Tags         []string
	Deprecated   bool
	Parameters   []ParameterSpec
	RequestBody  *RequestBodySpec
	ResponseType string
	Security     []string
}

type ParameterSpec struct {
	Name        string
	In          string // path|query|header|cookie
	Type        string
	Description string
	Required    bool
}

type RequestBodySpec struct {
	Required     bool
	ContentTypes []string
	TypeName     string
}

type ModelSpec struct {
	Name       string
	Type       string
	Properties []string
	Required   []string
}

// Lookup returns the operation with the given operationId.
func (idx *OperationIndex) Lookup(operationID string) (OperationSpec, bool) {
	for _, op := range idx.Operations {
		if op.OperationID == operationID {
			return op, true
		}
	}
	return OperationSpec{}, false
}
