package models

import "strings"

// Ignore reasons attached to IgnoredEndpoint records
const (
	ReasonFileMarker     = "file-level ignore marker"
	ReasonFunctionMarker = "function-level ignore marker"
	ReasonPatternRoute   = "unsupported pattern route"
	ReasonDuplicate      = "duplicate route"
	ReasonMethod         = "unsupported HTTP method"
)

// Candidate is a route discovered by the scanner before normalization
type Candidate struct {
	Path         string
	Method       string
	SourceFile   string
	Line         int
	FunctionName string

	// Block holds the decoded metadata block, nil when the handler has none
	Block map[string]any
	// Examples holds the raw example records declared in the block
	Examples []any
}

// Endpoint is a canonical (path, method) pair with its generated operation
type Endpoint struct {
	Path         string         `json:"path"`
	Method       string         `json:"method"`
	Operation    map[string]any `json:"operation"`
	SourceFile   string         `json:"source_file"`
	Line         int            `json:"line,omitempty"`
	FunctionName string         `json:"function_name"`
	HasBlock     bool           `json:"has_openapi_block"`
}

// Key returns the "{path}#{method}" identity of the endpoint
func (e Endpoint) Key() string {
	return OperationKey(e.Path, e.Method)
}

// IgnoredEndpoint is a discovered route excluded from merging and coverage
type IgnoredEndpoint struct {
	Path         string `json:"path"`
	Method       string `json:"method"`
	SourceFile   string `json:"source_file"`
	Line         int    `json:"line,omitempty"`
	FunctionName string `json:"function_name"`
	Reason       string `json:"reason"`
}

// Orphan is an operation present in the spec with no matching endpoint
type Orphan struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// String renders the orphan as "GET /path"
func (o Orphan) String() string {
	return strings.ToUpper(o.Method) + " " + o.Path
}

// EndpointSet is the normalized output of the endpoint model builder
type EndpointSet struct {
	Endpoints []Endpoint
	Ignored   []IgnoredEndpoint
}

// OperationKey builds the "{path}#{method}" key used for diffs and lookups
func OperationKey(path, method string) string {
	return path + "#" + strings.ToLower(method)
}
