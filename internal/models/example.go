package models

// Placement is the structural location an example is projected onto
type Placement string

const (
	PlacementParameter   Placement = "parameter"
	PlacementRequestBody Placement = "requestBody"
	PlacementResponse    Placement = "response"
	PlacementSchema      Placement = "schema"
)

// Example is a declared example object targeting part of an operation
type Example struct {
	Name      string
	Placement Placement

	// Target locators, only the one matching Placement is consulted
	ParameterName string
	ParameterIn   string
	StatusCode    string
	ContentType   string
	SchemaName    string

	Summary     string
	Description string

	// Exactly one of these survives on the emitted node: Ref, then ExternalValue, then Value
	Ref           string
	ExternalValue string
	Value         any
	HasValue      bool

	// Methods restricts requestBody examples to these HTTP methods (case-insensitive)
	Methods []string

	// Extensions holds x-* keys copied verbatim onto the emitted node
	Extensions map[string]any
}
