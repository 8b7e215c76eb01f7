package models

import "time"

// Status tokens rendered per coverage record
const (
	StatusIgnored        = "IGNORED"
	StatusBlock          = "BLOCK"
	StatusSwagger        = "SWAGGER"
	StatusMatch          = "MATCH"
	StatusMissingSwagger = "MISSING_SWAGGER"
)

// CoverageRecord represents the documentation state of a single endpoint
type CoverageRecord struct {
	Path         string `json:"path"`
	Method       string `json:"method"`
	SourceFile   string `json:"source_file"`
	FunctionName string `json:"function_name"`

	Ignored         bool   `json:"ignored"`
	IgnoreReason    string `json:"ignore_reason,omitempty"`
	HasBlock        bool   `json:"has_openapi_block"`
	InSpec          bool   `json:"in_swagger"`
	DefinitionMatch bool   `json:"definition_matches"`
}

// Tokens returns the status tokens describing the record
func (r CoverageRecord) Tokens() []string {
	if r.Ignored {
		return []string{StatusIgnored}
	}
	var tokens []string
	if r.HasBlock {
		tokens = append(tokens, StatusBlock)
	}
	if r.InSpec {
		tokens = append(tokens, StatusSwagger)
	} else {
		tokens = append(tokens, StatusMissingSwagger)
	}
	if r.DefinitionMatch {
		tokens = append(tokens, StatusMatch)
	}
	return tokens
}

// CoverageSummary represents the documentation coverage counters of a run
type CoverageSummary struct {
	HandlersTotal                  int `json:"handlers_total"`
	Ignored                        int `json:"ignored"`
	WithOpenAPIBlock               int `json:"with_openapi_block"`
	InSwagger                      int `json:"in_swagger"`
	DefinitionMatches              int `json:"definition_matches"`
	SwaggerOnly                    int `json:"swagger_only_operations"`
	ComponentsGenerated            int `json:"components_generated"`
	ComponentsExistingNotGenerated int `json:"components_existing_not_generated"`

	// Derived rates in the range [0, 1]
	RateWithBlock       float64 `json:"coverage_rate_handlers_with_block"`
	RateInSwagger       float64 `json:"coverage_rate_handlers_in_swagger"`
	RateDefinitionMatch float64 `json:"operation_definition_match_rate"`
}

// AddRecord adds a coverage record to the summary counters
func (s *CoverageSummary) AddRecord(record CoverageRecord) {
	if record.Ignored {
		s.Ignored++
		return
	}
	s.HandlersTotal++
	if record.HasBlock {
		s.WithOpenAPIBlock++
	}
	if record.InSpec {
		s.InSwagger++
	}
	if record.HasBlock && record.DefinitionMatch {
		s.DefinitionMatches++
	}
}

// Finalize calculates the derived rates
func (s *CoverageSummary) Finalize() {
	s.RateWithBlock = ratio(s.WithOpenAPIBlock, s.HandlersTotal)
	s.RateInSwagger = ratio(s.InSwagger, s.HandlersTotal)
	s.RateDefinitionMatch = ratio(s.DefinitionMatches, s.WithOpenAPIBlock)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Threshold is the outcome of a coverage threshold check
type Threshold struct {
	Enabled bool    `json:"enabled"`
	Value   float64 `json:"value"`
	Rate    float64 `json:"rate"`
	Met     bool    `json:"met"`
}

// CoverageReport bundles everything the coverage renderers need
type CoverageReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	RunID       string           `json:"run_id,omitempty"`
	SpecFile    string           `json:"swagger_file,omitempty"`
	Summary     CoverageSummary  `json:"summary"`
	Records     []CoverageRecord `json:"endpoints"`
	Orphans     []Orphan         `json:"swagger_only"`
	Components  []string         `json:"components_generated"`
	Threshold   Threshold        `json:"threshold"`

	// ModelsFingerprint identifies the model sources the components were generated from
	ModelsFingerprint string `json:"models_fingerprint,omitempty"`
}
