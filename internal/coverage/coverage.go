// Package coverage computes documentation coverage of discovered endpoints.
package coverage

import (
	"sort"

	"github.com/moamenhredeen/oasync/internal/models"
	"github.com/moamenhredeen/oasync/internal/parser"
)

// Compute evaluates every endpoint against doc. Ignored endpoints are
// listed but excluded from all rates. components are the names the schema
// extractor generated.
func Compute(set *models.EndpointSet, doc *parser.Document, orphans []models.Orphan, components []string) models.CoverageReport {
	report := models.CoverageReport{
		Orphans:    orphans,
		Components: append([]string(nil), components...),
	}
	sort.Strings(report.Components)

	for _, ep := range set.Endpoints {
		record := models.CoverageRecord{
			Path:         ep.Path,
			Method:       ep.Method,
			SourceFile:   ep.SourceFile,
			FunctionName: ep.FunctionName,
			HasBlock:     ep.HasBlock,
		}
		if existing, ok := doc.Operation(ep.Path, ep.Method); ok {
			record.InSpec = true
			// a match is only meaningful for documented handlers
			record.DefinitionMatch = ep.HasBlock && parser.Equal(existing, ep.Operation)
		}
		report.Records = append(report.Records, record)
	}

	for _, ig := range set.Ignored {
		report.Records = append(report.Records, models.CoverageRecord{
			Path:         ig.Path,
			Method:       ig.Method,
			SourceFile:   ig.SourceFile,
			FunctionName: ig.FunctionName,
			Ignored:      true,
			IgnoreReason: ig.Reason,
		})
	}

	sort.SliceStable(report.Records, func(i, j int) bool {
		a, b := report.Records[i], report.Records[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		return !a.Ignored && b.Ignored
	})

	for _, record := range report.Records {
		report.Summary.AddRecord(record)
	}

	generated := make(map[string]bool, len(components))
	for _, name := range components {
		generated[name] = true
	}
	for _, name := range doc.SchemaNames() {
		if !generated[name] {
			report.Summary.ComponentsExistingNotGenerated++
		}
	}
	report.Summary.ComponentsGenerated = len(components)
	report.Summary.SwaggerOnly = len(orphans)
	report.Summary.Finalize()

	return report
}

// NormalizeThreshold accepts a threshold as a fraction (0-1) or a
// percentage (0-100) and returns the fraction, clamped to [0, 1].
func NormalizeThreshold(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Check compares the handler block coverage rate with the threshold.
// A failed threshold is a value for the exit code, not an error.
func Check(summary models.CoverageSummary, threshold float64, enabled bool) models.Threshold {
	if !enabled {
		return models.Threshold{Rate: summary.RateWithBlock, Met: true}
	}
	value := NormalizeThreshold(threshold)
	return models.Threshold{
		Enabled: true,
		Value:   value,
		Rate:    summary.RateWithBlock,
		Met:     summary.RateWithBlock >= value,
	}
}
