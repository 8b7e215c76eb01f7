package output

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moamenhredeen/oasync/internal/models"
)

// Format represents the coverage report format
type Format string

const (
	FormatJSON      Format = "json"
	FormatText      Format = "text"
	FormatCobertura Format = "cobertura"
)

// TextOptions controls the optional sections of the text report
type TextOptions struct {
	ShowOrphans bool
	// Records adds one status line per endpoint
	Records bool
}

// ExportCoverage writes the coverage report in the given format.
// An empty filePath writes to stdout.
func ExportCoverage(report models.CoverageReport, format Format, filePath string, opts TextOptions) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	switch format {
	case FormatJSON:
		return exportCoverageJSON(w, report)
	case FormatText:
		return WriteText(w, report, opts)
	case FormatCobertura:
		return exportCoverageCobertura(w, report)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// getWriter returns an io.Writer for output (stdout or file)
func getWriter(filePath string) (io.Writer, io.Closer, error) {
	if filePath == "" {
		return os.Stdout, nil, nil
	}

	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

type jsonCoverage struct {
	Format string `json:"format"`
	models.CoverageReport
}

// exportCoverageJSON exports the full report as JSON
func exportCoverageJSON(w io.Writer, report models.CoverageReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonCoverage{Format: string(FormatJSON), CoverageReport: report})
}

// WriteText writes the coverage totals and, when requested, one status line per endpoint
func WriteText(w io.Writer, report models.CoverageReport, opts TextOptions) error {
	s := report.Summary
	var b strings.Builder

	b.WriteString("=== OpenAPI Coverage ===\n")
	fmt.Fprintf(&b, "Handlers considered:       %d\n", s.HandlersTotal)
	fmt.Fprintf(&b, "Ignored:                   %d\n", s.Ignored)
	fmt.Fprintf(&b, "With OpenAPI block:        %d (%s)\n", s.WithOpenAPIBlock, Percent(s.RateWithBlock))
	fmt.Fprintf(&b, "In swagger:                %d (%s)\n", s.InSwagger, Percent(s.RateInSwagger))
	fmt.Fprintf(&b, "Definition matches:        %d (%s)\n", s.DefinitionMatches, Percent(s.RateDefinitionMatch))
	fmt.Fprintf(&b, "Swagger-only operations:   %d\n", s.SwaggerOnly)
	fmt.Fprintf(&b, "Components generated:      %d\n", s.ComponentsGenerated)
	fmt.Fprintf(&b, "Components not generated:  %d\n", s.ComponentsExistingNotGenerated)
	if report.Threshold.Enabled {
		status := "met"
		if !report.Threshold.Met {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "Threshold:                 %s of handlers with block (%s)\n", Percent(report.Threshold.Value), status)
	}

	if opts.Records && len(report.Records) > 0 {
		b.WriteString("\n")
		for _, r := range report.Records {
			fmt.Fprintf(&b, "%-7s %s %s", strings.ToUpper(r.Method), r.Path, strings.Join(r.Tokens(), " "))
			if r.Ignored && r.IgnoreReason != "" {
				fmt.Fprintf(&b, " (%s)", r.IgnoreReason)
			}
			b.WriteString("\n")
		}
	}

	if opts.ShowOrphans {
		b.WriteString("\nSwagger-only operations:\n")
		if len(report.Orphans) == 0 {
			b.WriteString("  (none)\n")
		}
		for _, o := range report.Orphans {
			fmt.Fprintf(&b, "  %s\n", o)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Percent renders a [0, 1] rate as a percentage with one decimal
func Percent(rate float64) string {
	return strconv.FormatFloat(rate*100, 'f', 1, 64) + "%"
}

type coberturaCoverage struct {
	XMLName         xml.Name            `xml:"coverage"`
	LineRate        string              `xml:"line-rate,attr"`
	BranchRate      string              `xml:"branch-rate,attr"`
	LinesCovered    int                 `xml:"lines-covered,attr"`
	LinesValid      int                 `xml:"lines-valid,attr"`
	BranchesCovered int                 `xml:"branches-covered,attr"`
	BranchesValid   int                 `xml:"branches-valid,attr"`
	Complexity      string              `xml:"complexity,attr"`
	Version         string              `xml:"version,attr"`
	Timestamp       int64               `xml:"timestamp,attr"`
	Sources         []string            `xml:"sources>source"`
	Properties      []coberturaProperty `xml:"properties>property"`
	Packages        []coberturaPackage  `xml:"packages>package"`
}

type coberturaProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type coberturaPackage struct {
	Name       string           `xml:"name,attr"`
	LineRate   string           `xml:"line-rate,attr"`
	BranchRate string           `xml:"branch-rate,attr"`
	Complexity string           `xml:"complexity,attr"`
	Classes    []coberturaClass `xml:"classes>class"`
}

type coberturaClass struct {
	Name       string          `xml:"name,attr"`
	Filename   string          `xml:"filename,attr"`
	LineRate   string          `xml:"line-rate,attr"`
	BranchRate string          `xml:"branch-rate,attr"`
	Complexity string          `xml:"complexity,attr"`
	Methods    struct{}        `xml:"methods"`
	Lines      []coberturaLine `xml:"lines>line"`
}

type coberturaLine struct {
	Number int    `xml:"number,attr"`
	Hits   int    `xml:"hits,attr"`
	Branch string `xml:"branch,attr"`
}

// exportCoverageCobertura renders every considered endpoint as one line of
// a synthetic class; a line is covered when its handler has a metadata block.
// Component metrics are not line shaped and travel as properties.
func exportCoverageCobertura(w io.Writer, report models.CoverageReport) error {
	s := report.Summary
	rate := strconv.FormatFloat(s.RateWithBlock, 'f', 4, 64)

	class := coberturaClass{
		Name:       "endpoints",
		Filename:   report.SpecFile,
		LineRate:   rate,
		BranchRate: "0",
		Complexity: "0",
	}
	number := 0
	for _, r := range report.Records {
		if r.Ignored {
			continue
		}
		number++
		hits := 0
		if r.HasBlock {
			hits = 1
		}
		class.Lines = append(class.Lines, coberturaLine{Number: number, Hits: hits, Branch: "false"})
	}

	doc := coberturaCoverage{
		LineRate:     rate,
		BranchRate:   "0",
		LinesCovered: s.WithOpenAPIBlock,
		LinesValid:   s.HandlersTotal,
		Complexity:   "0",
		Version:      "oasync",
		Timestamp:    report.GeneratedAt.Unix(),
		Sources:      []string{"."},
		Properties: []coberturaProperty{
			{Name: "components_generated", Value: strconv.Itoa(s.ComponentsGenerated)},
			{Name: "components_existing_not_generated", Value: strconv.Itoa(s.ComponentsExistingNotGenerated)},
			{Name: "swagger_only_operations", Value: strconv.Itoa(s.SwaggerOnly)},
			{Name: "handlers_ignored", Value: strconv.Itoa(s.Ignored)},
			{Name: "definition_matches", Value: strconv.Itoa(s.DefinitionMatches)},
		},
		Packages: []coberturaPackage{{
			Name:       "openapi",
			LineRate:   rate,
			BranchRate: "0",
			Complexity: "0",
			Classes:    []coberturaClass{class},
		}},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ParseFormat parses a string into a Format, returning error if invalid.
// xml is accepted as an alias of cobertura.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "text", "":
		return FormatText, nil
	case "cobertura", "xml":
		return FormatCobertura, nil
	default:
		return "", fmt.Errorf("invalid format '%s': must be 'json', 'text' or 'cobertura'", s)
	}
}
