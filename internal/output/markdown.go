package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/moamenhredeen/oasync/internal/models"
)

// StepSummaryEnv names the file CI systems render as the job summary
const StepSummaryEnv = "GITHUB_STEP_SUMMARY"

// DiffEntry is one drifted operation or component
type DiffEntry struct {
	Key  string
	Text string
}

// RunSummary is everything the Markdown summary reports about a run
type RunSummary struct {
	Mode        string
	Changed     bool
	Written     bool
	Diffs       []DiffEntry
	Report      models.CoverageReport
	ShowOrphans bool
	ShowIgnored bool
}

// Markdown renders the run summary
func Markdown(s RunSummary) string {
	var b strings.Builder

	b.WriteString("## OpenAPI sync\n\n")
	switch {
	case !s.Changed:
		b.WriteString("**Status:** ✓ in sync\n\n")
	case s.Written:
		fmt.Fprintf(&b, "**Status:** spec updated (%d change(s))\n\n", len(s.Diffs))
	default:
		fmt.Fprintf(&b, "**Status:** ✗ drift detected (%d change(s)), run with `--fix`\n\n", len(s.Diffs))
	}
	fmt.Fprintf(&b, "**Mode:** `%s`\n\n", s.Mode)

	sum := s.Report.Summary
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Handlers considered | %d |\n", sum.HandlersTotal)
	fmt.Fprintf(&b, "| Ignored | %d |\n", sum.Ignored)
	fmt.Fprintf(&b, "| With OpenAPI block | %d (%s) |\n", sum.WithOpenAPIBlock, Percent(sum.RateWithBlock))
	fmt.Fprintf(&b, "| In swagger | %d (%s) |\n", sum.InSwagger, Percent(sum.RateInSwagger))
	fmt.Fprintf(&b, "| Definition matches | %d (%s) |\n", sum.DefinitionMatches, Percent(sum.RateDefinitionMatch))
	fmt.Fprintf(&b, "| Swagger-only operations | %d |\n", sum.SwaggerOnly)
	fmt.Fprintf(&b, "| Components generated | %d |\n", sum.ComponentsGenerated)
	fmt.Fprintf(&b, "| Components not generated | %d |\n", sum.ComponentsExistingNotGenerated)
	if t := s.Report.Threshold; t.Enabled {
		status := "met"
		if !t.Met {
			status = "**failed**"
		}
		fmt.Fprintf(&b, "| Threshold | %s (%s) |\n", Percent(t.Value), status)
	}

	if len(s.Diffs) > 0 {
		b.WriteString("\n### Changes\n\n")
		for _, d := range s.Diffs {
			fmt.Fprintf(&b, "<details><summary><code>%s</code></summary>\n\n```diff\n%s", d.Key, d.Text)
			if !strings.HasSuffix(d.Text, "\n") {
				b.WriteString("\n")
			}
			b.WriteString("```\n\n</details>\n")
		}
	}

	if s.ShowOrphans && len(s.Report.Orphans) > 0 {
		b.WriteString("\n### Swagger-only operations\n\n")
		for _, o := range s.Report.Orphans {
			fmt.Fprintf(&b, "- `%s`\n", o)
		}
	}

	if s.ShowIgnored {
		var ignored []models.CoverageRecord
		for _, r := range s.Report.Records {
			if r.Ignored {
				ignored = append(ignored, r)
			}
		}
		if len(ignored) > 0 {
			b.WriteString("\n### Ignored handlers\n\n")
			for _, r := range ignored {
				fmt.Fprintf(&b, "- `%s %s` (%s)\n", strings.ToUpper(r.Method), r.Path, r.IgnoreReason)
			}
		}
	}

	return b.String()
}

// AppendMarkdown appends the rendered summary to path, creating it if needed
func AppendMarkdown(path string, s RunSummary) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create summary directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open markdown summary: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(Markdown(s) + "\n"); err != nil {
		return fmt.Errorf("failed to write markdown summary: %w", err)
	}
	return nil
}

// SummaryTargets returns the explicit summary path plus the CI step summary
// file, without duplicates
func SummaryTargets(explicit string) []string {
	var targets []string
	if explicit != "" {
		targets = append(targets, explicit)
	}
	if ci := os.Getenv(StepSummaryEnv); ci != "" && ci != explicit {
		targets = append(targets, ci)
	}
	return targets
}
