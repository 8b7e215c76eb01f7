// Package runner sequences a synchronization run:
// scan, extract, build, merge, report and the optional write.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moamenhredeen/oasync/internal/config"
	"github.com/moamenhredeen/oasync/internal/coverage"
	"github.com/moamenhredeen/oasync/internal/generator"
	"github.com/moamenhredeen/oasync/internal/merger"
	"github.com/moamenhredeen/oasync/internal/models"
	"github.com/moamenhredeen/oasync/internal/output"
	"github.com/moamenhredeen/oasync/internal/parser"
	"github.com/moamenhredeen/oasync/internal/scanner"
	"github.com/moamenhredeen/oasync/internal/schema"
)

// Options carries the collaborators of a run
type Options struct {
	Config   *config.Config
	Renderer *output.Renderer
	Out      io.Writer
	Logger   *slog.Logger
	// Progress is told about each stage; an empty stage means output is about to start
	Progress func(stage string)
}

// Outcome is the result of a run that did not fail fatally
type Outcome struct {
	Mode       string
	Changed    bool
	Written    bool
	Diffs      []merger.Diff
	Report     models.CoverageReport
	Endpoints  *models.EndpointSet
	Warnings   []string
	Lint       []string
	ReportPath string
}

// InSync reports whether the spec on disk matches the sources after the run
func (o *Outcome) InSync() bool {
	return !o.Changed || o.Written
}

// ExitCode is 0 when the spec is in sync and the threshold is met, 1 otherwise
func (o *Outcome) ExitCode() int {
	if !o.InSync() || !o.Report.Threshold.Met {
		return 1
	}
	return 0
}

// Run executes one synchronization. Errors are fatal: configuration,
// metadata block or spec parse failures. Drift and a missed threshold are
// reported through the Outcome instead. The spec file is only written in
// fix mode, as a whole-file atomic replace.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = output.NewRenderer(false)
	}
	progress := opts.Progress
	if progress == nil {
		progress = func(string) {}
	}
	mode := config.ModeCheck
	if cfg.IsFix() {
		mode = config.ModeFix
	}

	progress("scanning handlers")
	scan, err := scanner.Scan(ctx, scanner.Options{
		Root:          cfg.Paths.HandlersRoot,
		Ignore:        cfg.Ignore.Files,
		StartMarker:   cfg.Markers.OpenAPIStart,
		EndMarker:     cfg.Markers.OpenAPIEnd,
		IgnoreMarker:  cfg.Markers.Ignore,
		PathConstants: cfg.Options.PathConstants,
		Workers:       cfg.Options.Workers,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	progress("extracting schemas")
	extracted, err := schema.Extract(cfg.Paths.ModelsRoot, schema.Markers{
		Component: cfg.Markers.Component,
		Property:  cfg.Markers.Property,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("models extracted", "files", extracted.Files, "components", len(extracted.Components), "fingerprint", extracted.Fingerprint)

	progress("merging specification")
	set := generator.Build(scan.Candidates, scan.Ignored)

	original, err := parser.Load(cfg.Paths.SwaggerFile)
	if err != nil {
		return nil, err
	}
	merged := original.Clone()
	result, err := merger.Merge(merged, set.Endpoints, extracted.Components)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Mode:      mode,
		Changed:   result.Changed,
		Diffs:     result.Diffs,
		Endpoints: set,
		Warnings:  append(append([]string(nil), scan.Warnings...), extracted.Warnings...),
	}

	// fix mode reports on the spec it is about to write, check mode on the spec as it is
	measured := original
	if cfg.IsFix() {
		measured = merged
	}
	inventory, err := parser.Inventory(original)
	if err != nil {
		logger.Warn("listing spec operations from the raw document", "error", err)
	}
	orphans := merger.Orphans(inventory, set.Endpoints)
	report := coverage.Compute(set, measured, orphans, extracted.Names())
	report.GeneratedAt = time.Now().UTC()
	report.RunID = uuid.NewString()
	report.SpecFile = cfg.Paths.SwaggerFile
	report.ModelsFingerprint = extracted.Fingerprint
	threshold, enabled := cfg.Threshold()
	report.Threshold = coverage.Check(report.Summary, threshold, enabled)
	outcome.Report = report

	data, err := merged.Bytes()
	if err != nil {
		return nil, err
	}
	if p, err := parser.ParseBytes(data); err != nil {
		outcome.Lint = []string{err.Error()}
	} else {
		outcome.Lint = p.Lint()
	}
	for _, warning := range outcome.Lint {
		logger.Debug("spec lint", "warning", warning)
	}

	if cfg.IsFix() && result.Changed {
		if err := parser.WriteAtomic(cfg.Paths.SwaggerFile, data); err != nil {
			return nil, err
		}
		outcome.Written = true
		logger.Info("spec updated", "file", cfg.Paths.SwaggerFile, "changes", result.Keys())
	}

	progress("")
	if opts.Out != nil {
		if err := printRun(opts.Out, renderer, cfg, outcome); err != nil {
			return nil, err
		}
	}

	if err := writeReports(cfg, outcome); err != nil {
		return nil, err
	}
	return outcome, nil
}

func writeReports(cfg *config.Config, outcome *Outcome) error {
	if cfg.Output.CoverageReport != "" {
		format, err := output.ParseFormat(cfg.Output.CoverageFormat)
		if err != nil {
			return err
		}
		path := config.EnsureCoverageReportExtension(cfg.Output.CoverageReport, cfg.Output.CoverageFormat)
		opts := output.TextOptions{ShowOrphans: cfg.Options.ShowOrphans, Records: true}
		if err := output.ExportCoverage(outcome.Report, format, path, opts); err != nil {
			return fmt.Errorf("failed to write coverage report: %w", err)
		}
		outcome.ReportPath = path
	}

	summary := output.RunSummary{
		Mode:        outcome.Mode,
		Changed:     outcome.Changed,
		Written:     outcome.Written,
		Report:      outcome.Report,
		ShowOrphans: cfg.Options.ShowOrphans,
		ShowIgnored: cfg.Options.ShowIgnored,
	}
	for _, d := range outcome.Diffs {
		summary.Diffs = append(summary.Diffs, output.DiffEntry{Key: d.Key, Text: d.Text})
	}
	for _, target := range output.SummaryTargets(cfg.Output.MarkdownSummary) {
		if err := output.AppendMarkdown(target, summary); err != nil {
			return err
		}
	}
	return nil
}

// printRun prints the diff (check mode) or change list (fix mode) followed by
// the coverage summary. Both are printed even when nothing drifted.
func printRun(w io.Writer, r *output.Renderer, cfg *config.Config, o *Outcome) error {
	var b strings.Builder

	if o.Mode == config.ModeFix {
		if o.Written {
			b.WriteString(r.Success(fmt.Sprintf("updated %s (%d change(s))", cfg.Paths.SwaggerFile, len(o.Diffs))) + "\n")
			for _, d := range o.Diffs {
				verb := "updated"
				if d.Added {
					verb = "added"
				}
				fmt.Fprintf(&b, "  %s %s\n", verb, d.Key)
			}
		} else {
			b.WriteString(r.Success(cfg.Paths.SwaggerFile+" already in sync") + "\n")
		}
	} else {
		for _, d := range o.Diffs {
			b.WriteString(r.Diff(d.Text))
		}
		if o.Changed {
			b.WriteString(r.Failure(fmt.Sprintf("%d operation(s) or component(s) out of sync, run with --fix", len(o.Diffs))) + "\n")
		} else {
			b.WriteString(r.Success("no drift detected") + "\n")
		}
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	b.Reset()

	err := output.WriteText(w, o.Report, output.TextOptions{
		ShowOrphans: cfg.Options.ShowOrphans,
		Records:     cfg.Options.VerboseCoverage,
	})
	if err != nil {
		return err
	}

	if cfg.Options.ShowMissingBlocks {
		b.WriteString("\n" + r.Heading("Handlers without OpenAPI block:") + "\n")
		missing := 0
		for _, ep := range o.Endpoints.Endpoints {
			if !ep.HasBlock {
				missing++
				fmt.Fprintf(&b, "  %s %s (%s)\n", strings.ToUpper(ep.Method), ep.Path, ep.FunctionName)
			}
		}
		if missing == 0 {
			b.WriteString("  (none)\n")
		}
	}

	if cfg.Options.ShowIgnored {
		b.WriteString("\n" + r.Heading("Ignored handlers:") + "\n")
		if len(o.Endpoints.Ignored) == 0 {
			b.WriteString("  (none)\n")
		}
		for _, ig := range o.Endpoints.Ignored {
			fmt.Fprintf(&b, "  %s %s (%s)\n", strings.ToUpper(ig.Method), ig.Path, ig.Reason)
		}
	}

	if len(o.Lint) > 0 {
		b.WriteString("\n" + r.Heading("Spec warnings:") + "\n")
		for _, warning := range o.Lint {
			b.WriteString("  " + r.Warning(warning) + "\n")
		}
	}

	if t := o.Report.Threshold; t.Enabled && !t.Met {
		b.WriteString("\n" + r.Failure(fmt.Sprintf("coverage %s is below the required %s",
			output.Percent(t.Rate), output.Percent(t.Value))) + "\n")
	}

	_, err = io.WriteString(w, b.String())
	return err
}
