/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/moamenhredeen/oasync/internal/config"
	"github.com/moamenhredeen/oasync/internal/logging"
	"github.com/moamenhredeen/oasync/internal/output"
	"github.com/moamenhredeen/oasync/internal/runner"
	"github.com/moamenhredeen/oasync/internal/scanner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables mirroring the flags
const EnvPrefix = "OASYNC"

// flagKeys maps overlay flags onto their config section and key
var flagKeys = map[string][2]string{
	"handlers-root":          {"paths", "handlers_root"},
	"models-root":            {"paths", "models_root"},
	"swagger-file":           {"paths", "swagger_file"},
	"coverage-report":        {"output", "coverage_report"},
	"coverage-format":        {"output", "coverage_format"},
	"markdown-summary":       {"output", "markdown_summary"},
	"color":                  {"output", "color"},
	"fail-on-coverage-below": {"options", "fail_on_coverage_below"},
	"show-orphans":           {"options", "show_orphans"},
	"show-ignored":           {"options", "show_ignored"},
	"show-missing-blocks":    {"options", "show_missing_blocks"},
	"verbose-coverage":       {"options", "verbose_coverage"},
	"workers":                {"options", "workers"},
	"ignore-file":            {"ignore", "files"},
}

// exitError carries a non-zero exit code for a run that already reported itself
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd, _ = newRootCmd()

func newRootCmd() (*cobra.Command, *viper.Viper) {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "oasync",
		Short: "Keep an OpenAPI specification in sync with Go handler sources",
		Long: `oasync scans Go handler and model sources for inline OpenAPI metadata
and keeps a master OpenAPI specification in sync with them.

In check mode (the default) it prints the drift and a coverage summary
and exits non-zero when the spec is out of date. In fix mode it rewrites
the paths and components it owns and leaves everything else untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, v)
		},
	}

	f := cmd.Flags()
	f.Bool("check", false, "Report drift without writing (default)")
	f.Bool("fix", false, "Rewrite the spec file with the generated operations")
	cmd.MarkFlagsMutuallyExclusive("check", "fix")

	f.String("handlers-root", "", "Directory scanned for route declarations")
	f.String("models-root", "", "Directory scanned for component structs")
	f.String("swagger-file", "", "Master OpenAPI specification file")

	f.String("coverage-report", "", "Write a coverage report to this path")
	f.String("coverage-format", "", "Coverage report format: json, text or cobertura")
	f.Float64("fail-on-coverage-below", 0, "Fail when handler coverage is below this value (0-1 or 0-100)")
	f.Bool("show-orphans", false, "List spec operations without a handler")
	f.Bool("show-ignored", false, "List ignored handlers")
	f.Bool("show-missing-blocks", false, "List handlers without an OpenAPI block")
	f.Bool("verbose-coverage", false, "Print one coverage line per endpoint")
	f.String("color", "", "Colorize output: auto, always or never")
	f.String("markdown-summary", "", "Append a Markdown run summary to this path")
	f.StringArray("ignore-file", nil, "Glob of handler files to skip (repeatable)")
	f.Int("workers", 0, "Number of files parsed in parallel")

	f.String("config", "", "Config file (default "+config.DefaultFile+" when present)")
	f.String("env", "", "Environment profile to apply from the config file")
	f.Bool("init-config", false, "Write a commented config file and exit")
	f.String("export-schema", "", "Write the config JSON Schema to this path and exit")
	f.Bool("force", false, "Overwrite an existing file with --init-config")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	f.VisitAll(func(flag *pflag.Flag) {
		_ = v.BindPFlag(flag.Name, flag)
	})
	_ = v.BindEnv("mode")

	return cmd, v
}

// cliOverlay collects the values supplied by flag or environment variable.
// Anything the caller did not supply stays absent rather than zero.
func cliOverlay(cmd *cobra.Command, v *viper.Viper) map[string]any {
	overlay := map[string]any{}
	put := func(section, key string, value any) {
		m, ok := overlay[section].(map[string]any)
		if !ok {
			m = map[string]any{}
			overlay[section] = m
		}
		m[key] = value
	}

	if v.IsSet("mode") {
		overlay["mode"] = v.GetString("mode")
	}
	for _, name := range []string{"check", "fix"} {
		if v.IsSet(name) && v.GetBool(name) {
			overlay["mode"] = name
		}
	}

	for name, target := range flagKeys {
		if !v.IsSet(name) {
			continue
		}
		switch cmd.Flags().Lookup(name).Value.Type() {
		case "bool":
			put(target[0], target[1], v.GetBool(name))
		case "float64":
			put(target[0], target[1], v.GetFloat64(name))
		case "int":
			put(target[0], target[1], v.GetInt(name))
		case "stringArray":
			put(target[0], target[1], toAny(v.GetStringSlice(name)))
		default:
			put(target[0], target[1], v.GetString(name))
		}
	}
	return overlay
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, s := range values {
		out[i] = s
	}
	return out
}

func runSync(cmd *cobra.Command, v *viper.Viper) error {
	out := cmd.OutOrStdout()

	if path := v.GetString("export-schema"); path != "" {
		if err := config.ExportSchema(path); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote config schema to %s\n", path)
		return nil
	}

	if v.GetBool("init-config") {
		path := v.GetString("config")
		if path == "" {
			path = config.DefaultFile
		}
		if err := config.WriteScaffold(path, v.GetBool("force")); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", path)
		return nil
	}

	cfg, err := config.Load(v.GetString("config"), v.GetString("env"))
	if err != nil {
		return err
	}
	cfg, err = config.ApplyCLI(cfg, cliOverlay(cmd, v))
	if err != nil {
		return err
	}

	logger := logging.SetDefault()
	if cfg.Source != "" {
		logger.Debug("config loaded", "file", cfg.Source, "environment", cfg.Environment, "mode", cfg.Mode)
	}

	stdout, _ := out.(*os.File)
	renderer := output.NewRenderer(output.ResolveColor(cfg.Output.Color, stdout))
	spin := newProgress(os.Stderr)
	defer spin.Stop()

	outcome, err := runner.Run(cmd.Context(), runner.Options{
		Config:   cfg,
		Renderer: renderer,
		Out:      out,
		Logger:   logger,
		Progress: spin.Update,
	})
	if err != nil {
		return err
	}
	if outcome.ReportPath != "" {
		logger.Info("coverage report written", "file", outcome.ReportPath)
	}
	if code := outcome.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// describe turns a fatal error into one actionable message
func describe(err error) string {
	var (
		notFound *config.NotFoundError
		fatal    *scanner.FatalMetadataError
	)
	switch {
	case errors.As(err, &notFound):
		return err.Error() + "\n  run `oasync --init-config` to create one"
	case errors.As(err, &fatal):
		return err.Error() + "\n  fix the YAML between the markers, the spec file was not modified"
	default:
		return err.Error()
	}
}

// report prints err and returns the process exit code
func report(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	r := output.NewRenderer(output.ResolveColor(config.ColorAuto, os.Stderr))
	fmt.Fprintln(w, r.Failure("error: "+describe(err)))
	return 1
}

// Execute runs the root command and exits with its status
func Execute() {
	os.Exit(report(rootCmd.Execute(), os.Stderr))
}
