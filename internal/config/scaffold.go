package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const scaffold = `# oasync configuration
# Validate with: oasync --export-schema oasync.schema.json

# check reports drift without touching the spec, fix rewrites it
mode: check

paths:
  handlers_root: internal/handlers
  models_root: internal/models
  swagger_file: openapi.yaml

output:
  # coverage_report: coverage/openapi
  coverage_format: text
  # markdown_summary: openapi-summary.md
  color: auto

options:
  # fail_on_coverage_below: 80
  show_orphans: false
  show_ignored: false
  show_missing_blocks: false
  verbose_coverage: false
  workers: 4
  # path_constants:
  #   APIPrefix: /api/v1

markers:
  openapi_start: ">>>openapi"
  openapi_end: "<<<openapi"
  ignore: "openapi:ignore"
  component: "openapi:component"
  property: "openapi:property"

ignore:
  files:
    - "*_mock.go"

environments:
  ci:
    mode: check
    output:
      coverage_report: coverage/openapi.xml
      coverage_format: cobertura
      color: never
    options:
      fail_on_coverage_below: 0.8
`

// WriteScaffold writes a commented default config to path.
// An existing file is only replaced when force is set.
func WriteScaffold(path string, force bool) error {
	if path == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(scaffold), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// EnsureCoverageReportExtension appends the format's extension when path has none.
// An explicit extension is always respected, even when it does not match.
func EnsureCoverageReportExtension(path, format string) string {
	if path == "" || filepath.Ext(path) != "" {
		return path
	}
	switch strings.ToLower(format) {
	case "json":
		return path + ".json"
	case "text":
		return path + ".txt"
	case "cobertura", "xml":
		return path + ".xml"
	default:
		return path
	}
}
