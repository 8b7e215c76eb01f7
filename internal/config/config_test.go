package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oasync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.Equal(t, Defaults().Paths, cfg.Paths)
	assert.Equal(t, ModeCheck, cfg.Mode)
	assert.Equal(t, "text", cfg.Output.CoverageFormat)
	assert.Equal(t, ">>>openapi", cfg.Markers.OpenAPIStart)
	assert.Equal(t, 4, cfg.Options.Workers)
	assert.Empty(t, cfg.Source)
}

func TestLoadDefaultFileWhenPresent(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte("mode: fix\n"), 0644))

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.True(t, cfg.IsFix())
	assert.Equal(t, DefaultFile, cfg.Source)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Contains(t, err.Error(), "missing.yaml")
}

func TestLoadNullSections(t *testing.T) {
	path := writeConfig(t, "paths:\noutput: null\noptions: ~\n")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "internal/handlers", cfg.Paths.HandlersRoot)
	assert.Equal(t, ColorAuto, cfg.Output.Color)
}

func TestLoadMergesOntoDefaults(t *testing.T) {
	path := writeConfig(t, `
paths:
  handlers_root: api/handlers
options:
  fail_on_coverage_below: 80
  path_constants:
    APIPrefix: /api/v1
`)

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "api/handlers", cfg.Paths.HandlersRoot)
	assert.Equal(t, "internal/models", cfg.Paths.ModelsRoot)
	threshold, ok := cfg.Threshold()
	require.True(t, ok)
	assert.Equal(t, 80.0, threshold)
	assert.Equal(t, "/api/v1", cfg.Options.PathConstants["APIPrefix"])
}

func TestLoadToleratesUnknownTopLevelKeys(t *testing.T) {
	path := writeConfig(t, "mode: check\nowner: platform-team\n")

	_, err := Load(path, "")
	assert.NoError(t, err)
}

func TestLoadRejectsInvalidEnums(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"mode", "mode: sync\n", "mode"},
		{"color", "output:\n  color: rainbow\n", "color"},
		{"format", "output:\n  coverage_format: html\n", "coverage_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), "")

			var invalid *ValidationError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.NotEmpty(t, invalid.Violations)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadAcceptsXMLAlias(t *testing.T) {
	cfg, err := Load(writeConfig(t, "output:\n  coverage_format: xml\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "xml", cfg.Output.CoverageFormat)
}

const profiles = `
ignore:
  files: ["*_mock.go", "legacy/*"]
output:
  coverage_report: coverage/openapi.json
  coverage_format: json
environments:
  ci:
    mode: fix
    ignore:
      files: ["generated/*"]
    output:
      coverage_report: null
  empty: ~
`

func TestLoadEnvironmentProfile(t *testing.T) {
	cfg, err := Load(writeConfig(t, profiles), "ci")
	require.NoError(t, err)

	assert.Equal(t, "ci", cfg.Environment)
	assert.True(t, cfg.IsFix())
	assert.Equal(t, []string{"generated/*"}, cfg.Ignore.Files, "lists are replaced, never concatenated")
	assert.Empty(t, cfg.Output.CoverageReport, "explicit null overrides the base value")
	assert.Equal(t, "json", cfg.Output.CoverageFormat)
}

func TestLoadEmptyEnvironmentProfile(t *testing.T) {
	cfg, err := Load(writeConfig(t, profiles), "empty")
	require.NoError(t, err)
	assert.Equal(t, "coverage/openapi.json", cfg.Output.CoverageReport)
}

func TestLoadUnknownEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, profiles), "staging")

	var missing *EnvironmentNotFoundError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "staging", missing.Name)
	assert.Equal(t, []string{"ci", "empty"}, missing.Available)
	assert.Contains(t, err.Error(), `"staging"`)
}

func TestMergeConfigs(t *testing.T) {
	base := map[string]any{
		"mode": "check",
		"output": map[string]any{
			"color":           "auto",
			"coverage_format": "text",
		},
		"ignore": map[string]any{"files": []any{"a", "b"}},
	}

	t.Run("empty overlay", func(t *testing.T) {
		assert.Equal(t, base, MergeConfigs(base, map[string]any{}))
	})

	t.Run("deep merge", func(t *testing.T) {
		merged := MergeConfigs(base, map[string]any{
			"output": map[string]any{"color": "never"},
			"ignore": map[string]any{"files": []any{"c"}},
		})

		assert.Equal(t, map[string]any{"color": "never", "coverage_format": "text"}, merged["output"])
		assert.Equal(t, []any{"c"}, merged["ignore"].(map[string]any)["files"])
		assert.Equal(t, "auto", base["output"].(map[string]any)["color"], "base must not be mutated")
	})

	t.Run("explicit nil", func(t *testing.T) {
		merged := MergeConfigs(base, map[string]any{"mode": nil})
		value, ok := merged["mode"]
		assert.True(t, ok)
		assert.Nil(t, value)
	})

	t.Run("map replaces scalar", func(t *testing.T) {
		merged := MergeConfigs(map[string]any{"options": "x"}, map[string]any{"options": map[string]any{"workers": 2}})
		assert.Equal(t, map[string]any{"workers": 2}, merged["options"])
	})
}

func TestApplyCLI(t *testing.T) {
	base, err := Load(writeConfig(t, profiles), "")
	require.NoError(t, err)

	next, err := ApplyCLI(base, map[string]any{
		"mode":    "fix",
		"options": map[string]any{"show_orphans": true},
	})
	require.NoError(t, err)

	assert.True(t, next.IsFix())
	assert.True(t, next.Options.ShowOrphans)
	assert.Equal(t, "json", next.Output.CoverageFormat)
	assert.False(t, base.IsFix(), "the loaded config is never mutated")
}

func TestApplyCLINoOverlay(t *testing.T) {
	base := Defaults()
	next, err := ApplyCLI(base, nil)
	require.NoError(t, err)
	assert.Same(t, base, next)
}

func TestApplyCLIValidates(t *testing.T) {
	_, err := ApplyCLI(Defaults(), map[string]any{"output": map[string]any{"color": "sometimes"}})

	var invalid *ValidationError
	assert.True(t, errors.As(err, &invalid))
}

func TestEnsureCoverageReportExtension(t *testing.T) {
	tests := []struct {
		path, format, want string
	}{
		{"cov", "json", "cov.json"},
		{"cov.json", "json", "cov.json"},
		{"cov.log", "json", "cov.log"},
		{"cov", "text", "cov.txt"},
		{"reports/cov", "cobertura", "reports/cov.xml"},
		{"cov", "xml", "cov.xml"},
		{"", "json", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EnsureCoverageReportExtension(tt.path, tt.format), "%s/%s", tt.path, tt.format)
	}
}

func TestWriteScaffold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "oasync.yaml")

	require.NoError(t, WriteScaffold(path, false))

	err := WriteScaffold(path, false)
	assert.ErrorIs(t, err, ErrConfigExists)

	assert.NoError(t, WriteScaffold(path, true))

	cfg, err := Load(path, "ci")
	require.NoError(t, err, "the scaffold must validate")
	assert.Equal(t, "cobertura", cfg.Output.CoverageFormat)
}

func TestSchema(t *testing.T) {
	schema := string(Schema())

	assert.Contains(t, schema, `"handlers_root"`)
	assert.Contains(t, schema, `"cobertura"`)
	assert.Contains(t, schema, `"fix"`)
	assert.NotContains(t, schema, `"Source"`)

	path := filepath.Join(t.TempDir(), "schema", "oasync.schema.json")
	require.NoError(t, ExportSchema(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Schema(), data)
}
