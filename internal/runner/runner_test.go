package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/moamenhredeen/oasync/internal/config"
	"github.com/moamenhredeen/oasync/internal/output"
	"github.com/moamenhredeen/oasync/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlersSource = `package handlers

func Register(r *Router) {
	r.Route("/users/:id", GetUser)
	r.Route("/health", Health)
	r.Route("/debug", Debug)
}

// GetUser returns a user.
//
// >>>openapi
// summary: Get user
// tags: [users]
// responses:
//   "200":
//     description: OK
// <<<openapi
func GetUser(w http.ResponseWriter, r *http.Request) {}

func Health(w http.ResponseWriter, r *http.Request) {}

// openapi:ignore
func Debug(w http.ResponseWriter, r *http.Request) {}
`

const modelsSource = `package models

//openapi:component
type User struct {
	ID   int64  ` + "`json:\"id\"`" + `
	Name string ` + "`json:\"name\"`" + `
}
`

const driftedSpec = `openapi: 3.0.3
info:
  title: Users
  version: 1.0.0
# kept verbatim
x-owner: platform
paths:
  /users/{id}:
    get:
      summary: Old summary
      responses:
        "200":
          description: OK
  /legacy:
    get:
      responses:
        "200":
          description: OK
`

type fixture struct {
	dir  string
	spec string
}

func newFixture(t *testing.T, spec string) fixture {
	t.Helper()
	t.Setenv(output.StepSummaryEnv, "")
	dir := t.TempDir()
	write := func(name, content string) {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	write("handlers/routes.go", handlersSource)
	write("models/user.go", modelsSource)
	f := fixture{dir: dir, spec: filepath.Join(dir, "openapi.yaml")}
	if spec != "" {
		write("openapi.yaml", spec)
	}
	return f
}

func (f fixture) config(t *testing.T, mode string, extra map[string]any) *config.Config {
	t.Helper()
	raw := map[string]any{
		"mode": mode,
		"paths": map[string]any{
			"handlers_root": filepath.Join(f.dir, "handlers"),
			"models_root":   filepath.Join(f.dir, "models"),
			"swagger_file":  f.spec,
		},
		"output": map[string]any{"color": "never"},
	}
	cfg, err := config.FromMap(config.MergeConfigs(raw, extra), "", "")
	require.NoError(t, err)
	return cfg
}

func run(t *testing.T, cfg *config.Config) (*Outcome, string) {
	t.Helper()
	var out bytes.Buffer
	outcome, err := Run(context.Background(), Options{
		Config: cfg,
		Out:    &out,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return outcome, out.String()
}

func TestCheckReportsDriftWithoutWriting(t *testing.T) {
	f := newFixture(t, driftedSpec)

	outcome, out := run(t, f.config(t, config.ModeCheck, nil))

	assert.True(t, outcome.Changed)
	assert.False(t, outcome.Written)
	assert.Equal(t, 1, outcome.ExitCode())

	var keys []string
	for _, d := range outcome.Diffs {
		keys = append(keys, d.Key)
	}
	assert.Equal(t, []string{"/health#get", "/users/{id}#get", "#/components/schemas/User"}, keys)
	assert.Contains(t, out, "Old summary")
	assert.Contains(t, out, "Get user")
	assert.Contains(t, out, "out of sync, run with --fix")
	assert.Contains(t, out, "=== OpenAPI Coverage ===")

	data, err := os.ReadFile(f.spec)
	require.NoError(t, err)
	assert.Equal(t, driftedSpec, string(data), "check mode never writes")

	s := outcome.Report.Summary
	assert.Equal(t, 2, s.HandlersTotal)
	assert.Equal(t, 1, s.Ignored)
	assert.Equal(t, 1, s.WithOpenAPIBlock)
	assert.Equal(t, 1, s.InSwagger)
	assert.Equal(t, 0, s.DefinitionMatches)
	assert.Equal(t, 1, s.SwaggerOnly)
	assert.Equal(t, "GET /legacy", outcome.Report.Orphans[0].String())
}

func TestFixWritesAndIsIdempotent(t *testing.T) {
	f := newFixture(t, driftedSpec)

	first, out := run(t, f.config(t, config.ModeFix, nil))
	assert.True(t, first.Written)
	assert.Equal(t, 0, first.ExitCode())
	assert.Contains(t, out, "added /health#get")
	assert.Contains(t, out, "updated /users/{id}#get")
	assert.Contains(t, out, "added #/components/schemas/User")

	written, err := os.ReadFile(f.spec)
	require.NoError(t, err)
	for _, want := range []string{"# kept verbatim", "x-owner: platform", "/legacy:", "summary: Get user", "User:"} {
		assert.Contains(t, string(written), want)
	}
	assert.NotContains(t, string(written), "Old summary")
	assert.Equal(t, 1, first.Report.Summary.DefinitionMatches, "fix mode reports on the merged spec")

	second, out := run(t, f.config(t, config.ModeFix, nil))
	assert.False(t, second.Changed)
	assert.False(t, second.Written)
	assert.Contains(t, out, "already in sync")

	again, err := os.ReadFile(f.spec)
	require.NoError(t, err)
	assert.Equal(t, string(written), string(again))

	check, out := run(t, f.config(t, config.ModeCheck, nil))
	assert.Equal(t, 0, check.ExitCode())
	assert.Contains(t, out, "no drift detected")
}

func TestFixCreatesMissingSpec(t *testing.T) {
	f := newFixture(t, "")

	outcome, _ := run(t, f.config(t, config.ModeFix, nil))
	assert.True(t, outcome.Written)

	data, err := os.ReadFile(f.spec)
	require.NoError(t, err)
	assert.Contains(t, string(data), "openapi: 3.0.3")
	assert.Contains(t, string(data), "/users/{id}:")
	assert.Contains(t, string(data), "/health:")
	assert.NotContains(t, string(data), "/debug")
}

func TestDeterministicAcrossWorkers(t *testing.T) {
	f := newFixture(t, driftedSpec)

	one, _ := run(t, f.config(t, config.ModeCheck, map[string]any{"options": map[string]any{"workers": 1}}))
	many, _ := run(t, f.config(t, config.ModeCheck, map[string]any{"options": map[string]any{"workers": 8}}))

	assert.Equal(t, one.Diffs, many.Diffs)
	assert.Equal(t, one.Report.Records, many.Report.Records)
}

func TestThresholdFailsRun(t *testing.T) {
	f := newFixture(t, driftedSpec)

	cfg := f.config(t, config.ModeFix, map[string]any{
		"options": map[string]any{"fail_on_coverage_below": 80},
	})
	outcome, out := run(t, cfg)

	assert.True(t, outcome.Written)
	assert.False(t, outcome.Report.Threshold.Met)
	assert.InDelta(t, 0.8, outcome.Report.Threshold.Value, 1e-9)
	assert.Equal(t, 1, outcome.ExitCode())
	assert.Contains(t, out, "coverage 50.0% is below the required 80.0%")
}

func TestReportsAndListings(t *testing.T) {
	f := newFixture(t, driftedSpec)

	cfg := f.config(t, config.ModeCheck, map[string]any{
		"output": map[string]any{
			"coverage_report":  filepath.Join(f.dir, "reports", "coverage"),
			"coverage_format":  "json",
			"markdown_summary": filepath.Join(f.dir, "summary.md"),
		},
		"options": map[string]any{
			"show_orphans":        true,
			"show_ignored":        true,
			"show_missing_blocks": true,
			"verbose_coverage":    true,
		},
	})
	outcome, out := run(t, cfg)

	assert.Equal(t, filepath.Join(f.dir, "reports", "coverage.json"), outcome.ReportPath)
	report, err := os.ReadFile(outcome.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), `"format": "json"`)
	assert.Len(t, outcome.Report.ModelsFingerprint, 64)
	assert.Contains(t, string(report), `"models_fingerprint": "`+outcome.Report.ModelsFingerprint+`"`)

	summary, err := os.ReadFile(filepath.Join(f.dir, "summary.md"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "## OpenAPI sync")

	assert.Contains(t, out, "Swagger-only operations:\n  GET /legacy")
	assert.Contains(t, out, "GET /debug (function-level ignore marker)")
	assert.Contains(t, out, "GET /health (Health)")
	assert.Contains(t, out, "MISSING_SWAGGER")
}

func TestFatalMetadataAborts(t *testing.T) {
	f := newFixture(t, driftedSpec)
	broken := `package handlers

// Broken has a malformed block.
//
// >>>openapi
// summary: [unclosed
// <<<openapi
func Broken(w http.ResponseWriter, r *http.Request) {}

func init() { Route("/broken", Broken) }
`
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "handlers", "broken.go"), []byte(broken), 0644))

	_, err := Run(context.Background(), Options{
		Config: f.config(t, config.ModeFix, nil),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	var fatal *scanner.FatalMetadataError
	require.True(t, errors.As(err, &fatal))
	assert.Equal(t, "Broken", fatal.Function)

	data, err := os.ReadFile(f.spec)
	require.NoError(t, err)
	assert.Equal(t, driftedSpec, string(data))
}

func TestModelsFingerprintFollowsModelSources(t *testing.T) {
	f := newFixture(t, driftedSpec)

	before, _ := run(t, f.config(t, config.ModeCheck, nil))
	again, _ := run(t, f.config(t, config.ModeCheck, nil))
	assert.Equal(t, before.Report.ModelsFingerprint, again.Report.ModelsFingerprint)

	changed := strings.Replace(modelsSource, "Name string", "Label string", 1)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "models", "user.go"), []byte(changed), 0644))

	after, _ := run(t, f.config(t, config.ModeCheck, nil))
	assert.NotEqual(t, before.Report.ModelsFingerprint, after.Report.ModelsFingerprint)
}

func TestSpecWarningsArePrinted(t *testing.T) {
	f := newFixture(t, driftedSpec+`  /orphans/{id}:
    get:
      summary: no responses
`)

	outcome, out := run(t, f.config(t, config.ModeCheck, nil))

	assert.Contains(t, outcome.Lint, "GET /orphans/{id}: operation has no responses")
	assert.Contains(t, out, "Spec warnings:")
	assert.Contains(t, out, "! GET /orphans/{id}: operation has no responses")
}
