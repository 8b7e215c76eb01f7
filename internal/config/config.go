package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config path is given and it exists
const DefaultFile = ".oasync.yaml"

// Run modes
const (
	ModeCheck = "check"
	ModeFix   = "fix"
)

// Color modes
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// sections are normalized from null to an empty mapping before merging
var sections = []string{"paths", "output", "options", "markers", "ignore", "environments"}

// Paths locates the scan inputs and the master spec file
type Paths struct {
	HandlersRoot string `yaml:"handlers_root,omitempty" jsonschema:"description=Directory scanned for route declarations"`
	ModelsRoot   string `yaml:"models_root,omitempty" jsonschema:"description=Directory scanned for component structs"`
	SwaggerFile  string `yaml:"swagger_file,omitempty" jsonschema:"description=Master OpenAPI specification file"`
}

// Output controls report files and terminal rendering
type Output struct {
	CoverageReport  string `yaml:"coverage_report,omitempty" jsonschema:"description=Coverage report path"`
	CoverageFormat  string `yaml:"coverage_format,omitempty" jsonschema:"enum=json,enum=text,enum=cobertura,enum=xml"`
	MarkdownSummary string `yaml:"markdown_summary,omitempty" jsonschema:"description=Markdown run summary path"`
	Color           string `yaml:"color,omitempty" jsonschema:"enum=auto,enum=always,enum=never"`
}

// Options tunes reporting and scanning
type Options struct {
	FailOnCoverageBelow *float64          `yaml:"fail_on_coverage_below,omitempty" jsonschema:"description=Minimum handler coverage as 0-1 or 0-100"`
	ShowOrphans         bool              `yaml:"show_orphans,omitempty"`
	ShowIgnored         bool              `yaml:"show_ignored,omitempty"`
	ShowMissingBlocks   bool              `yaml:"show_missing_blocks,omitempty"`
	VerboseCoverage     bool              `yaml:"verbose_coverage,omitempty"`
	PathConstants       map[string]string `yaml:"path_constants,omitempty" jsonschema:"description=Constants allowed in route path concatenations"`
	Workers             int               `yaml:"workers,omitempty" jsonschema:"minimum=1"`
}

// Markers are the sentinels recognized in doc comments
type Markers struct {
	OpenAPIStart string `yaml:"openapi_start,omitempty"`
	OpenAPIEnd   string `yaml:"openapi_end,omitempty"`
	Ignore       string `yaml:"ignore,omitempty"`
	Component    string `yaml:"component,omitempty"`
	Property     string `yaml:"property,omitempty"`
}

// Ignore lists files excluded from scanning
type Ignore struct {
	Files []string `yaml:"files,omitempty" jsonschema:"description=Glob patterns matched against relative paths and base names"`
}

// Config is the resolved run configuration. It is built once per process
// and treated as read-only afterwards; overlays return a new Config.
type Config struct {
	Paths        Paths                     `yaml:"paths,omitempty"`
	Output       Output                    `yaml:"output,omitempty"`
	Mode         string                    `yaml:"mode,omitempty" jsonschema:"enum=check,enum=fix"`
	Options      Options                   `yaml:"options,omitempty"`
	Markers      Markers                   `yaml:"markers,omitempty"`
	Ignore       Ignore                    `yaml:"ignore,omitempty"`
	Environments map[string]map[string]any `yaml:"environments,omitempty" jsonschema:"description=Named partial overlays selected with --env"`

	// Source is the file the config was read from, empty for defaults only
	Source string `yaml:"-"`
	// Environment is the applied profile name
	Environment string `yaml:"-"`

	raw map[string]any
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Paths: Paths{
			HandlersRoot: "internal/handlers",
			ModelsRoot:   "internal/models",
			SwaggerFile:  "openapi.yaml",
		},
		Output: Output{
			CoverageFormat: "text",
			Color:          ColorAuto,
		},
		Mode: ModeCheck,
		Options: Options{
			Workers: 4,
		},
		Markers: Markers{
			OpenAPIStart: ">>>openapi",
			OpenAPIEnd:   "<<<openapi",
			Ignore:       "openapi:ignore",
			Component:    "openapi:component",
			Property:     "openapi:property",
		},
	}
}

// IsFix reports whether the run rewrites the spec file
func (c *Config) IsFix() bool {
	return c.Mode == ModeFix
}

// Threshold returns the configured coverage threshold, if any
func (c *Config) Threshold() (float64, bool) {
	if c.Options.FailOnCoverageBelow == nil {
		return 0, false
	}
	return *c.Options.FailOnCoverageBelow, true
}

// Load reads the config file at path and applies the named environment profile.
// An empty path falls back to DefaultFile when it exists, otherwise to Defaults().
func Load(path, env string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	raw := map[string]any{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		raw, err = decodeDocument(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if explicit {
			return nil, &NotFoundError{Path: path}
		}
		path = ""
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return FromMap(raw, env, path)
}

// FromMap resolves a decoded config mapping: null sections become empty
// mappings, defaults are overlaid, the schema is checked and the profile applied.
func FromMap(raw map[string]any, env, source string) (*Config, error) {
	raw = normalizeSections(raw)
	if err := validate(raw, source); err != nil {
		return nil, err
	}

	defaults, err := toMap(Defaults())
	if err != nil {
		return nil, err
	}
	merged := MergeConfigs(defaults, raw)

	if env != "" {
		profiles, _ := merged["environments"].(map[string]any)
		profile, ok := profiles[env]
		if !ok {
			return nil, &EnvironmentNotFoundError{Name: env, Available: sortedKeys(profiles)}
		}
		overlay, _ := profile.(map[string]any)
		merged = MergeConfigs(merged, normalizeSections(overlay))
		if err := validate(merged, source+" (environment "+env+")"); err != nil {
			return nil, err
		}
	}

	cfg, err := fromMap(merged)
	if err != nil {
		return nil, err
	}
	cfg.Source = source
	cfg.Environment = env
	return cfg, nil
}

// ApplyCLI overlays the supplied command line values onto cfg.
// overlay must only carry values the caller actually supplied.
func ApplyCLI(cfg *Config, overlay map[string]any) (*Config, error) {
	if len(overlay) == 0 {
		return cfg, nil
	}
	base := cfg.raw
	if base == nil {
		var err error
		if base, err = toMap(cfg); err != nil {
			return nil, err
		}
	}
	merged := MergeConfigs(base, normalizeSections(overlay))
	if err := validate(merged, "command line"); err != nil {
		return nil, err
	}
	next, err := fromMap(merged)
	if err != nil {
		return nil, err
	}
	next.Source = cfg.Source
	next.Environment = cfg.Environment
	return next, nil
}

func decodeDocument(data []byte) (map[string]any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := normalize(v).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config root must be a mapping")
	}
	return m, nil
}

func fromMap(m map[string]any) (*Config, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.raw = m
	return cfg, nil
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return decodeDocument(data)
}

func normalizeSections(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, key := range sections {
		if v, ok := out[key]; ok && v == nil {
			out[key] = map[string]any{}
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
