package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "https://oasync.dev/config.schema.json"

var (
	schemaOnce     sync.Once
	schemaBytes    []byte
	compiled       *validator.Schema
	compileFailure error
)

// Schema returns the JSON Schema every config document is validated against
func Schema() []byte {
	loadSchema()
	return append([]byte(nil), schemaBytes...)
}

// ExportSchema writes the config JSON Schema to path
func ExportSchema(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create schema directory: %w", err)
		}
	}
	if err := os.WriteFile(path, Schema(), 0644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}
	return nil
}

func loadSchema() {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			FieldNameTag:              "yaml",
			AllowAdditionalProperties: true,
			DoNotReference:            true,
			ExpandedStruct:            true,
			Anonymous:                 true,
		}
		s := r.Reflect(&Config{})
		s.ID = schemaURL
		s.Title = "oasync configuration"
		s.Description = "Configuration schema for the OpenAPI specification synchronizer."

		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			compileFailure = fmt.Errorf("failed to marshal config schema: %w", err)
			return
		}
		schemaBytes = append(data, '\n')

		doc, err := validator.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileFailure = fmt.Errorf("failed to load config schema: %w", err)
			return
		}
		c := validator.NewCompiler()
		if err := c.AddResource(schemaURL, doc); err != nil {
			compileFailure = fmt.Errorf("failed to register config schema: %w", err)
			return
		}
		compiled, compileFailure = c.Compile(schemaURL)
	})
}

// validate checks m against the config schema. Nil leaves count as absent.
func validate(m map[string]any, source string) error {
	loadSchema()
	if compileFailure != nil {
		return compileFailure
	}

	data, err := json.Marshal(stripNil(m))
	if err != nil {
		return &ValidationError{Source: source, Violations: []string{err.Error()}}
	}
	instance, err := validator.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{Source: source, Violations: []string{err.Error()}}
	}

	if err := compiled.Validate(instance); err != nil {
		return &ValidationError{Source: source, Violations: violations(err)}
	}
	return nil
}

// violations flattens the validator's indented error tree into one line per cause
func violations(err error) []string {
	var out []string
	lines := strings.Split(err.Error(), "\n")
	for _, line := range lines[1:] {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "- ")
		if line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		out = append(out, lines[0])
	}
	return out
}
