package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moamenhredeen/oasync/internal/models"
	"gopkg.in/yaml.v3"
)

// StandardMethods lists the path item keys that denote operations
var StandardMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// IsStandardMethod reports whether method is an OpenAPI operation verb
func IsStandardMethod(method string) bool {
	method = strings.ToLower(method)
	for _, m := range StandardMethods {
		if m == method {
			return true
		}
	}
	return false
}

const skeleton = `openapi: 3.0.3
info:
  title: API
  version: 1.0.0
paths: {}
`

// Document is an OpenAPI specification held as a YAML node tree.
// Only paths and components.schemas are ever rewritten; every other node is
// passed through untouched, comments included.
type Document struct {
	root *yaml.Node
}

// OperationRef identifies an operation within the document
type OperationRef struct {
	Path   string
	Method string
}

// New returns a minimal OpenAPI 3.0.3 document
func New() *Document {
	doc, err := Parse([]byte(skeleton))
	if err != nil {
		panic(err)
	}
	return doc
}

// Load reads the spec file at path. A missing file yields New().
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI file %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a YAML (or JSON) OpenAPI document
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document root is not a mapping")
	}
	return &Document{root: &root}, nil
}

// Clone returns a deep copy of the document
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root)}
}

// Bytes renders the document as YAML with two-space indentation
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.root); err != nil {
		return nil, fmt.Errorf("failed to encode OpenAPI document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Document) mapping() *yaml.Node {
	return d.root.Content[0]
}

// Operation returns the decoded operation at paths[path][method]
func (d *Document) Operation(path, method string) (map[string]any, bool) {
	item := lookup(lookup(d.mapping(), "paths"), path)
	node := lookup(item, strings.ToLower(method))
	if node == nil {
		return nil, false
	}
	return decodeMap(node), true
}

// SetOperation replaces or creates paths[path][method]
func (d *Document) SetOperation(path, method string, op map[string]any) error {
	node, err := encode(op)
	if err != nil {
		return fmt.Errorf("failed to encode operation %s: %w", models.OperationKey(path, method), err)
	}
	paths := ensureMapping(d.mapping(), "paths")
	item := ensureMapping(paths, path)
	set(item, strings.ToLower(method), node)
	return nil
}

// Operations lists every (path, method) using a standard verb, in document order
func (d *Document) Operations() []OperationRef {
	var refs []OperationRef
	paths := lookup(d.mapping(), "paths")
	if paths == nil || paths.Kind != yaml.MappingNode {
		return refs
	}
	for i := 0; i+1 < len(paths.Content); i += 2 {
		item := paths.Content[i+1]
		if item.Kind != yaml.MappingNode {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			method := item.Content[j].Value
			if IsStandardMethod(method) {
				refs = append(refs, OperationRef{Path: paths.Content[i].Value, Method: strings.ToLower(method)})
			}
		}
	}
	return refs
}

// Schema returns the decoded components.schemas[name]
func (d *Document) Schema(name string) (map[string]any, bool) {
	node := lookup(d.schemas(), name)
	if node == nil {
		return nil, false
	}
	return decodeMap(node), true
}

// SetSchema replaces or creates components.schemas[name]
func (d *Document) SetSchema(name string, schema map[string]any) error {
	node, err := encode(schema)
	if err != nil {
		return fmt.Errorf("failed to encode schema %s: %w", name, err)
	}
	components := ensureMapping(d.mapping(), "components")
	schemas := ensureMapping(components, "schemas")
	set(schemas, name, node)
	return nil
}

// SchemaNames returns the sorted names under components.schemas
func (d *Document) SchemaNames() []string {
	var names []string
	schemas := d.schemas()
	if schemas == nil || schemas.Kind != yaml.MappingNode {
		return names
	}
	for i := 0; i+1 < len(schemas.Content); i += 2 {
		names = append(names, schemas.Content[i].Value)
	}
	sort.Strings(names)
	return names
}

func (d *Document) schemas() *yaml.Node {
	return lookup(lookup(d.mapping(), "components"), "schemas")
}

// WriteAtomic replaces path with data via a temp file and rename,
// so readers never observe a partially written spec.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".oasync-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// ensureMapping returns m[key], replacing a missing or non-mapping value with {}
func ensureMapping(m *yaml.Node, key string) *yaml.Node {
	if child := lookup(m, key); child != nil && child.Kind == yaml.MappingNode {
		return child
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	set(m, key, child)
	return child
}

func set(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	// `paths: {}` must grow as a block mapping
	m.Style &^= yaml.FlowStyle
	m.Content = append(m.Content, keyNode, value)
}

func encode(v any) (*yaml.Node, error) {
	var node yaml.Node
	if err := node.Encode(Normalize(v)); err != nil {
		return nil, err
	}
	return &node, nil
}

func decodeMap(node *yaml.Node) map[string]any {
	var v any
	if err := node.Decode(&v); err != nil {
		return map[string]any{}
	}
	m, ok := Normalize(v).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Alias != nil {
		c.Alias = cloneNode(n.Alias)
	}
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}
