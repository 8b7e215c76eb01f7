// Package schema infers OpenAPI component schemas from Go struct declarations.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const refPrefix = "#/components/schemas/"

// Markers are the doc comment directives recognized on model types
type Markers struct {
	Component string
	Property  string
}

// Result holds the inferred components and a fingerprint of the model sources
type Result struct {
	Components  map[string]map[string]any
	Warnings    []string
	Fingerprint string
	Files       int
}

// Names returns the sorted component names
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Components))
	for name := range r.Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type component struct {
	name      string
	file      string
	spec      *ast.TypeSpec
	doc       []string
	structure *ast.StructType
}

// Extract parses the model sources under root. A missing root yields an
// empty result with a warning, so handler-only projects still run.
func Extract(root string, markers Markers, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	result := &Result{Components: map[string]map[string]any{}}

	info, err := os.Stat(root)
	if errors.Is(err, os.ErrNotExist) {
		msg := fmt.Sprintf("models root %s does not exist, no components extracted", root)
		result.Warnings = append(result.Warnings, msg)
		logger.Warn(msg)
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("models root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("models root %s is not a directory", root)
	}

	paths, err := modelFiles(root)
	if err != nil {
		return nil, err
	}

	hash := sha256.New()
	fset := token.NewFileSet()
	var files []*ast.File
	var components []component

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model file: %w", err)
		}
		rel, _ := filepath.Rel(root, path)
		fmt.Fprintf(hash, "%s\x00%d\x00", filepath.ToSlash(rel), len(data))
		hash.Write(data)
		result.Files++

		file, err := parser.ParseFile(fset, path, data, parser.ParseComments)
		if err != nil {
			msg := fmt.Sprintf("skipping %s: %v", path, err)
			result.Warnings = append(result.Warnings, msg)
			logger.Warn("skipping unparsable model file", "file", path, "error", err)
			continue
		}
		files = append(files, file)
		components = append(components, markedStructs(file, path, markers.Component)...)
	}
	result.Fingerprint = hex.EncodeToString(hash.Sum(nil))

	known := map[string]bool{}
	for _, c := range components {
		if known[c.name] {
			msg := fmt.Sprintf("%s: component %s declared more than once, keeping the first declaration", c.file, c.name)
			result.Warnings = append(result.Warnings, msg)
			logger.Warn(msg)
			continue
		}
		known[c.name] = true
	}

	defaults := constructorDefaults(files)
	done := map[string]bool{}
	for _, c := range components {
		if done[c.name] {
			continue
		}
		done[c.name] = true
		schema, warnings := buildSchema(c, known, defaults[c.name], markers.Property)
		result.Components[c.name] = schema
		for _, w := range warnings {
			logger.Warn(w)
		}
		result.Warnings = append(result.Warnings, warnings...)
	}

	logger.Debug("schema extraction complete", "root", root, "files", result.Files, "components", len(result.Components))
	return result, nil
}

func modelFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") && !strings.HasPrefix(name, ".") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk models root: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// markedStructs returns the struct types whose doc comment carries marker
func markedStructs(file *ast.File, path, marker string) []component {
	var out []component
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts := spec.(*ast.TypeSpec)
			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				continue
			}
			doc := commentLines(ts.Doc)
			if len(gen.Specs) == 1 {
				doc = append(commentLines(gen.Doc), doc...)
			}
			if !hasDirective(doc, marker) {
				continue
			}
			out = append(out, component{name: ts.Name.Name, file: path, spec: ts, doc: doc, structure: st})
		}
	}
	return out
}

// constructorDefaults maps a type name to the field literals of its New<Type> constructor
func constructorDefaults(files []*ast.File) map[string]map[string]ast.Expr {
	out := map[string]map[string]ast.Expr{}
	for _, file := range files {
		for _, decl := range file.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Recv != nil || fd.Body == nil || !strings.HasPrefix(fd.Name.Name, "New") {
				continue
			}
			typeName := strings.TrimPrefix(fd.Name.Name, "New")
			ast.Inspect(fd.Body, func(n ast.Node) bool {
				lit, ok := n.(*ast.CompositeLit)
				if !ok {
					return true
				}
				id, ok := lit.Type.(*ast.Ident)
				if !ok || id.Name != typeName {
					return true
				}
				fields := out[typeName]
				if fields == nil {
					fields = map[string]ast.Expr{}
					out[typeName] = fields
				}
				for _, elt := range lit.Elts {
					kv, ok := elt.(*ast.KeyValueExpr)
					if !ok {
						continue
					}
					if key, ok := kv.Key.(*ast.Ident); ok {
						if _, seen := fields[key.Name]; !seen {
							fields[key.Name] = kv.Value
						}
					}
				}
				return false
			})
		}
	}
	return out
}

func buildSchema(c component, known map[string]bool, defaults map[string]ast.Expr, propertyMarker string) (map[string]any, []string) {
	var warnings []string
	properties := map[string]any{}
	goNames := map[string]string{}

	for _, field := range c.structure.Fields.List {
		if len(field.Names) == 0 {
			continue
		}
		name, skip := jsonName(field)
		for _, ident := range field.Names {
			if !ident.IsExported() || skip {
				continue
			}
			propName := name
			if propName == "" {
				propName = ident.Name
			}

			prop, resolved := typeSchema(field.Type, known)
			if !resolved {
				prop = literalSchema(defaults[ident.Name])
			}
			if desc := fieldDescription(field); desc != "" {
				prop["description"] = desc
			}
			properties[propName] = prop
			goNames[ident.Name] = propName
		}
	}

	for _, o := range propertyOverrides(c.doc, propertyMarker) {
		key := o.name
		if mapped, ok := goNames[key]; ok {
			key = mapped
		}
		prop, ok := properties[key].(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s: %s override names unknown property %q", c.file, c.name, o.name))
			continue
		}
		prop["description"] = o.description
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
	}, warnings
}

// jsonName returns the json tag name and whether the field is excluded
func jsonName(field *ast.Field) (string, bool) {
	if field.Tag == nil {
		return "", false
	}
	raw, err := strconv.Unquote(field.Tag.Value)
	if err != nil {
		return "", false
	}
	tag := reflect.StructTag(raw).Get("json")
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, false
}

func fieldDescription(field *ast.Field) string {
	for _, group := range []*ast.CommentGroup{field.Doc, field.Comment} {
		if group == nil {
			continue
		}
		if text := strings.Join(strings.Fields(group.Text()), " "); text != "" {
			return text
		}
	}
	return ""
}

type override struct {
	name        string
	description string
}

func propertyOverrides(doc []string, marker string) []override {
	if marker == "" {
		return nil
	}
	var out []override
	for _, line := range doc {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), marker)
		if !ok {
			continue
		}
		name, desc, _ := strings.Cut(strings.TrimSpace(rest), " ")
		if name == "" {
			continue
		}
		out = append(out, override{name: name, description: strings.TrimSpace(desc)})
	}
	return out
}

func commentLines(group *ast.CommentGroup) []string {
	if group == nil {
		return nil
	}
	var lines []string
	for _, c := range group.List {
		text := c.Text
		if strings.HasPrefix(text, "//") {
			lines = append(lines, strings.TrimPrefix(text[2:], " "))
			continue
		}
		text = strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/")
		lines = append(lines, strings.Split(text, "\n")...)
	}
	return lines
}

func hasDirective(lines []string, marker string) bool {
	if marker == "" {
		return false
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == marker || strings.HasPrefix(line, marker+" ") {
			return true
		}
	}
	return false
}
