package schema

import (
	"go/ast"
	"go/token"
	"strconv"
)

// typeSchema maps a Go type expression onto an OpenAPI schema.
// It reports false when the type carries no usable information.
func typeSchema(expr ast.Expr, known map[string]bool) (map[string]any, bool) {
	switch t := expr.(type) {
	case *ast.Ident:
		return identSchema(t.Name, known)
	case *ast.StarExpr:
		inner, resolved := typeSchema(t.X, known)
		if !resolved {
			inner = map[string]any{"type": "string"}
		}
		if _, ok := inner["$ref"]; ok {
			return map[string]any{"allOf": []any{inner}, "nullable": true}, true
		}
		inner["nullable"] = true
		return inner, true
	case *ast.ArrayType:
		if id, ok := t.Elt.(*ast.Ident); ok && id.Name == "byte" {
			return map[string]any{"type": "string", "format": "byte"}, true
		}
		items, resolved := typeSchema(t.Elt, known)
		if !resolved {
			items = map[string]any{"type": "string"}
		}
		return map[string]any{"type": "array", "items": items}, true
	case *ast.MapType:
		values, resolved := typeSchema(t.Value, known)
		if !resolved {
			return map[string]any{"type": "object", "additionalProperties": true}, true
		}
		return map[string]any{"type": "object", "additionalProperties": values}, true
	case *ast.SelectorExpr:
		return selectorSchema(t)
	case *ast.StructType:
		return map[string]any{"type": "object"}, true
	case *ast.InterfaceType:
		return nil, false
	}
	return map[string]any{"type": "string"}, true
}

func identSchema(name string, known map[string]bool) (map[string]any, bool) {
	switch name {
	case "string":
		return map[string]any{"type": "string"}, true
	case "bool":
		return map[string]any{"type": "boolean"}, true
	case "int", "int8", "int16", "int32", "uint", "uint8", "uint16", "uint32", "byte", "rune":
		return map[string]any{"type": "integer"}, true
	case "int64", "uint64":
		return map[string]any{"type": "integer", "format": "int64"}, true
	case "float32":
		return map[string]any{"type": "number", "format": "float"}, true
	case "float64":
		return map[string]any{"type": "number", "format": "double"}, true
	case "any":
		return nil, false
	}
	if known[name] {
		return map[string]any{"$ref": refPrefix + name}, true
	}
	// Types outside the component set fall back to string
	return map[string]any{"type": "string"}, true
}

func selectorSchema(sel *ast.SelectorExpr) (map[string]any, bool) {
	pkg, ok := sel.X.(*ast.Ident)
	if !ok {
		return map[string]any{"type": "string"}, true
	}
	switch pkg.Name + "." + sel.Sel.Name {
	case "time.Time":
		return map[string]any{"type": "string", "format": "date-time"}, true
	case "time.Duration":
		return map[string]any{"type": "integer", "format": "int64"}, true
	case "uuid.UUID":
		return map[string]any{"type": "string", "format": "uuid"}, true
	case "json.RawMessage":
		return nil, false
	case "json.Number":
		return map[string]any{"type": "number"}, true
	}
	return map[string]any{"type": "string"}, true
}

// literalSchema infers a schema from a constructor default. Without a usable
// literal the property is a string; a nil default also makes it nullable.
func literalSchema(expr ast.Expr) map[string]any {
	switch e := expr.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.INT:
			return map[string]any{"type": "integer"}
		case token.FLOAT:
			return map[string]any{"type": "number"}
		case token.STRING, token.CHAR:
			if _, err := strconv.Unquote(e.Value); err == nil {
				return map[string]any{"type": "string"}
			}
		}
	case *ast.Ident:
		switch e.Name {
		case "true", "false":
			return map[string]any{"type": "boolean"}
		case "nil":
			return map[string]any{"type": "string", "nullable": true}
		}
	case *ast.UnaryExpr:
		if e.Op == token.SUB {
			return literalSchema(e.X)
		}
	case *ast.CompositeLit:
		switch e.Type.(type) {
		case *ast.ArrayType:
			return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
		case *ast.MapType:
			return map[string]any{"type": "object"}
		}
	}
	return map[string]any{"type": "string"}
}
