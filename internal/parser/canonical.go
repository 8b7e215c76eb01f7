package parser

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Normalize converts decoded YAML into plain JSON-compatible values:
// mapping keys become strings (so `200:` and `"200":` compare equal) and
// nested maps become map[string]any.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

// Canonical renders v as YAML with sorted mapping keys. Two values are
// structurally equal exactly when their canonical forms are equal.
func Canonical(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	out, err := yaml.Marshal(Normalize(v))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Equal reports structural equality of two decoded values
func Equal(a, b any) bool {
	ca, err := Canonical(a)
	if err != nil {
		return false
	}
	cb, err := Canonical(b)
	if err != nil {
		return false
	}
	return ca == cb
}
