package generator

import (
	"regexp"
	"sort"
	"strings"

	"github.com/moamenhredeen/oasync/internal/examples"
	"github.com/moamenhredeen/oasync/internal/models"
	"github.com/moamenhredeen/oasync/internal/parser"
)

var (
	colonParam   = regexp.MustCompile(`:([A-Za-z_][A-Za-z0-9_]*)`)
	angleParam   = regexp.MustCompile(`<(?:[^:<>]+:)?([^:<>]+)>`)
	templateVars = regexp.MustCompile(`\{([^{}]+)\}`)
)

// Build normalizes scanner output into canonical endpoints.
// The first candidate for a (path, method) wins, later ones are reported
// as ignored duplicates. Both lists come back sorted by (path, method).
func Build(candidates []models.Candidate, ignored []models.IgnoredEndpoint) *models.EndpointSet {
	set := &models.EndpointSet{}
	seen := map[string]bool{}

	for _, c := range candidates {
		path := NormalizePath(c.Path)
		method := strings.ToLower(c.Method)

		reason := ""
		switch {
		case !parser.IsStandardMethod(method):
			reason = models.ReasonMethod
		case seen[models.OperationKey(path, method)]:
			reason = models.ReasonDuplicate
		}
		if reason != "" {
			set.Ignored = append(set.Ignored, models.IgnoredEndpoint{
				Path:         path,
				Method:       method,
				SourceFile:   c.SourceFile,
				Line:         c.Line,
				FunctionName: c.FunctionName,
				Reason:       reason,
			})
			continue
		}
		seen[models.OperationKey(path, method)] = true

		set.Endpoints = append(set.Endpoints, models.Endpoint{
			Path:         path,
			Method:       method,
			Operation:    BuildOperation(path, method, c.Block, c.Examples),
			SourceFile:   c.SourceFile,
			Line:         c.Line,
			FunctionName: c.FunctionName,
			HasBlock:     c.Block != nil,
		})
	}

	for _, ig := range ignored {
		if ig.Reason != models.ReasonPatternRoute {
			ig.Path = NormalizePath(ig.Path)
		}
		ig.Method = strings.ToLower(ig.Method)
		set.Ignored = append(set.Ignored, ig)
	}

	sort.SliceStable(set.Endpoints, func(i, j int) bool {
		a, b := set.Endpoints[i], set.Endpoints[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Method < b.Method
	})
	sort.SliceStable(set.Ignored, func(i, j int) bool {
		a, b := set.Ignored[i], set.Ignored[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Method < b.Method
	})
	return set
}

// BuildOperation renders the operation for an endpoint from its metadata block.
// Defaults are applied first so examples can extend them.
func BuildOperation(path, method string, block map[string]any, rawExamples []any) map[string]any {
	op := map[string]any{}
	for key, value := range block {
		op[key] = deepCopy(value)
	}

	if responses, ok := op["responses"].(map[string]any); !ok || len(responses) == 0 {
		op["responses"] = map[string]any{
			"200": map[string]any{"description": "OK"},
		}
	}

	addPathParameters(op, path)

	if len(rawExamples) > 0 {
		examples.Apply(op, method, examples.Parse(deepCopy(rawExamples).([]any)))
	}
	return op
}

// NormalizePath converts a route path into an OpenAPI path template:
// a leading slash is enforced and :name or <name> segments become {name}.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = angleParam.ReplaceAllString(path, "{$1}")
	return colonParam.ReplaceAllString(path, "{$1}")
}

// addPathParameters declares template variables the block did not declare.
// A $ref parameter may declare any of them, so none are added when one is present.
func addPathParameters(op map[string]any, path string) {
	matches := templateVars.FindAllStringSubmatch(path, -1)
	if len(matches) == 0 {
		return
	}

	params, _ := op["parameters"].([]any)
	declared := map[string]bool{}
	for _, p := range params {
		param, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if _, isRef := param["$ref"]; isRef {
			return
		}
		if param["in"] == "path" {
			if name, ok := param["name"].(string); ok {
				declared[name] = true
			}
		}
	}

	for _, m := range matches {
		name := m[1]
		if declared[name] {
			continue
		}
		declared[name] = true
		params = append(params, map[string]any{
			"name":     name,
			"in":       "path",
			"required": true,
			"schema":   map[string]any{"type": "string"},
		})
	}
	op["parameters"] = params
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
