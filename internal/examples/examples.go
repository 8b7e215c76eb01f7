// Package examples projects declared example records onto operations.
package examples

import (
	"fmt"
	"strings"

	"github.com/moamenhredeen/oasync/internal/models"
)

const (
	defaultContentType         = "application/json"
	defaultResponseDescription = "Response"
	schemaExamplesKey          = "x-schema-examples"
)

// Parse converts the raw example records of a metadata block.
// Records that are not mappings are dropped.
func Parse(raw []any) []models.Example {
	var out []models.Example
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ex := models.Example{
			Name:          str(m["name"]),
			Placement:     models.Placement(str(m["placement"])),
			ParameterName: str(m["parameter_name"]),
			ParameterIn:   str(m["in"]),
			StatusCode:    str(m["status_code"]),
			ContentType:   str(first(m, "content_type", "contentType")),
			SchemaName:    str(m["schema"]),
			Summary:       str(m["summary"]),
			Description:   str(m["description"]),
			Ref:           str(first(m, "$ref", "ref")),
			ExternalValue: str(first(m, "externalValue", "external_value")),
		}
		ex.Value, ex.HasValue = m["value"]

		switch methods := m["methods"].(type) {
		case []any:
			for _, method := range methods {
				if s := str(method); s != "" {
					ex.Methods = append(ex.Methods, s)
				}
			}
		case string:
			ex.Methods = []string{methods}
		}

		for key, value := range m {
			if strings.HasPrefix(key, "x-") {
				if ex.Extensions == nil {
					ex.Extensions = map[string]any{}
				}
				ex.Extensions[key] = value
			}
		}
		out = append(out, ex)
	}
	return out
}

// Apply projects examples onto op for the given HTTP method.
// Later examples with the same name replace earlier ones.
func Apply(op map[string]any, method string, examples []models.Example) {
	for _, ex := range examples {
		if ex.Name == "" || ex.Placement == "" || !methodAllowed(ex.Methods, method) {
			continue
		}
		switch ex.Placement {
		case models.PlacementParameter:
			applyParameter(op, ex)
		case models.PlacementRequestBody:
			applyRequestBody(op, ex)
		case models.PlacementResponse:
			applyResponse(op, ex)
		case models.PlacementSchema:
			applySchema(op, ex)
		}
	}
}

func applyParameter(op map[string]any, ex models.Example) {
	if ex.ParameterName == "" {
		return
	}
	params, _ := op["parameters"].([]any)
	for _, p := range params {
		param, ok := p.(map[string]any)
		if !ok || str(param["name"]) != ex.ParameterName {
			continue
		}
		if ex.ParameterIn != "" && str(param["in"]) != ex.ParameterIn {
			continue
		}
		ensureMap(param, "examples")[ex.Name] = Node(ex)
		return
	}
}

func applyRequestBody(op map[string]any, ex models.Example) {
	body := ensureMap(op, "requestBody")
	if _, isRef := body["$ref"]; isRef {
		return
	}
	media := ensureMap(ensureMap(body, "content"), contentType(ex))
	ensureMap(media, "examples")[ex.Name] = Node(ex)
}

func applyResponse(op map[string]any, ex models.Example) {
	if ex.StatusCode == "" {
		return
	}
	response := ensureMap(ensureMap(op, "responses"), ex.StatusCode)
	if _, isRef := response["$ref"]; isRef {
		return
	}
	if desc, _ := response["description"].(string); desc == "" {
		response["description"] = defaultResponseDescription
	}
	media := ensureMap(ensureMap(response, "content"), contentType(ex))
	ensureMap(media, "examples")[ex.Name] = Node(ex)
}

func applySchema(op map[string]any, ex models.Example) {
	entry := Node(ex)
	entry["name"] = ex.Name
	if ex.SchemaName != "" {
		entry["schema"] = ex.SchemaName
	}

	list, _ := op[schemaExamplesKey].([]any)
	for i, existing := range list {
		if m, ok := existing.(map[string]any); ok && m["name"] == ex.Name {
			list[i] = entry
			op[schemaExamplesKey] = list
			return
		}
	}
	op[schemaExamplesKey] = append(list, entry)
}

// Node renders the OpenAPI Example Object of ex. Only one of $ref,
// externalValue and value is emitted, in that order of precedence.
func Node(ex models.Example) map[string]any {
	node := map[string]any{}
	if ex.Summary != "" {
		node["summary"] = ex.Summary
	}
	if ex.Description != "" {
		node["description"] = ex.Description
	}
	switch {
	case ex.Ref != "":
		node["$ref"] = ex.Ref
	case ex.ExternalValue != "":
		node["externalValue"] = ex.ExternalValue
	case ex.HasValue:
		node["value"] = ex.Value
	}
	for key, value := range ex.Extensions {
		node[key] = value
	}
	return node
}

func methodAllowed(allowed []string, method string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, m := range allowed {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func contentType(ex models.Example) string {
	if ex.ContentType != "" {
		return ex.ContentType
	}
	return defaultContentType
}

func ensureMap(m map[string]any, key string) map[string]any {
	if child, ok := m[key].(map[string]any); ok {
		return child
	}
	child := map[string]any{}
	m[key] = child
	return child
}

func first(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
