package examples

import (
	"testing"

	"github.com/moamenhredeen/oasync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseOperation() map[string]any {
	return map[string]any{
		"summary": "Get user",
		"parameters": []any{
			map[string]any{"name": "id", "in": "path", "required": true, "schema": map[string]any{"type": "string"}},
			map[string]any{"name": "id", "in": "query", "schema": map[string]any{"type": "string"}},
		},
		"responses": map[string]any{
			"200": map[string]any{"description": "OK"},
		},
	}
}

func TestParse(t *testing.T) {
	raw := []any{
		map[string]any{
			"name":        "missing",
			"placement":   "response",
			"status_code": 404,
			"value":       map[string]any{"error": "Not found"},
			"methods":     []any{"get", "HEAD"},
			"x-owner":     "users",
		},
		"not a record",
		map[string]any{"name": "ref", "placement": "requestBody", "$ref": "#/components/examples/User", "methods": "post"},
	}

	examples := Parse(raw)
	require.Len(t, examples, 2)

	assert.Equal(t, "missing", examples[0].Name)
	assert.Equal(t, models.PlacementResponse, examples[0].Placement)
	assert.Equal(t, "404", examples[0].StatusCode)
	assert.True(t, examples[0].HasValue)
	assert.Equal(t, []string{"get", "HEAD"}, examples[0].Methods)
	assert.Equal(t, map[string]any{"x-owner": "users"}, examples[0].Extensions)

	assert.Equal(t, "#/components/examples/User", examples[1].Ref)
	assert.Equal(t, []string{"post"}, examples[1].Methods)
	assert.False(t, examples[1].HasValue)
}

func TestApplyResponseSynthesizesEntry(t *testing.T) {
	op := map[string]any{}
	Apply(op, "get", []models.Example{{
		Name:       "missing",
		Placement:  models.PlacementResponse,
		StatusCode: "404",
		Value:      map[string]any{"error": "Not found"},
		HasValue:   true,
	}})

	response := op["responses"].(map[string]any)["404"].(map[string]any)
	assert.Equal(t, "Response", response["description"])
	node := response["content"].(map[string]any)["application/json"].(map[string]any)["examples"].(map[string]any)["missing"]
	assert.Equal(t, map[string]any{"value": map[string]any{"error": "Not found"}}, node)
}

func TestApplyResponseDescription(t *testing.T) {
	op := map[string]any{"responses": map[string]any{
		"200": map[string]any{"description": "OK"},
		"201": map[string]any{"description": ""},
	}}
	Apply(op, "get", []models.Example{
		{Name: "ok", Placement: models.PlacementResponse, StatusCode: "200", Value: 1, HasValue: true},
		{Name: "created", Placement: models.PlacementResponse, StatusCode: "201", Value: 2, HasValue: true},
	})

	responses := op["responses"].(map[string]any)
	assert.Equal(t, "OK", responses["200"].(map[string]any)["description"])
	assert.Equal(t, "Response", responses["201"].(map[string]any)["description"])
}

func TestApplyResponseWithoutStatusCode(t *testing.T) {
	op := baseOperation()
	Apply(op, "get", []models.Example{{Name: "x", Placement: models.PlacementResponse, Value: 1, HasValue: true}})
	assert.Equal(t, baseOperation(), op)
}

func TestApplyParameter(t *testing.T) {
	op := baseOperation()
	Apply(op, "get", []models.Example{{
		Name:          "numeric",
		Placement:     models.PlacementParameter,
		ParameterName: "id",
		ParameterIn:   "query",
		Value:         "42",
		HasValue:      true,
	}})

	params := op["parameters"].([]any)
	assert.NotContains(t, params[0].(map[string]any), "examples")
	assert.Equal(t, map[string]any{"numeric": map[string]any{"value": "42"}}, params[1].(map[string]any)["examples"])
}

func TestApplyParameterNoMatchIsNoOp(t *testing.T) {
	examples := []models.Example{
		{Name: "a", Placement: models.PlacementParameter, ParameterName: "missing", Value: 1, HasValue: true},
		{Name: "b", Placement: models.PlacementParameter, ParameterName: "id", ParameterIn: "header", Value: 1, HasValue: true},
		{Name: "c", Placement: models.PlacementParameter, Value: 1, HasValue: true},
	}

	op := baseOperation()
	Apply(op, "get", examples)
	assert.Equal(t, baseOperation(), op)

	empty := map[string]any{}
	Apply(empty, "get", examples)
	assert.Empty(t, empty)
}

func TestApplyMissingNameOrPlacementIsNoOp(t *testing.T) {
	op := baseOperation()
	Apply(op, "get", []models.Example{
		{Placement: models.PlacementResponse, StatusCode: "404", Value: 1, HasValue: true},
		{Name: "orphan", StatusCode: "404", Value: 1, HasValue: true},
		{Name: "unknown", Placement: "header", Value: 1, HasValue: true},
	})
	assert.Equal(t, baseOperation(), op)
}

func TestApplyRequestBodyMethods(t *testing.T) {
	examples := []models.Example{{
		Name:        "create",
		Placement:   models.PlacementRequestBody,
		ContentType: "application/xml",
		Value:       "<user/>",
		HasValue:    true,
		Methods:     []string{"POST", "put"},
	}}

	post := map[string]any{}
	Apply(post, "post", examples)
	media := post["requestBody"].(map[string]any)["content"].(map[string]any)["application/xml"].(map[string]any)
	assert.Equal(t, map[string]any{"create": map[string]any{"value": "<user/>"}}, media["examples"])

	put := map[string]any{}
	Apply(put, "PUT", examples)
	assert.Contains(t, put, "requestBody")

	get := map[string]any{}
	Apply(get, "get", examples)
	assert.Empty(t, get)
}

func TestApplySchemaExamples(t *testing.T) {
	op := map[string]any{}
	Apply(op, "get", []models.Example{
		{Name: "first", Placement: models.PlacementSchema, SchemaName: "User", Value: 1, HasValue: true},
		{Name: "second", Placement: models.PlacementSchema, Value: 2, HasValue: true},
		{Name: "first", Placement: models.PlacementSchema, SchemaName: "User", Value: 3, HasValue: true},
	})

	assert.Equal(t, []any{
		map[string]any{"name": "first", "schema": "User", "value": 3},
		map[string]any{"name": "second", "value": 2},
	}, op["x-schema-examples"])
}

func TestApplyDuplicateNameLastWins(t *testing.T) {
	op := map[string]any{}
	Apply(op, "get", []models.Example{
		{Name: "dup", Placement: models.PlacementResponse, StatusCode: "200", Value: "old", HasValue: true},
		{Name: "dup", Placement: models.PlacementResponse, StatusCode: "200", Value: "new", HasValue: true},
	})

	examples := op["responses"].(map[string]any)["200"].(map[string]any)["content"].(map[string]any)["application/json"].(map[string]any)["examples"].(map[string]any)
	assert.Equal(t, map[string]any{"value": "new"}, examples["dup"])
}

func TestNodePrecedence(t *testing.T) {
	tests := []struct {
		name string
		ex   models.Example
		want map[string]any
	}{
		{
			name: "ref wins",
			ex:   models.Example{Ref: "#/components/examples/A", ExternalValue: "http://x", Value: 1, HasValue: true},
			want: map[string]any{"$ref": "#/components/examples/A"},
		},
		{
			name: "external value over value",
			ex:   models.Example{ExternalValue: "http://x", Value: 1, HasValue: true},
			want: map[string]any{"externalValue": "http://x"},
		},
		{
			name: "explicit null value",
			ex:   models.Example{HasValue: true},
			want: map[string]any{"value": nil},
		},
		{
			name: "metadata and extensions",
			ex: models.Example{
				Summary:     "s",
				Description: "d",
				Value:       "v",
				HasValue:    true,
				Extensions:  map[string]any{"x-stable": true},
			},
			want: map[string]any{"summary": "s", "description": "d", "value": "v", "x-stable": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Node(tt.ex))
		})
	}
}
