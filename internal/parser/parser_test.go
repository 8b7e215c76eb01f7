package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const petStore = `openapi: 3.0.3
info:
  title: Swagger Petstore
  version: 1.0.0
# servers stay exactly as written
servers:
  - url: http://petstore.swagger.io/v1
x-owner: platform
paths:
  /pets:
    summary: all pets
    get:
      summary: List all pets
      responses:
        200:
          description: A paged array of pets
    post:
      summary: Create a pet
      responses:
        "201":
          description: Null response
  /pets/{petId}:
    get:
      summary: Info for a specific pet
      responses:
        "200":
          description: Expected response to a valid request
components:
  schemas:
    Pet:
      type: object
`

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write spec: %v", err)
	}
	return path
}

func TestParseBytesEmpty(t *testing.T) {
	_, err := ParseBytes(nil)
	if err == nil {
		t.Error("Expected error for empty document")
	}
}

func TestGetOperations(t *testing.T) {
	p, err := ParseBytes([]byte(petStore))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	operations, err := p.GetOperations()
	if err != nil {
		t.Fatalf("Failed to get operations: %v", err)
	}

	foundGetPets := false
	foundPostPets := false
	foundGetPetByID := false

	for _, op := range operations {
		if op.Path == "/pets" && op.Method == "get" {
			foundGetPets = true
		}
		if op.Path == "/pets" && op.Method == "post" {
			foundPostPets = true
		}
		if op.Path == "/pets/{petId}" && op.Method == "get" {
			foundGetPetByID = true
		}
	}

	if !foundGetPets {
		t.Error("Expected GET /pets operation not found")
	}
	if !foundPostPets {
		t.Error("Expected POST /pets operation not found")
	}
	if !foundGetPetByID {
		t.Error("Expected GET /pets/{petId} operation not found")
	}
}

func TestInventory(t *testing.T) {
	doc, err := Load(writeSpec(t, petStore))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ops, err := Inventory(doc)
	if err != nil {
		t.Fatalf("Inventory failed: %v", err)
	}
	want := []OperationRef{
		{Path: "/pets", Method: "get"},
		{Path: "/pets", Method: "post"},
		{Path: "/pets/{petId}", Method: "get"},
	}
	if len(ops) != len(want) {
		t.Fatalf("Expected %d operations, got %v", len(want), ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operation %d = %v, want %v", i, ops[i], want[i])
		}
	}
}

func TestLint(t *testing.T) {
	spec := `openapi: 3.0.3
info:
  title: t
  version: "1"
paths:
  /users/{id}:
    get:
      summary: no responses here
`
	p, err := ParseBytes([]byte(spec))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	warnings := strings.Join(p.Lint(), "\n")
	if !strings.Contains(warnings, "GET /users/{id}: operation has no responses") {
		t.Errorf("Expected missing responses warning, got: %s", warnings)
	}
	if !strings.Contains(warnings, `path parameter "id" is not declared`) {
		t.Errorf("Expected undeclared path parameter warning, got: %s", warnings)
	}
}

func TestLoadMissingFileReturnsSkeleton(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ops := doc.Operations(); len(ops) != 0 {
		t.Errorf("Expected no operations, got %v", ops)
	}
	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !strings.Contains(string(data), "openapi: 3.0.3") {
		t.Errorf("Expected skeleton document, got:\n%s", data)
	}
}

func TestDocumentOperations(t *testing.T) {
	doc, err := Load(writeSpec(t, petStore))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	ops := doc.Operations()
	want := []OperationRef{
		{Path: "/pets", Method: "get"},
		{Path: "/pets", Method: "post"},
		{Path: "/pets/{petId}", Method: "get"},
	}
	if len(ops) != len(want) {
		t.Fatalf("Expected %d operations, got %v", len(want), ops)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operation %d = %v, want %v", i, ops[i], want[i])
		}
	}
}

func TestOperationNormalizesStatusKeys(t *testing.T) {
	doc, err := Load(writeSpec(t, petStore))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	op, ok := doc.Operation("/pets", "GET")
	if !ok {
		t.Fatal("Expected GET /pets")
	}
	responses, ok := op["responses"].(map[string]any)
	if !ok {
		t.Fatalf("responses has type %T", op["responses"])
	}
	if _, ok := responses["200"]; !ok {
		t.Errorf("Expected string key 200, got %v", responses)
	}
}

func TestSetOperationPreservesPassthrough(t *testing.T) {
	doc, err := Load(writeSpec(t, petStore))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	op := map[string]any{
		"summary":   "Get user",
		"responses": map[string]any{"200": map[string]any{"description": "OK"}},
	}
	if err := doc.SetOperation("/users/{id}", "get", op); err != nil {
		t.Fatalf("SetOperation failed: %v", err)
	}

	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	out := string(data)
	for _, want := range []string{"# servers stay exactly as written", "x-owner: platform", "summary: all pets"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q to survive, got:\n%s", want, out)
		}
	}

	reloaded, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	got, ok := reloaded.Operation("/users/{id}", "get")
	if !ok {
		t.Fatal("Expected new operation after reload")
	}
	if !Equal(got, op) {
		t.Errorf("Round trip mismatch: %v", got)
	}
}

func TestSetOperationOnFlowPaths(t *testing.T) {
	doc := New()
	op := map[string]any{"responses": map[string]any{"200": map[string]any{"description": "OK"}}}
	if err := doc.SetOperation("/health", "get", op); err != nil {
		t.Fatalf("SetOperation failed: %v", err)
	}
	data, err := doc.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if !strings.Contains(string(data), "paths:\n  /health:\n") {
		t.Errorf("Expected block style paths, got:\n%s", data)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc := New()
	clone := doc.Clone()
	if err := clone.SetSchema("User", map[string]any{"type": "object"}); err != nil {
		t.Fatalf("SetSchema failed: %v", err)
	}
	if len(doc.SchemaNames()) != 0 {
		t.Errorf("Original document was modified: %v", doc.SchemaNames())
	}
	if names := clone.SchemaNames(); len(names) != 1 || names[0] != "User" {
		t.Errorf("SchemaNames = %v, want [User]", names)
	}
}

func TestEqual(t *testing.T) {
	a := map[any]any{200: map[string]any{"description": "OK"}}
	b := map[string]any{"200": map[string]any{"description": "OK"}}
	if !Equal(a, b) {
		t.Error("Expected int and string status keys to compare equal")
	}
	if Equal(b, map[string]any{"200": map[string]any{"description": "Created"}}) {
		t.Error("Expected different descriptions to differ")
	}
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "openapi.yaml")
	if err := WriteAtomic(path, []byte("openapi: 3.0.3\n")); err != nil {
		t.Fatalf("WriteAtomic failed: %v", err)
	}
	if err := WriteAtomic(path, []byte("openapi: 3.1.0\n")); err != nil {
		t.Fatalf("WriteAtomic overwrite failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "openapi: 3.1.0\n" {
		t.Errorf("content = %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected temp files to be cleaned up, found %d entries", len(entries))
	}
}
