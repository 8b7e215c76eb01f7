package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
)

var pathParamPattern = regexp.MustCompile(`\{([^}]+)\}`)

// Parser inspects a rendered OpenAPI specification with libopenapi
type Parser struct {
	document libopenapi.Document
}

// ParseBytes parses an in-memory OpenAPI specification
func ParseBytes(specBytes []byte) (*Parser, error) {
	document, err := libopenapi.NewDocument(specBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	return &Parser{document: document}, nil
}

// Inventory lists the operations of doc in document order through libopenapi.
// When doc does not build as a v3 model the node tree listing is returned
// together with the build error.
func Inventory(doc *Document) ([]OperationRef, error) {
	data, err := doc.Bytes()
	if err != nil {
		return doc.Operations(), err
	}
	p, err := ParseBytes(data)
	if err != nil {
		return doc.Operations(), err
	}
	operations, err := p.GetOperations()
	if err != nil {
		return doc.Operations(), err
	}
	return operations, nil
}

type methodOperation struct {
	method    string
	operation *v3.Operation
}

func operationsOf(item *v3.PathItem) []methodOperation {
	return []methodOperation{
		{"get", item.Get},
		{"put", item.Put},
		{"post", item.Post},
		{"delete", item.Delete},
		{"options", item.Options},
		{"head", item.Head},
		{"patch", item.Patch},
		{"trace", item.Trace},
	}
}

// GetOperations lists every operation of the specification in document order
func (p *Parser) GetOperations() ([]OperationRef, error) {
	model, errs := p.document.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("failed to build v3 model: %v", errs)
	}

	var operations []OperationRef
	paths := model.Model.Paths

	if paths == nil || paths.PathItems == nil {
		return operations, nil
	}

	// Iterate over ordered map
	for pair := paths.PathItems.First(); pair != nil; pair = pair.Next() {
		pathItemValue := pair.Value()
		if pathItemValue == nil {
			continue
		}
		for _, mo := range operationsOf(pathItemValue) {
			if mo.operation == nil {
				continue
			}
			operations = append(operations, OperationRef{Path: pair.Key(), Method: mo.method})
		}
	}

	return operations, nil
}

// Lint returns human readable warnings about the specification: model build
// failures, operations without responses and undeclared path parameters.
func (p *Parser) Lint() []string {
	var warnings []string

	model, errs := p.document.BuildV3Model()
	if errs != nil {
		warnings = append(warnings, fmt.Sprintf("OpenAPI model: %v", errs))
	}
	if model == nil || model.Model.Paths == nil || model.Model.Paths.PathItems == nil {
		return warnings
	}

	for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()
		if item == nil {
			continue
		}

		declared := map[string]bool{}
		for _, param := range item.Parameters {
			if param != nil && param.In == "path" {
				declared[param.Name] = true
			}
		}

		for _, mo := range operationsOf(item) {
			op := mo.operation
			if op == nil {
				continue
			}
			label := strings.ToUpper(mo.method) + " " + path

			if op.Responses == nil || ((op.Responses.Codes == nil || op.Responses.Codes.Len() == 0) && op.Responses.Default == nil) {
				warnings = append(warnings, fmt.Sprintf("%s: operation has no responses", label))
			}

			opDeclared := map[string]bool{}
			for _, param := range op.Parameters {
				if param != nil && param.In == "path" {
					opDeclared[param.Name] = true
				}
			}
			for _, match := range pathParamPattern.FindAllStringSubmatch(path, -1) {
				name := match[1]
				if !declared[name] && !opDeclared[name] {
					warnings = append(warnings, fmt.Sprintf("%s: path parameter %q is not declared", label, name))
				}
			}
		}
	}

	return warnings
}
