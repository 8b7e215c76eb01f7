// Package merger reconciles generated operations and components with the master spec.
package merger

import (
	"fmt"
	"sort"

	"github.com/moamenhredeen/oasync/internal/models"
	"github.com/moamenhredeen/oasync/internal/parser"
	"github.com/pmezard/go-difflib/difflib"
)

// ComponentKeyPrefix prefixes the diff key of a component schema
const ComponentKeyPrefix = "#/components/schemas/"

// Kinds of drift
const (
	KindOperation = "operation"
	KindComponent = "component"
)

// Diff is the drift of one operation or component
type Diff struct {
	Key   string `json:"key"`
	Kind  string `json:"kind"`
	Added bool   `json:"added"`
	Text  string `json:"diff"`
}

// Result summarizes a merge
type Result struct {
	Changed   bool
	Diffs     []Diff
	Unchanged int
}

// Keys returns the drifted keys in merge order
func (r *Result) Keys() []string {
	keys := make([]string, 0, len(r.Diffs))
	for _, d := range r.Diffs {
		keys = append(keys, d.Key)
	}
	return keys
}

// Merge writes endpoints and components into doc. An operation that
// differs from the spec is replaced and its diff recorded. Endpoints
// without a metadata block only fill gaps, they never replace hand-written
// operations. Everything is keyed by (path, method) or schema name, so the
// outcome does not depend on input order.
func Merge(doc *parser.Document, endpoints []models.Endpoint, components map[string]map[string]any) (*Result, error) {
	result := &Result{}

	sorted := append([]models.Endpoint(nil), endpoints...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })

	for _, ep := range sorted {
		existing, found := doc.Operation(ep.Path, ep.Method)
		if found && (!ep.HasBlock || parser.Equal(existing, ep.Operation)) {
			result.Unchanged++
			continue
		}

		diff, err := newDiff(ep.Key(), KindOperation, existing, found, ep.Operation)
		if err != nil {
			return nil, err
		}
		if err := doc.SetOperation(ep.Path, ep.Method, ep.Operation); err != nil {
			return nil, err
		}
		result.Diffs = append(result.Diffs, diff)
		result.Changed = true
	}

	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		generated := components[name]
		existing, found := doc.Schema(name)
		if found && parser.Equal(existing, generated) {
			result.Unchanged++
			continue
		}

		diff, err := newDiff(ComponentKeyPrefix+name, KindComponent, existing, found, generated)
		if err != nil {
			return nil, err
		}
		if err := doc.SetSchema(name, generated); err != nil {
			return nil, err
		}
		result.Diffs = append(result.Diffs, diff)
		result.Changed = true
	}

	return result, nil
}

// Orphans lists the operations of a spec inventory (see parser.Inventory) that
// no endpoint generates, sorted by path then method. They are reported, never removed.
func Orphans(operations []parser.OperationRef, endpoints []models.Endpoint) []models.Orphan {
	known := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		known[ep.Key()] = true
	}

	var orphans []models.Orphan
	for _, ref := range operations {
		if !known[models.OperationKey(ref.Path, ref.Method)] {
			orphans = append(orphans, models.Orphan{Path: ref.Path, Method: ref.Method})
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].Path != orphans[j].Path {
			return orphans[i].Path < orphans[j].Path
		}
		return orphans[i].Method < orphans[j].Method
	})
	return orphans
}

func newDiff(key, kind string, existing map[string]any, found bool, generated map[string]any) (Diff, error) {
	var before string
	if found {
		var err error
		if before, err = parser.Canonical(existing); err != nil {
			return Diff{}, fmt.Errorf("failed to render %s: %w", key, err)
		}
	}
	after, err := parser.Canonical(generated)
	if err != nil {
		return Diff{}, fmt.Errorf("failed to render %s: %w", key, err)
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "swagger:" + key,
		ToFile:   "generated:" + key,
		Context:  3,
	})
	if err != nil {
		return Diff{}, fmt.Errorf("failed to diff %s: %w", key, err)
	}
	return Diff{Key: key, Kind: kind, Added: !found, Text: text}, nil
}
