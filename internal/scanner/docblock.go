package scanner

import (
	"errors"
	"fmt"
	"go/ast"
	"sort"
	"strings"

	"github.com/moamenhredeen/oasync/internal/parser"
	"gopkg.in/yaml.v3"
)

// AllowedBlockKeys are the operation fields a metadata block may set
var AllowedBlockKeys = []string{"summary", "description", "tags", "parameters", "requestBody", "responses", "security"}

// examplesKey holds the example records consumed by the example merger
const examplesKey = "examples"

var errUnterminated = errors.New("metadata block is not terminated")

// docLines returns the raw lines of a comment group with the comment
// markers removed. Unlike CommentGroup.Text, directive lines are kept.
func docLines(group *ast.CommentGroup) []string {
	if group == nil {
		return nil
	}
	var lines []string
	for _, c := range group.List {
		text := c.Text
		if strings.HasPrefix(text, "//") {
			text = strings.TrimPrefix(text[2:], " ")
			lines = append(lines, text)
			continue
		}
		text = strings.TrimSuffix(strings.TrimPrefix(text, "/*"), "*/")
		lines = append(lines, strings.Split(text, "\n")...)
	}
	return lines
}

func hasMarker(lines []string, marker string) bool {
	if marker == "" {
		return false
	}
	for _, line := range lines {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

// metadata is a decoded metadata block
type metadata struct {
	block    map[string]any
	examples []any
	dropped  []string
}

// extractBlock returns the decoded block between start and end, or nil when
// the doc comment carries none.
func extractBlock(lines []string, start, end string) (*metadata, error) {
	from := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), start) {
			from = i + 1
			break
		}
	}
	if from < 0 {
		return nil, nil
	}

	to := -1
	for i := from; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), end) {
			to = i
			break
		}
	}
	if to < 0 {
		return nil, errUnterminated
	}

	var decoded any
	if err := yaml.Unmarshal([]byte(dedent(lines[from:to])), &decoded); err != nil {
		return nil, err
	}

	meta := &metadata{block: map[string]any{}}
	if decoded == nil {
		return meta, nil
	}
	raw, ok := parser.Normalize(decoded).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata block must be a mapping, got %T", decoded)
	}

	for key, value := range raw {
		switch {
		case key == examplesKey:
			list, ok := value.([]any)
			if !ok && value != nil {
				return nil, fmt.Errorf("%s must be a list", examplesKey)
			}
			meta.examples = list
		case isAllowedKey(key):
			meta.block[key] = value
		default:
			meta.dropped = append(meta.dropped, key)
		}
	}
	sort.Strings(meta.dropped)
	return meta, nil
}

func isAllowedKey(key string) bool {
	for _, k := range AllowedBlockKeys {
		if k == key {
			return true
		}
	}
	return false
}

// dedent strips the whitespace prefix shared by every non-blank line.
// gofmt turns indented doc comment lines into code blocks indented by one
// tab, so a remaining leading tab is expanded to two spaces.
func dedent(lines []string) string {
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		line = strings.TrimPrefix(line, prefix)
		if strings.HasPrefix(line, "\t") {
			line = "  " + line[1:]
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
