package output

import (
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Renderer colorizes terminal output. Colors are configured per renderer,
// never through the process-wide color.NoColor switch.
type Renderer struct {
	Color bool

	added   *color.Color
	removed *color.Color
	hunk    *color.Color
	header  *color.Color
	ok      *color.Color
	fail    *color.Color
	warn    *color.Color
}

// NewRenderer returns a renderer with colors enabled or disabled
func NewRenderer(enabled bool) *Renderer {
	r := &Renderer{
		Color:   enabled,
		added:   color.New(color.FgGreen),
		removed: color.New(color.FgRed),
		hunk:    color.New(color.FgCyan),
		header:  color.New(color.Bold),
		ok:      color.New(color.FgGreen, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow),
	}
	for _, c := range []*color.Color{r.added, r.removed, r.hunk, r.header, r.ok, r.fail, r.warn} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// ResolveColor decides whether f gets colors for mode auto|always|never.
// auto honors NO_COLOR and requires a terminal.
func ResolveColor(mode string, f *os.File) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Diff colorizes a unified diff line by line
func (r *Renderer) Diff(text string) string {
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		body := strings.TrimSuffix(line, "\n")
		switch {
		case strings.HasPrefix(body, "+++"), strings.HasPrefix(body, "---"):
			b.WriteString(r.header.Sprint(body))
		case strings.HasPrefix(body, "@@"):
			b.WriteString(r.hunk.Sprint(body))
		case strings.HasPrefix(body, "+"):
			b.WriteString(r.added.Sprint(body))
		case strings.HasPrefix(body, "-"):
			b.WriteString(r.removed.Sprint(body))
		default:
			b.WriteString(body)
		}
		if strings.HasSuffix(line, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Success renders a positive status message
func (r *Renderer) Success(msg string) string {
	return r.ok.Sprint("✓ " + msg)
}

// Failure renders a negative status message
func (r *Renderer) Failure(msg string) string {
	return r.fail.Sprint("✗ " + msg)
}

// Warning renders a warning message
func (r *Renderer) Warning(msg string) string {
	return r.warn.Sprint("! " + msg)
}

// Heading renders a section title
func (r *Renderer) Heading(msg string) string {
	return r.header.Sprint(msg)
}
