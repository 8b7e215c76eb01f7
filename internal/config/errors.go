package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfigExists is returned when a scaffold would overwrite a config file
var ErrConfigExists = errors.New("config file already exists")

// NotFoundError reports an explicitly requested config file that does not exist
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

// EnvironmentNotFoundError reports an unknown environment profile
type EnvironmentNotFoundError struct {
	Name      string
	Available []string
}

func (e *EnvironmentNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("environment %q not found: config defines no environments", e.Name)
	}
	return fmt.Sprintf("environment %q not found (available: %s)", e.Name, strings.Join(e.Available, ", "))
}

// ValidationError lists the schema violations of a config document
type ValidationError struct {
	Source     string
	Violations []string
}

func (e *ValidationError) Error() string {
	source := e.Source
	if source == "" {
		source = "config"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid configuration in %s:", source)
	for _, v := range e.Violations {
		b.WriteString("\n  - ")
		b.WriteString(v)
	}
	return b.String()
}
