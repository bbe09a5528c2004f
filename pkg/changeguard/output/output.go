// Package output renders run summaries in the formats selectable with -o:
// pretty, plain, json and yaml.
//
// Formatters register themselves in a registry at init time:
//
//	f, err := output.Get("plain")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := f.Format(&buf, summary); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

// Formatter renders a run summary.
type Formatter interface {
	Format(w *bytes.Buffer, s *types.Summary) error
}

// FormatterFactory creates a Formatter.
type FormatterFactory func() Formatter

// Registry maps format names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter for name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %s)", name, strings.Join(r.names(), ", "))
	}
	return factory(), nil
}

// Available returns the registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a factory to DefaultRegistry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from DefaultRegistry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the formats in DefaultRegistry.
func Available() []string {
	return DefaultRegistry.Available()
}

const rule = "--------------------------------------------------------------------------------"

// writeFailures writes the failure report shared by the text formatters.
// paint styles each block; plain output passes the identity.
func writeFailures(w *bytes.Buffer, failures []types.Failure, paint func(string) string) {
	if len(failures) == 0 {
		return
	}

	line := func(s string) {
		w.WriteString(paint(s))
		w.WriteByte('\n')
	}

	line(fmt.Sprintf("Failures: %d", len(failures)))
	for _, f := range failures {
		line("Failure:")
		line(shell.Indent(f.Message(), "  "))
		if f.Path != "" {
			line("  at: " + f.Path)
		}
		if detail := f.Detail(); detail != "" && strings.Contains(detail, "\n") {
			line("  error:")
			line(shell.Indent(detail, "    "))
		}
		if f.Diff != "" {
			line("  diff:")
			line(shell.Indent(f.Diff, "    "))
		}
	}
	line(rule)
	line(fmt.Sprintf("Failures: %d", len(failures)))
	line("Exiting due to failures")
}

func identity(s string) string { return s }
