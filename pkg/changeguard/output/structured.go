package output

import (
	"bytes"
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

// report is the document emitted by the json and yaml formatters.
type report struct {
	Operation string         `json:"operation" yaml:"operation"`
	RunID     string         `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Root      string         `json:"root" yaml:"root"`
	Manifest  string         `json:"manifest,omitempty" yaml:"manifest,omitempty"`
	Method    string         `json:"method,omitempty" yaml:"method,omitempty"`
	Passed    bool           `json:"passed" yaml:"passed"`
	Files     int            `json:"files" yaml:"files"`
	Ignored   int            `json:"ignored" yaml:"ignored"`
	Started   time.Time      `json:"started" yaml:"started"`
	Elapsed   string         `json:"elapsed" yaml:"elapsed"`
	Counts    map[string]int `json:"counts" yaml:"counts"`
	Failures  []failureView  `json:"failures" yaml:"failures"`
	Delta     []string       `json:"delta,omitempty" yaml:"delta,omitempty"`
	Notes     []string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

type failureView struct {
	Kind     string `json:"kind" yaml:"kind"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Message  string `json:"message" yaml:"message"`
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string `json:"actual,omitempty" yaml:"actual,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	Diff     string `json:"diff,omitempty" yaml:"diff,omitempty"`
}

func newReport(s *types.Summary) report {
	r := report{
		Operation: string(s.Operation),
		RunID:     s.RunID,
		Root:      s.Root,
		Manifest:  s.Manifest,
		Method:    s.Method,
		Passed:    s.Passed(),
		Files:     s.Files,
		Ignored:   s.Ignored,
		Started:   s.Started,
		Elapsed:   s.Elapsed.String(),
		Counts:    make(map[string]int),
		Failures:  make([]failureView, 0, len(s.Failures)),
		Delta:     s.Delta,
		Notes:     s.Notes,
	}
	for kind, n := range types.CountByKind(s.Failures) {
		r.Counts[kind.String()] = n
	}
	for _, f := range s.Failures {
		r.Failures = append(r.Failures, failureView{
			Kind:     f.Kind.String(),
			Path:     f.Path,
			Message:  f.Message(),
			Expected: f.Expected,
			Actual:   f.Actual,
			Error:    f.Detail(),
			Diff:     f.Diff,
		})
	}
	return r
}

// JSONFormatter writes one indented JSON document.
type JSONFormatter struct{}

// Format writes s to w.
func (f *JSONFormatter) Format(w *bytes.Buffer, s *types.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newReport(s))
}

// YAMLFormatter writes the JSON document's structure as YAML.
type YAMLFormatter struct{}

// Format writes s to w.
func (f *YAMLFormatter) Format(w *bytes.Buffer, s *types.Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newReport(s)); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
	Register("yaml", func() Formatter { return &YAMLFormatter{} })
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*YAMLFormatter)(nil)
)
