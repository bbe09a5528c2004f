package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

// PrettyFormatter renders a styled report for terminals.
type PrettyFormatter struct{}

// Format writes s to w.
func (f *PrettyFormatter) Format(w *bytes.Buffer, s *types.Summary) error {
	w.WriteString(f.header(s))
	w.WriteString("\n")

	for _, note := range s.Notes {
		w.WriteString(noteStyle.Render("note: " + note))
		w.WriteString("\n")
	}
	if len(s.Delta) > 0 {
		w.WriteString(failStyle.Render(fmt.Sprintf("Discovery delta: %d", len(s.Delta))))
		w.WriteString("\n")
		for _, p := range s.Delta {
			w.WriteString("  " + valStyle.Render(p) + "\n")
		}
	}

	writeFailures(w, s.Failures, func(text string) string { return failStyle.Render(text) })
	w.WriteString(f.verdict(s))
	w.WriteString("\n")
	return nil
}

func (f *PrettyFormatter) header(s *types.Summary) string {
	lines := []string{opStyle.Render(strings.ToUpper(string(s.Operation)))}
	for _, row := range detailRows(s)[1:] {
		lines = append(lines, keyStyle.Render(fmt.Sprintf("%-9s", row[0]+":"))+" "+valStyle.Render(row[1]))
	}
	return headerBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) verdict(s *types.Summary) string {
	if s.Passed() {
		return passBox.Render(passStyle.Render("PASS") + "  " +
			hintStyle.Render(fmt.Sprintf("%d files verified", s.Files)))
	}

	counts := types.CountByKind(s.Failures)
	parts := []string{failStyle.Render("FAIL")}
	for _, kind := range types.Kinds() {
		if n := counts[kind]; n > 0 {
			parts = append(parts, keyStyle.Render(kind.String()+":")+" "+valStyle.Render(fmt.Sprint(n)))
		}
	}
	if len(s.Delta) > 0 {
		parts = append(parts, keyStyle.Render("delta:")+" "+valStyle.Render(fmt.Sprint(len(s.Delta))))
	}
	parts = append(parts, hintStyle.Render("Use -o plain for unformatted output"))
	return failBox.Render(strings.Join(parts, "  "))
}

func init() {
	Register("pretty", func() Formatter { return &PrettyFormatter{} })
}

var _ Formatter = (*PrettyFormatter)(nil)
