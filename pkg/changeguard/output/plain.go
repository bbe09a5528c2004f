package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

// PlainFormatter writes unstyled text suitable for logs and pipes.
type PlainFormatter struct{}

// Format writes s to w.
func (f *PlainFormatter) Format(w *bytes.Buffer, s *types.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, row := range detailRows(s) {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, note := range s.Notes {
		fmt.Fprintf(w, "note: %s\n", note)
	}
	for _, p := range s.Delta {
		fmt.Fprintf(w, "delta: %s\n", p)
	}

	writeFailures(w, s.Failures, identity)
	if s.Passed() {
		w.WriteString("OK\n")
	}
	return nil
}

// detailRows returns the label/value pairs describing a run.
func detailRows(s *types.Summary) [][2]string {
	rows := [][2]string{
		{"operation", string(s.Operation)},
		{"root", s.Root},
	}
	if s.Manifest != "" {
		rows = append(rows, [2]string{"manifest", s.Manifest})
	}
	if s.Method != "" {
		rows = append(rows, [2]string{"method", s.Method})
	}
	rows = append(rows,
		[2]string{"files", fmt.Sprint(s.Files)},
		[2]string{"ignored", fmt.Sprint(s.Ignored)},
		[2]string{"elapsed", types.FormatDuration(s.Elapsed)},
	)
	if s.RunID != "" {
		rows = append(rows, [2]string{"run", s.RunID})
	}
	return rows
}

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
}

var _ Formatter = (*PlainFormatter)(nil)
