package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past runs",
	Long: `View the runs recorded by hash, audit and check.

Each run is stored as a JSON file in the history directory
(typically ~/.local/share/changeguard/history).`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a run",
	Long:  `Display a recorded run, including its failures. A unique ID prefix is enough.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old runs",
	Long:  `Remove runs older than the retention period (history.retention_days).`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
	historyDays  int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")
	historyCleanCmd.Flags().IntVar(&historyDays, "days", 0, "retention period in days (default: history.retention_days)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	h, err := openHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	entries, err := h.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		return nil
	}

	fmt.Fprintf(out, "%-38s  %-8s  %-6s  %-8s  %-14s  %s\n", "ID", "TYPE", "RESULT", "FILES", "WHEN", "ROOT")
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for _, e := range entries {
		result := "pass"
		if !e.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(out, "%-38s  %-8s  %-6s  %-8d  %-14s  %s\n",
			truncateString(e.ID, 38),
			e.Operation,
			result,
			e.Summary.Files,
			humanize.Time(e.Timestamp),
			e.Root,
		)
	}
	fmt.Fprintln(out, strings.Repeat("-", 100))
	fmt.Fprintf(out, "Showing %d entries. Use 'changeguard history show <id>' for details.\n", len(entries))
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	h, err := openHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	e, err := h.Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Run Details")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "ID:         %s\n", e.ID)
	fmt.Fprintf(out, "Run:        %s\n", e.RunID)
	fmt.Fprintf(out, "Timestamp:  %s (%s)\n", e.Timestamp.Local().Format("2006-01-02 15:04:05 MST"), humanize.Time(e.Timestamp))
	fmt.Fprintf(out, "Operation:  %s\n", e.Operation)
	fmt.Fprintf(out, "Root:       %s\n", e.Root)
	if e.ManifestPath != "" {
		fmt.Fprintf(out, "Manifest:   %s\n", e.ManifestPath)
	}
	if e.Method != "" {
		fmt.Fprintf(out, "Method:     %s\n", e.Method)
	}
	fmt.Fprintf(out, "Files:      %d (%d ignored)\n", e.Summary.Files, e.Summary.Ignored)
	fmt.Fprintf(out, "Elapsed:    %s\n", types.FormatDuration(e.Summary.Elapsed))
	fmt.Fprintf(out, "Passed:     %t\n", e.Passed)
	if e.Summary.Delta > 0 {
		fmt.Fprintf(out, "Delta:      %d paths\n", e.Summary.Delta)
	}

	if len(e.Failures) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\nFailures (%d):\n", len(e.Failures))
	fmt.Fprintln(out, strings.Repeat("-", 60))
	for _, f := range e.Failures {
		fmt.Fprintf(out, "%-18s  %s\n", f.Kind, f.Path)
		if f.Detail != "" {
			fmt.Fprintln(out, shell.Indent(f.Detail, "    "))
		}
	}
	return nil
}

func runHistoryClean(cmd *cobra.Command, _ []string) error {
	h, err := openHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	days := historyDays
	if days <= 0 {
		days = cfg.History.RetentionDays
	}
	removed, err := h.Cleanup(days)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries older than %d days.\n", removed, days)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
