package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/changeguard/pkg/changeguard/discovery"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

var checkCmd = &cobra.Command{
	Use:     "check",
	Aliases: []string{"test_list_paths"},
	Short:   "Check that walking and git list the same files",
	Long: `List the files of a git repository twice, once by walking the directory and
once with git, applying the same ignore patterns, and report every path only
one of them found. Use it to confirm that --method walk and --method git
would record the same files.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var checkOpts struct {
	directory string
	ignore    ignoreFlags
}

func init() {
	addDirectoryFlag(checkCmd, &checkOpts.directory, "list")
	addIgnoreFlags(checkCmd, &checkOpts.ignore)

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	root, err := discovery.ResolveRoot(checkOpts.directory)
	if err != nil {
		return err
	}
	rules, err := buildRules(root, checkOpts.ignore)
	if err != nil {
		return err
	}

	started := time.Now()
	rec, err := discovery.Reconcile(cmd.Context(), discovery.Options{Root: root, Rules: rules})
	var mismatch *discovery.MismatchError
	if err != nil && !errors.As(err, &mismatch) {
		return err
	}

	summary := &types.Summary{
		Operation: types.OpCheck,
		RunID:     uuid.NewString(),
		Root:      root,
		Method:    fmt.Sprintf("%s+%s", discovery.MethodWalk, discovery.MethodGit),
		Files:     len(rec.Git),
		Started:   started,
		Elapsed:   time.Since(started),
		Delta:     rec.Delta,
	}
	for _, p := range rec.CaseCollisions {
		summary.Notes = append(summary.Notes, "paths differ only by case: "+p)
	}
	return report(cmd.OutOrStdout(), summary)
}
