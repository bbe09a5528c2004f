package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/changeguard/pkg/changeguard/backup"
	"github.com/jamesainslie/changeguard/pkg/changeguard/discovery"
	"github.com/jamesainslie/changeguard/pkg/changeguard/guard"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
	"github.com/jamesainslie/changeguard/pkg/changeguard/manifest"
	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
	"github.com/jamesainslie/changeguard/pkg/changeguard/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-audit recorded files whenever they change",
	Long: `Watch the files recorded in an audit file and audit each one again as soon
as it is written, renamed or removed. Events are collected for --debounce
before the audit runs. When the audit file records a backup, failures carry
a diff against it. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchOpts struct {
	directory string
	auditFile string
}

func init() {
	addDirectoryFlag(watchCmd, &watchOpts.directory, "watch")
	watchCmd.Flags().StringVarP(&watchOpts.auditFile, "audit-file", "f", "", "file to read the hashes from")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before changed files are audited")
	watchCmd.Flags().String("diff-cmd", "", fmt.Sprintf("command to diff two files with (default %q)", backup.DefaultDiffCommand))
	_ = watchCmd.MarkFlagRequired("audit-file")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	root, err := discovery.ResolveRoot(watchOpts.directory)
	if err != nil {
		return err
	}
	m, err := manifest.ReadFile(watchOpts.auditFile)
	if err != nil {
		return err
	}
	h, release, err := buildHasher(auditHashCommand(m), false)
	if err != nil {
		return err
	}
	defer release()

	var differ *backup.Differ
	backupDir, hasBackup := m.Backup()
	if hasBackup {
		if differ, err = backup.NewDiffer(cfg.DiffCommand, shell.NewOSRunner()); err != nil {
			return err
		}
	}

	log := logging.Get("watch")
	out := cmd.OutOrStdout()
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %d files under %s (Ctrl-C to stop)\n", len(m.Files), root)

	return watch.Run(cmd.Context(), watch.Options{
		Root:     root,
		Paths:    m.Paths(),
		Debounce: cfg.Watch.Debounce,
		OnChange: func(ctx context.Context, changed []string) {
			started := time.Now()
			failures, err := guard.Audit(ctx, guard.Subset(m, changed), guard.AuditOptions{
				Root:       root,
				Hasher:     h,
				MaxWorkers: cfg.MaxWorkers,
			})
			if err != nil {
				log.Error("audit failed", "error", err)
				return
			}
			if differ != nil {
				differ.Attach(ctx, failures, backupDir, root)
			}

			summary := &types.Summary{
				Operation: types.OpAudit,
				RunID:     uuid.NewString(),
				Root:      root,
				Manifest:  watchOpts.auditFile,
				Method:    m.Meta.DiscoveryMethod,
				Files:     len(changed),
				Started:   started,
				Elapsed:   time.Since(started),
				Failures:  failures,
			}
			if err := render(out, summary); err != nil {
				log.Error("failed to print report", "error", err)
			}
		},
	})
}
