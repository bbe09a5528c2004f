package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/changeguard/pkg/changeguard/backup"
	"github.com/jamesainslie/changeguard/pkg/changeguard/discovery"
	"github.com/jamesainslie/changeguard/pkg/changeguard/guard"
	"github.com/jamesainslie/changeguard/pkg/changeguard/manifest"
	"github.com/jamesainslie/changeguard/pkg/changeguard/progress"
	"github.com/jamesainslie/changeguard/pkg/changeguard/shell"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit files in a directory against an audit file",
	Long: `Re-hash every file recorded by 'changeguard hash' and report files that are
missing, cannot be hashed or changed. Files created since are not reported.

Files are hashed with --hash-cmd or the configured hash_command; the command
recorded in the audit file is never run. Use the same command the audit file
was created with. With --show-delta, each changed file is diffed against the
copy made by 'changeguard hash --tmp-backup-dir'.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

var auditOpts struct {
	directory string
	auditFile string
	showDelta bool
}

func init() {
	addDirectoryFlag(auditCmd, &auditOpts.directory, "audit")
	auditCmd.Flags().StringVarP(&auditOpts.auditFile, "audit-file", "f", "", "file to read the hashes from")
	auditCmd.Flags().BoolVar(&auditOpts.showDelta, "show-delta", false, "diff changed files against the backup recorded in the audit file")
	auditCmd.Flags().String("diff-cmd", "", fmt.Sprintf("command to diff two files with (default %q)", backup.DefaultDiffCommand))
	_ = auditCmd.MarkFlagRequired("audit-file")

	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	root, err := discovery.ResolveRoot(auditOpts.directory)
	if err != nil {
		return err
	}
	m, err := manifest.ReadFile(auditOpts.auditFile)
	if err != nil {
		return err
	}

	var differ *backup.Differ
	backupDir, hasBackup := m.Backup()
	if auditOpts.showDelta {
		if !hasBackup {
			return fmt.Errorf("--show-delta needs a backup, but %s records none (hash with --tmp-backup-dir)", auditOpts.auditFile)
		}
		if differ, err = backup.NewDiffer(cfg.DiffCommand, shell.NewOSRunner()); err != nil {
			return err
		}
	}

	h, release, err := buildHasher(auditHashCommand(m), false)
	if err != nil {
		return err
	}
	defer release()

	reporter := progress.New(cfg.Progress, os.Stderr)
	reporter.Start("auditing", len(m.Files))
	started := time.Now()

	failures, err := guard.Audit(ctx, m, guard.AuditOptions{
		Root:       root,
		Hasher:     h,
		MaxWorkers: cfg.MaxWorkers,
		OnHashed:   progress.Hook(reporter),
	})
	reporter.Finish()
	if err != nil {
		return err
	}
	if differ != nil {
		differ.Attach(ctx, failures, backupDir, root)
	}

	return report(cmd.OutOrStdout(), &types.Summary{
		Operation: types.OpAudit,
		RunID:     uuid.NewString(),
		Root:      root,
		Manifest:  auditOpts.auditFile,
		Method:    m.Meta.DiscoveryMethod,
		Files:     len(m.Files),
		Ignored:   len(m.Meta.Ignored),
		Started:   started,
		Elapsed:   time.Since(started),
		Failures:  failures,
	})
}
