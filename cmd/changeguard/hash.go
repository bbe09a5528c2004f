package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/changeguard/pkg/changeguard/discovery"
	"github.com/jamesainslie/changeguard/pkg/changeguard/guard"
	"github.com/jamesainslie/changeguard/pkg/changeguard/manifest"
	"github.com/jamesainslie/changeguard/pkg/changeguard/progress"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

var hashCmd = &cobra.Command{
	Use:     "hash",
	Aliases: []string{"snapshot"},
	Short:   "Hash files in a directory",
	Long: `Hash every file under a directory and write the hashes to an audit file.

Files are listed with git when the directory is a repository and by walking
it otherwise (--method). Ignore patterns follow gitignore syntax. The audit
file and any ignore file are never recorded.

When any file cannot be hashed the failures are reported and no audit file
is written.`,
	Args: cobra.NoArgs,
	RunE: runHash,
}

var hashOpts struct {
	directory string
	auditFile string
	backupDir string
	ignore    ignoreFlags
}

func init() {
	addDirectoryFlag(hashCmd, &hashOpts.directory, "hash")
	addIgnoreFlags(hashCmd, &hashOpts.ignore)
	hashCmd.Flags().StringVarP(&hashOpts.auditFile, "audit-file", "f", "", "file to write the hashes to")
	hashCmd.Flags().StringVar(&hashOpts.backupDir, "tmp-backup-dir", "", "copy every hashed file here, for --show-delta when auditing")
	hashCmd.Flags().String("method", "", "how to list files: auto, walk, git")
	hashCmd.Flags().Bool("cache", false, "reuse hashes of files whose size and mtime are unchanged")
	_ = hashCmd.MarkFlagRequired("audit-file")

	rootCmd.AddCommand(hashCmd)
}

func runHash(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	root, err := discovery.ResolveRoot(hashOpts.directory)
	if err != nil {
		return err
	}
	method, err := discovery.ParseMethod(cfg.Method)
	if err != nil {
		return err
	}
	rules, err := buildRules(root, hashOpts.ignore)
	if err != nil {
		return err
	}
	h, release, err := buildHasher(cfg.HashCommand, cfg.Cache.Enabled)
	if err != nil {
		return err
	}
	defer release()

	reporter := progress.New(cfg.Progress, os.Stderr)
	started := time.Now()

	res, err := guard.Snapshot(ctx, guard.SnapshotOptions{
		Root:         root,
		Method:       method,
		Rules:        rules,
		Hasher:       h,
		MaxWorkers:   cfg.MaxWorkers,
		BackupDir:    hashOpts.backupDir,
		Exclude:      []string{hashOpts.auditFile},
		OnDiscovered: func(total int) { reporter.Start("hashing", total) },
		OnHashed:     progress.Hook(reporter),
		Version:      version,
	})
	reporter.Finish()
	if err != nil {
		return err
	}

	summary := &types.Summary{
		Operation: types.OpSnapshot,
		RunID:     res.Manifest.Meta.RunID,
		Root:      root,
		Manifest:  hashOpts.auditFile,
		Method:    res.Method.String(),
		Files:     len(res.Manifest.Files),
		Ignored:   len(res.Discovery.Ignored),
		Started:   started,
		Failures:  res.Failures,
	}

	if len(res.Failures) > 0 {
		summary.Notes = append(summary.Notes, fmt.Sprintf("%s not written", hashOpts.auditFile))
	} else if err := manifest.WriteFile(hashOpts.auditFile, res.Manifest); err != nil {
		return err
	}
	if res.Backup != nil {
		dir, _ := res.Manifest.Backup()
		summary.Notes = append(summary.Notes, fmt.Sprintf("backed up %d files (%s) to %s",
			res.Backup.Files, types.FormatSize(res.Backup.Bytes), dir))
	}
	summary.Elapsed = time.Since(started)

	return report(cmd.OutOrStdout(), summary)
}
