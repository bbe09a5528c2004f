package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/changeguard/pkg/changeguard/config"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "changeguard",
		Short: "Detect changes in a directory between two points in time",
		Long: `Changeguard records the hash of every file under a directory and later
verifies that none of them changed. New files are not reported.

Examples:
  changeguard hash -C . -f audit.yaml            # Record hashes
  changeguard hash -C . -f audit.yaml --tmp-backup-dir /tmp/before
  changeguard audit -C . -f audit.yaml           # Verify them
  changeguard audit -C . -f audit.yaml --show-delta
  changeguard check -C .                         # Compare walk and git listings
  changeguard watch -C . -f audit.yaml           # Re-audit files as they change
  changeguard history                            # View past runs`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initialize,
	}
)

// errFailed is returned by a command whose run recorded failures. The
// report has already been printed, so main only sets the exit status.
var errFailed = errors.New("run recorded failures")

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/changeguard/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format: pretty, plain, json, yaml")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output on stderr")
	rootCmd.PersistentFlags().String("progress", "", "progress display: auto, always, never")
	rootCmd.PersistentFlags().Int("max-workers", config.DefaultMaxWorkers, "maximum concurrent hash commands (0 = one per file)")
	rootCmd.PersistentFlags().String("hash-cmd", "", fmt.Sprintf("command to hash files with (default %q)", config.DefaultHashCommand))
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = logging.Close()
	if err != nil && !errors.Is(err, errFailed) {
		printError("%v", err)
	}
	return err
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
