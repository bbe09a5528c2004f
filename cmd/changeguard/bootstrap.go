package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/changeguard/pkg/changeguard/config"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
)

// annotationNoConfig marks commands that run without loading the config,
// so a broken config file can still be located and replaced.
const annotationNoConfig = "changeguard/no-config"

var (
	settings *viper.Viper
	cfg      *config.Config
)

// flagBindings maps config keys to the flags that override them. A flag
// only overrides the key when it is set on the command line.
var flagBindings = []struct {
	key  string
	flag string
}{
	{"output", "output"},
	{"progress", "progress"},
	{"max_workers", "max-workers"},
	{"hash_command", "hash-cmd"},
	{"method", "method"},
	{"diff_command", "diff-cmd"},
	{"cache.enabled", "cache"},
	{"watch.debounce", "debounce"},
}

// initialize is the PersistentPreRunE hook: it loads the configuration,
// applies flag overrides and starts logging.
func initialize(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[annotationNoConfig] == "true" {
		return nil
	}

	v, err := config.New(cfgFile)
	if err != nil {
		return err
	}
	for _, b := range flagBindings {
		f := cmd.Flags().Lookup(b.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", b.flag, err)
		}
	}

	loaded, err := config.Decode(v)
	if err != nil {
		return err
	}
	settings, cfg = v, loaded

	consoleLevel := "warn"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		consoleLevel = "debug"
	}
	logCfg, err := cfg.LogConfig(consoleLevel)
	if err != nil {
		return err
	}
	if err := logging.Init(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	}

	logging.Get("cli").Debug("configuration loaded",
		"command", cmd.CommandPath(),
		"file", v.ConfigFileUsed(),
		"hash_command", cfg.HashCommand,
		"max_workers", cfg.MaxWorkers)
	return nil
}
