package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/changeguard/pkg/changeguard/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the hash cache",
	Long: `Commands for managing the hash cache.

With 'changeguard hash --cache' (or cache.enabled), hashes of files whose size
and modification time are unchanged are reused instead of recomputed. Cache
data is stored in the XDG cache directory (typically ~/.cache/changeguard/hashes).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached hashes",
	Long:  `Removes all cached hashes, or only those recorded under --root.`,
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Long:  `Displays the cache location, its size on disk and the number of cached hashes per root.`,
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	Long:  `Prints the path to the cache directory.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), cachePath())
	},
}

var cacheClearRoot string

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearRoot, "root", "", "only forget hashes recorded under this directory")

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

func cachePath() string {
	if cfg.Cache.Path != "" {
		return cfg.Cache.Path
	}
	return cache.DefaultPath()
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	path := cachePath()
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, "Cache is already empty.")
		return nil
	}

	if cacheClearRoot == "" {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Fprintln(out, "Cache cleared.")
		return nil
	}

	root, err := filepath.Abs(cacheClearRoot)
	if err != nil {
		return err
	}
	store, err := cache.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Forget(root); err != nil {
		return fmt.Errorf("failed to clear cache for %s: %w", root, err)
	}
	fmt.Fprintf(out, "Cache cleared for %s.\n", root)
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	path := cachePath()
	out := cmd.OutOrStdout()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		fmt.Fprintln(out, "Cache: empty (no cache directory)")
		fmt.Fprintf(out, "Cache location: %s\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat cache: %w", err)
	}

	var size int64
	err = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			size += fi.Size()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to calculate cache size: %w", err)
	}

	store, err := cache.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	stats, err := store.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	fmt.Fprintf(out, "Cache location: %s\n", path)
	fmt.Fprintf(out, "Cache size:     %s\n", humanize.Bytes(uint64(size)))
	fmt.Fprintf(out, "Cached hashes:  %d\n", stats.Entries)
	fmt.Fprintf(out, "Last modified:  %s\n", humanize.Time(info.ModTime()))

	roots := make([]string, 0, len(stats.Roots))
	for root := range stats.Roots {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	for _, root := range roots {
		fmt.Fprintf(out, "  %8d  %s\n", stats.Roots[root], root)
	}
	return nil
}
