package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	cleanupOlderThan       time.Duration
	cleanupPruneEmbeddings bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Embedding cache maintenance",
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove cached embeddings older than a given age",
	Long: `Removes embedding cache entries created before the cutoff from both the
in-memory and the durable layer. With --prune-embeddings, stored embeddings
older than the cutoff are removed as well and must be re-indexed.`,
	Args: cobra.NoArgs,
	RunE: runCacheCleanup,
}

func init() {
	cacheCleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "maximum age to keep")
	cacheCleanupCmd.Flags().BoolVar(&cleanupPruneEmbeddings, "prune-embeddings", false, "also delete stored embeddings older than the cutoff")
	cacheCmd.AddCommand(cacheCleanupCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheCleanup(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.CleanupCache(cmd.Context(), cleanupOlderThan, cleanupPruneEmbeddings)
	if err != nil {
		return fmt.Errorf("cache cleanup failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Removed %d durable cache entries older than %s\n", res.Durable, cleanupOlderThan)
	if cleanupPruneEmbeddings {
		fmt.Fprintf(out, "Removed %d stored embeddings\n", res.Embeddings)
	}
	return nil
}
