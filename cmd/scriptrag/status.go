package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptrag/pkg/types"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored content, embeddings and cache statistics",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	status, err := a.Status(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	st := status.Storage
	fmt.Fprintf(out, "Database:   %s (%s, schema %s, %.2f MB)\n", a.Config.DBPath, st.BuildMode, st.SchemaVersion, st.IndexSizeMB)
	fmt.Fprintf(out, "Provider:   %s (model %s)\n", status.Provider, status.Model)

	fmt.Fprintf(out, "\nContent:    %d items\n", st.ContentTotal)
	for _, t := range types.AllContentTypes {
		if n := st.ContentCounts[t]; n > 0 {
			fmt.Fprintf(out, "  %-10s %d\n", t, n)
		}
	}

	fmt.Fprintf(out, "\nEmbeddings: %d\n", st.EmbeddingsTotal)
	models := make([]string, 0, len(st.EmbeddingCounts))
	for m := range st.EmbeddingCounts {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		fmt.Fprintf(out, "  %s: %d (dimension %d)\n", m, st.EmbeddingCounts[m], st.Dimensions[m])
	}
	if !st.LastEmbeddedAt.IsZero() {
		fmt.Fprintf(out, "  last embedded %s\n", st.LastEmbeddedAt.Format(time.RFC3339))
	}

	c := status.Cache
	fmt.Fprintf(out, "\nCache:      %s, %d in memory, %d durable\n", c.Strategy, c.Entries, st.CachedVectors)
	fmt.Fprintf(out, "  hits %d, misses %d, hit rate %.1f%%, evictions %d\n", c.Hits, c.Misses, c.HitRate*100, c.Evictions)
	return nil
}
