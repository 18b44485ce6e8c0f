package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptrag/internal/indexer"
)

var (
	indexForce    bool
	indexTypes    []string
	indexModel    string
	indexProgress bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed stored content for semantic search",
	Long: `Generates embeddings for every stored content item and saves them for
semantic search. Items whose text is unchanged since their last embedding are
skipped unless --force is given; vectors already in the embedding cache are
reused without calling the provider.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "re-embed items whose content is unchanged")
	indexCmd.Flags().StringSliceVarP(&indexTypes, "type", "t", nil, "content types to index (default: all)")
	indexCmd.Flags().StringVar(&indexModel, "model", "", "embedding model (default: configured model)")
	indexCmd.Flags().BoolVar(&indexProgress, "progress", false, "report progress on stderr")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	contentTypes, err := parseContentTypes(indexTypes)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	opts := indexer.Options{Model: indexModel, Force: indexForce, Types: contentTypes}
	if indexProgress {
		opts.Progress = func(p indexer.Progress) {
			cmd.PrintErrf("\rindexed %d/%d", p.Done, p.Total)
			if p.Done == p.Total {
				cmd.PrintErrln()
			}
		}
	}

	stats, err := a.Index(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Model:      %s\n", stats.Model)
	fmt.Fprintf(out, "Items:      %d\n", stats.ItemsTotal)
	fmt.Fprintf(out, "Embedded:   %d\n", stats.Embedded)
	fmt.Fprintf(out, "From cache: %d\n", stats.FromCache)
	fmt.Fprintf(out, "Skipped:    %d\n", stats.Skipped)
	fmt.Fprintf(out, "Chunked:    %d\n", stats.Chunked)
	fmt.Fprintf(out, "Failed:     %d\n", stats.Failed)
	fmt.Fprintf(out, "Duration:   %s\n", stats.Duration)
	for _, msg := range stats.ErrorMessages {
		cmd.PrintErrf("  error: %s\n", msg)
	}
	return nil
}
