package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/scriptrag/internal/searcher"
	"github.com/dshills/scriptrag/pkg/types"
)

var (
	searchLimit       int
	searchOffset      int
	searchMinScore    float64
	searchTypes       []string
	searchMode        string
	searchFilters     []string
	searchBoostRecent bool
	searchJSON        bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search screenplay content",
	Long: `Runs a hybrid search: a lexical source per content type plus a semantic
source over stored embeddings, merged by the ranker. A failing source is
reported and left out of the results.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results (1-100)")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "number of ranked results to skip")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "minimum composite score; 0 disables the threshold")
	searchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "content types to search (scene, dialogue, action, character, location, object)")
	searchCmd.Flags().StringVar(&searchMode, "mode", "hybrid", "search mode: hybrid, lexical or semantic")
	searchCmd.Flags().StringArrayVarP(&searchFilters, "filter", "f", nil, "metadata filter key=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchBoostRecent, "boost-recent", false, "favor content later in the script")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	mode, err := searcher.ParseSearchMode(searchMode)
	if err != nil {
		return err
	}
	contentTypes, err := parseContentTypes(searchTypes)
	if err != nil {
		return err
	}
	filter, err := parseFilters(searchFilters)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	resp, err := a.Search(cmd.Context(), searcher.Request{
		Query:        strings.Join(args, " "),
		Mode:         mode,
		Types:        contentTypes,
		Limit:        searchLimit,
		Offset:       searchOffset,
		MinScore:     searchMinScore,
		EntityFilter: filter,
		BoostRecent:  searchBoostRecent,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(resp.FailedSources) > 0 {
		cmd.PrintErrf("warning: sources failed: %s\n", strings.Join(resp.FailedSources, ", "))
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}

	fmt.Fprintf(out, "%d of %d results (%s, %s)\n\n", len(resp.Results), resp.TotalResults, resp.Mode, resp.Duration.Round(time.Millisecond))
	for _, r := range resp.Results {
		fmt.Fprintf(out, "[%d] %s/%s  %.3f  (%s)\n", r.Rank, r.Type, r.ID, r.CompositeScore, r.Source)
		if len(r.Highlights) > 0 {
			for _, h := range r.Highlights {
				fmt.Fprintf(out, "    %s\n", h)
			}
		} else {
			fmt.Fprintf(out, "    %s\n", r.Content)
		}
	}
	return nil
}

func parseContentTypes(names []string) ([]types.ContentType, error) {
	var out []types.ContentType
	for _, name := range names {
		t, err := types.ParseContentType(name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// parseFilters turns key=value pairs into an entity filter. Numeric values
// are passed as numbers so they match numeric metadata.
func parseFilters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filter := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			filter[key] = n
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			filter[key] = f
		} else {
			filter[key] = value
		}
	}
	return filter, nil
}
