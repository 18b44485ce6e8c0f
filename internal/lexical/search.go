package lexical

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dshills/scriptrag/pkg/types"
)

// SourceName prefixes the Source of lexical results
const SourceName = "lexical"

// Store provides candidate items for lexical search
type Store interface {
	SearchContent(ctx context.Context, q types.ContentQuery) ([]*types.ContentItem, error)
}

// Searcher runs lexical search against a Store
type Searcher struct {
	store         Store
	contextLength int
	logger        *slog.Logger
}

// NewSearcher creates a lexical searcher. A negative contextLength selects
// DefaultContextLength.
func NewSearcher(store Store, contextLength int, logger *slog.Logger) *Searcher {
	if contextLength < 0 {
		contextLength = DefaultContextLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{store: store, contextLength: contextLength, logger: logger}
}

// Search scores stored items of type typ against query and returns the best
// limit matches, highest score first. limit is clamped with ClampLimit.
func (s *Searcher) Search(ctx context.Context, query string, typ types.ContentType, limit int, filter map[string]any) ([]types.SearchResult, error) {
	return s.SearchTop(ctx, query, typ, ClampLimit(limit), filter)
}

// SearchTop is Search without the limit clamp, for callers that page past
// MaxLimit. Every stored item containing a query term is scored before the
// best n are kept; n <= 0 keeps all matches.
func (s *Searcher) SearchTop(ctx context.Context, query string, typ types.ContentType, n int, filter map[string]any) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrEmptyContent
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: content type %q", types.ErrInvalidInput, typ)
	}

	items, err := s.store.SearchContent(ctx, types.ContentQuery{
		Types:        []types.ContentType{typ},
		Terms:        strings.Fields(query),
		EntityFilter: filter,
	})
	if err != nil {
		return nil, fmt.Errorf("lexical %s candidates: %w", typ, err)
	}

	results := make([]types.SearchResult, 0, len(items))
	for _, item := range items {
		score := Score(query, item.Text)
		if score <= 0 {
			continue
		}
		results = append(results, types.SearchResult{
			ID:       item.ID,
			Type:     item.Type,
			Content:  item.Text,
			Score:    score,
			Metadata: item.Metadata,
			Source:   SourceName + ":" + string(typ),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	for i := range results {
		results[i].Highlights = Highlights(query, results[i].Content, s.contextLength)
	}
	return results, nil
}

// SearchEntities searches a named entity category. An unrecognized category
// returns an empty result without touching storage.
func (s *Searcher) SearchEntities(ctx context.Context, query, category string, limit int) ([]types.SearchResult, error) {
	typ, err := types.ValidateEntityCategory(category)
	if err != nil {
		s.logger.Debug("ignoring entity search", "category", category, "error", err)
		return []types.SearchResult{}, nil
	}
	return s.Search(ctx, query, typ, limit, nil)
}
