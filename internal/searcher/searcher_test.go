package searcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scriptrag/internal/storage"
	"github.com/dshills/scriptrag/pkg/types"
)

// keywordEmbedder maps texts onto two axes: coffee and rain
type keywordEmbedder struct {
	err   error
	calls atomic.Int32
}

func (k *keywordEmbedder) Generate(_ context.Context, text, _ string) ([]float32, error) {
	k.calls.Add(1)
	if k.err != nil {
		return nil, k.err
	}
	return keywordVector(text), nil
}

func (k *keywordEmbedder) Model(model string) string {
	if model == "" {
		return "keyword-2"
	}
	return model
}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	v := []float32{0, 0}
	if strings.Contains(lower, "coffee") {
		v[0] = 1
	}
	if strings.Contains(lower, "rain") {
		v[1] = 1
	}
	return v
}

func setupTestSearcher(t *testing.T, emb Embedder, opts ...Option) (*Searcher, *storage.SQLiteStorage) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	items := []*types.ContentItem{
		{ID: "s1", Type: types.TypeScene, Text: "INT. DINER - NIGHT", Metadata: map[string]any{"sequence": 1, "heading": "INT. DINER - NIGHT"}},
		{ID: "d1", Type: types.TypeDialogue, Text: "Another cup of coffee, please.", Metadata: map[string]any{"sequence": 2, "character": "SARAH"}},
		{ID: "a1", Type: types.TypeAction, Text: "Rain streaks down the diner window.", Metadata: map[string]any{"sequence": 3}},
		{ID: "d2", Type: types.TypeDialogue, Text: "The espresso machine is broken.", Metadata: map[string]any{"sequence": 4, "character": "JOHN"}},
	}
	for _, item := range items {
		require.NoError(t, store.UpsertContent(ctx, item))
		require.NoError(t, store.UpsertEmbedding(ctx, &types.EmbeddingRecord{
			EntityType:  item.Type,
			EntityID:    item.ID,
			Model:       "keyword-2",
			Vector:      keywordVector(item.Text),
			ContentHash: item.ID,
		}))
	}

	return NewSearcher(store, emb, nil, Config{}, opts...), store
}

func ids(results []types.RankedResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestSearch_HybridMergesSources(t *testing.T) {
	s, _ := setupTestSearcher(t, &keywordEmbedder{})

	resp, err := s.Search(context.Background(), Request{Query: "coffee"})
	require.NoError(t, err)

	assert.Equal(t, SearchModeHybrid, resp.Mode)
	assert.NotEmpty(t, resp.RequestID)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "d1", resp.Results[0].ID)
	assert.Equal(t, 1, resp.Results[0].Rank)

	// d1 came from both sources but appears once
	count := 0
	for _, r := range resp.Results {
		if r.ID == "d1" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	assert.Equal(t, 1, resp.SourceCounts["lexical:dialogue"])
	assert.Equal(t, 4, resp.SourceCounts[SourceSemantic])
	assert.Empty(t, resp.FailedSources)
	assert.Equal(t, resp.TotalResults, len(resp.Results))
}

func TestSearch_SemanticFindsWithoutKeyword(t *testing.T) {
	s, _ := setupTestSearcher(t, &keywordEmbedder{})

	// No stored text contains "rainy", but the vector matches a1
	resp, err := s.Search(context.Background(), Request{Query: "rainy", Mode: SearchModeSemantic})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "a1", resp.Results[0].ID)
	assert.Equal(t, SourceSemantic, resp.Results[0].Source)
}

func TestSearch_LexicalModeSkipsEmbedder(t *testing.T) {
	emb := &keywordEmbedder{}
	s, _ := setupTestSearcher(t, emb)

	resp, err := s.Search(context.Background(), Request{Query: "coffee", Mode: SearchModeLexical})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, ids(resp.Results))
	assert.Zero(t, emb.calls.Load())
	_, ok := resp.SourceCounts[SourceSemantic]
	assert.False(t, ok)
}

func TestSearch_FailingSourceDropped(t *testing.T) {
	s, _ := setupTestSearcher(t, &keywordEmbedder{err: errors.New("provider down")})

	resp, err := s.Search(context.Background(), Request{Query: "coffee"})
	require.NoError(t, err)
	assert.Equal(t, []string{SourceSemantic}, resp.FailedSources)
	assert.Equal(t, []string{"d1"}, ids(resp.Results))
}

func TestSearch_NoEmbedder(t *testing.T) {
	s, _ := setupTestSearcher(t, nil)

	resp, err := s.Search(context.Background(), Request{Query: "coffee"})
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, ids(resp.Results))

	_, err = s.Search(context.Background(), Request{Query: "coffee", Mode: SearchModeSemantic})
	assert.ErrorIs(t, err, ErrSemanticUnavailable)
}

func TestSearch_InvalidRequests(t *testing.T) {
	s, _ := setupTestSearcher(t, &keywordEmbedder{})
	ctx := context.Background()

	_, err := s.Search(ctx, Request{Query: "   "})
	assert.ErrorIs(t, err, types.ErrEmptyContent)

	_, err = s.Search(ctx, Request{Query: "coffee", Types: []types.ContentType{"song"}})
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = s.Search(ctx, Request{Query: "coffee", Mode: "fuzzy"})
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSearch_TypesRestrictEverySource(t *testing.T) {
	s, _ := setupTestSearcher(t, &keywordEmbedder{})

	resp, err := s.Search(context.Background(), Request{Query: "coffee", Types: []types.ContentType{types.TypeAction}})
	require.NoError(t, err)
	for _, r := range resp.Results {
		assert.Equal(t, types.TypeAction, r.Type)
	}
	assert.Equal(t, 1, resp.SourceCounts[SourceSemantic])
}

func TestSearch_EntityFilterForwarded(t *testing.T) {
	s, _ := setupTestSearcher(t, &keywordEmbedder{})

	resp, err := s.Search(context.Background(), Request{
		Query:        "the",
		EntityFilter: map[string]any{"character": "JOHN"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, ids(resp.Results))
}

func TestSearch_Pagination(t *testing.T) {
	s, store := setupTestSearcher(t, nil)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, store.UpsertContent(ctx, &types.ContentItem{
			ID:   fmt.Sprintf("x%d", i),
			Type: types.TypeAction,
			Text: fmt.Sprintf("Steam rises from mug %d.", i),
		}))
	}

	all, err := s.Search(ctx, Request{Query: "steam", Limit: 10})
	require.NoError(t, err)
	require.Len(t, all.Results, 6)

	page, err := s.Search(ctx, Request{Query: "steam", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, ids(all.Results[2:4]), ids(page.Results))
	assert.Equal(t, 3, page.Results[0].Rank)
	assert.GreaterOrEqual(t, page.TotalResults, 4)
}

func TestSearch_PaginationPastMaxLimit(t *testing.T) {
	s, store := setupTestSearcher(t, nil)
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		require.NoError(t, store.UpsertContent(ctx, &types.ContentItem{
			ID:       fmt.Sprintf("f%03d", i),
			Type:     types.TypeDialogue,
			Text:     fmt.Sprintf("The foxhound howls, night %d.", i),
			Metadata: map[string]any{"sequence": i},
		}))
	}

	page, err := s.Search(ctx, Request{Query: "foxhound", Mode: SearchModeLexical, Limit: 10, Offset: 100})
	require.NoError(t, err)
	assert.Len(t, page.Results, 10)
	assert.Equal(t, 120, page.TotalResults)
	assert.Equal(t, 101, page.Results[0].Rank)

	last, err := s.Search(ctx, Request{Query: "foxhound", Mode: SearchModeLexical, Limit: 10, Offset: 115})
	require.NoError(t, err)
	assert.Len(t, last.Results, 5)
}

func TestSearch_ExactMatchBeyondEarlyCandidates(t *testing.T) {
	s, store := setupTestSearcher(t, nil)
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		require.NoError(t, store.UpsertContent(ctx, &types.ContentItem{
			ID:       fmt.Sprintf("d%03d", i+10),
			Type:     types.TypeDialogue,
			Text:     fmt.Sprintf("That old foxhound number %d keeps barking.", i),
			Metadata: map[string]any{"sequence": i},
		}))
	}
	require.NoError(t, store.UpsertContent(ctx, &types.ContentItem{
		ID: "exact", Type: types.TypeDialogue, Text: "fox", Metadata: map[string]any{"sequence": 500},
	}))

	resp, err := s.Search(ctx, Request{
		Query: "fox",
		Mode:  SearchModeLexical,
		Types: []types.ContentType{types.TypeDialogue},
		Limit: 5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "exact", resp.Results[0].ID)
}

func TestSearch_MinScore(t *testing.T) {
	s, _ := setupTestSearcher(t, &keywordEmbedder{})

	resp, err := s.Search(context.Background(), Request{Query: "coffee", MinScore: 2.0})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Zero(t, resp.TotalResults)
}

func TestSearch_Cache(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	emb := &keywordEmbedder{}
	s, _ := setupTestSearcher(t, emb, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	req := Request{Query: "coffee", UseCache: true}

	first, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 1, s.CacheLen())

	second, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, ids(first.Results), ids(second.Results))
	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Equal(t, int32(1), emb.calls.Load())

	// Mutating a returned response does not touch the cache
	second.Results[0].ID = "mutated"
	third, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "d1", third.Results[0].ID)

	// Expired entries are recomputed
	now = now.Add(DefaultCacheTTL + time.Second)
	fourth, err := s.Search(ctx, req)
	require.NoError(t, err)
	assert.False(t, fourth.CacheHit)

	s.InvalidateCache()
	assert.Zero(t, s.CacheLen())
}

func TestSearch_DegradedNotCached(t *testing.T) {
	s, _ := setupTestSearcher(t, &keywordEmbedder{err: errors.New("timeout")})

	_, err := s.Search(context.Background(), Request{Query: "coffee", UseCache: true})
	require.NoError(t, err)
	assert.Zero(t, s.CacheLen())
}

func TestSearch_Cancelled(t *testing.T) {
	s, _ := setupTestSearcher(t, &keywordEmbedder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, Request{Query: "coffee"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchEntities(t *testing.T) {
	s, store := setupTestSearcher(t, nil)
	ctx := context.Background()
	require.NoError(t, store.UpsertContent(ctx, &types.ContentItem{
		ID: "c1", Type: types.TypeCharacter, Text: "SARAH, a night-shift waitress", Metadata: map[string]any{"name": "SARAH"},
	}))

	results, err := s.SearchEntities(ctx, "sarah", "character", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)

	// Dialogue is not an entity category
	results, err = s.SearchEntities(ctx, "sarah", "dialogue", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatchesFilter(t *testing.T) {
	md := map[string]any{"character": "SARAH", "sequence": float64(3)}

	tests := []struct {
		name   string
		filter map[string]any
		want   bool
	}{
		{"empty filter", nil, true},
		{"string match", map[string]any{"character": "SARAH"}, true},
		{"string mismatch", map[string]any{"character": "JOHN"}, false},
		{"int matches float", map[string]any{"sequence": 3}, true},
		{"number mismatch", map[string]any{"sequence": 4}, false},
		{"missing key", map[string]any{"location": "DINER"}, false},
		{"all pairs required", map[string]any{"character": "SARAH", "sequence": 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesFilter(md, tt.filter))
		})
	}
}

func TestComputeQueryHash(t *testing.T) {
	a := Request{Query: "q", Types: []types.ContentType{types.TypeScene, types.TypeAction}, EntityFilter: map[string]any{"a": 1, "b": "x"}}
	b := Request{Query: "q", Types: []types.ContentType{types.TypeAction, types.TypeScene}, EntityFilter: map[string]any{"b": "x", "a": 1}}
	assert.Equal(t, computeQueryHash(a), computeQueryHash(b))

	c := b
	c.Offset = 10
	assert.NotEqual(t, computeQueryHash(a), computeQueryHash(c))

	d := b
	d.BoostRecent = true
	assert.NotEqual(t, computeQueryHash(a), computeQueryHash(d))
}

func TestParseSearchMode(t *testing.T) {
	m, err := ParseSearchMode("")
	require.NoError(t, err)
	assert.Equal(t, SearchModeHybrid, m)

	m, err = ParseSearchMode(" Semantic ")
	require.NoError(t, err)
	assert.Equal(t, SearchModeSemantic, m)

	_, err = ParseSearchMode("bm25")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}
