package lexical

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scriptrag/pkg/types"
)

type fakeStore struct {
	items   []*types.ContentItem
	queries []types.ContentQuery
}

func (f *fakeStore) SearchContent(_ context.Context, q types.ContentQuery) ([]*types.ContentItem, error) {
	f.queries = append(f.queries, q)
	var out []*types.ContentItem
	for _, item := range f.items {
		if len(q.Types) > 0 && item.Type != q.Types[0] {
			continue
		}
		if matchesFilter(item, q.EntityFilter) {
			out = append(out, item)
		}
	}
	return out, nil
}

func matchesFilter(item *types.ContentItem, filter map[string]any) bool {
	for k, v := range filter {
		if item.Metadata[k] != v {
			return false
		}
	}
	return true
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: []*types.ContentItem{
		{ID: "d1", Type: types.TypeDialogue, Text: "The quick brown fox.", Metadata: map[string]any{"character": "JOHN"}},
		{ID: "d2", Type: types.TypeDialogue, Text: "fox", Metadata: map[string]any{"character": "MARY"}},
		{ID: "d3", Type: types.TypeDialogue, Text: "Nothing to see here."},
		{ID: "a1", Type: types.TypeAction, Text: "A fox darts across the road."},
		{ID: "c1", Type: types.TypeCharacter, Text: "FOX MULDER, an agent."},
	}}
}

func TestSearch(t *testing.T) {
	store := newFakeStore()
	s := NewSearcher(store, 20, nil)

	results, err := s.Search(context.Background(), "fox", types.TypeDialogue, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "d2", results[0].ID, "exact match ranks first")
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, "d1", results[1].ID)
	assert.Equal(t, "lexical:dialogue", results[1].Source)
	assert.NotEmpty(t, results[1].Highlights)

	require.Len(t, store.queries, 1)
	assert.Equal(t, []string{"fox"}, store.queries[0].Terms)
	assert.Zero(t, store.queries[0].Limit, "every candidate is scored")
}

func TestSearchScoresEveryCandidate(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 120; i++ {
		store.items = append(store.items, &types.ContentItem{
			ID:   fmt.Sprintf("d%03d", i),
			Type: types.TypeDialogue,
			Text: fmt.Sprintf("That old foxhound number %d keeps barking.", i),
		})
	}
	// Stored last, after more candidates than any prefilter window
	store.items = append(store.items, &types.ContentItem{ID: "exact", Type: types.TypeDialogue, Text: "fox"})
	s := NewSearcher(store, -1, nil)

	results, err := s.Search(context.Background(), "fox", types.TypeDialogue, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, ExactMatchScore, results[0].Score)
}

func TestSearchTop(t *testing.T) {
	store := &fakeStore{}
	for i := 0; i < 120; i++ {
		store.items = append(store.items, &types.ContentItem{
			ID:   fmt.Sprintf("d%03d", i),
			Type: types.TypeDialogue,
			Text: fmt.Sprintf("The foxhound sleeps, night %d.", i),
		})
	}
	s := NewSearcher(store, -1, nil)
	ctx := context.Background()

	clamped, err := s.Search(ctx, "foxhound", types.TypeDialogue, 500, nil)
	require.NoError(t, err)
	assert.Len(t, clamped, MaxLimit)

	top, err := s.SearchTop(ctx, "foxhound", types.TypeDialogue, 110, nil)
	require.NoError(t, err)
	assert.Len(t, top, 110)

	all, err := s.SearchTop(ctx, "foxhound", types.TypeDialogue, 0, nil)
	require.NoError(t, err)
	assert.Len(t, all, 120)
	assert.NotEmpty(t, all[119].Highlights)

	_, err = s.SearchTop(ctx, " ", types.TypeDialogue, 10, nil)
	assert.ErrorIs(t, err, types.ErrEmptyContent)
}

func TestSearchLimitAndFilter(t *testing.T) {
	store := newFakeStore()
	s := NewSearcher(store, -1, nil)

	results, err := s.Search(context.Background(), "fox", types.TypeDialogue, 1, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = s.Search(context.Background(), "fox", types.TypeDialogue, 0, map[string]any{"character": "JOHN"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].ID)
	assert.Equal(t, map[string]any{"character": "JOHN"}, store.queries[1].EntityFilter)
}

func TestSearchRejectsBadInput(t *testing.T) {
	s := NewSearcher(newFakeStore(), 0, nil)

	_, err := s.Search(context.Background(), "  ", types.TypeDialogue, 5, nil)
	assert.ErrorIs(t, err, types.ErrEmptyContent)

	_, err = s.Search(context.Background(), "fox", types.ContentType("poster"), 5, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSearchEntities(t *testing.T) {
	store := newFakeStore()
	s := NewSearcher(store, 10, nil)

	results, err := s.SearchEntities(context.Background(), "fox", "character", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)

	t.Run("unknown category never touches storage", func(t *testing.T) {
		before := len(store.queries)
		for _, category := range []string{"vehicle", "dialogue", "'; DROP TABLE content_items; --"} {
			results, err := s.SearchEntities(context.Background(), "fox", category, 5)
			require.NoError(t, err)
			assert.Empty(t, results)
			assert.NotNil(t, results)
		}
		assert.Len(t, store.queries, before)
	})

	t.Run("category is case insensitive", func(t *testing.T) {
		results, err := s.SearchEntities(context.Background(), "fox", strings.ToUpper("character"), 5)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}
