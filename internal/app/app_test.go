package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scriptrag/internal/config"
	"github.com/dshills/scriptrag/internal/embedder"
	"github.com/dshills/scriptrag/internal/indexer"
	"github.com/dshills/scriptrag/internal/searcher"
	"github.com/dshills/scriptrag/internal/similarity"
	"github.com/dshills/scriptrag/pkg/types"
)

const lighthouse = `
items:
  - id: s1
    type: scene
    text: "INT. LIGHTHOUSE - NIGHT"
    metadata:
      sequence: 1
      heading: "INT. LIGHTHOUSE - NIGHT"
  - id: d1
    type: dialogue
    text: "Keep the lamp burning until dawn."
    metadata:
      character: OLD TOM
      scene_id: s1
      sequence: 2
  - id: a1
    type: action
    text: "Waves crash against the rocks below the lamp room."
    metadata:
      scene_id: s1
      sequence: 3
  - id: c1
    type: character
    text: "OLD TOM, keeper of the light for forty years."
    metadata:
      name: OLD TOM
`

func testConfig() *config.Config {
	return &config.Config{
		DBPath:            ":memory:",
		Provider:          embedder.ProviderLocal,
		LocalDimension:    32,
		BatchSize:         4,
		MaxConcurrent:     2,
		RetryAttempts:     1,
		RetryDelay:        time.Millisecond,
		CallTimeout:       time.Second,
		ChunkSize:         500,
		ChunkOverlap:      50,
		CacheMaxEntries:   100,
		CacheStrategy:     embedder.StrategyLRU,
		Metric:            similarity.Cosine,
		SemanticThreshold: 0.1,
		SearchCacheSize:   10,
		SearchCacheTTL:    time.Minute,
	}
}

func setupApp(t *testing.T) *App {
	t.Helper()
	a, err := New(testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	items, err := ReadContent(strings.NewReader(lighthouse))
	require.NoError(t, err)
	n, err := a.ImportContent(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	return a
}

func TestReadContent(t *testing.T) {
	items, err := ReadContent(strings.NewReader(lighthouse))
	require.NoError(t, err)
	require.Len(t, items, 4)
	assert.Equal(t, types.TypeDialogue, items[1].Type)
	assert.Equal(t, "OLD TOM", items[1].Metadata["character"])

	seq, ok := items[1].Sequence()
	assert.True(t, ok)
	assert.InDelta(t, 2.0, seq, 1e-9)

	// JSON is accepted too
	items, err = ReadContent(strings.NewReader(`{"items": [{"id": "o1", "type": "object", "text": "A brass key"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.TypeObject, items[0].Type)

	items, err = ReadContent(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReadContent_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown type", doc: `{"items": [{"id": "x", "type": "song", "text": "la"}]}`},
		{name: "blank text", doc: `{"items": [{"id": "x", "type": "scene", "text": "  "}]}`},
		{name: "missing id", doc: `{"items": [{"type": "scene", "text": "INT. HOUSE"}]}`},
		{name: "malformed", doc: `{"items": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadContent(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestApp_IndexAndSearch(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	stats, err := a.Index(ctx, indexer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Embedded)
	assert.Equal(t, "local-hash-32", stats.Model)

	resp, err := a.Search(ctx, searcher.Request{Query: "lamp", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Empty(t, resp.FailedSources)

	var found []string
	for _, r := range resp.Results {
		found = append(found, r.ID)
	}
	assert.Contains(t, found, "d1")
	assert.Contains(t, found, "a1")
	assert.Positive(t, resp.SourceCounts[searcher.SourceSemantic])
}

func TestApp_IndexInvalidatesSearchCache(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	_, err := a.Search(ctx, searcher.Request{Query: "lamp", Mode: searcher.SearchModeLexical, UseCache: true})
	require.NoError(t, err)
	require.Equal(t, 1, a.Searcher.CacheLen())

	_, err = a.Index(ctx, indexer.Options{})
	require.NoError(t, err)
	assert.Zero(t, a.Searcher.CacheLen())
}

func TestApp_Status(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	_, err := a.Index(ctx, indexer.Options{Types: []types.ContentType{types.TypeDialogue}})
	require.NoError(t, err)

	st, err := a.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, embedder.ProviderLocal, st.Provider)
	assert.Equal(t, "local-hash-32", st.Model)
	assert.Equal(t, 4, st.Storage.ContentTotal)
	assert.Equal(t, 1, st.Storage.EmbeddingsTotal)
	assert.Equal(t, 32, st.Storage.Dimensions["local-hash-32"])
	assert.Equal(t, 1, st.Cache.Entries)
}

func TestApp_CleanupCache(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	_, err := a.Index(ctx, indexer.Options{})
	require.NoError(t, err)

	// Nothing is older than an hour
	res, err := a.CleanupCache(ctx, time.Hour, true)
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{}, res)

	res, err = a.CleanupCache(ctx, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Memory)
	assert.Equal(t, 4, res.Durable)
	assert.Equal(t, 4, res.Embeddings)
	assert.Zero(t, a.Cache.Len())

	_, err = a.CleanupCache(ctx, -time.Second, false)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestApp_LoadsStoredDimensions(t *testing.T) {
	a := setupApp(t)
	ctx := context.Background()

	_, err := a.Index(ctx, indexer.Options{})
	require.NoError(t, err)
	require.NoError(t, a.loadDimensions(ctx))

	dim, ok := a.Pipeline.Dimension("local-hash-32")
	assert.True(t, ok)
	assert.Equal(t, 32, dim)
}
