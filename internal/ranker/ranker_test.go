package ranker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/scriptrag/pkg/types"
)

func result(id string, typ types.ContentType, score float64) types.SearchResult {
	return types.SearchResult{ID: id, Type: typ, Content: "content " + id, Score: score}
}

func TestTypeWeightOrdering(t *testing.T) {
	r := New(Config{})
	ranked := r.RankResults([]types.SearchResult{
		result("a1", types.TypeAction, 0.8),
		result("d1", types.TypeDialogue, 0.8),
	}, Options{})

	require.Len(t, ranked, 2)
	assert.Equal(t, "d1", ranked[0].ID)
	assert.InDelta(t, 0.72, ranked[0].CompositeScore, 1e-9)
	assert.InDelta(t, 0.64, ranked[1].CompositeScore, 1e-9)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
}

func TestDensityBoostCap(t *testing.T) {
	def := New(Config{})
	assert.InDelta(t, 0.1, def.densityBoost("quick fox", "the quick fox"), 1e-9)
	assert.InDelta(t, 0.05, def.densityBoost("quick fox", "the fox"), 1e-9)

	cfg, err := ParseConfig([]byte("density_weight: 2.0\n"))
	require.NoError(t, err)
	heavy := New(cfg)
	assert.InDelta(t, 0.5, heavy.densityBoost("quick fox", "the quick fox"), 1e-9)
	assert.InDelta(t, 0.5, heavy.densityBoost("quick fox", "the fox"), 1e-9)
	assert.Zero(t, heavy.densityBoost("quick fox", "a dog"))
}

func TestCompositeScore(t *testing.T) {
	r := New(Config{})

	tests := []struct {
		name string
		res  types.SearchResult
		opts Options
		want float64
	}{
		{
			name: "unknown type uses default weight",
			res:  result("x", types.ContentType("poster"), 0.8),
			want: 0.4,
		},
		{
			name: "exact phrase multiplier and full density",
			res:  types.SearchResult{Type: types.TypeScene, Content: "the red door opens", Score: 0.5},
			opts: Options{Query: "red door"},
			want: 0.5*1.0*1.2 + 0.1,
		},
		{
			name: "partial density without exact phrase",
			res:  types.SearchResult{Type: types.TypeScene, Content: "a red car", Score: 0.5},
			opts: Options{Query: "red door"},
			want: 0.5 + 0.05,
		},
		{
			name: "metadata boost accumulates across fields",
			res: types.SearchResult{
				Type: types.TypeScene, Content: "nothing", Score: 0.2,
				Metadata: map[string]any{"character": "JOHN SMITH", "heading": "INT. JOHN'S FLAT", "location": "garage"},
			},
			opts: Options{Query: "john"},
			want: 0.2 + 0.2,
		},
		{
			name: "recency favours low sequence",
			res: types.SearchResult{
				Type: types.TypeScene, Content: "x", Score: 0.2,
				Metadata: map[string]any{"sequence": 1},
			},
			opts: Options{BoostRecent: true},
			want: 0.2 + 0.05,
		},
		{
			name: "capped at one",
			res:  types.SearchResult{Type: types.TypeScene, Content: "fox", Score: 0.95},
			opts: Options{Query: "fox"},
			want: 1.0,
		},
		{
			name: "negative scores are not raised",
			res:  result("neg", types.TypeScene, -0.5),
			want: -0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, r.CompositeScore(tt.res, tt.opts), 1e-9)
		})
	}
}

func TestRecencyPrefersEarlierSequence(t *testing.T) {
	r := New(Config{})
	early := types.SearchResult{ID: "e", Type: types.TypeScene, Score: 0.5, Metadata: map[string]any{"sequence": 0}}
	late := types.SearchResult{ID: "l", Type: types.TypeScene, Score: 0.5, Metadata: map[string]any{"sequence": 40.0}}

	ranked := r.RankResults([]types.SearchResult{late, early}, Options{BoostRecent: true})
	assert.Equal(t, "e", ranked[0].ID)

	ranked = r.RankResults([]types.SearchResult{late, early}, Options{})
	assert.Equal(t, "e", ranked[0].ID, "ties fall back to ID order")
}

func TestDeduplicationPolicy(t *testing.T) {
	input := []types.SearchResult{
		result("r1", types.TypeDialogue, 0.4),
		result("r1", types.TypeDialogue, 0.9),
	}

	raw := Deduplicate(input)
	require.Len(t, raw, 1)
	assert.Equal(t, 0.4, raw[0].Score, "raw dedup keeps the first seen")

	ranked := New(Config{}).RankResults(input, Options{})
	require.Len(t, ranked, 1)
	assert.Equal(t, 0.9, ranked[0].Score, "ranking sorts before deduplicating")

	t.Run("same id different type is kept", func(t *testing.T) {
		ranked := New(Config{}).RankResults([]types.SearchResult{
			result("x", types.TypeDialogue, 0.5),
			result("x", types.TypeAction, 0.5),
		}, Options{})
		assert.Len(t, ranked, 2)
	})
}

func TestHybridMergeSingleResultPerItem(t *testing.T) {
	lex := types.SearchResult{ID: "d1", Type: types.TypeDialogue, Content: "the quick fox", Score: 0.7, Source: "lexical:dialogue"}
	sem := types.SearchResult{ID: "d1", Type: types.TypeDialogue, Content: "the quick fox", Score: 0.9, Source: "semantic"}

	merged := MergeResults("", []types.SearchResult{lex}, []types.SearchResult{sem})
	ranked := New(Config{}).RankResults(merged, Options{Query: "fox"})
	require.Len(t, ranked, 1)

	ranked = New(Config{}).RankResults(append([]types.SearchResult{lex}, sem), Options{Query: "fox"})
	require.Len(t, ranked, 1)
	assert.Equal(t, "semantic", ranked[0].Source)
}

func TestMergeResults(t *testing.T) {
	a := []types.SearchResult{
		{ID: "1", Type: types.TypeAction, Content: "a dog barks"},
		{ID: "2", Type: types.TypeAction, Content: "fox"},
	}
	b := []types.SearchResult{
		{ID: "2", Type: types.TypeAction, Content: "fox duplicate"},
		{ID: "3", Type: types.TypeAction, Content: "the fox runs"},
	}

	t.Run("without query keeps order", func(t *testing.T) {
		merged := MergeResults("", a, b)
		require.Len(t, merged, 3)
		assert.Equal(t, []string{"1", "2", "3"}, ids(merged))
		assert.Equal(t, "fox", merged[1].Content)
	})

	t.Run("with query reranks lexically", func(t *testing.T) {
		merged := MergeResults("fox", a, b)
		assert.Equal(t, []string{"2", "3", "1"}, ids(merged))
	})

	t.Run("no sets", func(t *testing.T) {
		assert.Empty(t, MergeResults("fox"))
	})
}

func TestGroupResultsByType(t *testing.T) {
	groups := GroupResultsByType([]types.SearchResult{
		result("d1", types.TypeDialogue, 1),
		result("a1", types.TypeAction, 1),
		result("d2", types.TypeDialogue, 1),
	})
	assert.Len(t, groups, 2)
	assert.Equal(t, []string{"d1", "d2"}, ids(groups[types.TypeDialogue]))
	assert.Equal(t, []string{"a1"}, ids(groups[types.TypeAction]))
}

func TestFilterResults(t *testing.T) {
	ranked := New(Config{}).RankResults([]types.SearchResult{
		result("a", types.TypeScene, 0.9),
		result("b", types.TypeScene, 0.5),
		result("c", types.TypeScene, 0.1),
	}, Options{})

	assert.Empty(t, FilterResults(ranked, 2.0, -1))
	assert.Empty(t, FilterResults(ranked, 0, 0))
	assert.Len(t, FilterResults(ranked, 0.3, -1), 2)
	assert.Len(t, FilterResults(ranked, 0, 1), 1)
	assert.Len(t, FilterResults(ranked, -1, 10), 3)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, Paginate(items, 0, 2))
	assert.Equal(t, []int{4, 5}, Paginate(items, 3, 10))
	assert.Equal(t, []int{3, 4, 5}, Paginate(items, 2, -1))
	assert.Empty(t, Paginate(items, 9, 2))
	assert.Equal(t, []int{1}, Paginate(items, -4, 1))
}

func TestFuseRRF(t *testing.T) {
	lexical := []types.SearchResult{result("a", types.TypeScene, 0.1), result("b", types.TypeScene, 0.1)}
	vector := []types.SearchResult{result("b", types.TypeScene, 0.9), result("c", types.TypeScene, 0.9)}

	fused := FuseRRF(0, lexical, vector)
	require.Len(t, fused, 3)
	assert.Equal(t, "b", fused[0].ID, "appearing in both lists wins")
	assert.InDelta(t, 1.0/62+1.0/61, fused[0].CompositeScore, 1e-12)
	assert.Equal(t, "a", fused[1].ID)
	assert.Equal(t, 3, fused[2].Rank)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
type_weights:
  dialogue: 0.95
metadata_boost: 0.2
`))
	require.NoError(t, err)
	r := New(cfg)
	assert.Equal(t, 0.95, r.TypeWeight(types.TypeDialogue))
	assert.Equal(t, 1.0, r.TypeWeight(types.TypeScene), "unlisted types keep defaults")
	assert.Equal(t, 0.2, r.Config().MetadataBoost)
	assert.Equal(t, 1.2, r.Config().ExactMatchBoost)

	_, err = ParseConfig([]byte("type_weights:\n  poster: 2\n"))
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = ParseConfig([]byte("type_weights: [1, 2"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranking.yaml")
	require.NoError(t, os.WriteFile(path, []byte("recency_weight: 0.3\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.RecencyWeight)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func ids(results []types.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}
