package ranker

import (
	"math"
	"sort"
	"strings"

	"github.com/dshills/scriptrag/internal/lexical"
	"github.com/dshills/scriptrag/pkg/types"
)

// MaxCompositeScore is the ceiling applied to every composite score
const MaxCompositeScore = 1.0

// Options carries the per-query inputs to ranking
type Options struct {
	Query       string
	BoostRecent bool
}

// Ranker computes composite scores and orders result sets
type Ranker struct {
	cfg Config
}

// New creates a Ranker. Zero fields of cfg fall back to DefaultConfig.
func New(cfg Config) *Ranker {
	return &Ranker{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration
func (r *Ranker) Config() Config { return r.cfg }

// TypeWeight returns the multiplier for a content type
func (r *Ranker) TypeWeight(t types.ContentType) float64 {
	if w, ok := r.cfg.TypeWeights[t]; ok {
		return w
	}
	return r.cfg.DefaultTypeWeight
}

// CompositeScore combines the base score with type, exact-match, density,
// metadata and recency boosts. The result is capped at MaxCompositeScore but
// never raised, so negative inputs stay visible.
func (r *Ranker) CompositeScore(res types.SearchResult, opts Options) float64 {
	score := res.Score * r.TypeWeight(res.Type)

	if q := strings.TrimSpace(opts.Query); q != "" {
		if lexical.IsExactPhrase(q, res.Content) {
			score *= r.cfg.ExactMatchBoost
		}
		score += r.densityBoost(q, res.Content)
		score += r.metadataBoost(q, res.Metadata)
	}
	if opts.BoostRecent {
		score += r.recencyBoost(res.Metadata)
	}
	return math.Min(score, MaxCompositeScore)
}

func (r *Ranker) densityBoost(query, content string) float64 {
	return math.Min(lexical.TermFraction(query, content)*r.cfg.DensityWeight, r.cfg.MaxDensityBoost)
}

func (r *Ranker) metadataBoost(query string, md map[string]any) float64 {
	if len(md) == 0 {
		return 0
	}
	terms := strings.Fields(strings.ToLower(query))
	var boost float64
	for _, field := range r.cfg.MetadataFields {
		val, ok := types.MetadataString(md, field)
		if !ok || val == "" {
			continue
		}
		val = strings.ToLower(val)
		for _, t := range terms {
			if strings.Contains(val, t) {
				boost += r.cfg.MetadataBoost
				break
			}
		}
	}
	return boost
}

func (r *Ranker) recencyBoost(md map[string]any) float64 {
	seq, ok := types.MetadataNumber(md, types.MetaSequence)
	if !ok || seq < 0 {
		return 0
	}
	return r.cfg.RecencyWeight / (1 + seq)
}

// RankResults scores, sorts and deduplicates results. Sorting happens before
// deduplication, so the entry kept for a duplicated (type, id) is the one
// with the highest composite score. Ties are broken by type weight, then ID.
func (r *Ranker) RankResults(results []types.SearchResult, opts Options) []types.RankedResult {
	ranked := make([]types.RankedResult, len(results))
	for i, res := range results {
		ranked[i] = types.RankedResult{
			SearchResult:   res,
			CompositeScore: r.CompositeScore(res, opts),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if wa, wb := r.TypeWeight(a.Type), r.TypeWeight(b.Type); wa != wb {
			return wa > wb
		}
		return a.ID < b.ID
	})

	seen := make(map[types.ResultKey]struct{}, len(ranked))
	out := ranked[:0]
	for _, rr := range ranked {
		key := rr.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rr)
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Deduplicate keeps the first-seen entry for each (type, id)
func Deduplicate(results []types.SearchResult) []types.SearchResult {
	seen := make(map[types.ResultKey]struct{}, len(results))
	out := make([]types.SearchResult, 0, len(results))
	for _, res := range results {
		key := res.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, res)
	}
	return out
}

// MergeResults concatenates result sets and deduplicates them. When query is
// non-empty the merged list is reordered by lexical relevance to it.
func MergeResults(query string, sets ...[]types.SearchResult) []types.SearchResult {
	var all []types.SearchResult
	for _, set := range sets {
		all = append(all, set...)
	}
	merged := Deduplicate(all)

	if strings.TrimSpace(query) == "" {
		return merged
	}
	scores := make([]float64, len(merged))
	for i := range merged {
		scores[i] = lexical.Score(query, merged[i].Content)
	}
	idx := make([]int, len(merged))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	out := make([]types.SearchResult, len(merged))
	for i, j := range idx {
		out[i] = merged[j]
	}
	return out
}

// GroupResultsByType partitions results by type, keeping relative order
func GroupResultsByType(results []types.SearchResult) map[types.ContentType][]types.SearchResult {
	groups := make(map[types.ContentType][]types.SearchResult)
	for _, res := range results {
		groups[res.Type] = append(groups[res.Type], res)
	}
	return groups
}

// FilterResults drops results below minScore and truncates to maxResults.
// A maxResults of 0 yields an empty list; a negative value means no limit.
func FilterResults(results []types.RankedResult, minScore float64, maxResults int) []types.RankedResult {
	out := make([]types.RankedResult, 0, len(results))
	if maxResults == 0 {
		return out
	}
	for _, rr := range results {
		if rr.CompositeScore < minScore {
			continue
		}
		out = append(out, rr)
		if maxResults > 0 && len(out) == maxResults {
			break
		}
	}
	return out
}

// Paginate returns the page of results starting at offset
func Paginate[T any](results []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(results) {
		return []T{}
	}
	end := len(results)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}
	return results[offset:end]
}
