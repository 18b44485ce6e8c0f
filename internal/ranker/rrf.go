package ranker

import (
	"sort"

	"github.com/dshills/scriptrag/pkg/types"
)

// DefaultRRFConstant is the k in 1/(k + rank)
const DefaultRRFConstant = 60

// FuseRRF combines ranked lists with Reciprocal Rank Fusion:
// RRF(d) = Σ 1/(k + rank(d)). It ignores base scores, which makes it useful
// when sources score on incomparable scales. The first-seen copy of each
// result supplies its fields.
func FuseRRF(k float64, lists ...[]types.SearchResult) []types.RankedResult {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[types.ResultKey]float64)
	first := make(map[types.ResultKey]types.SearchResult)
	var order []types.ResultKey

	for _, list := range lists {
		for rank, res := range list {
			key := res.Key()
			if _, ok := first[key]; !ok {
				first[key] = res
				order = append(order, key)
			}
			scores[key] += 1.0 / (k + float64(rank+1))
		}
	}

	results := make([]types.RankedResult, 0, len(order))
	for _, key := range order {
		results = append(results, types.RankedResult{
			SearchResult:   first[key],
			CompositeScore: scores[key],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CompositeScore > results[j].CompositeScore
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}
