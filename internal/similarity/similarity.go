// Package similarity compares embedding vectors under a selectable metric.
//
// Every function here is pure and safe for concurrent use. Scores returned by
// Score, FindMostSimilar, Rerank and BatchSimilarity are similarity-oriented for
// every metric: higher always means more similar. Distance metrics (euclidean,
// manhattan) are mapped through 1/(1+d), so an identical pair scores 1.0.
package similarity

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/scriptrag/pkg/types"
)

// Metric selects how two vectors are compared
type Metric string

const (
	Cosine     Metric = "cosine"
	Euclidean  Metric = "euclidean"
	DotProduct Metric = "dot_product"
	Manhattan  Metric = "manhattan"
)

// DefaultMetric is used when none is configured
const DefaultMetric = Cosine

// ParseMetric converts a configuration string to a Metric
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case Cosine, Euclidean, DotProduct, Manhattan:
		return m, nil
	case "dot", "dotproduct":
		return DotProduct, nil
	case "":
		return DefaultMetric, nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrUnknownMetric, s)
	}
}

// IsDistance reports whether the raw metric value is a distance (lower is closer)
func (m Metric) IsDistance() bool {
	return m == Euclidean || m == Manhattan
}

// Calculate returns the raw metric value for a and b.
// Distance metrics return the distance itself; use Score for a similarity-oriented value.
func Calculate(a, b []float32, metric Metric) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", types.ErrDimensionMismatch, len(a), len(b))
	}

	switch metric {
	case Cosine:
		return cosine(a, b), nil
	case Euclidean:
		return euclidean(a, b), nil
	case DotProduct:
		return dot(a, b), nil
	case Manhattan:
		return manhattan(a, b), nil
	default:
		return 0, fmt.Errorf("%w: %q", types.ErrUnknownMetric, metric)
	}
}

// Score returns a similarity-oriented value: higher means more similar for every metric
func Score(a, b []float32, metric Metric) (float64, error) {
	raw, err := Calculate(a, b, metric)
	if err != nil {
		return 0, err
	}
	return toSimilarity(raw, metric), nil
}

func toSimilarity(raw float64, metric Metric) float64 {
	if metric.IsDistance() {
		return 1.0 / (1.0 + raw)
	}
	return raw
}

// cosine is 0 whenever either vector has zero magnitude
func cosine(a, b []float32) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push |sim| slightly past 1
	return math.Max(-1, math.Min(1, sim))
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func manhattan(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum
}

// Candidate is a vector with an opaque payload carried through ranking
type Candidate struct {
	ID      string
	Vector  []float32
	Payload any
}

// Match is a candidate with its similarity-oriented score
type Match struct {
	Candidate
	Score float64
}

// SearchOptions controls FindMostSimilar
type SearchOptions struct {
	TopK      int     // <= 0 means no limit
	Threshold float64 // Lower bound on Score (inclusive)
	Metric    Metric
}

// FindMostSimilar ranks candidates against query, most similar first.
// Candidates whose dimension differs from the query are skipped, not fatal.
func FindMostSimilar(query []float32, candidates []Candidate, opts SearchOptions) ([]Match, error) {
	metric := opts.Metric
	if metric == "" {
		metric = DefaultMetric
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) != len(query) {
			continue
		}
		score, err := Score(query, c.Vector, metric)
		if err != nil {
			return nil, err
		}
		if score < opts.Threshold {
			continue
		}
		matches = append(matches, Match{Candidate: c, Score: score})
	}

	sortMatches(matches)

	if opts.TopK > 0 && len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}
	return matches, nil
}

// Rerank recomputes the score of every match under metric and resorts.
// Payloads are preserved; matches with a mismatched dimension are dropped.
func Rerank(query []float32, matches []Match, metric Metric) ([]Match, error) {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if len(m.Vector) != len(query) {
			continue
		}
		score, err := Score(query, m.Vector, metric)
		if err != nil {
			return nil, err
		}
		out = append(out, Match{Candidate: m.Candidate, Score: score})
	}
	sortMatches(out)
	return out, nil
}

// sortMatches orders by score descending, breaking ties by ID for stable output
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
}

// BatchSimilarity returns the symmetric N×N matrix of similarity-oriented scores.
// The diagonal is computed like every other cell, so it is 1.0 for distance metrics
// and non-zero vectors under cosine, 0.0 for a zero vector under cosine, and ||v||²
// under dot product.
func BatchSimilarity(embeddings [][]float32, metric Metric) ([][]float64, error) {
	n := len(embeddings)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			score, err := Score(embeddings[i], embeddings[j], metric)
			if err != nil {
				return nil, fmt.Errorf("pair (%d,%d): %w", i, j, err)
			}
			matrix[i][j] = score
			matrix[j][i] = score
		}
	}
	return matrix, nil
}

// Normalize returns v scaled to unit length; a zero vector stays zero
func Normalize(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	result := make([]float32, len(v))
	if sum == 0 {
		return result
	}

	norm := math.Sqrt(sum)
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}
	return result
}

// NormalizeAll applies Normalize to every vector
func NormalizeAll(embeddings [][]float32) [][]float32 {
	out := make([][]float32, len(embeddings))
	for i, v := range embeddings {
		out[i] = Normalize(v)
	}
	return out
}

// Centroid returns the element-wise mean of embeddings
func Centroid(embeddings [][]float32) ([]float32, error) {
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: centroid of empty set", types.ErrInvalidInput)
	}

	dim := len(embeddings[0])
	if dim == 0 {
		return nil, types.ErrEmptyVector
	}
	sums := make([]float64, dim)
	for i, v := range embeddings {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, want %d",
				types.ErrDimensionMismatch, i, len(v), dim)
		}
		for j, x := range v {
			sums[j] += float64(x)
		}
	}

	out := make([]float32, dim)
	n := float64(len(embeddings))
	for j, s := range sums {
		out[j] = float32(s / n)
	}
	return out, nil
}
