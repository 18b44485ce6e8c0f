// Package lexical scores and highlights text matches and serves lexical
// search over stored content.
package lexical

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Score levels
const (
	ExactMatchScore = 1.0
	WholeWordScore  = 0.8
	SubstringScore  = 0.6
	MultiTermScore  = 0.3

	occurrenceBonus    = 0.05
	maxOccurrenceBonus = 0.1
	positionBonus      = 0.05
	maxPartialScore    = 0.99
)

// Highlight defaults
const (
	DefaultContextLength = 50
	MaxHighlights        = 3
	Ellipsis             = "..."
)

// Score rates how well content matches query, case-insensitively:
// 1.0 for an exact match, then whole-word, substring and partial multi-term
// matches in decreasing order, 0 for no match. More occurrences and an
// earlier first match raise the score without reaching the exact-match level.
func Score(query, content string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(strings.TrimSpace(content))
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return ExactMatchScore
	}

	var base float64
	var count, pos int

	if locs := wholeWordIndexes(q, c); len(locs) > 0 {
		base, count, pos = WholeWordScore, len(locs), locs[0]
	} else if idx := strings.Index(c, q); idx >= 0 {
		base, count, pos = SubstringScore, strings.Count(c, q), idx
	} else {
		return termOverlap(q, c)
	}

	score := base +
		math.Min(occurrenceBonus*float64(count-1), maxOccurrenceBonus) +
		positionBonus*(1-float64(pos)/float64(len(c)))
	return math.Min(score, maxPartialScore)
}

// termOverlap scores a multi-term query by the fraction of its terms found
func termOverlap(q, c string) float64 {
	terms := strings.Fields(q)
	if len(terms) < 2 {
		return 0
	}
	found := 0
	for _, t := range terms {
		if strings.Contains(c, t) {
			found++
		}
	}
	return MultiTermScore * float64(found) / float64(len(terms))
}

// IsExactPhrase reports whether content contains the whole query phrase
func IsExactPhrase(query, content string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return q != "" && strings.Contains(strings.ToLower(content), q)
}

// TermFraction returns the fraction of query terms present in content
func TermFraction(query, content string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}
	c := strings.ToLower(content)
	found := 0
	for _, t := range terms {
		if strings.Contains(c, t) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// wholeWordIndexes returns the byte offsets of non-overlapping occurrences
// of q in c that are not glued to neighbouring letters or digits. Word
// characters are judged with unicode, so "café" is a word in "un café noir".
func wholeWordIndexes(q, c string) []int {
	first, _ := utf8.DecodeRuneInString(q)
	last, _ := utf8.DecodeLastRuneInString(q)

	var locs []int
	for off := 0; off <= len(c)-len(q); {
		i := strings.Index(c[off:], q)
		if i < 0 {
			break
		}
		start, end := off+i, off+i+len(q)
		before, _ := utf8.DecodeLastRuneInString(c[:start])
		after, _ := utf8.DecodeRuneInString(c[end:])
		if (start == 0 || !isWordRune(first) || !isWordRune(before)) &&
			(end == len(c) || !isWordRune(last) || !isWordRune(after)) {
			locs = append(locs, start)
			off = end
			continue
		}
		_, size := utf8.DecodeRuneInString(c[start:])
		off = start + size
	}
	return locs
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Highlights returns up to MaxHighlights snippets of content around matches
// of query, each with up to contextLength characters on either side cut at a
// word boundary and marked with Ellipsis where truncated. When the phrase
// does not occur, the individual query terms are highlighted instead.
func Highlights(query, content string, contextLength int) []string {
	q := strings.TrimSpace(query)
	if q == "" || content == "" {
		return nil
	}
	if contextLength < 0 {
		contextLength = DefaultContextLength
	}

	locs := regexp.MustCompile(`(?i)`+regexp.QuoteMeta(q)).FindAllStringIndex(content, MaxHighlights)
	if len(locs) == 0 {
		if terms := strings.Fields(q); len(terms) > 1 {
			quoted := make([]string, len(terms))
			for i, t := range terms {
				quoted[i] = regexp.QuoteMeta(t)
			}
			locs = regexp.MustCompile(`(?i)`+strings.Join(quoted, "|")).FindAllStringIndex(content, MaxHighlights)
		}
	}

	snippets := make([]string, 0, len(locs))
	for _, loc := range locs {
		snippets = append(snippets, snippet(content, loc[0], loc[1], contextLength))
	}
	return snippets
}

func snippet(content string, matchStart, matchEnd, contextLength int) string {
	start := matchStart - contextLength
	if start <= 0 {
		start = 0
	} else {
		if i := strings.IndexByte(content[start:matchStart], ' '); i >= 0 {
			start += i + 1
		}
		for start < matchStart && !utf8.RuneStart(content[start]) {
			start++
		}
	}

	end := matchEnd + contextLength
	if end >= len(content) {
		end = len(content)
	} else {
		if i := strings.LastIndexByte(content[matchEnd:end], ' '); i >= 0 {
			end = matchEnd + i
		}
		for end > matchEnd && !utf8.RuneStart(content[end]) {
			end--
		}
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(Ellipsis)
	}
	b.WriteString(strings.TrimSpace(content[start:end]))
	if end < len(content) {
		b.WriteString(Ellipsis)
	}
	return b.String()
}

// Limit bounds
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ClampLimit bounds a caller-supplied limit to [1, MaxLimit], substituting
// DefaultLimit for zero or negative values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
