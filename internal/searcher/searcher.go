package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/scriptrag/internal/lexical"
	"github.com/dshills/scriptrag/internal/metrics"
	"github.com/dshills/scriptrag/internal/ranker"
	"github.com/dshills/scriptrag/internal/similarity"
	"github.com/dshills/scriptrag/pkg/types"
)

// SearchMode selects which sources a search queries
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"   // Lexical per type + semantic
	SearchModeLexical  SearchMode = "lexical"  // Lexical sources only
	SearchModeSemantic SearchMode = "semantic" // Vector similarity only
)

// SourceSemantic is the Source of vector-similarity results
const SourceSemantic = "semantic"

const (
	DefaultCacheSize     = 1000
	DefaultCacheTTL      = time.Hour
	DefaultMaxConcurrent = 4
)

// ErrSemanticUnavailable is returned for semantic-only searches without an embedder
var ErrSemanticUnavailable = errors.New("semantic search unavailable: no embedder configured")

// ParseSearchMode converts a user-supplied mode, defaulting to hybrid
func ParseSearchMode(s string) (SearchMode, error) {
	switch m := SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SearchModeHybrid, nil
	case SearchModeHybrid, SearchModeLexical, SearchModeSemantic:
		return m, nil
	default:
		return "", fmt.Errorf("%w: search mode %q", types.ErrInvalidInput, s)
	}
}

// Store is the storage the searcher reads from
type Store interface {
	lexical.Store
	GetContent(ctx context.Context, typ types.ContentType, id string) (*types.ContentItem, error)
	ListEmbeddings(ctx context.Context, model string, contentTypes []types.ContentType) ([]*types.EmbeddingRecord, error)
}

// Embedder turns the query into a vector. Implemented by *pipeline.Pipeline.
type Embedder interface {
	Generate(ctx context.Context, text, model string) ([]float32, error)
	Model(model string) string
}

// Request contains parameters for a search operation
type Request struct {
	Query string
	Mode  SearchMode

	// Types restricts every source to these content types; empty means all
	Types []types.ContentType

	Limit  int
	Offset int

	// MinScore drops results whose composite score is lower. Zero disables it.
	MinScore float64

	// EntityFilter is forwarded unchanged to every source
	EntityFilter map[string]any

	BoostRecent bool
	UseCache    bool
}

// Response contains the ranked page and search metadata
type Response struct {
	RequestID     string
	Results       []types.RankedResult
	TotalResults  int            // Ranked results before pagination
	SourceCounts  map[string]int // Results contributed per source
	FailedSources []string
	Mode          SearchMode
	Duration      time.Duration
	CacheHit      bool
}

// Config tunes the searcher
type Config struct {
	Model             string
	Metric            similarity.Metric
	SemanticThreshold float64
	ContextLength     int
	MaxConcurrent     int
	CacheSize         int
	CacheTTL          time.Duration
}

// DefaultConfig returns the default searcher configuration
func DefaultConfig() Config {
	return Config{
		Metric:        similarity.Cosine,
		ContextLength: lexical.DefaultContextLength,
		MaxConcurrent: DefaultMaxConcurrent,
		CacheSize:     DefaultCacheSize,
		CacheTTL:      DefaultCacheTTL,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Metric == "" {
		c.Metric = d.Metric
	}
	if c.ContextLength <= 0 {
		c.ContextLength = d.ContextLength
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	return c
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Searcher fans a query out to lexical and semantic sources and merges the
// results through the hybrid ranker
type Searcher struct {
	store    Store
	embedder Embedder
	lexical  *lexical.Searcher
	ranker   *ranker.Ranker
	cfg      Config
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// Option configures a Searcher
type Option func(*Searcher)

// WithMetrics records per-source latency and failures
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithClock overrides the clock used for cache expiry
func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

// NewSearcher creates a new Searcher. A nil embedder limits it to lexical
// sources; a nil ranker uses the default ranking profile.
func NewSearcher(store Store, emb Embedder, rk *ranker.Ranker, cfg Config, opts ...Option) *Searcher {
	cfg = cfg.withDefaults()
	if rk == nil {
		rk = ranker.New(ranker.DefaultConfig())
	}

	cache, err := lru.New[[32]byte, *cacheEntry](cfg.CacheSize)
	if err != nil {
		// Only possible with a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	s := &Searcher{
		store:    store,
		embedder: emb,
		ranker:   rk,
		cfg:      cfg,
		cache:    cache,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.lexical = lexical.NewSearcher(store, cfg.ContextLength, s.logger)
	return s
}

// source is one independently queried result set
type source struct {
	name string
	run  func(ctx context.Context) ([]types.SearchResult, error)
}

// Search runs the query against every selected source concurrently. A
// failing source is logged and left out of the merge.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	start := s.now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID)

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.RequestID = requestID
			cached.CacheHit = true
			cached.Duration = s.now().Sub(start)
			return cached, nil
		}
	}

	sources := s.sources(req)
	sets := make([][]types.SearchResult, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrent)
	for i, src := range sources {
		g.Go(func() error {
			t0 := time.Now()
			sets[i], errs[i] = src.run(gctx)
			s.metrics.SearchSource(src.name, time.Since(t0), errs[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &Response{
		RequestID:    requestID,
		Mode:         req.Mode,
		SourceCounts: make(map[string]int, len(sources)),
	}

	var merged []types.SearchResult
	for i, src := range sources {
		if errs[i] != nil {
			logger.Warn("search source failed", "source", src.name, "error", errs[i])
			resp.FailedSources = append(resp.FailedSources, src.name)
			continue
		}
		resp.SourceCounts[src.name] = len(sets[i])
		merged = append(merged, sets[i]...)
	}

	ranked := s.ranker.RankResults(merged, ranker.Options{Query: req.Query, BoostRecent: req.BoostRecent})
	if req.MinScore != 0 {
		ranked = ranker.FilterResults(ranked, req.MinScore, -1)
	}
	resp.TotalResults = len(ranked)
	resp.Results = ranker.Paginate(ranked, req.Offset, req.Limit)
	resp.Duration = s.now().Sub(start)

	logger.Debug("search complete",
		"query", req.Query,
		"mode", req.Mode,
		"sources", len(sources),
		"failed", len(resp.FailedSources),
		"total", resp.TotalResults,
		"returned", len(resp.Results),
		"duration", resp.Duration)

	// Degraded responses are not cached
	if req.UseCache && len(resp.FailedSources) == 0 {
		s.storeInCache(req, resp)
	}

	return resp, nil
}

// sources lists the sources selected by the request
func (s *Searcher) sources(req Request) []source {
	contentTypes := req.Types
	if len(contentTypes) == 0 {
		contentTypes = types.AllContentTypes
	}
	// Sources return enough results to fill the requested page. Only the
	// page size is clamped, not this window.
	fetch := req.Offset + req.Limit

	var out []source
	if req.Mode != SearchModeSemantic {
		for _, typ := range contentTypes {
			out = append(out, source{
				name: lexical.SourceName + ":" + string(typ),
				run: func(ctx context.Context) ([]types.SearchResult, error) {
					return s.lexical.SearchTop(ctx, req.Query, typ, fetch, req.EntityFilter)
				},
			})
		}
	}
	if req.Mode != SearchModeLexical && s.embedder != nil {
		out = append(out, source{
			name: SourceSemantic,
			run: func(ctx context.Context) ([]types.SearchResult, error) {
				return s.semanticSearch(ctx, req, req.Types, fetch)
			},
		})
	}
	return out
}

// semanticSearch embeds the query and compares it against stored embeddings
func (s *Searcher) semanticSearch(ctx context.Context, req Request, contentTypes []types.ContentType, limit int) ([]types.SearchResult, error) {
	vector, err := s.embedder.Generate(ctx, req.Query, s.cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	records, err := s.store.ListEmbeddings(ctx, s.embedder.Model(s.cfg.Model), contentTypes)
	if err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}

	candidates := make([]similarity.Candidate, len(records))
	for i, rec := range records {
		candidates[i] = similarity.Candidate{ID: rec.EntityID, Vector: rec.Vector, Payload: rec}
	}

	topK := limit
	if len(req.EntityFilter) > 0 {
		topK = 0 // Filter first, then truncate
	}
	matches, err := similarity.FindMostSimilar(vector, candidates, similarity.SearchOptions{
		TopK:      topK,
		Threshold: s.cfg.SemanticThreshold,
		Metric:    s.cfg.Metric,
	})
	if err != nil {
		return nil, err
	}

	results := make([]types.SearchResult, 0, min(len(matches), limit))
	for _, m := range matches {
		if len(results) == limit {
			break
		}
		rec := m.Payload.(*types.EmbeddingRecord)
		item, err := s.store.GetContent(ctx, rec.EntityType, rec.EntityID)
		if err != nil {
			// Embeddings can outlive their content
			s.logger.Debug("skipping embedding without content",
				"type", rec.EntityType, "id", rec.EntityID, "error", err)
			continue
		}
		if !MatchesFilter(item.Metadata, req.EntityFilter) {
			continue
		}
		results = append(results, types.SearchResult{
			ID:         item.ID,
			Type:       item.Type,
			Content:    item.Text,
			Score:      m.Score,
			Metadata:   item.Metadata,
			Highlights: lexical.Highlights(req.Query, item.Text, s.cfg.ContextLength),
			Source:     SourceSemantic,
		})
	}
	return results, nil
}

// SearchEntities runs a lexical search over one named entity category
// (character, location, object). Unknown categories yield no results.
func (s *Searcher) SearchEntities(ctx context.Context, query, category string, limit int) ([]types.SearchResult, error) {
	start := s.now()
	results, err := s.lexical.SearchEntities(ctx, query, category, limit)
	s.metrics.SearchSource("entities", s.now().Sub(start), err)
	return results, err
}

// MatchesFilter reports whether md holds every key/value pair of filter.
// Numbers compare by value regardless of their concrete type.
func MatchesFilter(md map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		if wn, ok := types.MetadataNumber(filter, k); ok {
			got, ok := types.MetadataNumber(md, k)
			if !ok || got != wn {
				return false
			}
			continue
		}
		got, ok := md[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// validateRequest ensures search request is valid
func (s *Searcher) validateRequest(req *Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return types.ErrEmptyContent
	}

	mode, err := ParseSearchMode(string(req.Mode))
	if err != nil {
		return err
	}
	req.Mode = mode
	if req.Mode == SearchModeSemantic && s.embedder == nil {
		return ErrSemanticUnavailable
	}

	for _, t := range req.Types {
		if !t.Valid() {
			return fmt.Errorf("%w: content type %q", types.ErrInvalidInput, t)
		}
	}

	req.Limit = lexical.ClampLimit(req.Limit)
	if req.Offset < 0 {
		req.Offset = 0
	}
	return nil
}

// checkCache returns a copy of a live cached response, or nil
func (s *Searcher) checkCache(req Request) *Response {
	hash := computeQueryHash(req)

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if s.now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()

		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	response := copyResponse(entry.response)
	s.cacheMu.RUnlock()

	return response
}

// storeInCache saves a copy of the response
func (s *Searcher) storeInCache(req Request, response *Response) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: s.now().Add(s.cfg.CacheTTL),
	}

	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Called after re-indexing.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}

// copyResponse creates a deep copy of a Response
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.RankedResult, len(src.Results))
	for i, r := range src.Results {
		r.Highlights = append([]string(nil), r.Highlights...)
		r.Metadata = types.CopyMetadata(r.Metadata)
		dst.Results[i] = r
	}
	dst.SourceCounts = make(map[string]int, len(src.SourceCounts))
	for k, v := range src.SourceCounts {
		dst.SourceCounts[k] = v
	}
	dst.FailedSources = append([]string(nil), src.FailedSources...)
	return &dst
}

// computeQueryHash computes a unique hash for a search request
func computeQueryHash(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	data.WriteString(string(req.Mode))

	typeNames := make([]string, len(req.Types))
	for i, t := range req.Types {
		typeNames[i] = string(t)
	}
	sort.Strings(typeNames)
	data.WriteString("|types:")
	data.WriteString(strings.Join(typeNames, ","))

	fmt.Fprintf(&data, "|%d|%d|%g|%t", req.Limit, req.Offset, req.MinScore, req.BoostRecent)

	keys := make([]string, 0, len(req.EntityFilter))
	for k := range req.EntityFilter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data.WriteString("|filter:")
	for _, k := range keys {
		fmt.Fprintf(&data, "%s=%v;", k, req.EntityFilter[k])
	}

	return sha256.Sum256([]byte(data.String()))
}
