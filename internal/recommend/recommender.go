// Package recommend aggregates candidate papers from the arXiv recency feed
// and the Semantic Scholar citation graph, scores them against the user's
// library, and caches the assembled result.
package recommend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kshitijsachan/papers/internal/codeurl"
	"github.com/kshitijsachan/papers/internal/domain"
	"github.com/kshitijsachan/papers/internal/llm"
	"github.com/kshitijsachan/papers/internal/observability"
	"github.com/kshitijsachan/papers/internal/sources/semanticscholar"
)

// EmptyLibraryMessage is returned when the user has no papers to seed
// recommendations from.
const EmptyLibraryMessage = "Add papers to your library to get recommendations"

// Library lists the user's saved papers.
type Library interface {
	ListPapers(ctx context.Context) ([]*domain.Paper, error)
}

// RecencyFeed fetches recently submitted papers by category.
type RecencyFeed interface {
	FetchRecent(ctx context.Context, categories []string, days, maxResults int) ([]domain.CandidatePaper, error)
}

// CitationGraph resolves arXiv IDs and returns related papers.
type CitationGraph interface {
	ResolveID(ctx context.Context, arxivID string) (string, error)
	Recommend(ctx context.Context, seedIDs []string, limit int) ([]semanticscholar.Paper, error)
}

// Options controls how much the recommender fetches and seeds.
type Options struct {
	Categories       []string
	Days             int
	MaxNewPapers     int
	MaxSeedPapers    int
	MaxRelatedPapers int
}

func (o *Options) applyDefaults() {
	if len(o.Categories) == 0 {
		o.Categories = []string{"cs.LG", "cs.CL", "cs.AI", "stat.ML"}
	}
	if o.Days <= 0 {
		o.Days = 3
	}
	if o.MaxNewPapers <= 0 {
		o.MaxNewPapers = 50
	}
	if o.MaxSeedPapers <= 0 {
		o.MaxSeedPapers = 10
	}
	if o.MaxRelatedPapers <= 0 {
		o.MaxRelatedPapers = 30
	}
}

// Recommender runs the full recommendation pipeline. Source failures degrade
// to an empty branch rather than failing the whole run; only library access
// errors are returned to the caller. Refreshes are serialized so concurrent
// requests cannot trigger duplicate upstream fetches.
type Recommender struct {
	library Library
	feed    RecencyFeed
	graph   CitationGraph
	scorer  llm.Scorer
	cache   Cache
	opts    Options
	logger  zerolog.Logger
	metrics *observability.Metrics

	mu sync.Mutex
}

// New creates a Recommender.
func New(library Library, feed RecencyFeed, graph CitationGraph, scorer llm.Scorer, cache Cache, opts Options, logger zerolog.Logger, metrics *observability.Metrics) *Recommender {
	opts.applyDefaults()
	return &Recommender{
		library: library,
		feed:    feed,
		graph:   graph,
		scorer:  scorer,
		cache:   cache,
		opts:    opts,
		logger:  logger.With().Str("component", "recommender").Logger(),
		metrics: metrics,
	}
}

// Get returns the current recommendations, serving from cache unless
// forceRefresh is set or the cache has expired.
func (r *Recommender) Get(ctx context.Context, forceRefresh bool) (*domain.RecommendationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !forceRefresh {
		if cached, ok := r.cache.Get(); ok {
			r.metrics.RecordRecommendationCacheHit()
			return cached, nil
		}
	}

	start := time.Now()
	result, err := r.refresh(ctx)
	if err != nil {
		return nil, err
	}
	r.metrics.RecordRecommendationRefresh(time.Since(start).Seconds())
	return result, nil
}

func (r *Recommender) refresh(ctx context.Context) (*domain.RecommendationResult, error) {
	papers, err := r.library.ListPapers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing library: %w", err)
	}

	// An empty library produces a hint instead of recommendations. The hint
	// is not cached so the first refresh after adding a paper does real work.
	if len(papers) == 0 {
		return &domain.RecommendationResult{
			NewPapers:     []domain.RecommendedPaper{},
			RelatedPapers: []domain.RecommendedPaper{},
			GeneratedAt:   time.Now().UTC(),
			Message:       EmptyLibraryMessage,
		}, nil
	}

	existing := existingArxivIDs(papers)

	var (
		wg       sync.WaitGroup
		newCands []domain.CandidatePaper
		related  []domain.CandidatePaper
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		newCands = r.fetchNewCandidates(ctx, existing)
	}()
	go func() {
		defer wg.Done()
		related = r.fetchRelatedCandidates(ctx, papers, existing)
	}()
	wg.Wait()

	var scoredNew, scoredRelated []domain.CandidatePaper
	wg.Add(2)
	go func() {
		defer wg.Done()
		scoredNew = r.scorer.Score(ctx, papers, newCands)
	}()
	go func() {
		defer wg.Done()
		scoredRelated = r.scorer.Score(ctx, papers, related)
	}()
	wg.Wait()

	attachCodeURLs(scoredNew)
	attachCodeURLs(scoredRelated)

	result := &domain.RecommendationResult{
		NewPapers:     toRecommended(scoredNew, domain.SourceArxivDaily, false),
		RelatedPapers: toRecommended(scoredRelated, domain.SourceSemanticScholar, true),
		GeneratedAt:   time.Now().UTC(),
	}

	if err := r.cache.Set(result); err != nil {
		r.logger.Warn().Err(err).Msg("failed to cache recommendations")
	}

	r.logger.Info().
		Int("new_papers", len(result.NewPapers)).
		Int("related_papers", len(result.RelatedPapers)).
		Msg("refreshed recommendations")
	return result, nil
}

// fetchNewCandidates pulls the recency feed and drops papers already in the
// library. Feed failures log and return an empty branch.
func (r *Recommender) fetchNewCandidates(ctx context.Context, existing map[string]bool) []domain.CandidatePaper {
	fetched, err := r.feed.FetchRecent(ctx, r.opts.Categories, r.opts.Days, r.opts.MaxNewPapers)
	if err != nil {
		r.logger.Warn().Err(err).Msg("recency feed unavailable")
		return nil
	}
	r.metrics.RecordCandidatesFetched(string(domain.SourceArxivDaily), len(fetched))

	candidates := make([]domain.CandidatePaper, 0, len(fetched))
	for _, c := range fetched {
		if c.ArxivID == "" || existing[c.ArxivID] {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// fetchRelatedCandidates resolves seed papers one at a time, then asks the
// citation graph for related work. Resolution failures skip the seed; a
// recommendation failure returns an empty branch.
func (r *Recommender) fetchRelatedCandidates(ctx context.Context, papers []*domain.Paper, existing map[string]bool) []domain.CandidatePaper {
	var seedIDs []string
	for _, p := range papers {
		if len(seedIDs) >= r.opts.MaxSeedPapers {
			break
		}
		arxivID := domain.ExtractArxivID(p.ArxivURL)
		if arxivID == "" {
			continue
		}
		id, err := r.graph.ResolveID(ctx, arxivID)
		if err != nil {
			r.logger.Debug().Err(err).Str("arxiv_id", arxivID).Msg("could not resolve seed paper")
			continue
		}
		seedIDs = append(seedIDs, id)
	}
	if len(seedIDs) == 0 {
		return nil
	}

	recs, err := r.graph.Recommend(ctx, seedIDs, r.opts.MaxRelatedPapers)
	if err != nil {
		r.logger.Warn().Err(err).Msg("citation graph unavailable")
		return nil
	}
	r.metrics.RecordCandidatesFetched(string(domain.SourceSemanticScholar), len(recs))

	candidates := make([]domain.CandidatePaper, 0, len(recs))
	for _, rec := range recs {
		arxivID := rec.ExternalIDs.ArXiv
		if arxivID != "" && existing[arxivID] {
			continue
		}
		candidates = append(candidates, recToCandidate(rec, arxivID))
	}
	return candidates
}

func recToCandidate(rec semanticscholar.Paper, arxivID string) domain.CandidatePaper {
	pubDate := rec.PublicationDate
	if pubDate == "" && rec.Year > 0 {
		pubDate = fmt.Sprintf("%d-01-01", rec.Year)
	}

	names := make([]string, 0, 5)
	for i, a := range rec.Authors {
		if i >= 5 {
			break
		}
		names = append(names, a.Name)
	}

	pageURL := rec.URL
	if arxivID != "" {
		pageURL = "https://arxiv.org/abs/" + arxivID
	}

	return domain.CandidatePaper{
		Title:         rec.Title,
		Authors:       strings.Join(names, ", "),
		Abstract:      rec.Abstract,
		ArxivID:       arxivID,
		URL:           pageURL,
		PublishedDate: pubDate,
		CitationCount: rec.CitationCount,
	}
}

// existingArxivIDs collects the arXiv IDs of every library paper that has a
// recognizable arXiv URL.
func existingArxivIDs(papers []*domain.Paper) map[string]bool {
	existing := make(map[string]bool, len(papers))
	for _, p := range papers {
		if id := domain.ExtractArxivID(p.ArxivURL); id != "" {
			existing[id] = true
		}
	}
	return existing
}

func attachCodeURLs(candidates []domain.CandidatePaper) {
	for i := range candidates {
		if url, ok := codeurl.Extract(candidates[i].Abstract); ok {
			candidates[i].CodeURL = url
		}
	}
}

func toRecommended(candidates []domain.CandidatePaper, source domain.SourceType, withCitations bool) []domain.RecommendedPaper {
	papers := make([]domain.RecommendedPaper, 0, len(candidates))
	for _, c := range candidates {
		rec := domain.RecommendedPaper{
			Title:          c.Title,
			Authors:        c.Authors,
			Abstract:       c.Abstract,
			ArxivID:        c.ArxivID,
			ArxivURL:       c.URL,
			PublishedDate:  c.PublishedDate,
			RelevanceScore: c.Score,
			Explanation:    c.Explanation,
			CodeURL:        c.CodeURL,
			Source:         source,
		}
		if withCitations {
			count := c.CitationCount
			rec.CitationCount = &count
		}
		papers = append(papers, rec)
	}
	return papers
}
