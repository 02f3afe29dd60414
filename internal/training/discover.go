// Package training sources candidate content for the rating loop and
// picks the pairs users rate.
//
// Discovery runs are coordinated per user with a process-wide
// singleflight.Group: a second request for the same user joins the run in
// flight. The guard is local to one process. Deployments running several
// instances against a shared store need a lock held in that store instead.
package training

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/TobiSchelling/Folio/internal/analyze"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/llm"
	"github.com/TobiSchelling/Folio/internal/platform"
	"github.com/TobiSchelling/Folio/internal/taste"
	"github.com/TobiSchelling/Folio/internal/youtube"
)

const queryPrompt = `Analyze this user's video collection and taste profile to generate YouTube Shorts search queries.

## User's Collection (recent video titles):
%s

## Current Taste Profile:
- Top Hooks: %s
- Keywords: %s
- Dominant Tones: %s
- Style Markers: %s

## Task:
Generate 8 YouTube Shorts search queries:

1. **SIMILAR queries (4)**: Find content similar to what they've collected. Extract specific themes, creators, niches, or styles from their collection. Be SPECIFIC - use actual terms, creator styles, or niche topics from their collection.

2. **EXPLORATION queries (4)**: Find content that tests their boundaries. These should be:
   - Different tones than their current dominant tones (to test if they like other tones)
   - Adjacent niches they might not have explored
   - Contrasting styles to establish what they DON'T like
   This helps establish taste boundaries and "avoid tones".

Return as JSON array:
[
  {"query": "specific search terms", "sourceType": "SIMILAR" | "EXPLORATION", "rationale": "why this query"}
]

Be specific! Not "music videos" but "lo-fi hip hop beats shorts" or "jazz piano improvisation shorts". Extract actual themes from their collection.`

// Relevance scores by origin.
const (
	relevanceSimilar  = 0.8
	relevanceOther    = 0.5
	relevanceTrending = 0.3
)

const (
	maxPromptTitles = 15
	recentItems     = 50
	broaderQuery    = "trending viral shorts"
	notEstablished  = "Not established"
	discoverTimeout = 3 * time.Minute
)

// Searcher finds short videos for a query. *youtube.Client satisfies it.
type Searcher interface {
	IsConfigured() bool
	Search(ctx context.Context, query string) ([]youtube.SearchResult, error)
}

// Query is one search query proposed for discovery.
type Query struct {
	Query      string `json:"query"`
	SourceType string `json:"sourceType"`
	Rationale  string `json:"rationale"`
}

// candidate is a discovered item before it is stored.
type candidate struct {
	Title      string
	URL        string
	Platform   string
	Thumbnail  string
	Relevance  float64
	SourceType string
	Query      string
}

// Options tune discovery.
type Options struct {
	MinPending int
	BatchSize  int
	Expiry     time.Duration
	// Observe, when set, is called after every discovery run.
	Observe func(stored int, took time.Duration)
}

// Discoverer finds new training suggestions for users.
type Discoverer struct {
	db       *database.DB
	provider llm.Provider
	search   Searcher
	feeds    *FeedSource
	curated  []Category
	opts     Options

	group   singleflight.Group
	mu      sync.Mutex
	running map[string]bool

	shuffle func(n int, swap func(i, j int))
}

// NewDiscoverer creates a discoverer. provider, search and feeds may be nil.
func NewDiscoverer(db *database.DB, provider llm.Provider, search Searcher, feeds *FeedSource, opts Options) *Discoverer {
	if opts.MinPending <= 0 {
		opts.MinPending = 6
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 30
	}
	if opts.Expiry <= 0 {
		opts.Expiry = 7 * 24 * time.Hour
	}
	return &Discoverer{
		db:       db,
		provider: provider,
		search:   search,
		feeds:    feeds,
		curated:  Curated(),
		opts:     opts,
		running:  make(map[string]bool),
		shuffle:  rand.Shuffle,
	}
}

// BatchSize is the number of suggestions a background run asks for.
func (d *Discoverer) BatchSize() int { return d.opts.BatchSize }

// Running reports whether a discovery run is in flight for the user.
func (d *Discoverer) Running(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running[userID]
}

// Discover finds up to count new suggestions and stores them. A call made
// while a run for the same user is in flight waits for that run and
// returns its result. The run itself is detached from ctx cancellation so
// joined callers are not cut short by the caller that started it.
func (d *Discoverer) Discover(ctx context.Context, userID string, count int) ([]database.Suggestion, error) {
	if count <= 0 {
		count = d.opts.BatchSize
	}
	v, err, shared := d.group.Do(userID, func() (any, error) {
		d.setRunning(userID, true)
		defer d.setRunning(userID, false)

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), discoverTimeout)
		defer cancel()
		start := time.Now()
		stored, err := d.discover(runCtx, userID, count)
		if d.opts.Observe != nil {
			d.opts.Observe(len(stored), time.Since(start))
		}
		return stored, err
	})
	if shared {
		log.Debug().Str("user", userID).Msg("joined in-flight discovery")
	}
	if err != nil {
		return nil, err
	}
	return v.([]database.Suggestion), nil
}

func (d *Discoverer) setRunning(userID string, on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if on {
		d.running[userID] = true
	} else {
		delete(d.running, userID)
	}
}

// Ensure starts a background discovery of BatchSize suggestions when the
// user has fewer than MinPending pending ones. It returns the pending count.
func (d *Discoverer) Ensure(userID string) (int, error) {
	pending, err := d.db.CountPending(userID)
	if err != nil {
		return 0, fmt.Errorf("counting pending suggestions: %w", err)
	}
	if pending < d.opts.MinPending && !d.Running(userID) {
		log.Info().Str("user", userID).Int("pending", pending).Msg("starting background discovery")
		go func() {
			if _, err := d.Discover(context.Background(), userID, d.opts.BatchSize); err != nil {
				log.Error().Err(err).Str("user", userID).Msg("background discovery failed")
			}
		}()
	}
	return pending, nil
}

func (d *Discoverer) discover(ctx context.Context, userID string, count int) ([]database.Suggestion, error) {
	items, err := d.db.RecentItems(userID, recentItems)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	p, err := d.db.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	var bundle taste.Bundle
	if p != nil {
		bundle = p.Combined()
	}
	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}

	existing, err := d.existingURLs(userID)
	if err != nil {
		return nil, err
	}

	var fresh []candidate
	seen := map[string]bool{}
	add := func(cs []candidate) {
		for _, c := range cs {
			if existing[c.URL] || seen[c.URL] {
				continue
			}
			seen[c.URL] = true
			fresh = append(fresh, c)
		}
	}

	if d.search != nil && d.search.IsConfigured() {
		queries := d.Queries(ctx, titles, bundle)
		log.Debug().Str("user", userID).Int("queries", len(queries)).Msg("searching")
		for _, q := range queries {
			add(d.searchQuery(ctx, q, relevanceFor(q.SourceType)))
		}
		if len(fresh) == 0 {
			log.Info().Str("user", userID).Msg("no new results, trying broader search")
			add(d.searchQuery(ctx, Query{Query: broaderQuery, SourceType: database.SourceTrending}, relevanceTrending))
		}
	}

	if len(fresh) < count && d.feeds != nil {
		add(d.feeds.Candidates(ctx))
	}

	if len(fresh) == 0 {
		log.Info().Str("user", userID).Msg("using curated suggestions")
		add(curatedCandidates(d.curated, bundle))
	}

	d.shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })
	if len(fresh) > count {
		fresh = fresh[:count]
	}

	stored := make([]database.Suggestion, 0, len(fresh))
	for _, c := range fresh {
		s := &database.Suggestion{
			UserID:     userID,
			Title:      c.Title,
			URL:        c.URL,
			Platform:   c.Platform,
			Relevance:  c.Relevance,
			SourceType: c.SourceType,
		}
		if c.Thumbnail != "" {
			s.Thumbnail = &c.Thumbnail
		}
		if c.Query != "" {
			s.Query = &c.Query
		}
		ok, err := d.db.InsertSuggestion(s, d.opts.Expiry)
		if err != nil {
			return stored, fmt.Errorf("storing suggestion: %w", err)
		}
		if !ok {
			log.Debug().Str("url", c.URL).Msg("skipping duplicate suggestion")
			continue
		}
		stored = append(stored, *s)
	}

	log.Info().Str("user", userID).Int("stored", len(stored)).Msg("discovery complete")
	return stored, nil
}

func (d *Discoverer) existingURLs(userID string) (map[string]bool, error) {
	urls, err := d.db.ItemURLs(userID)
	if err != nil {
		return nil, fmt.Errorf("loading collection urls: %w", err)
	}
	suggested, err := d.db.SuggestionURLs(userID)
	if err != nil {
		return nil, fmt.Errorf("loading suggestion urls: %w", err)
	}
	for u := range suggested {
		urls[u] = true
	}
	return urls, nil
}

func (d *Discoverer) searchQuery(ctx context.Context, q Query, relevance float64) []candidate {
	results, err := d.search.Search(ctx, q.Query)
	if err != nil {
		log.Warn().Err(err).Str("query", q.Query).Msg("search failed")
		return nil
	}
	out := make([]candidate, 0, len(results))
	for _, r := range results {
		out = append(out, candidate{
			Title:      r.Title,
			URL:        platform.ShortsURL(r.VideoID),
			Platform:   string(platform.YouTubeShort),
			Thumbnail:  r.Thumbnail,
			Relevance:  relevance,
			SourceType: q.SourceType,
			Query:      q.Query,
		})
	}
	return out
}

func relevanceFor(sourceType string) float64 {
	if sourceType == database.SourceSimilar {
		return relevanceSimilar
	}
	return relevanceOther
}

// Queries proposes search queries from the user's recent titles and
// profile. Without an LLM, or when its answer is unusable, the top title
// keywords become SIMILAR queries. With no collection two generic queries
// are returned.
func (d *Discoverer) Queries(ctx context.Context, titles []string, b taste.Bundle) []Query {
	if len(titles) == 0 {
		return []Query{
			{Query: "viral short form content tips", SourceType: database.SourceTrending, Rationale: "Generic trending"},
			{Query: "creative video editing shorts", SourceType: database.SourceExploration, Rationale: "Exploration"},
		}
	}

	if d.provider != nil && d.provider.IsConfigured() {
		if qs := d.llmQueries(ctx, titles, b); len(qs) > 0 {
			return qs
		}
	}

	var out []Query
	for _, k := range analyze.TopKeywords(titles, 4) {
		out = append(out, Query{Query: k + " shorts", SourceType: database.SourceSimilar, Rationale: "Extracted from collection"})
	}
	return append(out, explorationQueries...)
}

// explorationQueries widen a keyword-only query set outside the collection.
var explorationQueries = []Query{
	{Query: "creative video editing shorts", SourceType: database.SourceExploration, Rationale: "Exploration"},
	{Query: "unexpected hobby shorts", SourceType: database.SourceExploration, Rationale: "Contrast"},
}

func (d *Discoverer) llmQueries(ctx context.Context, titles []string, b taste.Bundle) []Query {
	if len(titles) > maxPromptTitles {
		titles = titles[:maxPromptTitles]
	}
	lines := make([]string, len(titles))
	for i, t := range titles {
		lines[i] = fmt.Sprintf("%d. %s", i+1, t)
	}
	prompt := fmt.Sprintf(queryPrompt,
		strings.Join(lines, "\n"),
		joinOr(b.Performance.TopHooks.Head(5)),
		joinOr(b.Performance.Keywords.Head(8)),
		joinOr(b.Aesthetic.DominantTones.Head(5)),
		joinOr(b.Aesthetic.StyleMarkers.Head(5)),
	)

	text, err := d.provider.Generate(ctx, prompt, 1024)
	if err != nil {
		log.Warn().Err(err).Msg("LLM query generation failed, using title keywords")
		return nil
	}
	var raw []Query
	if err := llm.DecodeArray(text, &raw); err != nil {
		log.Warn().Err(err).Msg("unusable LLM query list, using title keywords")
		return nil
	}

	out := make([]Query, 0, len(raw))
	for _, q := range raw {
		q.Query = strings.TrimSpace(q.Query)
		if q.Query == "" {
			continue
		}
		if q.SourceType != database.SourceExploration {
			q.SourceType = database.SourceSimilar
		}
		out = append(out, q)
	}
	return out
}

func joinOr(values []string) string {
	if len(values) == 0 {
		return notEstablished
	}
	return strings.Join(values, ", ")
}
