// Package collection implements the operations on a user's saved items:
// saving, analysis, thumbnail rescans and metric refreshes.
package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/analyze"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/metadata"
	"github.com/TobiSchelling/Folio/internal/platform"
	"github.com/TobiSchelling/Folio/internal/youtube"
)

var (
	ErrMissingURL         = errors.New("url is required")
	ErrMissingTitle       = errors.New("title is required")
	ErrInvalidPlatform    = errors.New("invalid platform")
	ErrInvalidContentType = errors.New("invalid content type")
	ErrNotFound           = errors.New("item not found")
)

// backgroundTimeout bounds an analysis started by Save.
const backgroundTimeout = 2 * time.Minute

// SaveRequest is a new item as submitted by a client.
type SaveRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Platform    string   `json:"platform"`
	ContentType string   `json:"contentType"`
	Thumbnail   *string  `json:"thumbnail"`
	Views       *int64   `json:"views"`
	Likes       *int64   `json:"likes"`
	Comments    *int64   `json:"comments"`
	Engagement  *float64 `json:"engagement"`
	Notes       *string  `json:"notes"`
	Tags        []string `json:"tags"`
}

// Validate checks the required fields and enums of r.
func (r *SaveRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return ErrMissingURL
	}
	if strings.TrimSpace(r.Title) == "" {
		return ErrMissingTitle
	}
	if !platform.Valid(r.Platform) {
		return ErrInvalidPlatform
	}
	if r.ContentType != "" && !platform.ValidContentType(r.ContentType) {
		return ErrInvalidContentType
	}
	return nil
}

// Service runs collection operations against the database.
type Service struct {
	db          *database.DB
	youtube     *youtube.Client
	fetcher     *metadata.Fetcher
	analyzer    *analyze.Analyzer
	autoAnalyze bool
	now         func() time.Time
	wg          sync.WaitGroup
}

// NewService creates a collection service. yt and fetcher may be nil.
// With autoAnalyze set, Save analyzes each new item in the background.
func NewService(db *database.DB, yt *youtube.Client, fetcher *metadata.Fetcher, analyzer *analyze.Analyzer, autoAnalyze bool) *Service {
	return &Service{
		db:          db,
		youtube:     yt,
		fetcher:     fetcher,
		analyzer:    analyzer,
		autoAnalyze: autoAnalyze && analyzer != nil,
		now:         time.Now,
	}
}

// Save validates req and stores it as a new item of userID. YouTube items
// get their statistics when the API is configured; a failed lookup leaves
// the metrics unknown.
func (s *Service) Save(ctx context.Context, userID string, req SaveRequest) (*database.Item, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p := platform.Platform(req.Platform)
	it := &database.Item{
		UserID:      userID,
		Title:       strings.TrimSpace(req.Title),
		URL:         strings.TrimSpace(req.URL),
		Platform:    req.Platform,
		ContentType: req.ContentType,
		Thumbnail:   req.Thumbnail,
		Views:       req.Views,
		Likes:       req.Likes,
		Comments:    req.Comments,
		Engagement:  req.Engagement,
		Notes:       req.Notes,
		Tags:        req.Tags,
	}
	if it.ContentType == "" {
		if _, ct, ok := platform.Detect(it.URL); ok {
			it.ContentType = string(ct)
		}
	}

	switch {
	case p.IsYouTube():
		if id := platform.YouTubeID(it.URL); id != "" {
			it.VideoID = &id
			if it.Thumbnail == nil {
				thumb := platform.YouTubeThumbnail(id)
				it.Thumbnail = &thumb
			}
			s.applyYouTubeStats(ctx, it, id)
		}
	case p == platform.TikTok:
		if id := platform.TikTokID(it.URL); id != "" {
			it.VideoID = &id
		}
	}

	if err := s.db.InsertItem(it); err != nil {
		return nil, fmt.Errorf("saving item: %w", err)
	}
	log.Info().Str("user", userID).Str("item", it.ID).Str("platform", it.Platform).Msg("item saved")

	if s.autoAnalyze {
		s.analyzeInBackground(*it)
	}
	return it, nil
}

// SaveURL resolves rawURL through the metadata fetcher and saves the result.
func (s *Service) SaveURL(ctx context.Context, userID, rawURL string) (*database.Item, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("metadata fetcher not configured")
	}
	m, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	title := m.Title
	if title == "" {
		title = m.URL
	}
	return s.Save(ctx, userID, SaveRequest{
		URL:         m.URL,
		Title:       title,
		Platform:    string(m.Platform),
		ContentType: string(m.ContentType),
		Thumbnail:   m.Thumbnail,
		Views:       m.Views,
		Likes:       m.Likes,
		Comments:    m.Comments,
		Engagement:  m.Engagement,
	})
}

func (s *Service) applyYouTubeStats(ctx context.Context, it *database.Item, id string) {
	if !s.youtube.IsConfigured() {
		return
	}
	v, err := s.youtube.Video(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("video_id", id).Msg("YouTube stats unavailable, saving without metrics")
		return
	}
	if v == nil {
		return
	}
	applyVideo(it, v, s.now())
}

func applyVideo(it *database.Item, v *youtube.Video, now time.Time) {
	m := youtube.Derive(*v, now)
	it.Views = &v.Views
	it.Likes = &v.Likes
	it.Comments = &v.Comments
	it.Engagement = &m.Engagement
	it.ViewsPerDay = &m.ViewsPerDay
	it.ViralVelocity = &m.ViralVelocity
	it.AgeInDays = &m.AgeInDays
	it.ChannelSubscribers = v.ChannelSubscribers
	if v.ChannelID != "" {
		it.ChannelID = &v.ChannelID
	}
	if v.ChannelTitle != "" && it.Author == nil {
		it.Author = &v.ChannelTitle
	}
	if !v.PublishedAt.IsZero() {
		published := database.FormatTime(v.PublishedAt)
		it.PublishedAt = &published
	}
}

func (s *Service) analyzeInBackground(it database.Item) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if _, err := s.analyzeItem(ctx, &it); err != nil {
			log.Error().Err(err).Str("item", it.ID).Msg("background analysis failed")
		}
	}()
}

// Wait blocks until background analyses started by Save have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Analyze (re)computes the DNA of one of the user's items.
func (s *Service) Analyze(ctx context.Context, userID, itemID string) (*database.Item, *database.ItemAnalysis, error) {
	it, err := s.db.GetItem(userID, itemID)
	if err != nil {
		return nil, nil, err
	}
	if it == nil {
		return nil, nil, ErrNotFound
	}
	a, err := s.analyzeItem(ctx, it)
	if err != nil {
		return nil, nil, err
	}
	return it, a, nil
}

func (s *Service) analyzeItem(ctx context.Context, it *database.Item) (*database.ItemAnalysis, error) {
	dna, err := s.analyzer.Analyze(ctx, analyze.Input{
		Title:      it.Title,
		Platform:   it.Platform,
		Views:      it.Views,
		Engagement: it.Engagement,
	})
	if err != nil {
		return nil, err
	}
	if err := s.db.UpsertAnalysis(it.ID, dna); err != nil {
		return nil, fmt.Errorf("storing analysis: %w", err)
	}
	log.Debug().Str("item", it.ID).Str("source", dna.Source).Msg("item analyzed")
	return s.db.GetAnalysis(it.ID)
}

// RescanResult reports a thumbnail rescan.
type RescanResult struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
}

// Rescan recomputes thumbnails from item URLs and stores those that changed.
func (s *Service) Rescan(ctx context.Context, userID string) (*RescanResult, error) {
	items, err := s.db.AllItems(userID)
	if err != nil {
		return nil, err
	}

	r := &RescanResult{Total: len(items)}
	for _, it := range items {
		thumb := platform.Thumbnail(it.URL, platform.Platform(it.Platform))
		if thumb == "" || (it.Thumbnail != nil && *it.Thumbnail == thumb) {
			continue
		}
		if err := s.db.UpdateThumbnail(it.ID, thumb); err != nil {
			return nil, fmt.Errorf("updating thumbnail: %w", err)
		}
		r.Updated++
	}
	log.Info().Str("user", userID).Int("total", r.Total).Int("updated", r.Updated).Msg("thumbnail rescan complete")
	return r, nil
}
