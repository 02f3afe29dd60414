package collection

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/platform"
	"github.com/TobiSchelling/Folio/internal/youtube"
)

// refreshConcurrency limits concurrent item updates during a refresh.
const refreshConcurrency = 8

// RefreshResult reports a metrics refresh. Per-item failures are counted in
// Errors; the refresh itself does not fail because of them.
type RefreshResult struct {
	Total         int    `json:"total"`
	Updated       int    `json:"updated"`
	Errors        int    `json:"errors"`
	YouTubeVideos int    `json:"youtubeVideos"`
	Message       string `json:"message,omitempty"`
}

// RefreshMetrics re-fetches YouTube statistics for the user's items, or
// only for itemID when it is not empty, and stores the new counts together
// with growth since the first check.
func (s *Service) RefreshMetrics(ctx context.Context, userID, itemID string) (*RefreshResult, error) {
	var items []database.Item
	if itemID != "" {
		it, err := s.db.GetItem(userID, itemID)
		if err != nil {
			return nil, err
		}
		if it != nil {
			items = append(items, *it)
		}
	} else {
		all, err := s.db.AllItems(userID)
		if err != nil {
			return nil, err
		}
		items = all
	}

	byVideo := make(map[string][]database.Item)
	var ids []string
	for _, it := range items {
		if !platform.Platform(it.Platform).IsYouTube() {
			continue
		}
		id := ""
		if it.VideoID != nil {
			id = *it.VideoID
		}
		if id == "" {
			id = platform.YouTubeID(it.URL)
		}
		if id == "" {
			continue
		}
		if _, seen := byVideo[id]; !seen {
			ids = append(ids, id)
		}
		byVideo[id] = append(byVideo[id], it)
	}

	r := &RefreshResult{Total: len(items)}
	switch {
	case len(ids) == 0:
		r.Message = "No YouTube videos to update"
		return r, nil
	case !s.youtube.IsConfigured():
		r.Message = "YouTube API key not configured"
		return r, nil
	}
	r.YouTubeVideos = len(ids)

	videos, err := s.youtube.Videos(ctx, ids)
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("batch YouTube fetch failed")
		return r, nil
	}

	var updated, failed atomic.Int64
	now := s.now()
	checkedAt := database.FormatTime(now)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for id, v := range videos {
		for _, it := range byVideo[id] {
			g.Go(func() error {
				if gctx.Err() != nil {
					failed.Add(1)
					return nil
				}
				if it.InitialViews == nil {
					it.InitialViews = &v.Views
					it.InitialLikes = &v.Likes
					it.InitialComments = &v.Comments
					it.GrowthRate = nil
				} else {
					it.GrowthRate = youtube.GrowthRate(v.Views, it.InitialViews)
				}
				applyVideo(&it, &v, now)
				videoID := id
				it.VideoID = &videoID
				it.LastCheckedAt = &checkedAt
				it.CheckCount++

				if err := s.db.SaveItemMetrics(&it); err != nil {
					log.Warn().Err(err).Str("item", it.ID).Msg("saving refreshed metrics")
					failed.Add(1)
					return nil
				}
				updated.Add(1)
				return nil
			})
		}
	}
	_ = g.Wait()

	r.Updated = int(updated.Load())
	r.Errors = int(failed.Load())
	log.Info().Str("user", userID).Int("updated", r.Updated).Int("errors", r.Errors).
		Int("videos", r.YouTubeVideos).Msg("metrics refresh complete")
	return r, nil
}
