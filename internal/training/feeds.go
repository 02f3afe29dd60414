package training

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/config"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/platform"
)

const (
	maxPerFeed  = 20
	feedTimeout = 15 * time.Second
	feedMaxAge  = 30 * 24 * time.Hour
)

// FeedSource turns configured RSS/Atom feeds into TRENDING suggestions.
type FeedSource struct {
	feeds  []config.Feed
	parser *gofeed.Parser
	now    func() time.Time
}

// NewFeedSource creates a feed source. It returns nil when no feeds are configured.
func NewFeedSource(feeds []config.Feed) *FeedSource {
	if len(feeds) == 0 {
		return nil
	}
	return &FeedSource{feeds: feeds, parser: gofeed.NewParser(), now: time.Now}
}

// Candidates parses every feed and returns the recent entries that point at
// a supported platform. A failing feed is logged and skipped.
func (fs *FeedSource) Candidates(ctx context.Context) []candidate {
	cutoff := fs.now().Add(-feedMaxAge)
	var all []candidate
	for _, fc := range fs.feeds {
		name := fc.Name
		if name == "" {
			name = sourceName(fc.URL)
		}

		fctx, cancel := context.WithTimeout(ctx, feedTimeout)
		feed, err := fs.parser.ParseURLWithContext(fc.URL, fctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("feed", fc.URL).Msg("failed to parse feed")
			continue
		}

		n := 0
		for _, item := range feed.Items {
			if n >= maxPerFeed {
				break
			}
			c, ok := feedCandidate(item, name, cutoff)
			if !ok {
				continue
			}
			all = append(all, c)
			n++
		}
		log.Debug().Str("feed", name).Int("entries", n).Msg("parsed feed")
	}
	return all
}

func feedCandidate(item *gofeed.Item, source string, cutoff time.Time) (candidate, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return candidate{}, false
	}

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published != nil && published.Before(cutoff) {
		return candidate{}, false
	}

	p, _, ok := platform.Detect(link)
	if !ok {
		return candidate{}, false
	}
	if p.IsYouTube() {
		if id := platform.YouTubeID(link); id != "" {
			link = platform.ShortsURL(id)
			p = platform.YouTubeShort
		}
	}

	thumb := platform.Thumbnail(link, p)
	if item.Image != nil && item.Image.URL != "" {
		thumb = item.Image.URL
	}

	return candidate{
		Title:      title,
		URL:        link,
		Platform:   string(p),
		Thumbnail:  thumb,
		Relevance:  relevanceTrending,
		SourceType: database.SourceTrending,
		Query:      "feed:" + source,
	}, true
}

func sourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"www.", "blog.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}
	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
