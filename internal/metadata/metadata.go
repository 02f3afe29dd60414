// Package metadata resolves a content URL into its platform, title,
// thumbnail and, for YouTube, performance statistics.
package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/extract"
	"github.com/TobiSchelling/Folio/internal/platform"
	"github.com/TobiSchelling/Folio/internal/youtube"
)

var (
	ErrMissingURL  = errors.New("URL is required")
	ErrInvalidURL  = errors.New("Invalid URL format")
	ErrUnsupported = errors.New("Unsupported platform. Supported: YouTube, TikTok, Instagram, Twitter, Twitch, SoundCloud, Bandcamp, Mixcloud")
)

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	maxPageBytes = 2 << 20
	maxTweet     = 200
)

// Metadata describes a content URL. Nil fields are unknown.
type Metadata struct {
	Title              string               `json:"title"`
	URL                string               `json:"url"`
	Platform           platform.Platform    `json:"platform"`
	ContentType        platform.ContentType `json:"contentType"`
	Thumbnail          *string              `json:"thumbnail"`
	Views              *int64               `json:"views"`
	Likes              *int64               `json:"likes"`
	Comments           *int64               `json:"comments"`
	Engagement         *float64             `json:"engagement"`
	VideoID            *string              `json:"videoId"`
	ChannelID          *string              `json:"channelId,omitempty"`
	Author             *string              `json:"author,omitempty"`
	ChannelSubscribers *int64               `json:"channelSubscribers"`
	PublishedAt        *time.Time           `json:"publishedAt"`
	ViewsPerDay        *float64             `json:"viewsPerDay"`
	ViralVelocity      *float64             `json:"viralVelocity"`
	AgeInDays          *int64               `json:"ageInDays"`
}

// Endpoints are the oEmbed endpoints queried per platform. Each is used as
// a prefix for the escaped content URL.
type Endpoints struct {
	YouTube    string
	TikTok     string
	Instagram  string
	Twitter    string
	SoundCloud string
	Mixcloud   string
}

// DefaultEndpoints are the public oEmbed endpoints.
var DefaultEndpoints = Endpoints{
	YouTube:    "https://www.youtube.com/oembed?format=json&url=",
	TikTok:     "https://www.tiktok.com/oembed?url=",
	Instagram:  "https://www.instagram.com/api/v1/oembed/?url=",
	Twitter:    "https://publish.twitter.com/oembed?url=",
	SoundCloud: "https://soundcloud.com/oembed?format=json&url=",
	Mixcloud:   "https://www.mixcloud.com/oembed/?format=json&url=",
}

// Fetcher resolves metadata for content URLs.
type Fetcher struct {
	youtube   *youtube.Client
	endpoints Endpoints
	cache     Cache
	client    *http.Client
	now       func() time.Time
}

// NewFetcher creates a fetcher. yt may be nil or unconfigured, in which
// case YouTube falls back to oEmbed. cache may be nil.
func NewFetcher(yt *youtube.Client, cache Cache) *Fetcher {
	if cache == nil {
		cache = noopCache{}
	}
	return &Fetcher{
		youtube:   yt,
		endpoints: DefaultEndpoints,
		cache:     cache,
		client: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		now: time.Now,
	}
}

// WithEndpoints overrides the oEmbed endpoints.
func (f *Fetcher) WithEndpoints(e Endpoints) *Fetcher {
	f.endpoints = e
	return f
}

// Validate checks rawURL and detects its platform without any network call.
func Validate(rawURL string) (platform.Platform, platform.ContentType, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", ErrMissingURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", ErrInvalidURL
	}
	p, ct, ok := platform.Detect(rawURL)
	if !ok {
		return "", "", ErrUnsupported
	}
	return p, ct, nil
}

// Fetch resolves metadata for rawURL. Only validation errors are returned;
// failures of the upstream services leave the corresponding fields empty.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Metadata, error) {
	rawURL = strings.TrimSpace(rawURL)
	p, ct, err := Validate(rawURL)
	if err != nil {
		return nil, err
	}
	if m, ok := f.cache.Get(rawURL); ok {
		return m, nil
	}

	m := &Metadata{URL: rawURL, Platform: p, ContentType: ct}
	switch p {
	case platform.YouTubeShort, platform.YouTubeLong:
		f.fetchYouTube(ctx, m)
	case platform.TikTok:
		if id := platform.TikTokID(rawURL); id != "" {
			m.VideoID = &id
		}
		f.fetchOEmbed(ctx, f.endpoints.TikTok, m)
	case platform.InstagramReel:
		f.fetchOEmbed(ctx, f.endpoints.Instagram, m)
	case platform.Twitter:
		f.fetchOEmbed(ctx, f.endpoints.Twitter, m)
	case platform.SoundCloud:
		f.fetchOEmbed(ctx, f.endpoints.SoundCloud, m)
	case platform.Mixcloud:
		f.fetchOEmbed(ctx, f.endpoints.Mixcloud, m)
	default:
		f.fetchPage(ctx, m)
	}

	f.cache.Set(rawURL, m)
	return m, nil
}

func (f *Fetcher) fetchYouTube(ctx context.Context, m *Metadata) {
	id := platform.YouTubeID(m.URL)
	if id == "" {
		return
	}
	m.VideoID = &id
	thumb := platform.YouTubeThumbnail(id)
	m.Thumbnail = &thumb

	if !f.youtube.IsConfigured() {
		f.fetchOEmbed(ctx, f.endpoints.YouTube, m)
		m.Thumbnail = &thumb
		return
	}

	v, err := f.youtube.Video(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("video_id", id).Msg("YouTube API lookup failed")
		return
	}
	if v == nil {
		return
	}
	ApplyVideo(m, v, f.now())
}

// ApplyVideo copies YouTube statistics and their derived metrics into m.
func ApplyVideo(m *Metadata, v *youtube.Video, now time.Time) {
	metrics := youtube.Derive(*v, now)
	m.Title = v.Title
	if v.Thumbnail != "" {
		m.Thumbnail = &v.Thumbnail
	}
	m.Views = &v.Views
	m.Likes = &v.Likes
	m.Comments = &v.Comments
	m.Engagement = &metrics.Engagement
	m.ChannelSubscribers = v.ChannelSubscribers
	if v.ChannelID != "" {
		m.ChannelID = &v.ChannelID
	}
	if v.ChannelTitle != "" {
		m.Author = &v.ChannelTitle
	}
	if !v.PublishedAt.IsZero() {
		published := v.PublishedAt
		m.PublishedAt = &published
	}
	m.ViewsPerDay = &metrics.ViewsPerDay
	m.ViralVelocity = &metrics.ViralVelocity
	m.AgeInDays = &metrics.AgeInDays
}

type oembedResponse struct {
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	ThumbnailURL string `json:"thumbnail_url"`
	HTML         string `json:"html"`
}

func (f *Fetcher) fetchOEmbed(ctx context.Context, endpoint string, m *Metadata) {
	if endpoint == "" {
		return
	}
	body, err := f.get(ctx, endpoint+url.QueryEscape(m.URL))
	if err != nil {
		log.Warn().Err(err).Str("platform", string(m.Platform)).Msg("oEmbed lookup failed")
		return
	}

	var data oembedResponse
	if err := json.Unmarshal(body, &data); err != nil {
		log.Warn().Err(err).Str("platform", string(m.Platform)).Msg("decoding oEmbed response")
		return
	}

	if m.Platform == platform.Twitter {
		text := extract.TweetText(data.HTML)
		if r := []rune(text); len(r) > maxTweet {
			text = string(r[:maxTweet])
		}
		if text == "" {
			text = data.AuthorName
		}
		m.Title = text
	} else {
		m.Title = data.Title
	}
	if data.ThumbnailURL != "" {
		thumb := data.ThumbnailURL
		m.Thumbnail = &thumb
	}
	if data.AuthorName != "" {
		author := data.AuthorName
		m.Author = &author
	}
}

// fetchPage scrapes the content page itself, trying the platform extractor
// first and readability when the extractor finds no title.
func (f *Fetcher) fetchPage(ctx context.Context, m *Metadata) {
	body, err := f.get(ctx, m.URL)
	if err != nil {
		log.Warn().Err(err).Str("url", m.URL).Msg("page fetch failed")
		return
	}

	if c, err := extract.FromHTML(m.URL, string(body)); err == nil {
		m.Title = c.Title
		m.Thumbnail = c.Thumbnail
		m.Views = c.Views
		m.Engagement = c.Engagement
		m.VideoID = c.VideoID
	}
	if m.Title != "" && m.Title != extract.DefaultTitle(m.Platform) {
		return
	}

	parsed, _ := url.Parse(m.URL)
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return
	}
	if t := strings.TrimSpace(article.Title); t != "" {
		m.Title = t
	}
	if m.Thumbnail == nil && article.Image != "" {
		img := article.Image
		m.Thumbnail = &img
	}
}

func (f *Fetcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned %d", req.URL.Host, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}
