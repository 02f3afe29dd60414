// Package youtube is a small client for the YouTube Data API v3 and the
// performance metrics Folio derives from its statistics.
package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/platform"
)

// DefaultBaseURL is the public Data API endpoint.
const DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

// batchSize is the API's per-request id limit.
const batchSize = 50

// Client calls the YouTube Data API.
type Client struct {
	APIKey        string
	BaseURL       string
	SearchTimeout time.Duration
	client        *http.Client
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(apiKey, baseURL string, searchTimeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if searchTimeout <= 0 {
		searchTimeout = 5 * time.Second
	}
	return &Client{
		APIKey:        apiKey,
		BaseURL:       strings.TrimRight(baseURL, "/"),
		SearchTimeout: searchTimeout,
		client:        &http.Client{Timeout: 30 * time.Second},
	}
}

// IsConfigured reports whether an API key is set.
func (c *Client) IsConfigured() bool {
	return c != nil && c.APIKey != ""
}

// Video is the subset of a video resource Folio uses.
type Video struct {
	ID                 string
	Title              string
	ChannelID          string
	ChannelTitle       string
	Thumbnail          string
	PublishedAt        time.Time
	Duration           string
	Tags               []string
	Views              int64
	Likes              int64
	Comments           int64
	ChannelSubscribers *int64
}

type thumbnail struct {
	URL string `json:"url"`
}

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string   `json:"title"`
			ChannelID    string   `json:"channelId"`
			ChannelTitle string   `json:"channelTitle"`
			PublishedAt  string   `json:"publishedAt"`
			Tags         []string `json:"tags"`
			Thumbnails   struct {
				Maxres *thumbnail `json:"maxres"`
				High   *thumbnail `json:"high"`
				Medium *thumbnail `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type channelListResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Medium *thumbnail `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *Client) get(ctx context.Context, resource string, params url.Values, out any) error {
	if !c.IsConfigured() {
		return fmt.Errorf("YouTube API key not configured")
	}
	params.Set("key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/"+resource+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("YouTube API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("YouTube API returned %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", resource, err)
	}
	return nil
}

// Videos fetches statistics, snippet and content details for ids, together
// with the subscriber counts of their channels. Ids are requested in
// batches of 50; unknown ids are absent from the result.
func (c *Client) Videos(ctx context.Context, ids []string) (map[string]Video, error) {
	out := make(map[string]Video, len(ids))
	channels := make(map[string]bool)

	for _, batch := range batches(ids) {
		var resp videoListResponse
		params := url.Values{
			"part": {"statistics,snippet,contentDetails"},
			"id":   {strings.Join(batch, ",")},
		}
		if err := c.get(ctx, "videos", params, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			v := Video{
				ID:           item.ID,
				Title:        item.Snippet.Title,
				ChannelID:    item.Snippet.ChannelID,
				ChannelTitle: item.Snippet.ChannelTitle,
				Duration:     item.ContentDetails.Duration,
				Tags:         item.Snippet.Tags,
				Views:        parseCount(item.Statistics.ViewCount),
				Likes:        parseCount(item.Statistics.LikeCount),
				Comments:     parseCount(item.Statistics.CommentCount),
			}
			v.PublishedAt, _ = time.Parse(time.RFC3339, item.Snippet.PublishedAt)
			th := item.Snippet.Thumbnails
			switch {
			case th.Maxres != nil:
				v.Thumbnail = th.Maxres.URL
			case th.High != nil:
				v.Thumbnail = th.High.URL
			case th.Medium != nil:
				v.Thumbnail = th.Medium.URL
			default:
				v.Thumbnail = platform.YouTubeThumbnail(item.ID)
			}
			if v.ChannelID != "" {
				channels[v.ChannelID] = true
			}
			out[v.ID] = v
		}
	}

	if len(channels) == 0 {
		return out, nil
	}
	ids = ids[:0:0]
	for id := range channels {
		ids = append(ids, id)
	}
	subs, err := c.Subscribers(ctx, ids)
	if err != nil {
		// Subscriber counts only refine viral velocity; keep the video stats.
		log.Warn().Err(err).Msg("fetching channel statistics")
		return out, nil
	}
	for id, v := range out {
		if n, ok := subs[v.ChannelID]; ok && n > 0 {
			n := n
			v.ChannelSubscribers = &n
			out[id] = v
		}
	}
	return out, nil
}

// Video fetches a single video. Returns nil if the id is unknown.
func (c *Client) Video(ctx context.Context, id string) (*Video, error) {
	vs, err := c.Videos(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	v, ok := vs[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// Subscribers returns subscriber counts keyed by channel id.
func (c *Client) Subscribers(ctx context.Context, channelIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(channelIDs))
	for _, batch := range batches(channelIDs) {
		var resp channelListResponse
		params := url.Values{"part": {"statistics"}, "id": {strings.Join(batch, ",")}}
		if err := c.get(ctx, "channels", params, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Items {
			out[item.ID] = parseCount(item.Statistics.SubscriberCount)
		}
	}
	return out, nil
}

// SearchResult is one short found by Search.
type SearchResult struct {
	VideoID      string
	Title        string
	Thumbnail    string
	ChannelTitle string
}

// Search looks for short videos matching query. " #shorts" is appended
// unless the query already mentions shorts. The call is bounded by
// SearchTimeout.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := query
	if !strings.Contains(strings.ToLower(q), "shorts") {
		q += " #shorts"
	}

	ctx, cancel := context.WithTimeout(ctx, c.SearchTimeout)
	defer cancel()

	var resp searchResponse
	params := url.Values{
		"part":          {"snippet"},
		"type":          {"video"},
		"videoDuration": {"short"},
		"maxResults":    {"10"},
		"q":             {q},
	}
	if err := c.get(ctx, "search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		r := SearchResult{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
		}
		if item.Snippet.Thumbnails.Medium != nil {
			r.Thumbnail = item.Snippet.Thumbnails.Medium.URL
		}
		results = append(results, r)
	}
	return results, nil
}

func batches(ids []string) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += batchSize {
		end := min(start+batchSize, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
