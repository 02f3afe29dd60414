// Package extract pulls a normalized description of a piece of content out
// of the HTML of its page, using per-platform selectors with Open Graph
// fallbacks.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/Folio/internal/platform"
)

// Content is what an extractor found on a page. Nil fields were not present.
type Content struct {
	Title      string   `json:"title"`
	Thumbnail  *string  `json:"thumbnail"`
	Views      *int64   `json:"views"`
	Engagement *float64 `json:"engagement"`
	Platform   string   `json:"platform"`
	VideoID    *string  `json:"videoId,omitempty"`
	URL        string   `json:"url"`
	IsLive     bool     `json:"isLive,omitempty"`
}

// Title length limits per platform.
const (
	maxTitle          = 500
	maxInstagramTitle = 300
	maxTwitterTitle   = 280
)

// FromHTML extracts content from the HTML of pageURL.
func FromHTML(pageURL, html string) (*Content, error) {
	p, _, ok := platform.Detect(pageURL)
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", pageURL)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var c *Content
	switch p {
	case platform.YouTubeShort, platform.YouTubeLong:
		c = youtube(doc, pageURL, p)
	case platform.TikTok:
		c = tiktok(doc, pageURL)
	case platform.InstagramReel:
		c = instagram(doc, pageURL)
	case platform.Twitter:
		c = twitter(doc, pageURL)
	case platform.Twitch:
		c = twitch(doc, pageURL)
	case platform.SoundCloud:
		c = soundcloud(doc, pageURL)
	case platform.Bandcamp:
		c = bandcamp(doc, pageURL)
	case platform.Mixcloud:
		c = mixcloud(doc, pageURL)
	default:
		c = generic(doc, pageURL, p)
	}
	return c, nil
}

// firstText returns the trimmed text of the first selector that matches
// with non-empty text.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func meta(doc *goquery.Document, property string) string {
	v, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(v)
}

func pageTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ogImage(doc *goquery.Document) *string {
	return strPtr(meta(doc, "og:image"))
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var defaultTitles = map[platform.Platform]string{
	platform.TikTok:     "TikTok Video",
	platform.Twitch:     "Twitch Stream",
	platform.SoundCloud: "SoundCloud Track",
	platform.Bandcamp:   "Bandcamp Release",
	platform.Mixcloud:   "Mixcloud Show",
}

// DefaultTitle is the placeholder title used when a page of platform p
// exposes no title. It is "" for platforms without a placeholder.
func DefaultTitle(p platform.Platform) string {
	return defaultTitles[p]
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

var usernamePrefix = regexp.MustCompile(`^@[\w.]+:\s*`)

// StripUsernamePrefix removes a leading "@username:" from a title.
func StripUsernamePrefix(title string) string {
	return usernamePrefix.ReplaceAllString(title, "")
}

func youtube(doc *goquery.Document, pageURL string, p platform.Platform) *Content {
	title := firstText(doc, "h1.ytd-video-primary-info-renderer", "h1.ytd-watch-metadata", "#title h1")
	if title == "" {
		title = meta(doc, "og:title")
	}
	if title == "" {
		title = strings.TrimSpace(strings.TrimSuffix(pageTitle(doc), " - YouTube"))
	}

	c := &Content{Title: truncate(title, maxTitle), Platform: string(p), URL: pageURL}
	if id := platform.YouTubeID(pageURL); id != "" {
		c.VideoID = &id
		c.Thumbnail = strPtr(platform.YouTubeThumbnail(id))
	} else {
		c.Thumbnail = ogImage(doc)
	}
	if v, ok := ParseViews(doc.Find(".ytd-video-view-count-renderer").First().Text()); ok {
		c.Views = &v
	}
	return c
}

func tiktok(doc *goquery.Document, pageURL string) *Content {
	title := ""
	for _, sel := range []string{`[data-e2e="video-desc"]`, `[data-e2e="browse-video-desc"]`} {
		if t := strings.TrimSpace(doc.Find(sel).First().Text()); len(t) > 3 {
			title = t
			break
		}
	}
	if title == "" {
		title = meta(doc, "og:title")
	}
	if title == "" {
		title = pageTitle(doc)
		title = strings.Replace(title, " | TikTok", "", 1)
		title = strings.Replace(title, "TikTok - ", "", 1)
		title = strings.TrimSpace(strings.Split(title, " | ")[0])
	}
	title = StripUsernamePrefix(title)

	username := strings.TrimPrefix(strings.TrimSpace(doc.Find(`a[href^="/@"]`).First().Text()), "@")
	if username != "" && title != "" && !strings.Contains(title, username) {
		title = "@" + username + ": " + title
	}

	c := &Content{
		Title:    orDefault(truncate(title, maxTitle), DefaultTitle(platform.TikTok)),
		Platform: string(platform.TikTok),
		URL:      pageURL,
	}
	if id := platform.TikTokID(pageURL); id != "" {
		c.VideoID = &id
	} else if href, ok := doc.Find(`a[href*="/video/"]`).First().Attr("href"); ok {
		if id := platform.TikTokID(href); id != "" {
			c.VideoID = &id
			c.URL = absolute(pageURL, href)
		}
	}

	if poster, ok := doc.Find("video[poster]").First().Attr("poster"); ok && poster != "" {
		c.Thumbnail = &poster
	} else if src, ok := doc.Find(`img[src*="tiktokcdn"], img[src*="muscdn"]`).First().Attr("src"); ok && src != "" {
		c.Thumbnail = &src
	} else {
		c.Thumbnail = ogImage(doc)
	}

	views, vok := ParseViews(doc.Find(`[data-e2e="video-views"]`).First().Text())
	likes, lok := ParseViews(doc.Find(`[data-e2e="like-count"]`).First().Text())
	if vok {
		c.Views = &views
		if lok && views > 0 {
			e := float64(likes) / float64(views) * 100
			c.Engagement = &e
		}
	}
	return c
}

func instagram(doc *goquery.Document, pageURL string) *Content {
	title := meta(doc, "og:title")
	if title == "" {
		title = strings.TrimSpace(strings.Replace(pageTitle(doc), " | Instagram", "", 1))
	}
	return &Content{
		Title:     truncate(StripUsernamePrefix(title), maxInstagramTitle),
		Thumbnail: ogImage(doc),
		Platform:  string(platform.InstagramReel),
		URL:       pageURL,
	}
}

func twitter(doc *goquery.Document, pageURL string) *Content {
	title := firstText(doc, `[data-testid="tweetText"]`)
	if title == "" {
		title = strings.TrimSpace(strings.Replace(pageTitle(doc), " / X", "", 1))
	}
	c := &Content{
		Title:    truncate(title, maxTwitterTitle),
		Platform: string(platform.Twitter),
		URL:      pageURL,
	}
	if src, ok := doc.Find(`[data-testid="tweetPhoto"] img`).First().Attr("src"); ok && src != "" {
		c.Thumbnail = &src
	} else {
		c.Thumbnail = ogImage(doc)
	}
	return c
}

var twitchChannel = regexp.MustCompile(`twitch\.tv/([^/?]+)`)

func twitch(doc *goquery.Document, pageURL string) *Content {
	title := firstText(doc,
		`[data-a-target="stream-title"]`,
		`[data-a-target="clip-title"]`,
		`[data-test-selector="clip-title"]`,
		`[data-a-target="video-title"]`,
		`h2.tw-title`,
		`[class*="stream-info"] h1`,
		`[class*="stream-info"] h2`,
	)
	if title == "" {
		title = meta(doc, "og:title")
	}
	if title == "" {
		title = strings.TrimSpace(strings.Replace(pageTitle(doc), " - Twitch", "", 1))
	}

	channel := firstText(doc,
		`[data-a-target="player-info-title"]`,
		`h1[data-a-target="channel-header-name"]`,
		`.channel-info-content h1`,
		`[data-a-target="user-display-name"]`,
		`[data-a-target="clip-channel-name"]`,
	)
	if channel == "" {
		if m := twitchChannel.FindStringSubmatch(pageURL); m != nil {
			switch m[1] {
			case "videos", "clip", "directory", "search", "settings":
			default:
				channel = m[1]
			}
		}
	}
	game := firstText(doc, `[data-a-target="stream-game-link"]`, `[class*="stream-info"] a[href*="/directory/game/"]`)

	if channel != "" && title != "" && !strings.Contains(strings.ToLower(title), strings.ToLower(channel)) {
		title = channel + ": " + title
	}
	if game != "" && !strings.Contains(title, game) {
		title = title + " [" + game + "]"
	}

	c := &Content{
		Title:     orDefault(truncate(title, maxTitle), DefaultTitle(platform.Twitch)),
		Thumbnail: ogImage(doc),
		Platform:  string(platform.Twitch),
		URL:       pageURL,
	}
	for _, sel := range []string{`[data-a-target="animated-channel-viewers-count"]`, `[class*="ScAnimatedNumber"]`} {
		if v, ok := ParseViews(doc.Find(sel).First().Text()); ok && v > 0 {
			c.Views = &v
			break
		}
	}
	c.IsLive = doc.Find(`[data-a-target="animated-channel-viewers-count"], [class*="live-indicator"]`).Length() > 0
	return c
}

var cssURL = regexp.MustCompile(`url\(["']?([^"')]+)["']?\)`)

func soundcloud(doc *goquery.Document, pageURL string) *Content {
	title := firstText(doc, ".soundTitle__title span", `[class*="soundTitle"] span`, ".playbackSoundBadge__titleLink")
	artist := firstText(doc, ".soundTitle__username", ".playbackSoundBadge__lightLink")
	if artist != "" && title != "" && !strings.Contains(title, artist) {
		title = artist + " - " + title
	}
	if title == "" {
		title = meta(doc, "og:title")
	}
	if title == "" {
		title = strings.TrimSpace(strings.Replace(pageTitle(doc), " | Listen online for free on SoundCloud", "", 1))
	}

	c := &Content{
		Title:    orDefault(truncate(title, maxTitle), DefaultTitle(platform.SoundCloud)),
		Platform: string(platform.SoundCloud),
		URL:      pageURL,
	}
	style, _ := doc.Find(".image__full, .sc-artwork span").First().Attr("style")
	if m := cssURL.FindStringSubmatch(style); m != nil {
		c.Thumbnail = &m[1]
	} else {
		c.Thumbnail = ogImage(doc)
	}
	if v, ok := ParseViews(doc.Find(`.sc-ministats-plays, [class*="playCount"]`).First().Text()); ok {
		c.Views = &v
	}
	return c
}

func bandcamp(doc *goquery.Document, pageURL string) *Content {
	title := firstText(doc, "#name-section h2.trackTitle", ".trackTitle")
	artist := firstText(doc, "#name-section h3 span a", `[itemprop="byArtist"] a`, ".tralbumData a")
	if artist != "" && title != "" && !strings.Contains(title, artist) {
		title = artist + " - " + title
	}
	if title == "" {
		title = meta(doc, "og:title")
	}
	if title == "" {
		title = strings.TrimSpace(strings.Replace(pageTitle(doc), " | ", " - ", 1))
	}

	c := &Content{
		Title:    orDefault(truncate(title, maxTitle), DefaultTitle(platform.Bandcamp)),
		Platform: string(platform.Bandcamp),
		URL:      pageURL,
	}
	if src, ok := doc.Find("#tralbumArt img").First().Attr("src"); ok && src != "" {
		c.Thumbnail = &src
	} else if href, ok := doc.Find(".popupImage").First().Attr("href"); ok && href != "" {
		c.Thumbnail = &href
	} else {
		c.Thumbnail = ogImage(doc)
	}
	return c
}

func mixcloud(doc *goquery.Document, pageURL string) *Content {
	title := firstText(doc, `[class*="PlayerSliderComponent"] span`, ".cloudcast-title", `h1[class*="title"]`)
	dj := firstText(doc, `[class*="PlayerSliderComponent"] a`, ".cloudcast-owner-link")
	if dj != "" && title != "" && !strings.Contains(title, dj) {
		title = dj + " - " + title
	}
	if title == "" {
		title = meta(doc, "og:title")
	}
	if title == "" {
		title = strings.TrimSpace(strings.Replace(pageTitle(doc), " | Mixcloud", "", 1))
	}

	c := &Content{
		Title:    orDefault(truncate(title, maxTitle), DefaultTitle(platform.Mixcloud)),
		Platform: string(platform.Mixcloud),
		URL:      pageURL,
	}
	if src, ok := doc.Find(`[class*="PlayerSliderComponent"] img, .cloudcast-artwork img`).First().Attr("src"); ok && src != "" {
		c.Thumbnail = &src
	} else {
		c.Thumbnail = ogImage(doc)
	}
	if v, ok := ParseViews(doc.Find(`[class*="play-count"], .stat-plays`).First().Text()); ok {
		c.Views = &v
	}
	return c
}

// generic covers platforms with no dedicated selectors (LinkedIn).
func generic(doc *goquery.Document, pageURL string, p platform.Platform) *Content {
	title := meta(doc, "og:title")
	if title == "" {
		title = pageTitle(doc)
	}
	return &Content{
		Title:     truncate(title, maxTitle),
		Thumbnail: ogImage(doc),
		Platform:  string(p),
		URL:       pageURL,
	}
}

func absolute(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// TweetText pulls the tweet body out of the blockquote HTML returned by the
// Twitter oEmbed endpoint.
func TweetText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("p").First().Text())
}
