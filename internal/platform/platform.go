// Package platform maps content URLs to the platforms and content types
// Folio understands.
package platform

import (
	"net/url"
	"regexp"
	"strings"
)

// Platform identifies where a piece of content lives.
type Platform string

const (
	TikTok        Platform = "TIKTOK"
	YouTubeShort  Platform = "YOUTUBE_SHORT"
	InstagramReel Platform = "INSTAGRAM_REEL"
	YouTubeLong   Platform = "YOUTUBE_LONG"
	Twitter       Platform = "TWITTER"
	LinkedIn      Platform = "LINKEDIN"
	Twitch        Platform = "TWITCH"
	SoundCloud    Platform = "SOUNDCLOUD"
	Bandcamp      Platform = "BANDCAMP"
	Mixcloud      Platform = "MIXCLOUD"
)

// All lists every supported platform.
var All = []Platform{
	TikTok, YouTubeShort, InstagramReel, YouTubeLong, Twitter,
	LinkedIn, Twitch, SoundCloud, Bandcamp, Mixcloud,
}

// ContentType classifies the saved content.
type ContentType string

const (
	Video      ContentType = "VIDEO"
	LiveStream ContentType = "LIVE_STREAM"
	Clip       ContentType = "CLIP"
	Track      ContentType = "TRACK"
	Mix        ContentType = "MIX"
	Release    ContentType = "RELEASE"
	Post       ContentType = "POST"
)

// ContentTypes lists every content type.
var ContentTypes = []ContentType{Video, LiveStream, Clip, Track, Mix, Release, Post}

// Valid reports whether s names a supported platform.
func Valid(s string) bool {
	for _, p := range All {
		if string(p) == s {
			return true
		}
	}
	return false
}

// ValidContentType reports whether s names a content type.
func ValidContentType(s string) bool {
	for _, c := range ContentTypes {
		if string(c) == s {
			return true
		}
	}
	return false
}

// IsYouTube reports whether p is one of the YouTube platforms.
func (p Platform) IsYouTube() bool {
	return p == YouTubeShort || p == YouTubeLong
}

type rule struct {
	any      []string
	platform Platform
	content  ContentType
}

// Order matters: shorts before generic YouTube, reels before nothing else.
var rules = []rule{
	{[]string{"youtube.com/shorts", "youtu.be/shorts"}, YouTubeShort, Video},
	{[]string{"youtube.com", "youtu.be"}, YouTubeLong, Video},
	{[]string{"tiktok.com"}, TikTok, Video},
	{[]string{"instagram.com/reel"}, InstagramReel, Video},
	{[]string{"twitter.com", "x.com"}, Twitter, Post},
	{[]string{"linkedin.com"}, LinkedIn, Post},
	{[]string{"twitch.tv"}, Twitch, LiveStream},
	{[]string{"soundcloud.com"}, SoundCloud, Track},
	{[]string{"bandcamp.com"}, Bandcamp, Release},
	{[]string{"mixcloud.com"}, Mixcloud, Mix},
}

// Detect returns the platform and content type of rawURL by lowercase
// substring match. ok is false for unsupported URLs.
func Detect(rawURL string) (p Platform, ct ContentType, ok bool) {
	lower := strings.ToLower(rawURL)
	for _, r := range rules {
		for _, needle := range r.any {
			if !strings.Contains(lower, needle) {
				continue
			}
			if r.platform == Twitch {
				switch {
				case strings.Contains(lower, "/clip/"):
					return Twitch, Clip, true
				case strings.Contains(lower, "/videos/"):
					return Twitch, Video, true
				}
			}
			return r.platform, r.content, true
		}
	}
	return "", "", false
}

var (
	youtubeIDPattern = regexp.MustCompile(`(?:watch\?(?:.*&)?v=|youtu\.be/|shorts/|embed/|/v/)([A-Za-z0-9_-]{11})`)
	shortsPattern    = regexp.MustCompile(`/shorts/([A-Za-z0-9_-]+)`)
	tiktokPattern    = regexp.MustCompile(`/video/(\d+)`)
)

// YouTubeID extracts the 11-character video id from a YouTube URL.
func YouTubeID(rawURL string) string {
	if m := youtubeIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// TikTokID extracts the numeric video id from a TikTok URL.
func TikTokID(rawURL string) string {
	if m := tiktokPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// YouTubeThumbnail returns the max-resolution thumbnail URL for a video id.
func YouTubeThumbnail(videoID string) string {
	return "https://img.youtube.com/vi/" + videoID + "/maxresdefault.jpg"
}

// ShortsURL returns the canonical shorts URL for a video id.
func ShortsURL(videoID string) string {
	return "https://youtube.com/shorts/" + videoID
}

// Thumbnail derives a thumbnail from the URL alone. Only YouTube URLs carry
// enough information; every other platform returns "".
func Thumbnail(rawURL string, p Platform) string {
	if !p.IsYouTube() {
		return ""
	}
	if m := shortsPattern.FindStringSubmatch(rawURL); m != nil {
		return YouTubeThumbnail(m[1])
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if id := u.Query().Get("v"); id != "" {
		return YouTubeThumbnail(id)
	}
	return ""
}
