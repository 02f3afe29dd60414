package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAgeInDays(t *testing.T) {
	now := time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		published time.Time
		want      int64
	}{
		{now.Add(-10 * 24 * time.Hour), 10},
		{now.Add(-10*24*time.Hour - 5*time.Hour), 10},
		{now.Add(-2 * time.Hour), 1},
		{time.Time{}, 1},
	}
	for _, tt := range tests {
		if got := AgeInDays(tt.published, now); got != tt.want {
			t.Errorf("AgeInDays(%v) = %d, want %d", tt.published, got, tt.want)
		}
	}
}

func TestDeriveViewsPerDay(t *testing.T) {
	now := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	v := Video{
		PublishedAt: now.Add(-10 * 24 * time.Hour),
		Views:       100000,
		Likes:       4000,
		Comments:    1000,
	}
	m := Derive(v, now)
	if m.AgeInDays != 10 {
		t.Errorf("expected age 10, got %d", m.AgeInDays)
	}
	if m.ViewsPerDay != 10000 {
		t.Errorf("expected 10000 views/day, got %f", m.ViewsPerDay)
	}
	if m.Engagement != 5 {
		t.Errorf("expected engagement 5, got %f", m.Engagement)
	}
	// 10000 views/day is not above the 10k threshold
	if m.ViralVelocity != 50 {
		t.Errorf("expected viral velocity 50, got %f", m.ViralVelocity)
	}
}

func TestEngagementNoViews(t *testing.T) {
	if got := Engagement(0, 10, 10); got != 0 {
		t.Errorf("expected 0 engagement without views, got %f", got)
	}
}

func TestViralVelocityThresholds(t *testing.T) {
	tests := []struct {
		vpd  float64
		want float64
	}{
		{200000, 95},
		{60000, 85},
		{20000, 70},
		{5000, 50},
		{500, 30},
		{100, 10},
		{0, 10},
	}
	for _, tt := range tests {
		if got := ViralVelocity(tt.vpd, nil); got != tt.want {
			t.Errorf("ViralVelocity(%v) = %v, want %v", tt.vpd, got, tt.want)
		}
	}
}

func TestViralVelocityWithSubscribers(t *testing.T) {
	subs := int64(100000)
	// expected 1000/day; 1000 views/day scores 50
	if got := ViralVelocity(1000, &subs); got != 50 {
		t.Errorf("expected 50, got %v", got)
	}
	if got := ViralVelocity(1000000, &subs); got != 100 {
		t.Errorf("expected cap of 100, got %v", got)
	}
	zero := int64(0)
	if got := ViralVelocity(500, &zero); got != 30 {
		t.Errorf("expected threshold fallback for zero subscribers, got %v", got)
	}
}

func TestGrowthRate(t *testing.T) {
	if GrowthRate(100, nil) != nil {
		t.Error("expected nil growth without baseline")
	}
	zero := int64(0)
	if GrowthRate(100, &zero) != nil {
		t.Error("expected nil growth with zero baseline")
	}
	initial := int64(200)
	g := GrowthRate(300, &initial)
	if g == nil || *g != 50 {
		t.Errorf("expected 50%% growth, got %v", g)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	videoCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		videoCalls++
		if r.URL.Query().Get("key") != "test-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var items []string
		for _, id := range strings.Split(r.URL.Query().Get("id"), ",") {
			if id == "missing0000" {
				continue
			}
			items = append(items, fmt.Sprintf(`{
				"id": %q,
				"snippet": {
					"title": "Video %s",
					"channelId": "UC1",
					"channelTitle": "Chan",
					"publishedAt": "2025-03-01T00:00:00Z",
					"thumbnails": {"high": {"url": "https://i.ytimg.com/%s/hq.jpg"}}
				},
				"statistics": {"viewCount": "5000", "likeCount": "100", "commentCount": "25"},
				"contentDetails": {"duration": "PT45S"}
			}`, id, id, id))
		}
		fmt.Fprintf(w, `{"items": [%s]}`, strings.Join(items, ","))
	})
	mux.HandleFunc("/channels", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [{"id": "UC1", "statistics": {"subscriberCount": "20000"}}]}`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("videoDuration") != "short" || q.Get("type") != "video" || q.Get("maxResults") != "10" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"items": [
			{"id": {"videoId": "abcdefghijk"}, "snippet": {"title": %q, "channelTitle": "C", "thumbnails": {"medium": {"url": "https://i.ytimg.com/m.jpg"}}}},
			{"id": {}, "snippet": {"title": "a channel"}}
		]}`, q.Get("q"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &videoCalls
}

func TestVideos(t *testing.T) {
	srv, _ := newTestServer(t)
	c := NewClient("test-key", srv.URL, time.Second)

	vs, err := c.Videos(context.Background(), []string{"dQw4w9WgXcQ", "missing0000"})
	if err != nil {
		t.Fatalf("Videos failed: %v", err)
	}
	if len(vs) != 1 {
		t.Fatalf("expected 1 video, got %d", len(vs))
	}
	v := vs["dQw4w9WgXcQ"]
	if v.Views != 5000 || v.Likes != 100 || v.Comments != 25 {
		t.Errorf("unexpected stats: %+v", v)
	}
	if v.Thumbnail != "https://i.ytimg.com/dQw4w9WgXcQ/hq.jpg" {
		t.Errorf("expected high thumbnail, got %q", v.Thumbnail)
	}
	if v.ChannelSubscribers == nil || *v.ChannelSubscribers != 20000 {
		t.Errorf("expected 20000 subscribers, got %v", v.ChannelSubscribers)
	}
	if v.PublishedAt.IsZero() {
		t.Error("expected published time to be parsed")
	}
}

func TestVideosBatchesOf50(t *testing.T) {
	srv, calls := newTestServer(t)
	c := NewClient("test-key", srv.URL, time.Second)

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("vid%08d", i)
	}
	vs, err := c.Videos(context.Background(), ids)
	if err != nil {
		t.Fatalf("Videos failed: %v", err)
	}
	if len(vs) != 120 {
		t.Errorf("expected 120 videos, got %d", len(vs))
	}
	if *calls != 3 {
		t.Errorf("expected 3 batched calls, got %d", *calls)
	}
}

func TestVideosNotConfigured(t *testing.T) {
	c := NewClient("", "", 0)
	if c.IsConfigured() {
		t.Error("expected client without key to be unconfigured")
	}
	if _, err := c.Videos(context.Background(), []string{"x"}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestSearch(t *testing.T) {
	srv, _ := newTestServer(t)
	c := NewClient("test-key", srv.URL, time.Second)

	results, err := c.Search(context.Background(), "cooking hacks")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "cooking hacks #shorts" {
		t.Errorf("expected #shorts appended to query, got %q", results[0].Title)
	}
	if results[0].Thumbnail != "https://i.ytimg.com/m.jpg" {
		t.Errorf("unexpected thumbnail %q", results[0].Thumbnail)
	}

	results, err = c.Search(context.Background(), "Best Shorts ever")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if results[0].Title != "Best Shorts ever" {
		t.Errorf("expected query unchanged, got %q", results[0].Title)
	}
}

func TestSearchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, 50*time.Millisecond)
	if _, err := c.Search(context.Background(), "slow"); err == nil {
		t.Error("expected timeout error")
	}
}
