package collection

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TobiSchelling/Folio/internal/analyze"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/taste"
	"github.com/TobiSchelling/Folio/internal/youtube"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *database.DB) *database.User {
	t.Helper()
	u, err := db.CreateUser("ana")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

// youtubeAPI serves a fixed video with the given view count.
func youtubeAPI(t *testing.T, views *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos":
			fmt.Fprintf(w, `{"items": [{"id": "dQw4w9WgXcQ",
				"snippet": {"title": "t", "channelId": "UC1", "publishedAt": "2025-03-01T00:00:00Z", "thumbnails": {}},
				"statistics": {"viewCount": "%d", "likeCount": "50", "commentCount": "50"}}]}`, views.Load())
		case "/channels":
			fmt.Fprint(w, `{"items": []}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fixedNow() time.Time { return time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC) }

func TestSaveValidation(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)
	s := NewService(db, nil, nil, nil, false)

	tests := []struct {
		req  SaveRequest
		want error
	}{
		{SaveRequest{Title: "t", Platform: "TIKTOK"}, ErrMissingURL},
		{SaveRequest{URL: "https://tiktok.com/x", Platform: "TIKTOK"}, ErrMissingTitle},
		{SaveRequest{URL: "https://tiktok.com/x", Title: "t", Platform: "MYSPACE"}, ErrInvalidPlatform},
		{SaveRequest{URL: "https://tiktok.com/x", Title: "t", Platform: "TIKTOK", ContentType: "GIF"}, ErrInvalidContentType},
	}
	for _, tt := range tests {
		if _, err := s.Save(context.Background(), u.ID, tt.req); !errors.Is(err, tt.want) {
			t.Errorf("Save(%+v) = %v, want %v", tt.req, err, tt.want)
		}
	}

	n, _ := db.CountItems(u.ID)
	if n != 0 {
		t.Errorf("expected nothing saved, got %d items", n)
	}
}

func TestSaveYouTubeWithoutAPI(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)
	s := NewService(db, youtube.NewClient("", "", 0), nil, nil, false)

	it, err := s.Save(context.Background(), u.ID, SaveRequest{
		URL:      "https://youtube.com/shorts/dQw4w9WgXcQ",
		Title:    "A short",
		Platform: "YOUTUBE_SHORT",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if it.VideoID == nil || *it.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("expected video id, got %v", it.VideoID)
	}
	if it.Thumbnail == nil || *it.Thumbnail != "https://img.youtube.com/vi/dQw4w9WgXcQ/maxresdefault.jpg" {
		t.Errorf("expected derived thumbnail, got %v", it.Thumbnail)
	}
	if it.ContentType != "VIDEO" {
		t.Errorf("expected content type VIDEO, got %q", it.ContentType)
	}
	if it.Views != nil {
		t.Error("expected unknown views without API")
	}
}

func TestSaveYouTubeFetchesStats(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)
	var views atomic.Int64
	views.Store(100000)
	api := youtubeAPI(t, &views)
	s := NewService(db, youtube.NewClient("k", api.URL, time.Second), nil, nil, false)
	s.now = fixedNow

	it, err := s.Save(context.Background(), u.ID, SaveRequest{
		URL:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Title:    "A video",
		Platform: "YOUTUBE_LONG",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stored, err := db.GetItem(u.ID, it.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetItem: %v", err)
	}
	if stored.Views == nil || *stored.Views != 100000 {
		t.Errorf("expected 100000 views, got %v", stored.Views)
	}
	if stored.ViewsPerDay == nil || *stored.ViewsPerDay != 10000 {
		t.Errorf("expected 10000 views/day, got %v", stored.ViewsPerDay)
	}
	if stored.AgeInDays == nil || *stored.AgeInDays != 10 {
		t.Errorf("expected age 10, got %v", stored.AgeInDays)
	}
}

func TestSaveYouTubeAPIFailureKeepsItem(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()
	s := NewService(db, youtube.NewClient("k", api.URL, time.Second), nil, nil, false)

	it, err := s.Save(context.Background(), u.ID, SaveRequest{
		URL: "https://youtu.be/dQw4w9WgXcQ", Title: "x", Platform: "YOUTUBE_LONG",
	})
	if err != nil {
		t.Fatalf("expected save despite API failure, got %v", err)
	}
	if it.Views != nil {
		t.Error("expected null metrics after API failure")
	}
}

func TestSaveAnalyzesInBackground(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)
	s := NewService(db, nil, nil, analyze.New(nil, 0), true)

	it, err := s.Save(context.Background(), u.ID, SaveRequest{
		URL: "https://www.tiktok.com/@chef/video/123", Title: "Pasta tutorial", Platform: "TIKTOK",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.Wait()

	if it.VideoID == nil || *it.VideoID != "123" {
		t.Errorf("expected TikTok video id, got %v", it.VideoID)
	}
	a, err := db.GetAnalysis(it.ID)
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if a == nil {
		t.Fatal("expected analysis after background run")
	}
	if a.Source != taste.SourcePattern || a.Performance.Format != "tutorial" {
		t.Errorf("unexpected analysis: %+v", a.DNA)
	}
}

func TestAnalyzeOwnership(t *testing.T) {
	db := openTestDB(t)
	ana := createUser(t, db)
	bo, _ := db.CreateUser("bo")
	s := NewService(db, nil, nil, analyze.New(nil, 0), false)

	it, err := s.Save(context.Background(), ana.ID, SaveRequest{
		URL: "https://soundcloud.com/a/b", Title: "Chill lofi mix", Platform: "SOUNDCLOUD",
	})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, _, err := s.Analyze(context.Background(), bo.ID, it.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user's item, got %v", err)
	}
	_, a, err := s.Analyze(context.Background(), ana.ID, it.ID)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if a.ItemID != it.ID {
		t.Errorf("expected analysis of %s, got %s", it.ID, a.ItemID)
	}
}

func TestRescan(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)
	stale := "https://old.example/thumb.jpg"
	for _, it := range []*database.Item{
		{UserID: u.ID, Title: "a", URL: "https://youtube.com/shorts/abcdefghijk", Platform: "YOUTUBE_SHORT", Thumbnail: &stale},
		{UserID: u.ID, Title: "b", URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Platform: "YOUTUBE_LONG"},
		{UserID: u.ID, Title: "c", URL: "https://www.tiktok.com/@x/video/1", Platform: "TIKTOK"},
	} {
		if err := db.InsertItem(it); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}

	s := NewService(db, nil, nil, nil, false)
	r, err := s.Rescan(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	if r.Total != 3 || r.Updated != 2 {
		t.Errorf("expected 3 total / 2 updated, got %+v", r)
	}

	r, _ = s.Rescan(context.Background(), u.ID)
	if r.Updated != 0 {
		t.Errorf("expected second rescan to change nothing, got %d", r.Updated)
	}
}

func TestRefreshMetrics(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)
	var views atomic.Int64
	views.Store(1000)
	api := youtubeAPI(t, &views)
	s := NewService(db, youtube.NewClient("k", api.URL, time.Second), nil, nil, false)
	s.now = fixedNow

	short := &database.Item{UserID: u.ID, Title: "a", URL: "https://youtube.com/shorts/dQw4w9WgXcQ", Platform: "YOUTUBE_SHORT"}
	dup := &database.Item{UserID: u.ID, Title: "b", URL: "https://youtu.be/dQw4w9WgXcQ", Platform: "YOUTUBE_LONG"}
	other := &database.Item{UserID: u.ID, Title: "c", URL: "https://www.tiktok.com/@x/video/1", Platform: "TIKTOK"}
	for _, it := range []*database.Item{short, dup, other} {
		if err := db.InsertItem(it); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}

	r, err := s.RefreshMetrics(context.Background(), u.ID, "")
	if err != nil {
		t.Fatalf("RefreshMetrics failed: %v", err)
	}
	if r.Total != 3 || r.Updated != 2 || r.Errors != 0 || r.YouTubeVideos != 1 {
		t.Errorf("unexpected first refresh result: %+v", r)
	}

	first, _ := db.GetItem(u.ID, short.ID)
	if first.InitialViews == nil || *first.InitialViews != 1000 {
		t.Errorf("expected initial views 1000, got %v", first.InitialViews)
	}
	if first.GrowthRate != nil {
		t.Errorf("expected no growth on first check, got %v", *first.GrowthRate)
	}
	if first.CheckCount != 1 || first.LastCheckedAt == nil {
		t.Errorf("expected check bookkeeping, got count=%d last=%v", first.CheckCount, first.LastCheckedAt)
	}
	if first.VideoID == nil || *first.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("expected video id stored, got %v", first.VideoID)
	}

	views.Store(1500)
	if _, err := s.RefreshMetrics(context.Background(), u.ID, ""); err != nil {
		t.Fatalf("RefreshMetrics failed: %v", err)
	}
	second, _ := db.GetItem(u.ID, short.ID)
	if second.GrowthRate == nil || *second.GrowthRate != 50 {
		t.Errorf("expected 50%% growth, got %v", second.GrowthRate)
	}
	if *second.InitialViews != 1000 {
		t.Errorf("expected initial views to stay 1000, got %d", *second.InitialViews)
	}
	if second.CheckCount != 2 {
		t.Errorf("expected check count 2, got %d", second.CheckCount)
	}
}

func TestRefreshMetricsCountsItemFailures(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)

	short := &database.Item{UserID: u.ID, Title: "a", URL: "https://youtube.com/shorts/dQw4w9WgXcQ", Platform: "YOUTUBE_SHORT"}
	dup := &database.Item{UserID: u.ID, Title: "b", URL: "https://youtu.be/dQw4w9WgXcQ", Platform: "YOUTUBE_LONG"}
	for _, it := range []*database.Item{short, dup} {
		if err := db.InsertItem(it); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}

	// The second item disappears between loading the batch and saving its metrics.
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos":
			if _, err := db.DeleteItem(u.ID, dup.ID); err != nil {
				t.Errorf("DeleteItem: %v", err)
			}
			fmt.Fprint(w, `{"items": [{"id": "dQw4w9WgXcQ",
				"snippet": {"title": "t", "channelId": "UC1", "publishedAt": "2025-03-01T00:00:00Z", "thumbnails": {}},
				"statistics": {"viewCount": "1000", "likeCount": "50", "commentCount": "50"}}]}`)
		case "/channels":
			fmt.Fprint(w, `{"items": []}`)
		}
	}))
	t.Cleanup(api.Close)

	s := NewService(db, youtube.NewClient("k", api.URL, time.Second), nil, nil, false)
	s.now = fixedNow

	r, err := s.RefreshMetrics(context.Background(), u.ID, "")
	if err != nil {
		t.Fatalf("expected per-item failures not to fail the refresh, got %v", err)
	}
	if r.Total != 2 || r.Updated != 1 || r.Errors != 1 {
		t.Errorf("expected 1 updated / 1 error, got %+v", r)
	}

	kept, _ := db.GetItem(u.ID, short.ID)
	if kept == nil || kept.CheckCount != 1 {
		t.Errorf("expected the remaining item to be refreshed, got %+v", kept)
	}
}

func TestRefreshMetricsWithoutKey(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)
	if err := db.InsertItem(&database.Item{UserID: u.ID, Title: "a", URL: "https://youtube.com/shorts/dQw4w9WgXcQ", Platform: "YOUTUBE_SHORT"}); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	s := NewService(db, youtube.NewClient("", "", 0), nil, nil, false)
	r, err := s.RefreshMetrics(context.Background(), u.ID, "")
	if err != nil {
		t.Fatalf("RefreshMetrics failed: %v", err)
	}
	if r.Total != 1 || r.Updated != 0 || r.Message != "YouTube API key not configured" {
		t.Errorf("unexpected result: %+v", r)
	}
}

func TestRefreshMetricsNoVideos(t *testing.T) {
	db := openTestDB(t)
	u := createUser(t, db)
	s := NewService(db, nil, nil, nil, false)
	r, err := s.RefreshMetrics(context.Background(), u.ID, "")
	if err != nil {
		t.Fatalf("RefreshMetrics failed: %v", err)
	}
	if r.Message != "No YouTube videos to update" {
		t.Errorf("unexpected message %q", r.Message)
	}
}
