package server

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/TobiSchelling/Folio/internal/analyze"
	"github.com/TobiSchelling/Folio/internal/collection"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/generate"
	"github.com/TobiSchelling/Folio/internal/metadata"
	"github.com/TobiSchelling/Folio/internal/profile"
	"github.com/TobiSchelling/Folio/internal/taste"
	"github.com/TobiSchelling/Folio/internal/training"
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

type testEnv struct {
	db      *database.DB
	handler http.Handler
	user    *database.User
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	analyzer := analyze.New(nil, 0)
	coll := collection.NewService(db, nil, metadata.NewFetcher(nil, nil), analyzer, false)
	srv, err := New(Deps{
		DB:             db,
		Collection:     coll,
		Fetcher:        metadata.NewFetcher(nil, nil),
		Profile:        profile.NewService(db, analyzer, taste.EvictRanked),
		Discoverer:     training.NewDiscoverer(db, nil, nil, nil, training.Options{MinPending: 1}),
		Generator:      generate.NewGenerator(db, nil),
		Translator:     generate.NewTranslator(nil),
		AllowedOrigins: []string{"http://localhost:3000", "chrome-extension://folioextid"},
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	u, err := db.CreateUser("ana")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return &testEnv{db: db, handler: srv.Handler(), user: u}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, e.user.APIToken, method, path, body)
}

func (e *testEnv) doAs(t *testing.T, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return out
}

const tiktokItem = `{"url":"https://www.tiktok.com/@baker/video/7300000000000000001","title":"Easy sourdough tutorial","platform":"TIKTOK"}`

func TestHealthRoute(t *testing.T) {
	e := newEnv(t)
	rec := e.doAs(t, "", "GET", "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestUnauthorized(t *testing.T) {
	e := newEnv(t)
	for _, token := range []string{"", "not-a-token"} {
		rec := e.doAs(t, token, "GET", "/api/collections", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("token %q: expected 401, got %d", token, rec.Code)
		}
		if got := decodeBody(t, rec)["error"]; got != "Unauthorized" {
			t.Errorf("expected Unauthorized error, got %v", got)
		}
	}
}

func TestCollectionLifecycle(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/api/collections", tiktokItem)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	id, _ := decodeBody(t, rec)["id"].(string)
	if id == "" {
		t.Fatal("expected item id")
	}

	rec = e.do(t, "GET", "/api/collections?platform=TIKTOK&search=sourdough", "")
	list := decodeBody(t, rec)
	if list["total"] != float64(1) || list["limit"] != float64(50) {
		t.Errorf("unexpected list response: %v", list)
	}

	rec = e.do(t, "PATCH", "/api/collections/"+id, `{"title":"Sourdough basics","tags":["bread"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from PATCH, got %d", rec.Code)
	}
	if got := decodeBody(t, rec)["title"]; got != "Sourdough basics" {
		t.Errorf("expected updated title, got %v", got)
	}

	rec = e.do(t, "GET", "/api/collections/"+id, "")
	item := decodeBody(t, rec)
	if item["title"] != "Sourdough basics" {
		t.Errorf("expected updated item, got %v", item)
	}
	if _, ok := item["analysis"]; !ok {
		t.Error("expected analysis field")
	}

	rec = e.do(t, "DELETE", "/api/collections/"+id, "")
	if rec.Code != http.StatusOK || decodeBody(t, rec)["success"] != true {
		t.Errorf("expected success from DELETE, got %d %s", rec.Code, rec.Body.String())
	}
	rec = e.do(t, "GET", "/api/collections/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestOtherUsersItemsAreNotFound(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "POST", "/api/collections", tiktokItem)
	id, _ := decodeBody(t, rec)["id"].(string)

	other, err := e.db.CreateUser("ben")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	for _, method := range []string{"GET", "DELETE"} {
		rec := e.doAs(t, other.APIToken, method, "/api/collections/"+id, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", method, rec.Code)
		}
	}
	rec = e.doAs(t, other.APIToken, "PATCH", "/api/collections/"+id, `{"title":"mine"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("PATCH: expected 404, got %d", rec.Code)
	}
}

func TestSaveValidation(t *testing.T) {
	e := newEnv(t)
	tests := []string{
		`{"url":"https://www.tiktok.com/@a/video/1","platform":"TIKTOK"}`,
		`{"url":"https://example.com/a","title":"A","platform":"MYSPACE"}`,
		`not json`,
	}
	for _, body := range tests {
		rec := e.do(t, "POST", "/api/collections", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestFetchMetadataUnsupported(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "POST", "/api/collections/fetch-metadata", `{"url":"https://example.com/page"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestRebuild(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/api/taste-profile/rebuild", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty collection, got %d", rec.Code)
	}
	if decodeBody(t, rec)["success"] != false {
		t.Error("expected success:false")
	}

	e.do(t, "POST", "/api/collections", tiktokItem)
	rec = e.do(t, "POST", "/api/taste-profile/rebuild?force=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["itemCount"] != float64(1) || body["analyzed"] != float64(1) {
		t.Errorf("unexpected rebuild result: %v", body)
	}

	rec = e.do(t, "GET", "/api/taste-profile", "")
	got := decodeBody(t, rec)
	if got["profile"] == nil {
		t.Error("expected profile after rebuild")
	}
	summary, _ := got["collectionSummary"].(map[string]any)
	if summary["needsRebuild"] != false {
		t.Errorf("expected up-to-date summary, got %v", summary)
	}

	rec = e.do(t, "GET", "/api/taste-profile/source?mode=collection", "")
	if got := decodeBody(t, rec)["sourceLabel"]; got != "Based on 1 saved items" {
		t.Errorf("unexpected source label %v", got)
	}
}

func TestTrainingFlow(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "POST", "/api/training/refine", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without ratings, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["success"] != false || body["ratingCount"] != float64(0) {
		t.Errorf("unexpected refine response: %v", body)
	}

	rec = e.do(t, "GET", "/api/training/suggestions?mode=discover&count=4", "")
	if got := decodeBody(t, rec)["discovered"]; got != float64(4) {
		t.Fatalf("expected 4 discovered, got %v", got)
	}

	rec = e.do(t, "GET", "/api/training/suggestions?mode=pair", "")
	body := decodeBody(t, rec)
	pair, _ := body["pair"].(map[string]any)
	if pair == nil {
		t.Fatalf("expected a pair, got %v", body)
	}
	a := pair["suggestionA"].(map[string]any)["id"].(string)
	b := pair["suggestionB"].(map[string]any)["id"].(string)

	rec = e.do(t, "POST", "/api/training/rate",
		`{"ratingType":"COMPARATIVE","outcome":"A_PREFERRED","suggestionAId":"`+a+`","suggestionBId":"`+b+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from rate, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, "POST", "/api/training/rate", `{"ratingType":"BINARY","outcome":"A_PREFERRED","suggestionId":"`+a+`"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for mismatched outcome, got %d", rec.Code)
	}
	rec = e.do(t, "POST", "/api/training/rate", `{"ratingType":"BINARY","outcome":"LIKED","suggestionId":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown suggestion, got %d", rec.Code)
	}

	rec = e.do(t, "GET", "/api/training/stats", "")
	stats := decodeBody(t, rec)
	if stats["totalRatings"] != float64(1) || stats["comparativeRatings"] != float64(1) {
		t.Errorf("unexpected stats: %v", stats)
	}

	rec = e.do(t, "GET", "/api/training/suggestions?mode=list", "")
	list, _ := decodeBody(t, rec)["suggestions"].([]any)
	if len(list) != 2 {
		t.Errorf("expected 2 pending suggestions, got %d", len(list))
	}

	rec = e.do(t, "GET", "/api/training/suggestions?mode=bogus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown mode, got %d", rec.Code)
	}
}

func TestGenerateUnavailable(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "POST", "/api/generate", `{"topic":"bread","platform":"TIKTOK"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	rec = e.do(t, "POST", "/api/translate", `{"text":"hola"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without target language, got %d", rec.Code)
	}
}

func TestExtract(t *testing.T) {
	e := newEnv(t)
	html := `<html><head><meta property=\"og:title\" content=\"Late night set\"></head><body></body></html>`
	rec := e.doAs(t, "", "POST", "/api/extract", `{"url":"https://www.mixcloud.com/dj/late-night-set/","html":"`+html+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["platform"]; got != "MIXCLOUD" {
		t.Errorf("expected MIXCLOUD, got %v", got)
	}
}

func TestExtensionMessages(t *testing.T) {
	e := newEnv(t)

	rec := e.doAs(t, "", "POST", "/api/extension/messages", `{"type":"GET_AUTH_TOKEN"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without client id, got %d", rec.Code)
	}

	rec = e.doAs(t, "", "POST", "/api/extension/messages?client=c1", `{"type":"SET_AUTH_TOKEN","token":"nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown token, got %d", rec.Code)
	}

	rec = e.doAs(t, "", "POST", "/api/extension/messages?client=c1",
		`{"type":"SET_AUTH_TOKEN","token":"`+e.user.APIToken+`"}`)
	if rec.Code != http.StatusOK || decodeBody(t, rec)["success"] != true {
		t.Fatalf("expected success, got %d %s", rec.Code, rec.Body.String())
	}
	rec = e.doAs(t, "", "POST", "/api/extension/messages?client=c1", `{"type":"GET_AUTH_TOKEN"}`)
	if got := decodeBody(t, rec)["token"]; got != e.user.APIToken {
		t.Errorf("expected stored token, got %v", got)
	}
}

func TestProfilePage(t *testing.T) {
	e := newEnv(t)

	rec := e.doAs(t, "", "GET", "/profile?token="+e.user.APIToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No taste profile yet") {
		t.Error("expected empty profile message")
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].Name != tokenCookie {
		t.Errorf("expected token cookie, got %v", c)
	}

	e.do(t, "POST", "/api/collections", tiktokItem)
	e.do(t, "POST", "/api/taste-profile/rebuild", "")

	req := httptest.NewRequest("GET", "/profile", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookie, Value: e.user.APIToken})
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	body := rec.Body.String()
	if !strings.Contains(body, "<h1>Taste Profile</h1>") {
		t.Errorf("expected rendered markdown, got %s", body)
	}
	if strings.Contains(body, "<script") {
		t.Error("rendered page must not contain scripts")
	}
}

func TestCORS(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest("OPTIONS", "/api/collections", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin, got %q", got)
	}

	req = httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no CORS header for unknown origin, got %q", got)
	}

	tests := []struct {
		origin string
		want   string
	}{
		{"chrome-extension://folioextid", "chrome-extension://folioextid"},
		{"chrome-extension://someotherext", ""},
		{"moz-extension://folioextid", ""},
	}
	for _, tt := range tests {
		req = httptest.NewRequest("GET", "/healthz", nil)
		req.Header.Set("Origin", tt.origin)
		rec = httptest.NewRecorder()
		e.handler.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: expected %q, got %q", tt.origin, tt.want, got)
		}
		if tt.want == "" && rec.Header().Get("Access-Control-Allow-Credentials") != "" {
			t.Errorf("origin %s: expected no credentials header", tt.origin)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	e := newEnv(t)
	rec := e.doAs(t, "", "GET", "/metrics", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with metrics disabled, got %d", rec.Code)
	}
}
