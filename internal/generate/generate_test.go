package generate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/taste"
)

type mockProvider struct {
	response   string
	err        error
	configured bool
	prompt     string
	calls      int
}

func (m *mockProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.calls++
	m.prompt = prompt
	return m.response, m.err
}

func (m *mockProvider) IsConfigured() bool { return m.configured }

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *database.DB) string {
	t.Helper()
	u, err := db.CreateUser("ana")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u.ID
}

const twoVariants = `Here you go:
[
  {"text": "I baked bread for 30 days", "performanceRationale": "challenge", "tasteRationale": "wholesome", "performanceScore": 88, "tasteScore": 140},
  {"text": "  ", "performanceScore": 10, "tasteScore": 10},
  {"text": "Nobody tells you this about sourdough", "performanceRationale": "curiosity", "tasteRationale": "sincere", "performanceScore": 75, "tasteScore": 80}
]`

func TestRequestNormalize(t *testing.T) {
	tests := []struct {
		req  Request
		want error
	}{
		{Request{Platform: "TIKTOK"}, ErrMissingTopic},
		{Request{Topic: "bread"}, ErrMissingTopic},
		{Request{Topic: "bread", Platform: "VINE"}, ErrInvalidPlatform},
		{Request{Mode: ModeRandomize, Platform: "TIKTOK"}, nil},
	}
	for _, tt := range tests {
		if err := tt.req.Normalize(); !errors.Is(err, tt.want) {
			t.Errorf("Normalize(%+v) = %v, want %v", tt.req, err, tt.want)
		}
	}

	r := Request{Topic: "bread", Platform: "TIKTOK"}
	r.Normalize()
	if r.Count != DefaultCount {
		t.Errorf("expected default count %d, got %d", DefaultCount, r.Count)
	}
	r = Request{Topic: "bread", Platform: "TIKTOK", Count: 50}
	r.Normalize()
	if r.Count != MaxCount {
		t.Errorf("expected count capped at %d, got %d", MaxCount, r.Count)
	}
}

func TestGenerateUnavailable(t *testing.T) {
	db := openTestDB(t)
	user := createUser(t, db)

	for _, g := range []*Generator{NewGenerator(db, nil), NewGenerator(db, &mockProvider{})} {
		if _, err := g.Generate(context.Background(), user, Request{Topic: "bread", Platform: "TIKTOK"}); !errors.Is(err, ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", err)
		}
	}
}

func TestGenerateTopicStoresVariants(t *testing.T) {
	db := openTestDB(t)
	user := createUser(t, db)
	provider := &mockProvider{response: twoVariants, configured: true}
	g := NewGenerator(db, provider)

	b := taste.Bundle{}
	b.Performance.TopHooks = taste.List{{Value: "challenge", Count: 2}}
	if err := db.SaveProfile(&database.Profile{UserID: user, Collection: b}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	item := &database.Item{UserID: user, Title: "Sourdough diaries", URL: "https://tiktok.com/@a/video/1", Platform: "TIKTOK"}
	if err := db.InsertItem(item); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	variants, err := g.Generate(context.Background(), user, Request{
		Topic: "home baking", Platform: "TIKTOK", Count: 2, ReferenceItems: []string{item.ID},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(variants))
	}
	if variants[0].TasteScore != 100 {
		t.Errorf("expected taste score clamped to 100, got %d", variants[0].TasteScore)
	}

	for _, want := range []string{"Topic: home baking", "Platform: TIKTOK", `"challenge"`, `- "Sourdough diaries"`, "No data yet - use clear, direct language"} {
		if !strings.Contains(provider.prompt, want) {
			t.Errorf("expected prompt to contain %q", want)
		}
	}

	stored, err := db.RecentVariants(user, 10)
	if err != nil {
		t.Fatalf("RecentVariants: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored variants, got %d", len(stored))
	}
	for _, v := range stored {
		if v.Prompt != "home baking" || v.Platform != "TIKTOK" {
			t.Errorf("unexpected stored variant %+v", v)
		}
	}
}

func TestGenerateRandomize(t *testing.T) {
	db := openTestDB(t)
	user := createUser(t, db)
	provider := &mockProvider{response: twoVariants, configured: true}
	g := NewGenerator(db, provider)

	_, err := g.Generate(context.Background(), user, Request{Mode: ModeRandomize, Platform: "YOUTUBE_SHORT"})
	if !errors.Is(err, ErrNoReferences) {
		t.Fatalf("expected ErrNoReferences, got %v", err)
	}
	if provider.calls != 0 {
		t.Error("no LLM call expected without references")
	}

	if err := db.InsertItem(&database.Item{UserID: user, Title: "Crumb shot reveal", URL: "https://youtube.com/shorts/abcdefghijk", Platform: "YOUTUBE_SHORT"}); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	variants, err := g.Generate(context.Background(), user, Request{Mode: ModeRandomize, Platform: "YOUTUBE_SHORT"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(variants) != 2 {
		t.Errorf("expected 2 variants, got %d", len(variants))
	}
	if !strings.Contains(provider.prompt, `- "Crumb shot reveal" (YOUTUBE_SHORT)`) {
		t.Error("expected recent items as references")
	}
	if !strings.Contains(provider.prompt, "No data yet - infer from references") {
		t.Error("expected placeholders without a profile")
	}

	stored, _ := db.RecentVariants(user, 10)
	if len(stored) != 2 || stored[0].Prompt != RandomizePrompt {
		t.Errorf("expected variants logged with %q, got %+v", RandomizePrompt, stored)
	}
}

func TestGenerateUnparseable(t *testing.T) {
	db := openTestDB(t)
	user := createUser(t, db)
	g := NewGenerator(db, &mockProvider{response: "I cannot help with that", configured: true})

	if _, err := g.Generate(context.Background(), user, Request{Topic: "x", Platform: "TIKTOK"}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
	stored, _ := db.RecentVariants(user, 10)
	if len(stored) != 0 {
		t.Errorf("expected nothing stored, got %d", len(stored))
	}
}

func TestTranslate(t *testing.T) {
	provider := &mockProvider{response: "  Hola mundo \n", configured: true}
	tr := NewTranslator(provider)

	got, err := tr.Translate(context.Background(), "Hello world", "Spanish", "")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got.Translated != "Hola mundo" || got.Original != "Hello world" || got.TargetLanguage != "Spanish" {
		t.Errorf("unexpected translation %+v", got)
	}
	if !strings.Contains(provider.prompt, "Detect the source language") {
		t.Error("expected auto-detect prompt without a source language")
	}

	tr.Translate(context.Background(), "Hello", "Spanish", "English")
	if !strings.Contains(provider.prompt, "from English to Spanish") {
		t.Error("expected source language in prompt")
	}

	if _, err := tr.Translate(context.Background(), " ", "Spanish", ""); !errors.Is(err, ErrMissingText) {
		t.Errorf("expected ErrMissingText, got %v", err)
	}
	if _, err := tr.Translate(context.Background(), "Hello", "", ""); !errors.Is(err, ErrMissingLanguage) {
		t.Errorf("expected ErrMissingLanguage, got %v", err)
	}
	if _, err := NewTranslator(nil).Translate(context.Background(), "Hello", "Spanish", ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestTranslateBatch(t *testing.T) {
	tr := NewTranslator(&mockProvider{response: `["Hola", "Adiós"]`, configured: true})
	got, err := tr.TranslateBatch(context.Background(), []string{"Hello", "Goodbye"}, "Spanish")
	if err != nil {
		t.Fatalf("TranslateBatch: %v", err)
	}
	if len(got) != 2 || got[1] != "Adiós" {
		t.Errorf("unexpected translations %v", got)
	}

	tr = NewTranslator(&mockProvider{response: "no", configured: true})
	if _, err := tr.TranslateBatch(context.Background(), []string{"Hello"}, "Spanish"); err == nil {
		t.Error("expected parse error")
	}
}
