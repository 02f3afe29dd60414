// Package generate writes new titles and hooks in a user's taste, and
// translates text, using the configured LLM provider.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/llm"
	"github.com/TobiSchelling/Folio/internal/platform"
	"github.com/TobiSchelling/Folio/internal/taste"
)

const generationPrompt = `You are an expert content strategist who creates high-performing titles and hooks that match a creator's unique aesthetic.

USER'S TASTE PROFILE:
Performance Patterns (what goes viral for them):
%s

Aesthetic Patterns (what they aesthetically prefer):
%s

Voice Signature (how they write):
%s

TASK:
Generate %d title variants for:
Platform: %s
Topic: %s
%s

Each variant must:
1. Leverage proven performance patterns from their collection
2. Match their aesthetic signature
3. Feel authentic to their voice

Return a JSON array with exactly %d objects:
[
  {
    "text": "the generated title",
    "performanceRationale": "brief explanation of why this will perform well",
    "tasteRationale": "brief explanation of how this matches their taste",
    "performanceScore": 0-100,
    "tasteScore": 0-100
  }
]

Return ONLY the JSON array, no additional text.`

const randomizePrompt = `You are an expert content strategist who creates original, high-performing content hooks.

USER'S TASTE PROFILE:
Performance Patterns (what goes viral for them):
%s

Aesthetic Patterns (what they aesthetically prefer):
%s

Voice Signature (how they write):
%s

REFERENCE ITEMS FROM THEIR COLLECTION:
%s

TASK:
Analyze the reference items and taste profile above. Generate %d COMPLETELY NEW and ORIGINAL hook/title ideas for %s.

These should NOT be rewrites of the reference items. Instead:
1. Identify the underlying themes, patterns, and angles that make these references compelling
2. Synthesize new ideas that combine different elements in fresh ways
3. Generate hooks that the user hasn't thought of yet but would align with their taste
4. Be creative and unexpected while staying true to their aesthetic

The hooks should:
- Feel like they came from the same creative mind as the references
- Have viral potential based on their performance patterns
- Cover different angles/approaches (don't repeat the same formula)
- Be specific and immediately compelling

Return a JSON array with exactly %d objects:
[
  {
    "text": "the generated hook/title",
    "performanceRationale": "why this will perform well based on their patterns",
    "tasteRationale": "how this synthesizes elements from their taste profile",
    "performanceScore": 0-100,
    "tasteScore": 0-100
  }
]

Return ONLY the JSON array, no additional text.`

// ModeRandomize asks for new hooks synthesized from reference items
// instead of titles for a topic. Its variants are logged with this prompt.
const (
	ModeRandomize   = "randomize"
	RandomizePrompt = "[RANDOMIZE]"
)

const (
	DefaultCount    = 10
	MaxCount        = 20
	recentItems     = 10
	maxOutputTokens = 2048
)

var (
	ErrUnavailable     = errors.New("no LLM provider configured")
	ErrMissingTopic    = errors.New("Topic and platform are required")
	ErrInvalidPlatform = errors.New("Invalid platform")
	ErrNoReferences    = errors.New("No reference items available. Save some content to your collection first.")
	ErrEmptyResponse   = errors.New("LLM returned no usable variants")
)

// Request asks for generated variants.
type Request struct {
	Topic          string   `json:"topic"`
	Mode           string   `json:"mode"`
	Platform       string   `json:"platform"`
	ReferenceItems []string `json:"referenceItems"`
	Count          int      `json:"count"`
}

// Normalize validates r and applies the count default and cap.
func (r *Request) Normalize() error {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Platform == "" || (r.Topic == "" && r.Mode != ModeRandomize) {
		return ErrMissingTopic
	}
	if !platform.Valid(r.Platform) {
		return ErrInvalidPlatform
	}
	if r.Count <= 0 {
		r.Count = DefaultCount
	}
	if r.Count > MaxCount {
		r.Count = MaxCount
	}
	return nil
}

// Variant is one generated title as returned by the LLM.
type Variant struct {
	Text                 string `json:"text"`
	PerformanceRationale string `json:"performanceRationale"`
	TasteRationale       string `json:"tasteRationale"`
	PerformanceScore     int    `json:"performanceScore"`
	TasteScore           int    `json:"tasteScore"`
}

// Generator produces title variants in a user's taste.
type Generator struct {
	db       *database.DB
	provider llm.Provider
}

func NewGenerator(db *database.DB, provider llm.Provider) *Generator {
	return &Generator{db: db, provider: provider}
}

// Available reports whether an LLM provider is configured.
func (g *Generator) Available() bool {
	return g.provider != nil && g.provider.IsConfigured()
}

// Generate asks the LLM for variants, stores them in the variant log and
// returns them.
func (g *Generator) Generate(ctx context.Context, userID string, req Request) ([]Variant, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	if !g.Available() {
		return nil, ErrUnavailable
	}

	p, err := g.db.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	var prompt, logged string
	if req.Mode == ModeRandomize {
		prompt, err = g.randomize(userID, req, p)
		logged = RandomizePrompt
	} else {
		prompt, err = g.topic(userID, req, p)
		logged = req.Topic
	}
	if err != nil {
		return nil, err
	}

	text, err := g.provider.Generate(ctx, prompt, maxOutputTokens)
	if err != nil {
		return nil, fmt.Errorf("generating variants: %w", err)
	}
	var variants []Variant
	if err := llm.DecodeArray(text, &variants); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("unparseable generation response")
		return nil, ErrEmptyResponse
	}

	rows := make([]database.Variant, 0, len(variants))
	kept := variants[:0]
	for _, v := range variants {
		v.Text = strings.TrimSpace(v.Text)
		if v.Text == "" {
			continue
		}
		v.PerformanceScore = clamp(v.PerformanceScore)
		v.TasteScore = clamp(v.TasteScore)
		kept = append(kept, v)
		rows = append(rows, database.Variant{
			UserID:               userID,
			Prompt:               logged,
			Platform:             req.Platform,
			Text:                 v.Text,
			PerformanceRationale: v.PerformanceRationale,
			TasteRationale:       v.TasteRationale,
			PerformanceScore:     v.PerformanceScore,
			TasteScore:           v.TasteScore,
		})
	}
	if len(rows) > 0 {
		if err := g.db.InsertVariants(rows); err != nil {
			return nil, fmt.Errorf("storing variants: %w", err)
		}
	}

	log.Info().Str("user", userID).Str("mode", req.Mode).Int("variants", len(kept)).Msg("generated variants")
	return kept, nil
}

func (g *Generator) topic(userID string, req Request, p *database.Profile) (string, error) {
	var refs string
	if len(req.ReferenceItems) > 0 {
		items, err := g.db.ItemsByIDs(userID, req.ReferenceItems)
		if err != nil {
			return "", fmt.Errorf("loading reference items: %w", err)
		}
		if len(items) > 0 {
			lines := make([]string, len(items))
			for i, it := range items {
				lines[i] = fmt.Sprintf("- %q", it.Title)
			}
			refs = "\nReference items from their collection:\n" + strings.Join(lines, "\n")
		}
	}

	perf, aes, voice := sections(p,
		"No data yet - use general best practices",
		"No data yet - use general quality standards",
		"No data yet - use clear, direct language")
	return fmt.Sprintf(generationPrompt, perf, aes, voice, req.Count, req.Platform, req.Topic, refs, req.Count), nil
}

func (g *Generator) randomize(userID string, req Request, p *database.Profile) (string, error) {
	var items []database.Item
	var err error
	if len(req.ReferenceItems) > 0 {
		items, err = g.db.ItemsByIDs(userID, req.ReferenceItems)
	} else {
		items, err = g.db.RecentItems(userID, recentItems)
	}
	if err != nil {
		return "", fmt.Errorf("loading reference items: %w", err)
	}
	if len(items) == 0 {
		return "", ErrNoReferences
	}

	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("- %q (%s)", it.Title, it.Platform)
	}
	const infer = "No data yet - infer from references"
	perf, aes, voice := sections(p, infer, infer, infer)
	return fmt.Sprintf(randomizePrompt, perf, aes, voice, strings.Join(lines, "\n"), req.Count, req.Platform, req.Count), nil
}

// sections renders the combined bundle's three groups as indented JSON,
// substituting the placeholders for groups without data.
func sections(p *database.Profile, perfEmpty, aesEmpty, voiceEmpty string) (string, string, string) {
	if p == nil {
		return perfEmpty, aesEmpty, voiceEmpty
	}
	b := p.Combined()
	render := func(v any, empty bool, placeholder string) string {
		if empty {
			return placeholder
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return placeholder
		}
		return string(out)
	}
	perf := b.Performance
	aes := b.Aesthetic
	return render(perf, emptyPerformance(perf), perfEmpty),
		render(aes, emptyAesthetic(aes), aesEmpty),
		render(b.Voice, b.Voice.Voice == "" && b.Voice.VocabularyLevel == "", voiceEmpty)
}

func emptyPerformance(p taste.PerformancePatterns) bool {
	return len(p.TopHooks) == 0 && len(p.Structures) == 0 && len(p.Keywords) == 0 && len(p.Niches) == 0
}

func emptyAesthetic(a taste.AestheticPatterns) bool {
	return len(a.DominantTones) == 0 && len(a.StyleMarkers) == 0 && len(a.AvoidTones) == 0
}

func clamp(n int) int {
	return max(0, min(100, n))
}
