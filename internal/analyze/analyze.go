// Package analyze derives PerformanceDNA and AestheticDNA from content
// titles, using an LLM when one is available and keyword tables otherwise.
package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/TobiSchelling/Folio/internal/llm"
	"github.com/TobiSchelling/Folio/internal/taste"
)

const analysisPrompt = `Analyze this video/content title for a creator's taste profile analysis:

Title: "%s"
Platform: %s
Views: %s
Engagement: %s

Provide detailed analysis in JSON format:

{
  "performanceDNA": {
    "hooks": ["specific hook types: curiosity gap, controversy, social proof, fear of missing out, transformation promise, insider secret, challenge, emotional trigger, etc."],
    "structure": "structure type: question, statement, how-to, listicle, story, comparison, revelation, etc.",
    "length": %d,
    "keywords": ["specific topic keywords - be precise, extract actual subjects/themes"],
    "sentiment": "specific sentiment: controversial, inspiring, educational, entertaining, provocative, nostalgic, urgent, calm, etc.",
    "predictedScore": 0-100,
    "format": "content format: interview, reaction video, tutorial, vlog, documentary, commentary, podcast clip, music video, sketch, review, behind-the-scenes, news, challenge, etc.",
    "niche": "specific niche: tech reviews, gaming, beauty, fitness, finance, comedy, music production, fashion, food, travel, self-improvement, etc.",
    "targetAudience": "target demographic: gen-z, millennials, professionals, students, enthusiasts, beginners, experts, etc."
  },
  "aestheticDNA": {
    "tone": ["specific tones: edgy, wholesome, sarcastic, sincere, aggressive, chill, chaotic, polished, raw, mysterious, playful, serious, etc."],
    "voice": "voice style: conversational, authoritative, conspiratorial, friendly, provocative, educational, entertaining, etc.",
    "complexity": "simple, moderate, or sophisticated",
    "style": ["style markers: clickbait, authentic, polished, lo-fi, high-energy, minimalist, maximalist, meme-influenced, etc."],
    "tasteScore": 0-100,
    "emotionalTriggers": ["emotions it targets: curiosity, fear, excitement, nostalgia, anger, joy, surprise, etc."],
    "pacing": "fast, medium, or slow"
  }
}

Be SPECIFIC and PRECISE. Extract actual themes, not generic descriptions. Return ONLY valid JSON.`

const signalsPrompt = `Analyze this video title and extract taste signals:

Title: "%s"

Return JSON with:
- tones: Array of 1-3 emotional/stylistic tones (e.g., "energetic", "nostalgic", "edgy", "wholesome", "dramatic", "chill", "intense", "playful", "sincere", "ironic")
- keywords: Array of 1-4 topic keywords (specific themes, subjects, genres)
- hooks: Array of 1-2 hook patterns if identifiable (e.g., "curiosity gap", "challenge", "transformation", "controversy", "how-to")
- styles: Array of 1-2 content styles (e.g., "educational", "entertainment", "vlog", "cinematic", "raw", "polished", "lo-fi", "high-production")

Return ONLY valid JSON, no explanation.`

// Input is the content an analysis is computed from.
type Input struct {
	Title      string
	Platform   string
	Views      *int64
	Engagement *float64
}

// Analyzer produces DNA for titles. LLM calls are paced by a shared
// limiter; every failure degrades to the pattern matcher.
type Analyzer struct {
	provider  llm.Provider
	limiter   *rate.Limiter
	maxTokens int
}

// New creates an analyzer. provider may be nil. ratePerSecond <= 0
// disables pacing.
func New(provider llm.Provider, ratePerSecond float64) *Analyzer {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Analyzer{
		provider:  provider,
		limiter:   rate.NewLimiter(limit, 1),
		maxTokens: 1024,
	}
}

// UsesLLM reports whether analyses will be attempted with an LLM.
func (a *Analyzer) UsesLLM() bool {
	return a.provider != nil && a.provider.IsConfigured()
}

// Analyze returns the DNA of in. The only error is a cancelled context
// while waiting for the limiter.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (taste.DNA, error) {
	if !a.UsesLLM() {
		return Patterns(in.Title), nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return taste.DNA{}, err
	}

	views := "Unknown"
	if in.Views != nil {
		views = fmt.Sprintf("%d", *in.Views)
	}
	engagement := "Unknown"
	if in.Engagement != nil {
		engagement = fmt.Sprintf("%.1f%%", *in.Engagement)
	}
	prompt := fmt.Sprintf(analysisPrompt, in.Title, in.Platform, views, engagement, len([]rune(in.Title)))

	text, err := a.provider.Generate(ctx, prompt, a.maxTokens)
	if err != nil {
		log.Warn().Err(err).Str("title", truncate(in.Title, 50)).Msg("LLM analysis failed, using pattern matcher")
		return Patterns(in.Title), nil
	}
	dna, ok := parseDNA(text, in.Title)
	if !ok {
		log.Warn().Str("title", truncate(in.Title, 50)).Msg("unparseable LLM analysis, using pattern matcher")
		return Patterns(in.Title), nil
	}
	return dna, nil
}

// Signals returns the training signals of a suggestion title.
func (a *Analyzer) Signals(ctx context.Context, title string) taste.Signals {
	if !a.UsesLLM() {
		return PatternSignals(title)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return PatternSignals(title)
	}

	text, err := a.provider.Generate(ctx, fmt.Sprintf(signalsPrompt, title), 512)
	if err != nil {
		log.Warn().Err(err).Msg("LLM signal analysis failed, using pattern matcher")
		return PatternSignals(title)
	}
	data := llm.ParseJSONResponse(text)
	if data == nil {
		return PatternSignals(title)
	}
	s := taste.Signals{
		Tones:    llm.GetStrings(data, "tones"),
		Keywords: llm.GetStrings(data, "keywords"),
		Hooks:    llm.GetStrings(data, "hooks"),
		Styles:   llm.GetStrings(data, "styles"),
		Source:   taste.SourceLLM,
	}
	if len(s.Tones)+len(s.Keywords)+len(s.Hooks)+len(s.Styles) == 0 {
		return PatternSignals(title)
	}
	return s
}

func parseDNA(text, title string) (taste.DNA, bool) {
	data := llm.ParseJSONResponse(text)
	perf := llm.GetMap(data, "performanceDNA")
	aes := llm.GetMap(data, "aestheticDNA")
	if perf == nil || aes == nil {
		return taste.DNA{}, false
	}

	return taste.DNA{
		Performance: taste.PerformanceDNA{
			Hooks:          llm.GetStrings(perf, "hooks"),
			Structure:      orUnknown(llm.GetString(perf, "structure")),
			Length:         llm.GetInt(perf, "length", len([]rune(title))),
			Keywords:       llm.GetStrings(perf, "keywords"),
			Sentiment:      orDefault(llm.GetString(perf, "sentiment"), "neutral"),
			PredictedScore: clamp(llm.GetInt(perf, "predictedScore", 50)),
			Format:         orUnknown(llm.GetString(perf, "format")),
			Niche:          orUnknown(llm.GetString(perf, "niche")),
			TargetAudience: orDefault(llm.GetString(perf, "targetAudience"), "general"),
		},
		Aesthetic: taste.AestheticDNA{
			Tones:             llm.GetStrings(aes, "tone"),
			Voice:             orUnknown(llm.GetString(aes, "voice")),
			Complexity:        orDefault(llm.GetString(aes, "complexity"), "moderate"),
			Styles:            llm.GetStrings(aes, "style"),
			TasteScore:        clamp(llm.GetInt(aes, "tasteScore", 50)),
			EmotionalTriggers: llm.GetStrings(aes, "emotionalTriggers"),
			Pacing:            orDefault(llm.GetString(aes, "pacing"), "medium"),
		},
		Source: taste.SourceLLM,
	}, true
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

func orUnknown(s string) string {
	return orDefault(s, "unknown")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
