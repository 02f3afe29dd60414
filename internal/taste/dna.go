// Package taste holds the taste-profile domain model and the pure functions
// that derive pattern bundles from per-item analyses and training ratings.
package taste

import "strings"

// PerformanceDNA describes the persuasive mechanics of a title.
type PerformanceDNA struct {
	Hooks          []string `json:"hooks"`
	Structure      string   `json:"structure"`
	Length         int      `json:"length"`
	Keywords       []string `json:"keywords"`
	Sentiment      string   `json:"sentiment"`
	PredictedScore int      `json:"predictedScore"`
	Format         string   `json:"format,omitempty"`
	Niche          string   `json:"niche,omitempty"`
	TargetAudience string   `json:"targetAudience,omitempty"`
}

// AestheticDNA describes the stylistic qualities of a title.
type AestheticDNA struct {
	Tones             []string `json:"tone"`
	Voice             string   `json:"voice"`
	Complexity        string   `json:"complexity"`
	Styles            []string `json:"style"`
	TasteScore        int      `json:"tasteScore"`
	EmotionalTriggers []string `json:"emotionalTriggers,omitempty"`
	Pacing            string   `json:"pacing,omitempty"`
}

// Analysis sources.
const (
	SourceLLM     = "llm"
	SourcePattern = "pattern"
)

// DNA is the analysis attached to one collection item.
type DNA struct {
	Performance PerformanceDNA `json:"performanceDNA"`
	Aesthetic   AestheticDNA   `json:"aestheticDNA"`
	Source      string         `json:"source"`
}

// Signals is the lighter title analysis used for training suggestions.
type Signals struct {
	Tones    []string `json:"tones"`
	Keywords []string `json:"keywords"`
	Hooks    []string `json:"hooks"`
	Styles   []string `json:"styles"`
	Source   string   `json:"source,omitempty"`
}

// SignalsFromDNA projects a full analysis onto the training signal fields.
func SignalsFromDNA(d DNA) Signals {
	return Signals{
		Tones:    d.Aesthetic.Tones,
		Keywords: d.Performance.Keywords,
		Hooks:    d.Performance.Hooks,
		Styles:   d.Aesthetic.Styles,
		Source:   d.Source,
	}
}

// normalize lowercases and trims a pattern value. Empty and "unknown" values are dropped.
func normalize(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || v == "unknown" {
		return "", false
	}
	return v, true
}
