package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/Folio/internal/taste"
)

const noneLabel = "_none yet_"

// Markdown renders a profile as a readable document: one section per
// pattern group, separated by rules.
func Markdown(v *View) string {
	if v == nil {
		return "# Taste Profile\n\nNo profile yet. Save some content and rebuild."
	}

	b := v.Bundle
	header := fmt.Sprintf("# Taste Profile\n\n%d items, %d ratings, confidence %.0f%%",
		v.ItemCount, v.RatingCount, v.Confidence*100)
	if v.LastTrainedAt != nil {
		header += "\n\nLast rebuilt " + *v.LastTrainedAt
	}

	sections := []string{
		header,
		section("Hooks", b.Performance.TopHooks.Values()),
		section("Structures", b.Performance.Structures.Values()),
		section("Keywords", b.Performance.Keywords.Values()),
		section("Sentiment", histogram(b.Performance.Sentiment)),
		section("Formats", histogram(b.Performance.Formats)),
		section("Niches", b.Performance.Niches.Values()),
		section("Audiences", b.Performance.Audiences.Values()),
		section("Tones", b.Aesthetic.DominantTones.Values()),
		section("Avoid", b.Aesthetic.AvoidTones.Values()),
		section("Style", b.Aesthetic.StyleMarkers.Values()),
		section("Emotional Triggers", b.Aesthetic.EmotionalTriggers.Values()),
		section("Voice", voice(b)),
	}
	if v.Dislikes != nil {
		sections = append(sections, section("Trained Dislikes", v.Dislikes.Keywords))
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func section(title string, values []string) string {
	if len(values) == 0 {
		return fmt.Sprintf("## %s\n\n%s", title, noneLabel)
	}
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = "- " + v
	}
	return fmt.Sprintf("## %s\n\n%s", title, strings.Join(lines, "\n"))
}

func histogram(h taste.Histogram) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if h[keys[i]] != h[keys[j]] {
			return h[keys[i]] > h[keys[j]]
		}
		return keys[i] < keys[j]
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s (%d)", k, h[k])
	}
	return out
}

func voice(b taste.Bundle) []string {
	var out []string
	if b.Voice.Voice != "" {
		out = append(out, "voice: "+b.Voice.Voice)
	}
	if b.Voice.VocabularyLevel != "" {
		out = append(out, "vocabulary: "+b.Voice.VocabularyLevel)
	}
	if b.Aesthetic.Complexity != "" {
		out = append(out, "complexity: "+b.Aesthetic.Complexity)
	}
	if b.Aesthetic.Pacing != "" {
		out = append(out, "pacing: "+b.Aesthetic.Pacing)
	}
	return out
}
