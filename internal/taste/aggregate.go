package taste

import "time"

// Top-N sizes used by a full rebuild.
const (
	topHooks             = 10
	topStructures        = 5
	topTones             = 10
	topKeywords          = 20
	topStyles            = 8
	topNiches            = 5
	topAudiences         = 3
	topEmotionalTriggers = 6
	topVoiceList         = 5
)

// AnalyzedItem is one collection item's DNA and the time it was saved.
type AnalyzedItem struct {
	DNA     DNA
	SavedAt time.Time
}

// Aggregate folds item analyses into a collection-derived bundle.
// Values are counted across items and ranked with Rank; singleton fields
// take the most frequent value.
func Aggregate(items []AnalyzedItem) Bundle {
	hooks, structures, keywords := newCounter(), newCounter(), newCounter()
	sentiment, formats, niches, audiences := newCounter(), newCounter(), newCounter(), newCounter()
	tones, styles, triggers := newCounter(), newCounter(), newCounter()
	voices, complexity, pacing := newCounter(), newCounter(), newCounter()

	for _, it := range items {
		p, a, at := it.DNA.Performance, it.DNA.Aesthetic, it.SavedAt
		hooks.addAll(p.Hooks, at)
		structures.add(p.Structure, at)
		keywords.addAll(p.Keywords, at)
		sentiment.add(p.Sentiment, at)
		formats.add(p.Format, at)
		niches.add(p.Niche, at)
		audiences.add(p.TargetAudience, at)
		tones.addAll(a.Tones, at)
		styles.addAll(a.Styles, at)
		triggers.addAll(a.EmotionalTriggers, at)
		voices.add(a.Voice, at)
		complexity.add(a.Complexity, at)
		pacing.add(a.Pacing, at)
	}

	topHookList := hooks.top(topHooks)
	styleList := styles.top(topStyles)
	complexityMode := complexity.mode("moderate")

	return Bundle{
		Performance: PerformancePatterns{
			TopHooks:   topHookList,
			Structures: structures.top(topStructures),
			Keywords:   keywords.top(topKeywords),
			Sentiment:  sentiment.histogram(),
			Formats:    formats.histogram(),
			Niches:     niches.top(topNiches),
			Audiences:  audiences.top(topAudiences),
		},
		Aesthetic: AestheticPatterns{
			DominantTones:     tones.top(topTones),
			StyleMarkers:      styleList,
			EmotionalTriggers: triggers.top(topEmotionalTriggers),
			Complexity:        complexityMode,
			Pacing:            pacing.mode("medium"),
		},
		Voice: VoiceSignature{
			Voice:             voices.mode("unknown"),
			SentencePatterns:  topHookList.Head(topVoiceList),
			VocabularyLevel:   complexityMode,
			RhetoricalDevices: styleList.Head(topVoiceList),
		},
	}
}
