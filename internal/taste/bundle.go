package taste

// Declared caps for each bundle list. Merging and incremental refinement
// never produce a list longer than these.
const (
	CapHooks             = 12
	CapStructures        = 5
	CapKeywords          = 20
	CapNiches            = 5
	CapAudiences         = 3
	CapTones             = 12
	CapAvoidTones        = 12
	CapStyles            = 10
	CapEmotionalTriggers = 6
	CapVoiceList         = 5
)

type PerformancePatterns struct {
	TopHooks   List      `json:"topHooks"`
	Structures List      `json:"structures"`
	Keywords   List      `json:"commonKeywords"`
	Sentiment  Histogram `json:"sentimentDistribution"`
	Formats    Histogram `json:"formats"`
	Niches     List      `json:"niches"`
	Audiences  List      `json:"targetAudiences"`
}

type AestheticPatterns struct {
	DominantTones     List   `json:"dominantTones"`
	AvoidTones        List   `json:"avoidTones"`
	StyleMarkers      List   `json:"styleMarkers"`
	EmotionalTriggers List   `json:"emotionalTriggers"`
	Complexity        string `json:"complexityPreference"`
	Pacing            string `json:"pacing"`
}

type VoiceSignature struct {
	Voice             string   `json:"voice"`
	SentencePatterns  []string `json:"sentencePatterns"`
	VocabularyLevel   string   `json:"vocabularyLevel"`
	RhetoricalDevices []string `json:"rhetoricalDevices"`
}

// Bundle is one complete set of taste patterns: collection-derived,
// training-derived, or their merge.
type Bundle struct {
	Performance PerformancePatterns `json:"performancePatterns"`
	Aesthetic   AestheticPatterns   `json:"aestheticPatterns"`
	Voice       VoiceSignature      `json:"voiceSignature"`
}

// IsEmpty reports whether the bundle carries no signal at all.
func (b Bundle) IsEmpty() bool {
	p, a, v := b.Performance, b.Aesthetic, b.Voice
	return len(p.TopHooks) == 0 && len(p.Structures) == 0 && len(p.Keywords) == 0 &&
		len(p.Sentiment) == 0 && len(p.Formats) == 0 && len(p.Niches) == 0 && len(p.Audiences) == 0 &&
		len(a.DominantTones) == 0 && len(a.AvoidTones) == 0 && len(a.StyleMarkers) == 0 &&
		len(a.EmotionalTriggers) == 0 && a.Complexity == "" && a.Pacing == "" &&
		v.Voice == "" && len(v.SentencePatterns) == 0 && v.VocabularyLevel == "" && len(v.RhetoricalDevices) == 0
}

// Clone returns a deep copy of b.
func (b Bundle) Clone() Bundle {
	out := b
	out.Performance.TopHooks = b.Performance.TopHooks.clone()
	out.Performance.Structures = b.Performance.Structures.clone()
	out.Performance.Keywords = b.Performance.Keywords.clone()
	out.Performance.Sentiment = b.Performance.Sentiment.clone()
	out.Performance.Formats = b.Performance.Formats.clone()
	out.Performance.Niches = b.Performance.Niches.clone()
	out.Performance.Audiences = b.Performance.Audiences.clone()
	out.Aesthetic.DominantTones = b.Aesthetic.DominantTones.clone()
	out.Aesthetic.AvoidTones = b.Aesthetic.AvoidTones.clone()
	out.Aesthetic.StyleMarkers = b.Aesthetic.StyleMarkers.clone()
	out.Aesthetic.EmotionalTriggers = b.Aesthetic.EmotionalTriggers.clone()
	out.Voice.SentencePatterns = append([]string(nil), b.Voice.SentencePatterns...)
	out.Voice.RhetoricalDevices = append([]string(nil), b.Voice.RhetoricalDevices...)
	return out
}
