package taste

// Merge combines the training-derived and collection-derived bundles.
// Training entries come first in every list, shared values have their
// counts summed, lists are cut to their declared caps, histograms are
// summed, and non-empty training strings win. When one side is empty the
// other is returned unchanged.
func Merge(training, collection Bundle) Bundle {
	if training.IsEmpty() {
		return collection
	}
	if collection.IsEmpty() {
		return training
	}

	tp, cp := training.Performance, collection.Performance
	ta, ca := training.Aesthetic, collection.Aesthetic
	tv, cv := training.Voice, collection.Voice

	return Bundle{
		Performance: PerformancePatterns{
			TopHooks:   union(tp.TopHooks, cp.TopHooks, CapHooks),
			Structures: union(tp.Structures, cp.Structures, CapStructures),
			Keywords:   union(tp.Keywords, cp.Keywords, CapKeywords),
			Sentiment:  sum(tp.Sentiment, cp.Sentiment),
			Formats:    sum(tp.Formats, cp.Formats),
			Niches:     union(tp.Niches, cp.Niches, CapNiches),
			Audiences:  union(tp.Audiences, cp.Audiences, CapAudiences),
		},
		Aesthetic: AestheticPatterns{
			DominantTones:     union(ta.DominantTones, ca.DominantTones, CapTones),
			AvoidTones:        union(ta.AvoidTones, ca.AvoidTones, CapAvoidTones),
			StyleMarkers:      union(ta.StyleMarkers, ca.StyleMarkers, CapStyles),
			EmotionalTriggers: union(ta.EmotionalTriggers, ca.EmotionalTriggers, CapEmotionalTriggers),
			Complexity:        prefer(ta.Complexity, ca.Complexity),
			Pacing:            prefer(ta.Pacing, ca.Pacing),
		},
		Voice: VoiceSignature{
			Voice:             prefer(tv.Voice, cv.Voice),
			SentencePatterns:  unionStrings(tv.SentencePatterns, cv.SentencePatterns, CapVoiceList),
			VocabularyLevel:   prefer(tv.VocabularyLevel, cv.VocabularyLevel),
			RhetoricalDevices: unionStrings(tv.RhetoricalDevices, cv.RhetoricalDevices, CapVoiceList),
		},
	}
}

func union(first, second List, limit int) List {
	out := make(List, 0, len(first)+len(second))
	idx := make(map[string]int, len(first)+len(second))
	for _, src := range []List{first, second} {
		for _, e := range src {
			if i, ok := idx[e.Value]; ok {
				out[i].Count += e.Count
				if e.LastSeen.After(out[i].LastSeen) {
					out[i].LastSeen = e.LastSeen
				}
				continue
			}
			idx[e.Value] = len(out)
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func unionStrings(first, second []string, limit int) []string {
	seen := make(map[string]bool, len(first)+len(second))
	var out []string
	for _, src := range [][]string{first, second} {
		for _, v := range src {
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sum(a, b Histogram) Histogram {
	out := make(Histogram, len(a)+len(b))
	for k, v := range a {
		out[k] += v
	}
	for k, v := range b {
		out[k] += v
	}
	return out
}

func prefer(training, collection string) string {
	if training != "" {
		return training
	}
	return collection
}
