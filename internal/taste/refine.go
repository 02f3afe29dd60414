package taste

import (
	"math"
	"strings"
	"time"
)

// RatingType distinguishes pair ratings from single ratings.
type RatingType string

const (
	Comparative RatingType = "COMPARATIVE"
	Binary      RatingType = "BINARY"
)

// Outcome is the result of one rating event.
type Outcome string

const (
	APreferred Outcome = "A_PREFERRED"
	BPreferred Outcome = "B_PREFERRED"
	BothLiked  Outcome = "BOTH_LIKED"
	Neither    Outcome = "NEITHER"
	Liked      Outcome = "LIKED"
	Disliked   Outcome = "DISLIKED"
	Skipped    Outcome = "SKIPPED"
)

// ValidOutcome reports whether outcome is allowed for the rating type.
func ValidOutcome(t RatingType, o Outcome) bool {
	switch t {
	case Comparative:
		switch o {
		case APreferred, BPreferred, BothLiked, Neither, Skipped:
			return true
		}
	case Binary:
		switch o {
		case Liked, Disliked, Skipped:
			return true
		}
	}
	return false
}

// Resolve maps a rating to the suggestion ids it likes and dislikes.
// a and b are the pair for COMPARATIVE ratings, single the suggestion for BINARY ones.
func Resolve(t RatingType, o Outcome, a, b, single string) (liked, disliked []string) {
	switch t {
	case Comparative:
		switch o {
		case APreferred:
			return []string{a}, []string{b}
		case BPreferred:
			return []string{b}, []string{a}
		case BothLiked:
			return []string{a, b}, nil
		case Neither:
			return nil, []string{a, b}
		}
	case Binary:
		switch o {
		case Liked:
			return []string{single}, nil
		case Disliked:
			return nil, []string{single}
		}
	}
	return nil, nil
}

// Confidence derives the profile confidence from the lifetime rating count.
// It is non-decreasing in n and never exceeds 0.95.
func Confidence(n int) float64 {
	if n < 0 {
		n = 0
	}
	return math.Min(0.95, math.Log10(float64(n+1))/2)
}

// ApplyRating nudges a training bundle with one rating's liked and disliked
// signals and returns the updated copy. Liked values are added (or have their
// count bumped); liked tones leave the avoid list. Disliked tones move to the
// avoid list, and disliked keywords, hooks and styles are dropped from the
// liked lists. Every touched list is cut to its declared cap using policy.
func ApplyRating(b Bundle, liked, disliked []Signals, at time.Time, policy Eviction) Bundle {
	out := b.Clone()
	p, a := &out.Performance, &out.Aesthetic

	for _, s := range liked {
		for _, v := range clean(s.Tones) {
			a.DominantTones = a.DominantTones.bump(v, at)
			a.AvoidTones = a.AvoidTones.without(v)
		}
		for _, v := range clean(s.Keywords) {
			p.Keywords = p.Keywords.bump(v, at)
		}
		for _, v := range clean(s.Hooks) {
			p.TopHooks = p.TopHooks.bump(v, at)
		}
		for _, v := range clean(s.Styles) {
			a.StyleMarkers = a.StyleMarkers.bump(v, at)
		}
	}

	for _, s := range disliked {
		for _, v := range clean(s.Tones) {
			a.AvoidTones = a.AvoidTones.bump(v, at)
			a.DominantTones = a.DominantTones.without(v)
		}
		for _, v := range clean(s.Keywords) {
			p.Keywords = p.Keywords.without(v)
		}
		for _, v := range clean(s.Hooks) {
			p.TopHooks = p.TopHooks.without(v)
		}
		for _, v := range clean(s.Styles) {
			a.StyleMarkers = a.StyleMarkers.without(v)
		}
	}

	a.DominantTones = Truncate(a.DominantTones, CapTones, policy)
	a.AvoidTones = Truncate(a.AvoidTones, CapAvoidTones, policy)
	a.StyleMarkers = Truncate(a.StyleMarkers, CapStyles, policy)
	p.Keywords = Truncate(p.Keywords, CapKeywords, policy)
	p.TopHooks = Truncate(p.TopHooks, CapHooks, policy)
	return out
}

// clean normalizes values and drops duplicates within one analysis.
func clean(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n, ok := normalize(v)
		if !ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Caps used by full refinement.
const (
	refineTones    = 10
	refineKeywords = 15
	refineHooks    = 10
	refineStyles   = 8
	refinePlatform = 5
)

// Judgement is one analyzed suggestion from the rating history.
type Judgement struct {
	Signals  Signals
	Platform string
	At       time.Time
}

// Preferences are the reinforced patterns found by full refinement.
type Preferences struct {
	ReinforcedHooks    []string `json:"reinforcedHooks"`
	ReinforcedTones    []string `json:"reinforcedTones"`
	ReinforcedStyles   []string `json:"reinforcedStyles"`
	ReinforcedKeywords []string `json:"reinforcedKeywords"`
	PreferredPlatforms []string `json:"preferredPlatforms"`
}

// Dislikes are the patterns found only in disliked suggestions.
type Dislikes struct {
	Tones    []string `json:"avoidTones"`
	Keywords []string `json:"avoidKeywords"`
	Hooks    []string `json:"avoidHooks"`
	Styles   []string `json:"avoidStyles"`
}

// Refine recomputes the training bundle from the full rating history.
// Dominant tones and keywords are liked values that never appear in a
// disliked suggestion, avoid tones the reverse; hooks and styles are
// ranked by liked frequency alone.
func Refine(liked, disliked []Judgement) (Bundle, Preferences, Dislikes) {
	lt, lk, lh, ls, lp := newCounter(), newCounter(), newCounter(), newCounter(), newCounter()
	dt, dk, dh, ds := newCounter(), newCounter(), newCounter(), newCounter()

	for _, j := range liked {
		lt.addAll(j.Signals.Tones, j.At)
		lk.addAll(j.Signals.Keywords, j.At)
		lh.addAll(j.Signals.Hooks, j.At)
		ls.addAll(j.Signals.Styles, j.At)
		lp.add(j.Platform, j.At)
	}
	for _, j := range disliked {
		dt.addAll(j.Signals.Tones, j.At)
		dk.addAll(j.Signals.Keywords, j.At)
		dh.addAll(j.Signals.Hooks, j.At)
		ds.addAll(j.Signals.Styles, j.At)
	}

	dominant := lt.topExcluding(refineTones, dt)
	avoid := dt.topExcluding(refineTones, lt)
	keywords := lk.topExcluding(refineKeywords, dk)
	hooks := lh.top(refineHooks)
	styles := ls.top(refineStyles)

	bundle := Bundle{
		Performance: PerformancePatterns{TopHooks: hooks, Keywords: keywords},
		Aesthetic: AestheticPatterns{
			DominantTones: dominant,
			AvoidTones:    avoid,
			StyleMarkers:  styles,
		},
	}
	prefs := Preferences{
		ReinforcedHooks:    hooks.Values(),
		ReinforcedTones:    dominant.Values(),
		ReinforcedStyles:   styles.Values(),
		ReinforcedKeywords: keywords.Values(),
		PreferredPlatforms: upper(lp.top(refinePlatform).Values()),
	}
	dislikes := Dislikes{
		Tones:    avoid.Values(),
		Keywords: dk.topExcluding(refineKeywords, lk).Values(),
		Hooks:    dh.topExcluding(refineHooks, lh).Values(),
		Styles:   ds.topExcluding(refineStyles, ls).Values(),
	}
	return bundle, prefs, dislikes
}

func upper(values []string) []string {
	for i, v := range values {
		values[i] = strings.ToUpper(v)
	}
	return values
}
