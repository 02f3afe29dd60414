package analyze

import (
	"regexp"
	"sort"
	"strings"

	"github.com/TobiSchelling/Folio/internal/taste"
)

// category maps a pattern value to the substrings that select it. Titles
// are matched lowercased and padded with a space on each side, so a
// pattern such as " vs " also matches at either end.
type category struct {
	value    string
	patterns []string
}

type table []category

// first returns the value of the first category that matches, or fallback.
func (t table) first(title, fallback string) string {
	for _, c := range t {
		if c.matches(title) {
			return c.value
		}
	}
	return fallback
}

// all returns every matching value in table order.
func (t table) all(title string) []string {
	var out []string
	for _, c := range t {
		if c.matches(title) {
			out = append(out, c.value)
		}
	}
	return out
}

func (c category) matches(title string) bool {
	for _, p := range c.patterns {
		if strings.Contains(title, p) {
			return true
		}
	}
	return false
}

var hookTable = table{
	{"how-to promise", []string{"how to", "tutorial", "guide", "step by step", "learn "}},
	{"curiosity gap", []string{"secret", "you won't believe", "nobody tells", "what happens", "the truth", "?"}},
	{"controversy", []string{"controversial", "unpopular opinion", "debate", "hot take", "overrated"}},
	{"listicle", []string{" top ", " best ", "ways to", " things "}},
	{"challenge", []string{"challenge", "i tried", "24 hours", "for a week"}},
	{"transformation promise", []string{"before and after", "transformation", "glow up", "went from"}},
	{"social proof", []string{"everyone", "million", "viral", "most popular"}},
	{"fear of missing out", []string{"you need", "don't miss", "missing out", "before it's gone"}},
	{"insider secret", []string{"insider", "they don't want", "hidden", "leaked"}},
}

var structureTable = table{
	{"comparison", []string{" vs ", " vs. ", "versus", "compared to"}},
	{"how-to", []string{"how to", "tutorial", "guide", "step by step"}},
	{"listicle", []string{" top ", "ways to", " things ", " reasons "}},
	{"question", []string{"?", " why ", " what ", " which "}},
	{"story", []string{"story", "i tried", "when i", "the day"}},
	{"revelation", []string{"revealed", "the truth", "secret", "exposed"}},
}

var sentimentTable = table{
	{"controversial", []string{"controversial", "debate", "unpopular opinion", "hot take", "overrated", "underrated"}},
	{"urgent", []string{"breaking", "urgent", "right now", "warning"}},
	{"educational", []string{"tutorial", "learn", "explained", "how to", "guide"}},
	{"inspiring", []string{"inspiring", "motivation", "dream", "success", "never give up"}},
	{"entertaining", []string{"funny", "prank", " lol", "hilarious", "meme"}},
	{"nostalgic", []string{"remember", "nostalgia", "throwback", "childhood", " 90s"}},
	{"calm", []string{"relaxing", "calm", "asmr", "lofi", "chill"}},
}

var formatTable = table{
	{"tutorial", []string{"tutorial", "how to", "guide", "step by step"}},
	{"review", []string{"review", "unboxing", "tested", "worth it"}},
	{"reaction video", []string{"reacts", "reaction", "reacting"}},
	{"vlog", []string{"vlog", "day in the life", "my day"}},
	{"interview", []string{"interview", "podcast"}},
	{"music video", []string{"official video", "music video", "remix", " cover", "live session"}},
	{"challenge", []string{"challenge"}},
	{"news", []string{"breaking", " news", "update"}},
	{"sketch", []string{"sketch", " skit", "prank"}},
	{"commentary", []string{"hot take", "opinion", "rant"}},
}

var nicheTable = table{
	{"gaming", []string{"game", "gaming", "minecraft", "fortnite", "speedrun"}},
	{"tech", []string{"iphone", " tech", " ai ", "code", "coding", "programming", " app "}},
	{"fitness", []string{"workout", " gym", "fitness", "muscle"}},
	{"food", []string{"recipe", "cooking", " food", "baking"}},
	{"music", []string{" song", "music", " beat", "album", "remix", "guitar"}},
	{"finance", []string{"money", "invest", "stock", "crypto"}},
	{"beauty", []string{"makeup", "skincare", "beauty"}},
	{"travel", []string{"travel", " trip", "vacation"}},
	{"comedy", []string{"funny", "comedy", "prank"}},
	{"education", []string{"explained", "science", "history", "learn"}},
}

var audienceTable = table{
	{"beginners", []string{"beginner", "for dummies", " 101", "first time"}},
	{"experts", []string{"advanced", "pro tips", "expert"}},
	{"students", []string{"student", "exam", "study"}},
	{"professionals", []string{"career", "business", "productivity"}},
	{"gen-z", []string{"meme", " pov", " slay", "no cap"}},
}

var toneTable = table{
	{"energetic", []string{"!", "insane", "crazy", "epic"}},
	{"playful", []string{"funny", " lol", "prank", "silly"}},
	{"dramatic", []string{"shocking", "worst", "destroyed", "gone wrong"}},
	{"sincere", []string{"honest", "real talk", "the truth"}},
	{"chill", []string{"relaxing", "chill", "calm", "lofi"}},
	{"edgy", []string{"unpopular", "hot take", "controversial"}},
	{"wholesome", []string{"wholesome", "cute", "heartwarming", "family"}},
	{"mysterious", []string{"secret", "mystery", "hidden"}},
	{"nostalgic", []string{"remember", "throwback", "childhood"}},
	{"serious", []string{"warning", "important", "explained"}},
	{"intense", []string{"challenge", "extreme", "hardcore", "24 hours"}},
}

var styleTable = table{
	{"clickbait", []string{"you won't believe", "shocking", "!!", "gone wrong"}},
	{"educational", []string{"tutorial", "explained", "learn", "how to", "guide"}},
	{"entertainment", []string{"funny", "prank", "challenge", "reacts"}},
	{"high-energy", []string{"!", "insane", "epic", "crazy"}},
	{"lo-fi", []string{"lofi", "lo-fi", " raw ", "unedited"}},
	{"polished", []string{"cinematic", " 4k", "official"}},
	{"authentic", []string{"honest", "my story", "i tried", "real talk"}},
	{"meme-influenced", []string{"meme", " pov", "when you", "nobody:"}},
}

var triggerTable = table{
	{"curiosity", []string{"?", "secret", " why ", "what happens"}},
	{"fear", []string{"warning", "dangerous", "scary", "avoid"}},
	{"excitement", []string{"!", "insane", "epic", "amazing"}},
	{"nostalgia", []string{"remember", "throwback", "childhood"}},
	{"anger", []string{"worst", "scam", "overrated", "ruined"}},
	{"joy", []string{"happy", "wholesome", "funny"}},
	{"surprise", []string{"shocking", "unexpected", "didn't expect", "plot twist"}},
}

var complexityTable = table{
	{"sophisticated", []string{"analysis", "theory", "philosophy", "deep dive", "in depth"}},
	{"simple", []string{"easy", "simple", "quick", "beginner", " pov"}},
}

var pacingTable = table{
	{"fast", []string{"quick", "in 60 seconds", " fast", "speedrun", "!"}},
	{"slow", []string{"relaxing", "calm", "asmr", "deep dive", "slow"}},
}

var voiceTable = table{
	{"provocative", []string{"unpopular", "hot take", "controversial"}},
	{"educational", []string{"how to", "explained", "tutorial", "guide"}},
	{"conversational", []string{" i ", " my ", " pov"}},
	{"authoritative", []string{"you need", " must ", " should ", " rules"}},
	{"entertaining", []string{"funny", "prank", " lol"}},
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
	"from": true, "as": true, "is": true, "was": true, "are": true, "been": true, "be": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "this": true, "that": true, "what": true,
	"how": true, "why": true, "when": true, "where": true, "who": true, "my": true,
	"your": true, "his": true, "her": true, "its": true, "our": true, "their": true,
	"i": true, "you": true, "we": true,
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// Keywords extracts up to five topic words from a title: lowercase words
// longer than three characters that are not stop words.
func Keywords(title string) []string {
	words := strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(title), " "))
	var out []string
	for _, w := range words {
		if len(w) <= 3 || stopWords[w] {
			continue
		}
		out = append(out, w)
		if len(out) == 5 {
			break
		}
	}
	return out
}

// titleNoise are words common in video titles that say nothing about the topic.
var titleNoise = map[string]bool{
	"official": true, "video": true, "music": true, "full": true, "best": true,
	"just": true, "like": true, "should": true, "might": true, "must": true,
	"they": true, "them": true, "these": true, "those": true, "which": true, "then": true,
}

// TopKeywords returns the n most frequent topic words across titles, ties
// broken alphabetically.
func TopKeywords(titles []string, n int) []string {
	freq := map[string]int{}
	for _, title := range titles {
		for _, w := range strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(title), " ")) {
			if len(w) <= 3 || stopWords[w] || titleNoise[w] {
				continue
			}
			freq[w]++
		}
	}
	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

// Patterns analyzes a title with the keyword tables alone. It is
// deterministic and never fails.
func Patterns(title string) taste.DNA {
	t := " " + strings.ToLower(strings.TrimSpace(title)) + " "

	hooks := hookTable.all(t)
	tones := toneTable.all(t)
	if len(tones) == 0 {
		tones = []string{"neutral"}
	}
	styles := styleTable.all(t)
	if len(styles) == 0 {
		styles = []string{"standard"}
	}
	triggers := triggerTable.all(t)
	structure := structureTable.first(t, "statement")
	complexity := complexityTable.first(t, "moderate")

	return taste.DNA{
		Performance: taste.PerformanceDNA{
			Hooks:          hooks,
			Structure:      structure,
			Length:         len([]rune(title)),
			Keywords:       Keywords(title),
			Sentiment:      sentimentTable.first(t, "neutral"),
			PredictedScore: predictedScore(title, hooks, structure, triggers),
			Format:         formatTable.first(t, "unknown"),
			Niche:          nicheTable.first(t, "unknown"),
			TargetAudience: audienceTable.first(t, "general"),
		},
		Aesthetic: taste.AestheticDNA{
			Tones:             tones,
			Voice:             voiceTable.first(t, "unknown"),
			Complexity:        complexity,
			Styles:            styles,
			TasteScore:        tasteScore(styles, complexity),
			EmotionalTriggers: triggers,
			Pacing:            pacingTable.first(t, "medium"),
		},
		Source: taste.SourcePattern,
	}
}

// PatternSignals is the pattern analysis projected onto training signals.
func PatternSignals(title string) taste.Signals {
	return taste.SignalsFromDNA(Patterns(title))
}

func predictedScore(title string, hooks []string, structure string, triggers []string) int {
	score := 50 + 8*min(len(hooks), 3)
	switch structure {
	case "listicle", "question", "comparison", "how-to":
		score += 5
	}
	if len(triggers) > 0 {
		score += 5
	}
	if n := len([]rune(title)); n < 15 || n > 100 {
		score -= 10
	}
	return clamp(score)
}

func tasteScore(styles []string, complexity string) int {
	score := 50
	for _, s := range styles {
		switch s {
		case "clickbait":
			score -= 10
		case "standard":
		default:
			score += 5
		}
	}
	if complexity == "sophisticated" {
		score += 5
	}
	return clamp(score)
}

func clamp(n int) int {
	return max(0, min(100, n))
}
