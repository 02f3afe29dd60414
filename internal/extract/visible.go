package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var viewsPattern = regexp.MustCompile(`([\d.]+)([kmb]?)`)

// ParseViews reads counts such as "1.2M views", "12,345" or "3k".
func ParseViews(text string) (int64, bool) {
	s := strings.ToLower(text)
	s = strings.NewReplacer(",", "", " ", "", "\t", "", "\n", "", "views", "", "view", "").Replace(s)
	m := viewsPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "k":
		n *= 1e3
	case "m":
		n *= 1e6
	case "b":
		n *= 1e9
	}
	return int64(math.Round(n)), true
}

// Candidate is one video element's box in viewport coordinates.
type Candidate struct {
	Top     float64 `json:"top"`
	Height  float64 `json:"height"`
	Playing bool    `json:"playing"`
}

// Visibility is the fraction of c inside a viewport of height h.
func Visibility(c Candidate, h float64) float64 {
	bottom := c.Top + c.Height
	if c.Height <= 0 || bottom < 0 || c.Top > h {
		return 0
	}
	return (math.Min(h, bottom) - math.Max(0, c.Top)) / c.Height
}

// MostVisible picks the video the user is watching in an infinite-scroll
// feed: the one nearest the viewport center, weighted by how much of it is
// on screen, with a small bonus for playback. Boxes under 100px tall or at
// most half visible are ignored. Returns -1 when nothing qualifies.
func MostVisible(viewportHeight float64, candidates []Candidate) int {
	best, bestScore := -1, -1.0
	half := viewportHeight / 2
	for i, c := range candidates {
		if c.Height < 100 {
			continue
		}
		vis := Visibility(c, viewportHeight)
		if vis <= 0.5 {
			continue
		}
		center := c.Top + c.Height/2
		centerScore := math.Max(0, 1-math.Abs(center-half)/half)
		score := centerScore*2 + vis
		if c.Playing {
			score += 0.1
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
