package training

import (
	_ "embed"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/platform"
	"github.com/TobiSchelling/Folio/internal/taste"
)

//go:embed curated.yaml
var curatedYAML []byte

// Category is a group of curated suggestions.
type Category struct {
	Name     string        `yaml:"name"`
	Keywords []string      `yaml:"keywords"`
	Items    []CuratedItem `yaml:"items"`
}

type CuratedItem struct {
	Title string `yaml:"title"`
	URL   string `yaml:"url"`
}

// Curated returns the embedded curated list. It panics if the embedded
// file is malformed, which the package tests rule out.
func Curated() []Category {
	var doc struct {
		Categories []Category `yaml:"categories"`
	}
	if err := yaml.Unmarshal(curatedYAML, &doc); err != nil {
		panic("training: malformed curated.yaml: " + err.Error())
	}
	return doc.Categories
}

// curatedCandidates tags each curated item by how its category relates to
// the profile: SIMILAR when a category keyword is among the dominant tones
// or keywords, EXPLORATION otherwise, RANDOM when the profile is empty.
func curatedCandidates(categories []Category, b taste.Bundle) []candidate {
	signals := map[string]bool{}
	for _, v := range b.Aesthetic.DominantTones.Values() {
		signals[strings.ToLower(v)] = true
	}
	for _, v := range b.Performance.Keywords.Values() {
		signals[strings.ToLower(v)] = true
	}

	var out []candidate
	for _, cat := range categories {
		sourceType, relevance := database.SourceRandom, relevanceTrending
		if len(signals) > 0 {
			sourceType, relevance = database.SourceExploration, relevanceOther
			for _, k := range cat.Keywords {
				if signals[k] {
					sourceType, relevance = database.SourceSimilar, relevanceSimilar
					break
				}
			}
		}

		for _, it := range cat.Items {
			p, _, ok := platform.Detect(it.URL)
			if !ok {
				continue
			}
			out = append(out, candidate{
				Title:      it.Title,
				URL:        it.URL,
				Platform:   string(p),
				Thumbnail:  platform.Thumbnail(it.URL, p),
				Relevance:  relevance,
				SourceType: sourceType,
				Query:      "curated:" + cat.Name,
			})
		}
	}
	return out
}
