package profile

import (
	"fmt"

	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/taste"
)

// View is the client-facing shape of a profile. Bundle is the combined
// bundle; the stored bundles are kept alongside for inspection.
type View struct {
	UserID           string             `json:"userId"`
	Bundle           taste.Bundle       `json:"bundle"`
	CollectionBundle taste.Bundle       `json:"collectionBundle"`
	TrainingBundle   taste.Bundle       `json:"trainingBundle"`
	Preferences      *taste.Preferences `json:"trainedPreferences"`
	Dislikes         *taste.Dislikes    `json:"trainedDislikes"`
	ItemCount        int                `json:"itemCount"`
	RatingCount      int                `json:"ratingCount"`
	Confidence       float64            `json:"confidenceScore"`
	BundleVersion    int                `json:"bundleVersion"`
	LastTrainedAt    *string            `json:"lastTrainedAt"`
	LastTrainingAt   *string            `json:"lastTrainingAt"`
	UpdatedAt        string             `json:"updatedAt"`
}

func newView(p *database.Profile) *View {
	return &View{
		UserID:           p.UserID,
		Bundle:           p.Combined(),
		CollectionBundle: p.Collection,
		TrainingBundle:   p.Training,
		Preferences:      p.Preferences,
		Dislikes:         p.Dislikes,
		ItemCount:        p.ItemCount,
		RatingCount:      p.RatingCount,
		Confidence:       p.Confidence,
		BundleVersion:    p.BundleVersion,
		LastTrainedAt:    p.LastTrainedAt,
		LastTrainingAt:   p.LastTrainingAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// Get returns the user's profile, or nil when none has been built yet.
func (s *Service) Get(userID string) (*View, error) {
	p, err := s.db.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if p == nil {
		return nil, nil
	}
	return newView(p), nil
}

// Source modes.
const (
	ModeCollection = "collection"
	ModeTraining   = "training"
	ModeAll        = "all"
)

// SourceView is one bundle of the profile picked by mode.
type SourceView struct {
	Mode           string       `json:"mode"`
	SourceLabel    string       `json:"sourceLabel"`
	Bundle         taste.Bundle `json:"bundle"`
	ItemCount      int          `json:"itemCount"`
	RatingCount    int          `json:"ratingCount"`
	Confidence     float64      `json:"confidenceScore"`
	LastTrainedAt  *string      `json:"lastTrainedAt"`
	LastTrainingAt *string      `json:"lastTrainingAt"`
}

// Source returns the collection, training or combined bundle. Unknown
// modes fall back to "all". A missing profile yields nil.
func (s *Service) Source(userID, mode string) (*SourceView, error) {
	p, err := s.db.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if p == nil {
		return nil, nil
	}

	v := &SourceView{
		ItemCount:      p.ItemCount,
		RatingCount:    p.RatingCount,
		Confidence:     p.Confidence,
		LastTrainedAt:  p.LastTrainedAt,
		LastTrainingAt: p.LastTrainingAt,
	}
	switch mode {
	case ModeCollection:
		v.Mode = ModeCollection
		v.Bundle = p.Collection
		v.SourceLabel = fmt.Sprintf("Based on %d saved items", p.ItemCount)
	case ModeTraining:
		v.Mode = ModeTraining
		v.Bundle = p.Training
		v.SourceLabel = fmt.Sprintf("Based on %d training ratings", p.RatingCount)
	default:
		v.Mode = ModeAll
		v.Bundle = p.Combined()
		v.SourceLabel = fmt.Sprintf("Combined from %d items + %d ratings", p.ItemCount, p.RatingCount)
	}
	return v, nil
}

// Stats summarizes a user's training activity.
type Stats struct {
	TotalRatings       int     `json:"totalRatings"`
	ComparativeRatings int     `json:"comparativeRatings"`
	BinaryRatings      int     `json:"binaryRatings"`
	Confidence         float64 `json:"confidenceScore"`
	LastTrainingAt     *string `json:"lastTrainingAt"`
	PendingSuggestions int     `json:"pendingSuggestions"`
}

// Stats reports rating counts, confidence and the pending queue size.
func (s *Service) Stats(userID string) (*Stats, error) {
	counts, err := s.db.CountRatings(userID)
	if err != nil {
		return nil, fmt.Errorf("counting ratings: %w", err)
	}
	pending, err := s.db.CountPending(userID)
	if err != nil {
		return nil, fmt.Errorf("counting suggestions: %w", err)
	}
	p, err := s.db.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	st := &Stats{
		TotalRatings:       counts.Total,
		ComparativeRatings: counts.Comparative,
		BinaryRatings:      counts.Binary,
		PendingSuggestions: pending,
	}
	if p != nil {
		st.Confidence = p.Confidence
		st.LastTrainingAt = p.LastTrainingAt
	}
	return st, nil
}

// Summary reports whether the collection bundle is behind the collection.
type Summary struct {
	TotalItems    int  `json:"totalItems"`
	AnalyzedItems int  `json:"analyzedItems"`
	NeedsRebuild  bool `json:"needsRebuild"`
}

// CollectionSummary compares the collection with its analyses and the
// item count the profile was last built from.
func (s *Service) CollectionSummary(userID string) (*Summary, error) {
	total, err := s.db.CountItems(userID)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	analyzed, err := s.db.AnalyzedItems(userID)
	if err != nil {
		return nil, fmt.Errorf("loading analyses: %w", err)
	}
	p, err := s.db.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	built := 0
	if p != nil {
		built = p.ItemCount
	}
	return &Summary{
		TotalItems:    total,
		AnalyzedItems: len(analyzed),
		NeedsRebuild:  len(analyzed) < total || built != total,
	}, nil
}
