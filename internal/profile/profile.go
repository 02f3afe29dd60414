// Package profile maintains users' taste profiles: full rebuilds from the
// collection, per-rating nudges, full refinement from the rating history,
// and the read views served to clients.
package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/analyze"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/taste"
)

var (
	ErrNoItems          = errors.New("No collection items to analyze")
	ErrNotEnoughRatings = errors.New("Need at least 3 ratings to refine profile")
	ErrInvalidRating    = errors.New("invalid rating")
	ErrNotFound         = errors.New("suggestion not found")
)

// MinRatingsToRefine is the rating count below which Refine refuses to run.
const MinRatingsToRefine = 3

// Service builds and updates taste profiles.
type Service struct {
	db       *database.DB
	analyzer *analyze.Analyzer
	policy   taste.Eviction
	now      func() time.Time
}

// NewService creates a profile service. policy selects how incremental
// refinement evicts values from full lists.
func NewService(db *database.DB, analyzer *analyze.Analyzer, policy taste.Eviction) *Service {
	return &Service{db: db, analyzer: analyzer, policy: policy, now: time.Now}
}

func (s *Service) loadOrNew(userID string) (*database.Profile, error) {
	p, err := s.db.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if p == nil {
		p = &database.Profile{UserID: userID}
	}
	return p, nil
}

// RebuildResult reports a full rebuild.
type RebuildResult struct {
	ItemCount int   `json:"itemCount"`
	Analyzed  int   `json:"analyzed"`
	Profile   *View `json:"profile"`
}

// Rebuild analyzes every item lacking an analysis (every item when force
// is set) and replaces the collection bundle with their aggregation.
// A user without items gets ErrNoItems and nothing is written.
func (s *Service) Rebuild(ctx context.Context, userID string, force bool) (*RebuildResult, error) {
	items, err := s.db.AllItems(userID)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoItems
	}

	existing, err := s.db.AnalyzedItems(userID)
	if err != nil {
		return nil, fmt.Errorf("loading analyses: %w", err)
	}

	log.Info().Str("user", userID).Int("items", len(items)).Bool("force", force).Msg("rebuilding taste profile")

	analyzed := 0
	inputs := make([]taste.AnalyzedItem, 0, len(items))
	for i, it := range items {
		a, ok := existing[it.ID]
		dna := a.DNA
		if force || !ok {
			dna, err = s.analyzer.Analyze(ctx, analyze.Input{
				Title:      it.Title,
				Platform:   it.Platform,
				Views:      it.Views,
				Engagement: it.Engagement,
			})
			if err != nil {
				return nil, err
			}
			if err := s.db.UpsertAnalysis(it.ID, dna); err != nil {
				return nil, fmt.Errorf("storing analysis: %w", err)
			}
			analyzed++
			log.Debug().Int("n", i+1).Int("of", len(items)).Str("source", dna.Source).Msg("analyzed item")
		}
		inputs = append(inputs, taste.AnalyzedItem{DNA: dna, SavedAt: database.ParseTime(it.CreatedAt)})
	}

	p, err := s.loadOrNew(userID)
	if err != nil {
		return nil, err
	}
	p.Collection = taste.Aggregate(inputs)
	p.ItemCount = len(items)
	trainedAt := database.FormatTime(s.now())
	p.LastTrainedAt = &trainedAt
	if err := s.db.SaveProfile(p); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	log.Info().Str("user", userID).Int("items", len(items)).Int("analyzed", analyzed).Msg("rebuild complete")
	return &RebuildResult{ItemCount: len(items), Analyzed: analyzed, Profile: newView(p)}, nil
}

// RatingInput is one rating as submitted by a client.
type RatingInput struct {
	RatingType     string  `json:"ratingType"`
	Outcome        string  `json:"outcome"`
	SuggestionAID  *string `json:"suggestionAId"`
	SuggestionBID  *string `json:"suggestionBId"`
	SuggestionID   *string `json:"suggestionId"`
	ResponseTimeMs *int64  `json:"responseTimeMs"`
}

// Validate checks that the outcome fits the rating type and that the
// suggestions the type needs are present.
func (in *RatingInput) Validate() error {
	t, o := taste.RatingType(in.RatingType), taste.Outcome(in.Outcome)
	switch t {
	case taste.Comparative:
		if empty(in.SuggestionAID) || empty(in.SuggestionBID) {
			return fmt.Errorf("%w: COMPARATIVE ratings need suggestionAId and suggestionBId", ErrInvalidRating)
		}
		if *in.SuggestionAID == *in.SuggestionBID {
			return fmt.Errorf("%w: suggestionAId and suggestionBId must differ", ErrInvalidRating)
		}
	case taste.Binary:
		if empty(in.SuggestionID) {
			return fmt.Errorf("%w: BINARY ratings need suggestionId", ErrInvalidRating)
		}
	default:
		return fmt.Errorf("%w: ratingType must be COMPARATIVE or BINARY", ErrInvalidRating)
	}
	if !taste.ValidOutcome(t, o) {
		return fmt.Errorf("%w: outcome %q is not valid for %s ratings", ErrInvalidRating, in.Outcome, in.RatingType)
	}
	return nil
}

func (in *RatingInput) ids() []string {
	if taste.RatingType(in.RatingType) == taste.Comparative {
		return []string{*in.SuggestionAID, *in.SuggestionBID}
	}
	return []string{*in.SuggestionID}
}

func empty(s *string) bool {
	return s == nil || *s == ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RecordRating appends a rating, marks its suggestions and nudges the
// training bundle with the liked and disliked titles.
func (s *Service) RecordRating(ctx context.Context, userID string, in RatingInput) (*database.Rating, *View, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}

	ids := in.ids()
	suggestions, err := s.db.SuggestionsByIDs(userID, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("loading suggestions: %w", err)
	}
	for _, id := range ids {
		if _, ok := suggestions[id]; !ok {
			return nil, nil, ErrNotFound
		}
	}

	likedIDs, dislikedIDs := taste.Resolve(taste.RatingType(in.RatingType), taste.Outcome(in.Outcome),
		deref(in.SuggestionAID), deref(in.SuggestionBID), deref(in.SuggestionID))
	liked := s.signalsFor(ctx, likedIDs, suggestions)
	disliked := s.signalsFor(ctx, dislikedIDs, suggestions)

	p, err := s.loadOrNew(userID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	p.Training = taste.ApplyRating(p.Training, liked, disliked, now, s.policy)
	p.RatingCount++
	p.Confidence = taste.Confidence(p.RatingCount)
	at := database.FormatTime(now)
	p.LastTrainingAt = &at

	r := &database.Rating{
		UserID:         userID,
		RatingType:     in.RatingType,
		Outcome:        in.Outcome,
		SuggestionAID:  in.SuggestionAID,
		SuggestionBID:  in.SuggestionBID,
		SuggestionID:   in.SuggestionID,
		ResponseTimeMs: in.ResponseTimeMs,
	}
	status := database.StatusRated
	if taste.Outcome(in.Outcome) == taste.Skipped {
		status = database.StatusSkipped
	}
	if err := s.db.RecordRating(r, ids, status, p); err != nil {
		return nil, nil, err
	}

	log.Info().Str("user", userID).Str("outcome", in.Outcome).Int("liked", len(liked)).
		Int("disliked", len(disliked)).Float64("confidence", p.Confidence).Msg("rating recorded")
	return r, newView(p), nil
}

// signalsFor returns the title signals of the given suggestions, analyzing
// and caching those that have none yet.
func (s *Service) signalsFor(ctx context.Context, ids []string, suggestions map[string]database.Suggestion) []taste.Signals {
	out := make([]taste.Signals, 0, len(ids))
	for _, id := range ids {
		sg, ok := suggestions[id]
		if !ok {
			continue
		}
		if sg.Signals != nil {
			out = append(out, *sg.Signals)
			continue
		}
		sig := s.analyzer.Signals(ctx, sg.Title)
		if err := s.db.SaveSuggestionSignals(id, sig); err != nil {
			log.Warn().Err(err).Str("suggestion", id).Msg("caching suggestion signals")
		}
		sg.Signals = &sig
		suggestions[id] = sg
		out = append(out, sig)
	}
	return out
}

// RefineResult reports a full refinement.
type RefineResult struct {
	Success         bool    `json:"success"`
	RatingCount     int     `json:"ratingCount"`
	Confidence      float64 `json:"confidenceScore"`
	PatternsUpdated bool    `json:"patternsUpdated"`
	Profile         *View   `json:"profile,omitempty"`
}

// Refine replays the whole rating history and replaces the training
// bundle, trained preferences and trained dislikes. With fewer than three
// ratings it returns ErrNotEnoughRatings, together with a result carrying
// the current count, and writes nothing.
func (s *Service) Refine(ctx context.Context, userID string) (*RefineResult, error) {
	ratings, err := s.db.ListRatings(userID)
	if err != nil {
		return nil, fmt.Errorf("loading ratings: %w", err)
	}
	if len(ratings) < MinRatingsToRefine {
		return &RefineResult{RatingCount: len(ratings)}, ErrNotEnoughRatings
	}

	var likedIDs, dislikedIDs []string
	likedSeen, dislikedSeen := map[string]bool{}, map[string]bool{}
	ratedAt := map[string]time.Time{}
	for _, r := range ratings {
		liked, disliked := taste.Resolve(taste.RatingType(r.RatingType), taste.Outcome(r.Outcome),
			deref(r.SuggestionAID), deref(r.SuggestionBID), deref(r.SuggestionID))
		at := database.ParseTime(r.CreatedAt)
		for _, id := range liked {
			if id != "" && !likedSeen[id] {
				likedSeen[id] = true
				likedIDs = append(likedIDs, id)
			}
			ratedAt[id] = at
		}
		for _, id := range disliked {
			if id != "" && !dislikedSeen[id] {
				dislikedSeen[id] = true
				dislikedIDs = append(dislikedIDs, id)
			}
			ratedAt[id] = at
		}
	}

	suggestions, err := s.db.SuggestionsByIDs(userID, append(append([]string{}, likedIDs...), dislikedIDs...))
	if err != nil {
		return nil, fmt.Errorf("loading suggestions: %w", err)
	}

	judge := func(ids []string) []taste.Judgement {
		signals := s.signalsFor(ctx, ids, suggestions)
		out := make([]taste.Judgement, 0, len(signals))
		i := 0
		for _, id := range ids {
			sg, ok := suggestions[id]
			if !ok {
				continue
			}
			out = append(out, taste.Judgement{Signals: signals[i], Platform: sg.Platform, At: ratedAt[id]})
			i++
		}
		return out
	}
	liked, disliked := judge(likedIDs), judge(dislikedIDs)

	bundle, prefs, dislikes := taste.Refine(liked, disliked)

	p, err := s.loadOrNew(userID)
	if err != nil {
		return nil, err
	}
	p.Training = bundle
	p.Preferences = &prefs
	p.Dislikes = &dislikes
	p.RatingCount = len(ratings)
	p.Confidence = taste.Confidence(len(ratings))
	at := database.FormatTime(s.now())
	p.LastTrainingAt = &at
	if err := s.db.SaveProfile(p); err != nil {
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	log.Info().Str("user", userID).Int("ratings", len(ratings)).Int("liked", len(liked)).
		Int("disliked", len(disliked)).Float64("confidence", p.Confidence).Msg("profile refined")
	return &RefineResult{
		Success:         true,
		RatingCount:     len(ratings),
		Confidence:      p.Confidence,
		PatternsUpdated: true,
		Profile:         newView(p),
	}, nil
}
