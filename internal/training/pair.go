package training

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/database"
)

// pairWindow is how many of the newest pending suggestions pair selection considers.
const pairWindow = 10

// Pair is two suggestions shown side by side for a comparative rating.
type Pair struct {
	A database.Suggestion `json:"suggestionA"`
	B database.Suggestion `json:"suggestionB"`
}

// SelectPair picks a pair from pending suggestions, newest first. When
// both kinds are present it pairs a random SIMILAR suggestion with a
// random EXPLORATION one; otherwise it takes the newest and a random
// other. pick(n) returns an index in [0, n). Returns nil with fewer than
// two suggestions.
func SelectPair(pending []database.Suggestion, pick func(n int) int) *Pair {
	if len(pending) < 2 {
		return nil
	}
	if len(pending) > pairWindow {
		pending = pending[:pairWindow]
	}

	var similar, exploration []database.Suggestion
	for _, s := range pending {
		switch s.SourceType {
		case database.SourceSimilar:
			similar = append(similar, s)
		case database.SourceExploration:
			exploration = append(exploration, s)
		}
	}
	if len(similar) > 0 && len(exploration) > 0 {
		return &Pair{A: similar[pick(len(similar))], B: exploration[pick(len(exploration))]}
	}

	b := pending[1]
	if len(pending) > 2 {
		b = pending[pick(len(pending)-1)+1]
	}
	return &Pair{A: pending[0], B: b}
}

// NextPair returns a pair for the user. With too few pending suggestions
// it waits for a discovery in flight and retries, then forces one more
// discovery and retries once. Returns nil when nothing could be found.
func (d *Discoverer) NextPair(ctx context.Context, userID string) (*Pair, error) {
	pair, err := d.pair(userID)
	if err != nil || pair != nil {
		return pair, err
	}

	if d.Running(userID) {
		log.Debug().Str("user", userID).Msg("waiting for in-flight discovery")
		if _, err := d.Discover(ctx, userID, d.opts.BatchSize); err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("joined discovery failed")
		}
		if pair, err = d.pair(userID); err != nil || pair != nil {
			return pair, err
		}
	}

	log.Info().Str("user", userID).Msg("no pair available, forcing discovery")
	if _, err := d.Discover(ctx, userID, d.opts.BatchSize); err != nil {
		return nil, err
	}
	return d.pair(userID)
}

func (d *Discoverer) pair(userID string) (*Pair, error) {
	pending, err := d.db.NewestPending(userID, pairWindow)
	if err != nil {
		return nil, fmt.Errorf("loading pending suggestions: %w", err)
	}
	return SelectPair(pending, rand.IntN), nil
}

// PendingList returns up to 20 pending suggestions by relevance. An empty
// queue triggers a discovery (or joins the one in flight) before retrying.
func (d *Discoverer) PendingList(ctx context.Context, userID string) ([]database.Suggestion, error) {
	list, err := d.db.PendingByRelevance(userID, 20)
	if err != nil {
		return nil, fmt.Errorf("loading pending suggestions: %w", err)
	}
	if len(list) > 0 {
		return list, nil
	}
	if _, err := d.Discover(ctx, userID, d.opts.BatchSize); err != nil {
		return nil, err
	}
	return d.db.PendingByRelevance(userID, 20)
}
