// Package pipeline runs the periodic maintenance pass over a user's data:
// metric refresh, thumbnail rescan, profile rebuild, refinement and
// suggestion top-up.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/collection"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/profile"
	"github.com/TobiSchelling/Folio/internal/training"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a run for one user.
type Result struct {
	UserID string
	Name   string
	Steps  []StepResult
}

// Failed reports whether any step returned an error.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline orchestrates the maintenance steps.
type Pipeline struct {
	db         *database.DB
	collection *collection.Service
	profile    *profile.Service
	discoverer *training.Discoverer
	minPending int
}

// New creates a new pipeline. discoverer may be nil to skip the top-up step.
func New(db *database.DB, coll *collection.Service, prof *profile.Service, disc *training.Discoverer, minPending int) *Pipeline {
	return &Pipeline{
		db:         db,
		collection: coll,
		profile:    prof,
		discoverer: disc,
		minPending: minPending,
	}
}

// RunAll runs the pipeline for every user.
func (p *Pipeline) RunAll(ctx context.Context) ([]*Result, error) {
	users, err := p.db.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	results := make([]*Result, 0, len(users))
	for _, u := range users {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, p.Run(ctx, &u))
	}
	return results, nil
}

// Run executes all steps for u. A failing step is recorded and the run
// continues with the next one.
func (p *Pipeline) Run(ctx context.Context, u *database.User) *Result {
	r := &Result{UserID: u.ID, Name: u.Name}
	logger := log.With().Str("user", u.Name).Logger()

	logger.Info().Msg("Step 1/5: Refreshing metrics...")
	r.Steps = append(r.Steps, p.runRefresh(ctx, u.ID))

	logger.Info().Msg("Step 2/5: Rescanning thumbnails...")
	r.Steps = append(r.Steps, p.runRescan(ctx, u.ID))

	logger.Info().Msg("Step 3/5: Rebuilding profile...")
	r.Steps = append(r.Steps, p.runRebuild(ctx, u.ID))

	logger.Info().Msg("Step 4/5: Refining from ratings...")
	r.Steps = append(r.Steps, p.runRefine(ctx, u.ID))

	logger.Info().Msg("Step 5/5: Topping up suggestions...")
	r.Steps = append(r.Steps, p.runTopUp(ctx, u.ID))

	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun(u *database.User) *Result {
	r := &Result{UserID: u.ID, Name: u.Name}

	sum, err := p.profile.CollectionSummary(u.ID)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Collection", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Refresh",
		Summary: fmt.Sprintf("[dry-run] %d items would be checked for YouTube metrics", sum.TotalItems),
	})
	r.Steps = append(r.Steps, StepResult{
		Name:    "Rebuild",
		Summary: fmt.Sprintf("[dry-run] %d of %d items need analysis", sum.TotalItems-sum.AnalyzedItems, sum.TotalItems),
	})

	counts, _ := p.db.CountRatings(u.ID)
	if counts.Total >= profile.MinRatingsToRefine {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Refine",
			Summary: fmt.Sprintf("[dry-run] Would refine from %d ratings", counts.Total),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Refine",
			Summary: fmt.Sprintf("[dry-run] Only %d ratings, refinement skipped", counts.Total),
		})
	}

	pending, _ := p.db.CountPending(u.ID)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Top up",
		Summary: fmt.Sprintf("[dry-run] %d pending suggestions (minimum %d)", pending, p.minPending),
	})
	return r
}

func (p *Pipeline) runRefresh(ctx context.Context, userID string) StepResult {
	res, err := p.collection.RefreshMetrics(ctx, userID, "")
	if err != nil {
		return StepResult{Name: "Refresh", Err: err}
	}
	summary := fmt.Sprintf("Updated %d of %d YouTube videos, %d errors", res.Updated, res.YouTubeVideos, res.Errors)
	if res.Message != "" {
		summary = res.Message
	}
	return StepResult{Name: "Refresh", Summary: summary}
}

func (p *Pipeline) runRescan(ctx context.Context, userID string) StepResult {
	res, err := p.collection.Rescan(ctx, userID)
	if err != nil {
		return StepResult{Name: "Rescan", Err: err}
	}
	return StepResult{
		Name:    "Rescan",
		Summary: fmt.Sprintf("Updated %d of %d thumbnails", res.Updated, res.Total),
	}
}

func (p *Pipeline) runRebuild(ctx context.Context, userID string) StepResult {
	res, err := p.profile.Rebuild(ctx, userID, false)
	if errors.Is(err, profile.ErrNoItems) {
		return StepResult{Name: "Rebuild", Summary: "No items saved, profile left unchanged"}
	}
	if err != nil {
		return StepResult{Name: "Rebuild", Err: err}
	}
	return StepResult{
		Name:    "Rebuild",
		Summary: fmt.Sprintf("Profile built from %d items (%d newly analyzed)", res.ItemCount, res.Analyzed),
	}
}

func (p *Pipeline) runRefine(ctx context.Context, userID string) StepResult {
	res, err := p.profile.Refine(ctx, userID)
	if errors.Is(err, profile.ErrNotEnoughRatings) {
		return StepResult{Name: "Refine", Summary: fmt.Sprintf("Only %d ratings, skipped", res.RatingCount)}
	}
	if err != nil {
		return StepResult{Name: "Refine", Err: err}
	}
	return StepResult{
		Name:    "Refine",
		Summary: fmt.Sprintf("Refined from %d ratings, confidence %.0f%%", res.RatingCount, res.Confidence*100),
	}
}

func (p *Pipeline) runTopUp(ctx context.Context, userID string) StepResult {
	if p.discoverer == nil {
		return StepResult{Name: "Top up", Summary: "Discovery disabled"}
	}
	pending, err := p.db.CountPending(userID)
	if err != nil {
		return StepResult{Name: "Top up", Err: err}
	}
	if pending >= p.minPending {
		return StepResult{Name: "Top up", Summary: fmt.Sprintf("%d suggestions pending, nothing to do", pending)}
	}
	stored, err := p.discoverer.Discover(ctx, userID, p.discoverer.BatchSize())
	if err != nil {
		return StepResult{Name: "Top up", Err: err}
	}
	return StepResult{Name: "Top up", Summary: fmt.Sprintf("Discovered %d suggestions", len(stored))}
}
