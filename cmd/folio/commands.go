package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/generate"
	"github.com/TobiSchelling/Folio/internal/profile"
)

// withUser opens the app, resolves the acting user and runs fn.
func withUser(fn func(cmd *cobra.Command, args []string, a *app, u *database.User) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := resolveUser(a.db)
		if err != nil {
			return err
		}
		return fn(cmd, args, a, u)
	}
}

var saveCmd = &cobra.Command{
	Use:   "save [url]",
	Short: "Save a URL to the collection, fetching its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: withUser(func(cmd *cobra.Command, args []string, a *app, u *database.User) error {
		it, err := a.collection.SaveURL(cmd.Context(), u.ID, args[0])
		if err != nil {
			return err
		}
		a.collection.Wait()

		fmt.Printf("Saved [%s] %s\n", it.Platform, it.Title)
		fmt.Printf("  id: %s\n", it.ID)
		if it.Views != nil {
			fmt.Printf("  views: %d\n", *it.Views)
		}
		if it.ViewsPerDay != nil {
			fmt.Printf("  views/day: %.1f\n", *it.ViewsPerDay)
		}
		return nil
	}),
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [item-id]",
	Short: "Analyze one saved item and print its content DNA",
	Args:  cobra.ExactArgs(1),
	RunE: withUser(func(cmd *cobra.Command, args []string, a *app, u *database.User) error {
		it, an, err := a.collection.Analyze(cmd.Context(), u.ID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", it.Title)
		fmt.Printf("  source: %s\n", an.Source)
		fmt.Printf("  hooks: %s\n", strings.Join(an.Performance.Hooks, ", "))
		fmt.Printf("  structure: %s\n", an.Performance.Structure)
		fmt.Printf("  tone: %s\n", strings.Join(an.Aesthetic.Tones, ", "))
		fmt.Printf("  voice: %s\n", an.Aesthetic.Voice)
		return nil
	}),
}

var rebuildForce bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the taste profile from the collection",
	RunE: withUser(func(cmd *cobra.Command, args []string, a *app, u *database.User) error {
		res, err := a.profile.Rebuild(cmd.Context(), u.ID, rebuildForce)
		if errors.Is(err, profile.ErrNoItems) {
			fmt.Println("No items saved yet. Save some content first: folio save <url>")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Profile rebuilt from %d items (%d analyzed)\n", res.ItemCount, res.Analyzed)
		return nil
	}),
}

func init() {
	rebuildCmd.Flags().BoolVar(&rebuildForce, "force", false, "Re-analyze items that already have an analysis")
}

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Refine the taste profile from all training ratings",
	RunE: withUser(func(cmd *cobra.Command, args []string, a *app, u *database.User) error {
		res, err := a.profile.Refine(cmd.Context(), u.ID)
		if errors.Is(err, profile.ErrNotEnoughRatings) {
			fmt.Printf("Only %d ratings so far; need at least %d.\n", res.RatingCount, profile.MinRatingsToRefine)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Refined from %d ratings, confidence %.0f%%\n", res.RatingCount, res.Confidence*100)
		return nil
	}),
}

var refreshItem string

var refreshMetricsCmd = &cobra.Command{
	Use:   "refresh-metrics",
	Short: "Re-fetch YouTube statistics for saved items",
	RunE: withUser(func(cmd *cobra.Command, args []string, a *app, u *database.User) error {
		res, err := a.collection.RefreshMetrics(cmd.Context(), u.ID, refreshItem)
		if err != nil {
			return err
		}
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		fmt.Printf("Items: %d, YouTube videos: %d, updated: %d, errors: %d\n",
			res.Total, res.YouTubeVideos, res.Updated, res.Errors)
		return nil
	}),
}

func init() {
	refreshMetricsCmd.Flags().StringVar(&refreshItem, "item", "", "Refresh only this item")
}

var discoverCount int

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover new training suggestions",
	RunE: withUser(func(cmd *cobra.Command, args []string, a *app, u *database.User) error {
		stored, err := a.discoverer.Discover(cmd.Context(), u.ID, discoverCount)
		if err != nil {
			return err
		}
		fmt.Printf("Discovered %d suggestions\n", len(stored))
		for _, s := range stored {
			fmt.Printf("  [%s %.1f] %s\n", s.SourceType, s.Relevance, s.Title)
		}
		return nil
	}),
}

func init() {
	discoverCmd.Flags().IntVarP(&discoverCount, "count", "n", 0, "Number of suggestions (defaults to training.batch_size)")
}

var (
	genTopic     string
	genPlatform  string
	genCount     int
	genRandomize bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate titles in your taste",
	RunE: withUser(func(cmd *cobra.Command, args []string, a *app, u *database.User) error {
		req := generate.Request{Topic: genTopic, Platform: genPlatform, Count: genCount}
		if genRandomize {
			req.Mode = generate.ModeRandomize
		}
		variants, err := a.generator.Generate(cmd.Context(), u.ID, req)
		if err != nil {
			return err
		}
		a.metrics.IncGenerated(req.Mode, len(variants))
		for i, v := range variants {
			fmt.Printf("%2d. %s\n", i+1, v.Text)
			fmt.Printf("    performance %d/100: %s\n", v.PerformanceScore, v.PerformanceRationale)
			fmt.Printf("    taste %d/100: %s\n", v.TasteScore, v.TasteRationale)
		}
		return nil
	}),
}

func init() {
	generateCmd.Flags().StringVarP(&genTopic, "topic", "t", "", "Topic to write titles for")
	generateCmd.Flags().StringVarP(&genPlatform, "platform", "p", "YOUTUBE_SHORT", "Target platform")
	generateCmd.Flags().IntVarP(&genCount, "count", "n", generate.DefaultCount, "Number of variants")
	generateCmd.Flags().BoolVar(&genRandomize, "randomize", false, "Generate hooks inspired by saved items instead of a topic")
}

var profileMode string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the taste profile as Markdown",
	RunE: withUser(func(cmd *cobra.Command, args []string, a *app, u *database.User) error {
		if profileMode != "" {
			src, err := a.profile.Source(u.ID, profileMode)
			if err != nil {
				return err
			}
			fmt.Printf("%s (confidence %.0f%%)\n\n", src.SourceLabel, src.Confidence*100)
		}
		v, err := a.profile.Get(u.ID)
		if err != nil {
			return err
		}
		if v == nil {
			fmt.Println("No taste profile yet. Save some content and run: folio rebuild")
			return nil
		}
		fmt.Println(profile.Markdown(v))
		return nil
	}),
}

func init() {
	profileCmd.Flags().StringVar(&profileMode, "mode", "", "Also show the source summary: collection, training or all")
}
