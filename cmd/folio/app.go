package main

import (
	"time"

	"github.com/TobiSchelling/Folio/internal/analyze"
	"github.com/TobiSchelling/Folio/internal/collection"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/extension"
	"github.com/TobiSchelling/Folio/internal/generate"
	"github.com/TobiSchelling/Folio/internal/llm"
	"github.com/TobiSchelling/Folio/internal/metadata"
	"github.com/TobiSchelling/Folio/internal/profile"
	"github.com/TobiSchelling/Folio/internal/server"
	"github.com/TobiSchelling/Folio/internal/taste"
	"github.com/TobiSchelling/Folio/internal/telemetry"
	"github.com/TobiSchelling/Folio/internal/training"
	"github.com/TobiSchelling/Folio/internal/youtube"
)

// app holds the services built from the loaded config.
type app struct {
	db         *database.DB
	metrics    telemetry.Recorder
	provider   llm.Provider
	youtube    *youtube.Client
	fetcher    *metadata.Fetcher
	collection *collection.Service
	profile    *profile.Service
	discoverer *training.Discoverer
	generator  *generate.Generator
	translator *generate.Translator
}

func newApp() (*app, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}

	metrics := telemetry.NewRecorder(cfg.Metrics.Enabled, nil)
	provider := llm.CreateProvider(cfg.LLM)
	yt := youtube.NewClient(
		cfg.YouTubeAPIKey(),
		cfg.YouTube.BaseURL,
		time.Duration(cfg.YouTube.SearchTimeout)*time.Second,
	)
	cache := telemetry.InstrumentCache(metadata.NewCache(cfg.Cache.Enabled, cfg.Cache.SizeMB), metrics)
	fetcher := metadata.NewFetcher(yt, cache)
	analyzer := analyze.New(provider, cfg.Analysis.RatePerSecond)

	return &app{
		db:         db,
		metrics:    metrics,
		provider:   provider,
		youtube:    yt,
		fetcher:    fetcher,
		collection: collection.NewService(db, yt, fetcher, analyzer, cfg.Analysis.AutoOnSave),
		profile:    profile.NewService(db, analyzer, taste.ParseEviction(cfg.Profile.Eviction)),
		discoverer: training.NewDiscoverer(db, provider, yt, training.NewFeedSource(cfg.Training.Feeds), training.Options{
			MinPending: cfg.Training.MinPending,
			BatchSize:  cfg.Training.BatchSize,
			Expiry:     time.Duration(cfg.Training.ExpiryDays) * 24 * time.Hour,
			Observe:    metrics.ObserveDiscovery,
		}),
		generator:  generate.NewGenerator(db, provider),
		translator: generate.NewTranslator(provider),
	}, nil
}

func (a *app) serverDeps() server.Deps {
	return server.Deps{
		DB:             a.db,
		Collection:     a.collection,
		Fetcher:        a.fetcher,
		Profile:        a.profile,
		Discoverer:     a.discoverer,
		Generator:      a.generator,
		Translator:     a.translator,
		Relay:          extension.NewRelay(a.db),
		Metrics:        a.metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
}

func (a *app) Close() error {
	return a.db.Close()
}
