package database

import (
	"database/sql"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/taste"
)

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    name TEXT UNIQUE NOT NULL,
    api_token TEXT UNIQUE NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS collection_items (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    url TEXT NOT NULL,
    platform TEXT NOT NULL,
    content_type TEXT NOT NULL DEFAULT 'VIDEO',
    thumbnail TEXT,
    video_id TEXT,
    channel_id TEXT,
    author TEXT,
    published_at TEXT,
    views INTEGER,
    likes INTEGER,
    comments INTEGER,
    engagement REAL,
    channel_subscribers INTEGER,
    views_per_day REAL,
    viral_velocity REAL,
    growth_rate REAL,
    age_in_days INTEGER,
    initial_views INTEGER,
    initial_likes INTEGER,
    initial_comments INTEGER,
    last_checked_at TEXT,
    check_count INTEGER NOT NULL DEFAULT 0,
    performance_dna TEXT,
    aesthetic_dna TEXT,
    notes TEXT,
    tags TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS taste_profiles (
    user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    item_count INTEGER NOT NULL DEFAULT 0,
    rating_count INTEGER NOT NULL DEFAULT 0,
    confidence REAL NOT NULL DEFAULT 0,
    bundle_version INTEGER NOT NULL DEFAULT 1,
    collection_bundle TEXT,
    training_bundle TEXT,
    trained_preferences TEXT,
    trained_dislikes TEXT,
    last_trained_at TEXT,
    last_training_at TEXT,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS training_suggestions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    url TEXT NOT NULL,
    platform TEXT NOT NULL,
    thumbnail TEXT,
    relevance REAL NOT NULL DEFAULT 0,
    source_type TEXT NOT NULL CHECK(source_type IN ('SIMILAR', 'TRENDING', 'EXPLORATION', 'RANDOM')),
    query TEXT,
    status TEXT NOT NULL DEFAULT 'PENDING' CHECK(status IN ('PENDING', 'RATED', 'SKIPPED')),
    signal_tones TEXT,
    signal_keywords TEXT,
    signal_hooks TEXT,
    signal_styles TEXT,
    signal_source TEXT,
    expires_at TEXT NOT NULL,
    created_at TEXT NOT NULL,
    rated_at TEXT,
    UNIQUE(user_id, url)
);

CREATE TABLE IF NOT EXISTS training_ratings (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    rating_type TEXT NOT NULL CHECK(rating_type IN ('COMPARATIVE', 'BINARY')),
    outcome TEXT NOT NULL,
    suggestion_a_id TEXT REFERENCES training_suggestions(id) ON DELETE SET NULL,
    suggestion_b_id TEXT REFERENCES training_suggestions(id) ON DELETE SET NULL,
    suggestion_id TEXT REFERENCES training_suggestions(id) ON DELETE SET NULL,
    response_time_ms INTEGER,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS generated_variants (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    prompt TEXT NOT NULL,
    platform TEXT NOT NULL,
    text TEXT NOT NULL,
    performance_rationale TEXT,
    taste_rationale TEXT,
    performance_score INTEGER NOT NULL DEFAULT 0,
    taste_score INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_user ON collection_items(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_items_platform ON collection_items(user_id, platform);
CREATE INDEX IF NOT EXISTS idx_suggestions_pending ON training_suggestions(user_id, status, expires_at);
CREATE INDEX IF NOT EXISTS idx_ratings_user ON training_ratings(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_variants_user ON generated_variants(user_id, created_at);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "typed item analyses replace DNA blob columns",
		Up:          migrateTypedAnalyses,
	},
}

func migrateTypedAnalyses(tx *sql.Tx) error {
	_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS item_analyses (
    item_id TEXT PRIMARY KEY REFERENCES collection_items(id) ON DELETE CASCADE,
    schema_version INTEGER NOT NULL DEFAULT 1,
    source TEXT NOT NULL CHECK(source IN ('llm', 'pattern')),
    hooks TEXT,
    structure TEXT,
    title_length INTEGER NOT NULL DEFAULT 0,
    keywords TEXT,
    sentiment TEXT,
    predicted_score INTEGER NOT NULL DEFAULT 0,
    format TEXT,
    niche TEXT,
    target_audience TEXT,
    tones TEXT,
    voice TEXT,
    complexity TEXT,
    styles TEXT,
    taste_score INTEGER NOT NULL DEFAULT 0,
    emotional_triggers TEXT,
    pacing TEXT,
    analyzed_at TEXT NOT NULL
);
`)
	if err != nil {
		return err
	}

	rows, err := tx.Query(`SELECT id, performance_dna, aesthetic_dna, updated_at FROM collection_items
		WHERE performance_dna IS NOT NULL AND aesthetic_dna IS NOT NULL`)
	if err != nil {
		return err
	}
	type legacy struct {
		id, perf, aes, at string
	}
	var pending []legacy
	for rows.Next() {
		var l legacy
		if err := rows.Scan(&l.id, &l.perf, &l.aes, &l.at); err != nil {
			rows.Close()
			return err
		}
		pending = append(pending, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, l := range pending {
		var dna taste.DNA
		if json.Unmarshal([]byte(l.perf), &dna.Performance) != nil || json.Unmarshal([]byte(l.aes), &dna.Aesthetic) != nil {
			log.Warn().Str("item", l.id).Msg("skipping unparseable legacy DNA")
			continue
		}
		dna.Source = taste.SourceLLM
		if err := upsertAnalysis(tx, l.id, dna, l.at); err != nil {
			return err
		}
	}
	return nil
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
