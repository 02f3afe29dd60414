package database

import (
	"database/sql"
	"fmt"

	"github.com/TobiSchelling/Folio/internal/taste"
)

// AnalysisSchemaVersion is written with every new analysis row.
const AnalysisSchemaVersion = 1

const analysisColumns = `a.item_id, a.schema_version, a.source, a.hooks, a.structure, a.title_length,
	a.keywords, a.sentiment, a.predicted_score, a.format, a.niche, a.target_audience, a.tones, a.voice,
	a.complexity, a.styles, a.taste_score, a.emotional_triggers, a.pacing, a.analyzed_at`

func upsertAnalysis(ex execer, itemID string, dna taste.DNA, at string) error {
	p, a := dna.Performance, dna.Aesthetic
	_, err := ex.Exec(
		`INSERT INTO item_analyses (item_id, schema_version, source, hooks, structure, title_length,
			keywords, sentiment, predicted_score, format, niche, target_audience, tones, voice,
			complexity, styles, taste_score, emotional_triggers, pacing, analyzed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			schema_version = excluded.schema_version, source = excluded.source, hooks = excluded.hooks,
			structure = excluded.structure, title_length = excluded.title_length, keywords = excluded.keywords,
			sentiment = excluded.sentiment, predicted_score = excluded.predicted_score, format = excluded.format,
			niche = excluded.niche, target_audience = excluded.target_audience, tones = excluded.tones,
			voice = excluded.voice, complexity = excluded.complexity, styles = excluded.styles,
			taste_score = excluded.taste_score, emotional_triggers = excluded.emotional_triggers,
			pacing = excluded.pacing, analyzed_at = excluded.analyzed_at`,
		itemID, AnalysisSchemaVersion, dna.Source, encodeList(p.Hooks), p.Structure, p.Length,
		encodeList(p.Keywords), p.Sentiment, p.PredictedScore, p.Format, p.Niche, p.TargetAudience,
		encodeList(a.Tones), a.Voice, a.Complexity, encodeList(a.Styles), a.TasteScore,
		encodeList(a.EmotionalTriggers), a.Pacing, at,
	)
	return err
}

// UpsertAnalysis stores (or replaces) the analysis of an item.
func (db *DB) UpsertAnalysis(itemID string, dna taste.DNA) error {
	if dna.Source == "" {
		dna.Source = taste.SourceLLM
	}
	return upsertAnalysis(db.conn, itemID, dna, now())
}

func scanAnalysis(s scanner) (*ItemAnalysis, error) {
	var an ItemAnalysis
	var hooks, keywords, tones, styles, triggers sql.NullString
	var structure, sentiment, format, niche, audience, voice, complexity, pacing sql.NullString
	p, a := &an.Performance, &an.Aesthetic
	err := s.Scan(
		&an.ItemID, &an.SchemaVersion, &an.Source, &hooks, &structure, &p.Length,
		&keywords, &sentiment, &p.PredictedScore, &format, &niche, &audience, &tones, &voice,
		&complexity, &styles, &a.TasteScore, &triggers, &pacing, &an.AnalyzedAt,
	)
	if err != nil {
		return nil, err
	}
	var dec listDecoder
	p.Hooks = dec.list("hooks", hooks)
	p.Keywords = dec.list("keywords", keywords)
	p.Structure = structure.String
	p.Sentiment = sentiment.String
	p.Format = format.String
	p.Niche = niche.String
	p.TargetAudience = audience.String
	a.Tones = dec.list("tones", tones)
	a.Styles = dec.list("styles", styles)
	a.EmotionalTriggers = dec.list("emotional_triggers", triggers)
	a.Voice = voice.String
	a.Complexity = complexity.String
	a.Pacing = pacing.String
	if dec.err != nil {
		return nil, fmt.Errorf("analysis %s: %w", an.ItemID, dec.err)
	}
	return &an, nil
}

// GetAnalysis returns the analysis of an item, or nil if it has none.
func (db *DB) GetAnalysis(itemID string) (*ItemAnalysis, error) {
	row := db.conn.QueryRow("SELECT "+analysisColumns+" FROM item_analyses a WHERE a.item_id = ?", itemID)
	an, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return an, err
}

// AnalyzedItems returns the analyses of every item the user owns, keyed by item id.
func (db *DB) AnalyzedItems(userID string) (map[string]ItemAnalysis, error) {
	rows, err := db.conn.Query(
		"SELECT "+analysisColumns+` FROM item_analyses a
		JOIN collection_items i ON i.id = a.item_id
		WHERE i.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]ItemAnalysis)
	for rows.Next() {
		an, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out[an.ItemID] = *an
	}
	return out, rows.Err()
}
