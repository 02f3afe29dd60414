package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/Folio/internal/taste"
)

const suggestionColumns = `id, user_id, title, url, platform, thumbnail, relevance, source_type, query,
	status, signal_tones, signal_keywords, signal_hooks, signal_styles, signal_source, expires_at,
	created_at, rated_at`

func scanSuggestion(s scanner) (*Suggestion, error) {
	var sg Suggestion
	var tones, keywords, hooks, styles, source sql.NullString
	err := s.Scan(
		&sg.ID, &sg.UserID, &sg.Title, &sg.URL, &sg.Platform, &sg.Thumbnail, &sg.Relevance,
		&sg.SourceType, &sg.Query, &sg.Status, &tones, &keywords, &hooks, &styles, &source,
		&sg.ExpiresAt, &sg.CreatedAt, &sg.RatedAt,
	)
	if err != nil {
		return nil, err
	}
	if source.Valid {
		var dec listDecoder
		sg.Signals = &taste.Signals{
			Tones:    dec.list("signal_tones", tones),
			Keywords: dec.list("signal_keywords", keywords),
			Hooks:    dec.list("signal_hooks", hooks),
			Styles:   dec.list("signal_styles", styles),
			Source:   source.String,
		}
		if dec.err != nil {
			return nil, fmt.Errorf("suggestion %s: %w", sg.ID, dec.err)
		}
	}
	return &sg, nil
}

func scanSuggestions(rows *sql.Rows) ([]Suggestion, error) {
	var out []Suggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sg)
	}
	return out, rows.Err()
}

// InsertSuggestion stores a pending suggestion. Returns false if the user
// already has a suggestion for the same URL.
func (db *DB) InsertSuggestion(s *Suggestion, ttl time.Duration) (bool, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	created := time.Now()
	s.CreatedAt = FormatTime(created)
	s.ExpiresAt = FormatTime(created.Add(ttl))
	if s.Status == "" {
		s.Status = StatusPending
	}

	res, err := db.conn.Exec(
		`INSERT OR IGNORE INTO training_suggestions (id, user_id, title, url, platform, thumbnail,
			relevance, source_type, query, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Title, s.URL, s.Platform, s.Thumbnail, s.Relevance, s.SourceType, s.Query,
		s.Status, s.ExpiresAt, s.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetSuggestion returns the user's suggestion, or nil if absent.
func (db *DB) GetSuggestion(userID, id string) (*Suggestion, error) {
	row := db.conn.QueryRow(
		"SELECT "+suggestionColumns+" FROM training_suggestions WHERE id = ? AND user_id = ?", id, userID,
	)
	sg, err := scanSuggestion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sg, err
}

// NewestPending returns up to limit pending, unexpired suggestions, newest first.
func (db *DB) NewestPending(userID string, limit int) ([]Suggestion, error) {
	rows, err := db.conn.Query(
		"SELECT "+suggestionColumns+` FROM training_suggestions
		WHERE user_id = ? AND status = 'PENDING' AND expires_at > ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, now(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuggestions(rows)
}

// PendingByRelevance returns up to limit pending, unexpired suggestions by relevance.
func (db *DB) PendingByRelevance(userID string, limit int) ([]Suggestion, error) {
	rows, err := db.conn.Query(
		"SELECT "+suggestionColumns+` FROM training_suggestions
		WHERE user_id = ? AND status = 'PENDING' AND expires_at > ?
		ORDER BY relevance DESC, created_at DESC, rowid DESC LIMIT ?`,
		userID, now(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSuggestions(rows)
}

// CountPending counts pending, unexpired suggestions.
func (db *DB) CountPending(userID string) (int, error) {
	var n int
	err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM training_suggestions WHERE user_id = ? AND status = 'PENDING' AND expires_at > ?",
		userID, now(),
	).Scan(&n)
	return n, err
}

// SetSuggestionStatus marks a suggestion rated or skipped.
func (db *DB) SetSuggestionStatus(id, status string) error {
	return setSuggestionStatus(db.conn, id, status)
}

func setSuggestionStatus(ex execer, id, status string) error {
	_, err := ex.Exec(
		"UPDATE training_suggestions SET status = ?, rated_at = ? WHERE id = ?", status, now(), id,
	)
	return err
}

// SaveSuggestionSignals caches the title analysis of a suggestion.
func (db *DB) SaveSuggestionSignals(id string, s taste.Signals) error {
	_, err := db.conn.Exec(
		`UPDATE training_suggestions SET signal_tones = ?, signal_keywords = ?, signal_hooks = ?,
			signal_styles = ?, signal_source = ? WHERE id = ?`,
		encodeList(s.Tones), encodeList(s.Keywords), encodeList(s.Hooks), encodeList(s.Styles), s.Source, id,
	)
	return err
}

// SuggestionURLs returns the URLs of every suggestion the user has ever received.
func (db *DB) SuggestionURLs(userID string) (map[string]bool, error) {
	return db.urlSet("SELECT url FROM training_suggestions WHERE user_id = ?", userID)
}

// SuggestionsByIDs returns the user's suggestions among ids, keyed by id.
func (db *DB) SuggestionsByIDs(userID string, ids []string) (map[string]Suggestion, error) {
	out := make(map[string]Suggestion)
	if len(ids) == 0 {
		return out, nil
	}
	args := []any{userID}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := db.conn.Query(
		"SELECT "+suggestionColumns+" FROM training_suggestions WHERE user_id = ? AND id IN ("+
			placeholders(len(ids))+")",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list, err := scanSuggestions(rows)
	if err != nil {
		return nil, err
	}
	for _, s := range list {
		out[s.ID] = s
	}
	return out, nil
}
