package database

import (
	"fmt"

	"github.com/google/uuid"
)

// InsertRating appends a rating to the user's history.
func (db *DB) InsertRating(r *Rating) error {
	return insertRating(db.conn, r)
}

func insertRating(ex execer, r *Rating) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt == "" {
		r.CreatedAt = now()
	}
	_, err := ex.Exec(
		`INSERT INTO training_ratings (id, user_id, rating_type, outcome, suggestion_a_id,
			suggestion_b_id, suggestion_id, response_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.RatingType, r.Outcome, r.SuggestionAID, r.SuggestionBID, r.SuggestionID,
		r.ResponseTimeMs, r.CreatedAt,
	)
	return err
}

// RecordRating stores a rating, marks the rated suggestions with status and
// saves the updated profile in one transaction.
func (db *DB) RecordRating(r *Rating, suggestionIDs []string, status string, p *Profile) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertRating(tx, r); err != nil {
		return fmt.Errorf("storing rating: %w", err)
	}
	for _, id := range suggestionIDs {
		if err := setSuggestionStatus(tx, id, status); err != nil {
			return fmt.Errorf("updating suggestion %s: %w", id, err)
		}
	}
	if err := saveProfile(tx, p); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return tx.Commit()
}

// ListRatings returns the user's ratings, oldest first.
func (db *DB) ListRatings(userID string) ([]Rating, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, rating_type, outcome, suggestion_a_id, suggestion_b_id, suggestion_id,
			response_time_ms, created_at
		FROM training_ratings WHERE user_id = ? ORDER BY created_at, rowid`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.RatingType, &r.Outcome, &r.SuggestionAID, &r.SuggestionBID,
			&r.SuggestionID, &r.ResponseTimeMs, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRatings summarizes the user's rating history by type.
func (db *DB) CountRatings(userID string) (RatingCounts, error) {
	var c RatingCounts
	err := db.conn.QueryRow(
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN rating_type = 'COMPARATIVE' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN rating_type = 'BINARY' THEN 1 ELSE 0 END), 0)
		FROM training_ratings WHERE user_id = ?`, userID,
	).Scan(&c.Total, &c.Comparative, &c.Binary)
	return c, err
}
