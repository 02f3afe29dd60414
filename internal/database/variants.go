package database

import (
	"fmt"

	"github.com/google/uuid"
)

// InsertVariants appends generated variants in one transaction.
func (db *DB) InsertVariants(vs []Variant) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	created := now()
	for i := range vs {
		v := &vs[i]
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		v.CreatedAt = created
		_, err := tx.Exec(
			`INSERT INTO generated_variants (id, user_id, prompt, platform, text, performance_rationale,
				taste_rationale, performance_score, taste_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.UserID, v.Prompt, v.Platform, v.Text, v.PerformanceRationale, v.TasteRationale,
			v.PerformanceScore, v.TasteScore, v.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting variant %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// RecentVariants returns the user's latest generated variants.
func (db *DB) RecentVariants(userID string, limit int) ([]Variant, error) {
	rows, err := db.conn.Query(
		`SELECT id, user_id, prompt, platform, text, performance_rationale, taste_rationale,
			performance_score, taste_score, created_at
		FROM generated_variants WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(
			&v.ID, &v.UserID, &v.Prompt, &v.Platform, &v.Text, &v.PerformanceRationale,
			&v.TasteRationale, &v.PerformanceScore, &v.TasteScore, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
