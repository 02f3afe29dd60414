package database

import (
	"database/sql"
	"errors"
	"fmt"
)

// BundleVersion is the layout version of stored pattern bundles.
const BundleVersion = 2

// ErrBundleVersion is returned for profile rows written with a bundle
// layout this build cannot read. Such rows are never overwritten.
var ErrBundleVersion = errors.New("unsupported taste profile bundle version")

// GetProfile returns the user's taste profile, or nil if none has been built.
func (db *DB) GetProfile(userID string) (*Profile, error) {
	var p Profile
	var collection, training, prefs, dislikes sql.NullString
	err := db.conn.QueryRow(
		`SELECT user_id, item_count, rating_count, confidence, bundle_version, collection_bundle,
			training_bundle, trained_preferences, trained_dislikes, last_trained_at, last_training_at, updated_at
		FROM taste_profiles WHERE user_id = ?`, userID,
	).Scan(
		&p.UserID, &p.ItemCount, &p.RatingCount, &p.Confidence, &p.BundleVersion, &collection,
		&training, &prefs, &dislikes, &p.LastTrainedAt, &p.LastTrainingAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if p.BundleVersion != BundleVersion {
		return nil, fmt.Errorf("%w: profile %s has version %d, want %d",
			ErrBundleVersion, userID, p.BundleVersion, BundleVersion)
	}
	if err := decodeJSON(collection, &p.Collection); err != nil {
		return nil, fmt.Errorf("decoding collection bundle of %s: %w", userID, err)
	}
	if err := decodeJSON(training, &p.Training); err != nil {
		return nil, fmt.Errorf("decoding training bundle of %s: %w", userID, err)
	}
	if err := decodeJSON(prefs, &p.Preferences); err != nil {
		return nil, fmt.Errorf("decoding trained preferences of %s: %w", userID, err)
	}
	if err := decodeJSON(dislikes, &p.Dislikes); err != nil {
		return nil, fmt.Errorf("decoding trained dislikes of %s: %w", userID, err)
	}
	return &p, nil
}

// SaveProfile inserts or replaces the user's profile row.
func (db *DB) SaveProfile(p *Profile) error {
	return saveProfile(db.conn, p)
}

func saveProfile(ex execer, p *Profile) error {
	collection, err := encodeJSON(p.Collection)
	if err != nil {
		return fmt.Errorf("encoding collection bundle: %w", err)
	}
	training, err := encodeJSON(p.Training)
	if err != nil {
		return fmt.Errorf("encoding training bundle: %w", err)
	}
	var prefs, dislikes *string
	if p.Preferences != nil {
		s, err := encodeJSON(p.Preferences)
		if err != nil {
			return err
		}
		prefs = &s
	}
	if p.Dislikes != nil {
		s, err := encodeJSON(p.Dislikes)
		if err != nil {
			return err
		}
		dislikes = &s
	}

	p.BundleVersion = BundleVersion
	p.UpdatedAt = now()
	_, err = ex.Exec(
		`INSERT INTO taste_profiles (user_id, item_count, rating_count, confidence, bundle_version,
			collection_bundle, training_bundle, trained_preferences, trained_dislikes, last_trained_at,
			last_training_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			item_count = excluded.item_count, rating_count = excluded.rating_count,
			confidence = excluded.confidence, bundle_version = excluded.bundle_version,
			collection_bundle = excluded.collection_bundle, training_bundle = excluded.training_bundle,
			trained_preferences = excluded.trained_preferences, trained_dislikes = excluded.trained_dislikes,
			last_trained_at = excluded.last_trained_at, last_training_at = excluded.last_training_at,
			updated_at = excluded.updated_at`,
		p.UserID, p.ItemCount, p.RatingCount, p.Confidence, p.BundleVersion, collection, training,
		prefs, dislikes, p.LastTrainedAt, p.LastTrainingAt, p.UpdatedAt,
	)
	return err
}
