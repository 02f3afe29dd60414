package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const itemColumns = `id, user_id, title, url, platform, content_type, thumbnail, video_id, channel_id,
	author, published_at, views, likes, comments, engagement, channel_subscribers, views_per_day,
	viral_velocity, growth_rate, age_in_days, initial_views, initial_likes, initial_comments,
	last_checked_at, check_count, notes, tags, created_at, updated_at`

func scanItem(s scanner) (*Item, error) {
	var it Item
	var tags sql.NullString
	err := s.Scan(
		&it.ID, &it.UserID, &it.Title, &it.URL, &it.Platform, &it.ContentType, &it.Thumbnail,
		&it.VideoID, &it.ChannelID, &it.Author, &it.PublishedAt, &it.Views, &it.Likes, &it.Comments,
		&it.Engagement, &it.ChannelSubscribers, &it.ViewsPerDay, &it.ViralVelocity, &it.GrowthRate,
		&it.AgeInDays, &it.InitialViews, &it.InitialLikes, &it.InitialComments, &it.LastCheckedAt,
		&it.CheckCount, &it.Notes, &tags, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	var dec listDecoder
	it.Tags = dec.list("tags", tags)
	if dec.err != nil {
		return nil, fmt.Errorf("item %s: %w", it.ID, dec.err)
	}
	return &it, nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// InsertItem stores a new item. ID and timestamps are filled in when empty.
func (db *DB) InsertItem(it *Item) error {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt == "" {
		it.CreatedAt = now()
	}
	it.UpdatedAt = it.CreatedAt
	if it.ContentType == "" {
		it.ContentType = "VIDEO"
	}

	_, err := db.conn.Exec(
		`INSERT INTO collection_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.UserID, it.Title, it.URL, it.Platform, it.ContentType, it.Thumbnail,
		it.VideoID, it.ChannelID, it.Author, it.PublishedAt, it.Views, it.Likes, it.Comments,
		it.Engagement, it.ChannelSubscribers, it.ViewsPerDay, it.ViralVelocity, it.GrowthRate,
		it.AgeInDays, it.InitialViews, it.InitialLikes, it.InitialComments, it.LastCheckedAt,
		it.CheckCount, it.Notes, encodeList(it.Tags), it.CreatedAt, it.UpdatedAt,
	)
	return err
}

// GetItem returns the user's item, or nil if it does not exist or belongs to someone else.
func (db *DB) GetItem(userID, id string) (*Item, error) {
	row := db.conn.QueryRow("SELECT "+itemColumns+" FROM collection_items WHERE id = ? AND user_id = ?", id, userID)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return it, err
}

// ListItems returns one page of the user's items, newest first, and the
// total number of items matching the filter.
func (db *DB) ListItems(userID string, f ItemFilter) ([]Item, int, error) {
	where := " WHERE user_id = ?"
	args := []any{userID}
	if f.Platform != "" {
		where += " AND platform = ?"
		args = append(args, f.Platform)
	}
	if f.Search != "" {
		where += " AND title LIKE ? ESCAPE '\\'"
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}

	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM collection_items"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		"SELECT "+itemColumns+" FROM collection_items"+where+
			" ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?",
		append(args, limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := scanItems(rows)
	return items, total, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// AllItems returns every item of the user in save order.
func (db *DB) AllItems(userID string) ([]Item, error) {
	rows, err := db.conn.Query(
		"SELECT "+itemColumns+" FROM collection_items WHERE user_id = ? ORDER BY created_at, rowid", userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// RecentItems returns the user's n most recently saved items.
func (db *DB) RecentItems(userID string, n int) ([]Item, error) {
	rows, err := db.conn.Query(
		"SELECT "+itemColumns+" FROM collection_items WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		userID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// ItemsByIDs returns the user's items among ids. Unknown ids are ignored.
func (db *DB) ItemsByIDs(userID string, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := []any{userID}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := db.conn.Query(
		"SELECT "+itemColumns+" FROM collection_items WHERE user_id = ? AND id IN ("+placeholders(len(ids))+
			") ORDER BY created_at DESC, rowid DESC",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// UpdateItem applies a patch. Returns false if the item is not the user's.
func (db *DB) UpdateItem(userID, id string, p ItemPatch) (bool, error) {
	sets := []string{"updated_at = ?"}
	args := []any{now()}
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *p.Notes)
	}
	if p.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, encodeList(*p.Tags))
	}
	args = append(args, id, userID)

	res, err := db.conn.Exec(
		"UPDATE collection_items SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?", args...,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteItem removes the user's item and its analysis. Returns false if nothing was deleted.
func (db *DB) DeleteItem(userID, id string) (bool, error) {
	res, err := db.conn.Exec("DELETE FROM collection_items WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateThumbnail replaces an item's thumbnail URL.
func (db *DB) UpdateThumbnail(id, thumbnail string) error {
	_, err := db.conn.Exec(
		"UPDATE collection_items SET thumbnail = ?, updated_at = ? WHERE id = ?", thumbnail, now(), id,
	)
	return err
}

// SaveItemMetrics writes the raw and derived metric fields of it. A missing
// row is reported as sql.ErrNoRows.
func (db *DB) SaveItemMetrics(it *Item) error {
	it.UpdatedAt = now()
	res, err := db.conn.Exec(
		`UPDATE collection_items SET views = ?, likes = ?, comments = ?, engagement = ?,
		channel_subscribers = ?, views_per_day = ?, viral_velocity = ?, growth_rate = ?, age_in_days = ?,
		initial_views = ?, initial_likes = ?, initial_comments = ?, last_checked_at = ?, check_count = ?,
		published_at = COALESCE(?, published_at), video_id = COALESCE(?, video_id), updated_at = ?
		WHERE id = ?`,
		it.Views, it.Likes, it.Comments, it.Engagement, it.ChannelSubscribers, it.ViewsPerDay,
		it.ViralVelocity, it.GrowthRate, it.AgeInDays, it.InitialViews, it.InitialLikes,
		it.InitialComments, it.LastCheckedAt, it.CheckCount, it.PublishedAt, it.VideoID, it.UpdatedAt, it.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", it.ID, sql.ErrNoRows)
	}
	return nil
}

// CountItems returns how many items the user has saved.
func (db *DB) CountItems(userID string) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM collection_items WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

// ItemURLs returns the set of URLs in the user's collection.
func (db *DB) ItemURLs(userID string) (map[string]bool, error) {
	return db.urlSet("SELECT url FROM collection_items WHERE user_id = ?", userID)
}

func (db *DB) urlSet(query, userID string) (map[string]bool, error) {
	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	urls := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls[u] = true
	}
	return urls, rows.Err()
}
