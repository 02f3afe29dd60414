package database

import (
	"fmt"

	"github.com/google/uuid"
)

const userColumns = "id, name, api_token, created_at"

// CreateUser adds a user with a fresh API token.
func (db *DB) CreateUser(name string) (*User, error) {
	existing, err := db.GetUserByName(name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("user %q already exists", name)
	}

	u := &User{
		ID:        uuid.NewString(),
		Name:      name,
		APIToken:  "folio_" + uuid.NewString(),
		CreatedAt: now(),
	}
	_, err = db.conn.Exec(
		"INSERT INTO users (id, name, api_token, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Name, u.APIToken, u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UserByToken resolves an API token. Returns nil if no user holds it.
func (db *DB) UserByToken(token string) (*User, error) {
	if token == "" {
		return nil, nil
	}
	return db.queryUser("SELECT "+userColumns+" FROM users WHERE api_token = ?", token)
}

// GetUserByName returns the named user, or nil if not found.
func (db *DB) GetUserByName(name string) (*User, error) {
	return db.queryUser("SELECT "+userColumns+" FROM users WHERE name = ?", name)
}

// GetUser returns a user by id, or nil if not found.
func (db *DB) GetUser(id string) (*User, error) {
	return db.queryUser("SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// ListUsers returns every user in creation order.
func (db *DB) ListUsers() ([]User, error) {
	rows, err := db.conn.Query("SELECT " + userColumns + " FROM users ORDER BY created_at, rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.APIToken, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) queryUser(query string, arg string) (*User, error) {
	rows, err := db.conn.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var u User
	if err := rows.Scan(&u.ID, &u.Name, &u.APIToken, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
