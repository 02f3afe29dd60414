package database

import (
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// encodeJSON renders v as a JSON text column.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// encodeList renders a string list, storing an empty list as "[]".
func encodeList(values []string) string {
	if values == nil {
		values = []string{}
	}
	s, _ := encodeJSON(values)
	return s
}

// decodeJSON fills v from a nullable JSON column. NULL leaves v untouched.
func decodeJSON(col sql.NullString, v any) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), v)
}

// listDecoder decodes string-list columns, keeping the first error.
type listDecoder struct {
	err error
}

func (d *listDecoder) list(name string, col sql.NullString) []string {
	var out []string
	if err := decodeJSON(col, &out); err != nil && d.err == nil {
		d.err = fmt.Errorf("decoding %s: %w", name, err)
	}
	return out
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
