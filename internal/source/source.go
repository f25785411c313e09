// Package source reads raw rows out of the legacy forum database.
//
// Each entity type is exposed as a lazy row stream with a stable per-row
// original-identifier field; a stream is exhausted exactly once per run.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ErrNoTable marks a query against a table the source schema does not have.
// Optional add-on tables (likes, polls) are expected to be absent on many
// installations; callers treat this as "no rows", anything else as a failure.
var ErrNoTable = errors.New("source table does not exist")

// Row is one raw source row, keyed by source column name. Values carry
// whatever the driver produced; use the typed accessors.
type Row map[string]any

// Str returns the named column as a string, tolerating driver []byte.
func (r Row) Str(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the named column as an int64, zero when absent or unparsable.
func (r Row) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// Int returns the named column as an int.
func (r Row) Int(key string) int { return int(r.Int64(key)) }

// Bool returns the named column as a bool; legacy schemas store flags as
// tinyint.
func (r Row) Bool(key string) bool { return r.Int64(key) != 0 }

// Time interprets the named column as a unix timestamp, the convention of
// legacy dateline columns. The zero time is returned for zero or absent
// values.
func (r Row) Time(key string) time.Time {
	n := r.Int64(key)
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

// Rows is a lazy stream of raw rows. Next returns io.EOF when the stream is
// drained; a drained stream must not be read again.
type Rows interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// sqlRows adapts a database/sql result set to the Rows stream.
type sqlRows struct {
	rows    *sql.Rows
	columns []string
}

// StreamQuery runs query against db and streams its result set row by row.
func StreamQuery(ctx context.Context, db *sql.DB, query string, args ...any) (Rows, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("source query: %w", err)
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("source columns: %w", err)
	}
	return &sqlRows{rows: rows, columns: columns}, nil
}

func (s *sqlRows) Next(_ context.Context) (Row, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	values := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("source scan: %w", err)
	}
	row := make(Row, len(s.columns))
	for i, c := range s.columns {
		row[c] = values[i]
	}
	return row, nil
}

func (s *sqlRows) Close() error { return s.rows.Close() }

// SliceRows adapts an in-memory slice to the Rows stream, for tests.
type SliceRows struct {
	rows []Row
	pos  int
}

// NewSliceRows returns a stream over rows in order.
func NewSliceRows(rows ...Row) *SliceRows {
	return &SliceRows{rows: rows}
}

func (s *SliceRows) Next(_ context.Context) (Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.pos]
	s.pos++
	return r, nil
}

func (s *SliceRows) Close() error { return nil }
