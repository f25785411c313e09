// Package target wraps the destination Postgres schema: the streaming
// bulk-insert channel, the persisted mapping table, sequence push-back, and
// the small read-only lookups the engine needs (max ids, existing emails,
// upload hashes, user display records).
package target

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stevermore/portage/internal/mapping"
)

// DB is a live connection to the target schema.
type DB struct {
	pool *pgxpool.Pool
}

// Open connects to the target database, retrying transient failures with
// capped exponential backoff.
func Open(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open target database: %w", err)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(func() error { return pool.Ping(ctx) }, policy); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping target database: %w", err)
	}
	return &DB{pool: pool}, nil
}

func (d *DB) Close() { d.pool.Close() }

// Copy is the bulk-insert channel: one table, an ordered column list, and
// per-row value tuples in that column order. Rows commit in the order given.
func (d *DB) Copy(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := d.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// entityTables names the target table backing each entity type.
var entityTables = map[mapping.EntityType]string{
	mapping.Group:    "groups",
	mapping.User:     "users",
	mapping.Category: "categories",
	mapping.Topic:    "topics",
	mapping.Post:     "posts",
	mapping.Upload:   "uploads",
}

// MaxID returns the current maximum primary key for the entity type's table,
// zero when the table is empty. Seeds the id allocator.
func (d *DB) MaxID(ctx context.Context, t mapping.EntityType) (int64, error) {
	table, ok := entityTables[t]
	if !ok {
		return 0, fmt.Errorf("no table for entity type %s", t)
	}
	var max int64
	err := d.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(id), 0) FROM %s", pgx.Identifier{table}.Sanitize()),
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max id of %s: %w", table, err)
	}
	return max, nil
}

// SetSequence pushes the table's serial sequence to at least value, so ids
// assigned by the storage engine after the migration do not collide with
// migrated rows.
func (d *DB) SetSequence(ctx context.Context, t mapping.EntityType, value int64) error {
	table, ok := entityTables[t]
	if !ok {
		return fmt.Errorf("no table for entity type %s", t)
	}
	_, err := d.pool.Exec(ctx,
		"SELECT setval(pg_get_serial_sequence($1, 'id'), $2, true)", table, value)
	if err != nil {
		return fmt.Errorf("set sequence for %s: %w", table, err)
	}
	return nil
}
