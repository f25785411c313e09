package target

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/stevermore/portage/internal/mapping"
)

// The mapping table is the engine's only private table in the target schema.
// target_id is stored as text: original ids are opaque strings and keeping
// both sides stringly lets new entity types reuse the table unchanged.
const createMappingTable = `
CREATE TABLE IF NOT EXISTS import_mappings (
    original_id text    NOT NULL,
    entity_type integer NOT NULL,
    target_id   text    NOT NULL,
    PRIMARY KEY (original_id, entity_type)
)`

// EnsureMappingTable creates the persisted mapping table when absent.
func (d *DB) EnsureMappingTable(ctx context.Context) error {
	if _, err := d.pool.Exec(ctx, createMappingTable); err != nil {
		return fmt.Errorf("ensure mapping table: %w", err)
	}
	return nil
}

// Load streams every persisted mapping entry in one pass.
func (d *DB) Load(ctx context.Context, fn func(mapping.Entry) error) error {
	rows, err := d.pool.Query(ctx,
		"SELECT original_id, entity_type, target_id FROM import_mappings")
	if err != nil {
		return fmt.Errorf("load mappings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orig   string
			typ    int
			target string
		)
		if err := rows.Scan(&orig, &typ, &target); err != nil {
			return fmt.Errorf("scan mapping: %w", err)
		}
		id, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return fmt.Errorf("mapping %q/%d has non-numeric target id %q", orig, typ, target)
		}
		if err := fn(mapping.Entry{OriginalID: orig, Type: mapping.EntityType(typ), TargetID: id}); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Append bulk-inserts new mapping entries.
func (d *DB) Append(ctx context.Context, entries []mapping.Entry) error {
	_, err := d.pool.CopyFrom(ctx,
		pgx.Identifier{"import_mappings"},
		[]string{"original_id", "entity_type", "target_id"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{e.OriginalID, int(e.Type), strconv.FormatInt(e.TargetID, 10)}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("append mappings: %w", err)
	}
	return nil
}
