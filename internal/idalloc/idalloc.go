// Package idalloc hands out target-schema primary keys.
//
// Each entity type has one monotonic counter, seeded once from the current
// maximum id in the target table and incremented in process for every new
// record. The storage engine's own auto-increment state is bypassed during a
// run and pushed forward once at the end, so that records created after the
// migration do not collide with migrated ones.
package idalloc

import (
	"context"
	"fmt"

	"github.com/stevermore/portage/internal/mapping"
)

// Seeder reports the current maximum target id per entity type.
type Seeder interface {
	MaxID(ctx context.Context, t mapping.EntityType) (int64, error)
}

// Finalizer advances the storage engine's auto-increment state to at least
// the given value for an entity type's table.
type Finalizer interface {
	SetSequence(ctx context.Context, t mapping.EntityType, value int64) error
}

// Allocator is a per-entity-type monotonic id source. Single writer, no
// locking: a run processes rows sequentially.
type Allocator struct {
	last map[mapping.EntityType]int64
}

// Seed constructs an Allocator whose counters start at the current maximum
// id of each of the given entity types.
func Seed(ctx context.Context, src Seeder, types ...mapping.EntityType) (*Allocator, error) {
	a := &Allocator{last: make(map[mapping.EntityType]int64, len(types))}
	for _, t := range types {
		max, err := src.MaxID(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("seed %s allocator: %w", t, err)
		}
		a.last[t] = max
	}
	return a, nil
}

// NewAt returns an Allocator with explicit starting values, for tests.
func NewAt(seed map[mapping.EntityType]int64) *Allocator {
	last := make(map[mapping.EntityType]int64, len(seed))
	for t, v := range seed {
		last[t] = v
	}
	return &Allocator{last: last}
}

// Next returns an id strictly greater than every id previously returned for
// t and every id that existed in the target table at seed time. An allocated
// id may be spent without being written; gaps are acceptable.
func (a *Allocator) Next(t mapping.EntityType) int64 {
	a.last[t]++
	return a.last[t]
}

// Last returns the most recently allocated (or seeded) id for t.
func (a *Allocator) Last(t mapping.EntityType) int64 {
	return a.last[t]
}

// Finalize pushes every counter back into the storage engine so that ids
// assigned outside this engine resume above the migrated range. Called once
// after all entity types have been processed.
func (a *Allocator) Finalize(ctx context.Context, dst Finalizer) error {
	for t, v := range a.last {
		if v == 0 {
			continue
		}
		if err := dst.SetSequence(ctx, t, v); err != nil {
			return fmt.Errorf("finalize %s sequence: %w", t, err)
		}
	}
	return nil
}
