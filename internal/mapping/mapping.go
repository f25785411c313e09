// Package mapping maintains the durable association between source-system
// identifiers and the identifiers newly assigned in the target schema.
//
// The store is append-only: a pair (original id, entity type) is written once
// and never changes. The full table is loaded into memory in a single pass at
// startup so that lookups during a run never touch storage.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrDuplicateMapping is returned when an original id is mapped a second time
// to a different target id. Re-putting the identical pair is a no-op.
var ErrDuplicateMapping = errors.New("duplicate mapping")

// EntityType discriminates mappings by the kind of record they describe.
// The integer codes are persisted; never renumber existing ones.
type EntityType int

const (
	Group    EntityType = 1
	User     EntityType = 2
	Category EntityType = 3
	Topic    EntityType = 4
	Post     EntityType = 5
	Upload   EntityType = 6
)

func (t EntityType) String() string {
	switch t {
	case Group:
		return "group"
	case User:
		return "user"
	case Category:
		return "category"
	case Topic:
		return "topic"
	case Post:
		return "post"
	case Upload:
		return "upload"
	}
	return "entity(" + strconv.Itoa(int(t)) + ")"
}

// PrivateOffset separates the private-message sub-range from the regular
// sub-range when topics and posts from two logically distinct source tables
// share one numbering scheme. A private topic with source id N is recorded
// under original id N+PrivateOffset.
const PrivateOffset = 100_000_000

// Entry is one persisted mapping row.
type Entry struct {
	OriginalID string
	Type       EntityType
	TargetID   int64
}

// Backend persists mapping entries. Implementations must preserve insertion
// order on Load and reject nothing: conflict detection happens in the Store.
type Backend interface {
	// Load streams every persisted entry, in one pass, to fn.
	Load(ctx context.Context, fn func(Entry) error) error
	// Append durably adds entries. Entries are never updated or deleted.
	Append(ctx context.Context, entries []Entry) error
}

type key struct {
	original string
	typ      EntityType
}

// Store is the in-memory index over the persisted mapping table. It is a
// process-local, single-writer structure; no locking is required.
type Store struct {
	backend Backend
	ids     map[key]int64

	// pending entries not yet flushed to the backend
	pending []Entry

	// highest original id seen per type during BulkLoad, for callers that
	// partition a shared source numbering scheme by PrivateOffset.
	highWater map[EntityType]int64
}

// NewStore returns an empty store writing through to backend.
func NewStore(backend Backend) *Store {
	return &Store{
		backend:   backend,
		ids:       make(map[key]int64),
		highWater: make(map[EntityType]int64),
	}
}

// BulkLoad seeds the in-memory index from persisted storage. Cost is one
// streaming pass over the mapping table, independent of entity-type count.
func (s *Store) BulkLoad(ctx context.Context) (int, error) {
	n := 0
	err := s.backend.Load(ctx, func(e Entry) error {
		s.ids[key{e.OriginalID, e.Type}] = e.TargetID
		s.noteHighWater(e.Type, e.OriginalID)
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("mapping bulk load: %w", err)
	}
	return n, nil
}

// Put records that original id orig of type t was assigned target id. Putting
// an identical pair twice is a no-op; a conflicting target id fails with
// ErrDuplicateMapping and the stored value is kept.
func (s *Store) Put(t EntityType, orig string, target int64) error {
	k := key{orig, t}
	if existing, ok := s.ids[k]; ok {
		if existing == target {
			return nil
		}
		return fmt.Errorf("%w: %s %s already maps to %d, refusing %d",
			ErrDuplicateMapping, t, orig, existing, target)
	}
	s.ids[k] = target
	s.noteHighWater(t, orig)
	s.pending = append(s.pending, Entry{OriginalID: orig, Type: t, TargetID: target})
	return nil
}

// Get returns the target id assigned to original id orig of type t.
func (s *Store) Get(t EntityType, orig string) (int64, bool) {
	id, ok := s.ids[key{orig, t}]
	return id, ok
}

// Contains reports whether orig of type t has already been mapped. Used to
// recognize already-migrated rows when re-running against a partial store.
func (s *Store) Contains(t EntityType, orig string) bool {
	_, ok := s.ids[key{orig, t}]
	return ok
}

// Len returns the number of mappings currently indexed.
func (s *Store) Len() int { return len(s.ids) }

// HighWater returns the largest numeric original id recorded for t in the
// public partition, or zero. Original ids that do not parse as integers are
// ignored, as are ids at or above PrivateOffset.
func (s *Store) HighWater(t EntityType) int64 {
	return s.highWater[t]
}

// Flush appends all pending entries to the backend. Call after each entity
// type completes so that an interrupted run can resume from the last flush.
func (s *Store) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.backend.Append(ctx, s.pending); err != nil {
		return fmt.Errorf("mapping flush: %w", err)
	}
	s.pending = s.pending[:0]
	return nil
}

func (s *Store) noteHighWater(t EntityType, orig string) {
	n, err := strconv.ParseInt(orig, 10, 64)
	if err != nil || n >= PrivateOffset {
		return
	}
	if n > s.highWater[t] {
		s.highWater[t] = n
	}
}
