// Package schema defines the typed records written to the target forum
// schema. Each record knows its table name and ordered column list, so it can
// be fed straight into the streaming bulk-insert channel. Records are
// constructed and finalized by the loader for their entity type and never
// mutated afterwards.
package schema

import "time"

// Meta carries the loader bookkeeping shared by every record type.
type Meta struct {
	// OriginalID is the row's primary key in the source system, empty when
	// the source row has none worth preserving.
	OriginalID string
	// SkipPersist suppresses persistence while still spending the allocated
	// id, used when the row collapses onto a pre-existing target record.
	SkipPersist bool
	// MappedID is the target id this row resolved to. For persisted rows it
	// equals the record's own id; for skipped rows it is the pre-existing
	// record's id.
	MappedID int64
}

// Original returns the source-system id recorded for the row.
func (m *Meta) Original() string { return m.OriginalID }

// Skipped reports whether the row must not reach the bulk-insert channel.
func (m *Meta) Skipped() bool { return m.SkipPersist }

// TargetID returns the target id the row's original id maps to.
func (m *Meta) TargetID() int64 { return m.MappedID }

// CustomFieldSpec names the side-channel table carrying import_id rows for
// one entity table.
type CustomFieldSpec struct {
	Table       string
	OwnerColumn string
}

// CustomField is one side-channel row persisted after the owning entity's
// batches complete.
type CustomField struct {
	OwnerID   int64
	Name      string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Names used in custom-field side channels.
const (
	FieldImportID       = "import_id"
	FieldImportUsername = "import_username"
)
