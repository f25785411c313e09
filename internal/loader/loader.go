// Package loader drains one entity type's raw rows through an entity-specific
// transform and persists the accepted records in fixed-size batches.
//
// Failure isolation is asymmetric on purpose: a row whose transform fails is
// logged and dropped, processing continues; a batch whose bulk insert fails
// aborts the entity type's load and is reported with the batch's first raw
// row for diagnosis.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stevermore/portage/internal/mapping"
	"github.com/stevermore/portage/internal/schema"
	"github.com/stevermore/portage/internal/source"
)

// DefaultBatchSize is the number of rows per bulk insert.
const DefaultBatchSize = 1000

// progressEvery is the row interval between throughput log lines.
const progressEvery = 5000

// Record is a finalized entity row ready for the bulk-insert channel.
type Record interface {
	Table() string
	Columns() []string
	Values() []any
	// Original is the source-system id, empty when none is preserved.
	Original() string
	// Skipped rows spend their allocated id but are not persisted.
	Skipped() bool
	// TargetID is the id the row's original id maps to; for skipped rows it
	// names the pre-existing record the row collapsed onto.
	TargetID() int64
}

// CustomFielder is implemented by records whose table has an import_id side
// channel.
type CustomFielder interface {
	CustomFields() schema.CustomFieldSpec
}

// ExtraImportFielder adds entity-specific side-channel fields beyond
// import_id.
type ExtraImportFielder interface {
	ExtraImportFields() map[string]string
}

// Sink is the streaming bulk-insert channel: one table, an ordered column
// list, and per-row value tuples in that column order, committed in order.
type Sink interface {
	Copy(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Transform maps one raw source row to a finalized record. Returning a nil
// record drops the row silently (already migrated or invalid at the source).
type Transform func(source.Row) (Record, error)

// Options tunes one Load call.
type Options struct {
	// Label names the entity type in log lines.
	Label string
	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int
	// Log receives progress and row-failure lines; nil uses the standard
	// logger.
	Log *logrus.Logger
}

// Stats summarizes one entity type's load.
type Stats struct {
	Processed int // raw rows consumed
	Created   int // records persisted
	Skipped   int // records finalized with the skip flag
	Dropped   int // rows dropped by the transform or by row-level failure
	Failed    int // rows dropped due to a transform error or panic
}

type importField struct {
	ownerID int64
	name    string
	value   string
}

// Load drains rows through transform and persists accepted records through
// sink. After all batches commit, the collected original ids are written as
// import_id custom-field rows so the mapping is recoverable from the target
// store alone.
func Load(ctx context.Context, sink Sink, rows source.Rows, transform Transform, opts Options) (*Stats, error) {
	defer rows.Close()

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	stats := &Stats{}
	var (
		batch      []Record
		firstRaw   source.Row
		fieldSpec  *schema.CustomFieldSpec
		fields     []importField
		started    = time.Now()
		lastReport = started
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		table := batch[0].Table()
		columns := batch[0].Columns()
		values := make([][]any, len(batch))
		for i, rec := range batch {
			values[i] = rec.Values()
		}
		if _, err := sink.Copy(ctx, table, columns, values); err != nil {
			return fmt.Errorf("bulk insert into %s failed (first raw row of batch: %v): %w",
				table, firstRaw, err)
		}
		stats.Created += len(batch)
		batch = batch[:0]
		firstRaw = nil
		return nil
	}

	for {
		raw, err := rows.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("%s row source: %w", opts.Label, err)
		}
		stats.Processed++

		rec, err := safeTransform(transform, raw)
		if errors.Is(err, mapping.ErrDuplicateMapping) {
			// a conflicting re-mapping is a structural defect, not a bad row
			return stats, fmt.Errorf("%s row %v: %w", opts.Label, raw, err)
		}
		if err != nil {
			stats.Dropped++
			stats.Failed++
			log.WithField("entity", opts.Label).WithField("row", raw).
				WithError(err).Error("row transform failed, dropping row")
			continue
		}
		if rec == nil {
			stats.Dropped++
			continue
		}

		if fieldSpec == nil {
			if cf, ok := rec.(CustomFielder); ok {
				spec := cf.CustomFields()
				fieldSpec = &spec
			}
		}
		if orig := rec.Original(); orig != "" && rec.TargetID() != 0 {
			fields = append(fields, importField{rec.TargetID(), schema.FieldImportID, orig})
			if extra, ok := rec.(ExtraImportFielder); ok {
				for name, value := range extra.ExtraImportFields() {
					fields = append(fields, importField{rec.TargetID(), name, value})
				}
			}
		}

		if rec.Skipped() {
			stats.Skipped++
			continue
		}

		if len(batch) == 0 {
			firstRaw = raw
		}
		batch = append(batch, rec)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}

		if stats.Processed%progressEvery == 0 {
			now := time.Now()
			rate := float64(progressEvery) / now.Sub(lastReport).Seconds()
			lastReport = now
			log.WithFields(logrus.Fields{
				"entity":   opts.Label,
				"rows":     stats.Processed,
				"rows/sec": int(rate),
			}).Info("progress")
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	if fieldSpec != nil && len(fields) > 0 {
		if err := writeImportFields(ctx, sink, *fieldSpec, fields, batchSize); err != nil {
			return stats, err
		}
	}

	log.WithFields(logrus.Fields{
		"entity":  opts.Label,
		"rows":    stats.Processed,
		"created": stats.Created,
		"skipped": stats.Skipped,
		"dropped": stats.Dropped,
		"took":    time.Since(started).Round(time.Millisecond).String(),
	}).Info("entity type loaded")

	return stats, nil
}

// LoadRecords persists records built ahead of time through the same batching
// and side-channel path as Load. Auxiliary tables are assembled while their
// owning entity streams and flushed afterwards through this.
func LoadRecords(ctx context.Context, sink Sink, recs []Record, opts Options) (*Stats, error) {
	rows := make([]source.Row, len(recs))
	for i := range recs {
		rows[i] = source.Row{"index": int64(i)}
	}
	transform := func(r source.Row) (Record, error) {
		return recs[r.Int("index")], nil
	}
	return Load(ctx, sink, source.NewSliceRows(rows...), transform, opts)
}

// safeTransform isolates row-level panics: a panicking transform is reported
// as a row error with its stack, not a run abort.
func safeTransform(transform Transform, raw source.Row) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = fmt.Errorf("transform panic: %v\n%s", r, debug.Stack())
		}
	}()
	return transform(raw)
}

func writeImportFields(ctx context.Context, sink Sink, spec schema.CustomFieldSpec, fields []importField, batchSize int) error {
	// deterministic order keeps re-runs comparable
	sort.SliceStable(fields, func(i, j int) bool {
		if fields[i].ownerID != fields[j].ownerID {
			return fields[i].ownerID < fields[j].ownerID
		}
		return fields[i].name < fields[j].name
	})

	columns := []string{spec.OwnerColumn, "name", "value", "created_at", "updated_at"}
	now := time.Now().UTC()
	for start := 0; start < len(fields); start += batchSize {
		end := min(start+batchSize, len(fields))
		values := make([][]any, 0, end-start)
		for _, f := range fields[start:end] {
			values = append(values, []any{f.ownerID, f.name, f.value, now, now})
		}
		if _, err := sink.Copy(ctx, spec.Table, columns, values); err != nil {
			return fmt.Errorf("write %s import fields: %w", spec.Table, err)
		}
	}
	return nil
}
