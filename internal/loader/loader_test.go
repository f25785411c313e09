package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevermore/portage/internal/schema"
	"github.com/stevermore/portage/internal/source"
)

type copyCall struct {
	table   string
	columns []string
	rows    [][]any
}

type fakeSink struct {
	calls   []copyCall
	failOn  string // table name that fails
	failErr error
}

func (f *fakeSink) Copy(_ context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if f.failOn == table {
		return 0, f.failErr
	}
	f.calls = append(f.calls, copyCall{table, columns, rows})
	return int64(len(rows)), nil
}

func (f *fakeSink) rowsFor(table string) int {
	n := 0
	for _, c := range f.calls {
		if c.table == table {
			n += len(c.rows)
		}
	}
	return n
}

func groupRow(id int64, name string) source.Row {
	return source.Row{"usergroupid": id, "title": name}
}

func groupTransform(nextID *int64) Transform {
	return func(r source.Row) (Record, error) {
		*nextID++
		return &schema.Group{
			Meta: schema.Meta{
				OriginalID: fmt.Sprint(r.Int64("usergroupid")),
				MappedID:   *nextID,
			},
			ID:        *nextID,
			Name:      r.Str("title"),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}, nil
	}
}

func TestLoadBatches(t *testing.T) {
	sink := &fakeSink{}
	rows := source.NewSliceRows(
		groupRow(1, "a"), groupRow(2, "b"), groupRow(3, "c"),
		groupRow(4, "d"), groupRow(5, "e"),
	)

	var id int64
	stats, err := Load(context.Background(), sink, rows, groupTransform(&id),
		Options{Label: "groups", BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Processed)
	assert.Equal(t, 5, stats.Created)
	assert.Equal(t, 5, sink.rowsFor("groups"))

	// 3 entity batches (2+2+1) plus one custom-field batch
	entityBatches := 0
	for _, c := range sink.calls {
		if c.table == "groups" {
			entityBatches++
			assert.LessOrEqual(t, len(c.rows), 2)
		}
	}
	assert.Equal(t, 3, entityBatches)
}

func TestLoadWritesImportFields(t *testing.T) {
	sink := &fakeSink{}
	rows := source.NewSliceRows(groupRow(10, "staff"))

	var id int64 = 100
	_, err := Load(context.Background(), sink, rows, groupTransform(&id),
		Options{Label: "groups"})
	require.NoError(t, err)

	require.Equal(t, 1, sink.rowsFor("group_custom_fields"))
	var call copyCall
	for _, c := range sink.calls {
		if c.table == "group_custom_fields" {
			call = c
		}
	}
	assert.Equal(t, []string{"group_id", "name", "value", "created_at", "updated_at"}, call.columns)
	assert.Equal(t, int64(101), call.rows[0][0])
	assert.Equal(t, schema.FieldImportID, call.rows[0][1])
	assert.Equal(t, "10", call.rows[0][2])
}

func TestSkippedRowsBypassSinkButKeepMapping(t *testing.T) {
	sink := &fakeSink{}
	rows := source.NewSliceRows(groupRow(1, "dup"))

	transform := func(r source.Row) (Record, error) {
		return &schema.Group{
			Meta: schema.Meta{
				OriginalID:  "1",
				SkipPersist: true,
				MappedID:    55, // pre-existing target record
			},
		}, nil
	}

	stats, err := Load(context.Background(), sink, rows, transform, Options{Label: "groups"})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 0, sink.rowsFor("groups"))

	// the original id is still folded into the custom-field write set
	require.Equal(t, 1, sink.rowsFor("group_custom_fields"))
}

func TestRowFailureIsIsolated(t *testing.T) {
	sink := &fakeSink{}
	rows := source.NewSliceRows(groupRow(1, "ok"), groupRow(2, "bad"), groupRow(3, "ok2"))

	var id int64
	base := groupTransform(&id)
	transform := func(r source.Row) (Record, error) {
		if r.Str("title") == "bad" {
			return nil, errors.New("malformed row")
		}
		return base(r)
	}

	stats, err := Load(context.Background(), sink, rows, transform, Options{Label: "groups"})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 1, stats.Failed)
}

func TestRowPanicIsIsolated(t *testing.T) {
	sink := &fakeSink{}
	rows := source.NewSliceRows(groupRow(1, "boom"), groupRow(2, "ok"))

	var id int64
	base := groupTransform(&id)
	transform := func(r source.Row) (Record, error) {
		if r.Str("title") == "boom" {
			panic("unexpected shape")
		}
		return base(r)
	}

	stats, err := Load(context.Background(), sink, rows, transform, Options{Label: "groups"})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Failed)
}

func TestAbsentRowsDroppedSilently(t *testing.T) {
	sink := &fakeSink{}
	rows := source.NewSliceRows(groupRow(1, "x"), groupRow(2, "y"))

	transform := func(r source.Row) (Record, error) { return nil, nil }

	stats, err := Load(context.Background(), sink, rows, transform, Options{Label: "groups"})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Dropped)
	assert.Equal(t, 0, stats.Failed)
	assert.Empty(t, sink.calls)
}

func TestBatchFailurePropagatesWithFirstRow(t *testing.T) {
	sink := &fakeSink{failOn: "groups", failErr: errors.New("constraint violation")}
	rows := source.NewSliceRows(groupRow(7, "first"), groupRow(8, "second"))

	var id int64
	_, err := Load(context.Background(), sink, rows, groupTransform(&id),
		Options{Label: "groups"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint violation")
	// diagnostics name the first raw row of the failing batch
	assert.Contains(t, err.Error(), "first")
}

func TestUploadImportFields(t *testing.T) {
	sink := &fakeSink{}
	rows := source.NewSliceRows(source.Row{"attachmentid": int64(77)})

	transform := func(r source.Row) (Record, error) {
		return &schema.Upload{
			Meta:      schema.Meta{OriginalID: "77", MappedID: 9},
			ID:        9,
			SHA1:      "da39a3ee5e6b4b0d3255bfef95601890afd80709",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}, nil
	}

	_, err := Load(context.Background(), sink, rows, transform, Options{Label: "uploads"})
	require.NoError(t, err)

	require.Equal(t, 1, sink.rowsFor("upload_custom_fields"))
	var call copyCall
	for _, c := range sink.calls {
		if c.table == "upload_custom_fields" {
			call = c
		}
	}
	assert.Equal(t, []string{"upload_id", "name", "value", "created_at", "updated_at"}, call.columns)
	assert.Equal(t, int64(9), call.rows[0][0])
	assert.Equal(t, schema.FieldImportID, call.rows[0][1])
	assert.Equal(t, "77", call.rows[0][2])
}

func TestUserExtraImportFields(t *testing.T) {
	sink := &fakeSink{}
	rows := source.NewSliceRows(source.Row{"userid": int64(9), "username": "Zoë"})

	transform := func(r source.Row) (Record, error) {
		return &schema.User{
			Meta:             schema.Meta{OriginalID: "9", MappedID: 1},
			ID:               1,
			Username:         "Zoe",
			OriginalUsername: "Zoë",
			CreatedAt:        time.Now(),
			UpdatedAt:        time.Now(),
		}, nil
	}

	_, err := Load(context.Background(), sink, rows, transform, Options{Label: "users"})
	require.NoError(t, err)

	names := map[string]string{}
	for _, c := range sink.calls {
		if c.table != "user_custom_fields" {
			continue
		}
		for _, row := range c.rows {
			names[row[1].(string)] = row[2].(string)
		}
	}
	assert.Equal(t, "9", names[schema.FieldImportID])
	assert.Equal(t, "Zoë", names[schema.FieldImportUsername])
}
