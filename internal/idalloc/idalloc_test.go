package idalloc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevermore/portage/internal/mapping"
)

type fakeSeeder map[mapping.EntityType]int64

func (f fakeSeeder) MaxID(_ context.Context, t mapping.EntityType) (int64, error) {
	return f[t], nil
}

type fakeFinalizer map[mapping.EntityType]int64

func (f fakeFinalizer) SetSequence(_ context.Context, t mapping.EntityType, v int64) error {
	f[t] = v
	return nil
}

func TestNextStrictlyIncreasing(t *testing.T) {
	a := NewAt(map[mapping.EntityType]int64{mapping.User: 0})

	prev := int64(0)
	for i := 0; i < 100; i++ {
		got := a.Next(mapping.User)
		assert.Greater(t, got, prev)
		prev = got
	}
}

func TestNextExceedsSeed(t *testing.T) {
	ctx := context.Background()
	a, err := Seed(ctx, fakeSeeder{mapping.Topic: 250, mapping.Post: 9000},
		mapping.Topic, mapping.Post)
	require.NoError(t, err)

	assert.Equal(t, int64(251), a.Next(mapping.Topic))
	assert.Equal(t, int64(9001), a.Next(mapping.Post))
	assert.Equal(t, int64(9002), a.Next(mapping.Post))
}

func TestCountersAreIndependent(t *testing.T) {
	a := NewAt(map[mapping.EntityType]int64{})

	assert.Equal(t, int64(1), a.Next(mapping.User))
	assert.Equal(t, int64(1), a.Next(mapping.Group))
	assert.Equal(t, int64(2), a.Next(mapping.User))
}

func TestFinalizePushesCounters(t *testing.T) {
	ctx := context.Background()
	a := NewAt(map[mapping.EntityType]int64{mapping.User: 10})
	a.Next(mapping.User)
	a.Next(mapping.User)
	a.Next(mapping.Topic)

	sink := fakeFinalizer{}
	require.NoError(t, a.Finalize(ctx, sink))

	assert.Equal(t, int64(12), sink[mapping.User])
	assert.Equal(t, int64(1), sink[mapping.Topic])
}

func TestFinalizeSkipsUntouchedTypes(t *testing.T) {
	ctx := context.Background()
	a := NewAt(map[mapping.EntityType]int64{mapping.Upload: 0})

	sink := fakeFinalizer{}
	require.NoError(t, a.Finalize(ctx, sink))

	_, ok := sink[mapping.Upload]
	assert.False(t, ok)
}
