package postnum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrimer struct {
	highest  map[int64]int
	repaired bool
}

func (f *fakePrimer) HighestPostNumbers(_ context.Context, fn func(int64, int) error) error {
	for id, h := range f.highest {
		if err := fn(id, h); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakePrimer) RepairPostNumbers(_ context.Context) (int64, error) {
	f.repaired = true
	return 0, nil
}

func TestNextStartsAtOne(t *testing.T) {
	idx := NewIndex()

	for n := 1; n <= 5; n++ {
		assert.Equal(t, n, idx.Next(42))
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	idx := NewIndex()

	assert.Equal(t, 1, idx.Next(1))
	assert.Equal(t, 1, idx.Next(2))
	assert.Equal(t, 2, idx.Next(1))
	assert.Equal(t, 2, idx.Next(2))
	assert.Equal(t, 3, idx.Next(1))
}

func TestPrimeSeedsFromTarget(t *testing.T) {
	idx := NewIndex()
	p := &fakePrimer{highest: map[int64]int{7: 12}}

	require.NoError(t, idx.Prime(context.Background(), p))

	assert.True(t, p.repaired, "Prime must run the consistency repair first")
	assert.Equal(t, 13, idx.Next(7))
	assert.Equal(t, 1, idx.Next(8))
}
