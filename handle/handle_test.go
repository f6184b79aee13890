package handle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_RoundTrip(t *testing.T) {
	table := NewTable[*int](1)
	values := make([]*int, 100)
	handles := make([]Handle, len(values))
	for i := range values {
		v := i
		values[i] = &v
		handles[i] = table.Insert(values[i])
	}
	// interleave unrelated churn
	other := NewTable[string](2)
	for i := 0; i < 10; i++ {
		h := other.Insert("x")
		_, err := other.Remove(h)
		require.NoError(t, err)
	}
	for i, h := range handles {
		got, err := table.Get(h)
		require.NoError(t, err)
		assert.Same(t, values[i], got)
		assert.Equal(t, h, FromInt64(h.Int64()))
	}
	assert.Equal(t, len(values), table.Len())
}

func TestTable_StaleAfterRemove(t *testing.T) {
	table := NewTable[string](3)
	h := table.Insert("a")
	v, err := table.Remove(h)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	_, err = table.Get(h)
	assert.ErrorIs(t, err, ErrStaleHandle)
	_, err = table.Remove(h)
	assert.ErrorIs(t, err, ErrStaleHandle)

	// the slot is reused with a new generation; the old handle stays stale
	h2 := table.Insert("b")
	assert.Equal(t, h.Slot(), h2.Slot())
	assert.NotEqual(t, h.Generation(), h2.Generation())
	_, err = table.Get(h)
	assert.ErrorIs(t, err, ErrStaleHandle)
	got, err := table.Get(h2)
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestTable_Forged(t *testing.T) {
	trees := NewTable[string](1)
	iters := NewTable[string](2)
	h := trees.Insert("tree")

	testCases := []struct {
		name   string
		handle Handle
	}{
		{name: "zero", handle: 0},
		{name: "wrong kind", handle: makeHandle(2, h.Generation(), h.Slot())},
		{name: "slot out of range", handle: makeHandle(1, 0, 999)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := trees.Get(tc.handle)
			assert.ErrorIs(t, err, ErrInvalidHandle)
		})
	}

	_, err := iters.Get(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestTable_Range(t *testing.T) {
	table := NewTable[int](1)
	a := table.Insert(1)
	b := table.Insert(2)
	c := table.Insert(3)
	_, err := table.Remove(b)
	require.NoError(t, err)

	var seen []Handle
	table.Range(func(h Handle, v int) bool {
		seen = append(seen, h)
		return true
	})
	assert.Equal(t, []Handle{a, c}, seen)
}

func TestTable_RetiresExhaustedSlot(t *testing.T) {
	table := NewTable[string](1)
	first := table.Insert("a")
	idx := first.Slot()
	// fast-forward the slot to its last generation
	table.slots[idx].generation = generationMask
	last := makeHandle(1, generationMask, idx)

	_, err := table.Remove(last)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())

	next := table.Insert("b")
	assert.NotEqual(t, idx, next.Slot(), "retired slot must not be reused")
	for _, h := range []Handle{first, last} {
		_, err = table.Get(h)
		assert.ErrorIs(t, err, ErrStaleHandle)
	}
	got, err := table.Get(next)
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}
