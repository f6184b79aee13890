package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistent_Budget(t *testing.T) {
	p := NewPersistent(Config{MemoryLimitBytes: 100})

	a, err := p.Allocate(60)
	require.NoError(t, err)
	assert.EqualValues(t, 60, p.Usage())

	_, err = p.Allocate(50)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.EqualValues(t, 60, p.Usage())

	require.NoError(t, p.Deallocate(a))
	assert.True(t, a.Released())
	assert.EqualValues(t, 0, p.Usage())

	b, err := p.Allocate(100)
	require.NoError(t, err)
	require.NoError(t, p.Deallocate(b))
}

func TestPersistent_Errors(t *testing.T) {
	p := NewPersistent(Config{})
	other := NewPersistent(Config{})

	_, err := p.Allocate(-1)
	assert.Error(t, err)

	b, err := p.Allocate(8)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Deallocate(b), ErrForeignBlock)
	require.NoError(t, p.Deallocate(b))
	assert.ErrorIs(t, p.Deallocate(b), ErrDoubleFree)
	assert.NoError(t, p.Deallocate(nil))
}

func TestTracking_Counts(t *testing.T) {
	tr := NewTracking(NewPersistent(Config{MemoryLimitBytes: 32}))

	var blocks []*Block
	for i := 0; i < 4; i++ {
		b, err := tr.Allocate(8)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
	_, err := tr.Allocate(1)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)

	require.NoError(t, Release(tr, blocks[:3]...))
	assert.ErrorIs(t, tr.Deallocate(blocks[0]), ErrDoubleFree)

	assert.Equal(t, Counts{Allocs: 4, Frees: 3, DoubleFrees: 1, Failures: 1, Live: 1}, tr.Counts())
}
