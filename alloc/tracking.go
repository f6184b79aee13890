package alloc

import (
	"fmt"
	"sync"
)

// Tracking wraps an allocator and counts what passes through it.
type Tracking struct {
	base Allocator

	mu          sync.Mutex
	live        map[*Block]struct{}
	allocs      int
	frees       int
	doubleFrees int
	failures    int
}

// Counts is a snapshot of a Tracking allocator.
type Counts struct {
	Allocs      int
	Frees       int
	DoubleFrees int
	Failures    int
	Live        int
}

// NewTracking wraps base; a nil base uses an unlimited Persistent allocator.
func NewTracking(base Allocator) *Tracking {
	if base == nil {
		base = NewPersistent(Config{})
	}
	return &Tracking{base: base, live: map[*Block]struct{}{}}
}

// Allocate implements Allocator.
func (t *Tracking) Allocate(size int) (*Block, error) {
	block, err := t.base.Allocate(size)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.failures++
		return nil, err
	}
	t.allocs++
	t.live[block] = struct{}{}
	return block, nil
}

// Deallocate implements Allocator.
func (t *Tracking) Deallocate(block *Block) error {
	if block == nil {
		return nil
	}
	t.mu.Lock()
	if _, ok := t.live[block]; !ok {
		t.doubleFrees++
		t.mu.Unlock()
		return fmt.Errorf("%w: block %d", ErrDoubleFree, block.ID())
	}
	delete(t.live, block)
	t.frees++
	t.mu.Unlock()
	return t.base.Deallocate(block)
}

// Counts returns the current counters.
func (t *Tracking) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Counts{
		Allocs:      t.allocs,
		Frees:       t.frees,
		DoubleFrees: t.doubleFrees,
		Failures:    t.failures,
		Live:        len(t.live),
	}
}
