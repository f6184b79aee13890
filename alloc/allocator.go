package alloc

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrMemoryLimitExceeded is returned when an allocation would exceed the budget.
	ErrMemoryLimitExceeded = errors.New("alloc: memory limit exceeded")
	// ErrDoubleFree is returned when a block is released twice.
	ErrDoubleFree = errors.New("alloc: block released twice")
	// ErrForeignBlock is returned when a block is released through an allocator that did not issue it.
	ErrForeignBlock = errors.New("alloc: block issued by another allocator")
)

// Allocator issues and releases persistent blocks. Blocks survive across
// host calls until explicitly deallocated.
type Allocator interface {
	Allocate(size int) (*Block, error)
	Deallocate(block *Block) error
}

// Block is an accounted region of memory.
type Block struct {
	id       uint64
	size     int
	owner    Allocator
	released atomic.Bool
}

// ID returns the block sequence number within its allocator.
func (b *Block) ID() uint64 { return b.id }

// Size returns the accounted size in bytes.
func (b *Block) Size() int { return b.size }

// Released reports whether the block was deallocated.
func (b *Block) Released() bool { return b.released.Load() }

// Config holds allocator limits.
type Config struct {
	// MemoryLimitBytes is the hard budget; 0 means track only.
	MemoryLimitBytes int64
}

// Persistent is the default allocator. It accounts every live block against
// an optional budget.
type Persistent struct {
	cfg    Config
	sem    *semaphore.Weighted // nil if unlimited
	used   atomic.Int64
	nextID atomic.Uint64
}

// NewPersistent creates a persistent allocator.
func NewPersistent(cfg Config) *Persistent {
	p := &Persistent{cfg: cfg}
	if cfg.MemoryLimitBytes > 0 {
		p.sem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	return p
}

// Allocate reserves size bytes. It never blocks: when the budget is
// exhausted it fails with ErrMemoryLimitExceeded.
func (p *Persistent) Allocate(size int) (*Block, error) {
	if size < 0 {
		return nil, fmt.Errorf("alloc: negative size %d", size)
	}
	if p.sem != nil && size > 0 {
		if !p.sem.TryAcquire(int64(size)) {
			return nil, fmt.Errorf("%w: requested %d, used %d of %d", ErrMemoryLimitExceeded, size, p.used.Load(), p.cfg.MemoryLimitBytes)
		}
	}
	p.used.Add(int64(size))
	return &Block{id: p.nextID.Add(1), size: size, owner: p}, nil
}

// Deallocate returns block to the budget.
func (p *Persistent) Deallocate(block *Block) error {
	if block == nil {
		return nil
	}
	if block.owner != Allocator(p) {
		return ErrForeignBlock
	}
	if !block.released.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: block %d", ErrDoubleFree, block.id)
	}
	if p.sem != nil && block.size > 0 {
		p.sem.Release(int64(block.size))
	}
	p.used.Add(-int64(block.size))
	return nil
}

// Usage returns the bytes held by live blocks.
func (p *Persistent) Usage() int64 { return p.used.Load() }

// Limit returns the configured budget (0 if unlimited).
func (p *Persistent) Limit() int64 { return p.cfg.MemoryLimitBytes }

// Release deallocates every block in blocks, skipping nils, and returns the
// first error encountered.
func Release(a Allocator, blocks ...*Block) error {
	var first error
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if err := a.Deallocate(b); err != nil && first == nil {
			first = err
		}
	}
	return first
}
