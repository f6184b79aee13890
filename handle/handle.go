package handle

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

// Handles must be at least as wide as a native address; this fails to
// compile on platforms where uintptr is wider than 64 bits.
var _ [8 - unsafe.Sizeof(uintptr(0))]struct{}

var (
	// ErrInvalidHandle is returned for handles that were never issued by a table.
	ErrInvalidHandle = errors.New("handle: invalid handle")
	// ErrStaleHandle is returned for handles whose object has been released.
	// A slot is retired once its 24-bit generation is used up, so a stale
	// handle never decodes to a later object.
	ErrStaleHandle = errors.New("handle: stale handle")
)

// Kind tags the object family a handle refers to.
type Kind uint8

const (
	generationBits = 24
	generationMask = 1<<generationBits - 1
	slotMask       = 1<<32 - 1
)

// Handle is an opaque identity for an object stored in a Table.
// Layout: [kind:8][generation:24][slot:32]. Slot 0 is never issued.
type Handle uint64

func makeHandle(kind Kind, generation uint32, slot uint32) Handle {
	return Handle(uint64(kind)<<56 | uint64(generation&generationMask)<<32 | uint64(slot))
}

// Kind returns the kind tag.
func (h Handle) Kind() Kind { return Kind(h >> 56) }

// Generation returns the slot generation the handle was issued for.
func (h Handle) Generation() uint32 { return uint32(h>>32) & generationMask }

// Slot returns the slot index.
func (h Handle) Slot() uint32 { return uint32(h & slotMask) }

// Int64 reinterprets the handle as a signed 64-bit integer, the widest
// integer most host runtimes (SQLite INTEGER among them) carry natively.
func (h Handle) Int64() int64 { return int64(h) }

// FromInt64 is the inverse of Handle.Int64.
func FromInt64(v int64) Handle { return Handle(uint64(v)) }

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d:%d", h.Kind(), h.Generation(), h.Slot())
}

type slot[T any] struct {
	generation uint32
	live       bool
	value      T
}

// Table stores objects and hands out handles to them.
// The zero value is not usable; use NewTable.
type Table[T any] struct {
	kind  Kind
	mu    sync.Mutex
	slots []slot[T]
	free  []uint32
	live  int
}

// NewTable creates a table whose handles carry the given kind tag.
func NewTable[T any](kind Kind) *Table[T] {
	// slot 0 is reserved so the zero Handle never decodes.
	return &Table[T]{kind: kind, slots: make([]slot[T], 1)}
}

// Insert stores value and returns its handle.
func (t *Table[T]) Insert(value T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot[T]{})
		idx = uint32(len(t.slots) - 1)
	}
	s := &t.slots[idx]
	s.live = true
	s.value = value
	t.live++
	return makeHandle(t.kind, s.generation, idx)
}

// Get resolves h to its object.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.value, nil
}

// Remove releases h and returns the object it referred to. Every handle
// previously issued for the slot becomes stale.
func (t *Table[T]) Remove(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	s, err := t.lookup(h)
	if err != nil {
		return zero, err
	}
	value := s.value
	s.value = zero
	s.live = false
	t.live--
	if s.generation == generationMask {
		// retired: the next generation would wrap onto handles already issued
		return value, nil
	}
	s.generation++
	t.free = append(t.free, h.Slot())
	return value, nil
}

// Len returns the number of live objects.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Range calls fn for every live object in slot order until fn returns false.
// It iterates over a snapshot, so fn may insert or remove.
func (t *Table[T]) Range(fn func(h Handle, value T) bool) {
	t.mu.Lock()
	type entry struct {
		h Handle
		v T
	}
	entries := make([]entry, 0, t.live)
	for i := 1; i < len(t.slots); i++ {
		s := &t.slots[i]
		if s.live {
			entries = append(entries, entry{h: makeHandle(t.kind, s.generation, uint32(i)), v: s.value})
		}
	}
	t.mu.Unlock()
	for _, e := range entries {
		if !fn(e.h, e.v) {
			return
		}
	}
}

func (t *Table[T]) lookup(h Handle) (*slot[T], error) {
	if h.Kind() != t.kind {
		return nil, fmt.Errorf("%w: kind %d, want %d", ErrInvalidHandle, h.Kind(), t.kind)
	}
	idx := h.Slot()
	if idx == 0 || int(idx) >= len(t.slots) {
		return nil, fmt.Errorf("%w: slot %d out of range", ErrInvalidHandle, idx)
	}
	s := &t.slots[idx]
	if !s.live || s.generation != h.Generation() {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return s, nil
}
