package index

import (
	"errors"
	"log/slog"

	"github.com/viant/sqlite-vptree/alloc"
)

// ErrExhausted is returned by Iterator.Next once every element was emitted.
var ErrExhausted = errors.New("index: iterator exhausted")

// ErrDestroyed is returned by operations on a destroyed engine.
var ErrDestroyed = errors.New("index: engine destroyed")

// Element is an opaque point owned by the caller. Engines never inspect
// elements; they only pass them to the distance function.
type Element = any

// DistanceFunc measures two elements. Errors abort the enclosing operation.
type DistanceFunc func(a, b Element) (float64, error)

// Neighbor is an element with its distance to the query.
type Neighbor struct {
	Element  Element
	Distance float64
}

// Options configure an engine instance.
type Options struct {
	Distance  DistanceFunc
	Allocator alloc.Allocator
	Logger    *slog.Logger
}

// Stats describes the work done by the most recent query.
type Stats struct {
	NodesVisited  int
	DistanceEvals int
}

// Buffer holds a neighborhood result. Its block was issued by the engine's
// allocator and must be returned to that allocator by the caller.
type Buffer struct {
	Neighbors []Neighbor
	Block     *alloc.Block
}

// Engine is a metric nearest-neighbor index.
type Engine interface {
	// AddMany merges elements into the index. The engine retains them.
	// On error the index is left unchanged.
	AddMany(elements []Element) error

	// Population returns the number of indexed elements.
	Population() int

	// NearestNeighbor fills out with the len(out) nearest elements in
	// ascending distance and returns how many were written.
	NearestNeighbor(query Element, out []Neighbor) (int, error)

	// NearestNeighborApprox is NearestNeighbor with at most maxNodes
	// node visits.
	NearestNeighborApprox(query Element, out []Neighbor, maxNodes int) (int, error)

	// Neighborhood returns every element within radius of query.
	Neighborhood(query Element, radius float64) (*Buffer, error)

	// IncrementalBegin starts a lazy enumeration in ascending distance.
	IncrementalBegin(query Element) (Iterator, error)

	// Stats reports the last query's work.
	Stats() Stats

	// Destroy releases every block the engine holds.
	Destroy() error
}

// Iterator enumerates neighbors one at a time.
type Iterator interface {
	// Next returns the next nearest neighbor or ErrExhausted.
	Next() (Neighbor, error)
	// End releases the iterator.
	End() error
}

// Factory creates an engine.
type Factory func(opts Options) (Engine, error)
