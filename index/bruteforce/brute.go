package bruteforce

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"unsafe"

	"github.com/viant/sqlite-vptree/alloc"
	"github.com/viant/sqlite-vptree/index"
)

var (
	elementSize  = int(unsafe.Sizeof(index.Element(nil)))
	neighborSize = int(unsafe.Sizeof(index.Neighbor{}))
)

// Index is a linear-scan engine. Every query measures every element.
type Index struct {
	distance index.DistanceFunc
	alloc    alloc.Allocator
	logger   *slog.Logger

	mu        sync.Mutex
	elements  []index.Element
	blocks    []*alloc.Block
	stats     index.Stats
	destroyed bool
}

// New creates an empty index. Options.Distance is required.
func New(opts index.Options) (*Index, error) {
	if opts.Distance == nil {
		return nil, errors.New("bruteforce: distance function is required")
	}
	if opts.Allocator == nil {
		opts.Allocator = alloc.NewPersistent(alloc.Config{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Index{distance: opts.Distance, alloc: opts.Allocator, logger: opts.Logger}, nil
}

// Factory adapts New to index.Factory.
func Factory(opts index.Options) (index.Engine, error) {
	return New(opts)
}

// AddMany appends elements, accounting one block per batch.
func (i *Index) AddMany(elements []index.Element) error {
	if len(elements) == 0 {
		return nil
	}
	block, err := i.alloc.Allocate(len(elements) * elementSize)
	if err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		_ = i.alloc.Deallocate(block)
		return index.ErrDestroyed
	}
	i.elements = append(i.elements, elements...)
	i.blocks = append(i.blocks, block)
	i.logger.Debug("bruteforce appended", "population", len(i.elements), "added", len(elements))
	return nil
}

// Population returns the number of elements.
func (i *Index) Population() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.elements)
}

// Stats returns the work done by the last query.
func (i *Index) Stats() index.Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

// NearestNeighbor implements index.Engine.
func (i *Index) NearestNeighbor(query index.Element, out []index.Neighbor) (int, error) {
	return i.NearestNeighborApprox(query, out, -1)
}

// NearestNeighborApprox scores at most maxNodes elements in insertion order;
// a negative maxNodes scores all of them.
func (i *Index) NearestNeighborApprox(query index.Element, out []index.Neighbor, maxNodes int) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}
	scoreds, err := i.score(query, maxNodes)
	if err != nil {
		return 0, err
	}
	n := copy(out, scoreds)
	return n, nil
}

// Neighborhood implements index.Engine.
func (i *Index) Neighborhood(query index.Element, radius float64) (*index.Buffer, error) {
	scoreds, err := i.score(query, -1)
	if err != nil {
		return nil, err
	}
	k := sort.Search(len(scoreds), func(j int) bool { return scoreds[j].Distance > radius })
	block, err := i.alloc.Allocate(k * neighborSize)
	if err != nil {
		return nil, err
	}
	return &index.Buffer{Neighbors: scoreds[:k:k], Block: block}, nil
}

// IncrementalBegin scores everything up front and replays it lazily.
func (i *Index) IncrementalBegin(query index.Element) (index.Iterator, error) {
	scoreds, err := i.score(query, -1)
	if err != nil {
		return nil, err
	}
	return &iterator{scoreds: scoreds}, nil
}

// Destroy releases every batch block.
func (i *Index) Destroy() error {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return nil
	}
	i.destroyed = true
	blocks := i.blocks
	i.blocks, i.elements = nil, nil
	i.mu.Unlock()
	return alloc.Release(i.alloc, blocks...)
}

func (i *Index) score(query index.Element, limit int) ([]index.Neighbor, error) {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return nil, index.ErrDestroyed
	}
	elements := i.elements
	i.mu.Unlock()
	if limit >= 0 && limit < len(elements) {
		elements = elements[:limit]
	}
	scoreds := make([]index.Neighbor, 0, len(elements))
	for _, e := range elements {
		d, err := i.distance(query, e)
		if err != nil {
			return nil, err
		}
		scoreds = append(scoreds, index.Neighbor{Element: e, Distance: d})
	}
	sort.SliceStable(scoreds, func(a, b int) bool { return scoreds[a].Distance < scoreds[b].Distance })
	i.mu.Lock()
	i.stats = index.Stats{NodesVisited: len(elements), DistanceEvals: len(elements)}
	i.mu.Unlock()
	return scoreds, nil
}

type iterator struct {
	scoreds []index.Neighbor
	pos     int
	ended   bool
}

func (it *iterator) Next() (index.Neighbor, error) {
	if it.ended || it.pos >= len(it.scoreds) {
		return index.Neighbor{}, index.ErrExhausted
	}
	nb := it.scoreds[it.pos]
	it.pos++
	return nb, nil
}

func (it *iterator) End() error {
	it.ended = true
	it.scoreds = nil
	return nil
}
