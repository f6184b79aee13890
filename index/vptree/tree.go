package vptree

import (
	"container/heap"
	"errors"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"unsafe"

	"github.com/viant/sqlite-vptree/alloc"
	"github.com/viant/sqlite-vptree/index"
)

var neighborSize = int(unsafe.Sizeof(index.Neighbor{}))

// Tree is a vantage-point tree engine.
type Tree struct {
	distance index.DistanceFunc
	alloc    alloc.Allocator
	logger   *slog.Logger

	writeMu   sync.Mutex // serializes rebuilds
	mu        sync.Mutex
	current   *snapshot
	stats     index.Stats
	destroyed bool
}

// New creates an empty tree. Options.Distance is required.
func New(opts index.Options) (*Tree, error) {
	if opts.Distance == nil {
		return nil, errors.New("vptree: distance function is required")
	}
	if opts.Allocator == nil {
		opts.Allocator = alloc.NewPersistent(alloc.Config{})
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tree{distance: opts.Distance, alloc: opts.Allocator, logger: opts.Logger}, nil
}

// Factory adapts New to index.Factory.
func Factory(opts index.Options) (index.Engine, error) {
	return New(opts)
}

// AddMany rebuilds the tree over the current elements plus elements. The new
// tree replaces the old one only when the build succeeds.
func (t *Tree) AddMany(elements []index.Element) error {
	if len(elements) == 0 {
		return nil
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	old, err := t.acquire()
	if err != nil {
		return err
	}
	var merged []index.Element
	if old != nil {
		merged = make([]index.Element, 0, len(old.elements)+len(elements))
		merged = append(merged, old.elements...)
		_ = old.release()
	}
	merged = append(merged, elements...)

	next, evals, err := newSnapshot(merged, t.distance, t.alloc)
	if err != nil {
		return err
	}
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		_ = next.release()
		return index.ErrDestroyed
	}
	prev := t.current
	t.current = next
	t.mu.Unlock()
	t.logger.Debug("vptree rebuilt", "population", len(merged), "added", len(elements), "evals", evals)
	if prev != nil {
		return prev.release()
	}
	return nil
}

// Population returns the number of indexed elements.
func (t *Tree) Population() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return 0
	}
	return len(t.current.elements)
}

// Stats returns the work done by the last query.
func (t *Tree) Stats() index.Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// NearestNeighbor implements index.Engine.
func (t *Tree) NearestNeighbor(query index.Element, out []index.Neighbor) (int, error) {
	return t.knn(query, out, 0)
}

// NearestNeighborApprox implements index.Engine. A non-positive maxNodes
// visits nothing.
func (t *Tree) NearestNeighborApprox(query index.Element, out []index.Neighbor, maxNodes int) (int, error) {
	if maxNodes <= 0 {
		t.setStats(index.Stats{})
		return 0, nil
	}
	return t.knn(query, out, maxNodes)
}

func (t *Tree) knn(query index.Element, out []index.Neighbor, budget int) (int, error) {
	snap, err := t.acquire()
	if err != nil || snap == nil || len(out) == 0 {
		t.setStats(index.Stats{})
		return 0, err
	}
	defer snap.release()
	s := &search{snap: snap, query: query, distance: t.distance, k: len(out), budget: budget, tau: math.Inf(1)}
	err = s.visit(snap.root)
	t.setStats(index.Stats{NodesVisited: s.visited, DistanceEvals: s.evals})
	if err != nil {
		return 0, err
	}
	n := s.h.Len()
	for i := n - 1; i >= 0; i-- {
		c := heap.Pop(&s.h).(candidate)
		out[i] = index.Neighbor{Element: snap.elements[c.point], Distance: c.distance}
	}
	return n, nil
}

// Neighborhood implements index.Engine. The result is ordered by ascending
// distance.
func (t *Tree) Neighborhood(query index.Element, radius float64) (*index.Buffer, error) {
	snap, err := t.acquire()
	if err != nil {
		return nil, err
	}
	var found []candidate
	s := &search{query: query, distance: t.distance, tau: radius}
	if snap != nil {
		defer snap.release()
		s.snap = snap
		s.collect = func(c candidate) { found = append(found, c) }
		err = s.visit(snap.root)
	}
	t.setStats(index.Stats{NodesVisited: s.visited, DistanceEvals: s.evals})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].distance < found[j].distance })
	block, err := t.alloc.Allocate(len(found) * neighborSize)
	if err != nil {
		return nil, err
	}
	buf := &index.Buffer{Neighbors: make([]index.Neighbor, len(found)), Block: block}
	for i, c := range found {
		buf.Neighbors[i] = index.Neighbor{Element: snap.elements[c.point], Distance: c.distance}
	}
	return buf, nil
}

// IncrementalBegin implements index.Engine.
func (t *Tree) IncrementalBegin(query index.Element) (index.Iterator, error) {
	return t.Begin(query)
}

// Begin starts an incremental enumeration pinned to the current tree.
func (t *Tree) Begin(query index.Element) (*Iterator, error) {
	snap, err := t.acquire()
	if err != nil {
		return nil, err
	}
	it := newIterator(t, snap, query)
	if snap != nil && snap.root != nil {
		heap.Push(&it.frontier, frontierItem{node: snap.root, key: 0})
	}
	return it, nil
}

// Destroy releases the tree. Iterators still pinning a snapshot keep it
// alive until they end.
func (t *Tree) Destroy() error {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return nil
	}
	t.destroyed = true
	snap := t.current
	t.current = nil
	t.mu.Unlock()
	if snap != nil {
		return snap.release()
	}
	return nil
}

func (t *Tree) acquire() (*snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return nil, index.ErrDestroyed
	}
	if t.current == nil {
		return nil, nil
	}
	return t.current.acquire(), nil
}

func (t *Tree) setStats(stats index.Stats) {
	t.mu.Lock()
	t.stats = stats
	t.mu.Unlock()
}

// search is a depth-first traversal pruned by the triangle inequality.
// With collect set it gathers every point within tau; otherwise it keeps the
// k nearest and shrinks tau as the heap fills.
type search struct {
	snap     *snapshot
	query    index.Element
	distance index.DistanceFunc
	k        int
	budget   int
	tau      float64
	collect  func(candidate)
	h        candidates
	visited  int
	evals    int
}

func (s *search) visit(n *node) error {
	if n == nil {
		return nil
	}
	if s.budget > 0 && s.visited >= s.budget {
		return nil
	}
	s.visited++
	d, err := s.distance(s.query, s.snap.elements[n.point])
	if err != nil {
		return err
	}
	s.evals++
	if s.collect != nil {
		if d <= s.tau {
			s.collect(candidate{point: n.point, distance: d})
		}
	} else {
		if s.h.Len() < s.k {
			heap.Push(&s.h, candidate{point: n.point, distance: d})
		} else if d < s.h[0].distance {
			heap.Pop(&s.h)
			heap.Push(&s.h, candidate{point: n.point, distance: d})
		}
		if s.h.Len() == s.k {
			s.tau = s.h[0].distance
		}
	}
	if d < n.thr {
		if d-s.tau <= n.thr {
			if err = s.visit(n.left); err != nil {
				return err
			}
		}
		if d+s.tau >= n.thr {
			return s.visit(n.right)
		}
		return nil
	}
	if d+s.tau >= n.thr {
		if err = s.visit(n.right); err != nil {
			return err
		}
	}
	if d-s.tau <= n.thr {
		return s.visit(n.left)
	}
	return nil
}
