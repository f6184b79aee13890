package vptree

import (
	"bytes"
	"container/heap"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/viant/sqlite-vptree/index"
)

var (
	// ErrIteratorEnded is returned by Next after End.
	ErrIteratorEnded = errors.New("vptree: iterator ended")
	// ErrStateMismatch is returned when a pause state does not fit the tree.
	ErrStateMismatch = errors.New("vptree: pause state does not match tree")
)

// Iterator enumerates the tree in ascending distance from a query using a
// best-first frontier. Subtrees are keyed by a triangle-inequality lower
// bound, points by their exact distance, so a point is emitted only when
// nothing left in the frontier can be closer.
type Iterator struct {
	tree     *Tree
	snap     *snapshot
	query    index.Element
	frontier frontier
	emitted  *roaring.Bitmap
	bound    float64
	visited  int
	ended    bool
}

func newIterator(t *Tree, snap *snapshot, query index.Element) *Iterator {
	return &Iterator{tree: t, snap: snap, query: query, emitted: roaring.New()}
}

// Next implements index.Iterator.
func (it *Iterator) Next() (index.Neighbor, error) {
	if it.ended {
		return index.Neighbor{}, ErrIteratorEnded
	}
	for it.frontier.Len() > 0 {
		item := heap.Pop(&it.frontier).(frontierItem)
		if item.node == nil {
			if it.emitted.Contains(uint32(item.point)) {
				continue
			}
			it.emitted.Add(uint32(item.point))
			it.bound = item.key
			return index.Neighbor{Element: it.snap.elements[item.point], Distance: item.key}, nil
		}
		n := item.node
		d, err := it.tree.distance(it.query, it.snap.elements[n.point])
		if err != nil {
			// leave the frontier as it was so the call can be retried
			heap.Push(&it.frontier, item)
			return index.Neighbor{}, err
		}
		it.visited++
		heap.Push(&it.frontier, frontierItem{point: n.point, key: d})
		if n.left != nil {
			heap.Push(&it.frontier, frontierItem{node: n.left, point: n.left.point, key: math.Max(item.key, d-n.thr)})
		}
		if n.right != nil {
			heap.Push(&it.frontier, frontierItem{node: n.right, point: n.right.point, key: math.Max(item.key, n.thr-d)})
		}
	}
	return index.Neighbor{}, index.ErrExhausted
}

// Visited returns the number of nodes expanded so far.
func (it *Iterator) Visited() int { return it.visited }

// End implements index.Iterator. It unpins the snapshot.
func (it *Iterator) End() error {
	if it.ended {
		return nil
	}
	it.ended = true
	it.frontier = nil
	if it.snap == nil {
		return nil
	}
	return it.snap.release()
}

// Pause captures the traversal so it can be resumed later with Tree.Resume.
func (it *Iterator) Pause() *PauseState {
	state := &PauseState{Emitted: it.emitted.Clone(), Bound: it.bound}
	if it.snap != nil {
		state.Population = len(it.snap.elements)
	}
	state.Frontier = make([]FrontierEntry, len(it.frontier))
	for i, item := range it.frontier {
		state.Frontier[i] = FrontierEntry{Point: item.point, Subtree: item.node != nil, Key: item.key}
	}
	return state
}

// FrontierEntry is one pending item of a paused traversal.
type FrontierEntry struct {
	Point   int32
	Subtree bool // the subtree rooted at Point's node, otherwise Point itself
	Key     float64
}

// PauseState is the serializable state of an incremental enumeration.
type PauseState struct {
	Population int
	Frontier   []FrontierEntry
	Emitted    *roaring.Bitmap
	Bound      float64
}

// MarshalBinary layout: population(uint32), bound(float64), n(uint32),
// n x [point(int32), subtree(uint8), key(float64)], then the emitted bitmap.
func (s *PauseState) MarshalBinary() ([]byte, error) {
	buf := &bytes.Buffer{}
	put := func(v any) { _ = binary.Write(buf, binary.LittleEndian, v) }
	put(uint32(s.Population))
	put(s.Bound)
	put(uint32(len(s.Frontier)))
	for _, e := range s.Frontier {
		var subtree uint8
		if e.Subtree {
			subtree = 1
		}
		put(e.Point)
		put(subtree)
		put(e.Key)
	}
	emitted := s.Emitted
	if emitted == nil {
		emitted = roaring.New()
	}
	if _, err := emitted.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("vptree: encode emitted set: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores a state written by MarshalBinary.
func (s *PauseState) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var population, n uint32
	if err := binary.Read(r, binary.LittleEndian, &population); err != nil {
		return fmt.Errorf("vptree: truncated pause state: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &s.Bound); err != nil {
		return fmt.Errorf("vptree: truncated pause state: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("vptree: truncated pause state: %w", err)
	}
	if int(n) > r.Len() {
		return errors.New("vptree: invalid frontier length")
	}
	s.Population = int(population)
	s.Frontier = make([]FrontierEntry, n)
	for i := range s.Frontier {
		var subtree uint8
		e := &s.Frontier[i]
		if err := binary.Read(r, binary.LittleEndian, &e.Point); err != nil {
			return fmt.Errorf("vptree: truncated frontier: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &subtree); err != nil {
			return fmt.Errorf("vptree: truncated frontier: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &e.Key); err != nil {
			return fmt.Errorf("vptree: truncated frontier: %w", err)
		}
		e.Subtree = subtree == 1
	}
	s.Emitted = roaring.New()
	if _, err := s.Emitted.ReadFrom(r); err != nil {
		return fmt.Errorf("vptree: decode emitted set: %w", err)
	}
	return nil
}

// Resume continues a paused enumeration on the current tree. The tree must
// not have grown since the state was captured.
func (t *Tree) Resume(query index.Element, state *PauseState) (*Iterator, error) {
	snap, err := t.acquire()
	if err != nil {
		return nil, err
	}
	population := 0
	if snap != nil {
		population = len(snap.elements)
	}
	if state.Population != population {
		if snap != nil {
			_ = snap.release()
		}
		return nil, fmt.Errorf("%w: population %d, tree has %d", ErrStateMismatch, state.Population, population)
	}
	it := newIterator(t, snap, query)
	if state.Emitted != nil {
		it.emitted = state.Emitted.Clone()
	}
	it.bound = state.Bound
	it.frontier = make(frontier, 0, len(state.Frontier))
	for _, e := range state.Frontier {
		if e.Point < 0 || int(e.Point) >= population {
			_ = it.End()
			return nil, fmt.Errorf("%w: point %d out of range", ErrStateMismatch, e.Point)
		}
		item := frontierItem{point: e.Point, key: e.Key}
		if e.Subtree {
			item.node = snap.byPoint[e.Point]
		}
		it.frontier = append(it.frontier, item)
	}
	heap.Init(&it.frontier)
	return it, nil
}
