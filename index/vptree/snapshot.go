package vptree

import (
	"sort"
	"sync/atomic"
	"unsafe"

	"github.com/viant/sqlite-vptree/alloc"
	"github.com/viant/sqlite-vptree/index"
)

var nodeSize = int(unsafe.Sizeof(node{}))

type node struct {
	point int32 // vantage point, index into snapshot.elements
	thr   float64
	left  *node
	right *node
}

// snapshot is an immutable tree over a fixed element set.
type snapshot struct {
	elements []index.Element
	root     *node
	byPoint  []*node
	blocks   []*alloc.Block
	alloc    alloc.Allocator
	refs     atomic.Int32
}

func (s *snapshot) acquire() *snapshot {
	s.refs.Add(1)
	return s
}

// release drops one reference and frees the node blocks with the last one.
func (s *snapshot) release() error {
	if s.refs.Add(-1) != 0 {
		return nil
	}
	blocks := s.blocks
	s.blocks = nil
	return alloc.Release(s.alloc, blocks...)
}

type builder struct {
	elements []index.Element
	distance index.DistanceFunc
	alloc    alloc.Allocator
	byPoint  []*node
	blocks   []*alloc.Block
	evals    int
}

func newSnapshot(elements []index.Element, distance index.DistanceFunc, allocator alloc.Allocator) (*snapshot, int, error) {
	b := &builder{
		elements: elements,
		distance: distance,
		alloc:    allocator,
		byPoint:  make([]*node, len(elements)),
		blocks:   make([]*alloc.Block, 0, len(elements)),
	}
	idxs := make([]int32, len(elements))
	for k := range idxs {
		idxs[k] = int32(k)
	}
	root, err := b.build(idxs)
	if err != nil {
		_ = alloc.Release(allocator, b.blocks...)
		return nil, b.evals, err
	}
	s := &snapshot{elements: elements, root: root, byPoint: b.byPoint, blocks: b.blocks, alloc: allocator}
	s.refs.Store(1)
	return s, b.evals, nil
}

func (b *builder) build(idxs []int32) (*node, error) {
	if len(idxs) == 0 {
		return nil, nil
	}
	block, err := b.alloc.Allocate(nodeSize)
	if err != nil {
		return nil, err
	}
	b.blocks = append(b.blocks, block)
	// pick last as vantage point to avoid extra randomness
	vp := idxs[len(idxs)-1]
	idxs = idxs[:len(idxs)-1]
	n := &node{point: vp}
	b.byPoint[vp] = n
	if len(idxs) == 0 {
		return n, nil
	}
	dists := make([]float64, len(idxs))
	for k, j := range idxs {
		if dists[k], err = b.distance(b.elements[vp], b.elements[j]); err != nil {
			return nil, err
		}
		b.evals++
	}
	mid := len(dists) / 2
	order := make([]int, len(idxs))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, c int) bool { return dists[order[a]] < dists[order[c]] })
	n.thr = dists[order[mid]]
	leftIdxs := make([]int32, 0, mid+1)
	rightIdxs := make([]int32, 0, len(idxs)-(mid+1))
	for rank, k := range order {
		if rank <= mid {
			leftIdxs = append(leftIdxs, idxs[k])
		} else {
			rightIdxs = append(rightIdxs, idxs[k])
		}
	}
	if n.left, err = b.build(leftIdxs); err != nil {
		return nil, err
	}
	if n.right, err = b.build(rightIdxs); err != nil {
		return nil, err
	}
	return n, nil
}
