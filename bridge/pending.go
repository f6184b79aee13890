package bridge

import (
	"unsafe"

	"github.com/viant/sqlite-vptree/alloc"
	"github.com/viant/sqlite-vptree/index"
)

var pendingNodeSize = int(unsafe.Sizeof(pendingNode{}))

// pendingNode is a buffered insertion. Nodes form a newest-first list whose
// indices grow by one from the oldest (0) to the head.
type pendingNode struct {
	element Value
	index   int
	next    *pendingNode // older
	block   *alloc.Block
}

// push prepends element as the new head. Callers hold the session lock.
func (s *Session) push(element Value, block *alloc.Block) {
	n := &pendingNode{element: element, block: block}
	if s.head != nil {
		n.index = s.head.index + 1
		n.next = s.head
	}
	s.head = n
}

// pendingCount returns how many nodes are newer than the last-flushed marker.
// Callers hold the session lock.
func (s *Session) pendingCount() int {
	if s.head == nil {
		return 0
	}
	if s.lastFlushed == nil {
		return s.head.index + 1
	}
	return s.head.index - s.lastFlushed.index
}

// flush merges every pending element into the engine in one AddMany call,
// oldest first. The session must be entered.
func (s *Session) flush() error {
	s.mu.Lock()
	head := s.head
	count := s.pendingCount()
	s.mu.Unlock()
	if count == 0 {
		return nil
	}
	batch := make([]index.Element, count)
	nodes := make([]*pendingNode, count)
	n := head
	for i := count - 1; i >= 0; i-- {
		batch[i] = n.element
		nodes[i] = n
		n = n.next
	}
	if err := s.engine.AddMany(batch); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastFlushed = head
	// flushed nodes are never walked again
	head.next = nil
	s.merged = append(s.merged, batch...)
	s.mu.Unlock()

	var first error
	for _, node := range nodes {
		if err := s.bridge.alloc.Deallocate(node.block); err != nil && first == nil {
			first = err
		}
		node.block = nil
		node.element = nil
	}
	s.bridge.metrics.FlushesTotal.Inc()
	s.bridge.metrics.FlushedElementsTotal.Add(float64(count))
	s.bridge.logger.Debug("flushed pending elements", "session", s.id, "count", count, "population", s.engine.Population())
	return first
}

// dropPending releases every node newer than the last-flushed marker.
// Callers hold the session lock.
func (s *Session) dropPending() (int, error) {
	count := s.pendingCount()
	var first error
	n := s.head
	for i := 0; i < count; i++ {
		s.bridge.host.Release(n.element)
		if err := s.bridge.alloc.Deallocate(n.block); err != nil && first == nil {
			first = err
		}
		n.block = nil
		n.element = nil
		n = n.next
	}
	s.head, s.lastFlushed = nil, nil
	return count, first
}
