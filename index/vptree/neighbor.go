package vptree

// candidate is a point with its distance to the query.
type candidate struct {
	point    int32
	distance float64
}

// candidates implements heap.Interface sorted by descending distance (max-heap).
type candidates []candidate

func (h candidates) Len() int           { return len(h) }
func (h candidates) Less(i, j int) bool { return h[i].distance > h[j].distance }
func (h candidates) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidates) Push(x interface{}) {
	*h = append(*h, x.(candidate))
}

func (h *candidates) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// frontierItem is either an unexpanded subtree keyed by a lower bound on the
// distance of anything inside it, or a point keyed by its exact distance.
type frontierItem struct {
	node  *node // nil for point items
	point int32
	key   float64
}

// frontier is a min-heap on key; points win ties so they surface before
// subtrees that cannot beat them.
type frontier []frontierItem

func (q frontier) Len() int { return len(q) }
func (q frontier) Less(i, j int) bool {
	if q[i].key == q[j].key {
		return q[i].node == nil && q[j].node != nil
	}
	return q[i].key < q[j].key
}
func (q frontier) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *frontier) Push(x interface{}) { *q = append(*q, x.(frontierItem)) }
func (q *frontier) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
