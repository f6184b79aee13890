package bridge

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/viant/sqlite-vptree/alloc"
	"github.com/viant/sqlite-vptree/handle"
	"github.com/viant/sqlite-vptree/index"
)

// Session is a tree session: an engine, the retained distance callback, the
// insertions not yet merged and the incremental enumerations it owns.
type Session struct {
	id       string
	handle   handle.Handle
	bridge   *Bridge
	engine   index.Engine
	callback Callback

	mu          sync.Mutex
	head        *pendingNode
	lastFlushed *pendingNode
	merged      []Value // duplicates now retained by the engine
	iters       map[handle.Handle]*incSession
	busy        bool
	ctx         context.Context
	destroyed   bool
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID         string
	Handle     handle.Handle
	Population int
	Pending    int
	Iterators  int
	Busy       bool
}

// ID returns the session uuid.
func (s *Session) ID() string { return s.id }

// Handle returns the session handle.
func (s *Session) Handle() handle.Handle { return s.handle }

// Info returns a snapshot of the session counters.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:         s.id,
		Handle:     s.handle,
		Population: s.engine.Population(),
		Pending:    s.pendingCount(),
		Iterators:  len(s.iters),
		Busy:       s.busy,
	}
}

// Size returns the number of elements ever inserted, merged or not.
func (s *Session) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.head == nil {
		return 0
	}
	return s.head.index + 1
}

func newSession(b *Bridge, engine index.Engine, callback Callback) *Session {
	return &Session{
		id:       uuid.New().String(),
		bridge:   b,
		engine:   engine,
		callback: callback,
		iters:    map[handle.Handle]*incSession{},
		ctx:      context.Background(),
	}
}

// enter marks the session busy for the duration of an engine call. Distance
// callbacks issued meanwhile run with ctx.
func (s *Session) enter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrSessionBusy
	}
	s.busy = true
	s.ctx = ctx
	return nil
}

func (s *Session) exit() {
	s.mu.Lock()
	s.busy = false
	s.ctx = context.Background()
	s.mu.Unlock()
}

func (s *Session) callContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Session) add(element Value) error {
	dup, err := s.bridge.host.Duplicate(element)
	if err != nil {
		return err
	}
	block, err := s.bridge.alloc.Allocate(pendingNodeSize)
	if err != nil {
		s.bridge.host.Release(dup)
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.push(dup, block)
	return nil
}

func (s *Session) addMany(elements []Value) error {
	dups := make([]Value, 0, len(elements))
	blocks := make([]*alloc.Block, 0, len(elements))
	rollback := func() {
		for _, d := range dups {
			s.bridge.host.Release(d)
		}
		for _, b := range blocks {
			_ = s.bridge.alloc.Deallocate(b)
		}
	}
	for _, e := range elements {
		dup, err := s.bridge.host.Duplicate(e)
		if err != nil {
			rollback()
			return err
		}
		dups = append(dups, dup)
		block, err := s.bridge.alloc.Allocate(pendingNodeSize)
		if err != nil {
			rollback()
			return err
		}
		blocks = append(blocks, block)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, dup := range dups {
		s.push(dup, blocks[i])
	}
	return nil
}

func (s *Session) nearestNeighbor(ctx context.Context, query Value, k, maxNodes int, approx bool) ([]index.Neighbor, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	defer s.exit()
	if err := s.flush(); err != nil {
		return nil, err
	}
	if population := s.engine.Population(); k > population {
		k = population
	}
	if k <= 0 {
		return nil, nil
	}
	dq, err := s.bridge.host.Duplicate(query)
	if err != nil {
		return nil, err
	}
	defer s.bridge.host.Release(dq)
	out := make([]index.Neighbor, k)
	var n int
	if approx {
		n, err = s.engine.NearestNeighborApprox(dq, out, maxNodes)
	} else {
		n, err = s.engine.NearestNeighbor(dq, out)
	}
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (s *Session) neighborhood(ctx context.Context, query Value, radius float64) ([]index.Neighbor, error) {
	if err := s.enter(ctx); err != nil {
		return nil, err
	}
	defer s.exit()
	if err := s.flush(); err != nil {
		return nil, err
	}
	dq, err := s.bridge.host.Duplicate(query)
	if err != nil {
		return nil, err
	}
	defer s.bridge.host.Release(dq)
	buf, err := s.engine.Neighborhood(dq, radius)
	if err != nil {
		return nil, err
	}
	neighbors := buf.Neighbors
	if err = s.bridge.alloc.Deallocate(buf.Block); err != nil {
		return nil, err
	}
	return neighbors, nil
}

// destroy releases, in order, the incremental sessions, the pending
// elements, the engine, the elements it retained and the callback.
func (s *Session) destroy(ctx context.Context) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	iters := make([]*incSession, 0, len(s.iters))
	for _, inc := range s.iters {
		iters = append(iters, inc)
	}
	s.mu.Unlock()

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, inc := range iters {
		keep(s.endIncremental(inc))
	}

	s.mu.Lock()
	dropped, err := s.dropPending()
	keep(err)
	merged := s.merged
	s.merged = nil
	s.destroyed = true
	s.mu.Unlock()

	keep(s.engine.Destroy())
	for _, v := range merged {
		s.bridge.host.Release(v)
	}
	s.callback.Release()
	s.exit()
	s.bridge.logger.Debug("session destroyed", "session", s.id, "pending", dropped, "iterators", len(iters))
	return first
}
