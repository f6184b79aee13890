package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/sqlite-vptree/handle"
	"github.com/viant/sqlite-vptree/index"
)

type incState uint8

const (
	incCreated incState = iota
	incActive
	incExhausted
	incEnded
)

func (s incState) String() string {
	switch s {
	case incCreated:
		return "created"
	case incActive:
		return "active"
	case incExhausted:
		return "exhausted"
	case incEnded:
		return "ended"
	}
	return fmt.Sprintf("incState(%d)", uint8(s))
}

// incSession is an incremental enumeration: the retained query, the engine
// iterator and the tree session that owns both.
type incSession struct {
	handle handle.Handle
	owner  *Session
	query  Value
	iter   index.Iterator
	state  incState
}

func (s *Session) beginIncremental(ctx context.Context, query Value) (*incSession, error) {
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
	inc := &incSession{owner: s, query: dq, state: incCreated}
	if inc.iter, err = s.engine.IncrementalBegin(dq); err != nil {
		s.bridge.host.Release(dq)
		return nil, err
	}
	inc.handle = s.bridge.iters.Insert(inc)
	s.mu.Lock()
	s.iters[inc.handle] = inc
	s.mu.Unlock()
	inc.state = incActive
	return inc, nil
}

// nextIncremental returns the next element, or exhausted=true once the
// engine has nothing left. Exhaustion is sticky.
func (s *Session) nextIncremental(ctx context.Context, inc *incSession) (index.Neighbor, bool, error) {
	if err := s.enter(ctx); err != nil {
		return index.Neighbor{}, false, err
	}
	defer s.exit()
	switch inc.state {
	case incExhausted:
		return index.Neighbor{}, true, nil
	case incActive:
	default:
		return index.Neighbor{}, false, fmt.Errorf("%w: next in %v", ErrInvalidState, inc.state)
	}
	nb, err := inc.iter.Next()
	if errors.Is(err, index.ErrExhausted) {
		inc.state = incExhausted
		return index.Neighbor{}, true, nil
	}
	if err != nil {
		return index.Neighbor{}, false, err
	}
	return nb, false, nil
}

func (s *Session) finishIncremental(ctx context.Context, inc *incSession) error {
	if err := s.enter(ctx); err != nil {
		return err
	}
	defer s.exit()
	if inc.state != incActive && inc.state != incExhausted {
		return fmt.Errorf("%w: end in %v", ErrInvalidState, inc.state)
	}
	return s.endIncremental(inc)
}

// endIncremental releases the iterator and the retained query and retires
// the handle. The session must be entered.
func (s *Session) endIncremental(inc *incSession) error {
	err := inc.iter.End()
	s.bridge.host.Release(inc.query)
	inc.query = nil
	inc.state = incEnded
	if _, rmErr := s.bridge.iters.Remove(inc.handle); rmErr != nil && err == nil {
		err = rmErr
	}
	s.mu.Lock()
	delete(s.iters, inc.handle)
	s.mu.Unlock()
	return err
}
