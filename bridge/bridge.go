package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/viant/sqlite-vptree/alloc"
	"github.com/viant/sqlite-vptree/handle"
	"github.com/viant/sqlite-vptree/index"
)

const (
	// KindSession tags tree-session handles.
	KindSession handle.Kind = 1
	// KindIncremental tags incremental-session handles.
	KindIncremental handle.Kind = 2
)

// Bridge drives engines on behalf of a host.
type Bridge struct {
	host     Host
	factory  index.Factory
	alloc    alloc.Allocator
	logger   *slog.Logger
	metrics  *Metrics
	sessions *handle.Table[*Session]
	iters    *handle.Table[*incSession]
}

// New creates a bridge for host.
func New(host Host, opts ...Option) *Bridge {
	o := newOptions(opts)
	return &Bridge{
		host:     host,
		factory:  o.factory,
		alloc:    o.allocator,
		logger:   o.logger,
		metrics:  newMetrics(o.registerer),
		sessions: handle.NewTable[*Session](KindSession),
		iters:    handle.NewTable[*incSession](KindIncremental),
	}
}

// Host returns the host adapter.
func (b *Bridge) Host() Host { return b.host }

// Metrics returns the bridge counters.
func (b *Bridge) Metrics() *Metrics { return b.metrics }

// Create starts a tree session whose engine measures elements with callback.
func (b *Bridge) Create(_ context.Context, callback Value) (handle.Handle, error) {
	cb, err := b.host.Callback(callback)
	if err != nil {
		return 0, err
	}
	s := newSession(b, nil, cb)
	engine, err := b.factory(index.Options{Distance: s.distance, Allocator: b.alloc, Logger: b.logger})
	if err != nil {
		cb.Release()
		return 0, fmt.Errorf("vptree: create engine: %w", err)
	}
	s.engine = engine
	s.handle = b.sessions.Insert(s)
	b.logger.Debug("session created", "session", s.id, "handle", s.handle.String())
	return s.handle, nil
}

// Session resolves a tree-session handle.
func (b *Bridge) Session(h handle.Handle) (*Session, error) {
	return b.sessions.Get(h)
}

// Destroy releases the session and everything it owns. The handle becomes
// stale.
func (b *Bridge) Destroy(ctx context.Context, h handle.Handle) error {
	s, err := b.sessions.Get(h)
	if err != nil {
		return err
	}
	if err = s.destroy(ctx); errors.Is(err, ErrSessionBusy) {
		return err
	}
	if _, rmErr := b.sessions.Remove(h); rmErr != nil && err == nil {
		err = rmErr
	}
	return err
}

// Add buffers element. It is allowed while the session is inside an engine
// call.
func (b *Bridge) Add(_ context.Context, h handle.Handle, element Value) error {
	s, err := b.sessions.Get(h)
	if err != nil {
		return err
	}
	return s.add(element)
}

// AddMany buffers every element of a host list, in order.
func (b *Bridge) AddMany(_ context.Context, h handle.Handle, list Value) error {
	s, err := b.sessions.Get(h)
	if err != nil {
		return err
	}
	elements, err := b.host.Elements(list)
	if err != nil {
		return err
	}
	return s.addMany(elements)
}

// Size returns the number of elements inserted into the session.
func (b *Bridge) Size(h handle.Handle) (int, error) {
	s, err := b.sessions.Get(h)
	if err != nil {
		return 0, err
	}
	return s.Size(), nil
}

// NearestNeighbor returns up to k elements nearest to query in ascending
// distance. k is clipped to the population.
func (b *Bridge) NearestNeighbor(ctx context.Context, h handle.Handle, query Value, k int) ([]index.Neighbor, error) {
	s, err := b.queryable(h, k)
	if err != nil {
		return nil, err
	}
	return s.nearestNeighbor(ctx, query, k, 0, false)
}

// NearestNeighborApprox is NearestNeighbor with at most maxNodes node visits.
func (b *Bridge) NearestNeighborApprox(ctx context.Context, h handle.Handle, query Value, k, maxNodes int) ([]index.Neighbor, error) {
	s, err := b.queryable(h, k)
	if err != nil {
		return nil, err
	}
	if maxNodes < 0 {
		return nil, fmt.Errorf("vptree: max_nodes must be non-negative, got %d", maxNodes)
	}
	return s.nearestNeighbor(ctx, query, k, maxNodes, true)
}

// Neighborhood returns every element within radius of query.
func (b *Bridge) Neighborhood(ctx context.Context, h handle.Handle, query Value, radius float64) ([]index.Neighbor, error) {
	s, err := b.sessions.Get(h)
	if err != nil {
		return nil, err
	}
	return s.neighborhood(ctx, query, radius)
}

// IncnnBegin starts an incremental enumeration and returns its handle.
func (b *Bridge) IncnnBegin(ctx context.Context, h handle.Handle, query Value) (handle.Handle, error) {
	s, err := b.sessions.Get(h)
	if err != nil {
		return 0, err
	}
	inc, err := s.beginIncremental(ctx, query)
	if err != nil {
		return 0, err
	}
	return inc.handle, nil
}

// IncnnNext advances the enumeration by one element. It reports
// exhausted=true, now and on every later call, once nothing is left.
func (b *Bridge) IncnnNext(ctx context.Context, h, ih handle.Handle) (index.Neighbor, bool, error) {
	s, inc, err := b.incremental(h, ih)
	if err != nil {
		return index.Neighbor{}, false, err
	}
	return s.nextIncremental(ctx, inc)
}

// IncnnEnd releases the enumeration; its handle becomes stale.
func (b *Bridge) IncnnEnd(ctx context.Context, h, ih handle.Handle) error {
	s, inc, err := b.incremental(h, ih)
	if err != nil {
		return err
	}
	return s.finishIncremental(ctx, inc)
}

// Sessions lists the live sessions.
func (b *Bridge) Sessions() []SessionInfo {
	var infos []SessionInfo
	b.sessions.Range(func(_ handle.Handle, s *Session) bool {
		infos = append(infos, s.Info())
		return true
	})
	return infos
}

// Close destroys every live session.
func (b *Bridge) Close(ctx context.Context) error {
	var first error
	b.sessions.Range(func(h handle.Handle, _ *Session) bool {
		if err := b.Destroy(ctx, h); err != nil && first == nil {
			first = err
		}
		return true
	})
	return first
}

func (b *Bridge) queryable(h handle.Handle, k int) (*Session, error) {
	s, err := b.sessions.Get(h)
	if err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, fmt.Errorf("vptree: k must be non-negative, got %d", k)
	}
	return s, nil
}

func (b *Bridge) incremental(h, ih handle.Handle) (*Session, *incSession, error) {
	s, err := b.sessions.Get(h)
	if err != nil {
		return nil, nil, err
	}
	inc, err := b.iters.Get(ih)
	if err != nil {
		return nil, nil, err
	}
	if inc.owner != s {
		return nil, nil, ErrSessionMismatch
	}
	return s, inc, nil
}
