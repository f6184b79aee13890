package bridge

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-vptree/alloc"
	"github.com/viant/sqlite-vptree/handle"
	"github.com/viant/sqlite-vptree/index"
	"github.com/viant/sqlite-vptree/index/bruteforce"
)

// stubEngine records what the bridge asks of it.
type stubEngine struct {
	opts         index.Options
	batches      [][]index.Element
	elements     []index.Element
	lastK        int
	lastMaxNodes int
	queries      int
	failAdd      error
	destroyed    bool
}

func (e *stubEngine) AddMany(elements []index.Element) error {
	if e.failAdd != nil {
		return e.failAdd
	}
	e.batches = append(e.batches, append([]index.Element(nil), elements...))
	e.elements = append(e.elements, elements...)
	return nil
}

func (e *stubEngine) Population() int { return len(e.elements) }

func (e *stubEngine) NearestNeighbor(query index.Element, out []index.Neighbor) (int, error) {
	e.queries++
	e.lastK = len(out)
	for i := range out {
		out[i] = index.Neighbor{Element: e.elements[i]}
	}
	return len(out), nil
}

func (e *stubEngine) NearestNeighborApprox(query index.Element, out []index.Neighbor, maxNodes int) (int, error) {
	e.lastMaxNodes = maxNodes
	n, err := e.NearestNeighbor(query, out)
	if n > maxNodes {
		n = maxNodes
	}
	return n, err
}

func (e *stubEngine) Neighborhood(query index.Element, radius float64) (*index.Buffer, error) {
	block, err := e.opts.Allocator.Allocate(0)
	return &index.Buffer{Block: block}, err
}

func (e *stubEngine) IncrementalBegin(query index.Element) (index.Iterator, error) {
	return nil, errors.New("not supported")
}

func (e *stubEngine) Stats() index.Stats { return index.Stats{NodesVisited: e.lastMaxNodes} }

func (e *stubEngine) Destroy() error {
	e.destroyed = true
	return nil
}

func newStubBridge(t *testing.T) (*Bridge, *stubEngine, int64) {
	t.Helper()
	stub := &stubEngine{}
	b := New(NewGoHost(), WithEngine(func(opts index.Options) (index.Engine, error) {
		stub.opts = opts
		return stub, nil
	}))
	h, err := b.Dispatch(context.Background(), CmdCreate, "l2")
	require.NoError(t, err)
	return b, stub, h.(int64)
}

func euclidean(a, b Value) (float64, error) {
	p, q := a.([]float64), b.([]float64)
	var sum float64
	for i := range p {
		d := p[i] - q[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

func TestFlush_CompletenessAndOrder(t *testing.T) {
	ctx := context.Background()
	b, stub, h := newStubBridge(t)

	for i := 0; i < 5; i++ {
		_, err := b.Dispatch(ctx, CmdAdd, h, []float64{float64(i)})
		require.NoError(t, err)
	}
	assert.Empty(t, stub.batches, "add must not reach the engine")

	_, err := b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0}, 1)
	require.NoError(t, err)
	require.Len(t, stub.batches, 1)
	assert.Equal(t, []index.Element{[]float64{0}, []float64{1}, []float64{2}, []float64{3}, []float64{4}}, stub.batches[0])

	_, err = b.Dispatch(ctx, CmdAddMany, h, []any{[]float64{5}, []float64{6}})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, CmdNeighborhood, h, []float64{0}, 1.0)
	require.NoError(t, err)
	require.Len(t, stub.batches, 2)
	assert.Equal(t, []index.Element{[]float64{5}, []float64{6}}, stub.batches[1])

	// idempotent: nothing new, no engine call
	_, err = b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0}, 1)
	require.NoError(t, err)
	assert.Len(t, stub.batches, 2)
	assert.Equal(t, 7, stub.Population())

	size, err := b.Dispatch(ctx, CmdSize, h)
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)
	assert.Equal(t, float64(2), testutil.ToFloat64(b.Metrics().FlushesTotal))
	assert.Equal(t, float64(7), testutil.ToFloat64(b.Metrics().FlushedElementsTotal))
}

func TestFlush_EmptySession(t *testing.T) {
	b, stub, h := newStubBridge(t)
	got, err := b.Dispatch(context.Background(), CmdNearestNeighbor, h, []float64{0}, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, stub.batches)
	assert.Equal(t, 0, stub.queries)
}

func TestFlush_EngineFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	b, stub, h := newStubBridge(t)
	for i := 0; i < 3; i++ {
		_, err := b.Dispatch(ctx, CmdAdd, h, []float64{float64(i)})
		require.NoError(t, err)
	}
	stub.failAdd = errors.New("engine full")
	_, err := b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0}, 1)
	assert.ErrorIs(t, err, stub.failAdd)

	stub.failAdd = nil
	_, err = b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0}, 1)
	require.NoError(t, err)
	require.Len(t, stub.batches, 1)
	assert.Len(t, stub.batches[0], 3)
}

func TestNearestNeighbor_KClipping(t *testing.T) {
	ctx := context.Background()
	b, stub, h := newStubBridge(t)
	for i := 0; i < 3; i++ {
		_, err := b.Dispatch(ctx, CmdAdd, h, []float64{float64(i)})
		require.NoError(t, err)
	}
	got, err := b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 3, stub.lastK)

	got, err = b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, stub.queries)

	_, err = b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0}, -1)
	assert.Error(t, err)
}

func TestNearestNeighborApprox_Budget(t *testing.T) {
	ctx := context.Background()
	b, stub, h := newStubBridge(t)
	for i := 0; i < 10; i++ {
		_, err := b.Dispatch(ctx, CmdAdd, h, []float64{float64(i)})
		require.NoError(t, err)
	}
	got, err := b.Dispatch(ctx, CmdNearestNeighborApprox, h, []float64{0}, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, stub.lastMaxNodes)
	assert.Equal(t, 5, stub.lastK)
	assert.Len(t, got, 2)
}

func TestEndToEnd_ThreePoints(t *testing.T) {
	ctx := context.Background()
	for _, factory := range []index.Factory{nil, bruteforce.Factory} {
		var opts []Option
		if factory != nil {
			opts = append(opts, WithEngine(factory))
		}
		b := New(NewGoHost(), opts...)
		h, err := b.Dispatch(ctx, CmdCreate, euclidean)
		require.NoError(t, err)

		a, bb, c := []float64{0, 0}, []float64{1, 0}, []float64{0, 5}
		for _, p := range [][]float64{a, bb, c} {
			_, err = b.Dispatch(ctx, CmdAdd, h, p)
			require.NoError(t, err)
		}
		got, err := b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0, 0}, 2)
		require.NoError(t, err)
		assert.Equal(t, []any{a, bb}, got)

		got, err = b.Dispatch(ctx, CmdNeighborhood, h, []float64{0, 0}, 1.5)
		require.NoError(t, err)
		assert.Equal(t, []any{a, bb}, got)
		require.NoError(t, b.Close(ctx))
	}
}

func TestIncremental_MatchesNearestNeighbor(t *testing.T) {
	ctx := context.Background()
	b := New(NewGoHost())
	hv, err := b.Dispatch(ctx, CmdCreate, euclidean)
	require.NoError(t, err)
	h := hv.(int64)

	r := rand.New(rand.NewSource(11))
	points := make([]any, 40)
	for i := range points {
		points[i] = []float64{r.Float64(), r.Float64()}
	}
	_, err = b.Dispatch(ctx, CmdAddMany, h, points)
	require.NoError(t, err)

	query := []float64{0.5, 0.5}
	expected, err := b.Dispatch(ctx, CmdNearestNeighbor, h, query, len(points))
	require.NoError(t, err)

	ih, err := b.Dispatch(ctx, CmdIncnnBegin, h, query)
	require.NoError(t, err)
	var got []any
	for {
		v, err := b.Dispatch(ctx, CmdIncnnNext, h, ih)
		require.NoError(t, err)
		if v == nil {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, expected, got)

	// exhaustion is sticky
	v, err := b.Dispatch(ctx, CmdIncnnNext, h, ih)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = b.Dispatch(ctx, CmdIncnnEnd, h, ih)
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, CmdIncnnNext, h, ih)
	assert.ErrorIs(t, err, handle.ErrStaleHandle)
	_, err = b.Dispatch(ctx, CmdIncnnEnd, h, ih)
	assert.ErrorIs(t, err, handle.ErrStaleHandle)
}

func TestIncremental_Ownership(t *testing.T) {
	ctx := context.Background()
	b := New(NewGoHost())
	h1, err := b.Dispatch(ctx, CmdCreate, euclidean)
	require.NoError(t, err)
	h2, err := b.Dispatch(ctx, CmdCreate, euclidean)
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, CmdAdd, h1, []float64{1})
	require.NoError(t, err)

	ih, err := b.Dispatch(ctx, CmdIncnnBegin, h1, []float64{0})
	require.NoError(t, err)
	_, err = b.Dispatch(ctx, CmdIncnnNext, h2, ih)
	assert.ErrorIs(t, err, ErrSessionMismatch)
	_, err = b.Dispatch(ctx, CmdIncnnNext, h1, h2)
	assert.ErrorIs(t, err, handle.ErrInvalidHandle)
	_, err = b.Dispatch(ctx, CmdAdd, ih, []float64{1})
	assert.ErrorIs(t, err, handle.ErrInvalidHandle)

	// a pinned enumeration ignores later insertions
	_, err = b.Dispatch(ctx, CmdAdd, h1, []float64{0})
	require.NoError(t, err)
	v, err := b.Dispatch(ctx, CmdIncnnNext, h1, ih)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, v)
	v, err = b.Dispatch(ctx, CmdIncnnNext, h1, ih)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDestroy_ReleasesEverything(t *testing.T) {
	ctx := context.Background()
	for _, n := range []int{0, 1, 50} {
		tracking := alloc.NewTracking(nil)
		b := New(NewGoHost(), WithAllocator(tracking))
		h, err := b.Dispatch(ctx, CmdCreate, euclidean)
		require.NoError(t, err)

		for i := 0; i < n; i++ {
			_, err = b.Dispatch(ctx, CmdAdd, h, []float64{float64(i), float64(i % 7)})
			require.NoError(t, err)
			if i == n/2 {
				// merge half so destroy sees both engine and pending elements
				_, err = b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0, 0}, 1)
				require.NoError(t, err)
			}
		}
		ih, err := b.Dispatch(ctx, CmdIncnnBegin, h, []float64{0, 0})
		require.NoError(t, err)
		for i := n + 1; i < n+4; i++ {
			_, err = b.Dispatch(ctx, CmdAdd, h, []float64{float64(i), 0})
			require.NoError(t, err)
		}

		_, err = b.Dispatch(ctx, CmdDestroy, h)
		require.NoError(t, err, "n=%d", n)
		counts := tracking.Counts()
		assert.Equal(t, 0, counts.Live, "n=%d", n)
		assert.Equal(t, 0, counts.DoubleFrees, "n=%d", n)
		assert.Equal(t, counts.Allocs, counts.Frees, "n=%d", n)

		_, err = b.Dispatch(ctx, CmdAdd, h, []float64{0, 0})
		assert.ErrorIs(t, err, handle.ErrStaleHandle)
		_, err = b.Dispatch(ctx, CmdIncnnNext, h, ih)
		assert.ErrorIs(t, err, handle.ErrStaleHandle)
		assert.Empty(t, b.Sessions())
	}
}

func TestCallback_Reentrancy(t *testing.T) {
	ctx := context.Background()
	b := New(NewGoHost())
	var h Value
	var busyErrs []error
	added := false
	callback := func(ctx context.Context, x, y Value) (Value, error) {
		if !added {
			added = true
			_, err := b.Dispatch(ctx, CmdAdd, h, []float64{9, 9})
			if err != nil {
				return nil, err
			}
			for _, cmd := range [][]Value{
				{CmdNearestNeighbor, h, []float64{0, 0}, 1},
				{CmdIncnnBegin, h, []float64{0, 0}},
				{CmdDestroy, h},
			} {
				_, err = b.Call(ctx, cmd)
				busyErrs = append(busyErrs, err)
			}
		}
		return euclidean(x, y)
	}
	var err error
	h, err = b.Dispatch(ctx, CmdCreate, callback)
	require.NoError(t, err)
	for _, p := range [][]float64{{0, 0}, {1, 0}, {0, 5}} {
		_, err = b.Dispatch(ctx, CmdAdd, h, p)
		require.NoError(t, err)
	}
	_, err = b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, busyErrs, 3)
	for _, e := range busyErrs {
		assert.ErrorIs(t, e, ErrSessionBusy)
	}

	infos := b.Sessions()
	require.Len(t, infos, 1)
	assert.Equal(t, 3, infos[0].Population)
	assert.Equal(t, 1, infos[0].Pending)

	got, err := b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{9, 9}, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{[]float64{9, 9}}, got)
}

func TestCallback_Failure(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		name   string
		result Value
		err    error
	}{
		{name: "error", err: errors.New("host failed")},
		{name: "negative", result: -1.0},
		{name: "nan", result: math.NaN()},
		{name: "text", result: "far"},
		{name: "null", result: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			b := New(NewGoHost(), WithRegisterer(reg))
			fail := true
			callback := func(ctx context.Context, x, y Value) (Value, error) {
				if fail {
					return tc.result, tc.err
				}
				return euclidean(x, y)
			}
			h, err := b.Dispatch(ctx, CmdCreate, callback)
			require.NoError(t, err)
			for _, p := range [][]float64{{0}, {1}, {2}} {
				_, err = b.Dispatch(ctx, CmdAdd, h, p)
				require.NoError(t, err)
			}
			_, err = b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0}, 1)
			var cbErr *CallbackError
			require.ErrorAs(t, err, &cbErr)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			}
			assert.Equal(t, float64(1), testutil.ToFloat64(b.Metrics().DistanceFailuresTotal))
			assert.Equal(t, float64(1), testutil.ToFloat64(b.Metrics().CommandsTotal.WithLabelValues(CmdNearestNeighbor, "error")))

			// the batch was not merged, so a healthy retry sees every element
			fail = false
			got, err := b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{2}, 3)
			require.NoError(t, err)
			assert.Equal(t, []any{[]float64{2}, []float64{1}, []float64{0}}, got)
		})
	}
}

func TestDispatch_Validation(t *testing.T) {
	ctx := context.Background()
	b, stub, h := newStubBridge(t)

	_, err := b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0})
	var argErr *ArgCountError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "vptree: nearest_neighbor expects 3 arguments, got 2", err.Error())

	_, err = b.Dispatch(ctx, "nearest")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	_, err = b.Call(ctx, nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = b.Dispatch(ctx, CmdNearestNeighbor, h, []float64{0}, "many")
	assert.Error(t, err)
	_, err = b.Dispatch(ctx, CmdAdd, "not a handle", []float64{0})
	assert.Error(t, err)
	_, err = b.Dispatch(ctx, CmdCreate, 42)
	assert.Error(t, err)
	_, err = b.Dispatch(ctx, CmdAddMany, h, 42)
	assert.Error(t, err)

	size, err := b.Dispatch(ctx, CmdSize, h)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
	assert.Empty(t, stub.batches)

	_, err = b.Call(ctx, []Value{CmdDestroy, h})
	require.NoError(t, err)
	assert.True(t, stub.destroyed)
	assert.Equal(t, float64(1), testutil.ToFloat64(b.Metrics().CommandsTotal.WithLabelValues(CmdDestroy, "ok")))
	assert.Contains(t, Commands(), CmdIncnnBegin)
}
