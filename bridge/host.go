package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/sqlite-vptree/index"
	"github.com/viant/sqlite-vptree/vector"
)

// Value is a host-native value.
type Value = any

// Host adapts a host runtime's value model.
type Host interface {
	// Duplicate returns a copy of v the bridge may keep after the current
	// call returns.
	Duplicate(v Value) (Value, error)
	// Release drops a value obtained from Duplicate.
	Release(v Value)
	// Callback resolves a host value into a distance callback the bridge
	// retains until the owning session is destroyed.
	Callback(v Value) (Callback, error)
	// List builds a host collection.
	List(values []Value) (Value, error)
	// Elements splits a host collection.
	Elements(list Value) ([]Value, error)
	// Exhausted is returned by incnn_next once the enumeration has no more
	// elements.
	Exhausted() Value
}

// Callback is a retained host distance function.
type Callback interface {
	// Call measures a and b and returns a host scalar.
	Call(ctx context.Context, a, b Value) (Value, error)
	// Release drops the retained callback.
	Release()
}

// CallbackFunc adapts a function to Callback.
type CallbackFunc func(ctx context.Context, a, b Value) (Value, error)

// Call implements Callback.
func (f CallbackFunc) Call(ctx context.Context, a, b Value) (Value, error) { return f(ctx, a, b) }

// Release implements Callback.
func (f CallbackFunc) Release() {}

// GoHost is the in-process host: values are plain Go values, lists are
// []any and exhaustion is nil. Callbacks may be Go functions or the name of
// a distance registered with RegisterDistance or a vector metric.
type GoHost struct {
	mu        sync.RWMutex
	distances map[string]index.DistanceFunc
}

// NewGoHost creates an in-process host.
func NewGoHost() *GoHost {
	return &GoHost{distances: map[string]index.DistanceFunc{}}
}

// RegisterDistance makes fn available as a callback under name.
func (h *GoHost) RegisterDistance(name string, fn index.DistanceFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.distances[name] = fn
}

// Duplicate copies slices so the caller may reuse its buffers.
func (h *GoHost) Duplicate(v Value) (Value, error) {
	switch actual := v.(type) {
	case []float32:
		return append([]float32(nil), actual...), nil
	case []float64:
		return append([]float64(nil), actual...), nil
	case []byte:
		return append([]byte(nil), actual...), nil
	case []any:
		out := make([]any, len(actual))
		for i, item := range actual {
			dup, err := h.Duplicate(item)
			if err != nil {
				return nil, err
			}
			out[i] = dup
		}
		return out, nil
	}
	return v, nil
}

// Release implements Host; Go values are garbage collected.
func (h *GoHost) Release(Value) {}

// Callback implements Host.
func (h *GoHost) Callback(v Value) (Callback, error) {
	switch actual := v.(type) {
	case Callback:
		return actual, nil
	case func(ctx context.Context, a, b Value) (Value, error):
		return CallbackFunc(actual), nil
	case index.DistanceFunc:
		return distanceCallback(actual), nil
	case func(a, b Value) (float64, error):
		return distanceCallback(actual), nil
	case func(a, b Value) float64:
		return distanceCallback(func(a, b Value) (float64, error) { return actual(a, b), nil }), nil
	case string:
		h.mu.RLock()
		fn, ok := h.distances[actual]
		h.mu.RUnlock()
		if ok {
			return distanceCallback(fn), nil
		}
		metric, err := vector.ParseMetric(actual)
		if err != nil {
			return nil, fmt.Errorf("vptree: unknown distance callback %q", actual)
		}
		return distanceCallback(metric.Distance()), nil
	case nil:
		return nil, fmt.Errorf("vptree: distance callback is required")
	}
	return nil, fmt.Errorf("vptree: %T is not a distance callback", v)
}

// List implements Host.
func (h *GoHost) List(values []Value) (Value, error) {
	return append([]any{}, values...), nil
}

// Elements implements Host.
func (h *GoHost) Elements(list Value) ([]Value, error) {
	switch actual := list.(type) {
	case []any:
		return actual, nil
	case [][]float32:
		out := make([]Value, len(actual))
		for i := range actual {
			out[i] = actual[i]
		}
		return out, nil
	case [][]float64:
		out := make([]Value, len(actual))
		for i := range actual {
			out[i] = actual[i]
		}
		return out, nil
	}
	return nil, fmt.Errorf("vptree: %T is not a list", list)
}

// Exhausted implements Host.
func (h *GoHost) Exhausted() Value { return nil }

func distanceCallback(fn func(a, b Value) (float64, error)) CallbackFunc {
	return func(_ context.Context, a, b Value) (Value, error) {
		return fn(a, b)
	}
}
