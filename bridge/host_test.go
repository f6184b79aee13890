package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-vptree/index"
)

func TestGoHost_Duplicate(t *testing.T) {
	host := NewGoHost()
	orig := []float64{1, 2}
	dup, err := host.Duplicate(orig)
	require.NoError(t, err)
	orig[0] = 9
	assert.Equal(t, []float64{1, 2}, dup)

	nested := []any{[]float32{1}, "x"}
	dup, err = host.Duplicate(nested)
	require.NoError(t, err)
	nested[0].([]float32)[0] = 5
	assert.Equal(t, []any{[]float32{1}, "x"}, dup)
}

func TestGoHost_Callback(t *testing.T) {
	ctx := context.Background()
	host := NewGoHost()
	host.RegisterDistance("abs", func(a, b index.Element) (float64, error) {
		d := a.(float64) - b.(float64)
		if d < 0 {
			d = -d
		}
		return d, nil
	})

	testCases := []struct {
		name     string
		callback Value
		a, b     Value
		want     float64
	}{
		{name: "registered", callback: "abs", a: 1.0, b: 4.0, want: 3},
		{name: "metric", callback: "l2", a: []float64{0, 0}, b: []float64{3, 4}, want: 5},
		{name: "plain func", callback: func(a, b Value) float64 { return 7 }, want: 7},
		{name: "index func", callback: index.DistanceFunc(func(a, b index.Element) (float64, error) { return 2, nil }), want: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cb, err := host.Callback(tc.callback)
			require.NoError(t, err)
			got, err := cb.Call(ctx, tc.a, tc.b)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-5)
			cb.Release()
		})
	}

	_, err := host.Callback("nope")
	assert.Error(t, err)
	_, err = host.Callback(nil)
	assert.Error(t, err)
}

func TestGoHost_Elements(t *testing.T) {
	host := NewGoHost()
	got, err := host.Elements([][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.Equal(t, []Value{[]float64{1}, []float64{2}}, got)
	_, err = host.Elements("x")
	assert.Error(t, err)
	assert.Nil(t, host.Exhausted())
}
