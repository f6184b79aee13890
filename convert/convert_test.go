package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToFloat64(t *testing.T) {
	testCases := []struct {
		name    string
		value   any
		want    float64
		wantErr bool
	}{
		{name: "float64", value: 1.5, want: 1.5},
		{name: "float32", value: float32(0.25), want: 0.25},
		{name: "int64", value: int64(-3), want: -3},
		{name: "uint8", value: uint8(7), want: 7},
		{name: "json number", value: json.Number("2.5"), want: 2.5},
		{name: "text", value: " 4.0 ", want: 4},
		{name: "blob", value: []byte("8"), want: 8},
		{name: "nil", value: nil, wantErr: true},
		{name: "garbage", value: "abc", wantErr: true},
		{name: "struct", value: struct{}{}, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToFloat64(tc.value)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrNotNumeric)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestToInt(t *testing.T) {
	v, err := ToInt(3.0)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = ToInt(3.5)
	assert.Error(t, err)

	h, err := ToInt64(int64(-1 << 62))
	require.NoError(t, err)
	assert.Equal(t, int64(-1<<62), h)

	h, err = ToInt64("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), h)
}

func TestToFloat64s(t *testing.T) {
	got, err := ToFloat64s([]any{1, 2.5, "3"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, got)

	_, err = ToFloat64s([]any{1, "x"})
	assert.ErrorIs(t, err, ErrNotNumeric)
}
