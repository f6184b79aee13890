package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotNumeric is returned when a value has no numeric interpretation.
var ErrNotNumeric = errors.New("convert: value is not numeric")

// ToFloat64 converts a host scalar into a float64.
func ToFloat64(v any) (float64, error) {
	switch actual := v.(type) {
	case float64:
		return actual, nil
	case float32:
		return float64(actual), nil
	case int:
		return float64(actual), nil
	case int8:
		return float64(actual), nil
	case int16:
		return float64(actual), nil
	case int32:
		return float64(actual), nil
	case int64:
		return float64(actual), nil
	case uint:
		return float64(actual), nil
	case uint8:
		return float64(actual), nil
	case uint16:
		return float64(actual), nil
	case uint32:
		return float64(actual), nil
	case uint64:
		return float64(actual), nil
	case json.Number:
		return actual.Float64()
	case string:
		return parseFloat(actual)
	case []byte:
		return parseFloat(string(actual))
	case nil:
		return 0, fmt.Errorf("%w: NULL", ErrNotNumeric)
	}
	return 0, fmt.Errorf("%w: %T", ErrNotNumeric, v)
}

// ToInt converts a host scalar into an int. Fractional values are rejected.
func ToInt(v any) (int, error) {
	switch actual := v.(type) {
	case int:
		return actual, nil
	case int64:
		return int(actual), nil
	case int32:
		return int(actual), nil
	}
	f, err := ToFloat64(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("convert: %v is not an integer", v)
	}
	return int(f), nil
}

// ToInt64 converts a host scalar into an int64 without going through float64
// for integer kinds, so 64-bit handles survive intact.
func ToInt64(v any) (int64, error) {
	switch actual := v.(type) {
	case int64:
		return actual, nil
	case int:
		return int64(actual), nil
	case uint64:
		return int64(actual), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(actual), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, actual)
		}
		return i, nil
	}
	i, err := ToInt(v)
	return int64(i), err
}

// ToFloat64s converts a host list of scalars.
func ToFloat64s(values []any) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		f, err := ToFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("convert: element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// ToString converts a host text value.
func ToString(v any) (string, error) {
	switch actual := v.(type) {
	case string:
		return actual, nil
	case []byte:
		return string(actual), nil
	case fmt.Stringer:
		return actual.String(), nil
	}
	return "", fmt.Errorf("convert: %T is not text", v)
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotNumeric, s)
	}
	return f, nil
}
