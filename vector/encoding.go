package vector

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/viant/sqlite-vptree/convert"
)

// EncodeEmbedding encodes a slice of float32 values into a BLOB representation
// suitable for storage in SQLite. The current encoding is a simple
// little-endian sequence of IEEE 754 float32 values without a length prefix;
// the length is derived from the BLOB size on decode.
func EncodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(b[i*4:], bits)
	}
	return b, nil
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding back into a
// slice of float32 values.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	n := len(b) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

// ParseEmbedding reads an embedding from a host value: a float slice, a BLOB
// in EncodeEmbedding layout, or JSON array text such as "[1.5, 2]".
func ParseEmbedding(v any) ([]float32, error) {
	switch actual := v.(type) {
	case []float32:
		return actual, nil
	case []float64:
		out := make([]float32, len(actual))
		for i, f := range actual {
			out[i] = float32(f)
		}
		return out, nil
	case []byte:
		return DecodeEmbedding(actual)
	case string:
		return ParseJSONEmbedding(actual)
	case []any:
		values, err := convert.ToFloat64s(actual)
		if err != nil {
			return nil, fmt.Errorf("vector: %w", err)
		}
		return ParseEmbedding(values)
	case nil:
		return nil, fmt.Errorf("vector: NULL embedding")
	}
	return nil, fmt.Errorf("vector: unsupported embedding type %T", v)
}

// ParseJSONEmbedding decodes JSON array text into an embedding.
func ParseJSONEmbedding(text string) ([]float32, error) {
	var out []float32
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("vector: invalid JSON embedding: %w", err)
	}
	return out, nil
}
