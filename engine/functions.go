package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/viant/sqlite-vptree/vector"
	sqlite "modernc.org/sqlite"
)

// vectorFunctions maps SQL names to two-argument embedding functions.
var vectorFunctions = map[string]vector.Func{
	"vec_cosine":          vector.CosineSimilarity,
	"vec_cosine_distance": vector.CosineDistance,
	"vec_l2":              vector.L2Distance,
	"vec_haversine":       vector.HaversineDistance,
}

// RegisterVectorFunctions registers vec_cosine, vec_cosine_distance, vec_l2
// and vec_haversine with the driver so they are available on new
// connections opened after this call. vec_cosine is a similarity; the
// others are distances usable as vptree callbacks.
// Note: existing open connections will not see new functions.
func RegisterVectorFunctions(_ *sql.DB) error {
	// Idempotent registration; driver rejects duplicates but we ignore errors silently here.
	for name, fn := range vectorFunctions {
		_ = sqlite.RegisterDeterministicScalarFunction(name, 2, vectorFunction(name, fn))
	}
	return nil
}

// VectorFunctionNames lists the SQL functions RegisterVectorFunctions installs.
func VectorFunctionNames() []string {
	names := make([]string, 0, len(vectorFunctions))
	for name := range vectorFunctions {
		names = append(names, name)
	}
	return names
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte, string:
		return vector.ParseEmbedding(v)
	default:
		return nil, fmt.Errorf("vec: unsupported argument type %T for embedding; want BLOB or JSON text", arg)
	}
}

func vectorFunction(name string, fn vector.Func) func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error) {
	return func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
		}
		a, err := asEmbedding(args[0])
		if err != nil {
			return nil, err
		}
		b, err := asEmbedding(args[1])
		if err != nil {
			return nil, err
		}
		if a == nil || b == nil {
			return nil, nil
		}
		d, err := fn(a, b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return d, nil
	}
}
