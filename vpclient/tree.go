package vpclient

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/viant/sqlite-vptree/vector"
)

// EmbedFunc converts free-form text into an embedding.
//
// Implementations can call any embedding provider as long as they return a
// slice of float32 values; the tree only sees the encoded BLOB.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Tree is a typed client for one tree session living behind the vptree SQL
// function. It issues one statement per call and holds no state besides the
// session handle.
type Tree struct {
	DB     *sql.DB
	Handle int64
	Embed  EmbedFunc
}

// Create creates a tree session measuring with the named distance function.
func Create(ctx context.Context, db *sql.DB, distance string) (*Tree, error) {
	if db == nil {
		return nil, fmt.Errorf("vpclient: db is nil")
	}
	var h int64
	if err := db.QueryRowContext(ctx, `SELECT vptree('create', ?)`, distance).Scan(&h); err != nil {
		return nil, fmt.Errorf("vpclient: create: %w", err)
	}
	return &Tree{DB: db, Handle: h}, nil
}

// Attach returns a client for an existing session handle.
func Attach(db *sql.DB, handle int64) *Tree { return &Tree{DB: db, Handle: handle} }

// Add queues one element.
func (t *Tree) Add(ctx context.Context, element any) error {
	arg, err := toArg(element)
	if err != nil {
		return err
	}
	_, err = t.DB.ExecContext(ctx, `SELECT vptree('add', ?, ?)`, t.Handle, arg)
	return err
}

// AddMany queues elements in one call. Elements are sent as a JSON array.
func (t *Tree) AddMany(ctx context.Context, elements []any) error {
	list, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("vpclient: encode elements: %w", err)
	}
	_, err = t.DB.ExecContext(ctx, `SELECT vptree('add_many', ?, ?)`, t.Handle, string(list))
	return err
}

// AddText embeds text with the tree's EmbedFunc and queues the embedding.
func (t *Tree) AddText(ctx context.Context, text string) error {
	vec, err := t.embed(ctx, text)
	if err != nil {
		return err
	}
	return t.Add(ctx, vec)
}

// Size returns the number of inserted elements.
func (t *Tree) Size(ctx context.Context) (int, error) {
	var n int
	if err := t.DB.QueryRowContext(ctx, `SELECT vptree('size', ?)`, t.Handle).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// NearestNeighbor returns up to k elements nearest to query, nearest first.
// Elements come back as JSON: embeddings as number arrays, JSON text as is.
func (t *Tree) NearestNeighbor(ctx context.Context, query any, k int) ([]json.RawMessage, error) {
	arg, err := toArg(query)
	if err != nil {
		return nil, err
	}
	return t.list(ctx, `SELECT vptree('nearest_neighbor', ?, ?, ?)`, t.Handle, arg, k)
}

// NearestNeighborApprox is NearestNeighbor visiting at most maxNodes nodes.
func (t *Tree) NearestNeighborApprox(ctx context.Context, query any, k, maxNodes int) ([]json.RawMessage, error) {
	arg, err := toArg(query)
	if err != nil {
		return nil, err
	}
	return t.list(ctx, `SELECT vptree('nearest_neighbor_approx', ?, ?, ?, ?)`, t.Handle, arg, k, maxNodes)
}

// Neighborhood returns every element within radius of query, nearest first.
func (t *Tree) Neighborhood(ctx context.Context, query any, radius float64) ([]json.RawMessage, error) {
	arg, err := toArg(query)
	if err != nil {
		return nil, err
	}
	return t.list(ctx, `SELECT vptree('neighborhood', ?, ?, ?)`, t.Handle, arg, radius)
}

// NearestText embeds text and returns its k nearest elements.
func (t *Tree) NearestText(ctx context.Context, text string, k int) ([]json.RawMessage, error) {
	vec, err := t.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return t.NearestNeighbor(ctx, vec, k)
}

// Begin starts an incremental enumeration around query.
func (t *Tree) Begin(ctx context.Context, query any) (*Iterator, error) {
	arg, err := toArg(query)
	if err != nil {
		return nil, err
	}
	var h int64
	if err := t.DB.QueryRowContext(ctx, `SELECT vptree('incnn_begin', ?, ?)`, t.Handle, arg).Scan(&h); err != nil {
		return nil, err
	}
	return &Iterator{tree: t, handle: h}, nil
}

// Walk enumerates elements nearest first until fn returns false, limit
// elements were produced (limit <= 0 means no limit) or the tree is
// exhausted.
func (t *Tree) Walk(ctx context.Context, query any, limit int, fn func(element any) bool) error {
	it, err := t.Begin(ctx, query)
	if err != nil {
		return err
	}
	defer it.End(ctx)
	for n := 0; limit <= 0 || n < limit; n++ {
		element, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok || !fn(element) {
			return nil
		}
	}
	return nil
}

// Destroy releases the session; the client must not be used afterwards.
func (t *Tree) Destroy(ctx context.Context) error {
	_, err := t.DB.ExecContext(ctx, `SELECT vptree('destroy', ?)`, t.Handle)
	return err
}

func (t *Tree) embed(ctx context.Context, text string) ([]float32, error) {
	if t.Embed == nil {
		return nil, fmt.Errorf("vpclient: EmbedFunc is nil on Tree")
	}
	return t.Embed(ctx, text)
}

func (t *Tree) list(ctx context.Context, query string, args ...any) ([]json.RawMessage, error) {
	var text string
	if err := t.DB.QueryRowContext(ctx, query, args...).Scan(&text); err != nil {
		return nil, err
	}
	var out []json.RawMessage
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("vpclient: invalid result list: %w", err)
	}
	return out, nil
}

// Iterator is an open incremental enumeration.
type Iterator struct {
	tree   *Tree
	handle int64
}

// Next returns the next element; ok is false once the tree is exhausted.
func (it *Iterator) Next(ctx context.Context) (element any, ok bool, err error) {
	if err = it.tree.DB.QueryRowContext(ctx, `SELECT vptree('incnn_next', ?, ?)`, it.tree.Handle, it.handle).Scan(&element); err != nil {
		return nil, false, err
	}
	if element == nil {
		return nil, false, nil
	}
	if b, isBytes := element.([]byte); isBytes {
		if vec, decErr := vector.DecodeEmbedding(b); decErr == nil {
			return vec, true, nil
		}
	}
	return element, true, nil
}

// End releases the enumeration.
func (it *Iterator) End(ctx context.Context) error {
	_, err := it.tree.DB.ExecContext(ctx, `SELECT vptree('incnn_end', ?, ?)`, it.tree.Handle, it.handle)
	return err
}

// DecodeEmbeddings decodes a result list of number arrays.
func DecodeEmbeddings(items []json.RawMessage) ([][]float32, error) {
	out := make([][]float32, len(items))
	for i, item := range items {
		if err := json.Unmarshal(item, &out[i]); err != nil {
			return nil, fmt.Errorf("vpclient: element %d is not an embedding: %w", i, err)
		}
	}
	return out, nil
}

// toArg maps Go values onto SQLite storage classes: embeddings become BLOBs,
// other composites JSON text.
func toArg(v any) (any, error) {
	switch actual := v.(type) {
	case []float32:
		return vector.EncodeEmbedding(actual)
	case []float64:
		vec := make([]float32, len(actual))
		for i, f := range actual {
			vec[i] = float32(f)
		}
		return vector.EncodeEmbedding(vec)
	case nil, int, int64, float64, string, []byte:
		return v, nil
	case json.RawMessage:
		return string(actual), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("vpclient: unsupported element %T: %w", v, err)
	}
	return string(data), nil
}
