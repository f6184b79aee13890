package sqlhost

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/viant/sqlite-vptree/bridge"
	"github.com/viant/sqlite-vptree/index"
	"github.com/viant/sqlite-vptree/vector"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Host adapts SQLite storage values to the bridge: INTEGER is int64, REAL
// is float64, TEXT is string, BLOB is []byte and NULL is nil. Lists are JSON
// array text. A distance callback is the name of a Go distance registered
// with RegisterDistance or of a two-argument SQL scalar function.
type Host struct {
	mu        sync.RWMutex
	db        *sql.DB
	distances map[string]index.DistanceFunc
}

// NewHost creates a host evaluating SQL callbacks on db.
func NewHost(db *sql.DB) *Host {
	return &Host{db: db, distances: map[string]index.DistanceFunc{}}
}

// Attach switches the database SQL callbacks created from now on run on.
func (h *Host) Attach(db *sql.DB) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.db = db
}

// RegisterDistance makes fn available as a callback under name. Registered
// names shadow SQL functions of the same name.
func (h *Host) RegisterDistance(name string, fn index.DistanceFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.distances[name] = fn
}

// Duplicate copies BLOBs; the other storage classes are immutable.
func (h *Host) Duplicate(v bridge.Value) (bridge.Value, error) {
	switch actual := v.(type) {
	case nil, int64, float64, string:
		return v, nil
	case []byte:
		return append([]byte(nil), actual...), nil
	case int:
		return int64(actual), nil
	case bool:
		if actual {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, fmt.Errorf("sqlhost: unsupported value type %T", v)
}

// Release implements bridge.Host.
func (h *Host) Release(bridge.Value) {}

// Callback implements bridge.Host.
func (h *Host) Callback(v bridge.Value) (bridge.Callback, error) {
	name, ok := v.(string)
	if !ok {
		if v == nil {
			return nil, fmt.Errorf("sqlhost: distance callback is required")
		}
		return nil, fmt.Errorf("sqlhost: distance callback must be a function name, got %T", v)
	}
	h.mu.RLock()
	fn, registered := h.distances[name]
	db := h.db
	h.mu.RUnlock()
	if registered {
		return bridge.CallbackFunc(func(_ context.Context, a, b bridge.Value) (bridge.Value, error) {
			return fn(a, b)
		}), nil
	}
	if !identifier.MatchString(name) {
		return nil, fmt.Errorf("sqlhost: invalid distance function name %q", name)
	}
	if db == nil {
		return nil, fmt.Errorf("sqlhost: db is nil")
	}
	query := fmt.Sprintf("SELECT %s(?, ?)", name)
	stmt, err := db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("sqlhost: distance function %s: %w", name, err)
	}
	_ = stmt.Close()
	return &sqlCallback{db: db, query: query}, nil
}

// List encodes values as JSON array text. Embedding BLOBs become number
// arrays and TEXT holding a JSON array or object is embedded as is.
func (h *Host) List(values []bridge.Value) (bridge.Value, error) {
	items := make([]any, len(values))
	for i, v := range values {
		switch actual := v.(type) {
		case []byte:
			vec, err := vector.DecodeEmbedding(actual)
			if err != nil {
				items[i] = string(actual)
				continue
			}
			items[i] = vec
		case string:
			if isJSONComposite(actual) {
				items[i] = json.RawMessage(actual)
				continue
			}
			items[i] = actual
		default:
			items[i] = v
		}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("sqlhost: encode list: %w", err)
	}
	return string(data), nil
}

// Elements decodes JSON array text. Nested arrays and objects are kept as
// JSON text elements, numbers become INTEGER or REAL values.
func (h *Host) Elements(list bridge.Value) ([]bridge.Value, error) {
	var text []byte
	switch actual := list.(type) {
	case string:
		text = []byte(actual)
	case []byte:
		text = actual
	default:
		return nil, fmt.Errorf("sqlhost: list must be JSON text, got %T", list)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(text, &raws); err != nil {
		return nil, fmt.Errorf("sqlhost: invalid list: %w", err)
	}
	out := make([]bridge.Value, len(raws))
	for i, raw := range raws {
		v, err := jsonValue(raw)
		if err != nil {
			return nil, fmt.Errorf("sqlhost: list element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Exhausted is SQL NULL.
func (h *Host) Exhausted() bridge.Value { return nil }

type sqlCallback struct {
	db    *sql.DB
	query string
}

// Call runs the callback query on a pooled connection, never the one the
// calling statement holds.
func (c *sqlCallback) Call(ctx context.Context, a, b bridge.Value) (bridge.Value, error) {
	var out any
	if err := c.db.QueryRowContext(ctx, c.query, a, b).Scan(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *sqlCallback) Release() {}

func isJSONComposite(s string) bool {
	trimmed := bytes.TrimSpace([]byte(s))
	if len(trimmed) == 0 || (trimmed[0] != '[' && trimmed[0] != '{') {
		return false
	}
	return json.Valid(trimmed)
}

func jsonValue(raw json.RawMessage) (bridge.Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	switch trimmed[0] {
	case '[', '{':
		return string(trimmed), nil
	case '"':
		var s string
		err := json.Unmarshal(trimmed, &s)
		return s, err
	case 'n':
		return nil, nil
	case 't':
		return int64(1), nil
	case 'f':
		return int64(0), nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return nil, err
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	return n.Float64()
}
