package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/viant/sqlite-vptree/bridge"
	"github.com/viant/sqlite-vptree/engine"
	"github.com/viant/sqlite-vptree/handle"
	"github.com/viant/sqlite-vptree/index"
	"github.com/viant/sqlite-vptree/internal/cities"
	"github.com/viant/sqlite-vptree/sqlhost"
	"github.com/viant/sqlite-vptree/vpclient"
)

// cityTree is a tree of cities reached either in process or through SQLite.
type cityTree interface {
	addAll(ctx context.Context, list []cities.City) error
	nearest(ctx context.Context, query cities.City, k int) ([]cities.City, error)
	approx(ctx context.Context, query cities.City, k, maxNodes int) ([]cities.City, error)
	within(ctx context.Context, query cities.City, radius float64) ([]cities.City, error)
	walk(ctx context.Context, query cities.City, limit int, fn func(cities.City) bool) error
	close(ctx context.Context) error
}

type bridgeTree struct {
	bridge *bridge.Bridge
	handle handle.Handle
}

func openBridgeTree(ctx context.Context, opts []bridge.Option) (*bridgeTree, error) {
	host := bridge.NewGoHost()
	host.RegisterDistance(distanceName, cities.ElementDistance)
	b := bridge.New(host, opts...)
	h, err := b.Create(ctx, distanceName)
	if err != nil {
		return nil, err
	}
	return &bridgeTree{bridge: b, handle: h}, nil
}

func (t *bridgeTree) addAll(ctx context.Context, list []cities.City) error {
	elements := make([]any, len(list))
	for i, c := range list {
		elements[i] = c
	}
	return t.bridge.AddMany(ctx, t.handle, elements)
}

func (t *bridgeTree) nearest(ctx context.Context, query cities.City, k int) ([]cities.City, error) {
	return neighborCities(t.bridge.NearestNeighbor(ctx, t.handle, query, k))
}

func (t *bridgeTree) approx(ctx context.Context, query cities.City, k, maxNodes int) ([]cities.City, error) {
	return neighborCities(t.bridge.NearestNeighborApprox(ctx, t.handle, query, k, maxNodes))
}

func (t *bridgeTree) within(ctx context.Context, query cities.City, radius float64) ([]cities.City, error) {
	return neighborCities(t.bridge.Neighborhood(ctx, t.handle, query, radius))
}

func neighborCities(neighbors []index.Neighbor, err error) ([]cities.City, error) {
	if err != nil {
		return nil, err
	}
	out := make([]cities.City, 0, len(neighbors))
	for _, nb := range neighbors {
		c, err := cities.FromElement(nb.Element)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (t *bridgeTree) walk(ctx context.Context, query cities.City, limit int, fn func(cities.City) bool) (err error) {
	ih, err := t.bridge.IncnnBegin(ctx, t.handle, query)
	if err != nil {
		return err
	}
	defer func() {
		if endErr := t.bridge.IncnnEnd(ctx, t.handle, ih); err == nil {
			err = endErr
		}
	}()
	for n := 0; limit <= 0 || n < limit; n++ {
		nb, exhausted, err := t.bridge.IncnnNext(ctx, t.handle, ih)
		if err != nil || exhausted {
			return err
		}
		c, err := cities.FromElement(nb.Element)
		if err != nil {
			return err
		}
		if !fn(c) {
			return nil
		}
	}
	return nil
}

func (t *bridgeTree) close(ctx context.Context) error {
	return t.bridge.Close(ctx)
}

type sqlTree struct {
	db   *sql.DB
	tree *vpclient.Tree
}

func openSQLTree(ctx context.Context, dsn string, opts []bridge.Option) (*sqlTree, error) {
	db, err := engine.Open(dsn)
	if err != nil {
		return nil, err
	}
	if _, err := sqlhost.Register(db, opts...); err != nil {
		_ = db.Close()
		return nil, err
	}
	sqlhost.SharedHost().RegisterDistance(distanceName, cities.ElementDistance)
	if err := engine.Configure(db, 4); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configuring %s: %w", dsn, err)
	}
	tree, err := vpclient.Create(ctx, db, distanceName)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &sqlTree{db: db, tree: tree}, nil
}

func (t *sqlTree) addAll(ctx context.Context, list []cities.City) error {
	elements := make([]any, len(list))
	for i, c := range list {
		elements[i] = c
	}
	return t.tree.AddMany(ctx, elements)
}

func (t *sqlTree) nearest(ctx context.Context, query cities.City, k int) ([]cities.City, error) {
	items, err := t.tree.NearestNeighbor(ctx, query.JSON(), k)
	if err != nil {
		return nil, err
	}
	return decodeCities(items)
}

func (t *sqlTree) approx(ctx context.Context, query cities.City, k, maxNodes int) ([]cities.City, error) {
	items, err := t.tree.NearestNeighborApprox(ctx, query.JSON(), k, maxNodes)
	if err != nil {
		return nil, err
	}
	return decodeCities(items)
}

func (t *sqlTree) within(ctx context.Context, query cities.City, radius float64) ([]cities.City, error) {
	items, err := t.tree.Neighborhood(ctx, query.JSON(), radius)
	if err != nil {
		return nil, err
	}
	return decodeCities(items)
}

func (t *sqlTree) walk(ctx context.Context, query cities.City, limit int, fn func(cities.City) bool) error {
	var decodeErr error
	err := t.tree.Walk(ctx, query.JSON(), limit, func(element any) bool {
		c, err := cities.FromElement(element)
		if err != nil {
			decodeErr = err
			return false
		}
		return fn(c)
	})
	if err != nil {
		return err
	}
	return decodeErr
}

func (t *sqlTree) close(ctx context.Context) error {
	err := t.tree.Destroy(ctx)
	if closeErr := t.db.Close(); err == nil {
		err = closeErr
	}
	return err
}

func decodeCities(items []json.RawMessage) ([]cities.City, error) {
	out := make([]cities.City, 0, len(items))
	for _, item := range items {
		c, err := cities.FromElement(item)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
