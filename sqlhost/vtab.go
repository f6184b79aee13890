package sqlhost

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/sqlite-vptree/bridge"
	"github.com/viant/sqlite-vptree/convert"
	"github.com/viant/sqlite-vptree/handle"
	"github.com/viant/sqlite-vptree/index"
	"modernc.org/sqlite/vtab"
)

const (
	colValue = iota
	colDistance
	colTree
)

const idxEnumerate = 1

// IncnnModule exposes incremental enumeration as a virtual table:
//
//	CREATE VIRTUAL TABLE nn USING vptree_incnn;
//	SELECT value, distance FROM nn WHERE tree = ? AND value MATCH ? LIMIT 10;
//
// Rows come out in non-decreasing distance and are computed one xNext at a
// time, so LIMIT bounds the work done.
type IncnnModule struct {
	bridge *bridge.Bridge
}

// IncnnTable is a vptree_incnn table instance.
type IncnnTable struct {
	bridge *bridge.Bridge
}

// IncnnCursor owns one enumeration at a time.
type IncnnCursor struct {
	table *IncnnTable
	tree  handle.Handle
	iter  handle.Handle
	row   index.Neighbor
	rowid int64
	eof   bool
}

// Create declares the table schema.
func (m *IncnnModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vptree_incnn: CREATE expects at least 3 args, got %d", len(args))
	}
	return m.declare(ctx, args[2])
}

// Connect attaches to an existing table.
func (m *IncnnModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vptree_incnn: CONNECT expects at least 3 args, got %d", len(args))
	}
	return m.declare(ctx, args[2])
}

func (m *IncnnModule) declare(ctx vtab.Context, name string) (vtab.Table, error) {
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("vptree_incnn: EnableConstraintSupport failed: %w", err)
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(value, distance REAL, tree INTEGER HIDDEN)", name)); err != nil {
		return nil, err
	}
	return &IncnnTable{bridge: m.bridge}, nil
}

// BestIndex requires tree = ? and value MATCH ?.
func (t *IncnnTable) BestIndex(info *vtab.IndexInfo) error {
	var treeConstraint, matchConstraint *vtab.Constraint
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		switch {
		case c.Column == colTree && c.Op == vtab.OpEQ:
			treeConstraint = c
		case c.Column == colValue && c.Op == vtab.OpMATCH:
			matchConstraint = c
		}
	}
	if treeConstraint == nil || matchConstraint == nil {
		return fmt.Errorf("vptree_incnn: tree = ? and value MATCH ? are required")
	}
	treeConstraint.ArgIndex = 0
	treeConstraint.Omit = true
	matchConstraint.ArgIndex = 1
	matchConstraint.Omit = true
	info.IdxNum = idxEnumerate
	return nil
}

// Open allocates a new cursor.
func (t *IncnnTable) Open() (vtab.Cursor, error) { return &IncnnCursor{table: t}, nil }

// Disconnect implements vtab.Table.
func (t *IncnnTable) Disconnect() error { return nil }

// Destroy implements vtab.Table; sessions outlive the table.
func (t *IncnnTable) Destroy() error { return nil }

// Filter begins an enumeration and positions the cursor on its first row.
func (c *IncnnCursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	if err := c.end(); err != nil {
		return err
	}
	c.rowid = 0
	c.eof = true
	if idxNum != idxEnumerate || len(vals) < 2 {
		return nil
	}
	tree, err := convert.ToInt64(vals[0])
	if err != nil {
		return fmt.Errorf("vptree_incnn: tree: %w", err)
	}
	ctx := context.Background()
	c.tree = handle.FromInt64(tree)
	iter, err := c.table.bridge.IncnnBegin(ctx, c.tree, vals[1])
	if err != nil {
		return err
	}
	c.iter = iter
	return c.Next()
}

// Next fetches the next nearest element.
func (c *IncnnCursor) Next() error {
	if c.iter == 0 {
		c.eof = true
		return nil
	}
	nb, exhausted, err := c.table.bridge.IncnnNext(context.Background(), c.tree, c.iter)
	if err != nil {
		return err
	}
	if exhausted {
		c.eof = true
		return nil
	}
	c.eof = false
	c.row = nb
	c.rowid++
	return nil
}

// Eof reports end-of-rows.
func (c *IncnnCursor) Eof() bool { return c.eof }

// Column returns the value of a column in the current row.
func (c *IncnnCursor) Column(col int) (vtab.Value, error) {
	if c.eof {
		return nil, fmt.Errorf("vptree_incnn: Column past end")
	}
	switch col {
	case colValue:
		return c.row.Element, nil
	case colDistance:
		return c.row.Distance, nil
	case colTree:
		return c.tree.Int64(), nil
	}
	return nil, fmt.Errorf("vptree_incnn: unsupported column %d", col)
}

// Rowid returns the 1-based rank of the current row.
func (c *IncnnCursor) Rowid() (int64, error) { return c.rowid, nil }

// Close ends the enumeration.
func (c *IncnnCursor) Close() error { return c.end() }

func (c *IncnnCursor) end() error {
	if c.iter == 0 {
		return nil
	}
	iter := c.iter
	c.iter = 0
	c.row = index.Neighbor{}
	err := c.table.bridge.IncnnEnd(context.Background(), c.tree, iter)
	if errors.Is(err, handle.ErrStaleHandle) {
		// the tree was destroyed while the cursor was open
		return nil
	}
	return err
}
