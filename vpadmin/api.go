package vpadmin

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/viant/sqlite-vptree/bridge"
	"modernc.org/sqlite/vtab"
)

// ModuleName is the admin virtual table module name.
const ModuleName = "vptree_admin"

// Module provides administrative operations via a virtual table.
// Usage:
//
//	CREATE VIRTUAL TABLE vp_admin USING vptree_admin(op);
//	SELECT op FROM vp_admin WHERE op MATCH 'sessions'; -- one JSON row per live session
//	SELECT op FROM vp_admin WHERE op MATCH 'commands'; -- dispatcher command names
//	SELECT op FROM vp_admin WHERE op MATCH 'close';    -- destroys every session, returns 'closed:<count>'
type Module struct{ bridge *bridge.Bridge }

type Table struct{ bridge *bridge.Bridge }

type Cursor struct {
	table *Table
	rows  []string
	pos   int
}

// Session is the JSON row reported for a live session.
type Session struct {
	ID         string `json:"id"`
	Handle     int64  `json:"handle"`
	Population int    `json:"population"`
	Pending    int    `json:"pending"`
	Iterators  int    `json:"iterators"`
	Busy       bool   `json:"busy,omitempty"`
}

func Register(db *sql.DB, b *bridge.Bridge) error {
	if b == nil {
		return fmt.Errorf("vptree_admin: bridge is nil")
	}
	if err := vtab.RegisterModule(db, ModuleName, &Module{bridge: b}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return err
		}
	}
	return nil
}

func (m *Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vptree_admin: need at least 3 args")
	}
	// Single TEXT column `op` reporting results.
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(op)", args[2])); err != nil {
		return nil, err
	}
	return &Table{bridge: m.bridge}, nil
}

func (m *Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

func (t *Table) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable {
			continue
		}
		if c.Column == 0 && c.Op == vtab.OpMATCH {
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			break
		}
	}
	return nil
}

func (t *Table) Open() (vtab.Cursor, error) { return &Cursor{table: t}, nil }
func (t *Table) Disconnect() error          { return nil }
func (t *Table) Destroy() error             { return nil }

func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if idxNum != 1 || len(vals) == 0 || vals[0] == nil {
		return nil
	}
	op, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("vptree_admin: MATCH expects an operation name as TEXT")
	}
	rows, err := run(c.table.bridge, strings.TrimSpace(op))
	if err != nil {
		return err
	}
	c.rows = rows
	return nil
}

func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("vptree_admin: Column out of range")
	}
	if col == 0 {
		return c.rows[c.pos], nil
	}
	return nil, nil
}
func (c *Cursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }
func (c *Cursor) Close() error          { c.rows = nil; c.pos = 0; return nil }

// Sessions reports the live sessions of b.
func Sessions(b *bridge.Bridge) []Session {
	infos := b.Sessions()
	out := make([]Session, len(infos))
	for i, info := range infos {
		out[i] = Session{
			ID:         info.ID,
			Handle:     info.Handle.Int64(),
			Population: info.Population,
			Pending:    info.Pending,
			Iterators:  info.Iterators,
			Busy:       info.Busy,
		}
	}
	return out
}

func run(b *bridge.Bridge, op string) ([]string, error) {
	switch op {
	case "sessions":
		sessions := Sessions(b)
		rows := make([]string, 0, len(sessions))
		for _, s := range sessions {
			data, err := json.Marshal(s)
			if err != nil {
				return nil, err
			}
			rows = append(rows, string(data))
		}
		return rows, nil
	case "commands":
		return bridge.Commands(), nil
	case "close":
		n := len(b.Sessions())
		if err := b.Close(context.Background()); err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("closed:%d", n)}, nil
	}
	return nil, fmt.Errorf("vptree_admin: unknown operation %q", op)
}
