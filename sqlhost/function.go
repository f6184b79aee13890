package sqlhost

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/sqlite-vptree/bridge"
	"github.com/viant/sqlite-vptree/engine"
	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

const (
	// FunctionName is the variadic dispatcher: vptree(command, args...).
	FunctionName = "vptree"
	// IncnnModuleName is the virtual table module streaming enumerations.
	IncnnModuleName = "vptree_incnn"
)

// SQL functions are registered with the driver, not with a database, so a
// single bridge serves every connection of the process.
var shared struct {
	once   sync.Once
	host   *Host
	bridge *bridge.Bridge
	err    error
}

// Register installs the vptree dispatcher function, the vector distance
// functions and the vptree_incnn module, and returns the process bridge.
// Functions are visible on connections opened after the first call, so call
// it before the first query on db. opts apply on the first call only; later
// calls attach db as the database SQL callbacks run on.
//
// Distance callbacks run their own query while the calling statement is
// still executing, so db must allow at least two open connections.
func Register(db *sql.DB, opts ...bridge.Option) (*bridge.Bridge, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlhost: db is nil")
	}
	shared.once.Do(func() {
		shared.host = NewHost(db)
		shared.bridge = bridge.New(shared.host, opts...)
		if err := engine.RegisterVectorFunctions(db); err != nil {
			shared.err = err
			return
		}
		if err := sqlite.RegisterScalarFunction(FunctionName, -1, dispatch); err != nil && !strings.Contains(err.Error(), "already registered") {
			shared.err = fmt.Errorf("sqlhost: register %s: %w", FunctionName, err)
		}
	})
	if shared.err != nil {
		return nil, shared.err
	}
	shared.host.Attach(db)
	if err := vtab.RegisterModule(db, IncnnModuleName, &IncnnModule{bridge: shared.bridge}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return nil, err
		}
	}
	return shared.bridge, nil
}

// SharedHost returns the host behind the process bridge, nil before Register.
func SharedHost() *Host { return shared.host }

func dispatch(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if shared.bridge == nil {
		return nil, fmt.Errorf("sqlhost: %s is not registered", FunctionName)
	}
	values := make([]bridge.Value, len(args))
	for i, arg := range args {
		values[i] = arg
	}
	result, err := shared.bridge.Call(context.Background(), values)
	if err != nil {
		return nil, err
	}
	return result, nil
}
