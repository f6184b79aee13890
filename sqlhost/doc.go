// Package sqlhost hosts the vptree bridge inside SQLite (modernc.org/sqlite).
//
// It registers a variadic scalar function that dispatches bridge commands,
//
//	SELECT vptree('create', 'vec_l2');
//	SELECT vptree('add', 1, '[0.5, 1.0]');
//	SELECT vptree('nearest_neighbor', 1, '[0, 0]', 5);
//
// and the vptree_incnn virtual table module that streams an incremental
// enumeration one row per step. Elements are SQLite values; embedding BLOBs
// and JSON array text are both understood by the vec_* distance functions.
// Distance callbacks name either a SQL scalar function of two arguments or
// a Go distance registered with Host.RegisterDistance.
package sqlhost
