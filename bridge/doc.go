// Package bridge lets a host runtime that cannot hold Go pointers or keep a
// call stack alive between invocations drive a stateful nearest-neighbor
// engine through independent calls.
//
// A Bridge owns two handle tables, one for tree sessions and one for
// incremental enumerations. Every call names its command and passes
// positional host values; object identity travels as a 64-bit handle.
// Insertions are buffered per session and merged into the engine in one
// batch before the next query, so an element reaches the engine exactly
// once no matter how many queries follow. Distances are computed by a
// host callback that the session retains for its whole lifetime.
package bridge
