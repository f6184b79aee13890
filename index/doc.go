// Package index defines the contract of a metric nearest-neighbor engine:
// batched insertion, exact and budgeted kNN, radius neighborhoods and a lazy
// incremental enumeration. Elements are opaque; distances come from an
// injected function and memory from an injected allocator.
package index
