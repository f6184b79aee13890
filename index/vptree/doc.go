// Package vptree implements index.Engine with a vantage-point tree.
//
// The tree is rebuilt from the full element set on every AddMany; each build
// produces an immutable snapshot whose nodes are allocated through the
// injected allocator. Queries and iterators pin the snapshot they started on,
// so a later AddMany never disturbs an active enumeration. Splits pick the
// last element of a partition as the vantage point and the median distance
// as the threshold.
package vptree
