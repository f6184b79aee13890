// Package alloc provides the allocator shared by an index engine and the
// bridge driving it. Every block an engine or the bridge obtains is returned
// through the same allocator that issued it.
package alloc
