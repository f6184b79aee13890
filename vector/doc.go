// Package vector provides host-side helpers for embedding points:
//   - Embedding encoding (BLOB) and parsing from host values
//   - Distance functions (cosine, L2, haversine) built on viant/vec kernels
//   - Metric, which adapts a distance function to an index engine
package vector
