// Package engine provides helpers for working with the modernc.org/sqlite
// driver in this module: opening connections and registering the vector
// SQL scalar functions (vec_l2, vec_cosine, vec_cosine_distance,
// vec_haversine). It intentionally keeps a thin surface so other packages
// can share the same driver instance.
package engine
