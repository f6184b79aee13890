// Command cities answers nearest-city questions over a VP-tree keyed by
// great-circle distance.
//
//	cities knn --city Paris --k 5
//	cities within --city Paris --radius 500
//	cities walk --city Paris --limit 20 --sql
package main

import (
	"os"
)

func main() {
	cmd := newCitiesCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
