// Package cities parses the city list used by the cities command and
// measures great-circle distances between cities.
package cities
