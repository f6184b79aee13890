package vector

import (
	"fmt"
	"math"

	"github.com/viant/vec/search"
)

// EarthRadiusKm is the sphere radius used by HaversineDistance.
const EarthRadiusKm = 6378.1

// CosineSimilarity computes the cosine similarity between two vectors. It
// returns an error if the vectors have different lengths or if either vector
// has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if err := sameDims("cosine similarity", a, b); err != nil {
		return 0, err
	}
	if len(a) == 0 || search.Float32s(a).Magnitude() == 0 || search.Float32s(b).Magnitude() == 0 {
		return 0, fmt.Errorf("vector: cosine similarity with zero-magnitude vector")
	}
	return 1 - float64(search.Float32s(a).CosineDistance(b)), nil
}

// CosineDistance returns 1 - cosine similarity, clamped at 0 so rounding
// never yields a negative distance.
func CosineDistance(a, b []float32) (float64, error) {
	sim, err := CosineSimilarity(a, b)
	if err != nil {
		return 0, err
	}
	return math.Max(0, 1-sim), nil
}

// L2Distance computes the Euclidean (L2) distance between two vectors. It
// returns an error if the vectors have different lengths.
func L2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: L2 distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	return float64(search.Float32s(a).EuclideanDistance(b)), nil
}

// HaversineDistance returns the great-circle distance in kilometers between
// two [latitude, longitude] pairs given in degrees.
func HaversineDistance(a, b []float32) (float64, error) {
	if len(a) != 2 || len(b) != 2 {
		return 0, fmt.Errorf("vector: haversine expects [lat, lon] pairs, got %d and %d values", len(a), len(b))
	}
	return Haversine(float64(a[0]), float64(a[1]), float64(b[0]), float64(b[1])), nil
}

// Haversine returns the great-circle distance in kilometers between two
// points given in degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func sameDims(op string, a, b []float32) error {
	if len(a) != len(b) {
		return fmt.Errorf("vector: %s dimension mismatch: %d vs %d", op, len(a), len(b))
	}
	if len(a) == 0 {
		return fmt.Errorf("vector: %s on empty vectors", op)
	}
	return nil
}
