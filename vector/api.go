package vector

import (
	"fmt"

	"github.com/viant/sqlite-vptree/index"
)

// Metric names a supported distance metric.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricL2        Metric = "l2"
	MetricHaversine Metric = "haversine"
)

// Func computes the distance between two embeddings.
type Func func(a, b []float32) (float64, error)

// Function resolves the callable implementation, or nil for unknown metrics.
func (m Metric) Function() Func {
	switch m {
	case MetricCosine:
		return CosineDistance
	case MetricL2, "euclidean":
		return L2Distance
	case MetricHaversine:
		return HaversineDistance
	default:
		return nil
	}
}

// ParseMetric resolves a metric name.
func ParseMetric(name string) (Metric, error) {
	m := Metric(name)
	if m.Function() == nil {
		return "", fmt.Errorf("vector: unknown metric %q", name)
	}
	return m, nil
}

// Distance adapts the metric to index.DistanceFunc over elements holding
// embeddings in any form ParseEmbedding accepts.
func (m Metric) Distance() index.DistanceFunc {
	fn := m.Function()
	return func(a, b index.Element) (float64, error) {
		if fn == nil {
			return 0, fmt.Errorf("vector: unknown metric %q", m)
		}
		va, err := ParseEmbedding(a)
		if err != nil {
			return 0, err
		}
		vb, err := ParseEmbedding(b)
		if err != nil {
			return 0, err
		}
		return fn(va, vb)
	}
}
