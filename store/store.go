package store

import (
	"context"
	"errors"
	"math"
)

var ErrCollectionNotFound = errors.New("collection not found")

// VectorStorer is the vector-index service the knowledge base is written against.
// Scores returned by Query are cosine similarities, higher is closer.
type VectorStorer interface {
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, name string, dimension int, metric string) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, records []Record) (int, error)
	Query(ctx context.Context, collection string, vector []float32, topK int, includeMetadata bool) ([]Match, error)
	Describe(ctx context.Context, collection string) (Stats, error)
}

type Record struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

type Stats struct {
	TotalVectorCount int
	Dimension        int
}

const MetricCosine = "cosine"

// Cosine returns the cosine similarity of a and b, or 0 when either is empty or zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
