// Package features holds the feature generators: independent, deterministic
// producers of labeled [0,1] signals that the aggregator combines into a
// match score. Each generator emits under its own prefix (skills_, text_,
// pref_, cultural_, experience_) so weights can be routed per family.
package features

import (
	"context"
	"math"

	"github.com/benidevo/matchcore/internal/matchcore/model"
)

// Generator produces one family of features for a match request. Generators
// are stateless after construction and pure with respect to their inputs.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req model.MatchRequest) (map[string]float64, error)
}

// Embedder is the optional EmbeddingsProvider capability. When absent,
// skills_semantic is omitted and cultural_implicit falls back to TF-IDF
// cosine; neither is set to zero.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// clip bounds v to [0,1].
func clip(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// f1 computes the harmonic mean of precision and recall.
func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// cosine32 computes cosine similarity between two float32 vectors, clipped
// to [0,1] (embedding models can produce slightly negative similarities).
func cosine32(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clip(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// meanPool averages a set of embedding vectors into one.
func meanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	pooled := make([]float32, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil
		}
		for i, x := range v {
			pooled[i] += x
		}
	}
	for i := range pooled {
		pooled[i] /= float32(len(vectors))
	}
	return pooled
}
