package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/seanblong/loanassist/pkg/models"
)

// Retriever returns the k stored chunks closest to a query vector.
type Retriever interface {
	Search(ctx context.Context, vec []float32, k int) ([]models.SearchResult, error)
}

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Memory is an exact cosine-distance index held in process memory. It is
// immutable after NewMemory returns, so Search needs no locking.
type Memory struct {
	dim     int
	chunks  []models.Chunk
	vectors [][]float32
	norms   []float64
}

// NewMemory pairs chunks[i] with vectors[i]. Every vector must have the
// same non-zero dimension.
func NewMemory(chunks []models.Chunk, vectors [][]float32) (*Memory, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}

	m := &Memory{
		chunks:  slices.Clone(chunks),
		vectors: make([][]float32, len(vectors)),
		norms:   make([]float64, len(vectors)),
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty vector for chunk %s", chunks[i].ID)
		}
		if m.dim == 0 {
			m.dim = len(v)
		} else if len(v) != m.dim {
			return nil, fmt.Errorf("%w: chunk %s has %d, index has %d", ErrDimensionMismatch, chunks[i].ID, len(v), m.dim)
		}
		m.vectors[i] = slices.Clone(v)
		m.norms[i] = norm(v)
	}
	return m, nil
}

func (m *Memory) Len() int { return len(m.chunks) }

func (m *Memory) Dim() int { return m.dim }

// Search returns at most k results by non-decreasing cosine distance.
// Equal distances keep insertion order.
func (m *Memory) Search(ctx context.Context, vec []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 || len(m.chunks) == 0 {
		return []models.SearchResult{}, nil
	}
	if len(vec) != m.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vec), m.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	qn := norm(vec)
	res := make([]models.SearchResult, len(m.chunks))
	for i := range m.chunks {
		res[i] = models.SearchResult{
			Chunk:    m.chunks[i],
			Distance: cosineDistance(vec, qn, m.vectors[i], m.norms[i]),
		}
	}
	slices.SortStableFunc(res, func(a, b models.SearchResult) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	if k > len(res) {
		k = len(res)
	}
	return res[:k], nil
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

// cosineDistance is 1 - cos(a, b); a zero vector is treated as orthogonal
// to everything.
func cosineDistance(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot/(an*bn)
}
