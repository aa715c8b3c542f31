package storage

import "math"

// NormalizeVector normalizes a vector to unit length.
// Returns a new vector. If the input is a zero vector, returns a zero vector.
func NormalizeVector(v []float32) []float32 {
	result := make([]float32, len(v))
	magnitude := norm(v)
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either is a zero vector or their lengths differ.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (na * nb)
}

// EuclideanSimilarity maps the Euclidean distance between a and b into (0, 1].
func EuclideanSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(1 / (1 + math.Sqrt(sum)))
}

// Score computes the similarity of a and b under s.
func (s Similarity) Score(a, b []float32) float32 {
	if s == SimilarityEuclidean {
		return EuclideanSimilarity(a, b)
	}
	return CosineSimilarity(a, b)
}

// Valid reports whether s is supported.
func (s Similarity) Valid() bool {
	return s == SimilarityCosine || s == SimilarityEuclidean
}

func norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}
