// Package rag finds the stored facts and pages most relevant to a live
// query and assembles them into a bounded, confidence-scored context.
package rag

import "math"

// CosineSimilarity is the canonical similarity definition used across
// the engine: dot(a,b) / (|a|*|b|) over the shorter length, 0 when
// either vector is empty or has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	magnitude := math.Sqrt(normA) * math.Sqrt(normB)
	if magnitude == 0 {
		return 0
	}
	return dot / magnitude
}
