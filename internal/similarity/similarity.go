// Package similarity decides whether two caption records describe the
// same underlying scene. Comparison is pure and symmetric: embeddings are
// compared by cosine similarity when both are present with matching
// dimensionality, otherwise normalized caption text is compared by exact
// match and token overlap.
package similarity

import (
	"math"
	"strings"

	"github.com/tphakala/cctview-go/internal/model"
)

// DefaultThreshold is the cosine similarity cutoff for "same scene".
// Values of 0.95 and above are miscalibrated in practice, similar captions
// typically score between 0.85 and 0.95.
const DefaultThreshold = 0.85

// tokenOverlapThreshold is the textual fallback cutoff.
const tokenOverlapThreshold = 0.8

// Engine compares caption records against a configured cosine threshold.
type Engine struct {
	threshold float64
}

// New creates an Engine. A non-positive threshold falls back to the default.
func New(threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

// Threshold returns the configured cosine cutoff.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// Similar reports whether two records describe the same scene.
func (e *Engine) Similar(a, b *model.CaptionRecord) bool {
	if a == nil || b == nil {
		return false
	}

	if len(a.Embedding) > 0 && len(a.Embedding) == len(b.Embedding) {
		return CosineSimilarity(a.Embedding, b.Embedding) >= e.threshold
	}

	// Fallback: missing or mismatched embeddings, compare caption text
	aNorm := normalizeCaption(a.Caption)
	bNorm := normalizeCaption(b.Caption)

	if aNorm == bNorm {
		return true
	}

	return tokenOverlap(aNorm, bNorm) >= tokenOverlapThreshold
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// normalizeCaption lowercases and trims caption text for comparison.
func normalizeCaption(caption string) string {
	return strings.ToLower(strings.TrimSpace(caption))
}

// tokenOverlap computes |intersection| / max(|tokens a|, |tokens b|) over
// whitespace-separated tokens of two normalized captions.
func tokenOverlap(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for token := range tokensA {
		if _, ok := tokensB[token]; ok {
			intersection++
		}
	}

	return float64(intersection) / float64(max(len(tokensA), len(tokensB)))
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
