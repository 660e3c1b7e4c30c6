package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/cctview-go/internal/model"
)

func record(caption string, embedding []float32) *model.CaptionRecord {
	return &model.CaptionRecord{
		CameraID:  "cam1",
		Caption:   caption,
		Embedding: embedding,
	}
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"mismatched length", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSimilarEmbeddingPath(t *testing.T) {
	t.Parallel()

	engine := New(0.85)

	// Cosine of these two is exactly 1.0
	a := record("a person walks by", []float32{0.5, 0.5, 0})
	b := record("someone walking past", []float32{1, 1, 0})
	assert.True(t, engine.Similar(a, b))

	// Orthogonal embeddings are never similar even with identical captions
	c := record("empty room", []float32{1, 0})
	d := record("empty room", []float32{0, 1})
	assert.False(t, engine.Similar(c, d))
}

func TestSimilarTextFallback(t *testing.T) {
	t.Parallel()

	engine := New(0.85)

	// No embeddings: exact normalized match
	assert.True(t, engine.Similar(record("Empty Room ", nil), record("empty room", nil)))

	// Mismatched embedding dimensions fall back to text comparison
	a := record("empty room", []float32{1, 0, 0})
	b := record("empty room", []float32{1, 0})
	assert.True(t, engine.Similar(a, b))

	// Token overlap 4/5 = 0.8 meets the cutoff
	assert.True(t, engine.Similar(
		record("a person enters the room", nil),
		record("a person leaves the room", nil),
	))

	// Token overlap 1/3 is below the cutoff
	assert.False(t, engine.Similar(
		record("empty room", nil),
		record("a crowded room", nil),
	))
}

func TestSimilarSymmetry(t *testing.T) {
	t.Parallel()

	engine := New(0.85)

	pairs := [][2]*model.CaptionRecord{
		{record("empty room", nil), record("person enters", nil)},
		{record("empty room", nil), record("empty room", nil)},
		{record("a person enters the room", nil), record("a person leaves the room", nil)},
		{record("x", []float32{1, 0.2, 0}), record("y", []float32{0.9, 0.3, 0.1})},
		{record("x", []float32{1, 0}), record("y", []float32{0, 1})},
		{record("with embedding", []float32{1, 0}), record("without embedding", nil)},
	}

	for _, pair := range pairs {
		assert.Equal(t, engine.Similar(pair[0], pair[1]), engine.Similar(pair[1], pair[0]),
			"similar(%q, %q) must be symmetric", pair[0].Caption, pair[1].Caption)
	}
}

func TestSimilarNilRecords(t *testing.T) {
	t.Parallel()

	engine := New(0.85)
	a := record("empty room", nil)

	assert.False(t, engine.Similar(nil, a))
	assert.False(t, engine.Similar(a, nil))
	assert.False(t, engine.Similar(nil, nil))
}

func TestNewDefaultThreshold(t *testing.T) {
	t.Parallel()

	engine := New(0)
	require.InDelta(t, DefaultThreshold, engine.Threshold(), 1e-9)
}
