package hotcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/cctview-go/internal/model"
)

func TestMetaKeyRoundTrip(t *testing.T) {
	t.Parallel()

	timestamp := time.Date(2026, 8, 30, 14, 5, 9, 123456789, time.UTC)
	key := MetaKey("cam1", timestamp)

	cameraID, parsed, err := parseMetaKey(key)
	require.NoError(t, err)
	assert.Equal(t, "cam1", cameraID)
	assert.True(t, parsed.Equal(timestamp))
}

func TestParseMetaKeyRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, key := range []string{
		"caption:cam1:2026-08-30T14:05:09Z", // wrong prefix
		"meta:",                             // empty camera and timestamp
		"meta:cam1",                         // no timestamp
		"meta:cam1:not-a-timestamp",
	} {
		_, _, err := parseMetaKey(key)
		assert.Error(t, err, "key %q should not parse", key)
	}
}

func TestFacetKeys(t *testing.T) {
	t.Parallel()

	captionK, embeddingK, err := facetKeys("meta:cam1:2026-08-30T14:05:09Z")
	require.NoError(t, err)
	assert.Equal(t, "caption:cam1:2026-08-30T14:05:09Z", captionK)
	assert.Equal(t, "embedding:cam1:2026-08-30T14:05:09Z", embeddingK)

	_, _, err = facetKeys("bogus:cam1:x")
	assert.Error(t, err)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	t.Parallel()

	record := &model.CaptionRecord{
		CameraID:   "cam2",
		Timestamp:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Caption:    "a person enters the lobby",
		Confidence: 0.92,
		Metadata:   map[string]any{"detector": "yolo"},
		CreatedAt:  time.Date(2026, 8, 30, 10, 0, 1, 0, time.UTC),
	}

	data, err := encodeEnvelope(record)
	require.NoError(t, err)

	decoded, err := decodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, record.CameraID, decoded.CameraID)
	assert.True(t, decoded.Timestamp.Equal(record.Timestamp))
	assert.Equal(t, record.Caption, decoded.Caption)
	assert.InDelta(t, record.Confidence, decoded.Confidence, 1e-9)
	assert.Equal(t, "yolo", decoded.Metadata["detector"])
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	t.Parallel()

	_, err := decodeEnvelope([]byte("{not json"))
	assert.Error(t, err)

	_, err = decodeEnvelope([]byte(`{"camera_id":"cam1","timestamp":"bogus"}`))
	assert.Error(t, err)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	t.Parallel()

	embedding := []float32{0.25, -1.5, 3.75, 0}
	decoded, err := decodeEmbedding(encodeEmbedding(embedding))
	require.NoError(t, err)
	assert.Equal(t, embedding, decoded)

	decoded, err = decodeEmbedding(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)

	_, err = decodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err, "truncated embedding buffers must be rejected")
}
