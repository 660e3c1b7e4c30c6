// codec.go: key layout and wire encoding for cache facets.
//
// Every caption record occupies three facets in the cache, all sharing the
// same TTL:
//
//	caption:<camera>:<timestamp>    caption text, plain string
//	embedding:<camera>:<timestamp>  embedding vector, little-endian float32
//	meta:<camera>:<timestamp>       full record envelope, JSON
//
// The metadata key is the record's canonical key, the one returned by
// scans and accepted by DeleteMany.
package hotcache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tphakala/cctview-go/internal/errors"
	"github.com/tphakala/cctview-go/internal/model"
)

const (
	metaPrefix      = "meta:"
	captionPrefix   = "caption:"
	embeddingPrefix = "embedding:"
)

// timestampLayout keys records by nanosecond precision wall time.
const timestampLayout = time.RFC3339Nano

// MetaKey returns the canonical cache key for a record.
func MetaKey(cameraID string, timestamp time.Time) string {
	return metaPrefix + cameraID + ":" + timestamp.UTC().Format(timestampLayout)
}

func captionKey(cameraID string, timestamp time.Time) string {
	return captionPrefix + cameraID + ":" + timestamp.UTC().Format(timestampLayout)
}

func embeddingKey(cameraID string, timestamp time.Time) string {
	return embeddingPrefix + cameraID + ":" + timestamp.UTC().Format(timestampLayout)
}

// metaScanPattern returns the SCAN match pattern for metadata keys,
// optionally narrowed to one camera.
func metaScanPattern(cameraID string) string {
	if cameraID == "" {
		return metaPrefix + "*"
	}
	return metaPrefix + cameraID + ":*"
}

// parseMetaKey splits a metadata key into camera id and timestamp.
// Timestamps contain colons, so everything after the second separator
// belongs to the timestamp.
func parseMetaKey(key string) (cameraID string, timestamp time.Time, err error) {
	rest, ok := strings.CutPrefix(key, metaPrefix)
	if !ok {
		return "", time.Time{}, errors.Newf("not a metadata key: %s", key).
			Category(errors.CategoryValidation).
			Component("hotcache").
			Build()
	}

	cameraID, tsPart, ok := strings.Cut(rest, ":")
	if !ok || cameraID == "" {
		return "", time.Time{}, errors.Newf("malformed metadata key: %s", key).
			Category(errors.CategoryValidation).
			Component("hotcache").
			Build()
	}

	timestamp, err = time.Parse(timestampLayout, tsPart)
	if err != nil {
		return "", time.Time{}, errors.New(fmt.Errorf("invalid timestamp in key %s: %w", key, err)).
			Category(errors.CategoryValidation).
			Component("hotcache").
			Build()
	}

	return cameraID, timestamp, nil
}

// facetKeys returns the caption and embedding keys paired with a metadata key.
func facetKeys(key string) (captionK, embeddingK string, err error) {
	rest, ok := strings.CutPrefix(key, metaPrefix)
	if !ok {
		return "", "", errors.Newf("not a metadata key: %s", key).
			Category(errors.CategoryValidation).
			Component("hotcache").
			Build()
	}
	return captionPrefix + rest, embeddingPrefix + rest, nil
}

// recordEnvelope is the JSON body stored under the metadata facet.
type recordEnvelope struct {
	CameraID   string         `json:"camera_id"`
	Timestamp  string         `json:"timestamp"`
	Caption    string         `json:"caption"`
	Confidence float64        `json:"confidence"`
	CreatedAt  string         `json:"created_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// encodeEnvelope serializes the metadata facet of a record.
func encodeEnvelope(record *model.CaptionRecord) ([]byte, error) {
	env := recordEnvelope{
		CameraID:   record.CameraID,
		Timestamp:  record.Timestamp.UTC().Format(timestampLayout),
		Caption:    record.Caption,
		Confidence: record.Confidence,
		CreatedAt:  record.CreatedAt.UTC().Format(timestampLayout),
		Metadata:   record.Metadata,
	}
	return json.Marshal(env)
}

// decodeEnvelope parses a metadata facet back into a record, without the
// embedding which lives in its own facet.
func decodeEnvelope(data []byte) (*model.CaptionRecord, error) {
	var env recordEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.New(fmt.Errorf("unparseable record metadata: %w", err)).
			Category(errors.CategoryValidation).
			Component("hotcache").
			Build()
	}

	timestamp, err := time.Parse(timestampLayout, env.Timestamp)
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid record timestamp %q: %w", env.Timestamp, err)).
			Category(errors.CategoryValidation).
			Component("hotcache").
			Build()
	}

	record := &model.CaptionRecord{
		CameraID:   env.CameraID,
		Timestamp:  timestamp,
		Caption:    env.Caption,
		Confidence: env.Confidence,
		Metadata:   env.Metadata,
	}
	if env.CreatedAt != "" {
		if createdAt, err := time.Parse(timestampLayout, env.CreatedAt); err == nil {
			record.CreatedAt = createdAt
		}
	}
	return record, nil
}

// encodeEmbedding packs a vector as little-endian float32 bytes, the wire
// format shared with external producers.
func encodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks little-endian float32 bytes. Truncated buffers
// are rejected rather than silently dropping the tail.
func decodeEmbedding(data []byte) ([]float32, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data)%4 != 0 {
		return nil, errors.Newf("embedding facet has %d bytes, not a multiple of 4", len(data)).
			Category(errors.CategoryValidation).
			Component("hotcache").
			Build()
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding, nil
}
