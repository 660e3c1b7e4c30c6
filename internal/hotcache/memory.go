// memory.go: embedded hot cache backend on patrickmn/go-cache, used for
// single-node deployments and tests.
package hotcache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/errors"
	"github.com/tphakala/cctview-go/internal/logging"
	"github.com/tphakala/cctview-go/internal/model"
)

// memoryScanBatch bounds how many keys a scan visits between context
// checks, mirroring the COUNT hint of the Redis backend.
const memoryScanBatch = 100

// MemoryStore implements Store on an in-process go-cache instance.
type MemoryStore struct {
	Settings *conf.Settings
	cache    *gocache.Cache
	log      *slog.Logger
}

// Open initializes the embedded cache with the configured TTL.
func (store *MemoryStore) Open() error {
	ttl := time.Duration(store.Settings.HotCache.FullTTL) * time.Second
	// Expired entries are swept at 1/10th of the TTL so migration sees a
	// reasonably fresh view of what is still present.
	cleanup := ttl / 10
	if cleanup < time.Second {
		cleanup = time.Second
	}
	store.cache = gocache.New(ttl, cleanup)
	store.log = logging.ForService("hotcache")
	if store.log == nil {
		store.log = slog.Default().With("service", "hotcache")
	}
	return nil
}

// StoreCaption writes all three facets of a record under the configured TTL.
func (store *MemoryStore) StoreCaption(_ context.Context, record *model.CaptionRecord) error {
	if store.cache == nil {
		return errors.NewStd("hot cache is not initialized")
	}

	envelope, err := encodeEnvelope(record)
	if err != nil {
		return errors.New(fmt.Errorf("failed to encode record metadata: %w", err)).
			Category(errors.CategoryHotCache).
			Context("camera_id", record.CameraID).
			Build()
	}

	ttl := time.Duration(store.Settings.HotCache.FullTTL) * time.Second
	store.cache.Set(captionKey(record.CameraID, record.Timestamp), record.Caption, ttl)
	if len(record.Embedding) > 0 {
		store.cache.Set(embeddingKey(record.CameraID, record.Timestamp), encodeEmbedding(record.Embedding), ttl)
	}
	store.cache.Set(MetaKey(record.CameraID, record.Timestamp), envelope, ttl)
	return nil
}

// GetFullRecord resolves a metadata key to the complete record.
func (store *MemoryStore) GetFullRecord(_ context.Context, key string) (*model.CaptionRecord, error) {
	if store.cache == nil {
		return nil, errors.NewStd("hot cache is not initialized")
	}

	value, found := store.cache.Get(key)
	if !found {
		return nil, errors.Newf("record not found: %s", key).
			Category(errors.CategoryNotFound).
			Component("hotcache").
			Build()
	}

	envelope, ok := value.([]byte)
	if !ok {
		return nil, errors.Newf("metadata facet for %s has unexpected type %T", key, value).
			Category(errors.CategoryValidation).
			Component("hotcache").
			Build()
	}

	record, err := decodeEnvelope(envelope)
	if err != nil {
		return nil, err
	}

	_, embeddingK, err := facetKeys(key)
	if err != nil {
		return nil, err
	}
	if raw, found := store.cache.Get(embeddingK); found {
		if data, ok := raw.([]byte); ok {
			embedding, err := decodeEmbedding(data)
			if err != nil {
				return nil, err
			}
			record.Embedding = embedding
		}
	}

	return record, nil
}

// ScanNearExpiry walks the metadata key space and returns refs for
// entries within the threshold. Keys are re-validated at visit time, so
// entries deleted mid-scan drop out instead of being reported stale.
func (store *MemoryStore) ScanNearExpiry(ctx context.Context, cameraID string, threshold time.Duration) ([]model.ExpiringKeyRef, int, error) {
	if store.cache == nil {
		return nil, 0, errors.NewStd("hot cache is not initialized")
	}

	prefix := strings.TrimSuffix(metaScanPattern(cameraID), "*")
	keys := make([]string, 0)
	for key := range store.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var refs []model.ExpiringKeyRef
	skipped := 0
	now := time.Now()

	for start := 0; start < len(keys); start += memoryScanBatch {
		if err := ctx.Err(); err != nil {
			return refs, skipped, errors.New(err).
				Category(errors.CategoryCancellation).
				Component("hotcache").
				Build()
		}

		end := min(start+memoryScanBatch, len(keys))
		for _, key := range keys[start:end] {
			_, expiration, found := store.cache.GetWithExpiration(key)
			if !found {
				continue // deleted or expired since the key listing
			}

			ttlRemaining := expiration.Sub(now)
			if expiration.IsZero() || ttlRemaining <= 0 || ttlRemaining > threshold {
				continue
			}

			keyCameraID, timestamp, err := parseMetaKey(key)
			if err != nil {
				store.log.Warn("skipping malformed cache key", "key", key, "error", err)
				skipped++
				continue
			}

			record, err := store.GetFullRecord(ctx, key)
			if err != nil {
				store.log.Warn("skipping unreadable cache entry", "key", key, "error", err)
				skipped++
				continue
			}

			refs = append(refs, model.ExpiringKeyRef{
				Key:          key,
				CameraID:     keyCameraID,
				Timestamp:    timestamp,
				TTLRemaining: ttlRemaining,
				Record:       record,
			})
		}
	}

	return refs, skipped, nil
}

// DeleteMany removes records and their facets. Missing keys are not an
// error, the entry may have expired on its own since the scan.
func (store *MemoryStore) DeleteMany(_ context.Context, keys []string) (int, error) {
	if store.cache == nil {
		return 0, errors.NewStd("hot cache is not initialized")
	}

	deleted := 0
	for _, key := range keys {
		captionK, embeddingK, err := facetKeys(key)
		if err != nil {
			store.log.Warn("not deleting malformed key", "key", key, "error", err)
			continue
		}

		if _, found := store.cache.Get(key); found {
			deleted++
		}
		store.cache.Delete(key)
		store.cache.Delete(captionK)
		store.cache.Delete(embeddingK)
	}
	return deleted, nil
}

// Close releases the embedded cache.
func (store *MemoryStore) Close() error {
	store.cache = nil
	return nil
}
