// redis.go: Redis hot cache backend for deployments where producers and
// the migration engine run in separate processes.
package hotcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/errors"
	"github.com/tphakala/cctview-go/internal/logging"
	"github.com/tphakala/cctview-go/internal/model"
)

// RedisStore implements Store on a Redis server. Caption records use the
// caption:/embedding:/meta: facet layout written by external producers.
type RedisStore struct {
	Settings *conf.Settings
	client   *redis.Client
	log      *slog.Logger
}

// Open connects to Redis and verifies the connection.
func (store *RedisStore) Open() error {
	rs := store.Settings.HotCache.Redis
	store.client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", rs.Host, rs.Port),
		Password: rs.Password,
		DB:       rs.Database,
	})
	store.log = logging.ForService("hotcache")
	if store.log == nil {
		store.log = slog.Default().With("service", "hotcache")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.client.Ping(ctx).Err(); err != nil {
		return errors.New(fmt.Errorf("failed to connect to Redis: %w", err)).
			Category(errors.CategoryNetwork).
			Context("host", rs.Host).
			Build()
	}
	return nil
}

// StoreCaption writes all three facets of a record under the configured TTL.
func (store *RedisStore) StoreCaption(ctx context.Context, record *model.CaptionRecord) error {
	if store.client == nil {
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
	pipe := store.client.Pipeline()
	pipe.Set(ctx, captionKey(record.CameraID, record.Timestamp), record.Caption, ttl)
	if len(record.Embedding) > 0 {
		pipe.Set(ctx, embeddingKey(record.CameraID, record.Timestamp), encodeEmbedding(record.Embedding), ttl)
	}
	pipe.Set(ctx, MetaKey(record.CameraID, record.Timestamp), envelope, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.New(fmt.Errorf("failed to store caption record: %w", err)).
			Category(errors.CategoryHotCache).
			Context("camera_id", record.CameraID).
			Build()
	}
	return nil
}

// GetFullRecord resolves a metadata key to the complete record.
func (store *RedisStore) GetFullRecord(ctx context.Context, key string) (*model.CaptionRecord, error) {
	if store.client == nil {
		return nil, errors.NewStd("hot cache is not initialized")
	}

	envelope, err := store.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Newf("record not found: %s", key).
				Category(errors.CategoryNotFound).
				Component("hotcache").
				Build()
		}
		return nil, errors.New(fmt.Errorf("failed to read record metadata: %w", err)).
			Category(errors.CategoryHotCache).
			Context("key", key).
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
	data, err := store.client.Get(ctx, embeddingK).Bytes()
	switch {
	case err == nil:
		embedding, err := decodeEmbedding(data)
		if err != nil {
			return nil, err
		}
		record.Embedding = embedding
	case errors.Is(err, redis.Nil):
		// record has no embedding facet, text fallback applies
	default:
		return nil, errors.New(fmt.Errorf("failed to read embedding facet: %w", err)).
			Category(errors.CategoryHotCache).
			Context("key", key).
			Build()
	}

	return record, nil
}

// ScanNearExpiry iterates the metadata key space with SCAN and returns
// refs for entries within the threshold.
func (store *RedisStore) ScanNearExpiry(ctx context.Context, cameraID string, threshold time.Duration) ([]model.ExpiringKeyRef, int, error) {
	if store.client == nil {
		return nil, 0, errors.NewStd("hot cache is not initialized")
	}

	pattern := metaScanPattern(cameraID)
	scanCount := int64(store.Settings.HotCache.Redis.ScanCount)
	if scanCount <= 0 {
		scanCount = 100
	}

	var refs []model.ExpiringKeyRef
	skipped := 0
	var cursor uint64

	for {
		keys, next, err := store.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return refs, skipped, errors.New(fmt.Errorf("cache scan failed: %w", err)).
				Category(errors.CategoryCacheScan).
				Context("pattern", pattern).
				Build()
		}

		for _, key := range keys {
			ttlRemaining, err := store.client.TTL(ctx, key).Result()
			if err != nil {
				store.log.Warn("skipping key with unreadable TTL", "key", key, "error", err)
				skipped++
				continue
			}
			// Negative TTL means the key vanished or has no expiry set;
			// either way it is not migration eligible.
			if ttlRemaining <= 0 || ttlRemaining > threshold {
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
				if errors.GetCategory(err) == errors.CategoryNotFound {
					continue // expired between SCAN and GET
				}
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

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return refs, skipped, nil
}

// DeleteMany removes records and their facets in one pipelined pass.
func (store *RedisStore) DeleteMany(ctx context.Context, keys []string) (int, error) {
	if store.client == nil {
		return 0, errors.NewStd("hot cache is not initialized")
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := store.client.Pipeline()
	metaDeletes := make([]*redis.IntCmd, 0, len(keys))
	for _, key := range keys {
		captionK, embeddingK, err := facetKeys(key)
		if err != nil {
			store.log.Warn("not deleting malformed key", "key", key, "error", err)
			continue
		}
		metaDeletes = append(metaDeletes, pipe.Del(ctx, key))
		pipe.Del(ctx, captionK)
		pipe.Del(ctx, embeddingK)
	}

	_, execErr := pipe.Exec(ctx)

	// Count what actually went away even when the pipeline partially
	// failed, leftover keys are retried by the next scan.
	deleted := 0
	for _, cmd := range metaDeletes {
		if n, err := cmd.Result(); err == nil {
			deleted += int(n)
		}
	}

	if execErr != nil {
		return deleted, errors.New(fmt.Errorf("cache delete partially failed: %w", execErr)).
			Category(errors.CategoryCacheReap).
			Context("requested", len(keys)).
			Context("deleted", deleted).
			Build()
	}
	return deleted, nil
}

// Close closes the Redis connection.
func (store *RedisStore) Close() error {
	if store.client == nil {
		return nil
	}
	return store.client.Close()
}
