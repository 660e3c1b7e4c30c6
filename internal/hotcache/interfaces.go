// interfaces.go: this code defines the interface for the hot cache that
// holds raw per-tick caption records under a short TTL.
package hotcache

import (
	"context"
	"time"

	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/model"
)

// Store abstracts the underlying hot cache implementation.
//
// Keys handed out and accepted by the Store are metadata keys
// ("meta:<camera>:<timestamp>"); each record additionally occupies a
// caption and an embedding facet which the Store manages internally.
type Store interface {
	Open() error
	// StoreCaption writes all facets of a record under the configured TTL.
	StoreCaption(ctx context.Context, record *model.CaptionRecord) error
	// GetFullRecord resolves a metadata key to the complete record,
	// including the embedding facet.
	GetFullRecord(ctx context.Context, key string) (*model.CaptionRecord, error)
	// ScanNearExpiry returns refs for entries whose remaining TTL is in
	// (0, threshold], optionally filtered by camera. Iteration is cursor
	// based over a key space that producers mutate concurrently: entries
	// appearing after the scan starts may be missed, entries eligible at
	// scan start that remain present are not. Malformed entries are
	// skipped and reported in the skipped count, they never abort the scan.
	ScanNearExpiry(ctx context.Context, cameraID string, threshold time.Duration) (refs []model.ExpiringKeyRef, skipped int, err error)
	// DeleteMany removes the given records and all their facets,
	// returning the number of records deleted.
	DeleteMany(ctx context.Context, keys []string) (int, error)
	Close() error
}

// New creates a hot cache Store based on the provided settings.
func New(settings *conf.Settings) Store {
	switch settings.HotCache.Backend {
	case "redis":
		return &RedisStore{
			Settings: settings,
		}
	case "memory":
		return &MemoryStore{
			Settings: settings,
		}
	default:
		return nil
	}
}
