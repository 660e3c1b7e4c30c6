// scanner.go: enumeration of hot cache entries nearing expiry.
package migration

import (
	"context"
	"log/slog"
	"time"

	"github.com/tphakala/cctview-go/internal/hotcache"
	"github.com/tphakala/cctview-go/internal/model"
)

// ExpiryScanner finds cache entries whose remaining TTL is below the
// migration threshold. Scanning is read-only, it never mutates the cache.
type ExpiryScanner struct {
	cache hotcache.Store
	log   *slog.Logger
}

// NewExpiryScanner creates a scanner over the given hot cache.
func NewExpiryScanner(cache hotcache.Store, log *slog.Logger) *ExpiryScanner {
	if log == nil {
		log = slog.Default()
	}
	return &ExpiryScanner{cache: cache, log: log}
}

// Scan returns refs for entries eligible for migration, optionally
// narrowed to one camera. Malformed entries are skipped and reported in
// the skipped count, they never abort the scan.
func (s *ExpiryScanner) Scan(ctx context.Context, cameraID string, threshold time.Duration) ([]model.ExpiringKeyRef, int, error) {
	start := time.Now()
	refs, skipped, err := s.cache.ScanNearExpiry(ctx, cameraID, threshold)
	if err != nil {
		return refs, skipped, err
	}

	s.log.Debug("expiry scan complete",
		"camera_id", cameraID,
		"threshold", threshold,
		"found", len(refs),
		"skipped", skipped,
		"elapsed", time.Since(start))
	return refs, skipped, nil
}
