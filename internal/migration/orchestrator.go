// orchestrator.go: scheduling and fan-out of migration runs.
package migration

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/datastore"
	"github.com/tphakala/cctview-go/internal/errors"
	"github.com/tphakala/cctview-go/internal/hotcache"
	"github.com/tphakala/cctview-go/internal/logging"
	"github.com/tphakala/cctview-go/internal/model"
	"github.com/tphakala/cctview-go/internal/observability/metrics"
	"github.com/tphakala/cctview-go/internal/similarity"
	"golang.org/x/sync/semaphore"
)

// Orchestrator drives migration runs: it scans the hot cache for entries
// nearing expiry, partitions them by camera, and fans out one grouping
// pass per camera bounded by the concurrency limit. Per-camera locks are
// the only serialization point; a camera whose lock is held is skipped
// for the run and retried next cycle.
type Orchestrator struct {
	cache hotcache.Store
	store datastore.Interface

	scanner *ExpiryScanner
	grouper *TemporalGrouper
	writer  *DurableWriter
	reaper  *CacheReaper

	threshold     time.Duration // TTL remaining that triggers eligibility
	fullTTL       time.Duration // scan window for forced runs
	interval      time.Duration // scheduler interval
	maxConcurrent int64

	metrics   *metrics.MigrationMetrics
	publisher StatsPublisher

	mu       sync.Mutex
	inFlight map[string]struct{}

	log *slog.Logger
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithMetrics attaches migration metrics recording.
func WithMetrics(m *metrics.MigrationMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPublisher attaches a run stats publisher.
func WithPublisher(p StatsPublisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// NewOrchestrator wires an orchestrator from already opened collaborators.
func NewOrchestrator(cache hotcache.Store, store datastore.Interface, settings *conf.Settings, opts ...Option) *Orchestrator {
	log := logging.ForService("migration")
	if log == nil {
		log = slog.Default().With("service", "migration")
	}

	m := settings.Migration
	engine := similarity.New(m.SimilarityThreshold)

	o := &Orchestrator{
		cache:         cache,
		store:         store,
		scanner:       NewExpiryScanner(cache, log),
		grouper:       NewTemporalGrouper(engine, time.Duration(m.MaxDuration)*time.Second, time.Duration(m.MinDuration)*time.Second, log),
		writer:        NewDurableWriter(store, m.RetentionDays, log),
		reaper:        NewCacheReaper(cache, log),
		threshold:     time.Duration(m.Threshold) * time.Second,
		fullTTL:       time.Duration(settings.HotCache.FullTTL) * time.Second,
		interval:      time.Duration(m.Interval) * time.Second,
		maxConcurrent: int64(m.MaxConcurrent),
		inFlight:      make(map[string]struct{}),
		log:           log,
	}
	if o.maxConcurrent <= 0 {
		o.maxConcurrent = 1
	}

	// Similar captions typically score between 0.85 and 0.95, cutoffs at
	// 0.95 and above collapse almost nothing.
	if m.SimilarityThreshold >= 0.95 {
		log.Warn("similarity threshold is miscalibrated, expect near-zero deduplication",
			"threshold", m.SimilarityThreshold)
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewFromSettings builds the orchestrator with its collaborators created
// and opened from settings. Close releases them.
func NewFromSettings(settings *conf.Settings, opts ...Option) (*Orchestrator, error) {
	cache := hotcache.New(settings)
	if cache == nil {
		return nil, errors.Newf("unsupported hot cache backend: %s", settings.HotCache.Backend).
			Category(errors.CategoryConfiguration).
			Component("migration").
			Build()
	}
	if err := cache.Open(); err != nil {
		return nil, err
	}

	store := datastore.New(settings)
	if store == nil {
		_ = cache.Close()
		return nil, errors.NewStd("no durable store enabled in settings")
	}
	if err := store.Open(); err != nil {
		_ = cache.Close()
		return nil, err
	}

	return NewOrchestrator(cache, store, settings, opts...), nil
}

// Close releases the orchestrator's collaborators.
func (o *Orchestrator) Close() error {
	var errs []error
	if o.cache != nil {
		errs = append(errs, o.cache.Close())
	}
	if o.store != nil {
		errs = append(errs, o.store.Close())
	}
	return errors.Join(errs...)
}

// RunOnce performs one migration run. With a camera id only that camera
// is scanned; force widens the scan window to the full TTL so the
// camera's entire cache contents become eligible (used before camera
// removal).
func (o *Orchestrator) RunOnce(ctx context.Context, cameraID string, force bool) (*RunStats, error) {
	trigger := TriggerManual
	if force {
		trigger = TriggerForced
	}
	return o.run(ctx, cameraID, force, trigger)
}

func (o *Orchestrator) run(ctx context.Context, cameraID string, force bool, trigger string) (*RunStats, error) {
	started := time.Now()
	stats := &RunStats{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started,
	}

	threshold := o.threshold
	if force {
		threshold = o.fullTTL
	}

	o.log.Info("migration run started",
		"run_id", stats.RunID,
		"trigger", trigger,
		"camera_id", cameraID,
		"threshold", threshold)

	refs, skipped, err := o.scanner.Scan(ctx, cameraID, threshold)
	stats.Errors += skipped
	o.recordErrors(errors.CategoryCacheScan, skipped)
	if err != nil {
		stats.Errors++
		o.recordErrors(errors.GetCategory(err), 1)
		o.finishRun(ctx, stats, started)
		return stats, err
	}

	stats.CaptionsFound = len(refs)
	if len(refs) == 0 {
		o.log.Info("no keys near expiry, nothing to migrate", "run_id", stats.RunID)
		o.finishRun(ctx, stats, started)
		return stats, nil
	}

	byCamera := partitionByCamera(refs)

	sem := semaphore.NewWeighted(o.maxConcurrent)
	var wg sync.WaitGroup
	var statsMu sync.Mutex

	for id, cameraRefs := range byCamera {
		if !o.tryLockCamera(id) {
			// Another run is already migrating this camera. Not an
			// error, eligibility persists until processed.
			o.log.Debug("camera migration already in flight, skipping", "camera_id", id)
			if o.metrics != nil {
				o.metrics.RecordCameraSkipped()
			}
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			o.unlockCamera(id)
			statsMu.Lock()
			stats.Errors++
			statsMu.Unlock()
			o.recordErrors(errors.CategoryCancellation, 1)
			continue
		}

		wg.Add(1)
		go func(cameraID string, cameraRefs []model.ExpiringKeyRef) {
			defer wg.Done()
			defer sem.Release(1)
			defer o.unlockCamera(cameraID)

			result := o.processCamera(ctx, cameraID, cameraRefs)

			statsMu.Lock()
			stats.CamerasProcessed++
			stats.EventsCreated += result.eventsCreated
			stats.KeysDeleted += result.keysDeleted
			stats.Errors += result.errors
			statsMu.Unlock()
		}(id, cameraRefs)
	}

	wg.Wait()
	o.finishRun(ctx, stats, started)

	o.log.Info("migration run complete",
		"run_id", stats.RunID,
		"cameras_processed", stats.CamerasProcessed,
		"captions_found", stats.CaptionsFound,
		"events_created", stats.EventsCreated,
		"keys_deleted", stats.KeysDeleted,
		"errors", stats.Errors,
		"elapsed", time.Since(started))

	return stats, nil
}

type cameraResult struct {
	eventsCreated int
	keysDeleted   int
	errors        int
}

// processCamera drains scan → group → persist → reap for one camera. The
// caller holds the camera's lock.
func (o *Orchestrator) processCamera(ctx context.Context, cameraID string, refs []model.ExpiringKeyRef) cameraResult {
	var result cameraResult

	candidates := o.grouper.Group(refs)
	o.log.Debug("camera captions grouped",
		"camera_id", cameraID,
		"captions", len(refs),
		"events", len(candidates))

	for _, candidate := range candidates {
		if err := o.writer.Persist(ctx, candidate.Event); err != nil {
			// Write failed: leave the source keys in place, the next
			// run re-finds them and the upsert absorbs the retry.
			o.log.Error("durable write failed, group retried next run",
				"camera_id", cameraID,
				"start_time", candidate.Event.StartTime,
				"error", err)
			result.errors++
			o.recordErrors(errors.GetCategory(err), 1)
			continue
		}
		result.eventsCreated++

		deleted, err := o.reaper.Reap(ctx, candidate.SourceKeys)
		result.keysDeleted += deleted
		if err != nil {
			result.errors++
			o.recordErrors(errors.GetCategory(err), 1)
		}
	}

	return result
}

// Preview runs scanner and grouper for one camera and reports what a
// real run would create. It performs no writes and no deletions.
func (o *Orchestrator) Preview(ctx context.Context, cameraID string) (*PreviewSummary, error) {
	if cameraID == "" {
		return nil, errors.NewStd("preview requires a camera id")
	}

	refs, _, err := o.scanner.Scan(ctx, cameraID, o.threshold)
	if err != nil {
		return nil, err
	}

	candidates := o.grouper.Group(refs)

	summary := &PreviewSummary{
		CameraID:        cameraID,
		CaptionsFound:   len(refs),
		EventsProjected: len(candidates),
	}
	if len(refs) > 0 {
		summary.ReductionPercent = float64(len(refs)-len(candidates)) / float64(len(refs)) * 100
	}
	for _, candidate := range candidates {
		summary.Events = append(summary.Events, PreviewEvent{
			Caption:         candidate.Event.Caption,
			StartTime:       candidate.Event.StartTime,
			EndTime:         candidate.Event.EndTime,
			DurationSeconds: candidate.Event.DurationSeconds(),
			FrameCount:      candidate.Event.FrameCount,
			Confidence:      candidate.Event.Confidence,
		})
	}
	return summary, nil
}

// Status reports current cache pressure: keys near expiry per camera
// with their TTL spread.
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	refs, _, err := o.scanner.Scan(ctx, "", o.threshold)
	if err != nil {
		return nil, err
	}

	perCamera := make(map[string]*CameraStatus)
	for _, ref := range refs {
		status, ok := perCamera[ref.CameraID]
		if !ok {
			status = &CameraStatus{
				CameraID:  ref.CameraID,
				OldestTTL: ref.TTLRemaining,
				NewestTTL: ref.TTLRemaining,
			}
			perCamera[ref.CameraID] = status
		}
		status.KeysCount++
		if ref.TTLRemaining < status.OldestTTL {
			status.OldestTTL = ref.TTLRemaining
		}
		if ref.TTLRemaining > status.NewestTTL {
			status.NewestTTL = ref.TTLRemaining
		}
	}

	report := &StatusReport{
		KeysNearExpiry:  len(refs),
		CamerasAffected: len(perCamera),
		Timestamp:       time.Now(),
	}
	for _, status := range perCamera {
		report.Cameras = append(report.Cameras, *status)
	}
	sort.Slice(report.Cameras, func(i, j int) bool {
		return report.Cameras[i].CameraID < report.Cameras[j].CameraID
	})
	return report, nil
}

// RunPeriodic triggers scheduled runs every interval until ctx is done.
// Runs execute in their own goroutine so a slow run never delays the next
// tick; overlap is safe, per-camera locks are the only serialization.
func (o *Orchestrator) RunPeriodic(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	o.log.Info("migration scheduler started", "interval", o.interval)

	for {
		select {
		case <-ctx.Done():
			o.log.Info("migration scheduler stopped")
			return
		case <-ticker.C:
			go func() {
				if _, err := o.run(ctx, "", false, TriggerScheduled); err != nil {
					o.log.Error("scheduled migration run failed", "error", err)
				}
			}()
		}
	}
}

// tryLockCamera acquires the camera's migration lock without blocking.
func (o *Orchestrator) tryLockCamera(cameraID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, held := o.inFlight[cameraID]; held {
		return false
	}
	o.inFlight[cameraID] = struct{}{}
	return true
}

func (o *Orchestrator) unlockCamera(cameraID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, cameraID)
}

func (o *Orchestrator) finishRun(ctx context.Context, stats *RunStats, started time.Time) {
	stats.Duration = time.Since(started).Seconds()

	if o.metrics != nil {
		o.metrics.RecordRun(stats.Trigger, stats.Duration)
		o.metrics.RecordWork(stats.CaptionsFound, stats.EventsCreated, stats.KeysDeleted)
	}
	if o.publisher != nil {
		if err := o.publisher.PublishRunStats(ctx, stats); err != nil {
			o.log.Warn("failed to publish run stats", "error", err)
		}
	}
}

func (o *Orchestrator) recordErrors(category errors.ErrorCategory, count int) {
	if o.metrics == nil || count <= 0 {
		return
	}
	for i := 0; i < count; i++ {
		o.metrics.RecordError(string(category))
	}
}

// partitionByCamera splits scan results into per-camera slices. Grouping
// never crosses cameras.
func partitionByCamera(refs []model.ExpiringKeyRef) map[string][]model.ExpiringKeyRef {
	byCamera := make(map[string][]model.ExpiringKeyRef)
	for _, ref := range refs {
		byCamera[ref.CameraID] = append(byCamera[ref.CameraID], ref)
	}
	return byCamera
}
