// writer.go: idempotent persistence of merged event candidates.
package migration

import (
	"context"
	"log/slog"
	"time"

	"github.com/tphakala/cctview-go/internal/datastore"
	"github.com/tphakala/cctview-go/internal/model"
)

// DurableWriter persists merged events. The event id is derived from
// camera and start time, so re-persisting the same group upserts instead
// of duplicating.
type DurableWriter struct {
	store         datastore.Interface
	retentionDays int
	now           func() time.Time
	log           *slog.Logger
}

// NewDurableWriter creates a writer. retentionDays of 0 means unlimited
// retention.
func NewDurableWriter(store datastore.Interface, retentionDays int, log *slog.Logger) *DurableWriter {
	if log == nil {
		log = slog.Default()
	}
	return &DurableWriter{
		store:         store,
		retentionDays: retentionDays,
		now:           time.Now,
		log:           log,
	}
}

// Persist writes one merged event to durable storage. On error nothing
// was written and the caller must not reap the group's source keys.
func (w *DurableWriter) Persist(ctx context.Context, event *model.MergedEvent) error {
	event.EventID = model.EventID(event.CameraID, event.StartTime)
	if w.retentionDays > 0 {
		until := w.now().AddDate(0, 0, w.retentionDays)
		event.RetentionUntil = &until
	}

	dbEvent := &datastore.Event{
		EventID:         event.EventID,
		CameraID:        event.CameraID,
		Caption:         event.Caption,
		StartTime:       event.StartTime,
		EndTime:         event.EndTime,
		DurationSeconds: event.DurationSeconds(),
		FrameCount:      event.FrameCount,
		Confidence:      event.Confidence,
		RetentionUntil:  event.RetentionUntil,
	}

	if err := w.store.UpsertEvent(ctx, dbEvent); err != nil {
		return err
	}

	w.log.Debug("merged event persisted",
		"event_id", event.EventID,
		"camera_id", event.CameraID,
		"frame_count", event.FrameCount,
		"duration", event.DurationSeconds())
	return nil
}
