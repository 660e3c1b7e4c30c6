// interfaces.go: this code defines the interface for the durable store
// operations consumed by the migration engine.
package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/tphakala/cctview-go/internal/conf"
	"github.com/tphakala/cctview-go/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Interface abstracts the underlying database implementation and defines
// the durable store operations.
type Interface interface {
	Open() error
	UpsertEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, eventID string) (Event, error)
	GetEventsForCamera(ctx context.Context, cameraID string, limit int) ([]Event, error)
	CountEvents(ctx context.Context, cameraID string) (int64, error)
	Close() error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// UpsertEvent persists a merged event keyed by its deterministic event id.
// Repeated calls with logically identical inputs converge on one durable
// record, last write wins on fields. On error nothing is written, callers
// must not reap source cache keys.
func (ds *DataStore) UpsertEvent(ctx context.Context, event *Event) error {
	if ds.DB == nil {
		return errors.NewStd("database connection is not initialized")
	}
	if event.EventID == "" {
		return errors.NewStd("event id must be set before upsert")
	}

	start := time.Now()
	err := ds.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"caption", "start_time", "end_time", "duration_seconds",
			"frame_count", "confidence", "retention_until", "updated_at",
		}),
	}).Create(event).Error
	if err != nil {
		return errors.New(fmt.Errorf("upserting event: %w", err)).
			Category(errors.CategoryDurableWrite).
			Context("event_id", event.EventID).
			Context("camera_id", event.CameraID).
			Timing("upsert-event", time.Since(start)).
			Build()
	}
	return nil
}

// GetEvent retrieves a single event by its deterministic event id.
func (ds *DataStore) GetEvent(ctx context.Context, eventID string) (Event, error) {
	var event Event
	err := ds.DB.WithContext(ctx).Where("event_id = ?", eventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Event{}, errors.Newf("event not found: %s", eventID).
				Category(errors.CategoryNotFound).
				Component("datastore").
				Build()
		}
		return Event{}, errors.New(fmt.Errorf("getting event: %w", err)).
			Category(errors.CategoryDatabase).
			Context("event_id", eventID).
			Build()
	}
	return event, nil
}

// GetEventsForCamera retrieves a camera's events ordered by start time
// descending. A non-positive limit returns all of them.
func (ds *DataStore) GetEventsForCamera(ctx context.Context, cameraID string, limit int) ([]Event, error) {
	var events []Event
	query := ds.DB.WithContext(ctx).
		Where("camera_id = ?", cameraID).
		Order("start_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, errors.New(fmt.Errorf("getting events for camera: %w", err)).
			Category(errors.CategoryDatabase).
			Context("camera_id", cameraID).
			Build()
	}
	return events, nil
}

// CountEvents returns the number of stored events, optionally narrowed to
// one camera.
func (ds *DataStore) CountEvents(ctx context.Context, cameraID string) (int64, error) {
	var count int64
	query := ds.DB.WithContext(ctx).Model(&Event{})
	if cameraID != "" {
		query = query.Where("camera_id = ?", cameraID)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, errors.New(fmt.Errorf("counting events: %w", err)).
			Category(errors.CategoryDatabase).
			Context("camera_id", cameraID).
			Build()
	}
	return count, nil
}
