// model.go: this code defines the durable data model for merged events
package datastore

import "time"

// Event represents one merged caption event: a contiguous run of similar
// caption records from a single camera collapsed into a time range.
type Event struct {
	ID              uint       `gorm:"primaryKey"`
	EventID         string     `gorm:"uniqueIndex:idx_events_event_id;size:191"` // deterministic id, evt_<camera>_<unix start>
	CameraID        string     `gorm:"index:idx_events_camera;size:191"`
	Caption         string     `gorm:"type:text"` // opening record's caption
	StartTime       time.Time  `gorm:"index:idx_events_start_time"`
	EndTime         time.Time
	DurationSeconds float64
	FrameCount      int     // number of source records folded in
	Confidence      float64 // running mean over folded records
	RetentionUntil  *time.Time `gorm:"index:idx_events_retention"` // nil = unlimited
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
