// Package model defines the data types flowing through the migration
// engine: raw caption records in the hot cache, scan results and the
// merged events written to durable storage.
package model

import (
	"fmt"
	"time"
)

// CaptionRecord is one hot cache entry: a single caption produced for one
// camera at one observation tick. Records are immutable once written and
// read-only to the migration engine.
type CaptionRecord struct {
	CameraID   string         `json:"camera_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Caption    string         `json:"caption"`
	Embedding  []float32      `json:"-"` // stored as a separate cache facet
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ExpiringKeyRef is a scan result: a cache key whose remaining TTL is
// below the migration threshold, with the resolved record. It only exists
// for the duration of a migration run.
type ExpiringKeyRef struct {
	Key          string
	CameraID     string
	Timestamp    time.Time
	TTLRemaining time.Duration
	Record       *CaptionRecord
}

// MergedEvent is a durable candidate: a contiguous run of similar caption
// records from one camera collapsed into a single time-ranged event.
//
// Caption and Embedding are those of the group's opening record and are
// not re-derived as the group grows.
type MergedEvent struct {
	EventID        string
	CameraID       string
	Caption        string
	StartTime      time.Time
	EndTime        time.Time
	FrameCount     int
	Confidence     float64 // running mean over folded records
	Embedding      []float32
	RetentionUntil *time.Time // nil = unlimited retention
}

// DurationSeconds returns the event's time span in seconds.
func (e *MergedEvent) DurationSeconds() float64 {
	return e.EndTime.Sub(e.StartTime).Seconds()
}

// EventID derives the deterministic durable identifier for a merged event.
// It is a pure function of camera and start time truncated to the second,
// so recomputing it from the same inputs always yields the same id and
// repeated migrations of the same group converge on one durable record.
func EventID(cameraID string, startTime time.Time) string {
	return fmt.Sprintf("evt_%s_%d", cameraID, startTime.Unix())
}
