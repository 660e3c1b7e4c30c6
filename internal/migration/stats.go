// stats.go: per-run counters and report types for the migration engine.
package migration

import (
	"context"
	"time"
)

// Run triggers reported in logs and metrics.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerForced    = "forced"
)

// RunStats aggregates the counters of one migration invocation.
type RunStats struct {
	RunID            string    `json:"run_id"`
	Trigger          string    `json:"trigger"`
	StartedAt        time.Time `json:"started_at"`
	Duration         float64   `json:"duration_seconds"`
	CamerasProcessed int       `json:"cameras_processed"`
	CaptionsFound    int       `json:"captions_found"`
	EventsCreated    int       `json:"events_created"`
	KeysDeleted      int       `json:"keys_deleted"`
	Errors           int       `json:"errors"`
}

// PreviewEvent describes one projected merged event in a dry run.
type PreviewEvent struct {
	Caption         string    `json:"caption"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	FrameCount      int       `json:"frame_count"`
	Confidence      float64   `json:"confidence"`
}

// PreviewSummary is the result of a dry run: what a real migration would
// create for one camera, without writing or deleting anything.
type PreviewSummary struct {
	CameraID         string         `json:"camera_id"`
	CaptionsFound    int            `json:"captions_found"`
	EventsProjected  int            `json:"events_projected"`
	ReductionPercent float64        `json:"reduction_percent"`
	Events           []PreviewEvent `json:"events"`
}

// CameraStatus summarizes one camera's migration pressure.
type CameraStatus struct {
	CameraID  string        `json:"camera_id"`
	KeysCount int           `json:"keys_count"`
	OldestTTL time.Duration `json:"oldest_ttl"`
	NewestTTL time.Duration `json:"newest_ttl"`
}

// StatusReport summarizes cache pressure across all cameras.
type StatusReport struct {
	KeysNearExpiry  int            `json:"keys_near_expiry"`
	CamerasAffected int            `json:"cameras_affected"`
	Cameras         []CameraStatus `json:"cameras"`
	Timestamp       time.Time      `json:"timestamp"`
}

// StatsPublisher receives finished run stats, e.g. for MQTT publishing.
type StatsPublisher interface {
	PublishRunStats(ctx context.Context, stats *RunStats) error
}
