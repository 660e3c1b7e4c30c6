// grouper.go: consolidation of one camera's time-ordered caption records
// into merged event candidates.
package migration

import (
	"log/slog"
	"slices"
	"time"

	"github.com/tphakala/cctview-go/internal/model"
	"github.com/tphakala/cctview-go/internal/similarity"
)

// Candidate pairs a merged event with the cache keys of its source
// records, so the reaper only deletes keys whose group was durably written.
type Candidate struct {
	Event      *model.MergedEvent
	SourceKeys []string
}

// TemporalGrouper folds a single camera's records into contiguous groups
// in one left-to-right pass.
//
// Every later record is compared against the group's opening record, not
// a rolling centroid. A slowly drifting scene can therefore stay in one
// group without ever breaking similarity, bounded only by maxDuration.
// That keeps grouping O(n) per camera and is intentional.
type TemporalGrouper struct {
	engine      *similarity.Engine
	maxDuration time.Duration
	minDuration time.Duration
	log         *slog.Logger
}

// NewTemporalGrouper creates a grouper with the given similarity engine
// and duration bounds.
func NewTemporalGrouper(engine *similarity.Engine, maxDuration, minDuration time.Duration, log *slog.Logger) *TemporalGrouper {
	if log == nil {
		log = slog.Default()
	}
	return &TemporalGrouper{
		engine:      engine,
		maxDuration: maxDuration,
		minDuration: minDuration,
		log:         log,
	}
}

// openGroup tracks a group being built. The opener is pinned at group
// start and never updated.
type openGroup struct {
	opener *model.CaptionRecord
	event  *model.MergedEvent
	keys   []string
}

func newOpenGroup(ref model.ExpiringKeyRef) *openGroup {
	return &openGroup{
		opener: ref.Record,
		event: &model.MergedEvent{
			CameraID:   ref.CameraID,
			Caption:    ref.Record.Caption,
			StartTime:  ref.Timestamp,
			EndTime:    ref.Timestamp,
			FrameCount: 1,
			Confidence: ref.Record.Confidence,
			Embedding:  ref.Record.Embedding,
		},
		keys: []string{ref.Key},
	}
}

// extend folds one more record into the group, updating the end time and
// the running confidence mean.
func (g *openGroup) extend(ref model.ExpiringKeyRef) {
	g.event.EndTime = ref.Timestamp
	g.event.FrameCount++
	n := float64(g.event.FrameCount)
	g.event.Confidence = (g.event.Confidence*(n-1) + ref.Record.Confidence) / n
	g.keys = append(g.keys, ref.Key)
}

// Group consolidates refs from a single camera into candidates. Input
// order does not matter, records are sorted by ascending timestamp first.
//
// Interior groups pass the save filter (more than one frame, or a span of
// at least minDuration). The final group of a run is always flushed
// regardless of the filter; where a run's window ends is an artifact of
// scan timing, and dropping the tail there would lose data.
func (g *TemporalGrouper) Group(refs []model.ExpiringKeyRef) []Candidate {
	if len(refs) == 0 {
		return nil
	}

	sorted := slices.Clone(refs)
	slices.SortFunc(sorted, func(a, b model.ExpiringKeyRef) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	var candidates []Candidate
	group := newOpenGroup(sorted[0])

	for _, ref := range sorted[1:] {
		elapsed := ref.Timestamp.Sub(group.event.StartTime)
		if g.engine.Similar(group.opener, ref.Record) && elapsed <= g.maxDuration {
			group.extend(ref)
			continue
		}

		if g.shouldSave(group) {
			candidates = append(candidates, Candidate{Event: group.event, SourceKeys: group.keys})
		} else {
			g.log.Debug("dropping short singleton group",
				"camera_id", group.event.CameraID,
				"start_time", group.event.StartTime,
				"duration", group.event.DurationSeconds())
		}
		group = newOpenGroup(ref)
	}

	if !g.shouldSave(group) {
		g.log.Debug("final group kept despite save filter",
			"camera_id", group.event.CameraID,
			"start_time", group.event.StartTime,
			"frame_count", group.event.FrameCount)
	}
	candidates = append(candidates, Candidate{Event: group.event, SourceKeys: group.keys})

	return candidates
}

// shouldSave applies the noise suppression filter: single-frame groups
// shorter than minDuration are dropped.
func (g *TemporalGrouper) shouldSave(group *openGroup) bool {
	if group.event.FrameCount > 1 {
		return true
	}
	return group.event.EndTime.Sub(group.event.StartTime) >= g.minDuration
}
