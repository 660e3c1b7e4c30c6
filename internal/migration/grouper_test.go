package migration

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/cctview-go/internal/model"
	"github.com/tphakala/cctview-go/internal/similarity"
)

var groupBase = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func makeRef(cameraID string, offsetSec int, caption string, confidence float64) model.ExpiringKeyRef {
	ts := groupBase.Add(time.Duration(offsetSec) * time.Second)
	return model.ExpiringKeyRef{
		Key:          fmt.Sprintf("meta:%s:%s", cameraID, ts.Format(time.RFC3339Nano)),
		CameraID:     cameraID,
		Timestamp:    ts,
		TTLRemaining: 2 * time.Minute,
		Record: &model.CaptionRecord{
			CameraID:   cameraID,
			Timestamp:  ts,
			Caption:    caption,
			Confidence: confidence,
		},
	}
}

func newTestGrouper(t *testing.T, maxDuration, minDuration time.Duration) *TemporalGrouper {
	t.Helper()
	return NewTemporalGrouper(similarity.New(0.85), maxDuration, minDuration, nil)
}

func TestGroupConsolidatesSimilarRuns(t *testing.T) {
	t.Parallel()

	grouper := newTestGrouper(t, 300*time.Second, 30*time.Second)

	refs := []model.ExpiringKeyRef{
		makeRef("cam1", 0, "an empty room", 0.9),
		makeRef("cam1", 60, "an empty room", 0.8),
		makeRef("cam1", 120, "an empty room", 0.7),
		makeRef("cam1", 400, "a person enters the room", 0.95),
		makeRef("cam1", 460, "a person enters the room", 0.85),
	}

	candidates := grouper.Group(refs)
	require.Len(t, candidates, 2)

	first := candidates[0].Event
	assert.Equal(t, "an empty room", first.Caption)
	assert.Equal(t, groupBase, first.StartTime)
	assert.Equal(t, groupBase.Add(120*time.Second), first.EndTime)
	assert.Equal(t, 3, first.FrameCount)
	assert.InDelta(t, 0.8, first.Confidence, 1e-9)
	assert.Len(t, candidates[0].SourceKeys, 3)

	second := candidates[1].Event
	assert.Equal(t, "a person enters the room", second.Caption)
	assert.Equal(t, groupBase.Add(400*time.Second), second.StartTime)
	assert.Equal(t, groupBase.Add(460*time.Second), second.EndTime)
	assert.Equal(t, 2, second.FrameCount)
	assert.Len(t, candidates[1].SourceKeys, 2)
}

func TestGroupSortsUnorderedInput(t *testing.T) {
	t.Parallel()

	grouper := newTestGrouper(t, 300*time.Second, 30*time.Second)

	refs := []model.ExpiringKeyRef{
		makeRef("cam1", 120, "an empty room", 0.7),
		makeRef("cam1", 0, "an empty room", 0.9),
		makeRef("cam1", 60, "an empty room", 0.8),
	}

	candidates := grouper.Group(refs)
	require.Len(t, candidates, 1)
	assert.Equal(t, groupBase, candidates[0].Event.StartTime)
	assert.Equal(t, groupBase.Add(120*time.Second), candidates[0].Event.EndTime)
	assert.Equal(t, 3, candidates[0].Event.FrameCount)
}

func TestGroupSplitsAtMaxDuration(t *testing.T) {
	t.Parallel()

	grouper := newTestGrouper(t, 300*time.Second, 30*time.Second)

	// Same caption throughout: only the duration cap forces the split.
	refs := []model.ExpiringKeyRef{
		makeRef("cam1", 0, "an empty room", 0.9),
		makeRef("cam1", 150, "an empty room", 0.9),
		makeRef("cam1", 300, "an empty room", 0.9),
		makeRef("cam1", 310, "an empty room", 0.9),
		makeRef("cam1", 320, "an empty room", 0.9),
	}

	candidates := grouper.Group(refs)
	require.Len(t, candidates, 2)
	assert.Equal(t, 3, candidates[0].Event.FrameCount)
	assert.Equal(t, groupBase.Add(300*time.Second), candidates[0].Event.EndTime)
	assert.Equal(t, groupBase.Add(310*time.Second), candidates[1].Event.StartTime)
	assert.Equal(t, 2, candidates[1].Event.FrameCount)
}

func TestGroupDropsInteriorSingletonKeepsFinal(t *testing.T) {
	t.Parallel()

	grouper := newTestGrouper(t, 300*time.Second, 30*time.Second)

	// The glitch frame at t=60 breaks the run and forms a zero-duration
	// singleton that fails the save filter. The trailing singleton at
	// t=900 also fails the filter but closes the run, so it survives.
	refs := []model.ExpiringKeyRef{
		makeRef("cam1", 0, "an empty room", 0.9),
		makeRef("cam1", 60, "lens flare artifact", 0.2),
		makeRef("cam1", 120, "an empty room", 0.9),
		makeRef("cam1", 180, "an empty room", 0.9),
		makeRef("cam1", 900, "a delivery truck arrives", 0.88),
	}

	candidates := grouper.Group(refs)
	require.Len(t, candidates, 3)

	assert.Equal(t, "an empty room", candidates[0].Event.Caption)
	assert.Equal(t, 1, candidates[0].Event.FrameCount)

	assert.Equal(t, "an empty room", candidates[1].Event.Caption)
	assert.Equal(t, 2, candidates[1].Event.FrameCount)

	final := candidates[2].Event
	assert.Equal(t, "a delivery truck arrives", final.Caption)
	assert.Equal(t, 1, final.FrameCount)
	assert.Zero(t, final.DurationSeconds())

	for _, candidate := range candidates {
		assert.NotEqual(t, "lens flare artifact", candidate.Event.Caption)
	}
}

func TestGroupComparesAgainstOpenerNotPredecessor(t *testing.T) {
	t.Parallel()

	grouper := newTestGrouper(t, 600*time.Second, 30*time.Second)

	// Token overlap: the second caption shares 4/5 tokens with the first,
	// the third shares 4/5 with the second but only 3/5 with the first.
	// Opener-pinned comparison must split before the third; a rolling
	// comparison would let the scene drift into one group.
	refs := []model.ExpiringKeyRef{
		makeRef("cam1", 0, "person walking near the gate", 0.9),
		makeRef("cam1", 60, "person walking near the fence", 0.9),
		makeRef("cam1", 120, "person standing near the fence", 0.9),
	}

	candidates := grouper.Group(refs)
	require.Len(t, candidates, 2)
	assert.Equal(t, "person walking near the gate", candidates[0].Event.Caption)
	assert.Equal(t, 2, candidates[0].Event.FrameCount)
	assert.Equal(t, "person standing near the fence", candidates[1].Event.Caption)
}

func TestGroupRunningMeanConfidence(t *testing.T) {
	t.Parallel()

	grouper := newTestGrouper(t, 300*time.Second, 30*time.Second)

	refs := []model.ExpiringKeyRef{
		makeRef("cam1", 0, "an empty room", 1.0),
		makeRef("cam1", 10, "an empty room", 0.5),
		makeRef("cam1", 20, "an empty room", 0.3),
		makeRef("cam1", 30, "an empty room", 0.2),
	}

	candidates := grouper.Group(refs)
	require.Len(t, candidates, 1)
	assert.InDelta(t, 0.5, candidates[0].Event.Confidence, 1e-9)
}

func TestGroupSingletonNeverMeetsDurationFilter(t *testing.T) {
	t.Parallel()

	grouper := newTestGrouper(t, 300*time.Second, 60*time.Second)

	// A single-frame group can never span a duration, so the interior
	// filter drops it regardless of minDuration; only frame count or the
	// final-group rule saves a singleton.
	refs := []model.ExpiringKeyRef{
		makeRef("cam1", 0, "an empty room", 0.9),
		makeRef("cam1", 30, "an empty room", 0.9),
		makeRef("cam1", 500, "a person enters the room", 0.9),
	}

	candidates := grouper.Group(refs)
	require.Len(t, candidates, 2)
	assert.Equal(t, 2, candidates[0].Event.FrameCount)
	assert.Equal(t, "a person enters the room", candidates[1].Event.Caption)
}

func TestGroupEmptyInput(t *testing.T) {
	t.Parallel()

	grouper := newTestGrouper(t, 300*time.Second, 30*time.Second)
	assert.Nil(t, grouper.Group(nil))
	assert.Nil(t, grouper.Group([]model.ExpiringKeyRef{}))
}

func TestGroupSingleRecordAlwaysFlushed(t *testing.T) {
	t.Parallel()

	grouper := newTestGrouper(t, 300*time.Second, 30*time.Second)

	refs := []model.ExpiringKeyRef{
		makeRef("cam1", 0, "an empty room", 0.9),
	}

	candidates := grouper.Group(refs)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].Event.FrameCount)
	assert.Equal(t, groupBase, candidates[0].Event.StartTime)
	assert.Equal(t, groupBase, candidates[0].Event.EndTime)
}
