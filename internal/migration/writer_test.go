package migration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/cctview-go/internal/datastore"
	"github.com/tphakala/cctview-go/internal/errors"
	"github.com/tphakala/cctview-go/internal/model"
)

// mockDatastore records upserts in memory, keyed by event id.
type mockDatastore struct {
	events    map[string]*datastore.Event
	upserts   int
	upsertErr error
}

func newMockDatastore() *mockDatastore {
	return &mockDatastore{events: make(map[string]*datastore.Event)}
}

func (m *mockDatastore) Open() error { return nil }

func (m *mockDatastore) UpsertEvent(_ context.Context, event *datastore.Event) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if event.EventID == "" {
		return errors.NewStd("event id must be set before upsert")
	}
	m.upserts++
	clone := *event
	m.events[event.EventID] = &clone
	return nil
}

func (m *mockDatastore) GetEvent(_ context.Context, eventID string) (datastore.Event, error) {
	event, ok := m.events[eventID]
	if !ok {
		return datastore.Event{}, errors.Newf("event not found: %s", eventID).
			Category(errors.CategoryNotFound).
			Build()
	}
	return *event, nil
}

func (m *mockDatastore) GetEventsForCamera(_ context.Context, cameraID string, limit int) ([]datastore.Event, error) {
	var events []datastore.Event
	for _, event := range m.events {
		if event.CameraID == cameraID {
			events = append(events, *event)
		}
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (m *mockDatastore) CountEvents(_ context.Context, cameraID string) (int64, error) {
	if cameraID == "" {
		return int64(len(m.events)), nil
	}
	var count int64
	for _, event := range m.events {
		if event.CameraID == cameraID {
			count++
		}
	}
	return count, nil
}

func (m *mockDatastore) Close() error { return nil }

func TestPersistSetsDeterministicEventID(t *testing.T) {
	t.Parallel()

	store := newMockDatastore()
	writer := NewDurableWriter(store, 0, nil)

	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	event := &model.MergedEvent{
		CameraID:   "cam1",
		Caption:    "an empty room",
		StartTime:  start,
		EndTime:    start.Add(2 * time.Minute),
		FrameCount: 3,
		Confidence: 0.8,
	}

	require.NoError(t, writer.Persist(context.Background(), event))
	assert.Equal(t, "evt_cam1_1788091200", event.EventID)
	assert.Nil(t, event.RetentionUntil)

	stored, err := store.GetEvent(context.Background(), event.EventID)
	require.NoError(t, err)
	assert.Equal(t, "cam1", stored.CameraID)
	assert.InDelta(t, 120.0, stored.DurationSeconds, 1e-9)
}

func TestPersistComputesRetention(t *testing.T) {
	t.Parallel()

	store := newMockDatastore()
	writer := NewDurableWriter(store, 90, nil)
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	writer.now = func() time.Time { return now }

	event := &model.MergedEvent{
		CameraID:  "cam1",
		Caption:   "an empty room",
		StartTime: now,
		EndTime:   now,
	}

	require.NoError(t, writer.Persist(context.Background(), event))
	require.NotNil(t, event.RetentionUntil)
	assert.Equal(t, now.AddDate(0, 0, 90), *event.RetentionUntil)
}

func TestPersistSameGroupIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newMockDatastore()
	writer := NewDurableWriter(store, 0, nil)

	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	first := &model.MergedEvent{
		CameraID:   "cam1",
		Caption:    "an empty room",
		StartTime:  start,
		EndTime:    start.Add(time.Minute),
		FrameCount: 2,
	}
	second := &model.MergedEvent{
		CameraID:   "cam1",
		Caption:    "an empty room",
		StartTime:  start,
		EndTime:    start.Add(2 * time.Minute),
		FrameCount: 3,
	}

	require.NoError(t, writer.Persist(context.Background(), first))
	require.NoError(t, writer.Persist(context.Background(), second))

	count, err := store.CountEvents(context.Background(), "cam1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	stored, err := store.GetEvent(context.Background(), first.EventID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.FrameCount)
}

func TestPersistErrorPropagates(t *testing.T) {
	t.Parallel()

	store := newMockDatastore()
	store.upsertErr = errors.Newf("connection refused").
		Category(errors.CategoryDurableWrite).
		Build()
	writer := NewDurableWriter(store, 0, nil)

	event := &model.MergedEvent{
		CameraID:  "cam1",
		Caption:   "an empty room",
		StartTime: time.Now(),
		EndTime:   time.Now(),
	}

	err := writer.Persist(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryDurableWrite, errors.GetCategory(err))
}
