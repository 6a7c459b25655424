package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
)

type fakeStateRepo struct {
	saved    *models.CurrentState
	failSave bool
	saves    int
}

func (r *fakeStateRepo) Save(_ context.Context, s models.CurrentState) error {
	if r.failSave {
		return errors.New("disk full")
	}
	cp := s
	r.saved = &cp
	r.saves++
	return nil
}

func (r *fakeStateRepo) Load(_ context.Context) (*models.CurrentState, error) {
	if r.saved == nil {
		return nil, nil
	}
	cp := *r.saved
	return &cp, nil
}

type fakeRefs struct {
	places map[int64]bool
	visits map[int64]bool
}

func (r *fakeRefs) PlaceExists(_ context.Context, id int64) (bool, error) {
	return r.places[id], nil
}

func (r *fakeRefs) VisitExists(_ context.Context, id int64) (bool, error) {
	return r.visits[id], nil
}

func newTestStore(t *testing.T) (*Store, *fakeStateRepo, *fakeRefs) {
	t.Helper()
	repo := &fakeStateRepo{}
	refs := &fakeRefs{places: map[int64]bool{}, visits: map[int64]bool{}}
	s := NewStore(repo, refs, config.DefaultDetectionConfig())
	require.NoError(t, s.InitializeIfAbsent(context.Background()))
	return s, repo, refs
}

func TestInitializeIfAbsentCreatesDefault(t *testing.T) {
	s, repo, _ := newTestStore(t)

	assert.True(t, s.Initialized())
	require.NotNil(t, repo.saved)
	assert.NotEmpty(t, repo.saved.StatsDay)

	// Repeated initialization must not write again
	saves := repo.saves
	require.NoError(t, s.InitializeIfAbsent(context.Background()))
	assert.Equal(t, saves, repo.saves)
}

func TestInitializeIfAbsentLoadsPersisted(t *testing.T) {
	repo := &fakeStateRepo{saved: &models.CurrentState{
		TrackingActive:     true,
		TodayLocationCount: 42,
		StatsDay:           "2026-08-24",
		LastUpdated:        1000,
	}}
	s := NewStore(repo, &fakeRefs{}, config.DefaultDetectionConfig())
	require.NoError(t, s.InitializeIfAbsent(context.Background()))

	snap := s.Snapshot()
	assert.True(t, snap.TrackingActive)
	assert.Equal(t, int64(42), snap.TodayLocationCount)
}

func TestCommitRejectsStaleUpdate(t *testing.T) {
	s, _, _ := newTestStore(t)
	base := time.Now().Unix()

	require.NoError(t, s.UpdateDailyStats(context.Background(), 1, 0, base+100))

	err := s.UpdateDailyStats(context.Background(), 1, 0, base+50)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleUpdate)

	// The stale batch must not have touched the counters
	assert.Equal(t, int64(1), s.Snapshot().TodayLocationCount)
}

func TestCommitNotPersistedOnSaveFailure(t *testing.T) {
	s, repo, _ := newTestStore(t)
	base := time.Now().Unix()

	repo.failSave = true
	err := s.UpdateDailyStats(context.Background(), 1, 0, base+100)
	require.Error(t, err)

	// In-memory state stays on the last committed value and a retry works
	assert.Equal(t, int64(0), s.Snapshot().TodayLocationCount)
	repo.failSave = false
	require.NoError(t, s.UpdateDailyStats(context.Background(), 1, 0, base+100))
	assert.Equal(t, int64(1), s.Snapshot().TodayLocationCount)
}

func TestUpdateCurrentPlaceRejectsDanglingReference(t *testing.T) {
	s, _, refs := newTestStore(t)
	base := time.Now().Unix()

	// Neither row exists: the update is dropped, prior state intact
	require.NoError(t, s.UpdateCurrentPlace(context.Background(), 7, 9, base+100, base+100))
	snap := s.Snapshot()
	assert.Equal(t, int64(0), snap.CurrentPlaceID)
	assert.Equal(t, int64(0), snap.CurrentVisitID)

	refs.places[7] = true
	refs.visits[9] = true
	require.NoError(t, s.UpdateCurrentPlace(context.Background(), 7, 9, base+100, base+100))
	snap = s.Snapshot()
	assert.Equal(t, int64(7), snap.CurrentPlaceID)
	assert.Equal(t, int64(9), snap.CurrentVisitID)
	assert.Equal(t, base+100, snap.VisitEntryTime)
	assert.True(t, snap.HasActiveVisit())
}

func TestClearCurrentPlace(t *testing.T) {
	s, _, refs := newTestStore(t)
	base := time.Now().Unix()

	refs.places[7] = true
	refs.visits[9] = true
	require.NoError(t, s.UpdateCurrentPlace(context.Background(), 7, 9, base+100, base+100))

	require.NoError(t, s.ClearCurrentPlace(context.Background(), base+200))
	snap := s.Snapshot()
	assert.False(t, snap.HasActiveVisit())
	assert.Equal(t, int64(0), snap.CurrentPlaceID)
	assert.Equal(t, int64(0), snap.VisitEntryTime)
}

func TestUpdateDailyStatsAccumulates(t *testing.T) {
	s, _, _ := newTestStore(t)
	base := time.Now().Unix()

	require.NoError(t, s.UpdateDailyStats(context.Background(), 1, 30, base+100))
	require.NoError(t, s.UpdateDailyStats(context.Background(), 1, 60, base+200))

	snap := s.Snapshot()
	assert.Equal(t, int64(2), snap.TodayLocationCount)
	assert.Equal(t, int64(90), snap.TodayTimeSeconds)
}

func TestSetTodayPlaceCountReplacesValue(t *testing.T) {
	s, _, _ := newTestStore(t)
	base := time.Now().Unix()

	require.NoError(t, s.SetTodayPlaceCount(context.Background(), 2, base+100))
	assert.Equal(t, int64(2), s.Snapshot().TodayPlaceCount)

	// Setting the same value again is a no-op, not an increment
	require.NoError(t, s.SetTodayPlaceCount(context.Background(), 2, base+200))
	assert.Equal(t, int64(2), s.Snapshot().TodayPlaceCount)
}

func TestUpdateDailyStatsRollsOverDay(t *testing.T) {
	s, _, _ := newTestStore(t)
	base := time.Now().Unix()

	require.NoError(t, s.UpdateDailyStats(context.Background(), 5, 300, base+100))
	require.NoError(t, s.SetTodayPlaceCount(context.Background(), 2, base+150))

	// Two days later the counters restart from this batch alone
	require.NoError(t, s.UpdateDailyStats(context.Background(), 1, 30, base+100+2*86400))

	snap := s.Snapshot()
	assert.Equal(t, int64(1), snap.TodayLocationCount)
	assert.Equal(t, int64(0), snap.TodayPlaceCount)
	assert.Equal(t, int64(30), snap.TodayTimeSeconds)
}

func TestResetDailyStats(t *testing.T) {
	s, _, _ := newTestStore(t)
	base := time.Now().Unix()

	require.NoError(t, s.UpdateDailyStats(context.Background(), 5, 300, base+100))
	require.NoError(t, s.ResetDailyStats(context.Background(), base+200))

	snap := s.Snapshot()
	assert.Equal(t, int64(0), snap.TodayLocationCount)
	assert.Equal(t, int64(0), snap.TodayTimeSeconds)
}

func TestDayStartMatchesResetHour(t *testing.T) {
	cfg := config.DefaultDetectionConfig()
	cfg.DailyResetHour = 4
	s := NewStore(&fakeStateRepo{}, &fakeRefs{}, cfg)

	// 02:00 local belongs to the previous stats day, 05:00 to the current one
	early := time.Date(2026, time.August, 24, 2, 0, 0, 0, time.Local)
	late := time.Date(2026, time.August, 24, 5, 0, 0, 0, time.Local)

	prevBoundary := time.Date(2026, time.August, 23, 4, 0, 0, 0, time.Local).Unix()
	boundary := time.Date(2026, time.August, 24, 4, 0, 0, 0, time.Local).Unix()

	assert.Equal(t, prevBoundary, s.DayStart(early.Unix()))
	assert.Equal(t, boundary, s.DayStart(late.Unix()))

	// The boundary itself starts the new day
	assert.Equal(t, boundary, s.DayStart(boundary))
}

func TestUpdateTrackingStatus(t *testing.T) {
	s, _, _ := newTestStore(t)
	base := time.Now().Unix()

	require.NoError(t, s.UpdateTrackingStatus(context.Background(), true, base+100))
	snap := s.Snapshot()
	assert.True(t, snap.TrackingActive)
	assert.Equal(t, base+100, snap.TrackingStart)

	require.NoError(t, s.UpdateTrackingStatus(context.Background(), false, base+200))
	snap = s.Snapshot()
	assert.False(t, snap.TrackingActive)
	assert.Equal(t, int64(0), snap.TrackingStart)
}
