package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/database"
	"github.com/OkayAnshul/Voyager-sub006/internal/events"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/repository"
	"github.com/OkayAnshul/Voyager-sub006/internal/state"
	"github.com/OkayAnshul/Voyager-sub006/internal/visit"
)

const degPerMeterLat = 1.0 / 111194.9

type pipeline struct {
	tracking  *TrackingService
	detection *DetectionService
	positions *repository.PositionRepository
	places    *repository.PlaceRepository
	visits    *repository.VisitRepository
	state     *state.Store
	cfg       config.DetectionConfig
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db))

	cfg := config.DefaultDetectionConfig()
	positions := repository.NewPositionRepository(db)
	places := repository.NewPlaceRepository(db)
	visits := repository.NewVisitRepository(db)
	history := repository.NewHistory(places, visits, positions)

	st := state.NewStore(repository.NewStateRepository(db), history, cfg)
	require.NoError(t, st.InitializeIfAbsent(context.Background()))

	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	machine := visit.NewMachine(visits, places, st, bus, cfg)
	return &pipeline{
		tracking:  NewTrackingService(positions, places, visits, machine, st, bus, cfg),
		detection: NewDetectionService(positions, places, nil),
		positions: positions,
		places:    places,
		visits:    visits,
		state:     st,
		cfg:       cfg,
	}
}

func TestProcessPositionRejectsInvalid(t *testing.T) {
	p := newPipeline(t)

	_, err := p.tracking.ProcessPosition(context.Background(),
		models.Position{Latitude: 91, Longitude: 0, Timestamp: time.Now().Unix(), Accuracy: 10}, p.cfg)
	assert.Error(t, err)
}

func TestProcessPositionFiltersDuplicates(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	base := time.Now().Unix() + 100

	accepted, err := p.tracking.ProcessPosition(ctx,
		models.Position{Latitude: 52.52, Longitude: 13.405, Timestamp: base, Accuracy: 10}, p.cfg)
	require.NoError(t, err)
	assert.True(t, accepted)

	// Same spot two seconds later is drift, not movement
	accepted, err = p.tracking.ProcessPosition(ctx,
		models.Position{Latitude: 52.52, Longitude: 13.405, Timestamp: base + 2, Accuracy: 10}, p.cfg)
	require.NoError(t, err)
	assert.False(t, accepted)

	count, err := p.positions.CountSince(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(1), p.tracking.CurrentState().TodayLocationCount)
}

func TestPipelineVisitRoundTrip(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	base := time.Now().Unix() + 100

	home := &models.Place{Latitude: 52.52, Longitude: 13.405, RadiusMeters: 50, Category: models.CategoryHome, Confidence: 0.6}
	require.NoError(t, p.places.Insert(ctx, home))

	// Arrive at home
	accepted, err := p.tracking.ProcessPosition(ctx,
		models.Position{Latitude: 52.52, Longitude: 13.405, Timestamp: base, Accuracy: 10}, p.cfg)
	require.NoError(t, err)
	require.True(t, accepted)

	snap := p.tracking.CurrentState()
	require.True(t, snap.HasActiveVisit())
	assert.Equal(t, home.ID, snap.CurrentPlaceID)
	assert.Equal(t, base, snap.VisitEntryTime)
	assert.Equal(t, int64(1), snap.TodayPlaceCount)
	visitID := snap.CurrentVisitID

	// Step out: a fix well outside the radius after a long gap
	away := models.Position{
		Latitude:  52.52 + 1000*degPerMeterLat,
		Longitude: 13.405,
		Timestamp: base + 1000,
		Accuracy:  10,
	}
	accepted, err = p.tracking.ProcessPosition(ctx, away, p.cfg)
	require.NoError(t, err)
	require.True(t, accepted)

	snap = p.tracking.CurrentState()
	assert.False(t, snap.HasActiveVisit())

	closed, err := p.visits.GetByID(ctx, visitID)
	require.NoError(t, err)
	assert.False(t, closed.Active())
	assert.Equal(t, int64(1000), closed.DurationSeconds)

	// Return within the merge gap: the same logical visit continues
	back := models.Position{
		Latitude:  52.52,
		Longitude: 13.405,
		Timestamp: base + 1000 + p.cfg.VisitMergeGapSeconds - 100,
		Accuracy:  10,
	}
	accepted, err = p.tracking.ProcessPosition(ctx, back, p.cfg)
	require.NoError(t, err)
	require.True(t, accepted)

	snap = p.tracking.CurrentState()
	require.True(t, snap.HasActiveVisit())
	assert.Equal(t, visitID, snap.CurrentVisitID)
	assert.Equal(t, base, snap.VisitEntryTime)
	assert.Equal(t, int64(1), snap.TodayPlaceCount, "re-entering the same place is not a new distinct place")

	// Leave for good
	away.Timestamp = base + 2100
	accepted, err = p.tracking.ProcessPosition(ctx, away, p.cfg)
	require.NoError(t, err)
	require.True(t, accepted)

	// One logical visit on the place, whatever the fragmentation was
	got, err := p.places.GetByID(ctx, home.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.VisitCount)
	assert.Equal(t, int64(2100), got.TotalTimeSeconds)
}

func TestTodayPlaceCountIsDistinct(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	base := time.Now().Unix() + 100

	home := &models.Place{Latitude: 52.52, Longitude: 13.405, RadiusMeters: 50, Category: models.CategoryHome}
	require.NoError(t, p.places.Insert(ctx, home))
	work := &models.Place{Latitude: 52.52 + 1000*degPerMeterLat, Longitude: 13.405, RadiusMeters: 50, Category: models.CategoryWork}
	require.NoError(t, p.places.Insert(ctx, work))

	step := func(lat float64, ts int64) {
		t.Helper()
		accepted, err := p.tracking.ProcessPosition(ctx,
			models.Position{Latitude: lat, Longitude: 13.405, Timestamp: ts, Accuracy: 10}, p.cfg)
		require.NoError(t, err)
		require.True(t, accepted)
	}

	step(52.52, base)
	assert.Equal(t, int64(1), p.tracking.CurrentState().TodayPlaceCount)

	step(52.52+1000*degPerMeterLat, base+1000)
	assert.Equal(t, int64(2), p.tracking.CurrentState().TodayPlaceCount)

	// Back home past the merge gap: a new visit row, but home already
	// counted today
	step(52.52, base+2000)
	snap := p.tracking.CurrentState()
	assert.Equal(t, home.ID, snap.CurrentPlaceID)
	assert.Equal(t, int64(2), snap.TodayPlaceCount)
}

func TestStopTrackingClosesActiveVisit(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	// Entry must not postdate the wall-clock close that StopTracking performs
	base := time.Now().Unix()

	home := &models.Place{Latitude: 52.52, Longitude: 13.405, RadiusMeters: 50}
	require.NoError(t, p.places.Insert(ctx, home))

	_, err := p.tracking.ProcessPosition(ctx,
		models.Position{Latitude: 52.52, Longitude: 13.405, Timestamp: base, Accuracy: 10}, p.cfg)
	require.NoError(t, err)
	require.True(t, p.tracking.CurrentState().HasActiveVisit())

	require.NoError(t, p.tracking.StopTracking(ctx))

	snap := p.tracking.CurrentState()
	assert.False(t, snap.TrackingActive)
	assert.False(t, snap.HasActiveVisit())

	open, err := p.visits.OpenVisits(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRunDetectionCreatesPlaces(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	base := time.Now().Unix() - 7200

	// A settled hour at one spot, fixes five minutes apart
	for i := 0; i < 12; i++ {
		require.NoError(t, p.positions.Insert(ctx, &models.Position{
			Latitude:  52.52 + float64(i%3)*5*degPerMeterLat,
			Longitude: 13.405,
			Timestamp: base + int64(i)*300,
			Accuracy:  10,
		}))
	}

	candidates, err := p.detection.RunDetection(ctx, p.cfg)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 12, candidates[0].MemberCount)

	stored, err := p.places.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.InDelta(t, 52.52, stored[0].Latitude, 0.001)

	// Re-running refreshes the existing place instead of duplicating it
	candidates, err = p.detection.RunDetection(ctx, p.cfg)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, stored[0].ID, candidates[0].MatchedPlaceID)

	stored, err = p.places.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestHTTPGeocoderParsesDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"display_name":"Alexanderplatz, Berlin"}`))
	}))
	defer srv.Close()

	g := NewHTTPGeocoder(srv.URL)
	addr, err := g.ReverseGeocode(context.Background(), 52.52, 13.405)
	require.NoError(t, err)
	assert.Equal(t, "Alexanderplatz, Berlin", addr)
}
