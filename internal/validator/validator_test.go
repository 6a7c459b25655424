package validator

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/state"
	"github.com/OkayAnshul/Voyager-sub006/internal/visit"
)

// fakeHistory backs both the visit machine and the validator's audit reads.
type fakeHistory struct {
	visits    map[int64]*models.Visit
	places    map[int64]*models.Place
	nextID    int64
	positions int64
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		visits: map[int64]*models.Visit{},
		places: map[int64]*models.Place{},
		nextID: 1,
	}
}

func (h *fakeHistory) addVisit(v models.Visit) int64 {
	v.ID = h.nextID
	h.nextID++
	h.visits[v.ID] = &v
	return v.ID
}

func (h *fakeHistory) Insert(_ context.Context, v *models.Visit) error {
	v.ID = h.addVisit(*v)
	return nil
}

func (h *fakeHistory) Close(_ context.Context, id, exitTime, durationSeconds int64) error {
	v := h.visits[id]
	v.ExitTime = exitTime
	v.DurationSeconds = durationSeconds
	return nil
}

func (h *fakeHistory) Reopen(_ context.Context, id int64) error {
	h.visits[id].ExitTime = 0
	return nil
}

func (h *fakeHistory) GetByID(_ context.Context, id int64) (*models.Visit, error) {
	v, ok := h.visits[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (h *fakeHistory) LastCompleted(_ context.Context, placeID int64) (*models.Visit, error) {
	var best *models.Visit
	for _, v := range h.visits {
		if v.PlaceID == placeID && !v.Active() && (best == nil || v.ExitTime > best.ExitTime) {
			best = v
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (h *fakeHistory) OpenVisits(_ context.Context) ([]models.Visit, error) {
	var open []models.Visit
	for _, v := range h.visits {
		if v.Active() {
			open = append(open, *v)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].EntryTime < open[j].EntryTime })
	return open, nil
}

func (h *fakeHistory) VisitsBetween(_ context.Context, from, to int64) ([]models.Visit, error) {
	var out []models.Visit
	for _, v := range h.visits {
		if v.EntryTime <= to && (v.Active() || v.ExitTime >= from) {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (h *fakeHistory) CountPositionsSince(_ context.Context, _ int64) (int64, error) {
	return h.positions, nil
}

func (h *fakeHistory) PlaceExists(_ context.Context, id int64) (bool, error) {
	_, ok := h.places[id]
	return ok, nil
}

func (h *fakeHistory) VisitExists(_ context.Context, id int64) (bool, error) {
	_, ok := h.visits[id]
	return ok, nil
}

func (h *fakeHistory) Visit(ctx context.Context, id int64) (*models.Visit, error) {
	return h.GetByID(ctx, id)
}

type historyPlaces struct{ h *fakeHistory }

func (s historyPlaces) GetByID(_ context.Context, id int64) (*models.Place, error) {
	p, ok := s.h.places[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s historyPlaces) ApplyVisitStats(_ context.Context, placeID, newVisits, durationDelta, lastVisit int64, confidence float64) error {
	p := s.h.places[placeID]
	p.VisitCount += newVisits
	p.TotalTimeSeconds += durationDelta
	p.LastVisitTime = lastVisit
	p.Confidence = confidence
	return nil
}

type memStateRepo struct{ saved *models.CurrentState }

func (r *memStateRepo) Save(_ context.Context, s models.CurrentState) error {
	cp := s
	r.saved = &cp
	return nil
}

func (r *memStateRepo) Load(_ context.Context) (*models.CurrentState, error) {
	if r.saved == nil {
		return nil, nil
	}
	cp := *r.saved
	return &cp, nil
}

func newTestValidator(t *testing.T) (*Validator, *fakeHistory, *state.Store) {
	t.Helper()
	cfg := config.DefaultDetectionConfig()
	h := newFakeHistory()
	st := state.NewStore(&memStateRepo{}, h, cfg)
	require.NoError(t, st.InitializeIfAbsent(context.Background()))
	m := visit.NewMachine(h, historyPlaces{h}, st, nil, cfg)
	return New(st, h, m, cfg), h, st
}

func TestValidateCleanStateIsValid(t *testing.T) {
	v, _, _ := newTestValidator(t)

	report, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.RepairsApplied)
}

func TestValidateClearsDanglingReferences(t *testing.T) {
	v, h, st := newTestValidator(t)
	base := time.Now().Unix()

	h.places[7] = &models.Place{ID: 7}
	visitID := h.addVisit(models.Visit{PlaceID: 7, EntryTime: base})
	require.NoError(t, st.UpdateCurrentPlace(context.Background(), 7, visitID, base, base))

	// The referenced place vanishes and takes its visits with it
	delete(h.places, 7)
	delete(h.visits, visitID)

	report, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.False(t, report.ReferencesValid)
	require.Len(t, report.Errors, 2)
	codes := []string{report.Errors[0].Code, report.Errors[1].Code}
	assert.Contains(t, codes, models.CodeDanglingPlace)
	assert.Contains(t, codes, models.CodeDanglingVisit)
	assert.NotEmpty(t, report.RepairsApplied)
	assert.False(t, st.Snapshot().HasActiveVisit())

	// The next pass over the repaired state finds nothing
	report, err = v.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.RepairsApplied)
}

func TestValidateForceClosesStuckVisit(t *testing.T) {
	v, h, _ := newTestValidator(t)
	cfg := config.DefaultDetectionConfig()
	base := time.Now().Unix()

	h.places[1] = &models.Place{ID: 1}
	entry := base - 48*3600
	visitID := h.addVisit(models.Visit{PlaceID: 1, EntryTime: entry})

	v.Now = func() int64 { return base }

	report, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.False(t, report.VisitInvariantHolds)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, models.CodeStuckVisit, report.Errors[0].Code)

	// Closed at entry plus the maximum duration, not at detection time
	closed := h.visits[visitID]
	assert.False(t, closed.Active())
	assert.Equal(t, entry+cfg.MaxVisitDurationSeconds, closed.ExitTime)
	assert.Equal(t, cfg.MaxVisitDurationSeconds, closed.DurationSeconds)

	report, err = v.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestValidateForceClosesDuplicateOpenVisits(t *testing.T) {
	v, h, _ := newTestValidator(t)
	base := time.Now().Unix()

	h.places[1] = &models.Place{ID: 1}
	older := h.addVisit(models.Visit{PlaceID: 1, EntryTime: base - 3000})
	newest := h.addVisit(models.Visit{PlaceID: 1, EntryTime: base - 1000})

	v.Now = func() int64 { return base }

	report, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, report.VisitInvariantHolds)

	found := false
	for _, e := range report.Errors {
		if e.Code == models.CodeMultipleOpen {
			found = true
			assert.Equal(t, models.SeverityCritical, e.Severity)
		}
	}
	assert.True(t, found)

	assert.False(t, h.visits[older].Active())
	assert.True(t, h.visits[newest].Active())
}

func TestValidateRepairsInterruptedPlaceSwitch(t *testing.T) {
	v, h, st := newTestValidator(t)
	base := time.Now().Unix()

	h.places[1] = &models.Place{ID: 1}
	h.places[2] = &models.Place{ID: 2}

	// A switch from place 1 to place 2 wrote both visit rows but the final
	// state commit never landed: the state still points at the closed visit
	// while the new one sits open and unreferenced
	closed := h.addVisit(models.Visit{PlaceID: 1, EntryTime: base - 2000, ExitTime: base - 1000, DurationSeconds: 1000})
	require.NoError(t, st.UpdateCurrentPlace(context.Background(), 1, closed, base-2000, base))
	orphan := h.addVisit(models.Visit{PlaceID: 2, EntryTime: base - 900})

	v.Now = func() int64 { return base + 10 }

	report, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)

	var codes []string
	for _, e := range report.Errors {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, models.CodeStaleVisitRef)
	assert.Contains(t, codes, models.CodeOrphanVisit)

	// The open row is authoritative: the state follows it
	snap := st.Snapshot()
	assert.Equal(t, int64(2), snap.CurrentPlaceID)
	assert.Equal(t, orphan, snap.CurrentVisitID)
	assert.Equal(t, base-900, snap.VisitEntryTime)
	assert.True(t, h.visits[orphan].Active())

	report, err = v.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.RepairsApplied)
}

func TestValidateClosesOrphanAtDeletedPlace(t *testing.T) {
	v, h, _ := newTestValidator(t)
	base := time.Now().Unix()

	// Open visit whose place is gone; nothing to relink to
	orphan := h.addVisit(models.Visit{PlaceID: 9, EntryTime: base - 600})

	v.Now = func() int64 { return base }

	report, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, report.VisitInvariantHolds)
	assert.False(t, h.visits[orphan].Active())
	assert.Equal(t, base, h.visits[orphan].ExitTime)

	report, err = v.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestValidateReportsDataLoss(t *testing.T) {
	v, h, st := newTestValidator(t)
	cfg := config.DefaultDetectionConfig()
	start := time.Now().Unix() + 100

	require.NoError(t, st.UpdateTrackingStatus(context.Background(), true, start))
	h.positions = 0

	v.Now = func() int64 { return start + cfg.GapSeconds + 100 }

	report, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.False(t, report.LocationDataConsistent)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, models.CodeDataLoss, report.Errors[0].Code)

	// Possible data loss is surfaced, never repaired
	assert.Empty(t, report.RepairsApplied)

	// Positions arriving clears the finding
	h.positions = 12
	report, err = v.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
}

func TestValidateSumsTodayVisitSeconds(t *testing.T) {
	v, h, st := newTestValidator(t)
	// Fixed local mid-day instant keeps every visit inside the same stats day
	now := time.Date(2026, time.August, 24, 12, 0, 0, 0, time.Local).Unix()

	h.places[1] = &models.Place{ID: 1}
	h.addVisit(models.Visit{PlaceID: 1, EntryTime: now - 1000, ExitTime: now - 700, DurationSeconds: 300})
	open := h.addVisit(models.Visit{PlaceID: 1, EntryTime: now - 500})
	require.NoError(t, st.UpdateCurrentPlace(context.Background(), 1, open, now-500, time.Now().Unix()+100))

	v.Now = func() int64 { return now }

	report, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.TimeCalculationsValid)
	assert.Equal(t, int64(800), report.TodayVisitSeconds)
	assert.Equal(t, now, report.CheckedAt)
}

func TestValidateTodayWindowFollowsResetHour(t *testing.T) {
	cfg := config.DefaultDetectionConfig()
	cfg.DailyResetHour = 4
	h := newFakeHistory()
	st := state.NewStore(&memStateRepo{}, h, cfg)
	require.NoError(t, st.InitializeIfAbsent(context.Background()))
	m := visit.NewMachine(h, historyPlaces{h}, st, nil, cfg)
	v := New(st, h, m, cfg)

	h.places[1] = &models.Place{ID: 1}

	// One visit ends before the 04:00 boundary, one after; only the latter
	// belongs to the current stats day
	boundary := time.Date(2026, time.August, 24, 4, 0, 0, 0, time.Local).Unix()
	h.addVisit(models.Visit{PlaceID: 1, EntryTime: boundary - 1800, ExitTime: boundary - 900, DurationSeconds: 900})
	h.addVisit(models.Visit{PlaceID: 1, EntryTime: boundary + 600, ExitTime: boundary + 1500, DurationSeconds: 900})

	v.Now = func() int64 { return boundary + 3600 }

	report, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, report.TimeCalculationsValid)
	assert.Equal(t, int64(900), report.TodayVisitSeconds)
}

func TestValidateIsIdempotent(t *testing.T) {
	v, h, st := newTestValidator(t)
	base := time.Now().Unix()

	// A dangling reference and a stuck visit at once
	h.places[7] = &models.Place{ID: 7}
	dangling := h.addVisit(models.Visit{PlaceID: 7, EntryTime: base - 100})
	require.NoError(t, st.UpdateCurrentPlace(context.Background(), 7, dangling, base-100, base))
	delete(h.places, 7)
	delete(h.visits, dangling)

	h.places[1] = &models.Place{ID: 1}
	h.addVisit(models.Visit{PlaceID: 1, EntryTime: base - 48*3600})

	v.Now = func() int64 { return base }

	first, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Valid)
	assert.NotEmpty(t, first.RepairsApplied)

	second, err := v.Validate(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Valid)
	assert.Empty(t, second.RepairsApplied)
	assert.Empty(t, second.Errors)
}
