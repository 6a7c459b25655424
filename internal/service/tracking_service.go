package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/OkayAnshul/Voyager-sub006/internal/clustering"
	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/events"
	"github.com/OkayAnshul/Voyager-sub006/internal/filter"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/repository"
	"github.com/OkayAnshul/Voyager-sub006/internal/state"
	"github.com/OkayAnshul/Voyager-sub006/internal/visit"
)

// TrackingService runs the position pipeline: filter the fix, persist it,
// match it against known places, drive the visit state machine, and commit
// the authoritative state. Positions are processed in acceptance order.
type TrackingService struct {
	positions *repository.PositionRepository
	places    *repository.PlaceRepository
	visits    *repository.VisitRepository
	machine   *visit.Machine
	state     *state.Store
	bus       *events.Bus

	mu           sync.Mutex // serializes pipeline runs so transitions stay ordered
	lastAccepted *models.Position
	mode         *filter.ModeTracker
	lastLoaded   bool
}

// NewTrackingService creates the pipeline service.
func NewTrackingService(
	positions *repository.PositionRepository,
	places *repository.PlaceRepository,
	visits *repository.VisitRepository,
	machine *visit.Machine,
	st *state.Store,
	bus *events.Bus,
	cfg config.DetectionConfig,
) *TrackingService {
	return &TrackingService{
		positions: positions,
		places:    places,
		visits:    visits,
		machine:   machine,
		state:     st,
		bus:       bus,
		mode:      filter.NewModeTracker(cfg),
	}
}

// ProcessPosition feeds one raw fix through the pipeline and reports whether
// it was accepted. Rejection is not an error; stale fixes are coalesced away
// rather than allowed to regress the committed state.
func (s *TrackingService) ProcessPosition(ctx context.Context, p models.Position, cfg config.DetectionConfig) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, fmt.Errorf("invalid position: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLastAccepted(ctx); err != nil {
		return false, err
	}

	if !filter.ShouldAccept(p, s.lastAccepted, s.mode.Mode(), cfg) {
		return false, nil
	}

	// Persist before touching the state authority; if the write fails the
	// state never sees the fix
	if err := s.positions.Insert(ctx, &p); err != nil {
		return false, err
	}

	var timeDelta int64
	if s.lastAccepted != nil {
		elapsed := p.Timestamp - s.lastAccepted.Timestamp
		if elapsed > 0 && elapsed <= cfg.GapSeconds {
			timeDelta = elapsed
		}
	}

	before := s.state.Snapshot()
	if err := s.state.UpdateDailyStats(ctx, 1, timeDelta, p.Timestamp); err != nil {
		if errors.Is(err, state.ErrStaleUpdate) {
			log.Printf("[Tracking] Dropping stale position at %d", p.Timestamp)
			return false, nil
		}
		return false, err
	}

	existing, err := s.places.GetAll(ctx)
	if err != nil {
		return false, err
	}
	matched := clustering.MatchPlace(p, existing)

	if err := s.machine.Transition(ctx, p, matched); err != nil {
		return false, err
	}

	// Refresh the distinct-place counter when the transition moved us
	// somewhere new. Recomputed from the visit history so revisiting a
	// place already seen today never inflates the count.
	after := s.state.Snapshot()
	if after.CurrentPlaceID != 0 && after.CurrentPlaceID != before.CurrentPlaceID {
		distinct, err := s.visits.DistinctPlaces(ctx, s.state.DayStart(p.Timestamp), p.Timestamp)
		if err != nil {
			return false, err
		}
		if err := s.state.SetTodayPlaceCount(ctx, distinct, p.Timestamp); err != nil && !errors.Is(err, state.ErrStaleUpdate) {
			return false, err
		}
	}

	s.mode.Observe(p)
	s.lastAccepted = &p

	s.bus.Publish(events.Event{Kind: events.PositionAccepted, At: p.Timestamp, Position: &p})
	return true, nil
}

// StartTracking flips the tracking flag on.
func (s *TrackingService) StartTracking(ctx context.Context) error {
	now := time.Now().Unix()
	if err := s.state.UpdateTrackingStatus(ctx, true, now); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.TrackingStarted, At: now})
	log.Printf("[Tracking] Started at %d", now)
	return nil
}

// StopTracking closes any active visit through the state machine and flips
// the tracking flag off.
func (s *TrackingService) StopTracking(ctx context.Context) error {
	now := time.Now().Unix()

	snap := s.state.Snapshot()
	if snap.HasActiveVisit() {
		if err := s.machine.ForceClose(ctx, snap.CurrentVisitID, now); err != nil {
			return err
		}
	}

	if err := s.state.UpdateTrackingStatus(ctx, false, now); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.TrackingStopped, At: now})
	log.Printf("[Tracking] Stopped at %d", now)
	return nil
}

// CurrentState returns the authoritative snapshot.
func (s *TrackingService) CurrentState() models.CurrentState {
	return s.state.Snapshot()
}

// DailySummary combines the rollup counters with today's visit history.
type DailySummary struct {
	State          models.CurrentState `json:"state"`
	Visits         []models.Visit      `json:"visits"`
	VisitedSeconds int64               `json:"visitedSeconds"`
}

// Summary builds the daily summary for operator-facing surfaces.
func (s *TrackingService) Summary(ctx context.Context) (*DailySummary, error) {
	now := time.Now().Unix()
	dayStart := s.state.DayStart(now)

	todays, err := s.visits.VisitsBetween(ctx, dayStart, now)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, v := range todays {
		total += v.LiveDuration(now)
	}

	return &DailySummary{
		State:          s.state.Snapshot(),
		Visits:         todays,
		VisitedSeconds: total,
	}, nil
}

// loadLastAccepted seeds the filter from the persisted history after a
// process restart.
func (s *TrackingService) loadLastAccepted(ctx context.Context) error {
	if s.lastLoaded {
		return nil
	}
	last, err := s.positions.Last(ctx)
	if err != nil {
		return err
	}
	s.lastAccepted = last
	s.lastLoaded = true
	return nil
}
