// Package state owns the single authoritative CurrentState record. All
// mutations go through the Store, which serializes writers and exposes
// consistent snapshots to readers. Persistence happens with the writer
// lock held but never while the snapshot lock is held, so readers are
// never blocked on I/O.
package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
)

// ErrStaleUpdate is returned when a commit carries an observation time older
// than the state already committed. Stale batches must never regress a more
// recent snapshot.
var ErrStaleUpdate = errors.New("stale state update rejected")

// StateRepository persists the singleton CurrentState row.
type StateRepository interface {
	Save(ctx context.Context, s models.CurrentState) error
	Load(ctx context.Context) (*models.CurrentState, error)
}

// ReferenceChecker verifies that place/visit references still resolve
// against the durable history before a commit points at them.
type ReferenceChecker interface {
	PlaceExists(ctx context.Context, id int64) (bool, error)
	VisitExists(ctx context.Context, id int64) (bool, error)
}

// Store is the single-writer CurrentState authority.
type Store struct {
	repo StateRepository
	refs ReferenceChecker
	cfg  config.DetectionConfig

	writeMu sync.Mutex   // serializes writers end to end, including persistence
	stateMu sync.RWMutex // guards cur for snapshot swap only
	cur     models.CurrentState
	loaded  bool
}

// NewStore creates a store; call InitializeIfAbsent before first use.
func NewStore(repo StateRepository, refs ReferenceChecker, cfg config.DetectionConfig) *Store {
	return &Store{repo: repo, refs: refs, cfg: cfg}
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() models.CurrentState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cur
}

// InitializeIfAbsent loads the persisted state or lazily creates a default
// record. Safe to call repeatedly.
func (s *Store) InitializeIfAbsent(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.loaded {
		return nil
	}

	persisted, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load current state: %w", err)
	}

	now := time.Now().Unix()
	if persisted == nil {
		fresh := models.CurrentState{
			StatsDay:    s.dayKey(now),
			LastUpdated: now,
		}
		if err := s.repo.Save(ctx, fresh); err != nil {
			return fmt.Errorf("failed to persist initial state: %w", err)
		}
		persisted = &fresh
		log.Printf("[StateStore] Initialized default current state")
	}

	s.swap(*persisted)
	s.loaded = true
	return nil
}

// Initialized reports whether a state record has been loaded or created.
func (s *Store) Initialized() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.loaded
}

// UpdateTrackingStatus flips tracking on or off.
func (s *Store) UpdateTrackingStatus(ctx context.Context, active bool, startTime int64) error {
	return s.commit(ctx, startTime, func(cur *models.CurrentState) error {
		cur.TrackingActive = active
		if active {
			cur.TrackingStart = startTime
		} else {
			cur.TrackingStart = 0
		}
		return nil
	})
}

// UpdateCurrentPlace points the state at an active place/visit pair. The
// referenced rows must exist; a dangling reference from a racing deletion
// leaves prior state intact and is reported only in the log. entryTime may
// predate observedAt when a recently closed visit is reopened.
func (s *Store) UpdateCurrentPlace(ctx context.Context, placeID, visitID, entryTime, observedAt int64) error {
	if placeID != 0 {
		ok, err := s.refs.PlaceExists(ctx, placeID)
		if err != nil {
			return fmt.Errorf("failed to check place reference: %w", err)
		}
		if !ok {
			log.Printf("[StateStore] Rejecting update with dangling place reference %d", placeID)
			return nil
		}
	}
	if visitID != 0 {
		ok, err := s.refs.VisitExists(ctx, visitID)
		if err != nil {
			return fmt.Errorf("failed to check visit reference: %w", err)
		}
		if !ok {
			log.Printf("[StateStore] Rejecting update with dangling visit reference %d", visitID)
			return nil
		}
	}

	return s.commit(ctx, observedAt, func(cur *models.CurrentState) error {
		cur.CurrentPlaceID = placeID
		cur.CurrentVisitID = visitID
		cur.VisitEntryTime = entryTime
		return nil
	})
}

// ClearCurrentPlace drops the active place/visit references.
func (s *Store) ClearCurrentPlace(ctx context.Context, now int64) error {
	return s.commit(ctx, now, func(cur *models.CurrentState) error {
		cur.CurrentPlaceID = 0
		cur.CurrentVisitID = 0
		cur.VisitEntryTime = 0
		return nil
	})
}

// UpdateDailyStats adds to today's rollup counters. Counters roll over
// lazily when the configured reset hour passes.
func (s *Store) UpdateDailyStats(ctx context.Context, locationDelta, timeTrackedSeconds, now int64) error {
	return s.commit(ctx, now, func(cur *models.CurrentState) error {
		s.maybeRollDay(cur, now)
		cur.TodayLocationCount += locationDelta
		cur.TodayTimeSeconds += timeTrackedSeconds
		return nil
	})
}

// SetTodayPlaceCount replaces today's distinct-place counter with a value
// recomputed from the visit history. Re-entering a place already visited
// today leaves the counter unchanged.
func (s *Store) SetTodayPlaceCount(ctx context.Context, count, now int64) error {
	return s.commit(ctx, now, func(cur *models.CurrentState) error {
		s.maybeRollDay(cur, now)
		cur.TodayPlaceCount = count
		return nil
	})
}

// ResetDailyStats zeroes today's counters explicitly.
func (s *Store) ResetDailyStats(ctx context.Context, now int64) error {
	return s.commit(ctx, now, func(cur *models.CurrentState) error {
		cur.TodayLocationCount = 0
		cur.TodayPlaceCount = 0
		cur.TodayTimeSeconds = 0
		cur.StatsDay = s.dayKey(now)
		return nil
	})
}

// commit applies a mutation under the writer lock: build the next state from
// the current snapshot, persist it, then swap it in. If persistence fails
// nothing is committed and the caller may retry. Observation times older
// than the committed state are rejected with ErrStaleUpdate.
func (s *Store) commit(ctx context.Context, observedAt int64, mutate func(*models.CurrentState) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.loaded {
		return fmt.Errorf("current state not initialized")
	}

	next := s.Snapshot()
	if observedAt < next.LastUpdated {
		return fmt.Errorf("%w: observed=%d committed=%d", ErrStaleUpdate, observedAt, next.LastUpdated)
	}

	if err := mutate(&next); err != nil {
		return err
	}
	next.LastUpdated = observedAt

	if err := s.repo.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to persist current state: %w", err)
	}

	s.swap(next)
	return nil
}

func (s *Store) swap(next models.CurrentState) {
	s.stateMu.Lock()
	s.cur = next
	s.stateMu.Unlock()
}

// maybeRollDay resets the rollup counters when now falls on a later stats
// day than the one recorded.
func (s *Store) maybeRollDay(cur *models.CurrentState, now int64) {
	day := s.dayKey(now)
	if cur.StatsDay == day {
		return
	}
	cur.TodayLocationCount = 0
	cur.TodayPlaceCount = 0
	cur.TodayTimeSeconds = 0
	cur.StatsDay = day
}

// dayKey maps a timestamp to its stats day, shifted by the configured reset
// hour so a non-midnight reset still yields a stable key.
func (s *Store) dayKey(ts int64) string {
	t := time.Unix(ts, 0).Add(-time.Duration(s.cfg.DailyResetHour) * time.Hour)
	return t.Format("2006-01-02")
}

// DayStart returns the Unix time at which ts's stats day began. Every
// "today" window in the system derives from this, so the rollup counters
// and the history queries agree on where the day boundary sits.
func (s *Store) DayStart(ts int64) int64 {
	shift := time.Duration(s.cfg.DailyResetHour) * time.Hour
	t := time.Unix(ts, 0).Add(-shift)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.Add(shift).Unix()
}
