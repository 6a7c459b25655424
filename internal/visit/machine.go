// Package visit implements the arrival/departure state machine. All writers
// that open or close visits -- automatic detection, manual triggers, the
// consistency validator's force-close -- go through the Machine so the
// single-active-visit invariant is enforced in one place.
package visit

import (
	"context"
	"fmt"
	"log"

	"github.com/OkayAnshul/Voyager-sub006/internal/clustering"
	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/events"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/state"
)

// State is the machine's position in its two-state lifecycle. The explicit
// sum type exists so callers never interpret a zero exit time directly.
type State interface {
	isState()
}

// NoActiveVisit means the user is not currently at any known place.
type NoActiveVisit struct{}

// ActiveVisit means the user is inside a place's radius with an open visit.
type ActiveVisit struct {
	PlaceID   int64
	VisitID   int64
	EntryTime int64
}

func (NoActiveVisit) isState() {}
func (ActiveVisit) isState()   {}

// VisitStore is the slice of durable history the machine writes through.
type VisitStore interface {
	Insert(ctx context.Context, v *models.Visit) error
	Close(ctx context.Context, id, exitTime, durationSeconds int64) error
	Reopen(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*models.Visit, error)
	LastCompleted(ctx context.Context, placeID int64) (*models.Visit, error)
}

// PlaceStore updates cumulative place statistics on visit close.
type PlaceStore interface {
	GetByID(ctx context.Context, id int64) (*models.Place, error)
	ApplyVisitStats(ctx context.Context, placeID, newVisits, durationDelta, lastVisit int64, confidence float64) error
}

// Machine tracks entry into and exit from places.
type Machine struct {
	visits VisitStore
	places PlaceStore
	state  *state.Store
	bus    *events.Bus
	cfg    config.DetectionConfig
}

// NewMachine creates a visit state machine.
func NewMachine(visits VisitStore, places PlaceStore, st *state.Store, bus *events.Bus, cfg config.DetectionConfig) *Machine {
	return &Machine{visits: visits, places: places, state: st, bus: bus, cfg: cfg}
}

// Current derives the machine state from the authoritative snapshot.
func (m *Machine) Current() State {
	snap := m.state.Snapshot()
	if !snap.HasActiveVisit() {
		return NoActiveVisit{}
	}
	return ActiveVisit{
		PlaceID:   snap.CurrentPlaceID,
		VisitID:   snap.CurrentVisitID,
		EntryTime: snap.VisitEntryTime,
	}
}

// Transition applies one accepted position to the machine. matched is the
// place the position falls inside, or nil. The close-then-open path persists
// both rows first and then commits a single CurrentState update, so no
// reader ever observes zero-and-two visits at once.
func (m *Machine) Transition(ctx context.Context, pos models.Position, matched *models.Place) error {
	now := pos.Timestamp

	switch cur := m.Current().(type) {
	case NoActiveVisit:
		if matched == nil {
			return nil
		}
		return m.open(ctx, matched, now)

	case ActiveVisit:
		if matched != nil && matched.ID == cur.PlaceID {
			// Same visit continues
			return nil
		}

		closedPlace, closedVisit, err := m.closeRow(ctx, cur, now)
		if err != nil {
			return err
		}

		if matched == nil {
			if err := m.state.ClearCurrentPlace(ctx, now); err != nil {
				return err
			}
			m.publishExit(closedPlace, closedVisit, now)
			return nil
		}

		// Adjacent visit to a different place: rows are already written,
		// one state commit moves the pointers from old to new
		visitID, entry, err := m.openRow(ctx, matched, now)
		if err != nil {
			return err
		}
		if err := m.state.UpdateCurrentPlace(ctx, matched.ID, visitID, entry, now); err != nil {
			return err
		}
		m.publishExit(closedPlace, closedVisit, now)
		m.publishEnter(matched, visitID, entry)
		return nil
	}

	return nil
}

// ForceClose closes a stuck visit at the given exit time. Used by the
// consistency validator when a visit has been open longer than the maximum
// plausible duration; goes through the same stats path as a normal close.
func (m *Machine) ForceClose(ctx context.Context, visitID, exitTime int64) error {
	v, err := m.visits.GetByID(ctx, visitID)
	if err != nil {
		return fmt.Errorf("failed to load visit %d: %w", visitID, err)
	}
	if v == nil || !v.Active() {
		return nil
	}

	if err := m.finishVisit(ctx, v, exitTime); err != nil {
		return err
	}

	snap := m.state.Snapshot()
	if snap.CurrentVisitID == visitID {
		if err := m.state.ClearCurrentPlace(ctx, snap.LastUpdated); err != nil {
			return err
		}
	}

	log.Printf("[VisitMachine] Force-closed visit %d at %d", visitID, exitTime)
	return nil
}

// open creates a visit row (or reopens a just-closed one at the same place)
// and commits the state pointers.
func (m *Machine) open(ctx context.Context, place *models.Place, now int64) error {
	visitID, entry, err := m.openRow(ctx, place, now)
	if err != nil {
		return err
	}
	if err := m.state.UpdateCurrentPlace(ctx, place.ID, visitID, entry, now); err != nil {
		return err
	}
	m.publishEnter(place, visitID, entry)
	return nil
}

// openRow writes the visit row and returns its id and effective entry time.
// A visit at the same place closed within the merge gap is reopened instead
// of creating a fragment shorter than the minimum visit duration.
func (m *Machine) openRow(ctx context.Context, place *models.Place, now int64) (int64, int64, error) {
	last, err := m.visits.LastCompleted(ctx, place.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query last visit for place %d: %w", place.ID, err)
	}

	if last != nil && now-last.ExitTime <= m.cfg.VisitMergeGapSeconds {
		if err := m.visits.Reopen(ctx, last.ID); err != nil {
			return 0, 0, fmt.Errorf("failed to reopen visit %d: %w", last.ID, err)
		}
		log.Printf("[VisitMachine] Reopened visit %d at place %d (gap %ds)", last.ID, place.ID, now-last.ExitTime)
		return last.ID, last.EntryTime, nil
	}

	v := &models.Visit{
		PlaceID:    place.ID,
		EntryTime:  now,
		Confidence: place.Confidence,
	}
	if err := m.visits.Insert(ctx, v); err != nil {
		return 0, 0, fmt.Errorf("failed to insert visit: %w", err)
	}
	return v.ID, now, nil
}

// closeRow completes the active visit row and applies place statistics.
func (m *Machine) closeRow(ctx context.Context, cur ActiveVisit, exitTime int64) (*models.Place, *models.Visit, error) {
	v, err := m.visits.GetByID(ctx, cur.VisitID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load visit %d: %w", cur.VisitID, err)
	}
	if v == nil {
		// Row vanished underneath us; the validator will clear the reference
		return nil, nil, nil
	}

	if err := m.finishVisit(ctx, v, exitTime); err != nil {
		return nil, nil, err
	}

	place, err := m.places.GetByID(ctx, v.PlaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load place %d: %w", v.PlaceID, err)
	}

	closed := *v
	closed.ExitTime = exitTime
	closed.DurationSeconds = exitTime - v.EntryTime
	return place, &closed, nil
}

// finishVisit writes the exit time and credits the place with the duration
// not yet accounted for. A reopened visit keeps its previously credited
// duration, so only the delta lands on the place and the visit counter
// increments once per logical visit.
func (m *Machine) finishVisit(ctx context.Context, v *models.Visit, exitTime int64) error {
	duration := exitTime - v.EntryTime
	if duration < 0 {
		return fmt.Errorf("visit %d exit before entry (%d < %d)", v.ID, exitTime, v.EntryTime)
	}

	if err := m.visits.Close(ctx, v.ID, exitTime, duration); err != nil {
		return fmt.Errorf("failed to close visit %d: %w", v.ID, err)
	}

	delta := duration - v.DurationSeconds
	if delta < 0 {
		delta = 0
	}
	newVisits := int64(1)
	if v.DurationSeconds > 0 {
		newVisits = 0 // already counted before the reopen
	}

	place, err := m.places.GetByID(ctx, v.PlaceID)
	if err != nil {
		return fmt.Errorf("failed to load place %d: %w", v.PlaceID, err)
	}
	if place == nil {
		return nil
	}

	confidence := clustering.RefineConfidence(place.Confidence)
	if err := m.places.ApplyVisitStats(ctx, v.PlaceID, newVisits, delta, exitTime, confidence); err != nil {
		return fmt.Errorf("failed to update place %d stats: %w", v.PlaceID, err)
	}
	return nil
}

func (m *Machine) publishEnter(place *models.Place, visitID, entry int64) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{
		Kind:  events.PlaceEntered,
		At:    entry,
		Place: place,
		Visit: &models.Visit{ID: visitID, PlaceID: place.ID, EntryTime: entry},
	})
}

func (m *Machine) publishExit(place *models.Place, v *models.Visit, at int64) {
	if m.bus == nil || v == nil {
		return
	}
	m.bus.Publish(events.Event{
		Kind:  events.PlaceExited,
		At:    at,
		Place: place,
		Visit: v,
	})
}
