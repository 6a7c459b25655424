// Package validator audits the CurrentState authority against the persisted
// place/visit history, repairs the divergences it can repair with confidence,
// and reports the rest. It never fabricates history.
package validator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/state"
	"github.com/OkayAnshul/Voyager-sub006/internal/visit"
)

// HistoryStore is the read side of the durable history the validator audits.
type HistoryStore interface {
	PlaceExists(ctx context.Context, id int64) (bool, error)
	Visit(ctx context.Context, id int64) (*models.Visit, error)
	OpenVisits(ctx context.Context) ([]models.Visit, error)
	VisitsBetween(ctx context.Context, from, to int64) ([]models.Visit, error)
	CountPositionsSince(ctx context.Context, ts int64) (int64, error)
}

// Validator runs consistency checks on a fixed interval and at startup.
type Validator struct {
	state   *state.Store
	history HistoryStore
	machine *visit.Machine
	cfg     config.DetectionConfig

	// Now is overridable for tests; defaults to wall clock.
	Now func() int64
}

// New creates a validator.
func New(st *state.Store, history HistoryStore, machine *visit.Machine, cfg config.DetectionConfig) *Validator {
	return &Validator{
		state:   st,
		history: history,
		machine: machine,
		cfg:     cfg,
		Now:     func() int64 { return time.Now().Unix() },
	}
}

// Run executes one pass immediately and then loops on the configured
// interval until ctx is cancelled. Shutdown is bounded by one interval.
func (v *Validator) Run(ctx context.Context) {
	interval := time.Duration(v.cfg.ValidatorIntervalSeconds) * time.Second

	v.runPass(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Validator] Stopping")
			return
		case <-ticker.C:
			v.runPass(ctx)
		}
	}
}

func (v *Validator) runPass(ctx context.Context) {
	report, err := v.Validate(ctx)
	if err != nil {
		log.Printf("[Validator] Pass failed: %v", err)
		return
	}
	if !report.Valid {
		log.Printf("[Validator] Found %d anomalies, applied %d repairs", len(report.Errors), len(report.RepairsApplied))
	}
}

// Validate runs all checks once. Each check is independent and individually
// reported; repairs the validator is confident in (reference clearing, lazy
// initialization, force-closing stuck visits) are applied inline through the
// same entry points as ordinary writers. Ambiguous anomalies are reported
// only. A second pass with no intervening writes applies no further repairs.
func (v *Validator) Validate(ctx context.Context) (models.ValidationReport, error) {
	report := models.ValidationReport{
		StateExists:            true,
		ReferencesValid:        true,
		VisitInvariantHolds:    true,
		LocationDataConsistent: true,
		TimeCalculationsValid:  true,
		CheckedAt:              v.Now(),
	}

	if err := v.checkStateExists(ctx, &report); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if err := v.checkReferences(ctx, &report); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if err := v.checkOpenVisits(ctx, &report); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if err := v.checkLocationVolume(ctx, &report); err != nil {
		return report, err
	}
	if err := v.checkTimeCalculations(ctx, &report); err != nil {
		return report, err
	}

	report.Valid = report.StateExists && report.ReferencesValid &&
		report.VisitInvariantHolds && report.LocationDataConsistent &&
		report.TimeCalculationsValid
	return report, nil
}

func (v *Validator) checkStateExists(ctx context.Context, report *models.ValidationReport) error {
	if v.state.Initialized() {
		return nil
	}

	report.StateExists = false
	report.AddError("currentState", models.CodeStateMissing,
		"current state record absent", models.SeverityWarning, "initialize default record")

	if err := v.state.InitializeIfAbsent(ctx); err != nil {
		return fmt.Errorf("failed to initialize current state: %w", err)
	}
	report.RepairsApplied = append(report.RepairsApplied, "initialized current state")
	return nil
}

// checkReferences verifies the state's place/visit pointers still resolve,
// clearing them when the referenced row is gone.
func (v *Validator) checkReferences(ctx context.Context, report *models.ValidationReport) error {
	snap := v.state.Snapshot()
	dangling := false

	if snap.CurrentPlaceID != 0 {
		ok, err := v.history.PlaceExists(ctx, snap.CurrentPlaceID)
		if err != nil {
			return fmt.Errorf("failed to check place %d: %w", snap.CurrentPlaceID, err)
		}
		if !ok {
			dangling = true
			report.AddError("currentPlaceId", models.CodeDanglingPlace,
				fmt.Sprintf("place %d no longer exists", snap.CurrentPlaceID),
				models.SeverityWarning, "clear reference")
		}
	}

	if snap.CurrentVisitID != 0 {
		row, err := v.history.Visit(ctx, snap.CurrentVisitID)
		if err != nil {
			return fmt.Errorf("failed to check visit %d: %w", snap.CurrentVisitID, err)
		}
		switch {
		case row == nil:
			dangling = true
			report.AddError("currentVisitId", models.CodeDanglingVisit,
				fmt.Sprintf("visit %d no longer exists", snap.CurrentVisitID),
				models.SeverityWarning, "clear reference")
		case !row.Active():
			// An interrupted place switch can leave the state pointing at
			// the visit that was just closed
			dangling = true
			report.AddError("currentVisitId", models.CodeStaleVisitRef,
				fmt.Sprintf("visit %d is already closed", snap.CurrentVisitID),
				models.SeverityWarning, "clear reference")
		}
	}

	if dangling {
		report.ReferencesValid = false
		if err := v.state.ClearCurrentPlace(ctx, snap.LastUpdated); err != nil {
			return fmt.Errorf("failed to clear dangling references: %w", err)
		}
		report.RepairsApplied = append(report.RepairsApplied, "cleared dangling place/visit references")
		log.Printf("[Validator] Cleared dangling references (place=%d visit=%d)", snap.CurrentPlaceID, snap.CurrentVisitID)
	}

	return nil
}

// checkOpenVisits enforces the single-active-visit invariant and the
// maximum plausible visit duration. More than one open visit should be
// structurally impossible; the older ones are force-closed and logged loudly.
func (v *Validator) checkOpenVisits(ctx context.Context, report *models.ValidationReport) error {
	open, err := v.history.OpenVisits(ctx)
	if err != nil {
		return fmt.Errorf("failed to query open visits: %w", err)
	}

	now := v.Now()

	if len(open) > 1 {
		report.VisitInvariantHolds = false
		report.AddError("visits", models.CodeMultipleOpen,
			fmt.Sprintf("%d visits open simultaneously", len(open)),
			models.SeverityCritical, "force-close all but the newest")
		log.Printf("[Validator] CRITICAL: %d open visits, invariant violated", len(open))

		// open is ordered by entry time ascending; keep the newest
		for _, stale := range open[:len(open)-1] {
			if err := v.machine.ForceClose(ctx, stale.ID, now); err != nil {
				return fmt.Errorf("failed to force-close visit %d: %w", stale.ID, err)
			}
			report.RepairsApplied = append(report.RepairsApplied,
				fmt.Sprintf("force-closed duplicate open visit %d", stale.ID))
		}
		open = open[len(open)-1:]
	}

	var survivor *models.Visit
	for i := range open {
		o := open[i]
		age := now - o.EntryTime
		if age <= v.cfg.MaxVisitDurationSeconds {
			survivor = &open[i]
			continue
		}
		report.VisitInvariantHolds = false
		report.AddError("visits", models.CodeStuckVisit,
			fmt.Sprintf("visit %d open for %ds, exceeds maximum %ds", o.ID, age, v.cfg.MaxVisitDurationSeconds),
			models.SeverityWarning, "force-close at entry+maximum")

		exit := o.EntryTime + v.cfg.MaxVisitDurationSeconds
		if err := v.machine.ForceClose(ctx, o.ID, exit); err != nil {
			return fmt.Errorf("failed to force-close stuck visit %d: %w", o.ID, err)
		}
		report.RepairsApplied = append(report.RepairsApplied,
			fmt.Sprintf("force-closed stuck visit %d", o.ID))
	}

	if survivor != nil {
		return v.adoptOrphan(ctx, report, survivor, now)
	}
	return nil
}

// adoptOrphan reconciles an open visit the state does not reference. An
// interrupted place switch can commit the visit row without the matching
// state update; the row is authoritative, so the state is pointed back at
// it. If the visit's place is gone the row itself is the leftover and is
// force-closed instead.
func (v *Validator) adoptOrphan(ctx context.Context, report *models.ValidationReport, o *models.Visit, now int64) error {
	snap := v.state.Snapshot()
	if snap.CurrentVisitID == o.ID {
		return nil
	}

	report.VisitInvariantHolds = false
	report.AddError("visits", models.CodeOrphanVisit,
		fmt.Sprintf("open visit %d not referenced by current state", o.ID),
		models.SeverityWarning, "relink state to the open visit")

	ok, err := v.history.PlaceExists(ctx, o.PlaceID)
	if err != nil {
		return fmt.Errorf("failed to check place %d: %w", o.PlaceID, err)
	}
	if !ok {
		if err := v.machine.ForceClose(ctx, o.ID, now); err != nil {
			return fmt.Errorf("failed to force-close orphaned visit %d: %w", o.ID, err)
		}
		report.RepairsApplied = append(report.RepairsApplied,
			fmt.Sprintf("force-closed orphaned visit %d at deleted place", o.ID))
		return nil
	}

	observedAt := now
	if snap.LastUpdated > observedAt {
		observedAt = snap.LastUpdated
	}
	if err := v.state.UpdateCurrentPlace(ctx, o.PlaceID, o.ID, o.EntryTime, observedAt); err != nil {
		return fmt.Errorf("failed to relink visit %d: %w", o.ID, err)
	}
	report.RepairsApplied = append(report.RepairsApplied,
		fmt.Sprintf("relinked state to open visit %d", o.ID))
	log.Printf("[Validator] Relinked state to open visit %d at place %d", o.ID, o.PlaceID)
	return nil
}

// checkLocationVolume flags tracking marked active with no positions
// recorded since it started. Possible data loss; surfaced, never repaired.
func (v *Validator) checkLocationVolume(ctx context.Context, report *models.ValidationReport) error {
	snap := v.state.Snapshot()
	if !snap.TrackingActive || snap.TrackingStart == 0 {
		return nil
	}

	count, err := v.history.CountPositionsSince(ctx, snap.TrackingStart)
	if err != nil {
		return fmt.Errorf("failed to count positions: %w", err)
	}

	if count == 0 && v.Now()-snap.TrackingStart > v.cfg.GapSeconds {
		report.LocationDataConsistent = false
		report.AddError("positions", models.CodeDataLoss,
			"tracking active but no positions recorded", models.SeverityWarning,
			"check location permissions and sensor pipeline")
	}
	return nil
}

// checkTimeCalculations verifies today's visit durations sum without error;
// active visits contribute a live duration from entry to now.
func (v *Validator) checkTimeCalculations(ctx context.Context, report *models.ValidationReport) error {
	now := v.Now()
	dayStart := v.state.DayStart(now)

	visits, err := v.history.VisitsBetween(ctx, dayStart, now)
	if err != nil {
		return fmt.Errorf("failed to query today's visits: %w", err)
	}

	var total int64
	for _, vs := range visits {
		d := vs.LiveDuration(now)
		if !vs.Active() && vs.DurationSeconds < 0 {
			report.TimeCalculationsValid = false
			report.AddError("visits", models.CodeTimeCalculation,
				fmt.Sprintf("visit %d has negative duration", vs.ID),
				models.SeverityWarning, "recompute from entry/exit timestamps")
			continue
		}
		if vs.EntryTime > now {
			report.TimeCalculationsValid = false
			report.AddError("visits", models.CodeTimeCalculation,
				fmt.Sprintf("visit %d entry time is in the future", vs.ID),
				models.SeverityWarning, "inspect clock source")
			continue
		}
		total += d
	}

	report.TodayVisitSeconds = total
	return nil
}
