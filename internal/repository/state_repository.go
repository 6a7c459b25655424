package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/OkayAnshul/Voyager-sub006/internal/models"
)

// StateRepository persists the singleton current_state row (id = 1).
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository creates a new state repository
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Save upserts the full state row in one statement
func (r *StateRepository) Save(ctx context.Context, s models.CurrentState) error {
	query := `INSERT INTO current_state (
			id, tracking_active, tracking_start, current_place_id, current_visit_id,
			visit_entry_time, today_location_count, today_place_count,
			today_time_seconds, stats_day, last_updated
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tracking_active = excluded.tracking_active,
			tracking_start = excluded.tracking_start,
			current_place_id = excluded.current_place_id,
			current_visit_id = excluded.current_visit_id,
			visit_entry_time = excluded.visit_entry_time,
			today_location_count = excluded.today_location_count,
			today_place_count = excluded.today_place_count,
			today_time_seconds = excluded.today_time_seconds,
			stats_day = excluded.stats_day,
			last_updated = excluded.last_updated`

	active := 0
	if s.TrackingActive {
		active = 1
	}

	_, err := r.db.ExecContext(ctx, query,
		active, s.TrackingStart, s.CurrentPlaceID, s.CurrentVisitID,
		s.VisitEntryTime, s.TodayLocationCount, s.TodayPlaceCount,
		s.TodayTimeSeconds, s.StatsDay, s.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to save current state: %w", err)
	}
	return nil
}

// Load reads the state row, nil when it has never been written
func (r *StateRepository) Load(ctx context.Context) (*models.CurrentState, error) {
	query := `SELECT tracking_active, tracking_start, current_place_id, current_visit_id,
			visit_entry_time, today_location_count, today_place_count,
			today_time_seconds, stats_day, last_updated
		FROM current_state WHERE id = 1`

	var s models.CurrentState
	var active int
	err := r.db.QueryRowContext(ctx, query).Scan(
		&active, &s.TrackingStart, &s.CurrentPlaceID, &s.CurrentVisitID,
		&s.VisitEntryTime, &s.TodayLocationCount, &s.TodayPlaceCount,
		&s.TodayTimeSeconds, &s.StatsDay, &s.LastUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current state: %w", err)
	}

	s.TrackingActive = active != 0
	return &s, nil
}
