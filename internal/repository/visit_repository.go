package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/OkayAnshul/Voyager-sub006/internal/models"
)

// VisitRepository handles database operations for visits. The open state is
// encoded as a NULL exit_time at this boundary and surfaces as ExitTime zero.
type VisitRepository struct {
	db *sql.DB
}

// NewVisitRepository creates a new visit repository
func NewVisitRepository(db *sql.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

const visitColumns = `id, place_id, entry_time, exit_time, duration_seconds, confidence, created_at`

// Insert stores a new open visit and sets its ID
func (r *VisitRepository) Insert(ctx context.Context, v *models.Visit) error {
	query := `INSERT INTO visits (place_id, entry_time, exit_time, duration_seconds, confidence)
		VALUES (?, ?, NULL, 0, ?)`

	res, err := r.db.ExecContext(ctx, query, v.PlaceID, v.EntryTime, v.Confidence)
	if err != nil {
		return fmt.Errorf("failed to insert visit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get visit id: %w", err)
	}
	v.ID = id
	return nil
}

// Close completes a visit, writing exit time and duration exactly once
func (r *VisitRepository) Close(ctx context.Context, id, exitTime, durationSeconds int64) error {
	query := `UPDATE visits SET exit_time = ?, duration_seconds = ? WHERE id = ? AND exit_time IS NULL`
	_, err := r.db.ExecContext(ctx, query, exitTime, durationSeconds, id)
	if err != nil {
		return fmt.Errorf("failed to close visit: %w", err)
	}
	return nil
}

// Reopen clears the exit time of a just-closed visit so an immediate return
// to the same place continues the same logical visit. The credited duration
// is kept so place stats are not double-counted on the next close.
func (r *VisitRepository) Reopen(ctx context.Context, id int64) error {
	query := `UPDATE visits SET exit_time = NULL WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reopen visit: %w", err)
	}
	return nil
}

// GetByID retrieves a visit by ID, nil when absent
func (r *VisitRepository) GetByID(ctx context.Context, id int64) (*models.Visit, error) {
	query := "SELECT " + visitColumns + " FROM visits WHERE id = ?"

	v, err := scanVisitRow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	return v, nil
}

// Exists reports whether a visit with the given ID exists
func (r *VisitRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM visits WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check visit existence: %w", err)
	}
	return n > 0, nil
}

// OpenVisits returns all visits with no exit time, oldest entry first.
// More than one row here is an invariant violation.
func (r *VisitRepository) OpenVisits(ctx context.Context) ([]models.Visit, error) {
	query := "SELECT " + visitColumns + " FROM visits WHERE exit_time IS NULL ORDER BY entry_time ASC"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query open visits: %w", err)
	}
	defer rows.Close()

	return scanVisits(rows)
}

// LastCompleted returns the most recently closed visit at a place, nil when
// the place has none
func (r *VisitRepository) LastCompleted(ctx context.Context, placeID int64) (*models.Visit, error) {
	query := "SELECT " + visitColumns + ` FROM visits
		WHERE place_id = ? AND exit_time IS NOT NULL
		ORDER BY exit_time DESC LIMIT 1`

	v, err := scanVisitRow(r.db.QueryRowContext(ctx, query, placeID))
	if err != nil {
		return nil, fmt.Errorf("failed to get last completed visit: %w", err)
	}
	return v, nil
}

// VisitsBetween returns visits overlapping [from, to], including still-open
// visits that started inside the range
func (r *VisitRepository) VisitsBetween(ctx context.Context, from, to int64) ([]models.Visit, error) {
	query := "SELECT " + visitColumns + ` FROM visits
		WHERE entry_time <= ? AND (exit_time IS NULL OR exit_time >= ?)
		ORDER BY entry_time ASC`

	rows, err := r.db.QueryContext(ctx, query, to, from)
	if err != nil {
		return nil, fmt.Errorf("failed to query visits in range: %w", err)
	}
	defer rows.Close()

	return scanVisits(rows)
}

// DistinctPlaces counts the distinct places visited in [from, to]. A place
// entered, left, and re-entered inside the window counts once.
func (r *VisitRepository) DistinctPlaces(ctx context.Context, from, to int64) (int64, error) {
	query := `SELECT COUNT(DISTINCT place_id) FROM visits
		WHERE entry_time <= ? AND (exit_time IS NULL OR exit_time >= ?)`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, to, from).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count distinct places: %w", err)
	}
	return n, nil
}

// GetVisits retrieves visits with filtering and pagination
func (r *VisitRepository) GetVisits(ctx context.Context, filter models.VisitFilter) ([]models.Visit, int64, error) {
	query := "SELECT " + visitColumns + " FROM visits"

	var conditions []string
	var args []interface{}

	if filter.PlaceID > 0 {
		conditions = append(conditions, "place_id = ?")
		args = append(args, filter.PlaceID)
	}
	if filter.StartTime > 0 {
		conditions = append(conditions, "entry_time >= ?")
		args = append(args, filter.StartTime)
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "entry_time <= ?")
		args = append(args, filter.EndTime)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM visits"
	if len(conditions) > 0 {
		countQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count visits: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 100
	}
	if filter.PageSize > 1000 {
		filter.PageSize = 1000
	}

	offset := (filter.Page - 1) * filter.PageSize
	query += " ORDER BY entry_time DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query visits: %w", err)
	}
	defer rows.Close()

	visits, err := scanVisits(rows)
	if err != nil {
		return nil, 0, err
	}
	return visits, total, nil
}

func scanVisitRow(row *sql.Row) (*models.Visit, error) {
	var v models.Visit
	var exit sql.NullInt64
	err := row.Scan(&v.ID, &v.PlaceID, &v.EntryTime, &exit, &v.DurationSeconds, &v.Confidence, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if exit.Valid {
		v.ExitTime = exit.Int64
	}
	return &v, nil
}

func scanVisits(rows *sql.Rows) ([]models.Visit, error) {
	var visits []models.Visit
	for rows.Next() {
		var v models.Visit
		var exit sql.NullInt64
		if err := rows.Scan(&v.ID, &v.PlaceID, &v.EntryTime, &exit, &v.DurationSeconds, &v.Confidence, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		if exit.Valid {
			v.ExitTime = exit.Int64
		}
		visits = append(visits, v)
	}
	return visits, nil
}
