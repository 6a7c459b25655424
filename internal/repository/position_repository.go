package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/OkayAnshul/Voyager-sub006/internal/models"
)

// PositionRepository handles database operations for accepted positions
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Insert stores an accepted position and sets its ID
func (r *PositionRepository) Insert(ctx context.Context, p *models.Position) error {
	query := `INSERT INTO positions (latitude, longitude, timestamp, accuracy, speed, altitude, bearing, activity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		p.Latitude, p.Longitude, p.Timestamp, p.Accuracy,
		p.Speed, p.Altitude, p.Bearing, p.Activity,
	)
	if err != nil {
		return fmt.Errorf("failed to insert position: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get position id: %w", err)
	}
	p.ID = id
	return nil
}

// Last returns the most recently accepted position, or nil when none exists
func (r *PositionRepository) Last(ctx context.Context) (*models.Position, error) {
	query := `SELECT id, latitude, longitude, timestamp, accuracy, speed, altitude, bearing, activity
		FROM positions ORDER BY timestamp DESC, id DESC LIMIT 1`

	var p models.Position
	err := r.db.QueryRowContext(ctx, query).Scan(
		&p.ID, &p.Latitude, &p.Longitude, &p.Timestamp, &p.Accuracy,
		&p.Speed, &p.Altitude, &p.Bearing, &p.Activity,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last position: %w", err)
	}
	return &p, nil
}

// Recent returns up to limit most recent positions in ascending time order,
// the window batch detection runs over.
func (r *PositionRepository) Recent(ctx context.Context, limit int) ([]models.Position, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := `SELECT id, latitude, longitude, timestamp, accuracy, speed, altitude, bearing, activity
		FROM (
			SELECT id, latitude, longitude, timestamp, accuracy, speed, altitude, bearing, activity
			FROM positions ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// CountSince counts positions recorded at or after the given timestamp
func (r *PositionRepository) CountSince(ctx context.Context, ts int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM positions WHERE timestamp >= ?", ts).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return count, nil
}

// GetPositions retrieves positions with filtering and pagination
func (r *PositionRepository) GetPositions(ctx context.Context, filter models.PositionFilter) ([]models.Position, int64, error) {
	query := `SELECT id, latitude, longitude, timestamp, accuracy, speed, altitude, bearing, activity
		FROM positions`

	var conditions []string
	var args []interface{}

	if filter.StartTime > 0 {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.StartTime)
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.EndTime)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM positions"
	if len(conditions) > 0 {
		countQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count positions: %w", err)
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
	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositions(rows)
	if err != nil {
		return nil, 0, err
	}
	return positions, total, nil
}

func scanPositions(rows *sql.Rows) ([]models.Position, error) {
	var positions []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(
			&p.ID, &p.Latitude, &p.Longitude, &p.Timestamp, &p.Accuracy,
			&p.Speed, &p.Altitude, &p.Bearing, &p.Activity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, nil
}
