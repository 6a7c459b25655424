package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/OkayAnshul/Voyager-sub006/internal/database"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
)

// PlaceRepository handles database operations for places
type PlaceRepository struct {
	db *sql.DB
}

// NewPlaceRepository creates a new place repository
func NewPlaceRepository(db *sql.DB) *PlaceRepository {
	return &PlaceRepository{db: db}
}

const placeColumns = `id, latitude, longitude, radius_meters, category, name, address,
	visit_count, total_time_seconds, last_visit_time, confidence, created_at, updated_at`

// Insert stores a new place and sets its ID
func (r *PlaceRepository) Insert(ctx context.Context, p *models.Place) error {
	query := `INSERT INTO places (latitude, longitude, radius_meters, category, name, address, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		p.Latitude, p.Longitude, p.RadiusMeters, p.Category, p.Name, p.Address, p.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to insert place: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get place id: %w", err)
	}
	p.ID = id
	return nil
}

// GetByID retrieves a place by ID, nil when absent
func (r *PlaceRepository) GetByID(ctx context.Context, id int64) (*models.Place, error) {
	query := "SELECT " + placeColumns + " FROM places WHERE id = ?"

	var p models.Place
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Latitude, &p.Longitude, &p.RadiusMeters, &p.Category, &p.Name, &p.Address,
		&p.VisitCount, &p.TotalTimeSeconds, &p.LastVisitTime, &p.Confidence, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get place: %w", err)
	}
	return &p, nil
}

// Exists reports whether a place with the given ID exists
func (r *PlaceRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM places WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check place existence: %w", err)
	}
	return n > 0, nil
}

// GetAll returns every place, the working set for radius matching
func (r *PlaceRepository) GetAll(ctx context.Context) ([]models.Place, error) {
	query := "SELECT " + placeColumns + " FROM places ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	return scanPlaces(rows)
}

// GetPlaces retrieves places with filtering and pagination
func (r *PlaceRepository) GetPlaces(ctx context.Context, filter models.PlaceFilter) ([]models.Place, int64, error) {
	query := "SELECT " + placeColumns + " FROM places"

	var conditions []string
	var args []interface{}

	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.MinConfidence > 0 {
		conditions = append(conditions, "confidence >= ?")
		args = append(args, filter.MinConfidence)
	}
	if filter.MinVisits > 0 {
		conditions = append(conditions, "visit_count >= ?")
		args = append(args, filter.MinVisits)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM places"
	if len(conditions) > 0 {
		countQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count places: %w", err)
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
	query += " ORDER BY visit_count DESC, id LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	places, err := scanPlaces(rows)
	if err != nil {
		return nil, 0, err
	}
	return places, total, nil
}

// ApplyVisitStats credits a completed visit to the place's counters
func (r *PlaceRepository) ApplyVisitStats(ctx context.Context, placeID, newVisits, durationDelta, lastVisit int64, confidence float64) error {
	query := `UPDATE places SET
		visit_count = visit_count + ?,
		total_time_seconds = total_time_seconds + ?,
		last_visit_time = ?,
		confidence = ?,
		updated_at = strftime('%s','now')
		WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, newVisits, durationDelta, lastVisit, confidence, placeID)
	if err != nil {
		return fmt.Errorf("failed to update place stats: %w", err)
	}
	return nil
}

// UpdateDetection refreshes centroid, radius, category and confidence after
// a batch detection re-observed an existing place
func (r *PlaceRepository) UpdateDetection(ctx context.Context, p *models.Place) error {
	query := `UPDATE places SET
		latitude = ?, longitude = ?, radius_meters = ?,
		category = CASE WHEN category = 'UNKNOWN' THEN ? ELSE category END,
		confidence = MAX(confidence, ?),
		updated_at = strftime('%s','now')
		WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query,
		p.Latitude, p.Longitude, p.RadiusMeters, p.Category, p.Confidence, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update place detection: %w", err)
	}
	return nil
}

// ApplyCandidates persists a batch of detection results in one transaction,
// inserting new places and refreshing matched ones. A cancelled context
// rolls the whole batch back, leaving no partial writes. Returns the newly
// created places with their IDs set.
func (r *PlaceRepository) ApplyCandidates(ctx context.Context, candidates []models.PlaceCandidate) ([]models.Place, error) {
	var created []models.Place

	err := database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		for _, cand := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}

			if cand.MatchedPlaceID != 0 {
				_, err := tx.ExecContext(ctx, `UPDATE places SET
						latitude = ?, longitude = ?, radius_meters = ?,
						category = CASE WHEN category = 'UNKNOWN' THEN ? ELSE category END,
						confidence = MAX(confidence, ?),
						updated_at = strftime('%s','now')
						WHERE id = ?`,
					cand.Place.Latitude, cand.Place.Longitude, cand.Place.RadiusMeters,
					cand.Place.Category, cand.Place.Confidence, cand.MatchedPlaceID,
				)
				if err != nil {
					return fmt.Errorf("failed to refresh place %d: %w", cand.MatchedPlaceID, err)
				}
				continue
			}

			res, err := tx.ExecContext(ctx, `INSERT INTO places
					(latitude, longitude, radius_meters, category, confidence)
					VALUES (?, ?, ?, ?, ?)`,
				cand.Place.Latitude, cand.Place.Longitude, cand.Place.RadiusMeters,
				cand.Place.Category, cand.Place.Confidence,
			)
			if err != nil {
				return fmt.Errorf("failed to insert detected place: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get place id: %w", err)
			}

			p := cand.Place
			p.ID = id
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateMeta sets the user-facing name and category
func (r *PlaceRepository) UpdateMeta(ctx context.Context, id int64, name, category string) error {
	query := `UPDATE places SET name = ?, category = ?, updated_at = strftime('%s','now') WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, name, category, id)
	if err != nil {
		return fmt.Errorf("failed to update place: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateAddress attaches a geocoded address, best effort
func (r *PlaceRepository) UpdateAddress(ctx context.Context, id int64, address string) error {
	query := `UPDATE places SET address = ?, updated_at = strftime('%s','now') WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, address, id); err != nil {
		return fmt.Errorf("failed to update place address: %w", err)
	}
	return nil
}

// Delete removes a place; its visits cascade. Only explicit user action
// reaches this.
func (r *PlaceRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM places WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete place: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanPlaces(rows *sql.Rows) ([]models.Place, error) {
	var places []models.Place
	for rows.Next() {
		var p models.Place
		if err := rows.Scan(
			&p.ID, &p.Latitude, &p.Longitude, &p.RadiusMeters, &p.Category, &p.Name, &p.Address,
			&p.VisitCount, &p.TotalTimeSeconds, &p.LastVisitTime, &p.Confidence, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, p)
	}
	return places, nil
}
