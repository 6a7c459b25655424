package repository

import (
	"context"

	"github.com/OkayAnshul/Voyager-sub006/internal/models"
)

// History bundles the read side of the durable place/visit/position tables
// behind one value. The state store uses it to verify references before a
// commit; the consistency validator audits against it.
type History struct {
	Places    *PlaceRepository
	Visits    *VisitRepository
	Positions *PositionRepository
}

// NewHistory creates the composite history view.
func NewHistory(places *PlaceRepository, visits *VisitRepository, positions *PositionRepository) *History {
	return &History{Places: places, Visits: visits, Positions: positions}
}

// PlaceExists reports whether the place row is still present.
func (h *History) PlaceExists(ctx context.Context, id int64) (bool, error) {
	return h.Places.Exists(ctx, id)
}

// VisitExists reports whether the visit row is still present.
func (h *History) VisitExists(ctx context.Context, id int64) (bool, error) {
	return h.Visits.Exists(ctx, id)
}

// Visit loads a visit row, nil when absent.
func (h *History) Visit(ctx context.Context, id int64) (*models.Visit, error) {
	return h.Visits.GetByID(ctx, id)
}

// OpenVisits returns all open visits, oldest first.
func (h *History) OpenVisits(ctx context.Context) ([]models.Visit, error) {
	return h.Visits.OpenVisits(ctx)
}

// VisitsBetween returns visits overlapping the range.
func (h *History) VisitsBetween(ctx context.Context, from, to int64) ([]models.Visit, error) {
	return h.Visits.VisitsBetween(ctx, from, to)
}

// CountPositionsSince counts positions recorded since the timestamp.
func (h *History) CountPositionsSince(ctx context.Context, ts int64) (int64, error) {
	return h.Positions.CountSince(ctx, ts)
}
