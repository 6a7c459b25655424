package service

import (
	"context"
	"fmt"
	"log"

	"github.com/OkayAnshul/Voyager-sub006/internal/clustering"
	"github.com/OkayAnshul/Voyager-sub006/internal/config"
	"github.com/OkayAnshul/Voyager-sub006/internal/models"
	"github.com/OkayAnshul/Voyager-sub006/internal/repository"
)

// DetectionService runs batch place detection over the recent position
// window. Both the scheduled path and the manual "run detection now" trigger
// call the same entry point with the same contract.
type DetectionService struct {
	positions *repository.PositionRepository
	places    *repository.PlaceRepository
	geocoder  Geocoder
}

// NewDetectionService creates a detection service. geocoder may be nil.
func NewDetectionService(positions *repository.PositionRepository, places *repository.PlaceRepository, geocoder Geocoder) *DetectionService {
	if geocoder == nil {
		geocoder = NoopGeocoder{}
	}
	return &DetectionService{positions: positions, places: places, geocoder: geocoder}
}

// RunDetection clusters the recent window, persists the surviving candidates
// in one batch, and kicks off best-effort address enrichment for new places.
// Insufficient data yields an empty result, never an error.
func (s *DetectionService) RunDetection(ctx context.Context, cfg config.DetectionConfig) ([]models.PlaceCandidate, error) {
	recent, err := s.positions.Recent(ctx, cfg.DetectionWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent positions: %w", err)
	}

	existing, err := s.places.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load places: %w", err)
	}

	candidates := clustering.DetectPlaces(recent, existing, cfg)
	if len(candidates) == 0 {
		return nil, nil
	}

	created, err := s.places.ApplyCandidates(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to persist detection results: %w", err)
	}

	log.Printf("[Detection] %d candidates from %d positions, %d new places", len(candidates), len(recent), len(created))

	// Enrichment is strictly best-effort and never blocks detection
	for _, p := range created {
		go s.enrich(p)
	}

	return candidates, nil
}

// enrich attaches a reverse-geocoded address to a freshly created place.
// Failures are logged and forgotten.
func (s *DetectionService) enrich(p models.Place) {
	ctx := context.Background()

	address, err := s.geocoder.ReverseGeocode(ctx, p.Latitude, p.Longitude)
	if err != nil || address == "" {
		if err != nil {
			log.Printf("[Detection] Geocoding place %d failed: %v", p.ID, err)
		}
		return
	}

	if err := s.places.UpdateAddress(ctx, p.ID, address); err != nil {
		log.Printf("[Detection] Failed to save address for place %d: %v", p.ID, err)
	}
}
