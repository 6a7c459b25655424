package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Geocoder attaches a human-readable address to coordinates. The pipeline
// depends on it abstractly and treats every call as best-effort; core
// correctness never depends on it succeeding.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// NoopGeocoder is the default when no geocoding backend is configured.
type NoopGeocoder struct{}

// ReverseGeocode returns an empty address.
func (NoopGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	return "", nil
}

// HTTPGeocoder resolves addresses against a Nominatim-compatible endpoint.
type HTTPGeocoder struct {
	client *resty.Client
}

// NewHTTPGeocoder creates a geocoder for the given base URL.
func NewHTTPGeocoder(baseURL string) *HTTPGeocoder {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(5*time.Second).
		SetHeader("User-Agent", "voyager-backend")
	return &HTTPGeocoder{client: client}
}

type reverseGeocodeResponse struct {
	DisplayName string `json:"display_name"`
}

// ReverseGeocode looks up the display name for the coordinates.
func (g *HTTPGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	var result reverseGeocodeResponse

	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":    fmt.Sprintf("%f", lat),
			"lon":    fmt.Sprintf("%f", lon),
			"format": "jsonv2",
		}).
		SetResult(&result).
		Get("/reverse")
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("reverse geocode returned status %d", resp.StatusCode())
	}

	return result.DisplayName, nil
}
