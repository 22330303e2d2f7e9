//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.mapbox.com/geocoding/v5/mapbox.places",
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ReverseGeocode_Orly(t *testing.T) {
	c := smokeClient(t)

	// PARIS-ORLY GSOD station.
	result, err := c.ReverseGeocode(context.Background(), 48.716667, 2.383333)
	require.NoError(t, err)

	assert.Equal(t, "94", domain.DepartementFromPostcode(result.Postcode))
	assert.NotEmpty(t, result.FormattedAddress)
}

func TestSmoke_ReverseGeocode_Ajaccio(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ReverseGeocode(context.Background(), 41.923, 8.803)
	require.NoError(t, err)

	assert.Equal(t, "2A", domain.DepartementFromPostcode(result.Postcode))
}

func TestSmoke_ReverseGeocode_OpenSea(t *testing.T) {
	c := smokeClient(t)

	// Bay of Biscay: no postcode, no error.
	result, err := c.ReverseGeocode(context.Background(), 45.5, -5.0)
	require.NoError(t, err)
	assert.Empty(t, result.Postcode)
}
