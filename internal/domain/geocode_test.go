package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestEnrichStationWithGeocoding_NilGeocoder(t *testing.T) {
	st := Station{Station: 7149099999, Lat: 48.72, Lon: 2.38}

	result := EnrichStationWithGeocoding(context.Background(), st, nil, discardLogger())

	assert.Equal(t, st, result)
}

func TestEnrichStationWithGeocoding_Reverse(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{
		FormattedAddress: "Orly, Val-de-Marne, France",
		PlaceName:        "Orly",
		Postcode:         "94310",
	}}
	st := Station{Station: 7149099999, Lat: 48.72, Lon: 2.38}

	result := EnrichStationWithGeocoding(context.Background(), st, geo, discardLogger())

	assert.Equal(t, 1, geo.calls)
	assert.Equal(t, "94", result.Departement)
	assert.Equal(t, "Orly, Val-de-Marne, France", result.FormattedAddress)
	assert.Equal(t, GeoSourceReverse, result.GeoSource)
}

func TestEnrichStationWithGeocoding_Error(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("timeout")}
	st := Station{Station: 1, Lat: 43.6, Lon: 1.4}

	result := EnrichStationWithGeocoding(context.Background(), st, geo, discardLogger())

	assert.Empty(t, result.Departement)
	assert.Equal(t, GeoSourceFailed, result.GeoSource)
}

func TestEnrichStationWithGeocoding_OutsideFrance(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{FormattedAddress: "Bruxelles", Postcode: "1000"}}
	st := Station{Station: 2, Lat: 50.9, Lon: 4.5}

	result := EnrichStationWithGeocoding(context.Background(), st, geo, discardLogger())

	assert.Empty(t, result.Departement)
	assert.Equal(t, GeoSourceOriginal, result.GeoSource)
}

func TestEnrichStationWithGeocoding_NoCoordinates(t *testing.T) {
	geo := &mockGeocoder{}

	result := EnrichStationWithGeocoding(context.Background(), Station{Station: 3}, geo, discardLogger())

	assert.Equal(t, 0, geo.calls)
	assert.Equal(t, GeoSourceOriginal, result.GeoSource)
}

func TestDepartementFromPostcode(t *testing.T) {
	tests := []struct {
		postcode string
		want     string
	}{
		{"75008", "75"},
		{"01000", "01"},
		{"20000", "2A"},
		{"20167", "2A"},
		{"20200", "2B"},
		{"20600", "2B"},
		{"97400", "974"},
		{"1000", ""},
		{"00500", ""},
		{"ABCDE", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.postcode, func(t *testing.T) {
			assert.Equal(t, tt.want, DepartementFromPostcode(tt.postcode))
		})
	}
}
