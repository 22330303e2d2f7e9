package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeader = []string{
	"STATION", "DATE", "LATITUDE", "LONGITUDE", "ELEVATION", "NAME",
	"TEMP", "TEMP_ATTRIBUTES", "DEWP", "WDSP", "MXSPD",
	"MAX", "MAX_ATTRIBUTES", "MIN", "PRCP", "SNDP", "FRSHTT",
}

var testCountries = map[string]string{"FR": "France", "PO": "Portugal"}

func testRow(overrides map[string]string) []string {
	values := map[string]string{
		"STATION": "07149099999", "DATE": "2019-01-15", "LATITUDE": "48.716667",
		"LONGITUDE": "2.383333", "ELEVATION": "89.0", "NAME": "PARIS-ORLY, FR",
		"TEMP": "41.0", "TEMP_ATTRIBUTES": " 24", "DEWP": "9999.9", "WDSP": "10.0",
		"MXSPD": "999.9", "MAX": "50.0", "MAX_ATTRIBUTES": " ", "MIN": "32.0*",
		"PRCP": "99.99", "SNDP": "1.0", "FRSHTT": "10000",
	}
	for k, v := range overrides {
		values[k] = v
	}
	row := make([]string, len(testHeader))
	for i, h := range testHeader {
		row[i] = values[h]
	}
	return row
}

func newTestParser(t *testing.T) *DailyParser {
	t.Helper()
	p, err := NewDailyParser(testHeader, testCountries)
	require.NoError(t, err)
	return p
}

func TestDailyParser_Parse(t *testing.T) {
	p := newTestParser(t)

	rec, err := p.Parse(testRow(nil))
	require.NoError(t, err)

	assert.Equal(t, int64(7149099999), rec.Station)
	assert.Equal(t, time.Date(2019, 1, 15, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, "PARIS-ORLY", rec.Name)
	assert.Equal(t, "France", rec.Country)
	assert.InDelta(t, 48.716667, rec.Lat, 1e-9)
	assert.InDelta(t, 89.0, rec.Elevation, 1e-9)

	m := rec.Measures
	assert.InDelta(t, 5.0, m[MeasureTemp], 1e-9)
	assert.InDelta(t, 10.0, m[MeasureMax], 1e-9)
	assert.InDelta(t, 0.0, m[MeasureMin], 1e-9)
	assert.True(t, math.IsNaN(m[MeasureDewp]), "DEWP sentinel should be NaN")
	assert.InDelta(t, 18.52, m[MeasureWdsp], 1e-9)
	assert.True(t, math.IsNaN(m[MeasureMxspd]), "MXSPD sentinel should be NaN")
	assert.Equal(t, 0.0, m[MeasurePrcp])
	assert.InDelta(t, 2.54, m[MeasureSndp], 1e-9)
	assert.Equal(t, 0.0, m[MeasureFog])
	assert.Equal(t, 1.0, m[MeasureRain])
	assert.Equal(t, 0.0, m[MeasureSnow])
}

func TestDailyParser_SnowDepthSentinelIsZero(t *testing.T) {
	p := newTestParser(t)

	rec, err := p.Parse(testRow(map[string]string{"SNDP": "999.9", "PRCP": "0.50"}))
	require.NoError(t, err)

	assert.Equal(t, 0.0, rec.Measures[MeasureSndp])
	assert.InDelta(t, 0.127, rec.Measures[MeasurePrcp], 1e-9)
}

func TestDailyParser_Rejects(t *testing.T) {
	p := newTestParser(t)

	tests := []struct {
		name      string
		overrides map[string]string
		want      error
	}{
		{"repeated header", map[string]string{"DATE": "DATE"}, ErrHeaderRow},
		{"empty field", map[string]string{"WDSP": ""}, ErrIncompleteRow},
		{"unknown country", map[string]string{"NAME": "LONDON, UK"}, ErrUnknownCountry},
		{"no country code", map[string]string{"NAME": "NOWHERE"}, ErrUnknownCountry},
		{"too far south", map[string]string{"LATITUDE": "35.0"}, ErrOutsideArea},
		{"too far north", map[string]string{"LATITUDE": "78.25"}, ErrOutsideArea},
		{"azores", map[string]string{"NAME": "PONTA DELGADA, PO", "LATITUDE": "37.74", "LONGITUDE": "-25.7"}, ErrOutsideArea},
		{"bad number", map[string]string{"TEMP": "warm"}, ErrMalformedRow},
		{"bad date", map[string]string{"DATE": "2019/01/15"}, ErrMalformedRow},
		{"bad flags", map[string]string{"FRSHTT": "1200000"}, ErrMalformedRow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(testRow(tt.overrides))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDailyParser_ShortRow(t *testing.T) {
	p := newTestParser(t)

	_, err := p.Parse([]string{"07149099999", "2019-01-15"})
	assert.ErrorIs(t, err, ErrIncompleteRow)
}

func TestDailyParser_MainlandPortugalKept(t *testing.T) {
	p := newTestParser(t)

	rec, err := p.Parse(testRow(map[string]string{"NAME": "LISBOA, PO", "LATITUDE": "38.77", "LONGITUDE": "-9.13"}))
	require.NoError(t, err)
	assert.Equal(t, "Portugal", rec.Country)
}

func TestNewDailyParser_FirstColumnIsStation(t *testing.T) {
	header := append([]string{"ID"}, testHeader[1:]...)
	p, err := NewDailyParser(header, testCountries)
	require.NoError(t, err)

	rec, err := p.Parse(testRow(nil))
	require.NoError(t, err)
	assert.Equal(t, int64(7149099999), rec.Station)
}

func TestNewDailyParser_MissingColumn(t *testing.T) {
	_, err := NewDailyParser([]string{"STATION", "DATE"}, testCountries)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseFRSHTT(t *testing.T) {
	tests := []struct {
		in   string
		want [5]float64
	}{
		{"0", [5]float64{}},
		{"110000", [5]float64{1, 1, 0, 0, 0}},
		{"1", [5]float64{}},
		{"10", [5]float64{0, 0, 0, 0, 1}},
		{"11111", [5]float64{0, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFRSHTT(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
