package domain

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Row rejection reasons returned by DailyParser.Parse. Callers count and skip
// these; any other error is a malformed file.
var (
	ErrHeaderRow       = errors.New("repeated header row")
	ErrIncompleteRow   = errors.New("row has empty fields")
	ErrUnknownCountry  = errors.New("country not in country list")
	ErrOutsideArea     = errors.New("station outside the study area")
	ErrMalformedRow    = errors.New("malformed row")
	ErrMissingColumn   = errors.New("missing column")
	errNameWithoutCode = errors.New("name has no country code")
)

// Latitude bounds of the study area, exclusive.
const (
	minLatitude = 35.0
	maxLatitude = 72.0
)

// Portuguese islands (Azores, Madeira) sit west of this longitude.
const portugalIslandsLon = -15.0

var requiredColumns = []string{
	"DATE", "LATITUDE", "LONGITUDE", "ELEVATION", "NAME",
	"TEMP", "DEWP", "MAX", "MIN", "WDSP", "MXSPD", "PRCP", "SNDP", "FRSHTT",
}

// DailyParser converts GSOD CSV rows into DailyRecords. It is bound to one
// header because column order differs between archive vintages.
type DailyParser struct {
	cols      map[string]int
	width     int
	countries map[string]string
}

// NewDailyParser indexes the header. The first column is always the station
// identifier whatever its name. countries maps FIPS codes to country names.
func NewDailyParser(header []string, countries map[string]string) (*DailyParser, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("index header: %w: STATION", ErrMissingColumn)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	cols["STATION"] = 0
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("index header: %w: %s", ErrMissingColumn, c)
		}
	}
	return &DailyParser{cols: cols, width: len(header), countries: countries}, nil
}

// Parse cleans one row: sentinel values, unit conversion, country and area
// filtering, and FRSHTT flag decoding.
func (p *DailyParser) Parse(row []string) (DailyRecord, error) {
	if p.field(row, "DATE") == "DATE" {
		return DailyRecord{}, ErrHeaderRow
	}
	if len(row) < p.width {
		return DailyRecord{}, ErrIncompleteRow
	}
	// Attribute columns hold a single space when unflagged; only truly
	// empty fields count as missing.
	if slices.Contains(row, "") {
		return DailyRecord{}, ErrIncompleteRow
	}

	var rec DailyRecord
	var err error

	if rec.Station, err = strconv.ParseInt(p.field(row, "STATION"), 10, 64); err != nil {
		return DailyRecord{}, fmt.Errorf("%w: station: %v", ErrMalformedRow, err)
	}
	if rec.Date, err = time.Parse("2006-01-02", p.field(row, "DATE")); err != nil {
		return DailyRecord{}, fmt.Errorf("%w: date: %v", ErrMalformedRow, err)
	}

	name, code, err := splitStationName(p.field(row, "NAME"))
	if err != nil {
		return DailyRecord{}, ErrUnknownCountry
	}
	country, ok := p.countries[code]
	if !ok {
		return DailyRecord{}, ErrUnknownCountry
	}
	rec.Name, rec.Country = name, country

	for _, c := range []struct {
		col string
		dst *float64
	}{
		{"LATITUDE", &rec.Lat},
		{"LONGITUDE", &rec.Lon},
		{"ELEVATION", &rec.Elevation},
	} {
		if *c.dst, err = p.float(row, c.col); err != nil {
			return DailyRecord{}, err
		}
	}
	if rec.Lat <= minLatitude || rec.Lat >= maxLatitude {
		return DailyRecord{}, ErrOutsideArea
	}
	if rec.Country == "Portugal" && rec.Lon < portugalIslandsLon {
		return DailyRecord{}, ErrOutsideArea
	}

	if err := p.parseMeasures(row, &rec.Measures); err != nil {
		return DailyRecord{}, err
	}
	return rec, nil
}

func (p *DailyParser) parseMeasures(row []string, m *Measures) error {
	for _, c := range []struct {
		col      string
		measure  Measure
		sentinel float64
		convert  func(float64) float64
	}{
		{"TEMP", MeasureTemp, 9999.9, fahrenheitToCelsius},
		{"MAX", MeasureMax, 9999.9, fahrenheitToCelsius},
		{"MIN", MeasureMin, 9999.9, fahrenheitToCelsius},
		{"DEWP", MeasureDewp, 9999.9, fahrenheitToCelsius},
		{"WDSP", MeasureWdsp, 999.9, knotsToKmh},
		{"MXSPD", MeasureMxspd, 999.9, knotsToKmh},
	} {
		v, err := p.float(row, c.col)
		if err != nil {
			return err
		}
		if isSentinel(v, c.sentinel) {
			m[c.measure] = math.NaN()
			continue
		}
		m[c.measure] = c.convert(v)
	}

	sndp, err := p.float(row, "SNDP")
	if err != nil {
		return err
	}
	if isSentinel(sndp, 999.9) {
		sndp = 0
	}
	m[MeasureSndp] = sndp * 2.54

	prcp, err := p.float(row, "PRCP")
	if err != nil {
		return err
	}
	// The documented sentinel is 99.99; older extracts carry 99.9.
	if isSentinel(prcp, 99.99) || isSentinel(prcp, 99.9) {
		prcp = 0
	}
	m[MeasurePrcp] = prcp * 0.254

	flags, err := parseFRSHTT(p.field(row, "FRSHTT"))
	if err != nil {
		return err
	}
	for i, f := range flags {
		m[MeasureFog+Measure(i)] = f
	}
	return nil
}

func (p *DailyParser) field(row []string, col string) string {
	i := p.cols[col]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// float parses a numeric field, tolerating the trailing flag letters and
// asterisks some GSOD extracts append to MAX, MIN and PRCP.
func (p *DailyParser) float(row []string, col string) (float64, error) {
	s := strings.TrimRight(p.field(row, col), "*ABCDEFGHI")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedRow, strings.ToLower(col), err)
	}
	return v, nil
}

// splitStationName splits "PARIS-ORLY, FR" on its first ", ".
func splitStationName(s string) (name, code string, err error) {
	name, code, ok := strings.Cut(s, ", ")
	if !ok {
		return "", "", errNameWithoutCode
	}
	return name, code, nil
}

// parseFRSHTT decodes Fog, Rain, Snow, Hail and Thunder. Leading zeros are
// often lost upstream so the string is left padded to six digits.
func parseFRSHTT(s string) ([5]float64, error) {
	var out [5]float64
	if len(s) > 6 {
		return out, fmt.Errorf("%w: frshtt %q", ErrMalformedRow, s)
	}
	s = strings.Repeat("0", 6-len(s)) + s
	for i := range out {
		switch s[i] {
		case '0':
		case '1':
			out[i] = 1
		default:
			return out, fmt.Errorf("%w: frshtt %q", ErrMalformedRow, s)
		}
	}
	return out, nil
}

func fahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

func knotsToKmh(k float64) float64 { return k * 1.852 }

func isSentinel(v, sentinel float64) bool {
	return math.Abs(v-sentinel) < 1e-6
}
