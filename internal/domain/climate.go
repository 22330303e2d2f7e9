package domain

import (
	"fmt"
	"math"
	"time"
)

// Measure indexes one climate variable inside Measures.
type Measure int

// Climate measures, in output column order.
const (
	MeasureTemp Measure = iota
	MeasureMax
	MeasureMin
	MeasureDewp
	MeasureWdsp
	MeasureMxspd
	MeasureSndp
	MeasurePrcp
	MeasureFog
	MeasureRain
	MeasureSnow
	MeasureHail
	MeasureThun
	NumMeasures
)

var measureNames = [NumMeasures]string{
	"TEMP", "MAX", "MIN", "DEWP", "WDSP", "MXSPD", "SNDP", "PRCP",
	"FOG", "RAIN", "SNOW", "HAIL", "THUN",
}

// String returns the column name of the measure.
func (m Measure) String() string {
	if m < 0 || m >= NumMeasures {
		return fmt.Sprintf("Measure(%d)", int(m))
	}
	return measureNames[m]
}

// ParseMeasure looks up a measure by column name.
func ParseMeasure(name string) (Measure, bool) {
	for i, n := range measureNames {
		if n == name {
			return Measure(i), true
		}
	}
	return 0, false
}

// AllMeasures returns every measure in column order.
func AllMeasures() []Measure {
	out := make([]Measure, NumMeasures)
	for i := range out {
		out[i] = Measure(i)
	}
	return out
}

// Measures holds one value per climate measure. NaN marks a missing value.
type Measures [NumMeasures]float64

// NaNMeasures returns a Measures with every value missing.
func NaNMeasures() Measures {
	var m Measures
	for i := range m {
		m[i] = math.NaN()
	}
	return m
}

// Month is a calendar month in "YYYY-MM" form. The string form sorts
// chronologically.
type Month string

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month(t.Format("2006-01"))
}

// Time returns the first day of the month in UTC.
func (m Month) Time() (time.Time, error) {
	t, err := time.Parse("2006-01", string(m))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", string(m), err)
	}
	return t, nil
}

// DailyRecord is one cleaned GSOD observation. Measures are metric; the
// weather flags are 0 or 1.
type DailyRecord struct {
	Date      time.Time
	Station   int64
	Name      string
	Country   string
	Lat       float64
	Lon       float64
	Elevation float64
	Measures  Measures
}

// MonthlyRecord is a monthly summary for one station, before the split into
// fact and dimension rows.
type MonthlyRecord struct {
	Month            Month
	Station          int64
	Name             string
	Country          string
	Lat              float64
	Lon              float64
	Elevation        float64
	DaysWithMeasures int
	Measures         Measures
}

// Station is the weather station dimension.
type Station struct {
	Station          int64   `json:"station"`
	Name             string  `json:"name"`
	Country          string  `json:"country"`
	Lat              float64 `json:"latitude"`
	Lon              float64 `json:"longitude"`
	Elevation        float64 `json:"elevation"`
	Departement      string  `json:"departement,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"`
}

// Fact is one row of the monthly climate fact table.
type Fact struct {
	Month    Month
	Station  int64
	Measures Measures
}

// Season is one of the four astronomical seasons.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// SeasonOf returns the astronomical season for the date:
// spring Mar 20 - Jun 19, summer Jun 20 - Sep 22, autumn Sep 23 - Dec 21.
func SeasonOf(t time.Time) Season {
	md := int(t.Month())*100 + t.Day()
	switch {
	case md >= 320 && md < 620:
		return SeasonSpring
	case md >= 620 && md < 923:
		return SeasonSummer
	case md >= 923 && md < 1222:
		return SeasonAutumn
	default:
		return SeasonWinter
	}
}
