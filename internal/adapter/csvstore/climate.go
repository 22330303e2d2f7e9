package csvstore

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/go-gota/gota/dataframe"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// stationRow is the StationDIM.csv layout.
type stationRow struct {
	Station     string `dataframe:"STATION,string"`
	Name        string `dataframe:"NAME,string"`
	Country     string `dataframe:"COUNTRY,string"`
	Latitude    string `dataframe:"LATITUDE,string"`
	Longitude   string `dataframe:"LONGITUDE,string"`
	Elevation   string `dataframe:"ELEVATION,string"`
	Departement string `dataframe:"DEPARTEMENT,string"`
}

var stationHeader = []string{"STATION", "NAME", "COUNTRY", "LATITUDE", "LONGITUDE", "ELEVATION", "DEPARTEMENT"}

func factHeader() []string {
	h := []string{"DATE", "STATION"}
	for _, m := range domain.AllMeasures() {
		h = append(h, m.String())
	}
	return h
}

// LoadFacts writes ClimatFACT.csv. Missing measures are empty cells.
func (s *Store) LoadFacts(_ context.Context, facts []domain.Fact) error {
	records := make([][]string, len(facts))
	for i, f := range facts {
		rec := make([]string, 0, 2+domain.NumMeasures)
		rec = append(rec, string(f.Month), strconv.FormatInt(f.Station, 10))
		for _, v := range f.Measures {
			rec = append(rec, formatFloat(v))
		}
		records[i] = rec
	}
	return s.writeRecords(FactFile, factHeader(), records)
}

// LoadStations writes StationDIM.csv.
func (s *Store) LoadStations(_ context.Context, stations []domain.Station) error {
	if len(stations) == 0 {
		return s.writeRecords(StationFile, stationHeader, nil)
	}
	rows := make([]stationRow, len(stations))
	for i, st := range stations {
		rows[i] = stationRow{
			Station:     strconv.FormatInt(st.Station, 10),
			Name:        st.Name,
			Country:     st.Country,
			Latitude:    formatFloat(st.Lat),
			Longitude:   formatFloat(st.Lon),
			Elevation:   formatFloat(st.Elevation),
			Departement: st.Departement,
		}
	}
	return s.writeFrame(StationFile, dataframe.LoadStructs(rows, dataframe.NaNValues(nil)), len(rows))
}

// ReadFacts loads ClimatFACT.csv.
func (s *Store) ReadFacts() ([]domain.Fact, error) {
	df, err := s.readFrame(FactFile, factHeader()...)
	if err != nil {
		return nil, err
	}
	months := df.Col("DATE").Records()
	stations := df.Col("STATION").Records()
	cols := make([][]string, domain.NumMeasures)
	for _, m := range domain.AllMeasures() {
		cols[m] = df.Col(m.String()).Records()
	}

	facts := make([]domain.Fact, df.Nrow())
	for i := range facts {
		st, err := strconv.ParseInt(stations[i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("read %s: row %d: station: %w", FactFile, i+2, err)
		}
		facts[i] = domain.Fact{Month: domain.Month(months[i]), Station: st}
		for m := range cols {
			if facts[i].Measures[m], err = parseFloat(cols[m][i]); err != nil {
				return nil, fmt.Errorf("read %s: row %d: %s: %w", FactFile, i+2, domain.Measure(m), err)
			}
		}
	}
	return facts, nil
}

// ReadStations loads StationDIM.csv. DEPARTEMENT is optional.
func (s *Store) ReadStations() ([]domain.Station, error) {
	df, err := s.readFrame(StationFile, stationHeader[:6]...)
	if err != nil {
		return nil, err
	}
	ids := df.Col("STATION").Records()
	names := df.Col("NAME").Records()
	countries := df.Col("COUNTRY").Records()
	var deps []string
	if slices.Contains(df.Names(), "DEPARTEMENT") {
		deps = df.Col("DEPARTEMENT").Records()
	}
	geo := make([][]string, 3)
	for i, c := range []string{"LATITUDE", "LONGITUDE", "ELEVATION"} {
		geo[i] = df.Col(c).Records()
	}

	out := make([]domain.Station, df.Nrow())
	for i := range out {
		st := domain.Station{Name: names[i], Country: countries[i]}
		if st.Station, err = strconv.ParseInt(ids[i], 10, 64); err != nil {
			return nil, fmt.Errorf("read %s: row %d: station: %w", StationFile, i+2, err)
		}
		for j, dst := range []*float64{&st.Lat, &st.Lon, &st.Elevation} {
			if *dst, err = parseFloat(geo[j][i]); err != nil {
				return nil, fmt.Errorf("read %s: row %d: %w", StationFile, i+2, err)
			}
		}
		if deps != nil {
			st.Departement = deps[i]
		}
		out[i] = st
	}
	return out, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) (float64, error) {
	if s == "" || s == "NaN" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
