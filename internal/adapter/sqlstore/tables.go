package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/immo-climat/internal/cluster"
	"github.com/couchcryptid/immo-climat/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS climate_station (
		station BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		country TEXT NOT NULL,
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		elevation DOUBLE PRECISION NOT NULL,
		departement TEXT,
		formatted_address TEXT,
		geo_source TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS climate_fact (
		month TEXT NOT NULL,
		station BIGINT NOT NULL,
		` + measureColumnsDDL() + `,
		PRIMARY KEY (month, station)
	)`,
	`CREATE TABLE IF NOT EXISTS cluster_label (
		preset TEXT NOT NULL,
		sweep TEXT NOT NULL,
		station BIGINT NOT NULL,
		k INTEGER NOT NULL,
		label INTEGER NOT NULL,
		PRIMARY KEY (preset, sweep, station, k)
	)`,
	`CREATE TABLE IF NOT EXISTS cluster_score (
		preset TEXT NOT NULL,
		sweep TEXT NOT NULL,
		k INTEGER NOT NULL,
		inertia DOUBLE PRECISION,
		silhouette DOUBLE PRECISION,
		PRIMARY KEY (preset, sweep, k)
	)`,
	`CREATE TABLE IF NOT EXISTS departement_price (
		property_type TEXT NOT NULL,
		departement TEXT NOT NULL,
		year INTEGER NOT NULL,
		median DOUBLE PRECISION NOT NULL,
		decile_1 DOUBLE PRECISION NOT NULL,
		decile_9 DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (property_type, departement, year)
	)`,
}

func measureColumns() []string {
	cols := make([]string, 0, domain.NumMeasures)
	for _, m := range domain.AllMeasures() {
		cols = append(cols, strings.ToLower(m.String()))
	}
	return cols
}

func measureColumnsDDL() string {
	cols := measureColumns()
	for i, c := range cols {
		cols[i] = c + " DOUBLE PRECISION"
	}
	return strings.Join(cols, ",\n\t\t")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func excludedSet(cols []string) string {
	set := make([]string, len(cols))
	for i, c := range cols {
		set[i] = c + " = excluded." + c
	}
	return strings.Join(set, ", ")
}

// nullable maps NaN to SQL NULL.
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// LoadFacts upserts facts on (month, station).
func (s *Store) LoadFacts(ctx context.Context, facts []domain.Fact) error {
	cols := measureColumns()
	query := fmt.Sprintf(
		"INSERT INTO climate_fact (month, station, %s) VALUES (%s) ON CONFLICT (month, station) DO UPDATE SET %s",
		strings.Join(cols, ", "), placeholders(2+len(cols)), excludedSet(cols),
	)
	return s.execBatch(ctx, "climate_fact", query, len(facts), func(i int) []any {
		f := facts[i]
		args := make([]any, 0, 2+len(cols))
		args = append(args, string(f.Month), f.Station)
		for _, v := range f.Measures {
			args = append(args, nullable(v))
		}
		return args
	})
}

// LoadStations upserts the station dimension.
func (s *Store) LoadStations(ctx context.Context, stations []domain.Station) error {
	cols := []string{"name", "country", "latitude", "longitude", "elevation", "departement", "formatted_address", "geo_source"}
	query := fmt.Sprintf(
		"INSERT INTO climate_station (station, %s) VALUES (%s) ON CONFLICT (station) DO UPDATE SET %s",
		strings.Join(cols, ", "), placeholders(1+len(cols)), excludedSet(cols),
	)
	return s.execBatch(ctx, "climate_station", query, len(stations), func(i int) []any {
		st := stations[i]
		return []any{st.Station, st.Name, st.Country, st.Lat, st.Lon, st.Elevation, st.Departement, st.FormattedAddress, st.GeoSource}
	})
}

// LoadClusters replaces the labels and scores of a preset in one transaction.
func (s *Store) LoadClusters(ctx context.Context, preset cluster.Preset, res cluster.Result) error {
	type label struct {
		sweep string
		row   cluster.TableRow
		i     int
	}
	var labels []label
	for _, r := range res.Table.Rows {
		for i, name := range res.Table.Names {
			labels = append(labels, label{sweep: name, row: r, i: i})
		}
	}

	type score struct {
		sweep               string
		k                   int
		inertia, silhouette float64
	}
	var scores []score
	for _, name := range res.Scores.Names() {
		for _, k := range res.Scores.Ks() {
			if in, sil, ok := res.Scores.Get(name, k); ok {
				scores = append(scores, score{name, k, in, sil})
			}
		}
	}

	rows := map[string]int{"cluster_label": len(labels), "cluster_score": len(scores)}
	return s.inTx(ctx, "clusters "+string(preset), func(tx *sql.Tx) error {
		for _, table := range []string{"cluster_label", "cluster_score"} {
			if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM "+table+" WHERE preset = ?"), string(preset)); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		err := s.execRows(ctx, tx, "cluster_label",
			"INSERT INTO cluster_label (preset, sweep, station, k, label) VALUES (?, ?, ?, ?, ?)",
			len(labels), func(i int) []any {
				l := labels[i]
				return []any{string(preset), l.sweep, l.row.Station, l.row.K, l.row.Labels[l.i]}
			})
		if err != nil {
			return err
		}
		return s.execRows(ctx, tx, "cluster_score",
			"INSERT INTO cluster_score (preset, sweep, k, inertia, silhouette) VALUES (?, ?, ?, ?, ?)",
			len(scores), func(i int) []any {
				sc := scores[i]
				return []any{string(preset), sc.sweep, sc.k, nullable(sc.inertia), nullable(sc.silhouette)}
			})
	}, rows)
}

// LoadPrices upserts the département price table of one DVF property type.
func (s *Store) LoadPrices(ctx context.Context, propertyType string, t *domain.PriceTable) error {
	type row struct {
		year int
		p    domain.DepartementPrice
	}
	var rows []row
	for _, d := range t.Departements() {
		for _, y := range t.Years {
			if p, ok := t.Lookup(d, y); ok {
				rows = append(rows, row{y, p})
			}
		}
	}
	cols := []string{"median", "decile_1", "decile_9"}
	query := fmt.Sprintf(
		"INSERT INTO departement_price (property_type, departement, year, %s) VALUES (%s) "+
			"ON CONFLICT (property_type, departement, year) DO UPDATE SET %s",
		strings.Join(cols, ", "), placeholders(6), excludedSet(cols),
	)
	return s.execBatch(ctx, "departement_price", query, len(rows), func(i int) []any {
		r := rows[i]
		return []any{propertyType, r.p.Departement, r.year, r.p.Median, r.p.Decile1, r.p.Decile9}
	})
}

// Facts returns every stored fact ordered by station then month.
func (s *Store) Facts(ctx context.Context) ([]domain.Fact, error) {
	cols := measureColumns()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT month, station, %s FROM climate_fact ORDER BY station, month", strings.Join(cols, ", ")))
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var out []domain.Fact
	vals := make([]sql.NullFloat64, len(cols))
	for rows.Next() {
		var f domain.Fact
		var month string
		dest := []any{&month, &f.Station}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.Month = domain.Month(month)
		for i, v := range vals {
			f.Measures[i] = orNaN(v)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Stations returns the station dimension ordered by station.
func (s *Store) Stations(ctx context.Context) ([]domain.Station, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT station, name, country, latitude, longitude, elevation,
			COALESCE(departement, ''), COALESCE(formatted_address, ''), COALESCE(geo_source, '')
		FROM climate_station ORDER BY station`)
	if err != nil {
		return nil, fmt.Errorf("query stations: %w", err)
	}
	defer rows.Close()

	var out []domain.Station
	for rows.Next() {
		var st domain.Station
		if err := rows.Scan(&st.Station, &st.Name, &st.Country, &st.Lat, &st.Lon, &st.Elevation,
			&st.Departement, &st.FormattedAddress, &st.GeoSource); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Prices rebuilds the price table of one property type.
func (s *Store) Prices(ctx context.Context, propertyType string) (*domain.PriceTable, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT departement, year, median, decile_1, decile_9 FROM departement_price WHERE property_type = ?`),
		propertyType)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	byYear := make(map[int][]domain.DepartementPrice)
	for rows.Next() {
		var p domain.DepartementPrice
		var year int
		if err := rows.Scan(&p.Departement, &year, &p.Median, &p.Decile1, &p.Decile9); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		byYear[year] = append(byYear[year], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domain.MergeYearlyPrices(byYear), nil
}
