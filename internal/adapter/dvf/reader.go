// Package dvf reads the yearly "Demandes de valeurs foncières" extracts
// (full{year}.csv.gz) published on data.gouv.fr.
package dvf

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/klauspost/compress/gzip"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// DVF column names.
const (
	colMutationID   = "id_mutation"
	colDate         = "date_mutation"
	colNature       = "nature_mutation"
	colValue        = "valeur_fonciere"
	colType         = "type_local"
	colSurface      = "surface_reelle_bati"
	colRooms        = "nombre_pieces_principales"
	colLand         = "surface_terrain"
	colCommune      = "code_commune"
	colDepartement  = "code_departement"
	colPostcode     = "code_postal"
	colLongitude    = "longitude"
	colLatitude     = "latitude"
	dateLayout      = "2006-01-02"
	missingCellText = "NaN"
)

var columns = []string{
	colNature, colMutationID, colDate, colValue, colType,
	colSurface, colRooms, colLand, colCommune,
	colDepartement, colPostcode, colLongitude, colLatitude,
}

// Codes are kept as text so leading zeros and Corsican 2A/2B survive.
var columnTypes = map[string]series.Type{
	colValue:     series.Float,
	colSurface:   series.Float,
	colRooms:     series.Float,
	colLand:      series.Float,
	colLongitude: series.Float,
	colLatitude:  series.Float,
}

// Reader opens yearly extracts under a directory.
type Reader struct {
	dir    string
	logger *slog.Logger
}

// NewReader creates a DVF reader rooted at dir.
func NewReader(dir string, logger *slog.Logger) *Reader {
	return &Reader{dir: dir, logger: logger}
}

// YearPath returns the extract path for a year.
func (r *Reader) YearPath(year int) string {
	return filepath.Join(r.dir, fmt.Sprintf("full%d.csv.gz", year))
}

// ReadYear loads every transaction of one year.
func (r *Reader) ReadYear(ctx context.Context, year int) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.YearPath(year))
	if err != nil {
		return nil, fmt.Errorf("open dvf %d: %w", year, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open dvf %d: %w", year, err)
	}
	defer gz.Close()

	txs, err := ReadTransactions(gz)
	if err != nil {
		return nil, fmt.Errorf("read dvf %d: %w", year, err)
	}
	r.logger.Info("dvf extract read", "year", year, "transactions", len(txs))
	return txs, nil
}

// ReadTransactions parses an uncompressed DVF CSV.
func ReadTransactions(src io.Reader) ([]domain.Transaction, error) {
	df := dataframe.ReadCSV(src,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(columnTypes),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("load csv: %w", df.Err)
	}
	df = df.Select(columns)
	if df.Err != nil {
		return nil, fmt.Errorf("select columns: %w", df.Err)
	}

	text := func(col string) []string { return df.Col(col).Records() }
	num := func(col string) []float64 { return df.Col(col).Float() }

	ids, dates, natures, types := text(colMutationID), text(colDate), text(colNature), text(colType)
	communes, deps, postcodes := text(colCommune), text(colDepartement), text(colPostcode)
	values, surfaces, rooms, land := num(colValue), num(colSurface), num(colRooms), num(colLand)
	lons, lats := num(colLongitude), num(colLatitude)

	txs := make([]domain.Transaction, df.Nrow())
	for i := range txs {
		date, err := time.Parse(dateLayout, dates[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: parse %s: %w", i+2, colDate, err)
		}
		txs[i] = domain.Transaction{
			MutationID:     ids[i],
			Date:           date,
			Nature:         natures[i],
			Value:          values[i],
			PropertyType:   cell(types[i]),
			Surface:        surfaces[i],
			Rooms:          rooms[i],
			SurfaceTerrain: land[i],
			Commune:        cell(communes[i]),
			Departement:    cell(deps[i]),
			Postcode:       cell(postcodes[i]),
			Lon:            lons[i],
			Lat:            lats[i],
		}
	}
	return txs, nil
}

func cell(s string) string {
	if s == missingCellText {
		return ""
	}
	return s
}
