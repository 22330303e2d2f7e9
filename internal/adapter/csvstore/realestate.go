package csvstore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

var salesHeader = []string{
	"date_mutation", "valeur_fonciere", "surface_reelle_bati", "nombre_pieces_principales",
	"surface_terrain", "code_departement", "code_postal", "code_commune",
	"longitude", "latitude", "prix_m2",
}

var priceColumn = regexp.MustCompile(`^(\d{4})_(median|decile_1|decile_9)$`)

// WriteSales writes cleaned sales to name.
func (s *Store) WriteSales(_ context.Context, name string, sales []domain.Sale) error {
	records := make([][]string, len(sales))
	for i, sale := range sales {
		records[i] = []string{
			sale.Date.Format(time.DateOnly),
			formatFloat(sale.Value),
			formatFloat(sale.Surface),
			formatFloat(sale.Rooms),
			formatFloat(sale.SurfaceTerrain),
			sale.Departement,
			sale.Postcode,
			sale.Commune,
			formatFloat(sale.Lon),
			formatFloat(sale.Lat),
			formatFloat(sale.PriceM2),
		}
	}
	return s.writeRecords(name, salesHeader, records)
}

// ReadSales loads cleaned sales written by WriteSales.
func (s *Store) ReadSales(name string) ([]domain.Sale, error) {
	df, err := s.readFrame(name, salesHeader...)
	if err != nil {
		return nil, err
	}
	cols := make(map[string][]string, len(salesHeader))
	for _, c := range salesHeader {
		cols[c] = df.Col(c).Records()
	}

	out := make([]domain.Sale, df.Nrow())
	for i := range out {
		sale := domain.Sale{
			Departement: cols["code_departement"][i],
			Postcode:    cols["code_postal"][i],
			Commune:     cols["code_commune"][i],
		}
		if sale.Date, err = time.Parse(time.DateOnly, cols["date_mutation"][i]); err != nil {
			return nil, fmt.Errorf("read %s: row %d: %w", name, i+2, err)
		}
		for col, dst := range map[string]*float64{
			"valeur_fonciere":           &sale.Value,
			"surface_reelle_bati":       &sale.Surface,
			"nombre_pieces_principales": &sale.Rooms,
			"surface_terrain":           &sale.SurfaceTerrain,
			"longitude":                 &sale.Lon,
			"latitude":                  &sale.Lat,
			"prix_m2":                   &sale.PriceM2,
		} {
			if *dst, err = parseFloat(cols[col][i]); err != nil {
				return nil, fmt.Errorf("read %s: row %d: %s: %w", name, i+2, col, err)
			}
		}
		out[i] = sale
	}
	return out, nil
}

// WritePrices writes a wide département price table to name.
func (s *Store) WritePrices(_ context.Context, name string, t *domain.PriceTable) error {
	return s.writeRecords(name, t.Header(), t.Records())
}

// ReadPrices loads a table written by WritePrices. Empty cells mean the
// département had no sale that year.
func (s *Store) ReadPrices(name string) (*domain.PriceTable, error) {
	df, err := s.readFrame(name, "code_departement")
	if err != nil {
		return nil, err
	}
	deps := df.Col("code_departement").Records()

	type cellRef struct {
		year int
		kind string
	}
	refs := make(map[string]cellRef)
	for _, c := range df.Names() {
		m := priceColumn.FindStringSubmatch(c)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		refs[c] = cellRef{year: year, kind: m[2]}
	}

	prices := make(map[int]map[string]*domain.DepartementPrice)
	for col, ref := range refs {
		values := df.Col(col).Records()
		if prices[ref.year] == nil {
			prices[ref.year] = make(map[string]*domain.DepartementPrice)
		}
		for i, raw := range values {
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("read %s: row %d: %s: %w", name, i+2, col, err)
			}
			p := prices[ref.year][deps[i]]
			if p == nil {
				p = &domain.DepartementPrice{Departement: deps[i]}
				prices[ref.year][deps[i]] = p
			}
			switch ref.kind {
			case "median":
				p.Median = v
			case "decile_1":
				p.Decile1 = v
			case "decile_9":
				p.Decile9 = v
			}
		}
	}

	byYear := make(map[int][]domain.DepartementPrice, len(prices))
	for year, byDep := range prices {
		byYear[year] = make([]domain.DepartementPrice, 0, len(byDep))
		for _, p := range byDep {
			byYear[year] = append(byYear[year], *p)
		}
	}
	return domain.MergeYearlyPrices(byYear), nil
}

// SalesFile returns the cleaned sales file of a DVF property type.
func SalesFile(propertyType string) string {
	if propertyType == domain.TypeHouse {
		return HousesFile
	}
	return ApartmentsFile
}

// PricesFile returns the price table file of a DVF property type.
func PricesFile(propertyType string) string {
	if propertyType == domain.TypeHouse {
		return HousePricesFile
	}
	return ApartmentPricesFile
}

// LoadSales writes the cleaned sales of a property type to SalesFile.
func (s *Store) LoadSales(ctx context.Context, propertyType string, sales []domain.Sale) error {
	return s.WriteSales(ctx, SalesFile(propertyType), sales)
}

// LoadPrices writes the price table of a property type to PricesFile.
func (s *Store) LoadPrices(ctx context.Context, propertyType string, t *domain.PriceTable) error {
	return s.WritePrices(ctx, PricesFile(propertyType), t)
}
