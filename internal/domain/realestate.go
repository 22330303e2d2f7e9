package domain

import (
	"math"
	"strings"
	"time"
)

// DVF values used when preparing sales.
const (
	NatureSale        = "Vente"
	TypeApartment     = "Appartement"
	TypeHouse         = "Maison"
	minPricePerM2     = 500.0
	maxPricePerM2     = 20000.0
	minLivingSurface  = 9.0
	departementDigits = 2
)

// Transaction is one DVF row. Missing numeric values are NaN.
type Transaction struct {
	MutationID     string
	Date           time.Time
	Nature         string
	Value          float64
	PropertyType   string
	Surface        float64
	Rooms          float64
	SurfaceTerrain float64
	Commune        string
	Departement    string
	Postcode       string
	Lon            float64
	Lat            float64
}

// Sale is a cleaned single-lot sale with its price per square metre.
type Sale struct {
	Date           time.Time
	Value          float64
	Surface        float64
	Rooms          float64
	SurfaceTerrain float64 // NaN for apartments
	Departement    string
	Postcode       string
	Commune        string
	Lon            float64
	Lat            float64
	PriceM2        float64
}

// PrepareApartments keeps single-lot apartment sales without land.
func PrepareApartments(txs []Transaction) []Sale {
	return prepareSales(txs, TypeApartment, func(t Transaction) bool {
		return math.IsNaN(t.SurfaceTerrain)
	})
}

// PrepareHouses keeps single-lot house sales. Land surface is carried over.
func PrepareHouses(txs []Transaction) []Sale {
	return prepareSales(txs, TypeHouse, func(Transaction) bool { return true })
}

// prepareSales drops every mutation that covers more than one lot, since its
// value cannot be attributed to a single property, then filters on type and
// plausible price per square metre.
func prepareSales(txs []Transaction, propertyType string, keep func(Transaction) bool) []Sale {
	lots := make(map[string]int)
	for _, t := range txs {
		if t.Nature == NatureSale {
			lots[t.MutationID]++
		}
	}

	var out []Sale
	for _, t := range txs {
		if t.Nature != NatureSale || lots[t.MutationID] != 1 {
			continue
		}
		if t.PropertyType != propertyType || !keep(t) {
			continue
		}
		priceM2 := t.Value / t.Surface
		if math.IsNaN(priceM2) || priceM2 <= minPricePerM2 || priceM2 >= maxPricePerM2 {
			continue
		}
		if !(t.Surface >= minLivingSurface) {
			continue
		}
		s := Sale{
			Date:           t.Date,
			Value:          t.Value,
			Surface:        t.Surface,
			Rooms:          t.Rooms,
			SurfaceTerrain: math.NaN(),
			Departement:    PadDepartement(t.Departement),
			Postcode:       t.Postcode,
			Commune:        t.Commune,
			Lon:            t.Lon,
			Lat:            t.Lat,
			PriceM2:        priceM2,
		}
		if propertyType == TypeHouse {
			s.SurfaceTerrain = t.SurfaceTerrain
		}
		out = append(out, s)
	}
	return out
}

// PadDepartement left pads numeric département codes to two characters.
func PadDepartement(code string) string {
	if len(code) >= departementDigits {
		return code
	}
	return strings.Repeat("0", departementDigits-len(code)) + code
}
