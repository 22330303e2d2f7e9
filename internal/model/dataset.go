package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// Feature names, in matrix column order.
var (
	TreeFeatures   = []string{"surface_reelle_bati", "nombre_pieces_principales", "code_commune"}
	LinearFeatures = []string{"surface_reelle_bati", "nombre_pieces_principales", "2019_median"}
)

// LinearPriceYear is the yearly département median used as a linear feature.
const LinearPriceYear = 2019

// ErrNoSamples is returned when cleaning leaves nothing to train on.
var ErrNoSamples = errors.New("no usable samples")

// Dataset is a feature matrix with its targets.
type Dataset struct {
	X        *mat.Dense
	Y        []float64
	Features []string
}

// usable drops rows with a missing value and overseas départements.
func usable(s domain.Sale) bool {
	for _, v := range []float64{s.Value, s.Surface, s.Rooms, s.Lon, s.Lat, s.PriceM2} {
		if math.IsNaN(v) {
			return false
		}
	}
	if s.Departement == "" || s.Commune == "" || s.Postcode == "" {
		return false
	}
	return !domain.IsOverseas(s.Departement)
}

// TreeDataset builds (surface, rooms, encoded commune) -> value.
func TreeDataset(sales []domain.Sale) (Dataset, error) {
	var rows []float64
	var y []float64
	for _, s := range sales {
		if !usable(s) {
			continue
		}
		commune, err := EncodeSaleCommune(s.Departement, s.Commune)
		if err != nil {
			return Dataset{}, fmt.Errorf("build tree dataset: %w", err)
		}
		rows = append(rows, s.Surface, s.Rooms, float64(commune))
		y = append(y, s.Value)
	}
	if len(y) == 0 {
		return Dataset{}, fmt.Errorf("build tree dataset: %w", ErrNoSamples)
	}
	return Dataset{
		X:        mat.NewDense(len(y), len(TreeFeatures), rows),
		Y:        y,
		Features: TreeFeatures,
	}, nil
}

// EncodeSaleCommune encodes a sale's commune for the tree. Corsican
// communes are recognised by their département since some extracts store
// them without the letter.
func EncodeSaleCommune(departement, commune string) (int, error) {
	switch departement {
	case "2A", "2B":
		if len(commune) < 3 {
			return 0, fmt.Errorf("%w: %q", domain.ErrInvalidCommuneCode, commune)
		}
		return domain.EncodeCommuneCode(departement + commune[len(commune)-3:])
	}
	return domain.EncodeCommuneCode(commune)
}

// LinearDataset builds (surface, rooms, département median) -> value. Sales
// in départements without a median for LinearPriceYear are dropped.
func LinearDataset(sales []domain.Sale, prices *domain.PriceTable) (Dataset, error) {
	var rows []float64
	var y []float64
	for _, s := range sales {
		if !usable(s) {
			continue
		}
		p, ok := prices.Lookup(s.Departement, LinearPriceYear)
		if !ok || math.IsNaN(p.Median) {
			continue
		}
		rows = append(rows, s.Surface, s.Rooms, p.Median)
		y = append(y, s.Value)
	}
	if len(y) == 0 {
		return Dataset{}, fmt.Errorf("build linear dataset: %w", ErrNoSamples)
	}
	return Dataset{
		X:        mat.NewDense(len(y), len(LinearFeatures), rows),
		Y:        y,
		Features: LinearFeatures,
	}, nil
}
