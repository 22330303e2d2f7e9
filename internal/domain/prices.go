package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

// DepartementPrice summarises price per square metre in one département.
type DepartementPrice struct {
	Departement string
	Median      float64
	Decile1     float64
	Decile9     float64
}

// DepartementPrices computes median and first/ninth deciles of PriceM2 per
// département, sorted by département code.
func DepartementPrices(sales []Sale) []DepartementPrice {
	byDep := make(map[string][]float64)
	for _, s := range sales {
		if math.IsNaN(s.PriceM2) {
			continue
		}
		byDep[s.Departement] = append(byDep[s.Departement], s.PriceM2)
	}

	deps := make([]string, 0, len(byDep))
	for d := range byDep {
		deps = append(deps, d)
	}
	slices.Sort(deps)

	out := make([]DepartementPrice, 0, len(deps))
	for _, d := range deps {
		xs := byDep[d]
		slices.Sort(xs)
		out = append(out, DepartementPrice{
			Departement: d,
			Median:      Quantile(xs, 0.5),
			Decile1:     Quantile(xs, 0.1),
			Decile9:     Quantile(xs, 0.9),
		})
	}
	return out
}

// Quantile returns the p-quantile of sorted data, interpolating linearly
// between the closest ranks at position p*(n-1). Empty input yields NaN.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// PriceTable is the wide yearly price table keyed by département.
type PriceTable struct {
	Years []int
	rows  map[string]map[int]DepartementPrice
}

// MergeYearlyPrices outer joins per-year département prices.
func MergeYearlyPrices(byYear map[int][]DepartementPrice) *PriceTable {
	t := &PriceTable{rows: make(map[string]map[int]DepartementPrice)}
	for year, prices := range byYear {
		t.Years = append(t.Years, year)
		for _, p := range prices {
			if t.rows[p.Departement] == nil {
				t.rows[p.Departement] = make(map[int]DepartementPrice)
			}
			t.rows[p.Departement][year] = p
		}
	}
	slices.Sort(t.Years)
	return t
}

// Departements returns the département codes in ascending order.
func (t *PriceTable) Departements() []string {
	out := make([]string, 0, len(t.rows))
	for d := range t.rows {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Lookup returns the prices of a département for one year.
func (t *PriceTable) Lookup(departement string, year int) (DepartementPrice, bool) {
	p, ok := t.rows[departement][year]
	return p, ok
}

// Header returns the CSV header: code_departement, then
// {year}_median, {year}_decile_1, {year}_decile_9 per year.
func (t *PriceTable) Header() []string {
	h := []string{"code_departement"}
	for _, y := range t.Years {
		h = append(h,
			fmt.Sprintf("%d_median", y),
			fmt.Sprintf("%d_decile_1", y),
			fmt.Sprintf("%d_decile_9", y),
		)
	}
	return h
}

// Records renders the table body. Missing years are empty cells.
func (t *PriceTable) Records() [][]string {
	var out [][]string
	for _, d := range t.Departements() {
		rec := []string{d}
		for _, y := range t.Years {
			p, ok := t.rows[d][y]
			if !ok {
				rec = append(rec, "", "", "")
				continue
			}
			rec = append(rec, formatFloat(p.Median), formatFloat(p.Decile1), formatFloat(p.Decile9))
		}
		out = append(out, rec)
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
