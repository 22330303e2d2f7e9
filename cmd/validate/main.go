// Command validate checks the integrity of the tables written by the climate
// and real estate jobs: fact rows reference known stations, cluster labels
// stay within 1..K, k-scores are in range and price deciles bracket the
// median.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -climate-dir data/climat/clean_for_bi \
//	  -realestate-dir data/immobilier/data_clean
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/couchcryptid/immo-climat/internal/adapter/csvstore"
	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	skipped bool
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	climateDir := flag.String("climate-dir", "data/climat/clean_for_bi", "directory of the climate tables")
	realEstateDir := flag.String("realestate-dir", "data/immobilier/data_clean", "directory of the real estate tables")
	flag.Parse()

	if code := run(os.Stdout, *climateDir, *realEstateDir); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, climateDir, realEstateDir string) int {
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	climate := csvstore.New(climateDir, metrics, logger)
	realEstate := csvstore.New(realEstateDir, metrics, logger)

	fmt.Fprintln(w, "=== Immo-Climat Table Validation ===")
	fmt.Fprintln(w)

	facts, err := climate.ReadFacts()
	if err != nil {
		fmt.Fprintf(w, "FATAL: load facts: %v\n", err)
		return 1
	}
	stations, err := climate.ReadStations()
	if err != nil {
		fmt.Fprintf(w, "FATAL: load stations: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateClimateTables(facts, stations),
		validateClusters("Phase 2: Cluster Labels (default)", climate.Path(csvstore.ClustersFile), stations),
		validateScores("Phase 3: K-Scores (default)", climate.Path(csvstore.ScoresFile)),
		validateClusters("Phase 4: Cluster Labels (optimal)", climate.Path(csvstore.OptimalClustersFile), stations),
		validateScores("Phase 5: K-Scores (optimal)", climate.Path(csvstore.OptimalScoresFile)),
		validatePrices("Phase 6: Apartment Prices", realEstate, domain.TypeApartment),
		validatePrices("Phase 7: House Prices", realEstate, domain.TypeHouse),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case p.skipped:
			status = "\033[33mSKIP\033[0m"
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Records: %d facts, %d stations\n", len(facts), len(stations))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Climate Tables ──

func validateClimateTables(facts []domain.Fact, stations []domain.Station) *phase {
	p := &phase{name: "Phase 1: Fact and Station Tables"}
	known := make(map[int64]bool, len(stations))
	for _, st := range stations {
		if known[st.Station] {
			p.errorf("station %d appears twice in %s", st.Station, csvstore.StationFile)
		}
		known[st.Station] = true
	}

	type key struct {
		month   domain.Month
		station int64
	}
	seen := make(map[key]bool, len(facts))
	for i, f := range facts {
		if !known[f.Station] {
			p.errorf("fact row %d: station %d missing from %s", i+2, f.Station, csvstore.StationFile)
		}
		if _, err := f.Month.Time(); err != nil {
			p.errorf("fact row %d: month %q: %v", i+2, f.Month, err)
		}
		k := key{f.Month, f.Station}
		if seen[k] {
			p.errorf("fact row %d: duplicate (%s, %d)", i+2, f.Month, f.Station)
		}
		seen[k] = true
	}
	return p
}

// ── Phases 2 and 4: Cluster Labels ──

func validateClusters(name, path string, stations []domain.Station) *phase {
	p := &phase{name: name}
	header, rows, err := loadCSV(path)
	if errors.Is(err, os.ErrNotExist) {
		p.skipped = true
		return p
	}
	if err != nil {
		p.errorf("load %s: %v", filepath.Base(path), err)
		return p
	}
	if len(header) < 3 || header[0] != "STATION" || header[1] != "K" {
		p.errorf("unexpected header %v", header)
		return p
	}

	known := make(map[string]bool, len(stations))
	for _, st := range stations {
		known[strconv.FormatInt(st.Station, 10)] = true
	}
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		line := i + 2
		if !known[row[0]] {
			p.errorf("line %d: station %s missing from %s", line, row[0], csvstore.StationFile)
		}
		k, err := strconv.Atoi(row[1])
		if err != nil || k < 2 {
			p.errorf("line %d: invalid K %q", line, row[1])
			continue
		}
		if id := row[0] + "|" + row[1]; seen[id] {
			p.errorf("line %d: duplicate (station %s, K %d)", line, row[0], k)
		} else {
			seen[id] = true
		}
		for j, cell := range row[2:] {
			label, err := strconv.Atoi(cell)
			if err != nil || label < 1 || label > k {
				p.errorf("line %d: %s label %q outside 1..%d", line, header[j+2], cell, k)
			}
		}
	}
	return p
}

// ── Phases 3 and 5: K-Scores ──

func validateScores(name, path string) *phase {
	p := &phase{name: name}
	header, rows, err := loadCSV(path)
	if errors.Is(err, os.ErrNotExist) {
		p.skipped = true
		return p
	}
	if err != nil {
		p.errorf("load %s: %v", filepath.Base(path), err)
		return p
	}
	for i, row := range rows {
		for j := 1; j < len(header); j++ {
			if row[j] == "" {
				continue
			}
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				p.errorf("line %d: %s: %v", i+2, header[j], err)
				continue
			}
			switch {
			case strings.HasSuffix(header[j], "_silhouette") && (v < -1 || v > 1):
				p.errorf("line %d: %s %g outside [-1, 1]", i+2, header[j], v)
			case strings.HasSuffix(header[j], "_inertia") && v < 0:
				p.errorf("line %d: %s %g is negative", i+2, header[j], v)
			}
		}
	}
	return p
}

// ── Phases 6 and 7: Price Tables ──

func validatePrices(name string, store *csvstore.Store, propertyType string) *phase {
	p := &phase{name: name}
	table, err := store.ReadPrices(csvstore.PricesFile(propertyType))
	if errors.Is(err, os.ErrNotExist) {
		p.skipped = true
		return p
	}
	if err != nil {
		p.errorf("load prices: %v", err)
		return p
	}
	for _, dep := range table.Departements() {
		for _, y := range table.Years {
			pr, ok := table.Lookup(dep, y)
			if !ok {
				continue
			}
			if math.IsNaN(pr.Median) || pr.Decile1 > pr.Median || pr.Median > pr.Decile9 {
				p.errorf("%s %d: deciles %g..%g do not bracket median %g", dep, y, pr.Decile1, pr.Decile9, pr.Median)
			}
		}
	}

	sales, err := store.ReadSales(csvstore.SalesFile(propertyType))
	if errors.Is(err, os.ErrNotExist) {
		return p
	}
	if err != nil {
		p.errorf("load sales: %v", err)
		return p
	}
	for i, s := range sales {
		if _, ok := table.Lookup(s.Departement, s.Date.Year()); !ok {
			p.errorf("sale row %d: no price for %s in %d", i+2, s.Departement, s.Date.Year())
		}
	}
	return p
}

// ── Data loading ──

func loadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("no header in %s", path)
	}
	return all[0], all[1:], nil
}
