// Command genmock writes synthetic raw inputs for local runs and demos: GSOD
// yearly archives with a country list, and DVF yearly extracts. The files
// follow the layouts the readers expect, so the etl service and the immo CLI
// can run end to end without downloading the real datasets.
//
// Usage:
//
//	go run ./cmd/genmock -out data -begin 2018 -end 2020
package main

import (
	"archive/tar"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
)

type station struct {
	id        string
	name      string
	code      string
	lat, lon  float64
	elevation float64
}

// stations spread over mainland France plus two Spanish stations so the
// country filter of the cluster presets has something to drop.
var stations = []station{
	{"07149099999", "PARIS-ORLY", "FR", 48.717, 2.384, 89},
	{"07005099999", "ABBEVILLE", "FR", 50.136, 1.834, 69},
	{"07015099999", "LILLE", "FR", 50.570, 3.097, 47},
	{"07110099999", "BREST", "FR", 48.444, -4.412, 94},
	{"07130099999", "RENNES", "FR", 48.069, -1.734, 36},
	{"07190099999", "STRASBOURG", "FR", 48.549, 7.640, 154},
	{"07222099999", "NANTES", "FR", 47.150, -1.609, 27},
	{"07255099999", "BOURGES", "FR", 47.059, 2.360, 161},
	{"07280099999", "DIJON", "FR", 47.268, 5.088, 219},
	{"07335099999", "POITIERS", "FR", 46.588, 0.307, 123},
	{"07434099999", "LIMOGES", "FR", 45.861, 1.175, 402},
	{"07481099999", "LYON-SAINT EXUPERY", "FR", 45.726, 5.078, 235},
	{"07510099999", "BORDEAUX-MERIGNAC", "FR", 44.831, -0.691, 47},
	{"07630099999", "TOULOUSE-BLAGNAC", "FR", 43.621, 1.379, 151},
	{"07650099999", "MARSEILLE", "FR", 43.437, 5.216, 32},
	{"07690099999", "NICE", "FR", 43.648, 7.209, 4},
	{"07747099999", "PERPIGNAN", "FR", 42.737, 2.873, 48},
	{"08221099999", "MADRID BARAJAS", "SP", 40.467, -3.555, 609},
	{"08181099999", "BARCELONA", "SP", 41.297, 2.078, 4},
}

var countries = map[string]string{"FR": "France", "SP": "Spain"}

type commune struct {
	code, departement, postcode string
	lat, lon, basePriceM2       float64
}

var communes = []commune{
	{"75056", "75", "75001", 48.857, 2.352, 10500},
	{"69123", "69", "69001", 45.764, 4.836, 5000},
	{"13055", "13", "13001", 43.296, 5.370, 3500},
	{"33063", "33", "33000", 44.838, -0.579, 4500},
	{"1053", "1", "01000", 46.205, 5.226, 2100},
	{"2A004", "2A", "20000", 41.919, 8.738, 3600},
	{"59350", "59", "59000", 50.629, 3.057, 3300},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data", "root directory of the generated inputs")
	begin := flag.Int("begin", 2018, "first year")
	end := flag.Int("end", 2020, "last year")
	sales := flag.Int("sales", 2000, "DVF mutations per year")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *begin > *end {
		return fmt.Errorf("-begin %d is after -end %d", *begin, *end)
	}
	rng := rand.New(rand.NewPCG(*seed, *seed))

	climateDir := filepath.Join(*out, "climat")
	if err := writeJSON(filepath.Join(climateDir, "country_list.json"), countries); err != nil {
		return fmt.Errorf("writing country list: %w", err)
	}
	for year := *begin; year <= *end; year++ {
		path := filepath.Join(climateDir, "daily_raw", fmt.Sprintf("%d.tar.gz", year))
		if err := writeGSODYear(path, year, rng); err != nil {
			return fmt.Errorf("writing GSOD %d: %w", year, err)
		}
		log.Printf("wrote %s", path)

		path = filepath.Join(*out, "immobilier", "transactions_raw", fmt.Sprintf("full%d.csv.gz", year))
		if err := writeDVFYear(path, year, *sales, rng); err != nil {
			return fmt.Errorf("writing DVF %d: %w", year, err)
		}
		log.Printf("wrote %s", path)
	}
	return nil
}

var gsodHeader = []string{
	"STATION", "DATE", "LATITUDE", "LONGITUDE", "ELEVATION", "NAME",
	"TEMP", "TEMP_ATTRIBUTES", "DEWP", "WDSP", "MXSPD", "MAX", "MIN", "PRCP", "SNDP", "FRSHTT",
}

// writeGSODYear writes one CSV per station into a gzipped tar, like the NOAA
// yearly archives.
func writeGSODYear(path string, year int, rng *rand.Rand) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, st := range stations {
		body, err := stationCSV(st, year, rng)
		if err != nil {
			return err
		}
		hdr := &tar.Header{
			Name:     st.id + ".csv",
			Mode:     0o644,
			Size:     int64(len(body)),
			ModTime:  time.Date(year+1, time.January, 15, 0, 0, 0, 0, time.UTC),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(body); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return writeGzip(path, buf.Bytes())
}

func stationCSV(st station, year int, rng *rand.Rand) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(gsodHeader); err != nil {
		return nil, err
	}

	// Colder north and east, milder coasts, cooler with altitude.
	meanF := 62 - (st.lat-42)*1.6 - st.elevation/300
	swingF := 14 + (st.lon+5)*0.4
	for d := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC); d.Year() == year; d = d.AddDate(0, 0, 1) {
		season := math.Cos(2 * math.Pi * float64(d.YearDay()-200) / 365)
		temp := meanF + swingF*season + rng.NormFloat64()*3
		rain := rng.Float64() < 0.35-0.1*season
		frshtt := "000000"
		prcp := 0.0
		if rain {
			frshtt = "010000"
			prcp = rng.ExpFloat64() * 0.15
		}
		row := []string{
			st.id,
			d.Format("2006-01-02"),
			strconv.FormatFloat(st.lat, 'f', 3, 64),
			strconv.FormatFloat(st.lon, 'f', 3, 64),
			strconv.FormatFloat(st.elevation, 'f', 1, 64),
			st.name + ", " + st.code,
			f1(temp), " 24",
			f1(temp - 8 - rng.Float64()*4),
			f1(6 + rng.Float64()*6),
			f1(14 + rng.Float64()*10),
			f1(temp + 6 + rng.Float64()*3),
			f1(temp - 6 - rng.Float64()*3),
			strconv.FormatFloat(prcp, 'f', 2, 64),
			"999.9",
			frshtt,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

var dvfHeader = []string{
	"id_mutation", "date_mutation", "numero_disposition", "nature_mutation", "valeur_fonciere",
	"code_postal", "code_commune", "code_departement", "type_local",
	"surface_reelle_bati", "nombre_pieces_principales", "surface_terrain", "longitude", "latitude",
}

func writeDVFYear(path string, year, n int, rng *rand.Rand) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(dvfHeader); err != nil {
		return err
	}
	growth := 1 + 0.03*float64(year-2014)
	for i := range n {
		c := communes[rng.IntN(len(communes))]
		house := rng.Float64() < 0.4
		rooms := 1 + rng.IntN(5)
		surface := float64(12+rooms*18) + rng.Float64()*15
		land := ""
		typ := "Appartement"
		price := c.basePriceM2 * growth
		if house {
			typ = "Maison"
			surface += 30
			land = strconv.Itoa(200 + rng.IntN(1500))
			price *= 0.8
		}
		value := surface * price * (0.8 + rng.Float64()*0.4)
		date := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, rng.IntN(365))
		row := []string{
			fmt.Sprintf("%d-%06d", year, i+1),
			date.Format("2006-01-02"),
			"1",
			"Vente",
			strconv.FormatFloat(math.Round(value), 'f', 0, 64),
			c.postcode, c.code, c.departement, typ,
			strconv.FormatFloat(math.Round(surface), 'f', 0, 64),
			strconv.Itoa(rooms),
			land,
			strconv.FormatFloat(c.lon+rng.NormFloat64()*0.01, 'f', 6, 64),
			strconv.FormatFloat(c.lat+rng.NormFloat64()*0.01, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return writeGzip(path, buf.Bytes())
}

func f1(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

func writeGzip(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
