package csvstore

import (
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/immo-climat/internal/cluster"
	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "out"), observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func readFile(t *testing.T, s *Store, name string) string {
	t.Helper()
	data, err := os.ReadFile(s.Path(name))
	require.NoError(t, err)
	return string(data)
}

func TestFacts_WriteRead(t *testing.T) {
	s := newTestStore(t)
	m := domain.NaNMeasures()
	m[domain.MeasureTemp] = 4.25
	m[domain.MeasurePrcp] = 0
	m[domain.MeasureFog] = 0.5
	facts := []domain.Fact{
		{Month: "2019-01", Station: 7149099999, Measures: m},
		{Month: "2019-02", Station: 7149099999, Measures: domain.NaNMeasures()},
	}

	require.NoError(t, s.LoadFacts(context.Background(), facts))

	lines := strings.Split(strings.TrimSpace(readFile(t, s, FactFile)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "DATE,STATION,TEMP,MAX,MIN,DEWP,WDSP,MXSPD,SNDP,PRCP,FOG,RAIN,SNOW,HAIL,THUN", lines[0])
	assert.Equal(t, "2019-01,7149099999,4.25,,,,,,,0,0.5,,,,", lines[1])

	got, err := s.ReadFacts()
	require.NoError(t, err)
	if diff := cmp.Diff(facts, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 2, testutil.ToFloat64(s.metrics.SinkRows.WithLabelValues(sinkName, FactFile)), 0)
}

func TestStations_WriteRead(t *testing.T) {
	s := newTestStore(t)
	stations := []domain.Station{
		{Station: 7149099999, Name: "PARIS-ORLY", Country: "France", Lat: 48.716667, Lon: 2.383333, Elevation: 89, Departement: "94"},
		{Station: 7761099999, Name: "AJACCIO", Country: "France", Lat: 41.923, Lon: 8.803, Elevation: 5.2, Departement: "2A"},
	}

	require.NoError(t, s.LoadStations(context.Background(), stations))
	assert.True(t, strings.HasPrefix(readFile(t, s, StationFile),
		"STATION,NAME,COUNTRY,LATITUDE,LONGITUDE,ELEVATION,DEPARTEMENT\n"))

	got, err := s.ReadStations()
	require.NoError(t, err)
	assert.Equal(t, stations, got)
}

func TestStations_Empty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.LoadStations(context.Background(), nil))
	assert.Equal(t, "STATION,NAME,COUNTRY,LATITUDE,LONGITUDE,ELEVATION,DEPARTEMENT\n", readFile(t, s, StationFile))
}

func TestReadFacts_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ReadFacts()
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadClusters(t *testing.T) {
	s := newTestStore(t)
	scores := cluster.NewScores()
	scores.Add("Cluster_TEMP", 2, 10.5, 0.61)
	scores.Add("Cluster_TEMP", 3, 6.25, math.NaN())
	res := cluster.Result{
		Table: &cluster.Table{
			Names: []string{"Cluster_TEMP"},
			Rows: []cluster.TableRow{
				{Station: 1, K: 2, Labels: []int{1}},
				{Station: 2, K: 2, Labels: []int{2}},
			},
		},
		Scores: scores,
	}

	require.NoError(t, s.LoadClusters(context.Background(), cluster.PresetDefault, res))
	assert.Equal(t, "STATION,K,Cluster_TEMP\n1,2,1\n2,2,2\n", readFile(t, s, ClustersFile))
	assert.Equal(t, "K,Cluster_TEMP_inertia,Cluster_TEMP_silhouette\n2,10.5,0.61\n3,6.25,\n", readFile(t, s, ScoresFile))

	require.NoError(t, s.LoadClusters(context.Background(), cluster.PresetOptimal, res))
	assert.FileExists(t, s.Path(OptimalClustersFile))
	assert.FileExists(t, s.Path(OptimalScoresFile))
}

func TestSales_WriteRead(t *testing.T) {
	s := newTestStore(t)
	sales := []domain.Sale{
		{
			Date: time.Date(2019, 1, 4, 0, 0, 0, 0, time.UTC), Value: 109000, Surface: 57, Rooms: 3,
			SurfaceTerrain: math.NaN(), Departement: "01", Postcode: "01000", Commune: "01053",
			Lon: 5.226, Lat: 46.204, PriceM2: 109000.0 / 57,
		},
		{
			Date: time.Date(2019, 1, 7, 0, 0, 0, 0, time.UTC), Value: 254000, Surface: 120, Rooms: 5,
			SurfaceTerrain: 540, Departement: "2A", Postcode: "20000", Commune: "2A004",
			Lon: 8.738, Lat: 41.919, PriceM2: 254000.0 / 120,
		},
	}

	require.NoError(t, s.WriteSales(context.Background(), ApartmentsFile, sales))

	got, err := s.ReadSales(ApartmentsFile)
	require.NoError(t, err)
	if diff := cmp.Diff(sales, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("sales mismatch (-want +got):\n%s", diff)
	}
}

func TestPrices_WriteRead(t *testing.T) {
	s := newTestStore(t)
	table := domain.MergeYearlyPrices(map[int][]domain.DepartementPrice{
		2019: {
			{Departement: "01", Median: 1800, Decile1: 1100, Decile9: 2600},
			{Departement: "75", Median: 10100, Decile1: 8000, Decile9: 13000.5},
		},
		2020: {
			{Departement: "75", Median: 10500, Decile1: 8200, Decile9: 13500},
		},
	})

	require.NoError(t, s.WritePrices(context.Background(), ApartmentPricesFile, table))
	assert.Equal(t,
		"code_departement,2019_median,2019_decile_1,2019_decile_9,2020_median,2020_decile_1,2020_decile_9\n"+
			"01,1800,1100,2600,,,\n"+
			"75,10100,8000,13000.5,10500,8200,13500\n",
		readFile(t, s, ApartmentPricesFile))

	got, err := s.ReadPrices(ApartmentPricesFile)
	require.NoError(t, err)
	assert.Equal(t, []int{2019, 2020}, got.Years)
	assert.Equal(t, []string{"01", "75"}, got.Departements())

	p, ok := got.Lookup("75", 2019)
	require.True(t, ok)
	assert.InDelta(t, 13000.5, p.Decile9, 1e-9)
	_, ok = got.Lookup("01", 2020)
	assert.False(t, ok)
}
