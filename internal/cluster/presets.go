package cluster

import (
	"fmt"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// Preset identifies a family of sweeps and the files it is written to.
type Preset string

const (
	PresetDefault Preset = "default"
	PresetOptimal Preset = "optimal"
)

// Sweep names one k-means sweep and its feature columns.
type Sweep struct {
	Name    string
	Columns []string
}

var allMeasureColumns = []string{
	"TEMP", "MIN", "MAX", "DEWP", "WDSP", "MXSPD",
	"FOG", "RAIN", "SNOW", "HAIL", "THUN",
}

// DefaultSweeps are the sweeps written to Clusters.csv.
var DefaultSweeps = []Sweep{
	{Name: "Cluster_TEMP", Columns: []string{"TEMP"}},
	{Name: "Cluster_TEMP+", Columns: []string{"TEMP", "MIN", "MAX", "DEWP"}},
	{Name: "Cluster_WIND", Columns: []string{"WDSP", "MXSPD"}},
	{Name: "Cluster_FRSHT", Columns: []string{"FOG", "RAIN", "SNOW", "HAIL", "THUN"}},
	{Name: "Cluster_ALL", Columns: allMeasureColumns},
	{Name: "Cluster_ALL+GEO", Columns: append(append([]string{}, allMeasureColumns...), ColumnElevation, ColumnLatitude, ColumnLongitude)},
}

// OptimalWeights emphasise temperature and rain over wind and rare events.
var OptimalWeights = map[string]float64{
	"TEMP": 3, "MIN": 2.5, "MAX": 2.5, "DEWP": 2, "WDSP": 1.5, "MXSPD": 1.5,
	"FOG": 1, "RAIN": 2, "SNOW": 1, "HAIL": 1, "THUN": 1.5,
	ColumnElevation: 1, ColumnLatitude: 1, ColumnLongitude: 1,
}

// optimalColumns lists OptimalWeights keys in a stable order.
var optimalColumns = append(append([]string{}, allMeasureColumns...), ColumnElevation, ColumnLatitude, ColumnLongitude)

// Result is the output of a preset: the merged labels and the k-scores.
type Result struct {
	Table  *Table
	Scores *Scores
}

// Request parameterises the presets.
type Request struct {
	Facts    []domain.Fact
	Stations []domain.Station
	Country  string
	KMin     int
	KMax     int
	Profile  Profile
	// OnFit is called after each sweep; nil is allowed.
	OnFit func(name string)
}

// CreateClusters runs DefaultSweeps on one unweighted handler.
func CreateClusters(req Request) (Result, error) {
	h, err := NewHandler(req.Facts, req.Stations, Options{Country: req.Country, Profile: req.Profile})
	if err != nil {
		return Result{}, fmt.Errorf("create clusters: %w", err)
	}
	sets := make([]*Assignment, 0, len(DefaultSweeps))
	for _, s := range DefaultSweeps {
		a, err := h.GetClusters(s.Name, s.Columns, req.KMin, req.KMax)
		if err != nil {
			return Result{}, fmt.Errorf("create clusters: %w", err)
		}
		if req.OnFit != nil {
			req.OnFit(s.Name)
		}
		sets = append(sets, a)
	}
	table, err := MergeAssignments(sets...)
	if err != nil {
		return Result{}, fmt.Errorf("create clusters: %w", err)
	}
	return Result{Table: table, Scores: h.Scores()}, nil
}

// CreateOptimalCluster runs a single sweep over every column weighted by
// OptimalWeights.
func CreateOptimalCluster(req Request) (Result, error) {
	h, err := NewHandler(req.Facts, req.Stations, Options{
		Country: req.Country,
		Weights: OptimalWeights,
		Profile: req.Profile,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create optimal cluster: %w", err)
	}
	a, err := h.GetClusters("Cluster_ALL", optimalColumns, req.KMin, req.KMax)
	if err != nil {
		return Result{}, fmt.Errorf("create optimal cluster: %w", err)
	}
	if req.OnFit != nil {
		req.OnFit(a.Name)
	}
	table, err := MergeAssignments(a)
	if err != nil {
		return Result{}, fmt.Errorf("create optimal cluster: %w", err)
	}
	return Result{Table: table, Scores: h.Scores()}, nil
}
