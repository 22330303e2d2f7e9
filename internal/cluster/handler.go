// Package cluster groups weather stations by climate profile with k-means
// sweeps over a range of k, scoring each fit by inertia and silhouette.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// Per-station columns usable as features next to the climate measures.
const (
	ColumnLatitude  = "LATITUDE"
	ColumnLongitude = "LONGITUDE"
	ColumnElevation = "ELEVATION"
)

var geoColumns = []string{ColumnLatitude, ColumnLongitude, ColumnElevation}

// Profile selects how a station's facts are folded into features.
type Profile int

const (
	// ProfileMonthly averages each measure per calendar month (12 features).
	ProfileMonthly Profile = iota
	// ProfileSeasonal averages each measure per season (4 features), the
	// season of a month being the one its 15th falls in.
	ProfileSeasonal
)

func (p Profile) periods() int {
	if p == ProfileSeasonal {
		return 4
	}
	return 12
}

func (p Profile) period(t time.Time) int {
	if p != ProfileSeasonal {
		return int(t.Month()) - 1
	}
	switch domain.SeasonOf(time.Date(t.Year(), t.Month(), 15, 0, 0, 0, 0, time.UTC)) {
	case domain.SeasonWinter:
		return 0
	case domain.SeasonSpring:
		return 1
	case domain.SeasonSummer:
		return 2
	default:
		return 3
	}
}

// Options configures a Handler.
type Options struct {
	// Country keeps only stations of that country when non-empty.
	Country string
	// Weights multiplies normalised columns by name (measures or geo columns).
	Weights map[string]float64
	Profile Profile
}

// Errors returned by Handler.
var (
	ErrUnknownColumn  = errors.New("unknown column")
	ErrInvalidKRange  = errors.New("invalid k range")
	ErrTooFewStations = errors.New("not enough stations")
)

// Handler holds the normalised per-station feature table. Scores from every
// GetClusters call on the same handler accumulate.
type Handler struct {
	stations []int64
	profile  Profile
	// measures[m][i] holds the per-period means of measure m for station i.
	measures [domain.NumMeasures][][]float64
	geo      map[string][]float64
	scores   *Scores
}

// NewHandler normalises facts and station coordinates to [0, 1], applies
// weights, and builds one profile row per station. Stations lacking a value
// for any measure and period are left out.
func NewHandler(facts []domain.Fact, stations []domain.Station, opts Options) (*Handler, error) {
	for name := range opts.Weights {
		if _, ok := domain.ParseMeasure(name); !ok && !slices.Contains(geoColumns, name) {
			return nil, fmt.Errorf("apply weights: %w: %s", ErrUnknownColumn, name)
		}
	}

	dims := make(map[int64]domain.Station)
	for _, st := range stations {
		if opts.Country != "" && st.Country != opts.Country {
			continue
		}
		if _, dup := dims[st.Station]; !dup {
			dims[st.Station] = st
		}
	}

	var joined []domain.Fact
	for _, f := range facts {
		if _, ok := dims[f.Station]; ok {
			joined = append(joined, f)
		}
	}

	var measureScale [domain.NumMeasures]minMax
	for i := range measureScale {
		measureScale[i] = newMinMax()
	}
	for _, f := range joined {
		for i, v := range f.Measures {
			measureScale[i].observe(v)
		}
	}
	geoScale := map[string]*minMax{}
	for _, c := range geoColumns {
		s := newMinMax()
		geoScale[c] = &s
	}
	for _, st := range dims {
		geoScale[ColumnLatitude].observe(st.Lat)
		geoScale[ColumnLongitude].observe(st.Lon)
		geoScale[ColumnElevation].observe(st.Elevation)
	}

	weight := func(name string) float64 {
		if w, ok := opts.Weights[name]; ok {
			return w
		}
		return 1
	}

	periods := opts.Profile.periods()
	type acc struct{ sum, n [domain.NumMeasures][]float64 }
	accs := make(map[int64]*acc)
	for _, f := range joined {
		t, err := f.Month.Time()
		if err != nil {
			return nil, fmt.Errorf("build profiles: %w", err)
		}
		a, ok := accs[f.Station]
		if !ok {
			a = &acc{}
			for m := range a.sum {
				a.sum[m] = make([]float64, periods)
				a.n[m] = make([]float64, periods)
			}
			accs[f.Station] = a
		}
		p := opts.Profile.period(t)
		for m, v := range f.Measures {
			if math.IsNaN(v) {
				continue
			}
			a.sum[m][p] += measureScale[m].scale(v) * weight(domain.Measure(m).String())
			a.n[m][p]++
		}
	}

	h := &Handler{
		profile: opts.Profile,
		geo:     make(map[string][]float64, len(geoColumns)),
		scores:  NewScores(),
	}
	ids := make([]int64, 0, len(accs))
	for id := range accs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		a := accs[id]
		if slices.ContainsFunc(a.n[:], func(n []float64) bool { return slices.Contains(n, 0) }) {
			continue
		}
		for m := range h.measures {
			row := make([]float64, periods)
			for p := range row {
				row[p] = a.sum[m][p] / a.n[m][p]
			}
			h.measures[m] = append(h.measures[m], row)
		}
		st := dims[id]
		for c, v := range map[string]float64{
			ColumnLatitude:  st.Lat,
			ColumnLongitude: st.Lon,
			ColumnElevation: st.Elevation,
		} {
			h.geo[c] = append(h.geo[c], geoScale[c].scale(v)*weight(c))
		}
		h.stations = append(h.stations, id)
	}
	return h, nil
}

// Stations returns the identifiers of the clustered stations in row order.
func (h *Handler) Stations() []int64 {
	return slices.Clone(h.stations)
}

// Scores returns the accumulated inertia and silhouette table.
func (h *Handler) Scores() *Scores {
	return h.scores
}

// Features builds the feature matrix for the named columns. A geo column
// contributes one feature; a measure contributes one feature per period.
func (h *Handler) Features(columns []string) (*mat.Dense, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("build features: %w: no columns", ErrUnknownColumn)
	}
	var cols [][]float64
	for _, name := range columns {
		if slices.Contains(geoColumns, name) {
			cols = append(cols, h.geo[name])
			continue
		}
		m, ok := domain.ParseMeasure(name)
		if !ok {
			return nil, fmt.Errorf("build features: %w: %s", ErrUnknownColumn, name)
		}
		for p := range h.profile.periods() {
			col := make([]float64, len(h.stations))
			for i := range h.stations {
				col[i] = h.measures[m][i][p]
			}
			cols = append(cols, col)
		}
	}

	n := len(h.stations)
	if n == 0 {
		return nil, fmt.Errorf("build features: %w: no station has a complete profile", ErrTooFewStations)
	}
	x := mat.NewDense(n, len(cols), nil)
	for j, col := range cols {
		x.SetCol(j, col)
	}
	return x, nil
}

// GetClusters fits k-means for every k in [kMin, kMax] on the named columns
// and records the scores under name. Labels are 1-based.
func (h *Handler) GetClusters(name string, columns []string, kMin, kMax int) (*Assignment, error) {
	if kMin < 2 || kMax < kMin {
		return nil, fmt.Errorf("get clusters %s: %w: [%d, %d]", name, ErrInvalidKRange, kMin, kMax)
	}
	x, err := h.Features(columns)
	if err != nil {
		return nil, fmt.Errorf("get clusters %s: %w", name, err)
	}
	if n := len(h.stations); n < kMax+1 {
		return nil, fmt.Errorf("get clusters %s: %w: %d stations for k up to %d", name, ErrTooFewStations, n, kMax)
	}

	out := &Assignment{Name: name, Stations: slices.Clone(h.stations)}
	for k := kMin; k <= kMax; k++ {
		fit, err := KMeans{K: k}.Fit(x)
		if err != nil {
			return nil, fmt.Errorf("get clusters %s k=%d: %w", name, k, err)
		}
		sil, err := Silhouette(x, fit.Labels)
		if err != nil {
			// Identical rows can collapse a fit to a single label.
			sil = math.NaN()
		}
		labels := make([]int, len(fit.Labels))
		for i, l := range fit.Labels {
			labels[i] = l + 1
		}
		out.Ks = append(out.Ks, k)
		out.Labels = append(out.Labels, labels)
		h.scores.Add(name, k, fit.Inertia, sil)
	}
	return out, nil
}

type minMax struct{ min, max float64 }

func newMinMax() minMax {
	return minMax{min: math.Inf(1), max: math.Inf(-1)}
}

func (s *minMax) observe(v float64) {
	if math.IsNaN(v) {
		return
	}
	s.min = math.Min(s.min, v)
	s.max = math.Max(s.max, v)
}

// scale maps v to [0, 1]. A constant column maps to 0.
func (s minMax) scale(v float64) float64 {
	span := s.max - s.min
	if span == 0 || math.IsInf(span, 0) {
		return 0
	}
	return (v - s.min) / span
}
