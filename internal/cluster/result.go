package cluster

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// Assignment is the wide output of one sweep: for each k, one 1-based label
// per station.
type Assignment struct {
	Name     string
	Stations []int64
	Ks       []int
	Labels   [][]int // Labels[ki][si]
}

// Label is one long-format assignment row.
type Label struct {
	Station int64
	K       int
	Cluster int
}

// Melt unpivots the assignment, k-major then station order.
func (a *Assignment) Melt() []Label {
	out := make([]Label, 0, len(a.Ks)*len(a.Stations))
	for ki, k := range a.Ks {
		for si, st := range a.Stations {
			out = append(out, Label{Station: st, K: k, Cluster: a.Labels[ki][si]})
		}
	}
	return out
}

// Table is several melted assignments merged on (station, k).
type Table struct {
	Names []string
	Rows  []TableRow
}

// TableRow holds one label per sweep, in Table.Names order.
type TableRow struct {
	Station int64
	K       int
	Labels  []int
}

// Header returns the CSV header: STATION, K, then one column per sweep.
func (t *Table) Header() []string {
	return append([]string{"STATION", "K"}, t.Names...)
}

// Records renders the table body.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := []string{strconv.FormatInt(r.Station, 10), strconv.Itoa(r.K)}
		for _, l := range r.Labels {
			rec = append(rec, strconv.Itoa(l))
		}
		out = append(out, rec)
	}
	return out
}

type stationK struct {
	station int64
	k       int
}

// MergeAssignments inner joins assignments on (station, k), keeping the row
// order of the first one.
func MergeAssignments(sets ...*Assignment) (*Table, error) {
	if len(sets) == 0 {
		return nil, errors.New("merge assignments: nothing to merge")
	}
	t := &Table{}
	lookups := make([]map[stationK]int, len(sets))
	for i, a := range sets {
		if slices.Contains(t.Names, a.Name) {
			return nil, fmt.Errorf("merge assignments: duplicate name %q", a.Name)
		}
		t.Names = append(t.Names, a.Name)
		lookups[i] = make(map[stationK]int)
		for _, l := range a.Melt() {
			lookups[i][stationK{l.Station, l.K}] = l.Cluster
		}
	}

	for _, l := range sets[0].Melt() {
		row := TableRow{Station: l.Station, K: l.K, Labels: make([]int, 0, len(sets))}
		complete := true
		for _, lookup := range lookups {
			c, ok := lookup[stationK{l.Station, l.K}]
			if !ok {
				complete = false
				break
			}
			row.Labels = append(row.Labels, c)
		}
		if complete {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

type score struct {
	inertia    float64
	silhouette float64
}

// Scores is the k-scores table: per k, inertia and silhouette of each sweep.
type Scores struct {
	names      []string
	byName     map[string]map[int]score
	ComputedAt time.Time
}

// NewScores returns an empty k-scores table.
func NewScores() *Scores {
	return &Scores{byName: make(map[string]map[int]score)}
}

// Add records the inertia and silhouette of sweep name at k.
func (s *Scores) Add(name string, k int, inertia, silhouette float64) {
	if _, ok := s.byName[name]; !ok {
		s.names = append(s.names, name)
		s.byName[name] = make(map[int]score)
	}
	s.byName[name][k] = score{inertia: inertia, silhouette: silhouette}
	s.ComputedAt = domain.Now()
}

// Names returns the sweep names in the order they were run.
func (s *Scores) Names() []string {
	return slices.Clone(s.names)
}

// Ks returns the union of k values over all sweeps, ascending.
func (s *Scores) Ks() []int {
	var ks []int
	for _, byK := range s.byName {
		for k := range byK {
			if !slices.Contains(ks, k) {
				ks = append(ks, k)
			}
		}
	}
	slices.Sort(ks)
	return ks
}

// Get returns the inertia and silhouette of a sweep at k.
func (s *Scores) Get(name string, k int) (inertia, silhouette float64, ok bool) {
	sc, ok := s.byName[name][k]
	return sc.inertia, sc.silhouette, ok
}

// Header returns K then <name>_inertia, <name>_silhouette per sweep.
func (s *Scores) Header() []string {
	h := []string{"K"}
	for _, n := range s.names {
		h = append(h, n+"_inertia", n+"_silhouette")
	}
	return h
}

// Records renders the outer-joined table body. Missing cells are empty.
func (s *Scores) Records() [][]string {
	var out [][]string
	for _, k := range s.Ks() {
		rec := []string{strconv.Itoa(k)}
		for _, n := range s.names {
			sc, ok := s.byName[n][k]
			if !ok {
				rec = append(rec, "", "")
				continue
			}
			rec = append(rec, formatScore(sc.inertia), formatScore(sc.silhouette))
		}
		out = append(out, rec)
	}
	return out
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
