package domain

import (
	"cmp"
	"math"
	"slices"
)

// MinDaysPerMonth is the number of days with a temperature reading a month
// needs to be kept.
const MinDaysPerMonth = 25

// MinMonthsPerStation is the number of monthly rows a station needs after
// reconciliation to be kept.
const MinMonthsPerStation = 6

type aggKind int

const (
	aggMean aggKind = iota
	aggMax
	aggMin
	aggSum
)

// Daily values collapse per station: flags and precipitation are counted or
// totalled over the month.
var dailyAggs = [NumMeasures]aggKind{
	MeasureTemp: aggMean, MeasureMax: aggMax, MeasureMin: aggMin,
	MeasureDewp: aggMean, MeasureWdsp: aggMean, MeasureMxspd: aggMax,
	MeasureSndp: aggSum, MeasurePrcp: aggSum,
	MeasureFog: aggSum, MeasureRain: aggSum, MeasureSnow: aggSum,
	MeasureHail: aggSum, MeasureThun: aggSum,
}

// Monthly rows of the same place are averaged, not summed, so a station
// reporting under two identifiers does not double its totals.
var mergeAggs = [NumMeasures]aggKind{
	MeasureTemp: aggMean, MeasureMax: aggMax, MeasureMin: aggMin,
	MeasureDewp: aggMean, MeasureWdsp: aggMean, MeasureMxspd: aggMax,
	MeasureSndp: aggMean, MeasurePrcp: aggMean,
	MeasureFog: aggMean, MeasureRain: aggMean, MeasureSnow: aggMean,
	MeasureHail: aggMean, MeasureThun: aggMean,
}

// accumulator folds values while skipping NaN.
type accumulator struct {
	sum   float64
	count int
	max   float64
	min   float64
}

func (a *accumulator) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	if a.count == 0 {
		a.max, a.min = v, v
	} else {
		a.max = math.Max(a.max, v)
		a.min = math.Min(a.min, v)
	}
	a.sum += v
	a.count++
}

// result applies the aggregation. Mean, max and min of nothing are NaN; a sum
// of nothing is 0.
func (a *accumulator) result(kind aggKind) float64 {
	if kind == aggSum {
		return a.sum
	}
	if a.count == 0 {
		return math.NaN()
	}
	switch kind {
	case aggMax:
		return a.max
	case aggMin:
		return a.min
	default:
		return a.sum / float64(a.count)
	}
}

func aggregateMeasures(rows []Measures, kinds [NumMeasures]aggKind) Measures {
	var accs [NumMeasures]accumulator
	for _, r := range rows {
		for i, v := range r {
			accs[i].add(v)
		}
	}
	var out Measures
	for i := range out {
		out[i] = accs[i].result(kinds[i])
	}
	return out
}

// groupKey holds the grouping columns of one stage. Fields unused by a stage
// stay zero so a single comparison orders every stage.
type groupKey struct {
	month   Month
	station int64
	name    string
	country string
	lat     float64
	lon     float64
}

func compareKeys(a, b groupKey) int {
	return cmp.Or(
		cmp.Compare(a.month, b.month),
		cmp.Compare(a.station, b.station),
		cmp.Compare(a.name, b.name),
		cmp.Compare(a.country, b.country),
		cmp.Compare(a.lat, b.lat),
		cmp.Compare(a.lon, b.lon),
	)
}

// groupBy partitions items by key, keeping input order inside each group and
// returning groups sorted by key.
func groupBy[T any](items []T, key func(T) groupKey) [][]T {
	index := make(map[groupKey]int)
	var keys []groupKey
	var groups [][]T
	for _, it := range items {
		k := key(it)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			keys = append(keys, k)
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], it)
	}

	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int { return compareKeys(keys[a], keys[b]) })

	sorted := make([][]T, len(groups))
	for i, o := range order {
		sorted[i] = groups[o]
	}
	return sorted
}

// identity tracks the last non-missing value of each identity column.
type identity struct {
	station   int64
	name      string
	country   string
	lat       float64
	lon       float64
	elevation float64
}

func (id *identity) observe(station int64, name, country string, lat, lon, elev float64) {
	if station != 0 {
		id.station = station
	}
	if name != "" {
		id.name = name
	}
	if country != "" {
		id.country = country
	}
	if !math.IsNaN(lat) {
		id.lat = lat
	}
	if !math.IsNaN(lon) {
		id.lon = lon
	}
	if !math.IsNaN(elev) {
		id.elevation = elev
	}
}

// AggregateMonthly turns one year of daily records into monthly rows in three
// passes: per (month, station), then per (month, name, country) to merge
// identifier changes, then per (month, lat, lon) to merge renames. Months with
// fewer than MinDaysPerMonth temperature readings are dropped.
func AggregateMonthly(records []DailyRecord) []MonthlyRecord {
	byStation := groupBy(records, func(r DailyRecord) groupKey {
		return groupKey{month: MonthOf(r.Date), station: r.Station}
	})

	stage1 := make([]MonthlyRecord, 0, len(byStation))
	for _, g := range byStation {
		var id identity
		measures := make([]Measures, len(g))
		days := 0
		for i, r := range g {
			id.observe(r.Station, r.Name, r.Country, r.Lat, r.Lon, r.Elevation)
			measures[i] = r.Measures
			if !math.IsNaN(r.Measures[MeasureTemp]) {
				days++
			}
		}
		stage1 = append(stage1, MonthlyRecord{
			Month:            MonthOf(g[0].Date),
			Station:          id.station,
			Name:             id.name,
			Country:          id.country,
			Lat:              id.lat,
			Lon:              id.lon,
			Elevation:        id.elevation,
			DaysWithMeasures: days,
			Measures:         aggregateMeasures(measures, dailyAggs),
		})
	}

	stage2 := mergeMonthly(stage1, func(r MonthlyRecord) groupKey {
		return groupKey{month: r.Month, name: r.Name, country: r.Country}
	})
	stage3 := mergeMonthly(stage2, func(r MonthlyRecord) groupKey {
		return groupKey{month: r.Month, lat: r.Lat, lon: r.Lon}
	})

	out := stage3[:0]
	for _, r := range stage3 {
		if r.DaysWithMeasures >= MinDaysPerMonth {
			out = append(out, r)
		}
	}
	return out
}

// mergeMonthly collapses monthly rows sharing a key. Identity columns take the
// last value, day counts add up, and measures follow mergeAggs.
func mergeMonthly(rows []MonthlyRecord, key func(MonthlyRecord) groupKey) []MonthlyRecord {
	groups := groupBy(rows, key)
	out := make([]MonthlyRecord, 0, len(groups))
	for _, g := range groups {
		var id identity
		measures := make([]Measures, len(g))
		days := 0
		for i, r := range g {
			id.observe(r.Station, r.Name, r.Country, r.Lat, r.Lon, r.Elevation)
			measures[i] = r.Measures
			days += r.DaysWithMeasures
		}
		out = append(out, MonthlyRecord{
			Month:            g[0].Month,
			Station:          id.station,
			Name:             id.name,
			Country:          id.country,
			Lat:              id.lat,
			Lon:              id.lon,
			Elevation:        id.elevation,
			DaysWithMeasures: days,
			Measures:         aggregateMeasures(measures, mergeAggs),
		})
	}
	return out
}

// ReconcileStations rewrites identity columns across years so that one
// physical station keeps one identity. It applies, in order, the latest
// values per station identifier, per (name, country) and per coordinates.
// Stations left with fewer than MinMonthsPerStation rows are dropped.
// Input order matters: later rows win, so pass years in ascending order.
func ReconcileStations(rows []MonthlyRecord) []MonthlyRecord {
	out := slices.Clone(rows)

	reconcile(out, func(r MonthlyRecord) groupKey {
		return groupKey{station: r.Station}
	}, func(r *MonthlyRecord, id identity) {
		r.Name, r.Country, r.Lat, r.Lon, r.Elevation = id.name, id.country, id.lat, id.lon, id.elevation
	})
	reconcile(out, func(r MonthlyRecord) groupKey {
		return groupKey{name: r.Name, country: r.Country}
	}, func(r *MonthlyRecord, id identity) {
		r.Station, r.Lat, r.Lon, r.Elevation = id.station, id.lat, id.lon, id.elevation
	})
	reconcile(out, func(r MonthlyRecord) groupKey {
		return groupKey{lat: r.Lat, lon: r.Lon}
	}, func(r *MonthlyRecord, id identity) {
		r.Name, r.Country, r.Station, r.Elevation = id.name, id.country, id.station, id.elevation
	})

	months := make(map[int64]int)
	for _, r := range out {
		months[r.Station]++
	}
	return slices.DeleteFunc(out, func(r MonthlyRecord) bool {
		return months[r.Station] < MinMonthsPerStation
	})
}

func reconcile(rows []MonthlyRecord, key func(MonthlyRecord) groupKey, apply func(*MonthlyRecord, identity)) {
	latest := make(map[groupKey]*identity)
	for _, r := range rows {
		k := key(r)
		id, ok := latest[k]
		if !ok {
			id = &identity{lat: math.NaN(), lon: math.NaN(), elevation: math.NaN()}
			latest[k] = id
		}
		id.observe(r.Station, r.Name, r.Country, r.Lat, r.Lon, r.Elevation)
	}
	for i := range rows {
		apply(&rows[i], *latest[key(rows[i])])
	}
}

// SplitFactDimension separates monthly rows into the station dimension, one
// row per station in order of first appearance, and the fact table.
func SplitFactDimension(rows []MonthlyRecord) ([]Fact, []Station) {
	facts := make([]Fact, 0, len(rows))
	seen := make(map[int64]bool)
	var stations []Station
	for _, r := range rows {
		facts = append(facts, Fact{Month: r.Month, Station: r.Station, Measures: r.Measures})
		if seen[r.Station] {
			continue
		}
		seen[r.Station] = true
		stations = append(stations, Station{
			Station:   r.Station,
			Name:      r.Name,
			Country:   r.Country,
			Lat:       r.Lat,
			Lon:       r.Lon,
			Elevation: r.Elevation,
		})
	}
	return facts, stations
}
