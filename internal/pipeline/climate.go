package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/immo-climat/internal/adapter/noaa"
	"github.com/couchcryptid/immo-climat/internal/cluster"
	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

// DailyReader streams the daily records of one GSOD year.
type DailyReader interface {
	ReadYear(ctx context.Context, year int, fn func(domain.DailyRecord)) (noaa.Stats, error)
}

// FactLoader writes the monthly fact table.
type FactLoader interface {
	LoadFacts(ctx context.Context, facts []domain.Fact) error
}

// StationLoader writes the station dimension.
type StationLoader interface {
	LoadStations(ctx context.Context, stations []domain.Station) error
}

// ClusterLoader writes the labels and k-scores of a cluster preset.
type ClusterLoader interface {
	LoadClusters(ctx context.Context, preset cluster.Preset, res cluster.Result) error
}

// ClimateSinks lists the destinations of each climate table.
type ClimateSinks struct {
	Facts    []FactLoader
	Stations []StationLoader
	Clusters []ClusterLoader
}

// ClimateOptions parameterises a ClimateJob.
type ClimateOptions struct {
	BeginYear int
	EndYear   int
	// Concurrency bounds the years read in parallel; zero means unbounded.
	Concurrency int
	// GeocodeCountry restricts reverse geocoding to one country name.
	GeocodeCountry string
	// Presets run after the tables are loaded; none skips clustering.
	Presets []cluster.Preset
	Cluster cluster.Request
}

// ClimateJob turns GSOD archives into the monthly fact table, the station
// dimension and the k-means cluster tables.
type ClimateJob struct {
	reader   DailyReader
	geocoder domain.Geocoder
	sinks    ClimateSinks
	opts     ClimateOptions
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewClimateJob creates a ClimateJob. geocoder may be nil.
func NewClimateJob(reader DailyReader, geocoder domain.Geocoder, sinks ClimateSinks, opts ClimateOptions,
	logger *slog.Logger, metrics *observability.Metrics) *ClimateJob {
	return &ClimateJob{
		reader:   reader,
		geocoder: geocoder,
		sinks:    sinks,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Name implements Job.
func (j *ClimateJob) Name() string { return "climate" }

// Run implements Job.
func (j *ClimateJob) Run(ctx context.Context) error {
	monthly, err := j.extract(ctx)
	if err != nil {
		return err
	}

	facts, stations := j.transform(monthly)
	stations = j.geocode(ctx, stations)

	if err := j.load(ctx, facts, stations); err != nil {
		return err
	}
	return j.clusters(ctx, facts, stations)
}

// Tables runs extraction and transformation only and returns the fact and
// station tables without geocoding or loading them.
func (j *ClimateJob) Tables(ctx context.Context) ([]domain.Fact, []domain.Station, error) {
	monthly, err := j.extract(ctx)
	if err != nil {
		return nil, nil, err
	}
	facts, stations := j.transform(monthly)
	return facts, stations, nil
}

// extract reads every year concurrently and aggregates each to monthly rows.
func (j *ClimateJob) extract(ctx context.Context) ([]domain.MonthlyRecord, error) {
	if j.opts.BeginYear > j.opts.EndYear {
		return nil, fmt.Errorf("extract climate: begin year %d after end year %d", j.opts.BeginYear, j.opts.EndYear)
	}
	years := make([][]domain.MonthlyRecord, j.opts.EndYear-j.opts.BeginYear+1)

	g, gctx := errgroup.WithContext(ctx)
	if j.opts.Concurrency > 0 {
		g.SetLimit(j.opts.Concurrency)
	}
	for i := range years {
		year := j.opts.BeginYear + i
		g.Go(func() error {
			start := time.Now()
			var daily []domain.DailyRecord
			stats, err := j.reader.ReadYear(gctx, year, func(r domain.DailyRecord) {
				daily = append(daily, r)
			})
			if err != nil {
				return fmt.Errorf("extract climate %d: %w", year, err)
			}
			j.metrics.ObserveStage("gsod_read", stats.Rows, stats.Kept, time.Since(start).Seconds())

			start = time.Now()
			years[i] = domain.AggregateMonthly(daily)
			j.metrics.ObserveStage("aggregate_monthly", len(daily), len(years[i]), time.Since(start).Seconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slices.Concat(years...), nil
}

func (j *ClimateJob) transform(monthly []domain.MonthlyRecord) ([]domain.Fact, []domain.Station) {
	start := time.Now()
	reconciled := domain.ReconcileStations(monthly)
	facts, stations := domain.SplitFactDimension(reconciled)
	j.metrics.ObserveStage("reconcile_stations", len(monthly), len(reconciled), time.Since(start).Seconds())
	j.logger.Info("climate tables built", "facts", len(facts), "stations", len(stations))
	return facts, stations
}

func (j *ClimateJob) geocode(ctx context.Context, stations []domain.Station) []domain.Station {
	if j.geocoder == nil {
		return stations
	}
	start := time.Now()
	enriched := 0
	for i, st := range stations {
		if j.opts.GeocodeCountry != "" && st.Country != j.opts.GeocodeCountry {
			continue
		}
		stations[i] = domain.EnrichStationWithGeocoding(ctx, st, j.geocoder, j.logger)
		if stations[i].GeoSource == domain.GeoSourceReverse {
			enriched++
		}
	}
	j.metrics.ObserveStage("geocode", len(stations), len(stations), time.Since(start).Seconds())
	j.logger.Info("stations geocoded", "enriched", enriched, "stations", len(stations))
	return stations
}

func (j *ClimateJob) load(ctx context.Context, facts []domain.Fact, stations []domain.Station) error {
	for _, l := range j.sinks.Facts {
		if err := l.LoadFacts(ctx, facts); err != nil {
			return fmt.Errorf("load facts: %w", err)
		}
	}
	for _, l := range j.sinks.Stations {
		if err := l.LoadStations(ctx, stations); err != nil {
			return fmt.Errorf("load stations: %w", err)
		}
	}
	return nil
}

func (j *ClimateJob) clusters(ctx context.Context, facts []domain.Fact, stations []domain.Station) error {
	for _, preset := range j.opts.Presets {
		res, err := RunPreset(preset, facts, stations, j.opts.Cluster, j.metrics)
		if errors.Is(err, cluster.ErrTooFewStations) {
			j.logger.Warn("clustering skipped", "preset", preset, "error", err)
			continue
		}
		if err != nil {
			return err
		}
		for _, l := range j.sinks.Clusters {
			if err := l.LoadClusters(ctx, preset, res); err != nil {
				return fmt.Errorf("load clusters %s: %w", preset, err)
			}
		}
	}
	return nil
}

// RunPreset runs the sweeps of one cluster preset, counting each fit.
func RunPreset(preset cluster.Preset, facts []domain.Fact, stations []domain.Station,
	req cluster.Request, metrics *observability.Metrics) (cluster.Result, error) {
	req.Facts = facts
	req.Stations = stations
	req.OnFit = func(name string) { metrics.ClusterFits.WithLabelValues(name).Inc() }

	start := time.Now()
	var (
		res cluster.Result
		err error
	)
	switch preset {
	case cluster.PresetDefault:
		res, err = cluster.CreateClusters(req)
	case cluster.PresetOptimal:
		res, err = cluster.CreateOptimalCluster(req)
	default:
		return cluster.Result{}, fmt.Errorf("run preset: unknown preset %q", preset)
	}
	if err != nil {
		return cluster.Result{}, err
	}
	metrics.StageDuration.WithLabelValues("cluster_" + string(preset)).Observe(time.Since(start).Seconds())
	return res, nil
}
