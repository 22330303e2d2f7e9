// Package app wires configuration to adapters and jobs for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/immo-climat/internal/adapter/csvstore"
	"github.com/couchcryptid/immo-climat/internal/adapter/dvf"
	"github.com/couchcryptid/immo-climat/internal/adapter/geocache"
	"github.com/couchcryptid/immo-climat/internal/adapter/google"
	"github.com/couchcryptid/immo-climat/internal/adapter/kafka"
	"github.com/couchcryptid/immo-climat/internal/adapter/mapbox"
	"github.com/couchcryptid/immo-climat/internal/adapter/noaa"
	"github.com/couchcryptid/immo-climat/internal/adapter/sqlstore"
	"github.com/couchcryptid/immo-climat/internal/cluster"
	"github.com/couchcryptid/immo-climat/internal/config"
	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/observability"
	"github.com/couchcryptid/immo-climat/internal/pipeline"
)

// NewGeocoder returns the configured provider behind an LRU cache, or nil
// when geocoding is disabled.
func NewGeocoder(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) domain.Geocoder {
	var inner domain.Geocoder
	switch cfg.GeocoderProvider {
	case config.GeocoderMapbox:
		inner = mapbox.NewClient(cfg.MapboxToken, cfg.GeocoderTimeout, metrics, logger)
	case config.GeocoderGoogle:
		inner = google.NewClient(cfg.GoogleAPIKey, cfg.GeocoderTimeout, metrics, logger)
	default:
		logger.Info("station geocoding disabled")
		return nil
	}
	logger.Info("station geocoding enabled",
		"provider", cfg.GeocoderProvider,
		"cache_size", cfg.GeocoderCacheSize,
		"timeout", cfg.GeocoderTimeout,
	)
	return geocache.NewCachedGeocoder(inner, cfg.GeocoderCacheSize, metrics)
}

// Sinks holds every open output of the jobs.
type Sinks struct {
	Climate    *csvstore.Store
	RealEstate *csvstore.Store
	DB         *sqlstore.Store
	Kafka      *kafka.Writer // nil unless KAFKA_ENABLED
}

// OpenSinks opens the CSV directories, the database and the optional Kafka writer.
func OpenSinks(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*Sinks, error) {
	db, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN, metrics, logger)
	if err != nil {
		return nil, err
	}
	s := &Sinks{
		Climate:    csvstore.New(cfg.ClimateOutDir, metrics, logger),
		RealEstate: csvstore.New(cfg.RealEstateOutDir, metrics, logger),
		DB:         db,
	}
	if cfg.KafkaEnabled {
		s.Kafka = kafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaClimateTopic, logger)
		logger.Info("kafka sink enabled", "topic", cfg.KafkaClimateTopic, "brokers", cfg.KafkaBrokers)
	}
	return s, nil
}

// Close releases the database and the Kafka writer.
func (s *Sinks) Close() error {
	var errs []error
	if s.Kafka != nil {
		if err := s.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka writer: %w", err))
		}
	}
	if err := s.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}

// CheckReadiness reports whether the database answers.
func (s *Sinks) CheckReadiness(ctx context.Context) error {
	return s.DB.CheckReadiness(ctx)
}

// ClimateSinks lists where the climate tables go.
func (s *Sinks) ClimateSinks() pipeline.ClimateSinks {
	out := pipeline.ClimateSinks{
		Facts:    []pipeline.FactLoader{s.Climate, s.DB},
		Stations: []pipeline.StationLoader{s.Climate, s.DB},
		Clusters: []pipeline.ClusterLoader{s.Climate, s.DB},
	}
	if s.Kafka != nil {
		out.Facts = append(out.Facts, s.Kafka)
	}
	return out
}

// RealEstateSinks lists where the real estate tables go.
func (s *Sinks) RealEstateSinks() pipeline.RealEstateSinks {
	return pipeline.RealEstateSinks{
		Sales:  []pipeline.SalesLoader{s.RealEstate},
		Prices: []pipeline.PriceLoader{s.RealEstate, s.DB},
	}
}

// ClusterRequest builds the k-means parameters from cfg.
func ClusterRequest(cfg *config.Config) cluster.Request {
	return cluster.Request{
		Country: cfg.ClusterCountry,
		KMin:    cfg.ClusterKMin,
		KMax:    cfg.ClusterKMax,
	}
}

// NewClimateJob reads the country list and builds the climate job.
func NewClimateJob(cfg *config.Config, sinks pipeline.ClimateSinks, geocoder domain.Geocoder, presets []cluster.Preset,
	metrics *observability.Metrics, logger *slog.Logger) (*pipeline.ClimateJob, error) {
	countries, err := noaa.LoadCountries(cfg.ClimateCountryList)
	if err != nil {
		return nil, err
	}
	return pipeline.NewClimateJob(
		noaa.NewReader(cfg.ClimateRawDir, countries, logger),
		geocoder,
		sinks,
		pipeline.ClimateOptions{
			BeginYear:      cfg.ClimateBeginYear,
			EndYear:        cfg.ClimateEndYear,
			Concurrency:    4,
			GeocodeCountry: cfg.ClusterCountry,
			Presets:        presets,
			Cluster:        ClusterRequest(cfg),
		},
		logger, metrics,
	), nil
}

// NewRealEstateJob builds the real estate job.
func NewRealEstateJob(cfg *config.Config, sinks pipeline.RealEstateSinks, metrics *observability.Metrics,
	logger *slog.Logger) *pipeline.RealEstateJob {
	return pipeline.NewRealEstateJob(
		dvf.NewReader(cfg.RealEstateRawDir, logger),
		sinks,
		pipeline.RealEstateOptions{
			BeginYear:   cfg.RealEstateBeginYear,
			EndYear:     cfg.RealEstateEndYear,
			Concurrency: 2,
		},
		logger, metrics,
	)
}

// AllReady is ready when every checker is.
type AllReady []sharedobs.ReadinessChecker

// CheckReadiness returns the first failing checker's error.
func (a AllReady) CheckReadiness(ctx context.Context) error {
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
