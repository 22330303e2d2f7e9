package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/observability"
)

// TransactionReader loads the DVF transactions of one year.
type TransactionReader interface {
	ReadYear(ctx context.Context, year int) ([]domain.Transaction, error)
}

// SalesLoader writes the cleaned sales of one property type.
type SalesLoader interface {
	LoadSales(ctx context.Context, propertyType string, sales []domain.Sale) error
}

// PriceLoader writes the yearly département price table of one property type.
type PriceLoader interface {
	LoadPrices(ctx context.Context, propertyType string, t *domain.PriceTable) error
}

// RealEstateSinks lists the destinations of the real estate tables.
type RealEstateSinks struct {
	Sales  []SalesLoader
	Prices []PriceLoader
}

// RealEstateOptions parameterises a RealEstateJob.
type RealEstateOptions struct {
	BeginYear   int
	EndYear     int
	Concurrency int
	// PropertyTypes defaults to apartments and houses.
	PropertyTypes []string
}

var preparers = map[string]func([]domain.Transaction) []domain.Sale{
	domain.TypeApartment: domain.PrepareApartments,
	domain.TypeHouse:     domain.PrepareHouses,
}

// RealEstateJob cleans DVF extracts into sales and yearly département prices.
type RealEstateJob struct {
	reader  TransactionReader
	sinks   RealEstateSinks
	opts    RealEstateOptions
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRealEstateJob creates a RealEstateJob.
func NewRealEstateJob(reader TransactionReader, sinks RealEstateSinks, opts RealEstateOptions,
	logger *slog.Logger, metrics *observability.Metrics) *RealEstateJob {
	if len(opts.PropertyTypes) == 0 {
		opts.PropertyTypes = []string{domain.TypeApartment, domain.TypeHouse}
	}
	return &RealEstateJob{reader: reader, sinks: sinks, opts: opts, logger: logger, metrics: metrics}
}

// Name implements Job.
func (j *RealEstateJob) Name() string { return "realestate" }

type yearSales struct {
	sales  map[string][]domain.Sale
	prices map[string][]domain.DepartementPrice
}

// Run implements Job.
func (j *RealEstateJob) Run(ctx context.Context) error {
	for _, pt := range j.opts.PropertyTypes {
		if _, ok := preparers[pt]; !ok {
			return fmt.Errorf("prepare real estate: unknown property type %q", pt)
		}
	}
	if j.opts.BeginYear > j.opts.EndYear {
		return fmt.Errorf("prepare real estate: begin year %d after end year %d", j.opts.BeginYear, j.opts.EndYear)
	}

	years := make([]yearSales, j.opts.EndYear-j.opts.BeginYear+1)
	g, gctx := errgroup.WithContext(ctx)
	if j.opts.Concurrency > 0 {
		g.SetLimit(j.opts.Concurrency)
	}
	for i := range years {
		year := j.opts.BeginYear + i
		g.Go(func() error {
			txs, err := j.reader.ReadYear(gctx, year)
			if err != nil {
				return err
			}
			ys := yearSales{
				sales:  make(map[string][]domain.Sale),
				prices: make(map[string][]domain.DepartementPrice),
			}
			for _, pt := range j.opts.PropertyTypes {
				start := time.Now()
				sales := preparers[pt](txs)
				ys.sales[pt] = sales
				ys.prices[pt] = domain.DepartementPrices(sales)
				j.metrics.ObserveStage("prepare_"+pt, len(txs), len(sales), time.Since(start).Seconds())
			}
			years[i] = ys
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, pt := range j.opts.PropertyTypes {
		var all [][]domain.Sale
		byYear := make(map[int][]domain.DepartementPrice, len(years))
		for i, ys := range years {
			all = append(all, ys.sales[pt])
			byYear[j.opts.BeginYear+i] = ys.prices[pt]
		}
		sales := slices.Concat(all...)
		table := domain.MergeYearlyPrices(byYear)

		for _, l := range j.sinks.Sales {
			if err := l.LoadSales(ctx, pt, sales); err != nil {
				return fmt.Errorf("load sales %s: %w", pt, err)
			}
		}
		for _, l := range j.sinks.Prices {
			if err := l.LoadPrices(ctx, pt, table); err != nil {
				return fmt.Errorf("load prices %s: %w", pt, err)
			}
		}
		j.logger.Info("real estate tables built", "property_type", pt,
			"sales", len(sales), "departements", len(table.Departements()))
	}
	return nil
}
