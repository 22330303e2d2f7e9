package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/immo-climat/internal/adapter/csvstore"
	"github.com/couchcryptid/immo-climat/internal/app"
	"github.com/couchcryptid/immo-climat/internal/domain"
)

func (c *cli) newRealEstateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realestate",
		Short: "DVF sales cleaning and département price tables",
	}
	cmd.AddCommand(c.newRealEstatePrepareCmd(), c.newRealEstatePricesCmd())
	return cmd
}

func (c *cli) newRealEstatePrepareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prepare",
		Short: "Clean the yearly DVF extracts into sales and price tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sinks, err := app.OpenSinks(ctx, c.cfg, c.metrics, c.logger)
			if err != nil {
				return err
			}
			defer sinks.Close()
			return app.NewRealEstateJob(c.cfg, sinks.RealEstateSinks(), c.metrics, c.logger).Run(ctx)
		},
	}
}

func (c *cli) newRealEstatePricesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Recompute the price tables from the cleaned sales files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sinks, err := app.OpenSinks(ctx, c.cfg, c.metrics, c.logger)
			if err != nil {
				return err
			}
			defer sinks.Close()

			for _, pt := range []string{domain.TypeApartment, domain.TypeHouse} {
				sales, err := sinks.RealEstate.ReadSales(csvstore.SalesFile(pt))
				if err != nil {
					return err
				}
				table := yearlyPrices(sales)
				for _, l := range sinks.RealEstateSinks().Prices {
					if err := l.LoadPrices(ctx, pt, table); err != nil {
						return fmt.Errorf("load prices %s: %w", pt, err)
					}
				}
				c.logger.Info("price table written", "property_type", pt, "years", table.Years)
			}
			return nil
		},
	}
}

// yearlyPrices groups sales by calendar year before computing prices.
func yearlyPrices(sales []domain.Sale) *domain.PriceTable {
	byYear := make(map[int][]domain.Sale)
	for _, s := range sales {
		byYear[s.Date.Year()] = append(byYear[s.Date.Year()], s)
	}
	prices := make(map[int][]domain.DepartementPrice, len(byYear))
	for y, ys := range byYear {
		prices[y] = domain.DepartementPrices(ys)
	}
	return domain.MergeYearlyPrices(prices)
}
