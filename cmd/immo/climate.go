package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/immo-climat/internal/app"
	"github.com/couchcryptid/immo-climat/internal/cluster"
	"github.com/couchcryptid/immo-climat/internal/pipeline"
)

func (c *cli) newClimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "climate",
		Short: "GSOD climate tables and station clustering",
	}
	cmd.AddCommand(
		c.newClimatePrepareCmd(),
		c.newClimateClustersCmd("clusters", cluster.PresetDefault,
			"Run the k-means sweeps of every measure group and write Clusters.csv"),
		c.newClimateClustersCmd("clusters-optimal", cluster.PresetOptimal,
			"Run the weighted sweep over every column and write Clusters_opt.csv"),
	)
	return cmd
}

func (c *cli) newClimatePrepareCmd() *cobra.Command {
	var geocode bool
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Build ClimatFACT.csv and StationDIM.csv from the yearly GSOD archives",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sinks, err := app.OpenSinks(ctx, c.cfg, c.metrics, c.logger)
			if err != nil {
				return err
			}
			defer sinks.Close()

			geocoder := app.NewGeocoder(c.cfg, c.metrics, c.logger)
			if !geocode {
				geocoder = nil
			}
			s := sinks.ClimateSinks()
			s.Clusters = nil
			job, err := app.NewClimateJob(c.cfg, s, geocoder, nil, c.metrics, c.logger)
			if err != nil {
				return err
			}
			return job.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&geocode, "geocode", true, "attach départements to stations when a geocoder is configured")
	return cmd
}

func (c *cli) newClimateClustersCmd(use string, preset cluster.Preset, short string) *cobra.Command {
	var (
		kMin, kMax int
		country    string
		seasonal   bool
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sinks, err := app.OpenSinks(ctx, c.cfg, c.metrics, c.logger)
			if err != nil {
				return err
			}
			defer sinks.Close()

			facts, err := sinks.Climate.ReadFacts()
			if err != nil {
				return err
			}
			stations, err := sinks.Climate.ReadStations()
			if err != nil {
				return err
			}

			req := app.ClusterRequest(c.cfg)
			if cmd.Flags().Changed("k-min") {
				req.KMin = kMin
			}
			if cmd.Flags().Changed("k-max") {
				req.KMax = kMax
			}
			if cmd.Flags().Changed("country") {
				req.Country = country
			}
			if seasonal {
				req.Profile = cluster.ProfileSeasonal
			}

			res, err := pipeline.RunPreset(preset, facts, stations, req, c.metrics)
			if err != nil {
				return err
			}
			for _, l := range sinks.ClimateSinks().Clusters {
				if err := l.LoadClusters(ctx, preset, res); err != nil {
					return fmt.Errorf("load clusters: %w", err)
				}
			}
			c.logger.Info("clusters written", "preset", preset, "rows", len(res.Table.Rows),
				"k_min", req.KMin, "k_max", req.KMax)
			return nil
		},
	}
	cmd.Flags().IntVar(&kMin, "k-min", 0, "smallest k (default CLUSTER_K_MIN)")
	cmd.Flags().IntVar(&kMax, "k-max", 0, "largest k (default CLUSTER_K_MAX)")
	cmd.Flags().StringVar(&country, "country", "", "cluster only the stations of this country (default CLUSTER_COUNTRY)")
	cmd.Flags().BoolVar(&seasonal, "seasonal", false, "fold facts into 4 seasons instead of 12 months")
	return cmd
}
