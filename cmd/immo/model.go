package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/immo-climat/internal/adapter/csvstore"
	"github.com/couchcryptid/immo-climat/internal/model"
)

func (c *cli) newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Train price estimation models on apartment sales",
	}
	cmd.AddCommand(c.newTrainTreeCmd(), c.newTrainLinearCmd())
	return cmd
}

func trainFlags(cmd *cobra.Command, opts *model.TrainOptions) {
	cmd.Flags().Float64Var(&opts.TestRatio, "test-ratio", model.DefaultTestRatio, "share of samples held out for evaluation")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "shuffle seed of the train/test split")
}

func (c *cli) newTrainTreeCmd() *cobra.Command {
	var opts model.TrainOptions
	cmd := &cobra.Command{
		Use:   "train-tree",
		Short: "Fit the regression tree used by estimate and save it to MODEL_PATH",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := csvstore.New(c.cfg.RealEstateOutDir, c.metrics, c.logger)
			sales, err := store.ReadSales(csvstore.ApartmentsFile)
			if err != nil {
				return err
			}
			tree, report, err := model.TrainTree(sales, opts, c.logger)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(c.cfg.ModelPath), 0o755); err != nil {
				return err
			}
			if err := tree.SaveFile(c.cfg.ModelPath); err != nil {
				return err
			}
			c.logger.Info("model saved", "path", c.cfg.ModelPath)
			return printJSON(cmd, report)
		},
	}
	trainFlags(cmd, &opts)
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "maximum tree depth, 0 grows the tree fully")
	cmd.Flags().IntVar(&opts.MinSamplesSplit, "min-samples-split", 0, "smallest node that may be split")
	return cmd
}

func (c *cli) newTrainLinearCmd() *cobra.Command {
	var opts model.TrainOptions
	cmd := &cobra.Command{
		Use:   "train-linear",
		Short: "Fit and evaluate least squares on surface, rooms and the 2019 département median",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := csvstore.New(c.cfg.RealEstateOutDir, c.metrics, c.logger)
			sales, err := store.ReadSales(csvstore.ApartmentsFile)
			if err != nil {
				return err
			}
			prices, err := store.ReadPrices(csvstore.ApartmentPricesFile)
			if err != nil {
				return err
			}
			report, err := model.TrainLinear(sales, prices, opts, c.logger)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	trainFlags(cmd, &opts)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
