package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/immo-climat/internal/domain"
	"github.com/couchcryptid/immo-climat/internal/model"
)

type estimateResponse struct {
	domain.EstimationRequest
	Price int64 `json:"price"`
}

func (c *cli) newEstimateCmd() *cobra.Command {
	var req domain.EstimationRequest
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate an apartment price with the saved regression tree",
		Example: `  immo estimate --surface 45 --rooms 2 --commune 75056
  immo estimate --surface 60 --rooms 3 --commune 2A004`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			est, err := model.LoadEstimator(c.cfg.ModelPath)
			if err != nil {
				return err
			}
			price, err := est.Estimate(req)
			if err != nil {
				return err
			}
			return printJSON(cmd, estimateResponse{EstimationRequest: req, Price: price})
		},
	}
	cmd.Flags().IntVar(&req.Surface, "surface", 0, "living surface in square metres")
	cmd.Flags().IntVar(&req.Rooms, "rooms", 0, "number of main rooms")
	cmd.Flags().StringVar(&req.CommuneCode, "commune", "", "INSEE commune code")
	_ = cmd.MarkFlagRequired("surface")
	_ = cmd.MarkFlagRequired("rooms")
	_ = cmd.MarkFlagRequired("commune")
	return cmd
}
