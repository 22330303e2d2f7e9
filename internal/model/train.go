package model

import (
	"fmt"
	"log/slog"

	"github.com/ezoic/scigo/linear"
	"github.com/ezoic/scigo/preprocessing"
	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// DefaultTestRatio is the share of samples held out for evaluation.
const DefaultTestRatio = 0.25

// TrainOptions configures a training run.
type TrainOptions struct {
	TestRatio       float64
	Seed            uint64
	MaxDepth        int
	MinSamplesSplit int
}

func (o TrainOptions) testRatio() float64 {
	if o.TestRatio <= 0 || o.TestRatio >= 1 {
		return DefaultTestRatio
	}
	return o.TestRatio
}

// Report summarises a fit on its held-out samples.
type Report struct {
	Model  string  `json:"model"`
	Train  int     `json:"train_samples"`
	Test   int     `json:"test_samples"`
	MSE    float64 `json:"mse"`
	R2     float64 `json:"r2"`
	Depth  int     `json:"depth,omitempty"`
	Leaves int     `json:"leaves,omitempty"`
}

// TrainTree fits a regression tree on apartment sales and evaluates it on
// the held-out split.
func TrainTree(sales []domain.Sale, opts TrainOptions, logger *slog.Logger) (*RegressionTree, Report, error) {
	ds, err := TreeDataset(sales)
	if err != nil {
		return nil, Report{}, err
	}
	split := TrainTestSplit(len(ds.Y), opts.testRatio(), opts.Seed)
	if len(split.Train) == 0 || len(split.Test) == 0 {
		return nil, Report{}, fmt.Errorf("train tree: %w: %d samples cannot be split", ErrNoSamples, len(ds.Y))
	}

	tree := &RegressionTree{
		MaxDepth:        opts.MaxDepth,
		MinSamplesSplit: opts.MinSamplesSplit,
		Features:        ds.Features,
	}
	if err := tree.Fit(selectRows(ds.X, split.Train), selectValues(ds.Y, split.Train)); err != nil {
		return nil, Report{}, fmt.Errorf("train tree: %w", err)
	}

	want := selectValues(ds.Y, split.Test)
	got, err := tree.PredictMatrix(selectRows(ds.X, split.Test))
	if err != nil {
		return nil, Report{}, fmt.Errorf("train tree: %w", err)
	}
	report := Report{
		Model:  "regression_tree",
		Train:  len(split.Train),
		Test:   len(split.Test),
		MSE:    MSE(want, got),
		R2:     R2(want, got),
		Depth:  tree.Depth(),
		Leaves: countLeaves(tree.Root()),
	}
	logger.Info("regression tree trained",
		"train", report.Train,
		"test", report.Test,
		"r2", report.R2,
		"depth", report.Depth,
	)
	return tree, report, nil
}

func countLeaves(n *Node) int {
	if n == nil {
		return 0
	}
	if n.IsLeaf() {
		return 1
	}
	return countLeaves(n.Left) + countLeaves(n.Right)
}

// TrainLinear fits least squares on standardised surface, rooms and the
// département median price. Scaling is fitted on every sample before the
// split.
func TrainLinear(sales []domain.Sale, prices *domain.PriceTable, opts TrainOptions, logger *slog.Logger) (Report, error) {
	ds, err := LinearDataset(sales, prices)
	if err != nil {
		return Report{}, err
	}
	split := TrainTestSplit(len(ds.Y), opts.testRatio(), opts.Seed)
	if len(split.Train) == 0 || len(split.Test) == 0 {
		return Report{}, fmt.Errorf("train linear: %w: %d samples cannot be split", ErrNoSamples, len(ds.Y))
	}

	scaler := preprocessing.NewStandardScaler(true, true)
	if err := scaler.Fit(ds.X); err != nil {
		return Report{}, fmt.Errorf("fit scaler: %w", err)
	}
	scaled, err := scaler.Transform(ds.X)
	if err != nil {
		return Report{}, fmt.Errorf("scale features: %w", err)
	}

	yTrain := selectValues(ds.Y, split.Train)
	lr := linear.NewLinearRegression()
	if err := lr.Fit(selectRows(scaled, split.Train), mat.NewDense(len(yTrain), 1, yTrain)); err != nil {
		return Report{}, fmt.Errorf("fit linear regression: %w", err)
	}

	pred, err := lr.Predict(selectRows(scaled, split.Test))
	if err != nil {
		return Report{}, fmt.Errorf("predict linear regression: %w", err)
	}
	got := mat.Col(nil, 0, pred)
	want := selectValues(ds.Y, split.Test)

	report := Report{
		Model: "linear_regression",
		Train: len(split.Train),
		Test:  len(split.Test),
		MSE:   MSE(want, got),
		R2:    R2(want, got),
	}
	logger.Info("linear regression trained",
		"train", report.Train,
		"test", report.Test,
		"mse", report.MSE,
		"r2", report.R2,
	)
	return report, nil
}
