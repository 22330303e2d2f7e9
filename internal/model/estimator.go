package model

import (
	"fmt"
	"math"

	"github.com/couchcryptid/immo-climat/internal/domain"
)

// Estimator answers price estimates from a trained tree.
type Estimator struct {
	tree *RegressionTree
}

// NewEstimator wraps a fitted tree.
func NewEstimator(tree *RegressionTree) (*Estimator, error) {
	if tree == nil || tree.Root() == nil {
		return nil, ErrNotFitted
	}
	return &Estimator{tree: tree}, nil
}

// LoadEstimator reads the persisted tree at path.
func LoadEstimator(path string) (*Estimator, error) {
	tree, err := LoadTreeFile(path)
	if err != nil {
		return nil, err
	}
	return NewEstimator(tree)
}

// Estimate validates the request and returns the predicted price rounded to
// the nearest euro.
func (e *Estimator) Estimate(req domain.EstimationRequest) (int64, error) {
	if err := req.Validate(); err != nil {
		return 0, fmt.Errorf("estimate: %w", err)
	}
	commune, err := domain.EncodeCommuneCode(req.CommuneCode)
	if err != nil {
		return 0, fmt.Errorf("estimate: %w", err)
	}
	v, err := e.tree.Predict([]float64{float64(req.Surface), float64(req.Rooms), float64(commune)})
	if err != nil {
		return 0, fmt.Errorf("estimate: %w", err)
	}
	return int64(math.Round(v)), nil
}
