package model

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func stepData() (*mat.Dense, []float64) {
	x := mat.NewDense(6, 2, []float64{
		1, 0,
		2, 0,
		3, 1,
		10, 1,
		11, 0,
		12, 1,
	})
	y := []float64{100, 100, 100, 500, 500, 500}
	return x, y
}

func TestRegressionTree_FitStep(t *testing.T) {
	x, y := stepData()
	tree := &RegressionTree{}

	require.NoError(t, tree.Fit(x, y))

	root := tree.Root()
	require.NotNil(t, root)
	assert.Equal(t, 0, root.Feature)
	assert.InDelta(t, 6.5, root.Threshold, 1e-12)
	assert.Equal(t, 1, tree.Depth())

	for _, tc := range []struct {
		sample []float64
		want   float64
	}{
		{[]float64{0, 0}, 100},
		{[]float64{6.5, 1}, 100},
		{[]float64{6.6, 0}, 500},
		{[]float64{99, 0}, 500},
	} {
		got, err := tree.Predict(tc.sample)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestRegressionTree_FullyGrownMemorises(t *testing.T) {
	x := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := []float64{3, 1, 4, 1, 5}
	tree := &RegressionTree{}
	require.NoError(t, tree.Fit(x, y))

	got, err := tree.PredictMatrix(x)
	require.NoError(t, err)
	assert.Equal(t, y, got)
}

func TestRegressionTree_MaxDepth(t *testing.T) {
	x := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := []float64{3, 1, 4, 1, 5}
	tree := &RegressionTree{MaxDepth: 1}
	require.NoError(t, tree.Fit(x, y))

	assert.Equal(t, 1, tree.Depth())
}

func TestRegressionTree_DuplicateFeaturesAveraged(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, 1, 1})
	tree := &RegressionTree{}
	require.NoError(t, tree.Fit(x, []float64{1, 2, 6}))

	got, err := tree.Predict([]float64{1})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)
	assert.True(t, tree.Root().IsLeaf())
}

func TestRegressionTree_Errors(t *testing.T) {
	tree := &RegressionTree{}
	_, err := tree.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrNotFitted)
	assert.ErrorIs(t, tree.Save(&bytes.Buffer{}), ErrNotFitted)

	x, _ := stepData()
	assert.Error(t, tree.Fit(x, []float64{1}))

	x, y := stepData()
	require.NoError(t, tree.Fit(x, y))
	_, err = tree.Predict(nil)
	assert.Error(t, err)
}

func TestRegressionTree_SaveLoad(t *testing.T) {
	x, y := stepData()
	tree := &RegressionTree{Features: []string{"a", "b"}}
	require.NoError(t, tree.Fit(x, y))

	var buf bytes.Buffer
	require.NoError(t, tree.Save(&buf))
	loaded, err := LoadTree(&buf)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, loaded.Features)
	want, err := tree.PredictMatrix(x)
	require.NoError(t, err)
	got, err := loaded.PredictMatrix(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRegressionTree_SaveFile(t *testing.T) {
	x, y := stepData()
	tree := &RegressionTree{}
	require.NoError(t, tree.Fit(x, y))

	path := t.TempDir() + "/tree.json"
	require.NoError(t, tree.SaveFile(path))

	loaded, err := LoadTreeFile(path)
	require.NoError(t, err)
	assert.Equal(t, tree.Depth(), loaded.Depth())

	_, err = LoadTreeFile(t.TempDir() + "/missing.json")
	assert.Error(t, err)
}

func TestLoadTree_RejectsForeignFormat(t *testing.T) {
	_, err := LoadTree(strings.NewReader(`{"format":"pickle","root":{"value":1}}`))
	assert.ErrorContains(t, err, "unsupported format")

	_, err = LoadTree(strings.NewReader(`{"format":"regression_tree/v1"}`))
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = LoadTree(strings.NewReader(`not json`))
	assert.Error(t, err)
}
