package model

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// MSE is the mean squared error of predictions against targets.
func MSE(want, got []float64) float64 {
	if len(want) == 0 {
		return 0
	}
	d := floats.Distance(want, got, 2)
	return d * d / float64(len(want))
}

// R2 is the coefficient of determination of predictions against targets.
func R2(want, got []float64) float64 {
	return stat.RSquaredFrom(got, want, nil)
}

// Split holds row indices of a train/test partition.
type Split struct {
	Train []int
	Test  []int
}

// TrainTestSplit shuffles n row indices with a seeded source and puts
// ceil(n*testRatio) of them in the test set.
func TrainTestSplit(n int, testRatio float64, seed uint64) Split {
	perm := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Perm(n)
	nTest := min(max(int(math.Ceil(float64(n)*testRatio)), 0), n)
	return Split{Test: perm[:nTest], Train: perm[nTest:]}
}

// selectRows copies the listed rows of x.
func selectRows(x mat.Matrix, rows []int) *mat.Dense {
	if len(rows) == 0 {
		return &mat.Dense{}
	}
	_, c := x.Dims()
	out := mat.NewDense(len(rows), c, nil)
	buf := make([]float64, c)
	for i, r := range rows {
		mat.Row(buf, r, x)
		out.SetRow(i, buf)
	}
	return out
}

func selectValues(y []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = y[r]
	}
	return out
}
