package cluster

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// KMeans fits Lloyd's algorithm with k-means++ seeding. Zero values select
// the defaults: 10 restarts, 300 iterations, tolerance 1e-4.
type KMeans struct {
	K       int
	NInit   int
	MaxIter int
	Tol     float64
	Seed    uint64
}

// Fit is the outcome of a k-means run: 0-based labels per row, centroids,
// and the sum of squared distances of rows to their centroid.
type Fit struct {
	Labels    []int
	Centroids *mat.Dense
	Inertia   float64
}

var errTooFewRows = errors.New("fewer rows than clusters")

// Fit runs NInit seeded restarts and keeps the one with the lowest inertia.
func (km KMeans) Fit(x mat.Matrix) (Fit, error) {
	n, _ := x.Dims()
	if km.K < 1 {
		return Fit{}, errors.New("k must be positive")
	}
	if n < km.K {
		return Fit{}, errTooFewRows
	}
	nInit := km.NInit
	if nInit <= 0 {
		nInit = 10
	}
	maxIter := km.MaxIter
	if maxIter <= 0 {
		maxIter = 300
	}
	tol := km.Tol
	if tol <= 0 {
		tol = 1e-4
	}

	data := mat.DenseCopyOf(x)
	tol *= meanVariance(data)
	rng := rand.New(rand.NewPCG(km.Seed, km.Seed))

	best := Fit{Inertia: math.Inf(1)}
	for range nInit {
		fit := lloyd(data, seedPlusPlus(data, km.K, rng), maxIter, tol)
		if fit.Inertia < best.Inertia {
			best = fit
		}
	}
	return best, nil
}

// meanVariance scales the convergence tolerance to the data.
func meanVariance(data *mat.Dense) float64 {
	_, d := data.Dims()
	if d == 0 {
		return 0
	}
	var sum float64
	for j := range d {
		sum += stat.PopVariance(mat.Col(nil, j, data), nil)
	}
	return sum / float64(d)
}

// seedPlusPlus picks initial centroids, each with probability proportional to
// its squared distance from the nearest centroid already chosen.
func seedPlusPlus(data *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := data.Dims()
	centroids := mat.NewDense(k, d, nil)
	centroids.SetRow(0, data.RawRowView(rng.IntN(n)))

	dist := make([]float64, n)
	for i := range n {
		dist[i] = sqDist(data.RawRowView(i), centroids.RawRowView(0))
	}
	for c := 1; c < k; c++ {
		total := floats.Sum(dist)
		next := rng.IntN(n)
		if total > 0 {
			target := rng.Float64() * total
			var acc float64
			for i, v := range dist {
				acc += v
				if acc >= target {
					next = i
					break
				}
			}
		}
		centroids.SetRow(c, data.RawRowView(next))
		for i := range n {
			dist[i] = math.Min(dist[i], sqDist(data.RawRowView(i), centroids.RawRowView(c)))
		}
	}
	return centroids
}

func lloyd(data, centroids *mat.Dense, maxIter int, tol float64) Fit {
	n, d := data.Dims()
	k, _ := centroids.Dims()
	labels := make([]int, n)

	for range maxIter {
		assign(data, centroids, labels)

		next := mat.NewDense(k, d, nil)
		counts := make([]int, k)
		for i, l := range labels {
			floats.Add(next.RawRowView(l), data.RawRowView(i))
			counts[l]++
		}
		for c := range k {
			if counts[c] == 0 {
				// Re-seed an empty cluster on the row farthest from its centroid.
				far := farthest(data, centroids, labels)
				next.SetRow(c, data.RawRowView(far))
				continue
			}
			floats.Scale(1/float64(counts[c]), next.RawRowView(c))
		}

		var shift float64
		for c := range k {
			shift += sqDist(centroids.RawRowView(c), next.RawRowView(c))
		}
		centroids = next
		if shift <= tol {
			break
		}
	}

	inertia := assign(data, centroids, labels)
	return Fit{Labels: labels, Centroids: centroids, Inertia: inertia}
}

// assign sets each row's label to its nearest centroid and returns the
// inertia.
func assign(data, centroids *mat.Dense, labels []int) float64 {
	n, _ := data.Dims()
	k, _ := centroids.Dims()
	var inertia float64
	for i := range n {
		row := data.RawRowView(i)
		bestDist := math.Inf(1)
		for c := range k {
			if dd := sqDist(row, centroids.RawRowView(c)); dd < bestDist {
				bestDist = dd
				labels[i] = c
			}
		}
		inertia += bestDist
	}
	return inertia
}

func farthest(data, centroids *mat.Dense, labels []int) int {
	best, bestDist := 0, -1.0
	for i, l := range labels {
		if dd := sqDist(data.RawRowView(i), centroids.RawRowView(l)); dd > bestDist {
			best, bestDist = i, dd
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	dd := floats.Distance(a, b, 2)
	return dd * dd
}
