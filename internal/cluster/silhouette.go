package cluster

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Silhouette returns the mean silhouette coefficient using euclidean
// distances. Rows alone in their cluster score 0. It needs 2 <= k <= n-1
// distinct labels.
func Silhouette(x mat.Matrix, labels []int) (float64, error) {
	data := mat.DenseCopyOf(x)
	n, _ := data.Dims()
	if n != len(labels) {
		return 0, errors.New("silhouette: labels do not match rows")
	}

	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	if len(sizes) < 2 || len(sizes) > n-1 {
		return 0, errors.New("silhouette: number of labels must be between 2 and n-1")
	}

	var total float64
	sums := make(map[int]float64, len(sizes))
	for i := range n {
		clear(sums)
		for j := range n {
			if i == j {
				continue
			}
			sums[labels[j]] += floats.Distance(data.RawRowView(i), data.RawRowView(j), 2)
		}

		own := labels[i]
		if sizes[own] == 1 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := -1.0
		for l, s := range sums {
			if l == own {
				continue
			}
			if mean := s / float64(sizes[l]); b < 0 || mean < b {
				b = mean
			}
		}
		if m := max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(n), nil
}
