// Package model trains and serves the property price models: a CART
// regression tree used for estimates and a standardised linear baseline.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// treeFormat tags persisted trees so a foreign JSON file is rejected.
const treeFormat = "regression_tree/v1"

// Node is one tree node. Leaves have no children.
type Node struct {
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Value     float64 `json:"value"`
	Samples   int     `json:"samples"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
}

// IsLeaf reports whether the node predicts directly.
func (n *Node) IsLeaf() bool { return n.Left == nil }

// RegressionTree is a CART regressor splitting on squared error. Zero
// MaxDepth grows the tree until leaves are pure.
type RegressionTree struct {
	MaxDepth        int
	MinSamplesSplit int
	Features        []string

	root *Node
}

type treeFile struct {
	Format          string   `json:"format"`
	Features        []string `json:"features"`
	MaxDepth        int      `json:"max_depth,omitempty"`
	MinSamplesSplit int      `json:"min_samples_split,omitempty"`
	Root            *Node    `json:"root"`
}

// ErrNotFitted is returned when predicting with a tree that has no nodes.
var ErrNotFitted = errors.New("model is not fitted")

// Fit grows the tree on x (rows are samples) and y.
func (t *RegressionTree) Fit(x mat.Matrix, y []float64) error {
	n, _ := x.Dims()
	if n == 0 {
		return errors.New("fit tree: no samples")
	}
	if n != len(y) {
		return fmt.Errorf("fit tree: %d rows but %d targets", n, len(y))
	}
	data := mat.DenseCopyOf(x)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	t.root = t.grow(data, y, idx, 0)
	return nil
}

// Root returns the fitted root node, nil before Fit.
func (t *RegressionTree) Root() *Node { return t.root }

// Predict returns the leaf value for one sample.
func (t *RegressionTree) Predict(sample []float64) (float64, error) {
	if t.root == nil {
		return 0, ErrNotFitted
	}
	n := t.root
	for !n.IsLeaf() {
		if n.Feature >= len(sample) {
			return 0, fmt.Errorf("predict: sample has %d features, tree uses feature %d", len(sample), n.Feature)
		}
		if sample[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value, nil
}

// PredictMatrix predicts every row of x.
func (t *RegressionTree) PredictMatrix(x mat.Matrix) ([]float64, error) {
	r, c := x.Dims()
	out := make([]float64, r)
	row := make([]float64, c)
	for i := range r {
		mat.Row(row, i, x)
		v, err := t.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *RegressionTree) Depth() int {
	var depth func(*Node) int
	depth = func(n *Node) int {
		if n == nil || n.IsLeaf() {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(t.root)
}

func (t *RegressionTree) grow(x *mat.Dense, y []float64, idx []int, depth int) *Node {
	node := &Node{Value: mean(y, idx), Samples: len(idx)}

	minSplit := max(t.MinSamplesSplit, 2)
	if len(idx) < minSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) {
		return node
	}
	feature, threshold, ok := bestSplit(x, y, idx)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	node.Feature = feature
	node.Threshold = threshold
	node.Left = t.grow(x, y, left, depth+1)
	node.Right = t.grow(x, y, right, depth+1)
	return node
}

// bestSplit scans every feature for the threshold minimising the summed
// squared error of both children. Thresholds sit midway between distinct
// consecutive values. ok is false when the node is pure or constant.
func bestSplit(x *mat.Dense, y []float64, idx []int) (feature int, threshold float64, ok bool) {
	_, d := x.Dims()
	n := float64(len(idx))

	// Centre targets to keep the running sums well conditioned for prices.
	mu := mean(y, idx)
	var totalSum, totalSq float64
	for _, i := range idx {
		c := y[i] - mu
		totalSum += c
		totalSq += c * c
	}
	parentSSE := totalSq - totalSum*totalSum/n
	if parentSSE <= 1e-12*math.Max(1, totalSq) {
		return 0, 0, false
	}

	best := parentSSE
	order := slices.Clone(idx)
	for f := range d {
		slices.SortStableFunc(order, func(a, b int) int {
			va, vb := x.At(a, f), x.At(b, f)
			switch {
			case va < vb:
				return -1
			case va > vb:
				return 1
			}
			return 0
		})

		var leftSum, leftSq float64
		for k := 0; k < len(order)-1; k++ {
			yi := y[order[k]] - mu
			leftSum += yi
			leftSq += yi * yi

			cur, next := x.At(order[k], f), x.At(order[k+1], f)
			if cur == next {
				continue
			}
			nl := float64(k + 1)
			nr := n - nl
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if sse < best {
				best = sse
				feature = f
				threshold = cur + (next-cur)/2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

func mean(y []float64, idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

// Save writes the tree as JSON.
func (t *RegressionTree) Save(w io.Writer) error {
	if t.root == nil {
		return ErrNotFitted
	}
	enc := json.NewEncoder(w)
	return enc.Encode(treeFile{
		Format:          treeFormat,
		Features:        t.Features,
		MaxDepth:        t.MaxDepth,
		MinSamplesSplit: t.MinSamplesSplit,
		Root:            t.root,
	})
}

// LoadTree reads a tree written by Save.
func LoadTree(r io.Reader) (*RegressionTree, error) {
	var f treeFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	if f.Format != treeFormat {
		return nil, fmt.Errorf("decode tree: unsupported format %q", f.Format)
	}
	if f.Root == nil {
		return nil, fmt.Errorf("decode tree: %w", ErrNotFitted)
	}
	return &RegressionTree{
		MaxDepth:        f.MaxDepth,
		MinSamplesSplit: f.MinSamplesSplit,
		Features:        f.Features,
		root:            f.Root,
	}, nil
}

// SaveFile writes the tree to path, replacing any existing file.
func (t *RegressionTree) SaveFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if err := t.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write model file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close model file: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadTreeFile reads a tree from path.
func LoadTreeFile(path string) (*RegressionTree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()
	return LoadTree(f)
}
