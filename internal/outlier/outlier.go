// Package outlier provides the unsupervised outlier-scoring capability used
// by anomaly detection. Scores follow the isolation-forest convention: lower
// means more anomalous.
package outlier

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Scorer fits on a feature matrix and returns a binary anomaly flag plus a
// continuous score per row. The contamination fraction controls how many rows
// are flagged.
type Scorer interface {
	FitScore(features [][]float64, contamination float64) (flags []bool, scores []float64, err error)
}

// IsolationForest implements Scorer with an ensemble of randomized isolation
// trees. A fixed seed keeps runs reproducible.
type IsolationForest struct {
	trees int
	seed  int64
}

// NewIsolationForest creates a forest with the given ensemble size and seed.
func NewIsolationForest(trees int, seed int64) *IsolationForest {
	if trees <= 0 {
		trees = 100
	}
	return &IsolationForest{trees: trees, seed: seed}
}

const maxSampleSize = 256

// FitScore builds the ensemble and scores every row.
func (f *IsolationForest) FitScore(features [][]float64, contamination float64) ([]bool, []float64, error) {
	n := len(features)
	if n == 0 {
		return nil, nil, fmt.Errorf("empty feature matrix")
	}
	dims := len(features[0])
	if dims == 0 {
		return nil, nil, fmt.Errorf("feature matrix has no columns")
	}
	for i, row := range features {
		if len(row) != dims {
			return nil, nil, fmt.Errorf("ragged feature matrix at row %d", i)
		}
	}
	if contamination <= 0 || contamination >= 0.5 {
		return nil, nil, fmt.Errorf("contamination %v out of range (0, 0.5)", contamination)
	}

	rng := rand.New(rand.NewSource(f.seed))
	sampleSize := n
	if sampleSize > maxSampleSize {
		sampleSize = maxSampleSize
	}
	depthLimit := int(math.Ceil(math.Log2(float64(sampleSize))))

	// Average isolation path length per row across the ensemble.
	pathSums := make([]float64, n)
	for t := 0; t < f.trees; t++ {
		sample := rng.Perm(n)[:sampleSize]
		tree := buildTree(features, sample, 0, depthLimit, dims, rng)
		for i, row := range features {
			pathSums[i] += tree.pathLength(row, 0)
		}
	}

	c := averagePathLength(sampleSize)
	scores := make([]float64, n)
	for i := range scores {
		avgPath := pathSums[i] / float64(f.trees)
		// Mirror of the conventional anomaly measure: values in (-1, 0),
		// lower = more anomalous.
		scores[i] = -math.Pow(2, -avgPath/c)
	}

	// Flag the lowest-scoring contamination fraction.
	k := int(math.Floor(contamination * float64(n)))
	flags := make([]bool, n)
	if k > 0 {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			return scores[order[a]] < scores[order[b]]
		})
		for _, idx := range order[:k] {
			flags[idx] = true
		}
	}

	return flags, scores, nil
}

type treeNode struct {
	splitDim   int
	splitValue float64
	left       *treeNode
	right      *treeNode
	size       int // leaf: number of points isolated here
}

func buildTree(features [][]float64, sample []int, depth, depthLimit, dims int, rng *rand.Rand) *treeNode {
	if len(sample) <= 1 || depth >= depthLimit {
		return &treeNode{size: len(sample)}
	}

	dim := rng.Intn(dims)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, idx := range sample {
		v := features[idx][dim]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return &treeNode{size: len(sample)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []int
	for _, idx := range sample {
		if features[idx][dim] < split {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}

	return &treeNode{
		splitDim:   dim,
		splitValue: split,
		left:       buildTree(features, left, depth+1, depthLimit, dims, rng),
		right:      buildTree(features, right, depth+1, depthLimit, dims, rng),
	}
}

func (t *treeNode) pathLength(row []float64, depth int) float64 {
	if t.left == nil && t.right == nil {
		// Unresolved leaves are credited the expected depth of a subtree
		// holding size points.
		if t.size > 1 {
			return float64(depth) + averagePathLength(t.size)
		}
		return float64(depth)
	}
	if row[t.splitDim] < t.splitValue {
		return t.left.pathLength(row, depth+1)
	}
	return t.right.pathLength(row, depth+1)
}

// averagePathLength is c(n), the expected path length of an unsuccessful
// search in a binary search tree of n points.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649
	return 2*h - 2*float64(n-1)/float64(n)
}
