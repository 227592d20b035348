package lightgbm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// Node represents a single node in a decision tree.
// Leaves have LeftChild == RightChild == -1.
type Node struct {
	// Split information (for non-leaf nodes)
	SplitFeature int     `msgpack:"split_feature"`
	Threshold    float64 `msgpack:"threshold"`
	Gain         float64 `msgpack:"gain"`
	LeftChild    int     `msgpack:"left"`
	RightChild   int     `msgpack:"right"`

	// Leaf value, or the value the node would have as a leaf
	Value float64 `msgpack:"value"`

	// Statistics
	Count  int     `msgpack:"count"`
	Weight float64 `msgpack:"weight"` // sum of hessians
	Depth  int     `msgpack:"depth"`

	// bin boundary of Threshold, only meaningful during training
	thresholdBin uint8
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one boosting round. Nodes[0] is the root; leaf values already
// include Shrinkage.
type Tree struct {
	Nodes     []Node  `msgpack:"nodes"`
	NumLeaves int     `msgpack:"num_leaves"`
	Shrinkage float64 `msgpack:"shrinkage"`
}

// Predict makes a prediction for a single sample using this tree.
// NaN is routed as zero.
func (t *Tree) Predict(features []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0.0
	}
	nodeID := 0
	for {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.Value
		}
		v := features[node.SplitFeature]
		if math.IsNaN(v) {
			v = 0
		}
		if v <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
}

// leafIndex walks the tree on pre-binned features.
func (t *Tree) leafIndex(bins []uint8, row, numRows int) int {
	nodeID := 0
	for {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return nodeID
		}
		if bins[node.SplitFeature*numRows+row] <= node.thresholdBin {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
}

// ObjectiveType is the LightGBM name of a training objective.
type ObjectiveType string

const (
	RegressionL2 ObjectiveType = "regression"
	RegressionL1 ObjectiveType = "regression_l1"
)

// Model represents a complete boosted ensemble
type Model struct {
	Objective     ObjectiveType  `msgpack:"objective"`
	NumFeatures   int            `msgpack:"num_features"`
	FeatureNames  []string       `msgpack:"feature_names"`
	InitScore     float64        `msgpack:"init_score"`
	Trees         []Tree         `msgpack:"trees"`
	BestIteration int            `msgpack:"best_iteration"` // -1 without early stopping
	BestScore     float64        `msgpack:"best_score"`
	Params        TrainingParams `msgpack:"params"`

	// per-feature value range seen at training, for the text export
	FeatureMin []float64 `msgpack:"feature_min"`
	FeatureMax []float64 `msgpack:"feature_max"`
}

// NewModel creates a new empty model
func NewModel() *Model {
	return &Model{
		Trees:         make([]Tree, 0),
		BestIteration: -1,
		Params:        DefaultParams(),
	}
}

// Predict makes predictions for a batch of samples
func (m *Model) Predict(X mat.Matrix) (*mat.VecDense, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, scigoErrors.NewDimensionError("Model.Predict", m.NumFeatures, cols, 1)
	}

	predictions := mat.NewVecDense(rows, nil)
	features := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(features, i, X)
		predictions.SetVec(i, m.PredictSingle(features, -1))
	}
	return predictions, nil
}

// PredictSingle makes a raw prediction for one sample.
// numIteration specifies how many trees to use (-1 for all)
func (m *Model) PredictSingle(features []float64, numIteration int) float64 {
	if numIteration < 0 || numIteration > len(m.Trees) {
		numIteration = len(m.Trees)
	}
	pred := m.InitScore
	for i := 0; i < numIteration; i++ {
		pred += m.Trees[i].Predict(features)
	}
	return pred
}

// NumIterations returns the number of trees kept
func (m *Model) NumIterations() int {
	return len(m.Trees)
}

// GetFeatureImportance returns normalized importance per feature.
// importanceType is "split" (use count) or "gain" (summed split gain).
func (m *Model) GetFeatureImportance(importanceType string) []float64 {
	importance := make([]float64, m.NumFeatures)

	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			switch importanceType {
			case "gain":
				importance[node.SplitFeature] += node.Gain
			default:
				importance[node.SplitFeature]++
			}
		}
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance
}
