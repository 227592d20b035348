package lightgbm

import (
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/farmincome/core/parallel"
	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
	"github.com/YuminosukeSato/farmincome/pkg/log"
)

// Trainer implements leaf-wise histogram gradient boosting for regression
type Trainer struct {
	// Training parameters
	params TrainingParams

	// Data
	data         *binnedDataset
	labels       []float64
	featureNames []string

	// Gradient and Hessian
	gradients []float64
	hessians  []float64
	scores    []float64

	// Trees
	trees []Tree

	// Training state
	bestIteration int
	bestScore     float64
	evalHistory   []float64

	objective ObjectiveFunction
	initScore float64
	builder   *HistogramBuilder
	sampler   *SamplingStrategy
	reg       *RegularizationStrategy
	logger    log.Logger
}

// leafState is a leaf of the tree being grown together with the rows that
// reach it and its best candidate split.
type leafState struct {
	node    int
	rows    []int
	hists   []FeatureHistogram
	sumGrad float64
	sumHess float64
	depth   int
	split   SplitInfo
}

// NewTrainer creates a trainer; zero parameters take LightGBM defaults.
func NewTrainer(params TrainingParams) *Trainer {
	return &Trainer{
		params:        params.withDefaults(),
		bestIteration: -1,
		logger:        log.GetLoggerWithName("lightgbm.trainer"),
	}
}

// WithFeatureNames sets the feature names stored in the model
func (t *Trainer) WithFeatureNames(names []string) *Trainer {
	t.featureNames = names
	return t
}

// Params returns the effective training parameters
func (t *Trainer) Params() TrainingParams {
	return t.params
}

// ValidationData holds validation dataset
type ValidationData struct {
	X mat.Matrix
	Y mat.Matrix
}

// Fit trains on X and y without a validation set
func (t *Trainer) Fit(X, y mat.Matrix) error {
	return t.FitWithValidation(X, y, nil)
}

// FitWithValidation trains the model. When valData is given the metric is
// evaluated on it after every iteration; with early_stopping_rounds > 0
// training stops after that many rounds without improvement and the
// ensemble is truncated to the best iteration.
func (t *Trainer) FitWithValidation(X, y mat.Matrix, valData *ValidationData) (err error) {
	defer scigoErrors.Recover(&err, "Trainer.FitWithValidation")

	if err := t.params.Validate(); err != nil {
		return err
	}
	rows, cols := X.Dims()
	if rows == 0 || cols == 0 {
		return scigoErrors.ErrEmptyData
	}
	labels, err := columnVector("Trainer.Fit", y, rows)
	if err != nil {
		return err
	}
	if err := scigoErrors.CheckFinite("Trainer.Fit", labels); err != nil {
		return err
	}
	if t.featureNames != nil && len(t.featureNames) != cols {
		return scigoErrors.NewDimensionError("Trainer.Fit", cols, len(t.featureNames), 1)
	}

	objective, err := CreateObjectiveFunction(t.params.Objective)
	if err != nil {
		return err
	}
	t.objective = objective

	var valX mat.Matrix
	var valLabels, valScores []float64
	if valData != nil {
		vRows, vCols := valData.X.Dims()
		if vCols != cols {
			return scigoErrors.NewDimensionError("Trainer.FitWithValidation", cols, vCols, 1)
		}
		if valLabels, err = columnVector("Trainer.FitWithValidation", valData.Y, vRows); err != nil {
			return err
		}
		if _, err := newEvaluator(t.params.Metric); err != nil {
			return err
		}
		valX = valData.X
	}

	t.initialize(toDense(X), labels)
	if valX != nil {
		valScores = make([]float64, len(valLabels))
		for i := range valScores {
			valScores[i] = t.initScore
		}
	}

	var earlyStopping *EarlyStopping
	if valX != nil && t.params.EarlyStopping > 0 {
		earlyStopping = NewEarlyStopping(t.params.EarlyStopping, t.params.Metric)
	}
	evaluate, _ := newEvaluator(t.params.Metric)
	features := make([]float64, cols)

	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.calculateGradients()

		tree, ok := t.buildTree(iter)
		if !ok {
			t.logger.Info("Stopped training because no leaf meets the split requirements",
				"iteration", iter)
			break
		}
		t.trees = append(t.trees, tree)
		t.updateScores(&t.trees[len(t.trees)-1])

		if valX == nil {
			continue
		}
		for i := range valScores {
			mat.Row(features, i, valX)
			valScores[i] += tree.Predict(features)
		}
		score := evaluate(valLabels, valScores)
		t.evalHistory = append(t.evalHistory, score)

		if t.params.Verbosity > 0 && iter%100 == 0 {
			t.logger.Debug("Training progress", "iteration", iter, t.params.Metric, score)
		}

		if earlyStopping != nil && earlyStopping.Update(iter, score) {
			t.logger.Debug("Early stopping",
				"iteration", iter,
				"best_iteration", earlyStopping.BestIteration,
				"best_score", earlyStopping.BestScore)
			break
		}
	}

	if earlyStopping != nil && earlyStopping.GetBestIteration() >= 0 {
		t.bestIteration = earlyStopping.GetBestIteration()
		t.bestScore = earlyStopping.BestScore
		if t.bestIteration+1 < len(t.trees) {
			t.trees = t.trees[:t.bestIteration+1]
		}
	}
	return nil
}

// initialize prepares the training data structures
func (t *Trainer) initialize(X *mat.Dense, labels []float64) {
	rows := len(labels)
	t.data = newBinnedDataset(X, t.params.MaxBin, t.params.NumThreads)
	t.labels = labels
	t.gradients = make([]float64, rows)
	t.hessians = make([]float64, rows)
	t.scores = make([]float64, rows)
	t.trees = make([]Tree, 0, t.params.NumIterations)
	t.evalHistory = nil
	t.bestIteration = -1
	t.bestScore = 0

	t.initScore = t.objective.InitScore(labels)
	for i := range t.scores {
		t.scores[i] = t.initScore
	}
	t.builder = newHistogramBuilder(t.data, t.params)
	t.sampler = NewSamplingStrategy(t.params)
	t.reg = NewRegularizationStrategy(t.params)
}

// calculateGradients computes first and second order gradients
func (t *Trainer) calculateGradients() {
	for i, y := range t.labels {
		t.gradients[i] = t.objective.Gradient(t.scores[i], y)
		t.hessians[i] = t.objective.Hessian(t.scores[i], y)
	}
}

// buildTree grows one tree leaf-wise. It returns false when the root
// cannot be split.
func (t *Trainer) buildTree(iteration int) (Tree, bool) {
	bag := t.sampler.SampleInstances(len(t.labels), iteration)
	features := t.sampler.SampleFeatures(t.data.numFeatures)

	root := &leafState{rows: bag, depth: 0}
	root.hists = t.builder.Build(bag, features, t.gradients, t.hessians)
	for _, r := range bag {
		root.sumGrad += t.gradients[r]
		root.sumHess += t.hessians[r]
	}
	tree := Tree{
		Nodes:     []Node{t.newNode(root)},
		Shrinkage: t.params.LearningRate,
	}
	t.findSplit(root)

	leaves := []*leafState{root}
	for len(leaves) < t.params.NumLeaves {
		bestIdx := -1
		for i, leaf := range leaves {
			if leaf.split.Valid() && (bestIdx < 0 || leaf.split.Gain > leaves[bestIdx].split.Gain) {
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		left, right := t.splitLeaf(&tree, leaves[bestIdx])
		leaves[bestIdx] = left
		leaves = append(leaves, right)
	}
	if len(leaves) == 1 {
		return Tree{}, false
	}

	renewer, renew := t.objective.(LeafRenewer)
	for _, leaf := range leaves {
		if renew {
			residuals := make([]float64, len(leaf.rows))
			for i, r := range leaf.rows {
				residuals[i] = t.labels[r] - t.scores[r]
			}
			tree.Nodes[leaf.node].Value = renewer.RenewLeaf(residuals)
		}
	}
	for i := range tree.Nodes {
		tree.Nodes[i].Value *= t.params.LearningRate
	}
	tree.NumLeaves = len(leaves)
	return tree, true
}

func (t *Trainer) newNode(leaf *leafState) Node {
	return Node{
		SplitFeature: -1,
		LeftChild:    -1,
		RightChild:   -1,
		Value:        t.reg.LeafOutput(leaf.sumGrad, leaf.sumHess),
		Count:        len(leaf.rows),
		Weight:       leaf.sumHess,
		Depth:        leaf.depth,
	}
}

// findSplit stores the best split of leaf, or an invalid one when the
// depth limit is reached.
func (t *Trainer) findSplit(leaf *leafState) {
	if t.params.MaxDepth > 0 && leaf.depth >= t.params.MaxDepth {
		leaf.split = SplitInfo{Feature: -1}
		return
	}
	leaf.split = t.builder.FindBestSplit(leaf.hists, leaf.sumGrad, leaf.sumHess, len(leaf.rows))
}

// splitLeaf turns leaf into an internal node with two new leaves. The
// smaller child's histograms are built from its rows and the larger
// child's are obtained by subtraction.
func (t *Trainer) splitLeaf(tree *Tree, leaf *leafState) (*leafState, *leafState) {
	split := leaf.split
	column := t.data.featureBins(split.Feature)
	leftRows := make([]int, 0, split.LeftCount)
	rightRows := make([]int, 0, split.RightCount)
	for _, r := range leaf.rows {
		if column[r] <= split.ThresholdBin {
			leftRows = append(leftRows, r)
		} else {
			rightRows = append(rightRows, r)
		}
	}

	left := &leafState{rows: leftRows, sumGrad: split.LeftGrad, sumHess: split.LeftHess, depth: leaf.depth + 1}
	right := &leafState{rows: rightRows, sumGrad: split.RightGrad, sumHess: split.RightHess, depth: leaf.depth + 1}

	features := make([]int, 0, len(leaf.hists))
	for _, h := range leaf.hists {
		if h.Bins != nil {
			features = append(features, h.FeatureIndex)
		}
	}
	small, large := left, right
	if len(rightRows) < len(leftRows) {
		small, large = right, left
	}
	small.hists = t.builder.Build(small.rows, features, t.gradients, t.hessians)
	large.hists = t.builder.Subtract(leaf.hists, small.hists)
	leaf.hists = nil

	left.node = len(tree.Nodes)
	right.node = left.node + 1
	node := &tree.Nodes[leaf.node]
	node.SplitFeature = split.Feature
	node.Threshold = split.Threshold
	node.thresholdBin = split.ThresholdBin
	node.Gain = split.Gain
	node.LeftChild = left.node
	node.RightChild = right.node
	tree.Nodes = append(tree.Nodes, t.newNode(left), t.newNode(right))

	t.findSplit(left)
	t.findSplit(right)
	return left, right
}

// updateScores adds the new tree's output to every training row,
// out-of-bag rows included.
func (t *Trainer) updateScores(tree *Tree) {
	n := t.data.numRows
	parallel.ParallelizeWithThreshold(n, 10000, func(start, end int) {
		for i := start; i < end; i++ {
			t.scores[i] += tree.Nodes[tree.leafIndex(t.data.bins, i, n)].Value
		}
	})
}

// GetModel returns the trained model
func (t *Trainer) GetModel() *Model {
	model := NewModel()
	model.Trees = t.trees
	model.Objective = ObjectiveType(t.params.Objective)
	if t.objective != nil {
		model.Objective = ObjectiveType(t.objective.Name())
	}
	model.InitScore = t.initScore
	model.BestIteration = t.bestIteration
	model.BestScore = t.bestScore
	model.Params = t.params
	if t.data != nil {
		model.NumFeatures = t.data.numFeatures
		model.FeatureMin = t.data.featureMin
		model.FeatureMax = t.data.featureMax
	}
	model.FeatureNames = t.featureNames
	if model.FeatureNames == nil {
		model.FeatureNames = defaultFeatureNames(model.NumFeatures)
	}
	return model
}

// EvalHistory returns the validation metric after each iteration
func (t *Trainer) EvalHistory() []float64 {
	return t.evalHistory
}

// columnVector extracts the single column of y, which must have n rows.
func columnVector(op string, y mat.Matrix, n int) ([]float64, error) {
	rows, cols := y.Dims()
	if rows != n {
		return nil, scigoErrors.NewDimensionError(op, n, rows, 0)
	}
	if cols != 1 {
		return nil, scigoErrors.NewDimensionError(op, 1, cols, 1)
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out, nil
}

func toDense(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}

func defaultFeatureNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "Column_" + strconv.Itoa(i)
	}
	return names
}
