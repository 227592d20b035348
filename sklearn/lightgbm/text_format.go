package lightgbm

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	scigoErrors "github.com/YuminosukeSato/farmincome/pkg/errors"
)

// decisionNumericalDefaultLeft is LightGBM's decision_type for a numerical
// split with default-left and no missing value handling.
const decisionNumericalDefaultLeft = 2

// WriteText writes the model in LightGBM's v3 text format so it can be read
// by LightGBM itself or by github.com/dmitryikh/leaves. The init score is
// folded into the first tree as LightGBM does.
func (m *Model) WriteText(w io.Writer) error {
	trees := m.Trees
	if len(trees) == 0 {
		trees = []Tree{{Nodes: []Node{{LeftChild: -1, RightChild: -1}}, NumLeaves: 1, Shrinkage: 1}}
	}

	blocks := make([]string, len(trees))
	sizes := make([]string, len(trees))
	for i := range trees {
		bias := 0.0
		if i == 0 {
			bias = m.InitScore
		}
		blocks[i] = "Tree=" + strconv.Itoa(i) + "\n" + treeText(&trees[i], bias) + "\n"
		sizes[i] = strconv.Itoa(len(blocks[i]))
	}

	bw := bufio.NewWriter(w)
	objective := string(m.Objective)
	if objective == "" {
		objective = string(RegressionL2)
	}
	header := []string{
		"tree",
		"version=v3",
		"num_class=1",
		"num_tree_per_iteration=1",
		"label_index=0",
		"max_feature_idx=" + strconv.Itoa(m.NumFeatures-1),
		"objective=" + objective,
		"feature_names=" + strings.Join(m.featureNamesOrDefault(), " "),
		"feature_infos=" + strings.Join(m.featureInfos(), " "),
		"tree_sizes=" + strings.Join(sizes, " "),
	}
	for _, line := range header {
		bw.WriteString(line)
		bw.WriteByte('\n')
	}
	bw.WriteByte('\n')
	for _, b := range blocks {
		bw.WriteString(b)
	}
	bw.WriteString("end of trees\n")
	return bw.Flush()
}

// SaveText writes the LightGBM text model to path.
func (m *Model) SaveText(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return scigoErrors.NewArtifactError("model", path, err)
	}
	if err := m.WriteText(f); err != nil {
		_ = f.Close()
		return scigoErrors.NewArtifactError("model", path, err)
	}
	if err := f.Close(); err != nil {
		return scigoErrors.NewArtifactError("model", path, err)
	}
	return nil
}

func (m *Model) featureNamesOrDefault() []string {
	if len(m.FeatureNames) == m.NumFeatures {
		return m.FeatureNames
	}
	return defaultFeatureNames(m.NumFeatures)
}

func (m *Model) featureInfos() []string {
	infos := make([]string, m.NumFeatures)
	for j := range infos {
		if j >= len(m.FeatureMin) || j >= len(m.FeatureMax) || m.FeatureMin[j] == m.FeatureMax[j] {
			infos[j] = "none"
			continue
		}
		infos[j] = "[" + formatFloat(m.FeatureMin[j]) + ":" + formatFloat(m.FeatureMax[j]) + "]"
	}
	return infos
}

// treeText renders one tree. LightGBM numbers internal nodes and leaves
// separately; children refer to internal nodes by index and to leaves by
// the complement of the leaf index.
func treeText(t *Tree, bias float64) string {
	internalID := make(map[int]int)
	leafID := make(map[int]int)
	var order []int
	stack := []int{0}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.Nodes[id].IsLeaf() {
			leafID[id] = len(leafID)
			continue
		}
		internalID[id] = len(order)
		order = append(order, id)
		stack = append(stack, t.Nodes[id].RightChild, t.Nodes[id].LeftChild)
	}
	leaves := make([]int, len(leafID))
	for node, id := range leafID {
		leaves[id] = node
	}

	child := func(id int) string {
		if t.Nodes[id].IsLeaf() {
			return strconv.Itoa(^leafID[id])
		}
		return strconv.Itoa(internalID[id])
	}
	field := func(name string, n int, f func(i int) string) string {
		vals := make([]string, n)
		for i := range vals {
			vals[i] = f(i)
		}
		return name + "=" + strings.Join(vals, " ") + "\n"
	}

	var sb strings.Builder
	sb.WriteString("num_leaves=" + strconv.Itoa(len(leaves)) + "\n")
	sb.WriteString("num_cat=0\n")
	if len(order) > 0 {
		sb.WriteString(field("split_feature", len(order), func(i int) string { return strconv.Itoa(t.Nodes[order[i]].SplitFeature) }))
		sb.WriteString(field("split_gain", len(order), func(i int) string { return formatFloat(t.Nodes[order[i]].Gain) }))
		sb.WriteString(field("threshold", len(order), func(i int) string { return formatFloat(t.Nodes[order[i]].Threshold) }))
		sb.WriteString(field("decision_type", len(order), func(int) string { return strconv.Itoa(decisionNumericalDefaultLeft) }))
		sb.WriteString(field("left_child", len(order), func(i int) string { return child(t.Nodes[order[i]].LeftChild) }))
		sb.WriteString(field("right_child", len(order), func(i int) string { return child(t.Nodes[order[i]].RightChild) }))
	}
	sb.WriteString(field("leaf_value", len(leaves), func(i int) string { return formatFloat(t.Nodes[leaves[i]].Value + bias) }))
	if len(order) > 0 {
		sb.WriteString(field("leaf_weight", len(leaves), func(i int) string { return formatFloat(t.Nodes[leaves[i]].Weight) }))
		sb.WriteString(field("leaf_count", len(leaves), func(i int) string { return strconv.Itoa(t.Nodes[leaves[i]].Count) }))
		sb.WriteString(field("internal_value", len(order), func(i int) string { return formatFloat(t.Nodes[order[i]].Value) }))
		sb.WriteString(field("internal_weight", len(order), func(i int) string { return formatFloat(t.Nodes[order[i]].Weight) }))
		sb.WriteString(field("internal_count", len(order), func(i int) string { return strconv.Itoa(t.Nodes[order[i]].Count) }))
	}
	sb.WriteString("is_linear=0\n")
	sb.WriteString("shrinkage=" + formatFloat(t.Shrinkage) + "\n")
	sb.WriteString("\n")
	return sb.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}
