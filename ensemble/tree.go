// Package ensemble implements the three GBDT-style base-learner families,
// their calibrators, and the ensemble-weight blend that together form the
// prediction model. The regression tree grown here follows a standard
// variance-reduction, residual-fitting shape, generalized to three
// differently grown families sharing one node/split implementation.
package ensemble

import (
	"math"
	"sort"
)

// GrowStyle selects how a family's trees pick candidate splits and how
// deep/wide they're allowed to grow, the axis the three base-learner
// families vary along.
type GrowStyle int

const (
	// GrowHistogram buckets each feature into fixed-width bins before
	// scanning split thresholds, trading split precision for speed.
	GrowHistogram GrowStyle = iota
	// GrowLeafWise expands whichever leaf has the single best gain next,
	// rather than growing every leaf at a depth before descending.
	GrowLeafWise
	// GrowOrdered grows each tree on a cyclically growing prefix of the
	// rows in presentation order (see orderedBoost), so early trees never
	// see the full training set.
	GrowOrdered
)

// treeNode is a single decision-tree node.
type treeNode struct {
	IsLeaf       bool
	Prediction   float64
	FeatureIndex int
	Threshold    float64
	Left         *treeNode
	Right        *treeNode
	SamplesCount int
}

// treeConfig bounds a tree's growth; fields are set per GrowStyle by
// newTreeConfig.
type treeConfig struct {
	style          GrowStyle
	maxDepth       int
	minSamplesLeaf int
	histogramBins  int // only used by GrowHistogram
	maxLeaves      int // only used by GrowLeafWise
}

func newTreeConfig(style GrowStyle) treeConfig {
	switch style {
	case GrowHistogram:
		return treeConfig{style: style, maxDepth: 4, minSamplesLeaf: 8, histogramBins: 32}
	case GrowLeafWise:
		return treeConfig{style: style, maxDepth: 6, minSamplesLeaf: 6, maxLeaves: 24}
	default: // GrowOrdered
		return treeConfig{style: style, maxDepth: 4, minSamplesLeaf: 8}
	}
}

// buildTree grows one regression tree over features[indices] predicting
// targets[indices], dispatching on cfg.style.
func buildTree(cfg treeConfig, features [][]float64, targets []float64, indices []int) *treeNode {
	if cfg.style == GrowLeafWise {
		return buildLeafWiseTree(cfg, features, targets, indices)
	}
	return buildDepthWiseTree(cfg, features, targets, indices, 0)
}

func buildDepthWiseTree(cfg treeConfig, features [][]float64, targets []float64, indices []int, depth int) *treeNode {
	node := &treeNode{SamplesCount: len(indices)}

	if depth >= cfg.maxDepth || len(indices) <= cfg.minSamplesLeaf || isHomogeneous(targets, indices) {
		node.IsLeaf = true
		node.Prediction = mean(targets, indices)
		return node
	}

	split := findBestSplit(cfg, features, targets, indices)
	if split == nil || split.gain <= 0.0001 {
		node.IsLeaf = true
		node.Prediction = mean(targets, indices)
		return node
	}

	node.FeatureIndex = split.featureIndex
	node.Threshold = split.threshold
	node.Left = buildDepthWiseTree(cfg, features, targets, split.leftIndices, depth+1)
	node.Right = buildDepthWiseTree(cfg, features, targets, split.rightIndices, depth+1)
	return node
}

// leafWiseCandidate is a leaf still eligible for expansion, kept in a
// priority queue ordered by best-available split gain so the single best
// leaf in the whole tree expands next, regardless of depth.
type leafWiseCandidate struct {
	node    *treeNode
	indices []int
	depth   int
	split   *splitCandidate
}

func buildLeafWiseTree(cfg treeConfig, features [][]float64, targets []float64, indices []int) *treeNode {
	root := &treeNode{IsLeaf: true, SamplesCount: len(indices), Prediction: mean(targets, indices)}
	candidates := []*leafWiseCandidate{{node: root, indices: indices, depth: 0}}
	leaves := 1

	for leaves < cfg.maxLeaves {
		best := -1
		var bestGain float64 = -1
		for i, c := range candidates {
			if c.split == nil && c.depth < cfg.maxDepth && len(c.indices) > cfg.minSamplesLeaf && !isHomogeneous(targets, c.indices) {
				c.split = findBestSplit(cfg, features, targets, c.indices)
			}
			if c.split != nil && c.split.gain > bestGain {
				bestGain = c.split.gain
				best = i
			}
		}
		if best < 0 || bestGain <= 0.0001 {
			break
		}

		c := candidates[best]
		c.node.IsLeaf = false
		c.node.FeatureIndex = c.split.featureIndex
		c.node.Threshold = c.split.threshold

		leftNode := &treeNode{IsLeaf: true, SamplesCount: len(c.split.leftIndices), Prediction: mean(targets, c.split.leftIndices)}
		rightNode := &treeNode{IsLeaf: true, SamplesCount: len(c.split.rightIndices), Prediction: mean(targets, c.split.rightIndices)}
		c.node.Left = leftNode
		c.node.Right = rightNode

		candidates = append(candidates[:best], candidates[best+1:]...)
		candidates = append(candidates,
			&leafWiseCandidate{node: leftNode, indices: c.split.leftIndices, depth: c.depth + 1},
			&leafWiseCandidate{node: rightNode, indices: c.split.rightIndices, depth: c.depth + 1},
		)
		leaves++
	}
	return root
}

type splitCandidate struct {
	featureIndex int
	threshold    float64
	gain         float64
	leftIndices  []int
	rightIndices []int
}

// findBestSplit scans every feature for the best variance-reducing
// threshold. GrowHistogram restricts candidate thresholds to a fixed grid
// of bin edges rather than every consecutive-value midpoint, the one place
// it differs in implementation from the other two styles.
func findBestSplit(cfg treeConfig, features [][]float64, targets []float64, indices []int) *splitCandidate {
	if len(indices) < 2 {
		return nil
	}
	numFeatures := len(features[0])
	var best *splitCandidate
	bestGain := -1.0
	parentVariance := variance(targets, indices)

	for featureIdx := 0; featureIdx < numFeatures; featureIdx++ {
		thresholds := candidateThresholds(cfg, features, indices, featureIdx)
		for _, threshold := range thresholds {
			var left, right []int
			for _, idx := range indices {
				if features[idx][featureIdx] <= threshold {
					left = append(left, idx)
				} else {
					right = append(right, idx)
				}
			}
			if len(left) < cfg.minSamplesLeaf || len(right) < cfg.minSamplesLeaf {
				continue
			}
			leftW := float64(len(left)) / float64(len(indices))
			rightW := float64(len(right)) / float64(len(indices))
			gain := parentVariance - (leftW*variance(targets, left) + rightW*variance(targets, right))
			if gain > bestGain {
				bestGain = gain
				best = &splitCandidate{featureIndex: featureIdx, threshold: threshold, gain: gain, leftIndices: left, rightIndices: right}
			}
		}
	}
	return best
}

func candidateThresholds(cfg treeConfig, features [][]float64, indices []int, featureIdx int) []float64 {
	values := make([]float64, len(indices))
	for i, idx := range indices {
		values[i] = features[idx][featureIdx]
	}
	unique := uniqueSorted(values)
	if len(unique) < 2 {
		return nil
	}

	if cfg.style != GrowHistogram || len(unique) <= cfg.histogramBins {
		out := make([]float64, 0, len(unique)-1)
		for i := 0; i < len(unique)-1; i++ {
			out = append(out, (unique[i]+unique[i+1])/2.0)
		}
		return out
	}

	lo, hi := unique[0], unique[len(unique)-1]
	width := (hi - lo) / float64(cfg.histogramBins)
	if width <= 0 {
		return nil
	}
	out := make([]float64, 0, cfg.histogramBins-1)
	for i := 1; i < cfg.histogramBins; i++ {
		out = append(out, lo+width*float64(i))
	}
	return out
}

func predictTree(node *treeNode, features []float64) float64 {
	for !node.IsLeaf {
		if features[node.FeatureIndex] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Prediction
}

func mean(values []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var sum float64
	for _, idx := range indices {
		sum += values[idx]
	}
	return sum / float64(len(indices))
}

func variance(values []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	m := mean(values, indices)
	var v float64
	for _, idx := range indices {
		d := values[idx] - m
		v += d * d
	}
	return v / float64(len(indices))
}

func isHomogeneous(values []float64, indices []int) bool {
	if len(indices) <= 1 {
		return true
	}
	first := values[indices[0]]
	for _, idx := range indices[1:] {
		if math.Abs(values[idx]-first) > 0.0001 {
			return false
		}
	}
	return true
}

func uniqueSorted(values []float64) []float64 {
	seen := make(map[float64]bool, len(values))
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
