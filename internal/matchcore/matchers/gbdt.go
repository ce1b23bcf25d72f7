package matchers

import (
	"encoding/json"
	"fmt"
	"os"
)

// gbdtModelVersion is the serialized format this evaluator understands.
const gbdtModelVersion = 1

// gbdtNode is one node of a regression tree in array layout. Leaf nodes set
// Leaf; internal nodes route on Feature <= Threshold. Value holds the
// subtree's expected output, used for path attribution.
type gbdtNode struct {
	Feature   string  `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
	Value     float64 `json:"value"`
}

type gbdtTree struct {
	Nodes []gbdtNode `json:"nodes"`
}

// GBDTModel is a pre-trained gradient-boosted decision-tree ensemble mapping
// a feature vector to a score in [0,1].
type GBDTModel struct {
	Version   int        `json:"version"`
	BaseScore float64    `json:"baseScore"`
	Features  []string   `json:"features"`
	Trees     []gbdtTree `json:"trees"`
}

// LoadGBDTModel reads and validates a serialized model. A missing or
// incompatible file is an error; callers must not fall back silently.
func LoadGBDTModel(path string) (*GBDTModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gbdt: read model %s: %w", path, err)
	}
	return ParseGBDTModel(raw)
}

// ParseGBDTModel validates a serialized model document.
func ParseGBDTModel(raw []byte) (*GBDTModel, error) {
	var m GBDTModel
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("gbdt: parse model: %w", err)
	}
	if m.Version != gbdtModelVersion {
		return nil, fmt.Errorf("gbdt: unsupported model version %d (want %d)", m.Version, gbdtModelVersion)
	}
	if len(m.Trees) == 0 {
		return nil, fmt.Errorf("gbdt: model has no trees")
	}
	for ti, tree := range m.Trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("gbdt: tree %d has no nodes", ti)
		}
		for ni, node := range tree.Nodes {
			if node.Leaf {
				continue
			}
			if node.Feature == "" {
				return nil, fmt.Errorf("gbdt: tree %d node %d has no split feature", ti, ni)
			}
			if node.Left < 0 || node.Left >= len(tree.Nodes) || node.Right < 0 || node.Right >= len(tree.Nodes) {
				return nil, fmt.Errorf("gbdt: tree %d node %d has out-of-range children", ti, ni)
			}
		}
	}
	return &m, nil
}

// Predict evaluates the ensemble on a feature map. Absent features read as
// zero. The output is clipped to [0,1].
func (m *GBDTModel) Predict(features map[string]float64) float64 {
	score := m.BaseScore
	for _, tree := range m.Trees {
		score += tree.evaluate(features)
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func (t *gbdtTree) evaluate(features map[string]float64) float64 {
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Value
		}
		if features[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
	// A cycle in the node graph; validated models cannot reach this.
	return 0
}

// Attribute computes per-feature contributions by walking each tree's
// decision path and crediting the change in expected value at every split
// to the feature that routed it.
func (m *GBDTModel) Attribute(features map[string]float64) map[string]float64 {
	contributions := make(map[string]float64)
	for _, tree := range m.Trees {
		idx := 0
		for steps := 0; steps <= len(tree.Nodes); steps++ {
			node := tree.Nodes[idx]
			if node.Leaf {
				break
			}
			next := node.Left
			if features[node.Feature] > node.Threshold {
				next = node.Right
			}
			contributions[node.Feature] += tree.Nodes[next].Value - node.Value
			idx = next
		}
	}
	return contributions
}
