package model

import (
	"errors"
	"fmt"
)

// Node is one entry of a flattened binary tree. Children are indexes into the
// same slice; leaves carry the output value.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	Leaf      bool    `json:"leaf"`
}

// Tree is a flattened decision tree rooted at index 0. Samples with
// x[feature] <= threshold go left.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

var errInvalidTree = errors.New("invalid tree state")

// Eval walks the tree for x and returns the leaf value.
func (t *Tree) Eval(x []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, errors.New("tree has no nodes")
	}
	idx := 0
	for steps := 0; steps <= len(t.Nodes); steps++ {
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Value, nil
		}
		if node.Feature < 0 || node.Feature >= len(x) {
			return 0, fmt.Errorf("feature index %d out of range", node.Feature)
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, errInvalidTree
		}
	}
	return 0, fmt.Errorf("%w: cycle detected", errInvalidTree)
}

// maxFeature returns the highest feature index referenced by a split, or -1.
func (t *Tree) maxFeature() int {
	highest := -1
	for _, n := range t.Nodes {
		if !n.Leaf && n.Feature > highest {
			highest = n.Feature
		}
	}
	return highest
}

func (t *Tree) validate() error {
	if len(t.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Leaf {
			continue
		}
		if n.Feature < 0 {
			return fmt.Errorf("node %d: negative feature index", i)
		}
		if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}
