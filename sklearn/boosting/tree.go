package boosting

// Node is a single node of a regression tree. Leaves have no children.
type Node struct {
	NodeID     int
	LeftChild  int // -1 for leaves
	RightChild int // -1 for leaves

	// Split information (internal nodes)
	SplitFeature int
	Threshold    float64 // go left when value <= Threshold
	Gain         float64

	// Leaf information
	LeafValue float64
	LeafCount int

	// Sum of hessians of the training rows that reached the node
	Cover float64
}

// IsLeaf reports whether n is a terminal node.
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree is one boosting round.
type Tree struct {
	TreeIndex     int
	ShrinkageRate float64
	Nodes         []Node
	NumLeaves     int
	Depth         int
}

// Predict returns the shrunk leaf value reached by features. NaN goes right.
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue * t.ShrinkageRate
		}
		if features[node.SplitFeature] <= node.Threshold {
			nodeID = node.LeftChild
		} else {
			nodeID = node.RightChild
		}
	}
	return 0.0
}
