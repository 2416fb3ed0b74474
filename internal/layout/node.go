// Package layout implements the split-pane layout tree: a binary tree
// whose leaves are PTY handles and whose internal nodes are
// horizontal/vertical splits with a ratio, plus directional focus
// navigation over the tree's last computed geometry.
package layout

import "github.com/google/uuid"

// Direction is the split axis of an internal node.
type Direction int

const (
	Horizontal Direction = iota
	Vertical
)

// NodeID is an opaque, process-unique layout node identifier.
type NodeID string

// Node is a tagged variant: either a Terminal leaf bound to a pty id,
// or a Split with exactly two children and a ratio in [0.1, 0.9].
type Node struct {
	id   NodeID
	leaf bool

	// leaf fields
	ptyID string

	// split fields
	direction Direction
	first     *Node
	second    *Node
	ratio     float64
}

// NewTerminal builds a leaf node bound to ptyID.
func NewTerminal(ptyID string) *Node {
	return &Node{id: newNodeID(), leaf: true, ptyID: ptyID}
}

// NewSplit builds an internal node with ratio defaulting to 0.5 when
// zero is passed.
func NewSplit(direction Direction, first, second *Node, ratio float64) *Node {
	if ratio == 0 {
		ratio = 0.5
	}
	return &Node{id: newNodeID(), direction: direction, first: first, second: second, ratio: ratio}
}

func newNodeID() NodeID { return NodeID(uuid.NewString()) }

// ID returns the node identifier.
func (n *Node) ID() NodeID { return n.id }

// IsTerminal reports whether n is a leaf.
func (n *Node) IsTerminal() bool { return n != nil && n.leaf }

// PtyID returns the bound pty id for a leaf node.
func (n *Node) PtyID() (string, bool) {
	if n == nil || !n.leaf {
		return "", false
	}
	return n.ptyID, true
}

// Direction returns the split axis for an internal node.
func (n *Node) Direction() Direction { return n.direction }

// Ratio returns the split ratio for an internal node.
func (n *Node) Ratio() float64 { return n.ratio }

// First and Second expose an internal node's children.
func (n *Node) First() *Node  { return n.first }
func (n *Node) Second() *Node { return n.second }

// TerminalCount returns the number of leaves in the subtree.
func (n *Node) TerminalCount() int {
	if n == nil {
		return 0
	}
	if n.leaf {
		return 1
	}
	return n.first.TerminalCount() + n.second.TerminalCount()
}

// AllPtyIDs returns every leaf's pty id in tree order (first, then
// second, recursively).
func (n *Node) AllPtyIDs() []string {
	if n == nil {
		return nil
	}
	if n.leaf {
		return []string{n.ptyID}
	}
	out := n.first.AllPtyIDs()
	return append(out, n.second.AllPtyIDs()...)
}

// FindNode locates a node by id via recursive descent.
func (n *Node) FindNode(id NodeID) *Node {
	if n == nil {
		return nil
	}
	if n.id == id {
		return n
	}
	if n.leaf {
		return nil
	}
	if f := n.first.FindNode(id); f != nil {
		return f
	}
	return n.second.FindNode(id)
}

// FindByPty locates the leaf bound to ptyID.
func (n *Node) FindByPty(ptyID string) *Node {
	if n == nil {
		return nil
	}
	if n.leaf {
		if n.ptyID == ptyID {
			return n
		}
		return nil
	}
	if f := n.first.FindByPty(ptyID); f != nil {
		return f
	}
	return n.second.FindByPty(ptyID)
}

func isLeafMatching(n *Node, ptyID string) bool {
	return n != nil && n.leaf && n.ptyID == ptyID
}

// findParentByPty returns the nearest ancestor split whose direct
// child is the leaf bound to ptyID, or nil if ptyID is the root leaf
// or absent from the tree.
func findParentByPty(root *Node, ptyID string) *Node {
	if root == nil || root.leaf {
		return nil
	}
	if isLeafMatching(root.first, ptyID) || isLeafMatching(root.second, ptyID) {
		return root
	}
	if p := findParentByPty(root.first, ptyID); p != nil {
		return p
	}
	return findParentByPty(root.second, ptyID)
}

// splitTerminal replaces the leaf bound to targetPtyID with a new
// Split(dir, old, newLeaf, ratio=0.5); newFirst controls whether the
// new leaf becomes the first or second child. Returns the (possibly
// unchanged) subtree rooted at root.
func splitTerminal(root *Node, targetPtyID string, dir Direction, newLeaf *Node, newFirst bool) *Node {
	if root == nil {
		return nil
	}
	if root.leaf {
		if root.ptyID != targetPtyID {
			return root
		}
		first, second := root, newLeaf
		if newFirst {
			first, second = newLeaf, root
		}
		return NewSplit(dir, first, second, 0.5)
	}
	root.first = splitTerminal(root.first, targetPtyID, dir, newLeaf, newFirst)
	root.second = splitTerminal(root.second, targetPtyID, dir, newLeaf, newFirst)
	return root
}

// removeTerminal finds the split whose direct child is the leaf bound
// to targetPtyID and replaces that split with its sibling subtree,
// collapsing one level. Reports whether a removal happened.
func removeTerminal(root *Node, targetPtyID string) (*Node, bool) {
	if root == nil || root.leaf {
		return root, false
	}
	if isLeafMatching(root.first, targetPtyID) {
		return root.second, true
	}
	if isLeafMatching(root.second, targetPtyID) {
		return root.first, true
	}
	if newFirst, ok := removeTerminal(root.first, targetPtyID); ok {
		root.first = newFirst
		return root, true
	}
	if newSecond, ok := removeTerminal(root.second, targetPtyID); ok {
		root.second = newSecond
		return root, true
	}
	return root, false
}

// adjustRatio clamps the ratio of the split identified by id to
// [0.1, 0.9], relative to a delta.
func adjustRatio(root *Node, id NodeID, delta float64) {
	if root == nil || root.leaf {
		return
	}
	if root.id == id {
		root.ratio = clamp(root.ratio+delta, 0.1, 0.9)
		return
	}
	adjustRatio(root.first, id, delta)
	adjustRatio(root.second, id, delta)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
