package layout

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// savedNode is the on-disk shape of a Node, used to round-trip a
// layout tree across a process restart. PTY ids in a loaded tree are
// placeholders: the sessions they named are gone, and the caller must
// respawn and rebind them before attaching the tree to a live pool.
type savedNode struct {
	Kind      string     `yaml:"kind"`
	PtyID     string     `yaml:"pty_id,omitempty"`
	Direction string     `yaml:"direction,omitempty"`
	Ratio     float64    `yaml:"ratio,omitempty"`
	First     *savedNode `yaml:"first,omitempty"`
	Second    *savedNode `yaml:"second,omitempty"`
}

func toSaved(n *Node) *savedNode {
	if n == nil {
		return nil
	}
	if n.leaf {
		return &savedNode{Kind: "terminal", PtyID: n.ptyID}
	}
	dir := "horizontal"
	if n.direction == Vertical {
		dir = "vertical"
	}
	return &savedNode{
		Kind:      "split",
		Direction: dir,
		Ratio:     n.ratio,
		First:     toSaved(n.first),
		Second:    toSaved(n.second),
	}
}

func fromSaved(s *savedNode) (*Node, error) {
	if s == nil {
		return nil, nil
	}
	switch s.Kind {
	case "terminal":
		return NewTerminal(s.PtyID), nil
	case "split":
		dir := Horizontal
		if s.Direction == "vertical" {
			dir = Vertical
		}
		first, err := fromSaved(s.First)
		if err != nil {
			return nil, err
		}
		second, err := fromSaved(s.Second)
		if err != nil {
			return nil, err
		}
		if first == nil || second == nil {
			return nil, fmt.Errorf("layout: split node missing a child")
		}
		return NewSplit(dir, first, second, s.Ratio), nil
	default:
		return nil, fmt.Errorf("layout: unknown node kind %q", s.Kind)
	}
}

// SaveLayout encodes the manager's current tree as YAML.
func (m *Manager) SaveLayout(w io.Writer) error {
	m.mu.Lock()
	root := m.root
	m.mu.Unlock()

	return yaml.NewEncoder(w).Encode(toSaved(root))
}

// LoadLayout decodes a YAML-encoded tree and replaces the manager's
// current tree with it. Focus is set to the tree's first leaf, if any.
func (m *Manager) LoadLayout(r io.Reader) error {
	var s savedNode
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return fmt.Errorf("layout: decode: %w", err)
	}
	root, err := fromSaved(&s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.root = root
	ids := root.AllPtyIDs()
	if len(ids) > 0 {
		m.focusedPty = ids[0]
	} else {
		m.focusedPty = ""
	}
	m.invalidateCacheLocked()
	return nil
}
