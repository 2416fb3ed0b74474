package layout

import "sync"

// NavDirection is a screen-space direction used by Navigate, distinct
// from a split's axis Direction.
type NavDirection int

const (
	Left NavDirection = iota
	Right
	Up
	Down
)

// Manager owns an optional tree root, an optional focused pty id, and
// a geometry cache keyed by the last bounding box passed to Compute.
type Manager struct {
	mu sync.Mutex

	root       *Node
	focusedPty string

	haveCache    bool
	cachedArea   Rect
	cachedLayout *ComputedLayout
}

// NewManager returns an empty layout.
func NewManager() *Manager {
	return &Manager{}
}

// IsEmpty reports whether the tree has no terminals.
func (m *Manager) IsEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root == nil
}

// Root returns the tree root, or nil if empty.
func (m *Manager) Root() *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root
}

// FocusedPty returns the currently focused pty id, if any.
func (m *Manager) FocusedPty() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focusedPty, m.focusedPty != ""
}

// SetFocus moves focus to ptyID, only if it exists in the tree.
func (m *Manager) SetFocus(ptyID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root.FindByPty(ptyID) == nil {
		return false
	}
	m.focusedPty = ptyID
	return true
}

// AddTerminal adds a new leaf for ptyID. If the tree is empty, the
// new leaf becomes the root and the focus. Otherwise it splits the
// currently focused leaf (or the first leaf if none is focused) along
// dir, and the new leaf always becomes the split's second child.
func (m *Manager) AddTerminal(ptyID string, dir Direction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newLeaf := NewTerminal(ptyID)
	if m.root == nil {
		m.root = newLeaf
		m.focusedPty = ptyID
		m.invalidateCacheLocked()
		return
	}

	target := m.focusedPty
	if target == "" {
		ids := m.root.AllPtyIDs()
		if len(ids) > 0 {
			target = ids[0]
		}
	}

	m.root = splitTerminal(m.root, target, dir, newLeaf, false)
	m.focusedPty = ptyID
	m.invalidateCacheLocked()
}

// RemoveTerminal removes the leaf bound to ptyID. If it was the
// focused leaf, focus moves to the tree's first remaining leaf.
func (m *Manager) RemoveTerminal(ptyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root == nil {
		return
	}
	if m.root.leaf && m.root.ptyID == ptyID {
		m.root = nil
		m.focusedPty = ""
		m.invalidateCacheLocked()
		return
	}

	newRoot, removed := removeTerminal(m.root, ptyID)
	if !removed {
		return
	}
	m.root = newRoot
	if m.focusedPty == ptyID {
		ids := m.root.AllPtyIDs()
		if len(ids) > 0 {
			m.focusedPty = ids[0]
		} else {
			m.focusedPty = ""
		}
	}
	m.invalidateCacheLocked()
}

// ResizeFocused finds the nearest ancestor split of the focused leaf
// and clamps its ratio to [0.1, 0.9] after adding delta.
func (m *Manager) ResizeFocused(delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.focusedPty == "" {
		return
	}
	parent := findParentByPty(m.root, m.focusedPty)
	if parent == nil {
		return
	}
	parent.ratio = clamp(parent.ratio+delta, 0.1, 0.9)
	m.invalidateCacheLocked()
}

// AllPtyIDs returns every leaf's pty id in tree order.
func (m *Manager) AllPtyIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root.AllPtyIDs()
}

// TerminalCount returns the number of leaves in the tree.
func (m *Manager) TerminalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.root.TerminalCount()
}

// Compute returns the geometry for area, memoized by exact equality
// against the last requested area.
func (m *Manager) Compute(area Rect) *ComputedLayout {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.haveCache && m.cachedArea == area {
		return m.cachedLayout
	}
	cl := compute(m.root, area)
	m.cachedArea = area
	m.cachedLayout = cl
	m.haveCache = true
	return cl
}

// InvalidateCache forces the next Compute call to recompute.
func (m *Manager) InvalidateCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidateCacheLocked()
}

func (m *Manager) invalidateCacheLocked() {
	m.haveCache = false
	m.cachedLayout = nil
}

// Navigate moves focus to the adjacent leaf in screen-space direction
// dir, using the last computed layout. Requires a root, a focus, and
// a present cache; returns false if any is missing or no candidate
// exists in that direction.
func (m *Manager) Navigate(dir NavDirection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root == nil || m.focusedPty == "" || !m.haveCache {
		return false
	}
	focusedRect, ok := m.cachedLayout.PtyRects[m.focusedPty]
	if !ok {
		return false
	}

	best := ""
	bestGap := 0
	for ptyID, rect := range m.cachedLayout.PtyRects {
		if ptyID == m.focusedPty {
			continue
		}
		gap, candidate := navigationGap(dir, focusedRect, rect)
		if candidate && (best == "" || gap < bestGap) {
			best = ptyID
			bestGap = gap
		}
	}
	if best == "" {
		return false
	}
	m.focusedPty = best
	return true
}

func navigationGap(dir NavDirection, focused, other Rect) (gap int, candidate bool) {
	switch dir {
	case Left:
		if other.X+other.W <= focused.X && overlapsVertically(other, focused) {
			return focused.X - (other.X + other.W), true
		}
	case Right:
		if other.X >= focused.X+focused.W && overlapsVertically(other, focused) {
			return other.X - (focused.X + focused.W), true
		}
	case Up:
		if other.Y+other.H <= focused.Y && overlapsHorizontally(other, focused) {
			return focused.Y - (other.Y + other.H), true
		}
	case Down:
		if other.Y >= focused.Y+focused.H && overlapsHorizontally(other, focused) {
			return other.Y - (focused.Y + focused.H), true
		}
	}
	return 0, false
}

// FocusNext and FocusPrev rotate focus through the tree's leaves in
// tree order, independent of geometry. They wrap at the ends and
// report false on an empty tree.
func (m *Manager) FocusNext() (string, bool) { return m.rotateFocus(1) }
func (m *Manager) FocusPrev() (string, bool) { return m.rotateFocus(-1) }

func (m *Manager) rotateFocus(step int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.root.AllPtyIDs()
	n := len(ids)
	if n == 0 {
		return "", false
	}
	idx := 0
	for i, id := range ids {
		if id == m.focusedPty {
			idx = i
			break
		}
	}
	idx = ((idx+step)%n + n) % n
	m.focusedPty = ids[idx]
	return m.focusedPty, true
}
