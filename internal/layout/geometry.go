package layout

// Rect is an axis-aligned, integer-coordinate rectangle.
type Rect struct {
	X, Y, W, H int
}

// ComputedLayout is the ephemeral result of subdividing a Rect by a
// tree of splits: a rectangle per node id and, redundantly but more
// conveniently for callers, a rectangle per leaf's pty id.
type ComputedLayout struct {
	Rects    map[NodeID]Rect
	PtyRects map[string]Rect
}

// compute subdivides area by root's tree and returns the result.
// Leaf rectangles are pairwise disjoint; a 1-unit separator column or
// row between siblings belongs to no leaf.
func compute(root *Node, area Rect) *ComputedLayout {
	cl := &ComputedLayout{Rects: make(map[NodeID]Rect), PtyRects: make(map[string]Rect)}
	computeRecursive(root, area, cl)
	return cl
}

func computeRecursive(n *Node, area Rect, cl *ComputedLayout) {
	if n == nil {
		return
	}
	cl.Rects[n.id] = area
	if n.leaf {
		cl.PtyRects[n.ptyID] = area
		return
	}

	if n.direction == Horizontal {
		firstW := int(float64(area.W) * n.ratio)
		secondW := area.W - firstW - 1
		computeRecursive(n.first, Rect{area.X, area.Y, firstW, area.H}, cl)
		computeRecursive(n.second, Rect{area.X + firstW + 1, area.Y, secondW, area.H}, cl)
		return
	}

	firstH := int(float64(area.H) * n.ratio)
	secondH := area.H - firstH - 1
	computeRecursive(n.first, Rect{area.X, area.Y, area.W, firstH}, cl)
	computeRecursive(n.second, Rect{area.X, area.Y + firstH + 1, area.W, secondH}, cl)
}

func overlapsVertically(a, b Rect) bool {
	return a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

func overlapsHorizontally(a, b Rect) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W
}
