package layout

import (
	"bytes"
	"testing"
)

func TestAddTerminalFirstBecomesRootAndFocus(t *testing.T) {
	m := NewManager()
	m.AddTerminal("p1", Horizontal)

	if m.IsEmpty() {
		t.Fatal("expected non-empty after first add")
	}
	focused, ok := m.FocusedPty()
	if !ok || focused != "p1" {
		t.Fatalf("expected focus p1, got %s (ok=%v)", focused, ok)
	}
}

// TestSplitNavigate mirrors the spec's seed scenario 5: add P1, split
// horizontally adding P2, split vertically under P2 adding P3.
func TestSplitNavigate(t *testing.T) {
	m := NewManager()
	m.AddTerminal("p1", Horizontal)
	m.AddTerminal("p2", Horizontal) // splits focused p1 -> H(p1, p2), focus p2
	m.AddTerminal("p3", Vertical)   // splits focused p2 -> V(p2, p3), focus p3

	cl := m.Compute(Rect{0, 0, 80, 24})

	p1 := cl.PtyRects["p1"]
	p2 := cl.PtyRects["p2"]
	p3 := cl.PtyRects["p3"]

	if p1.X != 0 {
		t.Fatalf("p1 should occupy the left half, got %+v", p1)
	}
	if p2.X <= p1.X+p1.W && p2.X < p1.X {
		t.Fatalf("p2 should be to the right of p1, got p1=%+v p2=%+v", p1, p2)
	}
	if p2.Y >= p3.Y {
		t.Fatalf("p2 should be above p3 (top-right/bottom-right split), got p2=%+v p3=%+v", p2, p3)
	}

	if ok := m.SetFocus("p3"); !ok {
		t.Fatal("expected p3 to exist")
	}
	if ok := m.Navigate(Left); !ok {
		t.Fatal("expected navigate(Left) from p3 to succeed")
	}
	if focused, _ := m.FocusedPty(); focused != "p1" {
		t.Fatalf("navigate(Left) from p3 should land on p1, got %s", focused)
	}

	if ok := m.SetFocus("p1"); !ok {
		t.Fatal("expected p1 to exist")
	}
	if ok := m.Navigate(Right); !ok {
		t.Fatal("expected navigate(Right) from p1 to succeed")
	}
	focused, _ := m.FocusedPty()
	if focused != "p2" && focused != "p3" {
		t.Fatalf("navigate(Right) from p1 should land on p2 or p3, got %s", focused)
	}
}

func TestAddThenRemoveRestoresShape(t *testing.T) {
	m := NewManager()
	m.AddTerminal("p1", Horizontal)
	m.AddTerminal("p2", Horizontal)

	m.RemoveTerminal("p2")

	if got := m.TerminalCount(); got != 1 {
		t.Fatalf("expected 1 terminal after removing p2, got %d", got)
	}
	focused, ok := m.FocusedPty()
	if !ok || focused != "p1" {
		t.Fatalf("expected focus to remain p1, got %s (ok=%v)", focused, ok)
	}
}

func TestFocusNextFullCircleReturnsToStart(t *testing.T) {
	m := NewManager()
	m.AddTerminal("p1", Horizontal)
	m.AddTerminal("p2", Horizontal)
	m.AddTerminal("p3", Horizontal)

	start, _ := m.FocusedPty()
	for i := 0; i < 3; i++ {
		m.FocusNext()
	}
	end, _ := m.FocusedPty()
	if start != end {
		t.Fatalf("focus_next x3 should return to start, got %s want %s", end, start)
	}
}

func TestResizeFocusedSaturates(t *testing.T) {
	m := NewManager()
	m.AddTerminal("p1", Horizontal)
	m.AddTerminal("p2", Horizontal)

	m.ResizeFocused(1000)
	parent := findParentByPty(m.root, "p2")
	if parent.ratio != 0.9 {
		t.Fatalf("expected ratio to saturate at 0.9, got %f", parent.ratio)
	}

	m.ResizeFocused(-1000)
	if parent.ratio != 0.1 {
		t.Fatalf("expected ratio to saturate at 0.1, got %f", parent.ratio)
	}
}

func TestSaveLoadLayoutRoundTrip(t *testing.T) {
	m := NewManager()
	m.AddTerminal("p1", Horizontal)
	m.AddTerminal("p2", Horizontal)

	var buf bytes.Buffer
	if err := m.SaveLayout(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}

	m2 := NewManager()
	if err := m2.LoadLayout(&buf); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got, want := m2.TerminalCount(), m.TerminalCount(); got != want {
		t.Fatalf("terminal count mismatch after round-trip: got %d want %d", got, want)
	}
}
