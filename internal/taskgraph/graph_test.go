package taskgraph

import "testing"

func TestAddDependencyRejectsCycle(t *testing.T) {
	g := NewGraph()
	a := g.AddTask(NewNode("A", "echo"))
	b := g.AddTask(NewNode("B", "echo"))

	if err := g.AddDependency(a, b, DependsOn); err != nil {
		t.Fatalf("a->b: %v", err)
	}

	before, _ := g.TopologicalOrder()

	err := g.AddDependency(b, a, DependsOn)
	if err == nil {
		t.Fatal("expected CircularDependency error")
	}

	after, _ := g.TopologicalOrder()
	if len(before) != len(after) || before[0] != after[0] || before[1] != after[1] {
		t.Fatalf("graph should be unchanged after rejected cycle: before=%v after=%v", before, after)
	}
}

func TestTopologicalOrderUniqueChain(t *testing.T) {
	g := NewGraph()
	a := g.AddTask(NewNode("A", "echo"))
	b := g.AddTask(NewNode("B", "echo"))
	c := g.AddTask(NewNode("C", "echo"))
	_ = g.AddDependency(a, b, DependsOn)
	_ = g.AddDependency(b, c, DependsOn)

	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatalf("topo: %v", err)
	}
	if len(order) != 3 || order[0] != a || order[1] != b || order[2] != c {
		t.Fatalf("expected [A,B,C], got %v", order)
	}
}

func TestUpdateBlockedStatusPropagatesSkip(t *testing.T) {
	g := NewGraph()
	a := g.AddTask(NewNode("A", "false"))
	b := g.AddTask(NewNode("B", "echo"))
	c := g.AddTask(NewNode("C", "echo"))
	_ = g.AddDependency(a, b, DependsOn)
	_ = g.AddDependency(a, c, DependsOn)

	if err := g.StartTask(a, "pty-a"); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := g.CompleteTask(a, FailureResult(1, "boom", 5)); err != nil {
		t.Fatalf("complete a: %v", err)
	}

	g.UpdateBlockedStatus()

	nb, _ := g.GetTask(b)
	nc, _ := g.GetTask(c)
	if nb.Status != Skipped || nc.Status != Skipped {
		t.Fatalf("expected B and C skipped after A failed, got B=%s C=%s", nb.Status, nc.Status)
	}
}

func TestGetReadyTasksRespectsHardDeps(t *testing.T) {
	g := NewGraph()
	a := g.AddTask(NewNode("A", "echo"))
	b := g.AddTask(NewNode("B", "echo"))
	_ = g.AddDependency(a, b, DependsOn)

	ready := g.GetReadyTasks()
	if len(ready) != 1 || ready[0] != a {
		t.Fatalf("expected only A ready, got %v", ready)
	}

	_ = g.StartTask(a, "pty-a")
	_ = g.CompleteTask(a, SuccessResult("", 1))
	g.UpdateBlockedStatus()

	ready = g.GetReadyTasks()
	if len(ready) != 1 || ready[0] != b {
		t.Fatalf("expected only B ready after A completes, got %v", ready)
	}
}

func TestSoftDependencyDoesNotSkip(t *testing.T) {
	g := NewGraph()
	a := g.AddTask(NewNode("A", "false"))
	b := g.AddTask(NewNode("B", "echo"))
	_ = g.AddDependency(a, b, SoftDependsOn)

	_ = g.StartTask(a, "pty-a")
	_ = g.CompleteTask(a, FailureResult(1, "boom", 5))
	g.UpdateBlockedStatus()

	nb, _ := g.GetTask(b)
	if nb.Status == Skipped {
		t.Fatal("soft dependency failure must not propagate a skip")
	}
}

func TestGetAllDependentsTransitive(t *testing.T) {
	g := NewGraph()
	a := g.AddTask(NewNode("A", "echo"))
	b := g.AddTask(NewNode("B", "echo"))
	c := g.AddTask(NewNode("C", "echo"))
	_ = g.AddDependency(a, b, DependsOn)
	_ = g.AddDependency(b, c, DependsOn)

	dependents := g.GetAllDependents(a)
	if len(dependents) != 2 {
		t.Fatalf("expected 2 transitive dependents of A, got %v", dependents)
	}
}
