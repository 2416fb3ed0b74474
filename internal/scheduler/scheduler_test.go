package scheduler

import (
	"testing"

	"github.com/hatchbench/weavepane/internal/taskgraph"
)

func countReady(events []Event) []taskgraph.TaskID {
	var ids []taskgraph.TaskID
	for _, e := range events {
		if r, ok := e.(TaskReady); ok {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func hasFailed(events []Event, id taskgraph.TaskID) bool {
	for _, e := range events {
		if f, ok := e.(TaskFailed); ok && f.ID == id {
			return true
		}
	}
	return false
}

func hasSkipped(events []Event, id taskgraph.TaskID) bool {
	for _, e := range events {
		if s, ok := e.(TaskSkipped); ok && s.ID == id {
			return true
		}
	}
	return false
}

func hasAllComplete(events []Event) bool {
	for _, e := range events {
		if _, ok := e.(AllComplete); ok {
			return true
		}
	}
	return false
}

// Linear chain A -> B -> C: only A is ready at Start, B becomes ready
// only after A completes, C only after B completes.
func TestLinearChainOrdering(t *testing.T) {
	g := taskgraph.NewGraph()
	a := g.AddTask(taskgraph.NewNode("A", "echo"))
	b := g.AddTask(taskgraph.NewNode("B", "echo"))
	c := g.AddTask(taskgraph.NewNode("C", "echo"))
	_ = g.AddDependency(a, b, taskgraph.DependsOn)
	_ = g.AddDependency(b, c, taskgraph.DependsOn)

	sched := New(g, DefaultConfig())

	ready := countReady(sched.Start())
	if len(ready) != 1 || ready[0] != a {
		t.Fatalf("expected only A ready at start, got %v", ready)
	}

	sched.TaskStarted(a, "pty-a")
	events := sched.TaskCompleted(a, taskgraph.SuccessResult("", 1))
	ready = countReady(events)
	if len(ready) != 1 || ready[0] != b {
		t.Fatalf("expected only B ready after A completes, got %v", ready)
	}

	sched.TaskStarted(b, "pty-b")
	events = sched.TaskCompleted(b, taskgraph.SuccessResult("", 1))
	ready = countReady(events)
	if len(ready) != 1 || ready[0] != c {
		t.Fatalf("expected only C ready after B completes, got %v", ready)
	}

	sched.TaskStarted(c, "pty-c")
	events = sched.TaskCompleted(c, taskgraph.SuccessResult("", 1))
	if !hasAllComplete(events) {
		t.Fatal("expected AllComplete after C completes")
	}
}

// Fan-out: one root with 4 children, concurrency cap of 2. Exactly 2
// children become ready before any of them completes.
func TestFanOutRespectsConcurrencyCap(t *testing.T) {
	g := taskgraph.NewGraph()
	root := g.AddTask(taskgraph.NewNode("root", "echo"))
	children := make([]taskgraph.TaskID, 4)
	for i := range children {
		children[i] = g.AddTask(taskgraph.NewNode("child", "echo"))
		_ = g.AddDependency(root, children[i], taskgraph.DependsOn)
	}

	sched := New(g, Config{MaxConcurrent: 2, DefaultErrorPolicy: taskgraph.DefaultErrorPolicy()})

	sched.Start()
	sched.TaskStarted(root, "pty-root")
	events := sched.TaskCompleted(root, taskgraph.SuccessResult("", 1))

	ready := countReady(events)
	if len(ready) != 2 {
		t.Fatalf("expected exactly 2 children dispatched under cap=2, got %d (%v)", len(ready), ready)
	}

	for _, id := range ready {
		sched.TaskStarted(id, "pty-"+string(id))
	}
	more := sched.GetNextTasks()
	if len(more) != 0 {
		t.Fatalf("expected no further tasks while 2 are running at cap=2, got %v", more)
	}
}

// StopOnError: A has two dependents B and C; when A fails, both are
// skipped and no TaskReady for either is ever emitted.
func TestStopOnErrorSkipsAllDependents(t *testing.T) {
	g := taskgraph.NewGraph()
	a := g.AddTask(taskgraph.NewNode("A", "false"))
	b := g.AddTask(taskgraph.NewNode("B", "echo"))
	c := g.AddTask(taskgraph.NewNode("C", "echo"))
	_ = g.AddDependency(a, b, taskgraph.DependsOn)
	_ = g.AddDependency(a, c, taskgraph.DependsOn)

	sched := New(g, DefaultConfig())
	sched.Start()
	sched.TaskStarted(a, "pty-a")
	events := sched.TaskCompleted(a, taskgraph.FailureResult(1, "boom", 5))

	if !hasFailed(events, a) {
		t.Fatal("expected TaskFailed for A")
	}
	if !hasSkipped(events, b) || !hasSkipped(events, c) {
		t.Fatalf("expected B and C skipped, events=%v", events)
	}
	if !hasAllComplete(events) {
		t.Fatal("expected AllComplete once A fails and B/C are skipped")
	}
}

// ContinueOnError: B depends on A, D has no relation to A; A and D
// start together, and when A fails its direct dependent B is skipped.
func TestContinueOnErrorSkipsOnlyDirectDependents(t *testing.T) {
	g := taskgraph.NewGraph()
	a := g.AddTask(taskgraph.NewNode("A", "false").WithErrorPolicy(taskgraph.ErrorPolicy{Kind: taskgraph.ContinueOnError}))
	b := g.AddTask(taskgraph.NewNode("B", "echo"))
	d := g.AddTask(taskgraph.NewNode("D", "echo"))
	_ = g.AddDependency(a, b, taskgraph.DependsOn)

	sched := New(g, DefaultConfig())
	ready := countReady(sched.Start())
	if len(ready) != 2 {
		t.Fatalf("expected A and D both ready initially, got %v", ready)
	}

	sched.TaskStarted(a, "pty-a")
	sched.TaskStarted(d, "pty-d")
	events := sched.TaskCompleted(a, taskgraph.FailureResult(1, "boom", 5))

	if !hasSkipped(events, b) {
		t.Fatal("expected B skipped")
	}
	if !hasFailed(events, a) {
		t.Fatal("expected TaskFailed for A")
	}
}

// RetryThenStop{max:2}: two silent resets (no TaskFailed, no
// dependent skip, and the task becomes ready again), then on the
// third failure TaskFailed fires and dependents are skipped.
func TestRetryThenStopExhaustsBeforeFailing(t *testing.T) {
	g := taskgraph.NewGraph()
	a := g.AddTask(taskgraph.NewNode("A", "false").WithErrorPolicy(taskgraph.ErrorPolicy{Kind: taskgraph.RetryThenStop, MaxRetries: 2}))
	b := g.AddTask(taskgraph.NewNode("B", "echo"))
	_ = g.AddDependency(a, b, taskgraph.DependsOn)

	sched := New(g, DefaultConfig())
	sched.Start()

	for i := 0; i < 2; i++ {
		sched.TaskStarted(a, "pty-a")
		events := sched.TaskCompleted(a, taskgraph.FailureResult(1, "boom", 5))
		if hasFailed(events, a) {
			t.Fatalf("attempt %d: TaskFailed fired too early", i)
		}
		if hasSkipped(events, b) {
			t.Fatalf("attempt %d: B skipped too early", i)
		}
		ready := countReady(events)
		if len(ready) != 1 || ready[0] != a {
			t.Fatalf("attempt %d: expected A ready again for retry, got %v", i, ready)
		}
	}

	sched.TaskStarted(a, "pty-a")
	events := sched.TaskCompleted(a, taskgraph.FailureResult(1, "boom", 5))
	if !hasFailed(events, a) {
		t.Fatal("expected TaskFailed once retries exhausted")
	}
	if !hasSkipped(events, b) {
		t.Fatal("expected B skipped once retries exhausted")
	}
}

func TestCancelAllLeavesNothingRunning(t *testing.T) {
	g := taskgraph.NewGraph()
	a := g.AddTask(taskgraph.NewNode("A", "sleep"))
	b := g.AddTask(taskgraph.NewNode("B", "echo"))
	c := g.AddTask(taskgraph.NewNode("C", "echo"))
	_ = g.AddDependency(a, b, taskgraph.DependsOn)

	sched := New(g, DefaultConfig())
	sched.Start()
	sched.TaskStarted(a, "pty-a")
	sched.TaskStarted(c, "pty-c")

	events := sched.CancelAll()
	if !sched.IsComplete() && sched.RunningCount() != 0 {
		t.Fatalf("expected no running tasks after CancelAll, running=%d", sched.RunningCount())
	}
	_ = events
}
