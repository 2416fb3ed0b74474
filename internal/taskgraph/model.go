// Package taskgraph models a dependency DAG of commands: nodes carry
// status, an execution result, and an error policy; edges express
// hard, soft, or purely informational dependencies.
package taskgraph

import (
	"time"

	"github.com/google/uuid"
)

// TaskID is an opaque, process-unique task identifier.
type TaskID string

// NewTaskID returns a fresh identifier.
func NewTaskID() TaskID { return TaskID(uuid.NewString()) }

// Status is a task's execution status.
type Status int

const (
	Pending Status = iota
	Blocked
	Running
	Completed
	Failed
	Cancelled
	Skipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Blocked:
		return "blocked"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is legal.
func (s Status) IsTerminal() bool {
	switch s {
	case Completed, Failed, Cancelled, Skipped:
		return true
	default:
		return false
	}
}

// IsRunnable reports whether the task may be selected to start.
func (s Status) IsRunnable() bool { return s == Pending }

// IsActive reports whether the task is running or waiting on a dep.
func (s Status) IsActive() bool { return s == Running || s == Blocked }

// Result is a task's outcome once it has run.
type Result struct {
	ExitCode   int
	Stdout     string
	Stderr     string
	DurationMs uint64
}

// IsSuccess reports exit_code == 0.
func (r Result) IsSuccess() bool { return r.ExitCode == 0 }

// SuccessResult builds a successful Result.
func SuccessResult(stdout string, durationMs uint64) Result {
	return Result{ExitCode: 0, Stdout: stdout, DurationMs: durationMs}
}

// FailureResult builds a failed Result.
func FailureResult(exitCode int, stderr string, durationMs uint64) Result {
	return Result{ExitCode: exitCode, Stderr: stderr, DurationMs: durationMs}
}

// ErrorPolicyKind selects how a task's failure propagates to its
// dependents.
type ErrorPolicyKind int

const (
	StopOnError ErrorPolicyKind = iota
	ContinueOnError
	RetryThenStop
)

// ErrorPolicy pairs a kind with RetryThenStop's retry budget.
type ErrorPolicy struct {
	Kind        ErrorPolicyKind
	MaxRetries  uint32
}

// DefaultErrorPolicy is StopOnError, matching the source default.
func DefaultErrorPolicy() ErrorPolicy { return ErrorPolicy{Kind: StopOnError} }

// EdgeKind is the relationship a TaskEdge expresses.
type EdgeKind int

const (
	// DependsOn is a hard dependency: the target waits for the
	// source, and the source's failure skips the target.
	DependsOn EdgeKind = iota
	// SoftDependsOn never propagates failure.
	SoftDependsOn
	// ParentOf is informational only, for tree presentation; the
	// scheduler never consults it.
	ParentOf
)

func (k EdgeKind) String() string {
	switch k {
	case DependsOn:
		return "depends on"
	case SoftDependsOn:
		return "soft depends on"
	case ParentOf:
		return "parent of"
	default:
		return "unknown"
	}
}

// Node is a task in the graph.
type Node struct {
	ID          TaskID
	Name        string
	Command     string
	Args        []string
	WorkingDir  string
	Env         map[string]string
	Status      Status
	Result      *Result
	ErrorPolicy ErrorPolicy
	PtyID       string // bound while Running
	ParentID    TaskID

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	RetryCount uint32
	Metadata   map[string]string
}

// NewNode creates a Pending task with a fresh id.
func NewNode(name, command string) *Node {
	return &Node{
		ID:          NewTaskID(),
		Name:        name,
		Command:     command,
		Env:         make(map[string]string),
		Status:      Pending,
		ErrorPolicy: DefaultErrorPolicy(),
		CreatedAt:   time.Now(),
		Metadata:    make(map[string]string),
	}
}

// WithArgs, WithWorkingDir, WithEnv, WithErrorPolicy, WithParent, and
// WithMetadata are builder-style setters returning the same node for
// chaining, mirroring the source's builder API.
func (n *Node) WithArgs(args []string) *Node              { n.Args = args; return n }
func (n *Node) WithWorkingDir(dir string) *Node           { n.WorkingDir = dir; return n }
func (n *Node) WithErrorPolicy(p ErrorPolicy) *Node       { n.ErrorPolicy = p; return n }
func (n *Node) WithParent(id TaskID) *Node                { n.ParentID = id; return n }
func (n *Node) WithEnv(key, value string) *Node {
	n.Env[key] = value
	return n
}
func (n *Node) WithMetadata(key, value string) *Node {
	n.Metadata[key] = value
	return n
}

// FullCommand joins command and args for display/logging.
func (n *Node) FullCommand() string {
	if len(n.Args) == 0 {
		return n.Command
	}
	full := n.Command
	for _, a := range n.Args {
		full += " " + a
	}
	return full
}

// start transitions the node to Running, binding ptyID.
func (n *Node) start(ptyID string) {
	n.Status = Running
	n.PtyID = ptyID
	now := time.Now()
	n.StartedAt = &now
}

// complete records a Result and transitions to Completed or Failed.
func (n *Node) complete(result Result) {
	if result.IsSuccess() {
		n.Status = Completed
	} else {
		n.Status = Failed
	}
	n.Result = &result
	now := time.Now()
	n.CompletedAt = &now
}

// cancel transitions to Cancelled. Legal from any non-terminal status.
func (n *Node) cancel() {
	n.Status = Cancelled
	now := time.Now()
	n.CompletedAt = &now
}

// skip transitions to Skipped. Legal from any non-terminal status.
func (n *Node) skip() {
	n.Status = Skipped
	now := time.Now()
	n.CompletedAt = &now
}

// block transitions to Blocked.
func (n *Node) block() { n.Status = Blocked }

// unblock transitions Blocked back to Pending; a no-op otherwise.
func (n *Node) unblock() {
	if n.Status == Blocked {
		n.Status = Pending
	}
}

// DurationMs returns elapsed time since start; ok is false if the
// task never started.
func (n *Node) DurationMs() (uint64, bool) {
	if n.StartedAt == nil {
		return 0, false
	}
	end := time.Now()
	if n.CompletedAt != nil {
		end = *n.CompletedAt
	}
	d := end.Sub(*n.StartedAt).Milliseconds()
	if d < 0 {
		d = 0
	}
	return uint64(d), true
}
