// Package executor bridges a task Scheduler to a pty.Pool: it turns
// TaskReady events into spawned PTY sessions, polls their output, and
// feeds exit results back into the scheduler.
package executor

import (
	"fmt"
	"os"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/hatchbench/weavepane/internal/pty"
	"github.com/hatchbench/weavepane/internal/scheduler"
	"github.com/hatchbench/weavepane/internal/taskgraph"
)

// Config bounds how the executor spawns and shells out to tasks.
type Config struct {
	MaxConcurrent int
	WorkingDir    string
	Shell         string
	CaptureOutput bool
}

// DefaultConfig picks $SHELL, falling back to /bin/sh, matching the
// source's own default resolution.
func DefaultConfig() Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return Config{MaxConcurrent: 4, Shell: shell, CaptureOutput: true}
}

// Event is one of the executor's lifecycle notifications: every
// scheduler.Event plus the two PTY-specific additions below.
type Event interface{ isExecutorEvent() }

// TaskStarted is emitted once a ready task has actually been spawned
// under a PTY.
type TaskStarted struct {
	ID    taskgraph.TaskID
	PtyID string
}

// TaskOutput carries newly captured output for a running task.
type TaskOutput struct {
	ID   taskgraph.TaskID
	Data string
}

// Passthrough wraps a scheduler.Event that needed no PTY-specific
// handling of its own.
type Passthrough struct{ Event scheduler.Event }

func (TaskStarted) isExecutorEvent() {}
func (TaskOutput) isExecutorEvent()  {}
func (Passthrough) isExecutorEvent() {}

type runningTask struct {
	taskID    taskgraph.TaskID
	ptyID     string
	startedAt time.Time
	output    strings.Builder
}

// Executor owns a Scheduler and a pty.Pool and keeps them in sync.
type Executor struct {
	sched *scheduler.Scheduler
	pool  *pty.Pool
	cfg   Config

	running   map[string]*runningTask // pty id -> task
	taskToPty map[taskgraph.TaskID]string
}

// New builds an Executor over an existing scheduler and pool.
func New(sched *scheduler.Scheduler, pool *pty.Pool, cfg Config) *Executor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.Shell == "" {
		cfg.Shell = DefaultConfig().Shell
	}
	return &Executor{
		sched:     sched,
		pool:      pool,
		cfg:       cfg,
		running:   make(map[string]*runningTask),
		taskToPty: make(map[taskgraph.TaskID]string),
	}
}

// Scheduler exposes the underlying scheduler.
func (e *Executor) Scheduler() *scheduler.Scheduler { return e.sched }

// Pool exposes the underlying pty pool.
func (e *Executor) Pool() *pty.Pool { return e.pool }

// RunningCount returns the number of tasks the executor has spawned a
// PTY for and not yet reaped.
func (e *Executor) RunningCount() int { return len(e.running) }

// IsComplete mirrors the scheduler's completion check.
func (e *Executor) IsComplete() bool { return e.sched.IsComplete() }

// Start begins execution: it asks the scheduler for its initial ready
// batch and spawns a PTY for each.
func (e *Executor) Start() ([]Event, error) {
	return e.dispatch(e.sched.Start())
}

// dispatch converts scheduler events into executor events, starting a
// PTY for every TaskReady and passing everything else through. A
// spawn failure never stops the batch: it is reported to the
// scheduler as a start failure and its resulting events (TaskFailed,
// any dependents it skips, a fresh Progress/AllComplete) are folded in
// alongside the rest.
func (e *Executor) dispatch(schedEvents []scheduler.Event) ([]Event, error) {
	var out []Event
	for _, se := range schedEvents {
		ready, ok := se.(scheduler.TaskReady)
		if !ok {
			out = append(out, Passthrough{Event: se})
			continue
		}
		out = append(out, e.startTask(ready.ID, ready.Command, ready.Args)...)
	}
	return out, nil
}

// startTask composes a `shell -c "command args..."` invocation and
// spawns it under the pool. If the pool rejects it (e.g. at the
// session cap), the scheduler never sees TaskStarted — it is instead
// told the task failed to start, which clears its pending-start slot,
// applies the task's error policy, and emits TaskFailed directly, per
// spec.md's start-failure handling.
func (e *Executor) startTask(id taskgraph.TaskID, command string, args []string) []Event {
	line := shellquote.Join(append([]string{command}, args...)...)

	cfg := pty.Config{
		Shell:   e.cfg.Shell,
		Args:    []string{"-c", line},
		WorkDir: e.cfg.WorkingDir,
	}
	ptyID, err := e.pool.Spawn(cfg, fmt.Sprintf("task-%s", id))
	if err != nil {
		out, _ := e.dispatch(e.sched.TaskFailedToStart(id, err))
		return out
	}

	e.running[ptyID] = &runningTask{taskID: id, ptyID: ptyID, startedAt: time.Now()}
	e.taskToPty[id] = ptyID

	e.sched.TaskStarted(id, ptyID)
	return []Event{TaskStarted{ID: id, PtyID: ptyID}}
}

// Poll drains newly captured pool output into each running task's
// accumulator (when CaptureOutput is set) and returns a TaskOutput
// event per pty with fresh bytes. With no running task it reads
// nothing, leaving every pool session's pending output in place.
func (e *Executor) Poll() []Event {
	if !e.cfg.CaptureOutput || len(e.running) == 0 {
		return nil
	}
	var out []Event
	for ptyID, data := range e.pool.ReadAllOutputs() {
		rt, ok := e.running[ptyID]
		if !ok || len(data) == 0 {
			continue
		}
		rt.output.Write(data)
		out = append(out, TaskOutput{ID: rt.taskID, Data: string(data)})
	}
	return out
}

// TaskExited reports a pty's process exit, builds the task Result
// from the accumulated output and elapsed time, feeds it to the
// scheduler, kills the pty, and returns the resulting executor
// events.
func (e *Executor) TaskExited(ptyID string, exitCode int) ([]Event, error) {
	rt, ok := e.running[ptyID]
	if !ok {
		return nil, fmt.Errorf("executor: no running task for pty %q", ptyID)
	}
	delete(e.running, ptyID)
	delete(e.taskToPty, rt.taskID)

	elapsed := uint64(time.Since(rt.startedAt).Milliseconds())
	var result taskgraph.Result
	if exitCode == 0 {
		result = taskgraph.SuccessResult(rt.output.String(), elapsed)
	} else {
		result = taskgraph.FailureResult(exitCode, rt.output.String(), elapsed)
	}

	schedEvents := e.sched.TaskCompleted(rt.taskID, result)
	_ = e.pool.Kill(ptyID)

	return e.dispatch(schedEvents)
}

// ReapExited checks every running pty for a non-blocking exit and
// feeds each one through TaskExited. Callers drive this from their
// own poll loop alongside Poll.
func (e *Executor) ReapExited() ([]Event, error) {
	ptyIDs := make([]string, 0, len(e.running))
	for id := range e.running {
		ptyIDs = append(ptyIDs, id)
	}

	var out []Event
	for _, ptyID := range ptyIDs {
		code, exited, err := e.pool.TryWait(ptyID)
		if err != nil || !exited {
			continue
		}
		events, err := e.TaskExited(ptyID, code)
		if err != nil {
			return out, err
		}
		out = append(out, events...)
	}
	return out, nil
}

// CancelTask cancels a task by its pty, killing the pty and
// propagating the cancellation through the scheduler.
func (e *Executor) CancelTask(id taskgraph.TaskID) []Event {
	if ptyID, ok := e.taskToPty[id]; ok {
		_ = e.pool.Kill(ptyID)
		delete(e.running, ptyID)
		delete(e.taskToPty, id)
	}
	var out []Event
	for _, se := range e.sched.CancelTask(id) {
		out = append(out, Passthrough{Event: se})
	}
	return out
}

// CancelAll cancels every running task's pty and tells the scheduler
// to cancel everything outstanding.
func (e *Executor) CancelAll() []Event {
	for ptyID := range e.running {
		_ = e.pool.Kill(ptyID)
	}
	e.running = make(map[string]*runningTask)
	e.taskToPty = make(map[taskgraph.TaskID]string)

	var out []Event
	for _, se := range e.sched.CancelAll() {
		out = append(out, Passthrough{Event: se})
	}
	return out
}

// Pause stops the scheduler from selecting new work; tasks already
// running are left alone.
func (e *Executor) Pause() { e.sched.Pause() }

// Resume clears pause and dispatches any newly-ready tasks.
func (e *Executor) Resume() ([]Event, error) {
	return e.dispatch(e.sched.Resume())
}

// GetPtyByTask returns the pty id a task is currently bound to.
func (e *Executor) GetPtyByTask(id taskgraph.TaskID) (string, bool) {
	ptyID, ok := e.taskToPty[id]
	return ptyID, ok
}

// GetTaskByPty returns the task id a pty is currently running.
func (e *Executor) GetTaskByPty(ptyID string) (taskgraph.TaskID, bool) {
	rt, ok := e.running[ptyID]
	if !ok {
		return "", false
	}
	return rt.taskID, true
}
