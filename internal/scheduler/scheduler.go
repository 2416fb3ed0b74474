package scheduler

import "github.com/hatchbench/weavepane/internal/taskgraph"

// Config bounds a Scheduler's concurrency and its default error
// policy for tasks that don't set their own.
type Config struct {
	MaxConcurrent      int
	DefaultErrorPolicy taskgraph.ErrorPolicy
}

// DefaultConfig matches the source's defaults: 4-way concurrency,
// stop-on-error.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4, DefaultErrorPolicy: taskgraph.DefaultErrorPolicy()}
}

// ReadyTask is a task selected to run, carrying enough information
// for a caller to actually spawn it.
type ReadyTask struct {
	ID      taskgraph.TaskID
	Command string
	Args    []string
}

// Scheduler is a synchronous state machine: it owns a Graph and
// tracks which tasks are running or have been handed out as ready but
// not yet confirmed started. It is driven from a single goroutine and
// is never safe to share without external synchronization — this
// matches the Executor, which is the scheduler's only caller.
type Scheduler struct {
	graph *taskgraph.Graph
	cfg   Config

	running      map[taskgraph.TaskID]string // task id -> pty id
	pendingStart map[taskgraph.TaskID]bool

	paused    bool
	cancelled bool
}

// New builds a Scheduler over graph.
func New(graph *taskgraph.Graph, cfg Config) *Scheduler {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Scheduler{
		graph:        graph,
		cfg:          cfg,
		running:      make(map[taskgraph.TaskID]string),
		pendingStart: make(map[taskgraph.TaskID]bool),
	}
}

// RunningCount returns the number of tasks currently Running.
func (s *Scheduler) RunningCount() int { return len(s.running) }

// IsComplete reports whether nothing is running, nothing is
// pending-start, and every task has reached a terminal status.
func (s *Scheduler) IsComplete() bool {
	if len(s.running) > 0 || len(s.pendingStart) > 0 {
		return false
	}
	return s.graph.Statistics().IsDone()
}

// Statistics exposes the underlying graph's statistics.
func (s *Scheduler) Statistics() taskgraph.Statistics { return s.graph.Statistics() }

func (s *Scheduler) availableSlots() int {
	used := len(s.running) + len(s.pendingStart)
	slots := s.cfg.MaxConcurrent - used
	if slots < 0 {
		return 0
	}
	return slots
}

// GetNextTasks selects up to the remaining concurrency slots' worth of
// ready tasks not already running or pending-start, marks them
// pending-start, and returns them. Returns nothing while paused or
// cancelled.
func (s *Scheduler) GetNextTasks() []ReadyTask {
	if s.paused || s.cancelled {
		return nil
	}
	slots := s.availableSlots()
	if slots <= 0 {
		return nil
	}

	var out []ReadyTask
	for _, id := range s.graph.GetReadyTasks() {
		if len(out) >= slots {
			break
		}
		if s.pendingStart[id] {
			continue
		}
		if _, running := s.running[id]; running {
			continue
		}
		n, ok := s.graph.GetTask(id)
		if !ok {
			continue
		}
		s.pendingStart[id] = true
		out = append(out, ReadyTask{ID: id, Command: n.Command, Args: n.Args})
	}
	return out
}

func (s *Scheduler) readyEvents() []Event {
	var events []Event
	for _, t := range s.GetNextTasks() {
		events = append(events, TaskReady{ID: t.ID, Command: t.Command, Args: t.Args})
	}
	return events
}

func (s *Scheduler) progressEvent() Event {
	stats := s.graph.Statistics()
	return Progress{Completed: stats.Completed, Total: stats.Total, Running: len(s.running)}
}

// Start refreshes blocked status, emits an initial TaskReady batch up
// to the concurrency cap, and one initial Progress event.
func (s *Scheduler) Start() []Event {
	s.graph.UpdateBlockedStatus()
	events := s.readyEvents()
	events = append(events, s.progressEvent())
	return events
}

// TaskStarted moves id from pending-start to running and transitions
// its node via the graph's guarded start. A guard failure is
// surfaced as TaskFailed rather than returned as an error.
func (s *Scheduler) TaskStarted(id taskgraph.TaskID, ptyID string) []Event {
	delete(s.pendingStart, id)
	if err := s.graph.StartTask(id, ptyID); err != nil {
		return []Event{TaskFailed{ID: id, Error: err.Error()}}
	}
	s.running[id] = ptyID
	return nil
}

// TaskCompleted records result, applies the task's error policy on
// failure, refreshes blocked status, selects any newly-ready tasks,
// and emits a fresh Progress — finishing with AllComplete if nothing
// remains to run.
func (s *Scheduler) TaskCompleted(id taskgraph.TaskID, result taskgraph.Result) []Event {
	delete(s.running, id)
	_ = s.graph.CompleteTask(id, result)

	var events []Event
	if result.IsSuccess() {
		events = append(events, TaskCompleted{ID: id, Result: result})
	} else {
		events = append(events, s.applyErrorPolicy(id, result)...)
	}

	s.graph.UpdateBlockedStatus()
	events = append(events, s.readyEvents()...)
	events = append(events, s.progressEvent())

	if s.IsComplete() {
		events = append(events, AllComplete{Stats: s.graph.Statistics()})
	}
	return events
}

// TaskFailedToStart reports that the caller could not actually start
// id (e.g. a pool spawn failure) after it was handed out by
// GetNextTasks. It clears id's pending-start entry, records a failed
// result directly on the graph without ever transitioning through
// Running, applies id's error policy, and runs the same
// selection/progress pass as TaskCompleted — matching spec.md's
// requirement that a start failure surface as TaskFailed without
// leaking a concurrency slot or leaving the graph unable to reach
// AllComplete.
func (s *Scheduler) TaskFailedToStart(id taskgraph.TaskID, startErr error) []Event {
	delete(s.pendingStart, id)
	result := taskgraph.FailureResult(-1, startErr.Error(), 0)
	_ = s.graph.CompleteTask(id, result)

	events := s.applyErrorPolicy(id, result)

	s.graph.UpdateBlockedStatus()
	events = append(events, s.readyEvents()...)
	events = append(events, s.progressEvent())

	if s.IsComplete() {
		events = append(events, AllComplete{Stats: s.graph.Statistics()})
	}
	return events
}

func (s *Scheduler) applyErrorPolicy(id taskgraph.TaskID, result taskgraph.Result) []Event {
	n, ok := s.graph.GetTask(id)
	if !ok {
		return nil
	}

	switch n.ErrorPolicy.Kind {
	case taskgraph.ContinueOnError:
		events := s.skipDependents(s.graph.DirectDependents(id))
		return append(events, TaskFailed{ID: id, Error: failureMessage(result)})

	case taskgraph.RetryThenStop:
		if n.RetryCount < n.ErrorPolicy.MaxRetries {
			_ = s.graph.ResetForRetry(id)
			return nil
		}
		events := s.skipDependents(s.graph.GetAllDependents(id))
		return append(events, TaskFailed{ID: id, Error: failureMessage(result)})

	default: // StopOnError
		events := s.skipDependents(s.graph.GetAllDependents(id))
		return append(events, TaskFailed{ID: id, Error: failureMessage(result)})
	}
}

func (s *Scheduler) skipDependents(ids []taskgraph.TaskID) []Event {
	var events []Event
	for _, id := range ids {
		n, ok := s.graph.GetTask(id)
		if !ok || n.Status.IsTerminal() {
			continue
		}
		if err := s.graph.SkipTask(id); err == nil {
			events = append(events, TaskSkipped{ID: id})
		}
	}
	return events
}

// Pause prevents GetNextTasks from selecting new work.
func (s *Scheduler) Pause() { s.paused = true }

// Resume clears the paused flag and immediately runs a selection
// pass, returning any newly emitted TaskReady events.
func (s *Scheduler) Resume() []Event {
	s.paused = false
	return s.readyEvents()
}

// CancelTask removes id from running/pending-start, cancels its node,
// and propagates Skipped to its transitive dependents.
func (s *Scheduler) CancelTask(id taskgraph.TaskID) []Event {
	delete(s.running, id)
	delete(s.pendingStart, id)

	var events []Event
	if err := s.graph.CancelTask(id); err == nil {
		events = append(events, TaskCancelled{ID: id})
	}
	events = append(events, s.skipDependents(s.graph.GetAllDependents(id))...)
	return events
}

// CancelAll cancels every running task (propagating skips to their
// dependents) and directly cancels every still-Pending task without
// propagation, since there are no longer downstream candidates that
// would run.
func (s *Scheduler) CancelAll() []Event {
	s.cancelled = true

	runningIDs := make([]taskgraph.TaskID, 0, len(s.running))
	for id := range s.running {
		runningIDs = append(runningIDs, id)
	}

	var events []Event
	for _, id := range runningIDs {
		events = append(events, s.CancelTask(id)...)
	}

	for _, id := range s.graph.TasksWithStatus(taskgraph.Pending) {
		if err := s.graph.CancelTask(id); err == nil {
			events = append(events, TaskCancelled{ID: id})
		}
	}

	s.pendingStart = make(map[taskgraph.TaskID]bool)
	return events
}
