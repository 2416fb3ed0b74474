package pty

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"
)

// Session wraps a child process running inside a PTY master.
type Session struct {
	id        string
	cfg       Config
	createdAt time.Time

	cmd  *exec.Cmd
	ptmx *os.File

	events chan Event

	mu        sync.Mutex
	cols      uint16
	rows      uint16
	state     State
	closeOnce sync.Once
}

// newSession spawns cfg.Argv() inside a new PTY and returns the Session.
func newSession(id string, cfg Config) (*Session, error) {
	argv := cfg.Argv()
	if len(argv) == 0 {
		return nil, &Error{Code: ErrSpawnFailed, Err: errors.New("empty command")}
	}

	rows, cols := cfg.Rows, cfg.Cols
	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = cfg.WorkDir
	if len(cfg.Env) > 0 {
		cmd.Env = cfg.Env
	}

	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, &Error{Code: ErrSpawnFailed, Err: err}
	}

	s := &Session{
		id:        id,
		cfg:       cfg,
		createdAt: time.Now(),
		cmd:       cmd,
		ptmx:      ptmx,
		events:    make(chan Event, 1024),
		cols:      cols,
		rows:      rows,
		state:     StateRunning,
	}

	go s.readPump()
	go s.waitExit()

	return s, nil
}

// readPump reads PTY output and emits EventOutput until any read error
// (including EOF on child exit) ends the loop. Short reads and a zero
// byte count with a nil error never happen on the OS pipe this wraps,
// but zero bytes with a non-nil error always means stop.
func (s *Session) readPump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			s.events <- Event{Type: EventOutput, ID: s.id, Data: string(buf[:n])}
		}
		if err != nil {
			return
		}
	}
}

// waitExit waits for the child, flips state to Exited, emits a final
// EventClosed, then closes the events channel.
func (s *Session) waitExit() {
	_ = s.cmd.Wait()

	s.mu.Lock()
	s.state = StateExited
	s.mu.Unlock()

	s.events <- Event{Type: EventClosed, ID: s.id}
	close(s.events)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Events returns the channel of session events; closed once the child
// has exited and the final EventClosed has been delivered.
func (s *Session) Events() <-chan Event { return s.events }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Size returns the current (rows, cols).
func (s *Session) Size() (rows, cols uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.cols
}

// Write appends data to the PTY input. A single call is one OS write.
func (s *Session) Write(data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateExited {
		return 0, errAlreadyClosed(s.id)
	}
	n, err := s.ptmx.Write(data)
	if err != nil {
		return n, &Error{Code: ErrIO, ID: s.id, Err: err}
	}
	return n, nil
}

// Resize changes the PTY window size.
func (s *Session) Resize(rows, cols uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateExited {
		return errAlreadyClosed(s.id)
	}
	if err := creackpty.Setsize(s.ptmx, &creackpty.Winsize{Cols: cols, Rows: rows}); err != nil {
		return &Error{Code: ErrResizeFailed, ID: s.id, Err: err}
	}
	s.rows, s.cols = rows, cols
	return nil
}

// TryWait reports the child's exit code without blocking. It only
// returns a value once the process has actually exited.
func (s *Session) TryWait() (code int, exited bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateExited {
		return 0, false
	}
	if s.cmd.ProcessState == nil {
		return 0, true
	}
	return s.cmd.ProcessState.ExitCode(), true
}

// Kill sends SIGTERM to the child and closes the PTY fd. Safe to call
// more than once; later calls are no-ops.
func (s *Session) Kill() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateExited
		s.mu.Unlock()

		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(syscall.SIGTERM)
		}
		err = s.ptmx.Close()
	})
	return err
}
