// Package pty manages pseudo-terminal sessions: spawning child
// processes under a PTY master, pumping their I/O, and pooling a
// bounded set of them with insertion-ordered focus cycling.
package pty

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const captureBufferSize = 256 * 1024

// PoolConfig bounds and defaults a Pool.
type PoolConfig struct {
	MaxSessions int
	DefaultRows uint16
	DefaultCols uint16
	IdleTimeout time.Duration
}

// DefaultPoolConfig mirrors the teacher's own pool defaults, scaled to
// the capacities this system is spec'd against.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxSessions: 32, DefaultRows: 24, DefaultCols: 80}
}

// managedSession bundles a live Session with the bookkeeping the Pool
// keeps on its behalf: a capped ring buffer for CaptureOutput, a
// pending-bytes accumulator drained by ReadAllOutputs, and activity
// timestamps used for idle accounting.
type managedSession struct {
	sess  *Session
	label string

	createdAt    time.Time
	lastActivity time.Time

	ring *ringBuffer

	pendingMu sync.Mutex
	pending   []byte
}

// Pool manages at most cfg.MaxSessions live Sessions with named
// insertion order, a single focus pointer, and batched I/O.
//
// Internal state (map, order, focus) is protected by a single
// sync.RWMutex acquired in a fixed order: map mutations are never
// interleaved with a blocking I/O call while the lock is held — a
// session's reader/writer is always reached through a method that
// takes its own per-session lock after releasing the pool lock.
type Pool struct {
	cfg    PoolConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*managedSession
	order    []string
	focused  string // "" means no focus
}

// NewPool constructs an empty Pool. A nil logger falls back to
// slog.Default().
func NewPool(cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultPoolConfig().MaxSessions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*managedSession),
	}
}

// Count returns the number of live sessions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// IsFull reports whether the pool is at capacity.
func (p *Pool) IsFull() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions) >= p.cfg.MaxSessions
}

// Spawn starts a new session and adds it to the pool. It fails with a
// PoolExhausted error iff the pool was already at max_sessions before
// insertion. The first successful spawn also becomes the focus.
func (p *Pool) Spawn(cfg Config, label string) (string, error) {
	if cfg.Rows == 0 {
		cfg.Rows = p.cfg.DefaultRows
	}
	if cfg.Cols == 0 {
		cfg.Cols = p.cfg.DefaultCols
	}

	p.mu.Lock()
	if len(p.sessions) >= p.cfg.MaxSessions {
		current := len(p.sessions)
		p.mu.Unlock()
		return "", errPoolExhausted(p.cfg.MaxSessions, current)
	}
	p.mu.Unlock()

	id := uuid.NewString()
	sess, err := newSession(id, cfg)
	if err != nil {
		return "", err
	}

	now := time.Now()
	ms := &managedSession{
		sess:         sess,
		label:        label,
		createdAt:    now,
		lastActivity: now,
		ring:         newRingBuffer(captureBufferSize),
	}

	p.mu.Lock()
	if len(p.sessions) >= p.cfg.MaxSessions {
		current := len(p.sessions)
		p.mu.Unlock()
		_ = sess.Kill()
		return "", errPoolExhausted(p.cfg.MaxSessions, current)
	}
	p.sessions[id] = ms
	p.order = append(p.order, id)
	first := len(p.order) == 1
	if first {
		p.focused = id
	}
	p.mu.Unlock()

	go p.drain(ms)

	p.logger.Info("pty session spawned", "id", id, "label", label,
		"buffer", humanize.Bytes(uint64(captureBufferSize)))

	return id, nil
}

// drain fans a session's events into its ring buffer and pending
// accumulator until the session closes.
func (p *Pool) drain(ms *managedSession) {
	for evt := range ms.sess.Events() {
		if evt.Type != EventOutput {
			continue
		}
		data := []byte(evt.Data)
		ms.ring.Write(data)

		ms.pendingMu.Lock()
		ms.pending = append(ms.pending, data...)
		ms.pendingMu.Unlock()

		p.mu.Lock()
		ms.lastActivity = time.Now()
		p.mu.Unlock()
	}
}

// Kill removes id from the pool, kills its child, and if it was
// focused reassigns focus to the new first id (or none).
func (p *Pool) Kill(id string) error {
	p.mu.Lock()
	ms, ok := p.sessions[id]
	if !ok {
		p.mu.Unlock()
		return errNotFound(id)
	}
	delete(p.sessions, id)
	p.order = removeString(p.order, id)
	if p.focused == id {
		if len(p.order) > 0 {
			p.focused = p.order[0]
		} else {
			p.focused = ""
		}
	}
	p.mu.Unlock()

	return ms.sess.Kill()
}

// SetFocus makes id the focused session.
func (p *Pool) SetFocus(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[id]; !ok {
		return errNotFound(id)
	}
	p.focused = id
	return nil
}

// Focused returns the focused id, if any.
func (p *Pool) Focused() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.focused, p.focused != ""
}

// FocusNext rotates focus one step forward through insertion order,
// wrapping at the end. No-op on an empty pool.
func (p *Pool) FocusNext() (string, bool) {
	return p.rotateFocus(1)
}

// FocusPrev rotates focus one step backward. No-op on an empty pool.
func (p *Pool) FocusPrev() (string, bool) {
	return p.rotateFocus(-1)
}

func (p *Pool) rotateFocus(step int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.order)
	if n == 0 {
		return "", false
	}
	idx := 0
	for i, id := range p.order {
		if id == p.focused {
			idx = i
			break
		}
	}
	idx = ((idx+step)%n + n) % n
	p.focused = p.order[idx]
	return p.focused, true
}

// ResizeAll resizes every session to (rows, cols), best-effort:
// individual failures are logged but never abort the batch.
func (p *Pool) ResizeAll(rows, cols uint16) {
	p.mu.RLock()
	sessions := make([]*managedSession, 0, len(p.sessions))
	for _, ms := range p.sessions {
		sessions = append(sessions, ms)
	}
	p.mu.RUnlock()

	for _, ms := range sessions {
		if err := ms.sess.Resize(rows, cols); err != nil {
			p.logger.Warn("resize failed", "id", ms.sess.ID(), "error", err)
		}
	}
}

// WriteToFocused forwards data to the focused session's Write.
func (p *Pool) WriteToFocused(data []byte) (int, error) {
	p.mu.RLock()
	id := p.focused
	p.mu.RUnlock()

	if id == "" {
		return 0, errNotFound("")
	}
	return p.Write(id, data)
}

// Write forwards data to a specific session.
func (p *Pool) Write(id string, data []byte) (int, error) {
	ms, err := p.lookup(id)
	if err != nil {
		return 0, err
	}
	return ms.sess.Write(data)
}

// Resize changes a specific session's window size.
func (p *Pool) Resize(id string, rows, cols uint16) error {
	ms, err := p.lookup(id)
	if err != nil {
		return err
	}
	return ms.sess.Resize(rows, cols)
}

// ReadAllOutputs drains each session's accumulated bytes since the
// last call, never blocking: sessions with nothing pending produce no
// entry. Touches last_activity for sessions that returned data.
func (p *Pool) ReadAllOutputs() map[string][]byte {
	p.mu.RLock()
	sessions := make([]*managedSession, 0, len(p.sessions))
	ids := make([]string, 0, len(p.sessions))
	for id, ms := range p.sessions {
		sessions = append(sessions, ms)
		ids = append(ids, id)
	}
	p.mu.RUnlock()

	out := make(map[string][]byte)
	var touched []*managedSession
	for i, ms := range sessions {
		ms.pendingMu.Lock()
		if len(ms.pending) > 0 {
			out[ids[i]] = ms.pending
			ms.pending = nil
			touched = append(touched, ms)
		}
		ms.pendingMu.Unlock()
	}
	if len(touched) > 0 {
		now := time.Now()
		p.mu.Lock()
		for _, ms := range touched {
			ms.lastActivity = now
		}
		p.mu.Unlock()
	}
	return out
}

// ReadOutput drains and returns id's pending output buffer alone,
// without disturbing any other session's pending bytes.
func (p *Pool) ReadOutput(id string) ([]byte, error) {
	ms, err := p.lookup(id)
	if err != nil {
		return nil, err
	}
	ms.pendingMu.Lock()
	defer ms.pendingMu.Unlock()
	out := ms.pending
	ms.pending = nil
	return out, nil
}

// CaptureOutput returns the last n lines retained in id's ring buffer.
func (p *Pool) CaptureOutput(id string, lines int) (string, error) {
	ms, err := p.lookup(id)
	if err != nil {
		return "", err
	}
	all := string(ms.ring.Bytes())
	if lines <= 0 {
		return all, nil
	}
	parts := strings.Split(all, "\n")
	if len(parts) > lines {
		parts = parts[len(parts)-lines:]
	}
	return strings.Join(parts, "\n"), nil
}

// CleanupExited removes every session whose child has exited
// (preserving focus-reassignment rules) and returns their ids.
func (p *Pool) CleanupExited() []string {
	p.mu.RLock()
	var exited []string
	for id, ms := range p.sessions {
		if ms.sess.State() == StateExited {
			exited = append(exited, id)
		}
	}
	p.mu.RUnlock()

	for _, id := range exited {
		p.mu.Lock()
		delete(p.sessions, id)
		p.order = removeString(p.order, id)
		if p.focused == id {
			if len(p.order) > 0 {
				p.focused = p.order[0]
			} else {
				p.focused = ""
			}
		}
		p.mu.Unlock()
	}
	return exited
}

// SessionIDs returns ids in insertion order.
func (p *Pool) SessionIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// SessionInfo returns a metadata snapshot of every session, in
// insertion order.
func (p *Pool) SessionInfo() []SessionInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]SessionInfo, 0, len(p.order))
	for _, id := range p.order {
		ms := p.sessions[id]
		rows, cols := ms.sess.Size()
		out = append(out, SessionInfo{
			ID:           id,
			Label:        ms.label,
			Rows:         rows,
			Cols:         cols,
			State:        ms.sess.State(),
			Focused:      id == p.focused,
			CreatedAt:    ms.createdAt,
			LastActivity: ms.lastActivity,
		})
	}
	return out
}

// WithSession runs fn with the named session's Session handle. The
// pool holds no lock while fn runs; the Session's own methods take
// its per-session lock. This is the
// replacement for a direct "get session" accessor: the spec notes
// the source's get_session is unused and likely buggy, so the pool
// does not expose an equivalent, short-lived accessor.
func (p *Pool) WithSession(id string, fn func(*Session) error) error {
	ms, err := p.lookup(id)
	if err != nil {
		return err
	}
	return fn(ms.sess)
}

// TryWait reports id's child exit code without blocking, returning
// ok=false until the process has actually exited.
func (p *Pool) TryWait(id string) (code int, ok bool, err error) {
	ms, err := p.lookup(id)
	if err != nil {
		return 0, false, err
	}
	code, ok = ms.sess.TryWait()
	return code, ok, nil
}

func (p *Pool) lookup(id string) (*managedSession, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ms, ok := p.sessions[id]
	if !ok {
		return nil, errNotFound(id)
	}
	return ms, nil
}

// Close kills every session and empties the pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	ids := make([]string, len(p.order))
	copy(ids, p.order)
	p.mu.Unlock()

	for _, id := range ids {
		_ = p.Kill(id)
	}
	return nil
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
