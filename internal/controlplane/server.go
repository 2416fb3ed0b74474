package controlplane

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hatchbench/weavepane/internal/pty"
)

// Server is a single-threaded JSON-RPC line server over a PTY pool:
// it consumes its input stream serially, one request at a time,
// writing a response before reading the next line.
type Server struct {
	pool   *pty.Pool
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionRecord
	active   string
}

// New builds a Server over an existing pty.Pool.
func New(pool *pty.Pool, logger *slog.Logger) *Server {
	return &Server{
		pool:     pool,
		logger:   logger,
		sessions: make(map[string]*sessionRecord),
	}
}

// Serve reads newline-delimited JSON-RPC requests from in and writes
// one JSON-RPC response per line to out, until in is exhausted.
func (s *Server) Serve(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	w := bufio.NewWriter(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.handleLine(line)
		encoded, err := json.Marshal(resp)
		if err != nil {
			encoded, _ = json.Marshal(errResponse(nil, CodeInternalError, fmt.Sprintf("serialization error: %v", err)))
		}
		if _, err := w.Write(encoded); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) handleLine(line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return errResponse(nil, CodeParseError, fmt.Sprintf("parse error: %v", err))
	}
	result, rpcErr := s.handleMethod(req.Method, req.Params)
	if rpcErr != nil {
		return Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return okResponse(req.ID, result)
}

func (s *Server) handleMethod(method string, params json.RawMessage) (interface{}, *RPCError) {
	switch method {
	case "initialize":
		return map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]interface{}{"tools": map[string]interface{}{}},
			"serverInfo":      ServerInfo{Name: "weavepane", Version: "0.1.0"},
		}, nil

	case "notifications/initialized":
		return map[string]interface{}{}, nil

	case "tools/list":
		return map[string]interface{}{"tools": toolCatalog}, nil

	case "tools/call":
		return s.toolsCall(params)

	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
	}
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (s *Server) toolsCall(raw json.RawMessage) (interface{}, *RPCError) {
	if raw == nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing params"}
	}
	var call callParams
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	if call.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing tool name"}
	}

	var args map[string]interface{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid arguments: %v", err)}
		}
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	handler, ok := toolHandlers[call.Name]
	if !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown tool: %s", call.Name)}
	}
	return handler(s, args)
}

var toolHandlers = map[string]func(*Server, map[string]interface{}) (interface{}, *RPCError){
	"create_session": (*Server).createSession,
	"list_sessions":  func(s *Server, _ map[string]interface{}) (interface{}, *RPCError) { return s.listSessions() },
	"close_session":  (*Server).closeSession,
	"switch_session": (*Server).switchSession,
	"run_command":    (*Server).runCommand,
	"get_output":     (*Server).getOutput,
	"send_input":     (*Server).sendInput,
	"send_control":   (*Server).sendControl,
	"resize_session": (*Server).resizeSession,
	"get_cwd":        (*Server).getCwd,
	"set_cwd":        (*Server).setCwd,
	"set_env":        (*Server).setEnv,
	"get_history":    (*Server).getHistory,
}

func argString(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func argUint(args map[string]interface{}, key string, def uint16) uint16 {
	v, ok := args[key]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return uint16(f)
}

func argUint64(args map[string]interface{}, key string, def uint64) uint64 {
	v, ok := args[key]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return uint64(f)
}

func argBool(args map[string]interface{}, key string, def bool) bool {
	v, ok := args[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func shellCommand() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}

// resolveSession returns the named session if given, else the active
// one; mirrors the source's "session or active" resolution used by
// every tool but create_session/list_sessions/close_session/switch_session.
func (s *Server) resolveSession(args map[string]interface{}) (*sessionRecord, *RPCError) {
	if name, ok := argString(args, "session"); ok && name != "" {
		rec, ok := s.sessions[name]
		if !ok {
			return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("session %q not found", name)}
		}
		return rec, nil
	}
	if s.active == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "no active session. Create one first."}
	}
	return s.sessions[s.active], nil
}

func (s *Server) createSession(args map[string]interface{}) (interface{}, *RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := argString(args, "name")
	if !ok || name == "" {
		name = "session-" + uuid.NewString()[:8]
	}
	rows := argUint(args, "rows", 24)
	cols := argUint(args, "cols", 80)

	ptyID, err := s.pool.Spawn(pty.Config{Shell: shellCommand(), Rows: rows, Cols: cols}, name)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to create session: %v", err)}
	}

	s.sessions[name] = &sessionRecord{name: name, ptyID: ptyID, rows: rows, cols: cols, createdAt: time.Now()}
	if s.active == "" {
		s.active = name
	}

	return textContent(fmt.Sprintf("Created session '%s' (%dx%d)", name, cols, rows)), nil
}

func (s *Server) listSessions() (interface{}, *RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type entry struct {
		Name   string `json:"name"`
		Rows   uint16 `json:"rows"`
		Cols   uint16 `json:"cols"`
		Active bool   `json:"active"`
	}
	names := make([]string, 0, len(s.sessions))
	for name := range s.sessions {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]entry, 0, len(names))
	for _, name := range names {
		rec := s.sessions[name]
		list = append(list, entry{Name: rec.name, Rows: rec.rows, Cols: rec.cols, Active: name == s.active})
	}
	encoded, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return textContent(string(encoded)), nil
}

func (s *Server) closeSession(args map[string]interface{}) (interface{}, *RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := argString(args, "session")
	if !ok || name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing session name"}
	}
	rec, ok := s.sessions[name]
	if !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("session %q not found", name)}
	}
	delete(s.sessions, name)
	_ = s.pool.Kill(rec.ptyID)

	if s.active == name {
		s.active = ""
		for other := range s.sessions {
			s.active = other
			break
		}
	}
	return textContent(fmt.Sprintf("Closed session '%s'", name)), nil
}

func (s *Server) switchSession(args map[string]interface{}) (interface{}, *RPCError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := argString(args, "session")
	if !ok || name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing session name"}
	}
	if _, ok := s.sessions[name]; !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("session %q not found", name)}
	}
	s.active = name
	return textContent(fmt.Sprintf("Switched to session '%s'", name)), nil
}

func (s *Server) runCommand(args map[string]interface{}) (interface{}, *RPCError) {
	command, ok := argString(args, "command")
	if !ok || command == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing command"}
	}

	s.mu.Lock()
	rec, rpcErr := s.resolveSession(args)
	if rpcErr != nil {
		s.mu.Unlock()
		return nil, rpcErr
	}
	rec.recordCommand(command, time.Now())
	ptyID := rec.ptyID
	sessionName := rec.name
	s.mu.Unlock()

	shouldWait := argBool(args, "wait", true)
	waitMs := argUint64(args, "wait_ms", 300)

	if _, err := s.pool.Write(ptyID, []byte(command+"\n")); err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to write to session: %v", err)}
	}

	if !shouldWait {
		return textContent(fmt.Sprintf("Command '%s' sent to session '%s'. Use get_output to retrieve results.", command, sessionName)), nil
	}

	time.Sleep(time.Duration(waitMs) * time.Millisecond)

	raw, err := s.pool.ReadOutput(ptyID)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to read from session: %v", err)}
	}
	clean := stripANSI(string(raw))
	final := removeCommandEcho(clean, command)
	return textContent(final), nil
}

func (s *Server) getOutput(args map[string]interface{}) (interface{}, *RPCError) {
	s.mu.Lock()
	rec, rpcErr := s.resolveSession(args)
	if rpcErr != nil {
		s.mu.Unlock()
		return nil, rpcErr
	}
	ptyID := rec.ptyID
	s.mu.Unlock()

	waitMs := argUint64(args, "wait_ms", 100)
	time.Sleep(time.Duration(waitMs) * time.Millisecond)

	raw, err := s.pool.ReadOutput(ptyID)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to read from session: %v", err)}
	}
	return textContent(stripANSI(string(raw))), nil
}

func (s *Server) sendInput(args map[string]interface{}) (interface{}, *RPCError) {
	input, ok := argString(args, "input")
	if !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing input"}
	}

	s.mu.Lock()
	rec, rpcErr := s.resolveSession(args)
	if rpcErr != nil {
		s.mu.Unlock()
		return nil, rpcErr
	}
	ptyID, sessionName := rec.ptyID, rec.name
	s.mu.Unlock()

	if _, err := s.pool.Write(ptyID, []byte(input)); err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to write to session: %v", err)}
	}
	return textContent(fmt.Sprintf("Sent %d bytes to '%s'", len(input), sessionName)), nil
}

var controlBytes = map[string]byte{
	"ctrl-c": 0x03,
	"ctrl-d": 0x04,
	"ctrl-z": 0x1a,
}

func (s *Server) sendControl(args map[string]interface{}) (interface{}, *RPCError) {
	signal, ok := argString(args, "signal")
	if !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing signal"}
	}
	b, ok := controlBytes[signal]
	if !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown signal: %s", signal)}
	}

	s.mu.Lock()
	rec, rpcErr := s.resolveSession(args)
	if rpcErr != nil {
		s.mu.Unlock()
		return nil, rpcErr
	}
	ptyID, sessionName := rec.ptyID, rec.name
	s.mu.Unlock()

	if _, err := s.pool.Write(ptyID, []byte{b}); err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to send signal: %v", err)}
	}
	return textContent(fmt.Sprintf("Sent %s to '%s'", signal, sessionName)), nil
}

func (s *Server) resizeSession(args map[string]interface{}) (interface{}, *RPCError) {
	rowsF, hasRows := args["rows"].(float64)
	colsF, hasCols := args["cols"].(float64)
	if !hasRows {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing rows"}
	}
	if !hasCols {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing cols"}
	}
	rows, cols := uint16(rowsF), uint16(colsF)

	s.mu.Lock()
	rec, rpcErr := s.resolveSession(args)
	if rpcErr != nil {
		s.mu.Unlock()
		return nil, rpcErr
	}
	rec.rows, rec.cols = rows, cols
	ptyID, sessionName := rec.ptyID, rec.name
	s.mu.Unlock()

	if err := s.pool.Resize(ptyID, rows, cols); err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to resize session: %v", err)}
	}
	return textContent(fmt.Sprintf("Resized session '%s' to %dx%d", sessionName, cols, rows)), nil
}

func (s *Server) getCwd(args map[string]interface{}) (interface{}, *RPCError) {
	s.mu.Lock()
	rec, rpcErr := s.resolveSession(args)
	if rpcErr != nil {
		s.mu.Unlock()
		return nil, rpcErr
	}
	ptyID := rec.ptyID
	s.mu.Unlock()

	if _, err := s.pool.Write(ptyID, []byte("pwd\n")); err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to execute pwd: %v", err)}
	}
	time.Sleep(100 * time.Millisecond)

	raw, err := s.pool.ReadOutput(ptyID)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to read output: %v", err)}
	}
	clean := removeCommandEcho(stripANSI(string(raw)), "pwd")
	return textContent(firstPathLine(clean)), nil
}

func (s *Server) setCwd(args map[string]interface{}) (interface{}, *RPCError) {
	path, ok := argString(args, "path")
	if !ok || path == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing path"}
	}

	s.mu.Lock()
	rec, rpcErr := s.resolveSession(args)
	if rpcErr != nil {
		s.mu.Unlock()
		return nil, rpcErr
	}
	ptyID := rec.ptyID
	s.mu.Unlock()

	if _, err := s.pool.Write(ptyID, []byte(fmt.Sprintf("cd %s && pwd\n", path))); err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to change directory: %v", err)}
	}
	time.Sleep(150 * time.Millisecond)

	raw, err := s.pool.ReadOutput(ptyID)
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to read output: %v", err)}
	}
	newCwd := firstPathLine(stripANSI(string(raw)))
	if newCwd == "" {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to change to directory: %s", path)}
	}
	return textContent(fmt.Sprintf("Changed directory to: %s", newCwd)), nil
}

func (s *Server) setEnv(args map[string]interface{}) (interface{}, *RPCError) {
	name, ok := argString(args, "name")
	if !ok || name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing environment variable name"}
	}
	value, ok := argString(args, "value")
	if !ok {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "missing environment variable value"}
	}

	s.mu.Lock()
	rec, rpcErr := s.resolveSession(args)
	if rpcErr != nil {
		s.mu.Unlock()
		return nil, rpcErr
	}
	ptyID := rec.ptyID
	s.mu.Unlock()

	cmd := fmt.Sprintf("export %s='%s'\n", name, quoteSingle(value))
	if _, err := s.pool.Write(ptyID, []byte(cmd)); err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: fmt.Sprintf("failed to set environment variable: %v", err)}
	}
	time.Sleep(50 * time.Millisecond)

	return textContent(fmt.Sprintf("Set %s=%s", name, value)), nil
}

func (s *Server) getHistory(args map[string]interface{}) (interface{}, *RPCError) {
	limit := int(argUint64(args, "limit", 50))

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, rpcErr := s.resolveSession(args)
	if rpcErr != nil {
		return nil, rpcErr
	}

	encoded, err := json.MarshalIndent(rec.recentHistory(limit), "", "  ")
	if err != nil {
		return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
	}
	return textContent(string(encoded)), nil
}
