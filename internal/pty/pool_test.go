package pty

import (
	"strings"
	"testing"
	"time"
)

func echoConfig(arg string) Config {
	return Config{Shell: "/bin/sh", Args: []string{"-c", "echo " + arg}}
}

func sleepConfig() Config {
	return Config{Shell: "/bin/sh", Args: []string{"-c", "sleep 5"}}
}

func TestPoolSpawnSetsFocus(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), nil)
	defer p.Close()

	id, err := p.Spawn(sleepConfig(), "one")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	focused, ok := p.Focused()
	if !ok || focused != id {
		t.Fatalf("expected focus on %s, got %s (ok=%v)", id, focused, ok)
	}
}

func TestPoolExhaustedOnNPlusOne(t *testing.T) {
	p := NewPool(PoolConfig{MaxSessions: 2, DefaultRows: 24, DefaultCols: 80}, nil)
	defer p.Close()

	if _, err := p.Spawn(sleepConfig(), "a"); err != nil {
		t.Fatalf("spawn 1: %v", err)
	}
	if _, err := p.Spawn(sleepConfig(), "b"); err != nil {
		t.Fatalf("spawn 2: %v", err)
	}

	_, err := p.Spawn(sleepConfig(), "c")
	if err == nil {
		t.Fatal("expected PoolExhausted on 3rd spawn")
	}
	var pe *Error
	if !asError(err, &pe) || pe.Code != ErrPoolExhausted {
		t.Fatalf("expected PoolExhausted error, got %v", err)
	}
	if pe.Max != 2 || pe.Current != 2 {
		t.Fatalf("expected max=2 current=2, got max=%d current=%d", pe.Max, pe.Current)
	}
}

func TestFocusNextPrevWrapAndIdentity(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), nil)
	defer p.Close()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := p.Spawn(sleepConfig(), "s")
		if err != nil {
			t.Fatalf("spawn: %v", err)
		}
		ids = append(ids, id)
	}

	start, _ := p.Focused()
	for range ids {
		p.FocusNext()
	}
	end, _ := p.Focused()
	if start != end {
		t.Fatalf("focus_next repeated len(ids) times should return to start: got %s want %s", end, start)
	}
}

func TestEmptyPoolWriteToFocusedNotFound(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), nil)
	defer p.Close()

	_, err := p.WriteToFocused([]byte("x"))
	var pe *Error
	if !asError(err, &pe) || pe.Code != ErrNotFound {
		t.Fatalf("expected NotFound on empty pool, got %v", err)
	}

	if _, ok := p.FocusNext(); ok {
		t.Fatal("focus_next on empty pool should report no focus")
	}
}

func TestKillReassignsFocus(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), nil)
	defer p.Close()

	id1, _ := p.Spawn(sleepConfig(), "a")
	id2, _ := p.Spawn(sleepConfig(), "b")
	_ = p.SetFocus(id1)

	if err := p.Kill(id1); err != nil {
		t.Fatalf("kill: %v", err)
	}

	focused, ok := p.Focused()
	if !ok || focused != id2 {
		t.Fatalf("expected focus reassigned to %s, got %s", id2, focused)
	}
}

func TestReadAllOutputsCapturesEcho(t *testing.T) {
	p := NewPool(DefaultPoolConfig(), nil)
	defer p.Close()

	id, err := p.Spawn(echoConfig("hello-weavepane"), "echo")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		outputs := p.ReadAllOutputs()
		if data, ok := outputs[id]; ok && strings.Contains(string(data), "hello-weavepane") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("never observed echoed output")
}

// asError is a small errors.As helper kept local to avoid importing
// errors just for this one assertion pattern across the test file.
func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
