package hub

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn implements Conn and records what was written to it.
type fakeConn struct {
	mu     sync.Mutex
	sent   []interface{}
	fail   bool
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broken pipe")
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestRegisterIdempotent(t *testing.T) {
	h := New(nil, time.Second)
	c := &fakeConn{}
	h.Register("u1", c)
	h.Register("u1", c)
	h.SendTo("u1", "hello")
	if c.count() != 1 {
		t.Fatalf("duplicate registration delivered %d copies", c.count())
	}
}

func TestUnregisterRemovesEmptyBucket(t *testing.T) {
	h := New(nil, time.Second)
	c1, c2 := &fakeConn{}, &fakeConn{}
	h.Register("u1", c1)
	h.Register("u1", c2)
	h.Unregister("u1", c1)
	if h.Users() != 1 || !h.Connected("u1") {
		t.Fatalf("user should remain with one connection")
	}
	h.Unregister("u1", c2)
	if h.Users() != 0 || h.Connected("u1") {
		t.Fatalf("last unregister must remove the registry entry")
	}
}

func TestSendToMultiDevice(t *testing.T) {
	h := New(nil, time.Second)
	c1, c2 := &fakeConn{}, &fakeConn{}
	h.Register("u1", c1)
	h.Register("u1", c2)
	h.Register("u2", &fakeConn{})
	h.SendTo("u1", "ping")
	if c1.count() != 1 || c2.count() != 1 {
		t.Fatalf("both devices should receive the event")
	}
}

func TestSendToPrunesDeadConnection(t *testing.T) {
	h := New(nil, time.Second)
	dead := &fakeConn{fail: true}
	live := &fakeConn{}
	h.Register("u1", dead)
	h.Register("u1", live)
	h.SendTo("u1", "ping")
	if live.count() != 1 {
		t.Fatalf("live connection should still receive")
	}
	if !dead.closed {
		t.Fatalf("dead connection should be closed")
	}
	// only the live connection remains registered
	h.SendTo("u1", "ping2")
	if live.count() != 2 {
		t.Fatalf("live connection should keep receiving")
	}
	h.Unregister("u1", live)
	if h.Users() != 0 {
		t.Fatalf("registry should be empty, dead conn was pruned")
	}
}

func TestSendToUnknownUserNoop(t *testing.T) {
	h := New(nil, time.Second)
	h.SendTo("ghost", "ping") // must not panic or block
}

func TestBroadcast(t *testing.T) {
	h := New(nil, time.Second)
	conns := []*fakeConn{{}, {}, {fail: true}}
	h.Register("u1", conns[0])
	h.Register("u2", conns[1])
	h.Register("u3", conns[2])
	h.Broadcast("all")
	if conns[0].count() != 1 || conns[1].count() != 1 {
		t.Fatalf("broadcast should reach every live connection")
	}
	if h.Connected("u3") {
		t.Fatalf("broken connection's user should be pruned")
	}
	if h.Users() != 2 {
		t.Fatalf("expected 2 users, got %d", h.Users())
	}
}

func TestConcurrentRegisterSend(t *testing.T) {
	h := New(nil, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			h.Register("u1", c)
			h.SendTo("u1", "x")
			h.Unregister("u1", c)
		}()
	}
	wg.Wait()
	if h.Users() != 0 {
		t.Fatalf("registry should drain to empty")
	}
}
