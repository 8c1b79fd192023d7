package eventstream

import (
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sendwren/wren/internal/model"
)

// feedServer accepts one connection at a time and writes whatever lines the
// test hands it.
type feedServer struct {
	ln    net.Listener
	conns chan net.Conn
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &feedServer{ln: ln, conns: make(chan net.Conn, 4)}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			f.conns <- conn
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *feedServer) accept(t *testing.T) net.Conn {
	t.Helper()
	select {
	case c := <-f.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("stream never connected")
		return nil
	}
}

func writeEvent(t *testing.T, conn net.Conn, ev model.PushEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recvEvent(t *testing.T, s *Stream) model.PushEvent {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return model.PushEvent{}
	}
}

func TestDeliversEventsInOrder(t *testing.T) {
	feed := newFeedServer(t)
	s := NewStream(feed.ln.Addr().String())
	s.Start()
	defer s.Stop()

	conn := feed.accept(t)
	writeEvent(t, conn, model.PushEvent{Type: model.EventPairingCode, AccountID: "a1", Code: "AB-12"})
	writeEvent(t, conn, model.PushEvent{Type: model.EventAuthenticated, AccountID: "a1"})
	writeEvent(t, conn, model.PushEvent{Type: model.EventReady, AccountID: "a1", PhoneNumber: "+15550001"})

	want := []model.EventType{model.EventPairingCode, model.EventAuthenticated, model.EventReady}
	for i, typ := range want {
		ev := recvEvent(t, s)
		if ev.Type != typ {
			t.Fatalf("event %d: got %q want %q", i, ev.Type, typ)
		}
	}
}

func TestSkipsMalformedLines(t *testing.T) {
	feed := newFeedServer(t)
	s := NewStream(feed.ln.Addr().String())
	s.Start()
	defer s.Stop()

	conn := feed.accept(t)
	conn.Write([]byte("not json\n"))
	writeEvent(t, conn, model.PushEvent{Type: model.EventDisconnected, AccountID: "a1"})

	if ev := recvEvent(t, s); ev.Type != model.EventDisconnected {
		t.Fatalf("got %q after malformed line", ev.Type)
	}
}

func TestReconnectsAndReportsIt(t *testing.T) {
	feed := newFeedServer(t)

	var reconnects atomic.Int64
	s := NewStream(feed.ln.Addr().String(), Config{
		OnReconnect: func() { reconnects.Add(1) },
	})
	s.Start()
	defer s.Stop()

	conn := feed.accept(t)
	writeEvent(t, conn, model.PushEvent{Type: model.EventReady, AccountID: "a1"})
	recvEvent(t, s)
	conn.Close()

	conn2 := feed.accept(t)
	writeEvent(t, conn2, model.PushEvent{Type: model.EventDisconnected, AccountID: "a1"})
	if ev := recvEvent(t, s); ev.Type != model.EventDisconnected {
		t.Fatalf("missed post-reconnect event: %q", ev.Type)
	}
	if reconnects.Load() != 1 {
		t.Fatalf("expected one reconnect callback, got %d", reconnects.Load())
	}
}

func TestStopClosesEventChannel(t *testing.T) {
	feed := newFeedServer(t)
	s := NewStream(feed.ln.Addr().String())
	s.Start()
	feed.accept(t)

	s.Stop()

	select {
	case _, ok := <-s.Events():
		if ok {
			t.Fatal("unexpected event after Stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after Stop")
	}
}
