package heartbeat

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

func dialAndSend(t *testing.T, path, payload string) {
	t.Helper()
	conn, err := net.Dial("unixgram", path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	if _, err := conn.Write([]byte(payload)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recvBeat(t *testing.T, l *Listener) string {
	t.Helper()
	select {
	case name := <-l.Beats():
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat received")
		return ""
	}
}

func TestListenerDeliversNames(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "notify.sock")
	l, err := Listen(sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = l.Close() }()

	dialAndSend(t, sock, "web")
	if got := recvBeat(t, l); got != "web" {
		t.Fatalf("got %q, want web", got)
	}
	dialAndSend(t, sock, "  db \n")
	if got := recvBeat(t, l); got != "db" {
		t.Fatalf("payload not trimmed: %q", got)
	}
}

func TestListenerSkipsEmptyPayload(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "notify.sock")
	l, err := Listen(sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = l.Close() }()

	dialAndSend(t, sock, "   ")
	dialAndSend(t, sock, "real")
	if got := recvBeat(t, l); got != "real" {
		t.Fatalf("empty payload was delivered before %q", got)
	}
}

func TestListenerReplacesStaleSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "notify.sock")
	l1, err := Listen(sock)
	if err != nil {
		t.Fatalf("first listen: %v", err)
	}
	_ = l1.Close()
	l2, err := Listen(sock)
	if err != nil {
		t.Fatalf("rebind after stale socket: %v", err)
	}
	_ = l2.Close()
}

func TestCloseIsIdempotent(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "notify.sock")
	l, err := Listen(sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	first := l.Close()
	second := l.Close() // must not panic
	if second != first {
		t.Fatalf("second close returned a different result: %v vs %v", second, first)
	}
}

func TestCloseEndsBeatsChannel(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "notify.sock")
	l, err := Listen(sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_ = l.Close()
	select {
	case _, ok := <-l.Beats():
		if ok {
			t.Fatal("unexpected heartbeat after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Beats channel not closed")
	}
}
