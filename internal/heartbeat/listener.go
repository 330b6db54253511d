// Package heartbeat receives liveness pings from supervised services over
// a unix datagram socket. Each datagram carries the service name. The
// listener only forwards names into a channel; the supervisor loop is the
// one that touches service state.
package heartbeat

import (
	"net"
	"os"
	"strings"
	"sync"
)

type Listener struct {
	conn *net.UnixConn
	path string
	ch   chan string
	done chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Listen binds a unixgram socket at path. A stale socket file from a
// previous run is removed first.
func Listen(path string) (*Listener, error) {
	_ = os.Remove(path)
	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, err
	}
	l := &Listener{conn: conn, path: path, ch: make(chan string, 64), done: make(chan struct{})}
	go l.run()
	return l, nil
}

// Beats delivers service names as heartbeats arrive. The channel is
// closed when the listener shuts down.
func (l *Listener) Beats() <-chan string { return l.ch }

func (l *Listener) run() {
	defer close(l.ch)
	buf := make([]byte, 256)
	for {
		n, _, err := l.conn.ReadFromUnix(buf)
		if err != nil {
			select {
			case <-l.done:
			default:
			}
			return
		}
		name := strings.TrimSpace(string(buf[:n]))
		if name == "" {
			continue
		}
		select {
		case l.ch <- name:
		default:
			// channel full: drop; a lost ping is indistinguishable from
			// a late one and the watchdog interval absorbs both
		}
	}
}

// Close shuts the listener down and removes the socket file. Safe to call
// more than once; later calls return the first result.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.closeErr = l.conn.Close()
		_ = os.Remove(l.path)
	})
	return l.closeErr
}
