//go:build unix

package spawn

import (
	"io"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/loykin/initd/internal/logger"
	"github.com/loykin/initd/internal/service"
)

// ExecSpawner launches real OS processes. Children are started in their
// own session so signals addressed to the supervisor do not reach them,
// and are reaped via wait4(-1, WNOHANG); cmd.Wait is never called.
type ExecSpawner struct {
	capture logger.CaptureConfig
}

func NewExecSpawner(capture logger.CaptureConfig) *ExecSpawner {
	return &ExecSpawner{capture: capture}
}

// capturePipe plumbs one child stream into its rotated log sink. The
// spawner owns the os.Pipe instead of handing the sink to os/exec: the
// drain goroutine is the only closer of the sink and closes it at pipe
// EOF, after the last buffered byte has been written. Reaping the child
// therefore never races a close against in-flight output, and the sink's
// file descriptor cannot be resurrected by a write after close.
type capturePipe struct {
	r, w *os.File
	sink io.WriteCloser
}

func newCapturePipe(sink io.WriteCloser) (*capturePipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return &capturePipe{r: r, w: w, sink: sink}, nil
}

// drain copies until every write end of the pipe is gone, then retires
// the sink.
func (p *capturePipe) drain() {
	_, _ = io.Copy(p.sink, p.r)
	_ = p.r.Close()
	_ = p.sink.Close()
}

// abort tears the pipe down when the spawn never happened.
func (p *capturePipe) abort() {
	_ = p.w.Close()
	_ = p.r.Close()
	_ = p.sink.Close()
}

func (s *ExecSpawner) Spawn(spec service.Spec) (int, error) {
	// #nosec G204 -- spec comes from the validated config layer
	cmd := exec.Command(spec.ExecPath, spec.Args...)
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	// Stdin stays nil: os/exec connects it to /dev/null. Nil stdout/stderr
	// are likewise discarded. Captured streams go through our own pipes so
	// os/exec never starts a copy goroutine it would expect Wait to join.
	outW, errW := s.capture.Writers(spec.Name)
	var pipes []*capturePipe
	if outW != nil {
		p, err := newCapturePipe(outW)
		if err != nil {
			if errW != nil {
				_ = errW.Close()
			}
			return 0, err
		}
		cmd.Stdout = p.w
		pipes = append(pipes, p)
	}
	if errW != nil {
		p, err := newCapturePipe(errW)
		if err != nil {
			for _, q := range pipes {
				q.abort()
			}
			return 0, err
		}
		cmd.Stderr = p.w
		pipes = append(pipes, p)
	}

	if err := cmd.Start(); err != nil {
		for _, p := range pipes {
			p.abort()
		}
		return 0, err
	}
	pid := cmd.Process.Pid
	for _, p := range pipes {
		// The child holds its own descriptor now; dropping ours makes
		// the child's exit the event that ends the drain.
		_ = p.w.Close()
		go p.drain()
	}
	// Release the handle; exits are observed through Reap, not cmd.Wait.
	_ = cmd.Process.Release()
	return pid, nil
}

// Reap drains all currently-exited children. As PID 1 this also collects
// orphans that were reparented to us; callers discard exits with no
// matching service record.
func (s *ExecSpawner) Reap() []Exit {
	var exits []Exit
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		switch {
		case pid > 0:
			e := Exit{PID: pid}
			if ws.Signaled() {
				e.Signal = ws.Signal()
				e.Code = -1
			} else {
				e.Code = ws.ExitStatus()
			}
			exits = append(exits, e)
		case err == unix.EINTR:
			// interrupted: retry
		default:
			// pid == 0 (children remain but none exited) or ECHILD
			return exits
		}
	}
}

func (s *ExecSpawner) Signal(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}
