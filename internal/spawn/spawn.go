// Package spawn isolates raw OS process control behind a narrow capability
// so supervisor logic can be tested against a fake without real children.
package spawn

import (
	"fmt"
	"syscall"

	"github.com/loykin/initd/internal/service"
)

// Exit is the reaped outcome of one child process.
type Exit struct {
	PID    int
	Code   int            // exit code when the child exited normally
	Signal syscall.Signal // non-zero when the child was signal-killed
}

// Clean reports whether the exit counts as a clean stop. Exit code 0 is
// the only clean outcome; signal-killed children are never clean.
func (e Exit) Clean() bool { return e.Signal == 0 && e.Code == 0 }

func (e Exit) String() string {
	if e.Signal != 0 {
		return fmt.Sprintf("signal %s", e.Signal)
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

// Spawner starts, signals and reaps child processes.
type Spawner interface {
	// Spawn launches the service executable and returns its pid.
	// Failure is synchronous (missing executable, permissions, rlimits).
	Spawn(spec service.Spec) (int, error)
	// Reap collects every currently-exited child without blocking.
	// It must drain: multiple children may have exited since the last
	// call and none of them may be lost.
	Reap() []Exit
	// Signal delivers sig to the child with the given pid.
	Signal(pid int, sig syscall.Signal) error
}
