package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loykin/initd"
)

// embedded_capture: demonstrate per-service stdout/stderr capture. It runs a
// short command that writes to both streams and shows where the logs land.
func main() {
	logDir := os.Getenv("INITD_LOG_DIR")
	if logDir == "" {
		logDir = filepath.Join(os.TempDir(), fmt.Sprintf("initd-logs-%d", time.Now().UnixNano()))
	}
	_ = os.MkdirAll(logDir, 0o750)

	sp := initd.NewExecSpawner(initd.CaptureConfig{Dir: logDir, CaptureStdout: true})
	pid, err := sp.Spawn(initd.Spec{
		Name:     "capture-demo",
		ExecPath: "/bin/sh",
		Args:     []string{"-c", "echo hello-out; echo hello-err 1>&2; sleep 0.2"},
	})
	if err != nil {
		panic(err)
	}

	// Give the process time to write and exit, then drain the exit.
	time.Sleep(400 * time.Millisecond)
	for _, e := range sp.Reap() {
		if e.PID == pid {
			fmt.Println("child finished:", e)
		}
	}

	fmt.Println("Capture example")
	fmt.Println("  Log directory:", logDir)
	fmt.Println("  Stdout log:", filepath.Join(logDir, "capture-demo.stdout.log"))
	fmt.Println("  Stderr log:", filepath.Join(logDir, "capture-demo.stderr.log"))
	fmt.Println("Tip: set INITD_LOG_DIR to choose a custom log directory.")
}
