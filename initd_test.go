package initd

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestFacadeRegisterAndLaunch(t *testing.T) {
	log, err := NewLogger(LoggerConfig{})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer func() { _ = log.Close() }()

	sup := New(SupervisorConfig{}, NewExecSpawner(CaptureConfig{}), log)
	spec := Spec{Name: "svc", ExecPath: "/bin/sh", Args: []string{"-c", "exit 0"}, Restart: RestartNever}
	if err := sup.Register(spec); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := sup.Launch("svc"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	rec, err := sup.Status("svc")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if rec.PID == 0 {
		t.Fatal("launched service has no pid")
	}
	all := sup.StatusAll()
	if len(all) != 1 || all[0].Spec.Name != "svc" {
		t.Fatalf("status all: %+v", all)
	}
	// reap the child so it does not linger as a zombie of the test binary
	_ = syscall.Kill(rec.PID, syscall.SIGKILL)
	var ws syscall.WaitStatus
	_, _ = syscall.Wait4(rec.PID, &ws, 0, nil)
}

func TestFacadeStatusUnknown(t *testing.T) {
	sup := New(SupervisorConfig{}, nil, nil)
	if _, err := sup.Status("ghost"); err == nil {
		t.Fatal("want error for unknown service")
	}
}

func TestLoadConfigAndSpecs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "initd.toml")
	content := `
env = ["MODE=prod"]

[supervisor]
grace_period = "2s"

[[services]]
name = "web"
exec = "/usr/bin/web"
restart = "always"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	specs, err := cfg.Specs()
	if err != nil {
		t.Fatalf("specs: %v", err)
	}
	if len(specs) != 1 || specs[0].Restart != RestartAlways {
		t.Fatalf("specs wrong: %+v", specs)
	}
	if specs[0].Env[0] != "MODE=prod" {
		t.Fatalf("global env not applied: %v", specs[0].Env)
	}
}

func TestNewHistorySinkSQLite(t *testing.T) {
	sink, err := NewHistorySink(filepath.Join(t.TempDir(), "hist.db"))
	if err != nil {
		t.Fatalf("sink: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewHistorySinkBadDSN(t *testing.T) {
	if _, err := NewHistorySink("amqp://broker"); err == nil {
		t.Fatal("want error for unsupported DSN")
	}
}

func TestListenHeartbeatsFacade(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "notify.sock")
	hb, err := ListenHeartbeats(sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := hb.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		t.Fatalf("close: %v", err)
	}
}
