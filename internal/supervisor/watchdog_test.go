package supervisor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/loykin/initd/internal/service"
)

func TestWatchdogExpiryRelaunches(t *testing.T) {
	// A service with a 5s interval and no heartbeat for 6s while running
	// is marked failed and relaunched by the next check.
	s, fs := newTestSupervisor(t, Config{})
	base := time.Now()
	s.now = func() time.Time { return base }
	mustRegister(t, s, service.Spec{
		Name: "wd", ExecPath: "/bin/wd",
		Restart:          service.RestartOnFailure,
		WatchdogInterval: 5 * time.Second,
	})
	s.LaunchAll()
	first, _ := s.Status("wd")

	s.now = func() time.Time { return base.Add(6 * time.Second) }
	s.checkWatchdogs(s.now())

	rec, _ := s.Status("wd")
	if rec.State != service.StateRunning || rec.PID == first.PID {
		t.Fatalf("want relaunched with new pid, got state=%s old=%d new=%d", rec.State, first.PID, rec.PID)
	}
	if rec.Restarts != 1 {
		t.Fatalf("want 1 restart, got %d", rec.Restarts)
	}
	if sigs := fs.signals[first.PID]; len(sigs) != 1 || sigs[0] != unix.SIGKILL {
		t.Fatalf("stale process must be killed, got %v", sigs)
	}
}

func TestWatchdogHeartbeatPreventsExpiry(t *testing.T) {
	s, _ := newTestSupervisor(t, Config{})
	base := time.Now()
	now := base
	s.now = func() time.Time { return now }
	mustRegister(t, s, service.Spec{
		Name: "wd", ExecPath: "/bin/wd",
		Restart:          service.RestartOnFailure,
		WatchdogInterval: 5 * time.Second,
	})
	s.LaunchAll()
	first, _ := s.Status("wd")

	now = base.Add(4 * time.Second)
	s.markHeartbeat("wd")
	now = base.Add(8 * time.Second) // 8s since launch, 4s since heartbeat
	s.checkWatchdogs(now)

	rec, _ := s.Status("wd")
	if rec.State != service.StateRunning || rec.PID != first.PID {
		t.Fatalf("heartbeat within interval must not expire: state=%s pid=%d", rec.State, rec.PID)
	}
}

func TestWatchdogIgnoresNonRunningAndOptedOut(t *testing.T) {
	s, fs := newTestSupervisor(t, Config{})
	base := time.Now()
	s.now = func() time.Time { return base }
	mustRegister(t, s, service.Spec{
		Name: "plain", ExecPath: "/bin/plain", Restart: service.RestartAlways,
	})
	mustRegister(t, s, service.Spec{
		Name: "stopped", ExecPath: "/bin/stopped",
		Restart:          service.RestartAlways,
		WatchdogInterval: time.Second,
	})
	s.LaunchAll()

	// Park "stopped" in the failed state so the sweep must skip it.
	rec, _ := s.Status("stopped")
	fs.queueExit(rec.PID, 1)
	fs.failFor["stopped"] = errNoRelaunch
	s.handleChildExits()
	delete(fs.failFor, "stopped")
	spawned := len(fs.spawns)

	s.now = func() time.Time { return base.Add(time.Hour) }
	s.checkWatchdogs(s.now())
	if len(fs.spawns) != spawned {
		t.Fatalf("watchdog acted on a service it should ignore: %v", fs.spawns[spawned:])
	}
}

func TestWatchdogRelaunchRespectsCeiling(t *testing.T) {
	// A never-heartbeating service must not restart-loop past the
	// configured ceiling just because the trigger is the watchdog
	// rather than an exit.
	s, fs := newTestSupervisor(t, Config{RestartMax: 1, RestartWindow: time.Hour})
	base := time.Now()
	now := base
	s.now = func() time.Time { return now }
	mustRegister(t, s, service.Spec{
		Name: "wd", ExecPath: "/bin/wd",
		Restart:          service.RestartAlways,
		WatchdogInterval: 5 * time.Second,
	})
	s.LaunchAll()

	for i := 1; i <= 5; i++ {
		now = base.Add(time.Duration(i) * 6 * time.Second)
		s.checkWatchdogs(now)
	}

	rec, _ := s.Status("wd")
	if rec.Restarts != 1 {
		t.Fatalf("ceiling of 1 relaunch, got %d (spawns=%v)", rec.Restarts, fs.spawns)
	}
	if rec.State != service.StateFailed {
		t.Fatalf("suppressed service must stay failed, got %s", rec.State)
	}
	if len(fs.spawns) != 2 {
		t.Fatalf("want initial launch + 1 relaunch, got %v", fs.spawns)
	}
}

var errNoRelaunch = errTest("spawn disabled")

type errTest string

func (e errTest) Error() string { return string(e) }

func TestHeartbeatForUnknownServiceIgnored(t *testing.T) {
	s, _ := newTestSupervisor(t, Config{})
	s.markHeartbeat("ghost") // must not panic
}
