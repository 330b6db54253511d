package supervisor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/loykin/initd/internal/history"
	"github.com/loykin/initd/internal/logger"
	"github.com/loykin/initd/internal/service"
)

// shutdown sequences the end of supervision: every live child gets a
// SIGTERM, exits are reaped for up to the grace period, stragglers get a
// SIGKILL. Every service ends in the stopped state and the loop's running
// flag is already cleared when this runs.
func (s *Supervisor) shutdown() {
	s.log.Log(selfName, logger.Notice, "stopping all services", s.cfg.LogTarget)
	live := 0
	for rec := range s.reg.All() {
		if !rec.Alive() {
			continue
		}
		rec.State = service.StateStopping
		s.publishState(rec)
		_ = s.spawner.Signal(rec.PID, unix.SIGTERM)
		live++
	}

	deadline := s.now().Add(s.cfg.GracePeriod)
	for live > 0 && s.now().Before(deadline) {
		live -= s.reapStopping()
		if live > 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}

	// Grace period elapsed: force-kill whatever is left, then collect it.
	if live > 0 {
		for rec := range s.reg.All() {
			if rec.State != service.StateStopping {
				continue
			}
			s.log.Logf(rec.Name, logger.Warning, s.cfg.LogTarget,
				"did not exit within %s, killing", s.cfg.GracePeriod)
			_ = s.spawner.Signal(rec.PID, unix.SIGKILL)
		}
		killDeadline := s.now().Add(time.Second)
		for live > 0 && s.now().Before(killDeadline) {
			live -= s.reapStopping()
			if live > 0 {
				time.Sleep(20 * time.Millisecond)
			}
		}
	}

	// Bookkeeping must end clean even if a child could not be reaped.
	for rec := range s.reg.All() {
		if rec.State == service.StateStopping || rec.State == service.StateRunning {
			rec.PID = 0
			rec.State = service.StateStopped
			rec.StoppedAt = s.now()
			s.publishState(rec)
		}
		s.record(history.EventShutdown, rec, "")
	}
	s.log.Log(selfName, logger.Notice, "shutdown complete", s.cfg.LogTarget)
}

// reapStopping drains exited children during shutdown and returns how
// many supervised services were collected.
func (s *Supervisor) reapStopping() int {
	n := 0
	for _, exit := range s.spawner.Reap() {
		rec := s.reg.FindByPID(exit.PID)
		if rec == nil {
			continue
		}
		rec.PID = 0
		rec.State = service.StateStopped
		rec.StoppedAt = s.now()
		s.publishState(rec)
		s.record(history.EventExit, rec, exit.String())
		n++
	}
	return n
}
