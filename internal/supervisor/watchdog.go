package supervisor

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/loykin/initd/internal/history"
	"github.com/loykin/initd/internal/logger"
	"github.com/loykin/initd/internal/metrics"
	"github.com/loykin/initd/internal/service"
)

// checkWatchdogs sweeps every service that opted into heartbeats. A
// running service whose last heartbeat is older than its interval is
// treated exactly like a crash: the stale process is killed, the record
// marked failed and the launcher invoked. The sweep never blocks.
func (s *Supervisor) checkWatchdogs(now time.Time) {
	for rec := range s.reg.All() {
		if rec.WatchdogInterval <= 0 || rec.State != service.StateRunning {
			continue
		}
		if now.Sub(rec.LastHeartbeat) <= rec.WatchdogInterval {
			continue
		}
		s.log.Logf(rec.Name, logger.Error, s.cfg.LogTarget,
			"watchdog expired: no heartbeat for %s (interval %s)",
			now.Sub(rec.LastHeartbeat), rec.WatchdogInterval)
		metrics.IncWatchdogExpired(rec.Name)
		if rec.PID != 0 {
			// The eventual SIGCHLD for this pid finds no matching
			// record anymore and is discarded as an orphan exit.
			_ = s.spawner.Signal(rec.PID, unix.SIGKILL)
		}
		rec.PID = 0
		rec.State = service.StateFailed
		rec.StoppedAt = now
		s.publishState(rec)
		s.record(history.EventWatchdogExpired, rec, "")
		s.relaunchWithinCeiling(rec)
	}
}
