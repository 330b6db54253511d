package supervisor

import (
	"github.com/loykin/initd/internal/history"
	"github.com/loykin/initd/internal/logger"
	"github.com/loykin/initd/internal/metrics"
	"github.com/loykin/initd/internal/service"
)

// Decide is the restart policy table: given the configured policy and
// whether the exit was clean, it reports whether the service must be
// relaunched.
//
//	never       -> no
//	on-failure  -> only failing exits
//	always      -> yes
func Decide(policy service.RestartPolicy, clean bool) bool {
	switch policy {
	case service.RestartAlways:
		return true
	case service.RestartOnFailure:
		return !clean
	default:
		return false
	}
}

func (s *Supervisor) applyRestartPolicy(rec *service.Record, clean bool) {
	if !Decide(rec.Restart, clean) {
		return
	}
	s.relaunchWithinCeiling(rec)
}

// relaunchWithinCeiling is the single path to a relaunch for every trigger
// (exit policy and watchdog expiry alike), so the per-window ceiling can
// never be bypassed.
func (s *Supervisor) relaunchWithinCeiling(rec *service.Record) {
	if !s.relaunchAllowed(rec.Name) {
		s.log.Logf(rec.Name, logger.Warning, s.cfg.LogTarget,
			"relaunch suppressed: %d relaunches within %s", s.cfg.RestartMax, s.cfg.RestartWindow)
		return
	}
	s.relaunch(rec)
}

// relaunch invokes the launcher on the same record. A relaunch failure is
// logged and swallowed; the record stays failed so a later policy pass or
// an operator can retry.
func (s *Supervisor) relaunch(rec *service.Record) {
	rec.State = service.StateStopped
	rec.Restarts++
	metrics.IncRelaunch(rec.Name)
	s.record(history.EventRelaunch, rec, "")
	if err := s.launch(rec); err != nil {
		s.log.Logf(rec.Name, logger.Error, s.cfg.LogTarget, "relaunch failed: %v", err)
	}
}

// relaunchAllowed enforces the optional per-window relaunch ceiling.
// RestartMax == 0 disables the ceiling.
func (s *Supervisor) relaunchAllowed(name string) bool {
	if s.cfg.RestartMax <= 0 {
		return true
	}
	now := s.now()
	cutoff := now.Add(-s.cfg.RestartWindow)
	kept := s.relaunches[name][:0]
	for _, t := range s.relaunches[name] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= s.cfg.RestartMax {
		s.relaunches[name] = kept
		return false
	}
	s.relaunches[name] = append(kept, now)
	return true
}
