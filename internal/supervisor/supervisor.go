// Package supervisor implements the PID 1 control loop: it launches
// registered services, reaps exited children, applies restart policies,
// expires watchdogs and sequences shutdown. All service state is owned by
// the single loop goroutine; the only suspension point is the select in Run.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/loykin/initd/internal/history"
	"github.com/loykin/initd/internal/logger"
	"github.com/loykin/initd/internal/metrics"
	"github.com/loykin/initd/internal/service"
	"github.com/loykin/initd/internal/spawn"
)

// ErrLaunchFailed wraps synchronous spawn errors. Launch failures are
// always local to one service and never abort the supervisor.
var ErrLaunchFailed = errors.New("launch failed")

// selfName correlates the supervisor's own log lines.
const selfName = "initd"

// Config holds loop-level settings; zero values get defaults from New.
type Config struct {
	// GracePeriod bounds how long shutdown waits after SIGTERM before
	// escalating to SIGKILL.
	GracePeriod time.Duration
	// WatchdogTick is the coarse interval between watchdog sweeps.
	WatchdogTick time.Duration
	// RestartMax caps relaunches per service within RestartWindow;
	// 0 means unlimited.
	RestartMax    int
	RestartWindow time.Duration
	// LogTarget is where supervisor log lines go.
	LogTarget logger.Target
}

func (c *Config) defaults() {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 5 * time.Second
	}
	if c.WatchdogTick <= 0 {
		c.WatchdogTick = time.Second
	}
	if c.RestartWindow <= 0 {
		c.RestartWindow = 10 * time.Second
	}
}

// Supervisor owns the service registry and runs the control loop.
// It is an explicit context object: independent instances can be
// constructed side by side, which is what the tests do.
type Supervisor struct {
	cfg     Config
	reg     *service.Registry
	spawner spawn.Spawner
	log     *logger.Logger
	sinks   []history.Sink

	running bool
	beats   chan string
	now     func() time.Time

	// relaunch timestamps per service, pruned to the restart window
	relaunches map[string][]time.Time
}

func New(cfg Config, sp spawn.Spawner, log *logger.Logger) *Supervisor {
	cfg.defaults()
	if log == nil {
		log = logger.Discard()
	}
	return &Supervisor{
		cfg:        cfg,
		reg:        service.NewRegistry(),
		spawner:    sp,
		log:        log,
		beats:      make(chan string, 64),
		now:        time.Now,
		relaunches: make(map[string][]time.Time),
	}
}

// SetHistorySinks configures lifecycle event sinks. Passing none clears them.
func (s *Supervisor) SetHistorySinks(sinks ...history.Sink) {
	s.sinks = append([]history.Sink(nil), sinks...)
}

// Register adds a service in the stopped state. Registration order is
// startup order.
func (s *Supervisor) Register(spec service.Spec) error {
	if !spec.Restart.Valid() {
		return fmt.Errorf("service %s: invalid restart policy %q", spec.Name, spec.Restart)
	}
	_, err := s.reg.Register(spec)
	return err
}

// Heartbeat records a liveness ping for name. Safe to call from other
// goroutines: the ping is queued and consumed by the loop.
func (s *Supervisor) Heartbeat(name string) {
	select {
	case s.beats <- name:
	default:
	}
}

// Status returns a snapshot of one service record.
func (s *Supervisor) Status(name string) (service.Record, error) {
	rec := s.reg.FindByName(name)
	if rec == nil {
		return service.Record{}, fmt.Errorf("unknown service: %s", name)
	}
	return *rec, nil
}

// StatusAll returns snapshots of every record in registration order.
func (s *Supervisor) StatusAll() []service.Record {
	out := make([]service.Record, 0, s.reg.Len())
	for rec := range s.reg.All() {
		out = append(out, *rec)
	}
	return out
}

// LaunchAll launches every registered service in registration order.
// Individual launch failures are logged and skipped; they never abort
// the remaining launches.
func (s *Supervisor) LaunchAll() {
	for rec := range s.reg.All() {
		if err := s.launch(rec); err != nil {
			s.log.Logf(rec.Name, logger.Error, s.cfg.LogTarget, "startup launch failed: %v", err)
		}
	}
}

// Launch launches one service by name.
func (s *Supervisor) Launch(name string) error {
	rec := s.reg.FindByName(name)
	if rec == nil {
		return fmt.Errorf("unknown service: %s", name)
	}
	return s.launch(rec)
}

// launch spawns rec's executable. Precondition: rec.State == Stopped;
// any other state makes the call an idempotent no-op so a service is
// never double-spawned.
func (s *Supervisor) launch(rec *service.Record) error {
	if rec.State != service.StateStopped {
		s.log.Logf(rec.Name, logger.Info, s.cfg.LogTarget,
			"launch skipped: state is %s", rec.State)
		return nil
	}
	rec.State = service.StateStarting
	pid, err := s.spawner.Spawn(rec.Spec)
	if err != nil {
		rec.State = service.StateFailed
		rec.PID = 0
		s.log.Logf(rec.Name, logger.Error, s.cfg.LogTarget, "launch failed: %v", err)
		metrics.IncLaunchFailure(rec.Name)
		s.publishState(rec)
		s.record(history.EventLaunchFailed, rec, err.Error())
		return fmt.Errorf("%w: %s: %v", ErrLaunchFailed, rec.Name, err)
	}
	rec.PID = pid
	// Spawn failure is synchronous, so the process is promoted to
	// running as soon as the spawn call returns.
	rec.State = service.StateRunning
	now := s.now()
	rec.StartedAt = now
	rec.LastHeartbeat = now
	s.log.Logf(rec.Name, logger.Info, s.cfg.LogTarget, "launched pid %d", pid)
	metrics.IncLaunch(rec.Name)
	s.publishState(rec)
	s.record(history.EventLaunch, rec, "")
	return nil
}

// Run subscribes to SIGCHLD/SIGTERM/SIGINT and drives the control loop
// until a termination request arrives or ctx is cancelled, then runs the
// shutdown sequence. Signals are consumed synchronously from the channel;
// no handler ever mutates state asynchronously.
func (s *Supervisor) Run(ctx context.Context) error {
	sigs := make(chan os.Signal, 16)
	signal.Notify(sigs, unix.SIGCHLD, unix.SIGTERM, unix.SIGINT)
	defer signal.Stop(sigs)
	return s.run(ctx, sigs)
}

func (s *Supervisor) run(ctx context.Context, sigs <-chan os.Signal) error {
	if s.spawner == nil {
		// No safe degraded mode: a supervisor that cannot observe
		// child exits must not start.
		return errors.New("supervisor: no spawner configured")
	}
	s.running = true
	ticker := time.NewTicker(s.cfg.WatchdogTick)
	defer ticker.Stop()

	for s.running {
		select {
		case sig := <-sigs:
			switch sig {
			case unix.SIGCHLD:
				s.handleChildExits()
			case unix.SIGTERM, unix.SIGINT:
				s.log.Logf(selfName, logger.Notice, s.cfg.LogTarget,
					"received %s, shutting down", sig)
				s.running = false
			}
		case name := <-s.beats:
			s.markHeartbeat(name)
		case <-ticker.C:
			// The signal channel is bounded, so a burst can drop a
			// coalesced SIGCHLD. Reaping on every tick bounds how long
			// a terminated child can linger to WatchdogTick.
			s.handleChildExits()
			s.checkWatchdogs(s.now())
		case <-ctx.Done():
			s.running = false
		}
	}
	s.shutdown()
	return nil
}

// handleChildExits drains every currently-exited child. One SIGCHLD can
// stand for several exits, so a single wake-up reaps until the spawner
// reports none remain.
func (s *Supervisor) handleChildExits() {
	for _, exit := range s.spawner.Reap() {
		rec := s.reg.FindByPID(exit.PID)
		if rec == nil {
			// Reparented orphan: reaping it was the whole job.
			s.log.Logf(selfName, logger.Debug, s.cfg.LogTarget,
				"reaped orphan pid %d (%s)", exit.PID, exit)
			metrics.IncOrphanReaped()
			continue
		}
		clean := exit.Clean()
		rec.PID = 0
		rec.StoppedAt = s.now()
		if clean {
			rec.State = service.StateStopped
		} else {
			rec.State = service.StateFailed
		}
		s.log.Logf(rec.Name, logger.Notice, s.cfg.LogTarget,
			"exited with %s", exit)
		metrics.IncExit(rec.Name, clean)
		s.publishState(rec)
		s.record(history.EventExit, rec, exit.String())
		s.applyRestartPolicy(rec, clean)
	}
}

func (s *Supervisor) markHeartbeat(name string) {
	rec := s.reg.FindByName(name)
	if rec == nil || rec.State != service.StateRunning {
		return
	}
	rec.LastHeartbeat = s.now()
}

// record exports a lifecycle event to all sinks; failures only cost
// observability and are logged at warning.
func (s *Supervisor) record(t history.EventType, rec *service.Record, detail string) {
	if len(s.sinks) == 0 {
		return
	}
	e := history.Event{
		Type:       t,
		OccurredAt: s.now().UTC(),
		Service:    rec.Name,
		PID:        rec.PID,
		State:      string(rec.State),
		Detail:     detail,
	}
	for _, sink := range s.sinks {
		if err := sink.Send(context.Background(), e); err != nil {
			s.log.Logf(selfName, logger.Warning, s.cfg.LogTarget,
				"history sink: %v", err)
		}
	}
}

func (s *Supervisor) publishState(rec *service.Record) {
	states := make([]string, len(service.States))
	for i, st := range service.States {
		states[i] = string(st)
	}
	metrics.SetState(rec.Name, string(rec.State), states)
}
