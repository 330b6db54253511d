// Package initd is a supervising init process: it launches a configured
// set of services, reaps terminated children (including reparented
// orphans), applies per-service restart policies and sequences an orderly
// shutdown on SIGTERM/SIGINT. This package is the stable facade for
// embedding; the initd binary lives under cmd/initd.
package initd

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/initd/internal/config"
	"github.com/loykin/initd/internal/heartbeat"
	"github.com/loykin/initd/internal/history"
	"github.com/loykin/initd/internal/history/factory"
	"github.com/loykin/initd/internal/logger"
	"github.com/loykin/initd/internal/metrics"
	"github.com/loykin/initd/internal/service"
	"github.com/loykin/initd/internal/spawn"
	"github.com/loykin/initd/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = service.Spec

type Record = service.Record

type State = service.State

type RestartPolicy = service.RestartPolicy

const (
	RestartNever     = service.RestartNever
	RestartOnFailure = service.RestartOnFailure
	RestartAlways    = service.RestartAlways
)

type Config = config.Config

type SupervisorConfig = supervisor.Config

type Spawner = spawn.Spawner

type Logger = logger.Logger

type LoggerConfig = logger.Config

type CaptureConfig = logger.CaptureConfig

type HistorySink = history.Sink

// Supervisor is a thin facade over internal/supervisor.Supervisor.
type Supervisor struct{ inner *supervisor.Supervisor }

// New constructs a supervisor. A nil spawner is rejected by Run; a nil
// logger discards output.
func New(cfg SupervisorConfig, sp Spawner, log *Logger) *Supervisor {
	return &Supervisor{inner: supervisor.New(cfg, sp, log)}
}

func (s *Supervisor) Register(spec Spec) error            { return s.inner.Register(spec) }
func (s *Supervisor) LaunchAll()                          { s.inner.LaunchAll() }
func (s *Supervisor) Launch(name string) error            { return s.inner.Launch(name) }
func (s *Supervisor) Run(ctx context.Context) error       { return s.inner.Run(ctx) }
func (s *Supervisor) Heartbeat(name string)               { s.inner.Heartbeat(name) }
func (s *Supervisor) Status(name string) (Record, error)  { return s.inner.Status(name) }
func (s *Supervisor) StatusAll() []Record                 { return s.inner.StatusAll() }
func (s *Supervisor) SetHistorySinks(sinks ...HistorySink) {
	s.inner.SetHistorySinks(sinks...)
}

// NewLogger builds the structured logging capability.
func NewLogger(cfg LoggerConfig) (*Logger, error) { return logger.New(cfg) }

// NewExecSpawner returns the real OS-process spawner with the given
// stdout/stderr capture policy.
func NewExecSpawner(capture CaptureConfig) Spawner { return spawn.NewExecSpawner(capture) }

// NewHistorySink builds a lifecycle event sink from a DSN
// (sqlite path, postgres:// or clickhouse:// URL).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// LoadConfig reads and validates a TOML configuration file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// HeartbeatListener re-exports the unixgram heartbeat intake.
type HeartbeatListener = heartbeat.Listener

// ListenHeartbeats binds the heartbeat socket at path.
func ListenHeartbeats(path string) (*HeartbeatListener, error) { return heartbeat.Listen(path) }

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It returns any immediate listen error; otherwise it
// runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
