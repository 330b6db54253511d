package service

import "time"

// RestartPolicy governs automatic relaunch after a service terminates.
type RestartPolicy string

const (
	RestartNever     RestartPolicy = "never"
	RestartOnFailure RestartPolicy = "on-failure"
	RestartAlways    RestartPolicy = "always"
)

// Valid reports whether p is one of the known policies.
func (p RestartPolicy) Valid() bool {
	switch p {
	case RestartNever, RestartOnFailure, RestartAlways:
		return true
	}
	return false
}

// State is the lifecycle state of a supervised service.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateFailed   State = "failed"
)

// States lists all lifecycle states; used by metrics to reset gauges.
var States = []State{StateStopped, StateStarting, StateRunning, StateStopping, StateFailed}

// Spec is a validated service descriptor. It is produced by the config
// layer (or an embedder) and is never mutated after registration.
type Spec struct {
	Name             string        `json:"name"`
	ExecPath         string        `json:"exec_path"`
	Args             []string      `json:"args,omitempty"`
	Env              []string      `json:"env,omitempty"`
	WorkDir          string        `json:"work_dir,omitempty"`
	Dependencies     []string      `json:"dependencies,omitempty"` // informational; ordering is not enforced
	Restart          RestartPolicy `json:"restart"`
	WatchdogInterval time.Duration `json:"watchdog_interval,omitempty"` // 0 disables the watchdog
}

// Record holds the supervisor-owned runtime state of one service.
// Only the supervisor loop mutates a Record; other components receive
// a transient reference for the duration of one operation.
type Record struct {
	Spec

	// PID of the running instance; 0 when not running.
	// Invariant: PID != 0 iff State is starting, running or stopping.
	PID           int       `json:"pid"`
	State         State     `json:"state"`
	LastHeartbeat time.Time `json:"last_heartbeat,omitempty"`
	Restarts      int       `json:"restarts"`
	StartedAt     time.Time `json:"started_at,omitempty"`
	StoppedAt     time.Time `json:"stopped_at,omitempty"`
}

// Alive reports whether the record currently owns an OS process.
func (r *Record) Alive() bool {
	switch r.State {
	case StateStarting, StateRunning, StateStopping:
		return true
	}
	return false
}
