package history

import (
	"context"
	"time"
)

// EventType classifies a service lifecycle transition.
type EventType string

const (
	EventLaunch          EventType = "launch"
	EventLaunchFailed    EventType = "launch_failed"
	EventExit            EventType = "exit"
	EventRelaunch        EventType = "relaunch"
	EventWatchdogExpired EventType = "watchdog_expired"
	EventShutdown        EventType = "shutdown"
)

// Event is one lifecycle transition exported to an external system.
// Sink failures are observability losses, never supervision failures.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Service    string    `json:"service"`
	PID        int       `json:"pid"`
	State      string    `json:"state"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for lifecycle events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}
