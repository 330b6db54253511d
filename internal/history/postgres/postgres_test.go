package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/initd/internal/history"
)

func TestPostgresSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("cannot start PostgreSQL container: %v", err)
	}
	defer func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	sink, err := New(connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	base := time.Now().UTC()
	events := []history.Event{
		{Type: history.EventLaunch, OccurredAt: base, Service: "web", PID: 4242, State: "running"},
		{Type: history.EventExit, OccurredAt: base.Add(time.Second), Service: "web", PID: 4242, State: "failed", Detail: "killed by signal 9"},
	}
	for _, e := range events {
		if err := sink.Send(ctx, e); err != nil {
			t.Fatalf("Failed to send %s event: %v", e.Type, err)
		}
	}

	got, err := sink.RecentByService(ctx, "web", 10)
	if err != nil {
		t.Fatalf("Failed to query events: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events in history, got %d", len(got))
	}
	if got[0].Type != history.EventExit || got[0].Detail != "killed by signal 9" {
		t.Errorf("newest event wrong: %+v", got[0])
	}
	if got[1].Type != history.EventLaunch || got[1].PID != 4242 {
		t.Errorf("oldest event wrong: %+v", got[1])
	}
}
