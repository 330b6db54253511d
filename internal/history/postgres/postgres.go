package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/initd/internal/history"
)

// Sink records lifecycle events into PostgreSQL via the pgx stdlib driver.
type Sink struct {
	db *sql.DB
}

func New(dsn string) (*Sink, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &Sink{db: d}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = d.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS service_events(
			id BIGSERIAL PRIMARY KEY,
			occurred_at TIMESTAMPTZ NOT NULL,
			event TEXT NOT NULL,
			service TEXT NOT NULL,
			pid INTEGER NOT NULL,
			state TEXT NOT NULL,
			detail TEXT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_service_events_service ON service_events(service);`,
		`CREATE INDEX IF NOT EXISTS idx_service_events_event ON service_events(event);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Close() error { return s.db.Close() }

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	var detail any
	if e.Detail != "" {
		detail = e.Detail
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_events(occurred_at, event, service, pid, state, detail)
		VALUES($1, $2, $3, $4, $5, $6);`,
		e.OccurredAt.UTC(), string(e.Type), e.Service, e.PID, e.State, detail)
	return err
}

// RecentByService returns up to limit events for a service, newest first.
func (s *Sink) RecentByService(ctx context.Context, service string, limit int) ([]history.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, event, service, pid, state, detail
		FROM service_events
		WHERE service=$1
		ORDER BY id DESC
		LIMIT $2;`, service, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []history.Event
	for rows.Next() {
		var e history.Event
		var typ string
		var detail sql.NullString
		if err := rows.Scan(&e.OccurredAt, &typ, &e.Service, &e.PID, &e.State, &detail); err != nil {
			return nil, err
		}
		e.Type = history.EventType(typ)
		e.Detail = detail.String
		out = append(out, e)
	}
	return out, rows.Err()
}
