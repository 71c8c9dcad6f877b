package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	audit "pharmatrace/pkg/platform/audit"
)

// Schema creates the audit table. Rows are append-only.
const Schema = `
CREATE TABLE IF NOT EXISTS consent_audit_events (
	id          UUID PRIMARY KEY,
	category    TEXT        NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	action      TEXT        NOT NULL,
	identity    TEXT        NOT NULL DEFAULT '',
	address     TEXT        NOT NULL DEFAULT '',
	digest      TEXT        NOT NULL DEFAULT '',
	signature   TEXT        NOT NULL DEFAULT '',
	reason      TEXT        NOT NULL DEFAULT '',
	subject     TEXT        NOT NULL DEFAULT '',
	request_id  TEXT        NOT NULL DEFAULT '',
	device      TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS consent_audit_events_identity_idx
	ON consent_audit_events (identity, occurred_at);
`

// Store implements audit.Store and audit.Reader on PostgreSQL.
type Store struct {
	db *pgxpool.Pool
}

// New creates a PostgreSQL audit store.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// Append inserts an event. Duplicate IDs are ignored so retries are safe.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO consent_audit_events (
			id, category, occurred_at, action, identity, address,
			digest, signature, reason, subject, request_id, device
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		event.ID,
		string(event.Category),
		event.Timestamp,
		event.Action,
		event.Identity,
		event.Address,
		event.Digest,
		event.Signature,
		event.Reason,
		event.Subject,
		event.RequestID,
		event.Device,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByIdentity returns the trail for identity, oldest first.
func (s *Store) ListByIdentity(ctx context.Context, identity string) ([]audit.Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, category, occurred_at, action, identity, address,
		       digest, signature, reason, subject, request_id, device
		FROM consent_audit_events
		WHERE identity = $1
		ORDER BY occurred_at ASC, id ASC`, identity)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e        audit.Event
			category string
		)
		if err := rows.Scan(
			&e.ID, &category, &e.Timestamp, &e.Action, &e.Identity, &e.Address,
			&e.Digest, &e.Signature, &e.Reason, &e.Subject, &e.RequestID, &e.Device,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
