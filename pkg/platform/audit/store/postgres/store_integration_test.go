//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "pharmatrace/pkg/platform/audit"
	"pharmatrace/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
}

func TestPostgresAuditSuite(t *testing.T) {
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresAuditSuite) SetupTest() {
	_, err := s.pg.Pool.Exec(context.Background(), "TRUNCATE consent_audit_events")
	s.Require().NoError(err)
}

func (s *PostgresAuditSuite) TestAppendAndList() {
	ctx := context.Background()
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	first := audit.Event{Action: string(audit.EventConsentSigned), Identity: "wallet-a", Address: "pda-a", Signature: "sig"}
	first.Normalize(base)
	second := audit.Event{Action: string(audit.EventConsentVerified), Identity: "wallet-a"}
	second.Normalize(base.Add(time.Minute))
	other := audit.Event{Action: string(audit.EventConsentNotFound), Identity: "wallet-b"}
	other.Normalize(base)

	for _, e := range []audit.Event{second, first, other} {
		s.Require().NoError(s.store.Append(ctx, e))
	}

	events, err := s.store.ListByIdentity(ctx, "wallet-a")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(first.ID, events[0].ID)
	s.Equal(audit.CategoryCompliance, events[0].Category)
	s.Equal("sig", events[0].Signature)
	s.Equal(second.ID, events[1].ID)
}

func (s *PostgresAuditSuite) TestAppendIsIdempotentByID() {
	ctx := context.Background()
	e := audit.Event{Action: string(audit.EventConsentSigned), Identity: "wallet-c"}
	e.Normalize(time.Now())

	s.Require().NoError(s.store.Append(ctx, e))
	s.Require().NoError(s.store.Append(ctx, e))

	events, err := s.store.ListByIdentity(ctx, "wallet-c")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PostgresAuditSuite) TestMigrateTwice() {
	s.NoError(s.store.Migrate(context.Background()))
}
