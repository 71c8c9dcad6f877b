package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers events with legal or regulatory significance:
	// consent commitments and their failures.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers read-side activity that can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted by the attestation client. Identity, Address and Digest are
// public ledger data; the consent document itself never reaches the audit trail.
type Event struct {
	ID        uuid.UUID
	Category  EventCategory
	Timestamp time.Time
	Action    string
	Identity  string
	Address   string
	Digest    string
	Signature string
	// Reason is the failure kind for *_failed events.
	Reason    string
	Subject   string
	RequestID string
	Device    string
}

type AuditEvent string

const (
	EventConsentSigned     AuditEvent = "consent_signed"
	EventConsentSignFailed AuditEvent = "consent_sign_failed"
	EventConsentVerified   AuditEvent = "consent_verified"
	EventConsentNotFound   AuditEvent = "consent_not_found"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventConsentSigned:     CategoryCompliance,
	EventConsentSignFailed: CategoryCompliance,
	EventConsentVerified:   CategoryOperations,
	EventConsentNotFound:   CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Normalize fills ID, Category and Timestamp when unset.
func (e *Event) Normalize(now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Category == "" {
		e.Category = AuditEvent(e.Action).Category()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader serves the audit trail for one identity, oldest first.
type Reader interface {
	ListByIdentity(ctx context.Context, identity string) ([]Event, error)
}
