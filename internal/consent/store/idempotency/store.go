// Package idempotency remembers sign responses by Idempotency-Key so a
// retried request is answered from the first result instead of submitting a
// second transaction.
package idempotency

import (
	"context"
	"encoding/json"
	"time"
)

// Record is a stored HTTP response. Fingerprint identifies the request
// payload so a reused key with a different payload can be refused.
type Record struct {
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
	Fingerprint string          `json:"fingerprint,omitempty"`
}

// Store reserves a key before work starts and records the outcome after.
//
// Reserve returns a reservation token when the key was free, the stored
// Record when the key already completed, or an error wrapping
// sentinel.ErrInFlight while another request holds the reservation.
// Complete and Release act only if token still owns the key.
type Store interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (token string, existing *Record, err error)
	Complete(ctx context.Context, key, token string, rec Record, ttl time.Duration) error
	Release(ctx context.Context, key, token string) error
}

type entry struct {
	Token  string  `json:"token"`
	Done   bool    `json:"done"`
	Record *Record `json:"record,omitempty"`
}
